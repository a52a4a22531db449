package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"covnorm/internal/config"
	"covnorm/internal/domain"
	"covnorm/internal/fileutil"
)

// JSONStorage stores the last run in a JSON file under the configured output path.
type JSONStorage struct {
	cfg *config.Config
}

// NewJSONStorage returns a Storage that reads/writes the config's output JSON path.
func NewJSONStorage(cfg *config.Config) *JSONStorage {
	return &JSONStorage{cfg: cfg}
}

// Save writes the run to the configured JSON output file.
func (s *JSONStorage) Save(run *domain.RunOutput) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	path := s.cfg.GetOutputPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := fileutil.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// Load reads the last run from the configured JSON output file.
func (s *JSONStorage) Load() (*domain.RunOutput, error) {
	path := s.cfg.GetOutputPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	var run domain.RunOutput
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return &run, nil
}
