package storage

import (
	"errors"

	"go.uber.org/multierr"

	"covnorm/internal/domain"
)

// MultiStorage saves to every backend and loads from the first that succeeds.
type MultiStorage struct {
	backends []Storage
}

// NewMultiStorage combines backends in priority order
func NewMultiStorage(backends ...Storage) *MultiStorage {
	return &MultiStorage{backends: backends}
}

// Save writes the run to all backends, even when an earlier one fails
func (m *MultiStorage) Save(run *domain.RunOutput) error {
	var err error
	for _, b := range m.backends {
		err = multierr.Append(err, b.Save(run))
	}
	return err
}

// Load returns the run from the first backend that has one
func (m *MultiStorage) Load() (*domain.RunOutput, error) {
	if len(m.backends) == 0 {
		return nil, errors.New("no storage configured")
	}
	var err error
	for _, b := range m.backends {
		run, loadErr := b.Load()
		if loadErr == nil {
			return run, nil
		}
		err = multierr.Append(err, loadErr)
	}
	return nil, err
}

// Close closes every backend that holds resources
func (m *MultiStorage) Close() error {
	var err error
	for _, b := range m.backends {
		if c, ok := b.(interface{ Close() error }); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
