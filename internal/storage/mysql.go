package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/multierr"

	"covnorm/internal/domain"
)

var databaseNamePattern = regexp.MustCompile(`^[A-Za-z0-9_$]{1,64}$`)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS covnorm_runs (
		run_id CHAR(36) NOT NULL PRIMARY KEY,
		created_at VARCHAR(40) NOT NULL,
		total_targets INT NOT NULL,
		ok_targets INT NOT NULL,
		test_fail_targets INT NOT NULL,
		failed_targets INT NOT NULL,
		duration VARCHAR(64) NOT NULL,
		duration_seconds DOUBLE NOT NULL,
		workers INT NOT NULL,
		rewrite_mode VARCHAR(16) NOT NULL,
		inserted_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	)`,
	`CREATE TABLE IF NOT EXISTS covnorm_targets (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		run_id CHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		dir TEXT NOT NULL,
		prefix TEXT NOT NULL,
		report_path TEXT NOT NULL,
		status VARCHAR(32) NOT NULL,
		stage VARCHAR(32) NOT NULL,
		error TEXT NOT NULL,
		passed INT NOT NULL,
		failed INT NOT NULL,
		rewritten INT NOT NULL,
		line_rate DOUBLE NULL,
		lines_valid INT NULL,
		lines_covered INT NULL,
		classes INT NULL,
		duration_seconds DOUBLE NOT NULL,
		output MEDIUMTEXT NOT NULL,
		INDEX idx_covnorm_targets_run (run_id)
	)`,
}

// MySQLStorage appends every run to a MySQL run history.
// The database and tables are created on first use.
type MySQLStorage struct {
	dsn string

	mu sync.Mutex
	db *sql.DB
}

// NewMySQLStorage validates dsn and returns a storage that connects lazily
func NewMySQLStorage(dsn string) (*MySQLStorage, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}
	if cfg.DBName == "" {
		return nil, errors.New("database DSN has no database name")
	}
	if !isValidDatabaseName(cfg.DBName) {
		return nil, fmt.Errorf("invalid database name: %s", cfg.DBName)
	}
	return &MySQLStorage{dsn: cfg.FormatDSN()}, nil
}

// Save inserts the run and its targets in one transaction.
func (s *MySQLStorage) Save(run *domain.RunOutput) (err error) {
	db, err := s.open()
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, ignoreTxDone(tx.Rollback()))
		}
	}()

	m := run.Meta
	if _, err := tx.Exec(
		`INSERT INTO covnorm_runs (run_id, created_at, total_targets, ok_targets, test_fail_targets,
			failed_targets, duration, duration_seconds, workers, rewrite_mode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RunID, m.Timestamp, m.TotalTargets, m.OKTargets, m.TestFailTargets,
		m.FailedTargets, m.Duration, m.DurationSeconds, m.Workers, m.RewriteMode,
	); err != nil {
		return fmt.Errorf("insert run %s: %w", m.RunID, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO covnorm_targets (run_id, name, dir, prefix, report_path, status, stage, error,
			passed, failed, rewritten, line_rate, lines_valid, lines_covered, classes, duration_seconds, output)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare target insert: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(stmt))

	for _, t := range run.Targets {
		var lineRate sql.NullFloat64
		var linesValid, linesCovered, classes sql.NullInt64
		if t.Coverage != nil {
			lineRate = sql.NullFloat64{Float64: t.Coverage.LineRate, Valid: true}
			linesValid = sql.NullInt64{Int64: int64(t.Coverage.LinesValid), Valid: true}
			linesCovered = sql.NullInt64{Int64: int64(t.Coverage.LinesCovered), Valid: true}
			classes = sql.NullInt64{Int64: int64(t.Coverage.Classes), Valid: true}
		}
		if _, err := stmt.Exec(
			m.RunID, t.Name, t.Dir, t.Prefix, t.ReportPath, string(t.Status), t.Stage, t.Error,
			t.Passed, t.Failed, t.Rewritten, lineRate, linesValid, linesCovered, classes,
			t.DurationSeconds, t.Output,
		); err != nil {
			return fmt.Errorf("insert target %s: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", m.RunID, err)
	}
	return nil
}

// Load returns the most recently inserted run.
func (s *MySQLStorage) Load() (_ *domain.RunOutput, err error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}

	var run domain.RunOutput
	m := &run.Meta
	err = db.QueryRow(
		`SELECT run_id, created_at, total_targets, ok_targets, test_fail_targets, failed_targets,
			duration, duration_seconds, workers, rewrite_mode
		FROM covnorm_runs ORDER BY inserted_at DESC LIMIT 1`,
	).Scan(&m.RunID, &m.Timestamp, &m.TotalTargets, &m.OKTargets, &m.TestFailTargets, &m.FailedTargets,
		&m.Duration, &m.DurationSeconds, &m.Workers, &m.RewriteMode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("no runs recorded")
	}
	if err != nil {
		return nil, fmt.Errorf("load last run: %w", err)
	}

	rows, err := db.Query(
		`SELECT name, dir, prefix, report_path, status, stage, error, passed, failed, rewritten,
			line_rate, lines_valid, lines_covered, classes, duration_seconds, output
		FROM covnorm_targets WHERE run_id = ? ORDER BY id`, m.RunID)
	if err != nil {
		return nil, fmt.Errorf("load targets of run %s: %w", m.RunID, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(rows))

	for rows.Next() {
		var t domain.TargetRecord
		var status string
		var lineRate sql.NullFloat64
		var linesValid, linesCovered, classes sql.NullInt64
		if err := rows.Scan(&t.Name, &t.Dir, &t.Prefix, &t.ReportPath, &status, &t.Stage, &t.Error,
			&t.Passed, &t.Failed, &t.Rewritten, &lineRate, &linesValid, &linesCovered, &classes,
			&t.DurationSeconds, &t.Output); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		t.Status = domain.Status(status)
		if lineRate.Valid {
			t.Coverage = &domain.ReportSummary{
				LineRate:     lineRate.Float64,
				LinesValid:   int(linesValid.Int64),
				LinesCovered: int(linesCovered.Int64),
				Classes:      int(classes.Int64),
			}
		}
		run.Targets = append(run.Targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return &run, nil
}

// Close releases the connection pool
func (s *MySQLStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// open connects once, creating the database and tables when missing
func (s *MySQLStorage) open() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}

	if err := s.createDatabase(); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, multierr.Append(fmt.Errorf("create schema: %w", err), db.Close())
		}
	}
	s.db = db
	return db, nil
}

// createDatabase connects to the server without a database and creates it if needed
func (s *MySQLStorage) createDatabase() (err error) {
	cfg, err := mysql.ParseDSN(s.dsn)
	if err != nil {
		return fmt.Errorf("invalid database DSN: %w", err)
	}
	name := cfg.DBName
	cfg.DBName = ""

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database server: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(db))

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database server: %w", err)
	}

	var exists bool
	query := "SELECT EXISTS(SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?)"
	if err := db.QueryRow(query, name).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check database %s: %w", name, err)
	}
	if exists {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

func isValidDatabaseName(name string) bool {
	return databaseNamePattern.MatchString(name)
}

func ignoreTxDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
