// Package duckdb persists quantification results in DuckDB so runs can be
// compared and queried after the CSV reports are gone.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding quantification results.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sample_results (
		run_id VARCHAR,
		directory VARCHAR,
		sample VARCHAR,
		status VARCHAR,
		reads_aligned BIGINT,
		reads_total BIGINT,
		correction_with_bystanders DOUBLE,
		correction_without_bystanders DOUBLE,
		independent_correction DOUBLE,
		indep_less_w_bystanders DOUBLE,
		w_bystanders_less_wo_bystanders DOUBLE,
		target_locus VARCHAR,
		perfect_correction VARCHAR,
		corrected_locus_with_bystanders VARCHAR,
		allele_table VARCHAR,
		allele_table_size BIGINT,
		allele_table_modtime TIMESTAMP,
		created_at TIMESTAMP,
		PRIMARY KEY (run_id, directory)
	)`,
		`CREATE TABLE IF NOT EXISTS oneseq_results (
		run_id VARCHAR,
		directory VARCHAR,
		sample VARCHAR,
		reads_aligned BIGINT,
		reads_total BIGINT,
		window_percent DOUBLE,
		protospacer_percent DOUBLE,
		guide VARCHAR,
		window_variants INTEGER,
		protospacer_variants INTEGER,
		allele_table VARCHAR,
		allele_table_size BIGINT,
		allele_table_modtime TIMESTAMP,
		created_at TIMESTAMP,
		PRIMARY KEY (run_id, directory)
	)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
