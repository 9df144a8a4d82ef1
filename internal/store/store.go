// Package store is the relational system of record: analytes, synonyms,
// lab variants and their confirmations, match decisions, embeddings
// metadata, and the snapshot registry. It is backed by DuckDB: sql.Open
// on construction, ensureSchema on open, the Appender API for bulk
// writes, and plain parameterized queries (no prepared statements) for
// lookups.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store owns a DuckDB connection and every table the resolver core
// reads and writes. The synonym store, vendor cache persistence,
// decision log, and embeddings metadata all share one connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at path. An empty path opens
// an in-memory database, used by tests and by ad hoc single-shot CLI
// resolves that don't need durable state.
func Open(path string) (*Store, error) {
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
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

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying *sql.DB for callers that need direct access
// (migrations, ad hoc diagnostics).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analytes (
			id VARCHAR PRIMARY KEY,
			preferred_name VARCHAR NOT NULL,
			type VARCHAR NOT NULL,
			cas_number VARCHAR,
			parent_analyte VARCHAR
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_analytes_cas ON analytes(cas_number)`,
		`CREATE TABLE IF NOT EXISTS synonyms (
			id BIGINT,
			analyte_id VARCHAR NOT NULL,
			raw VARCHAR NOT NULL,
			normalized VARCHAR NOT NULL,
			type VARCHAR,
			harvest_source VARCHAR,
			confidence DOUBLE,
			lab_vendor VARCHAR,
			normalization_version INTEGER,
			created_at TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_synonyms_analyte_norm ON synonyms(analyte_id, normalized)`,
		`CREATE INDEX IF NOT EXISTS idx_synonyms_vendor_norm ON synonyms(lab_vendor, normalized)`,
		`CREATE INDEX IF NOT EXISTS idx_synonyms_harvest_source ON synonyms(harvest_source)`,
		`CREATE SEQUENCE IF NOT EXISTS synonyms_id_seq`,
		`CREATE TABLE IF NOT EXISTS lab_variants (
			id BIGINT PRIMARY KEY,
			normalized_text VARCHAR NOT NULL,
			lab_vendor VARCHAR NOT NULL,
			frequency_count INTEGER,
			first_seen_date TIMESTAMP,
			last_seen_date TIMESTAMP,
			collision_count INTEGER,
			last_collision_date TIMESTAMP,
			normalization_version INTEGER,
			validated_analyte_id VARCHAR,
			validation_grade VARCHAR
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_lab_variants_vendor_norm ON lab_variants(lab_vendor, normalized_text)`,
		`CREATE SEQUENCE IF NOT EXISTS lab_variants_id_seq`,
		`CREATE TABLE IF NOT EXISTS lab_variants_quarantine (
			id BIGINT,
			normalized_text VARCHAR NOT NULL,
			lab_vendor VARCHAR NOT NULL,
			frequency_count INTEGER,
			first_seen_date TIMESTAMP,
			last_seen_date TIMESTAMP,
			collision_count INTEGER,
			last_collision_date TIMESTAMP,
			normalization_version INTEGER,
			validated_analyte_id VARCHAR,
			validation_grade VARCHAR,
			quarantined_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS lab_variant_confirmations (
			id BIGINT PRIMARY KEY,
			variant_id BIGINT NOT NULL,
			submission_id VARCHAR NOT NULL,
			confirmed_analyte_id VARCHAR NOT NULL,
			confirmed_at TIMESTAMP,
			valid_for_consensus BOOLEAN
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_confirmations_variant_submission ON lab_variant_confirmations(variant_id, submission_id)`,
		`CREATE SEQUENCE IF NOT EXISTS confirmations_id_seq`,
		`CREATE TABLE IF NOT EXISTS match_decisions (
			id BIGINT PRIMARY KEY,
			input_text VARCHAR NOT NULL,
			matched_analyte_id VARCHAR,
			method VARCHAR NOT NULL,
			top_candidates_json VARCHAR,
			signals_used_json VARCHAR,
			confidence_score DOUBLE,
			margin DOUBLE,
			cross_method_conflict BOOLEAN,
			disagreement_flag BOOLEAN,
			corpus_snapshot_hash VARCHAR,
			model_hash VARCHAR,
			lab_vendor VARCHAR,
			decision_timestamp TIMESTAMP,
			human_validated BOOLEAN,
			ingested BOOLEAN,
			correction_of BIGINT,
			is_corrected BOOLEAN
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON match_decisions(decision_timestamp)`,
		`CREATE SEQUENCE IF NOT EXISTS decisions_id_seq`,
		`CREATE TABLE IF NOT EXISTS embeddings_metadata (
			position INTEGER PRIMARY KEY,
			synonym_id BIGINT,
			analyte_id VARCHAR,
			text_content VARCHAR,
			model_name VARCHAR,
			model_hash VARCHAR,
			created_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot_registry (
			corpus_hash VARCHAR,
			model_hash VARCHAR,
			created_at TIMESTAMP,
			note VARCHAR,
			PRIMARY KEY (corpus_hash, model_hash)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}
