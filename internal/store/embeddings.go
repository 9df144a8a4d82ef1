package store

import (
	"fmt"
	"time"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
)

// InsertEmbeddingMetadata persists one row per vector added to the
// semantic index (every position in the vector array has exactly one
// metadata row, and vice versa), joinable against the synonym/analyte
// tables the JSON side-file can't query.
func (s *Store) InsertEmbeddingMetadata(m model.EmbeddingsMetadata) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var synonymID any
	if m.SynonymID != 0 {
		synonymID = m.SynonymID
	}
	_, err := s.db.Exec(`INSERT INTO embeddings_metadata
		(position, synonym_id, analyte_id, text_content, model_name, model_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Position, synonymID, nullable(m.AnalyteID), m.TextContent, m.ModelName, m.ModelHash, createdAt)
	if err != nil {
		return fmt.Errorf("insert embedding metadata: %w", err)
	}
	return nil
}

// EmbeddingMetadataCount reports how many rows exist, used to
// cross-check completeness against the in-memory semantic.Index's Len().
func (s *Store) EmbeddingMetadataCount() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT count(*) FROM embeddings_metadata`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count embedding metadata: %w", err)
	}
	return count, nil
}

// RecordSnapshot pins a corpus hash + model hash pair into the snapshot
// registry so every MatchDecision referencing this pair remains
// interpretable after the corpus evolves. Idempotent: re-recording the
// same pair is a no-op.
func (s *Store) RecordSnapshot(corpusHash, modelHash, note string) error {
	var exists int
	if err := s.db.QueryRow(`SELECT count(*) FROM snapshot_registry WHERE corpus_hash = ? AND model_hash = ?`,
		corpusHash, modelHash).Scan(&exists); err != nil {
		return fmt.Errorf("check snapshot exists: %w", err)
	}
	if exists > 0 {
		return nil
	}
	_, err := s.db.Exec(`INSERT INTO snapshot_registry (corpus_hash, model_hash, created_at, note)
		VALUES (?, ?, ?, ?)`, corpusHash, modelHash, time.Now().UTC(), note)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}
