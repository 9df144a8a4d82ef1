package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
	"github.com/sudo-kno3/analyte-resolver/internal/resolveerr"
)

// UpsertLabVariant persists a LabVariant row; the learning loop calls it
// for each vendor-tagged validation event. Resolve-path observations
// update only the in-memory vendorcache.Cache and are not written here.
// Uniqueness of (vendor, normalized_text) rests on the unique index
// created in ensureSchema; an insert that conflicts with it fails with an
// ordinary wrapped error, not ErrVendorCacheConflict.
func (s *Store) UpsertLabVariant(v model.LabVariant) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin upsert lab variant: %w", err)
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRow(`SELECT id FROM lab_variants WHERE lab_vendor = ? AND normalized_text = ?`,
		v.LabVendor, v.NormalizedText).Scan(&existingID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		id := v.ID
		if id == 0 {
			if err := tx.QueryRow(`SELECT nextval('lab_variants_id_seq')`).Scan(&id); err != nil {
				return 0, fmt.Errorf("next lab variant id: %w", err)
			}
		}
		if _, err := tx.Exec(`INSERT INTO lab_variants
			(id, normalized_text, lab_vendor, frequency_count, first_seen_date, last_seen_date,
			 collision_count, last_collision_date, normalization_version, validated_analyte_id, validation_grade)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, v.NormalizedText, v.LabVendor, v.FrequencyCount, v.FirstSeenDate, v.LastSeenDate,
			v.CollisionCount, nullableTime(v.LastCollisionDate), v.NormalizationVersion,
			nullable(v.ValidatedAnalyteID), string(v.ValidationGrade)); err != nil {
			return 0, fmt.Errorf("insert lab variant: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit insert lab variant: %w", err)
		}
		return id, nil

	case err != nil:
		return 0, fmt.Errorf("lookup lab variant: %w", err)
	}

	if _, err := tx.Exec(`UPDATE lab_variants SET
			frequency_count = ?, last_seen_date = ?, collision_count = ?,
			last_collision_date = ?, validated_analyte_id = ?, validation_grade = ?
			WHERE id = ?`,
		v.FrequencyCount, v.LastSeenDate, v.CollisionCount,
		nullableTime(v.LastCollisionDate), nullable(v.ValidatedAnalyteID), string(v.ValidationGrade), existingID); err != nil {
		return 0, fmt.Errorf("update lab variant: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit update lab variant: %w", err)
	}
	return existingID, nil
}

// InsertConfirmation persists a LabVariantConfirmation audit child. Any
// write spanning the vendor cache and its confirmation children must be
// atomic; callers that update both a LabVariant and its confirmations
// should do so inside a single logical operation and treat a failure of
// either write as a failure of both (the vendorcache in-memory Cache is
// the authority; this call makes it durable).
func (s *Store) InsertConfirmation(conf model.LabVariantConfirmation) error {
	id := conf.ID
	if id == 0 {
		if err := s.db.QueryRow(`SELECT nextval('confirmations_id_seq')`).Scan(&id); err != nil {
			return fmt.Errorf("next confirmation id: %w", err)
		}
	}
	_, err := s.db.Exec(`INSERT INTO lab_variant_confirmations
		(id, variant_id, submission_id, confirmed_analyte_id, confirmed_at, valid_for_consensus)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, conf.VariantID, conf.SubmissionID, conf.ConfirmedAnalyteID, conf.ConfirmedAt, conf.ValidForConsensus)
	if err != nil {
		return fmt.Errorf("insert confirmation: %w", err)
	}
	return nil
}

// InvalidateConfirmations flips valid_for_consensus off for every
// confirmation of variantID that confirmed supersededAnalyteID, mirroring
// vendorcache.Cache's in-memory invalidation on collision.
func (s *Store) InvalidateConfirmations(variantID int64, supersededAnalyteID string) error {
	_, err := s.db.Exec(`UPDATE lab_variant_confirmations
		SET valid_for_consensus = false
		WHERE variant_id = ? AND confirmed_analyte_id = ?`, variantID, supersededAnalyteID)
	if err != nil {
		return fmt.Errorf("invalidate confirmations: %w", err)
	}
	return nil
}

// LoadAllLabVariants reads every LabVariant and its confirmation
// children, for warm-starting vendorcache.Cache after a restart.
func (s *Store) LoadAllLabVariants() ([]model.LabVariant, map[int64][]model.LabVariantConfirmation, error) {
	rows, err := s.db.Query(`SELECT id, normalized_text, lab_vendor, frequency_count,
		first_seen_date, last_seen_date, collision_count, last_collision_date,
		normalization_version, coalesce(validated_analyte_id, ''), validation_grade
		FROM lab_variants`)
	if err != nil {
		return nil, nil, fmt.Errorf("query lab variants: %w", err)
	}
	defer rows.Close()

	var variants []model.LabVariant
	for rows.Next() {
		var v model.LabVariant
		var lastCollision sql.NullTime
		var grade string
		if err := rows.Scan(&v.ID, &v.NormalizedText, &v.LabVendor, &v.FrequencyCount,
			&v.FirstSeenDate, &v.LastSeenDate, &v.CollisionCount, &lastCollision,
			&v.NormalizationVersion, &v.ValidatedAnalyteID, &grade); err != nil {
			return nil, nil, fmt.Errorf("scan lab variant: %w", err)
		}
		if lastCollision.Valid {
			v.LastCollisionDate = lastCollision.Time
		}
		v.ValidationGrade = model.ValidationGrade(grade)
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate lab variants: %w", err)
	}

	confs, err := s.loadAllConfirmations()
	if err != nil {
		return nil, nil, err
	}
	return variants, confs, nil
}

func (s *Store) loadAllConfirmations() (map[int64][]model.LabVariantConfirmation, error) {
	rows, err := s.db.Query(`SELECT id, variant_id, submission_id, confirmed_analyte_id, confirmed_at, valid_for_consensus
		FROM lab_variant_confirmations`)
	if err != nil {
		return nil, fmt.Errorf("query confirmations: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]model.LabVariantConfirmation)
	for rows.Next() {
		var c model.LabVariantConfirmation
		if err := rows.Scan(&c.ID, &c.VariantID, &c.SubmissionID, &c.ConfirmedAnalyteID, &c.ConfirmedAt, &c.ValidForConsensus); err != nil {
			return nil, fmt.Errorf("scan confirmation: %w", err)
		}
		out[c.VariantID] = append(out[c.VariantID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate confirmations: %w", err)
	}
	return out, nil
}

// DetectVendorCacheConflicts scans for (vendor, normalized_text) pairs
// duplicated across more than one row — the uniqueness invariant the
// schema's index normally prevents, but which can appear after a restore
// from a backup taken without it. Returns the IDs to quarantine (every
// row but the earliest per pair) alongside ErrVendorCacheConflict;
// callers log the event and hand the IDs to QuarantineLabVariants.
func (s *Store) DetectVendorCacheConflicts() ([]int64, error) {
	rows, err := s.db.Query(`SELECT v.id
		FROM lab_variants v
		JOIN (SELECT lab_vendor, normalized_text, min(id) AS keep
		      FROM lab_variants
		      GROUP BY lab_vendor, normalized_text
		      HAVING count(*) > 1) dup
		ON v.lab_vendor = dup.lab_vendor AND v.normalized_text = dup.normalized_text
		WHERE v.id <> dup.keep
		ORDER BY v.id`)
	if err != nil {
		return nil, fmt.Errorf("detect conflicts: %w", err)
	}
	defer rows.Close()

	var quarantine []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conflict row: %w", err)
		}
		quarantine = append(quarantine, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicts: %w", err)
	}
	if len(quarantine) > 0 {
		return quarantine, fmt.Errorf("%w: %d duplicate (vendor, normalized_text) rows", resolveerr.ErrVendorCacheConflict, len(quarantine))
	}
	return nil, nil
}

// QuarantineLabVariants moves the given rows out of lab_variants into
// lab_variants_quarantine in one transaction, so exactly one row per
// (vendor, normalized_text) remains live. Confirmation children are left
// in place for audit; the quarantine copy records when the row was
// pulled.
func (s *Store) QuarantineLabVariants(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin quarantine: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.Exec(`INSERT INTO lab_variants_quarantine
			SELECT *, current_timestamp FROM lab_variants WHERE id = ?`, id); err != nil {
			return fmt.Errorf("copy lab variant %d to quarantine: %w", id, err)
		}
		if _, err := tx.Exec(`DELETE FROM lab_variants WHERE id = ?`, id); err != nil {
			return fmt.Errorf("remove quarantined lab variant %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit quarantine: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
