package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
)

// InsertDecision appends one MatchDecision row. The log is append-only:
// a human correction must go through CorrectDecision rather than
// mutating a row in place.
func (s *Store) InsertDecision(d model.MatchDecision) (int64, error) {
	candidatesJSON, err := json.Marshal(d.TopCandidates)
	if err != nil {
		return 0, fmt.Errorf("marshal top candidates: %w", err)
	}
	signalsJSON, err := json.Marshal(d.SignalsUsed)
	if err != nil {
		return 0, fmt.Errorf("marshal signals used: %w", err)
	}

	id := d.ID
	if id == 0 {
		if err := s.db.QueryRow(`SELECT nextval('decisions_id_seq')`).Scan(&id); err != nil {
			return 0, fmt.Errorf("next decision id: %w", err)
		}
	}
	ts := d.DecisionTimestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	var correctionOf any
	if d.CorrectionOf != 0 {
		correctionOf = d.CorrectionOf
	}

	_, err = s.db.Exec(`INSERT INTO match_decisions
		(id, input_text, matched_analyte_id, method, top_candidates_json, signals_used_json,
		 confidence_score, margin, cross_method_conflict, disagreement_flag,
		 corpus_snapshot_hash, model_hash, lab_vendor, decision_timestamp,
		 human_validated, ingested, correction_of, is_corrected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, d.InputText, nullable(d.MatchedAnalyteID), d.Method, string(candidatesJSON), string(signalsJSON),
		d.ConfidenceScore, d.Margin, d.CrossMethodConflict, d.DisagreementFlag,
		d.CorpusSnapshotHash, d.ModelHash, nullable(d.LabVendor), ts,
		d.HumanValidated, d.Ingested, correctionOf, d.IsCorrected)
	if err != nil {
		return 0, fmt.Errorf("insert decision: %w", err)
	}
	return id, nil
}

// CorrectDecision implements the append-only correction model: a human
// correction creates a NEW row whose correction_of points at the
// original, and flips is_corrected on the predecessor. No
// row is ever mutated in place except this one flag flip, which records
// a fact about the row's lineage rather than its content.
func (s *Store) CorrectDecision(originalID int64, corrected model.MatchDecision) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin correction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE match_decisions SET is_corrected = true WHERE id = ?`, originalID); err != nil {
		return 0, fmt.Errorf("flag predecessor corrected: %w", err)
	}

	corrected.CorrectionOf = originalID
	candidatesJSON, err := json.Marshal(corrected.TopCandidates)
	if err != nil {
		return 0, fmt.Errorf("marshal top candidates: %w", err)
	}
	signalsJSON, err := json.Marshal(corrected.SignalsUsed)
	if err != nil {
		return 0, fmt.Errorf("marshal signals used: %w", err)
	}

	var id int64
	if err := tx.QueryRow(`SELECT nextval('decisions_id_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("next decision id: %w", err)
	}
	ts := corrected.DecisionTimestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	if _, err := tx.Exec(`INSERT INTO match_decisions
		(id, input_text, matched_analyte_id, method, top_candidates_json, signals_used_json,
		 confidence_score, margin, cross_method_conflict, disagreement_flag,
		 corpus_snapshot_hash, model_hash, lab_vendor, decision_timestamp,
		 human_validated, ingested, correction_of, is_corrected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, corrected.InputText, nullable(corrected.MatchedAnalyteID), corrected.Method,
		string(candidatesJSON), string(signalsJSON), corrected.ConfidenceScore, corrected.Margin,
		corrected.CrossMethodConflict, corrected.DisagreementFlag, corrected.CorpusSnapshotHash,
		corrected.ModelHash, nullable(corrected.LabVendor), ts, corrected.HumanValidated,
		corrected.Ingested, originalID, false); err != nil {
		return 0, fmt.Errorf("insert correction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit correction: %w", err)
	}
	return id, nil
}

// RecentDecisions returns every decision with decision_timestamp >= since,
// the read path internal/learning's threshold calibrator and clustering
// stages analyze over a rolling window.
func (s *Store) RecentDecisions(since time.Time) ([]model.MatchDecision, error) {
	rows, err := s.db.Query(`SELECT id, input_text, coalesce(matched_analyte_id, ''), method,
		top_candidates_json, signals_used_json, confidence_score, margin,
		cross_method_conflict, disagreement_flag, corpus_snapshot_hash, model_hash,
		coalesce(lab_vendor, ''), decision_timestamp, human_validated, ingested,
		coalesce(correction_of, 0), is_corrected
		FROM match_decisions WHERE decision_timestamp >= ? ORDER BY decision_timestamp`, since)
	if err != nil {
		return nil, fmt.Errorf("query recent decisions: %w", err)
	}
	defer rows.Close()

	var out []model.MatchDecision
	for rows.Next() {
		var d model.MatchDecision
		var candidatesJSON, signalsJSON string
		if err := rows.Scan(&d.ID, &d.InputText, &d.MatchedAnalyteID, &d.Method,
			&candidatesJSON, &signalsJSON, &d.ConfidenceScore, &d.Margin,
			&d.CrossMethodConflict, &d.DisagreementFlag, &d.CorpusSnapshotHash, &d.ModelHash,
			&d.LabVendor, &d.DecisionTimestamp, &d.HumanValidated, &d.Ingested,
			&d.CorrectionOf, &d.IsCorrected); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		_ = json.Unmarshal([]byte(candidatesJSON), &d.TopCandidates)
		_ = json.Unmarshal([]byte(signalsJSON), &d.SignalsUsed)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return out, nil
}

// UnknownInputsSince returns the raw input_text of every decision in the
// UNKNOWN/NOVEL_COMPOUND bands (no matched analyte) since the given time,
// the feed for unknown-term clustering.
func (s *Store) UnknownInputsSince(since time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT input_text FROM match_decisions
		WHERE matched_analyte_id IS NULL AND decision_timestamp >= ?`, since)
	if err != nil {
		return nil, fmt.Errorf("query unknown inputs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan unknown input: %w", err)
		}
		out = append(out, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unknown inputs: %w", err)
	}
	return out, nil
}
