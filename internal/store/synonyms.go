package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
)

// LoadAnalytes bulk-inserts the bootstrap corpus's analytes using the
// Appender API.
func (s *Store) LoadAnalytes(analytes map[string]*model.Analyte) error {
	if len(analytes) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "analytes")
		return err
	}); err != nil {
		return fmt.Errorf("create analytes appender: %w", err)
	}
	defer appender.Close()

	for _, a := range analytes {
		if err := appender.AppendRow(a.ID, a.PreferredName, string(a.Type), nullable(a.CASNumber), nullable(a.ParentAnalyte)); err != nil {
			return fmt.Errorf("append analyte %s: %w", a.ID, err)
		}
	}
	return appender.Flush()
}

// LoadSynonyms bulk-inserts the bootstrap corpus's synonyms.
func (s *Store) LoadSynonyms(synonyms []model.Synonym) error {
	if len(synonyms) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "synonyms")
		return err
	}); err != nil {
		return fmt.Errorf("create synonyms appender: %w", err)
	}
	defer appender.Close()

	now := time.Now().UTC()
	for i, syn := range synonyms {
		id, err := s.nextSeq("synonyms_id_seq")
		if err != nil {
			return err
		}
		createdAt := syn.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if err := appender.AppendRow(
			id, syn.AnalyteID, syn.Raw, syn.Normalized, string(syn.Type),
			syn.HarvestSource, syn.Confidence, nullable(syn.LabVendor),
			int32(syn.NormalizationVersion), createdAt,
		); err != nil {
			return fmt.Errorf("append synonym %d: %w", i, err)
		}
	}
	return appender.Flush()
}

// nextSeq pulls the next value from a DuckDB sequence, giving every
// inserted row a stable, monotonically increasing ID without a round
// trip per bulk batch.
func (s *Store) nextSeq(seq string) (int64, error) {
	var id int64
	if err := s.db.QueryRow(fmt.Sprintf("SELECT nextval('%s')", seq)).Scan(&id); err != nil {
		return 0, fmt.Errorf("next value for %s: %w", seq, err)
	}
	return id, nil
}

// LookupExact is the hot read path: an exact lookup of a normalized
// surface form against the synonym store.
func (s *Store) LookupExact(normalized string) (model.Candidate, bool, error) {
	row := s.db.QueryRow(`SELECT syn.analyte_id, an.preferred_name
		FROM synonyms syn JOIN analytes an ON an.id = syn.analyte_id
		WHERE syn.normalized = ? LIMIT 1`, normalized)

	var analyteID, name string
	if err := row.Scan(&analyteID, &name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Candidate{}, false, nil
		}
		return model.Candidate{}, false, fmt.Errorf("lookup exact %q: %w", normalized, err)
	}
	return model.Candidate{
		AnalyteID:     analyteID,
		PreferredName: name,
		Score:         1.0,
		Method:        model.MethodExact,
	}, true, nil
}

// LookupByCAS is a direct cas_number ->
// analyte query, confidence 1.0.
func (s *Store) LookupByCAS(cas string) (model.Candidate, bool, error) {
	row := s.db.QueryRow(`SELECT id, preferred_name FROM analytes WHERE cas_number = ? LIMIT 1`, cas)

	var id, name string
	if err := row.Scan(&id, &name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Candidate{}, false, nil
		}
		return model.Candidate{}, false, fmt.Errorf("lookup cas %q: %w", cas, err)
	}
	return model.Candidate{
		AnalyteID:     id,
		PreferredName: name,
		Score:         1.0,
		Method:        model.MethodCASExtracted,
	}, true, nil
}

// AnalyteByID fetches a single analyte row, used to resolve a
// PreferredName for candidates coming from fuzzy/semantic/vendor-cache
// signals, and to detect CorpusInconsistency.
func (s *Store) AnalyteByID(id string) (model.Analyte, bool, error) {
	row := s.db.QueryRow(`SELECT id, preferred_name, type, coalesce(cas_number,''), coalesce(parent_analyte,'')
		FROM analytes WHERE id = ?`, id)

	var a model.Analyte
	var typ string
	if err := row.Scan(&a.ID, &a.PreferredName, &typ, &a.CASNumber, &a.ParentAnalyte); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Analyte{}, false, nil
		}
		return model.Analyte{}, false, fmt.Errorf("lookup analyte %q: %w", id, err)
	}
	a.Type = model.AnalyteType(typ)
	return a, true, nil
}

// SynonymEntry is one synonym row as a fuzzy.Entry-shaped tuple, for
// building the in-memory fuzzy index at startup; callers adapt it into
// fuzzy.Entry.
type SynonymEntry struct {
	AnalyteID     string
	PreferredName string
	Normalized    string
	LabVendor     string
}

// AllSynonymEntries loads every synonym joined to its analyte's
// preferred name, the bulk read the fuzzy index is built from.
func (s *Store) AllSynonymEntries() ([]SynonymEntry, error) {
	rows, err := s.db.Query(`SELECT syn.analyte_id, an.preferred_name, syn.normalized, coalesce(syn.lab_vendor, '')
		FROM synonyms syn JOIN analytes an ON an.id = syn.analyte_id`)
	if err != nil {
		return nil, fmt.Errorf("query synonym entries: %w", err)
	}
	defer rows.Close()

	var out []SynonymEntry
	for rows.Next() {
		var e SynonymEntry
		if err := rows.Scan(&e.AnalyteID, &e.PreferredName, &e.Normalized, &e.LabVendor); err != nil {
			return nil, fmt.Errorf("scan synonym entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate synonym entries: %w", err)
	}
	return out, nil
}

// CountTodaysGlobalPromotions counts the daily promotion cap's usage:
// rows created today whose harvest_source starts with "validated_runtime".
// It runs as a standalone query; the count and the later InsertSynonym
// are not one transaction.
func (s *Store) CountTodaysGlobalPromotions() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT count(*) FROM synonyms
		WHERE harvest_source LIKE 'validated_runtime%' AND created_at >= current_date`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count today's promotions: %w", err)
	}
	return count, nil
}

// SynonymExists checks the (analyte_id, normalized) uniqueness invariant
// before a promotion insert (a duplicate promotion is a no-op).
func (s *Store) SynonymExists(analyteID, normalized string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT count(*) FROM synonyms WHERE analyte_id = ? AND normalized = ?`,
		analyteID, normalized).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check synonym exists: %w", err)
	}
	return count > 0, nil
}

// InsertSynonym performs a single transactional promotion insert, used
// by the learning loop rather than the bulk LoadSynonyms path.
func (s *Store) InsertSynonym(syn model.Synonym) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin insert synonym: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT count(*) FROM synonyms WHERE analyte_id = ? AND normalized = ?`,
		syn.AnalyteID, syn.Normalized).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check duplicate: %w", err)
	}
	if exists > 0 {
		return 0, nil
	}

	var id int64
	if err := tx.QueryRow(`SELECT nextval('synonyms_id_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("next synonym id: %w", err)
	}

	createdAt := syn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if _, err := tx.Exec(`INSERT INTO synonyms
		(id, analyte_id, raw, normalized, type, harvest_source, confidence, lab_vendor, normalization_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, syn.AnalyteID, syn.Raw, syn.Normalized, string(syn.Type),
		syn.HarvestSource, syn.Confidence, nullable(syn.LabVendor),
		int32(syn.NormalizationVersion), createdAt); err != nil {
		return 0, fmt.Errorf("insert synonym: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert synonym: %w", err)
	}
	return id, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
