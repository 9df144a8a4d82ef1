// Package learning implements the learning loop: synonym ingestion,
// threshold recalibration, unknown-term clustering, and
// retrain-maturity recommendation.
package learning

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
	"github.com/sudo-kno3/analyte-resolver/internal/normalize"
)

// SynonymStore is the write surface the ingestor needs from the
// synonym table; internal/store.Store implements it.
type SynonymStore interface {
	CountTodaysGlobalPromotions() (int, error)
	SynonymExists(analyteID, normalized string) (bool, error)
	InsertSynonym(syn model.Synonym) (int64, error)
}

// Ingestor promotes validated runtime matches to global synonyms,
// expanding vocabulary immediately without model retraining.
type Ingestor struct {
	store  SynonymStore
	logger *zap.SugaredLogger

	DualGateMargin          float64
	MaxGlobalSynonymsPerDay int
}

// NewIngestor constructs an Ingestor against the given synonym store.
func NewIngestor(store SynonymStore, logger *zap.SugaredLogger, dualGateMargin float64, maxPerDay int) *Ingestor {
	return &Ingestor{store: store, logger: logger, DualGateMargin: dualGateMargin, MaxGlobalSynonymsPerDay: maxPerDay}
}

// IngestValidated promotes one validated runtime decision to a global
// synonym, applying the dual-confirmation gate: the
// cascade must have independently confirmed the match (not just vendor
// cache) AND the cascade margin must meet dual_gate_margin. Also
// enforces the daily global-promotion rate cap and a duplicate check.
// Returns true if a new synonym row was inserted.
func (ing *Ingestor) IngestValidated(rawText, analyteID string, cascadeConfirmed bool, cascadeMargin float64, labVendor string) (bool, error) {
	if !cascadeConfirmed {
		ing.logf("dual gate blocked synonym %q: cascade did not independently confirm (vendor cache bypass only)", rawText)
		return false, nil
	}
	if cascadeMargin < ing.DualGateMargin {
		ing.logf("dual gate blocked synonym %q: cascade margin %.3f < dual_gate_margin %.3f", rawText, cascadeMargin, ing.DualGateMargin)
		return false, nil
	}

	todays, err := ing.store.CountTodaysGlobalPromotions()
	if err != nil {
		return false, fmt.Errorf("count today's promotions: %w", err)
	}
	if todays >= ing.MaxGlobalSynonymsPerDay {
		ing.logf("global synonym daily cap reached (%d), blocked %q -> %s", ing.MaxGlobalSynonymsPerDay, rawText, analyteID)
		return false, nil
	}

	normalized := normalize.Normalize(rawText)
	exists, err := ing.store.SynonymExists(analyteID, normalized)
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	if exists {
		ing.logf("duplicate synonym detected, skipping %q for %s", normalized, analyteID)
		return false, nil
	}

	harvestSource := "validated_runtime"
	if labVendor != "" {
		harvestSource = "validated_runtime:" + labVendor
	}

	syn := model.Synonym{
		AnalyteID:            analyteID,
		Raw:                  rawText,
		Normalized:           normalized,
		Type:                 model.SynonymLabVariant,
		HarvestSource:        harvestSource,
		Confidence:           1.0,
		LabVendor:            labVendor,
		NormalizationVersion: normalize.Version,
		CreatedAt:            time.Now().UTC(),
	}
	if _, err := ing.store.InsertSynonym(syn); err != nil {
		return false, fmt.Errorf("insert synonym: %w", err)
	}
	ing.logf("ingested synonym %q -> %s", rawText, analyteID)
	return true, nil
}

// BulkStats summarizes a BulkIngest run.
type BulkStats struct {
	Added      int
	Duplicates int
	Errors     int
}

// ValidatedItem is one candidate for bulk promotion.
type ValidatedItem struct {
	RawText          string
	AnalyteID        string
	CascadeConfirmed bool
	CascadeMargin    float64
	LabVendor        string
}

// BulkIngest ingests multiple validated items, tolerating per-item
// errors so one bad row doesn't abort the batch.
func (ing *Ingestor) BulkIngest(items []ValidatedItem) BulkStats {
	var stats BulkStats
	for _, it := range items {
		added, err := ing.IngestValidated(it.RawText, it.AnalyteID, it.CascadeConfirmed, it.CascadeMargin, it.LabVendor)
		switch {
		case err != nil:
			stats.Errors++
		case added:
			stats.Added++
		default:
			stats.Duplicates++
		}
	}
	return stats
}

func (ing *Ingestor) logf(format string, args ...any) {
	if ing.logger != nil {
		ing.logger.Infof(format, args...)
	}
}
