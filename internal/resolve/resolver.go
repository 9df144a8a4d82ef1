package resolve

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sudo-kno3/analyte-resolver/internal/cas"
	"github.com/sudo-kno3/analyte-resolver/internal/config"
	"github.com/sudo-kno3/analyte-resolver/internal/fuzzy"
	"github.com/sudo-kno3/analyte-resolver/internal/model"
	"github.com/sudo-kno3/analyte-resolver/internal/normalize"
	"github.com/sudo-kno3/analyte-resolver/internal/semantic"
	"github.com/sudo-kno3/analyte-resolver/internal/vendorcache"
)

// AnalyteLookup is the read surface the cascade needs from the synonym
// store and CAS table: exact/CAS hits plus a by-ID fetch to
// resolve preferred names for candidates that arrive without one (fuzzy,
// semantic, vendor cache). internal/store.Store implements this; tests
// use a small in-memory fake so the cascade's gate logic can be
// exercised without a DuckDB file.
type AnalyteLookup interface {
	LookupExact(normalized string) (model.Candidate, bool, error)
	LookupByCAS(casNumber string) (model.Candidate, bool, error)
	AnalyteByID(id string) (model.Analyte, bool, error)
}

// DecisionLogger is the write surface the cascade needs from the
// decision log: one append per resolve.
type DecisionLogger interface {
	InsertDecision(d model.MatchDecision) (int64, error)
}

// Resolver orchestrates every signal and applies the decision gate. It is
// safe to call Resolve concurrently from multiple goroutines against a
// shared instance; the only mutable state it touches (the
// vendor cache) is internally synchronized.
type Resolver struct {
	cfg           config.Config
	lookup        AnalyteLookup
	decisions     DecisionLogger
	fuzzyIndex    *fuzzy.Index
	semanticIndex *semantic.Index
	embedder      semantic.Embedder
	vendorCache   *vendorcache.Cache
	logger        *zap.SugaredLogger
	corpusHash    string
	modelHash     string
	warnOnce      sync.Once
}

// New constructs a Resolver. semanticIndex and embedder may both be nil,
// in which case the cascade degrades gracefully and never contributes a
// semantic candidate.
func New(cfg config.Config, lookup AnalyteLookup, decisions DecisionLogger, fuzzyIndex *fuzzy.Index,
	semanticIndex *semantic.Index, embedder semantic.Embedder, vendorCache *vendorcache.Cache,
	logger *zap.SugaredLogger, corpusHash, modelHash string) *Resolver {
	return &Resolver{
		cfg:           cfg,
		lookup:        lookup,
		decisions:     decisions,
		fuzzyIndex:    fuzzyIndex,
		semanticIndex: semanticIndex,
		embedder:      embedder,
		vendorCache:   vendorCache,
		logger:        logger,
		corpusHash:    corpusHash,
		modelHash:     modelHash,
	}
}

// Resolve runs one input through the full cascade: normalize,
// vendor-cache probe, CAS/exact lookup, fuzzy, semantic, gate, then
// appends a MatchDecision to the log. It never returns an error for a
// chemistry data problem; a non-nil error here means the decision log
// write itself failed.
func (r *Resolver) Resolve(text, vendor string, now time.Time) (ResolutionResult, error) {
	start := time.Now()

	normalized := normalize.Normalize(text)
	if normalized == "" {
		res := ResolutionResult{
			InputText:      text,
			SignalsUsed:    map[string]bool{},
			VendorTag:      vendor,
			ConfidenceBand: model.BandUnknown,
		}
		res.ResolutionTimeMs = elapsedMs(start)
		_, err := r.log(res, vendor, now)
		return res, err
	}

	signals := map[string]bool{}
	var candidates []model.Candidate

	if vendor != "" && r.cfg.EnableVendorCache && r.vendorCache != nil {
		probe := r.vendorCache.Probe(vendor, normalized, now, r.cfg.AutoAccept)
		r.vendorCache.Observe(vendor, normalized, now)

		if probe.Hit {
			signals["vendor_cache"] = true
			method := model.MethodVendorCache
			if probe.Stale {
				method = model.MethodVendorCacheStale
			}
			name := r.preferredName(probe.AnalyteID)
			candidates = append(candidates, model.Candidate{
				AnalyteID: probe.AnalyteID, PreferredName: name,
				Score: probe.Confidence, Method: method,
			})
		}
	}

	if casNum := cas.Extract(text); casNum != "" {
		if c, ok, err := r.lookup.LookupByCAS(casNum); err == nil && ok {
			signals["cas"] = true
			candidates = append(candidates, c)
		}
	}

	if c, ok, err := r.lookup.LookupExact(normalized); err == nil && ok {
		signals["exact"] = true
		candidates = append(candidates, c)
	}

	var fuzzyCandidates []model.Candidate
	if r.fuzzyIndex != nil {
		fuzzyCandidates = r.fuzzyIndex.Match(normalized, vendor, r.cfg.FuzzyTopK, r.cfg.FuzzyThreshold, r.cfg.VendorBoost)
		if len(fuzzyCandidates) > 0 {
			signals["fuzzy"] = true
			candidates = append(candidates, fuzzyCandidates...)
		}
	}

	var semanticCandidates []model.Candidate
	if r.semanticIndex != nil && r.embedder != nil {
		if vec, err := r.embedder.Embed(normalized); err == nil {
			semantic.L2Normalize(vec)
			semanticCandidates = r.semanticIndex.Search(vec, r.cfg.SemanticTopK, r.cfg.OODThreshold)
			if len(semanticCandidates) > 0 {
				signals["semantic"] = true
				candidates = append(candidates, semanticCandidates...)
			}
		}
	} else {
		r.warnOnce.Do(func() {
			if r.logger != nil {
				r.logger.Warnw("semantic index unavailable, resolving without semantic signal")
			}
		})
	}

	combined := combineDedupe(candidates)
	for i := range combined {
		if combined[i].PreferredName == "" {
			combined[i].PreferredName = r.preferredName(combined[i].AnalyteID)
		}
	}

	conflict := crossMethodConflict(fuzzyCandidates, semanticCandidates, r.cfg.Review)
	m := margin(combined)
	gated := gate(combined, m, conflict, r.cfg)

	res := ResolutionResult{
		InputText:           text,
		AllCandidates:       combined,
		SignalsUsed:         signals,
		VendorTag:           vendor,
		DisagreementFlag:    fuzzy.Disagreement(fuzzyCandidates, r.cfg.FuzzyDisagreementGap),
		CrossMethodConflict: conflict,
		ConfidenceBand:      gated.band,
		Margin:              m,
	}
	if gated.best != nil {
		res.BestMatch = &BestMatch{
			AnalyteID:     gated.best.AnalyteID,
			PreferredName: gated.best.PreferredName,
			Confidence:    gated.confidence,
			Method:        gated.best.Method,
			RawScore:      gated.best.Score,
			Metadata:      gated.best.Metadata,
		}
	}
	res.ResolutionTimeMs = elapsedMs(start)

	_, err := r.log(res, vendor, now)
	return res, err
}

func (r *Resolver) preferredName(analyteID string) string {
	if r.lookup == nil {
		return ""
	}
	if a, ok, err := r.lookup.AnalyteByID(analyteID); err == nil && ok {
		return a.PreferredName
	}
	return ""
}

func (r *Resolver) log(res ResolutionResult, vendor string, now time.Time) (int64, error) {
	if r.decisions == nil {
		return 0, nil
	}
	matchedID := ""
	confidence := 0.0
	method := model.MethodUnknown
	if res.BestMatch != nil {
		matchedID = res.BestMatch.AnalyteID
		confidence = res.BestMatch.Confidence
		method = res.BestMatch.Method
	}
	d := model.MatchDecision{
		InputText:           res.InputText,
		MatchedAnalyteID:    matchedID,
		Method:              method,
		TopCandidates:       res.AllCandidates,
		SignalsUsed:         res.SignalsUsed,
		ConfidenceScore:     confidence,
		Margin:              res.Margin,
		CrossMethodConflict: res.CrossMethodConflict,
		DisagreementFlag:    res.DisagreementFlag,
		CorpusSnapshotHash:  r.corpusHash,
		ModelHash:           r.modelHash,
		LabVendor:           vendor,
		DecisionTimestamp:   now,
	}
	return r.decisions.InsertDecision(d)
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
