package resolve

import (
	"sort"

	"github.com/sudo-kno3/analyte-resolver/internal/config"
	"github.com/sudo-kno3/analyte-resolver/internal/model"
)

// combineDedupe merges every signal's candidate list, keeps the
// highest-scoring candidate per analyte ID, sorts descending by score,
// and truncates to 5.
func combineDedupe(candidates []model.Candidate) []model.Candidate {
	best := make(map[string]model.Candidate, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		cur, ok := best[c.AnalyteID]
		if !ok {
			order = append(order, c.AnalyteID)
			best[c.AnalyteID] = c
			continue
		}
		if c.Score > cur.Score {
			best[c.AnalyteID] = c
		}
	}

	out := make([]model.Candidate, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

// margin is top1-top2, 1.0 with a single candidate, 0.0 with none.
func margin(combined []model.Candidate) float64 {
	switch len(combined) {
	case 0:
		return 0.0
	case 1:
		return 1.0
	default:
		return combined[0].Score - combined[1].Score
	}
}

// crossMethodConflict reports whether fuzzy and semantic both returned
// candidates above the review threshold whose top-1 analytes differ.
func crossMethodConflict(fuzzyCandidates, semanticCandidates []model.Candidate, reviewThreshold float64) bool {
	if len(fuzzyCandidates) == 0 || len(semanticCandidates) == 0 {
		return false
	}
	f, s := fuzzyCandidates[0], semanticCandidates[0]
	if f.Score < reviewThreshold || s.Score < reviewThreshold {
		return false
	}
	return f.AnalyteID != s.AnalyteID
}

// gateResult is the two-axis decision gate's verdict.
type gateResult struct {
	band       model.ConfidenceBand
	best       *model.Candidate
	confidence float64 // gate-adjusted confidence for best, meaningless if best is nil
}

// gate applies the two-axis (score + margin) decision gate to the
// combined/deduped candidate list. Pure and total: every input maps to
// exactly one band.
func gate(combined []model.Candidate, m float64, conflict bool, cfg config.Config) gateResult {
	if len(combined) == 0 {
		return gateResult{band: model.BandUnknown}
	}

	top := combined[0]
	switch {
	case top.Score < cfg.OODThreshold:
		return gateResult{band: model.BandNovelCompound}

	case top.Score >= cfg.AutoAccept && m >= cfg.MarginThreshold && !conflict:
		return gateResult{band: model.BandAutoAccept, best: &top, confidence: top.Score}

	case top.Score >= cfg.Review:
		conf := top.Score
		if conflict && conf > cfg.DisagreementCap {
			conf = cfg.DisagreementCap
		}
		return gateResult{band: model.BandReview, best: &top, confidence: conf}

	default:
		return gateResult{band: model.BandUnknown}
	}
}
