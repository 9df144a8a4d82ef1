package learning

import (
	"sort"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
)

// Statistics summarizes a rolling window of match decisions for
// calibration and reporting.
type Statistics struct {
	TotalDecisions       int
	ValidatedCount       int
	ValidationRate       float64
	MethodDistribution   map[string]int
	AcceptanceRateTop1   float64 // meaningless if ValidatedCount == 0
	OverrideFrequency    float64
	UnknownRate          float64
	DisagreementByMethod map[string]float64
	ConfidenceBins       map[string]int
	IngestedCount        int
	IngestionRate        float64
}

// AnalyzeDecisions computes Statistics over a slice of decisions
// already filtered to the analysis window by the caller (typically
// internal/store.RecentDecisions).
func AnalyzeDecisions(decisions []model.MatchDecision) Statistics {
	stats := Statistics{
		MethodDistribution:   map[string]int{},
		DisagreementByMethod: map[string]float64{},
		ConfidenceBins:       confidenceBins(),
	}
	stats.TotalDecisions = len(decisions)
	if stats.TotalDecisions == 0 {
		return stats
	}

	var validated []model.MatchDecision
	methodTotals := map[string]int{}
	methodDisagreements := map[string]int{}

	for _, d := range decisions {
		stats.MethodDistribution[d.Method]++
		bumpConfidenceBin(stats.ConfidenceBins, d.ConfidenceScore)
		if d.HumanValidated {
			validated = append(validated, d)
			methodTotals[d.Method]++
			if d.DisagreementFlag {
				methodDisagreements[d.Method]++
			}
		}
	}

	stats.ValidatedCount = len(validated)
	stats.ValidationRate = float64(stats.ValidatedCount) / float64(stats.TotalDecisions)

	if stats.ValidatedCount > 0 {
		top1, disagreements, unknown, ingested := 0, 0, 0, 0
		for _, d := range validated {
			if d.MatchedAnalyteID != "" {
				top1++
			} else {
				unknown++
			}
			if d.DisagreementFlag {
				disagreements++
			}
			if d.Ingested {
				ingested++
			}
		}
		n := float64(stats.ValidatedCount)
		stats.AcceptanceRateTop1 = float64(top1) / n
		stats.OverrideFrequency = float64(disagreements) / n
		stats.UnknownRate = float64(unknown) / n
		stats.IngestedCount = ingested
		stats.IngestionRate = float64(ingested) / n

		for method, total := range methodTotals {
			stats.DisagreementByMethod[method] = float64(methodDisagreements[method]) / float64(total)
		}
	}

	return stats
}

func confidenceBins() map[string]int {
	return map[string]int{
		"0.0-0.5": 0, "0.5-0.7": 0, "0.7-0.8": 0,
		"0.8-0.9": 0, "0.9-0.95": 0, "0.95-1.0": 0,
	}
}

func bumpConfidenceBin(bins map[string]int, score float64) {
	switch {
	case score < 0.5:
		bins["0.0-0.5"]++
	case score < 0.7:
		bins["0.5-0.7"]++
	case score < 0.8:
		bins["0.7-0.8"]++
	case score < 0.9:
		bins["0.8-0.9"]++
	case score < 0.95:
		bins["0.9-0.95"]++
	default:
		bins["0.95-1.0"]++
	}
}

// Thresholds is a calibrated set of gate cutoffs.
type Thresholds struct {
	AutoAccept      float64
	Review          float64
	Unknown         float64
	DisagreementCap float64
}

// DefaultThresholds is the fallback when there are no validated
// decisions to calibrate against.
func DefaultThresholds() Thresholds {
	return Thresholds{AutoAccept: 0.93, Review: 0.75, Unknown: 0.75, DisagreementCap: 0.84}
}

// CalculateOptimalThresholds recalibrates auto_accept/review/
// disagreement_cap from validated decisions, scanning confidence-sorted
// decisions for the cutoff that first meets targetPrecision
// (auto-accept) and the F1-maximizing cutoff that meets a looser 0.90
// precision floor and targetRecall (review).
func CalculateOptimalThresholds(decisions []model.MatchDecision, targetPrecision, targetRecall float64) Thresholds {
	var validated []model.MatchDecision
	for _, d := range decisions {
		if d.HumanValidated {
			validated = append(validated, d)
		}
	}
	if len(validated) == 0 {
		return DefaultThresholds()
	}

	sorted := make([]model.MatchDecision, len(validated))
	copy(sorted, validated)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ConfidenceScore > sorted[j].ConfidenceScore })

	autoAccept := findPrecisionThreshold(sorted, targetPrecision)
	review := findBalancedThreshold(sorted, 0.90, targetRecall)

	return Thresholds{
		AutoAccept:      autoAccept,
		Review:          review,
		Unknown:         review,
		DisagreementCap: autoAccept - 0.05,
	}
}

func findPrecisionThreshold(sorted []model.MatchDecision, targetPrecision float64) float64 {
	if len(sorted) == 0 {
		return 0.93
	}
	correct := 0
	for i, d := range sorted {
		if !d.DisagreementFlag && d.MatchedAnalyteID != "" {
			correct++
		}
		total := i + 1
		precision := float64(correct) / float64(total)
		if precision >= targetPrecision && total >= 10 {
			return sorted[i].ConfidenceScore
		}
	}
	return 0.95
}

func findBalancedThreshold(sorted []model.MatchDecision, targetPrecision, targetRecall float64) float64 {
	if len(sorted) == 0 {
		return 0.75
	}
	totalPositives := 0
	for _, d := range sorted {
		if d.MatchedAnalyteID != "" && !d.DisagreementFlag {
			totalPositives++
		}
	}
	if totalPositives == 0 {
		return 0.75
	}

	bestThreshold, bestF1 := 0.75, 0.0
	truePositives := 0
	for i, d := range sorted {
		if !d.DisagreementFlag && d.MatchedAnalyteID != "" {
			truePositives++
		}
		totalPredicted := i + 1
		precision := float64(truePositives) / float64(totalPredicted)
		recall := float64(truePositives) / float64(totalPositives)
		if precision+recall == 0 {
			continue
		}
		f1 := 2 * (precision * recall) / (precision + recall)
		if precision >= targetPrecision && recall >= targetRecall && f1 > bestF1 {
			bestF1 = f1
			bestThreshold = d.ConfidenceScore
		}
	}
	return bestThreshold
}
