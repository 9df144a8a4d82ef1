package learning

import (
	"math"
	"time"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
)

// Overall is the point-in-time snapshot half of MaturityMetrics,
// computed over the last 30 days of decisions.
type Overall struct {
	ExactMatchRate        float64
	FuzzyMatchRate        float64
	SemanticReliance      float64
	UnknownRate           float64
	AvgSynonymsPerAnalyte float64
	TotalAnalytes         int
	TotalSynonyms         int
}

// Trends is the weekly time-series half, oldest week first.
type Trends struct {
	ExactMatchRateTrend []float64
	UnknownRateTrend    []float64
	NewSynonymsPerWeek  []int
}

// Growth tracks synonym corpus velocity.
type Growth struct {
	SynonymsAdded7d  int
	SynonymsAdded30d int
	SynonymsAdded90d int
	GrowthRateWeekly int
}

// MaturityMetrics is the full corpus/model health snapshot backing the
// retrain recommendation.
type MaturityMetrics struct {
	Overall   Overall
	Trends    Trends
	Growth    Growth
	Timestamp time.Time
}

// CalculateCorpusMaturity computes MaturityMetrics from a window of
// decisions, the synonym table's per-row creation timestamps, and the
// current analyte/synonym totals. historyDays bounds the weekly trend
// series to min(historyDays/7, 12) buckets.
func CalculateCorpusMaturity(decisions []model.MatchDecision, synonymCreatedAt []time.Time, totalAnalytes, totalSynonyms int, now time.Time, historyDays int) MaturityMetrics {
	overall := Overall{TotalAnalytes: totalAnalytes, TotalSynonyms: totalSynonyms}
	if totalAnalytes > 0 {
		overall.AvgSynonymsPerAnalyte = float64(totalSynonyms) / float64(totalAnalytes)
	}

	cutoff30d := now.AddDate(0, 0, -30)
	var recent []model.MatchDecision
	for _, d := range decisions {
		if !d.DecisionTimestamp.Before(cutoff30d) {
			recent = append(recent, d)
		}
	}
	if len(recent) > 0 {
		exact, fz, sem, unknown := 0, 0, 0, 0
		for _, d := range recent {
			if d.SignalsUsed["exact"] || d.SignalsUsed["cas"] {
				exact++
			} else if d.SignalsUsed["fuzzy"] {
				fz++
			}
			if d.SignalsUsed["semantic"] {
				sem++
			}
			if d.MatchedAnalyteID == "" {
				unknown++
			}
		}
		total := float64(len(recent))
		overall.ExactMatchRate = float64(exact) / total
		overall.FuzzyMatchRate = float64(fz) / total
		overall.SemanticReliance = float64(sem) / total
		overall.UnknownRate = float64(unknown) / total
	}

	weeks := historyDays / 7
	if weeks > 12 {
		weeks = 12
	}
	trends := Trends{}
	for week := 0; week < weeks; week++ {
		weekStart := now.AddDate(0, 0, -(week+1)*7)
		weekEnd := now.AddDate(0, 0, -week*7)

		var weekDecisions []model.MatchDecision
		for _, d := range decisions {
			if !d.DecisionTimestamp.Before(weekStart) && d.DecisionTimestamp.Before(weekEnd) {
				weekDecisions = append(weekDecisions, d)
			}
		}
		if len(weekDecisions) > 0 {
			exact, unknown := 0, 0
			for _, d := range weekDecisions {
				if d.SignalsUsed["exact"] || d.SignalsUsed["cas"] {
					exact++
				}
				if d.MatchedAnalyteID == "" {
					unknown++
				}
			}
			total := float64(len(weekDecisions))
			trends.ExactMatchRateTrend = append(trends.ExactMatchRateTrend, float64(exact)/total)
			trends.UnknownRateTrend = append(trends.UnknownRateTrend, float64(unknown)/total)
		} else {
			trends.ExactMatchRateTrend = append(trends.ExactMatchRateTrend, 0.0)
			trends.UnknownRateTrend = append(trends.UnknownRateTrend, 0.0)
		}

		newSyns := 0
		for _, ts := range synonymCreatedAt {
			if !ts.Before(weekStart) && ts.Before(weekEnd) {
				newSyns++
			}
		}
		trends.NewSynonymsPerWeek = append(trends.NewSynonymsPerWeek, newSyns)
	}
	reverseFloat(trends.ExactMatchRateTrend)
	reverseFloat(trends.UnknownRateTrend)
	reverseInt(trends.NewSynonymsPerWeek)

	growth := Growth{}
	cutoff7d := now.AddDate(0, 0, -7)
	cutoff90d := now.AddDate(0, 0, -90)
	for _, ts := range synonymCreatedAt {
		if !ts.Before(cutoff7d) {
			growth.SynonymsAdded7d++
		}
		if !ts.Before(cutoff30d) {
			growth.SynonymsAdded30d++
		}
		if !ts.Before(cutoff90d) {
			growth.SynonymsAdded90d++
		}
	}
	growth.GrowthRateWeekly = growth.SynonymsAdded7d

	return MaturityMetrics{Overall: overall, Trends: trends, Growth: growth, Timestamp: now}
}

func reverseFloat(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseInt(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// DetectPlateau reports whether the last window points of history have
// a near-zero linear-regression slope.
func DetectPlateau(history []float64, window int, threshold float64) bool {
	if len(history) < window {
		return false
	}
	recent := history[len(history)-window:]

	n := float64(len(recent))
	var sumX, sumY float64
	for i, y := range recent {
		sumX += float64(i)
		sumY += y
	}
	meanX, meanY := sumX/n, sumY/n

	var varX, covXY float64
	for i, y := range recent {
		dx := float64(i) - meanX
		varX += dx * dx
		covXY += dx * (y - meanY)
	}
	if varX == 0 {
		return true
	}
	slope := covXY / varX
	return math.Abs(slope) < threshold
}

// RetrainTriggers configures ShouldRetrainModel's thresholds.
type RetrainTriggers struct {
	ValidatedSinceLastTrain     int
	UnknownRatePlateauThreshold float64
	SemanticRelianceMax         float64
	MinTriggersRequired         int
}

// DefaultRetrainTriggers is the shipped trigger set.
func DefaultRetrainTriggers() RetrainTriggers {
	return RetrainTriggers{
		ValidatedSinceLastTrain:     2000,
		UnknownRatePlateauThreshold: 0.02,
		SemanticRelianceMax:         0.30,
		MinTriggersRequired:         2,
	}
}

// RetrainRecommendation is ShouldRetrainModel's verdict.
type RetrainRecommendation struct {
	ShouldRetrain     bool
	ActiveTriggers    []string
	NumActiveTriggers int
	MinRequired       int
}

// ShouldRetrainModel evaluates three retraining triggers (validated data
// volume, unknown-rate plateau, semantic reliance) against a maturity
// snapshot and recommends retraining once at least MinTriggersRequired
// are active. No trigger for a significant corpus-group addition is
// evaluated.
func ShouldRetrainModel(stats MaturityMetrics, triggers RetrainTriggers) RetrainRecommendation {
	var active []string

	if stats.Growth.SynonymsAdded30d >= triggers.ValidatedSinceLastTrain {
		active = append(active, "validated_data_threshold")
	}

	if len(stats.Trends.UnknownRateTrend) > 0 && DetectPlateau(stats.Trends.UnknownRateTrend, 4, triggers.UnknownRatePlateauThreshold) {
		active = append(active, "unknown_rate_plateau")
	}

	if stats.Overall.SemanticReliance > triggers.SemanticRelianceMax {
		active = append(active, "high_semantic_reliance")
	}

	return RetrainRecommendation{
		ShouldRetrain:     len(active) >= triggers.MinTriggersRequired,
		ActiveTriggers:    active,
		NumActiveTriggers: len(active),
		MinRequired:       triggers.MinTriggersRequired,
	}
}
