// Package fuzzy ranks stored synonyms against a normalized query string
// by Levenshtein-ratio similarity. It walks the full in-memory synonym
// index per query rather than maintaining a prefiltering structure; the
// corpus this system matches against is small enough that a brute-force
// scan is simpler and just as fast.
package fuzzy

import (
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
)

// Entry is one row of the synonym index the matcher scans.
type Entry struct {
	AnalyteID     string
	PreferredName string
	Normalized    string
	LabVendor     string // empty if not a vendor-tagged synonym
}

// Index is the in-memory table of synonym entries the matcher scans.
// Callers (internal/corpus) own its population; the matcher only reads.
type Index struct {
	entries []Entry
}

// NewIndex builds a fuzzy index from a slice of entries.
func NewIndex(entries []Entry) *Index {
	return &Index{entries: append([]Entry(nil), entries...)}
}

// Len reports how many entries the index holds.
func (ix *Index) Len() int { return len(ix.entries) }

// Ratio computes the Levenshtein-ratio similarity between two already
// normalized strings: 1 - (edit_distance / max(len(a), len(b))).
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

// Match searches the index for the topK synonyms most similar to query
// (already normalized), each scored by Ratio and filtered to >= threshold.
// If vendor is non-empty, any candidate whose LabVendor equals vendor
// has its score boosted by vendorBoost (capped at 1.0) before
// filtering/ranking.
// vendorBoost must stay strictly below the gate's margin_threshold so
// this tiebreak can never manufacture an auto-accept margin on its own.
func (ix *Index) Match(query, vendor string, topK int, threshold, vendorBoost float64) []model.Candidate {
	if query == "" || len(ix.entries) == 0 {
		return nil
	}

	best := make(map[string]model.Candidate, len(ix.entries))
	for _, e := range ix.entries {
		score := Ratio(query, e.Normalized)
		if vendor != "" && e.LabVendor == vendor {
			score += vendorBoost
			if score > 1.0 {
				score = 1.0
			}
		}
		if score < threshold {
			continue
		}
		if cur, ok := best[e.AnalyteID]; !ok || score > cur.Score {
			best[e.AnalyteID] = model.Candidate{
				AnalyteID:     e.AnalyteID,
				PreferredName: e.PreferredName,
				Score:         score,
				Method:        model.MethodFuzzy,
			}
		}
	}

	out := make([]model.Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// Disagreement reports fuzzy-internal disagreement: the top-1 and top-2
// candidates map to different analytes and their score gap is smaller
// than gap.
func Disagreement(candidates []model.Candidate, gap float64) bool {
	if len(candidates) < 2 {
		return false
	}
	if candidates[0].AnalyteID == candidates[1].AnalyteID {
		return false
	}
	return candidates[0].Score-candidates[1].Score < gap
}
