package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
)

func testIndex() *Index {
	return NewIndex([]Entry{
		{AnalyteID: "REG153_001", PreferredName: "Benzene", Normalized: "benzene"},
		{AnalyteID: "REG153_001", PreferredName: "Benzene", Normalized: "benzol"},
		{AnalyteID: "REG153_002", PreferredName: "Toluene", Normalized: "toluene", LabVendor: "LabA"},
		{AnalyteID: "REG153_002", PreferredName: "Toluene", Normalized: "methylbenzene"},
	})
}

func TestRatioIdentical(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("benzene", "benzene"))
}

func TestRatioTypo(t *testing.T) {
	r := Ratio("benzen", "benzene")
	assert.Greater(t, r, 0.8)
	assert.Less(t, r, 1.0)
}

func TestMatchReturnsBestPerAnalyte(t *testing.T) {
	ix := testIndex()
	out := ix.Match("benzen", "", 5, 0.5, 0.02)
	require.NotEmpty(t, out)
	assert.Equal(t, "REG153_001", out[0].AnalyteID)
}

func TestMatchVendorTiebreakBoost(t *testing.T) {
	ix := testIndex()
	// A near match, so the boosted score is not clamped at 1.0.
	withoutVendor := ix.Match("toluen", "", 5, 0.5, 0.02)
	withVendor := ix.Match("toluen", "LabA", 5, 0.5, 0.02)

	require.NotEmpty(t, withoutVendor)
	require.NotEmpty(t, withVendor)
	assert.Greater(t, withVendor[0].Score, withoutVendor[0].Score)
}

func TestMatchThresholdFiltersLowScores(t *testing.T) {
	ix := testIndex()
	out := ix.Match("xyzxyzxyz", "", 5, 0.9, 0.02)
	assert.Empty(t, out)
}

func TestMatchTopKTruncates(t *testing.T) {
	ix := testIndex()
	out := ix.Match("benzene", "", 1, 0.0, 0.02)
	assert.Len(t, out, 1)
}

func TestDisagreementDetectsNarrowGapDifferentAnalytes(t *testing.T) {
	candidates := []model.Candidate{
		{AnalyteID: "REG153_001", Score: 0.90},
		{AnalyteID: "REG153_002", Score: 0.88},
	}
	assert.True(t, Disagreement(candidates, 0.05))
}

func TestDisagreementWideGapIsNotDisagreement(t *testing.T) {
	candidates := []model.Candidate{
		{AnalyteID: "REG153_001", Score: 0.95},
		{AnalyteID: "REG153_002", Score: 0.60},
	}
	assert.False(t, Disagreement(candidates, 0.05))
}

func TestDisagreementSameAnalyteIsNotDisagreement(t *testing.T) {
	candidates := []model.Candidate{
		{AnalyteID: "REG153_001", Score: 0.90},
		{AnalyteID: "REG153_001", Score: 0.89},
	}
	assert.False(t, Disagreement(candidates, 0.05))
}
