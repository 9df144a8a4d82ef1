package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
)

func TestClusterUnknownTermsGroupsSimilarTerms(t *testing.T) {
	clusters := ClusterUnknownTerms([]string{"benzine", "benzinex", "totally different compound"}, 0.80)
	require.NotEmpty(t, clusters)
	assert.Equal(t, 2, clusters[0].Size)
	assert.Equal(t, "benzine", clusters[0].Anchor)
}

func TestClusterUnknownTermsEmptyInput(t *testing.T) {
	assert.Empty(t, ClusterUnknownTerms(nil, 0.85))
}

func TestClusterUnknownTermsSingletons(t *testing.T) {
	clusters := ClusterUnknownTerms([]string{"aaaaaa", "zzzzzz"}, 0.95)
	require.Len(t, clusters, 2)
	assert.Equal(t, 1, clusters[0].Size)
	assert.Equal(t, 1.0, clusters[0].AvgSimilarity)
}

func TestFindClosestAnalytesRanksBySimilarity(t *testing.T) {
	analytes := []model.Analyte{
		{ID: "REG153_001", PreferredName: "Benzene"},
		{ID: "REG153_002", PreferredName: "Toluene"},
	}
	out := FindClosestAnalytes("benzien", analytes, 1)
	require.Len(t, out, 1)
	assert.Equal(t, "REG153_001", out[0].AnalyteID)
}

func TestClusteringStatistics(t *testing.T) {
	clusters := ClusterUnknownTerms([]string{"benzine", "benzinex", "toluol"}, 0.80)
	stats := ClusteringStatistics(clusters)
	assert.Equal(t, 3, stats.TotalTerms)
	assert.Greater(t, stats.TotalClusters, 0)
}
