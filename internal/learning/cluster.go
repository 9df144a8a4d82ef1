package learning

import (
	"sort"

	"github.com/sudo-kno3/analyte-resolver/internal/fuzzy"
	"github.com/sudo-kno3/analyte-resolver/internal/model"
	"github.com/sudo-kno3/analyte-resolver/internal/normalize"
)

// SimilarVariant is one member of a cluster alongside its similarity to
// the cluster's anchor.
type SimilarVariant struct {
	Raw   string
	Score float64
}

// Cluster groups unknown inputs whose normalized forms are each similar
// to the cluster's anchor.
type Cluster struct {
	Anchor            string
	AnchorNormalized  string
	SimilarVariants   []SimilarVariant
	Size              int
	AvgSimilarity     float64
	SuggestedAnalytes []Suggestion
}

// Suggestion is a candidate analyte for a cluster's anchor term,
// produced by enriching a cluster against the corpus.
type Suggestion struct {
	AnalyteID     string
	PreferredName string
	Similarity    float64
}

// ClusterUnknownTerms groups raw unknown input strings by pairwise
// Levenshtein-ratio similarity using simple agglomerative clustering:
// each unassigned term seeds a new cluster and
// absorbs every later unassigned term whose similarity to it meets
// threshold. Clusters are returned largest-first.
func ClusterUnknownTerms(unknownTerms []string, threshold float64) []Cluster {
	if len(unknownTerms) == 0 {
		return nil
	}

	type normalizedTerm struct {
		raw  string
		norm string
	}
	terms := make([]normalizedTerm, len(unknownTerms))
	for i, t := range unknownTerms {
		terms[i] = normalizedTerm{raw: t, norm: normalize.Normalize(t)}
	}

	n := len(terms)
	assigned := make([]bool, n)
	var clusters []Cluster

	for i := 0; i < n; i++ {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		indices := []int{i}

		for j := i + 1; j < n; j++ {
			if assigned[j] {
				continue
			}
			if fuzzy.Ratio(terms[i].norm, terms[j].norm) >= threshold {
				indices = append(indices, j)
				assigned[j] = true
			}
		}

		var similar []SimilarVariant
		var sumSim float64
		for _, idx := range indices[1:] {
			score := fuzzy.Ratio(terms[i].norm, terms[idx].norm)
			similar = append(similar, SimilarVariant{Raw: terms[idx].raw, Score: score})
			sumSim += score
		}
		sort.SliceStable(similar, func(a, b int) bool { return similar[a].Score > similar[b].Score })

		avgSim := 1.0
		if len(similar) > 0 {
			avgSim = sumSim / float64(len(similar))
		}

		clusters = append(clusters, Cluster{
			Anchor:           terms[i].raw,
			AnchorNormalized: terms[i].norm,
			SimilarVariants:  similar,
			Size:             len(indices),
			AvgSimilarity:    avgSim,
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].Size > clusters[j].Size })
	return clusters
}

// FindClosestAnalytes returns the topK analytes whose preferred name is
// most similar to term, used to enrich a cluster's anchor with
// suggested matches against the live corpus.
func FindClosestAnalytes(term string, analytes []model.Analyte, topK int) []Suggestion {
	if len(analytes) == 0 {
		return nil
	}
	normTerm := normalize.Normalize(term)

	out := make([]Suggestion, 0, len(analytes))
	for _, a := range analytes {
		score := fuzzy.Ratio(normTerm, normalize.Normalize(a.PreferredName))
		out = append(out, Suggestion{AnalyteID: a.ID, PreferredName: a.PreferredName, Similarity: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// EnrichClusters fills in SuggestedAnalytes for each cluster by matching
// its anchor against the corpus.
func EnrichClusters(clusters []Cluster, analytes []model.Analyte, topK int) []Cluster {
	for i := range clusters {
		clusters[i].SuggestedAnalytes = FindClosestAnalytes(clusters[i].Anchor, analytes, topK)
	}
	return clusters
}

// ClusterStatistics summarizes a clustering run.
type ClusterStatistics struct {
	TotalClusters     int
	TotalTerms        int
	AvgClusterSize    float64
	MaxClusterSize    int
	MinClusterSize    int
	SingletonClusters int
	AvgSimilarity     float64
}

// ClusteringStatistics computes summary statistics over a set of clusters.
func ClusteringStatistics(clusters []Cluster) ClusterStatistics {
	if len(clusters) == 0 {
		return ClusterStatistics{}
	}

	stats := ClusterStatistics{
		TotalClusters:  len(clusters),
		MinClusterSize: clusters[0].Size,
	}
	var sizeSum, simSum float64
	for _, c := range clusters {
		stats.TotalTerms += c.Size
		sizeSum += float64(c.Size)
		simSum += c.AvgSimilarity
		if c.Size > stats.MaxClusterSize {
			stats.MaxClusterSize = c.Size
		}
		if c.Size < stats.MinClusterSize {
			stats.MinClusterSize = c.Size
		}
		if c.Size == 1 {
			stats.SingletonClusters++
		}
	}
	stats.AvgClusterSize = sizeSum / float64(len(clusters))
	stats.AvgSimilarity = simSum / float64(len(clusters))
	return stats
}
