package semantic

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
)

func unitVec(vals ...float32) []float32 {
	v := append([]float32(nil), vals...)
	L2Normalize(v)
	return v
}

func TestAddAssignsSequentialPositions(t *testing.T) {
	ix := New(3)
	require.NoError(t, ix.Add(unitVec(1, 0, 0), model.EmbeddingsMetadata{AnalyteID: "A1"}))
	require.NoError(t, ix.Add(unitVec(0, 1, 0), model.EmbeddingsMetadata{AnalyteID: "A2"}))

	m0, ok := ix.Metadata(0)
	require.True(t, ok)
	assert.Equal(t, 0, m0.Position)
	m1, ok := ix.Metadata(1)
	require.True(t, ok)
	assert.Equal(t, 1, m1.Position)
	assert.Equal(t, 2, ix.Len())
}

func TestAddRejectsWrongDimension(t *testing.T) {
	ix := New(3)
	err := ix.Add([]float32{1, 0}, model.EmbeddingsMetadata{})
	assert.Error(t, err)
}

func TestSearchFindsClosestVector(t *testing.T) {
	ix := New(3)
	require.NoError(t, ix.Add(unitVec(1, 0, 0), model.EmbeddingsMetadata{AnalyteID: "benzene"}))
	require.NoError(t, ix.Add(unitVec(0, 1, 0), model.EmbeddingsMetadata{AnalyteID: "toluene"}))

	out := ix.Search(unitVec(0.95, 0.05, 0), 5, 0.0)
	require.NotEmpty(t, out)
	assert.Equal(t, "benzene", out[0].AnalyteID)
}

func TestSearchFiltersByThreshold(t *testing.T) {
	ix := New(3)
	require.NoError(t, ix.Add(unitVec(1, 0, 0), model.EmbeddingsMetadata{AnalyteID: "benzene"}))

	out := ix.Search(unitVec(0, 0, 1), 5, 0.5)
	assert.Empty(t, out)
}

func TestScoreNeverExceedsOne(t *testing.T) {
	ix := New(3)
	require.NoError(t, ix.Add(unitVec(1, 0, 0), model.EmbeddingsMetadata{AnalyteID: "benzene"}))

	out := ix.Search(unitVec(1, 0, 0), 5, 0.0)
	require.Len(t, out, 1)
	assert.LessOrEqual(t, out[0].Score, 1.0)
	assert.InDelta(t, 1.0, out[0].Score, 1e-6)
}

func TestVectorFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ix := New(3)
	require.NoError(t, ix.Add(unitVec(1, 2, 3), model.EmbeddingsMetadata{AnalyteID: "A1", Position: 0}))
	require.NoError(t, ix.Add(unitVec(4, 5, 6), model.EmbeddingsMetadata{AnalyteID: "A2", Position: 1}))

	vecPath := filepath.Join(dir, "vectors.bin")
	sidePath := filepath.Join(dir, "vectors.json")
	require.NoError(t, ix.WriteVectors(vecPath))
	require.NoError(t, ix.WriteSideFile(sidePath))

	loaded, err := ReadVectors(vecPath)
	require.NoError(t, err)
	require.NoError(t, loaded.ReadSideFile(sidePath))

	assert.Equal(t, ix.Len(), loaded.Len())
	m, ok := loaded.Metadata(0)
	require.True(t, ok)
	assert.Equal(t, "A1", m.AnalyteID)
}

func TestDiskCacheValidityTracksFingerprint(t *testing.T) {
	dir := t.TempDir()
	dc := NewDiskCache(dir)

	now := time.Now()
	fp := FileFingerprint{Size: 100, ModTime: now}

	assert.False(t, dc.Valid(fp, "model-v1"))

	ix := New(2)
	require.NoError(t, ix.Add(unitVec(1, 0), model.EmbeddingsMetadata{AnalyteID: "A1"}))
	require.NoError(t, dc.Write(ix, fp, "model-v1"))

	assert.True(t, dc.Valid(fp, "model-v1"))
	assert.False(t, dc.Valid(fp, "model-v2"))

	changed := fp
	changed.Size = 999
	assert.False(t, dc.Valid(changed, "model-v1"))
}

func TestDiskCacheLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dc := NewDiskCache(dir)
	fp := FileFingerprint{Size: 1, ModTime: time.Now()}

	ix := New(2)
	require.NoError(t, ix.Add(unitVec(1, 0), model.EmbeddingsMetadata{AnalyteID: "A1"}))
	require.NoError(t, dc.Write(ix, fp, "model-v1"))

	loaded, err := dc.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}

func TestDiskCacheClear(t *testing.T) {
	dir := t.TempDir()
	dc := NewDiskCache(dir)
	fp := FileFingerprint{Size: 1, ModTime: time.Now()}

	ix := New(2)
	require.NoError(t, ix.Add(unitVec(1, 0), model.EmbeddingsMetadata{AnalyteID: "A1"}))
	require.NoError(t, dc.Write(ix, fp, "model-v1"))
	require.True(t, dc.Valid(fp, "model-v1"))

	dc.Clear()
	assert.False(t, dc.Valid(fp, "model-v1"))
}
