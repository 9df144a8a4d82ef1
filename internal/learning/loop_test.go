package learning

import (
	"hash/fnv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
	"github.com/sudo-kno3/analyte-resolver/internal/semantic"
	"github.com/sudo-kno3/analyte-resolver/internal/vendorcache"
)

type fakeVariantStore struct {
	upserts       []model.LabVariant
	confirmations []model.LabVariantConfirmation
	invalidated   []string
}

func (f *fakeVariantStore) UpsertLabVariant(v model.LabVariant) (int64, error) {
	f.upserts = append(f.upserts, v)
	if v.ID != 0 {
		return v.ID, nil
	}
	return int64(len(f.upserts)), nil
}

func (f *fakeVariantStore) InsertConfirmation(conf model.LabVariantConfirmation) error {
	f.confirmations = append(f.confirmations, conf)
	return nil
}

func (f *fakeVariantStore) InvalidateConfirmations(variantID int64, supersededAnalyteID string) error {
	f.invalidated = append(f.invalidated, supersededAnalyteID)
	return nil
}

type fakeEmbeddingStore struct {
	rows []model.EmbeddingsMetadata
}

func (f *fakeEmbeddingStore) InsertEmbeddingMetadata(m model.EmbeddingsMetadata) error {
	f.rows = append(f.rows, m)
	return nil
}

// hashEmbedder is a deterministic stand-in for a real embedding model.
type hashEmbedder struct{ dim int }

func (e hashEmbedder) Dim() int { return e.dim }

func (e hashEmbedder) Embed(text string) ([]float32, error) {
	v := make([]float32, e.dim)
	h := fnv.New32a()
	for i := range v {
		h.Write([]byte(text))
		v[i] = float32(h.Sum32()%1000) / 1000.0
	}
	semantic.L2Normalize(v)
	return v, nil
}

func testCacheParams() vendorcache.Params {
	return vendorcache.Params{
		VendorBoost:          0.02,
		DecayWindowDays:      90,
		DecayLambda:          0.5,
		DecayFloor:           0.60,
		MinConfirmations:     3,
		MaxCollisionCount:    2,
		UnstableCooldownDays: 7,
	}
}

func newTestLoop(synonyms *fakeSynonymStore, variants *fakeVariantStore) (*Loop, *vendorcache.Cache, *semantic.Index, *fakeEmbeddingStore) {
	cache := vendorcache.New(testCacheParams())
	index := semantic.New(8)
	embeddings := &fakeEmbeddingStore{}
	loop := NewLoop(NewIngestor(synonyms, nil, 0.06, 20), LoopOptions{
		Cache:      cache,
		Variants:   variants,
		Embeddings: embeddings,
		Index:      index,
		Embedder:   hashEmbedder{dim: 8},
		ModelName:  "all-MiniLM-L6-v2",
		ModelHash:  "abc123",
	}, nil)
	return loop, cache, index, embeddings
}

func TestLoop_VendorWritesHappenRegardlessOfDualGate(t *testing.T) {
	synonyms := newFakeSynonymStore()
	variants := &fakeVariantStore{}
	loop, cache, index, _ := newTestLoop(synonyms, variants)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// cascade_confirmed=false: the dual gate blocks promotion no matter
	// how often the vendor reports the token.
	for i := range 5 {
		added, err := loop.IngestValidated(ValidationEvent{
			RawText:          "Benzene (X method)",
			AnalyteID:        "REG153_001",
			LabVendor:        "LabA",
			CascadeConfirmed: false,
		}, now.AddDate(0, 0, i))
		require.NoError(t, err)
		assert.False(t, added)
	}

	assert.Empty(t, synonyms.inserted, "vendor-only-confirmed mappings never reach the global graph")
	assert.Zero(t, index.Len())
	assert.Len(t, variants.upserts, 5, "every event upserts the variant")
	assert.Len(t, variants.confirmations, 5)

	// The vendor cache itself reached consensus: a later resolve may
	// fast-path even though the global graph stayed untouched.
	probe := cache.Probe("LabA", variants.upserts[0].NormalizedText, now.AddDate(0, 0, 4), 0.90)
	assert.True(t, probe.Hit)
}

func TestLoop_PromotionAppendsEmbedding(t *testing.T) {
	synonyms := newFakeSynonymStore()
	variants := &fakeVariantStore{}
	loop, _, index, embeddings := newTestLoop(synonyms, variants)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	added, err := loop.IngestValidated(ValidationEvent{
		RawText:          "Benzine",
		AnalyteID:        "REG153_001",
		LabVendor:        "LabA",
		SubmissionID:     "sub-0",
		CascadeConfirmed: true,
		CascadeMargin:    0.12,
	}, now)
	require.NoError(t, err)
	assert.True(t, added)

	require.Len(t, synonyms.inserted, 1)
	assert.Equal(t, "validated_runtime:LabA", synonyms.inserted[0].HarvestSource)

	// One vector, one metadata row, matching positions.
	require.Equal(t, 1, index.Len())
	require.Len(t, embeddings.rows, 1)
	assert.Equal(t, 0, embeddings.rows[0].Position)
	assert.Equal(t, "REG153_001", embeddings.rows[0].AnalyteID)
	assert.Equal(t, "abc123", embeddings.rows[0].ModelHash)
}

func TestLoop_DailyCapBlocksPromotionNotCacheWrites(t *testing.T) {
	synonyms := newFakeSynonymStore()
	synonyms.todaysCount = 20
	variants := &fakeVariantStore{}
	loop, _, index, _ := newTestLoop(synonyms, variants)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	added, err := loop.IngestValidated(ValidationEvent{
		RawText:          "Benzine",
		AnalyteID:        "REG153_001",
		LabVendor:        "LabA",
		CascadeConfirmed: true,
		CascadeMargin:    0.12,
	}, now)
	require.NoError(t, err)
	assert.False(t, added, "the cap rejects the promotion without erroring")
	assert.Empty(t, synonyms.inserted)
	assert.Zero(t, index.Len())
	assert.Len(t, variants.upserts, 1, "vendor cache writes proceed under the cap")
	assert.Len(t, variants.confirmations, 1)
}

func TestLoop_CollisionPersistsInvalidation(t *testing.T) {
	synonyms := newFakeSynonymStore()
	variants := &fakeVariantStore{}
	loop, cache, _, _ := newTestLoop(synonyms, variants)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, sub := range []string{"sub-0", "sub-1", "sub-2"} {
		_, err := loop.IngestValidated(ValidationEvent{
			RawText: "Benzene (X method)", AnalyteID: "REG153_001",
			LabVendor: "LabA", SubmissionID: sub, CascadeConfirmed: false,
		}, now.AddDate(0, 0, i))
		require.NoError(t, err)
	}

	_, err := loop.IngestValidated(ValidationEvent{
		RawText: "Benzene (X method)", AnalyteID: "REG153_002",
		LabVendor: "LabA", SubmissionID: "sub-3", CascadeConfirmed: false,
	}, now.AddDate(0, 0, 3))
	require.NoError(t, err)

	assert.Equal(t, []string{"REG153_001"}, variants.invalidated,
		"the superseded mapping's confirmations are durably invalidated")

	v, _, ok := cache.Get("LabA", variants.upserts[0].NormalizedText)
	require.True(t, ok)
	assert.Equal(t, 1, v.CollisionCount)
	assert.Equal(t, "REG153_002", v.ValidatedAnalyteID)
}

func TestLoop_DuplicateSubmissionSkipsConfirmationWrite(t *testing.T) {
	synonyms := newFakeSynonymStore()
	variants := &fakeVariantStore{}
	loop, _, _, _ := newTestLoop(synonyms, variants)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for range 2 {
		_, err := loop.IngestValidated(ValidationEvent{
			RawText: "Benzine", AnalyteID: "REG153_001",
			LabVendor: "LabA", SubmissionID: "sub-0", CascadeConfirmed: false,
		}, now)
		require.NoError(t, err)
	}

	assert.Len(t, variants.upserts, 2, "the observation itself still counts")
	assert.Len(t, variants.confirmations, 1, "a repeated submission adds no confirmation child")
}

func TestLoop_GeneratedSubmissionIDsAreDistinct(t *testing.T) {
	synonyms := newFakeSynonymStore()
	variants := &fakeVariantStore{}
	loop, cache, _, _ := newTestLoop(synonyms, variants)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for range 3 {
		_, err := loop.IngestValidated(ValidationEvent{
			RawText: "Benzine", AnalyteID: "REG153_001",
			LabVendor: "LabA", CascadeConfirmed: false,
		}, now)
		require.NoError(t, err)
	}

	assert.Len(t, variants.confirmations, 3)
	probe := cache.Probe("LabA", variants.upserts[0].NormalizedText, now, 0.90)
	assert.True(t, probe.Hit, "three generated submissions count as distinct confirmations")
}

func TestLoop_EmptyInputRejected(t *testing.T) {
	synonyms := newFakeSynonymStore()
	variants := &fakeVariantStore{}
	loop, _, _, _ := newTestLoop(synonyms, variants)

	added, err := loop.IngestValidated(ValidationEvent{
		RawText: "   ", AnalyteID: "REG153_001", LabVendor: "LabA", CascadeConfirmed: true, CascadeMargin: 0.5,
	}, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, added)
	assert.Empty(t, variants.upserts)
}

func TestLoop_BatchTolerance(t *testing.T) {
	synonyms := newFakeSynonymStore()
	loop, _, _, _ := newTestLoop(synonyms, &fakeVariantStore{})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	stats := loop.IngestBatch([]ValidationEvent{
		{RawText: "Benzine", AnalyteID: "REG153_001", CascadeConfirmed: true, CascadeMargin: 0.12},
		{RawText: "Benzine", AnalyteID: "REG153_001", CascadeConfirmed: true, CascadeMargin: 0.12},
		{RawText: "Xylol", AnalyteID: "REG153_003", CascadeConfirmed: false},
	}, now)

	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 2, stats.Duplicates)
	assert.Zero(t, stats.Errors)
}
