package learning

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
	"github.com/sudo-kno3/analyte-resolver/internal/normalize"
	"github.com/sudo-kno3/analyte-resolver/internal/semantic"
	"github.com/sudo-kno3/analyte-resolver/internal/vendorcache"
)

// VariantStore is the write surface the loop needs to durably mirror
// vendor-cache transitions (internal/store implements it).
type VariantStore interface {
	UpsertLabVariant(v model.LabVariant) (int64, error)
	InsertConfirmation(conf model.LabVariantConfirmation) error
	InvalidateConfirmations(variantID int64, supersededAnalyteID string) error
}

// EmbeddingStore persists the relational half of the semantic index's
// metadata, for read-time joins.
type EmbeddingStore interface {
	InsertEmbeddingMetadata(m model.EmbeddingsMetadata) error
}

// ValidationEvent is one human validation of a raw lab token.
type ValidationEvent struct {
	RawText          string
	AnalyteID        string
	LabVendor        string // empty when the submission carried no vendor
	SubmissionID     string // generated if empty; distinct per submission
	CascadeConfirmed bool
	CascadeMargin    float64
}

// Loop applies validated decisions to every learning-state structure in
// a fixed order: vendor cache update (always), dual-gated global synonym
// promotion, incremental semantic add with periodic persistence. Events
// are serialized; the resolver keeps reading the same structures
// concurrently.
type Loop struct {
	mu sync.Mutex

	ingestor   *Ingestor
	cache      *vendorcache.Cache
	variants   VariantStore
	embeddings EmbeddingStore

	index     *semantic.Index
	embedder  semantic.Embedder
	disk      *semantic.DiskCache
	corpusFP  semantic.FileFingerprint
	modelName string
	modelHash string

	flushEvery int
	sinceFlush int

	logger *zap.SugaredLogger
}

// LoopOptions configures the optional halves of a Loop. Cache, variant
// persistence, and the semantic index may each be absent; the loop
// degrades to the stages it has.
type LoopOptions struct {
	Cache      *vendorcache.Cache
	Variants   VariantStore
	Embeddings EmbeddingStore
	Index      *semantic.Index
	Embedder   semantic.Embedder
	Disk       *semantic.DiskCache
	CorpusFP   semantic.FileFingerprint
	ModelName  string
	ModelHash  string
	FlushEvery int // persist the semantic index after this many additions
}

// NewLoop constructs a learning loop around an Ingestor.
func NewLoop(ingestor *Ingestor, opts LoopOptions, logger *zap.SugaredLogger) *Loop {
	return &Loop{
		ingestor:   ingestor,
		cache:      opts.Cache,
		variants:   opts.Variants,
		embeddings: opts.Embeddings,
		index:      opts.Index,
		embedder:   opts.Embedder,
		disk:       opts.Disk,
		corpusFP:   opts.CorpusFP,
		modelName:  opts.ModelName,
		modelHash:  opts.ModelHash,
		flushEvery: opts.FlushEvery,
		logger:     logger,
	}
}

// IngestValidated applies one validation event and reports whether a new
// global synonym was created. Vendor cache and confirmation writes happen
// regardless of the promotion outcome; a returned error means a storage
// write failed, never that a gate blocked the event.
func (l *Loop) IngestValidated(ev ValidationEvent, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	normalized := normalize.Normalize(ev.RawText)
	if normalized == "" {
		if l.logger != nil {
			l.logger.Infow("validation event rejected, empty after normalization", "raw", ev.RawText)
		}
		return false, nil
	}

	if ev.LabVendor != "" && l.cache != nil {
		if err := l.applyVendorUpdate(ev, normalized, now); err != nil {
			return false, err
		}
	}

	added, err := l.ingestor.IngestValidated(ev.RawText, ev.AnalyteID, ev.CascadeConfirmed, ev.CascadeMargin, ev.LabVendor)
	if err != nil || !added {
		return false, err
	}

	if err := l.addEmbedding(ev.AnalyteID, normalized, now); err != nil {
		return true, err
	}
	return true, nil
}

// IngestBatch applies events one at a time, each its own logical
// transaction: an error on one event is recorded and the rest proceed,
// so an abort leaves the store in the state produced by the decisions
// already committed.
func (l *Loop) IngestBatch(events []ValidationEvent, now time.Time) BulkStats {
	var stats BulkStats
	for _, ev := range events {
		added, err := l.IngestValidated(ev, now)
		switch {
		case err != nil:
			stats.Errors++
			if l.logger != nil {
				l.logger.Errorw("validation event failed", "raw", ev.RawText, "error", err)
			}
		case added:
			stats.Added++
		default:
			stats.Duplicates++
		}
	}
	return stats
}

func (l *Loop) applyVendorUpdate(ev ValidationEvent, normalized string, now time.Time) error {
	sub := ev.SubmissionID
	if sub == "" {
		sub = uuid.NewString()
	}

	res := l.cache.Validate(ev.LabVendor, normalized, sub, ev.AnalyteID, now)
	if l.variants == nil {
		return nil
	}

	id, err := l.variants.UpsertLabVariant(res.Variant)
	if err != nil {
		return fmt.Errorf("persist lab variant: %w", err)
	}
	if res.Duplicate {
		return nil
	}
	if res.Collision {
		if err := l.variants.InvalidateConfirmations(id, res.SupersededAnalyteID); err != nil {
			return fmt.Errorf("invalidate superseded confirmations: %w", err)
		}
		if l.logger != nil {
			l.logger.Warnw("vendor cache collision",
				"vendor", ev.LabVendor, "normalized", normalized,
				"superseded", res.SupersededAnalyteID, "confirmed", ev.AnalyteID,
				"state", string(res.State))
		}
	}
	conf := res.Confirmation
	conf.ID = 0 // let the store assign its own sequence value
	conf.VariantID = id
	if err := l.variants.InsertConfirmation(conf); err != nil {
		return fmt.Errorf("persist confirmation: %w", err)
	}
	return nil
}

// addEmbedding appends the newly promoted synonym's vector to the
// semantic index and writes its metadata row, persisting the index to
// disk every flushEvery additions. A missing index or embedder skips
// the stage; the promotion already happened.
func (l *Loop) addEmbedding(analyteID, normalized string, now time.Time) error {
	if l.index == nil || l.embedder == nil {
		return nil
	}

	vec, err := l.embedder.Embed(normalized)
	if err != nil {
		return fmt.Errorf("embed %q: %w", normalized, err)
	}
	semantic.L2Normalize(vec)

	meta := model.EmbeddingsMetadata{
		AnalyteID:   analyteID,
		TextContent: normalized,
		ModelName:   l.modelName,
		ModelHash:   l.modelHash,
		CreatedAt:   now,
	}
	if err := l.index.Add(vec, meta); err != nil {
		return fmt.Errorf("append vector: %w", err)
	}
	if l.embeddings != nil {
		meta.Position = l.index.Len() - 1
		if err := l.embeddings.InsertEmbeddingMetadata(meta); err != nil {
			return fmt.Errorf("persist embedding metadata: %w", err)
		}
	}

	l.sinceFlush++
	if l.disk != nil && l.flushEvery > 0 && l.sinceFlush >= l.flushEvery {
		if err := l.disk.Write(l.index, l.corpusFP, l.modelHash); err != nil {
			return fmt.Errorf("persist semantic index: %w", err)
		}
		l.sinceFlush = 0
	}
	return nil
}

// Flush forces the semantic index to disk regardless of the additions
// counter, for shutdown paths.
func (l *Loop) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disk == nil || l.index == nil {
		return nil
	}
	l.sinceFlush = 0
	return l.disk.Write(l.index, l.corpusFP, l.modelHash)
}
