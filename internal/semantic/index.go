// Package semantic implements the dense-vector nearest-neighbor index.
// Vectors are L2-normalized float32 embeddings; similarity is raw inner
// product, clamped to [0,1], with no step-function binning. The index is
// append-only at runtime and persisted as a flat binary vector file plus
// a JSON side-file mapping index position to synonym/analyte attributes:
// a fast binary blob for the vectors, queryable metadata beside it.
package semantic

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
)

// Embedder turns normalized text into an L2-normalized vector. Production
// callers supply a real embedding model; tests use a deterministic stub.
type Embedder interface {
	Embed(text string) ([]float32, error)
	Dim() int
}

// Index is the append-only in-memory vector store. It is safe for
// concurrent reads; Add must be externally serialized (the learning loop
// holds a single writer lock).
type Index struct {
	dim      int
	vectors  [][]float32
	metadata []model.EmbeddingsMetadata
}

// New creates an empty index for vectors of the given dimension.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Dim returns the vector dimension the index was created with.
func (ix *Index) Dim() int { return ix.dim }

// Len returns the number of vectors currently in the index.
func (ix *Index) Len() int { return len(ix.vectors) }

// Add appends a vector and its metadata row. The vector must already be
// L2-normalized and of length Dim(). The new row's Position is set to its
// index in the array, so positions always form [0,N) with no gaps.
func (ix *Index) Add(vec []float32, meta model.EmbeddingsMetadata) error {
	if len(vec) != ix.dim {
		return fmt.Errorf("semantic: vector has dim %d, index expects %d", len(vec), ix.dim)
	}
	meta.Position = len(ix.vectors)
	ix.vectors = append(ix.vectors, vec)
	ix.metadata = append(ix.metadata, meta)
	return nil
}

// Search returns the topK nearest vectors to query (already L2-normalized)
// by inner product, filtered to score >= threshold.
func (ix *Index) Search(query []float32, topK int, threshold float64) []model.Candidate {
	if len(query) != ix.dim || len(ix.vectors) == 0 {
		return nil
	}

	type scored struct {
		score float64
		pos   int
	}
	scores := make([]scored, 0, len(ix.vectors))
	for i, v := range ix.vectors {
		s := clamp01(innerProduct(query, v))
		if s >= threshold {
			scores = append(scores, scored{score: s, pos: i})
		}
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	best := make(map[string]model.Candidate)
	for _, sc := range scores {
		meta := ix.metadata[sc.pos]
		cur, ok := best[meta.AnalyteID]
		if !ok || sc.score > cur.Score {
			best[meta.AnalyteID] = model.Candidate{
				AnalyteID: meta.AnalyteID,
				Score:     sc.score,
				Method:    model.MethodSemantic,
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

// Metadata returns the metadata row at a given position, for callers that
// need to join back to synonym/analyte attributes.
func (ix *Index) Metadata(pos int) (model.EmbeddingsMetadata, bool) {
	if pos < 0 || pos >= len(ix.metadata) {
		return model.EmbeddingsMetadata{}, false
	}
	return ix.metadata[pos], true
}

// AllMetadata returns every metadata row, for completeness checks
// (|metadata| == |vectors|, positions form [0,N) with no gaps).
func (ix *Index) AllMetadata() []model.EmbeddingsMetadata {
	return append([]model.EmbeddingsMetadata(nil), ix.metadata...)
}

// L2Normalize scales v in place to unit length. A zero vector is left
// unchanged (degenerate embeddings should never reach the index, but the
// function must still be total).
func L2Normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}

func innerProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// --- Binary vector file + JSON side-file persistence ---

const binaryMagic = "ASEMVEC1"

// WriteVectors writes the dense float32 vector array to a flat binary
// file: an 8-byte magic, a uint32 dim, a uint32 count, then count*dim
// little-endian float32 values.
func (ix *Index) WriteVectors(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vector file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(binaryMagic); err != nil {
		return fmt.Errorf("write vector file magic: %w", err)
	}
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], uint32(ix.dim))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(ix.vectors)))
	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("write vector file header: %w", err)
	}

	buf := make([]byte, 4)
	for _, vec := range ix.vectors {
		for _, x := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
			if _, err := f.Write(buf); err != nil {
				return fmt.Errorf("write vector: %w", err)
			}
		}
	}
	return nil
}

// ReadVectors loads a vector file written by WriteVectors into a new
// Index (metadata must be loaded separately via ReadSideFile).
func ReadVectors(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vector file: %w", err)
	}
	if len(data) < 16 || string(data[:8]) != binaryMagic {
		return nil, fmt.Errorf("read vector file: bad magic")
	}
	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	count := int(binary.LittleEndian.Uint32(data[12:16]))
	if len(data) < 16+count*dim*4 {
		return nil, fmt.Errorf("read vector file: truncated (%d bytes for %d x %d vectors)", len(data), count, dim)
	}

	ix := New(dim)
	offset := 16
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			bits := binary.LittleEndian.Uint32(data[offset : offset+4])
			vec[j] = math.Float32frombits(bits)
			offset += 4
		}
		ix.vectors = append(ix.vectors, vec)
	}
	return ix, nil
}

// WriteSideFile writes the JSON side-file mapping index position to
// synonym/analyte attributes.
func (ix *Index) WriteSideFile(path string) error {
	data, err := json.MarshalIndent(ix.metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal side-file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write side-file: %w", err)
	}
	return nil
}

// ReadSideFile loads the JSON side-file into ix's metadata slice; ix
// must already have its vectors loaded via ReadVectors so lengths can be
// cross-checked.
func (ix *Index) ReadSideFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read side-file: %w", err)
	}
	var meta []model.EmbeddingsMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("unmarshal side-file: %w", err)
	}
	if len(meta) != len(ix.vectors) {
		return fmt.Errorf("side-file has %d rows, vector file has %d", len(meta), len(ix.vectors))
	}
	ix.metadata = meta
	return nil
}
