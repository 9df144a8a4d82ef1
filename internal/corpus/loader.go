// Package corpus bulk-loads the bootstrap analyte+synonym corpus that
// seeds the synonym store, fuzzy index, and semantic index at startup:
// a buffered, optionally-gzipped line scanner that switches on a
// record-type column ("analyte" or "synonym") and assembles related rows
// keyed by analyte_id.
package corpus

import (
	"bufio"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
	"github.com/sudo-kno3/analyte-resolver/internal/normalize"
	"github.com/sudo-kno3/analyte-resolver/internal/resolveerr"
)

// Corpus is the in-memory result of loading the bootstrap corpus file:
// every analyte keyed by ID, every synonym in file order, and the
// inconsistencies found along the way (synonyms referencing a missing
// analyte).
type Corpus struct {
	Analytes     map[string]*model.Analyte
	Synonyms     []model.Synonym
	Inconsistent []model.Synonym // synonyms whose AnalyteID had no matching row
	SourcePath   string
}

// Loader reads a corpus file in the line-record format:
//
//	analyte	<id>	<preferred_name>	<type>	<cas_number>	<parent_id>
//	synonym	<analyte_id>	<raw>	<type>	<harvest_source>	<confidence>	<vendor>
//
// Fields are tab-separated; blank lines and lines starting with "#" are
// skipped. A trailing ".gz" extension is transparently decompressed.
type Loader struct {
	path string
}

// NewLoader creates a corpus loader for the given file path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the full corpus file and returns the assembled Corpus. Every
// synonym's Normalized field is recomputed with the current normalizer
// version regardless of what (if anything) the file carries, since the
// bootstrap corpus is the authority for normalization version 1.
func (l *Loader) Load() (*Corpus, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open corpus file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(l.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return l.parse(reader)
}

func (l *Loader) parse(reader io.Reader) (*Corpus, error) {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	c := &Corpus{
		Analytes:   make(map[string]*model.Analyte),
		SourcePath: l.path,
	}

	var rawSynonyms []model.Synonym

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue // tolerate malformed lines
		}

		switch fields[0] {
		case "analyte":
			a, err := parseAnalyteLine(fields)
			if err != nil {
				continue
			}
			c.Analytes[a.ID] = a

		case "synonym":
			s, err := parseSynonymLine(fields)
			if err != nil {
				continue
			}
			rawSynonyms = append(rawSynonyms, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan corpus file: %w", err)
	}

	if err := checkForest(c.Analytes); err != nil {
		return nil, err
	}
	if err := checkUniqueCAS(c.Analytes); err != nil {
		return nil, err
	}

	for _, s := range rawSynonyms {
		s.Normalized = normalize.Normalize(s.Raw)
		s.NormalizationVersion = normalize.Version
		if _, ok := c.Analytes[s.AnalyteID]; !ok {
			c.Inconsistent = append(c.Inconsistent, s)
			continue
		}
		c.Synonyms = append(c.Synonyms, s)
	}

	return c, nil
}

func parseAnalyteLine(fields []string) (*model.Analyte, error) {
	if len(fields) < 4 {
		return nil, fmt.Errorf("corpus: analyte line needs at least 4 fields, got %d", len(fields))
	}
	a := &model.Analyte{
		ID:            strings.TrimSpace(fields[1]),
		PreferredName: strings.TrimSpace(fields[2]),
		Type:          model.AnalyteType(strings.TrimSpace(fields[3])),
	}
	if a.ID == "" {
		return nil, fmt.Errorf("corpus: analyte line missing id")
	}
	if len(fields) > 4 {
		a.CASNumber = strings.TrimSpace(fields[4])
	}
	if len(fields) > 5 {
		a.ParentAnalyte = strings.TrimSpace(fields[5])
	}
	return a, nil
}

func parseSynonymLine(fields []string) (model.Synonym, error) {
	if len(fields) < 3 {
		return model.Synonym{}, fmt.Errorf("corpus: synonym line needs at least 3 fields, got %d", len(fields))
	}
	s := model.Synonym{
		AnalyteID:  strings.TrimSpace(fields[1]),
		Raw:        strings.TrimSpace(fields[2]),
		Confidence: 1.0,
	}
	if s.AnalyteID == "" || s.Raw == "" {
		return model.Synonym{}, fmt.Errorf("corpus: synonym line missing analyte_id or raw text")
	}
	if len(fields) > 3 {
		s.Type = model.SynonymType(strings.TrimSpace(fields[3]))
	}
	if len(fields) > 4 {
		s.HarvestSource = strings.TrimSpace(fields[4])
	}
	if len(fields) > 5 {
		if conf, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64); err == nil {
			s.Confidence = conf
		}
	}
	if len(fields) > 6 {
		s.LabVendor = strings.TrimSpace(fields[6])
	}
	return s, nil
}

// checkForest verifies analyte ParentAnalyte links form a forest with no
// cycles; a cycle introduced during curation must fail the startup
// check.
func checkForest(analytes map[string]*model.Analyte) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(analytes))

	var visit func(id string) error
	visit = func(id string) error {
		a, ok := analytes[id]
		if !ok {
			return nil
		}
		switch state[id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: cycle detected in analyte parent forest at %s", resolveerr.ErrCorpusInconsistency, id)
		}
		state[id] = visiting
		if a.ParentAnalyte != "" {
			if err := visit(a.ParentAnalyte); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	ids := make([]string, 0, len(analytes))
	for id := range analytes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// checkUniqueCAS verifies no two analytes share a CAS number. Reference
// lists occasionally assign one registry number to both a substance and
// a suite containing it; that must be resolved by curation before the
// corpus loads, or CAS lookups become ambiguous.
func checkUniqueCAS(analytes map[string]*model.Analyte) error {
	byCAS := make(map[string]string, len(analytes))
	ids := make([]string, 0, len(analytes))
	for id := range analytes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		cas := analytes[id].CASNumber
		if cas == "" {
			continue
		}
		if prev, ok := byCAS[cas]; ok {
			return fmt.Errorf("%w: CAS %s assigned to both %s and %s", resolveerr.ErrCorpusInconsistency, cas, prev, id)
		}
		byCAS[cas] = id
	}
	return nil
}

// Hash computes a stable sha256 snapshot hash over the corpus's analyte
// and synonym content, pinned into every MatchDecision so old decisions
// remain interpretable after the corpus evolves. Deterministic: sorts
// before hashing so file-order changes that don't change content don't
// change the hash.
func (c *Corpus) Hash() string {
	ids := make([]string, 0, len(c.Analytes))
	for id := range c.Analytes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		a := c.Analytes[id]
		fmt.Fprintf(h, "A|%s|%s|%s|%s|%s\n", a.ID, a.PreferredName, a.Type, a.CASNumber, a.ParentAnalyte)
	}

	syns := append([]model.Synonym(nil), c.Synonyms...)
	sort.Slice(syns, func(i, j int) bool {
		if syns[i].AnalyteID != syns[j].AnalyteID {
			return syns[i].AnalyteID < syns[j].AnalyteID
		}
		return syns[i].Normalized < syns[j].Normalized
	})
	for _, s := range syns {
		fmt.Fprintf(h, "S|%s|%s|%s\n", s.AnalyteID, s.Normalized, s.Type)
	}

	return hex.EncodeToString(h.Sum(nil))
}
