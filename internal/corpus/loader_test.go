package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.tsv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadBasicCorpus(t *testing.T) {
	path := writeCorpus(t, "analyte\tREG153_001\tBenzene\tsingle_substance\t71-43-2\t\n"+
		"synonym\tREG153_001\tBenzene\tcommon\tmanual\t1.0\t\n"+
		"synonym\tREG153_001\tBenzol\tcommon\tmanual\t1.0\t\n")

	c, err := NewLoader(path).Load()
	require.NoError(t, err)
	require.Contains(t, c.Analytes, "REG153_001")
	assert.Equal(t, "Benzene", c.Analytes["REG153_001"].PreferredName)
	assert.Equal(t, "71-43-2", c.Analytes["REG153_001"].CASNumber)
	assert.Len(t, c.Synonyms, 2)
	assert.Empty(t, c.Inconsistent)
}

func TestLoadSkipsCommentsAndBlankLines(t *testing.T) {
	path := writeCorpus(t, "# comment\n\nanalyte\tA1\tToluene\tsingle_substance\n")
	c, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Len(t, c.Analytes, 1)
}

func TestLoadFlagsCorpusInconsistency(t *testing.T) {
	path := writeCorpus(t, "synonym\tMISSING_ID\tSomeName\tcommon\tmanual\t1.0\t\n")
	c, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Empty(t, c.Synonyms)
	require.Len(t, c.Inconsistent, 1)
	assert.Equal(t, "MISSING_ID", c.Inconsistent[0].AnalyteID)
}

func TestLoadRejectsParentCycle(t *testing.T) {
	path := writeCorpus(t, "analyte\tA1\tAlpha\tsuite\t\tA2\n"+
		"analyte\tA2\tBeta\tsuite\t\tA1\n")
	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestLoadRejectsDuplicateCAS(t *testing.T) {
	path := writeCorpus(t, "analyte\tA1\tAlpha\tsingle_substance\t71-43-2\n"+
		"analyte\tA2\tBeta\tsingle_substance\t71-43-2\n")
	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "71-43-2")
}

func TestHashIsStableUnderReordering(t *testing.T) {
	path1 := writeCorpus(t, "analyte\tA1\tAlpha\tsingle_substance\n"+
		"analyte\tA2\tBeta\tsingle_substance\n"+
		"synonym\tA1\talpha-one\tcommon\tmanual\t1.0\t\n"+
		"synonym\tA2\tbeta-two\tcommon\tmanual\t1.0\t\n")
	path2 := writeCorpus(t, "analyte\tA2\tBeta\tsingle_substance\n"+
		"analyte\tA1\tAlpha\tsingle_substance\n"+
		"synonym\tA2\tbeta-two\tcommon\tmanual\t1.0\t\n"+
		"synonym\tA1\talpha-one\tcommon\tmanual\t1.0\t\n")

	c1, err := NewLoader(path1).Load()
	require.NoError(t, err)
	c2, err := NewLoader(path2).Load()
	require.NoError(t, err)

	assert.Equal(t, c1.Hash(), c2.Hash())
}

func TestHashChangesWithContent(t *testing.T) {
	path1 := writeCorpus(t, "analyte\tA1\tAlpha\tsingle_substance\n")
	path2 := writeCorpus(t, "analyte\tA1\tAlphaX\tsingle_substance\n")

	c1, err := NewLoader(path1).Load()
	require.NoError(t, err)
	c2, err := NewLoader(path2).Load()
	require.NoError(t, err)

	assert.NotEqual(t, c1.Hash(), c2.Hash())
}
