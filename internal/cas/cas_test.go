package cas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateKnownGood(t *testing.T) {
	assert.True(t, Validate("71-43-2"))  // benzene
	assert.True(t, Validate("108-88-3")) // toluene
}

func TestValidateBadCheckDigit(t *testing.T) {
	assert.False(t, Validate("71-43-3"))
}

func TestValidateMalformed(t *testing.T) {
	assert.False(t, Validate("not-a-cas"))
	assert.False(t, Validate(""))
}

func TestExtractFromSurroundingText(t *testing.T) {
	assert.Equal(t, "71-43-2", Extract("Benzene (CAS: 71-43-2)"))
	assert.Equal(t, "108-88-3", Extract("Toluene 108-88-3"))
	assert.Equal(t, "", Extract("No CAS here"))
}

func TestExtractSkipsInvalidCheckDigit(t *testing.T) {
	assert.Equal(t, "", Extract("Bogus 71-43-3"))
}

func TestExtractAll(t *testing.T) {
	got := ExtractAll("Benzene 71-43-2 and toluene 108-88-3 mixed with junk 71-43-3")
	assert.Equal(t, []string{"71-43-2", "108-88-3"}, got)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "71-43-2", Format("71432"))
	assert.Equal(t, "71-43-2", Format("71-43-2"))
	assert.Equal(t, "", Format("123"))
}

func TestIsFormat(t *testing.T) {
	assert.True(t, IsFormat("71-43-2"))
	assert.False(t, IsFormat("benzene"))
}
