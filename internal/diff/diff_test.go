package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdenticalTextsProduceNoHunks(t *testing.T) {
	texts := []string{
		"",
		"single line",
		"a\nb\nc",
		"trailing newline\n",
	}
	for _, text := range texts {
		assert.Empty(t, Lines(text, text), "text: %q", text)
	}
}

func TestSingleInsertion(t *testing.T) {
	hunks := Lines("a\nb\nX\nc", "a\nb\nc")
	assert.Equal(t, []string{"-3,1 +3,0"}, hunks)
}

func TestSingleDeletion(t *testing.T) {
	hunks := Lines("a\nc", "a\nb\nc")
	assert.Equal(t, []string{"-2,0 +2,1"}, hunks)
}

func TestReplacement(t *testing.T) {
	hunks := Lines("a\nX\nc", "a\nb\nc")
	assert.Equal(t, []string{"-2,1 +2,1"}, hunks)
}

func TestTwoSeparateRegions(t *testing.T) {
	hunks := Lines("X\nb\nc\nd\nY", "a\nb\nc\nd\ne")
	assert.Equal(t, []string{"-1,1 +1,1", "-5,1 +5,1"}, hunks)
}

func TestDeterministic(t *testing.T) {
	a := "start\none\ntwo\nthree\nend"
	b := "start\nuno\ntwo\ntres\nend"
	first := Lines(a, b)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Lines(a, b))
	}
}

func TestSameChangeSameDescriptor(t *testing.T) {
	base := "header\nbody\nfooter"
	changed := "header\nBODY\nfooter"
	// the descriptor is a pure function of the change location, so two
	// responses with the same region changed fingerprint identically
	assert.Equal(t, Lines(changed, base), Lines("header\nBODY\nfooter", base))
}

func TestCompletelyDifferent(t *testing.T) {
	hunks := Lines("a\nb", "x\ny\nz")
	assert.Len(t, hunks, 1)
	assert.Equal(t, "-1,2 +1,3", hunks[0])
}

func TestHugeDivergenceCollapses(t *testing.T) {
	a := strings.Repeat("a\n", 5000)
	b := strings.Repeat("b\n", 5000)
	hunks := Lines(a, b)
	assert.Len(t, hunks, 1)
}

func TestEmptyAgainstContent(t *testing.T) {
	hunks := Lines("", "a\nb")
	assert.Len(t, hunks, 1)
}
