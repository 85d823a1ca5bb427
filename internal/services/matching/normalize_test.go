package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ABC Water Co.", "abc water co"},
		{"Smith & Sons, Inc.", "smith and sons inc"},
		{"  Multiple   Spaces  ", "multiple spaces"},
		{"ALL CAPS NAME", "all caps name"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in))
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("abc water co", "abc water co"))
	assert.Equal(t, 0.0, Similarity("", "abc"))
	assert.Equal(t, 0.0, Similarity("abc", ""))

	closeScore := Similarity("abc water co", "abc water com")
	farScore := Similarity("abc water co", "xyz electric supply")
	assert.Greater(t, closeScore, farScore)
	assert.Greater(t, closeScore, 0.9)
}
