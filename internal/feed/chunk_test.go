package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkWords(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		size, overlap int
		want          []string
	}{
		{"empty", "  \n ", 3, 1, nil},
		{"no chunking", "a  b\nc", 0, 0, []string{"a b c"}},
		{"fits", "a b c", 3, 1, []string{"a b c"}},
		{"overlap", "a b c d e", 3, 1, []string{"a b c", "c d e"}},
		{"tail", "a b c d e f", 3, 1, []string{"a b c", "c d e", "e f"}},
		{"overlap too large", "a b c", 2, 5, []string{"a b", "b c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chunkWords(tt.text, tt.size, tt.overlap))
		})
	}
}
