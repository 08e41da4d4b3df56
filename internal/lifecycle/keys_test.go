package lifecycle

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateProjectKey(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		suffixLen int
		prefix    string
	}{
		{"plain name", "Acme Corp", 4, "ACM-"},
		{"punctuation skipped", "A.c!m e", 5, "ACM-"},
		{"short name", "Go", 4, "GO-"},
		{"digits count", "42nd Street", 4, "42N-"},
		{"no alphanumerics", "!!! ---", 4, "PRJ-"},
		{"empty name", "", 5, "PRJ-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := GenerateProjectKey(tt.input, tt.suffixLen)

			assert.Equal(t, tt.prefix, key[:len(tt.prefix)])
			suffix := key[len(tt.prefix):]
			assert.Len(t, suffix, tt.suffixLen)
			assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]+$`), suffix)
		})
	}
}

func TestGenerateProjectKey_Randomized(t *testing.T) {
	// Suffixes come from random UUIDs, so repeated calls should not all
	// collide
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		seen[GenerateProjectKey("Acme", 5)] = true
	}
	assert.Greater(t, len(seen), 1)
}
