package vectorstore

import (
	"testing"

	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/stretchr/testify/assert"
)

func TestFormatContext(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "No specific language patterns found.", FormatContext(meme.GenZ, nil))
	})

	t.Run("groups by category in first-seen order", func(t *testing.T) {
		patterns := []meme.LanguagePattern{
			{Text: "no cap", Category: meme.CategoryPhrase, Context: "not lying"},
			{Text: "brevity", Category: meme.CategoryTone},
			{Text: "rent free", Category: meme.CategoryPhrase, Context: "can't stop thinking about it"},
			{Text: "vibes"},
		}

		want := "Language patterns for gen-z:\n" +
			"\nPHRASE:\n" +
			"  - no cap (use when: not lying)\n" +
			"  - rent free (use when: can't stop thinking about it)\n" +
			"\nTONE:\n" +
			"  - brevity\n" +
			"\nGENERAL:\n" +
			"  - vibes"
		assert.Equal(t, want, FormatContext(meme.GenZ, patterns))
	})
}
