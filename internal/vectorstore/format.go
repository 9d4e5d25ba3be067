package vectorstore

import (
	"fmt"
	"strings"

	"github.com/abdulachik/memexplain/internal/meme"
)

// FormatContext renders patterns grouped by category, in first-seen
// category order, for inclusion in a prompt.
func FormatContext(sociolect meme.Sociolect, patterns []meme.LanguagePattern) string {
	if len(patterns) == 0 {
		return "No specific language patterns found."
	}

	var order []meme.Category
	grouped := make(map[meme.Category][]meme.LanguagePattern)
	for _, p := range patterns {
		category := p.Category
		if category == "" {
			category = meme.CategoryGeneral
		}
		if _, ok := grouped[category]; !ok {
			order = append(order, category)
		}
		grouped[category] = append(grouped[category], p)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Language patterns for %s:\n", sociolect)
	for _, category := range order {
		fmt.Fprintf(&b, "\n%s:\n", strings.ToUpper(string(category)))
		for _, p := range grouped[category] {
			if p.Context != "" {
				fmt.Fprintf(&b, "  - %s (use when: %s)\n", p.Text, p.Context)
			} else {
				fmt.Fprintf(&b, "  - %s\n", p.Text)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
