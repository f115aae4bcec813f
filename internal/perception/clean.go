package perception

import (
	"regexp"
	"strings"
)

// MedGemma emits its reasoning between <unused94> and <unused95>. An
// unterminated span runs to the end of the text.
var thoughtSpan = regexp.MustCompile(`(?s)<unused94>.*?(<unused95>|$)`)

// CleanResponse strips thought spans and surrounding whitespace.
func CleanResponse(text string) string {
	return strings.TrimSpace(thoughtSpan.ReplaceAllString(text, ""))
}
