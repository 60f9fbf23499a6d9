package classify

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Tokens are runs of at least two letters, digits or underscores; single characters are dropped.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Tokenize lower-cases the text and splits it into word tokens in document order.
func Tokenize(text string) []string {
	text = strings.ToLower(norm.NFC.String(text))
	return tokenPattern.FindAllString(text, -1)
}
