package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PascalCase normalizes s into an identifier: words are split on anything
// that is not a letter or digit, on lower-to-upper transitions, at the end
// of an acronym and between letters and digits; each word is title-cased
// and the words are concatenated.
//
//	"blog post Json" -> "BlogPostJson"
//	"my-data.v2 Json" -> "MyDataV2Json"
//	"XMLFeed Json" -> "XmlFeedJson"
func PascalCase(s string) string {
	// A Caser is stateful; one per call keeps PascalCase goroutine-safe.
	title := cases.Title(language.Und)
	var b strings.Builder
	for _, w := range splitWords(s) {
		b.WriteString(title.String(strings.ToLower(w)))
	}
	return b.String()
}

func splitWords(s string) []string {
	runes := []rune(s)
	var (
		words []string
		start = -1
	)
	flush := func(end int) {
		if start >= 0 && end > start {
			words = append(words, string(runes[start:end]))
		}
		start = -1
	}

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := runes[i-1]
		switch {
		case unicode.IsDigit(r) != unicode.IsDigit(prev):
			flush(i)
			start = i
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			flush(i)
			start = i
		case unicode.IsUpper(prev) && unicode.IsUpper(r) &&
			i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			// "XMLFeed": the F starts a new word.
			flush(i)
			start = i
		}
	}
	flush(len(runes))
	return words
}
