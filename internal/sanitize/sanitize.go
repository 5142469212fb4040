// Package sanitize turns untrusted text into bounded plain text.
package sanitize

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

const (
	// ContentLimit caps text sent for analysis.
	ContentLimit = 1000
	// DisplayLimit caps text shown to users (titles, previews).
	DisplayLimit = 200
	// ErrorLimit caps error messages handed to outer collaborators.
	ErrorLimit = 100
)

var strict = bluemonday.StrictPolicy()

var delimiters = strings.NewReplacer("<", "", ">", "")

// Content sanitizes analysis input. Applying it twice yields the same result.
func Content(s string) string {
	return clean(s, ContentLimit)
}

// Display sanitizes text meant for a title or preview.
func Display(s string) string {
	return clean(s, DisplayLimit)
}

// Error renders err as a short, markup-free message.
func Error(err error) string {
	if err == nil {
		return ""
	}
	msg := html.UnescapeString(strict.Sanitize(err.Error()))
	return clean(msg, ErrorLimit)
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func clean(s string, limit int) string {
	s = delimiters.Replace(s)
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(Truncate(s, limit))
}
