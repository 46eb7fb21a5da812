package common

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gosimple/slug"
)

const maxFileNameLen = 255

var (
	reIllegal        = regexp.MustCompile(`[/?<>\\:*|"]`)
	reControl        = regexp.MustCompile(`[\x00-\x1f\x80-\x9f]`)
	reDotsOnly       = regexp.MustCompile(`^\.+$`)
	reWhitespace     = regexp.MustCompile(`\s`)
	reWindowsReserve = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])(\..*)?$`)
)

// SanitizeFileName makes text safe to be used as a single file name on all
// supported platforms. Offending characters, dots-only names and reserved
// device names are substituted with replacement, repeated replacements are
// collapsed and trimmed, result is limited to 255 characters.
func SanitizeFileName(text, replacement string) string {
	out := reIllegal.ReplaceAllLiteralString(text, replacement)
	out = reControl.ReplaceAllLiteralString(out, replacement)
	out = reDotsOnly.ReplaceAllLiteralString(out, replacement)
	out = reWhitespace.ReplaceAllLiteralString(out, replacement)
	out = reWindowsReserve.ReplaceAllLiteralString(out, replacement)

	if replacement != "" {
		double := replacement + replacement
		for strings.Contains(out, double) {
			out = strings.ReplaceAll(out, double, replacement)
		}
		for strings.HasPrefix(out, replacement) {
			out = strings.TrimPrefix(out, replacement)
		}
		for strings.HasSuffix(out, replacement) {
			out = strings.TrimSuffix(out, replacement)
		}
	}

	if utf8.RuneCountInString(out) > maxFileNameLen {
		out = string([]rune(out)[:maxFileNameLen])
	}
	return out
}

// Transliterate converts non-ASCII characters to their ASCII equivalents
// while preserving spaces and original capitalization.
// For example: "Война и мир" -> "Voina i mir"
func Transliterate(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		words[i] = transliterateWord(word)
	}
	return strings.Join(words, " ")
}

func transliterateWord(word string) string {
	runes := []rune(word)
	firstUpper := unicode.IsUpper(runes[0])

	// NOTE: slug settings are global, this is not safe to call concurrently
	slug.Lowercase = false
	trans := slug.Make(word)
	slug.Lowercase = true

	if trans == "" {
		return word
	}
	if firstUpper {
		tr := []rune(trans)
		tr[0] = unicode.ToUpper(tr[0])
		return string(tr)
	}
	return trans
}
