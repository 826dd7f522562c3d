// Package normalize cleans untrusted feed text: markup stripping, whitespace
// collapsing, control-character removal, and length capping. All functions
// are pure and total.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Marker is appended whenever Cap truncates a string.
const Marker = "..."

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Cap truncates s to at most max characters, appending Marker when it cuts.
// The returned string is therefore at most max+3 characters. Limits count
// runes, not bytes; regulatory text is full of section signs, dashes, and
// accented names, and a byte cut could both split a rune and reject text
// that is within the character budget. Cap is the single truncation
// primitive used for summaries, context snippets, and model answers, so the
// respective invariants move together if a limit changes.
func Cap(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + Marker
}

// Clean normalizes raw feed text. Empty input (after cleaning) yields the
// fallback placeholder, never an empty string. Markup-tag-like substrings are
// replaced with a space, whitespace runs collapse to a single space, and
// non-printable characters other than newline and tab are dropped before the
// result is capped at max characters.
func Clean(raw, fallback string, max int) string {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	text := tagPattern.ReplaceAllString(raw, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			return r
		}
		return -1
	}, text)

	if text == "" {
		return fallback
	}
	return Cap(text, max)
}
