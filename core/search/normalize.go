// Package search builds the folded text used for catalog lookups, so "Beyoncé" matches
// "beyonce" and full-width input matches ASCII.
package search

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Fold lowercases s, strips diacritics, replaces punctuation with spaces and collapses
// whitespace.
func Fold(s string) string {
	s = norm.NFKD.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}

	s = punctRegex.ReplaceAllString(b.String(), " ")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(strings.ToLower(s))
}

// Key is the value stored in the search_text column for a track.
func Key(title, artist, genre string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{title, artist, genre} {
		if f := Fold(p); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

// Pattern turns a user query into a LIKE pattern against Key. An empty query returns "".
// Fold already removed every LIKE metacharacter.
func Pattern(query string) string {
	q := Fold(query)
	if q == "" {
		return ""
	}
	return "%" + q + "%"
}
