package persistence

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugPattern   = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	slugSeparator = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeSlug trims whitespace, lowercases the value, and ensures it matches
// the canonical URL-safe slug pattern required for public identifiers.
func NormalizeSlug(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.New("slug is required")
	}

	normalized := strings.ToLower(trimmed)
	if !slugPattern.MatchString(normalized) {
		return "", fmt.Errorf("invalid slug %q: must match ^[a-z0-9]+(?:-[a-z0-9]+)*$", input)
	}

	return normalized, nil
}

// SlugFromName derives a slug from a display name: accents are stripped and
// every run of other characters becomes a single hyphen.
// "Igreja São João" becomes "igreja-sao-joao".
func SlugFromName(name string) (string, error) {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(stripAccents, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return "", fmt.Errorf("normalize name: %w", err)
	}

	slug := strings.Trim(slugSeparator.ReplaceAllString(plain, "-"), "-")
	if slug == "" {
		return "", fmt.Errorf("name %q has no slug characters", name)
	}
	return NormalizeSlug(slug)
}
