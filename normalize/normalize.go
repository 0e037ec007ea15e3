// Package normalize converts raw source tokens (plan labels, price strings,
// product slugs) into typed fields. Everything here is a pure function and
// degrades gracefully: unparseable input yields best-effort substrings or
// nil, never an error.
package normalize

import (
	"regexp"
	"strings"

	"github.com/use-agent/esimdex/models"
)

var (
	reData     = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:GB|MB|TB)`)
	reValidity = regexp.MustCompile(`(?i)\d+\s*(?:days?|weeks?|months?|hours?)`)
	rePrice    = regexp.MustCompile(`(?:\p{Sc}\s?)?\d[\d,]*(?:\.\d+)?`)
	// rePriceInText requires a currency symbol so data amounts ("10GB")
	// inside larger blobs are not mistaken for prices.
	rePriceInText = regexp.MustCompile(`\p{Sc}\s?\d[\d,]*(?:\.\d+)?`)
	reDigit       = regexp.MustCompile(`\d`)
)

// SplitPlanToken splits a raw plan token like "10GB 30 Days" or "1GB, 7 Days"
// into its data-amount and validity parts. Parts that don't match the
// expected shape come back as best-effort substrings; missing parts are
// empty strings.
func SplitPlanToken(raw string) (data, validity string) {
	data = strings.TrimSpace(reData.FindString(raw))
	validity = strings.TrimSpace(reValidity.FindString(raw))

	if data == "" && validity == "" {
		// Nothing recognizable: split on the first comma so callers still
		// get usable substrings of the original token.
		if before, after, ok := strings.Cut(raw, ","); ok {
			data = strings.TrimSpace(before)
			validity = strings.TrimSpace(after)
		}
	}
	return data, validity
}

// Price extracts a currency-amount token from raw, preserving the currency
// symbol verbatim. Returns nil when the token carries no digit. There is no
// numeric conversion and no currency-code mapping: multiple currencies may
// appear across one catalog and conversion is out of scope.
func Price(raw string) *string {
	if !reDigit.MatchString(raw) {
		return nil
	}
	m := strings.TrimSpace(rePrice.FindString(raw))
	if m == "" {
		return nil
	}
	return &m
}

// PriceInText mines a currency-anchored amount out of a larger text blob,
// such as a whole product card's inner text. Unlike Price it never treats a
// bare number as a price. Returns nil when no match.
func PriceInText(text string) *string {
	m := rePriceInText.FindString(text)
	if m == "" {
		return nil
	}
	return &m
}

// Plan builds a typed plan record from raw plan and price tokens.
func Plan(rawPlan, rawPrice string) models.Plan {
	data, validity := SplitPlanToken(rawPlan)

	name := strings.TrimSpace(rawPlan)
	if name == "" {
		name = strings.TrimSpace(data + " " + validity)
	}
	if name == "" {
		name = "Standard Plan"
	}

	return models.Plan{
		Name:     name,
		Data:     data,
		Validity: validity,
		Price:    Price(rawPrice),
	}
}

// CountryFromSlug derives a human-readable product name from a source slug,
// e.g. "bitrefill-esim-north-america" → "North America".
func CountryFromSlug(slug string) string {
	s := strings.TrimPrefix(slug, "bitrefill-esim-")
	s = strings.TrimSuffix(strings.TrimPrefix(s, "esim-"), "-esim")
	words := strings.Split(strings.ReplaceAll(s, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.TrimSpace(strings.Join(words, " "))
}
