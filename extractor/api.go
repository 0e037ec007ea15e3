package extractor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/use-agent/esimdex/models"
	"github.com/use-agent/esimdex/normalize"
)

// The internal API has no stable schema for coverage or plan data; these are
// the field names observed across payload revisions, probed in order.
var (
	countryFields = []string{
		"countries", "supported_countries", "works_in",
		"coverage", "coverage_countries", "regions",
	}
	planFields = []string{
		"plans", "options", "variants", "denominations",
		"data_plans", "packages",
	}
)

// extractFromEntries converts per-product API detail payloads into products.
// An entry whose detail payload does not decode, or that yields no usable
// name, is skipped with a diagnostic.
func extractFromEntries(entries []models.RawEntry) ([]models.Product, []models.Diagnostic, error) {
	if len(entries) == 0 {
		return nil, nil, models.NewCatalogError(
			models.ErrCodeExtractionFailed,
			"no product listing in API payload",
			nil,
		)
	}

	var (
		products []models.Product
		diags    []models.Diagnostic
	)

	for _, entry := range entries {
		var detail map[string]any
		if err := json.Unmarshal(entry.Detail, &detail); err != nil {
			diags = append(diags, models.Diagnostic{
				Entry:  entry.Slug,
				Reason: "detail payload is not a JSON object: " + err.Error(),
			})
			continue
		}

		name := fieldString(detail, "name", "title")
		if name == "" {
			name = entry.Name
		}
		if name == "" && entry.Slug != "" {
			name = normalize.CountryFromSlug(entry.Slug)
		}
		if name == "" {
			diags = append(diags, models.Diagnostic{
				Entry:  entry.Slug,
				Reason: "entry has no extractable product name",
			})
			continue
		}

		products = append(products, models.Product{
			Country:          name,
			CountriesCovered: coveredCountries(detail),
			Plans:            extractPlans(detail),
		})
	}

	return products, diags, nil
}

// coveredCountries flattens the coverage fields into an ordered sequence of
// country names as they appear in the payload. Duplicates are kept: the
// sequence reflects the source's presentation.
func coveredCountries(detail map[string]any) []string {
	countries := []string{}

	for _, field := range countryFields {
		switch v := detail[field].(type) {
		case []any:
			for _, item := range v {
				if name := countryName(item); name != "" {
					countries = append(countries, name)
				}
			}
		case string:
			if v != "" {
				countries = append(countries, v)
			}
		}
	}

	if codes, ok := detail["country_codes"].([]any); ok {
		for _, c := range codes {
			if s := scalarString(c); s != "" {
				countries = append(countries, s)
			}
		}
	}

	return countries
}

// countryName handles both shapes a coverage entry ships in: a plain string
// or an object with name/country/code fields.
func countryName(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		return fieldString(v, "name", "country", "code")
	default:
		return scalarString(item)
	}
}

// extractPlans probes the plan fields and normalizes every plan found. When
// no plan list exists but the payload carries a denomination range, a single
// price-less range plan is synthesized.
func extractPlans(detail map[string]any) []models.Plan {
	plans := []models.Plan{}

	for _, field := range planFields {
		list, ok := detail[field].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			rawName := fieldString(m, "name", "description", "label", "data")
			if rawName == "" {
				rawName = composedPlanName(m)
			}
			rawPrice := planPrice(m)
			if rawName == "" && rawPrice == "" {
				continue
			}
			plans = append(plans, normalize.Plan(rawName, rawPrice))
		}
	}

	if len(plans) == 0 {
		min := scalarString(detail["min_denomination"])
		max := scalarString(detail["max_denomination"])
		if min != "" && max != "" {
			plans = append(plans, models.Plan{
				Name:  fmt.Sprintf("From %s to %s", min, max),
				Price: nil,
			})
		}
	}

	return plans
}

// composedPlanName builds "10GB, 30 Days" style names from split fields.
func composedPlanName(m map[string]any) string {
	amount := scalarString(m["data_amount"])
	unit := scalarString(m["data_unit"])
	duration := scalarString(m["duration"])
	durationUnit := scalarString(m["duration_unit"])
	if durationUnit == "" && duration != "" {
		durationUnit = "Days"
	}

	left := strings.TrimSpace(amount + unit)
	right := strings.TrimSpace(duration + " " + durationUnit)
	switch {
	case left != "" && right != "":
		return left + ", " + right
	case left != "":
		return left
	default:
		return right
	}
}

// planPrice extracts the price field and formats bare numerics the way the
// storefront displays USD amounts. String prices pass through untouched so
// the original currency symbol survives.
func planPrice(m map[string]any) string {
	for _, field := range []string{"price", "amount", "cost", "usd_price"} {
		switch v := m[field].(type) {
		case float64:
			return fmt.Sprintf("$%.2f", v)
		case string:
			if v == "" {
				continue
			}
			if !strings.HasPrefix(v, "$") {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					return fmt.Sprintf("$%.2f", f)
				}
			}
			return v
		}
	}
	return ""
}

// fieldString returns the first non-empty string among the named fields.
func fieldString(m map[string]any, fields ...string) string {
	for _, f := range fields {
		if s, ok := m[f].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// scalarString coerces loosely-typed scalar payload values to a string.
func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
