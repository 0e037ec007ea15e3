package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/use-agent/esimdex/models"
)

func apiEntry(t *testing.T, slug string, detail any) models.RawEntry {
	t.Helper()
	raw, err := json.Marshal(detail)
	if err != nil {
		t.Fatalf("marshal detail: %v", err)
	}
	return models.RawEntry{Name: "", Slug: slug, Detail: raw}
}

func TestExtract_APIPayload(t *testing.T) {
	raw := &models.RawCatalog{
		Mode: models.SourceAPI,
		Entries: []models.RawEntry{
			apiEntry(t, "bitrefill-esim-usa", map[string]any{
				"name":      "USA eSIM",
				"countries": []any{"United States"},
				"plans": []any{
					map[string]any{"name": "1GB 7 Days", "price": 9.99},
					map[string]any{"description": "10GB 30 Days", "price": "29.99"},
				},
			}),
			apiEntry(t, "bitrefill-esim-europe", map[string]any{
				"name": "Europe eSIM",
				"coverage": []any{
					map[string]any{"name": "France"},
					map[string]any{"country": "Germany"},
				},
				"options": []any{
					map[string]any{
						"data_amount": "5", "data_unit": "GB",
						"duration": "15", "duration_unit": "Days",
						"usd_price": 12.5,
					},
				},
			}),
		},
	}

	products, diags, err := New().Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("diagnostics = %v, want none", diags)
	}
	if len(products) != 2 {
		t.Fatalf("products = %d, want 2", len(products))
	}

	usa := products[0]
	if usa.Country != "USA eSIM" {
		t.Errorf("Country = %q", usa.Country)
	}
	if usa.SourceURL != "" {
		t.Errorf("API-sourced product must not carry a source URL, got %q", usa.SourceURL)
	}
	if len(usa.Plans) != 2 {
		t.Fatalf("usa plans = %d, want 2", len(usa.Plans))
	}
	if usa.Plans[0].Price == nil || *usa.Plans[0].Price != "$9.99" {
		t.Errorf("numeric price = %v, want $9.99", usa.Plans[0].Price)
	}
	if usa.Plans[1].Price == nil || *usa.Plans[1].Price != "$29.99" {
		t.Errorf("string price = %v, want $29.99", usa.Plans[1].Price)
	}
	if usa.Plans[0].Data != "1GB" || usa.Plans[0].Validity != "7 Days" {
		t.Errorf("plan split = (%q, %q)", usa.Plans[0].Data, usa.Plans[0].Validity)
	}

	europe := products[1]
	wantCountries := []string{"France", "Germany"}
	if len(europe.CountriesCovered) != len(wantCountries) {
		t.Fatalf("countries = %v, want %v", europe.CountriesCovered, wantCountries)
	}
	for i, want := range wantCountries {
		if europe.CountriesCovered[i] != want {
			t.Errorf("countries[%d] = %q, want %q", i, europe.CountriesCovered[i], want)
		}
	}
	if len(europe.Plans) != 1 {
		t.Fatalf("europe plans = %d, want 1", len(europe.Plans))
	}
	if europe.Plans[0].Name != "5GB, 15 Days" {
		t.Errorf("composed plan name = %q, want %q", europe.Plans[0].Name, "5GB, 15 Days")
	}
	if europe.Plans[0].Price == nil || *europe.Plans[0].Price != "$12.50" {
		t.Errorf("usd_price = %v, want $12.50", europe.Plans[0].Price)
	}
}

func TestExtract_KeepsCountryDuplicatesAndOrder(t *testing.T) {
	raw := &models.RawCatalog{
		Mode: models.SourceAPI,
		Entries: []models.RawEntry{
			apiEntry(t, "bitrefill-esim-nordics", map[string]any{
				"name":      "Nordics",
				"countries": []any{"Sweden", "Norway"},
				"works_in":  []any{"Sweden", "Finland"},
			}),
		},
	}

	products, _, err := New().Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := []string{"Sweden", "Norway", "Sweden", "Finland"}
	got := products[0].CountriesCovered
	if len(got) != len(want) {
		t.Fatalf("countries = %v, want %v (duplicates preserved)", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("countries[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtract_SkipsMalformedEntries(t *testing.T) {
	raw := &models.RawCatalog{
		Mode: models.SourceAPI,
		Entries: []models.RawEntry{
			apiEntry(t, "bitrefill-esim-usa", map[string]any{"name": "USA eSIM"}),
			{Slug: "broken", Detail: json.RawMessage(`["not","an","object"]`)},
			{Slug: "", Detail: json.RawMessage(`{}`)},
			apiEntry(t, "bitrefill-esim-japan", map[string]any{"name": "Japan eSIM"}),
		},
	}

	products, diags, err := New().Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(products) != 2 {
		t.Errorf("products = %d, want 2 (N−K)", len(products))
	}
	if len(diags) != 2 {
		t.Errorf("diagnostics = %d, want 2 (K)", len(diags))
	}
}

func TestExtract_ZeroPlansAndCountriesIsValid(t *testing.T) {
	raw := &models.RawCatalog{
		Mode: models.SourceAPI,
		Entries: []models.RawEntry{
			apiEntry(t, "bitrefill-esim-antarctica", map[string]any{"name": "Antarctica"}),
		},
	}

	products, diags, err := New().Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("diagnostics = %v, want none", diags)
	}
	if len(products) != 1 {
		t.Fatalf("products = %d, want 1", len(products))
	}
	if len(products[0].CountriesCovered) != 0 || len(products[0].Plans) != 0 {
		t.Errorf("empty coverage/plans should survive as empty sequences: %+v", products[0])
	}
}

func TestExtract_EmptySequencesMarshalAsArrays(t *testing.T) {
	apiRaw := &models.RawCatalog{
		Mode: models.SourceAPI,
		Entries: []models.RawEntry{
			apiEntry(t, "bitrefill-esim-antarctica", map[string]any{"name": "Antarctica"}),
		},
	}
	browserRaw := &models.RawCatalog{
		Mode:    models.SourceBrowser,
		HTML:    `<html><body><a href="/esims/bitrefill-esim-antarctica/">Antarctica</a></body></html>`,
		BaseURL: "https://www.bitrefill.com/us/en/esims/",
	}

	for _, raw := range []*models.RawCatalog{apiRaw, browserRaw} {
		products, _, err := New().Extract(raw)
		if err != nil {
			t.Fatalf("mode %s: Extract: %v", raw.Mode, err)
		}
		if len(products) != 1 {
			t.Fatalf("mode %s: products = %d, want 1", raw.Mode, len(products))
		}

		out, err := json.Marshal(products[0])
		if err != nil {
			t.Fatalf("mode %s: marshal: %v", raw.Mode, err)
		}
		for _, frag := range []string{`"countries_covered":null`, `"plans":null`} {
			if bytes.Contains(out, []byte(frag)) {
				t.Errorf("mode %s: wire form %s carries %s, want an empty array", raw.Mode, out, frag)
			}
		}
		if !bytes.Contains(out, []byte(`"plans":[`)) {
			t.Errorf("mode %s: wire form %s is missing a plans array", raw.Mode, out)
		}
	}
}

func TestExtract_DenominationRangeFallback(t *testing.T) {
	raw := &models.RawCatalog{
		Mode: models.SourceAPI,
		Entries: []models.RawEntry{
			apiEntry(t, "bitrefill-esim-global", map[string]any{
				"name":             "Global",
				"min_denomination": 5,
				"max_denomination": 100,
			}),
		},
	}

	products, _, err := New().Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	plans := products[0].Plans
	if len(plans) != 1 {
		t.Fatalf("plans = %d, want 1 synthesized range plan", len(plans))
	}
	if plans[0].Name != "From 5 to 100" {
		t.Errorf("range plan name = %q", plans[0].Name)
	}
	if plans[0].Price != nil {
		t.Errorf("range plan price = %q, want nil", *plans[0].Price)
	}
}

func TestExtract_EmptyListingIsFatal(t *testing.T) {
	for _, raw := range []*models.RawCatalog{
		{Mode: models.SourceAPI},
		{Mode: models.SourceBrowser, HTML: "<html><body><p>maintenance</p></body></html>"},
	} {
		_, _, err := New().Extract(raw)
		if err == nil {
			t.Fatalf("mode %s: expected EXTRACTION_FAILED for missing listing", raw.Mode)
		}
		var catErr *models.CatalogError
		if !errors.As(err, &catErr) || catErr.Code != models.ErrCodeExtractionFailed {
			t.Errorf("mode %s: error = %v, want code %s", raw.Mode, err, models.ErrCodeExtractionFailed)
		}
	}
}

const listingHTML = `
<html><body>
  <main>
    <article class="product-card">
      <a href="/us/en/esims/bitrefill-esim-usa/"><h3 class="product-title">United States</h3></a>
      <span>1GB 7 Days from $9.99</span>
    </article>
    <article class="product-card">
      <a href="https://www.bitrefill.com/us/en/esims/bitrefill-esim-europe/">Europe</a>
      <span>Regional bundle</span>
    </article>
    <div>
      <a href="/us/en/esims/bitrefill-esim-usa/">United States (again)</a>
    </div>
  </main>
</body></html>`

func TestExtract_BrowserListing(t *testing.T) {
	raw := &models.RawCatalog{
		Mode:    models.SourceBrowser,
		HTML:    listingHTML,
		BaseURL: "https://www.bitrefill.com/us/en/esims/",
	}

	products, diags, err := New().Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("diagnostics = %v, want none", diags)
	}
	if len(products) != 2 {
		t.Fatalf("products = %d, want 2 (duplicate link deduplicated)", len(products))
	}

	usa := products[0]
	if usa.Country != "United States" {
		t.Errorf("Country = %q", usa.Country)
	}
	if usa.SourceURL != "https://www.bitrefill.com/us/en/esims/bitrefill-esim-usa/" {
		t.Errorf("SourceURL = %q", usa.SourceURL)
	}
	if len(usa.CountriesCovered) != 1 || usa.CountriesCovered[0] != "United States" {
		t.Errorf("CountriesCovered = %v", usa.CountriesCovered)
	}
	if len(usa.Plans) != 1 {
		t.Fatalf("usa plans = %d, want 1", len(usa.Plans))
	}
	plan := usa.Plans[0]
	if plan.Data != "1GB" || plan.Validity != "7 Days" {
		t.Errorf("plan split = (%q, %q)", plan.Data, plan.Validity)
	}
	if plan.Price == nil || *plan.Price != "$9.99" {
		t.Errorf("plan price = %v, want $9.99", plan.Price)
	}

	europe := products[1]
	if europe.Country != "Europe" {
		t.Errorf("Country = %q", europe.Country)
	}
	if len(europe.Plans) != 0 {
		t.Errorf("europe plans = %v, want none (no plan teaser on card)", europe.Plans)
	}
}
