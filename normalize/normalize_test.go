package normalize

import (
	"testing"
)

func TestSplitPlanToken(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantData     string
		wantValidity string
	}{
		{"space separated", "10GB 30 Days", "10GB", "30 Days"},
		{"comma separated", "1GB, 7 Days", "1GB", "7 Days"},
		{"decimal amount", "0.5GB 1 Day", "0.5GB", "1 Day"},
		{"megabytes", "500MB 1 week", "500MB", "1 week"},
		{"spaced unit", "3 GB 12 months", "3 GB", "12 months"},
		{"validity only", "30 Days", "", "30 Days"},
		{"data only", "20GB", "20GB", ""},
		{"empty", "", "", ""},
		{"unrecognizable with comma", "Unlimited, forever", "Unlimited", "forever"},
		{"unrecognizable no comma", "Unlimited", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, validity := SplitPlanToken(tt.raw)
			if data != tt.wantData || validity != tt.wantValidity {
				t.Errorf("SplitPlanToken(%q) = (%q, %q), want (%q, %q)",
					tt.raw, data, validity, tt.wantData, tt.wantValidity)
			}
		})
	}
}

func TestSplitPlanToken_RoundTrip(t *testing.T) {
	// For well-formed "<amount><unit> <number> <period>" tokens, both parts
	// must be recognizable substrings of the input.
	inputs := []string{"1GB 7 Days", "10GB 30 Days", "50GB 90 days", "250MB 1 Day"}
	for _, raw := range inputs {
		data, validity := SplitPlanToken(raw)
		if data == "" || validity == "" {
			t.Errorf("SplitPlanToken(%q) dropped a part: (%q, %q)", raw, data, validity)
			continue
		}
		if !contains(raw, data) || !contains(raw, validity) {
			t.Errorf("SplitPlanToken(%q) = (%q, %q); parts are not substrings of input",
				raw, data, validity)
		}
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func TestPrice(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string // "" means nil expected
	}{
		{"dollar", "$29.99", "$29.99"},
		{"dollar with thousands", "$1,299.00", "$1,299.00"},
		{"euro", "€10", "€10"},
		{"pound", "£6.27", "£6.27"},
		{"bare amount", "9.99", "9.99"},
		{"embedded in text", "From $6.27 per plan", "$6.27"},
		{"no digit", "Free", ""},
		{"empty", "", ""},
		{"symbols only", "$$$", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Price(tt.raw)
			if tt.want == "" {
				if got != nil {
					t.Errorf("Price(%q) = %q, want nil", tt.raw, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Price(%q) = nil, want %q", tt.raw, tt.want)
			}
			if *got != tt.want {
				t.Errorf("Price(%q) = %q, want %q", tt.raw, *got, tt.want)
			}
		})
	}
}

func TestPlan_Example(t *testing.T) {
	p := Plan("10GB 30 Days", "$29.99")

	if p.Name != "10GB 30 Days" {
		t.Errorf("Name = %q, want %q", p.Name, "10GB 30 Days")
	}
	if p.Data != "10GB" {
		t.Errorf("Data = %q, want %q", p.Data, "10GB")
	}
	if p.Validity != "30 Days" {
		t.Errorf("Validity = %q, want %q", p.Validity, "30 Days")
	}
	if p.Price == nil || *p.Price != "$29.99" {
		t.Errorf("Price = %v, want $29.99", p.Price)
	}
}

func TestPlan_PriceOnly(t *testing.T) {
	p := Plan("", "$5.00")
	if p.Name != "Standard Plan" {
		t.Errorf("Name = %q, want fallback %q", p.Name, "Standard Plan")
	}
	if p.Price == nil || *p.Price != "$5.00" {
		t.Errorf("Price = %v, want $5.00", p.Price)
	}
}

func TestPlan_NoPriceIsNull(t *testing.T) {
	p := Plan("1GB 7 Days", "")
	if p.Price != nil {
		t.Errorf("Price = %q, want nil", *p.Price)
	}
	if p.Data != "1GB" || p.Validity != "7 Days" {
		t.Errorf("split = (%q, %q), want (1GB, 7 Days)", p.Data, p.Validity)
	}
}

func TestCountryFromSlug(t *testing.T) {
	tests := []struct {
		slug string
		want string
	}{
		{"bitrefill-esim-north-america", "North America"},
		{"bitrefill-esim-united-kingdom", "United Kingdom"},
		{"esim-japan", "Japan"},
		{"global", "Global"},
	}
	for _, tt := range tests {
		if got := CountryFromSlug(tt.slug); got != tt.want {
			t.Errorf("CountryFromSlug(%q) = %q, want %q", tt.slug, got, tt.want)
		}
	}
}
