package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/esimdex/models"
	"github.com/use-agent/esimdex/normalize"
)

// Compiled once; cascadia selectors satisfy goquery.Matcher.
var (
	productLinkSel = cascadia.MustCompile(`a[href*="esim-"]`)
	cardSel        = cascadia.MustCompile(`article, li, div[class*="card"], div[class*="product"]`)
	titleSel       = cascadia.MustCompile(`h2, h3, h4, [class*="title"], [class*="name"]`)
)

// extractFromHTML mines products out of a rendered listing document. Each
// product card is an anchor to a product page plus surrounding text carrying
// the plan teaser and price.
func extractFromHTML(rendered, baseURL string) ([]models.Product, []models.Diagnostic, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return nil, nil, models.NewCatalogError(
			models.ErrCodeExtractionFailed, "rendered document did not parse", err)
	}
	base, _ := url.Parse(baseURL)

	links := doc.FindMatcher(productLinkSel)
	if links.Length() == 0 {
		return nil, nil, models.NewCatalogError(
			models.ErrCodeExtractionFailed,
			"no product listing found in rendered page",
			nil,
		)
	}

	var (
		products []models.Product
		diags    []models.Diagnostic
		seen     = make(map[string]struct{})
	)

	links.Each(func(_ int, link *goquery.Selection) {
		// The selector guarantees a non-empty href containing "esim-".
		href, _ := link.Attr("href")
		sourceURL := absoluteURL(base, href)
		if _, dup := seen[sourceURL]; dup {
			return // same product linked twice on the page, not a defect
		}
		seen[sourceURL] = struct{}{}

		container := link.ClosestMatcher(cardSel)
		if container.Length() == 0 {
			container = link.Parent()
		}

		name := cardName(link, container, sourceURL)
		if name == "" {
			diags = append(diags, models.Diagnostic{
				Entry:  sourceURL,
				Reason: "product card has no extractable name",
			})
			return
		}

		// The card's inner text carries the plan teaser ("1GB 7 Days") and
		// the starting price. Zero extractable plans is valid: the product
		// page may hold them all behind interaction.
		text := container.Text()
		data, validity := normalize.SplitPlanToken(text)
		price := normalize.PriceInText(text)

		plans := []models.Plan{}
		if data != "" || validity != "" || price != nil {
			planName := strings.TrimSpace(data + " " + validity)
			if planName == "" {
				planName = "Standard Plan"
			}
			plans = append(plans, models.Plan{
				Name:     planName,
				Data:     data,
				Validity: validity,
				Price:    price,
			})
		}

		products = append(products, models.Product{
			Country:          name,
			SourceURL:        sourceURL,
			CountriesCovered: []string{name},
			Plans:            plans,
		})
	})

	return products, diags, nil
}

// cardName extracts the product display name: heading inside the card, then
// the link text, then the URL slug.
func cardName(link, container *goquery.Selection, sourceURL string) string {
	if heading := container.FindMatcher(titleSel).First(); heading.Length() > 0 {
		if name := strings.TrimSpace(heading.Text()); name != "" {
			return name
		}
	}
	if name := strings.TrimSpace(link.Text()); name != "" {
		return firstLine(name)
	}
	if u, err := url.Parse(sourceURL); err == nil {
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segs) > 0 {
			return normalize.CountryFromSlug(segs[len(segs)-1])
		}
	}
	return ""
}

// absoluteURL resolves href against the document URL when it is relative.
func absoluteURL(base *url.URL, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() || base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

// firstLine trims a multi-line card text down to its first non-empty line.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return strings.TrimSpace(s)
}
