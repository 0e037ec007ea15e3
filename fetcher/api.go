package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/esimdex/config"
	"github.com/use-agent/esimdex/models"
	"github.com/use-agent/esimdex/normalize"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// knownSlugs is the fallback product list used when the listing endpoint
// returns no eSIM entries (the omni listing occasionally hides them).
var knownSlugs = []string{
	"bitrefill-esim-north-america",
	"bitrefill-esim-usa",
	"bitrefill-esim-global",
	"bitrefill-esim-europe",
	"bitrefill-esim-united-arab-emirates",
	"bitrefill-esim-united-kingdom",
	"bitrefill-esim-canada",
	"bitrefill-esim-mexico",
	"bitrefill-esim-asia",
	"bitrefill-esim-latam",
	"bitrefill-esim-oceania",
	"bitrefill-esim-africa",
	"bitrefill-esim-middle-east",
}

// chromeH1Spec builds a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only. utls handshakes mutate the spec's extensions, so a fresh
// spec is built for every connection rather than shared.
func chromeH1Spec() (tls.ClientHelloSpec, error) {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return tls.ClientHelloSpec{}, err
	}
	// Replace h2 with http/1.1 only in the ALPN extension so the server
	// never negotiates HTTP/2 (which Go's http.Transport cannot handle
	// over a utls connection).
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	return spec, nil
}

// API fetches the catalog from the source's internal data endpoints directly,
// bypassing rendering. It presents a Chrome TLS fingerprint because the
// source sits behind bot mitigation that rejects Go's default ClientHello.
type API struct {
	client *http.Client
	cfg    config.FetcherConfig
}

// NewAPI creates an API fetcher with a Chrome-like TLS fingerprint.
func NewAPI(cfg config.FetcherConfig) *API {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			spec, err := chromeH1Spec()
			if err != nil {
				return nil, fmt.Errorf("api fetcher: build tls spec: %w", err)
			}
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("api fetcher: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	return &API{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.HTTPTimeout,
		},
		cfg: cfg,
	}
}

func (a *API) Name() string { return "api" }

// FetchCatalog pulls the product listing from the omni endpoint and the
// detail payload for each eSIM product. A failed listing request fails the
// whole fetch; a failed detail request only skips that product.
func (a *API) FetchCatalog(ctx context.Context) (*models.RawCatalog, error) {
	listingURL := a.cfg.APIBaseURL + "/api/omni?" + url.Values{
		"country":                   {a.cfg.Country},
		"s":                         {"1"},
		"limit":                     {"100"},
		"exclude_bill_pay_products": {"1"},
		"exclude_out_of_stock":      {"1"},
	}.Encode()

	body, err := a.getJSON(ctx, listingURL)
	if err != nil {
		return nil, categorizeError(err, "catalog listing request failed")
	}

	candidates := esimCandidates(decodeListing(body))
	if len(candidates) == 0 {
		slog.Warn("no eSIM products in listing, falling back to known slugs")
		for _, slug := range knownSlugs {
			candidates = append(candidates, listingItem{
				ID:   slug,
				Name: normalize.CountryFromSlug(slug),
				Slug: slug,
			})
		}
	}

	entries := make([]models.RawEntry, 0, len(candidates))
	for _, c := range candidates {
		detailURL := a.cfg.APIBaseURL + "/api/product/" + url.PathEscape(c.ID) + "?source=esim"
		detail, err := a.getJSON(ctx, detailURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, categorizeError(ctx.Err(), "catalog fetch deadline exceeded")
			}
			slog.Warn("product detail request failed, skipping",
				"product", c.ID, "error", err)
			continue
		}
		entries = append(entries, models.RawEntry{
			Name:   c.Name,
			Slug:   c.Slug,
			Detail: detail,
		})
	}

	return &models.RawCatalog{
		Mode:    models.SourceAPI,
		Entries: entries,
	}, nil
}

// getJSON performs one GET against the internal API and returns the raw JSON
// body. Browser-like headers keep the endpoint from serving the HTML shell.
func (a *API) getJSON(ctx context.Context, target string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", a.cfg.ListingURL)
	req.Header.Set("Origin", a.cfg.APIBaseURL)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, target)
	}

	// 10 MB cap to prevent unbounded memory use.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("non-JSON response from %s", target)
	}
	return body, nil
}

type listingItem struct {
	ID   string
	Name string
	Slug string
}

// decodeListing extracts the product array from the listing response. The
// endpoint has shipped several shapes: {"products": [...]}, {"data": [...]},
// and a bare array.
func decodeListing(body json.RawMessage) []json.RawMessage {
	var wrapped struct {
		Products []json.RawMessage `json:"products"`
		Data     []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if len(wrapped.Products) > 0 {
			return wrapped.Products
		}
		if len(wrapped.Data) > 0 {
			return wrapped.Data
		}
	}

	var bare []json.RawMessage
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare
	}
	return nil
}

// esimCandidates keeps the listing items whose id, slug, or name marks them
// as eSIM products. Field types are loose in the payload, so everything goes
// through asString.
func esimCandidates(items []json.RawMessage) []listingItem {
	var out []listingItem
	for _, raw := range items {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		id := asString(fields["id"])
		name := asString(fields["name"])
		slug := asString(fields["slug"])

		if id == "" {
			id = slug
		}
		if id == "" {
			id = name
		}
		if id == "" {
			continue
		}

		marker := strings.ToLower(id + " " + slug + " " + name)
		if !strings.Contains(marker, "esim") {
			continue
		}

		if name == "" {
			name = normalize.CountryFromSlug(id)
		}
		if slug == "" {
			slug = id
		}
		out = append(out, listingItem{ID: id, Name: name, Slug: slug})
	}
	return out
}

// asString coerces loosely-typed payload values to a string.
func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}
