package fetcher

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/esimdex/config"
	"github.com/use-agent/esimdex/models"
	"github.com/ysmood/gson"
	"golang.org/x/net/html"
)

// Browser renders the catalog listing page in a headless Chrome session and
// returns the fully rendered document. It is safe for concurrent use,
// although the cache layer only ever runs one fetch at a time.
type Browser struct {
	browser    *rod.Browser
	browserCfg config.BrowserConfig
	fetchCfg   config.FetcherConfig
}

// NewBrowser launches a headless browser and connects to it.
func NewBrowser(browserCfg config.BrowserConfig, fetchCfg config.FetcherConfig) (*Browser, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// Flags that make headless Chrome look less like automation and keep
	// background tabs from being throttled mid-render.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCatalogError(
			models.ErrCodeFetchUnavailable,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewCatalogError(
			models.ErrCodeFetchUnavailable,
			"failed to connect to browser",
			err,
		)
	}

	return &Browser{
		browser:    browser,
		browserCfg: browserCfg,
		fetchCfg:   fetchCfg,
	}, nil
}

func (b *Browser) Name() string { return "browser" }

// FetchCatalog opens the listing page, waits for the client-rendered content
// to settle (bounded by RenderTimeout), scrolls once to trigger lazy-loaded
// cards, and returns the rendered document.
//
// Order matters below: stealth JS and the resource-blocking hijack only take
// effect for navigations that happen after they are installed.
func (b *Browser) FetchCatalog(ctx context.Context) (*models.RawCatalog, error) {
	ctx, cancel := context.WithTimeout(ctx, b.fetchCfg.RenderTimeout)
	defer cancel()

	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewCatalogError(
			models.ErrCodeFetchUnavailable,
			"failed to open page",
			err,
		)
	}
	// Close with the original page reference so cleanup succeeds even after
	// the request context has expired.
	defer func() { _ = page.Close() }()

	if b.fetchCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	// A plausible Referer makes the first navigation look organic.
	if u, parseErr := url.Parse(b.fetchCfg.ListingURL); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{
				"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
			}),
		}.Call(page)
	}

	router := setupHijack(page, b.fetchCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	if err := p.Navigate(b.fetchCfg.ListingURL); err != nil {
		return nil, categorizeError(err, "navigation to listing page failed")
	}

	if err := p.WaitDOMStable(500*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", err,
		)
	}

	// Scroll to the bottom and back so lazy-loaded product cards render.
	_, _ = p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	if err := p.WaitDOMStable(500*time.Millisecond, 0.1); err != nil {
		slog.Debug("post-scroll DOM did not settle", "error", err)
	}
	_, _ = p.Eval(`() => window.scrollTo(0, 0)`)

	rendered, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract rendered document")
	}

	if looksUnrendered(rendered) {
		slog.Warn("listing page has almost no visible text, catalog may not have rendered",
			"url", b.fetchCfg.ListingURL,
		)
	}

	return &models.RawCatalog{
		Mode:    models.SourceBrowser,
		HTML:    rendered,
		BaseURL: b.fetchCfg.ListingURL,
	}, nil
}

// Close kills the browser process. Call on graceful shutdown to prevent
// zombie Chrome processes.
func (b *Browser) Close() {
	slog.Info("browser fetcher shutting down")
	b.browser.MustClose()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// looksUnrendered reports whether the document is still an SPA shell: almost
// no visible body text after rendering.
func looksUnrendered(doc string) bool {
	return len(visibleText(doc)) < 200
}

// visibleText extracts the visible text inside <body>, skipping
// <script>/<style>/<noscript> content. Heuristic use only.
func visibleText(doc string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	var buf strings.Builder
	inBody := false
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return buf.String()
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "body":
				inBody = true
			case "script", "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
					buf.WriteString(text)
					buf.WriteByte(' ')
				}
			}
		}
	}
}
