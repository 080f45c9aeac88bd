// Package fetch retrieves HTML pages and exposes them as queryable documents.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Fetcher retrieves a page and parses it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// Page is a parsed HTML document together with the URL it was served from.
type Page struct {
	URL *url.URL
	Doc *goquery.Document
}

// Find selects every node matching selector, in document order.
func (p *Page) Find(selector string) *goquery.Selection {
	return p.Doc.Find(selector)
}

// Client fetches pages over HTTP. It keeps no cache: every call is a request.
type Client struct {
	httpClient *http.Client
	userAgent  string
	log        *slog.Logger
}

// NewClient creates a page fetcher. A nil httpClient gets a 30 second timeout.
func NewClient(httpClient *http.Client, userAgent string, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		userAgent:  userAgent,
		log:        log,
	}
}

// Fetch performs a GET and parses the body as HTML. The body is decoded to
// UTF-8 using the charset declared by the response or the document.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("page fetched", "url", rawURL, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}

	// Redirects may have moved the page; relative links resolve against the final URL.
	final := u
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	doc.Url = final

	return &Page{URL: final, Doc: doc}, nil
}
