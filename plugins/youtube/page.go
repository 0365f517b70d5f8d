package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/liuran001/SongShare-Go/bot/platform"
	"github.com/liuran001/SongShare-Go/bot/telemetry"
)

// DefaultUserAgent identifies page fetches as a link-preview crawler; several
// streaming sites serve an empty shell to unlabeled clients.
const DefaultUserAgent = "facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)"

const (
	pageService  = "page"
	maxPageBytes = 2 << 20
)

// PageClient fetches streaming pages and reads their titles.
type PageClient struct {
	http      *retryablehttp.Client
	userAgent string
	timeout   time.Duration
}

// NewPageClient creates a page fetcher. Empty userAgent selects DefaultUserAgent.
func NewPageClient(userAgent string, timeout time.Duration) *PageClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 1
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &PageClient{http: client, userAgent: userAgent, timeout: timeout}
}

// FetchTitle returns the page <title>, or its og:title when the title is empty.
func (p *PageClient) FetchTitle(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := p.http.Do(req)
	if err != nil {
		telemetry.ObserveUpstream(pageService, 0, time.Since(start))
		return "", platform.NewTransportError(pageService, err)
	}
	defer resp.Body.Close()
	telemetry.ObserveUpstream(pageService, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", platform.NewNoFallbackError(pageService, fmt.Sprintf("page status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", platform.NewNoFallbackError(pageService, "parse page: "+err.Error())
	}
	return TitleFromDocument(doc), nil
}

// TitleFromDocument reads the document title with og:title as fallback.
func TitleFromDocument(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	return ""
}
