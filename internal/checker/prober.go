package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"indexwatch/internal/models"
)

const (
	// DefaultTimeout bounds a single probe, body read included.
	DefaultTimeout = 15 * time.Second
	// DefaultMarker is the substring that marks a page as found in the index.
	DefaultMarker = "academic.naver.com"
	// DefaultUserAgent mimics a desktop browser.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	timeoutMessage = "Request timeout"
	maxRedirects   = 10
)

// URLProber classifies the live state of a URL.
type URLProber interface {
	Probe(ctx context.Context, url string) models.Outcome
}

// Prober performs one GET per URL and classifies the response.
type Prober struct {
	client    *http.Client
	timeout   time.Duration
	marker    string
	userAgent string
}

// ProberOption customizes a Prober.
type ProberOption func(*Prober)

// WithHTTPClient replaces the HTTP client. Its own Timeout, if any, still applies.
func WithHTTPClient(c *http.Client) ProberOption {
	return func(p *Prober) { p.client = c }
}

// WithTimeout sets the per-probe deadline.
func WithTimeout(d time.Duration) ProberOption {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMarker sets the exposure marker. Matching is case-insensitive.
func WithMarker(marker string) ProberOption {
	return func(p *Prober) {
		if marker != "" {
			p.marker = marker
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ProberOption {
	return func(p *Prober) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// NewProber creates a Prober with browser-like defaults.
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		timeout:   DefaultTimeout,
		marker:    DefaultMarker,
		userAgent: DefaultUserAgent,
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.marker = strings.ToLower(p.marker)
	return p
}

// Probe fetches url and reports what it found. It never fails: transport
// errors and timeouts are recorded in ErrorMessage.
//
// Status and final URL are kept as soon as headers arrive. PDFs, detected by
// content type or a .pdf suffix on either URL, are classified without reading
// the body. Anything else is searched for the marker in body + final URL.
func (p *Prober) Probe(ctx context.Context, url string) models.Outcome {
	var out models.Outcome

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failed(ctx, out, err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := p.client.Do(req)
	if err != nil {
		return failed(ctx, out, err)
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	out.HTTPStatus = &status
	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	out.FinalURL = &finalURL

	if isPDF(resp.Header.Get("Content-Type"), url, finalURL) {
		out.IsPDF = true
		return out
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed(ctx, out, err)
	}
	// Plain containment: incidental mentions of the marker count as found.
	haystack := strings.ToLower(string(body) + finalURL)
	out.FoundExposed = strings.Contains(haystack, p.marker)
	return out
}

func isPDF(contentType, url, finalURL string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/pdf") ||
		strings.HasSuffix(strings.ToLower(url), ".pdf") ||
		strings.HasSuffix(strings.ToLower(finalURL), ".pdf")
}

func failed(ctx context.Context, out models.Outcome, err error) models.Outcome {
	msg := err.Error()
	if isTimeout(ctx, err) {
		msg = timeoutMessage
	}
	out.FoundExposed = false
	out.IsPDF = false
	out.ErrorMessage = &msg
	return out
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
