package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cardlens/backend/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 15 * time.Second
	defaultRetries = 2 // up to 3 attempts total

	baseBackoff  = 500 * time.Millisecond
	transientCap = 2 * time.Second
	throttleCap  = 10 * time.Second // 429 / Cloudflare backoff is kept longer

	maxBodyBytes = 1 << 20
)

// cloudflareMarkers are substrings of the challenge pages the catalog's
// anti-bot layer substitutes for the JSON API response.
var cloudflareMarkers = []string{
	"just a moment",
	"attention required",
	"cf-browser-verification",
	"challenge-platform",
	"cf-chl-",
	"cloudflare",
}

// Client handles communication with the pricing catalog API. It detects
// anti-bot interception, classifies failures as retryable or terminal, and
// retries transient failures with exponential backoff.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	timeout     time.Duration
	retries     int
	debug       bool
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries overrides the retry budget (retries beyond the first attempt).
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// NewClient creates a catalog API client. A missing API key is a
// construction-time error, not a per-call failure.
func NewClient(apiKey, baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.ErrMissingAPIKey
	}

	// Keep a modest cooperative request budget against the upstream; the
	// Pacer adds per-caller spacing on top of this.
	limiter := rate.NewLimiter(rate.Limit(2), 5)

	c := &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout + 5*time.Second},
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		rateLimiter: limiter,
		timeout:     defaultTimeout,
		retries:     defaultRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetDebug toggles verbose request logging.
func (c *Client) SetDebug(enabled bool) {
	c.debug = enabled
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if c.debug {
		log.Printf("[CATALOG] "+format, args...)
	}
}

// searchResponse is the catalog's product-search payload.
type searchResponse struct {
	Status   string           `json:"status"`
	Products []productPayload `json:"products"`
}

// productPayload is one catalog product row. The detail endpoint returns the
// same shape flattened at the top level, with prices in integer pennies.
type productPayload struct {
	Status           string      `json:"status,omitempty"`
	ID               json.Number `json:"id"`
	ProductName      string      `json:"product-name"`
	ConsoleName      string      `json:"console-name"`
	LoosePrice       int         `json:"loose-price"`
	GradedPrice      int         `json:"graded-price"`
	ManualOnlyPrice  int         `json:"manual-only-price"`
	BoxOnlyPrice     int         `json:"box-only-price"`
	BGS10Price       int         `json:"bgs-10-price"`
	Condition17Price int         `json:"condition-17-price"`
	Condition18Price int         `json:"condition-18-price"`
}

// SearchProducts runs a free-text catalog search. A non-success upstream
// status means zero candidates, not an error.
func (c *Client) SearchProducts(ctx context.Context, query string) ([]domain.CatalogProduct, error) {
	params := url.Values{}
	params.Set("t", c.apiKey)
	params.Set("q", query)
	reqURL := fmt.Sprintf("%s/api/products?%s", c.baseURL, params.Encode())

	var resp searchResponse
	if err := c.fetchJSON(ctx, reqURL, "search", &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		c.debugLog("search status %q for query %q, treating as zero candidates", resp.Status, query)
		return nil, nil
	}

	products := make([]domain.CatalogProduct, 0, len(resp.Products))
	for _, p := range resp.Products {
		products = append(products, toDomainProduct(p))
	}
	c.debugLog("search %q returned %d candidates", query, len(products))
	return products, nil
}

// GetProduct fetches detail pricing for one product. A non-success upstream
// status is treated the same as search: no product, no error.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.CatalogProduct, error) {
	params := url.Values{}
	params.Set("t", c.apiKey)
	params.Set("id", id)
	reqURL := fmt.Sprintf("%s/api/product?%s", c.baseURL, params.Encode())

	var payload productPayload
	if err := c.fetchJSON(ctx, reqURL, "detail", &payload); err != nil {
		return nil, err
	}
	if payload.Status != "success" {
		c.debugLog("detail status %q for id %s, treating as no product", payload.Status, id)
		return nil, nil
	}

	product := toDomainProduct(payload)
	return &product, nil
}

// fetchJSON issues a GET and decodes the JSON response into out, retrying
// transient failures with exponential backoff. tag labels log lines for
// operational visibility.
func (c *Client) fetchJSON(ctx context.Context, reqURL, tag string, out interface{}) error {
	var lastErr *domain.CatalogError

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt, lastErr)
			log.Printf("[CATALOG] %s: retry %d/%d in %s after: %v", tag, attempt, c.retries, delay, lastErr)
			select {
			case <-ctx.Done():
				return &domain.CatalogError{Message: ctx.Err().Error(), Retryable: false, Timeout: true}
			case <-time.After(delay):
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return &domain.CatalogError{Message: fmt.Sprintf("rate limiter: %v", err), Timeout: true}
		}

		cerr := c.doAttempt(ctx, reqURL, out)
		if cerr == nil {
			return nil
		}
		if !cerr.Retryable {
			log.Printf("[CATALOG] %s: terminal failure: %v", tag, cerr)
			return cerr
		}
		lastErr = cerr
	}

	log.Printf("[CATALOG] %s: retry budget exhausted: %v", tag, lastErr)
	return lastErr
}

// doAttempt performs a single request/response cycle and classifies any
// failure. It never retries on its own.
func (c *Client) doAttempt(ctx context.Context, reqURL string, out interface{}) *domain.CatalogError {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &domain.CatalogError{Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "cardlens/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		timedOut := reqCtx.Err() != nil || isTimeoutMessage(err.Error())
		return &domain.CatalogError{
			Message:   err.Error(),
			Retryable: true,
			Timeout:   timedOut,
		}
	}
	defer resp.Body.Close()

	// Read as text first; classification must inspect the raw body before
	// anything attempts JSON parsing.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &domain.CatalogError{Message: fmt.Sprintf("read body: %v", err), Status: resp.StatusCode, Retryable: true}
	}

	contentType := resp.Header.Get("Content-Type")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify(resp.StatusCode, body, contentType)
	}

	// A 2xx whose body is HTML is itself a (rarer) interception signature
	// and follows the same classification path as the non-2xx case.
	if !jsonLike(contentType, body) {
		return classify(resp.StatusCode, body, contentType)
	}

	if err := json.Unmarshal(body, out); err != nil {
		// A malformed 2xx body will not fix itself.
		return &domain.CatalogError{
			Message: fmt.Sprintf("malformed JSON response: %v", err),
			Status:  resp.StatusCode,
		}
	}
	return nil
}

// classify maps an unusable response to the error taxonomy. Cloudflare
// interception retries only on 429: retrying a 403 block is futile and must
// not hammer the upstream.
func classify(status int, body []byte, contentType string) *domain.CatalogError {
	text := strings.ToLower(string(body))

	if looksIntercepted(text, contentType) {
		return &domain.CatalogError{
			Message:   fmt.Sprintf("blocked by anti-bot challenge (status %d)", status),
			Status:    status,
			Retryable: status == http.StatusTooManyRequests,
			Blocked:   true,
		}
	}

	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable:
		return &domain.CatalogError{
			Message:   fmt.Sprintf("upstream transient failure: %s", snippet(text)),
			Status:    status,
			Retryable: true,
		}
	}

	if isTimeoutMessage(text) {
		return &domain.CatalogError{
			Message:   fmt.Sprintf("upstream timeout: %s", snippet(text)),
			Status:    status,
			Retryable: true,
			Timeout:   true,
		}
	}

	return &domain.CatalogError{
		Message: fmt.Sprintf("unexpected response: %s", snippet(text)),
		Status:  status,
	}
}

// looksIntercepted reports whether a response body is an anti-bot challenge
// page rather than an API payload.
func looksIntercepted(lowerBody, contentType string) bool {
	isHTML := strings.Contains(strings.ToLower(contentType), "text/html") ||
		strings.Contains(lowerBody, "<html")
	if !isHTML {
		return false
	}
	for _, marker := range cloudflareMarkers {
		if strings.Contains(lowerBody, marker) {
			return true
		}
	}
	return false
}

// jsonLike validates the Content-Type guard for 2xx responses before any
// parse attempt. Some proxies omit the header, so an opening brace/bracket
// also qualifies.
func jsonLike(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

func isTimeoutMessage(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "timeout") || strings.Contains(s, "timed out") ||
		strings.Contains(s, "deadline exceeded")
}

// backoff scales the base delay by attempt index, capped per failure class:
// rate-limit and Cloudflare backoff is held longer than plain transient
// failures.
func backoff(attempt int, last *domain.CatalogError) time.Duration {
	d := baseBackoff * time.Duration(1<<(attempt-1))
	cap := transientCap
	if last != nil && (last.Blocked || last.Status == http.StatusTooManyRequests) {
		cap = throttleCap
	}
	if d > cap {
		d = cap
	}
	return d
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
