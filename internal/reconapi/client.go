package reconapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/CosmoTheDev/reconctl/internal/config"
	"github.com/CosmoTheDev/reconctl/models"
)

// maxBodyBytes caps response bodies. Snapshots carry screenshots inline as
// data URIs, so this is much larger than a typical JSON API response.
const maxBodyBytes = 16 << 20

// Client talks to the recon service. It is safe for concurrent use. The rate
// limiter covers submissions, listings and health checks; status fetches
// bypass it because each poll session already paces itself.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// New returns a Client configured from cfg.
func New(cfg config.APIConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = config.DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// BaseURL returns the service root this client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Submit creates a scan via POST /api/scan. Every failure, including a blank
// domain, is returned as *SubmissionError.
func (c *Client) Submit(ctx context.Context, domain string, scanTypes []string) (*JobHandle, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, &SubmissionError{Domain: domain, Err: ErrEmptyDomain}
	}
	if len(scanTypes) == 0 {
		scanTypes = DefaultScanTypes
	}

	body, err := json.Marshal(SubmitRequest{Domain: domain, ScanTypes: scanTypes})
	if err != nil {
		return nil, &SubmissionError{Domain: domain, Err: fmt.Errorf("encoding request: %w", err)}
	}
	resp, err := c.do(ctx, "submit scan", http.MethodPost, "/api/scan", bytes.NewReader(body))
	if err != nil {
		return nil, &SubmissionError{Domain: domain, Err: err}
	}

	var out JobHandle
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, &SubmissionError{Domain: domain, Err: &ParseError{Op: "submit scan", Err: err}}
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, &SubmissionError{Domain: domain, Err: &ParseError{Op: "submit scan", Err: errors.New("response has no id")}}
	}
	return &out, nil
}

// GetScan fetches the current snapshot of one scan via GET /api/scan/{id}.
// Transport failures are *FetchError; unexpected shapes are *ParseError.
func (c *Client) GetScan(ctx context.Context, id string) (*models.Scan, error) {
	op := "get scan " + id
	resp, err := c.send(ctx, op, http.MethodGet, "/api/scan/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var scan models.Scan
	if err := json.Unmarshal(resp, &scan); err != nil {
		return nil, &ParseError{Op: op, Err: err}
	}
	if err := scan.Validate(); err != nil {
		return nil, &ParseError{Op: op, Err: err}
	}
	if scan.ID != id {
		return nil, &ParseError{Op: op, Err: fmt.Errorf("snapshot belongs to job %q", scan.ID)}
	}
	return &scan, nil
}

// ListScans returns every scan the service knows about via GET /api/scans.
func (c *Client) ListScans(ctx context.Context) ([]models.Scan, error) {
	const op = "list scans"
	resp, err := c.do(ctx, op, http.MethodGet, "/api/scans", nil)
	if err != nil {
		return nil, err
	}

	var scans []models.Scan
	if err := json.Unmarshal(resp, &scans); err != nil {
		return nil, &ParseError{Op: op, Err: err}
	}
	return scans, nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	const op = "health check"
	resp, err := c.do(ctx, op, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	var out HealthStatus
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, &ParseError{Op: op, Err: err}
	}
	return &out, nil
}

// do is send behind the rate limiter.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Op: op, Err: fmt.Errorf("waiting for rate limiter: %w", err)}
		}
	}
	return c.send(ctx, op, method, path, body)
}

// send executes an HTTP request and returns the response body.
// Non-2xx responses are converted to *FetchError with a descriptive message.
func (c *Client) send(ctx context.Context, op, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &FetchError{Op: op, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req) // #nosec G107 -- baseURL is user-configured
	if err != nil {
		return nil, &FetchError{Op: op, Err: fmt.Errorf("request to %s failed: %w", c.baseURL+path, err)}
	}
	defer res.Body.Close() //nolint:errcheck

	b, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		// FastAPI reports errors as {"detail": "..."}.
		var apiErr struct {
			Detail  any    `json:"detail"`
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		msg := http.StatusText(res.StatusCode)
		if jsonErr := json.Unmarshal(b, &apiErr); jsonErr == nil {
			switch {
			case apiErr.Error != "":
				msg = apiErr.Error
			case apiErr.Message != "":
				msg = apiErr.Message
			case apiErr.Detail != nil:
				msg = fmt.Sprint(apiErr.Detail)
			}
		}
		return nil, &FetchError{Op: op, StatusCode: res.StatusCode, Err: errors.New(msg)}
	}

	return b, nil
}
