// Package narrative is a thin HTTP client for the Narrative data marketplace API.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prismon/narrative-mcp/internal/models"
	"github.com/prismon/narrative-mcp/pkg/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("narrative")
}

const (
	userAgent = "narrative-mcp/0.1.0"

	// maxErrorBody bounds how much of a failed response is kept in APIError
	maxErrorBody = 4096
)

// APIError is returned for any non-2xx response
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client talks to the Narrative API with a bearer token
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit caps outgoing requests per second. Non-positive disables it.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("api url is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("api token is required")
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		token:      token,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchAttributes searches Rosetta Stone attributes
func (c *Client) FetchAttributes(ctx context.Context, query string, page, perPage int) (*models.AttributeResponse, error) {
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	var resp models.AttributeResponse
	if err := c.get(ctx, "attributes", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch attributes: %w", err)
	}
	return &resp, nil
}

// FetchDatasets lists the datasets visible to the token's account
func (c *Client) FetchDatasets(ctx context.Context) (*models.DatasetResponse, error) {
	var resp models.DatasetResponse
	if err := c.get(ctx, "datasets", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch datasets: %w", err)
	}
	return &resp, nil
}

// FetchDatasetByID fetches a single dataset document
func (c *Client) FetchDatasetByID(ctx context.Context, id string) (*models.Dataset, error) {
	if id == "" {
		return nil, fmt.Errorf("dataset id is required")
	}

	var dataset models.Dataset
	if err := c.get(ctx, "datasets/"+url.PathEscape(id), nil, &dataset); err != nil {
		return nil, fmt.Errorf("failed to fetch dataset %s: %w", id, err)
	}
	return &dataset, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.baseURL.JoinPath(path)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	log.WithFields(logrus.Fields{
		"path":     u.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Milliseconds(),
	}).Debug("Narrative API request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:     http.MethodGet,
			Path:       u.Path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
