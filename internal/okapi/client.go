// Package okapi is a small client for the FOLIO Okapi gateway and the
// backend modules behind it.
package okapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/codebypatrickleung/folio-migration-cli/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	HeaderTenant = "X-Okapi-Tenant"
	HeaderToken  = "X-Okapi-Token"

	defaultTimeout = 2 * time.Minute
)

// Error is returned for any response outside the 2xx range.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), body)
}

// Client sends authenticated JSON requests. Relative paths are resolved
// against the Okapi URL; absolute URLs are used as given.
type Client struct {
	baseURL    string
	tenant     string
	token      string
	httpClient *http.Client
	logger     *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithToken sets the token sent with every request.
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

// NewClient creates a Client for the Okapi at baseURL acting for tenant.
func NewClient(baseURL, tenant string, log *logger.Logger, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid okapi url %q: %w", baseURL, err)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tenant:     tenant,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the token currently in use.
func (c *Client) Token() string {
	return c.token
}

// Create posts body to a collection and returns the response body.
func (c *Client) Create(ctx context.Context, collectionPath string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, collectionPath, body)
}

// Update puts body to a resource and returns the response body.
func (c *Client) Update(ctx context.Context, resourcePath string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPut, resourcePath, body)
}

// Delete removes a resource.
func (c *Client) Delete(ctx context.Context, resourcePath string) error {
	_, err := c.do(ctx, http.MethodDelete, resourcePath, nil)
	return err
}

// Get fetches a resource and returns the response body.
func (c *Client) Get(ctx context.Context, resourcePath string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, resourcePath, nil)
}

// Resolve turns path into an absolute URL.
func (c *Client) Resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	defer closeResponse(resp)
	return readBody(method, c.Resolve(path), resp)
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	target := c.Resolve(path)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s %s body: %w", method, target, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, target, err)
	}
	req.Header.Set("Accept", "application/json, text/plain")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tenant != "" {
		req.Header.Set(HeaderTenant, c.tenant)
	}
	if c.token != "" {
		req.Header.Set(HeaderToken, c.token)
	}

	c.logger.Debugf("%s %s", method, target)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, target, err)
	}
	return resp, nil
}

func readBody(method, target string, resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s response: %w", method, target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Method: method, URL: target, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// closeResponse drains a little of the body so the connection can be reused.
func closeResponse(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		const maxBodySlurpSize = 2 << 10
		_, _ = io.CopyN(io.Discard, resp.Body, maxBodySlurpSize)
		_ = resp.Body.Close()
	}
}
