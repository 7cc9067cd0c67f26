// Package chroma implements index.Client against the Chroma v2 REST API.
package chroma

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/poiesic/docstage/core"
	"github.com/poiesic/docstage/index"
)

// Defaults for a local Chroma server.
const (
	DefaultURL      = "http://localhost:8000"
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"
	DefaultTimeout  = 30 * time.Second
)

// Client implements index.Client for a Chroma server.
type Client struct {
	http     *resty.Client
	tenant   string
	database string
	logger   *slog.Logger
}

var (
	_ index.Client        = (*Client)(nil)
	_ index.HealthChecker = (*Client)(nil)
)

type options struct {
	tenant     string
	database   string
	token      string
	timeout    time.Duration
	logger     *slog.Logger
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*options) error

// WithTenant sets the Chroma tenant.
func WithTenant(tenant string) Option {
	return func(o *options) error {
		if tenant == "" {
			return fmt.Errorf("%w: tenant is empty", core.ErrConfiguration)
		}
		o.tenant = tenant
		return nil
	}
}

// WithDatabase sets the Chroma database.
func WithDatabase(database string) Option {
	return func(o *options) error {
		if database == "" {
			return fmt.Errorf("%w: database is empty", core.ErrConfiguration)
		}
		o.database = database
		return nil
	}
}

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(o *options) error {
		o.token = token
		return nil
	}
}

// WithTimeout bounds each request.
// Default is 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("%w: timeout must be positive", core.ErrConfiguration)
		}
		o.timeout = d
		return nil
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) error {
		o.httpClient = c
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewClient creates a client for the server at baseURL, for example
// "http://chroma:8000". No request is made until a collection is opened.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	o := options{
		tenant:   DefaultTenant,
		database: DefaultDatabase,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid chroma url %q", core.ErrConfiguration, baseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: chroma url scheme must be http or https, got %s", core.ErrConfiguration, parsed.Scheme)
	}

	var rc *resty.Client
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(o.timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if o.token != "" {
		rc.SetAuthToken(o.token)
	}

	return &Client{
		http:     rc,
		tenant:   o.tenant,
		database: o.database,
		logger:   o.logger.With("component", "chroma", "url", baseURL),
	}, nil
}

func (c *Client) collectionsPath() string {
	return fmt.Sprintf("/api/v2/tenants/%s/databases/%s/collections",
		url.PathEscape(c.tenant), url.PathEscape(c.database))
}

// Heartbeat checks that the server is reachable. index.Connect calls it
// before each attempt.
func (c *Client) Heartbeat(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/v2/heartbeat", nil, nil)
	return err
}

type createCollectionRequest struct {
	Name        string `json:"name"`
	GetOrCreate bool   `json:"get_or_create"`
}

type collectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetOrCreateCollection implements index.Client.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string) (index.Collection, error) {
	if err := index.ValidateCollectionName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexRejected, err)
	}

	var out collectionResponse
	_, err := c.do(ctx, http.MethodPost, c.collectionsPath(),
		createCollectionRequest{Name: name, GetOrCreate: true}, &out)
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: server returned collection without id", core.ErrIndexRejected)
	}

	c.logger.Debug("collection ready", "collection", name, "id", out.ID)
	return &Collection{
		client: c,
		id:     out.ID,
		name:   name,
		path:   c.collectionsPath() + "/" + url.PathEscape(out.ID),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do sends a request and classifies failures: transport errors and
// 429/502/503/504 are core.ErrIndexUnavailable, every other failure is
// core.ErrIndexRejected, including a body that does not decode.
func (c *Client) do(ctx context.Context, method, path string, body, result any) (*resty.Response, error) {
	var apiErr errorResponse
	req := c.http.R().SetContext(ctx).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if resp == nil || resp.StatusCode() == 0 {
			return nil, fmt.Errorf("%w: %s %s: %w", core.ErrIndexUnavailable, method, path, err)
		}
		// The server answered but the body could not be decoded.
		kind := core.ErrIndexRejected
		if transientStatus(resp.StatusCode()) {
			kind = core.ErrIndexUnavailable
		}
		return resp, fmt.Errorf("%w: %s %s: status %d: decode response: %w", kind, method, path, resp.StatusCode(), err)
	}

	if resp.IsError() {
		detail := apiErr.Message
		if detail == "" {
			detail = apiErr.Error
		}
		if detail == "" {
			detail = strings.TrimSpace(resp.String())
		}
		kind := core.ErrIndexRejected
		if transientStatus(resp.StatusCode()) {
			kind = core.ErrIndexUnavailable
		}
		return resp, fmt.Errorf("%w: %s %s: status %d: %s", kind, method, path, resp.StatusCode(), detail)
	}
	return resp, nil
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

