package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/feedauth-go/internal/infra/buildinfo"
)

// DefaultServer is the auth server used when none is configured.
const DefaultServer = "http://localhost:8080"

// Config configures an HTTPClient.
type Config struct {
	// Server is the base URL. A missing scheme defaults to http://.
	Server string

	// Timeout bounds each request. Default: 30s.
	Timeout time.Duration

	// RateLimit is the sustained requests per second. Zero disables pacing.
	RateLimit float64

	// Burst is the limiter bucket size. Default: 1.
	Burst int

	// TLS overrides the transport's TLS settings when non-nil.
	TLS *tls.Config
}

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient creates a new HTTP client.
func NewHTTPClient(cfg Config) *HTTPClient {
	baseURL := strings.TrimRight(NormalizeServer(cfg.Server), "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	client := &http.Client{Timeout: timeout}
	if cfg.TLS != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = cfg.TLS
		client.Transport = transport
	}

	return &HTTPClient{
		baseURL: baseURL,
		client:  client,
		limiter: limiter,
	}
}

// NormalizeServer adds http:// to a bare host[:port] and falls back to
// DefaultServer when empty.
func NormalizeServer(server string) string {
	server = strings.TrimSpace(server)
	if server == "" {
		return DefaultServer
	}
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		return "http://" + server
	}
	return server
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Put performs a PUT request with JSON body.
func (c *HTTPClient) Put(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// errorBody is the JSON error shape the auth server may send.
type errorBody struct {
	Message string `json:"message"`
}

// serverMessage extracts a "message" field from an error response body.
// It returns "" if the body is not JSON or has no message.
func serverMessage(body []byte) string {
	var e errorBody
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return strings.TrimSpace(e.Message)
}
