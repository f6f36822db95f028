package client

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/zfogg/nearby/cli/pkg/config"
	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/logger"
)

// UserAgent is sent with every request.
const UserAgent = "Nearby-CLI/0.1.0"

// TokenSource supplies the bearer token for authenticated requests. An
// empty token with a nil error means nobody is logged in.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource that always returns itself.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token() (string, error) { return string(t), nil }

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenSource
}

// Client is the REST client. Construct one per process and pass it to the
// services that need it.
type Client struct {
	http   *resty.Client
	tokens TokenSource
}

// New creates a client.
func New(opts Options) *Client {
	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseURL)
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}
	httpClient.SetHeader("User-Agent", UserAgent)
	httpClient.SetHeader("Accept", "application/json")

	// Add request/response logging
	httpClient.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		requestID := uuid.NewString()
		req.SetHeader("X-Request-ID", requestID)
		logger.Debug("HTTP Request", "method", req.Method, "url", req.URL, "request_id", requestID)
		return nil
	})

	httpClient.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.Debug("HTTP Response",
			"status", resp.StatusCode(),
			"url", resp.Request.URL,
			"duration", resp.Time(),
			"request_id", resp.Request.Header.Get("X-Request-ID"))
		return nil
	})

	return &Client{http: httpClient, tokens: opts.Tokens}
}

// NewFromConfig creates a client from api.* configuration.
func NewFromConfig(tokens TokenSource) *Client {
	return New(Options{
		BaseURL: config.GetString("api.base_url"),
		Timeout: config.GetSeconds("api.timeout"),
		Tokens:  tokens,
	})
}

// R starts an anonymous request bound to ctx.
func (c *Client) R(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// AuthR starts a request carrying the bearer token. It fails with an auth
// error when nobody is logged in, and with the token source's error (e.g.
// an expired session) when the token cannot be used.
func (c *Client) AuthR(ctx context.Context) (*resty.Request, error) {
	if c.tokens == nil {
		return nil, clierrors.AuthError("Not logged in")
	}
	token, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, clierrors.AuthError("Not logged in")
	}
	return c.R(ctx).SetAuthToken(token), nil
}

// WithTokens returns a client sharing the transport but using tokens.
func (c *Client) WithTokens(tokens TokenSource) *Client {
	return &Client{http: c.http, tokens: tokens}
}
