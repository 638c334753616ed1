package kite

import (
	"net/http"
	"net/url"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.kite.trade"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=kite_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the primary quote provider's REST API. Construct it in
// the composition root and inject it; the client itself carries no global
// state and is safe for concurrent use.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient issues the requests.
	httpClient HTTPClient
	// header contains additional headers sent with each request.
	header http.Header
	// query contains additional query parameters sent with each request.
	query url.Values
	// limiter gates outbound calls when set.
	limiter *rate.Limiter
}

// Option is a configuration option for the client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader adds headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithRateLimit caps outbound calls to rps requests per second with the
// given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			if burst <= 0 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// NewClient creates a provider client authenticated with the given API key
// and access token.
func NewClient(apiKey, accessToken string, options ...Option) (*Client, error) {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
	}
	if apiKey != "" {
		// Kite v3 authenticates every call with this header pair.
		c.header.Set("X-Kite-Version", "3")
		c.header.Set("Authorization", "token "+apiKey+":"+accessToken)
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}
