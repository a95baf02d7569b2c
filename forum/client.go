// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agora-forum/agora/lib/netutil"
	"github.com/agora-forum/agora/lib/version"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the API origin (the API_URL setting), for example
	// "https://agora.example.com". Endpoints live under /api.
	BaseURL string

	// WebSocketURL is the realtime origin (the WS_URL setting). If
	// empty it is derived from BaseURL by switching http to ws and
	// https to wss.
	WebSocketURL string

	// HTTPClient is used for all requests. If nil, a client with a 30
	// second timeout is used. Sessions copy it and attach a cookie jar.
	HTTPClient *http.Client

	// Cache, if set, stores successful GET responses and serves them
	// when the API cannot be reached.
	Cache ResponseCache

	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger
}

// ResponseCache persists GET responses for offline reads. Keys are
// opaque strings built from the request method and URL and, for a
// session, the account the request was made as.
type ResponseCache interface {
	Get(ctx context.Context, key string) (body []byte, storedAt time.Time, ok bool, err error)
	Put(ctx context.Context, key string, body []byte) error
}

// Client is an unauthenticated forum client. It is safe for
// concurrent use.
type Client struct {
	baseURL      string
	webSocketURL string
	httpClient   *http.Client
	cache        ResponseCache
	logger       *slog.Logger

	// refresh is set on a Session's client. It renews the auth
	// cookies after a 401 so the request can be retried once.
	refresh func(ctx context.Context) error

	// account is set on a Session's client. It names the signed-in
	// account so cached responses are never served across accounts.
	account func() string

	// noRefresh marks a client whose 401s are final.
	noRefresh bool
}

// NewClient creates a new unauthenticated client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("forum: BaseURL is required")
	}
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("forum: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("forum: BaseURL %q must be http or https", config.BaseURL)
	}

	webSocketURL := config.WebSocketURL
	if webSocketURL == "" {
		webSocketURL = "ws" + strings.TrimPrefix(config.BaseURL, "http")
	}
	socket, err := url.Parse(webSocketURL)
	if err != nil {
		return nil, fmt.Errorf("forum: invalid WebSocketURL %q: %w", webSocketURL, err)
	}
	if socket.Scheme != "ws" && socket.Scheme != "wss" {
		return nil, fmt.Errorf("forum: WebSocketURL %q must be ws or wss", webSocketURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		webSocketURL: strings.TrimRight(webSocketURL, "/"),
		httpClient:   httpClient,
		cache:        config.Cache,
		logger:       logger,
	}, nil
}

// BaseURL returns the API origin without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// WebSocketURL returns the realtime origin without a trailing slash.
func (c *Client) WebSocketURL() string { return c.webSocketURL }

// CloseIdleConnections drops pooled connections, forcing fresh ones
// after a network change.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// get performs a GET and decodes the JSON response into result.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("forum: decoding GET %s response: %w", path, err)
	}
	return nil
}

// send performs a mutating request and decodes the JSON response into
// result when result is non-nil.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body requestBody, result any) error {
	responseBody, err := c.doRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if result == nil || len(responseBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(responseBody, result); err != nil {
		return fmt.Errorf("forum: decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// doRequest performs one API call and returns the response body.
// On 4xx/5xx it returns an *APIError. A 401 on a session client
// triggers one cookie refresh and retry. GET responses go through the
// response cache when one is configured.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body requestBody) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	responseBody, err := c.roundTrip(ctx, method, path, requestURL, body)
	if err != nil && c.refresh != nil && !c.noRefresh && IsUnauthorized(err) {
		if refreshErr := c.refresh(ctx); refreshErr != nil {
			c.logger.Debug("session refresh failed", "path", path, "error", refreshErr)
			return nil, err
		}
		responseBody, err = c.roundTrip(ctx, method, path, requestURL, body)
	}

	if method != http.MethodGet || c.cache == nil {
		return responseBody, err
	}

	cacheKey, ok := c.cacheKey(method, requestURL)
	if !ok {
		return responseBody, err
	}
	if err == nil {
		if putErr := c.cache.Put(ctx, cacheKey, responseBody); putErr != nil {
			c.logger.Warn("caching response failed", "path", path, "error", putErr)
		}
		return responseBody, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) || ctx.Err() != nil {
		return nil, err
	}
	cached, storedAt, ok, cacheErr := c.cache.Get(ctx, cacheKey)
	if cacheErr != nil || !ok {
		return nil, err
	}
	c.logger.Warn("API unreachable, serving cached response",
		"path", path,
		"cached_at", storedAt,
		"error", err,
	)
	return cached, nil
}

// cacheKey builds the response cache key for a request. A session
// whose account cannot be read from its access token does not use the
// cache.
func (c *Client) cacheKey(method, requestURL string) (string, bool) {
	key := method + " " + requestURL
	if c.account == nil {
		return key, true
	}
	account := c.account()
	if account == "" {
		return "", false
	}
	return "account " + account + " " + key, true
}

// withoutRefresh returns a copy of c whose 401 responses are returned
// as they are, for calls where a 401 means the password was wrong.
func (c *Client) withoutRefresh() *Client {
	bare := *c
	bare.noRefresh = true
	return &bare
}

// roundTrip sends a single HTTP request.
func (c *Client) roundTrip(ctx context.Context, method, path, requestURL string, body requestBody) ([]byte, error) {
	var encoded *encodedBody
	if body != nil {
		var err error
		encoded, err = body.encode()
		if err != nil {
			return nil, fmt.Errorf("forum: encoding %s %s body: %w", method, path, err)
		}
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("forum: creating request: %w", err)
	}
	if encoded != nil {
		request.Body = encoded.reader()
		request.ContentLength = int64(len(encoded.data))
		request.GetBody = func() (io.ReadCloser, error) { return encoded.reader(), nil }
		request.Header.Set("Content-Type", encoded.contentType)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("forum: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("forum: reading %s %s response: %w", method, path, err)
	}

	c.logger.Debug("forum request",
		"method", method,
		"path", path,
		"status", response.StatusCode,
		"bytes", len(responseBody),
	)

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}
	return nil, parseAPIError(method, path, response.StatusCode, responseBody)
}

// pageQuery builds the size/page query every list endpoint takes.
func pageQuery(page, size int) url.Values {
	if page < 1 {
		page = 1
	}
	query := url.Values{}
	if size > 0 {
		query.Set("size", fmt.Sprint(size))
	}
	query.Set("page", fmt.Sprint(page))
	return query
}

// pathSegment escapes one user-supplied path element.
func pathSegment(value string) string {
	return url.PathEscape(value)
}
