// Package upstream contains the HTTP plumbing shared by the platform clients.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/linkgate/internal/api/middleware"
	"github.com/darmiel/linkgate/internal/audit"
	"github.com/darmiel/linkgate/internal/core"
)

const (
	DefaultTimeout = 15 * time.Second

	// maxBodySize caps how much of an upstream response is read.
	maxBodySize = 1 << 20
)

// Client performs requests against one platform.
type Client struct {
	Platform core.Platform
	HTTP     *http.Client
}

func New(platform core.Platform, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{Platform: platform, HTTP: httpClient}
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Get issues a GET request with the given query parameters.
func (c *Client) Get(ctx context.Context, operation, endpoint string, query url.Values) (*Response, error) {
	u := endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.do(ctx, operation, req)
}

// PostForm issues a form-encoded POST request.
func (c *Client) PostForm(ctx context.Context, operation, endpoint string, form url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(ctx, operation, req)
}

// PostJSON issues a POST request with a JSON body.
func (c *Client) PostJSON(ctx context.Context, operation, endpoint string, payload any) (*Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, operation, req)
}

func (c *Client) do(ctx context.Context, operation string, req *http.Request) (*Response, error) {
	req.Header.Set("Accept", "application/json")

	// inject audit user-agent
	correlationID := middleware.CorrelationCtx(ctx)
	req.Header.Set("User-Agent", audit.CreateUserAgent(correlationID, string(c.Platform), operation))

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	log.Ctx(ctx).Debug().
		Str("platform", string(c.Platform)).
		Str("operation", operation).
		Str("host", req.URL.Host).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("upstream call")

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// ExchangeFailure builds the ExchangeError for a failed call.
// resp may be nil for transport failures.
func (c *Client) ExchangeFailure(resp *Response, err error) *core.ExchangeError {
	e := &core.ExchangeError{Platform: c.Platform, Err: err}
	if resp != nil {
		e.HTTPStatus = resp.StatusCode
		e.UpstreamBody = string(resp.Body)
	}
	if e.Err == nil {
		e.Err = fmt.Errorf("unexpected status code: %d", e.HTTPStatus)
	}
	return e
}

// IntrospectionFailure builds the IntrospectionError for a failed call.
func (c *Client) IntrospectionFailure(resp *Response, err error) *core.IntrospectionError {
	e := &core.IntrospectionError{Platform: c.Platform, Err: err}
	if resp != nil {
		e.HTTPStatus = resp.StatusCode
		e.UpstreamBody = string(resp.Body)
	}
	if e.Err == nil {
		e.Err = fmt.Errorf("unexpected status code: %d", e.HTTPStatus)
	}
	return e
}

// JoinURL appends path to a configured base URL.
func JoinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
