package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/darmiel/linkgate/internal/api/middleware"
	"github.com/darmiel/linkgate/internal/api/presenter"
	"github.com/darmiel/linkgate/internal/core"
)

var ErrInvalidSession = fmt.Errorf("invalid session token")

// APIError is an error response of the server.
type APIError struct {
	StatusCode    int
	CorrelationID string
	Message       string

	Platform       core.Platform
	UpstreamStatus int
	UpstreamBody   string
}

func (e APIError) Error() string {
	return fmt.Sprintf("api error %d: '%s' (correlation: %s)", e.StatusCode, e.Message, e.CorrelationID)
}

func (c *Client) get(ctx context.Context, url string, result any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, url string, payload, result any) (string, error) {
	var body io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshaling payload: %w", err)
		}
		body = bytes.NewBuffer(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, result)
}

func parseErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status %d and unreadable body: %w", resp.StatusCode, err)
	}

	var errResp presenter.ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		if errResp.Error == "invalid session token" {
			return ErrInvalidSession
		}
		return APIError{
			StatusCode:     resp.StatusCode,
			CorrelationID:  errResp.CorrelationID,
			Message:        errResp.Error,
			Platform:       errResp.Platform,
			UpstreamStatus: errResp.UpstreamStatus,
			UpstreamBody:   errResp.UpstreamBody,
		}
	}
	return fmt.Errorf("api error: *unparsed '%s' (status %d)", string(body), resp.StatusCode)
}

// do sends req and decodes a successful response into result.
// It returns the correlation id of the response.
func (c *Client) do(req *http.Request, result any) (string, error) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connection failed: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	correlation := resp.Header.Get(middleware.CorrelationIDHeader)
	if resp.StatusCode >= 400 {
		return correlation, parseErrorResponse(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return correlation, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return correlation, nil
}
