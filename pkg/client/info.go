package client

import (
	"context"

	"github.com/darmiel/linkgate/internal/api"
)

// Info returns the build info and platform capabilities of the server.
func (c *Client) Info(ctx context.Context) (*api.AboutResponse, string, error) {
	var info api.AboutResponse
	correlation, err := c.get(ctx, c.url().
		setPath(api.AboutRoute).
		build(), &info)
	if err != nil {
		return nil, correlation, err
	}
	return &info, correlation, nil
}
