package server

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/chazu/bcverify/wire"
)

// Client calls a remote verifier service.
type Client struct {
	verify *connect.Client[wire.VerifyRequest, wire.Report]
}

// NewClient creates a client for the service at baseURL, e.g.
// "http://localhost:8787".
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts = append([]connect.ClientOption{WithCBOR()}, opts...)
	return &Client{
		verify: connect.NewClient[wire.VerifyRequest, wire.Report](
			httpClient, strings.TrimRight(baseURL, "/")+VerifyProcedure, opts...),
	}
}

// Verify sends req and returns the server's report.
func (c *Client) Verify(ctx context.Context, req *wire.VerifyRequest) (*wire.Report, error) {
	resp, err := c.verify.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
