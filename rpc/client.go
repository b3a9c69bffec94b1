package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	stateflow "github.com/goliatone/go-stateflow"
)

// Client executes remote plan segments against a Server peer. It satisfies
// the runner's RemoteExecutor contract.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient builds a client for the peer at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// ExecuteRemote posts the remote segment and decodes the produced values.
func (c *Client) ExecuteRemote(ctx context.Context, batchID string, args []stateflow.ExecutionArg, plan []stateflow.CallbackID) ([]stateflow.ExecutionArg, error) {
	body, err := json.Marshal(ExecuteRequest{BatchID: batchID, Args: args, Plan: plan})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "encode execute request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+DefaultExecutePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "execute request failed")
	}
	defer resp.Body.Close()

	var envelope ExecuteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&envelope); err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "decode execute response").
			WithMetadata(map[string]any{"status": resp.StatusCode})
	}
	if envelope.Error != nil {
		return nil, errors.Wrap(envelope.Error, errors.CategoryExternal, "peer rejected execution").
			WithTextCode(envelope.Error.Code)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(fmt.Sprintf("unexpected status %d from peer", resp.StatusCode), errors.CategoryExternal)
	}
	return envelope.Args, nil
}
