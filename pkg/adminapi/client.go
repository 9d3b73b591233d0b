package adminapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is a thin wrapper over one node's admin HTTP API, for raftctl
// and other operator tooling.
type Client struct {
	addr       string
	httpClient *http.Client
}

// NewClient returns a Client pointed at a node's admin listener address
// (host:port, no scheme).
func NewClient(addr string) *Client {
	return &Client{addr: addr, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

func (c *Client) post(path string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpResp, err := c.httpClient.Post(fmt.Sprintf("http://%s%s", c.addr, path), "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("adminapi: request %s: %w", path, err)
	}
	defer httpResp.Body.Close()
	return json.NewDecoder(httpResp.Body).Decode(resp)
}

// Apply submits payloads as a single replicated batch.
func (c *Client) Apply(payloads [][]byte) (Response, error) {
	var resp Response
	err := c.post("/v1/apply", ApplyRequest{Payloads: payloads}, &resp)
	return resp, toAPIError(err, resp)
}

// Barrier waits for every prior Apply on the current leader to commit.
func (c *Client) Barrier() (Response, error) {
	var resp Response
	err := c.post("/v1/barrier", struct{}{}, &resp)
	return resp, toAPIError(err, resp)
}

// Add registers a new non-voting member.
func (c *Client) Add(id uint64, address string) (Response, error) {
	var resp Response
	err := c.post("/v1/add", AddRequest{ID: id, Address: address}, &resp)
	return resp, toAPIError(err, resp)
}

// Assign changes an existing member's role.
func (c *Client) Assign(id uint64, role string) (Response, error) {
	var resp Response
	err := c.post("/v1/assign", AssignRequest{ID: id, Role: role}, &resp)
	return resp, toAPIError(err, resp)
}

// Remove drops a member from the configuration.
func (c *Client) Remove(id uint64) (Response, error) {
	var resp Response
	err := c.post("/v1/remove", RemoveRequest{ID: id}, &resp)
	return resp, toAPIError(err, resp)
}

// Transfer hands off leadership to target (0 lets the leader pick).
func (c *Client) Transfer(target uint64) (Response, error) {
	var resp Response
	err := c.post("/v1/transfer", TransferRequest{Target: target}, &resp)
	return resp, toAPIError(err, resp)
}

// Stats fetches a point-in-time snapshot of the node's engine state.
func (c *Client) Stats() (StatsResponse, error) {
	var resp StatsResponse
	body, err := json.Marshal(struct{}{})
	if err != nil {
		return resp, err
	}
	httpResp, err := c.httpClient.Post(fmt.Sprintf("http://%s/v1/stats", c.addr), "application/json", bytes.NewReader(body))
	if err != nil {
		return resp, fmt.Errorf("adminapi: request /v1/stats: %w", err)
	}
	defer httpResp.Body.Close()
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return resp, err
	}
	return resp, nil
}

func toAPIError(err error, resp Response) error {
	if err != nil {
		return err
	}
	if resp.Error != "" {
		if resp.Code != "" {
			return fmt.Errorf("%s: %s", resp.Code, resp.Error)
		}
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}
