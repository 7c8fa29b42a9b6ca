package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// RegisterHostRequest enrolls a host with the secret it will check in with.
type RegisterHostRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Secret string `json:"secret"`
}

// RegisterHost enrolls a new host
func (c *Client) RegisterHost(ctx context.Context, req RegisterHostRequest) (*Host, error) {
	var h Host
	if err := c.do(ctx, http.MethodPost, "/api/v1/hosts", req, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListHosts returns one page of registered hosts
func (c *Client) ListHosts(ctx context.Context, opts ListOptions) (*Page[Host], error) {
	q := url.Values{}
	opts.apply(q)
	path := "/api/v1/hosts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page Page[Host]
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetHost retrieves a single host
func (c *Client) GetHost(ctx context.Context, id string) (*Host, error) {
	var h Host
	if err := c.do(ctx, http.MethodGet, "/api/v1/hosts/"+url.PathEscape(id), nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// SetMaintenance pauses or resumes auto-approval for a host.
func (c *Client) SetMaintenance(ctx context.Context, id string, paused bool) (*Host, error) {
	var h Host
	path := fmt.Sprintf("/api/v1/hosts/%s/maintenance", url.PathEscape(id))
	if err := c.do(ctx, http.MethodPut, path, map[string]bool{"paused": paused}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Whitelist returns the action types the hub accepts.
func (c *Client) Whitelist(ctx context.Context) ([]WhitelistEntry, error) {
	var entries []WhitelistEntry
	if err := c.do(ctx, http.MethodGet, "/api/v1/whitelist", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
