package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// CreateActionRequest asks the hub to queue a remediation action.
type CreateActionRequest struct {
	HostID          string                 `json:"host_id"`
	ActionType      string                 `json:"action_type"`
	Parameters      map[string]interface{} `json:"parameters,omitempty"`
	Origin          *Origin                `json:"origin,omitempty"`
	NotifyOnSuccess *bool                  `json:"notify_on_success,omitempty"`
}

// ActionFilter narrows List results. Empty fields match everything.
type ActionFilter struct {
	HostID     string
	Status     string
	ActionType string
	ListOptions
}

func (f ActionFilter) query() string {
	q := url.Values{}
	if f.HostID != "" {
		q.Set("host_id", f.HostID)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.ActionType != "" {
		q.Set("action_type", f.ActionType)
	}
	f.ListOptions.apply(q)
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (o ListOptions) apply(q url.Values) {
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
}

// CreateAction queues an action. A duplicate in-flight request fails with an
// error for which IsConflict reports true.
func (c *Client) CreateAction(ctx context.Context, req CreateActionRequest) (*Action, error) {
	var action Action
	if err := c.do(ctx, http.MethodPost, "/api/v1/actions", req, &action); err != nil {
		return nil, err
	}
	return &action, nil
}

// ListActions returns one page of actions, newest first.
func (c *Client) ListActions(ctx context.Context, filter ActionFilter) (*Page[Action], error) {
	var page Page[Action]
	if err := c.do(ctx, http.MethodGet, "/api/v1/actions"+filter.query(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetAction retrieves a single action
func (c *Client) GetAction(ctx context.Context, id string) (*Action, error) {
	var action Action
	if err := c.do(ctx, http.MethodGet, "/api/v1/actions/"+url.PathEscape(id), nil, &action); err != nil {
		return nil, err
	}
	return &action, nil
}

// ApproveAction approves a pending action.
func (c *Client) ApproveAction(ctx context.Context, id string) (*Action, error) {
	var action Action
	path := fmt.Sprintf("/api/v1/actions/%s/approve", url.PathEscape(id))
	if err := c.do(ctx, http.MethodPost, path, nil, &action); err != nil {
		return nil, err
	}
	return &action, nil
}

// RejectAction rejects a pending action. The reason may be empty.
func (c *Client) RejectAction(ctx context.Context, id, reason string) (*Action, error) {
	var body interface{}
	if reason != "" {
		body = map[string]string{"reason": reason}
	}
	var action Action
	path := fmt.Sprintf("/api/v1/actions/%s/reject", url.PathEscape(id))
	if err := c.do(ctx, http.MethodPost, path, body, &action); err != nil {
		return nil, err
	}
	return &action, nil
}

// ActionHistory returns the audit trail of an action in transition order.
func (c *Client) ActionHistory(ctx context.Context, id string) ([]AuditRecord, error) {
	var records []AuditRecord
	path := fmt.Sprintf("/api/v1/actions/%s/audit", url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ActionSummary counts actions per status. An empty hostID covers the fleet.
func (c *Client) ActionSummary(ctx context.Context, hostID string) (*Summary, error) {
	path := "/api/v1/actions/summary"
	if hostID != "" {
		path += "?host_id=" + url.QueryEscape(hostID)
	}
	var summary Summary
	if err := c.do(ctx, http.MethodGet, path, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
