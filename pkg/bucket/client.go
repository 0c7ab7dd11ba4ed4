// Package bucket is the client for the external bucket service: the HTTP
// queue of Work items. The bucket service is the authoritative store for
// Work while it is pending or active (spec.md section 3, "Ownership and
// lifecycle"); this package only consumes its REST contract.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/chime-frb/workflow-go/pkg/models"
	"github.com/chime-frb/workflow-go/pkg/transport"
)

// Client talks to the bucket service over the REST contract in
// spec.md section 6.
type Client struct {
	transport *transport.Client
}

// New wraps an already-configured transport.Client.
func New(t *transport.Client) *Client {
	return &Client{transport: t}
}

// Deposit submits new Work items, returning their server-assigned ids.
func (c *Client) Deposit(ctx context.Context, work []*models.Work) ([]string, error) {
	var ids []string
	if err := c.transport.Do(ctx, "POST", "/work", work, &ids); err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	return ids, nil
}

// Withdraw dequeues the highest-priority, oldest-creation Work item
// matching filter for pipeline. ok is false when the bucket has nothing
// to offer (HTTP 204).
func (c *Client) Withdraw(ctx context.Context, pipeline string, filter models.WithdrawFilter) (work *models.Work, ok bool, err error) {
	q := url.Values{}
	q.Set("pipeline", pipeline)
	if filter.Site != "" {
		q.Set("site", filter.Site)
	}
	if filter.User != "" {
		q.Set("user", filter.User)
	}
	if filter.Priority != 0 {
		q.Set("priority", strconv.Itoa(filter.Priority))
	}
	if filter.Parent != "" {
		q.Set("parent", filter.Parent)
	}
	if len(filter.Tags) > 0 {
		q.Set("tags", strings.Join(filter.Tags, ","))
	}
	if len(filter.Event) > 0 {
		ints := make([]string, len(filter.Event))
		for i, e := range filter.Event {
			ints[i] = strconv.Itoa(e)
		}
		q.Set("event", strings.Join(ints, ","))
	}

	var w models.Work
	err = c.transport.Do(ctx, "GET", "/work/withdraw?"+q.Encode(), nil, &w)
	if errors.Is(err, transport.NoContent) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("withdraw: %w", err)
	}
	return &w, true, nil
}

// Update persists an in-place change to a Work item (e.g. status,
// results, timestamps).
func (c *Client) Update(ctx context.Context, work *models.Work) error {
	if err := c.transport.Do(ctx, "PUT", "/work/"+work.ID, work, nil); err != nil {
		return fmt.Errorf("update %s: %w", work.ID, err)
	}
	return nil
}

// Delete removes Work items by id, used by the Transfer daemon once an
// item has been archived and forwarded to the results service.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	if err := c.transport.Do(ctx, "DELETE", "/work?"+q.Encode(), nil, nil); err != nil {
		return fmt.Errorf("delete %v: %w", ids, err)
	}
	return nil
}

// ViewByIDs looks up Work items by id, grounded on the source's generic
// `view()` query endpoint. Used by the expand driver to poll deposited
// Work for a terminal status before gating the next stage (spec.md
// section 5).
func (c *Client) ViewByIDs(ctx context.Context, ids []string) ([]*models.Work, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	var items []*models.Work
	if err := c.transport.Do(ctx, "GET", "/work/view?"+q.Encode(), nil, &items); err != nil {
		return nil, fmt.Errorf("view by ids: %w", err)
	}
	return items, nil
}

// List returns up to limit Work items for pipeline/site whose status is
// one of statuses, used by the Transfer daemon's scan of terminal Work and
// the Audit daemon's scans of active and failed Work. It is not part of
// spec.md section 6's named endpoints but is implied by sections 4.5/4.6
// ("list up to N terminal Work items"); modeled here as a withdraw-style
// GET with a status filter the bucket service is expected to support.
func (c *Client) List(ctx context.Context, pipeline, site string, statuses []models.Status, limit int) ([]*models.Work, error) {
	q := url.Values{}
	q.Set("pipeline", pipeline)
	if site != "" {
		q.Set("site", site)
	}
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}
	q.Set("status", strings.Join(strs, ","))
	q.Set("limit", strconv.Itoa(limit))

	var items []*models.Work
	if err := c.transport.Do(ctx, "GET", "/work?"+q.Encode(), nil, &items); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return items, nil
}
