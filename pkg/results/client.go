// Package results is the client for the external results service, the
// long-term store that owns Work once it has been archived (spec.md
// section 3, "Ownership and lifecycle"), grounded on
// workflow/http/results.py's info/count/view methods.
package results

import (
	"context"
	"fmt"
	"net/url"

	"github.com/chime-frb/workflow-go/pkg/models"
	"github.com/chime-frb/workflow-go/pkg/transport"
)

// Client talks to the results service's REST contract (spec.md section 6).
type Client struct {
	transport *transport.Client
}

// New wraps an already-configured transport.Client.
func New(t *transport.Client) *Client {
	return &Client{transport: t}
}

// Deposit forwards a terminal Work item into long-term storage, called
// by the Transfer daemon after archival.
func (c *Client) Deposit(ctx context.Context, work *models.Work) error {
	if err := c.transport.Do(ctx, "POST", "/results", work, nil); err != nil {
		return fmt.Errorf("deposit %s: %w", work.ID, err)
	}
	return nil
}

// DepositMany bulk-forwards a batch, mirroring the source's bulk-deposit
// call. Callers (the Transfer daemon) fall back to per-item Deposit when
// this call fails, to recover from one bad item poisoning a batch.
func (c *Client) DepositMany(ctx context.Context, work []*models.Work) error {
	if len(work) == 0 {
		return nil
	}
	if err := c.transport.Do(ctx, "POST", "/results/bulk", work, nil); err != nil {
		return fmt.Errorf("deposit bulk (%d items): %w", len(work), err)
	}
	return nil
}

// Exists reports whether a Work id is already present in the results
// service, used by the Transfer daemon's duplicate-check fallback after
// a bulk deposit failure.
func (c *Client) Exists(ctx context.Context, id string) (bool, error) {
	var found []*models.Work
	q := url.Values{}
	q.Set("id", id)
	err := c.transport.Do(ctx, "GET", "/results?"+q.Encode(), nil, &found)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", id, err)
	}
	return len(found) > 0, nil
}

// View queries the results service with an arbitrary filter, returning
// matching Work items.
func (c *Client) View(ctx context.Context, query url.Values) ([]*models.Work, error) {
	var items []*models.Work
	if err := c.transport.Do(ctx, "GET", "/results?"+query.Encode(), nil, &items); err != nil {
		return nil, fmt.Errorf("view: %w", err)
	}
	return items, nil
}
