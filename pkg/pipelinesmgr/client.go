// Package pipelinesmgr is the client for the external pipelines manager
// service, the schedule/configuration store (spec.md section 3,
// "Ownership and lifecycle": "Pipeline Configurations are owned by the
// pipelines manager service"), grounded on workflow/http/pipelines.py's
// deploy/count methods.
package pipelinesmgr

import (
	"context"
	"fmt"

	"github.com/chime-frb/workflow-go/pkg/models"
	"github.com/chime-frb/workflow-go/pkg/transport"
)

// Client talks to the pipelines manager service's REST contract
// (spec.md section 6).
type Client struct {
	transport *transport.Client
}

// New wraps an already-configured transport.Client.
func New(t *transport.Client) *Client {
	return &Client{transport: t}
}

// Deploy registers a Pipeline Configuration, optionally under a cron
// schedule (spec.md section 4.4 point 6). The pipelines manager owns
// firing it thereafter; this core never polls or re-implements cron.
func (c *Client) Deploy(ctx context.Context, cfg *models.PipelineConfiguration) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	path := "/pipelines"
	if cfg.Schedule != nil {
		path = "/schedules"
	}
	if err := c.transport.Do(ctx, "POST", path, cfg, &resp); err != nil {
		return "", fmt.Errorf("deploy %s: %w", cfg.Name, err)
	}
	return resp.ID, nil
}

// Get retrieves a registered Pipeline Configuration by id.
func (c *Client) Get(ctx context.Context, id string) (*models.PipelineConfiguration, error) {
	var cfg models.PipelineConfiguration
	if err := c.transport.Do(ctx, "GET", "/pipelines/"+id, nil, &cfg); err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return &cfg, nil
}

// Stop halts future firings of a scheduled Pipeline Configuration
// without deleting its registration.
func (c *Client) Stop(ctx context.Context, id string) error {
	if err := c.transport.Do(ctx, "POST", "/pipelines/"+id+"/stop", nil, nil); err != nil {
		return fmt.Errorf("stop %s: %w", id, err)
	}
	return nil
}

// Delete removes a Pipeline Configuration's registration entirely.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.transport.Do(ctx, "DELETE", "/pipelines/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}
