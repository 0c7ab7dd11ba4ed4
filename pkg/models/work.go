// Package models defines the Work entity and the Pipeline Configuration
// document that the expander turns into Work items.
package models

import "encoding/json"

// Status is the lifecycle state of a Work item.
type Status string

const (
	StatusCreated   Status = "created"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether status is one the runner may no longer mutate.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// ArchiveMode is an artifact handling policy for one artifact class.
type ArchiveMode string

const (
	ArchiveBypass ArchiveMode = "bypass"
	ArchiveCopy   ArchiveMode = "copy"
	ArchiveMove   ArchiveMode = "move"
	ArchiveDelete ArchiveMode = "delete"
	ArchiveUpload ArchiveMode = "upload"
)

// DefaultArchiveMode is applied to a Work's plot, product, and results
// archive policy when neither the Work nor its workspace names one, mirroring the
// source's own non-bypass default for these artifact classes.
const DefaultArchiveMode = ArchiveCopy

// ArchiveConfig names the mode applied to each artifact class.
type ArchiveConfig struct {
	Results  ArchiveMode `json:"results,omitempty" yaml:"results,omitempty"`
	Plots    ArchiveMode `json:"plots,omitempty" yaml:"plots,omitempty"`
	Products ArchiveMode `json:"products,omitempty" yaml:"products,omitempty"`
}

// WorkConfig is the Work-scoped configuration carried alongside the
// workspace-scoped defaults of the same shape.
type WorkConfig struct {
	Archive ArchiveConfig `json:"archive,omitempty" yaml:"archive,omitempty"`
}

// Slack describes whether and how a Work's completion should be relayed
// to a Slack channel. Message formatting itself is the notification
// service's concern; the core only decides what to attach.
type Slack struct {
	Channel   string   `json:"channel,omitempty" yaml:"channel,omitempty"`
	Members   []string `json:"members,omitempty" yaml:"members,omitempty"`
	Reminders bool     `json:"reminders,omitempty" yaml:"reminders,omitempty"`
	Success   bool     `json:"success,omitempty" yaml:"success,omitempty"`
	Failure   bool     `json:"failure,omitempty" yaml:"failure,omitempty"`
	Results   bool     `json:"results,omitempty" yaml:"results,omitempty"`
	Products  bool     `json:"products,omitempty" yaml:"products,omitempty"`
	Plots     bool     `json:"plots,omitempty" yaml:"plots,omitempty"`
}

// Notify wraps the notification channels attached to a Work. Slack is the
// only channel this spec names; others can be added the same way.
type Notify struct {
	Slack Slack `json:"slack,omitempty" yaml:"slack,omitempty"`
}

// Work is the atomic unit of deferred computation.
type Work struct {
	ID       string `json:"id,omitempty"`
	Pipeline string `json:"pipeline"`
	Site     string `json:"site"`
	User     string `json:"user,omitempty"`

	Function string   `json:"function,omitempty"`
	Command  []string `json:"command,omitempty"`

	Parameters map[string]any `json:"parameters,omitempty"`

	Timeout  int `json:"timeout"`
	Retries  int `json:"retries"`
	Priority int `json:"priority"`
	Attempt  int `json:"attempt"`

	Event []int    `json:"event,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Group []string `json:"group,omitempty"`

	Results  map[string]any `json:"results,omitempty"`
	Products []string       `json:"products,omitempty"`
	Plots    []string       `json:"plots,omitempty"`

	Config WorkConfig `json:"config,omitempty"`
	Notify Notify     `json:"notify,omitempty"`

	Creation float64 `json:"creation,omitempty"`
	Start    float64 `json:"start,omitempty"`
	Stop     float64 `json:"stop,omitempty"`

	Status Status `json:"status,omitempty"`

	// Extra holds fields present on the decoded document that this
	// struct doesn't recognize, so a relaxed validation strategy can
	// preserve and re-serialize them instead of silently dropping them.
	// A plain `json:"-"` struct tag can't do this on its own -- decoding
	// and re-encoding it is handled by UnmarshalJSON/MarshalJSON below.
	Extra map[string]any `json:"-" yaml:",inline"`
}

// workKnownJSONKeys is every struct tag name above that UnmarshalJSON
// must not divert into Extra.
var workKnownJSONKeys = map[string]bool{
	"id": true, "pipeline": true, "site": true, "user": true,
	"function": true, "command": true, "parameters": true,
	"timeout": true, "retries": true, "priority": true, "attempt": true,
	"event": true, "tags": true, "group": true,
	"results": true, "products": true, "plots": true,
	"config": true, "notify": true,
	"creation": true, "start": true, "stop": true, "status": true,
}

// workAlias has Work's fields but none of its methods, so decoding
// into it doesn't recurse back into UnmarshalJSON.
type workAlias Work

// UnmarshalJSON decodes the known fields normally, then captures any
// remaining object keys into Extra.
func (w *Work) UnmarshalJSON(data []byte) error {
	var alias workAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*w = Work(alias)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, val := range raw {
		if workKnownJSONKeys[key] {
			continue
		}
		var v any
		if err := json.Unmarshal(val, &v); err != nil {
			return err
		}
		if w.Extra == nil {
			w.Extra = map[string]any{}
		}
		w.Extra[key] = v
	}
	return nil
}

// MarshalJSON re-encodes the known fields and merges Extra's keys back
// in, so a relaxed round trip doesn't lose what it preserved.
func (w Work) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(workAlias(w))
	if err != nil {
		return nil, err
	}
	if len(w.Extra) == 0 {
		return base, nil
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, v := range w.Extra {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[key] = b
	}
	return json.Marshal(merged)
}

// Default execution-control values, per spec.md section 3.
const (
	DefaultTimeout     = 3600
	MaxTimeout         = 86400
	DefaultRetries     = 2
	MaxRetries         = 5
	DefaultPriority    = 3
	MinPriority        = 1
	MaxPriority        = 5
	MaxAttemptOverhead = 1 // attempt <= retries + MaxAttemptOverhead
)

// ExceededAttempts reports whether Attempt already violates the
// attempt <= retries+1 invariant.
func (w *Work) ExceededAttempts() bool {
	return w.Attempt > w.Retries+MaxAttemptOverhead
}

// HasFunction reports whether this Work dispatches to a registered
// function rather than a shell command. Validation guarantees exactly
// one of Function/Command is set, so callers may rely on this being the
// complement of HasCommand once a Work has passed validation.
func (w *Work) HasFunction() bool {
	return w.Function != ""
}

// HasCommand reports whether this Work dispatches to a subprocess.
func (w *Work) HasCommand() bool {
	return len(w.Command) > 0
}

// WithdrawFilter narrows which Work a Bucket withdraw call may return.
type WithdrawFilter struct {
	Pipeline string
	Site     string
	Event    []int
	Priority int
	User     string
	Tags     []string
	Parent   string
}
