package models

import (
	"time"
)

// JobStatus represents the lifecycle state of a capture job
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusInProgress  JobStatus = "in_progress"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusInterrupted JobStatus = "interrupted"
	JobStatusFailed      JobStatus = "failed"
)

// IsTerminal reports whether the status is a terminal state. Terminal
// statuses only change through an explicit user-driven update (marking an
// interrupted job complete).
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusInterrupted || s == JobStatusFailed
}

// MaxJobErrors bounds the per-job error list surfaced to users
const MaxJobErrors = 20

// Job represents one capture run over a set of seed URLs
type Job struct {
	ID             string    `json:"id" badgerhold:"key"`
	Seeds          []string  `json:"seeds"`
	CanonicalSeeds []string  `json:"canonical_seeds"`
	Status         JobStatus `json:"status"`

	// Counters are monotonic non-decreasing while the job runs
	PagesFound     int `json:"pages_found"`
	PagesProcessed int `json:"pages_processed"`
	PagesFailed    int `json:"pages_failed"`

	// Errors holds short user-surfaceable failure strings, bounded to the
	// last MaxJobErrors messages
	Errors []string `json:"errors,omitempty"`

	Options CaptureOptions `json:"options"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppendError records a failure message on the job, dropping the oldest
// entries beyond MaxJobErrors
func (j *Job) AppendError(msg string) {
	j.Errors = append(j.Errors, msg)
	if len(j.Errors) > MaxJobErrors {
		j.Errors = j.Errors[len(j.Errors)-MaxJobErrors:]
	}
}

// ScopeMode selects how a URL path is matched against a seed path
type ScopeMode string

const (
	// ScopeModeStrict requires the URL path to equal the seed path or extend
	// it at a path-component boundary (/api does not match /api-docs)
	ScopeModeStrict ScopeMode = "strict"
	// ScopeModeLoose accepts any URL whose path has the seed path as a
	// string prefix
	ScopeModeLoose ScopeMode = "loose"
)

// CaptureOptions configures a capture job. Validated before Start/Resume.
type CaptureOptions struct {
	Workers             int       `json:"workers" toml:"workers" validate:"min=1,max=10"`
	PageLimitPerSeed    int       `json:"page_limit_per_seed" toml:"page_limit_per_seed" validate:"min=0"`
	ScopeMode           ScopeMode `json:"scope_mode" toml:"scope_mode" validate:"oneof=strict loose"`
	SkipCache           bool      `json:"skip_cache" toml:"skip_cache"`
	UseIncognito        bool      `json:"use_incognito" toml:"use_incognito"`
	FollowExternal      bool      `json:"follow_external" toml:"follow_external"`
	MaxExternalHops     int       `json:"max_external_hops" toml:"max_external_hops" validate:"min=1,max=5"`
	InterRequestDelayMs int       `json:"inter_request_delay_ms" toml:"inter_request_delay_ms" validate:"min=0"`
	StableQuery         bool      `json:"stable_query" toml:"stable_query"`
}

// DefaultCaptureOptions returns the baseline options used when a caller
// leaves fields unset
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		Workers:             5,
		PageLimitPerSeed:    0, // unlimited
		ScopeMode:           ScopeModeStrict,
		SkipCache:           false,
		UseIncognito:        false,
		FollowExternal:      false,
		MaxExternalHops:     1,
		InterRequestDelayMs: 500,
		StableQuery:         true,
	}
}

// JobSnapshot is the consistent view returned by Status() and published on
// the progress bus
type JobSnapshot struct {
	Active         bool      `json:"active"`
	JobID          string    `json:"job_id"`
	Status         JobStatus `json:"status"`
	PagesFound     int       `json:"pages_found"`
	PagesProcessed int       `json:"pages_processed"`
	PagesFailed    int       `json:"pages_failed"`
	QueueSize      int       `json:"queue_size"`
	InProgress     []string  `json:"in_progress"`
}
