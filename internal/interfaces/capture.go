package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// CaptureService drives capture jobs. At most one job is active per process;
// Start and Resume fail while another job is live.
type CaptureService interface {
	// Start creates a job over the given seeds, seeds its queue from
	// sitemaps, and runs it in the background. Returns the new job ID.
	Start(ctx context.Context, seeds []string, opts models.CaptureOptions) (string, error)

	// Cancel requests cooperative cancellation of the active job. Idempotent;
	// a no-op when nothing is running.
	Cancel() error

	// Resume rehydrates a persisted job's completed set, dedup index, and
	// per-seed counters, rebuilds its queue, and runs it like Start.
	Resume(ctx context.Context, jobID string, opts models.CaptureOptions) error

	// Status returns a consistent snapshot of the active job, or the last
	// finished job with Active=false.
	Status() models.JobSnapshot

	// Wait blocks until the active job reaches a terminal status. Returns
	// immediately when no job is running.
	Wait()
}

// ErrorLogService records failures for diagnostics and renders the
// diagnostic report
type ErrorLogService interface {
	// Log persists one failure record. Never returns an error: diagnostics
	// must not fail the operation being diagnosed.
	Log(source string, err error, context map[string]string)

	// Report renders a deterministic diagnostic bundle in "json" or "text"
	Report(format string) (string, error)

	List(limit int) ([]*models.ErrorLog, error)
	Count() (int, error)
	Clear() error

	// Purge drops entries older than the retention window, returning the
	// number removed
	Purge() (int, error)
}
