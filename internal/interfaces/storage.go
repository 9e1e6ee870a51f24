package interfaces

import (
	"time"

	"github.com/ternarybob/colligo/internal/models"
)

// JobStorage persists capture jobs
type JobStorage interface {
	CreateJob(job *models.Job) error
	UpdateJob(job *models.Job) error
	GetJob(id string) (*models.Job, error)
	ListJobs() ([]*models.Job, error)
	DeleteJob(id string) error
}

// PageStorage persists captured pages. Writes are single-page atomic; no
// multi-page transactions are required by callers.
type PageStorage interface {
	SavePage(page *models.Page) error
	GetPage(id string) (*models.Page, error)
	GetPagesByJobID(jobID string) ([]*models.Page, error)
	FindPageByContentHash(jobID, hash string) (*models.Page, error)
	// FindByCanonicalURL looks up the most recent successful capture of a
	// canonical URL across jobs, used for cached-render reuse
	FindByCanonicalURL(canonicalURL string) (*models.Page, error)
	AddAlternateURL(pageID, url string) error
	SearchPagesByURLSubstring(q string) ([]*models.Page, error)
	DeletePagesByJobID(jobID string) error
	CountPages() (int, error)
}

// ErrorLogStorage persists diagnostic error records
type ErrorLogStorage interface {
	SaveErrorLog(entry *models.ErrorLog) error
	ListErrorLogs(limit int) ([]*models.ErrorLog, error)
	CountErrorLogs() (int, error)
	ClearErrorLogs() error
	PurgeErrorLogsOlderThan(ts time.Time) (int, error)
}

// StorageManager bundles the store contracts behind one open/close lifecycle
type StorageManager interface {
	JobStorage() JobStorage
	PageStorage() PageStorage
	ErrorLogStorage() ErrorLogStorage
	SchemaVersion() int
	Close() error
}
