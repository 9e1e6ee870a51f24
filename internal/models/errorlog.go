package models

import (
	"time"
)

// ErrorLogRetention is how long error records are kept. Entries older than
// this are purged on the next write or by the retention sweeper.
const ErrorLogRetention = 30 * 24 * time.Hour

// ErrorLog is one structured failure record kept for diagnostics
type ErrorLog struct {
	ID         string            `json:"id" badgerhold:"key"`
	Timestamp  time.Time         `json:"timestamp" badgerhold:"index"`
	Source     string            `json:"source"`
	Level      string            `json:"level"`
	Message    string            `json:"message"`
	Stack      string            `json:"stack,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
	AppVersion string            `json:"app_version"`
}
