package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewPageID generates a unique page ID with the "page_" prefix
func NewPageID() string {
	return "page_" + uuid.New().String()
}

// NewErrorLogID generates a unique error log ID with the "errlog_" prefix
func NewErrorLogID() string {
	return "errlog_" + uuid.New().String()
}
