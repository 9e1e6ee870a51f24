package badger

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// ErrorLogStorage implements the ErrorLogStorage interface for Badger
type ErrorLogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewErrorLogStorage creates a new ErrorLogStorage instance
func NewErrorLogStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ErrorLogStorage {
	return &ErrorLogStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ErrorLogStorage) SaveErrorLog(entry *models.ErrorLog) error {
	if entry.ID == "" {
		return fmt.Errorf("error log ID is required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := s.db.Store().Upsert(entry.ID, entry); err != nil {
		return fmt.Errorf("failed to save error log: %w", err)
	}
	return nil
}

func (s *ErrorLogStorage) ListErrorLogs(limit int) ([]*models.ErrorLog, error) {
	var entries []models.ErrorLog
	if err := s.db.Store().Find(&entries, nil); err != nil {
		return nil, fmt.Errorf("failed to list error logs: %w", err)
	}

	// Newest first
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	result := make([]*models.ErrorLog, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}

func (s *ErrorLogStorage) CountErrorLogs() (int, error) {
	count, err := s.db.Store().Count(&models.ErrorLog{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count error logs: %w", err)
	}
	return int(count), nil
}

func (s *ErrorLogStorage) ClearErrorLogs() error {
	if err := s.db.Store().DeleteMatching(&models.ErrorLog{}, nil); err != nil {
		return fmt.Errorf("failed to clear error logs: %w", err)
	}
	return nil
}

func (s *ErrorLogStorage) PurgeErrorLogsOlderThan(ts time.Time) (int, error) {
	var stale []models.ErrorLog
	query := badgerhold.Where("Timestamp").Lt(ts).Index("Timestamp")
	if err := s.db.Store().Find(&stale, query); err != nil {
		return 0, fmt.Errorf("failed to find stale error logs: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := s.db.Store().DeleteMatching(&models.ErrorLog{}, query); err != nil {
		return 0, fmt.Errorf("failed to purge error logs: %w", err)
	}
	return len(stale), nil
}
