// -----------------------------------------------------------------------
// Error Log Service - bounded, time-retained failure records and the
// diagnostic report
// -----------------------------------------------------------------------

package errorlog

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// reportEntryLimit is how many recent entries the diagnostic report carries
const reportEntryLimit = 50

// Service implements interfaces.ErrorLogService over the error log store.
// Retention is enforced on every write and by a background sweep.
type Service struct {
	storage interfaces.ErrorLogStorage
	logger  arbor.ILogger
	cron    *cron.Cron
}

// NewService creates the error log service
func NewService(storage interfaces.ErrorLogStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// StartRetentionSweeper schedules the periodic purge. Call Stop to halt it.
func (s *Service) StartRetentionSweeper(schedule string) error {
	if s.cron != nil {
		return fmt.Errorf("retention sweeper already running")
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		removed, err := s.Purge()
		if err != nil {
			s.logger.Warn().Err(err).Msg("Error log retention sweep failed")
			return
		}
		if removed > 0 {
			s.logger.Debug().Int("removed", removed).Msg("Error log retention sweep")
		}
	}); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the retention sweeper
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

// Log persists one failure record and drops entries past retention. Logging
// must never fail the operation being diagnosed, so errors here are only
// logged.
func (s *Service) Log(source string, err error, context map[string]string) {
	entry := &models.ErrorLog{
		ID:         common.NewErrorLogID(),
		Timestamp:  time.Now(),
		Source:     source,
		Level:      "error",
		Message:    err.Error(),
		Stack:      string(debug.Stack()),
		Context:    context,
		AppVersion: common.GetVersion(),
	}

	if saveErr := s.storage.SaveErrorLog(entry); saveErr != nil {
		s.logger.Warn().Err(saveErr).Str("source", source).Msg("Failed to persist error log entry")
		return
	}

	// Retention rides on the write path
	if _, purgeErr := s.Purge(); purgeErr != nil {
		s.logger.Warn().Err(purgeErr).Msg("Error log retention purge failed")
	}
}

func (s *Service) List(limit int) ([]*models.ErrorLog, error) {
	return s.storage.ListErrorLogs(limit)
}

func (s *Service) Count() (int, error) {
	return s.storage.CountErrorLogs()
}

func (s *Service) Clear() error {
	return s.storage.ClearErrorLogs()
}

// Purge drops entries older than the retention window
func (s *Service) Purge() (int, error) {
	cutoff := time.Now().Add(-models.ErrorLogRetention)
	return s.storage.PurgeErrorLogsOlderThan(cutoff)
}

// -----------------------------------------------------------------------
// Diagnostic report
// -----------------------------------------------------------------------

// Report renders the diagnostic bundle. Output is deterministic for a given
// store state: entries come newest first and aggregate keys are sorted.
func (s *Service) Report(format string) (string, error) {
	entries, err := s.storage.ListErrorLogs(reportEntryLimit)
	if err != nil {
		return "", fmt.Errorf("failed to load error logs: %w", err)
	}
	total, err := s.storage.CountErrorLogs()
	if err != nil {
		return "", fmt.Errorf("failed to count error logs: %w", err)
	}

	bySource := make(map[string]int)
	for _, entry := range entries {
		bySource[entry.Source]++
	}

	switch format {
	case "json":
		return s.renderJSON(entries, total, bySource)
	case "text":
		return s.renderText(entries, total, bySource), nil
	default:
		return "", fmt.Errorf("unsupported report format %q", format)
	}
}

type reportPayload struct {
	AppVersion    string             `json:"app_version"`
	TotalErrors   int                `json:"total_errors"`
	BySource      map[string]int     `json:"by_source"`
	RecentEntries []*models.ErrorLog `json:"recent_entries"`
}

func (s *Service) renderJSON(entries []*models.ErrorLog, total int, bySource map[string]int) (string, error) {
	payload := reportPayload{
		AppVersion:    common.GetVersion(),
		TotalErrors:   total,
		BySource:      bySource,
		RecentEntries: entries,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return string(data), nil
}

func (s *Service) renderText(entries []*models.ErrorLog, total int, bySource map[string]int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Colligo Diagnostic Report\n")
	fmt.Fprintf(&sb, "Version: %s\n", common.GetVersion())
	fmt.Fprintf(&sb, "Total errors: %d\n\n", total)

	sources := make([]string, 0, len(bySource))
	for source := range bySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	if len(sources) > 0 {
		sb.WriteString("Errors by source:\n")
		for _, source := range sources {
			fmt.Fprintf(&sb, "  %-12s %d\n", source, bySource[source])
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Recent entries (newest first, max %d):\n", reportEntryLimit)
	for _, entry := range entries {
		fmt.Fprintf(&sb, "[%s] %s %s: %s\n",
			entry.Timestamp.Format(time.RFC3339),
			entry.Level,
			entry.Source,
			entry.Message)
		for _, key := range sortedKeys(entry.Context) {
			fmt.Fprintf(&sb, "    %s=%s\n", key, entry.Context[key])
		}
	}

	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
