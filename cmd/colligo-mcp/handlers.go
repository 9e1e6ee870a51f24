package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/export"
)

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(data)),
		},
	}, nil
}

// captureOptionsFromRequest merges per-call options over the configured
// defaults
func captureOptionsFromRequest(request mcp.CallToolRequest, defaults models.CaptureOptions) models.CaptureOptions {
	opts := defaults
	opts.Workers = request.GetInt("workers", defaults.Workers)
	opts.PageLimitPerSeed = request.GetInt("page_limit_per_seed", defaults.PageLimitPerSeed)
	if mode := request.GetString("scope_mode", ""); mode != "" {
		opts.ScopeMode = models.ScopeMode(mode)
	}
	opts.SkipCache = request.GetBool("skip_cache", defaults.SkipCache)
	opts.UseIncognito = request.GetBool("use_incognito", defaults.UseIncognito)
	opts.FollowExternal = request.GetBool("follow_external", defaults.FollowExternal)
	opts.MaxExternalHops = request.GetInt("max_external_hops", defaults.MaxExternalHops)
	opts.InterRequestDelayMs = request.GetInt("inter_request_delay_ms", defaults.InterRequestDelayMs)
	return opts
}

// handleCrawlStart implements the crawl_start tool
func handleCrawlStart(capture interfaces.CaptureService, defaults models.CaptureOptions, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		seeds := request.GetStringSlice("seeds", nil)
		if len(seeds) == 0 {
			return errorResult("Error: seeds parameter is required"), nil
		}

		opts := captureOptionsFromRequest(request, defaults)
		jobID, err := capture.Start(ctx, seeds, opts)
		if err != nil {
			logger.Error().Err(err).Msg("crawl_start failed")
			return errorResult(fmt.Sprintf("Failed to start capture: %v", err)), nil
		}

		return jsonResult(map[string]interface{}{
			"job_id": jobID,
			"seeds":  seeds,
		})
	}
}

// handleCrawlStatus implements the crawl_status tool
func handleCrawlStatus(capture interfaces.CaptureService, jobs interfaces.JobStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return errorResult("Error: job_id parameter is required"), nil
		}

		job, err := jobs.GetJob(jobID)
		if err != nil {
			logger.Warn().Err(err).Str("job_id", jobID).Msg("crawl_status lookup failed")
			return errorResult(fmt.Sprintf("Job not found: %v", err)), nil
		}

		result := map[string]interface{}{
			"job": job,
		}
		if snapshot := capture.Status(); snapshot.JobID == jobID {
			result["snapshot"] = snapshot
		}
		return jsonResult(result)
	}
}

// handleCrawlCancel implements the crawl_cancel tool
func handleCrawlCancel(capture interfaces.CaptureService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := capture.Cancel(); err != nil {
			logger.Error().Err(err).Msg("crawl_cancel failed")
			return errorResult(fmt.Sprintf("Failed to cancel: %v", err)), nil
		}
		return jsonResult(map[string]interface{}{"cancelled": true})
	}
}

// handleCrawlResume implements the crawl_resume tool
func handleCrawlResume(capture interfaces.CaptureService, defaults models.CaptureOptions, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return errorResult("Error: job_id parameter is required"), nil
		}

		opts := captureOptionsFromRequest(request, defaults)
		if err := capture.Resume(ctx, jobID, opts); err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("crawl_resume failed")
			return errorResult(fmt.Sprintf("Failed to resume: %v", err)), nil
		}

		return jsonResult(map[string]interface{}{"job_id": jobID})
	}
}

// pageSummary trims a page down to what listing tools should return; full
// content travels through convert_to_format instead
type pageSummary struct {
	ID           string `json:"id"`
	JobID        string `json:"job_id"`
	CanonicalURL string `json:"canonical_url"`
	Title        string `json:"title,omitempty"`
	Status       string `json:"status"`
	ContentHash  string `json:"content_hash"`
	Alternates   int    `json:"alternate_url_count"`
}

func summarize(pages []*models.Page) []pageSummary {
	summaries := make([]pageSummary, 0, len(pages))
	for _, page := range pages {
		summary := pageSummary{
			ID:           page.ID,
			JobID:        page.JobID,
			CanonicalURL: page.CanonicalURL,
			Status:       string(page.Status),
			ContentHash:  page.ContentHash,
			Alternates:   len(page.AlternateURLs),
		}
		if page.Metadata != nil {
			summary.Title = page.Metadata.Title
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// handlePagesList implements the pages_list tool
func handlePagesList(pages interfaces.PageStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return errorResult("Error: job_id parameter is required"), nil
		}

		result, err := pages.GetPagesByJobID(jobID)
		if err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("pages_list failed")
			return errorResult(fmt.Sprintf("Failed to list pages: %v", err)), nil
		}
		return jsonResult(summarize(result))
	}
}

// handlePagesSearch implements the pages_search tool
func handlePagesSearch(pages interfaces.PageStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		substring, err := request.RequireString("url_substring")
		if err != nil || substring == "" {
			return errorResult("Error: url_substring parameter is required"), nil
		}

		result, err := pages.SearchPagesByURLSubstring(substring)
		if err != nil {
			logger.Error().Err(err).Str("substring", substring).Msg("pages_search failed")
			return errorResult(fmt.Sprintf("Failed to search pages: %v", err)), nil
		}
		return jsonResult(summarize(result))
	}
}

// handleConvertToFormat implements the convert_to_format tool
func handleConvertToFormat(exporter *export.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return errorResult("Error: job_id parameter is required"), nil
		}
		format, err := request.RequireString("format")
		if err != nil || format == "" {
			return errorResult("Error: format parameter is required"), nil
		}
		switch export.Format(format) {
		case export.FormatText, export.FormatMarkdown, export.FormatHTML:
		default:
			return errorResult("Error: format must be text, markdown, or html"), nil
		}

		result, err := exporter.ToFormat(
			jobID,
			request.GetString("page_id", ""),
			export.Format(format),
			request.GetFloat("confidence_threshold", export.DefaultConfidenceThreshold),
			request.GetBool("include_metadata", false),
		)
		if err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("convert_to_format failed")
			return errorResult(fmt.Sprintf("Conversion failed: %v", err)), nil
		}
		return jsonResult(result)
	}
}

// handleExportArchive implements the export_archive tool
func handleExportArchive(exporter *export.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobIDs := request.GetStringSlice("job_ids", nil)
		if len(jobIDs) == 0 {
			return errorResult("Error: job_ids parameter is required"), nil
		}

		format := export.Format(request.GetString("format", string(export.FormatMarkdown)))
		archive, err := exporter.AsArchive(
			jobIDs,
			format,
			request.GetFloat("confidence_threshold", export.DefaultConfidenceThreshold),
		)
		if err != nil {
			logger.Error().Err(err).Strs("job_ids", jobIDs).Msg("export_archive failed")
			return errorResult(fmt.Sprintf("Export failed: %v", err)), nil
		}
		return jsonResult(archive)
	}
}

// handleDiagnosticsReport implements the diagnostics_report tool
func handleDiagnosticsReport(errorLog interfaces.ErrorLogService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		format := strings.ToLower(request.GetString("format", "text"))
		report, err := errorLog.Report(format)
		if err != nil {
			logger.Error().Err(err).Str("format", format).Msg("diagnostics_report failed")
			return errorResult(fmt.Sprintf("Report failed: %v", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(report),
			},
		}, nil
	}
}

// handleDiagnosticsErrors implements the diagnostics_errors tool
func handleDiagnosticsErrors(errorLog interfaces.ErrorLogService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if request.GetBool("count_only", false) {
			count, err := errorLog.Count()
			if err != nil {
				logger.Error().Err(err).Msg("diagnostics_errors count failed")
				return errorResult(fmt.Sprintf("Count failed: %v", err)), nil
			}
			return jsonResult(map[string]interface{}{"count": count})
		}

		entries, err := errorLog.List(request.GetInt("limit", 20))
		if err != nil {
			logger.Error().Err(err).Msg("diagnostics_errors failed")
			return errorResult(fmt.Sprintf("List failed: %v", err)), nil
		}
		return jsonResult(entries)
	}
}

// handleDiagnosticsClear implements the diagnostics_clear tool
func handleDiagnosticsClear(errorLog interfaces.ErrorLogService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := errorLog.Clear(); err != nil {
			logger.Error().Err(err).Msg("diagnostics_clear failed")
			return errorResult(fmt.Sprintf("Clear failed: %v", err)), nil
		}
		return jsonResult(map[string]interface{}{"cleared": true})
	}
}
