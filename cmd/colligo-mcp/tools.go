package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createCrawlStartTool returns the crawl_start tool definition
func createCrawlStartTool() mcp.Tool {
	return mcp.NewTool("crawl_start",
		mcp.WithDescription("Start a capture job over one or more seed URLs. Returns immediately with a job ID; poll crawl_status for progress."),
		mcp.WithArray("seeds",
			mcp.Required(),
			mcp.WithStringItems(),
			mcp.Description("Absolute seed URLs; discovery stays under each seed's path"),
		),
		mcp.WithNumber("workers",
			mcp.Description("Render worker count (1-10, default: 5)"),
		),
		mcp.WithNumber("page_limit_per_seed",
			mcp.Description("Max pages persisted per seed (0 = unlimited)"),
		),
		mcp.WithString("scope_mode",
			mcp.Description("Path matching mode: strict (path-component boundary) or loose (string prefix)"),
		),
		mcp.WithBoolean("skip_cache",
			mcp.Description("Skip the cross-job render cache and re-render every URL"),
		),
		mcp.WithBoolean("use_incognito",
			mcp.Description("Render in incognito browser contexts"),
		),
		mcp.WithBoolean("follow_external",
			mcp.Description("Follow links that fall outside every seed's scope"),
		),
		mcp.WithNumber("max_external_hops",
			mcp.Description("Max depth for out-of-scope links (1-5, default: 1)"),
		),
		mcp.WithNumber("inter_request_delay_ms",
			mcp.Description("Per-worker politeness delay between renders (default: 500)"),
		),
	)
}

// createCrawlStatusTool returns the crawl_status tool definition
func createCrawlStatusTool() mcp.Tool {
	return mcp.NewTool("crawl_status",
		mcp.WithDescription("Get the live snapshot and persisted record of a capture job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID (format: job_{uuid})"),
		),
	)
}

// createCrawlCancelTool returns the crawl_cancel tool definition
func createCrawlCancelTool() mcp.Tool {
	return mcp.NewTool("crawl_cancel",
		mcp.WithDescription("Cancel the active capture job. Idempotent; already-persisted pages are kept."),
	)
}

// createCrawlResumeTool returns the crawl_resume tool definition
func createCrawlResumeTool() mcp.Tool {
	return mcp.NewTool("crawl_resume",
		mcp.WithDescription("Resume an interrupted capture job from its persisted pages"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID to resume"),
		),
		mcp.WithNumber("workers",
			mcp.Description("Render worker count (1-10, default: 5)"),
		),
		mcp.WithNumber("page_limit_per_seed",
			mcp.Description("Max pages persisted per seed (0 = unlimited)"),
		),
	)
}

// createPagesListTool returns the pages_list tool definition
func createPagesListTool() mcp.Tool {
	return mcp.NewTool("pages_list",
		mcp.WithDescription("List the pages captured by a job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Owning job ID"),
		),
	)
}

// createPagesSearchTool returns the pages_search tool definition
func createPagesSearchTool() mcp.Tool {
	return mcp.NewTool("pages_search",
		mcp.WithDescription("Find captured pages whose URL contains a substring (case-insensitive)"),
		mcp.WithString("url_substring",
			mcp.Required(),
			mcp.Description("Substring to match against page URLs"),
		),
	)
}

// createConvertToFormatTool returns the convert_to_format tool definition
func createConvertToFormatTool() mcp.Tool {
	return mcp.NewTool("convert_to_format",
		mcp.WithDescription("Render captured pages as text, markdown, or html. Markdown falls back to text below the confidence threshold."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Owning job ID"),
		),
		mcp.WithString("page_id",
			mcp.Description("Single page to convert; omit for every page of the job"),
		),
		mcp.WithString("format",
			mcp.Required(),
			mcp.Description("Output format: text, markdown, or html"),
		),
		mcp.WithNumber("confidence_threshold",
			mcp.Description("Minimum markdown confidence before falling back to text (default: 0.5)"),
		),
		mcp.WithBoolean("include_metadata",
			mcp.Description("Prepend a metadata header per page"),
		),
	)
}

// createExportArchiveTool returns the export_archive tool definition
func createExportArchiveTool() mcp.Tool {
	return mcp.NewTool("export_archive",
		mcp.WithDescription("Package captured pages from one or more jobs into a zip archive, returned as base64"),
		mcp.WithArray("job_ids",
			mcp.Required(),
			mcp.WithStringItems(),
			mcp.Description("Jobs to include"),
		),
		mcp.WithString("format",
			mcp.Description("Per-page file format: text or markdown (default: markdown)"),
		),
		mcp.WithNumber("confidence_threshold",
			mcp.Description("Minimum markdown confidence before falling back to text (default: 0.5)"),
		),
	)
}

// createDiagnosticsReportTool returns the diagnostics_report tool definition
func createDiagnosticsReportTool() mcp.Tool {
	return mcp.NewTool("diagnostics_report",
		mcp.WithDescription("Render the diagnostic report: version, error counters, and recent error entries"),
		mcp.WithString("format",
			mcp.Description("Report format: json or text (default: text)"),
		),
	)
}

// createDiagnosticsErrorsTool returns the diagnostics_errors tool definition
func createDiagnosticsErrorsTool() mcp.Tool {
	return mcp.NewTool("diagnostics_errors",
		mcp.WithDescription("List recent error log entries"),
		mcp.WithBoolean("count_only",
			mcp.Description("Return only the total count"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max entries to return (default: 20)"),
		),
	)
}

// createDiagnosticsClearTool returns the diagnostics_clear tool definition
func createDiagnosticsClearTool() mcp.Tool {
	return mcp.NewTool("diagnostics_clear",
		mcp.WithDescription("Clear every error log entry"),
	)
}
