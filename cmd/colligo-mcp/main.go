package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/services/capture"
	"github.com/ternarybob/colligo/internal/services/errorlog"
	"github.com/ternarybob/colligo/internal/services/events"
	"github.com/ternarybob/colligo/internal/services/export"
	"github.com/ternarybob/colligo/internal/services/render"
	"github.com/ternarybob/colligo/internal/storage/badger"
)

func main() {
	configPath := os.Getenv("COLLIGO_CONFIG")
	if configPath == "" {
		configPath = "colligo.toml"
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Console-only, warn-level logging so stdio stays clean for the protocol
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	storageManager, err := badger.NewManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	errorLogService := errorlog.NewService(storageManager.ErrorLogStorage(), logger)
	if err := errorLogService.StartRetentionSweeper(config.Retention.Schedule); err != nil {
		logger.Warn().Err(err).Msg("Failed to start error log retention sweeper")
	}
	defer errorLogService.Stop()

	progressBus := events.NewBus(logger)
	defer progressBus.Close()

	poolFactory := func(size int, useIncognito bool) (interfaces.SlotPool, error) {
		return render.NewPool(size, config.Render, useIncognito, logger)
	}

	captureService := capture.NewService(
		storageManager,
		errorLogService,
		progressBus,
		poolFactory,
		config.Render,
		logger,
	)

	exportService := export.NewService(storageManager.PageStorage(), logger)

	mcpServer := server.NewMCPServer(
		"colligo",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	defaults := config.Capture.Defaults

	mcpServer.AddTool(createCrawlStartTool(), handleCrawlStart(captureService, defaults, logger))
	mcpServer.AddTool(createCrawlStatusTool(), handleCrawlStatus(captureService, storageManager.JobStorage(), logger))
	mcpServer.AddTool(createCrawlCancelTool(), handleCrawlCancel(captureService, logger))
	mcpServer.AddTool(createCrawlResumeTool(), handleCrawlResume(captureService, defaults, logger))

	mcpServer.AddTool(createPagesListTool(), handlePagesList(storageManager.PageStorage(), logger))
	mcpServer.AddTool(createPagesSearchTool(), handlePagesSearch(storageManager.PageStorage(), logger))

	mcpServer.AddTool(createConvertToFormatTool(), handleConvertToFormat(exportService, logger))
	mcpServer.AddTool(createExportArchiveTool(), handleExportArchive(exportService, logger))

	mcpServer.AddTool(createDiagnosticsReportTool(), handleDiagnosticsReport(errorLogService, logger))
	mcpServer.AddTool(createDiagnosticsErrorsTool(), handleDiagnosticsErrors(errorLogService, logger))
	mcpServer.AddTool(createDiagnosticsClearTool(), handleDiagnosticsClear(errorLogService, logger))

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server exited with error")
	}
}
