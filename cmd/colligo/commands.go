package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/capture"
	"github.com/ternarybob/colligo/internal/services/errorlog"
	"github.com/ternarybob/colligo/internal/services/events"
	"github.com/ternarybob/colligo/internal/services/render"
	"github.com/ternarybob/colligo/internal/storage/badger"
)

// runtime bundles the wired services for one CLI invocation
type runtime struct {
	storage  interfaces.StorageManager
	errorLog *errorlog.Service
	bus      interfaces.ProgressBus
	capture  interfaces.CaptureService
}

func buildRuntime() (*runtime, func(), error) {
	storageManager, err := badger.NewManager(logger, config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	errorLogService := errorlog.NewService(storageManager.ErrorLogStorage(), logger)
	if err := errorLogService.StartRetentionSweeper(config.Retention.Schedule); err != nil {
		logger.Warn().Err(err).Msg("Failed to start error log retention sweeper")
	}

	progressBus := events.NewBus(logger)

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

	cleanup := func() {
		progressBus.Close()
		errorLogService.Stop()
		if err := storageManager.Close(); err != nil {
			logger.Warn().Err(err).Msg("Storage close reported an error")
		}
	}

	return &runtime{
		storage:  storageManager,
		errorLog: errorLogService,
		bus:      progressBus,
		capture:  captureService,
	}, cleanup, nil
}

// captureFlags parses the per-run option overrides shared by capture and
// resume
func captureFlags(name string, args []string) (models.CaptureOptions, []string, error) {
	opts := config.Capture.Defaults

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	workers := fs.Int("workers", opts.Workers, "Render worker count (1-10)")
	limit := fs.Int("limit", opts.PageLimitPerSeed, "Max pages persisted per seed (0 = unlimited)")
	scope := fs.String("scope", string(opts.ScopeMode), "Path matching mode: strict or loose")
	skipCache := fs.Bool("skip-cache", opts.SkipCache, "Re-render every URL, ignoring the page cache")
	incognito := fs.Bool("incognito", opts.UseIncognito, "Render in incognito browser contexts")
	followExternal := fs.Bool("follow-external", opts.FollowExternal, "Follow links outside every seed's scope")
	maxHops := fs.Int("max-external-hops", opts.MaxExternalHops, "Max depth for out-of-scope links (1-5)")
	delay := fs.Int("delay-ms", opts.InterRequestDelayMs, "Per-worker delay between renders")

	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}

	opts.Workers = *workers
	opts.PageLimitPerSeed = *limit
	opts.ScopeMode = models.ScopeMode(*scope)
	opts.SkipCache = *skipCache
	opts.UseIncognito = *incognito
	opts.FollowExternal = *followExternal
	opts.MaxExternalHops = *maxHops
	opts.InterRequestDelayMs = *delay

	return opts, fs.Args(), nil
}

// runCapture starts a job and follows it to completion, printing progress
// ticks and cancelling cleanly on SIGINT
func runCapture(args []string) int {
	opts, seeds, err := captureFlags("capture", args)
	if err != nil {
		return 2
	}
	if len(seeds) == 0 {
		fmt.Fprintln(os.Stderr, "capture requires at least one seed URL")
		return 2
	}

	rt, cleanup, err := buildRuntime()
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		return 1
	}
	defer cleanup()

	jobID, err := rt.capture.Start(context.Background(), seeds, opts)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start capture")
		return 1
	}
	logger.Info().Str("job_id", jobID).Msg("Capture started")

	return followJob(rt)
}

// runResume continues an interrupted job
func runResume(args []string) int {
	opts, rest, err := captureFlags("resume", args)
	if err != nil {
		return 2
	}
	if len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "resume requires exactly one job ID")
		return 2
	}

	rt, cleanup, err := buildRuntime()
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		return 1
	}
	defer cleanup()

	if err := rt.capture.Resume(context.Background(), rest[0], opts); err != nil {
		logger.Error().Err(err).Str("job_id", rest[0]).Msg("Failed to resume capture")
		return 1
	}
	logger.Info().Str("job_id", rest[0]).Msg("Capture resumed")

	return followJob(rt)
}

// followJob streams progress until the job finishes. SIGINT requests a
// cooperative cancel; a second SIGINT exits hard.
func followJob(rt *runtime) int {
	ticks, unsubscribe := rt.bus.Subscribe()
	defer unsubscribe()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		rt.capture.Wait()
		close(done)
	}()

	interrupted := false
	for {
		select {
		case <-sigCh:
			if interrupted {
				logger.Warn().Msg("Second interrupt, exiting immediately")
				return 130
			}
			interrupted = true
			logger.Info().Msg("Interrupt received, cancelling job")
			if err := rt.capture.Cancel(); err != nil {
				logger.Warn().Err(err).Msg("Cancel failed")
			}
		case tick := <-ticks:
			logger.Info().
				Int("found", tick.PagesFound).
				Int("processed", tick.PagesProcessed).
				Int("failed", tick.PagesFailed).
				Int("queued", tick.QueueSize).
				Int("in_flight", len(tick.InProgress)).
				Msg("Progress")
		case <-done:
			snapshot := rt.capture.Status()
			logger.Info().
				Str("job_id", snapshot.JobID).
				Str("status", string(snapshot.Status)).
				Int("processed", snapshot.PagesProcessed).
				Int("failed", snapshot.PagesFailed).
				Msg("Capture finished")
			if snapshot.Status == models.JobStatusFailed {
				return 1
			}
			return 0
		}
	}
}

// runJobs lists the stored jobs, newest first
func runJobs() int {
	rt, cleanup, err := buildRuntime()
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		return 1
	}
	defer cleanup()

	jobs, err := rt.storage.JobStorage().ListJobs()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list jobs")
		return 1
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs stored")
		return 0
	}
	for _, job := range jobs {
		fmt.Printf("%s  %-12s  found=%-5d processed=%-5d failed=%-3d  %s\n",
			job.ID,
			job.Status,
			job.PagesFound,
			job.PagesProcessed,
			job.PagesFailed,
			job.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return 0
}

// runReport prints the diagnostic report
func runReport(args []string) int {
	format := "text"
	if len(args) > 0 {
		format = args[0]
	}

	rt, cleanup, err := buildRuntime()
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		return 1
	}
	defer cleanup()

	report, err := rt.errorLog.Report(format)
	if err != nil {
		logger.Error().Err(err).Str("format", format).Msg("Failed to build report")
		return 1
	}
	fmt.Println(report)
	return 0
}
