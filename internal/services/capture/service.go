// -----------------------------------------------------------------------
// Capture Service - job lifecycle, queue ownership, worker coordination
// -----------------------------------------------------------------------

package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

var (
	// ErrAlreadyActive is returned by Start/Resume while another job is live
	ErrAlreadyActive = errors.New("a capture job is already active")
	// ErrNoActiveJob is returned by Wait-style callers probing a quiet service
	ErrNoActiveJob = errors.New("no active capture job")
)

// PoolFactory builds the render slot pool for one job. Injected so tests can
// substitute scripted slots for real browser contexts.
type PoolFactory func(size int, useIncognito bool) (interfaces.SlotPool, error)

// jobState is the mutable state of the running job. Every field is guarded
// by Service.mu; persistence writes that feed counters happen inside the
// same critical section so completed always reflects persisted state.
type jobState struct {
	job      *models.Job
	frontier *frontier
	opts     models.CaptureOptions

	cancelled bool
	poolErr   error

	pool   interfaces.SlotPool
	jobCtx context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Service implements interfaces.CaptureService
type Service struct {
	logger   arbor.ILogger
	storage  interfaces.StorageManager
	errorLog interfaces.ErrorLogService
	bus      interfaces.ProgressBus
	seeder   *SitemapSeeder
	newPool  PoolFactory
	render   common.RenderConfig
	validate *validator.Validate

	mu           sync.Mutex
	active       *jobState
	lastSnapshot models.JobSnapshot
}

// NewService creates the capture service
func NewService(storage interfaces.StorageManager, errorLog interfaces.ErrorLogService, bus interfaces.ProgressBus, newPool PoolFactory, render common.RenderConfig, logger arbor.ILogger) interfaces.CaptureService {
	return &Service{
		logger:   logger,
		storage:  storage,
		errorLog: errorLog,
		bus:      bus,
		seeder:   NewSitemapSeeder(logger),
		newPool:  newPool,
		render:   render,
		validate: validator.New(),
	}
}

// Start creates and launches a new capture job over the given seeds.
// Invalid seeds or options fail before anything is persisted.
func (s *Service) Start(ctx context.Context, seeds []string, opts models.CaptureOptions) (string, error) {
	canonicalSeeds, err := s.prepare(seeds, &opts)
	if err != nil {
		return "", err
	}

	job := &models.Job{
		ID:             common.NewJobID(),
		Seeds:          seeds,
		CanonicalSeeds: canonicalSeeds,
		Status:         models.JobStatusPending,
		Options:        opts,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return "", ErrAlreadyActive
	}

	if err := s.storage.JobStorage().CreateJob(job); err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	state := s.newJobState(job, opts)

	// Seed URLs themselves are always scheduled at depth 0
	for i, seed := range canonicalSeeds {
		state.frontier.Enqueue(queueEntry{CanonicalURL: seed, Depth: 0, SeedIndex: i})
	}

	s.active = state
	s.mu.Unlock()

	s.logger.Info().
		Str("job_id", job.ID).
		Int("seeds", len(canonicalSeeds)).
		Int("workers", opts.Workers).
		Msg("Capture job starting")

	go s.run(state, true)
	return job.ID, nil
}

// Resume rehydrates a persisted job and continues it. The completed set and
// dedup index come from stored pages; the queue is rebuilt from links in the
// stored HTML that were never captured.
func (s *Service) Resume(ctx context.Context, jobID string, opts models.CaptureOptions) error {
	job, err := s.storage.JobStorage().GetJob(jobID)
	if err != nil {
		return err
	}

	applyOptionDefaults(&opts)
	if err := s.validate.Struct(opts); err != nil {
		return fmt.Errorf("invalid capture options: %w", err)
	}

	pages, err := s.storage.PageStorage().GetPagesByJobID(jobID)
	if err != nil {
		return fmt.Errorf("failed to load pages for resume: %w", err)
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return ErrAlreadyActive
	}

	job.Options = opts
	state := s.newJobState(job, opts)
	s.rehydrate(state, pages)

	job.Status = models.JobStatusPending
	job.UpdatedAt = time.Now()
	if err := s.storage.JobStorage().UpdateJob(job); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to update job for resume: %w", err)
	}

	s.active = state
	s.mu.Unlock()

	s.logger.Info().
		Str("job_id", jobID).
		Int("completed", len(state.frontier.completed)).
		Int("queued", state.frontier.QueueSize()).
		Msg("Capture job resuming")

	go s.run(state, false)
	return nil
}

// Cancel flips the cancellation flag and aborts in-flight renders. Safe to
// call repeatedly or with no job running.
func (s *Service) Cancel() error {
	s.mu.Lock()
	state := s.active
	if state == nil || state.cancelled {
		s.mu.Unlock()
		return nil
	}
	state.cancelled = true
	cancel := state.cancel
	s.mu.Unlock()

	s.logger.Info().Str("job_id", state.job.ID).Msg("Capture job cancellation requested")
	if cancel != nil {
		cancel()
	}
	return nil
}

// Status returns a consistent snapshot under the job mutex
func (s *Service) Status() models.JobSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return s.lastSnapshot
	}
	return s.snapshotLocked(s.active)
}

// Wait blocks until the current job finishes
func (s *Service) Wait() {
	s.mu.Lock()
	state := s.active
	s.mu.Unlock()
	if state == nil {
		return
	}
	<-state.done
}

// -----------------------------------------------------------------------
// Internal
// -----------------------------------------------------------------------

func (s *Service) newJobState(job *models.Job, opts models.CaptureOptions) *jobState {
	// Render aborts and sitemap fetches ride on the job context
	jobCtx, cancel := context.WithCancel(context.Background())
	return &jobState{
		job:      job,
		frontier: newFrontier(len(job.CanonicalSeeds)),
		opts:     opts,
		jobCtx:   jobCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// prepare validates seeds and options for Start
func (s *Service) prepare(seeds []string, opts *models.CaptureOptions) ([]string, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("at least one seed URL is required")
	}

	applyOptionDefaults(opts)
	if err := s.validate.Struct(*opts); err != nil {
		return nil, fmt.Errorf("invalid capture options: %w", err)
	}

	canonical := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		c, err := Canonicalize(seed, CanonicalizeOptions{StableQuery: opts.StableQuery})
		if err != nil {
			return nil, fmt.Errorf("invalid seed URL %q: %w", seed, err)
		}
		canonical = append(canonical, c)
	}
	return canonical, nil
}

// applyOptionDefaults fills zero-valued fields from the baseline options
func applyOptionDefaults(opts *models.CaptureOptions) {
	defaults := models.DefaultCaptureOptions()
	if opts.Workers == 0 {
		opts.Workers = defaults.Workers
	}
	if opts.ScopeMode == "" {
		opts.ScopeMode = defaults.ScopeMode
	}
	if opts.MaxExternalHops == 0 {
		opts.MaxExternalHops = defaults.MaxExternalHops
	}
	if opts.InterRequestDelayMs == 0 {
		opts.InterRequestDelayMs = defaults.InterRequestDelayMs
	}
}

// rehydrate rebuilds frontier state from persisted pages. Caller holds the
// mutex. Pages are attributed to the earliest seed whose scope matches their
// canonical URL; pages outside every seed's scope count against seed 0.
func (s *Service) rehydrate(state *jobState, pages []*models.Page) {
	f := state.frontier

	for _, page := range pages {
		if page.Status != models.PageStatusSuccess {
			continue
		}
		f.completed[page.CanonicalURL] = true
		for _, alt := range page.AlternateURLs {
			f.completed[alt] = true
		}
		if page.ContentHash != "" {
			f.dedup[page.ContentHash] = page.ID
		}
		seedIdx := s.attributeSeed(state, page.CanonicalURL)
		f.perSeedCount[seedIdx]++
	}

	// Seeds that never produced a page go back in the queue first
	for i, seed := range state.job.CanonicalSeeds {
		if !f.Known(seed) {
			f.Enqueue(queueEntry{CanonicalURL: seed, Depth: 0, SeedIndex: i})
		}
	}

	// Replay the stored DOM links so never-captured URLs re-enter the queue
	for _, page := range pages {
		if page.Status != models.PageStatusSuccess || page.HTML == "" {
			continue
		}
		parentSeed := s.attributeSeed(state, page.CanonicalURL)
		s.harvestLocked(state, ExtractLinks(page.HTML, page.CanonicalURL), 0, parentSeed)
	}
}

// attributeSeed returns the index of the earliest seed whose scope covers
// the URL, or 0 when none match
func (s *Service) attributeSeed(state *jobState, canonicalURL string) int {
	for i, seed := range state.job.CanonicalSeeds {
		if InScope(canonicalURL, seed, state.opts.ScopeMode) {
			return i
		}
	}
	return 0
}

// run seeds the queue from sitemaps, drives the workers, and finalizes the
// job status. Runs in its own goroutine; owns the job from here on.
func (s *Service) run(state *jobState, seedFromSitemaps bool) {
	defer close(state.done)

	if seedFromSitemaps {
		s.seedFromSitemaps(state)
	}

	pool, err := s.newPool(state.opts.Workers, state.opts.UseIncognito)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", state.job.ID).Msg("Failed to create render slot pool")
		s.mu.Lock()
		state.poolErr = err
		s.finishLocked(state)
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	state.pool = pool
	state.job.Status = models.JobStatusInProgress
	state.job.UpdatedAt = time.Now()
	if err := s.storage.JobStorage().UpdateJob(state.job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", state.job.ID).Msg("Failed to persist job status")
	}
	s.bus.Publish(s.snapshotLocked(state))
	s.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < state.opts.Workers; i++ {
		wg.Add(1)
		go func(workerIndex int) {
			defer wg.Done()
			s.workerLoop(state, workerIndex)
		}(i)
	}
	wg.Wait()

	s.mu.Lock()
	s.finishLocked(state)
	s.mu.Unlock()
}

// seedFromSitemaps runs discovery Phase A for every seed in order
func (s *Service) seedFromSitemaps(state *jobState) {
	for i, seed := range state.job.CanonicalSeeds {
		s.mu.Lock()
		cancelled := state.cancelled
		s.mu.Unlock()
		if cancelled {
			return
		}

		urls, failures := s.seeder.Seed(state.jobCtx, seed, state.opts.ScopeMode, state.opts.StableQuery)

		s.mu.Lock()
		for _, u := range urls {
			state.frontier.Enqueue(queueEntry{CanonicalURL: u, Depth: 0, SeedIndex: i})
		}
		for _, failure := range failures {
			state.job.AppendError(failure.Error())
		}
		s.mu.Unlock()

		for _, failure := range failures {
			s.errorLog.Log("sitemap", failure, map[string]string{
				"job_id":  state.job.ID,
				"seed":    seed,
				"sitemap": failure.SitemapURL,
			})
		}
	}
}

// harvestLocked applies discovery Phase B to a batch of raw links. Caller
// holds the mutex. Links enter the queue in the order given.
func (s *Service) harvestLocked(state *jobState, links []string, parentDepth, parentSeed int) {
	for _, link := range links {
		if !IsRenderableLink(link) {
			continue
		}
		canonical, err := Canonicalize(link, CanonicalizeOptions{StableQuery: state.opts.StableQuery})
		if err != nil {
			continue
		}
		if state.frontier.Known(canonical) {
			continue
		}

		depth := parentDepth + 1
		seedIdx := parentSeed
		for i, seed := range state.job.CanonicalSeeds {
			if InScope(canonical, seed, state.opts.ScopeMode) {
				depth = 0
				seedIdx = i
				break
			}
		}

		if depth > 0 {
			if !state.opts.FollowExternal || depth > state.opts.MaxExternalHops {
				continue
			}
		}

		state.frontier.Enqueue(queueEntry{CanonicalURL: canonical, Depth: depth, SeedIndex: seedIdx})
	}
}

// finishLocked settles the terminal status, persists it, and releases the
// active slot. Caller holds the mutex.
func (s *Service) finishLocked(state *jobState) {
	switch {
	case state.poolErr != nil:
		state.job.Status = models.JobStatusFailed
		state.job.AppendError(fmt.Sprintf("render pool failure: %v", state.poolErr))
	case state.cancelled:
		state.job.Status = models.JobStatusInterrupted
	default:
		state.job.Status = models.JobStatusCompleted
	}

	state.job.PagesFound = state.frontier.PagesFound()
	state.job.UpdatedAt = time.Now()
	if err := s.storage.JobStorage().UpdateJob(state.job); err != nil {
		s.logger.Error().Err(err).Str("job_id", state.job.ID).Msg("Failed to persist terminal job status")
	}

	if state.pool != nil {
		if err := state.pool.Close(); err != nil {
			s.logger.Warn().Err(err).Str("job_id", state.job.ID).Msg("Render pool close reported an error")
		}
	}
	state.cancel()

	snapshot := s.snapshotLocked(state)
	snapshot.Active = false
	s.lastSnapshot = snapshot
	s.active = nil
	s.bus.Publish(snapshot)

	s.logger.Info().
		Str("job_id", state.job.ID).
		Str("status", string(state.job.Status)).
		Int("pages_processed", state.job.PagesProcessed).
		Int("pages_failed", state.job.PagesFailed).
		Msg("Capture job finished")
}

// snapshotLocked builds a snapshot. Caller holds the mutex.
func (s *Service) snapshotLocked(state *jobState) models.JobSnapshot {
	return models.JobSnapshot{
		Active:         !state.job.Status.IsTerminal(),
		JobID:          state.job.ID,
		Status:         state.job.Status,
		PagesFound:     state.frontier.PagesFound(),
		PagesProcessed: state.job.PagesProcessed,
		PagesFailed:    state.job.PagesFailed,
		QueueSize:      state.frontier.QueueSize(),
		InProgress:     state.frontier.InFlightURLs(),
	}
}
