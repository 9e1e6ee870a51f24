// -----------------------------------------------------------------------
// Capture Worker - the per-worker render/dedup/persist/harvest loop
// -----------------------------------------------------------------------

package capture

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// emptyQueuePollInterval is how long a worker naps when the queue is empty
// but siblings still hold URLs in flight
const emptyQueuePollInterval = 50 * time.Millisecond

// workerLoop processes URLs until the queue drains, the job is cancelled, or
// the pool collapses. Exactly W of these run per job.
func (s *Service) workerLoop(state *jobState, workerIndex int) {
	start := time.Now()
	processed := 0

	s.logger.Debug().
		Str("job_id", state.job.ID).
		Int("worker_index", workerIndex).
		Msg("Worker started")

	defer func() {
		s.logger.Debug().
			Str("job_id", state.job.ID).
			Int("worker_index", workerIndex).
			Int("urls_processed", processed).
			Float64("duration_sec", time.Since(start).Seconds()).
			Msg("Worker exiting")
	}()

	// Politeness is per worker, applied after each real render
	var limiter *rate.Limiter
	if state.opts.InterRequestDelayMs > 0 {
		delay := time.Duration(state.opts.InterRequestDelayMs) * time.Millisecond
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}

	for {
		s.mu.Lock()
		if state.cancelled || state.poolErr != nil {
			s.mu.Unlock()
			return
		}
		entry, ok := state.frontier.TryDequeue()
		if !ok {
			idle := len(state.frontier.inFlight) == 0
			s.mu.Unlock()
			if idle {
				return
			}
			// Siblings may still harvest links into the queue
			select {
			case <-state.jobCtx.Done():
				return
			case <-time.After(emptyQueuePollInterval):
			}
			continue
		}
		s.mu.Unlock()

		s.processURL(state, entry, limiter)
		processed++

		s.mu.Lock()
		snapshot := s.snapshotLocked(state)
		s.mu.Unlock()
		s.bus.Publish(snapshot)
	}
}

// processURL runs one URL through cache lookup, render, dedup, the per-seed
// limit gate, persistence, and link harvesting
func (s *Service) processURL(state *jobState, entry queueEntry, limiter *rate.Limiter) {
	result, err := s.obtainRender(state, entry.CanonicalURL, limiter)
	if err != nil {
		s.handleRenderFailure(state, entry.CanonicalURL, err)
		return
	}

	hash := ContentHash(result.Text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if state.cancelled {
		state.frontier.Abandon(entry.CanonicalURL)
		return
	}

	// Duplicate content: record the alternate URL, mark done, harvest nothing
	if existingPageID, dup := state.frontier.dedup[hash]; dup {
		if err := s.storage.PageStorage().AddAlternateURL(existingPageID, entry.CanonicalURL); err != nil {
			s.logger.Warn().Err(err).
				Str("page_id", existingPageID).
				Str("url", entry.CanonicalURL).
				Msg("Failed to record alternate URL")
		}
		state.frontier.Complete(entry.CanonicalURL)
		s.persistCountersLocked(state)
		return
	}

	// Final synchronous limit check; the limit gates persisted pages, not
	// discovered URLs
	if state.opts.PageLimitPerSeed > 0 && state.frontier.perSeedCount[entry.SeedIndex] >= state.opts.PageLimitPerSeed {
		state.frontier.SkipByLimit(entry.CanonicalURL)
		s.persistCountersLocked(state)
		return
	}

	page := buildPage(state.job.ID, entry.CanonicalURL, result, hash)
	if err := s.storage.PageStorage().SavePage(page); err != nil {
		storeErr := fmt.Errorf("store failed for %s: %w", entry.CanonicalURL, err)
		s.logger.Error().Err(err).Str("url", entry.CanonicalURL).Msg("Failed to persist page")
		state.frontier.Complete(entry.CanonicalURL)
		state.job.PagesFailed++
		state.job.AppendError(storeErr.Error())
		s.persistCountersLocked(state)
		s.logStoreFailure(state.job.ID, entry.CanonicalURL, err)
		return
	}

	state.frontier.dedup[hash] = page.ID
	state.frontier.perSeedCount[entry.SeedIndex]++
	state.frontier.Complete(entry.CanonicalURL)
	state.job.PagesProcessed++

	links := result.Links
	if len(links) == 0 && result.HTML != "" {
		links = ExtractLinks(result.HTML, entry.CanonicalURL)
	}
	s.harvestLocked(state, links, entry.Depth, entry.SeedIndex)

	s.persistCountersLocked(state)
}

// obtainRender serves the URL from the cross-job page cache when allowed,
// falling back to a real render through the slot pool
func (s *Service) obtainRender(state *jobState, canonicalURL string, limiter *rate.Limiter) (*interfaces.RenderResult, error) {
	if !state.opts.SkipCache {
		if cached, err := s.storage.PageStorage().FindByCanonicalURL(canonicalURL); err == nil && cached != nil {
			s.logger.Debug().Str("url", canonicalURL).Msg("Render served from page cache")
			return &interfaces.RenderResult{
				HTML:         cached.HTML,
				Text:         cached.Content,
				Metadata:     cached.Metadata,
				Markdown:     cached.Markdown,
				MarkdownMeta: cached.MarkdownMeta,
				Links:        ExtractLinks(cached.HTML, canonicalURL),
				FromCache:    true,
			}, nil
		}
	}

	slot, err := s.pool(state).Acquire(state.jobCtx)
	if err != nil {
		if state.jobCtx.Err() != nil {
			return nil, interfaces.NewRenderError(interfaces.RenderErrCancelled, "job cancelled", false)
		}
		s.mu.Lock()
		if state.poolErr == nil {
			state.poolErr = err
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("slot acquisition failed: %w", err)
	}

	result, renderErr := slot.Render(state.jobCtx, canonicalURL, interfaces.RenderOptions{
		WaitBudgetMs:             int(s.render.LoadEventBudget / time.Millisecond),
		ContentStabilityBudgetMs: int(s.render.ContentStabilityBudget / time.Millisecond),
		UseIncognito:             state.opts.UseIncognito,
	})
	s.pool(state).Release(slot)

	if limiter != nil {
		// Politeness delay outside the slot so siblings can use it
		_ = limiter.Wait(state.jobCtx)
	}

	if renderErr != nil {
		return nil, renderErr
	}
	return result, nil
}

func (s *Service) pool(state *jobState) interfaces.SlotPool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state.pool
}

// handleRenderFailure applies the failure semantics: cancellation abandons
// the URL without counting it, everything else marks it failed and moves on
func (s *Service) handleRenderFailure(state *jobState, canonicalURL string, err error) {
	var renderErr *interfaces.RenderError
	cancelled := state.jobCtx.Err() != nil ||
		(errors.As(err, &renderErr) && renderErr.Kind == interfaces.RenderErrCancelled)

	s.mu.Lock()
	if cancelled || state.poolErr != nil {
		// Neither a cancel nor a pool collapse is a page-level failure
		state.frontier.Abandon(canonicalURL)
		s.mu.Unlock()
		return
	}
	state.frontier.Complete(canonicalURL)
	state.job.PagesFailed++
	s.persistCountersLocked(state)
	jobID := state.job.ID
	s.mu.Unlock()

	s.logger.Warn().Err(err).Str("url", canonicalURL).Msg("Render failed")
	s.errorLog.Log("capture", err, map[string]string{
		"job_id": jobID,
		"url":    canonicalURL,
	})
}

// persistCountersLocked writes the job's counters through to the store.
// Caller holds the mutex.
func (s *Service) persistCountersLocked(state *jobState) {
	state.job.PagesFound = state.frontier.PagesFound()
	state.job.UpdatedAt = time.Now()
	if err := s.storage.JobStorage().UpdateJob(state.job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", state.job.ID).Msg("Failed to persist job counters")
	}
}

// logStoreFailure records a store failure outside the mutex path
func (s *Service) logStoreFailure(jobID, url string, err error) {
	go s.errorLog.Log("storage", err, map[string]string{
		"job_id": jobID,
		"url":    url,
	})
}

// buildPage assembles the persisted row for a fresh render
func buildPage(jobID, canonicalURL string, result *interfaces.RenderResult, hash string) *models.Page {
	return &models.Page{
		ID:            common.NewPageID(),
		JobID:         jobID,
		URL:           canonicalURL,
		CanonicalURL:  canonicalURL,
		AlternateURLs: []string{canonicalURL},
		Content:       result.Text,
		HTML:          result.HTML,
		Markdown:      result.Markdown,
		MarkdownMeta:  result.MarkdownMeta,
		Metadata:      result.Metadata,
		ContentHash:   hash,
		Status:        models.PageStatusSuccess,
		ExtractedAt:   time.Now(),
	}
}
