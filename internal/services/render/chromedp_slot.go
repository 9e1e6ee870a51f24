// -----------------------------------------------------------------------
// ChromeDP Slot - one reusable headless browser rendering context
// -----------------------------------------------------------------------

package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/services/capture"
	"github.com/ternarybob/colligo/internal/services/markdown"
	"github.com/ternarybob/colligo/internal/services/metadata"
)

const slotStartupTimeout = 30 * time.Second

// navObserverJS records SPA navigations so harvested links include
// pushState/replaceState targets alongside anchor hrefs
const navObserverJS = `(() => {
	window.__colligoNav = [];
	const record = () => { window.__colligoNav.push(location.href); };
	const origPush = history.pushState;
	history.pushState = function(...args) { origPush.apply(this, args); record(); };
	const origReplace = history.replaceState;
	history.replaceState = function(...args) { origReplace.apply(this, args); record(); };
	window.addEventListener('popstate', record);
})()`

const harvestLinksJS = `(() => {
	const anchors = Array.from(document.querySelectorAll('a[href], area[href]'))
		.map(a => a.href)
		.filter(h => typeof h === 'string' && h.length > 0);
	return anchors.concat(window.__colligoNav || []);
})()`

const innerTextJS = `document.body ? document.body.innerText : ''`
const innerTextLenJS = `document.body ? document.body.innerText.length : 0`
const domNodeCountJS = `document.querySelectorAll('*').length`

// chromedpSlot implements interfaces.RenderSlot over a dedicated headless
// browser instance. Each Render call runs in a fresh tab so page state never
// leaks between URLs.
type chromedpSlot struct {
	index        int
	config       common.RenderConfig
	useIncognito bool
	logger       arbor.ILogger

	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// newChromedpSlot boots one browser instance and verifies it responds
func newChromedpSlot(index int, config common.RenderConfig, useIncognito bool, logger arbor.ILogger) (interfaces.RenderSlot, error) {
	start := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", config.DisableGPU),
		chromedp.Flag("no-sandbox", config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		// Background tabs must keep running timers or readiness polling
		// never settles
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.UserAgent(config.UserAgent),
	)
	if useIncognito {
		allocatorOpts = append(allocatorOpts, chromedp.Flag("incognito", true))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, slotStartupTimeout)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("render slot failed startup test: %w", err)
	}

	logger.Debug().
		Int("slot_index", index).
		Float64("startup_sec", time.Since(start).Seconds()).
		Msg("Render slot created")

	return &chromedpSlot{
		index:           index,
		config:          config,
		useIncognito:    useIncognito,
		logger:          logger,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
	}, nil
}

// Render navigates the slot's browser to the URL, waits for the page to
// settle through the phased readiness budgets, and extracts the result
func (s *chromedpSlot) Render(ctx context.Context, url string, opts interfaces.RenderOptions) (*interfaces.RenderResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, interfaces.NewRenderError(interfaces.RenderErrInternal, "render slot is closed", false)
	}
	s.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	defer tabCancel()

	renderCtx, renderCancel := context.WithTimeout(tabCtx, s.config.RenderWallClockCap)
	defer renderCancel()

	// Caller cancellation aborts the tab even mid-navigation
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	loadFired := make(chan struct{})
	var loadOnce sync.Once
	var inflightRequests int64

	chromedp.ListenTarget(renderCtx, func(ev interface{}) {
		switch ev.(type) {
		case *cdppage.EventLoadEventFired:
			loadOnce.Do(func() { close(loadFired) })
		case *network.EventRequestWillBeSent:
			atomic.AddInt64(&inflightRequests, 1)
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			atomic.AddInt64(&inflightRequests, -1)
		}
	})

	err := chromedp.Run(renderCtx,
		network.Enable(),
		chromedp.ActionFunc(func(cdctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(navObserverJS).Do(cdctx)
			return err
		}),
		chromedp.ActionFunc(func(cdctx context.Context) error {
			_, _, _, _, err := cdppage.Navigate(url).Do(cdctx)
			return err
		}),
	)
	if err != nil {
		return nil, s.classify(ctx, err, interfaces.RenderErrNavigationFailed)
	}

	s.awaitLoadEvent(renderCtx, loadFired, s.waitBudget(opts))
	s.awaitQuiescence(renderCtx, &inflightRequests)
	s.awaitContentPlateau(renderCtx, s.stabilityBudget(opts))

	var html, text string
	var links []string
	err = chromedp.Run(renderCtx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Evaluate(innerTextJS, &text),
		chromedp.Evaluate(harvestLinksJS, &links),
	)
	if err != nil {
		return nil, s.classify(ctx, err, interfaces.RenderErrScriptError)
	}

	md, mdMeta := markdown.Convert(html, url)

	return &interfaces.RenderResult{
		HTML:         html,
		Text:         capture.NormalizeContent(text),
		Metadata:     metadata.Extract(html),
		Markdown:     md,
		MarkdownMeta: mdMeta,
		Links:        links,
	}, nil
}

// Close tears down the browser instance. Any in-flight render is aborted by
// the context cancellation.
func (s *chromedpSlot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.browserCancel()
	s.allocatorCancel()
	s.logger.Debug().Int("slot_index", s.index).Msg("Render slot closed")
	return nil
}

// -----------------------------------------------------------------------
// Phased readiness
// -----------------------------------------------------------------------

// awaitLoadEvent is phase 1: wait for the load event or the budget, whichever
// comes first. Exhausting the budget falls through rather than failing.
func (s *chromedpSlot) awaitLoadEvent(ctx context.Context, loadFired <-chan struct{}, budget time.Duration) {
	select {
	case <-loadFired:
	case <-time.After(budget):
	case <-ctx.Done():
	}
}

// awaitQuiescence is phase 2: poll for zero in-flight network requests and an
// unchanged DOM node count between consecutive ticks
func (s *chromedpSlot) awaitQuiescence(ctx context.Context, inflightRequests *int64) {
	deadline := time.After(s.config.QuiescenceBudget)
	ticker := time.NewTicker(s.config.ContentStabilityInterval)
	defer ticker.Stop()

	lastNodeCount := -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
			if atomic.LoadInt64(inflightRequests) > 0 {
				lastNodeCount = -1
				continue
			}
			var nodeCount int
			if err := chromedp.Run(ctx, chromedp.Evaluate(domNodeCountJS, &nodeCount)); err != nil {
				return
			}
			if nodeCount == lastNodeCount {
				return
			}
			lastNodeCount = nodeCount
		}
	}
}

// awaitContentPlateau is phase 3: resolve once the visible text length has
// been unchanged for the stability window
func (s *chromedpSlot) awaitContentPlateau(ctx context.Context, budget time.Duration) {
	deadline := time.After(budget)
	ticker := time.NewTicker(s.config.ContentStabilityInterval)
	defer ticker.Stop()

	lastLen := -1
	stableSince := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
			var length int
			if err := chromedp.Run(ctx, chromedp.Evaluate(innerTextLenJS, &length)); err != nil {
				return
			}
			if length != lastLen {
				lastLen = length
				stableSince = time.Now()
				continue
			}
			if time.Since(stableSince) >= s.config.ContentStabilityWindow {
				return
			}
		}
	}
}

// -----------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------

func (s *chromedpSlot) waitBudget(opts interfaces.RenderOptions) time.Duration {
	if opts.WaitBudgetMs > 0 {
		return time.Duration(opts.WaitBudgetMs) * time.Millisecond
	}
	return s.config.LoadEventBudget
}

func (s *chromedpSlot) stabilityBudget(opts interfaces.RenderOptions) time.Duration {
	if opts.ContentStabilityBudgetMs > 0 {
		return time.Duration(opts.ContentStabilityBudgetMs) * time.Millisecond
	}
	return s.config.ContentStabilityBudget
}

// classify maps low-level chromedp failures onto the typed render errors
func (s *chromedpSlot) classify(callerCtx context.Context, err error, fallback interfaces.RenderErrorKind) error {
	if callerCtx.Err() != nil {
		return interfaces.NewRenderError(interfaces.RenderErrCancelled, err.Error(), false)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return interfaces.NewRenderError(interfaces.RenderErrLoadTimeout, err.Error(), true)
	}
	return interfaces.NewRenderError(fallback, err.Error(), false)
}
