// -----------------------------------------------------------------------
// Frontier - per-job scheduling state: queue, in-flight, completed,
// skipped-by-limit, depth and dedup indexes
// -----------------------------------------------------------------------

package capture

// queueEntry is one scheduled unit of work
type queueEntry struct {
	CanonicalURL string
	Depth        int
	SeedIndex    int
}

// frontier owns every mutable scheduling set for one job. It carries no lock
// of its own: callers hold the job mutex around every access, which keeps the
// counter invariants checkable at any quiescent point.
//
// A canonical URL is in at most one of queue, inFlight, completed, or
// skippedByLimit at any time.
type frontier struct {
	queue          []queueEntry
	queued         map[string]bool
	inFlight       map[string]bool
	completed      map[string]bool
	skippedByLimit map[string]bool
	depths         map[string]int
	dedup          map[string]string // content hash -> page ID
	perSeedCount   []int             // persisted non-duplicate pages per seed
}

func newFrontier(seedCount int) *frontier {
	return &frontier{
		queued:         make(map[string]bool),
		inFlight:       make(map[string]bool),
		completed:      make(map[string]bool),
		skippedByLimit: make(map[string]bool),
		depths:         make(map[string]int),
		dedup:          make(map[string]string),
		perSeedCount:   make([]int, seedCount),
	}
}

// Known reports whether the URL has been scheduled in any form
func (f *frontier) Known(canonicalURL string) bool {
	return f.queued[canonicalURL] ||
		f.inFlight[canonicalURL] ||
		f.completed[canonicalURL] ||
		f.skippedByLimit[canonicalURL]
}

// Enqueue appends an entry preserving insertion order. Returns false if the
// URL is already known to the job.
func (f *frontier) Enqueue(entry queueEntry) bool {
	if f.Known(entry.CanonicalURL) {
		return false
	}
	f.queued[entry.CanonicalURL] = true
	f.depths[entry.CanonicalURL] = entry.Depth
	f.queue = append(f.queue, entry)
	return true
}

// TryDequeue pops the head of the queue and moves it to in-flight
func (f *frontier) TryDequeue() (queueEntry, bool) {
	if len(f.queue) == 0 {
		return queueEntry{}, false
	}
	entry := f.queue[0]
	f.queue = f.queue[1:]
	delete(f.queued, entry.CanonicalURL)
	f.inFlight[entry.CanonicalURL] = true
	return entry, true
}

// Complete moves an in-flight URL to the completed set
func (f *frontier) Complete(canonicalURL string) {
	delete(f.inFlight, canonicalURL)
	f.completed[canonicalURL] = true
}

// SkipByLimit records a URL dropped by a per-seed page limit. Skipped URLs
// count as done for termination but live in their own set.
func (f *frontier) SkipByLimit(canonicalURL string) {
	delete(f.inFlight, canonicalURL)
	f.skippedByLimit[canonicalURL] = true
}

// Abandon releases an in-flight URL without marking it done (cancel or
// failure paths). The URL may be rediscovered on resume.
func (f *frontier) Abandon(canonicalURL string) {
	delete(f.inFlight, canonicalURL)
}

// QueueSize returns the number of entries waiting to be dispatched
func (f *frontier) QueueSize() int {
	return len(f.queue)
}

// InFlightURLs returns a copy of the URLs currently being rendered
func (f *frontier) InFlightURLs() []string {
	urls := make([]string, 0, len(f.inFlight))
	for u := range f.inFlight {
		urls = append(urls, u)
	}
	return urls
}

// PagesFound is the total number of URLs the job has accounted for
func (f *frontier) PagesFound() int {
	return len(f.completed) + len(f.skippedByLimit) + len(f.inFlight) + len(f.queue)
}
