package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontierEnqueueRejectsKnownURLs(t *testing.T) {
	f := newFrontier(1)

	assert.True(t, f.Enqueue(queueEntry{CanonicalURL: "https://example.com/a"}))
	assert.False(t, f.Enqueue(queueEntry{CanonicalURL: "https://example.com/a"}), "queued URL")

	entry, ok := f.TryDequeue()
	require.True(t, ok)
	assert.False(t, f.Enqueue(queueEntry{CanonicalURL: entry.CanonicalURL}), "in-flight URL")

	f.Complete(entry.CanonicalURL)
	assert.False(t, f.Enqueue(queueEntry{CanonicalURL: entry.CanonicalURL}), "completed URL")

	require.True(t, f.Enqueue(queueEntry{CanonicalURL: "https://example.com/b"}))
	_, ok = f.TryDequeue()
	require.True(t, ok)
	f.SkipByLimit("https://example.com/b")
	assert.False(t, f.Enqueue(queueEntry{CanonicalURL: "https://example.com/b"}), "skipped URL")
}

func TestFrontierPreservesInsertionOrder(t *testing.T) {
	f := newFrontier(1)
	urls := []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
	}
	for _, u := range urls {
		require.True(t, f.Enqueue(queueEntry{CanonicalURL: u}))
	}
	for _, expected := range urls {
		entry, ok := f.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, expected, entry.CanonicalURL)
		f.Complete(entry.CanonicalURL)
	}
	_, ok := f.TryDequeue()
	assert.False(t, ok)
}

func TestFrontierURLInExactlyOneSet(t *testing.T) {
	f := newFrontier(1)
	url := "https://example.com/page"

	inSets := func() int {
		count := 0
		if f.queued[url] {
			count++
		}
		if f.inFlight[url] {
			count++
		}
		if f.completed[url] {
			count++
		}
		if f.skippedByLimit[url] {
			count++
		}
		return count
	}

	require.True(t, f.Enqueue(queueEntry{CanonicalURL: url}))
	assert.Equal(t, 1, inSets())

	_, ok := f.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 1, inSets())

	f.SkipByLimit(url)
	assert.Equal(t, 1, inSets())
}

func TestFrontierAbandonReleasesURL(t *testing.T) {
	f := newFrontier(1)
	require.True(t, f.Enqueue(queueEntry{CanonicalURL: "https://example.com/a"}))
	entry, ok := f.TryDequeue()
	require.True(t, ok)

	f.Abandon(entry.CanonicalURL)

	// An abandoned URL can be rediscovered
	assert.False(t, f.Known(entry.CanonicalURL))
	assert.True(t, f.Enqueue(queueEntry{CanonicalURL: entry.CanonicalURL}))
}

func TestFrontierPagesFound(t *testing.T) {
	f := newFrontier(2)
	require.True(t, f.Enqueue(queueEntry{CanonicalURL: "https://example.com/a"}))
	require.True(t, f.Enqueue(queueEntry{CanonicalURL: "https://example.com/b"}))
	require.True(t, f.Enqueue(queueEntry{CanonicalURL: "https://example.com/c"}))

	_, _ = f.TryDequeue()
	f.Complete("https://example.com/a")
	_, _ = f.TryDequeue()

	// a completed, b in flight, c queued
	assert.Equal(t, 3, f.PagesFound())
	assert.Equal(t, 1, f.QueueSize())
	assert.Equal(t, []string{"https://example.com/b"}, f.InFlightURLs())
}
