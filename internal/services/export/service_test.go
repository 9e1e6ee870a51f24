package export

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/storage/badger"
)

func testService(t *testing.T) (*Service, interfaces.PageStorage) {
	t.Helper()
	logger := arbor.NewLogger()

	config := common.DefaultConfig()
	config.Storage.Badger.Path = t.TempDir()

	manager, err := badger.NewManager(logger, config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return NewService(manager.PageStorage(), logger), manager.PageStorage()
}

func storedPage(t *testing.T, pages interfaces.PageStorage, jobID, url string, mutate func(*models.Page)) *models.Page {
	t.Helper()
	page := &models.Page{
		ID:            common.NewPageID(),
		JobID:         jobID,
		CanonicalURL:  url,
		AlternateURLs: []string{url},
		Content:       "plain text of " + url,
		HTML:          "<html><body>html of " + url + "</body></html>",
		Markdown:      "# Markdown of " + url,
		MarkdownMeta:  &models.MarkdownMeta{Confidence: 0.9, H1Count: 1},
		ContentHash:   "hash-" + url,
		Status:        models.PageStatusSuccess,
		ExtractedAt:   time.Now(),
	}
	if mutate != nil {
		mutate(page)
	}
	require.NoError(t, pages.SavePage(page))
	return page
}

func TestToFormatMarkdown(t *testing.T) {
	service, pages := testService(t)
	page := storedPage(t, pages, "job-1", "https://example.com/docs", nil)

	result, err := service.ToFormat("job-1", page.ID, FormatMarkdown, 0.5, false)
	require.NoError(t, err)

	assert.Equal(t, FormatMarkdown, result.Format)
	assert.False(t, result.Fallback)
	assert.Equal(t, page.Markdown, result.Content)
}

func TestToFormatFallsBackBelowConfidence(t *testing.T) {
	service, pages := testService(t)
	page := storedPage(t, pages, "job-1", "https://example.com/docs", func(p *models.Page) {
		p.MarkdownMeta = &models.MarkdownMeta{Confidence: 0.2}
	})

	result, err := service.ToFormat("job-1", page.ID, FormatMarkdown, 0.5, false)
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.Equal(t, FormatText, result.Format, "fallback reports the format actually delivered")
	assert.Equal(t, page.Content, result.Content)
	assert.Contains(t, result.Reason, "confidence")
}

func TestToFormatFallsBackWithoutMarkdown(t *testing.T) {
	service, pages := testService(t)
	page := storedPage(t, pages, "job-1", "https://example.com/docs", func(p *models.Page) {
		p.Markdown = ""
		p.MarkdownMeta = nil
	})

	result, err := service.ToFormat("job-1", page.ID, FormatMarkdown, 0.5, false)
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, page.Content, result.Content)
}

func TestToFormatHTMLFallsBackToText(t *testing.T) {
	service, pages := testService(t)
	page := storedPage(t, pages, "job-1", "https://example.com/docs", func(p *models.Page) {
		p.HTML = ""
	})

	result, err := service.ToFormat("job-1", page.ID, FormatHTML, 0, false)
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, page.Content, result.Content)
}

func TestToFormatIncludesMetadataHeader(t *testing.T) {
	service, pages := testService(t)
	page := storedPage(t, pages, "job-1", "https://example.com/docs", func(p *models.Page) {
		p.Metadata = &models.PageMetadata{Title: "Docs Home", Author: "Docs Team"}
	})

	result, err := service.ToFormat("job-1", page.ID, FormatMarkdown, 0.5, true)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "url: https://example.com/docs")
	assert.Contains(t, result.Content, "title: Docs Home")
	assert.Contains(t, result.Content, "author: Docs Team")
}

func TestToFormatWholeJobJoinsPages(t *testing.T) {
	service, pages := testService(t)
	storedPage(t, pages, "job-1", "https://example.com/a", nil)
	storedPage(t, pages, "job-1", "https://example.com/b", nil)

	result, err := service.ToFormat("job-1", "", FormatText, 0, false)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "\n\n---\n\n")
	assert.Contains(t, result.Content, "plain text of https://example.com/a")
	assert.Contains(t, result.Content, "plain text of https://example.com/b")
}

func TestToFormatRejectsForeignPage(t *testing.T) {
	service, pages := testService(t)
	page := storedPage(t, pages, "job-1", "https://example.com/a", nil)

	_, err := service.ToFormat("job-2", page.ID, FormatText, 0, false)
	assert.Error(t, err)
}

func TestToFormatEmptyJob(t *testing.T) {
	service, _ := testService(t)
	_, err := service.ToFormat("job-missing", "", FormatText, 0, false)
	assert.Error(t, err)
}

func TestAsArchiveRoundTrip(t *testing.T) {
	service, pages := testService(t)
	storedPage(t, pages, "job-1", "https://example.com/docs/intro", nil)
	storedPage(t, pages, "job-1", "https://example.com/docs/guide", nil)
	// Failed pages stay out of the archive
	storedPage(t, pages, "job-1", "https://example.com/docs/broken", func(p *models.Page) {
		p.Status = models.PageStatusFailed
	})

	archive, err := service.AsArchive([]string{"job-1"}, FormatMarkdown, 0.5)
	require.NoError(t, err)

	assert.Equal(t, "application/zip", archive.MimeType)
	assert.Equal(t, "base64", archive.Encoding)
	assert.Contains(t, archive.Filename, "colligo-export-")

	raw, err := base64.StdEncoding.DecodeString(archive.Content)
	require.NoError(t, err)
	assert.Equal(t, archive.Size, len(raw))

	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Len(t, reader.File, 2)

	contents := make(map[string]string)
	for _, file := range reader.File {
		rc, err := file.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		contents[file.Name] = string(data)
	}

	assert.Equal(t, "# Markdown of https://example.com/docs/intro",
		contents["job-1/example.com/docs/intro.md"])
	assert.Equal(t, "# Markdown of https://example.com/docs/guide",
		contents["job-1/example.com/docs/guide.md"])
}

func TestAsArchiveNameCollisions(t *testing.T) {
	service, pages := testService(t)
	// Same path after sanitization
	storedPage(t, pages, "job-1", "https://example.com/a?v=1", nil)
	storedPage(t, pages, "job-1", "https://example.com/a?v=2", nil)

	archive, err := service.AsArchive([]string{"job-1"}, FormatText, 0)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(archive.Content)
	require.NoError(t, err)
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, file := range reader.File {
		assert.False(t, names[file.Name], "duplicate entry name %s", file.Name)
		names[file.Name] = true
	}
	assert.Len(t, names, 2)
}

func TestAsArchiveInputValidation(t *testing.T) {
	service, _ := testService(t)

	_, err := service.AsArchive(nil, FormatText, 0)
	assert.Error(t, err)

	_, err = service.AsArchive([]string{"job-1"}, FormatHTML, 0)
	assert.Error(t, err, "archives carry text or markdown only")
}
