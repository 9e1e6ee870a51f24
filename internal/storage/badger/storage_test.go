package badger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	config := common.DefaultConfig()
	config.Storage.Badger.Path = t.TempDir()
	return config
}

func testManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	manager, err := NewManager(arbor.NewLogger(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func testJob(id string) *models.Job {
	return &models.Job{
		ID:             id,
		Seeds:          []string{"https://example.com/docs"},
		CanonicalSeeds: []string{"https://example.com/docs"},
		Status:         models.JobStatusPending,
		Options:        models.DefaultCaptureOptions(),
	}
}

func testPage(id, jobID, url string) *models.Page {
	return &models.Page{
		ID:            id,
		JobID:         jobID,
		URL:           url,
		CanonicalURL:  url,
		AlternateURLs: []string{url},
		Content:       "content of " + url,
		ContentHash:   "hash-" + url,
		Status:        models.PageStatusSuccess,
		ExtractedAt:   time.Now(),
	}
}

// -----------------------------------------------------------------------
// Jobs
// -----------------------------------------------------------------------

func TestJobCreateAndGet(t *testing.T) {
	jobs := testManager(t).JobStorage()

	job := testJob("job-1")
	require.NoError(t, jobs.CreateJob(job))
	assert.False(t, job.CreatedAt.IsZero())

	loaded, err := jobs.GetJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, job.Seeds, loaded.Seeds)
	assert.Equal(t, models.JobStatusPending, loaded.Status)
}

func TestJobCreateValidation(t *testing.T) {
	jobs := testManager(t).JobStorage()

	assert.Error(t, jobs.CreateJob(&models.Job{Seeds: []string{"https://example.com"}}), "missing ID")
	assert.Error(t, jobs.CreateJob(&models.Job{ID: "job-1"}), "missing seeds")

	require.NoError(t, jobs.CreateJob(testJob("job-1")))
	assert.Error(t, jobs.CreateJob(testJob("job-1")), "duplicate ID")
}

func TestJobGetMissing(t *testing.T) {
	jobs := testManager(t).JobStorage()
	_, err := jobs.GetJob("job-missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobUpdatePersistsCounters(t *testing.T) {
	jobs := testManager(t).JobStorage()

	job := testJob("job-1")
	require.NoError(t, jobs.CreateJob(job))

	job.Status = models.JobStatusCompleted
	job.PagesFound = 12
	job.PagesProcessed = 10
	job.PagesFailed = 2
	require.NoError(t, jobs.UpdateJob(job))

	loaded, err := jobs.GetJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, loaded.Status)
	assert.Equal(t, 12, loaded.PagesFound)
	assert.Equal(t, 10, loaded.PagesProcessed)
	assert.Equal(t, 2, loaded.PagesFailed)
	assert.False(t, loaded.UpdatedAt.Before(loaded.CreatedAt))
}

func TestJobListNewestFirst(t *testing.T) {
	jobs := testManager(t).JobStorage()

	older := testJob("job-older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, jobs.CreateJob(older))

	newer := testJob("job-newer")
	require.NoError(t, jobs.CreateJob(newer))

	listed, err := jobs.ListJobs()
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "job-newer", listed[0].ID)
	assert.Equal(t, "job-older", listed[1].ID)
}

func TestJobDelete(t *testing.T) {
	jobs := testManager(t).JobStorage()

	require.NoError(t, jobs.CreateJob(testJob("job-1")))
	require.NoError(t, jobs.DeleteJob("job-1"))
	_, err := jobs.GetJob("job-1")
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.NoError(t, jobs.DeleteJob("job-missing"), "deleting a missing job is a no-op")
}

// -----------------------------------------------------------------------
// Pages
// -----------------------------------------------------------------------

func TestPageSaveAndReload(t *testing.T) {
	pages := testManager(t).PageStorage()

	page := testPage("page-1", "job-1", "https://example.com/docs")
	page.Markdown = "# Docs"
	page.MarkdownMeta = &models.MarkdownMeta{Confidence: 0.8, H1Count: 1}
	page.Metadata = &models.PageMetadata{Title: "Docs"}
	require.NoError(t, pages.SavePage(page))

	loaded, err := pages.GetPage("page-1")
	require.NoError(t, err)
	assert.Equal(t, page.Content, loaded.Content)
	assert.Equal(t, page.ContentHash, loaded.ContentHash)
	assert.Equal(t, 0.8, loaded.MarkdownMeta.Confidence)
	assert.Equal(t, "Docs", loaded.Metadata.Title)
}

func TestPageSaveValidation(t *testing.T) {
	pages := testManager(t).PageStorage()
	assert.Error(t, pages.SavePage(&models.Page{JobID: "job-1"}), "missing ID")
	assert.Error(t, pages.SavePage(&models.Page{ID: "page-1"}), "missing job ID")
}

func TestPageFindByContentHashScopedToJob(t *testing.T) {
	pages := testManager(t).PageStorage()

	page := testPage("page-1", "job-1", "https://example.com/a")
	require.NoError(t, pages.SavePage(page))

	found, err := pages.FindPageByContentHash("job-1", page.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, "page-1", found.ID)

	// Same hash under a different job is not a dedup hit
	_, err = pages.FindPageByContentHash("job-2", page.ContentHash)
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestPageFindByCanonicalURLPrefersRecentSuccess(t *testing.T) {
	pages := testManager(t).PageStorage()
	url := "https://example.com/docs"

	older := testPage("page-old", "job-1", url)
	older.ExtractedAt = time.Now().Add(-time.Hour)
	require.NoError(t, pages.SavePage(older))

	failed := testPage("page-failed", "job-2", url)
	failed.Status = models.PageStatusFailed
	require.NoError(t, pages.SavePage(failed))

	newer := testPage("page-new", "job-3", url)
	require.NoError(t, pages.SavePage(newer))

	found, err := pages.FindByCanonicalURL(url)
	require.NoError(t, err)
	assert.Equal(t, "page-new", found.ID)

	_, err = pages.FindByCanonicalURL("https://example.com/unknown")
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestPageAddAlternateURL(t *testing.T) {
	pages := testManager(t).PageStorage()

	page := testPage("page-1", "job-1", "https://example.com/a")
	require.NoError(t, pages.SavePage(page))

	require.NoError(t, pages.AddAlternateURL("page-1", "https://example.com/a-copy"))
	// Re-adding is idempotent
	require.NoError(t, pages.AddAlternateURL("page-1", "https://example.com/a-copy"))

	loaded, err := pages.GetPage("page-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/a-copy"}, loaded.AlternateURLs)

	assert.ErrorIs(t, pages.AddAlternateURL("page-missing", "https://example.com/x"), ErrPageNotFound)
}

func TestPageSearchByURLSubstring(t *testing.T) {
	pages := testManager(t).PageStorage()

	require.NoError(t, pages.SavePage(testPage("page-1", "job-1", "https://example.com/docs/intro")))
	require.NoError(t, pages.SavePage(testPage("page-2", "job-1", "https://example.com/blog/post")))

	found, err := pages.SearchPagesByURLSubstring("DOCS")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "page-1", found[0].ID)

	found, err = pages.SearchPagesByURLSubstring("example.com")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	_, err = pages.SearchPagesByURLSubstring("")
	assert.Error(t, err)
}

func TestPageDeleteByJobID(t *testing.T) {
	pages := testManager(t).PageStorage()

	require.NoError(t, pages.SavePage(testPage("page-1", "job-1", "https://example.com/a")))
	require.NoError(t, pages.SavePage(testPage("page-2", "job-1", "https://example.com/b")))
	require.NoError(t, pages.SavePage(testPage("page-3", "job-2", "https://example.com/c")))

	require.NoError(t, pages.DeletePagesByJobID("job-1"))

	count, err := pages.CountPages()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	remaining, err := pages.GetPagesByJobID("job-2")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

// -----------------------------------------------------------------------
// Schema versioning
// -----------------------------------------------------------------------

func TestSchemaVersionWrittenOnFreshStore(t *testing.T) {
	manager := testManager(t)
	assert.Equal(t, CurrentSchemaVersion, manager.SchemaVersion())
}

func TestSchemaVersionSurvivesReopen(t *testing.T) {
	config := testConfig(t)
	logger := arbor.NewLogger()

	manager, err := NewManager(logger, config)
	require.NoError(t, err)
	require.NoError(t, manager.JobStorage().CreateJob(testJob("job-1")))
	require.NoError(t, manager.Close())

	reopened, err := NewManager(logger, config)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, CurrentSchemaVersion, reopened.SchemaVersion())
	job, err := reopened.JobStorage().GetJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
}

func TestSchemaRefusesNewerStore(t *testing.T) {
	config := testConfig(t)
	logger := arbor.NewLogger()

	db, err := NewBadgerDB(logger, &config.Storage.Badger)
	require.NoError(t, err)
	meta := SchemaMeta{Key: schemaMetaKey, Version: CurrentSchemaVersion + 1}
	require.NoError(t, db.Store().Upsert(schemaMetaKey, &meta))
	require.NoError(t, db.Close())

	_, err = NewManager(logger, config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestResetOnStartupWipesStore(t *testing.T) {
	config := testConfig(t)
	logger := arbor.NewLogger()

	manager, err := NewManager(logger, config)
	require.NoError(t, err)
	require.NoError(t, manager.JobStorage().CreateJob(testJob("job-1")))
	require.NoError(t, manager.Close())

	config.Storage.Badger.ResetOnStartup = true
	wiped, err := NewManager(logger, config)
	require.NoError(t, err)
	defer wiped.Close()

	_, err = wiped.JobStorage().GetJob("job-1")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
