package badger

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// ErrPageNotFound is returned when a page lookup has no match
var ErrPageNotFound = fmt.Errorf("page not found")

// PageStorage implements the PageStorage interface for Badger
type PageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPageStorage creates a new PageStorage instance
func NewPageStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PageStorage {
	return &PageStorage{
		db:     db,
		logger: logger,
	}
}

func (s *PageStorage) SavePage(page *models.Page) error {
	if page.ID == "" {
		return fmt.Errorf("page ID is required")
	}
	if page.JobID == "" {
		return fmt.Errorf("page job ID is required")
	}

	if err := s.db.Store().Upsert(page.ID, page); err != nil {
		return fmt.Errorf("failed to save page: %w", err)
	}
	return nil
}

func (s *PageStorage) GetPage(id string) (*models.Page, error) {
	var page models.Page
	if err := s.db.Store().Get(id, &page); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrPageNotFound
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return &page, nil
}

func (s *PageStorage) GetPagesByJobID(jobID string) ([]*models.Page, error) {
	var pages []models.Page
	if err := s.db.Store().Find(&pages, badgerhold.Where("JobID").Eq(jobID).Index("JobID")); err != nil {
		return nil, fmt.Errorf("failed to get pages for job %s: %w", jobID, err)
	}

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].ExtractedAt.Before(pages[j].ExtractedAt)
	})

	result := make([]*models.Page, len(pages))
	for i := range pages {
		result[i] = &pages[i]
	}
	return result, nil
}

func (s *PageStorage) FindPageByContentHash(jobID, hash string) (*models.Page, error) {
	var pages []models.Page
	err := s.db.Store().Find(&pages, badgerhold.Where("ContentHash").Eq(hash).Index("ContentHash").And("JobID").Eq(jobID))
	if err != nil {
		return nil, fmt.Errorf("failed to find page by content hash: %w", err)
	}
	if len(pages) == 0 {
		return nil, ErrPageNotFound
	}
	return &pages[0], nil
}

func (s *PageStorage) FindByCanonicalURL(canonicalURL string) (*models.Page, error) {
	var pages []models.Page
	err := s.db.Store().Find(&pages, badgerhold.Where("CanonicalURL").Eq(canonicalURL).Index("CanonicalURL"))
	if err != nil {
		return nil, fmt.Errorf("failed to find page by canonical URL: %w", err)
	}
	if len(pages) == 0 {
		return nil, ErrPageNotFound
	}

	// Most recent successful capture wins
	var best *models.Page
	for i := range pages {
		p := &pages[i]
		if p.Status != models.PageStatusSuccess {
			continue
		}
		if best == nil || p.ExtractedAt.After(best.ExtractedAt) {
			best = p
		}
	}
	if best == nil {
		return nil, ErrPageNotFound
	}
	return best, nil
}

func (s *PageStorage) AddAlternateURL(pageID, url string) error {
	page, err := s.GetPage(pageID)
	if err != nil {
		return err
	}
	if page.HasAlternate(url) {
		return nil
	}
	page.AlternateURLs = append(page.AlternateURLs, url)
	return s.SavePage(page)
}

func (s *PageStorage) SearchPagesByURLSubstring(q string) ([]*models.Page, error) {
	if q == "" {
		return nil, fmt.Errorf("search query is required")
	}

	// Literal substring match, case-insensitive, against URL and alternates
	regex, err := regexp.Compile("(?i)" + regexp.QuoteMeta(q))
	if err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	var pages []models.Page
	if err := s.db.Store().Find(&pages, badgerhold.Where("URL").RegExp(regex).Or(badgerhold.Where("CanonicalURL").RegExp(regex))); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	result := make([]*models.Page, len(pages))
	for i := range pages {
		result[i] = &pages[i]
	}
	return result, nil
}

func (s *PageStorage) DeletePagesByJobID(jobID string) error {
	if err := s.db.Store().DeleteMatching(&models.Page{}, badgerhold.Where("JobID").Eq(jobID).Index("JobID")); err != nil {
		return fmt.Errorf("failed to delete pages for job %s: %w", jobID, err)
	}
	return nil
}

func (s *PageStorage) CountPages() (int, error) {
	count, err := s.db.Store().Count(&models.Page{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return int(count), nil
}
