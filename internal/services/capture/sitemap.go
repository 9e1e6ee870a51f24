// -----------------------------------------------------------------------
// Sitemap Seeder - fetches sitemap.xml per seed and yields in-scope URLs
// -----------------------------------------------------------------------

package capture

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
)

const (
	rootSitemapTimeout   = 10 * time.Second
	nestedSitemapTimeout = 5 * time.Second
	seedSitemapBudget    = 30 * time.Second
	maxSitemapIndexDepth = 2
	maxSitemapBody       = 50 << 20 // 50 MB cap per sitemap document
)

// sitemapDoc matches both <urlset> and <sitemapindex> payloads. Which one
// arrived is decided by the root element name.
type sitemapDoc struct {
	XMLName  xml.Name     `xml:""`
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// SitemapFetchError records one failed sitemap fetch. Seeding continues past
// these; they surface in the job's error list.
type SitemapFetchError struct {
	SitemapURL string
	Err        error
}

func (e *SitemapFetchError) Error() string {
	return fmt.Sprintf("sitemap fetch failed for %s: %v", e.SitemapURL, e.Err)
}

// SitemapSeeder discovers initial URLs for a seed by walking its sitemap
type SitemapSeeder struct {
	client *http.Client
	logger arbor.ILogger
}

func NewSitemapSeeder(logger arbor.ILogger) *SitemapSeeder {
	return &SitemapSeeder{
		client: &http.Client{},
		logger: logger,
	}
}

// Seed fetches ${scheme}://${host}/sitemap.xml for the canonical seed,
// follows sitemap-index references to depth 2, and returns the in-scope
// canonical URLs in sitemap order. Fetch failures are returned alongside the
// gathered URLs; neither a failure nor the 30 s per-seed budget aborts what
// was already collected.
func (s *SitemapSeeder) Seed(ctx context.Context, canonicalSeed string, mode models.ScopeMode, stableQuery bool) ([]string, []*SitemapFetchError) {
	seedURL, err := url.Parse(canonicalSeed)
	if err != nil {
		return nil, []*SitemapFetchError{{SitemapURL: canonicalSeed, Err: err}}
	}

	rootSitemap := seedURL.Scheme + "://" + seedURL.Host + "/sitemap.xml"

	budgetCtx, cancel := context.WithTimeout(ctx, seedSitemapBudget)
	defer cancel()

	var urls []string
	var failures []*SitemapFetchError
	seen := make(map[string]bool)

	s.walk(budgetCtx, rootSitemap, 0, rootSitemapTimeout, func(loc string) {
		canonical, cerr := Canonicalize(loc, CanonicalizeOptions{StableQuery: stableQuery})
		if cerr != nil {
			return
		}
		if !InScope(canonical, canonicalSeed, mode) {
			return
		}
		if seen[canonical] {
			return
		}
		seen[canonical] = true
		urls = append(urls, canonical)
	}, &failures)

	s.logger.Debug().
		Str("seed", canonicalSeed).
		Int("urls", len(urls)).
		Int("failures", len(failures)).
		Msg("Sitemap seeding finished")

	return urls, failures
}

// walk fetches one sitemap document and either emits its page locations or
// recurses into referenced sitemaps, depth capped at 2
func (s *SitemapSeeder) walk(ctx context.Context, sitemapURL string, depth int, timeout time.Duration, emit func(string), failures *[]*SitemapFetchError) {
	if ctx.Err() != nil {
		return
	}

	doc, err := s.fetch(ctx, sitemapURL, timeout)
	if err != nil {
		s.logger.Warn().Err(err).Str("sitemap", sitemapURL).Msg("Sitemap fetch failed")
		*failures = append(*failures, &SitemapFetchError{SitemapURL: sitemapURL, Err: err})
		return
	}

	if doc.XMLName.Local == "sitemapindex" {
		if depth >= maxSitemapIndexDepth {
			s.logger.Warn().Str("sitemap", sitemapURL).Msg("Sitemap index depth cap reached, truncating")
			return
		}
		for _, ref := range doc.Sitemaps {
			if ref.Loc == "" {
				continue
			}
			s.walk(ctx, ref.Loc, depth+1, nestedSitemapTimeout, emit, failures)
		}
		return
	}

	for _, entry := range doc.URLs {
		if entry.Loc != "" {
			emit(entry.Loc)
		}
	}
}

func (s *SitemapSeeder) fetch(ctx context.Context, sitemapURL string, timeout time.Duration) (*sitemapDoc, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap: %w", err)
	}
	return &doc, nil
}
