package capture

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
)

func testSeeder() *SitemapSeeder {
	return NewSitemapSeeder(arbor.NewLogger())
}

func urlset(locs ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		body += fmt.Sprintf("<url><loc>%s</loc></url>", loc)
	}
	return body + "</urlset>"
}

func sitemapIndex(locs ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		body += fmt.Sprintf("<sitemap><loc>%s</loc></sitemap>", loc)
	}
	return body + "</sitemapindex>"
}

func TestSitemapSeedPlainURLSet(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sitemap.xml", r.URL.Path)
		fmt.Fprint(w, urlset(
			server.URL+"/docs/intro",
			server.URL+"/docs/guide/",
			server.URL+"/blog/post", // out of seed scope
		))
	}))
	defer server.Close()

	seed, err := Canonicalize(server.URL+"/docs", CanonicalizeOptions{StableQuery: true})
	require.NoError(t, err)

	urls, failures := testSeeder().Seed(context.Background(), seed, models.ScopeModeStrict, true)
	assert.Empty(t, failures)
	assert.Equal(t, []string{
		seed + "/intro",
		seed + "/guide",
	}, urls)
}

func TestSitemapSeedFollowsIndex(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	server = httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sitemapIndex(server.URL+"/sitemap-a.xml", server.URL+"/sitemap-b.xml"))
	})
	mux.HandleFunc("/sitemap-a.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlset(server.URL+"/a"))
	})
	mux.HandleFunc("/sitemap-b.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlset(server.URL+"/b"))
	})

	seed, err := Canonicalize(server.URL+"/", CanonicalizeOptions{StableQuery: true})
	require.NoError(t, err)

	urls, failures := testSeeder().Seed(context.Background(), seed, models.ScopeModeStrict, true)
	assert.Empty(t, failures)
	assert.Equal(t, []string{seed + "a", seed + "b"}, urls)
}

func TestSitemapSeedTruncatesIndexDepth(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	server = httptest.NewServer(mux)
	defer server.Close()

	// Root index -> nested index -> doubly nested index; the innermost urlset
	// sits past the depth cap and must not be fetched
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sitemapIndex(server.URL+"/nested.xml"))
	})
	mux.HandleFunc("/nested.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sitemapIndex(server.URL+"/nested-2.xml"))
	})
	tooDeepFetched := false
	mux.HandleFunc("/nested-2.xml", func(w http.ResponseWriter, r *http.Request) {
		tooDeepFetched = true
		fmt.Fprint(w, urlset(server.URL+"/too-deep"))
	})

	seed, err := Canonicalize(server.URL+"/", CanonicalizeOptions{StableQuery: true})
	require.NoError(t, err)

	urls, failures := testSeeder().Seed(context.Background(), seed, models.ScopeModeStrict, true)
	assert.Empty(t, urls)
	assert.Empty(t, failures)
	assert.False(t, tooDeepFetched, "index past depth 2 must not be fetched")
}

func TestSitemapSeedRecordsFetchFailures(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	server = httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sitemapIndex(
			server.URL+"/good.xml",
			server.URL+"/missing.xml",
		))
	})
	mux.HandleFunc("/good.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlset(server.URL+"/page"))
	})
	// /missing.xml returns 404 via the mux default

	seed, err := Canonicalize(server.URL+"/", CanonicalizeOptions{StableQuery: true})
	require.NoError(t, err)

	urls, failures := testSeeder().Seed(context.Background(), seed, models.ScopeModeStrict, true)
	assert.Equal(t, []string{seed + "page"}, urls)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].SitemapURL, "/missing.xml")
}

func TestSitemapSeedMissingRootSitemap(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	seed, err := Canonicalize(server.URL+"/", CanonicalizeOptions{StableQuery: true})
	require.NoError(t, err)

	urls, failures := testSeeder().Seed(context.Background(), seed, models.ScopeModeStrict, true)
	assert.Empty(t, urls)
	require.Len(t, failures, 1)
}
