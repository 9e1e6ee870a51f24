package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/colligo/internal/models"
)

func TestCanonicalize(t *testing.T) {
	stable := CanonicalizeOptions{StableQuery: true}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Docs", "https://example.com/Docs"},
		{"strips www prefix", "https://www.example.com/docs", "https://example.com/docs"},
		{"strips default https port", "https://example.com:443/docs", "https://example.com/docs"},
		{"strips default http port", "http://example.com:80/docs", "http://example.com/docs"},
		{"keeps non-default port", "https://example.com:8443/docs", "https://example.com:8443/docs"},
		{"drops fragment", "https://example.com/docs#section-2", "https://example.com/docs"},
		{"strips trailing slash", "https://example.com/docs/", "https://example.com/docs"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"empty path becomes root", "https://example.com", "https://example.com/"},
		{"collapses repeated slashes", "https://example.com//a///b", "https://example.com/a/b"},
		{"resolves dot segments", "https://example.com/a/./b/../c", "https://example.com/a/c"},
		{"drops empty-value query keys", "https://example.com/docs?a=1&b=&c=2", "https://example.com/docs?a=1&c=2"},
		{"drops empty query entirely", "https://example.com/docs?", "https://example.com/docs"},
		{"sorts query keys when stable", "https://example.com/docs?b=2&a=1", "https://example.com/docs?a=1&b=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.input, stable)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCanonicalizeUnstableQueryPreservesOrder(t *testing.T) {
	got, err := Canonicalize("https://example.com/docs?b=2&a=1", CanonicalizeOptions{StableQuery: false})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/docs?b=2&a=1", got)
}

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://WWW.Example.com:443//a/./b/../c/?z=9&a=1&empty=#frag",
		"http://example.com",
		"https://example.com/path%20with%20space?q=a%20b",
		"https://example.com/docs/page.html?b=2&a=1&a=0",
	}
	opts := CanonicalizeOptions{StableQuery: true}
	for _, input := range inputs {
		first, err := Canonicalize(input, opts)
		require.NoError(t, err, input)
		second, err := Canonicalize(first, opts)
		require.NoError(t, err, first)
		assert.Equal(t, first, second, "canonicalization must be idempotent for %s", input)
	}
}

func TestCanonicalizeEquivalentFormsConverge(t *testing.T) {
	opts := CanonicalizeOptions{StableQuery: true}
	variants := []string{
		"https://example.com/docs",
		"HTTPS://example.com/docs",
		"https://www.example.com/docs",
		"https://example.com:443/docs",
		"https://example.com/docs/",
		"https://example.com/docs?",
		"https://example.com/docs#intro",
	}
	expected, err := Canonicalize(variants[0], opts)
	require.NoError(t, err)
	for _, v := range variants[1:] {
		got, err := Canonicalize(v, opts)
		require.NoError(t, err)
		assert.Equal(t, expected, got, "variant %s", v)
	}
}

func TestCanonicalizeRejections(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		failure CanonicalFailure
	}{
		{"relative url", "/docs/page", FailureInvalid},
		{"empty string", "", FailureInvalid},
		{"ftp scheme", "ftp://example.com/file", FailureOutOfScheme},
		{"mailto scheme", "mailto:someone@example.com", FailureInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize(tt.input, CanonicalizeOptions{})
			require.Error(t, err)
			var cerr *CanonicalError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.failure, cerr.Failure)
		})
	}
}

func TestInScopeStrict(t *testing.T) {
	tests := []struct {
		name string
		url  string
		seed string
		want bool
	}{
		{"exact match", "https://example.com/api", "https://example.com/api", true},
		{"child path", "https://example.com/api/users", "https://example.com/api", true},
		{"sibling prefix rejected", "https://example.com/api-docs", "https://example.com/api", false},
		{"root seed matches everything on host", "https://example.com/anything/deep", "https://example.com/", true},
		{"different host rejected", "https://other.com/api", "https://example.com/api", false},
		{"parent path rejected", "https://example.com/", "https://example.com/api", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InScope(tt.url, tt.seed, models.ScopeModeStrict))
		})
	}
}

func TestInScopeLoose(t *testing.T) {
	// Loose mode is plain string-prefix matching
	assert.True(t, InScope("https://example.com/api-docs", "https://example.com/api", models.ScopeModeLoose))
	assert.True(t, InScope("https://example.com/api/users", "https://example.com/api", models.ScopeModeLoose))
	assert.False(t, InScope("https://example.com/blog", "https://example.com/api", models.ScopeModeLoose))
}

func TestInScopeNotTransitiveAcrossSiblings(t *testing.T) {
	// u is in scope of s, v is in scope of u, but v is not in scope of s
	// unless v extends s's path
	s := "https://example.com/docs"
	u := "https://example.com/docs"
	v := "https://example.com/blog"
	assert.True(t, InScope(u, s, models.ScopeModeStrict))
	assert.True(t, InScope(v, "https://example.com/", models.ScopeModeStrict))
	assert.False(t, InScope(v, s, models.ScopeModeStrict))
}
