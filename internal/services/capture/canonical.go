// -----------------------------------------------------------------------
// URL Canonicalizer - normalization and seed scope matching
// -----------------------------------------------------------------------

package capture

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/ternarybob/colligo/internal/models"
)

// CanonicalFailure classifies why a URL was rejected
type CanonicalFailure string

const (
	FailureInvalid     CanonicalFailure = "invalid"
	FailureOutOfScheme CanonicalFailure = "out_of_scheme"
	FailureOutOfHost   CanonicalFailure = "out_of_host"
	FailureOutOfPath   CanonicalFailure = "out_of_path"
)

// CanonicalError is a non-fatal rejection during canonicalization or scope
// matching
type CanonicalError struct {
	Failure CanonicalFailure
	URL     string
}

func (e *CanonicalError) Error() string {
	return fmt.Sprintf("url %s: %s", e.Failure, e.URL)
}

// CanonicalizeOptions tune canonicalization
type CanonicalizeOptions struct {
	// StableQuery sorts query keys lexicographically so ordering-equivalent
	// queries canonicalize to the same string
	StableQuery bool
}

// Canonicalize normalizes an absolute URL to its canonical scheduling
// identity. The operation is deterministic and idempotent: canonical input
// canonicalizes to itself.
func Canonicalize(rawURL string, opts CanonicalizeOptions) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", &CanonicalError{Failure: FailureInvalid, URL: rawURL}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", &CanonicalError{Failure: FailureOutOfScheme, URL: rawURL}
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	// Strip default ports only
	port := u.Port()
	if port != "" {
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			port = ""
		}
	}
	if port != "" {
		host = host + ":" + port
	}

	path := canonicalPath(u.EscapedPath())
	query := canonicalQuery(u.RawQuery, opts.StableQuery)

	canonical := scheme + "://" + host + path
	if query != "" {
		canonical += "?" + query
	}
	return canonical, nil
}

// canonicalPath normalizes percent-encoding, collapses repeated slashes,
// resolves dot segments, and strips the trailing slash unless the path is
// exactly "/"
func canonicalPath(escaped string) string {
	if escaped == "" {
		return "/"
	}

	segments := strings.Split(escaped, "/")
	resolved := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			// Collapse repeated slashes and same-dir references
		case "..":
			if len(resolved) > 0 {
				resolved = resolved[:len(resolved)-1]
			}
		default:
			// Normalize percent-encoding by decoding then re-encoding
			decoded, err := url.PathUnescape(seg)
			if err != nil {
				resolved = append(resolved, seg)
				continue
			}
			resolved = append(resolved, url.PathEscape(decoded))
		}
	}

	if len(resolved) == 0 {
		return "/"
	}
	return "/" + strings.Join(resolved, "/")
}

// canonicalQuery drops keys with empty values, normalizes percent-encoding,
// and optionally sorts keys lexicographically. Relative ordering of values
// under one key is preserved.
func canonicalQuery(rawQuery string, stable bool) string {
	if rawQuery == "" {
		return ""
	}

	type pair struct {
		key   string
		value string
	}

	pairs := make([]pair, 0, 8)
	for _, kv := range strings.Split(rawQuery, "&") {
		if kv == "" {
			continue
		}
		key, value, _ := strings.Cut(kv, "=")
		if key == "" || value == "" {
			continue
		}
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			decodedKey = key
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			decodedValue = value
		}
		pairs = append(pairs, pair{key: decodedKey, value: decodedValue})
	}

	if len(pairs) == 0 {
		return ""
	}

	if stable {
		sort.SliceStable(pairs, func(i, j int) bool {
			return pairs[i].key < pairs[j].key
		})
	}

	var sb strings.Builder
	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.value))
	}
	return sb.String()
}

// InScope reports whether canonical URL u falls under canonical seed s for
// the given match mode. Host must match exactly; the path comparison depends
// on the mode: strict requires a path-component boundary (/api does not
// match /api-docs), loose accepts any string prefix.
func InScope(u, s string, mode models.ScopeMode) bool {
	pu, err := url.Parse(u)
	if err != nil {
		return false
	}
	ps, err := url.Parse(s)
	if err != nil {
		return false
	}

	if pu.Host != ps.Host {
		return false
	}

	seedPath := ps.Path
	if seedPath == "" {
		seedPath = "/"
	}
	urlPath := pu.Path
	if urlPath == "" {
		urlPath = "/"
	}

	if mode == models.ScopeModeLoose {
		return strings.HasPrefix(urlPath, seedPath)
	}

	if seedPath == "/" {
		return true
	}
	return urlPath == seedPath || strings.HasPrefix(urlPath, seedPath+"/")
}
