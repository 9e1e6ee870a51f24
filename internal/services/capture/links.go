// -----------------------------------------------------------------------
// Link Extraction - DOM-order href harvesting from rendered HTML
// -----------------------------------------------------------------------

package capture

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var hrefPattern = regexp.MustCompile(`(?i)<(?:a|area)\s[^>]*href\s*=\s*["']([^"']+)["']`)

// ExtractLinks harvests href targets from rendered HTML in document order,
// resolved against the page URL. Covers <a href> and <area href>. Used as
// the fallback when the renderer returns no link list, and to rebuild a
// job's queue from persisted pages on resume.
func ExtractLinks(html, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return extractLinksRegex(html, pageURL)
	}

	base, err := parseAbsolute(pageURL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href], area[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved := resolveRef(base, href)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})
	return links
}

// extractLinksRegex is the last-resort harvest over raw HTML when it cannot
// be parsed as a document
func extractLinksRegex(html, pageURL string) []string {
	base, err := parseAbsolute(pageURL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	for _, match := range hrefPattern.FindAllStringSubmatch(html, -1) {
		resolved := resolveRef(base, match[1])
		if resolved == "" || seen[resolved] {
			continue
		}
		seen[resolved] = true
		links = append(links, resolved)
	}
	return links
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("url is not absolute: %s", raw)
	}
	return u, nil
}

// resolveRef resolves an href against the page URL, dropping fragment-only
// and unparsable targets
func resolveRef(base *url.URL, href string) string {
	trimmed := strings.TrimSpace(href)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return ""
	}
	ref, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if !resolved.IsAbs() {
		return ""
	}
	return resolved.String()
}
