// -----------------------------------------------------------------------
// Metadata Extractor - head-derived page metadata from rendered HTML
// -----------------------------------------------------------------------

package metadata

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/colligo/internal/models"
)

// Extract harvests the head-derived metadata record from rendered HTML.
// Returns nil when the document yields nothing useful.
func Extract(html string) *models.PageMetadata {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	meta := &models.PageMetadata{}

	meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	meta.Description = metaContent(doc, "meta[name='description']")
	meta.Author = metaContent(doc, "meta[name='author']")

	if canonical, ok := doc.Find("link[rel='canonical']").First().Attr("href"); ok {
		meta.CanonicalURL = strings.TrimSpace(canonical)
	}

	if keywords := metaContent(doc, "meta[name='keywords']"); keywords != "" {
		for _, kw := range strings.Split(keywords, ",") {
			if trimmed := strings.TrimSpace(kw); trimmed != "" {
				meta.Keywords = append(meta.Keywords, trimmed)
			}
		}
	}

	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		meta.Language = strings.TrimSpace(lang)
	}
	if meta.Language == "" {
		meta.Language = metaContent(doc, "meta[http-equiv='content-language']")
	}

	doc.Find("meta[property^='og:']").Each(func(_ int, sel *goquery.Selection) {
		property, _ := sel.Attr("property")
		content, _ := sel.Attr("content")
		if property != "" && content != "" {
			if meta.OpenGraph == nil {
				meta.OpenGraph = make(map[string]string)
			}
			meta.OpenGraph[property] = content
		}
	})

	meta.ArticleSection = metaContent(doc, "meta[property='article:section']")
	doc.Find("meta[property='article:tag']").Each(func(_ int, sel *goquery.Selection) {
		if content, ok := sel.Attr("content"); ok && content != "" {
			meta.ArticleTags = append(meta.ArticleTags, content)
		}
	})

	doc.Find("script[type='application/ld+json']").Each(func(_ int, sel *goquery.Selection) {
		meta.JSONLD = append(meta.JSONLD, parseJSONLD(sel.Text())...)
	})

	if isEmpty(meta) {
		return nil
	}
	return meta
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

// parseJSONLD accepts both a single JSON-LD object and an array of them.
// Malformed blocks are dropped silently; pages ship broken JSON-LD often
// enough that it cannot be treated as an error.
func parseJSONLD(raw string) []map[string]interface{} {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	var single map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &single); err == nil {
		return []map[string]interface{}{single}
	}

	var list []map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
		return list
	}
	return nil
}

func isEmpty(meta *models.PageMetadata) bool {
	return meta.Title == "" &&
		meta.Description == "" &&
		meta.CanonicalURL == "" &&
		len(meta.Keywords) == 0 &&
		meta.Author == "" &&
		meta.Language == "" &&
		len(meta.OpenGraph) == 0 &&
		len(meta.JSONLD) == 0 &&
		meta.ArticleSection == "" &&
		len(meta.ArticleTags) == 0
}
