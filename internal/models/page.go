package models

import (
	"time"
)

// PageStatus marks whether extraction succeeded for a URL
type PageStatus string

const (
	PageStatusSuccess PageStatus = "success"
	PageStatusFailed  PageStatus = "failed"
)

// Page represents one captured page owned by a job. At most one Page exists
// per (job, content hash); URLs yielding identical content are folded into
// AlternateURLs of the first page stored.
type Page struct {
	ID           string `json:"id" badgerhold:"key"`
	JobID        string `json:"job_id" badgerhold:"index"`
	URL          string `json:"url"`
	CanonicalURL string `json:"canonical_url" badgerhold:"index"`

	// AlternateURLs is the set of URLs known to resolve to this page's
	// content within the job. Always contains URL.
	AlternateURLs []string `json:"alternate_urls"`

	Content      string        `json:"content"`
	HTML         string        `json:"html,omitempty"`
	Markdown     string        `json:"markdown,omitempty"`
	MarkdownMeta *MarkdownMeta `json:"markdown_meta,omitempty"`
	Metadata     *PageMetadata `json:"metadata,omitempty"`

	ContentHash string     `json:"content_hash" badgerhold:"index"`
	Status      PageStatus `json:"status"`
	ExtractedAt time.Time  `json:"extracted_at"`
}

// HasAlternate reports whether url is already recorded against this page
func (p *Page) HasAlternate(url string) bool {
	for _, u := range p.AlternateURLs {
		if u == url {
			return true
		}
	}
	return false
}

// MarkdownMeta records conversion confidence and structural counters for a
// page's Markdown rendition
type MarkdownMeta struct {
	Confidence     float64 `json:"confidence"` // [0,1]
	H1Count        int     `json:"h1_count"`
	H2Count        int     `json:"h2_count"`
	H3Count        int     `json:"h3_count"`
	HasTables      bool    `json:"has_tables"`
	TableCount     int     `json:"table_count"`
	ListCount      int     `json:"list_count"`
	CodeBlockCount int     `json:"code_block_count"`
	LinkCount      int     `json:"link_count"`
}

// PageMetadata is the head-derived record harvested at render time
type PageMetadata struct {
	Title          string                   `json:"title,omitempty"`
	Description    string                   `json:"description,omitempty"`
	CanonicalURL   string                   `json:"canonical_url,omitempty"`
	Keywords       []string                 `json:"keywords,omitempty"`
	Author         string                   `json:"author,omitempty"`
	Language       string                   `json:"language,omitempty"`
	OpenGraph      map[string]string        `json:"open_graph,omitempty"`
	JSONLD         []map[string]interface{} `json:"json_ld,omitempty"`
	ArticleSection string                   `json:"article_section,omitempty"`
	ArticleTags    []string                 `json:"article_tags,omitempty"`
}
