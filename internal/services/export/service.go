// -----------------------------------------------------------------------
// Export Service - page format conversion and archive export
// -----------------------------------------------------------------------

package export

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Format selects the output rendition of a captured page
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// DefaultConfidenceThreshold gates Markdown output when the caller does not
// supply one
const DefaultConfidenceThreshold = 0.5

// ConvertResult is the outcome of a format conversion. Fallback is set when
// the requested format was unavailable and a lower-fidelity one was used.
type ConvertResult struct {
	Format   Format `json:"format"`
	Content  string `json:"content"`
	Fallback bool   `json:"fallback,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Archive is a packaged export, binary content carried as base64
type Archive struct {
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
	Encoding string `json:"encoding"`
	Size     int    `json:"size"`
	Filename string `json:"filename"`
}

// Service converts and exports captured pages
type Service struct {
	pages  interfaces.PageStorage
	logger arbor.ILogger
}

// NewService creates the export service
func NewService(pages interfaces.PageStorage, logger arbor.ILogger) *Service {
	return &Service{
		pages:  pages,
		logger: logger,
	}
}

// ToFormat renders one page, or every page of a job when pageID is empty,
// in the requested format. Markdown requests fall back to text when the
// conversion confidence is below the threshold.
func (s *Service) ToFormat(jobID, pageID string, format Format, confidenceThreshold float64, includeMetadata bool) (*ConvertResult, error) {
	if confidenceThreshold <= 0 {
		confidenceThreshold = DefaultConfidenceThreshold
	}

	pages, err := s.selectPages(jobID, pageID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages found for job %s", jobID)
	}

	result := &ConvertResult{Format: format}
	sections := make([]string, 0, len(pages))
	for _, page := range pages {
		content, fellBack, reason := renderPage(page, format, confidenceThreshold)
		if fellBack {
			result.Fallback = true
			result.Reason = reason
		}
		if includeMetadata {
			content = metadataHeader(page, format) + content
		}
		sections = append(sections, content)
	}
	result.Content = strings.Join(sections, "\n\n---\n\n")

	if result.Fallback {
		result.Format = FormatText
	}
	return result, nil
}

// AsArchive packages every page of the given jobs into a zip, one file per
// page, and returns it base64-encoded
func (s *Service) AsArchive(jobIDs []string, format Format, confidenceThreshold float64) (*Archive, error) {
	if len(jobIDs) == 0 {
		return nil, fmt.Errorf("at least one job ID is required")
	}
	if format != FormatText && format != FormatMarkdown {
		return nil, fmt.Errorf("archive format must be text or markdown, got %q", format)
	}
	if confidenceThreshold <= 0 {
		confidenceThreshold = DefaultConfidenceThreshold
	}

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)

	fileCount := 0
	usedNames := make(map[string]int)
	for _, jobID := range jobIDs {
		pages, err := s.pages.GetPagesByJobID(jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to load pages for job %s: %w", jobID, err)
		}
		for _, page := range pages {
			if page.Status != models.PageStatusSuccess {
				continue
			}
			content, _, _ := renderPage(page, format, confidenceThreshold)
			name := archiveEntryName(jobID, page, format, usedNames)
			entry, err := writer.Create(name)
			if err != nil {
				return nil, fmt.Errorf("failed to create archive entry: %w", err)
			}
			if _, err := entry.Write([]byte(content)); err != nil {
				return nil, fmt.Errorf("failed to write archive entry: %w", err)
			}
			fileCount++
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	data := buf.Bytes()
	s.logger.Debug().
		Int("jobs", len(jobIDs)).
		Int("files", fileCount).
		Int("bytes", len(data)).
		Msg("Export archive built")

	return &Archive{
		Content:  base64.StdEncoding.EncodeToString(data),
		MimeType: "application/zip",
		Encoding: "base64",
		Size:     len(data),
		Filename: fmt.Sprintf("colligo-export-%s.zip", time.Now().Format("20060102-150405")),
	}, nil
}

// -----------------------------------------------------------------------
// Internal
// -----------------------------------------------------------------------

func (s *Service) selectPages(jobID, pageID string) ([]*models.Page, error) {
	if pageID != "" {
		page, err := s.pages.GetPage(pageID)
		if err != nil {
			return nil, err
		}
		if jobID != "" && page.JobID != jobID {
			return nil, fmt.Errorf("page %s does not belong to job %s", pageID, jobID)
		}
		return []*models.Page{page}, nil
	}
	return s.pages.GetPagesByJobID(jobID)
}

// renderPage picks the page's rendition for the format, reporting a fallback
// when Markdown is missing or below the confidence threshold
func renderPage(page *models.Page, format Format, confidenceThreshold float64) (content string, fellBack bool, reason string) {
	switch format {
	case FormatHTML:
		if page.HTML != "" {
			return page.HTML, false, ""
		}
		return page.Content, true, "rendered HTML not stored for page"
	case FormatMarkdown:
		if page.Markdown == "" {
			return page.Content, true, "no Markdown rendition for page"
		}
		if page.MarkdownMeta == nil || page.MarkdownMeta.Confidence < confidenceThreshold {
			return page.Content, true, fmt.Sprintf("markdown confidence below threshold %.2f", confidenceThreshold)
		}
		return page.Markdown, false, ""
	default:
		return page.Content, false, ""
	}
}

// metadataHeader renders a small front block with the page's identity and
// head metadata
func metadataHeader(page *models.Page, format Format) string {
	var sb strings.Builder

	if format == FormatHTML {
		fmt.Fprintf(&sb, "<!-- url: %s -->\n", page.CanonicalURL)
		return sb.String()
	}

	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "url: %s\n", page.CanonicalURL)
	if page.Metadata != nil {
		if page.Metadata.Title != "" {
			fmt.Fprintf(&sb, "title: %s\n", page.Metadata.Title)
		}
		if page.Metadata.Description != "" {
			fmt.Fprintf(&sb, "description: %s\n", page.Metadata.Description)
		}
		if page.Metadata.Author != "" {
			fmt.Fprintf(&sb, "author: %s\n", page.Metadata.Author)
		}
	}
	fmt.Fprintf(&sb, "extracted_at: %s\n", page.ExtractedAt.Format(time.RFC3339))
	sb.WriteString("---\n\n")
	return sb.String()
}

// archiveEntryName derives a stable, filesystem-safe path for a page inside
// the archive, deduplicating collisions with a numeric suffix
func archiveEntryName(jobID string, page *models.Page, format Format, used map[string]int) string {
	ext := ".txt"
	if format == FormatMarkdown {
		ext = ".md"
	}

	name := "page"
	if u, err := url.Parse(page.CanonicalURL); err == nil {
		name = u.Host + u.Path
	}
	name = sanitizePath(name)
	if name == "" {
		name = page.ID
	}

	base := jobID + "/" + name
	if n, exists := used[base]; exists {
		used[base] = n + 1
		return fmt.Sprintf("%s-%d%s", base, n+1, ext)
	}
	used[base] = 0
	return base + ext
}

func sanitizePath(path string) string {
	var sb strings.Builder
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '/', r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	return strings.Trim(sb.String(), "/-.")
}
