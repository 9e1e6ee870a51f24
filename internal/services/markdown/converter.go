// -----------------------------------------------------------------------
// Markdown Converter - HTML to Markdown with structural confidence scoring
// -----------------------------------------------------------------------

package markdown

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/colligo/internal/models"
)

// Convert transforms rendered HTML into Markdown and scores the result.
// baseURL resolves relative links. Conversion failures fall back to stripped
// text with a zero-confidence meta record rather than an error: a page with
// poor Markdown is still a captured page.
func Convert(html, baseURL string) (string, *models.MarkdownMeta) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	converter := md.NewConverter(baseURL, true, nil)
	converted, err := converter.ConvertString(html)
	if err != nil || strings.TrimSpace(converted) == "" {
		stripped := stripTags(html)
		if stripped == "" {
			return "", nil
		}
		return stripped, &models.MarkdownMeta{Confidence: 0}
	}

	meta := Analyze(converted)
	return converted, meta
}

// Analyze walks the Markdown AST and fills the structural counters plus a
// confidence score derived from them
func Analyze(markdown string) *models.MarkdownMeta {
	meta := &models.MarkdownMeta{}

	parser := goldmark.New(goldmark.WithExtensions(extension.GFM))
	source := []byte(markdown)
	root := parser.Parser().Parse(text.NewReader(source))

	_ = ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			switch n.Level {
			case 1:
				meta.H1Count++
			case 2:
				meta.H2Count++
			case 3:
				meta.H3Count++
			}
		case *ast.List:
			meta.ListCount++
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			meta.CodeBlockCount++
		case *ast.Link, *ast.AutoLink:
			meta.LinkCount++
		case *extast.Table:
			meta.TableCount++
		}
		return ast.WalkContinue, nil
	})

	meta.HasTables = meta.TableCount > 0
	meta.Confidence = confidence(markdown, meta)
	return meta
}

// confidence scores how much document structure survived conversion. Flat
// text with no headings, lists, or links scores low; a structured document
// approaches 1.
func confidence(markdown string, meta *models.MarkdownMeta) float64 {
	trimmed := strings.TrimSpace(markdown)
	if trimmed == "" {
		return 0
	}

	score := 0.3 // non-empty output

	if meta.H1Count+meta.H2Count+meta.H3Count > 0 {
		score += 0.3
	}
	if meta.ListCount > 0 || meta.TableCount > 0 || meta.CodeBlockCount > 0 {
		score += 0.2
	}
	if meta.LinkCount > 0 {
		score += 0.1
	}
	// Multiple paragraphs indicate the converter preserved block structure
	if strings.Contains(trimmed, "\n\n") {
		score += 0.1
	}

	if score > 1 {
		score = 1
	}
	return score
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// stripTags is the fallback when conversion fails outright
func stripTags(html string) string {
	stripped := tagPattern.ReplaceAllString(html, " ")
	stripped = spacePattern.ReplaceAllString(stripped, " ")

	stripped = strings.ReplaceAll(stripped, "&amp;", "&")
	stripped = strings.ReplaceAll(stripped, "&lt;", "<")
	stripped = strings.ReplaceAll(stripped, "&gt;", ">")
	stripped = strings.ReplaceAll(stripped, "&quot;", "\"")
	stripped = strings.ReplaceAll(stripped, "&#39;", "'")
	stripped = strings.ReplaceAll(stripped, "&nbsp;", " ")

	return strings.TrimSpace(stripped)
}
