package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRenderableLink(t *testing.T) {
	renderable := []string{
		"https://example.com/docs",
		"http://example.com/blog/post-1",
		"https://example.com/download?file=report", // extension in query, not path
		"https://example.com/page.html",
	}
	for _, link := range renderable {
		assert.True(t, IsRenderableLink(link), link)
	}

	rejected := []string{
		"",
		"   ",
		"javascript:void(0)",
		"mailto:team@example.com",
		"tel:+1555000000",
		"sms:+1555000000",
		"ftp://example.com/file",
		"data:text/html,hello",
		"#fragment",
		"/relative/path",
		"https://example.com/file.pdf",
		"https://example.com/report.DOCX",
		"https://example.com/archive.tar.gz",
		"https://example.com/image.png",
		"https://example.com/video.mp4",
		"https://example.com/styles.css",
		"https://example.com/app.js",
		"https://example.com/font.woff2",
		"https://example.com/feed.xml",
		"https://example.com/data.json",
	}
	for _, link := range rejected {
		assert.False(t, IsRenderableLink(link), link)
	}
}

func TestNonHTMLExtensionListCoversRequiredBreadth(t *testing.T) {
	assert.GreaterOrEqual(t, len(nonHTMLExtensions), 30)
}
