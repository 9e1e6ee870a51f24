// -----------------------------------------------------------------------
// Link Filters - scheme and extension rejection for harvested links
// -----------------------------------------------------------------------

package capture

import (
	"net/url"
	"strings"
)

// nonHTMLExtensions lists path suffixes that never yield a renderable HTML
// page: documents, archives, executables, images, audio, and video
var nonHTMLExtensions = []string{
	".pdf",
	".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".odt", ".ods", ".odp",
	".csv", ".rtf",
	".zip", ".rar", ".7z", ".tar", ".gz", ".tgz", ".bz2", ".xz",
	".exe", ".dmg", ".pkg", ".deb", ".rpm", ".msi", ".apk",
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico", ".bmp", ".tiff", ".avif",
	".mp3", ".wav", ".ogg", ".flac", ".m4a",
	".mp4", ".mov", ".avi", ".mkv", ".webm", ".wmv",
	".css", ".js", ".mjs", ".map",
	".woff", ".woff2", ".ttf", ".eot", ".otf",
	".xml", ".json", ".wasm",
}

// IsRenderableLink reports whether a harvested link is worth scheduling: an
// absolute http(s) URL whose path does not end in a known non-HTML extension
func IsRenderableLink(rawURL string) bool {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return false
	}

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "sms:") ||
		strings.HasPrefix(lower, "ftp:") ||
		strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "#") {
		return false
	}

	u, err := url.Parse(trimmed)
	if err != nil || !u.IsAbs() {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}

	path := strings.ToLower(u.Path)
	for _, ext := range nonHTMLExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}
	return true
}
