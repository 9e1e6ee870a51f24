package capture

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// ContentHash computes the dedup digest for extracted page text: SHA-256
// over the whitespace-normalized text, base64url-encoded. Two pages with the
// same digest are treated as the same content within a job.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(NormalizeContent(text)))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NormalizeContent strips trailing whitespace per line and collapses runs of
// three or more blank lines down to two
func NormalizeContent(text string) string {
	lines := strings.Split(text, "\n")

	out := make([]string, 0, len(lines))
	blankRun := 0
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")
		if trimmed == "" {
			blankRun++
			if blankRun > 2 {
				continue
			}
		} else {
			blankRun = 0
		}
		out = append(out, trimmed)
	}

	return strings.Join(out, "\n")
}
