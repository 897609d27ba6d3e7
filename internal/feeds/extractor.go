package feeds

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// extractFullText fetches the web page at pageURL and returns its main
// readable text content using go-readability.
func extractFullText(pageURL string, timeout time.Duration, userAgent string) (string, error) {
	article, err := readability.FromURL(pageURL, timeout, func(r *http.Request) {
		r.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Header.Set("User-Agent", userAgent)
	})
	if err != nil {
		return "", fmt.Errorf("readability extraction: %w", err)
	}
	return strings.TrimSpace(article.TextContent), nil
}

// truncateWords returns the first maxWords whitespace-delimited words from s.
// If s contains fewer than maxWords words, it is returned unchanged.
func truncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ")
}
