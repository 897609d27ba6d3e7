package feeds

import (
	"strings"

	"github.com/hoanghai1803/feedsift/internal/models"
)

// Dedup returns the items that do not match recently ingested content. An item
// matches when its URL is in the recent URL set or its lower-cased title is in
// the recent title set. Repeats within items themselves are collapsed too, so
// the first occurrence wins. Items without a URL and without a real title are
// always kept.
func Dedup(items []models.Content, recent []models.ContentRef) []models.Content {
	urls := make(map[string]struct{}, len(recent)+len(items))
	titles := make(map[string]struct{}, len(recent)+len(items))
	for _, ref := range recent {
		if u := strings.TrimSpace(ref.URL); u != "" {
			urls[u] = struct{}{}
		}
		if t := titleKey(ref.Title); t != "" {
			titles[t] = struct{}{}
		}
	}

	fresh := make([]models.Content, 0, len(items))
	for _, item := range items {
		u := strings.TrimSpace(item.URL)
		var t string
		if item.HasRealTitle() {
			t = titleKey(item.Title)
		}

		if u != "" {
			if _, ok := urls[u]; ok {
				continue
			}
		}
		if t != "" {
			if _, ok := titles[t]; ok {
				continue
			}
		}

		if u != "" {
			urls[u] = struct{}{}
		}
		if t != "" {
			titles[t] = struct{}{}
		}
		fresh = append(fresh, item)
	}
	return fresh
}

func titleKey(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == strings.ToLower(models.UntitledPlaceholder) {
		return ""
	}
	return title
}
