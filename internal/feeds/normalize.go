package feeds

import (
	"strings"
	"time"
	"unicode"

	"github.com/hoanghai1803/feedsift/internal/models"
	"golang.org/x/text/unicode/norm"
)

// descriptionLimit is the target length of a description derived from the
// item body.
const descriptionLimit = 200

// dateLayouts are tried in order when the feed parser could not produce an
// instant itself.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalize maps a raw feed item onto the platform content shape. It is pure:
// identical input always yields identical output. CreatedAt is left for the
// caller to stamp.
func Normalize(raw RawItem, source models.Source) models.Content {
	title := cleanText(stripHTML(raw.Title))
	if title == "" {
		title = models.UntitledPlaceholder
	}

	body := strings.TrimSpace(raw.Content)

	content := models.Content{
		SourceID:    source.ID,
		SourceURL:   source.FeedURL,
		Title:       title,
		Description: deriveDescription(raw),
		Body:        body,
		URL:         strings.TrimSpace(raw.Link),
		ImageURL:    imageFromEnclosures(raw.Enclosures),
		Category:    models.DefaultCategory,
		Tags:        normalizeTags(raw.Categories),
		PublishedAt: parsePublished(raw.Published, raw.PublishedParsed),
	}

	meta := map[string]any{}
	if raw.GUID != "" {
		meta["guid"] = raw.GUID
	}
	if author := cleanText(raw.Author); author != "" {
		meta["author"] = author
	}
	if len(raw.Categories) > 0 {
		meta["categories"] = append([]string(nil), raw.Categories...)
	}
	if len(raw.Extensions) > 0 {
		ext := make(map[string]string, len(raw.Extensions))
		for k, v := range raw.Extensions {
			ext[k] = v
		}
		meta["extensions"] = ext
	}
	if minutes := CalculateReadingTime(stripHTML(body)); minutes > 0 {
		meta["reading_time_minutes"] = minutes
	}
	if len(meta) > 0 {
		content.Metadata = meta
	}

	return content
}

// NormalizeAll normalizes every item fetched for a source.
func NormalizeAll(items []RawItem, source models.Source) []models.Content {
	out := make([]models.Content, 0, len(items))
	for _, raw := range items {
		out = append(out, Normalize(raw, source))
	}
	return out
}

// deriveDescription prefers the explicit summary, then the content snippet,
// then a word-boundary prefix of the tag-stripped body.
func deriveDescription(raw RawItem) string {
	if summary := cleanText(stripHTML(raw.Summary)); summary != "" {
		return summary
	}
	if snippet := cleanText(stripHTML(raw.ContentSnippet)); snippet != "" {
		return snippet
	}
	return truncateAtWord(cleanText(stripHTML(raw.Content)), descriptionLimit)
}

// truncateAtWord shortens s to at most limit characters, cutting at the last
// whitespace before the limit and appending an ellipsis.
func truncateAtWord(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	cut := runes[:limit]
	for i := len(cut) - 1; i > 0; i-- {
		if unicode.IsSpace(cut[i]) {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace) + "..."
}

// parsePublished returns the publish instant in UTC, or nil when the feed gave
// none or it cannot be parsed.
func parsePublished(rawDate string, parsed *time.Time) *time.Time {
	if parsed != nil && validInstant(*parsed) {
		t := parsed.UTC()
		return &t
	}

	rawDate = strings.TrimSpace(rawDate)
	if rawDate == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, rawDate); err == nil && validInstant(t) {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func validInstant(t time.Time) bool {
	return !t.IsZero() && t.Year() > 0 && t.Year() < 10000
}

// imageFromEnclosures returns the first enclosure declared as an image.
func imageFromEnclosures(encs []Enclosure) string {
	for _, enc := range encs {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(enc.Type)), "image/") {
			return enc.URL
		}
	}
	return ""
}

// normalizeTags trims categories and drops blanks and repeats, keeping the
// first-seen order.
func normalizeTags(categories []string) []string {
	tags := make([]string, 0, len(categories))
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		tag := cleanText(c)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// cleanText composes s to NFC and collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
