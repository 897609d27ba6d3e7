package feeds

import (
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Enclosure is a media attachment declared by a feed item.
type Enclosure struct {
	URL  string
	Type string
}

// RawItem is a feed item as the fetcher produced it. It lives only for the
// duration of one run and is never persisted directly.
type RawItem struct {
	GUID            string
	Title           string
	Link            string
	Published       string
	PublishedParsed *time.Time
	Summary         string
	ContentSnippet  string
	Content         string
	Author          string
	Categories      []string
	Enclosures      []Enclosure
	Extensions      map[string]string
}

// rawItemFromGofeed maps a gofeed item, whatever its source format, onto a
// RawItem.
func rawItemFromGofeed(item *gofeed.Item) RawItem {
	raw := RawItem{
		GUID:            item.GUID,
		Title:           item.Title,
		Link:            item.Link,
		Published:       item.Published,
		PublishedParsed: item.PublishedParsed,
		Summary:         item.Description,
		Content:         item.Content,
		Categories:      item.Categories,
	}

	if raw.Link == "" && len(item.Links) > 0 {
		raw.Link = item.Links[0]
	}
	// Atom feeds often carry only <updated>.
	if raw.Published == "" && raw.PublishedParsed == nil {
		raw.Published = item.Updated
		raw.PublishedParsed = item.UpdatedParsed
	}

	switch {
	case item.Author != nil && item.Author.Name != "":
		raw.Author = item.Author.Name
	case len(item.Authors) > 0 && item.Authors[0] != nil:
		raw.Author = item.Authors[0].Name
	case item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0:
		raw.Author = item.DublinCoreExt.Creator[0]
	}

	if item.ITunesExt != nil {
		raw.ContentSnippet = item.ITunesExt.Subtitle
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		raw.Enclosures = append(raw.Enclosures, Enclosure{URL: enc.URL, Type: enc.Type})
	}

	for ns, byName := range item.Extensions {
		for name, values := range byName {
			if len(values) == 0 || strings.TrimSpace(values[0].Value) == "" {
				continue
			}
			if raw.Extensions == nil {
				raw.Extensions = make(map[string]string)
			}
			raw.Extensions[ns+":"+name] = strings.TrimSpace(values[0].Value)
		}
	}

	return raw
}
