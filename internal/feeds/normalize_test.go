package feeds

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hoanghai1803/feedsift/internal/models"
)

var testSource = models.Source{ID: 7, Name: "Example", Kind: models.SourceKindRSS, FeedURL: "https://example.com/feed.xml"}

func TestNormalize(t *testing.T) {
	raw := RawItem{
		GUID:       "urn:item:1",
		Title:      "  Markets <em>rally</em> ",
		Link:       "https://example.com/markets",
		Published:  "Tue, 10 Jun 2025 04:00:00 +0200",
		Summary:    "<p>Stocks rose &amp; bonds fell.</p>",
		Content:    "<p>Full body text.</p>",
		Author:     "Jane Reporter",
		Categories: []string{"Markets", " markets ", "", "Economy"},
		Enclosures: []Enclosure{
			{URL: "https://example.com/audio.mp3", Type: "audio/mpeg"},
			{URL: "https://example.com/photo.jpg", Type: "Image/JPEG"},
		},
	}

	got := Normalize(raw, testSource)

	if got.Title != "Markets rally" {
		t.Errorf("Title = %q, want %q", got.Title, "Markets rally")
	}
	if got.Description != "Stocks rose & bonds fell." {
		t.Errorf("Description = %q", got.Description)
	}
	if got.Body != "<p>Full body text.</p>" {
		t.Errorf("Body = %q", got.Body)
	}
	if got.SourceID != 7 || got.SourceURL != testSource.FeedURL {
		t.Errorf("source = (%d, %q)", got.SourceID, got.SourceURL)
	}
	if got.ImageURL != "https://example.com/photo.jpg" {
		t.Errorf("ImageURL = %q", got.ImageURL)
	}
	if got.Category != models.DefaultCategory {
		t.Errorf("Category = %q", got.Category)
	}
	if want := []string{"Markets", "Economy"}; !reflect.DeepEqual(got.Tags, want) {
		t.Errorf("Tags = %v, want %v", got.Tags, want)
	}
	wantPub := time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC)
	if got.PublishedAt == nil || !got.PublishedAt.Equal(wantPub) {
		t.Errorf("PublishedAt = %v, want %v", got.PublishedAt, wantPub)
	}
	if got.Metadata["guid"] != "urn:item:1" || got.Metadata["author"] != "Jane Reporter" {
		t.Errorf("Metadata = %v", got.Metadata)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	raw := RawItem{Title: "Same", Content: strings.Repeat("body ", 300), Categories: []string{"a", "b"}}
	a := Normalize(raw, testSource)
	b := Normalize(raw, testSource)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Normalize is not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestNormalizeTitlePlaceholder(t *testing.T) {
	got := Normalize(RawItem{Title: "  <b></b> "}, testSource)
	if got.Title != models.UntitledPlaceholder {
		t.Errorf("Title = %q, want placeholder", got.Title)
	}
	if got.SourceID == 0 {
		t.Error("SourceID must be set")
	}
}

func TestDeriveDescription(t *testing.T) {
	long := strings.Repeat("word ", 60)

	tests := []struct {
		name string
		raw  RawItem
		want string
	}{
		{
			name: "summary wins",
			raw:  RawItem{Summary: "summary", ContentSnippet: "snippet", Content: "body"},
			want: "summary",
		},
		{
			name: "snippet when no summary",
			raw:  RawItem{ContentSnippet: "snippet", Content: "body"},
			want: "snippet",
		},
		{
			name: "short body used whole",
			raw:  RawItem{Content: "<p>short body</p>"},
			want: "short body",
		},
		{
			name: "long body cut at word boundary",
			raw:  RawItem{Content: "<div>" + long + "</div>"},
			want: strings.Repeat("word ", 39) + "word...",
		},
		{
			name: "nothing available",
			raw:  RawItem{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveDescription(tt.raw); got != tt.want {
				t.Errorf("deriveDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePublished(t *testing.T) {
	zero := time.Time{}
	parsed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		name   string
		raw    string
		parsed *time.Time
		want   *time.Time
	}{
		{name: "parser instant preferred", raw: "garbage", parsed: &parsed, want: ptrTime(time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC))},
		{name: "rfc3339 string", raw: "2024-03-01T08:30:00Z", want: ptrTime(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC))},
		{name: "date only", raw: "2024-03-01", want: ptrTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
		{name: "zero parsed falls back to string", raw: "2024-03-01", parsed: &zero, want: ptrTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
		{name: "malformed is absent", raw: "yesterday-ish", want: nil},
		{name: "empty is absent", raw: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePublished(tt.raw, tt.parsed)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("parsePublished() = %v, want nil", *got)
			case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
				t.Errorf("parsePublished() = %v, want %v", got, *tt.want)
			}
		})
	}
}

func TestImageFromEnclosures(t *testing.T) {
	if got := imageFromEnclosures([]Enclosure{{URL: "a.mp3", Type: "audio/mpeg"}}); got != "" {
		t.Errorf("non-image enclosure produced %q", got)
	}
	if got := imageFromEnclosures([]Enclosure{{URL: "a.png", Type: "image/png"}}); got != "a.png" {
		t.Errorf("image enclosure = %q, want a.png", got)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
