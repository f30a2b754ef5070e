package feeds

import (
	"context"
	"log"
	"time"

	"github.com/mmcdole/gofeed"
)

// DirectReader pulls RSS/Atom feeds straight from publishers, bypassing
// the hosted reader service. Used for sources the reader does not carry.
type DirectReader struct {
	urls   []string
	parser *gofeed.Parser
}

// NewDirectReader creates a reader over the configured feed URLs.
func NewDirectReader(urls []string) *DirectReader {
	parser := gofeed.NewParser()
	parser.UserAgent = "newsroom-ingest/1.0"
	return &DirectReader{urls: urls, parser: parser}
}

// Fetch pulls every configured feed and returns items published within
// the last sinceHours hours. A single failing feed is logged and
// skipped; the remaining feeds still contribute.
func (d *DirectReader) Fetch(ctx context.Context, sinceHours int) []Item {
	cutoff := time.Now().Add(-time.Duration(sinceHours) * time.Hour)
	var items []Item

	for _, feedURL := range d.urls {
		feed, err := d.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			log.Printf("[Feeds] direct feed %s failed: %v", feedURL, err)
			continue
		}
		fresh := 0
		for _, entry := range feed.Items {
			published := entry.PublishedParsed
			if published == nil {
				published = entry.UpdatedParsed
			}
			if published == nil || published.Before(cutoff) {
				continue
			}
			items = append(items, Item{
				Title:       entry.Title,
				URL:         entry.Link,
				PublishedAt: *published,
				FeedTitle:   feed.Title,
			})
			fresh++
		}
		log.Printf("[Feeds] direct feed %s: %d fresh of %d items", feedURL, fresh, len(feed.Items))
	}
	return items
}
