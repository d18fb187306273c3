package ingest

import (
	"context"
	"time"
)

// Item is the tuple an ingestion source yields for acquisition.
type Item struct {
	Source      string
	Type        string
	Title       string
	URL         string
	PublishedAt time.Time
	Body        string
	Authors     []string
}

// Source is the external acquisition contract: yield recently published
// items; the acquisition stage handles URL-level dedup against the
// store.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Item, error)
}
