package pipeline

import (
	"context"
	"log"

	"github.com/mohammad-safakhou/sift/internal/ingest"
	"github.com/mohammad-safakhou/sift/internal/store"
	"github.com/mohammad-safakhou/sift/models"
)

// Acquisition pulls fresh items from the configured source and stores
// them, deduplicating on URL. A source outage is logged and skipped so
// the rest of the pipeline can still drain pending items.
type Acquisition struct {
	logger *log.Logger
	store  *store.Store
	source ingest.Source
}

// NewAcquisition wires the acquisition stage.
func NewAcquisition(logger *log.Logger, st *store.Store, source ingest.Source) *Acquisition {
	return &Acquisition{logger: logger, store: st, source: source}
}

func (a *Acquisition) Name() string { return "acquisition" }

func (a *Acquisition) Run(ctx context.Context) (int, error) {
	items, err := a.source.Fetch(ctx)
	if err != nil {
		a.logger.Printf("warn: fetch from %s failed: %v", a.source.Name(), err)
		return 0, nil
	}

	saved := 0
	for _, item := range items {
		_, created, err := a.store.InsertItem(ctx, models.ContentItem{
			Source:      item.Source,
			Type:        item.Type,
			Title:       item.Title,
			URL:         item.URL,
			PublishedAt: item.PublishedAt,
			Body:        item.Body,
			Authors:     item.Authors,
		})
		if err != nil {
			a.logger.Printf("warn: save item %s: %v", item.URL, err)
			continue
		}
		if created {
			saved++
		}
	}
	return saved, nil
}
