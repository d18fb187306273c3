package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/sift/internal/notify"
	"github.com/mohammad-safakhou/sift/internal/retry"
	"github.com/mohammad-safakhou/sift/internal/store"
	"github.com/mohammad-safakhou/sift/models"
)

const (
	// messageLimit is the hard per-message character budget imposed by
	// the downstream messaging channel.
	messageLimit = 1500

	digestHeader      = "*AI Signal Digest*\n\n"
	digestHeaderCont  = "*AI Signal Digest (cont.)*\n\n"
	digestEntryFormat = "*%s*\n%s\n_%s_\n\n"
)

// Delivery batches validated items into digest messages and fans them
// out to every opted-in recipient. Items are marked SENT only after all
// recipients were attempted, so a partial failure never drops an item
// from the next run's audience.
type Delivery struct {
	logger    *log.Logger
	store     *store.Store
	transport notify.Transport
	retry     retry.Policy
}

func NewDelivery(logger *log.Logger, st *store.Store, transport notify.Transport, policy retry.Policy) *Delivery {
	return &Delivery{logger: logger, store: st, transport: transport, retry: policy}
}

func (d *Delivery) Name() string { return "delivery" }

func (d *Delivery) Run(ctx context.Context) (int, error) {
	items, err := d.store.ListDeliverable(ctx)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		d.logger.Printf("no validated items pending delivery")
		return 0, nil
	}

	recipients, err := d.store.ListOptedIn(ctx)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		// leave delivery_status untouched so the items go out once
		// someone subscribes
		d.logger.Printf("no opted-in recipients, keeping %d items pending", len(items))
		return 0, nil
	}

	messages := buildDigests(items)
	d.logger.Printf("delivering %d items in %d messages to %d recipients", len(items), len(messages), len(recipients))

	for _, msg := range messages {
		for _, rcpt := range recipients {
			err := d.retry.Do(ctx, func() error {
				return d.transport.Send(ctx, msg, rcpt.Phone)
			})
			if err != nil {
				deliveryFailures.Inc()
				d.logger.Printf("warn: send digest to %s: %v", rcpt.Phone, err)
				continue
			}
			deliveryMessages.Inc()
		}
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	if err := d.store.MarkSent(ctx, ids); err != nil {
		return 0, fmt.Errorf("mark items sent: %w", err)
	}
	return len(items), nil
}

// buildDigests packs items (already ordered oldest-first) into as few
// messages as fit under the character limit. Every item lands in
// exactly one message; an oversized single entry is truncated rather
// than dropped.
func buildDigests(items []models.ContentItem) []string {
	var messages []string
	current := digestHeader

	for _, item := range items {
		entry := fmt.Sprintf(digestEntryFormat, item.SummaryHeadline, item.SummaryTLDR, item.URL)
		if len(entry) > messageLimit-len(digestHeaderCont) {
			entry = entry[:messageLimit-len(digestHeaderCont)]
		}
		if len(current)+len(entry) > messageLimit {
			messages = append(messages, current)
			current = digestHeaderCont
		}
		current += entry
	}
	if current != digestHeader && current != digestHeaderCont {
		messages = append(messages, current)
	}
	return messages
}
