package notify

import (
	"context"
	"log"
)

// Transport dispatches a single digest message to one recipient.
// Implementations must respect the upstream 1500-character batching
// contract rather than splitting messages themselves.
type Transport interface {
	Send(ctx context.Context, body string, recipient string) error
}

// DryRun logs digests instead of dispatching them. Selected in dry-run
// mode or when no transport credentials are configured.
type DryRun struct {
	Logger *log.Logger
}

func (d *DryRun) Send(ctx context.Context, body string, recipient string) error {
	if d.Logger != nil {
		d.Logger.Printf("[DRY RUN] would send to %s:\n%s", recipient, body)
	}
	return nil
}

var _ Transport = (*DryRun)(nil)
