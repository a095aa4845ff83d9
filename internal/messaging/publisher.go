package messaging

import (
	"context"

	"github.com/givechain/charity-ledger/internal/domain"
)

// Publisher defines the interface for publishing ledger events to the message
// broker. Events are emitted after commit, best effort; downstream history
// services deduplicate on the transaction ID.
type Publisher interface {
	// PublishEvent publishes a committed ledger event
	PublishEvent(ctx context.Context, event *domain.LedgerEvent) error
	// Close closes the connection
	Close()
}
