package messaging

import (
	"context"

	"github.com/multivault/ledger/internal/domain"
)

// Publisher defines the interface for publishing ledger events to the
// message broker. Events are already durable in ledger_events; publishing
// is the fan-out to external consumers.
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishEvent publishes one ledger event
	PublishEvent(ctx context.Context, event *domain.LedgerEvent) error
	// Close closes the connection
	Close()
}
