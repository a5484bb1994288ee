package schema

import (
	"time"
)

// LedgerEvent represents the ledger_events table - the append-only record of
// balance movements. Rows are written inside the same transaction as the
// movement they describe and published to the message broker after commit.
type LedgerEvent struct {
	// EventID is the ULID assigned when the event is written
	EventID string `gorm:"column:event_id;primaryKey;type:varchar(26)"`
	// EventType is one of mint, transfer, refund, forfeit
	EventType string `gorm:"column:event_type;not null;type:text;index"`
	// TokenID references the token the movement applies to
	TokenID string `gorm:"column:token_id;not null;type:text;index:idx_ledger_events_token_created,priority:1"`
	// OldOwner is the principal the amount moved out of (empty for mint)
	OldOwner string `gorm:"column:old_owner;type:text"`
	// NewOwner is the principal the amount moved into (empty for forfeit)
	NewOwner string `gorm:"column:new_owner;type:text"`
	// Amount is the moved quantity (string to support 128-bit values)
	Amount string `gorm:"column:amount;not null;type:numeric(39,0)"`
	// AuthorizedID is the delegated spender that initiated the movement, when not the owner
	AuthorizedID string `gorm:"column:authorized_id;type:text"`
	// SagaID links refund and forfeit events to the saga that produced them
	SagaID string `gorm:"column:saga_id;type:varchar(26);index"`
	// Memo is the free-form note attached by the caller
	Memo string `gorm:"column:memo;type:text"`
	// CreatedAt is the timestamp when this event was recorded
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz;index:idx_ledger_events_token_created,priority:2"`
}

// TableName specifies the table name for the LedgerEvent model
func (LedgerEvent) TableName() string {
	return "ledger_events"
}
