package schema

import (
	"time"
)

// Balance represents the balances table - one row per (token, owner) registration.
// Row existence is registration: a missing row is distinct from a zero amount.
type Balance struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TokenID references the token being held
	TokenID string `gorm:"column:token_id;not null;type:text;uniqueIndex:idx_balances_token_owner,priority:1"`
	// OwnerID is the principal holding the balance
	OwnerID string `gorm:"column:owner_id;not null;type:text;uniqueIndex:idx_balances_token_owner,priority:2"`
	// Amount is the held quantity (string to support 128-bit values)
	Amount string `gorm:"column:amount;not null;type:numeric(39,0)"`
	// CreatedAt is the timestamp when this entry was registered
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this entry was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Balance model
func (Balance) TableName() string {
	return "balances"
}
