package schema

import (
	"time"
)

// Approval represents the approvals table - a delegated-spender grant.
// At most one approval per (token, spender); every transfer on a token
// clears all of that token's approvals.
type Approval struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TokenID references the token the grant applies to
	TokenID string `gorm:"column:token_id;not null;type:text;uniqueIndex:idx_approvals_token_spender,priority:1"`
	// SpenderID is the principal allowed to send on the owner's behalf
	SpenderID string `gorm:"column:spender_id;not null;type:text;uniqueIndex:idx_approvals_token_spender,priority:2"`
	// ApprovalID is the value of the token's approval counter at grant time
	ApprovalID uint64 `gorm:"column:approval_id;not null"`
	// Ceiling is the granted allowance ceiling (string to support 128-bit values)
	Ceiling string `gorm:"column:ceiling;not null;type:numeric(39,0)"`
	// CreatedAt is the timestamp when this approval was granted
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Approval model
func (Approval) TableName() string {
	return "approvals"
}
