package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Token represents the tokens table - one row per minted token class
type Token struct {
	// TokenID is the decimal string of the allocation counter value assigned at mint
	TokenID string `gorm:"column:token_id;primaryKey;type:text"`
	// OwnerID is the minting principal; senders other than it need an approval to transfer
	OwnerID string `gorm:"column:owner_id;not null;type:text;index"`
	// Supply is the tracked total supply, maintained as the sum of all balance entries (string to support 128-bit values)
	Supply string `gorm:"column:supply;not null;type:numeric(39,0)"`
	// Metadata is the optional token metadata document (required when the metadata capability is enabled)
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb"`
	// NextApprovalID is the per-token approval counter, bumped on every grant
	NextApprovalID uint64 `gorm:"column:next_approval_id;not null;default:0"`
	// CreatedAt is the timestamp when this token was minted
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`

	// Associations
	Balances  []Balance  `gorm:"foreignKey:TokenID;references:TokenID;constraint:OnDelete:CASCADE"`
	Approvals []Approval `gorm:"foreignKey:TokenID;references:TokenID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Token model
func (Token) TableName() string {
	return "tokens"
}
