package schema

import (
	"time"
)

// ReceiverHook represents the receiver_hooks table - a principal's registered
// notification endpoint. Transfer-calls deliver a signed notification to this
// URL and read the unused amounts from the reply.
type ReceiverHook struct {
	// PrincipalID is the receiving principal this hook belongs to
	PrincipalID string `gorm:"column:principal_id;primaryKey;type:text"`
	// HookURL is the HTTPS endpoint notifications are POSTed to
	HookURL string `gorm:"column:hook_url;not null;type:text"`
	// Secret is the key used for HMAC-SHA256 signature generation
	Secret string `gorm:"column:secret;not null;type:text"`
	// IsActive indicates whether this hook should receive notifications
	IsActive bool `gorm:"column:is_active;not null;default:true"`
	// CreatedAt is the timestamp when this hook was registered
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this hook was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the ReceiverHook model
func (ReceiverHook) TableName() string {
	return "receiver_hooks"
}
