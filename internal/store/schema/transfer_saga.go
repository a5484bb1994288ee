package schema

import (
	"time"

	"gorm.io/datatypes"
)

// SagaState is the lifecycle state column of a transfer saga row
type SagaState string

const (
	// SagaStateStarted means the optimistic transfer is committed and the receiver has not been notified yet
	SagaStateStarted SagaState = "started"
	// SagaStateNotified means the receiver hook has been called and its reply recorded
	SagaStateNotified SagaState = "notified"
	// SagaStateResolved means refunds have been applied and settled amounts recorded
	SagaStateResolved SagaState = "resolved"
	// SagaStateAborted means the saga terminated without resolution
	SagaStateAborted SagaState = "aborted"
)

// TransferSaga represents the transfer_sagas table - the durable context of a
// transfer-and-notify operation. Phase 1 (the optimistic transfer) commits this
// row together with the balance movement; the resolution workflow reads it back.
type TransferSaga struct {
	// SagaID is the ULID assigned when the saga starts
	SagaID string `gorm:"column:saga_id;primaryKey;type:varchar(26)"`
	// State is the saga lifecycle state
	State SagaState `gorm:"column:state;not null;type:text;index"`
	// SenderID is the principal that initiated the transfer-call
	SenderID string `gorm:"column:sender_id;not null;type:text"`
	// ReceiverID is the principal the funds moved to
	ReceiverID string `gorm:"column:receiver_id;not null;type:text"`
	// OldOwners is the JSON array of debited principals, aligned with TokenIDs
	OldOwners datatypes.JSON `gorm:"column:old_owners;not null;type:jsonb"`
	// TokenIDs is the JSON array of transferred token ids, in call order
	TokenIDs datatypes.JSON `gorm:"column:token_ids;not null;type:jsonb"`
	// Amounts is the JSON array of transferred amounts, aligned with TokenIDs
	Amounts datatypes.JSON `gorm:"column:amounts;not null;type:jsonb"`
	// Settled is the JSON array of amounts the receiver effectively kept, set at resolution
	Settled datatypes.JSON `gorm:"column:settled;type:jsonb"`
	// RemovedApprovals snapshots the approvals cleared by the phase-1 transfer
	RemovedApprovals datatypes.JSON `gorm:"column:removed_approvals;type:jsonb"`
	// Message is the free-form memo forwarded to the receiver hook
	Message string `gorm:"column:message;type:text"`
	// AbortReason records why an aborted saga terminated
	AbortReason string `gorm:"column:abort_reason;type:text"`
	// WorkflowID is the resolution workflow id expected to drive this saga
	WorkflowID string `gorm:"column:workflow_id;type:text"`
	// WorkflowRunID is the run id recorded by the notify activity; resolution must present the same run
	WorkflowRunID string `gorm:"column:workflow_run_id;type:text"`
	// NotifiedAt is the timestamp when the receiver hook was called
	NotifiedAt *time.Time `gorm:"column:notified_at;type:timestamptz"`
	// ResolvedAt is the timestamp when refunds were applied
	ResolvedAt *time.Time `gorm:"column:resolved_at;type:timestamptz"`
	// CreatedAt is the timestamp when the saga started
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the TransferSaga model
func (TransferSaga) TableName() string {
	return "transfer_sagas"
}
