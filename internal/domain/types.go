package domain

import (
	"time"
)

// Principal identifies an account: a balance holder, a token owner, a
// delegated spender or a hook receiver.
type Principal string

// Valid reports whether the principal is usable as an account identifier.
// Identifiers are opaque non-empty strings without whitespace.
func (p Principal) Valid() bool {
	if len(p) == 0 || len(p) > 255 {
		return false
	}
	for _, r := range p {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return false
		}
	}
	return true
}

func (p Principal) String() string {
	return string(p)
}

// TokenID identifies a token class. Token ids are decimal strings of the
// allocation counter, assigned at mint.
type TokenID string

// Valid reports whether the token id is a plausible identifier.
func (t TokenID) Valid() bool {
	if len(t) == 0 || len(t) > 64 {
		return false
	}
	for _, r := range t {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (t TokenID) String() string {
	return string(t)
}

// SagaState is the lifecycle state of a transfer-call saga.
type SagaState string

const (
	SagaStateStarted  SagaState = "started"
	SagaStateNotified SagaState = "notified"
	SagaStateResolved SagaState = "resolved"
	SagaStateAborted  SagaState = "aborted"
)

// CanTransitionTo reports whether the saga may move from s to next.
// Legal transitions: started -> notified, notified -> resolved, and
// started|notified -> aborted. Resolved and aborted are terminal.
func (s SagaState) CanTransitionTo(next SagaState) bool {
	switch s {
	case SagaStateStarted:
		return next == SagaStateNotified || next == SagaStateAborted
	case SagaStateNotified:
		return next == SagaStateResolved || next == SagaStateAborted
	default:
		return false
	}
}

// EventType classifies a ledger event record.
type EventType string

const (
	EventTypeMint     EventType = "mint"
	EventTypeTransfer EventType = "transfer"
	EventTypeRefund   EventType = "refund"
	EventTypeForfeit  EventType = "forfeit"
)

// LedgerEvent is a normalized balance-movement record. Every mutating
// operation appends events inside its own transaction; the same structure
// is published to NATS after commit.
type LedgerEvent struct {
	EventID      string    `json:"event_id"`
	EventType    EventType `json:"event_type"`
	TokenID      TokenID   `json:"token_id"`
	OldOwner     Principal `json:"old_owner,omitempty"`
	NewOwner     Principal `json:"new_owner,omitempty"`
	Amount       string    `json:"amount"`
	AuthorizedID Principal `json:"authorized_id,omitempty"`
	SagaID       string    `json:"saga_id,omitempty"`
	Memo         string    `json:"memo,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// RemovedApproval is an approval entry consumed by a transfer. Transfers
// clear every approval on the touched token and report the removed set.
type RemovedApproval struct {
	SpenderID  Principal `json:"spender_id"`
	ApprovalID uint64    `json:"approval_id"`
	Ceiling    string    `json:"ceiling"`
}

// TransferReceipt is the outcome of a committed single transfer.
type TransferReceipt struct {
	TokenID          TokenID
	OldOwner         Principal
	NewOwner         Principal
	Amount           string
	RemovedApprovals []RemovedApproval
}

// NotifyStatus classifies the receiver hook's reply to a transfer-call
// notification.
type NotifyStatus string

const (
	// NotifyStatusOK means the hook answered 2xx with a parseable reply.
	NotifyStatusOK NotifyStatus = "ok"
	// NotifyStatusRemoteFailure means transport error or non-2xx; the
	// transfer is treated as fully unused and reversed.
	NotifyStatusRemoteFailure NotifyStatus = "remote_failure"
	// NotifyStatusMalformed means 2xx with an unparseable reply; the
	// transfer is treated as fully used and kept.
	NotifyStatusMalformed NotifyStatus = "malformed"
)
