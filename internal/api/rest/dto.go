package rest

import (
	"encoding/json"
	"time"

	"github.com/multivault/ledger/internal/store/schema"
)

// MintRequest is the payload for POST /api/v1/tokens
type MintRequest struct {
	OwnerID         string          `json:"owner_id" binding:"required"`
	InitialSupply   string          `json:"initial_supply" binding:"required"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	RefundRecipient string          `json:"refund_recipient,omitempty"`
	Payment         string          `json:"payment" binding:"required"`
}

// MintResponse is the response for a successful mint
type MintResponse struct {
	TokenID string `json:"token_id"`
	OwnerID string `json:"owner_id"`
	Supply  string `json:"supply"`
	Refund  string `json:"refund"`
}

// TransferRequest is the payload for POST /api/v1/transfers
type TransferRequest struct {
	SenderID   string  `json:"sender_id" binding:"required"`
	ReceiverID string  `json:"receiver_id" binding:"required"`
	TokenID    string  `json:"token_id" binding:"required"`
	Amount     string  `json:"amount" binding:"required"`
	ApprovalID *uint64 `json:"approval_id,omitempty"`
	Memo       string  `json:"memo,omitempty"`
	Payment    string  `json:"payment" binding:"required"`
}

// TransferBatchRequest is the payload for POST /api/v1/transfers/batch
type TransferBatchRequest struct {
	SenderID    string    `json:"sender_id" binding:"required"`
	ReceiverID  string    `json:"receiver_id" binding:"required"`
	TokenIDs    []string  `json:"token_ids" binding:"required"`
	Amounts     []string  `json:"amounts" binding:"required"`
	ApprovalIDs []*uint64 `json:"approval_ids,omitempty"`
	Memo        string    `json:"memo,omitempty"`
	Payment     string    `json:"payment" binding:"required"`
}

// TransferCallRequest is the payload for POST /api/v1/transfers/call
type TransferCallRequest struct {
	SenderID    string    `json:"sender_id" binding:"required"`
	ReceiverID  string    `json:"receiver_id" binding:"required"`
	TokenIDs    []string  `json:"token_ids" binding:"required"`
	Amounts     []string  `json:"amounts" binding:"required"`
	ApprovalIDs []*uint64 `json:"approval_ids,omitempty"`
	Message     string    `json:"message,omitempty"`
	Payment     string    `json:"payment" binding:"required"`
}

// RemovedApprovalDTO is one approval cleared by a transfer
type RemovedApprovalDTO struct {
	SpenderID  string `json:"spender_id"`
	ApprovalID uint64 `json:"approval_id"`
	Ceiling    string `json:"ceiling"`
}

// TransferReceiptDTO is one settled transfer leg
type TransferReceiptDTO struct {
	TokenID          string               `json:"token_id"`
	OldOwner         string               `json:"old_owner"`
	NewOwner         string               `json:"new_owner"`
	Amount           string               `json:"amount"`
	RemovedApprovals []RemovedApprovalDTO `json:"removed_approvals,omitempty"`
}

// TransferResponse wraps the receipts of a transfer or batch transfer
type TransferResponse struct {
	Receipts []TransferReceiptDTO `json:"receipts"`
}

// TransferCallResponse is the response for an accepted transfer-call
type TransferCallResponse struct {
	SagaID     string `json:"saga_id"`
	State      string `json:"state"`
	WorkflowID string `json:"workflow_id"`
}

// SagaResponse is the response for GET /api/v1/sagas/:saga_id
type SagaResponse struct {
	SagaID      string          `json:"saga_id"`
	State       string          `json:"state"`
	SenderID    string          `json:"sender_id"`
	ReceiverID  string          `json:"receiver_id"`
	TokenIDs    json.RawMessage `json:"token_ids"`
	Amounts     json.RawMessage `json:"amounts"`
	Settled     json.RawMessage `json:"settled,omitempty"`
	AbortReason string          `json:"abort_reason,omitempty"`
	NotifiedAt  *time.Time      `json:"notified_at,omitempty"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ApproveRequest is the payload for POST /api/v1/approvals
type ApproveRequest struct {
	TokenID   string `json:"token_id" binding:"required"`
	CallerID  string `json:"caller_id" binding:"required"`
	SpenderID string `json:"spender_id" binding:"required"`
	Ceiling   string `json:"ceiling" binding:"required"`
	Payment   string `json:"payment" binding:"required"`
}

// ApprovalResponse is the recorded approval
type ApprovalResponse struct {
	TokenID    string `json:"token_id"`
	SpenderID  string `json:"spender_id"`
	ApprovalID uint64 `json:"approval_id"`
	Ceiling    string `json:"ceiling"`
}

// RegisterRequest is the payload for POST /api/v1/balances/register
type RegisterRequest struct {
	TokenID string `json:"token_id" binding:"required"`
	OwnerID string `json:"owner_id" binding:"required"`
	Payment string `json:"payment" binding:"required"`
}

// RegisterHookRequest is the payload for POST /api/v1/hooks
type RegisterHookRequest struct {
	PrincipalID string `json:"principal_id" binding:"required"`
	HookURL     string `json:"hook_url" binding:"required"`
	Secret      string `json:"secret" binding:"required"`
}

// TokenResponse is the registry view of a token
type TokenResponse struct {
	TokenID   string          `json:"token_id"`
	OwnerID   string          `json:"owner_id"`
	Supply    string          `json:"supply"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// BalanceDTO is one owner's balance entry
type BalanceDTO struct {
	OwnerID string `json:"owner_id"`
	Amount  string `json:"amount"`
}

// EventDTO is one ledger event
type EventDTO struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	TokenID      string    `json:"token_id"`
	OldOwner     string    `json:"old_owner,omitempty"`
	NewOwner     string    `json:"new_owner,omitempty"`
	Amount       string    `json:"amount"`
	AuthorizedID string    `json:"authorized_id,omitempty"`
	SagaID       string    `json:"saga_id,omitempty"`
	Memo         string    `json:"memo,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func newTokenResponse(token *schema.Token) TokenResponse {
	return TokenResponse{
		TokenID:   token.TokenID,
		OwnerID:   token.OwnerID,
		Supply:    token.Supply,
		Metadata:  json.RawMessage(token.Metadata),
		CreatedAt: token.CreatedAt,
	}
}

func newSagaResponse(saga *schema.TransferSaga) SagaResponse {
	return SagaResponse{
		SagaID:      saga.SagaID,
		State:       string(saga.State),
		SenderID:    saga.SenderID,
		ReceiverID:  saga.ReceiverID,
		TokenIDs:    json.RawMessage(saga.TokenIDs),
		Amounts:     json.RawMessage(saga.Amounts),
		Settled:     json.RawMessage(saga.Settled),
		AbortReason: saga.AbortReason,
		NotifiedAt:  saga.NotifiedAt,
		ResolvedAt:  saga.ResolvedAt,
		CreatedAt:   saga.CreatedAt,
	}
}
