package store

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/multivault/ledger/internal/domain"
	"github.com/multivault/ledger/internal/store/schema"
)

// TransferLeg is one (token, amount) movement inside a transfer operation.
type TransferLeg struct {
	TokenID    string
	Amount     string
	ApprovalID *uint64
}

// MintInput carries everything a mint transaction needs.
type MintInput struct {
	OwnerID       string
	InitialSupply string
	Metadata      datatypes.JSON
}

// MintResult is the committed outcome of a mint.
type MintResult struct {
	Token *schema.Token
	Event *domain.LedgerEvent
	// StorageBytes approximates the storage footprint consumed by the mint,
	// fed to the payment-refund collaborator.
	StorageBytes int64
}

// TransferInput carries a single transfer.
type TransferInput struct {
	SenderID   string
	ReceiverID string
	Leg        TransferLeg
	Memo       string
}

// TransferResult is the committed outcome of a single transfer.
type TransferResult struct {
	Receipt domain.TransferReceipt
	Events  []*domain.LedgerEvent
}

// TransferBatchInput carries a multi-leg transfer. All legs commit or none do.
type TransferBatchInput struct {
	SenderID   string
	ReceiverID string
	Legs       []TransferLeg
	Memo       string
}

// TransferBatchResult is the committed outcome of a batch transfer.
type TransferBatchResult struct {
	Receipts []domain.TransferReceipt
	Events   []*domain.LedgerEvent
}

// GrantApprovalInput grants a delegated-spender approval on a token.
type GrantApprovalInput struct {
	TokenID   string
	CallerID  string
	SpenderID string
	Ceiling   string
}

// BeginTransferCallInput commits the optimistic phase of a transfer-call:
// the transfer itself plus the saga row, in one transaction.
type BeginTransferCallInput struct {
	SagaID     string
	SenderID   string
	ReceiverID string
	Legs       []TransferLeg
	Message    string
	WorkflowID string
}

// BeginTransferCallResult is the committed optimistic phase.
type BeginTransferCallResult struct {
	Saga     *schema.TransferSaga
	Receipts []domain.TransferReceipt
	Events   []*domain.LedgerEvent
}

// MarkSagaNotifiedInput records that the receiver hook was called. The
// workflow id must match the one recorded when the saga started; the run id
// is pinned here and checked again at resolution.
type MarkSagaNotifiedInput struct {
	SagaID        string
	WorkflowID    string
	WorkflowRunID string
	NotifiedAt    time.Time
}

// ResolveSagaInput applies the resolution: refund the unused amounts,
// bounded by the receiver's current balances.
type ResolveSagaInput struct {
	SagaID        string
	WorkflowID    string
	WorkflowRunID string
	// Unused is the per-leg unused amount, already clamped to the sent
	// amount; values are aligned with the saga's token list.
	Unused     []string
	ResolvedAt time.Time
}

// ResolveSagaResult reports, per leg, what the receiver effectively kept,
// what went back to the old owner, and what was burned because the owner's
// entry was gone.
type ResolveSagaResult struct {
	Settled   []string
	Refunded  []string
	Forfeited []string
	Events    []*domain.LedgerEvent
}

// RegisterHookInput registers (or replaces) a principal's receiver hook.
type RegisterHookInput struct {
	PrincipalID string
	HookURL     string
	Secret      string
}

// Store defines the interface for ledger database operations. Every mutating
// method runs in its own transaction: a failed invocation persists nothing.
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// GetToken retrieves a token by id; domain.ErrTokenNotFound if absent
	GetToken(ctx context.Context, tokenID string) (*schema.Token, error)
	// GetBalance retrieves one balance entry; domain.ErrNotRegistered if the
	// owner has no entry for the token
	GetBalance(ctx context.Context, tokenID, ownerID string) (*schema.Balance, error)
	// ListBalances retrieves the balance entries of the given owners for one
	// token; owners without an entry are omitted. An empty owners slice
	// returns every entry for the token.
	ListBalances(ctx context.Context, tokenID string, ownerIDs []string) ([]schema.Balance, error)
	// GetApprovals lists the live approvals on a token
	GetApprovals(ctx context.Context, tokenID string) ([]schema.Approval, error)
	// GetLedgerEvents lists the most recent events for a token, newest first
	GetLedgerEvents(ctx context.Context, tokenID string, limit int) ([]schema.LedgerEvent, error)

	// RegisterBalance inserts a zero balance entry;
	// domain.ErrAlreadyRegistered if one exists
	RegisterBalance(ctx context.Context, tokenID, ownerID string) error
	// UnregisterBalance deletes a balance entry. A non-zero entry is only
	// deleted when force is set; the remainder is burned from the token's
	// supply and recorded as a forfeit event.
	UnregisterBalance(ctx context.Context, tokenID, ownerID string, force bool) (*domain.LedgerEvent, error)
	// Mint allocates the next token id and creates the token with its
	// owner's initial balance
	Mint(ctx context.Context, input MintInput) (*MintResult, error)
	// Transfer executes one transfer with full authorization and approval
	// clearing semantics
	Transfer(ctx context.Context, input TransferInput) (*TransferResult, error)
	// TransferBatch executes several legs atomically; any failure rolls back
	// every leg
	TransferBatch(ctx context.Context, input TransferBatchInput) (*TransferBatchResult, error)
	// GrantApproval records a delegated-spender approval, bumping the
	// token's approval counter
	GrantApproval(ctx context.Context, input GrantApprovalInput) (*schema.Approval, error)

	// BeginTransferCall commits the optimistic transfer together with the
	// saga row
	BeginTransferCall(ctx context.Context, input BeginTransferCallInput) (*BeginTransferCallResult, error)
	// GetTransferSaga retrieves a saga row; domain.ErrSagaNotFound if absent
	GetTransferSaga(ctx context.Context, sagaID string) (*schema.TransferSaga, error)
	// MarkSagaNotified transitions started -> notified and pins the workflow
	// run id
	MarkSagaNotified(ctx context.Context, input MarkSagaNotifiedInput) error
	// ResolveSaga transitions notified -> resolved and applies refunds
	ResolveSaga(ctx context.Context, input ResolveSagaInput) (*ResolveSagaResult, error)
	// AbortSaga moves a non-terminal saga to aborted
	AbortSaga(ctx context.Context, sagaID, reason string) error

	// RegisterReceiverHook registers or replaces a principal's hook
	RegisterReceiverHook(ctx context.Context, input RegisterHookInput) error
	// GetReceiverHook retrieves a principal's hook;
	// domain.ErrHookNotRegistered if absent or inactive
	GetReceiverHook(ctx context.Context, principalID string) (*schema.ReceiverHook, error)

	// GetKeyValue retrieves a raw value; empty string when the key is absent
	GetKeyValue(ctx context.Context, key string) (string, error)
	// SetKeyValue upserts a raw value
	SetKeyValue(ctx context.Context, key, value string) error
}
