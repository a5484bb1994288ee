package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/multivault/ledger/internal/adapter"
	"github.com/multivault/ledger/internal/domain"
	"github.com/multivault/ledger/internal/logger"
	"github.com/multivault/ledger/internal/messaging"
	"github.com/multivault/ledger/internal/payments"
	temporalprovider "github.com/multivault/ledger/internal/providers/temporal"
	"github.com/multivault/ledger/internal/store"
	"github.com/multivault/ledger/internal/store/schema"
	"github.com/multivault/ledger/internal/workflows"
)

// Options fixes the instance's capabilities at construction. They never
// change at runtime: a ledger either requires metadata on every mint or
// never does, and either supports approvals or rejects them outright.
type Options struct {
	// MetadataRequired makes mint fail without a metadata document
	MetadataRequired bool
	// ApprovalsEnabled allows approval grants and approval-id transfers
	ApprovalsEnabled bool
	// TaskQueue is the Temporal task queue transfer-call workflows run on
	TaskQueue string
	// CallTimeout bounds a transfer-call workflow end to end
	CallTimeout time.Duration
}

// Service orchestrates validation, storage, payments, event publishing and
// saga scheduling for every ledger operation.
type Service struct {
	store        store.Store
	publisher    messaging.Publisher
	orchestrator temporalprovider.TemporalOrchestrator
	floor        *payments.Floor
	refunder     payments.Refunder
	clock        adapter.Clock
	opts         Options
}

// New creates a ledger service.
func New(
	dataStore store.Store,
	publisher messaging.Publisher,
	orchestrator temporalprovider.TemporalOrchestrator,
	floor *payments.Floor,
	refunder payments.Refunder,
	clock adapter.Clock,
	opts Options,
) *Service {
	if opts.CallTimeout == 0 {
		opts.CallTimeout = 10 * time.Minute
	}
	return &Service{
		store:        dataStore,
		publisher:    publisher,
		orchestrator: orchestrator,
		floor:        floor,
		refunder:     refunder,
		clock:        clock,
		opts:         opts,
	}
}

// MintRequest carries a mint call.
type MintRequest struct {
	OwnerID         string
	InitialSupply   string
	Metadata        json.RawMessage
	RefundRecipient string
	Payment         string
}

// MintReceipt is the result of a mint: the created token and any excess
// payment returned to the refund recipient.
type MintReceipt struct {
	Token  *schema.Token
	Refund string
}

// TransferRequest carries a single transfer call.
type TransferRequest struct {
	SenderID   string
	ReceiverID string
	TokenID    string
	Amount     string
	ApprovalID *uint64
	Memo       string
	Payment    string
}

// TransferBatchRequest carries a batch transfer call. TokenIDs and Amounts
// are aligned; ApprovalIDs is optional and, when present, aligned too.
type TransferBatchRequest struct {
	SenderID    string
	ReceiverID  string
	TokenIDs    []string
	Amounts     []string
	ApprovalIDs []*uint64
	Memo        string
	Payment     string
}

// TransferCallRequest carries a transfer-and-notify call.
type TransferCallRequest struct {
	SenderID    string
	ReceiverID  string
	TokenIDs    []string
	Amounts     []string
	ApprovalIDs []*uint64
	Message     string
	Payment     string
}

// GrantApprovalRequest carries an approval grant.
type GrantApprovalRequest struct {
	TokenID   string
	CallerID  string
	SpenderID string
	Ceiling   string
	Payment   string
}

// TokenInfo returns a token's registry record.
func (s *Service) TokenInfo(ctx context.Context, tokenID string) (*schema.Token, error) {
	if !domain.TokenID(tokenID).Valid() {
		return nil, fmt.Errorf("bad token id %q: %w", tokenID, domain.ErrInvalidArgument)
	}
	return s.store.GetToken(ctx, tokenID)
}

// BalanceOf returns one owner's balance for a token.
func (s *Service) BalanceOf(ctx context.Context, tokenID, ownerID string) (string, error) {
	if !domain.TokenID(tokenID).Valid() || !domain.Principal(ownerID).Valid() {
		return "", domain.ErrInvalidArgument
	}
	balance, err := s.store.GetBalance(ctx, tokenID, ownerID)
	if err != nil {
		return "", err
	}
	return balance.Amount, nil
}

// Balances returns the balance entries of the given owners for a token.
func (s *Service) Balances(ctx context.Context, tokenID string, ownerIDs []string) ([]schema.Balance, error) {
	if !domain.TokenID(tokenID).Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := s.store.GetToken(ctx, tokenID); err != nil {
		return nil, err
	}
	return s.store.ListBalances(ctx, tokenID, ownerIDs)
}

// Events returns a token's most recent ledger events.
func (s *Service) Events(ctx context.Context, tokenID string, limit int) ([]schema.LedgerEvent, error) {
	if !domain.TokenID(tokenID).Valid() {
		return nil, domain.ErrInvalidArgument
	}
	return s.store.GetLedgerEvents(ctx, tokenID, limit)
}

// Register creates a zero balance entry for an owner.
func (s *Service) Register(ctx context.Context, tokenID, ownerID, payment string) error {
	if err := s.floor.CheckPayment(payment); err != nil {
		return err
	}
	if !domain.TokenID(tokenID).Valid() || !domain.Principal(ownerID).Valid() {
		return domain.ErrInvalidArgument
	}
	return s.store.RegisterBalance(ctx, tokenID, ownerID)
}

// Unregister removes an owner's balance entry, burning the remainder when
// forced.
func (s *Service) Unregister(ctx context.Context, tokenID, ownerID string, force bool, payment string) error {
	if err := s.floor.CheckPayment(payment); err != nil {
		return err
	}
	if !domain.TokenID(tokenID).Valid() || !domain.Principal(ownerID).Valid() {
		return domain.ErrInvalidArgument
	}
	event, err := s.store.UnregisterBalance(ctx, tokenID, ownerID, force)
	if err != nil {
		return err
	}
	if event != nil {
		s.publish(ctx, event)
	}
	return nil
}

// Mint allocates a token id and creates the token with its initial supply
// credited to the owner.
func (s *Service) Mint(ctx context.Context, req MintRequest) (*MintReceipt, error) {
	if err := s.floor.CheckPayment(req.Payment); err != nil {
		return nil, err
	}
	if !domain.Principal(req.OwnerID).Valid() {
		return nil, fmt.Errorf("bad owner %q: %w", req.OwnerID, domain.ErrInvalidArgument)
	}
	if _, err := domain.ParseAmount(req.InitialSupply); err != nil {
		return nil, err
	}

	var metadata datatypes.JSON
	if len(req.Metadata) > 0 {
		if !json.Valid(req.Metadata) {
			return nil, domain.ErrInvalidMetadata
		}
		metadata = datatypes.JSON(req.Metadata)
	} else if s.opts.MetadataRequired {
		return nil, domain.ErrInvalidMetadata
	}

	result, err := s.store.Mint(ctx, store.MintInput{
		OwnerID:       req.OwnerID,
		InitialSupply: req.InitialSupply,
		Metadata:      metadata,
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, result.Event)

	receipt := &MintReceipt{Token: result.Token, Refund: "0"}
	if req.RefundRecipient != "" {
		refund, err := s.refunder.RefundExcess(ctx, domain.Principal(req.RefundRecipient), req.Payment, result.StorageBytes)
		if err != nil {
			logger.WarnCtx(ctx, "failed to compute storage refund",
				zap.Error(err), zap.String("token_id", result.Token.TokenID))
		} else {
			receipt.Refund = refund
		}
	}

	logger.InfoCtx(ctx, "Minted token",
		zap.String("token_id", result.Token.TokenID),
		zap.String("owner_id", result.Token.OwnerID),
		zap.String("supply", result.Token.Supply))
	return receipt, nil
}

// Transfer executes one transfer.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*domain.TransferReceipt, error) {
	if err := s.floor.CheckPayment(req.Payment); err != nil {
		return nil, err
	}
	leg := store.TransferLeg{TokenID: req.TokenID, Amount: req.Amount, ApprovalID: req.ApprovalID}
	if err := s.validateLegs(req.SenderID, req.ReceiverID, []store.TransferLeg{leg}); err != nil {
		return nil, err
	}

	result, err := s.store.Transfer(ctx, store.TransferInput{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Leg:        leg,
		Memo:       req.Memo,
	})
	if err != nil {
		return nil, err
	}
	s.publishAll(ctx, result.Events)
	return &result.Receipt, nil
}

// TransferBatch executes several legs in one all-or-nothing call.
func (s *Service) TransferBatch(ctx context.Context, req TransferBatchRequest) ([]domain.TransferReceipt, error) {
	if err := s.floor.CheckPayment(req.Payment); err != nil {
		return nil, err
	}
	legs, err := buildLegs(req.TokenIDs, req.Amounts, req.ApprovalIDs)
	if err != nil {
		return nil, err
	}
	if err := s.validateLegs(req.SenderID, req.ReceiverID, legs); err != nil {
		return nil, err
	}

	result, err := s.store.TransferBatch(ctx, store.TransferBatchInput{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Legs:       legs,
		Memo:       req.Memo,
	})
	if err != nil {
		return nil, err
	}
	s.publishAll(ctx, result.Events)
	return result.Receipts, nil
}

// TransferCall commits the optimistic transfer, persists the saga and
// starts the notify/resolve workflow. Once this returns, the funds have
// moved; resolution can only compensate, not cancel.
func (s *Service) TransferCall(ctx context.Context, req TransferCallRequest) (*schema.TransferSaga, error) {
	if err := s.floor.CheckCallBudget(req.Payment); err != nil {
		return nil, err
	}
	legs, err := buildLegs(req.TokenIDs, req.Amounts, req.ApprovalIDs)
	if err != nil {
		return nil, err
	}
	if err := s.validateLegs(req.SenderID, req.ReceiverID, legs); err != nil {
		return nil, err
	}
	// The receiver must be reachable before anything moves.
	if _, err := s.store.GetReceiverHook(ctx, req.ReceiverID); err != nil {
		return nil, err
	}

	sagaID := ulid.MustNewDefault(s.clock.Now()).String()
	workflowID := workflows.TransferCallWorkflowID(sagaID)

	result, err := s.store.BeginTransferCall(ctx, store.BeginTransferCallInput{
		SagaID:     sagaID,
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Legs:       legs,
		Message:    req.Message,
		WorkflowID: workflowID,
	})
	if err != nil {
		return nil, err
	}
	s.publishAll(ctx, result.Events)

	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                s.opts.TaskQueue,
		WorkflowExecutionTimeout: s.opts.CallTimeout,
		// One saga, one workflow: a second start under the same id must fail
		// rather than race the first over the saga's caller checks.
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	if _, err := s.orchestrator.ExecuteWorkflow(ctx, options, workflows.TransferCallWorkflowName, sagaID); err != nil {
		// The transfer is already committed; the saga stays in started for
		// an operator to re-drive.
		logger.ErrorCtx(ctx, fmt.Errorf("failed to start transfer-call workflow: %w", err),
			zap.String("saga_id", sagaID),
			zap.String("workflow_id", workflowID))
	}

	logger.InfoCtx(ctx, "Started transfer call",
		zap.String("saga_id", sagaID),
		zap.String("sender", req.SenderID),
		zap.String("receiver", req.ReceiverID))
	return result.Saga, nil
}

// GrantApproval records a delegated-spender approval.
func (s *Service) GrantApproval(ctx context.Context, req GrantApprovalRequest) (*schema.Approval, error) {
	if !s.opts.ApprovalsEnabled {
		return nil, fmt.Errorf("approvals disabled: %w", domain.ErrInvalidArgument)
	}
	if err := s.floor.CheckPayment(req.Payment); err != nil {
		return nil, err
	}
	if !domain.TokenID(req.TokenID).Valid() ||
		!domain.Principal(req.CallerID).Valid() ||
		!domain.Principal(req.SpenderID).Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if req.CallerID == req.SpenderID {
		return nil, fmt.Errorf("cannot approve self: %w", domain.ErrInvalidArgument)
	}
	return s.store.GrantApproval(ctx, store.GrantApprovalInput{
		TokenID:   req.TokenID,
		CallerID:  req.CallerID,
		SpenderID: req.SpenderID,
		Ceiling:   req.Ceiling,
	})
}

// SagaStatus returns a transfer saga's current state and settled amounts.
func (s *Service) SagaStatus(ctx context.Context, sagaID string) (*schema.TransferSaga, error) {
	if sagaID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return s.store.GetTransferSaga(ctx, sagaID)
}

// RegisterHook registers a principal's receiver hook.
func (s *Service) RegisterHook(ctx context.Context, principalID, hookURL, secret string) error {
	if !domain.Principal(principalID).Valid() || hookURL == "" || secret == "" {
		return domain.ErrInvalidArgument
	}
	return s.store.RegisterReceiverHook(ctx, store.RegisterHookInput{
		PrincipalID: principalID,
		HookURL:     hookURL,
		Secret:      secret,
	})
}

func buildLegs(tokenIDs, amounts []string, approvalIDs []*uint64) ([]store.TransferLeg, error) {
	if len(tokenIDs) == 0 || len(tokenIDs) != len(amounts) {
		return nil, fmt.Errorf("token and amount lists must align: %w", domain.ErrInvalidArgument)
	}
	if len(approvalIDs) > 0 && len(approvalIDs) != len(tokenIDs) {
		return nil, fmt.Errorf("approval id list must align: %w", domain.ErrInvalidArgument)
	}
	legs := make([]store.TransferLeg, len(tokenIDs))
	for i := range tokenIDs {
		legs[i] = store.TransferLeg{TokenID: tokenIDs[i], Amount: amounts[i]}
		if len(approvalIDs) > 0 {
			legs[i].ApprovalID = approvalIDs[i]
		}
	}
	return legs, nil
}

func (s *Service) validateLegs(senderID, receiverID string, legs []store.TransferLeg) error {
	if !domain.Principal(senderID).Valid() || !domain.Principal(receiverID).Valid() {
		return domain.ErrInvalidArgument
	}
	if senderID == receiverID {
		return fmt.Errorf("sender equals receiver: %w", domain.ErrInvalidArgument)
	}
	for _, leg := range legs {
		if !domain.TokenID(leg.TokenID).Valid() {
			return fmt.Errorf("bad token id %q: %w", leg.TokenID, domain.ErrInvalidArgument)
		}
		amount, err := domain.ParseAmount(leg.Amount)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			return fmt.Errorf("zero amount: %w", domain.ErrInvalidArgument)
		}
		if leg.ApprovalID != nil && !s.opts.ApprovalsEnabled {
			return fmt.Errorf("approvals disabled: %w", domain.ErrInvalidArgument)
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event *domain.LedgerEvent) {
	if s.publisher == nil || event == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		logger.WarnCtx(ctx, "failed to publish ledger event",
			zap.Error(err),
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.EventType)))
	}
}

func (s *Service) publishAll(ctx context.Context, events []*domain.LedgerEvent) {
	for _, event := range events {
		s.publish(ctx, event)
	}
}
