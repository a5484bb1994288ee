package rest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/multivault/ledger/internal/domain"
	"github.com/multivault/ledger/internal/ledger"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// GetToken retrieves a token's registry record
	// GET /api/v1/tokens/:token_id
	GetToken(c *gin.Context)

	// GetBalance retrieves one owner's balance for a token
	// GET /api/v1/tokens/:token_id/balances/:owner_id
	GetBalance(c *gin.Context)

	// ListBalances retrieves balances for a set of owners
	// GET /api/v1/tokens/:token_id/balances?owners=<a>,<b>
	ListBalances(c *gin.Context)

	// ListEvents retrieves a token's most recent ledger events
	// GET /api/v1/tokens/:token_id/events?limit=<limit>
	ListEvents(c *gin.Context)

	// Mint creates a new token (requires authentication)
	// POST /api/v1/tokens
	Mint(c *gin.Context)

	// Transfer executes a single transfer (requires authentication)
	// POST /api/v1/transfers
	Transfer(c *gin.Context)

	// TransferBatch executes a batch transfer (requires authentication)
	// POST /api/v1/transfers/batch
	TransferBatch(c *gin.Context)

	// TransferCall starts a transfer-and-notify saga (requires authentication)
	// POST /api/v1/transfers/call
	TransferCall(c *gin.Context)

	// GetSaga retrieves a transfer saga's state
	// GET /api/v1/sagas/:saga_id
	GetSaga(c *gin.Context)

	// Approve grants a delegated-spender approval (requires authentication)
	// POST /api/v1/approvals
	Approve(c *gin.Context)

	// Register creates a zero balance entry (requires authentication)
	// POST /api/v1/balances/register
	Register(c *gin.Context)

	// Unregister removes a balance entry (requires authentication)
	// DELETE /api/v1/tokens/:token_id/balances/:owner_id?force=<bool>&payment=<amount>
	Unregister(c *gin.Context)

	// RegisterHook registers a receiver hook (requires API key authentication)
	// POST /api/v1/hooks
	RegisterHook(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	service *ledger.Service
}

// NewHandler creates a new REST API handler
func NewHandler(service *ledger.Service) Handler {
	return &handler{service: service}
}

// GetToken retrieves a token's registry record
func (h *handler) GetToken(c *gin.Context) {
	token, err := h.service.TokenInfo(c.Request.Context(), c.Param("token_id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(token))
}

// GetBalance retrieves one owner's balance for a token
func (h *handler) GetBalance(c *gin.Context) {
	amount, err := h.service.BalanceOf(c.Request.Context(), c.Param("token_id"), c.Param("owner_id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceDTO{OwnerID: c.Param("owner_id"), Amount: amount})
}

// ListBalances retrieves balances for a set of owners
func (h *handler) ListBalances(c *gin.Context) {
	var owners []string
	if raw := c.Query("owners"); raw != "" {
		owners = strings.Split(raw, ",")
	}

	balances, err := h.service.Balances(c.Request.Context(), c.Param("token_id"), owners)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	result := make([]BalanceDTO, 0, len(balances))
	for _, balance := range balances {
		result = append(result, BalanceDTO{OwnerID: balance.OwnerID, Amount: balance.Amount})
	}
	c.JSON(http.StatusOK, gin.H{"balances": result})
}

// ListEvents retrieves a token's most recent ledger events
func (h *handler) ListEvents(c *gin.Context) {
	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxEventLimit {
			respondValidationError(c, "limit must be an integer between 1 and 1000")
			return
		}
		limit = parsed
	}

	events, err := h.service.Events(c.Request.Context(), c.Param("token_id"), limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	result := make([]EventDTO, 0, len(events))
	for _, event := range events {
		result = append(result, EventDTO{
			EventID:      event.EventID,
			EventType:    event.EventType,
			TokenID:      event.TokenID,
			OldOwner:     event.OldOwner,
			NewOwner:     event.NewOwner,
			Amount:       event.Amount,
			AuthorizedID: event.AuthorizedID,
			SagaID:       event.SagaID,
			Memo:         event.Memo,
			CreatedAt:    event.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": result})
}

// Mint creates a new token
func (h *handler) Mint(c *gin.Context) {
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	receipt, err := h.service.Mint(c.Request.Context(), ledger.MintRequest{
		OwnerID:         req.OwnerID,
		InitialSupply:   req.InitialSupply,
		Metadata:        req.Metadata,
		RefundRecipient: req.RefundRecipient,
		Payment:         req.Payment,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MintResponse{
		TokenID: receipt.Token.TokenID,
		OwnerID: receipt.Token.OwnerID,
		Supply:  receipt.Token.Supply,
		Refund:  receipt.Refund,
	})
}

// Transfer executes a single transfer
func (h *handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	receipt, err := h.service.Transfer(c.Request.Context(), ledger.TransferRequest{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		TokenID:    req.TokenID,
		Amount:     req.Amount,
		ApprovalID: req.ApprovalID,
		Memo:       req.Memo,
		Payment:    req.Payment,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, TransferResponse{Receipts: []TransferReceiptDTO{newReceiptDTO(*receipt)}})
}

// TransferBatch executes a batch transfer
func (h *handler) TransferBatch(c *gin.Context) {
	var req TransferBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	receipts, err := h.service.TransferBatch(c.Request.Context(), ledger.TransferBatchRequest{
		SenderID:    req.SenderID,
		ReceiverID:  req.ReceiverID,
		TokenIDs:    req.TokenIDs,
		Amounts:     req.Amounts,
		ApprovalIDs: req.ApprovalIDs,
		Memo:        req.Memo,
		Payment:     req.Payment,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	result := make([]TransferReceiptDTO, 0, len(receipts))
	for _, receipt := range receipts {
		result = append(result, newReceiptDTO(receipt))
	}
	c.JSON(http.StatusOK, TransferResponse{Receipts: result})
}

// TransferCall starts a transfer-and-notify saga
func (h *handler) TransferCall(c *gin.Context) {
	var req TransferCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	saga, err := h.service.TransferCall(c.Request.Context(), ledger.TransferCallRequest{
		SenderID:    req.SenderID,
		ReceiverID:  req.ReceiverID,
		TokenIDs:    req.TokenIDs,
		Amounts:     req.Amounts,
		ApprovalIDs: req.ApprovalIDs,
		Message:     req.Message,
		Payment:     req.Payment,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, TransferCallResponse{
		SagaID:     saga.SagaID,
		State:      string(saga.State),
		WorkflowID: saga.WorkflowID,
	})
}

// GetSaga retrieves a transfer saga's state
func (h *handler) GetSaga(c *gin.Context) {
	saga, err := h.service.SagaStatus(c.Request.Context(), c.Param("saga_id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSagaResponse(saga))
}

// Approve grants a delegated-spender approval
func (h *handler) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	approval, err := h.service.GrantApproval(c.Request.Context(), ledger.GrantApprovalRequest{
		TokenID:   req.TokenID,
		CallerID:  req.CallerID,
		SpenderID: req.SpenderID,
		Ceiling:   req.Ceiling,
		Payment:   req.Payment,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ApprovalResponse{
		TokenID:    approval.TokenID,
		SpenderID:  approval.SpenderID,
		ApprovalID: approval.ApprovalID,
		Ceiling:    approval.Ceiling,
	})
}

// Register creates a zero balance entry
func (h *handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	if err := h.service.Register(c.Request.Context(), req.TokenID, req.OwnerID, req.Payment); err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token_id": req.TokenID, "owner_id": req.OwnerID})
}

// Unregister removes a balance entry
func (h *handler) Unregister(c *gin.Context) {
	force := c.Query("force") == "true"
	err := h.service.Unregister(c.Request.Context(), c.Param("token_id"), c.Param("owner_id"), force, c.Query("payment"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterHook registers a receiver hook
func (h *handler) RegisterHook(c *gin.Context) {
	var req RegisterHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	if err := h.service.RegisterHook(c.Request.Context(), req.PrincipalID, req.HookURL, req.Secret); err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"principal_id": req.PrincipalID})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func newReceiptDTO(receipt domain.TransferReceipt) TransferReceiptDTO {
	removed := make([]RemovedApprovalDTO, 0, len(receipt.RemovedApprovals))
	for _, approval := range receipt.RemovedApprovals {
		removed = append(removed, RemovedApprovalDTO{
			SpenderID:  string(approval.SpenderID),
			ApprovalID: approval.ApprovalID,
			Ceiling:    approval.Ceiling,
		})
	}
	return TransferReceiptDTO{
		TokenID:          string(receipt.TokenID),
		OldOwner:         string(receipt.OldOwner),
		NewOwner:         string(receipt.NewOwner),
		Amount:           receipt.Amount,
		RemovedApprovals: removed,
	}
}
