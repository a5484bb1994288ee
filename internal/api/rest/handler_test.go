package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/client"

	"github.com/multivault/ledger/internal/adapter"
	"github.com/multivault/ledger/internal/domain"
	"github.com/multivault/ledger/internal/ledger"
	"github.com/multivault/ledger/internal/logger"
	"github.com/multivault/ledger/internal/payments"
	"github.com/multivault/ledger/internal/store"
)

type nullPublisher struct{}

func (nullPublisher) PublishEvent(context.Context, *domain.LedgerEvent) error { return nil }
func (nullPublisher) Close()                                                  {}

type nullOrchestrator struct{}

func (nullOrchestrator) ExecuteWorkflow(context.Context, client.StartWorkflowOptions, interface{}, ...interface{}) (client.WorkflowRun, error) {
	return nil, nil
}

// HandlerTestSuite drives the REST handlers over a real service backed by
// the in-memory store. Auth middleware is exercised separately.
type HandlerTestSuite struct {
	suite.Suite

	store  store.Store
	router *gin.Engine
}

func (s *HandlerTestSuite) SetupTest() {
	_ = logger.Initialize(logger.Config{
		Debug: true,
	})
	gin.SetMode(gin.TestMode)

	floor, err := payments.NewFloor("1", "1")
	s.Require().NoError(err)
	refunder, err := payments.NewStorageRefunder("0")
	s.Require().NoError(err)

	s.store = store.NewMemStore()
	service := ledger.New(s.store, nullPublisher{}, nullOrchestrator{}, floor, refunder, adapter.NewClock(), ledger.Options{
		ApprovalsEnabled: true,
		TaskQueue:        "transfer-call",
		CallTimeout:      time.Minute,
	})
	h := NewHandler(service)

	s.router = gin.New()
	s.router.GET("/health", h.HealthCheck)
	v1 := s.router.Group("/api/v1")
	v1.GET("/tokens/:token_id", h.GetToken)
	v1.GET("/tokens/:token_id/balances", h.ListBalances)
	v1.GET("/tokens/:token_id/balances/:owner_id", h.GetBalance)
	v1.GET("/tokens/:token_id/events", h.ListEvents)
	v1.GET("/sagas/:saga_id", h.GetSaga)
	v1.POST("/tokens", h.Mint)
	v1.POST("/transfers", h.Transfer)
	v1.POST("/transfers/batch", h.TransferBatch)
	v1.POST("/transfers/call", h.TransferCall)
	v1.POST("/approvals", h.Approve)
	v1.POST("/balances/register", h.Register)
	v1.DELETE("/tokens/:token_id/balances/:owner_id", h.Unregister)
	v1.POST("/hooks", h.RegisterHook)
}

func (s *HandlerTestSuite) request(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, req)
	return recorder
}

func (s *HandlerTestSuite) mintToken() string {
	recorder := s.request(http.MethodPost, "/api/v1/tokens", MintRequest{
		OwnerID:       "alice",
		InitialSupply: "1000",
		Payment:       "1",
	})
	s.Require().Equal(http.StatusCreated, recorder.Code)

	var resp MintResponse
	s.Require().NoError(json.Unmarshal(recorder.Body.Bytes(), &resp))
	return resp.TokenID
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (s *HandlerTestSuite) TestHealthCheck() {
	recorder := s.request(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, recorder.Code)
}

func (s *HandlerTestSuite) TestMintAndGetToken() {
	tokenID := s.mintToken()
	s.Equal("1", tokenID)

	recorder := s.request(http.MethodGet, "/api/v1/tokens/1", nil)
	s.Equal(http.StatusOK, recorder.Code)

	var token TokenResponse
	s.Require().NoError(json.Unmarshal(recorder.Body.Bytes(), &token))
	s.Equal("alice", token.OwnerID)
	s.Equal("1000", token.Supply)
}

func (s *HandlerTestSuite) TestGetTokenNotFound() {
	recorder := s.request(http.MethodGet, "/api/v1/tokens/999", nil)
	s.Equal(http.StatusNotFound, recorder.Code)
}

func (s *HandlerTestSuite) TestMintBelowFloorIsPaymentRequired() {
	recorder := s.request(http.MethodPost, "/api/v1/tokens", MintRequest{
		OwnerID:       "alice",
		InitialSupply: "10",
		Payment:       "0",
	})
	s.Equal(http.StatusPaymentRequired, recorder.Code)
}

func (s *HandlerTestSuite) TestTransferFlow() {
	tokenID := s.mintToken()

	recorder := s.request(http.MethodPost, "/api/v1/balances/register", RegisterRequest{
		TokenID: tokenID, OwnerID: "bob", Payment: "1",
	})
	s.Require().Equal(http.StatusCreated, recorder.Code)

	recorder = s.request(http.MethodPost, "/api/v1/transfers", TransferRequest{
		SenderID: "alice", ReceiverID: "bob",
		TokenID: tokenID, Amount: "300", Payment: "1",
	})
	s.Require().Equal(http.StatusOK, recorder.Code)

	var resp TransferResponse
	s.Require().NoError(json.Unmarshal(recorder.Body.Bytes(), &resp))
	s.Require().Len(resp.Receipts, 1)
	s.Equal("300", resp.Receipts[0].Amount)
	s.Equal("alice", resp.Receipts[0].OldOwner)

	recorder = s.request(http.MethodGet, "/api/v1/tokens/"+tokenID+"/balances/bob", nil)
	s.Require().Equal(http.StatusOK, recorder.Code)
	var balance BalanceDTO
	s.Require().NoError(json.Unmarshal(recorder.Body.Bytes(), &balance))
	s.Equal("300", balance.Amount)
}

func (s *HandlerTestSuite) TestTransferToUnregisteredReceiverIsConflict() {
	tokenID := s.mintToken()

	recorder := s.request(http.MethodPost, "/api/v1/transfers", TransferRequest{
		SenderID: "alice", ReceiverID: "bob",
		TokenID: tokenID, Amount: "1", Payment: "1",
	})
	s.Equal(http.StatusConflict, recorder.Code)
}

func (s *HandlerTestSuite) TestTransferCallAccepted() {
	tokenID := s.mintToken()
	s.request(http.MethodPost, "/api/v1/balances/register", RegisterRequest{
		TokenID: tokenID, OwnerID: "bob", Payment: "1",
	})
	recorder := s.request(http.MethodPost, "/api/v1/hooks", RegisterHookRequest{
		PrincipalID: "bob", HookURL: "https://bob.example.com/hook", Secret: "s3cret",
	})
	s.Require().Equal(http.StatusCreated, recorder.Code)

	recorder = s.request(http.MethodPost, "/api/v1/transfers/call", TransferCallRequest{
		SenderID: "alice", ReceiverID: "bob",
		TokenIDs: []string{tokenID}, Amounts: []string{"100"},
		Message: "invoice 7", Payment: "2",
	})
	s.Require().Equal(http.StatusAccepted, recorder.Code)

	var resp TransferCallResponse
	s.Require().NoError(json.Unmarshal(recorder.Body.Bytes(), &resp))
	s.Equal("started", resp.State)
	s.NotEmpty(resp.SagaID)

	recorder = s.request(http.MethodGet, "/api/v1/sagas/"+resp.SagaID, nil)
	s.Require().Equal(http.StatusOK, recorder.Code)
	var saga SagaResponse
	s.Require().NoError(json.Unmarshal(recorder.Body.Bytes(), &saga))
	s.Equal("started", saga.State)
}

func (s *HandlerTestSuite) TestTransferCallWithoutHookIsConflict() {
	tokenID := s.mintToken()
	s.request(http.MethodPost, "/api/v1/balances/register", RegisterRequest{
		TokenID: tokenID, OwnerID: "bob", Payment: "1",
	})

	recorder := s.request(http.MethodPost, "/api/v1/transfers/call", TransferCallRequest{
		SenderID: "alice", ReceiverID: "bob",
		TokenIDs: []string{tokenID}, Amounts: []string{"100"},
		Payment: "2",
	})
	s.Equal(http.StatusConflict, recorder.Code)
}

func (s *HandlerTestSuite) TestMintRejectsMissingFields() {
	recorder := s.request(http.MethodPost, "/api/v1/tokens", map[string]string{
		"owner_id": "alice",
	})
	s.Equal(http.StatusBadRequest, recorder.Code)
}

func (s *HandlerTestSuite) TestListEventsRejectsBadLimit() {
	tokenID := s.mintToken()
	recorder := s.request(http.MethodGet, "/api/v1/tokens/"+tokenID+"/events?limit=0", nil)
	s.Equal(http.StatusBadRequest, recorder.Code)

	recorder = s.request(http.MethodGet, "/api/v1/tokens/"+tokenID+"/events?limit=5", nil)
	s.Equal(http.StatusOK, recorder.Code)
}

func (s *HandlerTestSuite) TestUnregisterForce() {
	tokenID := s.mintToken()

	recorder := s.request(http.MethodDelete, "/api/v1/tokens/"+tokenID+"/balances/alice?payment=1", nil)
	s.Equal(http.StatusBadRequest, recorder.Code)

	recorder = s.request(http.MethodDelete, "/api/v1/tokens/"+tokenID+"/balances/alice?force=true&payment=1", nil)
	s.Equal(http.StatusNoContent, recorder.Code)
}
