package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multivault/ledger/internal/adapter"
	"github.com/multivault/ledger/internal/domain"
	"github.com/multivault/ledger/internal/logger"
	"github.com/multivault/ledger/internal/store/schema"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize(logger.Config{Debug: true})
	os.Exit(m.Run())
}

func newDispatcher() Dispatcher {
	return NewHTTPDispatcher(adapter.NewHTTPClient(2*time.Second), adapter.NewJSON())
}

func testNotification() Notification {
	return Notification{
		SagaID:         "01J5XB0000000000000000000A",
		Sender:         "alice",
		PreviousOwners: []string{"alice"},
		TokenIDs:       []string{"1"},
		Amounts:        []string{"100"},
	}
}

func TestNotifySignsRequestAndParsesReply(t *testing.T) {
	var received *http.Request
	var receivedBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Clone(context.Background())
		receivedBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"unused":["30"]}`))
	}))
	defer srv.Close()

	notification := testNotification()
	hook := &schema.ReceiverHook{PrincipalID: "bob", HookURL: srv.URL, Secret: "s3cret"}

	outcome := newDispatcher().Notify(context.Background(), hook, notification)

	assert.Equal(t, domain.NotifyStatusOK, outcome.Status)
	assert.Equal(t, []string{"30"}, outcome.Unused)

	require.NotNil(t, received)
	assert.Equal(t, notification.SagaID, received.Header.Get("X-Ledger-Saga-ID"))
	assert.Equal(t, "MultiVault-Ledger/1.0", received.Header.Get("User-Agent"))

	timestamp, err := strconv.ParseInt(received.Header.Get("X-Ledger-Timestamp"), 10, 64)
	require.NoError(t, err)
	assert.True(t, VerifySignature("s3cret",
		received.Header.Get("X-Ledger-Signature"), timestamp, notification.SagaID, receivedBody))
}

func TestNotifyErrorStatusIsRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	hook := &schema.ReceiverHook{PrincipalID: "bob", HookURL: srv.URL, Secret: "s3cret"}
	outcome := newDispatcher().Notify(context.Background(), hook, testNotification())

	assert.Equal(t, domain.NotifyStatusRemoteFailure, outcome.Status)
	assert.Contains(t, outcome.Detail, "500")
}

func TestNotifyUnreachableHookIsRemoteFailure(t *testing.T) {
	hook := &schema.ReceiverHook{PrincipalID: "bob", HookURL: "http://127.0.0.1:1", Secret: "s3cret"}
	outcome := newDispatcher().Notify(context.Background(), hook, testNotification())

	assert.Equal(t, domain.NotifyStatusRemoteFailure, outcome.Status)
}

func TestNotifyGarbageReplyIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>ok</html>`))
	}))
	defer srv.Close()

	hook := &schema.ReceiverHook{PrincipalID: "bob", HookURL: srv.URL, Secret: "s3cret"}
	outcome := newDispatcher().Notify(context.Background(), hook, testNotification())

	assert.Equal(t, domain.NotifyStatusMalformed, outcome.Status)
}
