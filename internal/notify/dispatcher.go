package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/multivault/ledger/internal/adapter"
	"github.com/multivault/ledger/internal/domain"
	"github.com/multivault/ledger/internal/logger"
	"github.com/multivault/ledger/internal/store/schema"
)

// maxReplyBytes caps how much of a hook reply is read; anything a
// well-behaved receiver sends fits well within this.
const maxReplyBytes = 16 * 1024

// Dispatcher delivers a signed notification to a receiver hook and
// classifies the reply. One attempt only: the saga's failure branches are
// the retry story, never the transport.
//
//go:generate mockgen -source=dispatcher.go -destination=../mocks/dispatcher.go -package=mocks -mock_names=Dispatcher=MockDispatcher
type Dispatcher interface {
	Notify(ctx context.Context, hook *schema.ReceiverHook, notification Notification) Outcome
}

type httpDispatcher struct {
	httpClient adapter.HTTPClient
	json       adapter.JSON
}

// NewHTTPDispatcher creates a Dispatcher delivering over HTTP.
func NewHTTPDispatcher(httpClient adapter.HTTPClient, json adapter.JSON) Dispatcher {
	return &httpDispatcher{httpClient: httpClient, json: json}
}

// Notify POSTs the signed notification and maps the result onto the three
// outcomes: remote failure (transport error or non-2xx), malformed reply
// (2xx but unparseable), or ok with the hook's unused amounts.
func (d *httpDispatcher) Notify(ctx context.Context, hook *schema.ReceiverHook, notification Notification) Outcome {
	payload, signature, timestamp, err := GenerateSignedPayload(hook.Secret, notification)
	if err != nil {
		// Signing failures never reach the wire; treat as remote failure so
		// the transfer reverses instead of silently settling.
		logger.ErrorCtx(ctx, fmt.Errorf("failed to generate signed payload: %w", err),
			zap.String("principal_id", hook.PrincipalID))
		return Outcome{Status: domain.NotifyStatusRemoteFailure, Detail: err.Error()}
	}

	headers := map[string]string{
		"Content-Type":       "application/json",
		"X-Ledger-Signature": signature,
		"X-Ledger-Saga-ID":   notification.SagaID,
		"X-Ledger-Timestamp": fmt.Sprintf("%d", timestamp),
		"User-Agent":         "MultiVault-Ledger/1.0",
	}

	resp, err := d.httpClient.PostWithHeadersNoRetry(ctx, hook.HookURL, headers, bytes.NewReader(payload))
	if err != nil {
		logger.WarnCtx(ctx, "receiver hook unreachable",
			zap.Error(err),
			zap.String("principal_id", hook.PrincipalID),
			zap.String("saga_id", notification.SagaID))
		return Outcome{Status: domain.NotifyStatusRemoteFailure, Detail: err.Error()}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.WarnCtx(ctx, "failed to close response body", zap.Error(err), zap.String("url", hook.HookURL))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		body = []byte{}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		logger.WarnCtx(ctx, "receiver hook returned error status",
			zap.Int("status_code", resp.StatusCode),
			zap.String("principal_id", hook.PrincipalID),
			zap.String("saga_id", notification.SagaID))
		return Outcome{Status: domain.NotifyStatusRemoteFailure, Detail: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	return ClassifyReply(body, d.json.Unmarshal)
}
