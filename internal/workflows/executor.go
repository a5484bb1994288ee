package workflows

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/multivault/ledger/internal/adapter"
	"github.com/multivault/ledger/internal/domain"
	"github.com/multivault/ledger/internal/logger"
	"github.com/multivault/ledger/internal/messaging"
	"github.com/multivault/ledger/internal/notify"
	"github.com/multivault/ledger/internal/store"
)

// ResolveResult is what the resolution activity reports back to the
// workflow, per leg and aligned with the saga's token list.
type ResolveResult struct {
	Settled   []string `json:"settled"`
	Refunded  []string `json:"refunded"`
	Forfeited []string `json:"forfeited"`
}

// Executor defines the activities the transfer-call workflow schedules.
// Activities hold all the side effects; the workflow only sequences them.
//
//go:generate mockgen -source=executor.go -destination=../mocks/executor.go -package=mocks -mock_names=Executor=MockExecutor
type Executor interface {
	// NotifyReceiver pins the workflow run on the saga, delivers the signed
	// notification to the receiver hook and returns the classified outcome.
	// A failing hook is a normal outcome, not an activity error.
	NotifyReceiver(ctx context.Context, sagaID string) (*notify.Outcome, error)

	// ResolveTransfer applies the outcome: refunds unused amounts to the old
	// owners, bounded by what the receiver still holds, and records the
	// settled amounts on the saga.
	ResolveTransfer(ctx context.Context, sagaID string, outcome *notify.Outcome) (*ResolveResult, error)

	// AbortTransfer marks the saga aborted with a reason.
	AbortTransfer(ctx context.Context, sagaID string, reason string) error
}

type executor struct {
	store      store.Store
	dispatcher notify.Dispatcher
	publisher  messaging.Publisher
	json       adapter.JSON
	clock      adapter.Clock
	activity   adapter.Activity
}

// NewExecutor creates an activity executor.
func NewExecutor(
	dataStore store.Store,
	dispatcher notify.Dispatcher,
	publisher messaging.Publisher,
	jsonAdapter adapter.JSON,
	clock adapter.Clock,
	activityAdapter adapter.Activity,
) Executor {
	return &executor{
		store:      dataStore,
		dispatcher: dispatcher,
		publisher:  publisher,
		json:       jsonAdapter,
		clock:      clock,
		activity:   activityAdapter,
	}
}

// NotifyReceiver delivers the saga's notification to the receiver hook.
// The saga is marked notified before the hook is called: once the request
// may have reached the receiver, the saga can no longer be silently
// restarted, only resolved.
func (e *executor) NotifyReceiver(ctx context.Context, sagaID string) (*notify.Outcome, error) {
	saga, err := e.store.GetTransferSaga(ctx, sagaID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saga: %w", err)
	}

	notification, err := e.buildNotification(saga.SagaID, saga.SenderID, saga.Message, saga.OldOwners, saga.TokenIDs, saga.Amounts)
	if err != nil {
		return nil, err
	}

	info := e.activity.GetInfo(ctx)
	err = e.store.MarkSagaNotified(ctx, store.MarkSagaNotifiedInput{
		SagaID:        sagaID,
		WorkflowID:    info.WorkflowExecution.ID,
		WorkflowRunID: info.WorkflowExecution.RunID,
		NotifiedAt:    e.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark saga notified: %w", err)
	}

	hook, err := e.store.GetReceiverHook(ctx, saga.ReceiverID)
	if err != nil {
		// The hook was checked before the transfer committed; if it vanished
		// since, the receiver is unreachable and the transfer reverses.
		logger.WarnCtx(ctx, "receiver hook gone at notify time",
			zap.Error(err),
			zap.String("saga_id", sagaID),
			zap.String("receiver_id", saga.ReceiverID))
		return &notify.Outcome{Status: domain.NotifyStatusRemoteFailure, Detail: "receiver hook unavailable"}, nil
	}

	outcome := e.dispatcher.Notify(ctx, hook, *notification)
	logger.InfoCtx(ctx, "Receiver notified",
		zap.String("saga_id", sagaID),
		zap.String("status", string(outcome.Status)))
	return &outcome, nil
}

// ResolveTransfer maps the notify outcome onto per-leg unused amounts and
// applies the refunds in one transaction.
func (e *executor) ResolveTransfer(ctx context.Context, sagaID string, outcome *notify.Outcome) (*ResolveResult, error) {
	saga, err := e.store.GetTransferSaga(ctx, sagaID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saga: %w", err)
	}

	var amounts []string
	if err := e.json.Unmarshal(saga.Amounts, &amounts); err != nil {
		return nil, fmt.Errorf("failed to decode saga amounts: %w", err)
	}

	unused := unusedAmounts(outcome, amounts)

	info := e.activity.GetInfo(ctx)
	result, err := e.store.ResolveSaga(ctx, store.ResolveSagaInput{
		SagaID:        sagaID,
		WorkflowID:    info.WorkflowExecution.ID,
		WorkflowRunID: info.WorkflowExecution.RunID,
		Unused:        unused,
		ResolvedAt:    e.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve saga: %w", err)
	}

	for _, event := range result.Events {
		if pubErr := e.publisher.PublishEvent(ctx, event); pubErr != nil {
			logger.WarnCtx(ctx, "failed to publish resolution event",
				zap.Error(pubErr),
				zap.String("event_id", event.EventID),
				zap.String("saga_id", sagaID))
		}
	}

	logger.InfoCtx(ctx, "Saga resolved",
		zap.String("saga_id", sagaID),
		zap.Strings("settled", result.Settled))
	return &ResolveResult{
		Settled:   result.Settled,
		Refunded:  result.Refunded,
		Forfeited: result.Forfeited,
	}, nil
}

// AbortTransfer marks the saga aborted.
func (e *executor) AbortTransfer(ctx context.Context, sagaID string, reason string) error {
	if err := e.store.AbortSaga(ctx, sagaID, reason); err != nil {
		return fmt.Errorf("failed to abort saga: %w", err)
	}
	logger.WarnCtx(ctx, "Saga aborted",
		zap.String("saga_id", sagaID),
		zap.String("reason", reason))
	return nil
}

func (e *executor) buildNotification(sagaID, senderID, message string, oldOwnersRaw, tokenIDsRaw, amountsRaw []byte) (*notify.Notification, error) {
	var oldOwners, tokenIDs, amounts []string
	if err := e.json.Unmarshal(oldOwnersRaw, &oldOwners); err != nil {
		return nil, fmt.Errorf("failed to decode saga old owners: %w", err)
	}
	if err := e.json.Unmarshal(tokenIDsRaw, &tokenIDs); err != nil {
		return nil, fmt.Errorf("failed to decode saga token ids: %w", err)
	}
	if err := e.json.Unmarshal(amountsRaw, &amounts); err != nil {
		return nil, fmt.Errorf("failed to decode saga amounts: %w", err)
	}
	return &notify.Notification{
		SagaID:         sagaID,
		Sender:         senderID,
		PreviousOwners: oldOwners,
		TokenIDs:       tokenIDs,
		Amounts:        amounts,
		Message:        message,
	}, nil
}

// unusedAmounts translates the notify outcome into per-leg unused amounts:
// a remote failure means everything comes back, a malformed or misaligned
// reply means nothing does, and an ok reply is taken at face value. The
// store clamps each value to the sent amount.
func unusedAmounts(outcome *notify.Outcome, sent []string) []string {
	switch outcome.Status {
	case domain.NotifyStatusOK:
		if len(outcome.Unused) == len(sent) {
			return outcome.Unused
		}
		fallthrough
	case domain.NotifyStatusMalformed:
		unused := make([]string, len(sent))
		for i := range unused {
			unused[i] = "0"
		}
		return unused
	default:
		return sent
	}
}
