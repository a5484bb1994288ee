package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/multivault/ledger/internal/logger"
	"github.com/multivault/ledger/internal/notify"
)

// TransferCallWorkflowName is the registered name of the transfer-call
// resolution workflow. Callers start it by name so they don't need the
// worker's types.
const TransferCallWorkflowName = "TransferCall"

// TransferCallWorkflowID derives the deterministic workflow id for a saga.
// One saga, one workflow: the id doubles as the saga's caller identity.
func TransferCallWorkflowID(sagaID string) string {
	return "transfer-call-" + sagaID
}

// TransferCall drives a started saga to its terminal state: notify the
// receiver once, then resolve with whatever outcome the hook produced. The
// transfer is already committed when this workflow starts; every path from
// here ends in resolved or aborted, never in undoing the notify.
func (w *worker) TransferCall(ctx workflow.Context, sagaID string) ([]string, error) {
	logger.InfoWf(ctx, "Starting transfer-call resolution",
		zap.String("sagaID", sagaID))

	// The hook is called at most once. Temporal must never redeliver the
	// notification: a second delivery could double-spend the receiver's
	// reply. Transport failures surface as an outcome, not a retry.
	notifyOptions := workflow.ActivityOptions{
		StartToCloseTimeout: w.config.NotifyTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	notifyCtx := workflow.WithActivityOptions(ctx, notifyOptions)

	var outcome *notify.Outcome
	err := workflow.ExecuteActivity(notifyCtx, w.executor.NotifyReceiver, sagaID).Get(notifyCtx, &outcome)
	if err != nil {
		logger.ErrorWf(ctx, err,
			zap.String("sagaID", sagaID),
			zap.String("message", "notify activity failed"))
		w.abort(ctx, sagaID, "notify failed: "+err.Error())
		return nil, err
	}

	// Resolution only touches the database; it is safe to retry until it
	// lands.
	resolveOptions := workflow.ActivityOptions{
		StartToCloseTimeout: w.config.ResolveTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    5,
		},
	}
	resolveCtx := workflow.WithActivityOptions(ctx, resolveOptions)

	var result *ResolveResult
	err = workflow.ExecuteActivity(resolveCtx, w.executor.ResolveTransfer, sagaID, outcome).Get(resolveCtx, &result)
	if err != nil {
		logger.ErrorWf(ctx, err,
			zap.String("sagaID", sagaID),
			zap.String("message", "resolve activity failed"))
		w.abort(ctx, sagaID, "resolve failed: "+err.Error())
		return nil, err
	}

	logger.InfoWf(ctx, "Transfer call resolved",
		zap.String("sagaID", sagaID),
		zap.String("status", string(outcome.Status)),
		zap.Strings("settled", result.Settled))
	return result.Settled, nil
}

// abort marks the saga aborted on a best-effort basis; a saga stuck in a
// non-terminal state is visible to operators either way.
func (w *worker) abort(ctx workflow.Context, sagaID, reason string) {
	abortOptions := workflow.ActivityOptions{
		StartToCloseTimeout: w.config.ResolveTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 2 * time.Second,
			MaximumAttempts: 3,
		},
	}
	abortCtx := workflow.WithActivityOptions(ctx, abortOptions)
	if err := workflow.ExecuteActivity(abortCtx, w.executor.AbortTransfer, sagaID, reason).Get(abortCtx, nil); err != nil {
		logger.WarnWf(ctx, "Failed to abort saga",
			zap.String("sagaID", sagaID),
			zap.Error(err))
	}
}
