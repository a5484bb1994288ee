package workflows

import (
	"time"

	"go.temporal.io/sdk/workflow"
)

// Worker defines the workflows the ledger worker registers.
//
//go:generate mockgen -source=worker.go -destination=../mocks/worker.go -package=mocks -mock_names=Worker=MockWorker
type Worker interface {
	// TransferCall notifies the receiver of a committed transfer-call and
	// resolves the saga from the hook's reply
	TransferCall(ctx workflow.Context, sagaID string) ([]string, error)
}

// WorkerConfig bounds the saga activities.
type WorkerConfig struct {
	// NotifyTimeout bounds the single hook delivery attempt
	NotifyTimeout time.Duration
	// ResolveTimeout bounds each resolution attempt
	ResolveTimeout time.Duration
}

// worker is the concrete implementation of Worker
type worker struct {
	config   WorkerConfig
	executor Executor
}

// NewWorker creates a new worker instance
func NewWorker(executor Executor, config WorkerConfig) Worker {
	if config.NotifyTimeout == 0 {
		config.NotifyTimeout = 30 * time.Second
	}
	if config.ResolveTimeout == 0 {
		config.ResolveTimeout = 30 * time.Second
	}
	return &worker{
		executor: executor,
		config:   config,
	}
}
