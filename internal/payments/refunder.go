package payments

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/multivault/ledger/internal/domain"
	"github.com/multivault/ledger/internal/logger"
)

// Refunder returns the portion of an attached payment that exceeds the
// storage cost of an operation. Moving the refund to the recipient is
// delegated to the surrounding payment rail; the ledger only computes and
// records it.
//
//go:generate mockgen -source=refunder.go -destination=../mocks/refunder.go -package=mocks -mock_names=Refunder=MockRefunder
type Refunder interface {
	// RefundExcess computes cost = storageBytes * byte price and returns
	// payment - cost, floored at zero.
	RefundExcess(ctx context.Context, recipient domain.Principal, payment string, storageBytes int64) (string, error)
}

type storageRefunder struct {
	bytePrice domain.Amount
}

// NewStorageRefunder creates a Refunder priced per storage byte.
func NewStorageRefunder(bytePrice string) (Refunder, error) {
	price, err := domain.ParseAmount(bytePrice)
	if err != nil {
		return nil, fmt.Errorf("bad storage byte price %q: %w", bytePrice, err)
	}
	return &storageRefunder{bytePrice: price}, nil
}

func (r *storageRefunder) RefundExcess(ctx context.Context, recipient domain.Principal, payment string, storageBytes int64) (string, error) {
	attached, err := domain.ParseAmount(payment)
	if err != nil {
		return "", err
	}
	if storageBytes < 0 {
		storageBytes = 0
	}

	cost, err := r.bytePrice.MulUint64(uint64(storageBytes))
	if err != nil {
		return "", err
	}

	excess, err := attached.Sub(cost)
	if err != nil {
		// Payment does not cover the storage cost; nothing to refund.
		excess = domain.Amount{}
	}

	if !excess.IsZero() {
		logger.InfoCtx(ctx, "Refunding excess payment",
			zap.String("recipient", recipient.String()),
			zap.String("payment", attached.String()),
			zap.String("storage_cost", cost.String()),
			zap.String("refund", excess.String()))
	}
	return excess.String(), nil
}
