package payments

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multivault/ledger/internal/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize(logger.Config{Debug: true})
	os.Exit(m.Run())
}

func TestRefundExcess(t *testing.T) {
	refunder, err := NewStorageRefunder("2")
	require.NoError(t, err)

	ctx := context.Background()

	// 100 attached, 30 bytes at price 2 = 60 cost, 40 back.
	refund, err := refunder.RefundExcess(ctx, "alice", "100", 30)
	require.NoError(t, err)
	assert.Equal(t, "40", refund)

	// Payment exactly covers the cost.
	refund, err = refunder.RefundExcess(ctx, "alice", "60", 30)
	require.NoError(t, err)
	assert.Equal(t, "0", refund)

	// Payment short of the cost floors at zero instead of failing.
	refund, err = refunder.RefundExcess(ctx, "alice", "10", 30)
	require.NoError(t, err)
	assert.Equal(t, "0", refund)

	// Negative byte counts are treated as free.
	refund, err = refunder.RefundExcess(ctx, "alice", "10", -1)
	require.NoError(t, err)
	assert.Equal(t, "10", refund)
}

func TestRefundExcessRejectsBadPayment(t *testing.T) {
	refunder, err := NewStorageRefunder("1")
	require.NoError(t, err)

	_, err = refunder.RefundExcess(context.Background(), "alice", "nope", 1)
	assert.Error(t, err)
}
