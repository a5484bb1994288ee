package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/multivault/ledger/internal/domain"
	"github.com/multivault/ledger/internal/store/schema"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

// TestMain sets up the test database before running tests
func TestMain(m *testing.M) {
	ctx := context.Background()

	// Check if we should use an external database (for CI or local development)
	dbHost := os.Getenv("TEST_DB_HOST")
	dbPort := os.Getenv("TEST_DB_PORT")
	dbUser := os.Getenv("TEST_DB_USER")
	dbPassword := os.Getenv("TEST_DB_PASSWORD")
	dbName := os.Getenv("TEST_DB_NAME")

	var dsn string
	var err error

	if dbHost != "" {
		// Use external database
		if dbPort == "" {
			dbPort = "5432"
		}
		if dbUser == "" {
			dbUser = "postgres"
		}
		if dbPassword == "" {
			dbPassword = "postgres"
		}
		if dbName == "" {
			dbName = "test_db"
		}

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			dbHost, dbPort, dbUser, dbPassword, dbName)

		fmt.Printf("Using external database: %s:%s/%s\n", dbHost, dbPort, dbName)
	} else {
		// Start a PostgreSQL container for testing
		pgContainer, err = postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("test_db"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			fmt.Printf("Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}

		dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			terminateContainer(ctx)
			os.Exit(1)
		}

		fmt.Printf("Started PostgreSQL container\n")
	}

	// Connect to the database
	testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		terminateContainer(ctx)
		os.Exit(1)
	}

	// Initialize the database schema
	if err := AutoMigrate(testDB); err != nil {
		fmt.Printf("Failed to migrate database: %v\n", err)
		terminateContainer(ctx)
		os.Exit(1)
	}

	// Run tests
	code := m.Run()

	terminateContainer(ctx)
	os.Exit(code)
}

func terminateContainer(ctx context.Context) {
	if pgContainer == nil {
		return
	}
	if err := pgContainer.Terminate(ctx); err != nil {
		fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
	}
}

// initPGTestDB creates a store over a transaction that rolls back after the
// test, so tests never see each other's rows.
func initPGTestDB(t *testing.T) Store {
	tx := testDB.Begin()
	require.NotNil(t, tx)
	require.NoError(t, tx.Error)

	t.Cleanup(func() {
		tx.Rollback()
	})

	return NewPGStore(tx)
}

func TestPGMintAndTransfer(t *testing.T) {
	if testDB == nil {
		t.Fatal("Test database not initialized")
	}
	dataStore := initPGTestDB(t)
	ctx := context.Background()

	minted, err := dataStore.Mint(ctx, MintInput{OwnerID: "alice", InitialSupply: "1000"})
	require.NoError(t, err)
	require.Equal(t, "1", minted.Token.TokenID)

	second, err := dataStore.Mint(ctx, MintInput{OwnerID: "alice", InitialSupply: "5"})
	require.NoError(t, err)
	require.Equal(t, "2", second.Token.TokenID)

	require.NoError(t, dataStore.RegisterBalance(ctx, "1", "bob"))

	result, err := dataStore.Transfer(ctx, TransferInput{
		SenderID:   "alice",
		ReceiverID: "bob",
		Leg:        TransferLeg{TokenID: "1", Amount: "300"},
		Memo:       "rent",
	})
	require.NoError(t, err)
	require.Equal(t, "300", result.Receipt.Amount)

	aliceBalance, err := dataStore.GetBalance(ctx, "1", "alice")
	require.NoError(t, err)
	require.Equal(t, "700", aliceBalance.Amount)

	bobBalance, err := dataStore.GetBalance(ctx, "1", "bob")
	require.NoError(t, err)
	require.Equal(t, "300", bobBalance.Amount)

	token, err := dataStore.GetToken(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "1000", token.Supply)

	events, err := dataStore.GetLedgerEvents(ctx, "1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, string(domain.EventTypeTransfer), events[0].EventType)
	require.Equal(t, string(domain.EventTypeMint), events[1].EventType)
}

func TestPGTransferRollsBackOnFailedLeg(t *testing.T) {
	if testDB == nil {
		t.Fatal("Test database not initialized")
	}
	dataStore := initPGTestDB(t)
	ctx := context.Background()

	_, err := dataStore.Mint(ctx, MintInput{OwnerID: "alice", InitialSupply: "100"})
	require.NoError(t, err)
	_, err = dataStore.Mint(ctx, MintInput{OwnerID: "alice", InitialSupply: "5"})
	require.NoError(t, err)
	require.NoError(t, dataStore.RegisterBalance(ctx, "1", "bob"))
	require.NoError(t, dataStore.RegisterBalance(ctx, "2", "bob"))

	_, err = dataStore.TransferBatch(ctx, TransferBatchInput{
		SenderID:   "alice",
		ReceiverID: "bob",
		Legs: []TransferLeg{
			{TokenID: "1", Amount: "50"},
			{TokenID: "2", Amount: "6"},
		},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	balance, err := dataStore.GetBalance(ctx, "1", "alice")
	require.NoError(t, err)
	require.Equal(t, "100", balance.Amount)
}

func TestPGDelegatedTransferDebitsSender(t *testing.T) {
	if testDB == nil {
		t.Fatal("Test database not initialized")
	}
	dataStore := initPGTestDB(t)
	ctx := context.Background()

	_, err := dataStore.Mint(ctx, MintInput{OwnerID: "alice", InitialSupply: "100"})
	require.NoError(t, err)
	require.NoError(t, dataStore.RegisterBalance(ctx, "1", "bob"))
	require.NoError(t, dataStore.RegisterBalance(ctx, "1", "carol"))

	_, err = dataStore.Transfer(ctx, TransferInput{
		SenderID:   "alice",
		ReceiverID: "carol",
		Leg:        TransferLeg{TokenID: "1", Amount: "40"},
	})
	require.NoError(t, err)

	approval, err := dataStore.GrantApproval(ctx, GrantApprovalInput{
		TokenID: "1", CallerID: "alice", SpenderID: "carol", Ceiling: "50",
	})
	require.NoError(t, err)

	result, err := dataStore.Transfer(ctx, TransferInput{
		SenderID:   "carol",
		ReceiverID: "bob",
		Leg:        TransferLeg{TokenID: "1", Amount: "10", ApprovalID: &approval.ApprovalID},
	})
	require.NoError(t, err)
	require.Equal(t, "carol", string(result.Receipt.OldOwner))

	aliceBalance, err := dataStore.GetBalance(ctx, "1", "alice")
	require.NoError(t, err)
	require.Equal(t, "60", aliceBalance.Amount)

	carolBalance, err := dataStore.GetBalance(ctx, "1", "carol")
	require.NoError(t, err)
	require.Equal(t, "30", carolBalance.Amount)

	bobBalance, err := dataStore.GetBalance(ctx, "1", "bob")
	require.NoError(t, err)
	require.Equal(t, "10", bobBalance.Amount)
}

func TestPGSagaRoundTrip(t *testing.T) {
	if testDB == nil {
		t.Fatal("Test database not initialized")
	}
	dataStore := initPGTestDB(t)
	ctx := context.Background()

	_, err := dataStore.Mint(ctx, MintInput{OwnerID: "alice", InitialSupply: "1000"})
	require.NoError(t, err)
	require.NoError(t, dataStore.RegisterBalance(ctx, "1", "bob"))

	begin, err := dataStore.BeginTransferCall(ctx, BeginTransferCallInput{
		SagaID:     "01J5XB0000000000000000000B",
		SenderID:   "alice",
		ReceiverID: "bob",
		Legs:       []TransferLeg{{TokenID: "1", Amount: "100"}},
		Message:    "invoice 7",
		WorkflowID: "transfer-call-01J5XB0000000000000000000B",
	})
	require.NoError(t, err)
	require.Equal(t, schema.SagaStateStarted, begin.Saga.State)

	err = dataStore.MarkSagaNotified(ctx, MarkSagaNotifiedInput{
		SagaID:        begin.Saga.SagaID,
		WorkflowID:    begin.Saga.WorkflowID,
		WorkflowRunID: "run-1",
		NotifiedAt:    time.Now(),
	})
	require.NoError(t, err)

	resolved, err := dataStore.ResolveSaga(ctx, ResolveSagaInput{
		SagaID:        begin.Saga.SagaID,
		WorkflowID:    begin.Saga.WorkflowID,
		WorkflowRunID: "run-1",
		Unused:        []string{"30"},
		ResolvedAt:    time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"70"}, resolved.Settled)
	require.Equal(t, []string{"30"}, resolved.Refunded)

	aliceBalance, err := dataStore.GetBalance(ctx, "1", "alice")
	require.NoError(t, err)
	require.Equal(t, "930", aliceBalance.Amount)

	saga, err := dataStore.GetTransferSaga(ctx, begin.Saga.SagaID)
	require.NoError(t, err)
	require.Equal(t, schema.SagaStateResolved, saga.State)
}
