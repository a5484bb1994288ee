package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/multivault/ledger/internal/domain"
	"github.com/multivault/ledger/internal/store/schema"
)

// tokenIDCounterKey is the key_value_store entry holding the saturating
// token allocation counter.
const tokenIDCounterKey = "token_id_counter"

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.Token{},
		&schema.Balance{},
		&schema.Approval{},
		&schema.TransferSaga{},
		&schema.LedgerEvent{},
		&schema.ReceiverHook{},
		&schema.KeyValueStore{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero settings fall back to defaults:
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

func newEventID(t time.Time) string {
	return ulid.MustNewDefault(t).String()
}

// GetToken retrieves a token by id
func (s *pgStore) GetToken(ctx context.Context, tokenID string) (*schema.Token, error) {
	var token schema.Token
	err := s.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &token, nil
}

// GetBalance retrieves one balance entry
func (s *pgStore) GetBalance(ctx context.Context, tokenID, ownerID string) (*schema.Balance, error) {
	if _, err := s.GetToken(ctx, tokenID); err != nil {
		return nil, err
	}

	var balance schema.Balance
	err := s.db.WithContext(ctx).
		Where("token_id = ? AND owner_id = ?", tokenID, ownerID).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotRegistered
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &balance, nil
}

// ListBalances retrieves the balance entries of the given owners for one token
func (s *pgStore) ListBalances(ctx context.Context, tokenID string, ownerIDs []string) ([]schema.Balance, error) {
	query := s.db.WithContext(ctx).Where("token_id = ?", tokenID)
	if len(ownerIDs) > 0 {
		query = query.Where("owner_id IN ?", ownerIDs)
	}

	var balances []schema.Balance
	if err := query.Order("owner_id").Find(&balances).Error; err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	return balances, nil
}

// GetApprovals lists the live approvals on a token
func (s *pgStore) GetApprovals(ctx context.Context, tokenID string) ([]schema.Approval, error) {
	var approvals []schema.Approval
	err := s.db.WithContext(ctx).
		Where("token_id = ?", tokenID).
		Order("approval_id").
		Find(&approvals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get approvals: %w", err)
	}
	return approvals, nil
}

// GetLedgerEvents lists the most recent events for a token, newest first
func (s *pgStore) GetLedgerEvents(ctx context.Context, tokenID string, limit int) ([]schema.LedgerEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	var events []schema.LedgerEvent
	err := s.db.WithContext(ctx).
		Where("token_id = ?", tokenID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger events: %w", err)
	}
	return events, nil
}

// RegisterBalance inserts a zero balance entry
func (s *pgStore) RegisterBalance(ctx context.Context, tokenID, ownerID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token schema.Token
		if err := tx.Where("token_id = ?", tokenID).First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrTokenNotFound
			}
			return fmt.Errorf("failed to get token: %w", err)
		}

		balance := schema.Balance{
			TokenID: tokenID,
			OwnerID: ownerID,
			Amount:  "0",
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token_id"}, {Name: "owner_id"}},
			DoNothing: true,
		}).Create(&balance)
		if result.Error != nil {
			return fmt.Errorf("failed to register balance: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrAlreadyRegistered
		}
		return nil
	})
}

// UnregisterBalance deletes a balance entry, burning any remainder when forced
func (s *pgStore) UnregisterBalance(ctx context.Context, tokenID, ownerID string, force bool) (*domain.LedgerEvent, error) {
	var event *domain.LedgerEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var balance schema.Balance
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_id = ? AND owner_id = ?", tokenID, ownerID).
			First(&balance).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotRegistered
			}
			return fmt.Errorf("failed to lock balance: %w", err)
		}

		amount, err := domain.ParseAmount(balance.Amount)
		if err != nil {
			return fmt.Errorf("corrupt balance amount %q: %w", balance.Amount, err)
		}

		if !amount.IsZero() {
			if !force {
				return fmt.Errorf("balance not zero: %w", domain.ErrInvalidArgument)
			}

			var token schema.Token
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("token_id = ?", tokenID).First(&token).Error; err != nil {
				return fmt.Errorf("failed to lock token: %w", err)
			}
			supply, err := domain.ParseAmount(token.Supply)
			if err != nil {
				return fmt.Errorf("corrupt supply %q: %w", token.Supply, err)
			}
			supply, err = supply.Sub(amount)
			if err != nil {
				return err
			}
			if err := tx.Model(&schema.Token{}).
				Where("token_id = ?", tokenID).
				Update("supply", supply.String()).Error; err != nil {
				return fmt.Errorf("failed to update supply: %w", err)
			}

			now := time.Now()
			event = &domain.LedgerEvent{
				EventID:   newEventID(now),
				EventType: domain.EventTypeForfeit,
				TokenID:   domain.TokenID(tokenID),
				OldOwner:  domain.Principal(ownerID),
				Amount:    amount.String(),
				Timestamp: now,
			}
			if err := insertEvent(tx, event); err != nil {
				return err
			}
		}

		if err := tx.Where("token_id = ? AND owner_id = ?", tokenID, ownerID).
			Delete(&schema.Balance{}).Error; err != nil {
			return fmt.Errorf("failed to delete balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Mint allocates the next token id and creates the token
func (s *pgStore) Mint(ctx context.Context, input MintInput) (*MintResult, error) {
	var result MintResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tokenID, err := nextTokenID(tx)
		if err != nil {
			return err
		}

		initial, err := domain.ParseAmount(input.InitialSupply)
		if err != nil {
			return err
		}

		now := time.Now()
		token := schema.Token{
			TokenID:        tokenID,
			OwnerID:        input.OwnerID,
			Supply:         initial.String(),
			Metadata:       input.Metadata,
			NextApprovalID: 0,
			CreatedAt:      now,
		}
		if err := tx.Create(&token).Error; err != nil {
			return fmt.Errorf("failed to create token: %w", err)
		}

		balance := schema.Balance{
			TokenID: tokenID,
			OwnerID: input.OwnerID,
			Amount:  initial.String(),
		}
		if err := tx.Create(&balance).Error; err != nil {
			return fmt.Errorf("failed to create owner balance: %w", err)
		}

		event := &domain.LedgerEvent{
			EventID:   newEventID(now),
			EventType: domain.EventTypeMint,
			TokenID:   domain.TokenID(tokenID),
			NewOwner:  domain.Principal(input.OwnerID),
			Amount:    initial.String(),
			Timestamp: now,
		}
		if err := insertEvent(tx, event); err != nil {
			return err
		}

		result = MintResult{
			Token:        &token,
			Event:        event,
			StorageBytes: mintStorageBytes(&token, &balance),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// nextTokenID bumps the saturating allocation counter under a row lock.
func nextTokenID(tx *gorm.DB) (string, error) {
	var kv schema.KeyValueStore
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("key = ?", tokenIDCounterKey).
		First(&kv).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to lock token id counter: %w", err)
	}

	var current uint64
	if kv.Key != "" {
		current, err = strconv.ParseUint(kv.Value, 10, 64)
		if err != nil {
			return "", fmt.Errorf("corrupt token id counter %q: %w", kv.Value, err)
		}
	}
	if current == math.MaxUint64 {
		return "", domain.ErrIDSpaceExhausted
	}
	next := current + 1

	kv.Key = tokenIDCounterKey
	kv.Value = strconv.FormatUint(next, 10)
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&kv).Error; err != nil {
		return "", fmt.Errorf("failed to bump token id counter: %w", err)
	}

	return strconv.FormatUint(next, 10), nil
}

// mintStorageBytes approximates the bytes a mint added: the token row, the
// owner's balance row and the mint event row. The payment collaborator only
// needs a stable measure, not the exact on-disk size.
func mintStorageBytes(token *schema.Token, balance *schema.Balance) int64 {
	const rowOverhead = 64
	n := len(token.TokenID) + len(token.OwnerID) + len(token.Supply) + len(token.Metadata)
	n += len(balance.TokenID) + len(balance.OwnerID) + len(balance.Amount)
	return int64(n) + 3*rowOverhead
}

// Transfer executes one transfer
func (s *pgStore) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	var result TransferResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		receipt, events, err := transferOne(tx, input.SenderID, input.ReceiverID, input.Leg, "", input.Memo)
		if err != nil {
			return err
		}
		result = TransferResult{Receipt: *receipt, Events: events}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// TransferBatch executes several legs atomically
func (s *pgStore) TransferBatch(ctx context.Context, input TransferBatchInput) (*TransferBatchResult, error) {
	var result TransferBatchResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		receipts, events, err := transferLegs(tx, input.SenderID, input.ReceiverID, input.Legs, "", input.Memo)
		if err != nil {
			return err
		}
		result = TransferBatchResult{Receipts: receipts, Events: events}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func transferLegs(tx *gorm.DB, senderID, receiverID string, legs []TransferLeg, sagaID, memo string) ([]domain.TransferReceipt, []*domain.LedgerEvent, error) {
	receipts := make([]domain.TransferReceipt, 0, len(legs))
	var events []*domain.LedgerEvent
	for _, leg := range legs {
		receipt, legEvents, err := transferOne(tx, senderID, receiverID, leg, sagaID, memo)
		if err != nil {
			return nil, nil, err
		}
		receipts = append(receipts, *receipt)
		events = append(events, legEvents...)
	}
	return receipts, events, nil
}

// transferOne applies one transfer leg inside the caller's transaction:
// clear the token's approvals, authorize the sender, move the amount out of
// the sender into the receiver, and record the event.
func transferOne(tx *gorm.DB, senderID, receiverID string, leg TransferLeg, sagaID, memo string) (*domain.TransferReceipt, []*domain.LedgerEvent, error) {
	amount, err := domain.ParseAmount(leg.Amount)
	if err != nil {
		return nil, nil, err
	}
	if amount.IsZero() || senderID == receiverID {
		return nil, nil, domain.ErrInvalidArgument
	}

	// 1. Lock the token row; it anchors the supply counter and the approval
	// counter for the whole leg.
	var token schema.Token
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_id = ?", leg.TokenID).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.ErrTokenNotFound
		}
		return nil, nil, fmt.Errorf("failed to lock token: %w", err)
	}

	// 2. Remove every approval on this token, not just the sender's. Every
	// transfer attempt clears the whole set; the removed set is returned so
	// callers can snapshot it.
	var approvals []schema.Approval
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_id = ?", leg.TokenID).
		Find(&approvals).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to lock approvals: %w", err)
	}
	if len(approvals) > 0 {
		if err := tx.Where("token_id = ?", leg.TokenID).
			Delete(&schema.Approval{}).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to clear approvals: %w", err)
		}
	}
	removed := make([]domain.RemovedApproval, 0, len(approvals))
	for _, a := range approvals {
		removed = append(removed, domain.RemovedApproval{
			SpenderID:  domain.Principal(a.SpenderID),
			ApprovalID: a.ApprovalID,
			Ceiling:    a.Ceiling,
		})
	}

	// 3. A sender who is not the owner of record must hold one of the
	// just-removed approvals, with a matching id when one was supplied.
	if senderID != token.OwnerID {
		var grant *schema.Approval
		for i := range approvals {
			if approvals[i].SpenderID == senderID {
				grant = &approvals[i]
				break
			}
		}
		if grant == nil {
			return nil, nil, domain.ErrUnauthorized
		}
		if leg.ApprovalID != nil && *leg.ApprovalID != grant.ApprovalID {
			return nil, nil, domain.ErrApprovalMismatch
		}
	}

	// 4. Move the amount: withdraw from the sender, deposit to the receiver.
	// The sender is always the debited party, approved spenders included. Both
	// sides adjust the supply counter, netting to zero.
	supply, err := domain.ParseAmount(token.Supply)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt supply %q: %w", token.Supply, err)
	}
	supply, err = withdrawLocked(tx, leg.TokenID, senderID, amount, supply)
	if err != nil {
		return nil, nil, err
	}
	supply, err = depositLocked(tx, leg.TokenID, receiverID, amount, supply)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Model(&schema.Token{}).
		Where("token_id = ?", leg.TokenID).
		Update("supply", supply.String()).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to update supply: %w", err)
	}

	// 5. Record the movement. The authorizing principal appears only when
	// the caller was a delegated spender.
	now := time.Now()
	event := &domain.LedgerEvent{
		EventID:   newEventID(now),
		EventType: domain.EventTypeTransfer,
		TokenID:   domain.TokenID(leg.TokenID),
		OldOwner:  domain.Principal(senderID),
		NewOwner:  domain.Principal(receiverID),
		Amount:    amount.String(),
		SagaID:    sagaID,
		Memo:      memo,
		Timestamp: now,
	}
	if senderID != token.OwnerID {
		event.AuthorizedID = domain.Principal(senderID)
	}
	if err := insertEvent(tx, event); err != nil {
		return nil, nil, err
	}

	receipt := &domain.TransferReceipt{
		TokenID:          domain.TokenID(leg.TokenID),
		OldOwner:         domain.Principal(senderID),
		NewOwner:         domain.Principal(receiverID),
		Amount:           amount.String(),
		RemovedApprovals: removed,
	}
	return receipt, []*domain.LedgerEvent{event}, nil
}

// withdrawLocked checked-subtracts from a balance entry and the supply.
func withdrawLocked(tx *gorm.DB, tokenID, ownerID string, amount, supply domain.Amount) (domain.Amount, error) {
	var balance schema.Balance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_id = ? AND owner_id = ?", tokenID, ownerID).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Amount{}, domain.ErrNotRegistered
		}
		return domain.Amount{}, fmt.Errorf("failed to lock balance: %w", err)
	}

	held, err := domain.ParseAmount(balance.Amount)
	if err != nil {
		return domain.Amount{}, fmt.Errorf("corrupt balance amount %q: %w", balance.Amount, err)
	}
	held, err = held.Sub(amount)
	if err != nil {
		return domain.Amount{}, domain.ErrInsufficientBalance
	}
	newSupply, err := supply.Sub(amount)
	if err != nil {
		return domain.Amount{}, domain.ErrUnderflow
	}

	if err := tx.Model(&schema.Balance{}).
		Where("token_id = ? AND owner_id = ?", tokenID, ownerID).
		Update("amount", held.String()).Error; err != nil {
		return domain.Amount{}, fmt.Errorf("failed to update balance: %w", err)
	}
	return newSupply, nil
}

// depositLocked checked-adds to a balance entry and the supply. The entry
// must already exist: registration is explicit, absence is not zero.
func depositLocked(tx *gorm.DB, tokenID, ownerID string, amount, supply domain.Amount) (domain.Amount, error) {
	var balance schema.Balance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_id = ? AND owner_id = ?", tokenID, ownerID).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Amount{}, domain.ErrNotRegistered
		}
		return domain.Amount{}, fmt.Errorf("failed to lock balance: %w", err)
	}

	held, err := domain.ParseAmount(balance.Amount)
	if err != nil {
		return domain.Amount{}, fmt.Errorf("corrupt balance amount %q: %w", balance.Amount, err)
	}
	held, err = held.Add(amount)
	if err != nil {
		return domain.Amount{}, domain.ErrOverflow
	}
	newSupply, err := supply.Add(amount)
	if err != nil {
		return domain.Amount{}, domain.ErrOverflow
	}

	if err := tx.Model(&schema.Balance{}).
		Where("token_id = ? AND owner_id = ?", tokenID, ownerID).
		Update("amount", held.String()).Error; err != nil {
		return domain.Amount{}, fmt.Errorf("failed to update balance: %w", err)
	}
	return newSupply, nil
}

func insertEvent(tx *gorm.DB, event *domain.LedgerEvent) error {
	row := schema.LedgerEvent{
		EventID:      event.EventID,
		EventType:    string(event.EventType),
		TokenID:      string(event.TokenID),
		OldOwner:     string(event.OldOwner),
		NewOwner:     string(event.NewOwner),
		Amount:       event.Amount,
		AuthorizedID: string(event.AuthorizedID),
		SagaID:       event.SagaID,
		Memo:         event.Memo,
		CreatedAt:    event.Timestamp,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create ledger event: %w", err)
	}
	return nil
}

// GrantApproval records a delegated-spender approval
func (s *pgStore) GrantApproval(ctx context.Context, input GrantApprovalInput) (*schema.Approval, error) {
	var approval schema.Approval
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ceiling, err := domain.ParseAmount(input.Ceiling)
		if err != nil {
			return err
		}

		var token schema.Token
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_id = ?", input.TokenID).
			First(&token).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrTokenNotFound
			}
			return fmt.Errorf("failed to lock token: %w", err)
		}

		if input.CallerID != token.OwnerID {
			return domain.ErrUnauthorized
		}

		approvalID := token.NextApprovalID
		if err := tx.Model(&schema.Token{}).
			Where("token_id = ?", input.TokenID).
			Update("next_approval_id", approvalID+1).Error; err != nil {
			return fmt.Errorf("failed to bump approval counter: %w", err)
		}

		approval = schema.Approval{
			TokenID:    input.TokenID,
			SpenderID:  input.SpenderID,
			ApprovalID: approvalID,
			Ceiling:    ceiling.String(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token_id"}, {Name: "spender_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"approval_id", "ceiling"}),
		}).Create(&approval).Error; err != nil {
			return fmt.Errorf("failed to grant approval: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &approval, nil
}

// BeginTransferCall commits the optimistic transfer together with the saga row
func (s *pgStore) BeginTransferCall(ctx context.Context, input BeginTransferCallInput) (*BeginTransferCallResult, error) {
	var result BeginTransferCallResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		receipts, events, err := transferLegs(tx, input.SenderID, input.ReceiverID, input.Legs, input.SagaID, input.Message)
		if err != nil {
			return err
		}

		tokenIDs := make([]string, 0, len(receipts))
		amounts := make([]string, 0, len(receipts))
		oldOwners := make([]string, 0, len(receipts))
		var removed []domain.RemovedApproval
		for _, r := range receipts {
			tokenIDs = append(tokenIDs, string(r.TokenID))
			amounts = append(amounts, r.Amount)
			oldOwners = append(oldOwners, string(r.OldOwner))
			removed = append(removed, r.RemovedApprovals...)
		}

		tokenIDsJSON, err := json.Marshal(tokenIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal token ids: %w", err)
		}
		amountsJSON, err := json.Marshal(amounts)
		if err != nil {
			return fmt.Errorf("failed to marshal amounts: %w", err)
		}
		oldOwnersJSON, err := json.Marshal(oldOwners)
		if err != nil {
			return fmt.Errorf("failed to marshal old owners: %w", err)
		}
		removedJSON, err := json.Marshal(removed)
		if err != nil {
			return fmt.Errorf("failed to marshal removed approvals: %w", err)
		}

		saga := schema.TransferSaga{
			SagaID:           input.SagaID,
			State:            schema.SagaStateStarted,
			SenderID:         input.SenderID,
			ReceiverID:       input.ReceiverID,
			OldOwners:        oldOwnersJSON,
			TokenIDs:         tokenIDsJSON,
			Amounts:          amountsJSON,
			RemovedApprovals: removedJSON,
			Message:          input.Message,
			WorkflowID:       input.WorkflowID,
		}
		if err := tx.Create(&saga).Error; err != nil {
			return fmt.Errorf("failed to create transfer saga: %w", err)
		}

		result = BeginTransferCallResult{
			Saga:     &saga,
			Receipts: receipts,
			Events:   events,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTransferSaga retrieves a saga row
func (s *pgStore) GetTransferSaga(ctx context.Context, sagaID string) (*schema.TransferSaga, error) {
	var saga schema.TransferSaga
	err := s.db.WithContext(ctx).Where("saga_id = ?", sagaID).First(&saga).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSagaNotFound
		}
		return nil, fmt.Errorf("failed to get transfer saga: %w", err)
	}
	return &saga, nil
}

// MarkSagaNotified transitions started -> notified and pins the workflow run id
func (s *pgStore) MarkSagaNotified(ctx context.Context, input MarkSagaNotifiedInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		saga, err := lockSaga(tx, input.SagaID)
		if err != nil {
			return err
		}
		if !domain.SagaState(saga.State).CanTransitionTo(domain.SagaStateNotified) {
			return domain.ErrSagaStateConflict
		}
		if saga.WorkflowID != "" && saga.WorkflowID != input.WorkflowID {
			return domain.ErrSagaCallerMismatch
		}

		notifiedAt := input.NotifiedAt
		updates := map[string]interface{}{
			"state":           schema.SagaStateNotified,
			"workflow_id":     input.WorkflowID,
			"workflow_run_id": input.WorkflowRunID,
			"notified_at":     &notifiedAt,
		}
		if err := tx.Model(&schema.TransferSaga{}).
			Where("saga_id = ?", input.SagaID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to mark saga notified: %w", err)
		}
		return nil
	})
}

// ResolveSaga transitions notified -> resolved and applies refunds
func (s *pgStore) ResolveSaga(ctx context.Context, input ResolveSagaInput) (*ResolveSagaResult, error) {
	var result ResolveSagaResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		saga, err := lockSaga(tx, input.SagaID)
		if err != nil {
			return err
		}
		if !domain.SagaState(saga.State).CanTransitionTo(domain.SagaStateResolved) {
			return domain.ErrSagaStateConflict
		}
		if saga.WorkflowID != input.WorkflowID || saga.WorkflowRunID != input.WorkflowRunID {
			return domain.ErrSagaCallerMismatch
		}

		var tokenIDs, amounts, oldOwners []string
		if err := json.Unmarshal(saga.TokenIDs, &tokenIDs); err != nil {
			return fmt.Errorf("corrupt saga token ids: %w", err)
		}
		if err := json.Unmarshal(saga.Amounts, &amounts); err != nil {
			return fmt.Errorf("corrupt saga amounts: %w", err)
		}
		if err := json.Unmarshal(saga.OldOwners, &oldOwners); err != nil {
			return fmt.Errorf("corrupt saga old owners: %w", err)
		}

		settled := make([]string, len(tokenIDs))
		refunded := make([]string, len(tokenIDs))
		forfeited := make([]string, len(tokenIDs))
		var events []*domain.LedgerEvent

		for i, tokenID := range tokenIDs {
			sent, err := domain.ParseAmount(amounts[i])
			if err != nil {
				return fmt.Errorf("corrupt saga amount %q: %w", amounts[i], err)
			}

			unused := domain.Amount{}
			if i < len(input.Unused) {
				unused, err = domain.ParseAmount(input.Unused[i])
				if err != nil {
					return fmt.Errorf("bad unused amount %q: %w", input.Unused[i], err)
				}
			}
			// Receivers cannot claim more unused than they were sent.
			unused = unused.Min(sent)

			settledAmt, refundedAmt, forfeitedAmt, legEvents, err := refundLeg(
				tx, input.SagaID, tokenID, saga.ReceiverID, oldOwners[i], sent, unused, input.ResolvedAt)
			if err != nil {
				return err
			}
			settled[i] = settledAmt.String()
			refunded[i] = refundedAmt.String()
			forfeited[i] = forfeitedAmt.String()
			events = append(events, legEvents...)
		}

		settledJSON, err := json.Marshal(settled)
		if err != nil {
			return fmt.Errorf("failed to marshal settled amounts: %w", err)
		}
		resolvedAt := input.ResolvedAt
		updates := map[string]interface{}{
			"state":       schema.SagaStateResolved,
			"settled":     settledJSON,
			"resolved_at": &resolvedAt,
		}
		if err := tx.Model(&schema.TransferSaga{}).
			Where("saga_id = ?", input.SagaID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to mark saga resolved: %w", err)
		}

		result = ResolveSagaResult{
			Settled:   settled,
			Refunded:  refunded,
			Forfeited: forfeited,
			Events:    events,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// refundLeg moves the unused amount back from the receiver toward the old
// owner. The refund is bounded by what the receiver still holds; a shortfall
// stays with the receiver. When the old owner's entry is gone the recovered
// amount is burned from the supply instead of resurrecting the entry.
func refundLeg(tx *gorm.DB, sagaID, tokenID, receiverID, oldOwnerID string, sent, unused domain.Amount, at time.Time) (settled, refunded, forfeited domain.Amount, events []*domain.LedgerEvent, err error) {
	settled = sent
	if unused.IsZero() {
		return settled, domain.Amount{}, domain.Amount{}, nil, nil
	}

	var receiverBalance schema.Balance
	lookupErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_id = ? AND owner_id = ?", tokenID, receiverID).
		First(&receiverBalance).Error
	if lookupErr != nil {
		if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			// Receiver entry is gone; nothing left to recover.
			return settled, domain.Amount{}, domain.Amount{}, nil, nil
		}
		return settled, domain.Amount{}, domain.Amount{}, nil, fmt.Errorf("failed to lock receiver balance: %w", lookupErr)
	}

	held, err := domain.ParseAmount(receiverBalance.Amount)
	if err != nil {
		return settled, domain.Amount{}, domain.Amount{}, nil, fmt.Errorf("corrupt balance amount %q: %w", receiverBalance.Amount, err)
	}

	// Partial refund: recover at most what the receiver still holds.
	recovered := unused.Min(held)
	if recovered.IsZero() {
		return settled, domain.Amount{}, domain.Amount{}, nil, nil
	}

	var token schema.Token
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_id = ?", tokenID).
		First(&token).Error; err != nil {
		return settled, domain.Amount{}, domain.Amount{}, nil, fmt.Errorf("failed to lock token: %w", err)
	}
	supply, err := domain.ParseAmount(token.Supply)
	if err != nil {
		return settled, domain.Amount{}, domain.Amount{}, nil, fmt.Errorf("corrupt supply %q: %w", token.Supply, err)
	}

	supply, err = withdrawLocked(tx, tokenID, receiverID, recovered, supply)
	if err != nil {
		return settled, domain.Amount{}, domain.Amount{}, nil, err
	}
	settled, err = sent.Sub(recovered)
	if err != nil {
		return settled, domain.Amount{}, domain.Amount{}, nil, err
	}

	var ownerBalance schema.Balance
	ownerErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_id = ? AND owner_id = ?", tokenID, oldOwnerID).
		First(&ownerBalance).Error
	switch {
	case ownerErr == nil:
		supply, err = depositLocked(tx, tokenID, oldOwnerID, recovered, supply)
		if err != nil {
			return settled, domain.Amount{}, domain.Amount{}, nil, err
		}
		refunded = recovered
		event := &domain.LedgerEvent{
			EventID:   newEventID(at),
			EventType: domain.EventTypeRefund,
			TokenID:   domain.TokenID(tokenID),
			OldOwner:  domain.Principal(receiverID),
			NewOwner:  domain.Principal(oldOwnerID),
			Amount:    recovered.String(),
			SagaID:    sagaID,
			Timestamp: at,
		}
		if err := insertEvent(tx, event); err != nil {
			return settled, domain.Amount{}, domain.Amount{}, nil, err
		}
		events = append(events, event)
	case errors.Is(ownerErr, gorm.ErrRecordNotFound):
		// Owner entry is gone; the recovered amount leaves the supply.
		forfeited = recovered
		event := &domain.LedgerEvent{
			EventID:   newEventID(at),
			EventType: domain.EventTypeForfeit,
			TokenID:   domain.TokenID(tokenID),
			OldOwner:  domain.Principal(receiverID),
			Amount:    recovered.String(),
			SagaID:    sagaID,
			Timestamp: at,
		}
		if err := insertEvent(tx, event); err != nil {
			return settled, domain.Amount{}, domain.Amount{}, nil, err
		}
		events = append(events, event)
	default:
		return settled, domain.Amount{}, domain.Amount{}, nil, fmt.Errorf("failed to lock owner balance: %w", ownerErr)
	}

	if err := tx.Model(&schema.Token{}).
		Where("token_id = ?", tokenID).
		Update("supply", supply.String()).Error; err != nil {
		return settled, domain.Amount{}, domain.Amount{}, nil, fmt.Errorf("failed to update supply: %w", err)
	}

	return settled, refunded, forfeited, events, nil
}

// AbortSaga moves a non-terminal saga to aborted
func (s *pgStore) AbortSaga(ctx context.Context, sagaID, reason string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		saga, err := lockSaga(tx, sagaID)
		if err != nil {
			return err
		}
		if !domain.SagaState(saga.State).CanTransitionTo(domain.SagaStateAborted) {
			return domain.ErrSagaStateConflict
		}

		updates := map[string]interface{}{
			"state":        schema.SagaStateAborted,
			"abort_reason": reason,
		}
		if err := tx.Model(&schema.TransferSaga{}).
			Where("saga_id = ?", sagaID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to abort saga: %w", err)
		}
		return nil
	})
}

func lockSaga(tx *gorm.DB, sagaID string) (*schema.TransferSaga, error) {
	var saga schema.TransferSaga
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("saga_id = ?", sagaID).
		First(&saga).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSagaNotFound
		}
		return nil, fmt.Errorf("failed to lock saga: %w", err)
	}
	return &saga, nil
}

// RegisterReceiverHook registers or replaces a principal's hook
func (s *pgStore) RegisterReceiverHook(ctx context.Context, input RegisterHookInput) error {
	hook := schema.ReceiverHook{
		PrincipalID: input.PrincipalID,
		HookURL:     input.HookURL,
		Secret:      input.Secret,
		IsActive:    true,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "principal_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"hook_url", "secret", "is_active", "updated_at"}),
	}).Create(&hook).Error
	if err != nil {
		return fmt.Errorf("failed to register receiver hook: %w", err)
	}
	return nil
}

// GetReceiverHook retrieves a principal's active hook
func (s *pgStore) GetReceiverHook(ctx context.Context, principalID string) (*schema.ReceiverHook, error) {
	var hook schema.ReceiverHook
	err := s.db.WithContext(ctx).
		Where("principal_id = ? AND is_active = ?", principalID, true).
		First(&hook).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrHookNotRegistered
		}
		return nil, fmt.Errorf("failed to get receiver hook: %w", err)
	}
	return &hook, nil
}

// GetKeyValue retrieves a raw value; empty string when the key is absent
func (s *pgStore) GetKeyValue(ctx context.Context, key string) (string, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return kv.Value, nil
}

// SetKeyValue upserts a raw value
func (s *pgStore) SetKeyValue(ctx context.Context, key, value string) error {
	kv := schema.KeyValueStore{Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}
