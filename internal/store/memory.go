package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/multivault/ledger/internal/domain"
	"github.com/multivault/ledger/internal/store/schema"
)

// memStore is an in-memory Store with the same transactional semantics as
// pgStore: each mutating call works on a deep copy of the state and swaps it
// in only on success, so a failed call persists nothing. Used by unit tests
// and the single-node development mode.
type memStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	counter   uint64
	tokens    map[string]*schema.Token
	balances  map[string]map[string]*schema.Balance
	approvals map[string][]*schema.Approval
	sagas     map[string]*schema.TransferSaga
	events    []schema.LedgerEvent
	hooks     map[string]*schema.ReceiverHook
	kv        map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() Store {
	return &memStore{state: newMemState()}
}

func newMemState() *memState {
	return &memState{
		tokens:    make(map[string]*schema.Token),
		balances:  make(map[string]map[string]*schema.Balance),
		approvals: make(map[string][]*schema.Approval),
		sagas:     make(map[string]*schema.TransferSaga),
		hooks:     make(map[string]*schema.ReceiverHook),
		kv:        make(map[string]string),
	}
}

func (s *memState) clone() *memState {
	next := newMemState()
	next.counter = s.counter
	for id, t := range s.tokens {
		c := *t
		c.Metadata = append(datatypes.JSON(nil), t.Metadata...)
		next.tokens[id] = &c
	}
	for tokenID, owners := range s.balances {
		next.balances[tokenID] = make(map[string]*schema.Balance, len(owners))
		for ownerID, b := range owners {
			c := *b
			next.balances[tokenID][ownerID] = &c
		}
	}
	for tokenID, grants := range s.approvals {
		cs := make([]*schema.Approval, 0, len(grants))
		for _, a := range grants {
			c := *a
			cs = append(cs, &c)
		}
		next.approvals[tokenID] = cs
	}
	for id, saga := range s.sagas {
		c := *saga
		c.TokenIDs = append(datatypes.JSON(nil), saga.TokenIDs...)
		c.Amounts = append(datatypes.JSON(nil), saga.Amounts...)
		c.OldOwners = append(datatypes.JSON(nil), saga.OldOwners...)
		c.Settled = append(datatypes.JSON(nil), saga.Settled...)
		c.RemovedApprovals = append(datatypes.JSON(nil), saga.RemovedApprovals...)
		next.sagas[id] = &c
	}
	next.events = append([]schema.LedgerEvent(nil), s.events...)
	for id, h := range s.hooks {
		c := *h
		next.hooks[id] = &c
	}
	for k, v := range s.kv {
		next.kv[k] = v
	}
	return next
}

// update runs fn against a copy of the state and commits it only on success.
func (s *memStore) update(fn func(st *memState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if err := fn(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *memStore) GetToken(_ context.Context, tokenID string) (*schema.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.state.tokens[tokenID]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	c := *token
	return &c, nil
}

func (s *memStore) GetBalance(_ context.Context, tokenID, ownerID string) (*schema.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.tokens[tokenID]; !ok {
		return nil, domain.ErrTokenNotFound
	}
	balance, ok := s.state.balances[tokenID][ownerID]
	if !ok {
		return nil, domain.ErrNotRegistered
	}
	c := *balance
	return &c, nil
}

func (s *memStore) ListBalances(_ context.Context, tokenID string, ownerIDs []string) ([]schema.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		wanted[id] = true
	}

	var balances []schema.Balance
	for ownerID, b := range s.state.balances[tokenID] {
		if len(wanted) > 0 && !wanted[ownerID] {
			continue
		}
		balances = append(balances, *b)
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].OwnerID < balances[j].OwnerID })
	return balances, nil
}

func (s *memStore) GetApprovals(_ context.Context, tokenID string) ([]schema.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grants := s.state.approvals[tokenID]
	approvals := make([]schema.Approval, 0, len(grants))
	for _, a := range grants {
		approvals = append(approvals, *a)
	}
	sort.Slice(approvals, func(i, j int) bool { return approvals[i].ApprovalID < approvals[j].ApprovalID })
	return approvals, nil
}

func (s *memStore) GetLedgerEvents(_ context.Context, tokenID string, limit int) ([]schema.LedgerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}

	var events []schema.LedgerEvent
	for i := len(s.state.events) - 1; i >= 0 && len(events) < limit; i-- {
		if s.state.events[i].TokenID == tokenID {
			events = append(events, s.state.events[i])
		}
	}
	return events, nil
}

func (s *memStore) RegisterBalance(_ context.Context, tokenID, ownerID string) error {
	return s.update(func(st *memState) error {
		if _, ok := st.tokens[tokenID]; !ok {
			return domain.ErrTokenNotFound
		}
		if _, ok := st.balances[tokenID][ownerID]; ok {
			return domain.ErrAlreadyRegistered
		}
		st.putBalance(&schema.Balance{
			TokenID:   tokenID,
			OwnerID:   ownerID,
			Amount:    "0",
			CreatedAt: time.Now(),
		})
		return nil
	})
}

func (s *memStore) UnregisterBalance(_ context.Context, tokenID, ownerID string, force bool) (*domain.LedgerEvent, error) {
	var event *domain.LedgerEvent
	err := s.update(func(st *memState) error {
		balance, ok := st.balances[tokenID][ownerID]
		if !ok {
			return domain.ErrNotRegistered
		}
		amount, err := domain.ParseAmount(balance.Amount)
		if err != nil {
			return fmt.Errorf("corrupt balance amount %q: %w", balance.Amount, err)
		}

		if !amount.IsZero() {
			if !force {
				return fmt.Errorf("balance not zero: %w", domain.ErrInvalidArgument)
			}
			token := st.tokens[tokenID]
			supply, err := domain.ParseAmount(token.Supply)
			if err != nil {
				return fmt.Errorf("corrupt supply %q: %w", token.Supply, err)
			}
			supply, err = supply.Sub(amount)
			if err != nil {
				return err
			}
			token.Supply = supply.String()

			now := time.Now()
			event = &domain.LedgerEvent{
				EventID:   newEventID(now),
				EventType: domain.EventTypeForfeit,
				TokenID:   domain.TokenID(tokenID),
				OldOwner:  domain.Principal(ownerID),
				Amount:    amount.String(),
				Timestamp: now,
			}
			st.appendEvent(event)
		}

		delete(st.balances[tokenID], ownerID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *memStore) Mint(_ context.Context, input MintInput) (*MintResult, error) {
	var result MintResult
	err := s.update(func(st *memState) error {
		if st.counter == math.MaxUint64 {
			return domain.ErrIDSpaceExhausted
		}
		initial, err := domain.ParseAmount(input.InitialSupply)
		if err != nil {
			return err
		}

		st.counter++
		tokenID := strconv.FormatUint(st.counter, 10)
		st.kv[tokenIDCounterKey] = tokenID

		now := time.Now()
		token := &schema.Token{
			TokenID:   tokenID,
			OwnerID:   input.OwnerID,
			Supply:    initial.String(),
			Metadata:  input.Metadata,
			CreatedAt: now,
		}
		st.tokens[tokenID] = token

		balance := &schema.Balance{
			TokenID:   tokenID,
			OwnerID:   input.OwnerID,
			Amount:    initial.String(),
			CreatedAt: now,
		}
		st.putBalance(balance)

		event := &domain.LedgerEvent{
			EventID:   newEventID(now),
			EventType: domain.EventTypeMint,
			TokenID:   domain.TokenID(tokenID),
			NewOwner:  domain.Principal(input.OwnerID),
			Amount:    initial.String(),
			Timestamp: now,
		}
		st.appendEvent(event)

		tokenCopy := *token
		result = MintResult{
			Token:        &tokenCopy,
			Event:        event,
			StorageBytes: mintStorageBytes(token, balance),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *memStore) Transfer(_ context.Context, input TransferInput) (*TransferResult, error) {
	var result TransferResult
	err := s.update(func(st *memState) error {
		receipt, events, err := st.transferOne(input.SenderID, input.ReceiverID, input.Leg, "", input.Memo)
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

func (s *memStore) TransferBatch(_ context.Context, input TransferBatchInput) (*TransferBatchResult, error) {
	var result TransferBatchResult
	err := s.update(func(st *memState) error {
		receipts, events, err := st.transferLegs(input.SenderID, input.ReceiverID, input.Legs, "", input.Memo)
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

func (s *memStore) GrantApproval(_ context.Context, input GrantApprovalInput) (*schema.Approval, error) {
	var approval schema.Approval
	err := s.update(func(st *memState) error {
		ceiling, err := domain.ParseAmount(input.Ceiling)
		if err != nil {
			return err
		}
		token, ok := st.tokens[input.TokenID]
		if !ok {
			return domain.ErrTokenNotFound
		}
		if input.CallerID != token.OwnerID {
			return domain.ErrUnauthorized
		}

		approvalID := token.NextApprovalID
		token.NextApprovalID++

		grants := st.approvals[input.TokenID]
		for i := range grants {
			if grants[i].SpenderID == input.SpenderID {
				grants[i].ApprovalID = approvalID
				grants[i].Ceiling = ceiling.String()
				approval = *grants[i]
				return nil
			}
		}
		record := &schema.Approval{
			TokenID:    input.TokenID,
			SpenderID:  input.SpenderID,
			ApprovalID: approvalID,
			Ceiling:    ceiling.String(),
			CreatedAt:  time.Now(),
		}
		st.approvals[input.TokenID] = append(grants, record)
		approval = *record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &approval, nil
}

func (s *memStore) BeginTransferCall(_ context.Context, input BeginTransferCallInput) (*BeginTransferCallResult, error) {
	var result BeginTransferCallResult
	err := s.update(func(st *memState) error {
		receipts, events, err := st.transferLegs(input.SenderID, input.ReceiverID, input.Legs, input.SagaID, input.Message)
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

		tokenIDsJSON, _ := json.Marshal(tokenIDs)
		amountsJSON, _ := json.Marshal(amounts)
		oldOwnersJSON, _ := json.Marshal(oldOwners)
		removedJSON, err := json.Marshal(removed)
		if err != nil {
			return fmt.Errorf("failed to marshal removed approvals: %w", err)
		}

		saga := &schema.TransferSaga{
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
			CreatedAt:        time.Now(),
		}
		st.sagas[input.SagaID] = saga

		sagaCopy := *saga
		result = BeginTransferCallResult{
			Saga:     &sagaCopy,
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

func (s *memStore) GetTransferSaga(_ context.Context, sagaID string) (*schema.TransferSaga, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saga, ok := s.state.sagas[sagaID]
	if !ok {
		return nil, domain.ErrSagaNotFound
	}
	c := *saga
	return &c, nil
}

func (s *memStore) MarkSagaNotified(_ context.Context, input MarkSagaNotifiedInput) error {
	return s.update(func(st *memState) error {
		saga, ok := st.sagas[input.SagaID]
		if !ok {
			return domain.ErrSagaNotFound
		}
		if !domain.SagaState(saga.State).CanTransitionTo(domain.SagaStateNotified) {
			return domain.ErrSagaStateConflict
		}
		if saga.WorkflowID != "" && saga.WorkflowID != input.WorkflowID {
			return domain.ErrSagaCallerMismatch
		}

		notifiedAt := input.NotifiedAt
		saga.State = schema.SagaStateNotified
		saga.WorkflowID = input.WorkflowID
		saga.WorkflowRunID = input.WorkflowRunID
		saga.NotifiedAt = &notifiedAt
		return nil
	})
}

func (s *memStore) ResolveSaga(_ context.Context, input ResolveSagaInput) (*ResolveSagaResult, error) {
	var result ResolveSagaResult
	err := s.update(func(st *memState) error {
		saga, ok := st.sagas[input.SagaID]
		if !ok {
			return domain.ErrSagaNotFound
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
			unused = unused.Min(sent)

			settledAmt, refundedAmt, forfeitedAmt, legEvents, err := st.refundLeg(
				input.SagaID, tokenID, saga.ReceiverID, oldOwners[i], sent, unused, input.ResolvedAt)
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
		saga.State = schema.SagaStateResolved
		saga.Settled = settledJSON
		saga.ResolvedAt = &resolvedAt

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

func (s *memStore) AbortSaga(_ context.Context, sagaID, reason string) error {
	return s.update(func(st *memState) error {
		saga, ok := st.sagas[sagaID]
		if !ok {
			return domain.ErrSagaNotFound
		}
		if !domain.SagaState(saga.State).CanTransitionTo(domain.SagaStateAborted) {
			return domain.ErrSagaStateConflict
		}
		saga.State = schema.SagaStateAborted
		saga.AbortReason = reason
		return nil
	})
}

func (s *memStore) RegisterReceiverHook(_ context.Context, input RegisterHookInput) error {
	return s.update(func(st *memState) error {
		st.hooks[input.PrincipalID] = &schema.ReceiverHook{
			PrincipalID: input.PrincipalID,
			HookURL:     input.HookURL,
			Secret:      input.Secret,
			IsActive:    true,
			CreatedAt:   time.Now(),
		}
		return nil
	})
}

func (s *memStore) GetReceiverHook(_ context.Context, principalID string) (*schema.ReceiverHook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hook, ok := s.state.hooks[principalID]
	if !ok || !hook.IsActive {
		return nil, domain.ErrHookNotRegistered
	}
	c := *hook
	return &c, nil
}

func (s *memStore) GetKeyValue(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.kv[key], nil
}

func (s *memStore) SetKeyValue(_ context.Context, key, value string) error {
	return s.update(func(st *memState) error {
		st.kv[key] = value
		return nil
	})
}

func (st *memState) putBalance(balance *schema.Balance) {
	owners, ok := st.balances[balance.TokenID]
	if !ok {
		owners = make(map[string]*schema.Balance)
		st.balances[balance.TokenID] = owners
	}
	owners[balance.OwnerID] = balance
}

func (st *memState) appendEvent(event *domain.LedgerEvent) {
	st.events = append(st.events, schema.LedgerEvent{
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
	})
}

func (st *memState) transferLegs(senderID, receiverID string, legs []TransferLeg, sagaID, memo string) ([]domain.TransferReceipt, []*domain.LedgerEvent, error) {
	receipts := make([]domain.TransferReceipt, 0, len(legs))
	var events []*domain.LedgerEvent
	for _, leg := range legs {
		receipt, legEvents, err := st.transferOne(senderID, receiverID, leg, sagaID, memo)
		if err != nil {
			return nil, nil, err
		}
		receipts = append(receipts, *receipt)
		events = append(events, legEvents...)
	}
	return receipts, events, nil
}

func (st *memState) transferOne(senderID, receiverID string, leg TransferLeg, sagaID, memo string) (*domain.TransferReceipt, []*domain.LedgerEvent, error) {
	amount, err := domain.ParseAmount(leg.Amount)
	if err != nil {
		return nil, nil, err
	}
	if amount.IsZero() || senderID == receiverID {
		return nil, nil, domain.ErrInvalidArgument
	}

	token, ok := st.tokens[leg.TokenID]
	if !ok {
		return nil, nil, domain.ErrTokenNotFound
	}

	// Clear the token's whole approval set; authorization checks run
	// against the removed snapshot.
	grants := st.approvals[leg.TokenID]
	delete(st.approvals, leg.TokenID)
	removed := make([]domain.RemovedApproval, 0, len(grants))
	for _, a := range grants {
		removed = append(removed, domain.RemovedApproval{
			SpenderID:  domain.Principal(a.SpenderID),
			ApprovalID: a.ApprovalID,
			Ceiling:    a.Ceiling,
		})
	}

	if senderID != token.OwnerID {
		var grant *schema.Approval
		for _, a := range grants {
			if a.SpenderID == senderID {
				grant = a
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

	// The sender is always the debited party. An approval authorizes the
	// spender to move tokens, it does not redirect the debit to the grantor.
	supply, err := domain.ParseAmount(token.Supply)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt supply %q: %w", token.Supply, err)
	}
	supply, err = st.withdraw(leg.TokenID, senderID, amount, supply)
	if err != nil {
		return nil, nil, err
	}
	supply, err = st.deposit(leg.TokenID, receiverID, amount, supply)
	if err != nil {
		return nil, nil, err
	}
	token.Supply = supply.String()

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
	st.appendEvent(event)

	receipt := &domain.TransferReceipt{
		TokenID:          domain.TokenID(leg.TokenID),
		OldOwner:         domain.Principal(senderID),
		NewOwner:         domain.Principal(receiverID),
		Amount:           amount.String(),
		RemovedApprovals: removed,
	}
	return receipt, []*domain.LedgerEvent{event}, nil
}

func (st *memState) withdraw(tokenID, ownerID string, amount, supply domain.Amount) (domain.Amount, error) {
	balance, ok := st.balances[tokenID][ownerID]
	if !ok {
		return domain.Amount{}, domain.ErrNotRegistered
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
	balance.Amount = held.String()
	return newSupply, nil
}

func (st *memState) deposit(tokenID, ownerID string, amount, supply domain.Amount) (domain.Amount, error) {
	balance, ok := st.balances[tokenID][ownerID]
	if !ok {
		return domain.Amount{}, domain.ErrNotRegistered
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
	balance.Amount = held.String()
	return newSupply, nil
}

func (st *memState) refundLeg(sagaID, tokenID, receiverID, oldOwnerID string, sent, unused domain.Amount, at time.Time) (settled, refunded, forfeited domain.Amount, events []*domain.LedgerEvent, err error) {
	settled = sent
	if unused.IsZero() {
		return settled, domain.Amount{}, domain.Amount{}, nil, nil
	}

	receiverBalance, ok := st.balances[tokenID][receiverID]
	if !ok {
		return settled, domain.Amount{}, domain.Amount{}, nil, nil
	}
	held, err := domain.ParseAmount(receiverBalance.Amount)
	if err != nil {
		return settled, domain.Amount{}, domain.Amount{}, nil, fmt.Errorf("corrupt balance amount %q: %w", receiverBalance.Amount, err)
	}

	recovered := unused.Min(held)
	if recovered.IsZero() {
		return settled, domain.Amount{}, domain.Amount{}, nil, nil
	}

	token := st.tokens[tokenID]
	supply, err := domain.ParseAmount(token.Supply)
	if err != nil {
		return settled, domain.Amount{}, domain.Amount{}, nil, fmt.Errorf("corrupt supply %q: %w", token.Supply, err)
	}

	supply, err = st.withdraw(tokenID, receiverID, recovered, supply)
	if err != nil {
		return settled, domain.Amount{}, domain.Amount{}, nil, err
	}
	settled, err = sent.Sub(recovered)
	if err != nil {
		return settled, domain.Amount{}, domain.Amount{}, nil, err
	}

	if _, ok := st.balances[tokenID][oldOwnerID]; ok {
		supply, err = st.deposit(tokenID, oldOwnerID, recovered, supply)
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
		st.appendEvent(event)
		events = append(events, event)
	} else {
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
		st.appendEvent(event)
		events = append(events, event)
	}

	token.Supply = supply.String()
	return settled, refunded, forfeited, events, nil
}
