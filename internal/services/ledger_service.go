package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/repository"
)

const (
	defaultCategoryCacheSize = 1024
	defaultCategoryCacheTTL  = 10 * time.Minute
)

type CreateTransactionInput struct {
	Description string
	Amount      decimal.Decimal
	Type        core.TransactionType
	Date        core.Date
	ClientID    string
	CategoryID  *string
}

// UpdateTransactionInput carries the fields to change; nil fields are kept.
type UpdateTransactionInput struct {
	Description   *string
	Amount        *decimal.Decimal
	Type          *core.TransactionType
	Date          *core.Date
	CategoryID    *string
	ClearCategory bool
}

// LedgerService records daily transactions and keeps every budget's
// remaining balance in step with them.
type LedgerService struct {
	store      repository.Store
	publisher  Publisher
	logger     *log.Logger
	opts       Options
	categories *cache.LRUCache[string] // category id -> owning client id
}

// NewLedgerService builds the service. A nil categories cache gets a default
// one.
func NewLedgerService(store repository.Store, publisher Publisher, logger *log.Logger, categories *cache.LRUCache[string], opts Options) *LedgerService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	if categories == nil {
		categories = cache.NewLRUCache[string](defaultCategoryCacheSize, defaultCategoryCacheTTL)
	}
	return &LedgerService{
		store:      store,
		publisher:  publisher,
		logger:     logger.WithComponent(log.ComponentLedger),
		opts:       opts.withDefaults(),
		categories: categories,
	}
}

// Create records a transaction and applies it to the budget of its month.
func (s *LedgerService) Create(ctx context.Context, in CreateTransactionInput) (core.DailyTransaction, error) {
	now := s.opts.Now()
	tx := core.DailyTransaction{
		ID:          s.opts.NewID(),
		Description: strings.TrimSpace(in.Description),
		Amount:      core.RoundCurrency(in.Amount),
		Type:        in.Type,
		Date:        in.Date,
		ClientID:    in.ClientID,
		CategoryID:  copyID(in.CategoryID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.Validate(); err != nil {
		return core.DailyTransaction{}, err
	}

	var (
		budget        core.MonthlyBudget
		budgetCreated bool
	)
	err := runInTx(ctx, s.store, s.opts.MaxConflictRetries, s.logger, "create_transaction", func(r repository.Repository) error {
		if err := s.checkClient(ctx, r, tx.ClientID); err != nil {
			return err
		}
		if err := s.checkCategory(ctx, r, tx.ClientID, tx.CategoryID); err != nil {
			return err
		}
		b, created, err := getOrCreate(ctx, r, tx.ClientID, tx.Date.Year(), tx.Date.Month(), nil, s.opts)
		if err != nil {
			return err
		}
		tx.MonthlyBudgetID = b.ID
		tx.RemainingBalanceAfterTransaction = b.RemainingBalance.Add(tx.SignedAmount())
		if err := r.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		if budget, err = applyDelta(ctx, r, b.ID, tx.Amount, tx.Type.IsIncome(), s.opts); err != nil {
			return err
		}
		budgetCreated = created
		return nil
	})
	if err != nil {
		return core.DailyTransaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction created", s.fields(tx, budget)...)
	if budgetCreated {
		publish(ctx, s.publisher, s.logger, core.NewBudgetEvent(core.EventBudgetCreated, budget, now))
	}
	publish(ctx, s.publisher, s.logger, core.NewTransactionEvent(core.EventTransactionCreated, tx, budget, now))
	return tx, nil
}

// Update merges in into the stored transaction. Changing amount, type or
// date reverses the old effect and applies the new one, moving the
// transaction to another month's budget when the date crosses months.
func (s *LedgerService) Update(ctx context.Context, id string, in UpdateTransactionInput) (core.DailyTransaction, error) {
	var (
		next, orig     core.DailyTransaction
		target, source core.MonthlyBudget
		moved, touched bool
		budgetCreated  bool
	)
	err := runInTx(ctx, s.store, s.opts.MaxConflictRetries, s.logger, "update_transaction", func(r repository.Repository) error {
		var err error
		moved, touched, budgetCreated = false, false, false
		if orig, err = r.GetTransaction(ctx, id); err != nil {
			return err
		}
		next = merge(orig, in)
		if err := next.Validate(); err != nil {
			return err
		}
		if err := s.checkClient(ctx, r, orig.ClientID); err != nil {
			return err
		}
		if !sameID(orig.CategoryID, next.CategoryID) {
			if err := s.checkCategory(ctx, r, next.ClientID, next.CategoryID); err != nil {
				return err
			}
		}
		next.UpdatedAt = s.opts.Now()

		if !orig.AffectsBalance(next) {
			return r.UpdateTransaction(ctx, next)
		}
		touched = true

		if source, err = applyDelta(ctx, r, orig.MonthlyBudgetID, orig.Amount, !orig.Type.IsIncome(), s.opts); err != nil {
			return err
		}
		targetID := orig.MonthlyBudgetID
		if !next.Date.SameMonth(orig.Date) {
			b, created, err := getOrCreate(ctx, r, next.ClientID, next.Date.Year(), next.Date.Month(), nil, s.opts)
			if err != nil {
				return err
			}
			targetID, moved, budgetCreated = b.ID, true, created
		}
		if target, err = applyDelta(ctx, r, targetID, next.Amount, next.Type.IsIncome(), s.opts); err != nil {
			return err
		}
		next.MonthlyBudgetID = target.ID
		next.RemainingBalanceAfterTransaction = target.RemainingBalance
		return r.UpdateTransaction(ctx, next)
	})
	if err != nil {
		return core.DailyTransaction{}, err
	}

	if !touched {
		s.logger.DebugContext(ctx, "Transaction details updated", log.FieldTransactionID, next.ID)
		return next, nil
	}
	now := s.opts.Now()
	s.logger.InfoContext(ctx, "Transaction updated", append(s.fields(next, target), "moved", moved)...)
	if moved {
		publish(ctx, s.publisher, s.logger, core.NewTransactionEvent(core.EventTransactionUpdated, orig, source, now))
	}
	if budgetCreated {
		publish(ctx, s.publisher, s.logger, core.NewBudgetEvent(core.EventBudgetCreated, target, now))
	}
	publish(ctx, s.publisher, s.logger, core.NewTransactionEvent(core.EventTransactionUpdated, next, target, now))
	return next, nil
}

// Delete removes a transaction and reverses its effect on its budget.
func (s *LedgerService) Delete(ctx context.Context, id string) error {
	var (
		tx     core.DailyTransaction
		budget core.MonthlyBudget
	)
	err := runInTx(ctx, s.store, s.opts.MaxConflictRetries, s.logger, "delete_transaction", func(r repository.Repository) error {
		var err error
		if tx, err = r.GetTransaction(ctx, id); err != nil {
			return err
		}
		if err := s.checkClient(ctx, r, tx.ClientID); err != nil {
			return err
		}
		if budget, err = applyDelta(ctx, r, tx.MonthlyBudgetID, tx.Amount, !tx.Type.IsIncome(), s.opts); err != nil {
			return err
		}
		return r.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Transaction deleted", s.fields(tx, budget)...)
	publish(ctx, s.publisher, s.logger, core.NewTransactionEvent(core.EventTransactionDeleted, tx, budget, s.opts.Now()))
	return nil
}

func (s *LedgerService) Get(ctx context.Context, id string) (core.DailyTransaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// List returns the client's transactions dated within [from, to].
func (s *LedgerService) List(ctx context.Context, clientID string, from, to core.Date) ([]core.DailyTransaction, error) {
	if err := from.Validate(); err != nil {
		return nil, err
	}
	if err := to.Validate(); err != nil {
		return nil, err
	}
	if to.Before(from.Time) {
		return nil, core.ErrInvalidRange
	}
	return s.store.ListTransactions(ctx, clientID, from, to)
}

func (s *LedgerService) checkClient(ctx context.Context, r repository.ClientReader, clientID string) error {
	c, err := r.GetClient(ctx, clientID)
	if err != nil {
		return err
	}
	if !c.IsActive {
		return core.ErrForbidden
	}
	return nil
}

// checkCategory requires categoryID, when set, to exist and belong to clientID.
func (s *LedgerService) checkCategory(ctx context.Context, r repository.CategoryReader, clientID string, categoryID *string) error {
	if categoryID == nil {
		return nil
	}
	owner, err := s.categories.GetOrLoad(*categoryID, func() (string, error) {
		c, err := r.GetCategory(ctx, *categoryID)
		return c.ClientID, err
	})
	if err != nil {
		return err
	}
	if owner != clientID {
		return core.ErrForbidden
	}
	return nil
}

func (s *LedgerService) fields(tx core.DailyTransaction, b core.MonthlyBudget) []any {
	return log.NewFields().
		WithTransaction(tx.ID, string(tx.Type), tx.Date.String(), tx.Amount).
		WithBudget(b.ClientID, b.ID, b.Year, b.Month, b.RemainingBalance).
		ToSlice()
}

func merge(orig core.DailyTransaction, in UpdateTransactionInput) core.DailyTransaction {
	next := orig
	if in.Description != nil {
		next.Description = strings.TrimSpace(*in.Description)
	}
	if in.Amount != nil {
		next.Amount = core.RoundCurrency(*in.Amount)
	}
	if in.Type != nil {
		next.Type = *in.Type
	}
	if in.Date != nil {
		next.Date = *in.Date
	}
	switch {
	case in.ClearCategory:
		next.CategoryID = nil
	case in.CategoryID != nil:
		next.CategoryID = copyID(in.CategoryID)
	}
	return next
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
