package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/repository"
)

// BudgetService owns the lifecycle of monthly budgets.
type BudgetService struct {
	store     repository.Store
	publisher Publisher
	logger    *log.Logger
	opts      Options
	lookups   singleflight.Group
}

func NewBudgetService(store repository.Store, publisher Publisher, logger *log.Logger, opts Options) *BudgetService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &BudgetService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentBudget),
		opts:      opts.withDefaults(),
	}
}

// GetOrCreate returns the client's budget for year/month, creating an empty
// one when missing. salary overrides the client's profile salary for a new
// budget; an existing budget is returned unchanged.
func (s *BudgetService) GetOrCreate(ctx context.Context, clientID string, year, month int, salary *decimal.Decimal) (core.MonthlyBudget, error) {
	if err := core.ValidateYearMonth(year, month); err != nil {
		return core.MonthlyBudget{}, err
	}
	if salary != nil && salary.IsNegative() {
		return core.MonthlyBudget{}, core.ErrInvalidRange
	}

	key := fmt.Sprintf("%s/%04d-%02d", clientID, year, month)
	if salary != nil {
		key += "/" + salary.String()
	}
	// Identical concurrent lookups share one unit of work.
	v, err, _ := s.lookups.Do(key, func() (any, error) {
		var (
			b       core.MonthlyBudget
			created bool
		)
		err := runInTx(ctx, s.store, s.opts.MaxConflictRetries, s.logger, "get_or_create_budget", func(r repository.Repository) error {
			var err error
			b, created, err = getOrCreate(ctx, r, clientID, year, month, salary, s.opts)
			return err
		})
		if err != nil {
			return core.MonthlyBudget{}, err
		}
		if created {
			s.logger.InfoContext(ctx, "Monthly budget created",
				log.NewFields().WithBudget(b.ClientID, b.ID, b.Year, b.Month, b.RemainingBalance).ToSlice()...)
			publish(ctx, s.publisher, s.logger, core.NewBudgetEvent(core.EventBudgetCreated, b, s.opts.Now()))
		}
		return b, nil
	})
	if err != nil {
		return core.MonthlyBudget{}, err
	}
	return v.(core.MonthlyBudget), nil
}

func (s *BudgetService) Get(ctx context.Context, budgetID string) (core.MonthlyBudget, error) {
	return s.store.GetBudget(ctx, budgetID)
}

// List returns the client's budgets, newest month first.
func (s *BudgetService) List(ctx context.Context, clientID string) ([]core.MonthlyBudget, error) {
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	return s.store.ListBudgets(ctx, clientID)
}

// UpdateSalary sets the budget's salary. A positive percentage budget is
// recomputed from the new salary, which resets the remaining balance to the
// new effective amount.
func (s *BudgetService) UpdateSalary(ctx context.Context, budgetID string, salary decimal.Decimal) (core.MonthlyBudget, error) {
	if salary.IsNegative() {
		return core.MonthlyBudget{}, core.ErrInvalidRange
	}
	return s.mutate(ctx, "update_salary", budgetID, func(b *core.MonthlyBudget) error {
		b.MonthlySalary = core.RoundCurrency(salary)
		if b.IsPercentage && b.BudgetAmount.IsPositive() {
			return b.Rebase()
		}
		return nil
	})
}

// UpdateBudgetAmount replaces the budget policy, recomputes the daily budget
// and resets the remaining balance to the new effective amount.
func (s *BudgetService) UpdateBudgetAmount(ctx context.Context, budgetID string, amount decimal.Decimal, isPercentage bool) (core.MonthlyBudget, error) {
	policy := core.BudgetPolicy{Amount: core.RoundCurrency(amount), IsPercentage: isPercentage}
	if err := policy.Validate(); err != nil {
		return core.MonthlyBudget{}, err
	}
	return s.mutate(ctx, "update_budget_amount", budgetID, func(b *core.MonthlyBudget) error {
		b.BudgetAmount = policy.Amount
		b.IsPercentage = policy.IsPercentage
		return b.Rebase()
	})
}

// ApplyDelta moves the remaining balance by amount, up when isIncome and
// down otherwise. The daily budget is left as is.
func (s *BudgetService) ApplyDelta(ctx context.Context, budgetID string, amount decimal.Decimal, isIncome bool) (core.MonthlyBudget, error) {
	if !amount.IsPositive() {
		return core.MonthlyBudget{}, core.ErrInvalidAmount
	}
	var b core.MonthlyBudget
	err := runInTx(ctx, s.store, s.opts.MaxConflictRetries, s.logger, "apply_delta", func(r repository.Repository) error {
		var err error
		b, err = applyDelta(ctx, r, budgetID, amount, isIncome, s.opts)
		return err
	})
	if err != nil {
		return core.MonthlyBudget{}, err
	}
	publish(ctx, s.publisher, s.logger, core.NewBudgetEvent(core.EventBudgetUpdated, b, s.opts.Now()))
	return b, nil
}

// Delete removes the budget together with its transactions.
func (s *BudgetService) Delete(ctx context.Context, budgetID string) error {
	var b core.MonthlyBudget
	err := runInTx(ctx, s.store, s.opts.MaxConflictRetries, s.logger, "delete_budget", func(r repository.Repository) error {
		var err error
		if b, err = r.GetBudget(ctx, budgetID); err != nil {
			return err
		}
		return r.DeleteBudget(ctx, budgetID)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Monthly budget deleted",
		log.NewFields().WithBudget(b.ClientID, b.ID, b.Year, b.Month, b.RemainingBalance).ToSlice()...)
	publish(ctx, s.publisher, s.logger, core.NewBudgetEvent(core.EventBudgetDeleted, b, s.opts.Now()))
	return nil
}

func (s *BudgetService) mutate(ctx context.Context, op, budgetID string, change func(*core.MonthlyBudget) error) (core.MonthlyBudget, error) {
	var b core.MonthlyBudget
	err := runInTx(ctx, s.store, s.opts.MaxConflictRetries, s.logger, op, func(r repository.Repository) error {
		cur, err := r.GetBudget(ctx, budgetID)
		if err != nil {
			return err
		}
		if err := change(&cur); err != nil {
			return err
		}
		cur.UpdatedAt = s.opts.Now()
		b, err = r.UpdateBudget(ctx, cur)
		return err
	})
	if err != nil {
		return core.MonthlyBudget{}, err
	}
	s.logger.InfoContext(ctx, "Monthly budget updated",
		append(log.NewFields().WithOperation(op).
			WithBudget(b.ClientID, b.ID, b.Year, b.Month, b.RemainingBalance).ToSlice(),
			"daily_budget", b.DailyBudget.StringFixed(2))...)
	publish(ctx, s.publisher, s.logger, core.NewBudgetEvent(core.EventBudgetUpdated, b, s.opts.Now()))
	return b, nil
}

// getOrCreate finds or inserts the budget of a client's month inside r and
// reports whether it inserted one.
func getOrCreate(ctx context.Context, r repository.Repository, clientID string, year, month int, salary *decimal.Decimal, opts Options) (core.MonthlyBudget, bool, error) {
	b, err := r.FindBudget(ctx, clientID, year, month)
	if err == nil {
		return b, false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.MonthlyBudget{}, false, err
	}

	client, err := r.GetClient(ctx, clientID)
	if err != nil {
		return core.MonthlyBudget{}, false, err
	}
	s := client.Salary
	if salary != nil {
		s = *salary
	}

	nb := core.NewMonthlyBudget(opts.NewID(), clientID, year, month, core.RoundCurrency(s), opts.Now())
	if err := r.InsertBudget(ctx, nb); err != nil {
		if !errors.Is(err, core.ErrConflict) {
			return core.MonthlyBudget{}, false, err
		}
		// Someone else created it first.
		b, ferr := r.FindBudget(ctx, clientID, year, month)
		if ferr != nil {
			return core.MonthlyBudget{}, false, err
		}
		return b, false, nil
	}
	return nb, true, nil
}

// applyDelta is the only path by which transactions move a remaining balance.
func applyDelta(ctx context.Context, r repository.Repository, budgetID string, amount decimal.Decimal, isIncome bool, opts Options) (core.MonthlyBudget, error) {
	b, err := r.GetBudget(ctx, budgetID)
	if err != nil {
		return core.MonthlyBudget{}, err
	}
	b.ApplyDelta(amount, isIncome)
	b.UpdatedAt = opts.Now()
	return r.UpdateBudget(ctx, b)
}

func publish(ctx context.Context, p Publisher, logger *log.Logger, ev core.LedgerEvent) {
	if err := p.Publish(ctx, ev); err != nil {
		// The change is committed; subscribers catch up on the next event.
		logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, string(ev.Type),
			log.FieldBudgetID, ev.BudgetID,
			log.FieldError, err)
	}
}
