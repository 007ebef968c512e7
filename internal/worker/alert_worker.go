// Package worker evaluates committed ledger activity against budget limits
// and records alerts when a limit is crossed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/repository"
)

// AlertWorkerConfig holds configuration for the alert worker
type AlertWorkerConfig struct {
	// SweepInterval is how often every budget of the current month is
	// re-evaluated (default: 15m)
	SweepInterval time.Duration

	// Now returns the current time (default: time.Now in UTC)
	Now func() time.Time

	// NewID generates alert ids (default: random UUIDs)
	NewID func() string
}

// DefaultAlertWorkerConfig returns sensible defaults
func DefaultAlertWorkerConfig() AlertWorkerConfig {
	return AlertWorkerConfig{
		SweepInterval: 15 * time.Minute,
		Now:           func() time.Time { return time.Now().UTC() },
		NewID:         uuid.NewString,
	}
}

// AlertWorker turns ledger events and periodic sweeps into budget alerts.
type AlertWorker struct {
	repo   repository.Repository
	alerts repository.AlertStore
	logger *log.Logger
	config AlertWorkerConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewAlertWorker(repo repository.Repository, alerts repository.AlertStore, logger *log.Logger, config AlertWorkerConfig) *AlertWorker {
	d := DefaultAlertWorkerConfig()
	if config.SweepInterval <= 0 {
		config.SweepInterval = d.SweepInterval
	}
	if config.Now == nil {
		config.Now = d.Now
	}
	if config.NewID == nil {
		config.NewID = d.NewID
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &AlertWorker{
		repo:   repo,
		alerts: alerts,
		logger: logger.WithComponent(log.ComponentWorker),
		config: config,
	}
}

// HandleEvent evaluates the budget an event touched on the event's date.
// Events that carry no transaction are ignored, as are events whose budget
// has since been deleted.
func (w *AlertWorker) HandleEvent(ctx context.Context, ev core.LedgerEvent) error {
	if !ev.Type.IsTransaction() {
		return nil
	}
	b, err := w.repo.GetBudget(ctx, ev.BudgetID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.DebugContext(ctx, "Skipping event for deleted budget",
			log.FieldEventType, ev.Type,
			log.FieldBudgetID, ev.BudgetID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load budget %s: %w", ev.BudgetID, err)
	}

	day := ev.Date
	if day.IsZero() {
		day = core.DateOf(w.config.Now())
	}
	_, err = w.evaluate(ctx, b, day)
	return err
}

// Sweep evaluates every budget of now's month for now's day and returns
// how many new alerts were recorded.
func (w *AlertWorker) Sweep(ctx context.Context, now time.Time) (int, error) {
	today := core.DateOf(now)
	budgets, err := w.repo.ListBudgetsForMonth(ctx, today.Year(), today.Month())
	if err != nil {
		return 0, fmt.Errorf("list budgets for %04d-%02d: %w", today.Year(), today.Month(), err)
	}

	recorded := 0
	var errs []error
	for _, b := range budgets {
		if err := ctx.Err(); err != nil {
			return recorded, err
		}
		n, err := w.evaluate(ctx, b, today)
		recorded += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	w.logger.DebugContext(ctx, "Alert sweep finished",
		log.FieldOperation, log.OpSweep,
		"budgets", len(budgets),
		"recorded", recorded)
	return recorded, errors.Join(errs...)
}

func (w *AlertWorker) evaluate(ctx context.Context, b core.MonthlyBudget, day core.Date) (int, error) {
	recorded := 0
	if b.RemainingBalance.IsNegative() {
		ok, err := w.record(ctx, b, core.AlertBudgetExhausted, day, b.RemainingBalance)
		if err != nil {
			return recorded, err
		}
		if ok {
			recorded++
		}
	}

	if !b.DailyBudget.IsPositive() || !b.Covers(day) {
		return recorded, nil
	}
	spent, err := w.repo.SumAmounts(ctx, b.ClientID, core.Expense, day, day)
	if err != nil {
		return recorded, fmt.Errorf("sum expenses of %s on %s: %w", b.ClientID, day, err)
	}
	if spent.GreaterThan(b.DailyBudget) {
		ok, err := w.record(ctx, b, core.AlertDailyBudgetExceeded, day, spent)
		if err != nil {
			return recorded, err
		}
		if ok {
			recorded++
		}
	}
	return recorded, nil
}

func (w *AlertWorker) record(ctx context.Context, b core.MonthlyBudget, kind core.AlertKind, day core.Date, amount decimal.Decimal) (bool, error) {
	a := core.BudgetAlert{
		ID:        w.config.NewID(),
		ClientID:  b.ClientID,
		BudgetID:  b.ID,
		Kind:      kind,
		Date:      day,
		Amount:    amount,
		CreatedAt: w.config.Now(),
	}
	created, err := w.alerts.RecordAlert(ctx, a)
	if err != nil {
		return false, fmt.Errorf("record %s alert for budget %s: %w", kind, b.ID, err)
	}
	if created {
		w.logger.InfoContext(ctx, "Budget alert recorded",
			log.FieldClientID, b.ClientID,
			log.FieldBudgetID, b.ID,
			log.FieldAlertKind, kind,
			log.FieldDate, day.String(),
			log.FieldAmount, amount.StringFixed(2))
	}
	return created, nil
}

// Start begins the sweep loop. Returns an error if already running.
func (w *AlertWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("alert worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Alert worker started",
		"sweep_interval", w.config.SweepInterval)
	return nil
}

// Stop gracefully stops the worker and waits for the loop to exit.
func (w *AlertWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	select {
	case <-doneCh:
		w.logger.InfoContext(ctx, "Alert worker stopped gracefully")
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Alert worker stop timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *AlertWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *AlertWorker) runLoop(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *AlertWorker) sweep(ctx context.Context) {
	if _, err := w.Sweep(ctx, w.config.Now()); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Alert sweep failed",
			log.FieldOperation, log.OpSweep,
			log.FieldError, err)
	}
}
