package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/repository"
)

// Options holds the knobs shared by the budget and ledger services.
type Options struct {
	// MaxConflictRetries is how many times a unit of work that lost a
	// concurrent write is re-run before ErrConflict is returned (default: 3).
	MaxConflictRetries int

	// Now returns the current time (default: time.Now in UTC).
	Now func() time.Time

	// NewID generates entity ids (default: random UUIDs).
	NewID func() string
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		MaxConflictRetries: 3,
		Now:                func() time.Time { return time.Now().UTC() },
		NewID:              uuid.NewString,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxConflictRetries < 0 {
		o.MaxConflictRetries = 0
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	if o.NewID == nil {
		o.NewID = d.NewID
	}
	return o
}

// runInTx runs fn as one unit of work, re-running it from scratch while it
// fails with core.ErrConflict, at most retries extra times.
func runInTx(ctx context.Context, store repository.Store, retries int, logger *log.Logger, op string, fn func(repository.Repository) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = store.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, core.ErrConflict) {
			return err
		}
		if attempt >= retries {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.DebugContext(ctx, "Retrying unit of work after write conflict",
			log.FieldOperation, op,
			log.FieldAttempt, attempt+1)
	}
	logger.WarnContext(ctx, "Unit of work gave up after write conflicts",
		log.FieldOperation, op,
		log.FieldAttempt, retries+1,
		log.FieldError, err)
	return err
}
