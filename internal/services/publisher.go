package services

import (
	"context"
	"errors"

	"saldo/internal/core"
)

// Publisher delivers committed ledger events to an outside audience.
type Publisher interface {
	Publish(ctx context.Context, ev core.LedgerEvent) error
}

// Publishers fans an event out to every non-nil publisher and joins their
// errors.
type Publishers []Publisher

func (p Publishers) Publish(ctx context.Context, ev core.LedgerEvent) error {
	var errs []error
	for _, pub := range p {
		if pub == nil {
			continue
		}
		if err := pub.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev core.LedgerEvent) error

func (f PublisherFunc) Publish(ctx context.Context, ev core.LedgerEvent) error {
	return f(ctx, ev)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, core.LedgerEvent) error { return nil }
