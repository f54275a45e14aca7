// Package notify delivers user-visible cart confirmations. Delivery is best
// effort and never affects cart state.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Notification is a human-readable confirmation for one cart.
type Notification struct {
	CartKey string
	Kind    string
	Message string
}

// Notifier is a notification sink.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Log writes notifications to a zap logger.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, n Notification) error {
	l.logger.Info(n.Message, zap.String("cart", n.CartKey), zap.String("kind", n.Kind))
	return nil
}

// Fanout forwards to every sink and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
