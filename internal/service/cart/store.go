// Package cart owns live carts. A Store applies every mutation through one
// goroutine, persists the result, and only then accepts the next command.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cartlogic "cakeshop-cart/internal/cart"
	"cakeshop-cart/internal/domain"
	"cakeshop-cart/internal/kvstore"
	"cakeshop-cart/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultKey is used when Options.Key is empty.
const DefaultKey = "cart"

// RestoreResult reports what Open found in the durable store.
type RestoreResult int

const (
	RestoreEmpty RestoreResult = iota
	RestoreLoaded
	RestoreDiscardedCorrupt
)

func (r RestoreResult) String() string {
	switch r {
	case RestoreEmpty:
		return "empty"
	case RestoreLoaded:
		return "loaded"
	case RestoreDiscardedCorrupt:
		return "discarded_corrupt"
	default:
		return "unknown"
	}
}

type Options struct {
	Key      string
	TaxRate  decimal.Decimal
	Notifier notify.Notifier
	Logger   *zap.Logger
	NewID    func() string
	Now      func() time.Time
}

// AddItemInput carries the catalog data snapshotted into a new line.
type AddItemInput struct {
	ProductID       string
	Name            string
	ImageURL        string
	UnitPrice       decimal.Decimal
	Quantity        int
	SelectedOptions map[string]string
}

type Store struct {
	kv       kvstore.Store
	key      string
	taxRate  decimal.Decimal
	notifier notify.Notifier
	logger   *zap.Logger
	newID    func() string
	now      func() time.Time
	restored RestoreResult

	requests  chan request
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.RWMutex
	state domain.State
}

type request struct {
	ctx      context.Context
	cmd      cartlogic.Command
	checkout bool
	reply    chan result
}

type result struct {
	snapshot domain.Snapshot
	order    domain.Snapshot
	err      error
}

// Open restores the cart stored under opts.Key and starts the store. A missing
// or corrupted payload yields an empty cart; only a failing read is an error.
func Open(ctx context.Context, kv kvstore.Store, opts Options) (*Store, error) {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	s := &Store{
		kv:       kv,
		key:      opts.Key,
		taxRate:  opts.TaxRate,
		notifier: opts.Notifier,
		logger:   opts.Logger.Named("cart").With(zap.String("key", opts.Key)),
		newID:    opts.NewID,
		now:      opts.Now,
		requests: make(chan request),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	state, restored, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.state = state
	s.restored = restored

	go s.run()
	return s, nil
}

func (s *Store) load(ctx context.Context) (domain.State, RestoreResult, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return domain.State{}, RestoreEmpty, nil
		}
		return domain.State{}, RestoreEmpty, fmt.Errorf("load cart %q: %w", s.key, err)
	}
	state, err := cartlogic.Decode(raw)
	if err != nil {
		s.logger.Warn("discarding corrupted cart payload", zap.Error(err), zap.Int("bytes", len(raw)))
		return domain.State{}, RestoreDiscardedCorrupt, nil
	}
	s.logger.Debug("cart restored", zap.Int("lines", len(state.Items)))
	return state, RestoreLoaded, nil
}

func (s *Store) Key() string { return s.key }

func (s *Store) Restored() RestoreResult { return s.restored }

// State returns the cart as of the last completed mutation with totals
// computed now.
func (s *Store) State() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cartlogic.Snapshot(s.state, s.taxRate)
}

func (s *Store) AddItem(ctx context.Context, in AddItemInput) (domain.Snapshot, error) {
	return s.mutate(ctx, cartlogic.AddItem{
		LineID:          s.newID(),
		ProductID:       in.ProductID,
		Name:            in.Name,
		ImageURL:        in.ImageURL,
		UnitPrice:       in.UnitPrice,
		Quantity:        in.Quantity,
		SelectedOptions: in.SelectedOptions,
		AddedAt:         s.now(),
	})
}

func (s *Store) RemoveItem(ctx context.Context, lineID string) (domain.Snapshot, error) {
	return s.mutate(ctx, cartlogic.RemoveItem{LineID: lineID})
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it.
func (s *Store) UpdateQuantity(ctx context.Context, lineID string, quantity int) (domain.Snapshot, error) {
	return s.mutate(ctx, cartlogic.UpdateQuantity{LineID: lineID, Quantity: quantity})
}

func (s *Store) ApplyDiscount(ctx context.Context, amount decimal.Decimal) (domain.Snapshot, error) {
	return s.mutate(ctx, cartlogic.ApplyDiscount{Amount: amount})
}

func (s *Store) Clear(ctx context.Context) (domain.Snapshot, error) {
	return s.mutate(ctx, cartlogic.ClearCart{})
}

// Checkout returns the final cart and empties it in the same step.
func (s *Store) Checkout(ctx context.Context) (order, cart domain.Snapshot, err error) {
	res := s.submit(ctx, request{ctx: ctx, cmd: cartlogic.ClearCart{}, checkout: true})
	return res.order, res.snapshot, res.err
}

// Close stops the store after the mutation in progress, if any, completes.
func (s *Store) Close() error {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
	return nil
}

func (s *Store) mutate(ctx context.Context, cmd cartlogic.Command) (domain.Snapshot, error) {
	res := s.submit(ctx, request{ctx: ctx, cmd: cmd})
	return res.snapshot, res.err
}

// submit hands req to the owner goroutine. Once accepted, the request always
// runs to completion and the caller waits for it.
func (s *Store) submit(ctx context.Context, req request) result {
	req.reply = make(chan result, 1)
	select {
	case <-s.quit:
		return result{err: domain.ErrStoreClosed}
	default:
	}
	select {
	case s.requests <- req:
	case <-s.quit:
		return result{err: domain.ErrStoreClosed}
	case <-ctx.Done():
		return result{err: ctx.Err()}
	}
	return <-req.reply
}

func (s *Store) run() {
	defer close(s.done)
	for {
		select {
		case req := <-s.requests:
			req.reply <- s.apply(req)
		case <-s.quit:
			return
		}
	}
}

func (s *Store) apply(req request) result {
	current := s.state // only run writes s.state

	var order domain.Snapshot
	if req.checkout {
		if len(current.Items) == 0 {
			return result{snapshot: cartlogic.Snapshot(current, s.taxRate), err: fmt.Errorf("%w: cart is empty", domain.ErrInvalidInput)}
		}
		order = cartlogic.Snapshot(current, s.taxRate)
	}

	next, ev, err := cartlogic.Reduce(current, req.cmd)
	if err != nil {
		return result{snapshot: cartlogic.Snapshot(current, s.taxRate), err: err}
	}

	ctx := context.WithoutCancel(req.ctx)
	syncErr := s.persist(ctx, next)

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	if req.checkout {
		s.dispatch(ctx, "checkout", fmt.Sprintf("Order placed for %d item(s)", order.Totals.ItemCount))
	} else {
		s.notifyEvent(ctx, ev)
	}

	res := result{snapshot: cartlogic.Snapshot(next, s.taxRate), order: order}
	if syncErr != nil {
		s.logger.Warn("cart change applied but not persisted", zap.String("event", ev.Kind.String()), zap.Error(syncErr))
		res.err = fmt.Errorf("%w: %w", domain.ErrPersistenceSync, syncErr)
	} else {
		s.logger.Debug("cart change applied", zap.String("event", ev.Kind.String()), zap.Int("lines", len(next.Items)))
	}
	return res
}

func (s *Store) persist(ctx context.Context, state domain.State) error {
	raw, err := cartlogic.Encode(state)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return s.kv.Set(ctx, s.key, raw)
}

func (s *Store) notifyEvent(ctx context.Context, ev cartlogic.Event) {
	name := ev.Line.Name
	if name == "" {
		name = ev.Line.ProductID
	}
	switch ev.Kind {
	case cartlogic.EventItemAdded, cartlogic.EventItemMerged:
		s.dispatch(ctx, ev.Kind.String(), fmt.Sprintf("Added %d x %s to your cart", ev.Delta, name))
	case cartlogic.EventItemRemoved:
		s.dispatch(ctx, ev.Kind.String(), fmt.Sprintf("Removed %s from your cart", name))
	}
}

// dispatch delivers a notification without blocking the command queue.
func (s *Store) dispatch(ctx context.Context, kind, message string) {
	n := notify.Notification{CartKey: s.key, Kind: kind, Message: message}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("notifier panicked", zap.Any("panic", r))
			}
		}()
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Debug("notification not delivered", zap.String("kind", kind), zap.Error(err))
		}
	}()
}
