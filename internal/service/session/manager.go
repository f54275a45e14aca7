// Package session maps anonymous bearer tokens to shopping sessions and keeps
// one open cart per session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cakeshop-cart/internal/domain"
	"cakeshop-cart/internal/kvstore"
	"cakeshop-cart/internal/notify"
	cartsvc "cakeshop-cart/internal/service/cart"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInvalidToken = errors.New("invalid token")

type Config struct {
	TTL       time.Duration
	KeyPrefix string
	TaxRate   decimal.Decimal
	Notifier  notify.Notifier
	Logger    *zap.Logger
	Now       func() time.Time
}

// Session is handed to the client when a session starts.
type Session struct {
	AccessToken string
	SessionID   string
	ExpiresAt   time.Time
}

type Manager struct {
	kv     kvstore.Store
	tokens *tokenManager
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	carts  map[string]*entry
	closed bool
}

type entry struct {
	ready chan struct{}
	store *cartsvc.Store
	err   error
}

func NewManager(kv kvstore.Store, cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 72 * time.Hour
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = cartsvc.DefaultKey
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		kv:     kv,
		tokens: newTokenManager(cfg.Now),
		cfg:    cfg,
		logger: cfg.Logger.Named("session"),
		carts:  make(map[string]*entry),
	}
}

// Issue starts a new session with an empty cart key.
func (m *Manager) Issue(ctx context.Context) (Session, error) {
	id := uuid.NewString()
	token, expiresAt, err := m.tokens.Issue(id, m.cfg.TTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	m.logger.Debug("session issued", zap.String("session_id", id))
	return Session{AccessToken: token, SessionID: id, ExpiresAt: expiresAt}, nil
}

func (m *Manager) Lookup(ctx context.Context, token string) (string, error) {
	meta, ok := m.tokens.Validate(token)
	if !ok {
		return "", ErrInvalidToken
	}
	return meta.SessionID, nil
}

func (m *Manager) TTLSeconds() int {
	return int(m.cfg.TTL.Seconds())
}

// CartKey is the durable key holding a session's cart.
func (m *Manager) CartKey(sessionID string) string {
	return m.cfg.KeyPrefix + ":" + sessionID
}

// Cart returns the session's store, opening it on first use. Concurrent callers
// for the same session share one open.
func (m *Manager) Cart(ctx context.Context, sessionID string) (*cartsvc.Store, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, domain.ErrStoreClosed
	}
	if e, ok := m.carts[sessionID]; ok {
		m.mu.Unlock()
		select {
		case <-e.ready:
			return e.store, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e := &entry{ready: make(chan struct{})}
	m.carts[sessionID] = e
	m.mu.Unlock()

	e.store, e.err = cartsvc.Open(ctx, m.kv, cartsvc.Options{
		Key:      m.CartKey(sessionID),
		TaxRate:  m.cfg.TaxRate,
		Notifier: m.cfg.Notifier,
		Logger:   m.cfg.Logger,
	})

	m.mu.Lock()
	if e.err == nil && m.closed {
		_ = e.store.Close()
		e.store, e.err = nil, domain.ErrStoreClosed
	}
	if e.err != nil && m.carts[sessionID] == e {
		delete(m.carts, sessionID)
	}
	m.mu.Unlock()
	close(e.ready)

	if e.err != nil {
		return nil, e.err
	}
	m.logger.Debug("cart opened",
		zap.String("session_id", sessionID),
		zap.Stringer("restored", e.store.Restored()),
	)
	return e.store, nil
}

// CartForToken resolves the token and returns its session's cart.
func (m *Manager) CartForToken(ctx context.Context, token string) (*cartsvc.Store, error) {
	id, err := m.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	return m.Cart(ctx, id)
}

// Prune drops expired tokens and closes the carts of sessions without a live
// token. Their carts stay in the durable store. A Cart call racing with Prune
// may get the closing store and see domain.ErrStoreClosed.
func (m *Manager) Prune() int {
	// sessions issued after Expire cannot have an entry yet while m.mu is held
	m.mu.Lock()
	live := m.tokens.Expire()
	stale := make(map[string]*entry)
	for id, e := range m.carts {
		if _, ok := live[id]; !ok {
			stale[id] = e
		}
	}
	m.mu.Unlock()

	closed := 0
	for id, e := range stale {
		<-e.ready
		if e.store != nil {
			_ = e.store.Close()
			closed++
		}
		// dropped only after Close returns, so no second store opens on the
		// same key while the old one drains
		m.mu.Lock()
		if m.carts[id] == e {
			delete(m.carts, id)
		}
		m.mu.Unlock()
	}
	if closed > 0 {
		m.logger.Info("closed expired carts", zap.Int("count", closed))
	}
	return closed
}

// Close stops every open cart. Later Cart calls fail with domain.ErrStoreClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	entries := make([]*entry, 0, len(m.carts))
	for id, e := range m.carts {
		entries = append(entries, e)
		delete(m.carts, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, e := range entries {
		<-e.ready
		if e.store != nil {
			errs = append(errs, e.store.Close())
		}
	}
	return errors.Join(errs...)
}
