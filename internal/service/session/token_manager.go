package session

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

type tokenMeta struct {
	SessionID string
	ExpiresAt time.Time
}

type tokenManager struct {
	mu     sync.RWMutex
	tokens map[string]tokenMeta
	now    func() time.Time
}

func newTokenManager(now func() time.Time) *tokenManager {
	return &tokenManager{
		tokens: make(map[string]tokenMeta),
		now:    now,
	}
}

func (m *tokenManager) Issue(sessionID string, ttl time.Duration) (string, time.Time, error) {
	token, err := randomToken()
	if err != nil {
		return "", time.Time{}, err
	}
	meta := tokenMeta{
		SessionID: sessionID,
		ExpiresAt: m.now().Add(ttl),
	}
	m.mu.Lock()
	m.tokens[token] = meta
	m.mu.Unlock()
	return token, meta.ExpiresAt, nil
}

func (m *tokenManager) Validate(token string) (tokenMeta, bool) {
	m.mu.RLock()
	meta, ok := m.tokens[token]
	m.mu.RUnlock()
	if !ok {
		return tokenMeta{}, false
	}
	// expired tokens stay until Expire so their sessions are still pruned
	if m.now().After(meta.ExpiresAt) {
		return tokenMeta{}, false
	}
	return meta, true
}

// Expire drops expired tokens and returns the sessions that still have a
// live token.
func (m *tokenManager) Expire() map[string]struct{} {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	live := make(map[string]struct{}, len(m.tokens))
	for token, meta := range m.tokens {
		if now.After(meta.ExpiresAt) {
			delete(m.tokens, token)
			continue
		}
		live[meta.SessionID] = struct{}{}
	}
	return live
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
