package seed

import (
	"context"
	"errors"
	"testing"

	"cakeshop-cart/internal/domain"
)

type stubWriter struct {
	saved  []domain.Product
	failAt int
}

func (s *stubWriter) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	if s.failAt > 0 && len(s.saved)+1 == s.failAt {
		return nil, errors.New("boom")
	}
	s.saved = append(s.saved, p)
	return &p, nil
}

func TestApply(t *testing.T) {
	w := &stubWriter{}
	n, err := Apply(context.Background(), w)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n != len(Cakes) || len(w.saved) != len(Cakes) {
		t.Fatalf("expected %d products, got %d", len(Cakes), n)
	}
	for _, p := range w.saved {
		if p.ID == "" || p.Name == "" || p.Price.IsNegative() {
			t.Fatalf("invalid seed product %+v", p)
		}
	}
}

func TestApplyStopsOnError(t *testing.T) {
	w := &stubWriter{failAt: 2}
	n, err := Apply(context.Background(), w)
	if err == nil {
		t.Fatalf("expected error")
	}
	if n != 1 {
		t.Fatalf("expected 1 product saved before failure, got %d", n)
	}
}
