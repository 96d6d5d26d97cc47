package health

import (
	"context"
	"fmt"
)

// Pinger is anything that can prove it reaches its backing store, such as
// a bundle.Router.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker reports whether model bundles can be listed.
type StoreChecker struct {
	store   Pinger
	backend string
}

// NewStoreChecker creates a checker for a bundle store. backend only labels
// errors.
func NewStoreChecker(store Pinger, backend string) *StoreChecker {
	return &StoreChecker{store: store, backend: backend}
}

// HealthCheck pings the store.
func (s *StoreChecker) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%s bundle store: %w", s.backend, err)
	}
	return nil
}
