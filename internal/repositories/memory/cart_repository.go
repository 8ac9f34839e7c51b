package memory

import (
	"context"
	"strings"
	"time"

	domain "github.com/helpora/api/internal/domain"
)

// CartRepository keeps at most one open cart per customer in memory.
type CartRepository struct {
	state *state
}

// GetOpen returns the customer's open cart when present.
func (r *CartRepository) GetOpen(_ context.Context, customerID string) (domain.Cart, error) {
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()

	cart, ok := r.state.carts[strings.TrimSpace(customerID)]
	if !ok {
		return domain.Cart{}, notFoundError("cart get", "no open cart for customer %s", customerID)
	}
	return cloneCart(cart), nil
}

// Upsert stores the cart with an optimistic lock on UpdatedAt. A nil
// expectedUpdatedAt asserts no cart exists yet, preserving the single open
// cart invariant when two adds race on cart creation.
func (r *CartRepository) Upsert(ctx context.Context, cart domain.Cart, expectedUpdatedAt *time.Time) (domain.Cart, error) {
	customerID := strings.TrimSpace(cart.CustomerID)
	if customerID == "" {
		return domain.Cart{}, conflictError("cart upsert", "customer id is required")
	}

	unlock := r.state.lockWrites(ctx)
	defer unlock()
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	current, exists := r.state.carts[customerID]
	if expectedUpdatedAt == nil {
		if exists {
			return domain.Cart{}, conflictError("cart upsert", "cart already exists for customer %s", customerID)
		}
	} else {
		if !exists {
			return domain.Cart{}, notFoundError("cart upsert", "no open cart for customer %s", customerID)
		}
		if !current.UpdatedAt.Equal(expectedUpdatedAt.UTC()) {
			return domain.Cart{}, conflictError("cart upsert", "cart for customer %s was modified concurrently", customerID)
		}
	}

	stored := cloneCart(cart)
	r.state.carts[customerID] = stored
	return cloneCart(stored), nil
}

// Delete destroys the open cart. Missing carts surface as not-found so a
// double clear is visible to the caller. A non-nil expectedUpdatedAt arms the
// optimistic lock: a cart whose UpdatedAt has moved on stays untouched and
// the delete fails with a conflict.
func (r *CartRepository) Delete(ctx context.Context, customerID string, expectedUpdatedAt *time.Time) error {
	id := strings.TrimSpace(customerID)

	unlock := r.state.lockWrites(ctx)
	defer unlock()
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	current, exists := r.state.carts[id]
	if !exists {
		return notFoundError("cart delete", "no open cart for customer %s", id)
	}
	if expectedUpdatedAt != nil && !current.UpdatedAt.Equal(expectedUpdatedAt.UTC()) {
		return conflictError("cart delete", "cart for customer %s was modified concurrently", id)
	}
	delete(r.state.carts, id)
	return nil
}
