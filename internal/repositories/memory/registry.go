package memory

import (
	"context"
	"sync"

	domain "github.com/helpora/api/internal/domain"
	"github.com/helpora/api/internal/repositories"
)

// state holds every collection behind a single lock so transactional
// snapshots observe a consistent view. writeMu gates plain writes against the
// snapshot/restore window of a transaction; without it a rollback would wipe
// unrelated writes that landed mid-transaction.
type state struct {
	mu      sync.RWMutex
	writeMu sync.Mutex

	listings map[string]domain.Listing
	vendors  map[string]domain.Vendor
	carts    map[string]domain.Cart
	bookings map[string]domain.BookingOrder
	reviews  map[string]domain.Review
}

// txContextKey marks contexts issued to a transaction body. Writes carrying
// the marker already run under writeMu and must not re-acquire it.
type txContextKey struct{}

func inTx(ctx context.Context) bool {
	marked, _ := ctx.Value(txContextKey{}).(bool)
	return marked
}

// lockWrites blocks the caller while a transaction holds the write gate.
// Writes issued from inside the transaction pass straight through.
func (s *state) lockWrites(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.writeMu.Lock()
	return s.writeMu.Unlock
}

func newState() *state {
	return &state{
		listings: make(map[string]domain.Listing),
		vendors:  make(map[string]domain.Vendor),
		carts:    make(map[string]domain.Cart),
		bookings: make(map[string]domain.BookingOrder),
		reviews:  make(map[string]domain.Review),
	}
}

func (s *state) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dup := newState()
	for id, listing := range s.listings {
		dup.listings[id] = cloneListing(listing)
	}
	for id, vendor := range s.vendors {
		dup.vendors[id] = vendor
	}
	for id, cart := range s.carts {
		dup.carts[id] = cloneCart(cart)
	}
	for id, booking := range s.bookings {
		dup.bookings[id] = cloneBooking(booking)
	}
	for id, review := range s.reviews {
		dup.reviews[id] = review
	}
	return dup
}

func (s *state) restore(from *state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = from.listings
	s.vendors = from.vendors
	s.carts = from.carts
	s.bookings = from.bookings
	s.reviews = from.reviews
}

// Registry bundles in-memory repositories sharing one consistent state. It
// backs tests and local development without a Firestore dependency.
type Registry struct {
	state *state

	listings *ListingRepository
	vendors  *VendorRepository
	carts    *CartRepository
	bookings *BookingRepository
	reviews  *ReviewRepository
}

// NewRegistry constructs an empty in-memory registry.
func NewRegistry() *Registry {
	st := newState()
	return &Registry{
		state:    st,
		listings: &ListingRepository{state: st},
		vendors:  &VendorRepository{state: st},
		carts:    &CartRepository{state: st},
		bookings: &BookingRepository{state: st},
		reviews:  &ReviewRepository{state: st},
	}
}

// Close implements repositories.Registry; the memory backend holds no resources.
func (r *Registry) Close(context.Context) error { return nil }

// Listings returns the listing repository.
func (r *Registry) Listings() repositories.ListingRepository { return r.listings }

// Vendors returns the vendor repository.
func (r *Registry) Vendors() repositories.VendorRepository { return r.vendors }

// Carts returns the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Bookings returns the booking repository.
func (r *Registry) Bookings() repositories.BookingRepository { return r.bookings }

// Reviews returns the review repository.
func (r *Registry) Reviews() repositories.ReviewRepository { return r.reviews }

// RunInTx executes fn with rollback-on-error semantics. The write gate is
// held for the whole transaction, so plain writes from other callers wait
// until commit or rollback instead of landing inside the snapshot window and
// being wiped by a restore. Transactions serialize against each other through
// the same gate.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	r.state.writeMu.Lock()
	defer r.state.writeMu.Unlock()

	snapshot := r.state.snapshot()
	if err := fn(context.WithValue(ctx, txContextKey{}, true)); err != nil {
		r.state.restore(snapshot)
		return err
	}
	return nil
}
