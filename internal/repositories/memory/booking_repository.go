package memory

import (
	"context"
	"strings"

	domain "github.com/helpora/api/internal/domain"
	"github.com/helpora/api/internal/repositories"
)

// BookingRepository stores booking aggregates in memory. Records are never
// removed; terminal bookings stay queryable for the audit trail.
type BookingRepository struct {
	state *state
}

// Insert adds a new booking aggregate.
func (r *BookingRepository) Insert(ctx context.Context, booking domain.BookingOrder) error {
	id := strings.TrimSpace(booking.ID)
	if id == "" {
		return conflictError("booking insert", "booking id is required")
	}

	unlock := r.state.lockWrites(ctx)
	defer unlock()
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	if _, exists := r.state.bookings[id]; exists {
		return conflictError("booking insert", "booking %s already exists", id)
	}
	r.state.bookings[id] = cloneBooking(booking)
	return nil
}

// FindByID returns the booking aggregate.
func (r *BookingRepository) FindByID(_ context.Context, bookingID string) (domain.BookingOrder, error) {
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()

	booking, ok := r.state.bookings[strings.TrimSpace(bookingID)]
	if !ok {
		return domain.BookingOrder{}, notFoundError("booking find", "booking %s not found", bookingID)
	}
	return cloneBooking(booking), nil
}

// Update writes the booking only when the stored status still matches
// expectedStatus. Racing transitions therefore produce exactly one winner;
// the loser receives a conflict error and must re-read.
func (r *BookingRepository) Update(ctx context.Context, booking domain.BookingOrder, expectedStatus domain.BookingStatus) (domain.BookingOrder, error) {
	id := strings.TrimSpace(booking.ID)

	unlock := r.state.lockWrites(ctx)
	defer unlock()
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	current, ok := r.state.bookings[id]
	if !ok {
		return domain.BookingOrder{}, notFoundError("booking update", "booking %s not found", id)
	}
	if current.Status != expectedStatus {
		return domain.BookingOrder{}, conflictError("booking update", "booking %s status is %s, expected %s", id, current.Status, expectedStatus)
	}

	stored := cloneBooking(booking)
	r.state.bookings[id] = stored
	return cloneBooking(stored), nil
}

// ListByCustomer returns the customer's bookings filtered and paged.
func (r *BookingRepository) ListByCustomer(_ context.Context, customerID string, filter repositories.BookingListFilter) (domain.CursorPage[domain.BookingOrder], error) {
	r.state.mu.RLock()
	matches := make([]domain.BookingOrder, 0)
	for _, booking := range r.state.bookings {
		if booking.CustomerID != strings.TrimSpace(customerID) {
			continue
		}
		if bookingMatches(booking, filter) {
			matches = append(matches, cloneBooking(booking))
		}
	}
	r.state.mu.RUnlock()

	return paginate(matches, func(b domain.BookingOrder) string { return b.ID }, filter.Pagination), nil
}

// ListByVendor returns the vendor's bookings filtered and paged.
func (r *BookingRepository) ListByVendor(_ context.Context, vendorID string, filter repositories.BookingListFilter) (domain.CursorPage[domain.BookingOrder], error) {
	r.state.mu.RLock()
	matches := make([]domain.BookingOrder, 0)
	for _, booking := range r.state.bookings {
		if booking.VendorID != strings.TrimSpace(vendorID) {
			continue
		}
		if bookingMatches(booking, filter) {
			matches = append(matches, cloneBooking(booking))
		}
	}
	r.state.mu.RUnlock()

	return paginate(matches, func(b domain.BookingOrder) string { return b.ID }, filter.Pagination), nil
}

func bookingMatches(booking domain.BookingOrder, filter repositories.BookingListFilter) bool {
	if filter.Status != "" && booking.Status != filter.Status {
		return false
	}
	if filter.Category != "" && booking.Category != filter.Category {
		return false
	}
	return true
}
