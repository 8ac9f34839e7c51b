package memory

import (
	"context"
	"strings"

	domain "github.com/helpora/api/internal/domain"
)

// ReviewRepository stores reviews keyed by booking ID, enforcing the
// one-review-per-booking constraint at the storage layer.
type ReviewRepository struct {
	state *state
}

// Insert adds a review, failing with a conflict when the booking already has one.
func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	bookingID := strings.TrimSpace(review.BookingID)
	if bookingID == "" {
		return domain.Review{}, conflictError("review insert", "booking id is required")
	}

	unlock := r.state.lockWrites(ctx)
	defer unlock()
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	if _, exists := r.state.reviews[bookingID]; exists {
		return domain.Review{}, conflictError("review insert", "booking %s already reviewed", bookingID)
	}
	r.state.reviews[bookingID] = review
	return review, nil
}

// FindByBooking returns the review tied to the booking when present.
func (r *ReviewRepository) FindByBooking(_ context.Context, bookingID string) (domain.Review, error) {
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()

	review, ok := r.state.reviews[strings.TrimSpace(bookingID)]
	if !ok {
		return domain.Review{}, notFoundError("review find", "no review for booking %s", bookingID)
	}
	return review, nil
}

// ListByVendor returns the vendor's reviews paged by review ID.
func (r *ReviewRepository) ListByVendor(_ context.Context, vendorID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	r.state.mu.RLock()
	matches := make([]domain.Review, 0)
	for _, review := range r.state.reviews {
		if review.VendorID == strings.TrimSpace(vendorID) {
			matches = append(matches, review)
		}
	}
	r.state.mu.RUnlock()

	return paginate(matches, func(rv domain.Review) string { return rv.ID }, pager), nil
}
