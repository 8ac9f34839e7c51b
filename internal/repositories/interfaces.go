package repositories

import (
	"context"
	"time"

	domain "github.com/helpora/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Listings() ListingRepository
	Vendors() VendorRepository
	Carts() CartRepository
	Bookings() BookingRepository
	Reviews() ReviewRepository
	UnitOfWork
}

// ListingListFilter narrows listing list queries.
type ListingListFilter struct {
	Category   domain.Category
	Kind       domain.ListingKind
	OnlyActive bool
	Pagination domain.Pagination
}

// ListingRepository persists the vendor catalog. Listings are soft-deactivated
// via Update, never removed.
type ListingRepository interface {
	Insert(ctx context.Context, listing domain.Listing) error
	Update(ctx context.Context, listing domain.Listing) error
	FindByID(ctx context.Context, listingID string) (domain.Listing, error)
	ListByVendor(ctx context.Context, vendorID string, filter ListingListFilter) (domain.CursorPage[domain.Listing], error)
	ListByCategory(ctx context.Context, category domain.Category, filter ListingListFilter) (domain.CursorPage[domain.Listing], error)
}

// VendorRepository resolves vendor records for conflict and category checks.
type VendorRepository interface {
	Insert(ctx context.Context, vendor domain.Vendor) error
	FindByID(ctx context.Context, vendorID string) (domain.Vendor, error)
}

// CartRepository owns the single open cart per customer. Upsert enforces
// optimistic locking: when expectedUpdatedAt is non-nil the stored cart's
// UpdatedAt must match or a conflict error is returned; when nil the cart
// must not already exist. Delete honours the same lock so destroying a cart
// that moved on since it was read fails with a conflict instead of dropping
// lines written in between; a nil expectedUpdatedAt deletes unconditionally.
type CartRepository interface {
	GetOpen(ctx context.Context, customerID string) (domain.Cart, error)
	Upsert(ctx context.Context, cart domain.Cart, expectedUpdatedAt *time.Time) (domain.Cart, error)
	Delete(ctx context.Context, customerID string, expectedUpdatedAt *time.Time) error
}

// BookingListFilter narrows booking list queries.
type BookingListFilter struct {
	Status     domain.BookingStatus
	Category   domain.Category
	Pagination domain.Pagination
}

// BookingRepository persists booking aggregates. Update performs a
// compare-and-swap on the stored status: the write fails with a conflict
// error when the stored status differs from expectedStatus, guaranteeing a
// single winner among racing transitions.
type BookingRepository interface {
	Insert(ctx context.Context, booking domain.BookingOrder) error
	FindByID(ctx context.Context, bookingID string) (domain.BookingOrder, error)
	Update(ctx context.Context, booking domain.BookingOrder, expectedStatus domain.BookingStatus) (domain.BookingOrder, error)
	ListByCustomer(ctx context.Context, customerID string, filter BookingListFilter) (domain.CursorPage[domain.BookingOrder], error)
	ListByVendor(ctx context.Context, vendorID string, filter BookingListFilter) (domain.CursorPage[domain.BookingOrder], error)
}

// ReviewRepository persists reviews keyed by booking. Insert returns a
// conflict error when a review already exists for the booking.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) (domain.Review, error)
	FindByBooking(ctx context.Context, bookingID string) (domain.Review, error)
	ListByVendor(ctx context.Context, vendorID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error)
}
