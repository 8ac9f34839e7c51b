package services

import (
	"context"

	domain "github.com/helpora/api/internal/domain"
	"github.com/helpora/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination    = domain.Pagination
	Category      = domain.Category
	Listing       = domain.Listing
	ListingKind   = domain.ListingKind
	PriceBasis    = domain.PriceBasis
	PriceMode     = domain.PriceMode
	Vendor        = domain.Vendor
	Cart          = domain.Cart
	CartLine      = domain.CartLine
	BookingOrder  = domain.BookingOrder
	BookingLine   = domain.BookingLine
	BookingStatus = domain.BookingStatus
	BookingTotals = domain.BookingTotals
	StatusChange  = domain.StatusChange
	Review        = domain.Review
	Address       = domain.Address
)

// CatalogService is the read/write surface over the vendor catalog. Reads
// treat inactive listings as absent; writes soft-deactivate, never delete.
type CatalogService interface {
	GetListing(ctx context.Context, listingID string) (Listing, error)
	GetPriceBasis(ctx context.Context, listingID string) (PriceBasis, error)
	ListByVendor(ctx context.Context, vendorID string, filter ListingFilter) (domain.CursorPage[Listing], error)
	ListByCategory(ctx context.Context, category Category, filter ListingFilter) (domain.CursorPage[Listing], error)
	UpsertListing(ctx context.Context, cmd UpsertListingCommand) (Listing, error)
	DeactivateListing(ctx context.Context, listingID string) (Listing, error)
}

// ListingFilter narrows catalog list reads.
type ListingFilter struct {
	Kind            ListingKind
	IncludeInactive bool
	Pagination      Pagination
}

// UpsertListingCommand creates or edits a listing on behalf of vendor management.
type UpsertListingCommand struct {
	ListingID  string
	VendorID   string
	Kind       ListingKind
	Category   Category
	Title      string
	PriceBasis PriceBasis
	IsActive   *bool
}

// CartPricer computes deterministic totals for a set of cart lines.
type CartPricer interface {
	Quote(ctx context.Context, category Category, lines []CartLine) (BookingTotals, error)
}

// CartService holds the single open cart per customer and turns it into a
// booking at checkout. Cross-vendor adds fail without touching the cart; the
// caller resolves the conflict via ReplaceWithItem.
type CartService interface {
	GetCart(ctx context.Context, customerID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddItemCommand) (Cart, error)
	ReplaceWithItem(ctx context.Context, cmd AddItemCommand) (Cart, error)
	UpdateQuantity(ctx context.Context, cmd UpdateQuantityCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveItemCommand) (Cart, error)
	Clear(ctx context.Context, customerID string) error
	Checkout(ctx context.Context, cmd CheckoutCommand) (BookingOrder, error)
	BookListing(ctx context.Context, cmd DirectBookingCommand) (BookingOrder, error)
}

// AddItemCommand adds a listing to the customer's cart.
type AddItemCommand struct {
	CustomerID    string
	ListingID     string
	Quantity      int
	DurationHours int
}

// UpdateQuantityCommand shifts a line's quantity by Delta, removing the line
// when the result reaches zero.
type UpdateQuantityCommand struct {
	CustomerID string
	ListingID  string
	Delta      int
}

// RemoveItemCommand drops a line from the cart.
type RemoveItemCommand struct {
	CustomerID string
	ListingID  string
}

// CheckoutCommand converts the open cart into a pending booking.
type CheckoutCommand struct {
	CustomerID string
	AddressID  string
	PaymentRef string
}

// DirectBookingCommand books a single listing without an intermediate cart.
type DirectBookingCommand struct {
	CustomerID    string
	ListingID     string
	Quantity      int
	DurationHours int
	AddressID     string
	PaymentRef    string
}

// BookingService owns the booking state machine. Transitions are the only
// mutations a booking accepts after creation, and each successful transition
// appends exactly one status history entry.
type BookingService interface {
	CreateFromCart(ctx context.Context, cmd CreateBookingCommand) (BookingOrder, error)
	GetBooking(ctx context.Context, bookingID string) (BookingOrder, error)
	ListByCustomer(ctx context.Context, customerID string, filter BookingFilter) (domain.CursorPage[BookingOrder], error)
	ListByVendor(ctx context.Context, vendorID string, filter BookingFilter) (domain.CursorPage[BookingOrder], error)
	Accept(ctx context.Context, cmd TransitionCommand) (BookingOrder, error)
	Decline(ctx context.Context, cmd ReasonedTransitionCommand) (BookingOrder, error)
	Start(ctx context.Context, cmd TransitionCommand) (BookingOrder, error)
	Complete(ctx context.Context, cmd TransitionCommand) (BookingOrder, error)
	Cancel(ctx context.Context, cmd ReasonedTransitionCommand) (BookingOrder, error)
}

// CreateBookingCommand materialises a priced cart snapshot as a pending booking.
type CreateBookingCommand struct {
	Cart       Cart
	Totals     BookingTotals
	AddressID  string
	PaymentRef string
	Note       string
}

// BookingFilter narrows booking list reads.
type BookingFilter struct {
	Status     BookingStatus
	Category   Category
	Pagination Pagination
}

// TransitionCommand identifies the booking an operator or customer advances.
type TransitionCommand struct {
	BookingID string
	ActorID   string
}

// ReasonedTransitionCommand carries the mandatory reason for decline/cancel.
type ReasonedTransitionCommand struct {
	BookingID string
	ActorID   string
	Reason    string
}

// BookingEvent captures metadata for emitted booking lifecycle events.
type BookingEvent struct {
	Type           string        `json:"type"`
	BookingID      string        `json:"bookingId"`
	CustomerID     string        `json:"customerId"`
	VendorID       string        `json:"vendorId"`
	PreviousStatus BookingStatus `json:"previousStatus,omitempty"`
	CurrentStatus  BookingStatus `json:"currentStatus"`
	Reason         string        `json:"reason,omitempty"`
	OccurredAt     string        `json:"occurredAt"`
}

// BookingEventPublisher publishes booking domain events for downstream consumers.
type BookingEventPublisher interface {
	PublishBookingEvent(ctx context.Context, event BookingEvent) error
}

// ReviewService gates review submission on booking completion and enforces
// the one-review-per-booking rule.
type ReviewService interface {
	Submit(ctx context.Context, cmd SubmitReviewCommand) (Review, error)
	GetByBooking(ctx context.Context, bookingID string) (Review, error)
	Eligibility(ctx context.Context, bookingID string) (ReviewEligibility, error)
	ListByVendor(ctx context.Context, vendorID string, pager Pagination) (domain.CursorPage[Review], error)
}

// SubmitReviewCommand submits the single review allowed for a completed booking.
type SubmitReviewCommand struct {
	BookingID  string
	CustomerID string
	Rating     int
	Comment    string
}

// ReviewEligibility reports whether the "leave review" action is available
// for a booking and why not when it is not.
type ReviewEligibility struct {
	Eligible bool
	Reason   string
}

// AddressResolver resolves a customer's saved address at checkout. The core
// treats it as a fast synchronous collaborator and performs no retries.
type AddressResolver interface {
	ResolveAddress(ctx context.Context, customerID string, addressID string) (Address, error)
}

// PaymentAuthorizer captures the payment reference for a checkout total.
// Retry policy belongs to the caller, not this core.
type PaymentAuthorizer interface {
	Authorize(ctx context.Context, paymentRef string, amount int64, currency string) error
}

// VendorDirectory validates vendor existence and category consistency.
type VendorDirectory interface {
	GetVendor(ctx context.Context, vendorID string) (Vendor, error)
}

// repoVendorDirectory adapts the vendor repository to the VendorDirectory surface.
type repoVendorDirectory struct {
	vendors repositories.VendorRepository
}

// NewVendorDirectory wraps a vendor repository as a VendorDirectory.
func NewVendorDirectory(vendors repositories.VendorRepository) VendorDirectory {
	return repoVendorDirectory{vendors: vendors}
}

func (d repoVendorDirectory) GetVendor(ctx context.Context, vendorID string) (Vendor, error) {
	return d.vendors.FindByID(ctx, vendorID)
}
