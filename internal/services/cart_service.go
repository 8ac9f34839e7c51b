package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/helpora/api/internal/domain"
	"github.com/helpora/api/internal/repositories"
)

const (
	cartIDPrefix = "crt_"

	// cartUpsertRetries bounds the read-compare-write loop when concurrent
	// mutations race on the same customer's cart.
	cartUpsertRetries = 3
)

var (
	// ErrCartInvalidInput indicates the caller supplied invalid input.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartNotFound indicates the customer has no open cart.
	ErrCartNotFound = errors.New("cart: not found")
	// ErrCartVendorConflict indicates an add would mix vendors in one cart.
	// The cart is left untouched; the caller chooses keep or clear-and-add.
	ErrCartVendorConflict = errors.New("cart: vendor conflict")
	// ErrCartEmpty indicates checkout was attempted on an empty cart.
	ErrCartEmpty = errors.New("cart: empty")
	// ErrCartConflict indicates concurrent modifications exhausted retries.
	ErrCartConflict = errors.New("cart: conflict")
	// ErrCartUnavailable indicates the cart backend cannot serve the request.
	ErrCartUnavailable = errors.New("cart: unavailable")
	// ErrCheckoutPaymentFailed indicates the payment authorization was rejected.
	ErrCheckoutPaymentFailed = errors.New("cart: payment authorization failed")
)

// listingProvider narrows CatalogService to the lookup the cart needs.
type listingProvider interface {
	GetListing(ctx context.Context, listingID string) (Listing, error)
}

// bookingCreator narrows BookingService to aggregate creation.
type bookingCreator interface {
	CreateFromCart(ctx context.Context, cmd CreateBookingCommand) (BookingOrder, error)
}

// CartServiceDeps wires the collaborators for cart operations.
type CartServiceDeps struct {
	Carts           repositories.CartRepository
	Catalog         listingProvider
	Vendors         VendorDirectory
	Pricer          CartPricer
	Addresses       AddressResolver
	Payments        PaymentAuthorizer
	Bookings        bookingCreator
	UnitOfWork      repositories.UnitOfWork
	Clock           func() time.Time
	IDGenerator     func() string
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
}

type cartService struct {
	carts      repositories.CartRepository
	catalog    listingProvider
	vendors    VendorDirectory
	pricer     CartPricer
	addresses  AddressResolver
	payments   PaymentAuthorizer
	bookings   bookingCreator
	unitOfWork repositories.UnitOfWork
	now        func() time.Time
	newID      func() string
	currency   string
	logger     func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog is required")
	}
	if deps.Vendors == nil {
		return nil, errors.New("cart service: vendor directory is required")
	}
	if deps.Pricer == nil {
		return nil, errors.New("cart service: pricer is required")
	}
	if deps.Bookings == nil {
		return nil, errors.New("cart service: booking creator is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = nowUTC
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return cartIDPrefix + ulid.Make().String() }
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "USD"
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:      deps.Carts,
		catalog:    deps.Catalog,
		vendors:    deps.Vendors,
		pricer:     deps.Pricer,
		addresses:  deps.Addresses,
		payments:   deps.Payments,
		bookings:   deps.Bookings,
		unitOfWork: unit,
		now:        func() time.Time { return clock().UTC() },
		newID:      idGen,
		currency:   currency,
		logger:     logger,
	}, nil
}

// GetCart returns the customer's open cart.
func (s *cartService) GetCart(ctx context.Context, customerID string) (Cart, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return Cart{}, fmt.Errorf("%w: customer id is required", ErrCartInvalidInput)
	}
	cart, err := s.carts.GetOpen(ctx, customerID)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return cart, nil
}

// AddItem appends or merges a line into the open cart, creating the cart
// bound to the listing's vendor when none exists. Adding a listing from a
// different vendor fails with ErrCartVendorConflict and performs no write.
func (s *cartService) AddItem(ctx context.Context, cmd AddItemCommand) (Cart, error) {
	line, listing, err := s.buildLine(ctx, cmd)
	if err != nil {
		return Cart{}, err
	}

	customerID := strings.TrimSpace(cmd.CustomerID)

	var saved Cart
	for attempt := 0; attempt < cartUpsertRetries; attempt++ {
		cart, err := s.carts.GetOpen(ctx, customerID)
		if err != nil {
			if !isRepoNotFound(err) {
				return Cart{}, s.translateRepoError(err)
			}
			created, createErr := s.createCartWithLine(ctx, customerID, listing, line)
			if createErr == nil {
				return created, nil
			}
			if isRepoConflict(createErr) {
				// Lost the creation race; re-read and merge on the next pass.
				continue
			}
			return Cart{}, createErr
		}

		if cart.VendorID != listing.VendorID {
			return Cart{}, fmt.Errorf("%w: cart is bound to vendor %s", ErrCartVendorConflict, cart.VendorID)
		}

		expected := cart.UpdatedAt
		mergeLine(&cart, line)
		cart.UpdatedAt = s.now()

		saved, err = s.carts.Upsert(ctx, cart, &expected)
		if err == nil {
			return saved, nil
		}
		if !isRepoConflict(err) {
			return Cart{}, s.translateRepoError(err)
		}
	}
	return Cart{}, fmt.Errorf("%w: concurrent cart updates for customer %s", ErrCartConflict, customerID)
}

// ReplaceWithItem is the explicit clear-and-add resolution for a vendor
// conflict: it discards the open cart and starts a new one from the listing.
func (s *cartService) ReplaceWithItem(ctx context.Context, cmd AddItemCommand) (Cart, error) {
	line, listing, err := s.buildLine(ctx, cmd)
	if err != nil {
		return Cart{}, err
	}

	customerID := strings.TrimSpace(cmd.CustomerID)
	if err := s.carts.Delete(ctx, customerID, nil); err != nil && !isRepoNotFound(err) {
		return Cart{}, s.translateRepoError(err)
	}

	cart, err := s.createCartWithLine(ctx, customerID, listing, line)
	if err != nil {
		return Cart{}, err
	}
	s.logger(ctx, "cart.replaced", map[string]any{"customerId": customerID, "vendorId": listing.VendorID})
	return cart, nil
}

// UpdateQuantity shifts a line's quantity by delta, clamping at zero by
// removing the line. Quantities never go negative.
func (s *cartService) UpdateQuantity(ctx context.Context, cmd UpdateQuantityCommand) (Cart, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	listingID := strings.TrimSpace(cmd.ListingID)
	if customerID == "" || listingID == "" {
		return Cart{}, fmt.Errorf("%w: customer id and listing id are required", ErrCartInvalidInput)
	}
	if cmd.Delta == 0 {
		return Cart{}, fmt.Errorf("%w: delta must be non-zero", ErrCartInvalidInput)
	}

	return s.mutateCart(ctx, customerID, func(cart *Cart) error {
		idx := findLine(*cart, listingID)
		if idx < 0 {
			return fmt.Errorf("%w: listing %s is not in the cart", ErrCartInvalidInput, listingID)
		}
		next := cart.Lines[idx].Quantity + cmd.Delta
		if next <= 0 {
			cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
			return nil
		}
		cart.Lines[idx].Quantity = next
		return nil
	})
}

// RemoveItem drops a line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveItemCommand) (Cart, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	listingID := strings.TrimSpace(cmd.ListingID)
	if customerID == "" || listingID == "" {
		return Cart{}, fmt.Errorf("%w: customer id and listing id are required", ErrCartInvalidInput)
	}

	return s.mutateCart(ctx, customerID, func(cart *Cart) error {
		idx := findLine(*cart, listingID)
		if idx < 0 {
			return fmt.Errorf("%w: listing %s is not in the cart", ErrCartInvalidInput, listingID)
		}
		cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
		return nil
	})
}

// Clear destroys the open cart. Clearing an absent cart is a no-op.
func (s *cartService) Clear(ctx context.Context, customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return fmt.Errorf("%w: customer id is required", ErrCartInvalidInput)
	}
	if err := s.carts.Delete(ctx, customerID, nil); err != nil && !isRepoNotFound(err) {
		return s.translateRepoError(err)
	}
	return nil
}

// Checkout snapshots the open cart into a pending booking and destroys the
// cart in one transactional boundary. Any failure leaves the cart intact.
func (s *cartService) Checkout(ctx context.Context, cmd CheckoutCommand) (BookingOrder, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	addressID := strings.TrimSpace(cmd.AddressID)
	paymentRef := strings.TrimSpace(cmd.PaymentRef)
	if customerID == "" || addressID == "" || paymentRef == "" {
		return BookingOrder{}, fmt.Errorf("%w: customer id, address id, and payment ref are required", ErrCartInvalidInput)
	}

	cart, err := s.carts.GetOpen(ctx, customerID)
	if err != nil {
		if isRepoNotFound(err) {
			return BookingOrder{}, fmt.Errorf("%w: no open cart for customer %s", ErrCartEmpty, customerID)
		}
		return BookingOrder{}, s.translateRepoError(err)
	}
	if cart.IsEmpty() {
		return BookingOrder{}, fmt.Errorf("%w: cart has no lines", ErrCartEmpty)
	}

	if err := s.resolveAddress(ctx, customerID, addressID); err != nil {
		return BookingOrder{}, err
	}

	totals, err := s.pricer.Quote(ctx, cart.Category, cart.Lines)
	if err != nil {
		return BookingOrder{}, translatePricingError(err)
	}

	if err := s.authorizePayment(ctx, paymentRef, totals.Total, cart.Currency); err != nil {
		return BookingOrder{}, err
	}

	var booking BookingOrder
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		// The delete carries the optimistic lock from the cart read above, so
		// a line added in between fails the checkout instead of vanishing.
		// It also runs first to keep reads ahead of writes in the transaction.
		expected := cart.UpdatedAt
		if deleteErr := s.carts.Delete(txCtx, customerID, &expected); deleteErr != nil {
			return s.translateRepoError(deleteErr)
		}
		created, createErr := s.bookings.CreateFromCart(txCtx, CreateBookingCommand{
			Cart:       cart,
			Totals:     totals,
			AddressID:  addressID,
			PaymentRef: paymentRef,
		})
		if createErr != nil {
			return createErr
		}
		booking = created
		return nil
	})
	if err != nil {
		s.logger(ctx, "cart.checkout_failed", map[string]any{
			"customerId": customerID,
			"error":      err.Error(),
		})
		return BookingOrder{}, err
	}

	s.logger(ctx, "cart.checked_out", map[string]any{
		"customerId": customerID,
		"bookingId":  booking.ID,
		"total":      booking.Totals.Total,
	})
	return booking, nil
}

// BookListing creates a pending booking for a single listing without an
// intermediate cart.
func (s *cartService) BookListing(ctx context.Context, cmd DirectBookingCommand) (BookingOrder, error) {
	addressID := strings.TrimSpace(cmd.AddressID)
	paymentRef := strings.TrimSpace(cmd.PaymentRef)
	if addressID == "" || paymentRef == "" {
		return BookingOrder{}, fmt.Errorf("%w: address id and payment ref are required", ErrCartInvalidInput)
	}

	line, listing, err := s.buildLine(ctx, AddItemCommand{
		CustomerID:    cmd.CustomerID,
		ListingID:     cmd.ListingID,
		Quantity:      cmd.Quantity,
		DurationHours: cmd.DurationHours,
	})
	if err != nil {
		return BookingOrder{}, err
	}

	customerID := strings.TrimSpace(cmd.CustomerID)
	if err := s.resolveAddress(ctx, customerID, addressID); err != nil {
		return BookingOrder{}, err
	}

	snapshot := Cart{
		ID:         s.newID(),
		CustomerID: customerID,
		VendorID:   listing.VendorID,
		Category:   listing.Category,
		Currency:   s.currency,
		Lines:      []CartLine{line},
	}

	totals, err := s.pricer.Quote(ctx, snapshot.Category, snapshot.Lines)
	if err != nil {
		return BookingOrder{}, translatePricingError(err)
	}

	if err := s.authorizePayment(ctx, paymentRef, totals.Total, snapshot.Currency); err != nil {
		return BookingOrder{}, err
	}

	return s.bookings.CreateFromCart(ctx, CreateBookingCommand{
		Cart:       snapshot,
		Totals:     totals,
		AddressID:  addressID,
		PaymentRef: paymentRef,
	})
}

// buildLine validates the listing and shapes the cart line, snapshotting the
// unit price at add-time.
func (s *cartService) buildLine(ctx context.Context, cmd AddItemCommand) (CartLine, Listing, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	listingID := strings.TrimSpace(cmd.ListingID)
	if customerID == "" || listingID == "" {
		return CartLine{}, Listing{}, fmt.Errorf("%w: customer id and listing id are required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return CartLine{}, Listing{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	listing, err := s.catalog.GetListing(ctx, listingID)
	if err != nil {
		return CartLine{}, Listing{}, translateCatalogError(err)
	}

	vendor, err := s.vendors.GetVendor(ctx, listing.VendorID)
	if err != nil {
		if isRepoNotFound(err) {
			return CartLine{}, Listing{}, fmt.Errorf("%w: listing %s references unknown vendor %s", ErrCartInvalidInput, listing.ID, listing.VendorID)
		}
		return CartLine{}, Listing{}, s.translateRepoError(err)
	}
	if !vendor.IsActive {
		return CartLine{}, Listing{}, fmt.Errorf("%w: vendor %s is inactive", ErrCartInvalidInput, vendor.ID)
	}

	duration := 0
	if listing.PriceBasis.Mode == domain.PriceModeHourly {
		duration = cmd.DurationHours
		if duration == 0 {
			duration = listing.PriceBasis.MinDurationHours
		}
		if duration < listing.PriceBasis.MinDurationHours {
			return CartLine{}, Listing{}, fmt.Errorf("%w: duration below listing minimum of %d hours", ErrCartInvalidInput, listing.PriceBasis.MinDurationHours)
		}
	} else if cmd.DurationHours != 0 {
		return CartLine{}, Listing{}, fmt.Errorf("%w: duration applies to hourly listings only", ErrCartInvalidInput)
	}

	line := CartLine{
		ListingID:     listing.ID,
		Kind:          listing.Kind,
		Title:         listing.Title,
		Mode:          listing.PriceBasis.Mode,
		Quantity:      cmd.Quantity,
		UnitPrice:     listing.PriceBasis.Amount,
		DurationHours: duration,
		AddedAt:       s.now(),
	}
	return line, listing, nil
}

func (s *cartService) createCartWithLine(ctx context.Context, customerID string, listing Listing, line CartLine) (Cart, error) {
	now := s.now()
	cart := Cart{
		ID:         s.newID(),
		CustomerID: customerID,
		VendorID:   listing.VendorID,
		Category:   listing.Category,
		Currency:   s.currency,
		Lines:      []CartLine{line},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	saved, err := s.carts.Upsert(ctx, cart, nil)
	if err != nil {
		if isRepoConflict(err) {
			return Cart{}, err
		}
		return Cart{}, s.translateRepoError(err)
	}
	return saved, nil
}

// mutateCart runs a read-modify-write loop with optimistic locking on the
// cart's UpdatedAt.
func (s *cartService) mutateCart(ctx context.Context, customerID string, mutate func(*Cart) error) (Cart, error) {
	for attempt := 0; attempt < cartUpsertRetries; attempt++ {
		cart, err := s.carts.GetOpen(ctx, customerID)
		if err != nil {
			return Cart{}, s.translateRepoError(err)
		}

		expected := cart.UpdatedAt
		if err := mutate(&cart); err != nil {
			return Cart{}, err
		}
		cart.UpdatedAt = s.now()

		saved, err := s.carts.Upsert(ctx, cart, &expected)
		if err == nil {
			return saved, nil
		}
		if !isRepoConflict(err) {
			return Cart{}, s.translateRepoError(err)
		}
	}
	return Cart{}, fmt.Errorf("%w: concurrent cart updates for customer %s", ErrCartConflict, customerID)
}

func (s *cartService) resolveAddress(ctx context.Context, customerID, addressID string) error {
	if s.addresses == nil {
		return nil
	}
	if _, err := s.addresses.ResolveAddress(ctx, customerID, addressID); err != nil {
		return fmt.Errorf("%w: address %s could not be resolved", ErrCartInvalidInput, addressID)
	}
	return nil
}

func (s *cartService) authorizePayment(ctx context.Context, paymentRef string, amount int64, currency string) error {
	if s.payments == nil {
		return nil
	}
	if err := s.payments.Authorize(ctx, paymentRef, amount, currency); err != nil {
		return fmt.Errorf("%w: %v", ErrCheckoutPaymentFailed, err)
	}
	return nil
}

func mergeLine(cart *Cart, line CartLine) {
	for idx := range cart.Lines {
		if cart.Lines[idx].ListingID == line.ListingID {
			cart.Lines[idx].Quantity += line.Quantity
			if line.DurationHours > 0 {
				cart.Lines[idx].DurationHours = line.DurationHours
			}
			return
		}
	}
	cart.Lines = append(cart.Lines, line)
}

func findLine(cart Cart, listingID string) int {
	for idx := range cart.Lines {
		if cart.Lines[idx].ListingID == listingID {
			return idx
		}
	}
	return -1
}

func translateCatalogError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrListingNotFound) || errors.Is(err, ErrCatalogInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
}

func translatePricingError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPricingInvalidLine) || errors.Is(err, ErrPricingInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCartNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCartConflict, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// noopUnitOfWork executes the function without transactional semantics.
type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}
