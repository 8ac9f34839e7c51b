package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/helpora/api/internal/platform/firestore"
	"github.com/helpora/api/internal/repositories"
)

// Registry bundles Firestore-backed repositories behind the repositories.Registry surface.
type Registry struct {
	provider *pfirestore.Provider

	listings *ListingRepository
	vendors  *VendorRepository
	carts    *CartRepository
	bookings *BookingRepository
	reviews  *ReviewRepository
}

// NewRegistry constructs a registry sharing one Firestore provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires a provider")
	}

	listings, err := NewListingRepository(provider)
	if err != nil {
		return nil, err
	}
	vendors, err := NewVendorRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	bookings, err := NewBookingRepository(provider)
	if err != nil {
		return nil, err
	}
	reviews, err := NewReviewRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		listings: listings,
		vendors:  vendors,
		carts:    carts,
		bookings: bookings,
		reviews:  reviews,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

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

// RunInTx executes fn inside a Firestore transaction. Repository calls made
// with the supplied context join the transaction, so all writes commit or
// roll back together.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return r.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		return fn(txCtx)
	})
}
