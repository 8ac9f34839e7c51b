package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/helpora/api/internal/domain"
	"github.com/helpora/api/internal/repositories"
)

func newTestCatalogService(t *testing.T, deps CatalogServiceDeps) CatalogService {
	t.Helper()
	service, err := NewCatalogService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing catalog service: %v", err)
	}
	return service
}

func TestCatalogServiceGetListingTreatsInactiveAsAbsent(t *testing.T) {
	listings := &stubListingRepository{
		findFunc: func(ctx context.Context, listingID string) (domain.Listing, error) {
			return domain.Listing{ID: listingID, VendorID: "vnd_1", IsActive: false}, nil
		},
	}

	service := newTestCatalogService(t, CatalogServiceDeps{
		Listings: listings,
		Vendors:  &stubVendorRepository{},
	})

	_, err := service.GetListing(context.Background(), "lst_retired")
	if !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound for inactive listing, got %v", err)
	}
}

func TestCatalogServiceUpsertListingCreates(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	var inserted domain.Listing
	listings := &stubListingRepository{
		insertFunc: func(ctx context.Context, listing domain.Listing) error {
			inserted = listing
			return nil
		},
	}
	vendors := &stubVendorRepository{
		findFunc: func(ctx context.Context, vendorID string) (domain.Vendor, error) {
			return domain.Vendor{ID: vendorID, Category: domain.CategoryCleaning, IsActive: true}, nil
		},
	}

	service := newTestCatalogService(t, CatalogServiceDeps{
		Listings:    listings,
		Vendors:     vendors,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "lst_new" },
	})

	listing, err := service.UpsertListing(context.Background(), UpsertListingCommand{
		VendorID: "vnd_1",
		Kind:     domain.ListingKindService,
		Category: domain.CategoryCleaning,
		Title:    "Deep clean",
		PriceBasis: domain.PriceBasis{
			Mode:             domain.PriceModeHourly,
			Amount:           8500,
			MinDurationHours: 2,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if listing.ID != "lst_new" {
		t.Fatalf("expected generated id lst_new, got %q", listing.ID)
	}
	if !inserted.IsActive {
		t.Fatalf("expected new listings active by default")
	}
	if !inserted.CreatedAt.Equal(now) {
		t.Fatalf("expected CreatedAt stamped with the clock, got %v", inserted.CreatedAt)
	}
}

func TestCatalogServiceUpsertListingRejectsCategoryMismatch(t *testing.T) {
	vendors := &stubVendorRepository{
		findFunc: func(ctx context.Context, vendorID string) (domain.Vendor, error) {
			return domain.Vendor{ID: vendorID, Category: domain.CategoryGrocery, IsActive: true}, nil
		},
	}

	service := newTestCatalogService(t, CatalogServiceDeps{
		Listings: &stubListingRepository{},
		Vendors:  vendors,
	})

	_, err := service.UpsertListing(context.Background(), UpsertListingCommand{
		VendorID:   "vnd_1",
		Kind:       domain.ListingKindService,
		Category:   domain.CategoryCleaning,
		Title:      "Deep clean",
		PriceBasis: domain.PriceBasis{Mode: domain.PriceModeFixed, Amount: 1000},
	})
	if !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput for category mismatch, got %v", err)
	}
}

func TestCatalogServiceUpsertListingHourlyRequiresMinimumDuration(t *testing.T) {
	service := newTestCatalogService(t, CatalogServiceDeps{
		Listings: &stubListingRepository{},
		Vendors:  &stubVendorRepository{},
	})

	_, err := service.UpsertListing(context.Background(), UpsertListingCommand{
		VendorID:   "vnd_1",
		Kind:       domain.ListingKindService,
		Category:   domain.CategoryCleaning,
		Title:      "Deep clean",
		PriceBasis: domain.PriceBasis{Mode: domain.PriceModeHourly, Amount: 8500},
	})
	if !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput for missing minimum duration, got %v", err)
	}
}

func TestCatalogServiceDeactivateListingIsIdempotent(t *testing.T) {
	updates := 0
	listings := &stubListingRepository{
		findFunc: func(ctx context.Context, listingID string) (domain.Listing, error) {
			return domain.Listing{ID: listingID, VendorID: "vnd_1", IsActive: false}, nil
		},
		updateFunc: func(ctx context.Context, listing domain.Listing) error {
			updates++
			return nil
		},
	}

	service := newTestCatalogService(t, CatalogServiceDeps{
		Listings: listings,
		Vendors:  &stubVendorRepository{},
	})

	listing, err := service.DeactivateListing(context.Background(), "lst_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if listing.IsActive {
		t.Fatalf("expected inactive listing")
	}
	if updates != 0 {
		t.Fatalf("expected no write for an already inactive listing, got %d updates", updates)
	}
}

func TestCatalogServiceGetListingNotFound(t *testing.T) {
	listings := &stubListingRepository{
		findFunc: func(ctx context.Context, listingID string) (domain.Listing, error) {
			return domain.Listing{}, &repositoryErrorStub{notFound: true}
		},
	}

	service := newTestCatalogService(t, CatalogServiceDeps{
		Listings: listings,
		Vendors:  &stubVendorRepository{},
	})

	if _, err := service.GetListing(context.Background(), "lst_missing"); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound, got %v", err)
	}
}

type stubListingRepository struct {
	insertFunc         func(ctx context.Context, listing domain.Listing) error
	updateFunc         func(ctx context.Context, listing domain.Listing) error
	findFunc           func(ctx context.Context, listingID string) (domain.Listing, error)
	listByVendorFunc   func(ctx context.Context, vendorID string, filter repositories.ListingListFilter) (domain.CursorPage[domain.Listing], error)
	listByCategoryFunc func(ctx context.Context, category domain.Category, filter repositories.ListingListFilter) (domain.CursorPage[domain.Listing], error)
}

func (s *stubListingRepository) Insert(ctx context.Context, listing domain.Listing) error {
	if s.insertFunc != nil {
		return s.insertFunc(ctx, listing)
	}
	return nil
}

func (s *stubListingRepository) Update(ctx context.Context, listing domain.Listing) error {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, listing)
	}
	return nil
}

func (s *stubListingRepository) FindByID(ctx context.Context, listingID string) (domain.Listing, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, listingID)
	}
	return domain.Listing{}, &repositoryErrorStub{notFound: true}
}

func (s *stubListingRepository) ListByVendor(ctx context.Context, vendorID string, filter repositories.ListingListFilter) (domain.CursorPage[domain.Listing], error) {
	if s.listByVendorFunc != nil {
		return s.listByVendorFunc(ctx, vendorID, filter)
	}
	return domain.CursorPage[domain.Listing]{}, nil
}

func (s *stubListingRepository) ListByCategory(ctx context.Context, category domain.Category, filter repositories.ListingListFilter) (domain.CursorPage[domain.Listing], error) {
	if s.listByCategoryFunc != nil {
		return s.listByCategoryFunc(ctx, category, filter)
	}
	return domain.CursorPage[domain.Listing]{}, nil
}

type stubVendorRepository struct {
	insertFunc func(ctx context.Context, vendor domain.Vendor) error
	findFunc   func(ctx context.Context, vendorID string) (domain.Vendor, error)
}

func (s *stubVendorRepository) Insert(ctx context.Context, vendor domain.Vendor) error {
	if s.insertFunc != nil {
		return s.insertFunc(ctx, vendor)
	}
	return nil
}

func (s *stubVendorRepository) FindByID(ctx context.Context, vendorID string) (domain.Vendor, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, vendorID)
	}
	return domain.Vendor{ID: vendorID, IsActive: true}, nil
}
