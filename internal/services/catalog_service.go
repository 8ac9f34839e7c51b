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

const listingIDPrefix = "lst_"

var (
	// ErrListingNotFound indicates the listing does not exist or is inactive.
	ErrListingNotFound = errors.New("catalog: listing not found")
	// ErrCatalogInvalidInput indicates the caller supplied invalid listing data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogConflict indicates a concurrent modification or duplicate listing.
	ErrCatalogConflict = errors.New("catalog: conflict")
	// ErrCatalogUnavailable indicates the catalog backend cannot serve the request.
	ErrCatalogUnavailable = errors.New("catalog: unavailable")
)

// CatalogServiceDeps wires the repositories required for catalog operations.
type CatalogServiceDeps struct {
	Listings    repositories.ListingRepository
	Vendors     repositories.VendorRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type catalogService struct {
	listings repositories.ListingRepository
	vendors  repositories.VendorRepository
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Listings == nil {
		return nil, errors.New("catalog service: listing repository is required")
	}
	if deps.Vendors == nil {
		return nil, errors.New("catalog service: vendor repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = nowUTC
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return listingIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		listings: deps.Listings,
		vendors:  deps.Vendors,
		now:      func() time.Time { return clock().UTC() },
		newID:    idGen,
		logger:   logger,
	}, nil
}

// GetListing returns an active listing; inactive listings read as absent.
func (s *catalogService) GetListing(ctx context.Context, listingID string) (Listing, error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return Listing{}, fmt.Errorf("%w: listing id is required", ErrCatalogInvalidInput)
	}

	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return Listing{}, s.translateRepoError(err)
	}
	if !listing.IsActive {
		return Listing{}, fmt.Errorf("%w: listing %s is inactive", ErrListingNotFound, listingID)
	}
	return listing, nil
}

// GetPriceBasis supplies the price basis the pricing engine consumes.
func (s *catalogService) GetPriceBasis(ctx context.Context, listingID string) (PriceBasis, error) {
	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return PriceBasis{}, err
	}
	return listing.PriceBasis, nil
}

func (s *catalogService) ListByVendor(ctx context.Context, vendorID string, filter ListingFilter) (domain.CursorPage[Listing], error) {
	vendorID = strings.TrimSpace(vendorID)
	if vendorID == "" {
		return domain.CursorPage[Listing]{}, fmt.Errorf("%w: vendor id is required", ErrCatalogInvalidInput)
	}
	page, err := s.listings.ListByVendor(ctx, vendorID, repositories.ListingListFilter{
		Kind:       filter.Kind,
		OnlyActive: !filter.IncludeInactive,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Listing]{}, s.translateRepoError(err)
	}
	return page, nil
}

func (s *catalogService) ListByCategory(ctx context.Context, category Category, filter ListingFilter) (domain.CursorPage[Listing], error) {
	if !category.IsValid() {
		return domain.CursorPage[Listing]{}, fmt.Errorf("%w: unknown category %q", ErrCatalogInvalidInput, category)
	}
	page, err := s.listings.ListByCategory(ctx, category, repositories.ListingListFilter{
		Kind:       filter.Kind,
		OnlyActive: !filter.IncludeInactive,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Listing]{}, s.translateRepoError(err)
	}
	return page, nil
}

// UpsertListing creates or edits a listing for vendor management, validating
// the vendor exists and the category matches the vendor's vertical.
func (s *catalogService) UpsertListing(ctx context.Context, cmd UpsertListingCommand) (Listing, error) {
	if err := validateUpsertListing(cmd); err != nil {
		return Listing{}, err
	}

	vendor, err := s.vendors.FindByID(ctx, strings.TrimSpace(cmd.VendorID))
	if err != nil {
		return Listing{}, s.translateRepoError(err)
	}
	if vendor.Category != cmd.Category {
		return Listing{}, fmt.Errorf("%w: listing category %q does not match vendor category %q", ErrCatalogInvalidInput, cmd.Category, vendor.Category)
	}

	now := s.now()
	listingID := strings.TrimSpace(cmd.ListingID)

	if listingID == "" {
		listing := Listing{
			ID:         s.newID(),
			VendorID:   vendor.ID,
			Kind:       cmd.Kind,
			Category:   cmd.Category,
			Title:      strings.TrimSpace(cmd.Title),
			PriceBasis: cmd.PriceBasis,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if cmd.IsActive != nil {
			listing.IsActive = *cmd.IsActive
		}
		if err := s.listings.Insert(ctx, listing); err != nil {
			return Listing{}, s.translateRepoError(err)
		}
		s.logger(ctx, "catalog.listing_created", map[string]any{"listingId": listing.ID, "vendorId": vendor.ID})
		return listing, nil
	}

	existing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return Listing{}, s.translateRepoError(err)
	}
	if existing.VendorID != vendor.ID {
		return Listing{}, fmt.Errorf("%w: listing %s belongs to another vendor", ErrCatalogInvalidInput, listingID)
	}

	existing.Kind = cmd.Kind
	existing.Title = strings.TrimSpace(cmd.Title)
	existing.PriceBasis = cmd.PriceBasis
	if cmd.IsActive != nil {
		existing.IsActive = *cmd.IsActive
	}
	existing.UpdatedAt = now

	if err := s.listings.Update(ctx, existing); err != nil {
		return Listing{}, s.translateRepoError(err)
	}
	return existing, nil
}

// DeactivateListing soft-deactivates a listing. Historical bookings keep
// their snapshots, so the record itself is never removed.
func (s *catalogService) DeactivateListing(ctx context.Context, listingID string) (Listing, error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return Listing{}, fmt.Errorf("%w: listing id is required", ErrCatalogInvalidInput)
	}

	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return Listing{}, s.translateRepoError(err)
	}
	if !listing.IsActive {
		return listing, nil
	}

	listing.IsActive = false
	listing.UpdatedAt = s.now()
	if err := s.listings.Update(ctx, listing); err != nil {
		return Listing{}, s.translateRepoError(err)
	}

	s.logger(ctx, "catalog.listing_deactivated", map[string]any{"listingId": listing.ID})
	return listing, nil
}

func validateUpsertListing(cmd UpsertListingCommand) error {
	if strings.TrimSpace(cmd.VendorID) == "" {
		return fmt.Errorf("%w: vendor id is required", ErrCatalogInvalidInput)
	}
	if strings.TrimSpace(cmd.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrCatalogInvalidInput)
	}
	if !cmd.Category.IsValid() {
		return fmt.Errorf("%w: unknown category %q", ErrCatalogInvalidInput, cmd.Category)
	}
	switch cmd.Kind {
	case domain.ListingKindService, domain.ListingKindProduct, domain.ListingKindRental:
	default:
		return fmt.Errorf("%w: unknown listing kind %q", ErrCatalogInvalidInput, cmd.Kind)
	}
	switch cmd.PriceBasis.Mode {
	case domain.PriceModeFixed, domain.PriceModePerUnit, domain.PriceModePerNight:
	case domain.PriceModeHourly:
		if cmd.PriceBasis.MinDurationHours <= 0 {
			return fmt.Errorf("%w: hourly listings require a minimum duration", ErrCatalogInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown price mode %q", ErrCatalogInvalidInput, cmd.PriceBasis.Mode)
	}
	if cmd.PriceBasis.Amount < 0 {
		return fmt.Errorf("%w: price amount cannot be negative", ErrCatalogInvalidInput)
	}
	return nil
}

func (s *catalogService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrListingNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCatalogConflict, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}
