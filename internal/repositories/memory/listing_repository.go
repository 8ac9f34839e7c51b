package memory

import (
	"context"
	"strings"

	domain "github.com/helpora/api/internal/domain"
	"github.com/helpora/api/internal/repositories"
)

// ListingRepository stores the vendor catalog in memory.
type ListingRepository struct {
	state *state
}

// Insert adds a new listing, failing with a conflict when the ID is taken.
func (r *ListingRepository) Insert(ctx context.Context, listing domain.Listing) error {
	id := strings.TrimSpace(listing.ID)
	if id == "" {
		return conflictError("listing insert", "listing id is required")
	}

	unlock := r.state.lockWrites(ctx)
	defer unlock()
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	if _, exists := r.state.listings[id]; exists {
		return conflictError("listing insert", "listing %s already exists", id)
	}
	r.state.listings[id] = cloneListing(listing)
	return nil
}

// Update replaces an existing listing record.
func (r *ListingRepository) Update(ctx context.Context, listing domain.Listing) error {
	id := strings.TrimSpace(listing.ID)

	unlock := r.state.lockWrites(ctx)
	defer unlock()
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	if _, exists := r.state.listings[id]; !exists {
		return notFoundError("listing update", "listing %s not found", id)
	}
	r.state.listings[id] = cloneListing(listing)
	return nil
}

// FindByID returns the listing regardless of its active flag; callers decide
// whether inactive listings are visible.
func (r *ListingRepository) FindByID(_ context.Context, listingID string) (domain.Listing, error) {
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()

	listing, ok := r.state.listings[strings.TrimSpace(listingID)]
	if !ok {
		return domain.Listing{}, notFoundError("listing find", "listing %s not found", listingID)
	}
	return cloneListing(listing), nil
}

// ListByVendor returns the vendor's listings filtered and paged.
func (r *ListingRepository) ListByVendor(_ context.Context, vendorID string, filter repositories.ListingListFilter) (domain.CursorPage[domain.Listing], error) {
	r.state.mu.RLock()
	matches := make([]domain.Listing, 0)
	for _, listing := range r.state.listings {
		if listing.VendorID != strings.TrimSpace(vendorID) {
			continue
		}
		if listingMatches(listing, filter) {
			matches = append(matches, cloneListing(listing))
		}
	}
	r.state.mu.RUnlock()

	return paginate(matches, func(l domain.Listing) string { return l.ID }, filter.Pagination), nil
}

// ListByCategory returns listings for a vertical filtered and paged.
func (r *ListingRepository) ListByCategory(_ context.Context, category domain.Category, filter repositories.ListingListFilter) (domain.CursorPage[domain.Listing], error) {
	r.state.mu.RLock()
	matches := make([]domain.Listing, 0)
	for _, listing := range r.state.listings {
		if listing.Category != category {
			continue
		}
		if listingMatches(listing, filter) {
			matches = append(matches, cloneListing(listing))
		}
	}
	r.state.mu.RUnlock()

	return paginate(matches, func(l domain.Listing) string { return l.ID }, filter.Pagination), nil
}

func listingMatches(listing domain.Listing, filter repositories.ListingListFilter) bool {
	if filter.OnlyActive && !listing.IsActive {
		return false
	}
	if filter.Kind != "" && listing.Kind != filter.Kind {
		return false
	}
	if filter.Category != "" && listing.Category != filter.Category {
		return false
	}
	return true
}
