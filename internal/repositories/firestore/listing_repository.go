package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/helpora/api/internal/domain"
	pfirestore "github.com/helpora/api/internal/platform/firestore"
	"github.com/helpora/api/internal/repositories"
)

// ListingRepository persists the vendor catalog in Firestore.
type ListingRepository struct {
	provider *pfirestore.Provider
}

// NewListingRepository constructs a Firestore-backed listing repository.
func NewListingRepository(provider *pfirestore.Provider) (*ListingRepository, error) {
	if provider == nil {
		return nil, errors.New("listing repository requires firestore provider")
	}
	return &ListingRepository{provider: provider}, nil
}

func (r *ListingRepository) doc(ctx context.Context, listingID string) (*firestore.DocumentRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(listingCollection).Doc(listingID), nil
}

// Insert creates the listing document, failing on a duplicate ID.
func (r *ListingRepository) Insert(ctx context.Context, listing domain.Listing) error {
	ref, err := r.doc(ctx, listing.ID)
	if err != nil {
		return err
	}
	if err := createDocument(ctx, ref, listingToDocument(listing)); err != nil {
		return pfirestore.WrapError("listings.insert", err)
	}
	return nil
}

// Update rewrites an existing listing document.
func (r *ListingRepository) Update(ctx context.Context, listing domain.Listing) error {
	ref, err := r.doc(ctx, listing.ID)
	if err != nil {
		return err
	}
	return r.provider.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return pfirestore.WrapError("listings.update", err)
		}
		return tx.Set(ref, listingToDocument(listing))
	})
}

// FindByID fetches a listing regardless of its active flag.
func (r *ListingRepository) FindByID(ctx context.Context, listingID string) (domain.Listing, error) {
	ref, err := r.doc(ctx, listingID)
	if err != nil {
		return domain.Listing{}, err
	}
	snap, err := getDocument(ctx, ref)
	if err != nil {
		return domain.Listing{}, pfirestore.WrapError("listings.get", err)
	}
	var doc listingDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Listing{}, pfirestore.WrapError("listings.decode", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// ListByVendor pages through a vendor's listings.
func (r *ListingRepository) ListByVendor(ctx context.Context, vendorID string, filter repositories.ListingListFilter) (domain.CursorPage[domain.Listing], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Listing]{}, err
	}
	query := client.Collection(listingCollection).Query.Where("vendorId", "==", vendorID)
	return r.list(ctx, query, filter, "listings.list_by_vendor")
}

// ListByCategory pages through a category's listings.
func (r *ListingRepository) ListByCategory(ctx context.Context, category domain.Category, filter repositories.ListingListFilter) (domain.CursorPage[domain.Listing], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Listing]{}, err
	}
	query := client.Collection(listingCollection).Query.Where("category", "==", string(category))
	return r.list(ctx, query, filter, "listings.list_by_category")
}

func (r *ListingRepository) list(ctx context.Context, query firestore.Query, filter repositories.ListingListFilter, op string) (domain.CursorPage[domain.Listing], error) {
	if filter.OnlyActive {
		query = query.Where("isActive", "==", true)
	}
	if filter.Kind != "" {
		query = query.Where("kind", "==", string(filter.Kind))
	}

	items, next, err := runQuery(ctx, query, paginationSpec{
		op:    op,
		size:  filter.Pagination.PageSize,
		token: filter.Pagination.PageToken,
	}, func(snap *firestore.DocumentSnapshot) domain.Listing {
		var doc listingDocument
		_ = snap.DataTo(&doc)
		return doc.toDomain(snap.Ref.ID)
	})
	if err != nil {
		return domain.CursorPage[domain.Listing]{}, err
	}
	return domain.CursorPage[domain.Listing]{Items: items, NextPageToken: next}, nil
}
