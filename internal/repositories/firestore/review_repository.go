package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/helpora/api/internal/domain"
	pfirestore "github.com/helpora/api/internal/platform/firestore"
)

// ReviewRepository persists reviews in Firestore. Documents are keyed by
// booking ID, so a second review for the same booking fails on create.
type ReviewRepository struct {
	provider *pfirestore.Provider
}

// NewReviewRepository constructs a Firestore-backed review repository.
func NewReviewRepository(provider *pfirestore.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	return &ReviewRepository{provider: provider}, nil
}

func (r *ReviewRepository) doc(ctx context.Context, bookingID string) (*firestore.DocumentRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(reviewCollection).Doc(bookingID), nil
}

// Insert stores the review, returning a conflict when one already exists for
// the booking.
func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	ref, err := r.doc(ctx, review.BookingID)
	if err != nil {
		return domain.Review{}, err
	}
	if err := createDocument(ctx, ref, reviewToDocument(review)); err != nil {
		return domain.Review{}, pfirestore.WrapError("reviews.insert", err)
	}
	return review, nil
}

// FindByBooking fetches the review attached to a booking.
func (r *ReviewRepository) FindByBooking(ctx context.Context, bookingID string) (domain.Review, error) {
	ref, err := r.doc(ctx, bookingID)
	if err != nil {
		return domain.Review{}, err
	}
	snap, err := getDocument(ctx, ref)
	if err != nil {
		return domain.Review{}, pfirestore.WrapError("reviews.get", err)
	}
	var doc reviewDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Review{}, pfirestore.WrapError("reviews.decode", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// ListByVendor pages through a vendor's reviews.
func (r *ReviewRepository) ListByVendor(ctx context.Context, vendorID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Review]{}, err
	}
	query := client.Collection(reviewCollection).Query.Where("vendorId", "==", vendorID)

	items, next, err := runQuery(ctx, query, paginationSpec{
		op:    "reviews.list_by_vendor",
		size:  pager.PageSize,
		token: pager.PageToken,
	}, func(snap *firestore.DocumentSnapshot) domain.Review {
		var doc reviewDocument
		_ = snap.DataTo(&doc)
		return doc.toDomain(snap.Ref.ID)
	})
	if err != nil {
		return domain.CursorPage[domain.Review]{}, err
	}
	return domain.CursorPage[domain.Review]{Items: items, NextPageToken: next}, nil
}
