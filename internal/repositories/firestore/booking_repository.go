package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/helpora/api/internal/domain"
	pfirestore "github.com/helpora/api/internal/platform/firestore"
	"github.com/helpora/api/internal/repositories"
)

// BookingRepository persists booking aggregates in Firestore.
type BookingRepository struct {
	provider *pfirestore.Provider
}

// NewBookingRepository constructs a Firestore-backed booking repository.
func NewBookingRepository(provider *pfirestore.Provider) (*BookingRepository, error) {
	if provider == nil {
		return nil, errors.New("booking repository requires firestore provider")
	}
	return &BookingRepository{provider: provider}, nil
}

func (r *BookingRepository) doc(ctx context.Context, bookingID string) (*firestore.DocumentRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(bookingCollection).Doc(bookingID), nil
}

// Insert creates the booking document, failing on a duplicate ID.
func (r *BookingRepository) Insert(ctx context.Context, booking domain.BookingOrder) error {
	ref, err := r.doc(ctx, booking.ID)
	if err != nil {
		return err
	}
	if err := createDocument(ctx, ref, bookingToDocument(booking)); err != nil {
		return pfirestore.WrapError("bookings.insert", err)
	}
	return nil
}

// FindByID fetches the booking aggregate.
func (r *BookingRepository) FindByID(ctx context.Context, bookingID string) (domain.BookingOrder, error) {
	ref, err := r.doc(ctx, bookingID)
	if err != nil {
		return domain.BookingOrder{}, err
	}
	snap, err := getDocument(ctx, ref)
	if err != nil {
		return domain.BookingOrder{}, pfirestore.WrapError("bookings.get", err)
	}
	var doc bookingDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.BookingOrder{}, pfirestore.WrapError("bookings.decode", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// Update writes the booking when the stored status matches expectedStatus,
// so racing transitions produce exactly one winner.
func (r *BookingRepository) Update(ctx context.Context, booking domain.BookingOrder, expectedStatus domain.BookingStatus) (domain.BookingOrder, error) {
	ref, err := r.doc(ctx, booking.ID)
	if err != nil {
		return domain.BookingOrder{}, err
	}

	write := func(txCtx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return pfirestore.WrapError("bookings.update", err)
		}
		var stored bookingDocument
		if err := snap.DataTo(&stored); err != nil {
			return pfirestore.WrapError("bookings.decode", err)
		}
		if stored.Status != string(expectedStatus) {
			return pfirestore.NewConflictError("bookings.update", "booking %s is %s, expected %s", booking.ID, stored.Status, expectedStatus)
		}
		return tx.Set(ref, bookingToDocument(booking))
	}

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		if err := write(ctx, tx); err != nil {
			return domain.BookingOrder{}, err
		}
		return booking, nil
	}
	if err := r.provider.RunTransaction(ctx, write); err != nil {
		return domain.BookingOrder{}, err
	}
	return booking, nil
}

// ListByCustomer pages through a customer's bookings.
func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID string, filter repositories.BookingListFilter) (domain.CursorPage[domain.BookingOrder], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.BookingOrder]{}, err
	}
	query := client.Collection(bookingCollection).Query.Where("customerId", "==", customerID)
	return r.list(ctx, query, filter, "bookings.list_by_customer")
}

// ListByVendor pages through a vendor's bookings.
func (r *BookingRepository) ListByVendor(ctx context.Context, vendorID string, filter repositories.BookingListFilter) (domain.CursorPage[domain.BookingOrder], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.BookingOrder]{}, err
	}
	query := client.Collection(bookingCollection).Query.Where("vendorId", "==", vendorID)
	return r.list(ctx, query, filter, "bookings.list_by_vendor")
}

func (r *BookingRepository) list(ctx context.Context, query firestore.Query, filter repositories.BookingListFilter, op string) (domain.CursorPage[domain.BookingOrder], error) {
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}
	if filter.Category != "" {
		query = query.Where("category", "==", string(filter.Category))
	}

	items, next, err := runQuery(ctx, query, paginationSpec{
		op:    op,
		size:  filter.Pagination.PageSize,
		token: filter.Pagination.PageToken,
	}, func(snap *firestore.DocumentSnapshot) domain.BookingOrder {
		var doc bookingDocument
		_ = snap.DataTo(&doc)
		return doc.toDomain(snap.Ref.ID)
	})
	if err != nil {
		return domain.CursorPage[domain.BookingOrder]{}, err
	}
	return domain.CursorPage[domain.BookingOrder]{Items: items, NextPageToken: next}, nil
}
