package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/helpora/api/internal/domain"
	pfirestore "github.com/helpora/api/internal/platform/firestore"
)

// VendorRepository persists vendor records in Firestore.
type VendorRepository struct {
	provider *pfirestore.Provider
}

// NewVendorRepository constructs a Firestore-backed vendor repository.
func NewVendorRepository(provider *pfirestore.Provider) (*VendorRepository, error) {
	if provider == nil {
		return nil, errors.New("vendor repository requires firestore provider")
	}
	return &VendorRepository{provider: provider}, nil
}

func (r *VendorRepository) doc(ctx context.Context, vendorID string) (*firestore.DocumentRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(vendorCollection).Doc(vendorID), nil
}

// Insert creates the vendor document, failing on a duplicate ID.
func (r *VendorRepository) Insert(ctx context.Context, vendor domain.Vendor) error {
	ref, err := r.doc(ctx, vendor.ID)
	if err != nil {
		return err
	}
	if err := createDocument(ctx, ref, vendorToDocument(vendor)); err != nil {
		return pfirestore.WrapError("vendors.insert", err)
	}
	return nil
}

// FindByID fetches a vendor record.
func (r *VendorRepository) FindByID(ctx context.Context, vendorID string) (domain.Vendor, error) {
	ref, err := r.doc(ctx, vendorID)
	if err != nil {
		return domain.Vendor{}, err
	}
	snap, err := getDocument(ctx, ref)
	if err != nil {
		return domain.Vendor{}, pfirestore.WrapError("vendors.get", err)
	}
	var doc vendorDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Vendor{}, pfirestore.WrapError("vendors.decode", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}
