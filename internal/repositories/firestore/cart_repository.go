package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/helpora/api/internal/domain"
	pfirestore "github.com/helpora/api/internal/platform/firestore"
)

// CartRepository persists the single open cart per customer. Documents are
// keyed by customer ID so the uniqueness rule holds structurally.
type CartRepository struct {
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{provider: provider}, nil
}

func (r *CartRepository) doc(ctx context.Context, customerID string) (*firestore.DocumentRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(cartCollection).Doc(customerID), nil
}

// GetOpen fetches the customer's open cart.
func (r *CartRepository) GetOpen(ctx context.Context, customerID string) (domain.Cart, error) {
	ref, err := r.doc(ctx, customerID)
	if err != nil {
		return domain.Cart{}, err
	}
	snap, err := getDocument(ctx, ref)
	if err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.get", err)
	}
	var doc cartDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.decode", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// Upsert writes the cart under optimistic locking. A nil expectedUpdatedAt
// asserts no cart exists; otherwise the stored UpdatedAt must match.
func (r *CartRepository) Upsert(ctx context.Context, cart domain.Cart, expectedUpdatedAt *time.Time) (domain.Cart, error) {
	ref, err := r.doc(ctx, cart.CustomerID)
	if err != nil {
		return domain.Cart{}, err
	}

	write := func(txCtx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return pfirestore.WrapError("carts.upsert", err)
		}
		exists := err == nil && snap.Exists()

		if expectedUpdatedAt == nil {
			if exists {
				return pfirestore.NewConflictError("carts.upsert", "cart already exists for customer %s", cart.CustomerID)
			}
		} else {
			if !exists {
				return pfirestore.NewNotFoundError("carts.upsert", "no open cart for customer %s", cart.CustomerID)
			}
			var stored cartDocument
			if err := snap.DataTo(&stored); err != nil {
				return pfirestore.WrapError("carts.decode", err)
			}
			if !stored.UpdatedAt.Equal(expectedUpdatedAt.UTC()) {
				return pfirestore.NewConflictError("carts.upsert", "cart for customer %s was modified concurrently", cart.CustomerID)
			}
		}
		return tx.Set(ref, cartToDocument(cart))
	}

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		if err := write(ctx, tx); err != nil {
			return domain.Cart{}, err
		}
		return cart, nil
	}
	if err := r.provider.RunTransaction(ctx, write); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// Delete removes the open cart. Deleting an absent cart is a no-op. A non-nil
// expectedUpdatedAt arms the optimistic lock: the stored UpdatedAt must still
// match or the delete fails with a conflict and the document stays put.
func (r *CartRepository) Delete(ctx context.Context, customerID string, expectedUpdatedAt *time.Time) error {
	ref, err := r.doc(ctx, customerID)
	if err != nil {
		return err
	}

	if expectedUpdatedAt == nil {
		if err := deleteDocument(ctx, ref); err != nil {
			return pfirestore.WrapError("carts.delete", err)
		}
		return nil
	}

	remove := func(txCtx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return pfirestore.WrapError("carts.delete", err)
		}
		var stored cartDocument
		if err := snap.DataTo(&stored); err != nil {
			return pfirestore.WrapError("carts.decode", err)
		}
		if !stored.UpdatedAt.Equal(expectedUpdatedAt.UTC()) {
			return pfirestore.NewConflictError("carts.delete", "cart for customer %s was modified concurrently", customerID)
		}
		return tx.Delete(ref)
	}

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return remove(ctx, tx)
	}
	return r.provider.RunTransaction(ctx, remove)
}
