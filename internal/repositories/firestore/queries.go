package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	pfirestore "github.com/helpora/api/internal/platform/firestore"
	"github.com/helpora/api/internal/repositories"
)

// getDocument reads a document, joining an ambient transaction when present.
func getDocument(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return tx.Get(ref)
	}
	return ref.Get(ctx)
}

// setDocument writes a document, joining an ambient transaction when present.
func setDocument(ctx context.Context, ref *firestore.DocumentRef, data any) error {
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return tx.Set(ref, data)
	}
	_, err := ref.Set(ctx, data)
	return err
}

// createDocument creates a document, failing when it already exists.
func createDocument(ctx context.Context, ref *firestore.DocumentRef, data any) error {
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return tx.Create(ref, data)
	}
	_, err := ref.Create(ctx, data)
	return err
}

// deleteDocument removes a document, joining an ambient transaction when present.
func deleteDocument(ctx context.Context, ref *firestore.DocumentRef) error {
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return tx.Delete(ref)
	}
	_, err := ref.Delete(ctx)
	return err
}

// runQuery executes a paginated query ordered by document ID and decodes each
// snapshot through decode. It fetches one extra row to detect a next page.
func runQuery[T any](ctx context.Context, query firestore.Query, pager paginationSpec, decode func(*firestore.DocumentSnapshot) T) ([]T, string, error) {
	query = query.OrderBy(firestore.DocumentID, firestore.Asc)
	if pager.token != "" {
		query = query.StartAfter(pager.token)
	}
	limit := pager.size
	if limit > 0 {
		query = query.Limit(limit + 1)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var (
		items   []T
		lastID  string
		hasMore bool
	)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, "", pfirestore.WrapError(pager.op, err)
		}
		if limit > 0 && len(items) == limit {
			hasMore = true
			break
		}
		items = append(items, decode(snap))
		lastID = snap.Ref.ID
	}

	next := ""
	if hasMore {
		next = lastID
	}
	return items, next, nil
}

type paginationSpec struct {
	op    string
	size  int
	token string
}

// ensure the package error type satisfies the repository contract.
var _ repositories.RepositoryError = (*pfirestore.Error)(nil)
