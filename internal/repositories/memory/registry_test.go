package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/helpora/api/internal/domain"
	"github.com/helpora/api/internal/repositories"
)

func isConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func TestRegistryRunInTxRollsBackOnError(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	cart := domain.Cart{
		ID:         "crt_1",
		CustomerID: "cus_1",
		VendorID:   "vnd_1",
		Lines:      []domain.CartLine{{ListingID: "lst_1", Quantity: 1, UnitPrice: 100}},
		UpdatedAt:  time.Now().UTC(),
	}
	if _, err := registry.Carts().Upsert(ctx, cart, nil); err != nil {
		t.Fatalf("unexpected error seeding cart: %v", err)
	}

	boom := errors.New("boom")
	err := registry.RunInTx(ctx, func(txCtx context.Context) error {
		if err := registry.Bookings().Insert(txCtx, domain.BookingOrder{ID: "bkg_1", CustomerID: "cus_1", VendorID: "vnd_1"}); err != nil {
			return err
		}
		if err := registry.Carts().Delete(txCtx, "cus_1", nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the transaction error surfaced, got %v", err)
	}

	if _, err := registry.Carts().GetOpen(ctx, "cus_1"); err != nil {
		t.Fatalf("expected cart restored after rollback, got %v", err)
	}
	if _, err := registry.Bookings().FindByID(ctx, "bkg_1"); !isNotFound(err) {
		t.Fatalf("expected booking insert rolled back, got %v", err)
	}
}

func TestRegistryRunInTxDoesNotWipeConcurrentWrites(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	started := make(chan struct{})
	landed := make(chan error, 1)

	boom := errors.New("boom")
	err := registry.RunInTx(ctx, func(txCtx context.Context) error {
		if err := registry.Bookings().Insert(txCtx, domain.BookingOrder{ID: "bkg_tx", CustomerID: "cus_1", VendorID: "vnd_1"}); err != nil {
			return err
		}
		// An unrelated customer's write races the transaction; it must block
		// on the write gate instead of landing inside the snapshot window.
		go func() {
			close(started)
			cart := domain.Cart{ID: "crt_2", CustomerID: "cus_2", VendorID: "vnd_2", UpdatedAt: time.Now().UTC()}
			_, err := registry.Carts().Upsert(ctx, cart, nil)
			landed <- err
		}()
		<-started
		time.Sleep(10 * time.Millisecond)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the transaction error surfaced, got %v", err)
	}

	if err := <-landed; err != nil {
		t.Fatalf("unexpected error from the concurrent write: %v", err)
	}
	if _, err := registry.Carts().GetOpen(ctx, "cus_2"); err != nil {
		t.Fatalf("expected the concurrent write to survive the rollback, got %v", err)
	}
	if _, err := registry.Bookings().FindByID(ctx, "bkg_tx"); !isNotFound(err) {
		t.Fatalf("expected the transactional insert rolled back, got %v", err)
	}
}

func TestCartRepositoryDeleteOptimisticLock(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	cart := domain.Cart{ID: "crt_1", CustomerID: "cus_1", VendorID: "vnd_1", UpdatedAt: base}
	if _, err := registry.Carts().Upsert(ctx, cart, nil); err != nil {
		t.Fatalf("unexpected error creating cart: %v", err)
	}

	// A stale expectedUpdatedAt must conflict and leave the cart in place.
	stale := base.Add(-time.Minute)
	if err := registry.Carts().Delete(ctx, "cus_1", &stale); !isConflict(err) {
		t.Fatalf("expected conflict on stale timestamp, got %v", err)
	}
	if _, err := registry.Carts().GetOpen(ctx, "cus_1"); err != nil {
		t.Fatalf("expected cart untouched after conflicting delete, got %v", err)
	}

	// The matching timestamp destroys the cart.
	expected := base
	if err := registry.Carts().Delete(ctx, "cus_1", &expected); err != nil {
		t.Fatalf("unexpected error on matching timestamp: %v", err)
	}
	if _, err := registry.Carts().GetOpen(ctx, "cus_1"); !isNotFound(err) {
		t.Fatalf("expected cart gone, got %v", err)
	}
}

func TestRegistryRunInTxCommitsOnSuccess(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	cart := domain.Cart{ID: "crt_1", CustomerID: "cus_1", VendorID: "vnd_1", UpdatedAt: time.Now().UTC()}
	if _, err := registry.Carts().Upsert(ctx, cart, nil); err != nil {
		t.Fatalf("unexpected error seeding cart: %v", err)
	}

	err := registry.RunInTx(ctx, func(txCtx context.Context) error {
		if err := registry.Bookings().Insert(txCtx, domain.BookingOrder{ID: "bkg_1", CustomerID: "cus_1", VendorID: "vnd_1"}); err != nil {
			return err
		}
		return registry.Carts().Delete(txCtx, "cus_1", nil)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := registry.Carts().GetOpen(ctx, "cus_1"); !isNotFound(err) {
		t.Fatalf("expected cart gone after commit, got %v", err)
	}
	if _, err := registry.Bookings().FindByID(ctx, "bkg_1"); err != nil {
		t.Fatalf("expected booking persisted after commit, got %v", err)
	}
}

func TestCartRepositoryUpsertOptimisticLock(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	cart := domain.Cart{ID: "crt_1", CustomerID: "cus_1", VendorID: "vnd_1", UpdatedAt: base}
	if _, err := registry.Carts().Upsert(ctx, cart, nil); err != nil {
		t.Fatalf("unexpected error creating cart: %v", err)
	}

	// Creating again must conflict.
	if _, err := registry.Carts().Upsert(ctx, cart, nil); !isConflict(err) {
		t.Fatalf("expected conflict on duplicate create, got %v", err)
	}

	// A stale expectedUpdatedAt must conflict.
	stale := base.Add(-time.Minute)
	cart.UpdatedAt = base.Add(time.Minute)
	if _, err := registry.Carts().Upsert(ctx, cart, &stale); !isConflict(err) {
		t.Fatalf("expected conflict on stale timestamp, got %v", err)
	}

	// The matching timestamp wins.
	expected := base
	if _, err := registry.Carts().Upsert(ctx, cart, &expected); err != nil {
		t.Fatalf("unexpected error on matching timestamp: %v", err)
	}

	stored, err := registry.Carts().GetOpen(ctx, "cus_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored.UpdatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected updated timestamp persisted, got %v", stored.UpdatedAt)
	}
}

func TestBookingRepositoryUpdateComparesStatus(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	booking := domain.BookingOrder{
		ID:         "bkg_1",
		CustomerID: "cus_1",
		VendorID:   "vnd_1",
		Status:     domain.BookingStatusPending,
	}
	if err := registry.Bookings().Insert(ctx, booking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	accepted := booking
	accepted.Status = domain.BookingStatusAccepted
	if _, err := registry.Bookings().Update(ctx, accepted, domain.BookingStatusPending); err != nil {
		t.Fatalf("unexpected error on first update: %v", err)
	}

	// The second writer still expects pending and must lose.
	declined := booking
	declined.Status = domain.BookingStatusDeclined
	if _, err := registry.Bookings().Update(ctx, declined, domain.BookingStatusPending); !isConflict(err) {
		t.Fatalf("expected conflict for the losing writer, got %v", err)
	}

	stored, err := registry.Bookings().FindByID(ctx, "bkg_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != domain.BookingStatusAccepted {
		t.Fatalf("expected accepted to win, got %q", stored.Status)
	}
}

func TestReviewRepositoryInsertRejectsDuplicateBooking(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	review := domain.Review{ID: "rev_1", BookingID: "bkg_1", CustomerID: "cus_1", VendorID: "vnd_1", Rating: 5}
	if _, err := registry.Reviews().Insert(ctx, review); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	duplicate := domain.Review{ID: "rev_2", BookingID: "bkg_1", CustomerID: "cus_1", VendorID: "vnd_1", Rating: 1}
	if _, err := registry.Reviews().Insert(ctx, duplicate); !isConflict(err) {
		t.Fatalf("expected conflict for a second review on the same booking, got %v", err)
	}
}

func TestListingRepositoryListByCategoryOnlyActiveFilter(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	active := domain.Listing{ID: "lst_1", VendorID: "vnd_1", Category: domain.CategoryCleaning, IsActive: true}
	inactive := domain.Listing{ID: "lst_2", VendorID: "vnd_1", Category: domain.CategoryCleaning, IsActive: false}
	if err := registry.Listings().Insert(ctx, active); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := registry.Listings().Insert(ctx, inactive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	page, err := registry.Listings().ListByCategory(ctx, domain.CategoryCleaning, repositories.ListingListFilter{OnlyActive: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "lst_1" {
		t.Fatalf("expected only the active listing, got %+v", page.Items)
	}

	all, err := registry.Listings().ListByCategory(ctx, domain.CategoryCleaning, repositories.ListingListFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all.Items) != 2 {
		t.Fatalf("expected both listings without the active filter, got %d", len(all.Items))
	}
}
