package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/helpora/api/internal/domain"
	"github.com/helpora/api/internal/repositories"
)

func newTestBookingService(t *testing.T, deps BookingServiceDeps) BookingService {
	t.Helper()
	service, err := NewBookingService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing booking service: %v", err)
	}
	return service
}

func pendingBooking(now time.Time) domain.BookingOrder {
	return domain.BookingOrder{
		ID:         "bkg_1",
		CustomerID: "cus_1",
		VendorID:   "vnd_sparkle",
		Category:   domain.CategoryCleaning,
		Currency:   "USD",
		Lines: []domain.BookingLine{
			{ListingID: "lst_clean", Mode: domain.PriceModeHourly, Quantity: 1, UnitPrice: 8500, DurationHours: 2, LineTotal: 17000},
		},
		Totals: domain.BookingTotals{Subtotal: 17000, Fees: 1700, Tax: 0, Total: 18700},
		Status: domain.BookingStatusPending,
		StatusHistory: []domain.StatusChange{
			{Status: domain.BookingStatusPending, OccurredAt: now.Add(-time.Hour)},
		},
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now.Add(-time.Hour),
	}
}

// singleBookingRepo keeps one booking in memory and honors the status
// compare-and-swap on Update.
type singleBookingRepo struct {
	stubBookingRepository
	booking domain.BookingOrder
}

func newSingleBookingRepo(booking domain.BookingOrder) *singleBookingRepo {
	repo := &singleBookingRepo{booking: booking}
	repo.findFunc = func(ctx context.Context, bookingID string) (domain.BookingOrder, error) {
		if bookingID != repo.booking.ID {
			return domain.BookingOrder{}, &repositoryErrorStub{notFound: true}
		}
		return repo.booking, nil
	}
	repo.updateFunc = func(ctx context.Context, booking domain.BookingOrder, expected domain.BookingStatus) (domain.BookingOrder, error) {
		if repo.booking.Status != expected {
			return domain.BookingOrder{}, &repositoryErrorStub{conflict: true}
		}
		repo.booking = booking
		return booking, nil
	}
	return repo
}

func TestBookingServiceCreateFromCartStartsPending(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	var inserted domain.BookingOrder
	repo := &stubBookingRepository{
		insertFunc: func(ctx context.Context, booking domain.BookingOrder) error {
			inserted = booking
			return nil
		},
	}

	var events []BookingEvent
	service := newTestBookingService(t, BookingServiceDeps{
		Bookings:    repo,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "bkg_new" },
		Events: &stubBookingEventPublisher{
			publishFunc: func(ctx context.Context, event BookingEvent) error {
				events = append(events, event)
				return nil
			},
		},
	})

	booking, err := service.CreateFromCart(context.Background(), CreateBookingCommand{
		Cart: domain.Cart{
			ID:         "crt_1",
			CustomerID: "cus_1",
			VendorID:   "vnd_sparkle",
			Category:   domain.CategoryCleaning,
			Currency:   "USD",
			Lines:      []domain.CartLine{{ListingID: "lst_clean", Mode: domain.PriceModeHourly, Quantity: 1, UnitPrice: 8500, DurationHours: 2}},
		},
		Totals:     domain.BookingTotals{Subtotal: 17000, Fees: 1700, Tax: 0, Total: 18700},
		AddressID:  "adr_1",
		PaymentRef: "pay_1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if booking.Status != domain.BookingStatusPending {
		t.Fatalf("expected pending status, got %q", booking.Status)
	}
	if len(booking.StatusHistory) != 1 || booking.StatusHistory[0].Status != domain.BookingStatusPending {
		t.Fatalf("expected a single pending history entry, got %+v", booking.StatusHistory)
	}
	if inserted.Lines[0].LineTotal != 17000 {
		t.Fatalf("expected frozen line total 17000, got %d", inserted.Lines[0].LineTotal)
	}
	if len(events) != 1 || events[0].Type != "booking.created" {
		t.Fatalf("expected booking.created event, got %+v", events)
	}
}

func TestBookingServiceCreateFromCartRejectsInconsistentTotals(t *testing.T) {
	service := newTestBookingService(t, BookingServiceDeps{Bookings: &stubBookingRepository{}})

	_, err := service.CreateFromCart(context.Background(), CreateBookingCommand{
		Cart: domain.Cart{
			CustomerID: "cus_1",
			VendorID:   "vnd_1",
			Lines:      []domain.CartLine{{ListingID: "lst_1", Quantity: 1, UnitPrice: 100}},
		},
		Totals: domain.BookingTotals{Subtotal: 100, Fees: 10, Tax: 0, Total: 999},
	})
	if !errors.Is(err, ErrBookingCorrupted) {
		t.Fatalf("expected ErrBookingCorrupted, got %v", err)
	}
}

func TestBookingServiceAcceptAppendsHistory(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	repo := newSingleBookingRepo(pendingBooking(now))

	var events []BookingEvent
	service := newTestBookingService(t, BookingServiceDeps{
		Bookings: repo,
		Clock:    func() time.Time { return now },
		Events: &stubBookingEventPublisher{
			publishFunc: func(ctx context.Context, event BookingEvent) error {
				events = append(events, event)
				return nil
			},
		},
	})

	booking, err := service.Accept(context.Background(), TransitionCommand{BookingID: "bkg_1", ActorID: "vnd_sparkle"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if booking.Status != domain.BookingStatusAccepted {
		t.Fatalf("expected accepted, got %q", booking.Status)
	}
	if len(booking.StatusHistory) != 2 {
		t.Fatalf("expected exactly one appended history entry, got %d entries", len(booking.StatusHistory))
	}
	last := booking.StatusHistory[1]
	if last.Status != domain.BookingStatusAccepted {
		t.Fatalf("expected history tail accepted, got %q", last.Status)
	}
	if last.OccurredAt.Before(booking.StatusHistory[0].OccurredAt) {
		t.Fatalf("history timestamps must be non-decreasing")
	}
	if len(events) != 1 || events[0].Type != "booking.status.changed" {
		t.Fatalf("expected booking.status.changed event, got %+v", events)
	}
	if events[0].PreviousStatus != domain.BookingStatusPending || events[0].CurrentStatus != domain.BookingStatusAccepted {
		t.Fatalf("expected pending -> accepted on the event, got %+v", events[0])
	}
}

func TestBookingServiceDeclineRequiresReason(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	repo := newSingleBookingRepo(pendingBooking(now))
	service := newTestBookingService(t, BookingServiceDeps{Bookings: repo, Clock: func() time.Time { return now }})

	_, err := service.Decline(context.Background(), ReasonedTransitionCommand{BookingID: "bkg_1"})
	if !errors.Is(err, ErrBookingInvalidInput) {
		t.Fatalf("expected ErrBookingInvalidInput for missing reason, got %v", err)
	}
}

func TestBookingServiceDeclinedIsTerminal(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	repo := newSingleBookingRepo(pendingBooking(now))
	service := newTestBookingService(t, BookingServiceDeps{Bookings: repo, Clock: func() time.Time { return now }})

	declined, err := service.Decline(context.Background(), ReasonedTransitionCommand{
		BookingID: "bkg_1",
		ActorID:   "vnd_sparkle",
		Reason:    "fully booked that day",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if declined.Status != domain.BookingStatusDeclined {
		t.Fatalf("expected declined, got %q", declined.Status)
	}
	if declined.CancellationReason != "fully booked that day" {
		t.Fatalf("expected recorded reason, got %q", declined.CancellationReason)
	}

	if _, err := service.Accept(context.Background(), TransitionCommand{BookingID: "bkg_1"}); !errors.Is(err, ErrBookingInvalidTransition) {
		t.Fatalf("expected ErrBookingInvalidTransition after decline, got %v", err)
	}
	if _, err := service.Start(context.Background(), TransitionCommand{BookingID: "bkg_1"}); !errors.Is(err, ErrBookingInvalidTransition) {
		t.Fatalf("expected ErrBookingInvalidTransition after decline, got %v", err)
	}
	if _, err := service.Cancel(context.Background(), ReasonedTransitionCommand{BookingID: "bkg_1", Reason: "changed my mind"}); !errors.Is(err, ErrBookingInvalidTransition) {
		t.Fatalf("expected ErrBookingInvalidTransition after decline, got %v", err)
	}
}

func TestBookingServiceDoubleAcceptFailsSecondTime(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	repo := newSingleBookingRepo(pendingBooking(now))
	service := newTestBookingService(t, BookingServiceDeps{Bookings: repo, Clock: func() time.Time { return now }})

	if _, err := service.Accept(context.Background(), TransitionCommand{BookingID: "bkg_1"}); err != nil {
		t.Fatalf("unexpected error on first accept: %v", err)
	}
	if _, err := service.Accept(context.Background(), TransitionCommand{BookingID: "bkg_1"}); !errors.Is(err, ErrBookingInvalidTransition) {
		t.Fatalf("expected ErrBookingInvalidTransition on second accept, got %v", err)
	}
}

func TestBookingServiceRacingTransitionsHaveOneWinner(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// The first Update call wins; the loser hits the conflict, re-reads the
	// declined booking, and fails transition validation.
	stored := pendingBooking(now)
	reads := 0
	repo := &stubBookingRepository{
		findFunc: func(ctx context.Context, bookingID string) (domain.BookingOrder, error) {
			reads++
			return stored, nil
		},
		updateFunc: func(ctx context.Context, booking domain.BookingOrder, expected domain.BookingStatus) (domain.BookingOrder, error) {
			if stored.Status != expected {
				return domain.BookingOrder{}, &repositoryErrorStub{conflict: true}
			}
			// Simulate the concurrent decline landing first.
			stored.Status = domain.BookingStatusDeclined
			stored.StatusHistory = append(stored.StatusHistory, domain.StatusChange{Status: domain.BookingStatusDeclined, OccurredAt: now})
			return domain.BookingOrder{}, &repositoryErrorStub{conflict: true}
		},
	}

	service := newTestBookingService(t, BookingServiceDeps{Bookings: repo, Clock: func() time.Time { return now }})

	_, err := service.Accept(context.Background(), TransitionCommand{BookingID: "bkg_1"})
	if !errors.Is(err, ErrBookingInvalidTransition) {
		t.Fatalf("expected the losing accept to fail with ErrBookingInvalidTransition, got %v", err)
	}
	if reads < 2 {
		t.Fatalf("expected a re-read after the conflict, got %d reads", reads)
	}
}

func TestBookingServiceFullLifecycleToCompleted(t *testing.T) {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	current := start
	repo := newSingleBookingRepo(pendingBooking(start))
	service := newTestBookingService(t, BookingServiceDeps{
		Bookings: repo,
		Clock:    func() time.Time { return current },
	})

	ctx := context.Background()
	if _, err := service.Accept(ctx, TransitionCommand{BookingID: "bkg_1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	current = current.Add(time.Hour)
	if _, err := service.Start(ctx, TransitionCommand{BookingID: "bkg_1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	current = current.Add(2 * time.Hour)
	booking, err := service.Complete(ctx, TransitionCommand{BookingID: "bkg_1"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if booking.Status != domain.BookingStatusCompleted {
		t.Fatalf("expected completed, got %q", booking.Status)
	}
	if booking.CompletedAt == nil || !booking.CompletedAt.Equal(current) {
		t.Fatalf("expected CompletedAt stamped at completion time, got %v", booking.CompletedAt)
	}
	if len(booking.StatusHistory) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(booking.StatusHistory))
	}
	for i := 1; i < len(booking.StatusHistory); i++ {
		if booking.StatusHistory[i].OccurredAt.Before(booking.StatusHistory[i-1].OccurredAt) {
			t.Fatalf("history timestamps must be non-decreasing")
		}
	}
}

func TestBookingServiceCancelFromAcceptedRecordsReason(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	booking := pendingBooking(now)
	booking.Status = domain.BookingStatusAccepted
	booking.StatusHistory = append(booking.StatusHistory, domain.StatusChange{Status: domain.BookingStatusAccepted, OccurredAt: now.Add(-30 * time.Minute)})
	repo := newSingleBookingRepo(booking)

	service := newTestBookingService(t, BookingServiceDeps{Bookings: repo, Clock: func() time.Time { return now }})

	cancelled, err := service.Cancel(context.Background(), ReasonedTransitionCommand{
		BookingID: "bkg_1",
		ActorID:   "cus_1",
		Reason:    "no longer needed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.BookingStatusCancelled {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}
	if cancelled.CancellationReason != "no longer needed" {
		t.Fatalf("expected recorded reason, got %q", cancelled.CancellationReason)
	}
}

func TestBookingServiceGetBookingRejectsCorruptedTotals(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	booking := pendingBooking(now)
	booking.Totals.Total = 1
	repo := newSingleBookingRepo(booking)

	service := newTestBookingService(t, BookingServiceDeps{Bookings: repo})

	if _, err := service.GetBooking(context.Background(), "bkg_1"); !errors.Is(err, ErrBookingCorrupted) {
		t.Fatalf("expected ErrBookingCorrupted, got %v", err)
	}
	if _, err := service.Accept(context.Background(), TransitionCommand{BookingID: "bkg_1"}); !errors.Is(err, ErrBookingCorrupted) {
		t.Fatalf("expected transitions blocked on corrupted totals, got %v", err)
	}
}

func TestBookingServiceGetBookingNotFound(t *testing.T) {
	repo := &stubBookingRepository{
		findFunc: func(ctx context.Context, bookingID string) (domain.BookingOrder, error) {
			return domain.BookingOrder{}, &repositoryErrorStub{notFound: true}
		},
	}
	service := newTestBookingService(t, BookingServiceDeps{Bookings: repo})

	if _, err := service.GetBooking(context.Background(), "bkg_missing"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

type stubBookingRepository struct {
	insertFunc         func(ctx context.Context, booking domain.BookingOrder) error
	findFunc           func(ctx context.Context, bookingID string) (domain.BookingOrder, error)
	updateFunc         func(ctx context.Context, booking domain.BookingOrder, expectedStatus domain.BookingStatus) (domain.BookingOrder, error)
	listByCustomerFunc func(ctx context.Context, customerID string, filter repositories.BookingListFilter) (domain.CursorPage[domain.BookingOrder], error)
	listByVendorFunc   func(ctx context.Context, vendorID string, filter repositories.BookingListFilter) (domain.CursorPage[domain.BookingOrder], error)
}

func (s *stubBookingRepository) Insert(ctx context.Context, booking domain.BookingOrder) error {
	if s.insertFunc != nil {
		return s.insertFunc(ctx, booking)
	}
	return nil
}

func (s *stubBookingRepository) FindByID(ctx context.Context, bookingID string) (domain.BookingOrder, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, bookingID)
	}
	return domain.BookingOrder{}, &repositoryErrorStub{notFound: true}
}

func (s *stubBookingRepository) Update(ctx context.Context, booking domain.BookingOrder, expectedStatus domain.BookingStatus) (domain.BookingOrder, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, booking, expectedStatus)
	}
	return booking, nil
}

func (s *stubBookingRepository) ListByCustomer(ctx context.Context, customerID string, filter repositories.BookingListFilter) (domain.CursorPage[domain.BookingOrder], error) {
	if s.listByCustomerFunc != nil {
		return s.listByCustomerFunc(ctx, customerID, filter)
	}
	return domain.CursorPage[domain.BookingOrder]{}, nil
}

func (s *stubBookingRepository) ListByVendor(ctx context.Context, vendorID string, filter repositories.BookingListFilter) (domain.CursorPage[domain.BookingOrder], error) {
	if s.listByVendorFunc != nil {
		return s.listByVendorFunc(ctx, vendorID, filter)
	}
	return domain.CursorPage[domain.BookingOrder]{}, nil
}

type stubBookingEventPublisher struct {
	publishFunc func(ctx context.Context, event BookingEvent) error
}

func (s *stubBookingEventPublisher) PublishBookingEvent(ctx context.Context, event BookingEvent) error {
	if s.publishFunc != nil {
		return s.publishFunc(ctx, event)
	}
	return nil
}
