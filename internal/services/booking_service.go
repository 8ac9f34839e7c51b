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

const (
	bookingIDPrefix = "bkg_"

	bookingEventCreated       = "booking.created"
	bookingEventStatusChanged = "booking.status.changed"

	// transitionRetries bounds the read-compare-write loop when concurrent
	// transitions race on the same booking.
	transitionRetries = 2
)

var (
	// ErrBookingInvalidInput signals the caller provided invalid data.
	ErrBookingInvalidInput = errors.New("booking: invalid input")
	// ErrBookingNotFound indicates the booking could not be located.
	ErrBookingNotFound = errors.New("booking: not found")
	// ErrBookingInvalidTransition indicates an illegal state-machine move,
	// including any transition attempted from a terminal state.
	ErrBookingInvalidTransition = errors.New("booking: invalid transition")
	// ErrBookingConflict indicates optimistic concurrency exhausted retries.
	ErrBookingConflict = errors.New("booking: conflict")
	// ErrBookingUnavailable indicates the booking backend cannot serve the request.
	ErrBookingUnavailable = errors.New("booking: unavailable")
	// ErrBookingCorrupted indicates a stored booking violates the totals
	// invariant. The operation aborts; the record is never silently repaired.
	ErrBookingCorrupted = errors.New("booking: corrupted totals")
)

// bookingTransitions is the complete state machine. Terminal states have no
// entries, so any move away from them fails validation.
var bookingTransitions = map[domain.BookingStatus][]domain.BookingStatus{
	domain.BookingStatusPending:    {domain.BookingStatusAccepted, domain.BookingStatusDeclined, domain.BookingStatusCancelled},
	domain.BookingStatusAccepted:   {domain.BookingStatusInProgress, domain.BookingStatusCancelled},
	domain.BookingStatusInProgress: {domain.BookingStatusCompleted, domain.BookingStatusCancelled},
}

func transitionAllowed(from, to domain.BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// BookingServiceDeps bundles collaborators required to construct the booking service.
type BookingServiceDeps struct {
	Bookings    repositories.BookingRepository
	Clock       func() time.Time
	IDGenerator func() string
	Events      BookingEventPublisher
	Logger      func(context.Context, string, map[string]any)
}

type bookingService struct {
	bookings repositories.BookingRepository
	clock    func() time.Time
	newID    func() string
	events   BookingEventPublisher
	logger   func(context.Context, string, map[string]any)
}

// NewBookingService wires dependencies into a concrete BookingService implementation.
func NewBookingService(deps BookingServiceDeps) (BookingService, error) {
	if deps.Bookings == nil {
		return nil, errors.New("booking service: booking repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = nowUTC
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return bookingIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &bookingService{
		bookings: deps.Bookings,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
		events:   deps.Events,
		logger:   logger,
	}, nil
}

// CreateFromCart freezes the priced cart snapshot into a pending booking and
// appends the first status history entry.
func (s *bookingService) CreateFromCart(ctx context.Context, cmd CreateBookingCommand) (BookingOrder, error) {
	if cmd.Cart.IsEmpty() {
		return BookingOrder{}, fmt.Errorf("%w: cart must contain at least one line", ErrBookingInvalidInput)
	}
	customerID := strings.TrimSpace(cmd.Cart.CustomerID)
	if customerID == "" {
		return BookingOrder{}, fmt.Errorf("%w: customer id is required", ErrBookingInvalidInput)
	}
	vendorID := strings.TrimSpace(cmd.Cart.VendorID)
	if vendorID == "" {
		return BookingOrder{}, fmt.Errorf("%w: vendor id is required", ErrBookingInvalidInput)
	}
	if !cmd.Totals.Consistent() {
		return BookingOrder{}, fmt.Errorf("%w: total %d != subtotal %d + fees %d + tax %d",
			ErrBookingCorrupted, cmd.Totals.Total, cmd.Totals.Subtotal, cmd.Totals.Fees, cmd.Totals.Tax)
	}

	lines, err := FreezeLines(cmd.Cart.Lines)
	if err != nil {
		return BookingOrder{}, fmt.Errorf("%w: %v", ErrBookingInvalidInput, err)
	}

	now := s.clock()
	booking := BookingOrder{
		ID:         s.newID(),
		CustomerID: customerID,
		VendorID:   vendorID,
		Category:   cmd.Cart.Category,
		Currency:   cmd.Cart.Currency,
		Lines:      lines,
		AddressID:  strings.TrimSpace(cmd.AddressID),
		PaymentRef: strings.TrimSpace(cmd.PaymentRef),
		Totals:     cmd.Totals,
		Status:     domain.BookingStatusPending,
		StatusHistory: []StatusChange{{
			Status:     domain.BookingStatusPending,
			OccurredAt: now,
			Note:       strings.TrimSpace(cmd.Note),
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.bookings.Insert(ctx, booking); err != nil {
		return BookingOrder{}, s.translateRepoError(err)
	}

	s.publishEvent(ctx, BookingEvent{
		Type:          bookingEventCreated,
		BookingID:     booking.ID,
		CustomerID:    booking.CustomerID,
		VendorID:      booking.VendorID,
		CurrentStatus: booking.Status,
		OccurredAt:    now.Format(time.RFC3339Nano),
	})

	return booking, nil
}

// GetBooking returns the aggregate, rejecting corrupted totals rather than
// serving them.
func (s *bookingService) GetBooking(ctx context.Context, bookingID string) (BookingOrder, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return BookingOrder{}, fmt.Errorf("%w: booking id is required", ErrBookingInvalidInput)
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return BookingOrder{}, s.translateRepoError(err)
	}
	if !booking.Totals.Consistent() {
		return BookingOrder{}, fmt.Errorf("%w: booking %s", ErrBookingCorrupted, bookingID)
	}
	return booking, nil
}

func (s *bookingService) ListByCustomer(ctx context.Context, customerID string, filter BookingFilter) (domain.CursorPage[BookingOrder], error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.CursorPage[BookingOrder]{}, fmt.Errorf("%w: customer id is required", ErrBookingInvalidInput)
	}
	page, err := s.bookings.ListByCustomer(ctx, customerID, repositories.BookingListFilter{
		Status:     filter.Status,
		Category:   filter.Category,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[BookingOrder]{}, s.translateRepoError(err)
	}
	return page, nil
}

func (s *bookingService) ListByVendor(ctx context.Context, vendorID string, filter BookingFilter) (domain.CursorPage[BookingOrder], error) {
	vendorID = strings.TrimSpace(vendorID)
	if vendorID == "" {
		return domain.CursorPage[BookingOrder]{}, fmt.Errorf("%w: vendor id is required", ErrBookingInvalidInput)
	}
	page, err := s.bookings.ListByVendor(ctx, vendorID, repositories.BookingListFilter{
		Status:     filter.Status,
		Category:   filter.Category,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[BookingOrder]{}, s.translateRepoError(err)
	}
	return page, nil
}

// Accept moves a pending booking to accepted.
func (s *bookingService) Accept(ctx context.Context, cmd TransitionCommand) (BookingOrder, error) {
	return s.transition(ctx, cmd.BookingID, domain.BookingStatusAccepted, "")
}

// Decline moves a pending booking to declined. Declining is a normal success
// path, not an error; the reason is mandatory.
func (s *bookingService) Decline(ctx context.Context, cmd ReasonedTransitionCommand) (BookingOrder, error) {
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return BookingOrder{}, fmt.Errorf("%w: decline reason is required", ErrBookingInvalidInput)
	}
	return s.transition(ctx, cmd.BookingID, domain.BookingStatusDeclined, reason)
}

// Start moves an accepted booking to in progress.
func (s *bookingService) Start(ctx context.Context, cmd TransitionCommand) (BookingOrder, error) {
	return s.transition(ctx, cmd.BookingID, domain.BookingStatusInProgress, "")
}

// Complete finishes an in-progress booking and stamps CompletedAt.
func (s *bookingService) Complete(ctx context.Context, cmd TransitionCommand) (BookingOrder, error) {
	return s.transition(ctx, cmd.BookingID, domain.BookingStatusCompleted, "")
}

// Cancel aborts a booking from any non-terminal state; the reason is mandatory.
func (s *bookingService) Cancel(ctx context.Context, cmd ReasonedTransitionCommand) (BookingOrder, error) {
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return BookingOrder{}, fmt.Errorf("%w: cancellation reason is required", ErrBookingInvalidInput)
	}
	return s.transition(ctx, cmd.BookingID, domain.BookingStatusCancelled, reason)
}

// transition performs the optimistic read-compare-write loop. The repository
// write compares the stored status against the status we read, so two racing
// transitions produce exactly one winner; the loser re-reads and fails
// validation against the new state instead of blocking.
func (s *bookingService) transition(ctx context.Context, bookingID string, target domain.BookingStatus, reason string) (BookingOrder, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return BookingOrder{}, fmt.Errorf("%w: booking id is required", ErrBookingInvalidInput)
	}

	var lastErr error
	for attempt := 0; attempt <= transitionRetries; attempt++ {
		booking, err := s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			return BookingOrder{}, s.translateRepoError(err)
		}
		if !booking.Totals.Consistent() {
			return BookingOrder{}, fmt.Errorf("%w: booking %s", ErrBookingCorrupted, bookingID)
		}

		if !transitionAllowed(booking.Status, target) {
			return BookingOrder{}, fmt.Errorf("%w: %s -> %s", ErrBookingInvalidTransition, booking.Status, target)
		}

		expected := booking.Status
		now := s.clock()
		if last := len(booking.StatusHistory); last > 0 && now.Before(booking.StatusHistory[last-1].OccurredAt) {
			// Keep history timestamps non-decreasing even with clock skew.
			now = booking.StatusHistory[last-1].OccurredAt
		}

		booking.Status = target
		booking.UpdatedAt = now
		booking.StatusHistory = append(booking.StatusHistory, StatusChange{
			Status:     target,
			OccurredAt: now,
			Note:       reason,
		})
		switch target {
		case domain.BookingStatusDeclined, domain.BookingStatusCancelled:
			booking.CancellationReason = reason
		case domain.BookingStatusCompleted:
			ts := now
			booking.CompletedAt = &ts
		}

		saved, err := s.bookings.Update(ctx, booking, expected)
		if err == nil {
			s.logger(ctx, "booking.transitioned", map[string]any{
				"bookingId": saved.ID,
				"from":      string(expected),
				"to":        string(target),
			})
			s.publishEvent(ctx, BookingEvent{
				Type:           bookingEventStatusChanged,
				BookingID:      saved.ID,
				CustomerID:     saved.CustomerID,
				VendorID:       saved.VendorID,
				PreviousStatus: expected,
				CurrentStatus:  saved.Status,
				Reason:         reason,
				OccurredAt:     now.Format(time.RFC3339Nano),
			})
			return saved, nil
		}
		if !isRepoConflict(err) {
			return BookingOrder{}, s.translateRepoError(err)
		}
		lastErr = err
	}
	return BookingOrder{}, fmt.Errorf("%w: %v", ErrBookingConflict, lastErr)
}

func (s *bookingService) publishEvent(ctx context.Context, event BookingEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishBookingEvent(ctx, event); err != nil {
		s.logger(ctx, "booking.event_publish_failed", map[string]any{
			"bookingId": event.BookingID,
			"type":      event.Type,
			"error":     err.Error(),
		})
	}
}

func (s *bookingService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrBookingNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrBookingConflict, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrBookingUnavailable, err)
}
