package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/helpora/api/internal/domain"
	"github.com/helpora/api/internal/repositories"
)

const (
	reviewIDPrefix = "rev_"

	reviewRatingMin = 1
	reviewRatingMax = 5

	reviewCommentMaxLength = 2000
)

var (
	// ErrReviewInvalidInput signals the caller provided invalid data.
	ErrReviewInvalidInput = errors.New("review: invalid input")
	// ErrReviewInvalidRating indicates the rating falls outside the 1..5 scale.
	ErrReviewInvalidRating = errors.New("review: invalid rating")
	// ErrReviewNotFound indicates no review exists for the booking.
	ErrReviewNotFound = errors.New("review: not found")
	// ErrReviewBookingNotFound indicates the referenced booking does not exist.
	ErrReviewBookingNotFound = errors.New("review: booking not found")
	// ErrReviewNotCompleted indicates the booking has not reached completed.
	ErrReviewNotCompleted = errors.New("review: booking not completed")
	// ErrReviewNotAuthor indicates the submitter is not the booking's customer.
	ErrReviewNotAuthor = errors.New("review: submitter is not the booking customer")
	// ErrReviewAlreadyExists indicates a review for the booking was already submitted.
	ErrReviewAlreadyExists = errors.New("review: already exists")
	// ErrReviewUnavailable indicates the review backend cannot serve the request.
	ErrReviewUnavailable = errors.New("review: unavailable")
)

// ReviewServiceDeps bundles collaborators required to construct the review service.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Bookings    repositories.BookingRepository
	Clock       func() time.Time
	IDGenerator func() string
	Sanitize    func(string) string
}

type reviewService struct {
	reviews  repositories.ReviewRepository
	bookings repositories.BookingRepository
	clock    func() time.Time
	newID    func() string
	sanitize func(string) string
}

// NewReviewService wires dependencies into a concrete ReviewService implementation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Bookings == nil {
		return nil, errors.New("review service: booking repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = nowUTC
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return reviewIDPrefix + ulid.Make().String() }
	}
	sanitize := deps.Sanitize
	if sanitize == nil {
		policy := bluemonday.StrictPolicy()
		sanitize = func(comment string) string {
			return strings.TrimSpace(policy.Sanitize(comment))
		}
	}

	return &reviewService{
		reviews:  deps.Reviews,
		bookings: deps.Bookings,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
		sanitize: sanitize,
	}, nil
}

// Submit records the single review allowed for a completed booking. The
// repository enforces uniqueness per booking, so concurrent submissions
// produce exactly one stored review.
func (s *reviewService) Submit(ctx context.Context, cmd SubmitReviewCommand) (Review, error) {
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return Review{}, fmt.Errorf("%w: booking id is required", ErrReviewInvalidInput)
	}
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Review{}, fmt.Errorf("%w: customer id is required", ErrReviewInvalidInput)
	}
	if cmd.Rating < reviewRatingMin || cmd.Rating > reviewRatingMax {
		return Review{}, fmt.Errorf("%w: rating must be between %d and %d, got %d", ErrReviewInvalidRating, reviewRatingMin, reviewRatingMax, cmd.Rating)
	}

	comment := s.sanitize(cmd.Comment)
	if len(comment) > reviewCommentMaxLength {
		return Review{}, fmt.Errorf("%w: comment exceeds %d characters", ErrReviewInvalidInput, reviewCommentMaxLength)
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if isRepoNotFound(err) {
			return Review{}, fmt.Errorf("%w: %s", ErrReviewBookingNotFound, bookingID)
		}
		return Review{}, s.translateRepoError(err)
	}
	if booking.CustomerID != customerID {
		return Review{}, fmt.Errorf("%w: booking %s", ErrReviewNotAuthor, bookingID)
	}
	if booking.Status != domain.BookingStatusCompleted {
		return Review{}, fmt.Errorf("%w: booking %s is %s", ErrReviewNotCompleted, bookingID, booking.Status)
	}

	review := Review{
		ID:         s.newID(),
		BookingID:  bookingID,
		CustomerID: customerID,
		VendorID:   booking.VendorID,
		Rating:     cmd.Rating,
		Comment:    comment,
		CreatedAt:  s.clock(),
	}

	stored, err := s.reviews.Insert(ctx, review)
	if err != nil {
		if isRepoConflict(err) {
			return Review{}, fmt.Errorf("%w: booking %s", ErrReviewAlreadyExists, bookingID)
		}
		return Review{}, s.translateRepoError(err)
	}
	return stored, nil
}

func (s *reviewService) GetByBooking(ctx context.Context, bookingID string) (Review, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return Review{}, fmt.Errorf("%w: booking id is required", ErrReviewInvalidInput)
	}
	review, err := s.reviews.FindByBooking(ctx, bookingID)
	if err != nil {
		return Review{}, s.translateRepoError(err)
	}
	return review, nil
}

// Eligibility reports whether the review action is available for a booking.
// Ineligibility is a normal answer here, not an error.
func (s *reviewService) Eligibility(ctx context.Context, bookingID string) (ReviewEligibility, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return ReviewEligibility{}, fmt.Errorf("%w: booking id is required", ErrReviewInvalidInput)
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if isRepoNotFound(err) {
			return ReviewEligibility{}, fmt.Errorf("%w: %s", ErrReviewBookingNotFound, bookingID)
		}
		return ReviewEligibility{}, s.translateRepoError(err)
	}
	if booking.Status != domain.BookingStatusCompleted {
		return ReviewEligibility{Reason: "booking is not completed"}, nil
	}

	if _, err := s.reviews.FindByBooking(ctx, bookingID); err == nil {
		return ReviewEligibility{Reason: "review already submitted"}, nil
	} else if !isRepoNotFound(err) {
		return ReviewEligibility{}, s.translateRepoError(err)
	}

	return ReviewEligibility{Eligible: true}, nil
}

func (s *reviewService) ListByVendor(ctx context.Context, vendorID string, pager Pagination) (domain.CursorPage[Review], error) {
	vendorID = strings.TrimSpace(vendorID)
	if vendorID == "" {
		return domain.CursorPage[Review]{}, fmt.Errorf("%w: vendor id is required", ErrReviewInvalidInput)
	}
	page, err := s.reviews.ListByVendor(ctx, vendorID, pager)
	if err != nil {
		return domain.CursorPage[Review]{}, s.translateRepoError(err)
	}
	return page, nil
}

func (s *reviewService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrReviewNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrReviewAlreadyExists, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
}
