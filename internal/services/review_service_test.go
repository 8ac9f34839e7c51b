package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/helpora/api/internal/domain"
)

func newTestReviewService(t *testing.T, deps ReviewServiceDeps) ReviewService {
	t.Helper()
	service, err := NewReviewService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing review service: %v", err)
	}
	return service
}

func completedBookingRepo(status domain.BookingStatus) *stubBookingRepository {
	return &stubBookingRepository{
		findFunc: func(ctx context.Context, bookingID string) (domain.BookingOrder, error) {
			if bookingID != "bkg_1" {
				return domain.BookingOrder{}, &repositoryErrorStub{notFound: true}
			}
			return domain.BookingOrder{
				ID:         "bkg_1",
				CustomerID: "cus_1",
				VendorID:   "vnd_sparkle",
				Status:     status,
			}, nil
		},
	}
}

func TestReviewServiceSubmitForCompletedBooking(t *testing.T) {
	now := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)

	var inserted domain.Review
	reviews := &stubReviewRepository{
		insertFunc: func(ctx context.Context, review domain.Review) (domain.Review, error) {
			inserted = review
			return review, nil
		},
	}

	service := newTestReviewService(t, ReviewServiceDeps{
		Reviews:     reviews,
		Bookings:    completedBookingRepo(domain.BookingStatusCompleted),
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "rev_test" },
	})

	review, err := service.Submit(context.Background(), SubmitReviewCommand{
		BookingID:  "bkg_1",
		CustomerID: "cus_1",
		Rating:     5,
		Comment:    "Spotless work, right on time.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if review.ID != "rev_test" {
		t.Fatalf("expected review id rev_test, got %q", review.ID)
	}
	if inserted.VendorID != "vnd_sparkle" {
		t.Fatalf("expected vendor id carried from booking, got %q", inserted.VendorID)
	}
	if inserted.Rating != 5 {
		t.Fatalf("expected rating 5, got %d", inserted.Rating)
	}
}

func TestReviewServiceSubmitStripsMarkup(t *testing.T) {
	var inserted domain.Review
	reviews := &stubReviewRepository{
		insertFunc: func(ctx context.Context, review domain.Review) (domain.Review, error) {
			inserted = review
			return review, nil
		},
	}

	service := newTestReviewService(t, ReviewServiceDeps{
		Reviews:  reviews,
		Bookings: completedBookingRepo(domain.BookingStatusCompleted),
	})

	_, err := service.Submit(context.Background(), SubmitReviewCommand{
		BookingID:  "bkg_1",
		CustomerID: "cus_1",
		Rating:     4,
		Comment:    "<script>alert(1)</script>Great service",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted.Comment != "Great service" {
		t.Fatalf("expected markup stripped, got %q", inserted.Comment)
	}
}

func TestReviewServiceSubmitBeforeCompletion(t *testing.T) {
	statuses := []domain.BookingStatus{
		domain.BookingStatusPending,
		domain.BookingStatusAccepted,
		domain.BookingStatusInProgress,
		domain.BookingStatusDeclined,
		domain.BookingStatusCancelled,
	}

	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			service := newTestReviewService(t, ReviewServiceDeps{
				Reviews:  &stubReviewRepository{},
				Bookings: completedBookingRepo(status),
			})

			_, err := service.Submit(context.Background(), SubmitReviewCommand{
				BookingID:  "bkg_1",
				CustomerID: "cus_1",
				Rating:     5,
			})
			if !errors.Is(err, ErrReviewNotCompleted) {
				t.Fatalf("expected ErrReviewNotCompleted for %s booking, got %v", status, err)
			}
		})
	}
}

func TestReviewServiceSubmitDuplicate(t *testing.T) {
	reviews := &stubReviewRepository{
		insertFunc: func(ctx context.Context, review domain.Review) (domain.Review, error) {
			return domain.Review{}, &repositoryErrorStub{conflict: true}
		},
	}

	service := newTestReviewService(t, ReviewServiceDeps{
		Reviews:  reviews,
		Bookings: completedBookingRepo(domain.BookingStatusCompleted),
	})

	_, err := service.Submit(context.Background(), SubmitReviewCommand{
		BookingID:  "bkg_1",
		CustomerID: "cus_1",
		Rating:     3,
	})
	if !errors.Is(err, ErrReviewAlreadyExists) {
		t.Fatalf("expected ErrReviewAlreadyExists, got %v", err)
	}
}

func TestReviewServiceSubmitByNonCustomer(t *testing.T) {
	service := newTestReviewService(t, ReviewServiceDeps{
		Reviews:  &stubReviewRepository{},
		Bookings: completedBookingRepo(domain.BookingStatusCompleted),
	})

	_, err := service.Submit(context.Background(), SubmitReviewCommand{
		BookingID:  "bkg_1",
		CustomerID: "cus_other",
		Rating:     5,
	})
	if !errors.Is(err, ErrReviewNotAuthor) {
		t.Fatalf("expected ErrReviewNotAuthor, got %v", err)
	}
}

func TestReviewServiceSubmitRatingBounds(t *testing.T) {
	service := newTestReviewService(t, ReviewServiceDeps{
		Reviews:  &stubReviewRepository{},
		Bookings: completedBookingRepo(domain.BookingStatusCompleted),
	})

	for _, rating := range []int{0, -1, 6} {
		_, err := service.Submit(context.Background(), SubmitReviewCommand{
			BookingID:  "bkg_1",
			CustomerID: "cus_1",
			Rating:     rating,
		})
		if !errors.Is(err, ErrReviewInvalidRating) {
			t.Fatalf("expected ErrReviewInvalidRating for rating %d, got %v", rating, err)
		}
	}
}

func TestReviewServiceEligibility(t *testing.T) {
	t.Run("not completed", func(t *testing.T) {
		service := newTestReviewService(t, ReviewServiceDeps{
			Reviews:  &stubReviewRepository{},
			Bookings: completedBookingRepo(domain.BookingStatusInProgress),
		})

		eligibility, err := service.Eligibility(context.Background(), "bkg_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if eligibility.Eligible {
			t.Fatalf("expected ineligible before completion")
		}
	})

	t.Run("completed without review", func(t *testing.T) {
		service := newTestReviewService(t, ReviewServiceDeps{
			Reviews:  &stubReviewRepository{},
			Bookings: completedBookingRepo(domain.BookingStatusCompleted),
		})

		eligibility, err := service.Eligibility(context.Background(), "bkg_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !eligibility.Eligible {
			t.Fatalf("expected eligible, got reason %q", eligibility.Reason)
		}
	})

	t.Run("already reviewed", func(t *testing.T) {
		reviews := &stubReviewRepository{
			findByBookingFunc: func(ctx context.Context, bookingID string) (domain.Review, error) {
				return domain.Review{ID: "rev_1", BookingID: bookingID}, nil
			},
		}
		service := newTestReviewService(t, ReviewServiceDeps{
			Reviews:  reviews,
			Bookings: completedBookingRepo(domain.BookingStatusCompleted),
		})

		eligibility, err := service.Eligibility(context.Background(), "bkg_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if eligibility.Eligible {
			t.Fatalf("expected ineligible after an existing review")
		}
	})
}

type stubReviewRepository struct {
	insertFunc        func(ctx context.Context, review domain.Review) (domain.Review, error)
	findByBookingFunc func(ctx context.Context, bookingID string) (domain.Review, error)
	listByVendorFunc  func(ctx context.Context, vendorID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error)
}

func (s *stubReviewRepository) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	if s.insertFunc != nil {
		return s.insertFunc(ctx, review)
	}
	return review, nil
}

func (s *stubReviewRepository) FindByBooking(ctx context.Context, bookingID string) (domain.Review, error) {
	if s.findByBookingFunc != nil {
		return s.findByBookingFunc(ctx, bookingID)
	}
	return domain.Review{}, &repositoryErrorStub{notFound: true}
}

func (s *stubReviewRepository) ListByVendor(ctx context.Context, vendorID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	if s.listByVendorFunc != nil {
		return s.listByVendorFunc(ctx, vendorID, pager)
	}
	return domain.CursorPage[domain.Review]{}, nil
}
