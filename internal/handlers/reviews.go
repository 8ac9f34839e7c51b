package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helpora/api/internal/platform/httpx"
	"github.com/helpora/api/internal/platform/pagination"
	"github.com/helpora/api/internal/platform/requestctx"
	"github.com/helpora/api/internal/services"
)

// ReviewHandlers exposes review submission and lookups.
type ReviewHandlers struct {
	reviews services.ReviewService
}

// NewReviewHandlers constructs handlers over the review service.
func NewReviewHandlers(reviews services.ReviewService) *ReviewHandlers {
	return &ReviewHandlers{reviews: reviews}
}

// Routes wires the booking-scoped review endpoints onto the provided router.
func (h *ReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		g.Use(RequireCustomer())
		g.Post("/{bookingID}/review", h.submit)
		g.Get("/{bookingID}/review", h.getByBooking)
		g.Get("/{bookingID}/review/eligibility", h.eligibility)
	})
}

// VendorRoutes wires the vendor-scoped review listing.
func (h *ReviewHandlers) VendorRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{vendorID}/reviews", h.listByVendor)
}

type submitReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *ReviewHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req submitReviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	review, err := h.reviews.Submit(ctx, services.SubmitReviewCommand{
		BookingID:  chi.URLParam(r, "bookingID"),
		CustomerID: requestctx.CustomerID(ctx),
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		h.writeReviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, reviewResponse{Review: buildReviewPayload(review)})
}

func (h *ReviewHandlers) getByBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	review, err := h.reviews.GetByBooking(ctx, chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeReviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, reviewResponse{Review: buildReviewPayload(review)})
}

func (h *ReviewHandlers) eligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eligibility, err := h.reviews.Eligibility(ctx, chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeReviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, eligibilityResponse{
		Eligible: eligibility.Eligible,
		Reason:   eligibility.Reason,
	})
}

func (h *ReviewHandlers) listByVendor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pager, err := parsePagination(r)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}
	page, err := h.reviews.ListByVendor(ctx, chi.URLParam(r, "vendorID"), pager)
	if err != nil {
		h.writeReviewError(ctx, w, err)
		return
	}

	items := make([]reviewPayload, 0, len(page.Items))
	for _, review := range page.Items {
		items = append(items, buildReviewPayload(review))
	}
	writeJSONResponse(w, http.StatusOK, reviewPageResponse{
		Reviews:       items,
		NextPageToken: pagination.EncodeToken(page.NextPageToken),
	})
}

func (h *ReviewHandlers) writeReviewError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrReviewInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReviewInvalidRating):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_rating", "rating must be between 1 and 5", http.StatusBadRequest))
	case errors.Is(err, services.ErrReviewNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("review_not_found", "review not found", http.StatusNotFound))
	case errors.Is(err, services.ErrReviewBookingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("booking_not_found", "booking not found", http.StatusNotFound))
	case errors.Is(err, services.ErrReviewNotCompleted):
		httpx.WriteError(ctx, w, httpx.NewError("booking_not_completed", "reviews require a completed booking", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrReviewNotAuthor):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "only the booking customer may review it", http.StatusForbidden))
	case errors.Is(err, services.ErrReviewAlreadyExists):
		httpx.WriteError(ctx, w, httpx.NewError("review_exists", "a review already exists for this booking", http.StatusConflict))
	case errors.Is(err, services.ErrReviewUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("review_error", "review operation failed", http.StatusInternalServerError))
	}
}

type reviewResponse struct {
	Review reviewPayload `json:"review"`
}

type eligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

type reviewPageResponse struct {
	Reviews       []reviewPayload `json:"reviews"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}
