package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helpora/api/internal/domain"
	"github.com/helpora/api/internal/platform/httpx"
	"github.com/helpora/api/internal/platform/pagination"
	"github.com/helpora/api/internal/platform/requestctx"
	"github.com/helpora/api/internal/services"
)

// BookingHandlers exposes booking reads and lifecycle transitions.
type BookingHandlers struct {
	bookings services.BookingService
}

// NewBookingHandlers constructs handlers over the booking service.
func NewBookingHandlers(bookings services.BookingService) *BookingHandlers {
	return &BookingHandlers{bookings: bookings}
}

// Routes wires the /bookings endpoints onto the provided router.
func (h *BookingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		g.Use(RequireCustomer())
		g.Get("/", h.listBookings)
		g.Get("/{bookingID}", h.getBooking)
		g.Post("/{bookingID}/accept", h.accept)
		g.Post("/{bookingID}/decline", h.decline)
		g.Post("/{bookingID}/start", h.start)
		g.Post("/{bookingID}/complete", h.complete)
		g.Post("/{bookingID}/cancel", h.cancel)
	})
}

// VendorRoutes wires the vendor-scoped booking reads.
func (h *BookingHandlers) VendorRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{vendorID}/bookings", h.listVendorBookings)
}

func (h *BookingHandlers) getBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	booking, err := h.bookings.GetBooking(ctx, chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeBookingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) listBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := bookingFilterFromRequest(r)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}
	page, err := h.bookings.ListByCustomer(ctx, requestctx.CustomerID(ctx), filter)
	if err != nil {
		h.writeBookingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBookingPage(page))
}

func (h *BookingHandlers) listVendorBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := bookingFilterFromRequest(r)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}
	page, err := h.bookings.ListByVendor(ctx, chi.URLParam(r, "vendorID"), filter)
	if err != nil {
		h.writeBookingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBookingPage(page))
}

func (h *BookingHandlers) accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookings.Accept)
}

func (h *BookingHandlers) start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookings.Start)
}

func (h *BookingHandlers) complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookings.Complete)
}

func (h *BookingHandlers) transition(w http.ResponseWriter, r *http.Request, advance func(context.Context, services.TransitionCommand) (services.BookingOrder, error)) {
	ctx := r.Context()
	booking, err := advance(ctx, services.TransitionCommand{
		BookingID: chi.URLParam(r, "bookingID"),
		ActorID:   requestctx.CustomerID(ctx),
	})
	if err != nil {
		h.writeBookingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) decline(w http.ResponseWriter, r *http.Request) {
	h.reasonedTransition(w, r, h.bookings.Decline)
}

func (h *BookingHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	h.reasonedTransition(w, r, h.bookings.Cancel)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandlers) reasonedTransition(w http.ResponseWriter, r *http.Request, advance func(context.Context, services.ReasonedTransitionCommand) (services.BookingOrder, error)) {
	ctx := r.Context()
	var req reasonRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	booking, err := advance(ctx, services.ReasonedTransitionCommand{
		BookingID: chi.URLParam(r, "bookingID"),
		ActorID:   requestctx.CustomerID(ctx),
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		h.writeBookingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) writeBookingError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrBookingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrBookingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("booking_not_found", "booking not found", http.StatusNotFound))
	case errors.Is(err, services.ErrBookingInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrBookingConflict):
		httpx.WriteError(ctx, w, httpx.NewError("booking_conflict", "booking was modified concurrently; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrBookingCorrupted):
		httpx.WriteError(ctx, w, httpx.NewError("booking_corrupted", "booking record failed integrity checks", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrBookingUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("booking_error", "booking operation failed", http.StatusInternalServerError))
	}
}

func bookingFilterFromRequest(r *http.Request) (services.BookingFilter, error) {
	pager, err := parsePagination(r)
	if err != nil {
		return services.BookingFilter{}, err
	}
	query := r.URL.Query()
	return services.BookingFilter{
		Status:     domain.BookingStatus(strings.TrimSpace(query.Get("status"))),
		Category:   domain.Category(strings.TrimSpace(query.Get("category"))),
		Pagination: pager,
	}, nil
}

type bookingResponse struct {
	Booking bookingPayload `json:"booking"`
}

type bookingPageResponse struct {
	Bookings      []bookingPayload `json:"bookings"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func buildBookingPage(page domain.CursorPage[services.BookingOrder]) bookingPageResponse {
	items := make([]bookingPayload, 0, len(page.Items))
	for _, booking := range page.Items {
		items = append(items, buildBookingPayload(booking))
	}
	return bookingPageResponse{
		Bookings:      items,
		NextPageToken: pagination.EncodeToken(page.NextPageToken),
	}
}
