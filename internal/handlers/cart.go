package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helpora/api/internal/platform/httpx"
	"github.com/helpora/api/internal/platform/requestctx"
	"github.com/helpora/api/internal/services"
)

// CartHandlers exposes the authenticated cart endpoints for the current customer.
type CartHandlers struct {
	carts       services.CartService
	checkout    rateLimiter
	middlewares []func(http.Handler) http.Handler
}

// CartOption customises cart handler behaviour.
type CartOption func(*CartHandlers)

// WithCartMiddlewares appends middleware applied to the cart routes after
// customer resolution, typically idempotency replay for checkout.
func WithCartMiddlewares(mw ...func(http.Handler) http.Handler) CartOption {
	return func(h *CartHandlers) {
		h.middlewares = append(h.middlewares, mw...)
	}
}

// WithCheckoutRateLimit overrides the checkout attempts allowed per customer
// per minute. A non-positive limit disables checkout rate limiting.
func WithCheckoutRateLimit(limit int) CartOption {
	return func(h *CartHandlers) {
		h.checkout = newCustomerRateLimiter(limit, time.Minute, nil)
	}
}

// NewCartHandlers constructs cart handlers over the cart service. Checkout
// attempts are rate limited per customer to absorb client retry storms.
func NewCartHandlers(carts services.CartService, opts ...CartOption) *CartHandlers {
	h := &CartHandlers{
		carts:    carts,
		checkout: newCustomerRateLimiter(10, time.Minute, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(RequireCustomer())
	for _, mw := range h.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Put("/items", h.replaceWithItem)
	r.Patch("/items/{listingID}", h.updateQuantity)
	r.Delete("/items/{listingID}", h.removeItem)
	r.Post("/checkout", h.checkoutCart)
	r.Post("/book", h.bookListing)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cart, err := h.carts.GetCart(ctx, requestctx.CustomerID(ctx))
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.carts.Clear(ctx, requestctx.CustomerID(ctx)); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cartItemRequest struct {
	ListingID     string `json:"listing_id"`
	Quantity      int    `json:"quantity"`
	DurationHours int    `json:"duration_hours"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	h.mutateWithItem(w, r, h.carts.AddItem)
}

func (h *CartHandlers) replaceWithItem(w http.ResponseWriter, r *http.Request) {
	h.mutateWithItem(w, r, h.carts.ReplaceWithItem)
}

func (h *CartHandlers) mutateWithItem(w http.ResponseWriter, r *http.Request, mutate func(context.Context, services.AddItemCommand) (services.Cart, error)) {
	ctx := r.Context()
	var req cartItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cart, err := mutate(ctx, services.AddItemCommand{
		CustomerID:    requestctx.CustomerID(ctx),
		ListingID:     strings.TrimSpace(req.ListingID),
		Quantity:      req.Quantity,
		DurationHours: req.DurationHours,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

type quantityRequest struct {
	Delta int `json:"delta"`
}

func (h *CartHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req quantityRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, services.UpdateQuantityCommand{
		CustomerID: requestctx.CustomerID(ctx),
		ListingID:  chi.URLParam(r, "listingID"),
		Delta:      req.Delta,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cart, err := h.carts.RemoveItem(ctx, services.RemoveItemCommand{
		CustomerID: requestctx.CustomerID(ctx),
		ListingID:  chi.URLParam(r, "listingID"),
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

type checkoutRequest struct {
	AddressID  string `json:"address_id"`
	PaymentRef string `json:"payment_ref"`
}

func (h *CartHandlers) checkoutCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := requestctx.CustomerID(ctx)
	if h.checkout != nil && !h.checkout.Allow(customerID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts", http.StatusTooManyRequests))
		return
	}

	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	booking, err := h.carts.Checkout(ctx, services.CheckoutCommand{
		CustomerID: customerID,
		AddressID:  strings.TrimSpace(req.AddressID),
		PaymentRef: strings.TrimSpace(req.PaymentRef),
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, bookingResponse{Booking: buildBookingPayload(booking)})
}

type directBookingRequest struct {
	ListingID     string `json:"listing_id"`
	Quantity      int    `json:"quantity"`
	DurationHours int    `json:"duration_hours"`
	AddressID     string `json:"address_id"`
	PaymentRef    string `json:"payment_ref"`
}

func (h *CartHandlers) bookListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := requestctx.CustomerID(ctx)
	if h.checkout != nil && !h.checkout.Allow(customerID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts", http.StatusTooManyRequests))
		return
	}

	var req directBookingRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	booking, err := h.carts.BookListing(ctx, services.DirectBookingCommand{
		CustomerID:    customerID,
		ListingID:     strings.TrimSpace(req.ListingID),
		Quantity:      req.Quantity,
		DurationHours: req.DurationHours,
		AddressID:     strings.TrimSpace(req.AddressID),
		PaymentRef:    strings.TrimSpace(req.PaymentRef),
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	case errors.Is(err, services.ErrListingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("listing_not_found", "listing not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartVendorConflict):
		httpx.WriteError(ctx, w, httpx.NewError("vendor_conflict", "cart is bound to a different vendor; replace or clear it first", http.StatusConflict))
	case errors.Is(err, services.ErrCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no lines to check out", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", "payment authorization failed", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("cart_conflict", "cart has been modified; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrPricingInvalidLine), errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_cart_state", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "cart operation failed", http.StatusInternalServerError))
	}
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}
