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
	"github.com/helpora/api/internal/services"
)

// CatalogHandlers exposes public catalog reads and vendor listing management.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs handlers over the catalog service.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes wires the public catalog endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/listings/{listingID}", h.getListing)
	r.Get("/categories/{category}/listings", h.listByCategory)
}

// VendorRoutes wires the vendor-scoped catalog endpoints.
func (h *CatalogHandlers) VendorRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{vendorID}/listings", h.listByVendor)
}

// ManagementRoutes wires the listing management endpoints for vendor tooling.
func (h *CatalogHandlers) ManagementRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/listings", h.upsertListing)
	r.Put("/listings/{listingID}", h.upsertListing)
	r.Post("/listings/{listingID}/deactivate", h.deactivateListing)
}

func (h *CatalogHandlers) getListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listing, err := h.catalog.GetListing(ctx, chi.URLParam(r, "listingID"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, listingResponse{Listing: buildListingPayload(listing)})
}

func (h *CatalogHandlers) listByCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := listingFilterFromRequest(r)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}
	category := domain.Category(chi.URLParam(r, "category"))
	page, err := h.catalog.ListByCategory(ctx, category, filter)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildListingPage(page))
}

func (h *CatalogHandlers) listByVendor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := listingFilterFromRequest(r)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}
	page, err := h.catalog.ListByVendor(ctx, chi.URLParam(r, "vendorID"), filter)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildListingPage(page))
}

type upsertListingRequest struct {
	VendorID   string            `json:"vendor_id"`
	Kind       string            `json:"kind"`
	Category   string            `json:"category"`
	Title      string            `json:"title"`
	PriceBasis priceBasisPayload `json:"price_basis"`
	IsActive   *bool             `json:"is_active"`
}

func (h *CatalogHandlers) upsertListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req upsertListingRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	listing, err := h.catalog.UpsertListing(ctx, services.UpsertListingCommand{
		ListingID: chi.URLParam(r, "listingID"),
		VendorID:  strings.TrimSpace(req.VendorID),
		Kind:      domain.ListingKind(strings.TrimSpace(req.Kind)),
		Category:  domain.Category(strings.TrimSpace(req.Category)),
		Title:     req.Title,
		PriceBasis: domain.PriceBasis{
			Mode:             domain.PriceMode(strings.TrimSpace(req.PriceBasis.Mode)),
			Amount:           req.PriceBasis.Amount,
			MinDurationHours: req.PriceBasis.MinDurationHours,
		},
		IsActive: req.IsActive,
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if chi.URLParam(r, "listingID") == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, listingResponse{Listing: buildListingPayload(listing)})
}

func (h *CatalogHandlers) deactivateListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listing, err := h.catalog.DeactivateListing(ctx, chi.URLParam(r, "listingID"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, listingResponse{Listing: buildListingPayload(listing)})
}

func (h *CatalogHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrListingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("listing_not_found", "listing not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_conflict", "listing was modified concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "catalog operation failed", http.StatusInternalServerError))
	}
}

func listingFilterFromRequest(r *http.Request) (services.ListingFilter, error) {
	pager, err := parsePagination(r)
	if err != nil {
		return services.ListingFilter{}, err
	}
	query := r.URL.Query()
	return services.ListingFilter{
		Kind:            domain.ListingKind(strings.TrimSpace(query.Get("kind"))),
		IncludeInactive: query.Get("include_inactive") == "true",
		Pagination:      pager,
	}, nil
}

type listingResponse struct {
	Listing listingPayload `json:"listing"`
}

type listingPageResponse struct {
	Listings      []listingPayload `json:"listings"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func buildListingPage(page domain.CursorPage[services.Listing]) listingPageResponse {
	items := make([]listingPayload, 0, len(page.Items))
	for _, listing := range page.Items {
		items = append(items, buildListingPayload(listing))
	}
	return listingPageResponse{
		Listings:      items,
		NextPageToken: pagination.EncodeToken(page.NextPageToken),
	}
}
