package handlers

import (
	"github.com/helpora/api/internal/services"
)

type priceBasisPayload struct {
	Mode             string `json:"mode"`
	Amount           int64  `json:"amount"`
	MinDurationHours int    `json:"min_duration_hours,omitempty"`
}

type listingPayload struct {
	ID         string            `json:"id"`
	VendorID   string            `json:"vendor_id"`
	Kind       string            `json:"kind"`
	Category   string            `json:"category"`
	Title      string            `json:"title"`
	PriceBasis priceBasisPayload `json:"price_basis"`
	IsActive   bool              `json:"is_active"`
	CreatedAt  string            `json:"created_at,omitempty"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

func buildListingPayload(listing services.Listing) listingPayload {
	return listingPayload{
		ID:       listing.ID,
		VendorID: listing.VendorID,
		Kind:     string(listing.Kind),
		Category: string(listing.Category),
		Title:    listing.Title,
		PriceBasis: priceBasisPayload{
			Mode:             string(listing.PriceBasis.Mode),
			Amount:           listing.PriceBasis.Amount,
			MinDurationHours: listing.PriceBasis.MinDurationHours,
		},
		IsActive:  listing.IsActive,
		CreatedAt: formatTime(listing.CreatedAt),
		UpdatedAt: formatTime(listing.UpdatedAt),
	}
}

type cartLinePayload struct {
	ListingID     string `json:"listing_id"`
	Kind          string `json:"kind"`
	Title         string `json:"title"`
	Mode          string `json:"mode"`
	Quantity      int    `json:"quantity"`
	UnitPrice     int64  `json:"unit_price"`
	DurationHours int    `json:"duration_hours,omitempty"`
	AddedAt       string `json:"added_at,omitempty"`
}

type cartPayload struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customer_id"`
	VendorID   string            `json:"vendor_id,omitempty"`
	Category   string            `json:"category,omitempty"`
	Currency   string            `json:"currency"`
	LinesCount int               `json:"lines_count"`
	Lines      []cartLinePayload `json:"lines"`
	CreatedAt  string            `json:"created_at,omitempty"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

func buildCartPayload(cart services.Cart) cartPayload {
	lines := make([]cartLinePayload, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, cartLinePayload{
			ListingID:     line.ListingID,
			Kind:          string(line.Kind),
			Title:         line.Title,
			Mode:          string(line.Mode),
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			DurationHours: line.DurationHours,
			AddedAt:       formatTime(line.AddedAt),
		})
	}
	return cartPayload{
		ID:         cart.ID,
		CustomerID: cart.CustomerID,
		VendorID:   cart.VendorID,
		Category:   string(cart.Category),
		Currency:   cart.Currency,
		LinesCount: len(lines),
		Lines:      lines,
		CreatedAt:  formatTime(cart.CreatedAt),
		UpdatedAt:  formatTime(cart.UpdatedAt),
	}
}

type bookingLinePayload struct {
	ListingID     string `json:"listing_id"`
	Kind          string `json:"kind"`
	Title         string `json:"title"`
	Mode          string `json:"mode"`
	Quantity      int    `json:"quantity"`
	UnitPrice     int64  `json:"unit_price"`
	DurationHours int    `json:"duration_hours,omitempty"`
	LineTotal     int64  `json:"line_total"`
}

type bookingTotalsPayload struct {
	Subtotal int64 `json:"subtotal"`
	Fees     int64 `json:"fees"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

type statusChangePayload struct {
	Status     string `json:"status"`
	OccurredAt string `json:"occurred_at"`
	Note       string `json:"note,omitempty"`
}

type bookingPayload struct {
	ID                 string                `json:"id"`
	CustomerID         string                `json:"customer_id"`
	VendorID           string                `json:"vendor_id"`
	Category           string                `json:"category"`
	Currency           string                `json:"currency"`
	Lines              []bookingLinePayload  `json:"lines"`
	AddressID          string                `json:"address_id,omitempty"`
	PaymentRef         string                `json:"payment_ref,omitempty"`
	Totals             bookingTotalsPayload  `json:"totals"`
	Status             string                `json:"status"`
	StatusHistory      []statusChangePayload `json:"status_history"`
	CancellationReason string                `json:"cancellation_reason,omitempty"`
	CompletedAt        string                `json:"completed_at,omitempty"`
	CreatedAt          string                `json:"created_at,omitempty"`
	UpdatedAt          string                `json:"updated_at,omitempty"`
}

func buildBookingPayload(booking services.BookingOrder) bookingPayload {
	lines := make([]bookingLinePayload, 0, len(booking.Lines))
	for _, line := range booking.Lines {
		lines = append(lines, bookingLinePayload{
			ListingID:     line.ListingID,
			Kind:          string(line.Kind),
			Title:         line.Title,
			Mode:          string(line.Mode),
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			DurationHours: line.DurationHours,
			LineTotal:     line.LineTotal,
		})
	}
	history := make([]statusChangePayload, 0, len(booking.StatusHistory))
	for _, change := range booking.StatusHistory {
		history = append(history, statusChangePayload{
			Status:     string(change.Status),
			OccurredAt: formatTime(change.OccurredAt),
			Note:       change.Note,
		})
	}
	payload := bookingPayload{
		ID:         booking.ID,
		CustomerID: booking.CustomerID,
		VendorID:   booking.VendorID,
		Category:   string(booking.Category),
		Currency:   booking.Currency,
		Lines:      lines,
		AddressID:  booking.AddressID,
		PaymentRef: booking.PaymentRef,
		Totals: bookingTotalsPayload{
			Subtotal: booking.Totals.Subtotal,
			Fees:     booking.Totals.Fees,
			Tax:      booking.Totals.Tax,
			Total:    booking.Totals.Total,
		},
		Status:             string(booking.Status),
		StatusHistory:      history,
		CancellationReason: booking.CancellationReason,
		CreatedAt:          formatTime(booking.CreatedAt),
		UpdatedAt:          formatTime(booking.UpdatedAt),
	}
	if booking.CompletedAt != nil {
		payload.CompletedAt = formatTime(*booking.CompletedAt)
	}
	return payload
}

type reviewPayload struct {
	ID         string `json:"id"`
	BookingID  string `json:"booking_id"`
	CustomerID string `json:"customer_id"`
	VendorID   string `json:"vendor_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func buildReviewPayload(review services.Review) reviewPayload {
	return reviewPayload{
		ID:         review.ID,
		BookingID:  review.BookingID,
		CustomerID: review.CustomerID,
		VendorID:   review.VendorID,
		Rating:     review.Rating,
		Comment:    review.Comment,
		CreatedAt:  formatTime(review.CreatedAt),
	}
}
