package firestore

import (
	"time"

	domain "github.com/helpora/api/internal/domain"
)

const (
	listingCollection = "listings"
	vendorCollection  = "vendors"
	cartCollection    = "carts"
	bookingCollection = "bookings"
	reviewCollection  = "reviews"
)

type priceBasisDocument struct {
	Mode             string `firestore:"mode"`
	Amount           int64  `firestore:"amount"`
	MinDurationHours int    `firestore:"minDurationHours,omitempty"`
}

type listingDocument struct {
	VendorID   string             `firestore:"vendorId"`
	Kind       string             `firestore:"kind"`
	Category   string             `firestore:"category"`
	Title      string             `firestore:"title"`
	PriceBasis priceBasisDocument `firestore:"priceBasis"`
	IsActive   bool               `firestore:"isActive"`
	CreatedAt  time.Time          `firestore:"createdAt"`
	UpdatedAt  time.Time          `firestore:"updatedAt"`
}

func listingToDocument(listing domain.Listing) listingDocument {
	return listingDocument{
		VendorID: listing.VendorID,
		Kind:     string(listing.Kind),
		Category: string(listing.Category),
		Title:    listing.Title,
		PriceBasis: priceBasisDocument{
			Mode:             string(listing.PriceBasis.Mode),
			Amount:           listing.PriceBasis.Amount,
			MinDurationHours: listing.PriceBasis.MinDurationHours,
		},
		IsActive:  listing.IsActive,
		CreatedAt: listing.CreatedAt.UTC(),
		UpdatedAt: listing.UpdatedAt.UTC(),
	}
}

func (d listingDocument) toDomain(id string) domain.Listing {
	return domain.Listing{
		ID:       id,
		VendorID: d.VendorID,
		Kind:     domain.ListingKind(d.Kind),
		Category: domain.Category(d.Category),
		Title:    d.Title,
		PriceBasis: domain.PriceBasis{
			Mode:             domain.PriceMode(d.PriceBasis.Mode),
			Amount:           d.PriceBasis.Amount,
			MinDurationHours: d.PriceBasis.MinDurationHours,
		},
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type vendorDocument struct {
	Name      string    `firestore:"name"`
	Category  string    `firestore:"category"`
	IsActive  bool      `firestore:"isActive"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func vendorToDocument(vendor domain.Vendor) vendorDocument {
	return vendorDocument{
		Name:      vendor.Name,
		Category:  string(vendor.Category),
		IsActive:  vendor.IsActive,
		CreatedAt: vendor.CreatedAt.UTC(),
		UpdatedAt: vendor.UpdatedAt.UTC(),
	}
}

func (d vendorDocument) toDomain(id string) domain.Vendor {
	return domain.Vendor{
		ID:        id,
		Name:      d.Name,
		Category:  domain.Category(d.Category),
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type cartLineDocument struct {
	ListingID     string    `firestore:"listingId"`
	Kind          string    `firestore:"kind"`
	Title         string    `firestore:"title"`
	Mode          string    `firestore:"mode"`
	Quantity      int       `firestore:"quantity"`
	UnitPrice     int64     `firestore:"unitPrice"`
	DurationHours int       `firestore:"durationHours,omitempty"`
	AddedAt       time.Time `firestore:"addedAt"`
}

// cartDocument is keyed by customer ID, enforcing the single open cart.
type cartDocument struct {
	CartID    string             `firestore:"cartId"`
	VendorID  string             `firestore:"vendorId"`
	Category  string             `firestore:"category"`
	Currency  string             `firestore:"currency"`
	Lines     []cartLineDocument `firestore:"lines"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

func cartToDocument(cart domain.Cart) cartDocument {
	lines := make([]cartLineDocument, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, cartLineDocument{
			ListingID:     line.ListingID,
			Kind:          string(line.Kind),
			Title:         line.Title,
			Mode:          string(line.Mode),
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			DurationHours: line.DurationHours,
			AddedAt:       line.AddedAt.UTC(),
		})
	}
	return cartDocument{
		CartID:    cart.ID,
		VendorID:  cart.VendorID,
		Category:  string(cart.Category),
		Currency:  cart.Currency,
		Lines:     lines,
		CreatedAt: cart.CreatedAt.UTC(),
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
}

func (d cartDocument) toDomain(customerID string) domain.Cart {
	lines := make([]domain.CartLine, 0, len(d.Lines))
	for _, line := range d.Lines {
		lines = append(lines, domain.CartLine{
			ListingID:     line.ListingID,
			Kind:          domain.ListingKind(line.Kind),
			Title:         line.Title,
			Mode:          domain.PriceMode(line.Mode),
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			DurationHours: line.DurationHours,
			AddedAt:       line.AddedAt,
		})
	}
	return domain.Cart{
		ID:         d.CartID,
		CustomerID: customerID,
		VendorID:   d.VendorID,
		Category:   domain.Category(d.Category),
		Currency:   d.Currency,
		Lines:      lines,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type bookingLineDocument struct {
	ListingID     string `firestore:"listingId"`
	Kind          string `firestore:"kind"`
	Title         string `firestore:"title"`
	Mode          string `firestore:"mode"`
	Quantity      int    `firestore:"quantity"`
	UnitPrice     int64  `firestore:"unitPrice"`
	DurationHours int    `firestore:"durationHours,omitempty"`
	LineTotal     int64  `firestore:"lineTotal"`
}

type statusChangeDocument struct {
	Status     string    `firestore:"status"`
	OccurredAt time.Time `firestore:"occurredAt"`
	Note       string    `firestore:"note,omitempty"`
}

type bookingTotalsDocument struct {
	Subtotal int64 `firestore:"subtotal"`
	Fees     int64 `firestore:"fees"`
	Tax      int64 `firestore:"tax"`
	Total    int64 `firestore:"total"`
}

type bookingDocument struct {
	CustomerID         string                 `firestore:"customerId"`
	VendorID           string                 `firestore:"vendorId"`
	Category           string                 `firestore:"category"`
	Currency           string                 `firestore:"currency"`
	Lines              []bookingLineDocument  `firestore:"lines"`
	AddressID          string                 `firestore:"addressId,omitempty"`
	PaymentRef         string                 `firestore:"paymentRef,omitempty"`
	Totals             bookingTotalsDocument  `firestore:"totals"`
	Status             string                 `firestore:"status"`
	StatusHistory      []statusChangeDocument `firestore:"statusHistory"`
	CancellationReason string                 `firestore:"cancellationReason,omitempty"`
	CompletedAt        *time.Time             `firestore:"completedAt,omitempty"`
	CreatedAt          time.Time              `firestore:"createdAt"`
	UpdatedAt          time.Time              `firestore:"updatedAt"`
}

func bookingToDocument(booking domain.BookingOrder) bookingDocument {
	lines := make([]bookingLineDocument, 0, len(booking.Lines))
	for _, line := range booking.Lines {
		lines = append(lines, bookingLineDocument{
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
	history := make([]statusChangeDocument, 0, len(booking.StatusHistory))
	for _, change := range booking.StatusHistory {
		history = append(history, statusChangeDocument{
			Status:     string(change.Status),
			OccurredAt: change.OccurredAt.UTC(),
			Note:       change.Note,
		})
	}
	doc := bookingDocument{
		CustomerID: booking.CustomerID,
		VendorID:   booking.VendorID,
		Category:   string(booking.Category),
		Currency:   booking.Currency,
		Lines:      lines,
		AddressID:  booking.AddressID,
		PaymentRef: booking.PaymentRef,
		Totals: bookingTotalsDocument{
			Subtotal: booking.Totals.Subtotal,
			Fees:     booking.Totals.Fees,
			Tax:      booking.Totals.Tax,
			Total:    booking.Totals.Total,
		},
		Status:             string(booking.Status),
		StatusHistory:      history,
		CancellationReason: booking.CancellationReason,
		CreatedAt:          booking.CreatedAt.UTC(),
		UpdatedAt:          booking.UpdatedAt.UTC(),
	}
	if booking.CompletedAt != nil {
		ts := booking.CompletedAt.UTC()
		doc.CompletedAt = &ts
	}
	return doc
}

func (d bookingDocument) toDomain(id string) domain.BookingOrder {
	lines := make([]domain.BookingLine, 0, len(d.Lines))
	for _, line := range d.Lines {
		lines = append(lines, domain.BookingLine{
			ListingID:     line.ListingID,
			Kind:          domain.ListingKind(line.Kind),
			Title:         line.Title,
			Mode:          domain.PriceMode(line.Mode),
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			DurationHours: line.DurationHours,
			LineTotal:     line.LineTotal,
		})
	}
	history := make([]domain.StatusChange, 0, len(d.StatusHistory))
	for _, change := range d.StatusHistory {
		history = append(history, domain.StatusChange{
			Status:     domain.BookingStatus(change.Status),
			OccurredAt: change.OccurredAt,
			Note:       change.Note,
		})
	}
	return domain.BookingOrder{
		ID:         id,
		CustomerID: d.CustomerID,
		VendorID:   d.VendorID,
		Category:   domain.Category(d.Category),
		Currency:   d.Currency,
		Lines:      lines,
		AddressID:  d.AddressID,
		PaymentRef: d.PaymentRef,
		Totals: domain.BookingTotals{
			Subtotal: d.Totals.Subtotal,
			Fees:     d.Totals.Fees,
			Tax:      d.Totals.Tax,
			Total:    d.Totals.Total,
		},
		Status:             domain.BookingStatus(d.Status),
		StatusHistory:      history,
		CancellationReason: d.CancellationReason,
		CompletedAt:        d.CompletedAt,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// reviewDocument is keyed by booking ID, enforcing one review per booking.
type reviewDocument struct {
	ReviewID   string    `firestore:"reviewId"`
	CustomerID string    `firestore:"customerId"`
	VendorID   string    `firestore:"vendorId"`
	Rating     int       `firestore:"rating"`
	Comment    string    `firestore:"comment,omitempty"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

func reviewToDocument(review domain.Review) reviewDocument {
	return reviewDocument{
		ReviewID:   review.ID,
		CustomerID: review.CustomerID,
		VendorID:   review.VendorID,
		Rating:     review.Rating,
		Comment:    review.Comment,
		CreatedAt:  review.CreatedAt.UTC(),
	}
}

func (d reviewDocument) toDomain(bookingID string) domain.Review {
	return domain.Review{
		ID:         d.ReviewID,
		BookingID:  bookingID,
		CustomerID: d.CustomerID,
		VendorID:   d.VendorID,
		Rating:     d.Rating,
		Comment:    d.Comment,
		CreatedAt:  d.CreatedAt,
	}
}
