package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Category enumerates the marketplace verticals a vendor can operate in.
type Category string

const (
	// CategoryCleaning covers home and office cleaning services.
	CategoryCleaning Category = "cleaning"
	// CategoryHandyman covers repair and installation services.
	CategoryHandyman Category = "handyman"
	// CategoryBeauty covers beauty and grooming services.
	CategoryBeauty Category = "beauty"
	// CategoryGrocery covers grocery delivery orders.
	CategoryGrocery Category = "grocery"
	// CategoryFood covers prepared food delivery orders.
	CategoryFood Category = "food"
	// CategoryRentals covers equipment and property rentals.
	CategoryRentals Category = "rentals"
	// CategoryCaregiving covers caregiving and nursing services.
	CategoryCaregiving Category = "caregiving"
	// CategoryRideAssistance covers accompanied transport services.
	CategoryRideAssistance Category = "ride_assistance"
)

// Categories lists every supported vertical in display order.
var Categories = []Category{
	CategoryCleaning,
	CategoryHandyman,
	CategoryBeauty,
	CategoryGrocery,
	CategoryFood,
	CategoryRentals,
	CategoryCaregiving,
	CategoryRideAssistance,
}

// IsValid reports whether the category is one of the supported verticals.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// IsGoods reports whether orders in this category ship physical goods
// rather than booking a service engagement.
func (c Category) IsGoods() bool {
	return c == CategoryGrocery || c == CategoryFood
}

// ListingKind distinguishes the polymorphic listing shapes.
type ListingKind string

const (
	// ListingKindService represents a bookable service engagement.
	ListingKindService ListingKind = "service"
	// ListingKindProduct represents a purchasable physical good.
	ListingKindProduct ListingKind = "product"
	// ListingKindRental represents a per-night rental unit.
	ListingKindRental ListingKind = "rental"
)

// PriceMode enumerates how a listing's base amount combines with quantity.
type PriceMode string

const (
	// PriceModeFixed charges the base amount once per quantity unit.
	PriceModeFixed PriceMode = "fixed"
	// PriceModeHourly charges the base amount per hour of booked duration.
	PriceModeHourly PriceMode = "hourly"
	// PriceModePerUnit charges the base amount per purchased unit.
	PriceModePerUnit PriceMode = "per_unit"
	// PriceModePerNight charges the base amount per rental night.
	PriceModePerNight PriceMode = "per_night"
)

// PriceBasis is the pricing mode and base amount used to compute line totals.
// Amount is expressed in minor currency units.
type PriceBasis struct {
	Mode             PriceMode
	Amount           int64
	MinDurationHours int
}

// Listing is a purchasable unit offered by a vendor. Listings referenced by
// historical bookings are soft-deactivated, never deleted.
type Listing struct {
	ID         string
	VendorID   string
	Kind       ListingKind
	Category   Category
	Title      string
	PriceBasis PriceBasis
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Vendor describes the seller a cart or booking is bound to.
type Vendor struct {
	ID        string
	Name      string
	Category  Category
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartLine stores a single listing entry within a cart. UnitPrice is the
// snapshot captured when the line was added; DurationHours applies to hourly
// listings only.
type CartLine struct {
	ListingID     string
	Kind          ListingKind
	Title         string
	Mode          PriceMode
	Quantity      int
	UnitPrice     int64
	DurationHours int
	AddedAt       time.Time
}

// Cart aggregates a customer's in-progress, pre-checkout selection. All
// lines reference listings of the same vendor; at most one open cart exists
// per customer.
type Cart struct {
	ID         string
	CustomerID string
	VendorID   string
	Category   Category
	Currency   string
	Lines      []CartLine
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// BookingStatus enumerates valid lifecycle states for booking orders.
type BookingStatus string

const (
	// BookingStatusPending indicates the request awaits vendor acceptance.
	BookingStatusPending BookingStatus = "pending"
	// BookingStatusAccepted indicates the vendor accepted the request.
	BookingStatusAccepted BookingStatus = "accepted"
	// BookingStatusDeclined indicates the vendor declined the request.
	BookingStatusDeclined BookingStatus = "declined"
	// BookingStatusInProgress indicates the service or delivery is underway.
	BookingStatusInProgress BookingStatus = "in_progress"
	// BookingStatusCompleted indicates the engagement finished successfully.
	BookingStatusCompleted BookingStatus = "completed"
	// BookingStatusCancelled indicates the customer or operator cancelled.
	BookingStatusCancelled BookingStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are permitted.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusDeclined, BookingStatusCancelled:
		return true
	}
	return false
}

// BookingTotals holds rolled-up monetary fields in minor currency units.
// Total always equals Subtotal + Fees + Tax; a stored booking violating that
// equality is treated as corrupted.
type BookingTotals struct {
	Subtotal int64
	Fees     int64
	Tax      int64
	Total    int64
}

// Consistent reports whether the totals satisfy the aggregate invariant.
func (t BookingTotals) Consistent() bool {
	return t.Total == t.Subtotal+t.Fees+t.Tax
}

// BookingLine mirrors cart lines at the time of checkout. Immutable after
// the booking is created.
type BookingLine struct {
	ListingID     string
	Kind          ListingKind
	Title         string
	Mode          PriceMode
	Quantity      int
	UnitPrice     int64
	DurationHours int
	LineTotal     int64
}

// StatusChange is one append-only entry in a booking's status history.
type StatusChange struct {
	Status     BookingStatus
	OccurredAt time.Time
	Note       string
}

// BookingOrder is the committed purchase/service aggregate. Lines and totals
// are frozen at creation; only status transitions mutate the record, and the
// record is never deleted.
type BookingOrder struct {
	ID                 string
	CustomerID         string
	VendorID           string
	Category           Category
	Currency           string
	Lines              []BookingLine
	AddressID          string
	PaymentRef         string
	Totals             BookingTotals
	Status             BookingStatus
	StatusHistory      []StatusChange
	CancellationReason string
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Review captures customer feedback tied to a completed booking. At most one
// review exists per booking.
type Review struct {
	ID         string
	BookingID  string
	CustomerID string
	VendorID   string
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

// Address represents the postal address resolved for a checkout.
type Address struct {
	ID         string
	Recipient  string
	Line1      string
	Line2      string
	City       string
	PostalCode string
	Country    string
	Phone      string
}
