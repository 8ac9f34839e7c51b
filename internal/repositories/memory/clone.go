package memory

import (
	"sort"

	domain "github.com/helpora/api/internal/domain"
)

func cloneListing(listing domain.Listing) domain.Listing {
	return listing
}

func cloneCart(cart domain.Cart) domain.Cart {
	dup := cart
	dup.Lines = make([]domain.CartLine, len(cart.Lines))
	copy(dup.Lines, cart.Lines)
	return dup
}

func cloneBooking(booking domain.BookingOrder) domain.BookingOrder {
	dup := booking
	dup.Lines = make([]domain.BookingLine, len(booking.Lines))
	copy(dup.Lines, booking.Lines)
	dup.StatusHistory = make([]domain.StatusChange, len(booking.StatusHistory))
	copy(dup.StatusHistory, booking.StatusHistory)
	if booking.CompletedAt != nil {
		ts := *booking.CompletedAt
		dup.CompletedAt = &ts
	}
	return dup
}

// paginate slices a sorted result set by page token and size. IDs are ULIDs,
// so lexicographic order matches creation order.
func paginate[T any](items []T, idOf func(T) string, pager domain.Pagination) domain.CursorPage[T] {
	sort.Slice(items, func(i, j int) bool { return idOf(items[i]) < idOf(items[j]) })

	start := 0
	if token := pager.PageToken; token != "" {
		for i, item := range items {
			if idOf(item) > token {
				start = i
				break
			}
			start = i + 1
		}
	}

	size := pager.PageSize
	if size <= 0 {
		size = len(items)
	}

	end := start + size
	if end > len(items) {
		end = len(items)
	}
	if start > len(items) {
		start = len(items)
	}

	page := domain.CursorPage[T]{Items: items[start:end]}
	if end < len(items) && end > start {
		page.NextPageToken = idOf(items[end-1])
	}
	return page
}
