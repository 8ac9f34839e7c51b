package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	domain "github.com/helpora/api/internal/domain"
)

var (
	// ErrPricingInvalidLine signals a line with a non-positive quantity or negative price.
	ErrPricingInvalidLine = errors.New("pricing: invalid line")
	// ErrPricingInvalidInput signals bad request data such as an unknown category or pricing mode.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
)

// FeeMode selects between a rate-based service fee and a flat delivery fee.
type FeeMode string

const (
	// FeeModeRate charges a basis-point share of the subtotal.
	FeeModeRate FeeMode = "rate"
	// FeeModeFlat charges a fixed amount regardless of subtotal.
	FeeModeFlat FeeMode = "flat"
)

// FeePolicy describes how the platform fee is computed for an order kind.
type FeePolicy struct {
	Mode            FeeMode
	RateBasisPoints int64
	FlatAmount      int64
}

// FeeSchedule maps categories to fee policies with a fallback default.
type FeeSchedule struct {
	Policies map[domain.Category]FeePolicy
	Default  FeePolicy
}

// PolicyFor resolves the fee policy applied to a category.
func (s FeeSchedule) PolicyFor(category domain.Category) FeePolicy {
	if policy, ok := s.Policies[category]; ok {
		return policy
	}
	return s.Default
}

// TaxSchedule maps categories to tax rates in basis points.
type TaxSchedule struct {
	RatesBasisPoints map[domain.Category]int64
	Default          int64
}

// RateFor resolves the tax rate applied to a category.
func (s TaxSchedule) RateFor(category domain.Category) int64 {
	if rate, ok := s.RatesBasisPoints[category]; ok {
		return rate
	}
	return s.Default
}

// DefaultFeeSchedule mirrors the fee structure observed in production: a 10%
// service fee for booked engagements and a flat delivery fee for goods orders.
func DefaultFeeSchedule() FeeSchedule {
	rate := FeePolicy{Mode: FeeModeRate, RateBasisPoints: 1000}
	flat := FeePolicy{Mode: FeeModeFlat, FlatAmount: 500}
	return FeeSchedule{
		Policies: map[domain.Category]FeePolicy{
			domain.CategoryGrocery: flat,
			domain.CategoryFood:    flat,
		},
		Default: rate,
	}
}

// DefaultTaxSchedule taxes goods orders at 8% and service bookings at zero.
func DefaultTaxSchedule() TaxSchedule {
	return TaxSchedule{
		RatesBasisPoints: map[domain.Category]int64{
			domain.CategoryGrocery: 800,
			domain.CategoryFood:    800,
		},
		Default: 0,
	}
}

// PricingEngineDeps configures the pricing engine.
type PricingEngineDeps struct {
	Fees   FeeSchedule
	Taxes  TaxSchedule
	Logger func(context.Context, string, map[string]any)
}

// PricingEngine derives subtotal, fees, tax, and total for a set of cart
// lines. All arithmetic happens in minor units; rounding occurs only when a
// basis-point rate is applied, half-to-even.
type PricingEngine struct {
	fees   FeeSchedule
	taxes  TaxSchedule
	logger func(context.Context, string, map[string]any)
}

// NewPricingEngine constructs a PricingEngine, falling back to the default
// schedules when none are supplied.
func NewPricingEngine(deps PricingEngineDeps) *PricingEngine {
	fees := deps.Fees
	if fees.Policies == nil && fees.Default == (FeePolicy{}) {
		fees = DefaultFeeSchedule()
	}
	taxes := deps.Taxes
	if taxes.RatesBasisPoints == nil && taxes.Default == 0 {
		taxes = DefaultTaxSchedule()
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PricingEngine{fees: fees, taxes: taxes, logger: logger}
}

// Quote computes totals for the given lines under the category's fee policy
// and tax rate. The result always satisfies Total == Subtotal + Fees + Tax.
func (e *PricingEngine) Quote(ctx context.Context, category Category, lines []CartLine) (BookingTotals, error) {
	if !category.IsValid() {
		return BookingTotals{}, fmt.Errorf("%w: unknown category %q", ErrPricingInvalidInput, category)
	}

	var subtotal int64
	for _, line := range lines {
		lineTotal, err := lineTotal(line)
		if err != nil {
			return BookingTotals{}, err
		}
		if subtotal > math.MaxInt64-lineTotal {
			return BookingTotals{}, fmt.Errorf("%w: subtotal overflow", ErrPricingInvalidInput)
		}
		subtotal += lineTotal
	}

	fees, err := e.computeFees(category, subtotal)
	if err != nil {
		return BookingTotals{}, err
	}
	tax := domain.ApplyBasisPoints(subtotal, e.taxes.RateFor(category))

	totals := BookingTotals{
		Subtotal: subtotal,
		Fees:     fees,
		Tax:      tax,
		Total:    subtotal + fees + tax,
	}

	e.logger(ctx, "pricing.quote", map[string]any{
		"category": string(category),
		"lines":    len(lines),
		"subtotal": totals.Subtotal,
		"total":    totals.Total,
	})

	return totals, nil
}

func (e *PricingEngine) computeFees(category Category, subtotal int64) (int64, error) {
	policy := e.fees.PolicyFor(category)
	switch policy.Mode {
	case FeeModeRate:
		return domain.ApplyBasisPoints(subtotal, policy.RateBasisPoints), nil
	case FeeModeFlat:
		if policy.FlatAmount < 0 {
			return 0, fmt.Errorf("%w: negative flat fee", ErrPricingInvalidInput)
		}
		return policy.FlatAmount, nil
	default:
		return 0, fmt.Errorf("%w: unknown fee mode %q", ErrPricingInvalidInput, policy.Mode)
	}
}

// lineTotal applies the line's own pricing mode. Hourly lines multiply by
// the duration carried on the line; all other modes multiply by quantity
// directly.
func lineTotal(line CartLine) (int64, error) {
	if line.Quantity <= 0 {
		return 0, fmt.Errorf("%w: listing %s quantity must be positive", ErrPricingInvalidLine, line.ListingID)
	}
	if line.UnitPrice < 0 {
		return 0, fmt.Errorf("%w: listing %s unit price cannot be negative", ErrPricingInvalidLine, line.ListingID)
	}

	quantity := int64(line.Quantity)
	units := quantity
	if line.Mode == domain.PriceModeHourly {
		if line.DurationHours <= 0 {
			return 0, fmt.Errorf("%w: listing %s hourly line requires a duration", ErrPricingInvalidLine, line.ListingID)
		}
		hours := int64(line.DurationHours)
		if quantity > 0 && hours > math.MaxInt64/quantity {
			return 0, fmt.Errorf("%w: listing %s duration overflow", ErrPricingInvalidLine, line.ListingID)
		}
		units = hours * quantity
	}

	if line.UnitPrice > 0 && units > 0 && line.UnitPrice > math.MaxInt64/units {
		return 0, fmt.Errorf("%w: listing %s line total overflow", ErrPricingInvalidLine, line.ListingID)
	}
	return line.UnitPrice * units, nil
}

// FreezeLines converts priced cart lines into immutable booking lines.
func FreezeLines(lines []CartLine) ([]BookingLine, error) {
	frozen := make([]BookingLine, 0, len(lines))
	for _, line := range lines {
		total, err := lineTotal(line)
		if err != nil {
			return nil, err
		}
		frozen = append(frozen, BookingLine{
			ListingID:     line.ListingID,
			Kind:          line.Kind,
			Title:         line.Title,
			Mode:          line.Mode,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			DurationHours: line.DurationHours,
			LineTotal:     total,
		})
	}
	return frozen, nil
}

// ensure CartPricer is satisfied.
var _ CartPricer = (*PricingEngine)(nil)

// nowUTC is shared by services needing a UTC clock default.
func nowUTC() time.Time { return time.Now().UTC() }
