package domain

import "fmt"

// BasisPointsDenominator is the scale used for rate-based fees and taxes.
const BasisPointsDenominator = 10000

// ApplyBasisPoints multiplies an amount in minor units by a basis-point rate,
// rounding half-to-even so repeated fee and tax computations carry no
// systematic drift. Negative inputs are clamped to zero.
func ApplyBasisPoints(amount int64, basisPoints int64) int64 {
	if amount <= 0 || basisPoints <= 0 {
		return 0
	}

	product := amount * basisPoints
	quotient := product / BasisPointsDenominator
	remainder := product % BasisPointsDenominator

	double := remainder * 2
	switch {
	case double < BasisPointsDenominator:
		return quotient
	case double > BasisPointsDenominator:
		return quotient + 1
	default:
		// Exactly halfway: round to the even neighbour.
		if quotient%2 == 0 {
			return quotient
		}
		return quotient + 1
	}
}

// FormatMinorUnits renders an amount in minor units as a decimal string with
// two fraction digits, e.g. 18700 -> "187.00".
func FormatMinorUnits(amount int64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	s := fmt.Sprintf("%d.%02d", amount/100, amount%100)
	if negative {
		return "-" + s
	}
	return s
}
