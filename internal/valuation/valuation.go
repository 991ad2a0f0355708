// Package valuation estimates the monetary worth of an e-waste item from its
// weight. The estimate is an editable default: callers may replace it with
// any non-negative amount before persisting.
package valuation

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// CurrencySymbol is used for display only; amounts are whole rupees.
const CurrencySymbol = "₹"

const (
	ratePerKg = 10

	// Tiered bonuses are cumulative: an item over 10 kg earns both.
	firstTierKg     = 5
	firstTierBonus  = 50
	secondTierKg    = 10
	secondTierBonus = 100
)

// MaxWeightKg is the heaviest single item a submission form accepts.
const MaxWeightKg = 100_000

// ErrNegativeOverride is returned when a caller-supplied amount is below zero.
var ErrNegativeOverride = errors.New("estimated value cannot be negative")

// Estimate maps a weight in kilograms to a whole-rupee value.
// Non-positive and non-finite weights are worth 0, as are weights whose
// value would not fit in an int.
func Estimate(weightKg float64) int {
	if math.IsNaN(weightKg) || math.IsInf(weightKg, 0) || weightKg <= 0 {
		return 0
	}

	value := weightKg * ratePerKg
	if weightKg > firstTierKg {
		value += firstTierBonus
	}
	if weightKg > secondTierKg {
		value += secondTierBonus
	}
	value = math.Round(value)
	if value >= math.MaxInt {
		return 0
	}
	return int(value)
}

// EstimateInput is Estimate over raw form text. Anything that does not parse
// as a number is worth 0.
func EstimateInput(s string) int {
	w, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return Estimate(w)
}

// Resolve returns the value to persist for an item: the override when one is
// given, otherwise the computed estimate.
func Resolve(weightKg float64, override *int) (int, error) {
	if override == nil {
		return Estimate(weightKg), nil
	}
	if *override < 0 {
		return 0, ErrNegativeOverride
	}
	return *override, nil
}
