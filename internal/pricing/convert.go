package pricing

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nzahrani/offercast/internal/storage"
)

// RateSource resolves a stored directed currency rate. A miss is reported
// as (nil, nil), matching the storage implementations.
type RateSource interface {
	GetCurrencyRate(ctx context.Context, from, to string) (*storage.CurrencyRate, error)
}

var one = decimal.NewFromInt(1)

// Convert resolves the factor that turns 1 unit of from into to.
//
// Equal codes (case-insensitive) convert at 1.0 without a lookup, as does a
// missing code on either side. A stored direct rate takes precedence over
// the inverse pair; the inverse is used as a reciprocal only when non-zero,
// so a bad zero row reads as "not found" instead of a division fault.
func Convert(ctx context.Context, rates RateSource, from, to string) (decimal.Decimal, error) {
	if from == "" || to == "" || strings.EqualFold(from, to) {
		return one, nil
	}

	direct, err := rates.GetCurrencyRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	if direct != nil {
		return direct.Rate, nil
	}

	inverse, err := rates.GetCurrencyRate(ctx, to, from)
	if err != nil {
		return decimal.Zero, err
	}
	if inverse != nil && !inverse.Rate.IsZero() {
		return one.Div(inverse.Rate), nil
	}

	return decimal.Zero, &RateNotFoundError{From: strings.ToUpper(from), To: strings.ToUpper(to)}
}
