package pricing

import (
	"errors"
	"fmt"
)

// ErrNoTargetCurrency means the subscriber row has no target currency
// configured. This is an admin configuration problem, not an offer problem.
var ErrNoTargetCurrency = errors.New("subscriber has no target currency")

// RateNotFoundError reports that neither a direct nor a usable inverse rate
// exists for a currency pair. Callers treat this as "cannot price this leg";
// it must never abort a whole batch.
type RateNotFoundError struct {
	From string
	To   string
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("missing rate: %s -> %s", e.From, e.To)
}

// PricingError marks a hard failure to price one offer's base amount. The
// offer is reported with a "price unavailable" marker; sibling offers are
// unaffected.
type PricingError struct {
	OfferCode string
	OfferName string
	cause     error
}

func (e *PricingError) Error() string {
	return fmt.Sprintf("pricing offer %q: %v", e.OfferName, e.cause)
}

func (e *PricingError) Unwrap() error {
	return e.cause
}
