package pricing

import (
	"context"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nzahrani/offercast/internal/storage"
)

// Quote is the subscriber-specific final price of one offer.
type Quote struct {
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	// NoCharge distinguishes "free / available on request" from a computed
	// zero: the offer had no base price, so no conversion was attempted.
	NoCharge bool `json:"no_charge,omitempty"`
}

// Engine computes subscriber-specific final prices: base conversion plus
// shipping plus the mandatory device fee for external subscribers.
type Engine struct {
	rates RateSource
}

func NewEngine(rates RateSource) *Engine {
	return &Engine{rates: rates}
}

// Price computes the final price of offer for subscriber.
//
// The base price conversion is mandatory: a missing rate is a hard
// *PricingError for this offer. Shipping and device-fee legs are optional
// enhancements; when their rate is unavailable the addend is skipped and
// the rest of the price stands.
func (e *Engine) Price(ctx context.Context, offer storage.Offer, subscriber storage.Subscriber) (Quote, error) {
	target := strings.ToUpper(subscriber.TargetCurrency)
	if target == "" {
		return Quote{}, ErrNoTargetCurrency
	}

	if offer.Price.LessThanOrEqual(decimal.Zero) {
		return Quote{Price: decimal.Zero, Currency: target, NoCharge: true}, nil
	}

	baseRate, err := Convert(ctx, e.rates, offer.Currency, target)
	if err != nil {
		return Quote{}, &PricingError{OfferCode: offer.Code, OfferName: offer.Name, cause: err}
	}
	final := offer.Price.Mul(baseRate)

	if offer.ShippingCost.GreaterThan(decimal.Zero) &&
		offer.ShippingCurrency != "" && offer.ShippingCurrency != storage.ShippingNone {
		shipRate, err := Convert(ctx, e.rates, offer.ShippingCurrency, target)
		if err != nil {
			log.Printf("pricing: offer %s shipping leg skipped: %v", offer.Code, err)
		} else {
			final = final.Add(offer.ShippingCost.Mul(shipRate))
		}
	}

	if fee := ResolveFee(subscriber.DeviceFees, subscriber.SubscriberType, offer.Name); fee != nil {
		if fee.Fee.GreaterThan(decimal.Zero) {
			feeRate, err := Convert(ctx, e.rates, fee.Currency, target)
			if err != nil {
				log.Printf("pricing: offer %s device fee %q skipped: %v", offer.Code, fee.DeviceKeyword, err)
			} else {
				final = final.Add(fee.Fee.Mul(feeRate))
			}
		}
	}

	return Quote{Price: final.Round(2), Currency: target}, nil
}
