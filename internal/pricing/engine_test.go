package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nzahrani/offercast/internal/storage"
)

func externalSubscriber(fees ...storage.SubscriberDeviceFee) storage.Subscriber {
	return storage.Subscriber{
		ID:             1,
		Name:           "Client",
		SubscriberType: storage.SubscriberExternal,
		TargetCurrency: "SAR",
		DeviceFees:     fees,
	}
}

func TestPrice_FullComputation(t *testing.T) {
	// 100 USD * 3.75 + 20 AED * 1.02 + 50 AED fee * 1.02 = 446.40 SAR
	st := seedRates(t,
		storage.CurrencyRate{FromCurrency: "USD", ToCurrency: "SAR", Rate: dec("3.75")},
		storage.CurrencyRate{FromCurrency: "AED", ToCurrency: "SAR", Rate: dec("1.02")},
	)
	engine := NewEngine(st)

	offer := storage.Offer{
		Name:             "Apple iPhone 15 Pro 256GB",
		Price:            dec("100"),
		Currency:         "USD",
		ShippingCost:     dec("20"),
		ShippingCurrency: "AED",
	}
	sub := externalSubscriber(storage.SubscriberDeviceFee{
		DeviceKeyword: "iPhone 15 Pro", Fee: dec("50"), Currency: "AED",
	})

	quote, err := engine.Price(context.Background(), offer, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quote.Price.Equal(dec("446.40")) {
		t.Errorf("price = %s, want 446.40", quote.Price)
	}
	if quote.Currency != "SAR" {
		t.Errorf("currency = %q, want SAR", quote.Currency)
	}
	if quote.NoCharge {
		t.Errorf("unexpected no-charge flag")
	}
}

func TestPrice_MissingShippingRateSoftSkips(t *testing.T) {
	// No AED->SAR rate: shipping and device fee are silently omitted and
	// the base-only price stands.
	st := seedRates(t,
		storage.CurrencyRate{FromCurrency: "USD", ToCurrency: "SAR", Rate: dec("3.75")},
	)
	engine := NewEngine(st)

	offer := storage.Offer{
		Name:             "Apple iPhone 15 Pro 256GB",
		Price:            dec("100"),
		Currency:         "USD",
		ShippingCost:     dec("20"),
		ShippingCurrency: "AED",
	}
	sub := externalSubscriber(storage.SubscriberDeviceFee{
		DeviceKeyword: "iPhone 15 Pro", Fee: dec("50"), Currency: "AED",
	})

	quote, err := engine.Price(context.Background(), offer, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quote.Price.Equal(dec("375.00")) {
		t.Errorf("price = %s, want base-only 375.00", quote.Price)
	}
}

func TestPrice_MissingBaseRateIsHardError(t *testing.T) {
	st := seedRates(t)
	engine := NewEngine(st)

	offer := storage.Offer{Name: "Pixel 9", Price: dec("500"), Currency: "GBP"}

	_, err := engine.Price(context.Background(), offer, externalSubscriber())
	var pe *PricingError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PricingError, got %v", err)
	}
	var notFound *RateNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("PricingError should wrap RateNotFoundError, got %v", err)
	}
	if notFound.From != "GBP" || notFound.To != "SAR" {
		t.Errorf("error names %s->%s, want GBP->SAR", notFound.From, notFound.To)
	}
}

func TestPrice_NoChargeShortCircuits(t *testing.T) {
	// Base price of zero: no conversion, shipping or fee computation at
	// all, even though those legs would fail or add amounts.
	st := seedRates(t)
	engine := NewEngine(st)

	offer := storage.Offer{
		Name:             "Apple iPhone 15 Pro",
		Price:            decimal.Zero,
		Currency:         "USD",
		ShippingCost:     dec("20"),
		ShippingCurrency: "AED",
	}
	sub := externalSubscriber(storage.SubscriberDeviceFee{
		DeviceKeyword: "iPhone 15 Pro", Fee: dec("50"), Currency: "AED",
	})

	quote, err := engine.Price(context.Background(), offer, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quote.NoCharge {
		t.Fatalf("expected no-charge quote")
	}
	if !quote.Price.IsZero() {
		t.Errorf("price = %s, want 0", quote.Price)
	}
	if quote.Currency != "SAR" {
		t.Errorf("currency = %q, want SAR", quote.Currency)
	}
}

func TestPrice_NegativePriceIsNoCharge(t *testing.T) {
	st := seedRates(t)
	engine := NewEngine(st)

	offer := storage.Offer{Name: "Mystery", Price: dec("-5"), Currency: "USD"}

	quote, err := engine.Price(context.Background(), offer, externalSubscriber())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quote.NoCharge {
		t.Errorf("expected no-charge quote for negative price")
	}
}

func TestPrice_NoTargetCurrency(t *testing.T) {
	st := seedRates(t)
	engine := NewEngine(st)

	sub := storage.Subscriber{Name: "Broken", SubscriberType: storage.SubscriberExternal}
	_, err := engine.Price(context.Background(), storage.Offer{Name: "X", Price: dec("10"), Currency: "USD"}, sub)
	if !errors.Is(err, ErrNoTargetCurrency) {
		t.Fatalf("expected ErrNoTargetCurrency, got %v", err)
	}
}

func TestPrice_InternalSubscriberSkipsFee(t *testing.T) {
	st := seedRates(t,
		storage.CurrencyRate{FromCurrency: "USD", ToCurrency: "SAR", Rate: dec("3.75")},
		storage.CurrencyRate{FromCurrency: "AED", ToCurrency: "SAR", Rate: dec("1.02")},
	)
	engine := NewEngine(st)

	offer := storage.Offer{Name: "Apple iPhone 15 Pro", Price: dec("100"), Currency: "USD"}
	sub := storage.Subscriber{
		Name:           "Partner",
		SubscriberType: storage.SubscriberInternal,
		TargetCurrency: "SAR",
		DeviceFees: []storage.SubscriberDeviceFee{
			{DeviceKeyword: "iPhone", Fee: dec("50"), Currency: "AED"},
		},
	}

	quote, err := engine.Price(context.Background(), offer, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quote.Price.Equal(dec("375.00")) {
		t.Errorf("price = %s, want 375.00 without fee", quote.Price)
	}
}

func TestPrice_ZeroFeeContributesNothing(t *testing.T) {
	st := seedRates(t,
		storage.CurrencyRate{FromCurrency: "USD", ToCurrency: "SAR", Rate: dec("3.75")},
		storage.CurrencyRate{FromCurrency: "AED", ToCurrency: "SAR", Rate: dec("1.02")},
	)
	engine := NewEngine(st)

	offer := storage.Offer{Name: "Apple iPhone 15 Pro", Price: dec("100"), Currency: "USD"}
	sub := externalSubscriber(storage.SubscriberDeviceFee{
		DeviceKeyword: "iPhone", Fee: decimal.Zero, Currency: "AED",
	})

	quote, err := engine.Price(context.Background(), offer, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quote.Price.Equal(dec("375.00")) {
		t.Errorf("price = %s, want 375.00 (zero fee ignored)", quote.Price)
	}
}

func TestPrice_ShippingSentinelSkipped(t *testing.T) {
	st := seedRates(t,
		storage.CurrencyRate{FromCurrency: "USD", ToCurrency: "SAR", Rate: dec("3.75")},
	)
	engine := NewEngine(st)

	offer := storage.Offer{
		Name:             "MacBook Air",
		Price:            dec("100"),
		Currency:         "USD",
		ShippingCost:     dec("25"),
		ShippingCurrency: storage.ShippingNone,
	}

	quote, err := engine.Price(context.Background(), offer, externalSubscriber())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quote.Price.Equal(dec("375.00")) {
		t.Errorf("price = %s, want 375.00 (N/A shipping ignored)", quote.Price)
	}
}
