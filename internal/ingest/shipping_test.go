package ingest

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nzahrani/offercast/internal/storage"
)

func shippingRates() []storage.ShippingRate {
	return []storage.ShippingRate{
		{ID: 1, KeywordEN: "iPhone", Cost: decimal.NewFromInt(10), Currency: "AED"},
		{ID: 2, KeywordEN: "iPhone 15 Pro", Cost: decimal.NewFromInt(25), Currency: "AED"},
		{ID: 3, KeywordEN: "", Cost: decimal.NewFromInt(99), Currency: "AED"},
		{ID: 4, KeywordEN: "Galaxy", Cost: decimal.NewFromInt(12), Currency: "AED"},
	}
}

func TestMatchShipping(t *testing.T) {
	rates := shippingRates()

	got := MatchShipping(rates, "Apple iPhone 15 Pro Max")
	if got == nil || got.ID != 2 {
		t.Fatalf("longest contained keyword should win, got %+v", got)
	}

	got = MatchShipping(rates, "apple iphone 13")
	if got == nil || got.ID != 1 {
		t.Fatalf("matching is case-insensitive, got %+v", got)
	}

	if got := MatchShipping(rates, "Pixel 9"); got != nil {
		t.Errorf("no keyword contained, got %+v", got)
	}
	if got := MatchShipping(rates, ""); got != nil {
		t.Errorf("empty name matches nothing, got %+v", got)
	}
}

func TestMatchShipping_NonASCIIKeyword(t *testing.T) {
	// "ẞ" shrinks when lowercased, so the winner must be decided on the
	// stored keyword regardless of rate order.
	rates := []storage.ShippingRate{
		{ID: 1, KeywordEN: "ball set", Cost: decimal.NewFromInt(8), Currency: "AED"},
		{ID: 2, KeywordEN: "FUẞBALL", Cost: decimal.NewFromInt(15), Currency: "AED"},
	}
	for i := 0; i < 2; i++ {
		got := MatchShipping(rates, "Fußball Set Deluxe")
		if got == nil || got.ID != 2 {
			t.Fatalf("longest stored keyword should win, got %+v", got)
		}
		rates[0], rates[1] = rates[1], rates[0]
	}
}
