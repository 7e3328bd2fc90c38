package distribution

import (
	"testing"

	"github.com/nzahrani/offercast/internal/storage"
)

func uintPtr(v uint) *uint { return &v }

func sampleOffers() []storage.Offer {
	return []storage.Offer{
		{ID: 1, SupplierID: 10, BrandID: uintPtr(100), CategoryID: uintPtr(200), Name: "iPhone 15"},
		{ID: 2, SupplierID: 10, BrandID: uintPtr(101), CategoryID: uintPtr(200), Name: "Galaxy S24"},
		{ID: 3, SupplierID: 11, BrandID: nil, CategoryID: uintPtr(201), Name: "Generic Charger"},
	}
}

func TestFilter_NoPreferenceSeesEverything(t *testing.T) {
	got := NewFilter(nil).Apply(sampleOffers())
	if len(got) != 3 {
		t.Fatalf("got %d offers, want all 3", len(got))
	}
}

func TestFilter_AllDimensionsEmptySeesEverything(t *testing.T) {
	pref := &storage.Preference{SubscriberID: 1}
	got := NewFilter(pref).Apply(sampleOffers())
	if len(got) != 3 {
		t.Fatalf("got %d offers, want all 3", len(got))
	}
}

func TestFilter_BrandAllowList(t *testing.T) {
	pref := &storage.Preference{
		SubscriberID: 1,
		Brands:       []storage.Brand{{ID: 100, Name: "Apple"}},
	}

	got := NewFilter(pref).Apply(sampleOffers())
	if len(got) != 1 {
		t.Fatalf("got %d offers, want 1", len(got))
	}
	if got[0].Name != "iPhone 15" {
		t.Errorf("kept %q, want the Apple offer", got[0].Name)
	}
}

func TestFilter_NullBrandFailsBrandFilter(t *testing.T) {
	pref := &storage.Preference{
		SubscriberID: 1,
		Brands:       []storage.Brand{{ID: 100, Name: "Apple"}},
	}

	for _, o := range NewFilter(pref).Apply(sampleOffers()) {
		if o.BrandID == nil {
			t.Errorf("offer %q with no brand passed a non-empty brand filter", o.Name)
		}
	}
}

func TestFilter_DimensionsCombineAsAnd(t *testing.T) {
	// Supplier 10 allowed, category 201 allowed: no offer satisfies both.
	pref := &storage.Preference{
		SubscriberID: 1,
		Suppliers:    []storage.Supplier{{ID: 10}},
		Categories:   []storage.Category{{ID: 201}},
	}

	if got := NewFilter(pref).Apply(sampleOffers()); len(got) != 0 {
		t.Fatalf("got %d offers, want 0", len(got))
	}
}

func TestFilter_EmptyDimensionImposesNothing(t *testing.T) {
	// Only the supplier dimension is set; brand/category stay open.
	pref := &storage.Preference{
		SubscriberID: 1,
		Suppliers:    []storage.Supplier{{ID: 11}},
	}

	got := NewFilter(pref).Apply(sampleOffers())
	if len(got) != 1 || got[0].Name != "Generic Charger" {
		t.Fatalf("got %v, want only the supplier-11 offer", got)
	}
}

func TestFilter_PreservesOrderAndInput(t *testing.T) {
	offers := sampleOffers()
	pref := &storage.Preference{
		SubscriberID: 1,
		Suppliers:    []storage.Supplier{{ID: 10}},
	}

	got := NewFilter(pref).Apply(offers)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("order not preserved: %v", got)
	}
	if len(offers) != 3 {
		t.Fatalf("input slice mutated")
	}
}
