package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nzahrani/offercast/internal/distribution"
	"github.com/nzahrani/offercast/internal/extract"
	"github.com/nzahrani/offercast/internal/pricing"
	"github.com/nzahrani/offercast/internal/storage"
)

type fakeExtractor struct {
	groups []extract.OfferGroup
	err    error
}

func (f *fakeExtractor) ExtractOffers(ctx context.Context, text string) ([]extract.OfferGroup, error) {
	return f.groups, f.err
}

func seededStore(t *testing.T) (*storage.MemoryStorage, uint) {
	t.Helper()
	st := storage.NewMemory()
	ctx := context.Background()
	for _, r := range shippingRates() {
		r := r
		r.ID = 0
		if err := st.UpsertShippingRate(ctx, r); err != nil {
			t.Fatalf("seed shipping rate: %v", err)
		}
	}
	supplier := storage.Supplier{Name: "Gulf Traders"}
	if err := st.CreateSupplier(ctx, &supplier); err != nil {
		t.Fatalf("seed supplier: %v", err)
	}
	return st, supplier.ID
}

func sampleGroups() []extract.OfferGroup {
	return []extract.OfferGroup{
		{
			GroupingName: "Apple iPhone 15 Pro",
			BrandName:    "Apple",
			CategoryName: "Phones",
			Variants: []extract.Variant{
				{Name: "256GB Black", Quantity: 5, Price: decimal.NewFromInt(900), Currency: "USD", Storage: "256GB", Color: "Black", Condition: "New"},
				{Quantity: 2, Price: decimal.NewFromInt(850), Currency: "USD", Condition: "New"},
			},
		},
		{
			GroupingName: "Pixel 9",
			BrandName:    "Google",
			CategoryName: "Phones",
			Variants: []extract.Variant{
				{Name: "128GB", Quantity: 1, Price: decimal.NewFromInt(700), Currency: "USD", Condition: "New"},
			},
		},
	}
}

func TestAnalyze_AttachesShipping(t *testing.T) {
	st, _ := seededStore(t)
	svc := NewService(st, &fakeExtractor{groups: sampleGroups()})

	groups, err := svc.Analyze(context.Background(), "raw supplier text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d", len(groups))
	}

	iphone := groups[0]
	if !iphone.ShippingCost.Equal(decimal.NewFromInt(25)) || iphone.ShippingCurrency != "AED" {
		t.Errorf("iphone shipping = %s %s, want 25 AED", iphone.ShippingCost, iphone.ShippingCurrency)
	}

	pixel := groups[1]
	if !pixel.ShippingCost.IsZero() || pixel.ShippingCurrency != storage.ShippingNone {
		t.Errorf("unmatched group shipping = %s %s, want 0 N/A", pixel.ShippingCost, pixel.ShippingCurrency)
	}
}

func TestAnalyze_ExtractionErrorStopsFlow(t *testing.T) {
	st, _ := seededStore(t)
	svc := NewService(st, &fakeExtractor{err: &extract.ExtractionError{Reason: "no offer groups found"}})

	if _, err := svc.Analyze(context.Background(), "garbage"); err == nil {
		t.Fatal("expected extraction error")
	}
}

func TestMissingFees(t *testing.T) {
	st, _ := seededStore(t)
	ctx := context.Background()

	ext := &storage.Subscriber{Name: "Ext", Phone: "1", SubscriberType: storage.SubscriberExternal, TargetCurrency: "SAR", IsActive: true}
	internal := &storage.Subscriber{Name: "Int", Phone: "2", SubscriberType: storage.SubscriberInternal, TargetCurrency: "SAR", IsActive: true}
	for _, s := range []*storage.Subscriber{ext, internal} {
		if err := st.CreateSubscriber(ctx, s); err != nil {
			t.Fatalf("create subscriber: %v", err)
		}
	}
	if err := st.CreateDeviceFee(ctx, storage.SubscriberDeviceFee{
		SubscriberID: ext.ID, DeviceKeyword: "Apple iPhone 15 Pro", Fee: decimal.NewFromInt(50), Currency: "AED",
	}); err != nil {
		t.Fatalf("create fee: %v", err)
	}

	svc := NewService(st, &fakeExtractor{})
	gaps, err := svc.MissingFees(ctx, []string{"Apple iPhone 15 Pro", "Pixel 9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gaps) != 1 {
		t.Fatalf("gaps = %+v, want one entry for the external subscriber", gaps)
	}
	if gaps[0].SubscriberID != ext.ID || len(gaps[0].MissingDevices) != 1 || gaps[0].MissingDevices[0] != "Pixel 9" {
		t.Errorf("gap = %+v", gaps[0])
	}
}

func TestSaveBatch(t *testing.T) {
	st, supplierID := seededStore(t)
	svc := NewService(st, &fakeExtractor{})
	ctx := context.Background()

	groups, err := NewService(st, &fakeExtractor{groups: sampleGroups()}).Analyze(ctx, "raw")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	offers, err := svc.SaveBatch(ctx, supplierID, groups, "raw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(offers) != 3 {
		t.Fatalf("offers = %d, want 3", len(offers))
	}

	first := offers[0]
	if first.Name != "Apple iPhone 15 Pro - 256GB Black" {
		t.Errorf("name = %q", first.Name)
	}
	if !strings.HasPrefix(first.Code, "OFF-") {
		t.Errorf("code = %q", first.Code)
	}
	// A variant without its own name falls back to the group name.
	if offers[1].Name != "Apple iPhone 15 Pro" {
		t.Errorf("name = %q", offers[1].Name)
	}
	if offers[2].ShippingCurrency != storage.ShippingNone {
		t.Errorf("unmatched shipping currency = %q", offers[2].ShippingCurrency)
	}
}

func TestSaveBatch_MissingFeesAborts(t *testing.T) {
	st, supplierID := seededStore(t)
	ctx := context.Background()

	sub := &storage.Subscriber{Name: "Ext", Phone: "1", SubscriberType: storage.SubscriberExternal, TargetCurrency: "SAR", IsActive: true}
	if err := st.CreateSubscriber(ctx, sub); err != nil {
		t.Fatalf("create subscriber: %v", err)
	}

	svc := NewService(st, &fakeExtractor{})
	groups := []AnalyzedGroup{{OfferGroup: sampleGroups()[0], ShippingCurrency: storage.ShippingNone}}

	_, err := svc.SaveBatch(ctx, supplierID, groups, "raw")
	var mfe *MissingFeesError
	if !errors.As(err, &mfe) {
		t.Fatalf("want MissingFeesError, got %v", err)
	}
	if len(mfe.Items) != 1 || mfe.Items[0].SubscriberID != sub.ID {
		t.Errorf("items = %+v", mfe.Items)
	}

	// Nothing was written.
	saved, err := st.ListOffers(ctx, storage.OfferFilter{})
	if err != nil {
		t.Fatalf("list offers: %v", err)
	}
	if len(saved) != 0 {
		t.Errorf("offers were saved despite fee gaps: %d", len(saved))
	}
}

func TestSaveBatch_UnknownSupplier(t *testing.T) {
	st, _ := seededStore(t)
	svc := NewService(st, &fakeExtractor{})

	if _, err := svc.SaveBatch(context.Background(), 999, nil, ""); err == nil {
		t.Fatal("expected error for unknown supplier")
	}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) Send(ctx context.Context, to, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to)
	return nil
}

func TestSaveAndDistribute(t *testing.T) {
	st, supplierID := seededStore(t)
	ctx := context.Background()

	if err := st.UpsertCurrencyRate(ctx, storage.CurrencyRate{
		FromCurrency: "USD", ToCurrency: "SAR", Rate: decimal.NewFromFloat(3.75),
	}); err != nil {
		t.Fatalf("seed rate: %v", err)
	}
	sub := &storage.Subscriber{Name: "Ali", Phone: "9665001", SubscriberType: storage.SubscriberInternal, TargetCurrency: "SAR", IsActive: true}
	if err := st.CreateSubscriber(ctx, sub); err != nil {
		t.Fatalf("create subscriber: %v", err)
	}

	sender := &recordingSender{}
	svc := NewService(st, &fakeExtractor{groups: sampleGroups()}).
		WithDistribution(distribution.NewEngine(pricing.NewEngine(st), sender, st))

	groups, err := svc.Analyze(ctx, "raw")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	offers, report, err := svc.SaveAndDistribute(ctx, supplierID, groups, "raw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(offers) != 3 {
		t.Fatalf("offers = %d, want 3", len(offers))
	}
	if report == nil || report.Sent() != 1 {
		t.Fatalf("report = %+v, want one sent outcome", report)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "9665001" {
		t.Errorf("sent = %v", sender.sent)
	}
}
