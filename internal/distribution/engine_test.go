package distribution

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nzahrani/offercast/internal/pricing"
	"github.com/nzahrani/offercast/internal/storage"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  map[string]string // phone -> body
	fail  map[string]error  // phone -> forced error
	calls int
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[string]string), fail: make(map[string]error)}
}

func (f *fakeSender) Send(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.fail[to]; ok {
		return err
	}
	f.sent[to] = body
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testStore(t *testing.T) *storage.MemoryStorage {
	t.Helper()
	st := storage.NewMemory()
	ctx := context.Background()
	rates := []storage.CurrencyRate{
		{FromCurrency: "USD", ToCurrency: "SAR", Rate: dec("3.75")},
		{FromCurrency: "AED", ToCurrency: "SAR", Rate: dec("1.02")},
	}
	for _, r := range rates {
		if err := st.UpsertCurrencyRate(ctx, r); err != nil {
			t.Fatalf("seed rate: %v", err)
		}
	}
	return st
}

func testOffers() []storage.Offer {
	apple := uint(100)
	return []storage.Offer{
		{ID: 1, SupplierID: 10, BrandID: &apple, Name: "Apple iPhone 15 Pro 256GB",
			Price: dec("100"), Currency: "USD", Code: "OFF-00001", Quantity: 5},
		{ID: 2, SupplierID: 10, Name: "Unpriceable Gadget",
			Price: dec("10"), Currency: "GBP", Code: "OFF-00002"},
	}
}

func testSupplier() storage.Supplier {
	return storage.Supplier{ID: 10, Name: "Gulf Traders", Code: "SUP-0010"}
}

func TestDistribute_SendsToMatchingSubscribers(t *testing.T) {
	st := testStore(t)
	sender := newFakeSender()
	engine := NewEngine(pricing.NewEngine(st), sender, st)

	subs := []storage.Subscriber{
		{ID: 1, Name: "Ali", Phone: "9665001", SubscriberType: storage.SubscriberExternal, TargetCurrency: "SAR", IsActive: true},
	}

	report := engine.Distribute(context.Background(), testOffers(), testSupplier(), subs)
	if report.Sent() != 1 {
		t.Fatalf("sent = %d, want 1", report.Sent())
	}

	body := sender.sent["9665001"]
	if !strings.Contains(body, "375.00 SAR") {
		t.Errorf("message missing priced offer:\n%s", body)
	}
	// The GBP offer has no conversion rate: it is listed with a marker,
	// and does not abort the subscriber's message.
	if !strings.Contains(body, "Unpriceable Gadget") || !strings.Contains(body, "not available") {
		t.Errorf("message missing price-unavailable offer:\n%s", body)
	}
}

func TestDistribute_ZeroFilteredOffersSkipsTransport(t *testing.T) {
	st := testStore(t)
	sender := newFakeSender()
	engine := NewEngine(pricing.NewEngine(st), sender, st)

	subs := []storage.Subscriber{
		{
			ID: 1, Name: "Picky", Phone: "9665002",
			SubscriberType: storage.SubscriberExternal, TargetCurrency: "SAR", IsActive: true,
			Preference: &storage.Preference{
				SubscriberID: 1,
				Suppliers:    []storage.Supplier{{ID: 99}}, // matches nothing
			},
		},
	}

	report := engine.Distribute(context.Background(), testOffers(), testSupplier(), subs)
	if sender.calls != 0 {
		t.Fatalf("transport invoked %d times, want 0", sender.calls)
	}
	if report.Skipped() != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped())
	}
}

func TestDistribute_FailuresAreIsolated(t *testing.T) {
	st := testStore(t)
	sender := newFakeSender()
	sender.fail["9665001"] = errors.New("gateway unreachable")
	engine := NewEngine(pricing.NewEngine(st), sender, st).WithWorkers(2)

	subs := []storage.Subscriber{
		{ID: 1, Name: "Ali", Phone: "9665001", SubscriberType: storage.SubscriberExternal, TargetCurrency: "SAR", IsActive: true},
		{ID: 2, Name: "Sara", Phone: "9665002", SubscriberType: storage.SubscriberExternal, TargetCurrency: "SAR", IsActive: true},
	}

	report := engine.Distribute(context.Background(), testOffers(), testSupplier(), subs)
	if report.Failed() != 1 || report.Sent() != 1 {
		t.Fatalf("failed=%d sent=%d, want 1 and 1", report.Failed(), report.Sent())
	}
	if _, ok := sender.sent["9665002"]; !ok {
		t.Errorf("second subscriber never received their message")
	}

	failed, err := st.ListFailedDeliveries(context.Background(), 0)
	if err != nil {
		t.Fatalf("list failed deliveries: %v", err)
	}
	if len(failed) != 1 || failed[0].SubscriberID != 1 {
		t.Errorf("outbox should hold one failed delivery for subscriber 1, got %v", failed)
	}
}

func TestDistribute_MissingTargetCurrencyFailsOnlyThatSubscriber(t *testing.T) {
	st := testStore(t)
	sender := newFakeSender()
	engine := NewEngine(pricing.NewEngine(st), sender, st)

	subs := []storage.Subscriber{
		{ID: 1, Name: "Broken", Phone: "9665001", SubscriberType: storage.SubscriberExternal, IsActive: true},
		{ID: 2, Name: "Fine", Phone: "9665002", SubscriberType: storage.SubscriberExternal, TargetCurrency: "SAR", IsActive: true},
	}

	report := engine.Distribute(context.Background(), testOffers(), testSupplier(), subs)
	if report.Failed() != 1 || report.Sent() != 1 {
		t.Fatalf("failed=%d sent=%d, want 1 and 1", report.Failed(), report.Sent())
	}
}

func TestDistribute_EmptyBatchDoesNothing(t *testing.T) {
	st := testStore(t)
	sender := newFakeSender()
	engine := NewEngine(pricing.NewEngine(st), sender, st)

	report := engine.Distribute(context.Background(), nil, testSupplier(), []storage.Subscriber{
		{ID: 1, Name: "Ali", Phone: "9665001", TargetCurrency: "SAR", IsActive: true},
	})
	if len(report.Outcomes) != 0 || sender.calls != 0 {
		t.Fatalf("nothing should happen for an empty batch")
	}
}

func TestDistributeToAll_UsesActiveSubscribers(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	active := &storage.Subscriber{Name: "Active", Phone: "9665001", SubscriberType: storage.SubscriberExternal, TargetCurrency: "SAR", IsActive: true}
	inactive := &storage.Subscriber{Name: "Inactive", Phone: "9665002", SubscriberType: storage.SubscriberExternal, TargetCurrency: "SAR", IsActive: false}
	for _, s := range []*storage.Subscriber{active, inactive} {
		if err := st.CreateSubscriber(ctx, s); err != nil {
			t.Fatalf("create subscriber: %v", err)
		}
	}

	sender := newFakeSender()
	engine := NewEngine(pricing.NewEngine(st), sender, st)

	report, err := engine.DistributeToAll(ctx, st, testOffers(), testSupplier())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Sent() != 1 {
		t.Fatalf("sent = %d, want 1 (inactive subscriber excluded)", report.Sent())
	}
	if _, ok := sender.sent["9665002"]; ok {
		t.Errorf("inactive subscriber was messaged")
	}
}
