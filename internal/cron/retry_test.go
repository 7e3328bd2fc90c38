package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nzahrani/offercast/internal/storage"
)

type scriptedSender struct {
	fail  map[string]error
	calls []string
}

func (s *scriptedSender) Send(ctx context.Context, to, body string) error {
	s.calls = append(s.calls, to)
	if err, ok := s.fail[to]; ok {
		return err
	}
	return nil
}

func outboxFixture(t *testing.T) (*storage.MemoryStorage, *storage.Subscriber) {
	t.Helper()
	st := storage.NewMemory()
	ctx := context.Background()
	sub := &storage.Subscriber{Name: "Ali", Phone: "9665001", TargetCurrency: "SAR", IsActive: true}
	if err := st.CreateSubscriber(ctx, sub); err != nil {
		t.Fatalf("create subscriber: %v", err)
	}
	return st, sub
}

func TestRetrier_ResendsFailedDeliveries(t *testing.T) {
	st, sub := outboxFixture(t)
	ctx := context.Background()

	d := &storage.Delivery{
		SubscriberID: sub.ID, Status: storage.DeliveryFailed,
		Body: "offer text", Attempts: 1, AttemptedAt: time.Now().Add(-time.Hour),
	}
	if err := st.CreateDelivery(ctx, d); err != nil {
		t.Fatalf("create delivery: %v", err)
	}

	sender := &scriptedSender{}
	retried, err := NewRetrier(st, sender, 10).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retried != 1 || len(sender.calls) != 1 {
		t.Fatalf("retried = %d, calls = %v", retried, sender.calls)
	}

	remaining, err := st.ListFailedDeliveries(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("delivery should be marked sent, still failed: %+v", remaining)
	}
}

func TestRetrier_KeepsFailingRowWithAttemptCount(t *testing.T) {
	st, sub := outboxFixture(t)
	ctx := context.Background()

	d := &storage.Delivery{
		SubscriberID: sub.ID, Status: storage.DeliveryFailed,
		Body: "offer text", Attempts: 1, AttemptedAt: time.Now().Add(-time.Hour),
	}
	if err := st.CreateDelivery(ctx, d); err != nil {
		t.Fatalf("create delivery: %v", err)
	}

	sender := &scriptedSender{fail: map[string]error{"9665001": errors.New("still down")}}
	if _, err := NewRetrier(st, sender, 10).Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	remaining, err := st.ListFailedDeliveries(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Attempts != 2 {
		t.Fatalf("remaining = %+v, want one row with 2 attempts", remaining)
	}
}

func TestRetrier_ExhaustedAndInactiveRows(t *testing.T) {
	st, sub := outboxFixture(t)
	ctx := context.Background()

	inactive := &storage.Subscriber{Name: "Gone", Phone: "9665002", TargetCurrency: "SAR", IsActive: false}
	if err := st.CreateSubscriber(ctx, inactive); err != nil {
		t.Fatalf("create subscriber: %v", err)
	}

	exhausted := &storage.Delivery{SubscriberID: sub.ID, Status: storage.DeliveryFailed, Attempts: maxAttempts}
	orphaned := &storage.Delivery{SubscriberID: inactive.ID, Status: storage.DeliveryFailed, Attempts: 1}
	for _, d := range []*storage.Delivery{exhausted, orphaned} {
		if err := st.CreateDelivery(ctx, d); err != nil {
			t.Fatalf("create delivery: %v", err)
		}
	}

	sender := &scriptedSender{}
	retried, err := NewRetrier(st, sender, 10).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retried != 0 || len(sender.calls) != 0 {
		t.Fatalf("nothing should be sent: retried=%d calls=%v", retried, sender.calls)
	}

	remaining, err := st.ListFailedDeliveries(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// The exhausted row stays failed for inspection; the orphaned one is
	// closed out as skipped.
	if len(remaining) != 1 || remaining[0].ID != exhausted.ID {
		t.Errorf("remaining = %+v", remaining)
	}
}

func TestNextAfter(t *testing.T) {
	from := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if got := nextAfter("90", from); got != from.Add(90*time.Second) {
		t.Errorf("seconds setting: got %v", got)
	}
	// Standard cron expression: every hour on the hour.
	if got := nextAfter("0 * * * *", from); got != from.Add(time.Hour) {
		t.Errorf("cron setting: got %v", got)
	}
	if got := nextAfter("garbage", from); got != from.Add(5*time.Minute) {
		t.Errorf("fallback: got %v", got)
	}
}
