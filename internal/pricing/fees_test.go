package pricing

import (
	"testing"

	"github.com/nzahrani/offercast/internal/storage"
)

func TestResolveFee_LongestKeywordWins(t *testing.T) {
	fees := []storage.SubscriberDeviceFee{
		{DeviceKeyword: "iPhone", Fee: dec("30"), Currency: "AED"},
		{DeviceKeyword: "iPhone 15 Pro", Fee: dec("50"), Currency: "AED"},
	}

	got := ResolveFee(fees, storage.SubscriberExternal, "Apple iPhone 15 Pro 256GB")
	if got == nil {
		t.Fatalf("expected a match")
	}
	if got.DeviceKeyword != "iPhone 15 Pro" {
		t.Errorf("matched %q, want the more specific %q", got.DeviceKeyword, "iPhone 15 Pro")
	}
}

func TestResolveFee_CaseInsensitive(t *testing.T) {
	fees := []storage.SubscriberDeviceFee{
		{DeviceKeyword: "IPHONE", Fee: dec("30"), Currency: "AED"},
	}

	if got := ResolveFee(fees, storage.SubscriberExternal, "apple iphone 14"); got == nil {
		t.Errorf("expected case-insensitive match")
	}
}

func TestResolveFee_Internal(t *testing.T) {
	fees := []storage.SubscriberDeviceFee{
		{DeviceKeyword: "iPhone", Fee: dec("30"), Currency: "AED"},
	}

	if got := ResolveFee(fees, storage.SubscriberInternal, "Apple iPhone 14"); got != nil {
		t.Errorf("internal subscribers never incur fees, got %q", got.DeviceKeyword)
	}
}

func TestResolveFee_NoMatch(t *testing.T) {
	fees := []storage.SubscriberDeviceFee{
		{DeviceKeyword: "Galaxy", Fee: dec("30"), Currency: "AED"},
	}

	if got := ResolveFee(fees, storage.SubscriberExternal, "Apple iPhone 14"); got != nil {
		t.Errorf("expected no match, got %q", got.DeviceKeyword)
	}
}

func TestResolveFee_EqualLengthTieKeepsFirst(t *testing.T) {
	// "iPad Pro" and "Pro iPad" are both 8 chars and both contained in the
	// name below; the first-encountered fee must win on every run.
	fees := []storage.SubscriberDeviceFee{
		{DeviceKeyword: "iPad Pro", Fee: dec("40"), Currency: "AED"},
		{DeviceKeyword: "Pro iPad", Fee: dec("60"), Currency: "AED"},
	}

	for i := 0; i < 10; i++ {
		got := ResolveFee(fees, storage.SubscriberExternal, "Apple iPad Pro iPad Pro bundle")
		if got == nil || got.DeviceKeyword != "iPad Pro" {
			t.Fatalf("tie-break not deterministic: got %v", got)
		}
	}
}

func TestResolveFee_EmptyKeywordIgnored(t *testing.T) {
	fees := []storage.SubscriberDeviceFee{
		{DeviceKeyword: "", Fee: dec("99"), Currency: "AED"},
	}

	if got := ResolveFee(fees, storage.SubscriberExternal, "anything"); got != nil {
		t.Errorf("empty keyword must never match")
	}
}
