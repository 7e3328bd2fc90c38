package pricing

import (
	"strings"

	"github.com/nzahrani/offercast/internal/storage"
)

// ResolveFee picks the single best-matching mandatory device fee for an
// offer name, or nil when none applies.
//
// INTERNAL subscribers are exempt and always resolve to nil. A fee matches
// when its keyword is a case-insensitive substring of the offer name; among
// matches the longest keyword wins (most specific). Ties at equal length
// keep the first-encountered fee in the given slice order, which makes the
// selection deterministic for a stable fee list.
func ResolveFee(fees []storage.SubscriberDeviceFee, subscriberType, offerName string) *storage.SubscriberDeviceFee {
	if subscriberType != storage.SubscriberExternal {
		return nil
	}

	name := strings.ToLower(offerName)
	var best *storage.SubscriberDeviceFee
	for i := range fees {
		keyword := strings.ToLower(fees[i].DeviceKeyword)
		if keyword == "" || !strings.Contains(name, keyword) {
			continue
		}
		if best == nil || len(fees[i].DeviceKeyword) > len(best.DeviceKeyword) {
			best = &fees[i]
		}
	}
	return best
}
