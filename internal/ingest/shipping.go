package ingest

import (
	"strings"

	"github.com/nzahrani/offercast/internal/storage"
)

// MatchShipping picks the shipping rate whose English keyword is the
// longest case-insensitive substring of the group name. Returns nil when
// no keyword is contained.
func MatchShipping(rates []storage.ShippingRate, groupName string) *storage.ShippingRate {
	name := strings.ToLower(groupName)
	if name == "" {
		return nil
	}
	var best *storage.ShippingRate
	for i := range rates {
		keyword := strings.ToLower(rates[i].KeywordEN)
		if keyword == "" || !strings.Contains(name, keyword) {
			continue
		}
		if best == nil || len(rates[i].KeywordEN) > len(best.KeywordEN) {
			best = &rates[i]
		}
	}
	return best
}
