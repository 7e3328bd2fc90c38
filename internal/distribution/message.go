package distribution

import (
	"fmt"
	"strings"

	"github.com/nzahrani/offercast/internal/pricing"
	"github.com/nzahrani/offercast/internal/storage"
)

// regionFlags maps region keywords found in an offer's spec text to a flag
// emoji used purely as message decoration.
var regionFlags = map[string]string{
	"USA":           "\U0001F1FA\U0001F1F8",
	"JAPAN":         "\U0001F1EF\U0001F1F5",
	"VIETNAM":       "\U0001F1FB\U0001F1F3",
	"HONG KONG":     "\U0001F1ED\U0001F1F0",
	"UAE":           "\U0001F1E6\U0001F1EA",
	"KSA":           "\U0001F1F8\U0001F1E6",
	"EUROPE":        "\U0001F1EA\U0001F1FA",
	"UK":            "\U0001F1EC\U0001F1E7",
	"CHINA":         "\U0001F1E8\U0001F1F3",
	"GLOBAL":        "\U0001F30D",
	"INTERNATIONAL": "\U0001F30D",
}

// RegionFlag returns the flag for the first region keyword contained in the
// spec text, or "" when none matches.
func RegionFlag(region string) string {
	if region == "" {
		return ""
	}
	upper := strings.ToUpper(region)
	for keyword, flag := range regionFlags {
		if strings.Contains(upper, keyword) {
			return flag
		}
	}
	return ""
}

// PricedOffer is one message line item: the offer plus its quote, or a
// price-unavailable marker when the base conversion rate was missing.
type PricedOffer struct {
	Offer            storage.Offer
	Quote            pricing.Quote
	PriceUnavailable bool
}

// ComposeMessage renders the notification text for one subscriber: one
// block per surviving offer with brand, specs, region flag, final price and
// the offer code.
func ComposeMessage(subscriberName string, supplier storage.Supplier, items []PricedOffer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n", subscriberName)
	fmt.Fprintf(&b, "New offers from %s matching your interests:\n", supplier.Name)
	b.WriteString(strings.Repeat("=", 40))
	b.WriteString("\n")

	for _, item := range items {
		o := item.Offer

		brand := "Generic"
		if o.Brand != nil && o.Brand.Name != "" {
			brand = o.Brand.Name
		}
		fmt.Fprintf(&b, "\U0001F4F1 %s - %s\n", brand, o.Name)

		if o.Storage != "" {
			fmt.Fprintf(&b, "\U0001F4BE %s\n", o.Storage)
		}
		if o.Color != "" {
			fmt.Fprintf(&b, "\U0001F3A8 %s\n", o.Color)
		}
		if o.SpecRegion != "" {
			if flag := RegionFlag(o.SpecRegion); flag != "" {
				fmt.Fprintf(&b, "%s Region: %s\n", flag, o.SpecRegion)
			} else {
				fmt.Fprintf(&b, "Region: %s\n", o.SpecRegion)
			}
		}

		switch {
		case item.PriceUnavailable:
			b.WriteString("\U0001F4B0 Price: not available\n")
		case item.Quote.NoCharge:
			b.WriteString("\U0001F4B0 Price: on request\n")
		default:
			fmt.Fprintf(&b, "\U0001F4B0 Price: *%s %s*\n", item.Quote.Price.StringFixed(2), item.Quote.Currency)
		}

		if o.Quantity > 0 {
			fmt.Fprintf(&b, "\U0001F6D2 Quantity: %d\n", o.Quantity)
		}
		fmt.Fprintf(&b, "\U0001F194 Offer code: %s\n", o.Code)
		b.WriteString(strings.Repeat("-", 30))
		b.WriteString("\n")
	}

	b.WriteString("Reply to this number to inquire or place an order.")
	return b.String()
}
