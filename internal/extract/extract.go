package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotConfigured is returned when no API key is available. Checked at
// the point of use so the rest of the system runs without AI credentials.
var ErrNotConfigured = errors.New("extraction API key not configured")

// ExtractionError wraps any failure between raw text and validated offer
// groups. Nothing is persisted when one is returned.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return "extraction failed: " + e.Reason
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Variant is one concrete sellable item inside an offer group.
type Variant struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	Storage    string          `json:"storage"`
	Color      string          `json:"color"`
	Condition  string          `json:"condition"`
	SpecRegion string          `json:"spec_region"`
}

// OfferGroup is the structured form of one product block in a raw
// supplier message.
type OfferGroup struct {
	GroupingName string    `json:"grouping_name"`
	BrandName    string    `json:"brand_name"`
	CategoryName string    `json:"category_name"`
	Variants     []Variant `json:"variants"`
}

// ShippingItem is one row extracted from a shipping price-list document.
type ShippingItem struct {
	KeywordEN string          `json:"product_keyword_en"`
	KeywordAR string          `json:"product_keyword_ar"`
	Cost      decimal.Decimal `json:"cost"`
	Currency  string          `json:"currency"`
}

// Extractor turns raw supplier text into validated offer groups.
type Extractor interface {
	ExtractOffers(ctx context.Context, text string) ([]OfferGroup, error)
}

// ValidateGroups enforces the schema contract: every group needs a
// grouping name, and variants may not carry negative prices or
// quantities. Fields the model left empty are filled with defaults.
func ValidateGroups(groups []OfferGroup) ([]OfferGroup, error) {
	if len(groups) == 0 {
		return nil, &ExtractionError{Reason: "no offer groups found"}
	}
	out := make([]OfferGroup, 0, len(groups))
	for i := range groups {
		g := groups[i]
		g.GroupingName = strings.TrimSpace(g.GroupingName)
		if g.GroupingName == "" {
			return nil, &ExtractionError{Reason: fmt.Sprintf("group %d has no grouping name", i)}
		}
		if g.BrandName = strings.TrimSpace(g.BrandName); g.BrandName == "" {
			g.BrandName = "Unknown"
		}
		if g.CategoryName = strings.TrimSpace(g.CategoryName); g.CategoryName == "" {
			g.CategoryName = "Uncategorized"
		}
		for j := range g.Variants {
			v := &g.Variants[j]
			if v.Price.IsNegative() {
				return nil, &ExtractionError{Reason: fmt.Sprintf("group %q variant %d has a negative price", g.GroupingName, j)}
			}
			if v.Quantity < 0 {
				return nil, &ExtractionError{Reason: fmt.Sprintf("group %q variant %d has a negative quantity", g.GroupingName, j)}
			}
			if v.Currency == "" {
				v.Currency = "USD"
			}
			if v.Condition == "" {
				v.Condition = "New"
			}
		}
		out = append(out, g)
	}
	return out, nil
}
