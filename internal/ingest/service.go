package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/nzahrani/offercast/internal/distribution"
	"github.com/nzahrani/offercast/internal/extract"
	"github.com/nzahrani/offercast/internal/metrics"
	"github.com/nzahrani/offercast/internal/storage"
)

// KeywordMatcher is the optional AI fallback used when no stored shipping
// keyword is contained in a group name.
type KeywordMatcher interface {
	BestShippingKeyword(ctx context.Context, productName string, keywords []string) (string, error)
}

// AnalyzedGroup is an extracted offer group with its resolved shipping
// cost attached. Shipping currency is the N/A sentinel when no rate
// matched.
type AnalyzedGroup struct {
	extract.OfferGroup
	ShippingCost     decimal.Decimal `json:"shipping_cost"`
	ShippingCurrency string          `json:"shipping_currency"`
}

// MissingFee reports one subscriber lacking mandatory device-fee rows.
type MissingFee struct {
	SubscriberID   uint     `json:"subscriber_id"`
	SubscriberName string   `json:"subscriber_name"`
	MissingDevices []string `json:"missing_devices"`
}

// MissingFeesError aborts a save until every active external subscriber
// has a fee row for each device in the batch.
type MissingFeesError struct {
	Items []MissingFee
}

func (e *MissingFeesError) Error() string {
	return fmt.Sprintf("mandatory device fees missing for %d subscriber(s)", len(e.Items))
}

// Service runs the ingestion flow: extract, attach shipping, validate
// fees, save the batch, then hand off to distribution.
type Service struct {
	store      storage.Storage
	extractor  extract.Extractor
	keywords   KeywordMatcher
	distEngine *distribution.Engine
}

func NewService(store storage.Storage, extractor extract.Extractor) *Service {
	return &Service{store: store, extractor: extractor}
}

// WithKeywordMatcher enables the AI fallback for shipping keyword lookup.
func (s *Service) WithKeywordMatcher(m KeywordMatcher) *Service {
	s.keywords = m
	return s
}

// WithDistribution makes SaveAndDistribute fan the saved batch out after
// a successful commit.
func (s *Service) WithDistribution(e *distribution.Engine) *Service {
	s.distEngine = e
	return s
}

// Analyze structures raw supplier text and attaches the best-match
// shipping cost to every group.
func (s *Service) Analyze(ctx context.Context, text string) ([]AnalyzedGroup, error) {
	groups, err := s.extractor.ExtractOffers(ctx, text)
	if err != nil {
		return nil, err
	}

	rates, err := s.store.ListShippingRates(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]AnalyzedGroup, 0, len(groups))
	for _, g := range groups {
		ag := AnalyzedGroup{OfferGroup: g, ShippingCurrency: storage.ShippingNone}

		rate := MatchShipping(rates, g.GroupingName)
		if rate == nil && s.keywords != nil {
			rate = s.aiFallback(ctx, rates, g.GroupingName)
		}
		if rate != nil {
			ag.ShippingCost = rate.Cost
			ag.ShippingCurrency = rate.Currency
		}
		out = append(out, ag)
	}
	return out, nil
}

func (s *Service) aiFallback(ctx context.Context, rates []storage.ShippingRate, groupName string) *storage.ShippingRate {
	keywords := make([]string, 0, len(rates))
	for _, r := range rates {
		if r.KeywordEN != "" {
			keywords = append(keywords, r.KeywordEN)
		}
	}
	best, err := s.keywords.BestShippingKeyword(ctx, groupName, keywords)
	if err != nil {
		log.Printf("ingest: shipping keyword fallback for %q: %v", groupName, err)
		return nil
	}
	for i := range rates {
		if rates[i].KeywordEN == best {
			return &rates[i]
		}
	}
	return nil
}

// MissingFees returns, per active external subscriber, the device names
// from the batch that have no fee row yet.
func (s *Service) MissingFees(ctx context.Context, deviceNames []string) ([]MissingFee, error) {
	if len(deviceNames) == 0 {
		return nil, nil
	}
	subs, err := s.store.ListActiveSubscribers(ctx)
	if err != nil {
		return nil, err
	}

	var out []MissingFee
	for _, sub := range subs {
		if sub.SubscriberType != storage.SubscriberExternal {
			continue
		}
		existing := make(map[string]struct{}, len(sub.DeviceFees))
		for _, f := range sub.DeviceFees {
			existing[f.DeviceKeyword] = struct{}{}
		}
		var missing []string
		for _, name := range deviceNames {
			if _, ok := existing[name]; !ok {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			out = append(out, MissingFee{
				SubscriberID:   sub.ID,
				SubscriberName: sub.Name,
				MissingDevices: missing,
			})
		}
	}
	return out, nil
}

// SaveBatch persists every variant of every group as an offer row in a
// single transaction. Groups without a name are skipped; a batch with
// fee gaps is rejected with MissingFeesError before anything is written.
func (s *Service) SaveBatch(ctx context.Context, supplierID uint, groups []AnalyzedGroup, originalText string) ([]storage.Offer, error) {
	supplier, err := s.store.GetSupplier(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	if supplier == nil {
		return nil, fmt.Errorf("supplier %d not found", supplierID)
	}

	var names []string
	for _, g := range groups {
		if g.GroupingName != "" {
			names = append(names, g.GroupingName)
		}
	}
	gaps, err := s.MissingFees(ctx, names)
	if err != nil {
		return nil, err
	}
	if len(gaps) > 0 {
		return nil, &MissingFeesError{Items: gaps}
	}

	var offers []*storage.Offer
	for _, g := range groups {
		if g.GroupingName == "" {
			continue
		}
		brand, err := s.store.GetOrCreateBrand(ctx, g.BrandName)
		if err != nil {
			return nil, err
		}
		category, err := s.store.GetOrCreateCategory(ctx, g.CategoryName)
		if err != nil {
			return nil, err
		}

		for _, v := range g.Variants {
			name := g.GroupingName
			if v.Name != "" {
				name = g.GroupingName + " - " + v.Name
			}
			shippingCurrency := g.ShippingCurrency
			if shippingCurrency == "" {
				shippingCurrency = storage.ShippingNone
			}
			offers = append(offers, &storage.Offer{
				SupplierID:       supplier.ID,
				BrandID:          &brand.ID,
				CategoryID:       &category.ID,
				Name:             name,
				Storage:          v.Storage,
				Condition:        v.Condition,
				SpecRegion:       v.SpecRegion,
				Color:            v.Color,
				Quantity:         v.Quantity,
				Price:            v.Price,
				Currency:         v.Currency,
				ShippingCost:     g.ShippingCost,
				ShippingCurrency: shippingCurrency,
				OriginalText:     originalText,
				Brand:            brand,
				Category:         category,
				Supplier:         supplier,
			})
		}
	}
	if len(offers) == 0 {
		return nil, nil
	}

	if err := s.store.CreateOffers(ctx, offers); err != nil {
		return nil, err
	}
	metrics.OffersIngestedTotal.WithLabelValues(supplier.Name).Add(float64(len(offers)))

	saved := make([]storage.Offer, len(offers))
	for i, o := range offers {
		saved[i] = *o
	}
	return saved, nil
}

// SaveAndDistribute saves the batch and, once the save has committed,
// fans it out to all active subscribers.
func (s *Service) SaveAndDistribute(ctx context.Context, supplierID uint, groups []AnalyzedGroup, originalText string) ([]storage.Offer, *distribution.Report, error) {
	offers, err := s.SaveBatch(ctx, supplierID, groups, originalText)
	if err != nil {
		return nil, nil, err
	}
	if len(offers) == 0 || s.distEngine == nil {
		return offers, nil, nil
	}

	supplier, err := s.store.GetSupplier(ctx, supplierID)
	if err != nil {
		return offers, nil, err
	}
	report, err := s.distEngine.DistributeToAll(ctx, s.store, offers, *supplier)
	if err != nil {
		return offers, nil, err
	}
	return offers, &report, nil
}
