package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu sync.RWMutex

	nextID uint

	suppliers     map[uint]Supplier
	brands        map[uint]Brand
	categories    map[uint]Category
	currencyRates map[uint]CurrencyRate
	shippingRates map[uint]ShippingRate
	subscribers   map[uint]Subscriber
	preferences   map[uint]Preference // keyed by subscriber id
	deviceFees    map[uint][]SubscriberDeviceFee
	offers        map[uint]Offer
	deliveries    map[uint]Delivery
	settings      map[string]string
	users         map[string]User
	tokens        map[string]Token
	casbinRules   []CasbinRule
	msgConfig     *MessagingConfig
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		suppliers:     make(map[uint]Supplier),
		brands:        make(map[uint]Brand),
		categories:    make(map[uint]Category),
		currencyRates: make(map[uint]CurrencyRate),
		shippingRates: make(map[uint]ShippingRate),
		subscribers:   make(map[uint]Subscriber),
		preferences:   make(map[uint]Preference),
		deviceFees:    make(map[uint][]SubscriberDeviceFee),
		offers:        make(map[uint]Offer),
		deliveries:    make(map[uint]Delivery),
		settings:      make(map[string]string),
		users:         make(map[string]User),
		tokens:        make(map[string]Token),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// id allocates the next row id. Callers must hold the write lock.
func (m *MemoryStorage) id() uint {
	m.nextID++
	return m.nextID
}

// Suppliers

func (m *MemoryStorage) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Supplier, 0, len(m.suppliers))
	for _, s := range m.suppliers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStorage) GetSupplier(ctx context.Context, id uint) (*Supplier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.suppliers[id]; ok {
		cp := s
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStorage) CreateSupplier(ctx context.Context, s *Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	s.Code = fmt.Sprintf("SUP-%04d", s.ID)
	m.suppliers[s.ID] = *s
	return nil
}

func (m *MemoryStorage) UpdateSupplier(ctx context.Context, s *Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppliers[s.ID] = *s
	return nil
}

func (m *MemoryStorage) DeleteSupplier(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.suppliers, id)
	return nil
}

// Brands / categories

func (m *MemoryStorage) GetOrCreateBrand(ctx context.Context, name string) (*Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.brands {
		if b.Name == name {
			cp := b
			return &cp, nil
		}
	}
	b := Brand{ID: m.id(), Name: name}
	m.brands[b.ID] = b
	return &b, nil
}

func (m *MemoryStorage) GetOrCreateCategory(ctx context.Context, name string) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.Name == name {
			cp := c
			return &cp, nil
		}
	}
	c := Category{ID: m.id(), Name: name}
	m.categories[c.ID] = c
	return &c, nil
}

// Currency rates

func (m *MemoryStorage) ListCurrencyRates(ctx context.Context) ([]CurrencyRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CurrencyRate, 0, len(m.currencyRates))
	for _, r := range m.currencyRates {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromCurrency != out[j].FromCurrency {
			return out[i].FromCurrency < out[j].FromCurrency
		}
		return out[i].ToCurrency < out[j].ToCurrency
	})
	return out, nil
}

func (m *MemoryStorage) GetCurrencyRate(ctx context.Context, from, to string) (*CurrencyRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.currencyRates {
		if strings.EqualFold(r.FromCurrency, from) && strings.EqualFold(r.ToCurrency, to) {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) UpsertCurrencyRate(ctx context.Context, r CurrencyRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.currencyRates {
		if strings.EqualFold(existing.FromCurrency, r.FromCurrency) &&
			strings.EqualFold(existing.ToCurrency, r.ToCurrency) {
			r.ID = id
			m.currencyRates[id] = r
			return nil
		}
	}
	r.ID = m.id()
	m.currencyRates[r.ID] = r
	return nil
}

func (m *MemoryStorage) DeleteCurrencyRate(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.currencyRates, id)
	return nil
}

// Shipping rates

func (m *MemoryStorage) ListShippingRates(ctx context.Context) ([]ShippingRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ShippingRate, 0, len(m.shippingRates))
	for _, r := range m.shippingRates {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeywordEN < out[j].KeywordEN })
	return out, nil
}

func (m *MemoryStorage) UpsertShippingRate(ctx context.Context, r ShippingRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.shippingRates {
		if strings.EqualFold(existing.KeywordEN, r.KeywordEN) {
			r.ID = id
			m.shippingRates[id] = r
			return nil
		}
	}
	r.ID = m.id()
	m.shippingRates[r.ID] = r
	return nil
}

func (m *MemoryStorage) DeleteShippingRate(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.shippingRates, id)
	return nil
}

// Subscribers

func (m *MemoryStorage) attach(sub Subscriber) Subscriber {
	if p, ok := m.preferences[sub.ID]; ok {
		cp := p
		sub.Preference = &cp
	}
	if fees, ok := m.deviceFees[sub.ID]; ok {
		sub.DeviceFees = append([]SubscriberDeviceFee(nil), fees...)
	}
	return sub
}

func (m *MemoryStorage) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Subscriber
	for _, sub := range m.subscribers {
		out = append(out, m.attach(sub))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStorage) ListActiveSubscribers(ctx context.Context) ([]Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Subscriber
	for _, sub := range m.subscribers {
		if sub.IsActive {
			out = append(out, m.attach(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStorage) GetSubscriber(ctx context.Context, id uint) (*Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sub, ok := m.subscribers[id]; ok {
		attached := m.attach(sub)
		return &attached, nil
	}
	return nil, nil
}

func (m *MemoryStorage) CreateSubscriber(ctx context.Context, s *Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	stored := *s
	stored.Preference = nil
	stored.DeviceFees = nil
	m.subscribers[s.ID] = stored
	return nil
}

func (m *MemoryStorage) UpdateSubscriber(ctx context.Context, s *Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *s
	stored.Preference = nil
	stored.DeviceFees = nil
	m.subscribers[s.ID] = stored
	return nil
}

func (m *MemoryStorage) SavePreference(ctx context.Context, p Preference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.id()
	}
	m.preferences[p.SubscriberID] = p
	return nil
}

func (m *MemoryStorage) ListDeviceFees(ctx context.Context, subscriberID uint) ([]SubscriberDeviceFee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]SubscriberDeviceFee(nil), m.deviceFees[subscriberID]...), nil
}

func (m *MemoryStorage) CreateDeviceFee(ctx context.Context, f SubscriberDeviceFee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fees := m.deviceFees[f.SubscriberID]
	for i, existing := range fees {
		if strings.EqualFold(existing.DeviceKeyword, f.DeviceKeyword) {
			f.ID = existing.ID
			fees[i] = f
			return nil
		}
	}
	f.ID = m.id()
	m.deviceFees[f.SubscriberID] = append(fees, f)
	return nil
}

// Offers

func (m *MemoryStorage) CreateOffers(ctx context.Context, offers []*Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range offers {
		o.ID = m.id()
		o.Code = fmt.Sprintf("OFF-%05d", o.ID)
		if o.CreatedAt.IsZero() {
			o.CreatedAt = time.Now()
		}
		m.offers[o.ID] = *o
	}
	return nil
}

func (m *MemoryStorage) ListOffers(ctx context.Context, f OfferFilter) ([]Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Offer
	for _, o := range m.offers {
		if f.SupplierID != 0 && o.SupplierID != f.SupplierID {
			continue
		}
		if f.NameLike != "" && !strings.Contains(strings.ToLower(o.Name), strings.ToLower(f.NameLike)) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Delivery outbox

func (m *MemoryStorage) CreateDelivery(ctx context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = m.id()
	if d.AttemptedAt.IsZero() {
		d.AttemptedAt = time.Now()
	}
	m.deliveries[d.ID] = *d
	return nil
}

func (m *MemoryStorage) ListFailedDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Delivery
	for _, d := range m.deliveries {
		if d.Status == DeliveryFailed {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptedAt.Before(out[j].AttemptedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStorage) UpdateDelivery(ctx context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[d.ID] = *d
	return nil
}

// Messaging config

func (m *MemoryStorage) GetMessagingConfig(ctx context.Context) (*MessagingConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.msgConfig == nil {
		return nil, nil
	}
	cp := *m.msgConfig
	return &cp, nil
}

func (m *MemoryStorage) SaveMessagingConfig(ctx context.Context, cfg MessagingConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg.UpdatedAt = time.Now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = cfg.UpdatedAt
	}
	m.msgConfig = &cfg
	return nil
}

// Settings

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Auth

func (m *MemoryStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]CasbinRule(nil), m.casbinRules...), nil
}

func (m *MemoryStorage) AddCasbinRule(ctx context.Context, r CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	m.casbinRules = append(m.casbinRules, r)
	return nil
}

func (m *MemoryStorage) RemoveCasbinRule(ctx context.Context, r CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.casbinRules[:0]
	for _, existing := range m.casbinRules {
		if existing.PType == r.PType && existing.V0 == r.V0 && existing.V1 == r.V1 && existing.V2 == r.V2 {
			continue
		}
		kept = append(kept, existing)
	}
	m.casbinRules = kept
	return nil
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) GetUserByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		cp := u
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStorage) CreateUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStorage) CreateToken(ctx context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.ID] = t
	return nil
}

func (m *MemoryStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[id]; ok {
		now := time.Now()
		t.LastUsedAt = &now
		m.tokens[id] = t
	}
	return nil
}
