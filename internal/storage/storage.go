package storage

import "context"

// Storage abstracts persistence for the catalog, subscribers, rates, offers
// and the delivery outbox.
type Storage interface {
	// Suppliers
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	GetSupplier(ctx context.Context, id uint) (*Supplier, error)
	CreateSupplier(ctx context.Context, s *Supplier) error
	UpdateSupplier(ctx context.Context, s *Supplier) error
	DeleteSupplier(ctx context.Context, id uint) error

	// Brands / categories (created lazily during ingestion)
	GetOrCreateBrand(ctx context.Context, name string) (*Brand, error)
	GetOrCreateCategory(ctx context.Context, name string) (*Category, error)

	// Currency rates
	ListCurrencyRates(ctx context.Context) ([]CurrencyRate, error)
	GetCurrencyRate(ctx context.Context, from, to string) (*CurrencyRate, error)
	UpsertCurrencyRate(ctx context.Context, r CurrencyRate) error
	DeleteCurrencyRate(ctx context.Context, id uint) error

	// Shipping rates
	ListShippingRates(ctx context.Context) ([]ShippingRate, error)
	UpsertShippingRate(ctx context.Context, r ShippingRate) error
	DeleteShippingRate(ctx context.Context, id uint) error

	// Subscribers (with preference and device fees preloaded)
	ListSubscribers(ctx context.Context) ([]Subscriber, error)
	ListActiveSubscribers(ctx context.Context) ([]Subscriber, error)
	GetSubscriber(ctx context.Context, id uint) (*Subscriber, error)
	CreateSubscriber(ctx context.Context, s *Subscriber) error
	UpdateSubscriber(ctx context.Context, s *Subscriber) error
	SavePreference(ctx context.Context, p Preference) error
	ListDeviceFees(ctx context.Context, subscriberID uint) ([]SubscriberDeviceFee, error)
	CreateDeviceFee(ctx context.Context, f SubscriberDeviceFee) error

	// Offers. CreateOffers persists the whole batch in one transaction and
	// assigns offer codes; a partial save never survives.
	CreateOffers(ctx context.Context, offers []*Offer) error
	ListOffers(ctx context.Context, f OfferFilter) ([]Offer, error)

	// Delivery outbox
	CreateDelivery(ctx context.Context, d *Delivery) error
	ListFailedDeliveries(ctx context.Context, limit int) ([]Delivery, error)
	UpdateDelivery(ctx context.Context, d *Delivery) error

	// Messaging transport configuration
	GetMessagingConfig(ctx context.Context) (*MessagingConfig, error)
	SaveMessagingConfig(ctx context.Context, cfg MessagingConfig) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Auth
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, r CasbinRule) error
	RemoveCasbinRule(ctx context.Context, r CasbinRule) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, u User) error
	CreateToken(ctx context.Context, t Token) error
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Ping verifies connectivity (no-op for in-memory).
	Ping(ctx context.Context) error
	// Close releases any resources (no-op for in-memory).
	Close() error
}

// OfferFilter narrows ListOffers results. Zero values impose no constraint.
type OfferFilter struct {
	SupplierID uint
	NameLike   string
	Limit      int
}
