package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supplier is a merchandise source that submits raw offer text.
type Supplier struct {
	ID          uint   `json:"id" gorm:"primaryKey;column:id"`
	Name        string `json:"name" gorm:"unique;column:name"`
	ContactInfo string `json:"contact_info,omitempty" gorm:"column:contact_info"`
	Code        string `json:"code" gorm:"unique;column:code"` // assigned on create, e.g. SUP-0004
}

// Brand is a product brand referenced by offers and preferences.
type Brand struct {
	ID   uint   `json:"id" gorm:"primaryKey;column:id"`
	Name string `json:"name" gorm:"unique;column:name"`
}

// Category is a product category referenced by offers and preferences.
type Category struct {
	ID   uint   `json:"id" gorm:"primaryKey;column:id"`
	Name string `json:"name" gorm:"unique;column:name"`
}

// CurrencyRate stores one directed conversion factor: multiply 1 unit of
// FromCurrency to get Rate units of ToCurrency. At most one row per ordered
// pair; the inverse pair is a separate row and may be absent.
type CurrencyRate struct {
	ID           uint            `json:"id" gorm:"primaryKey;column:id"`
	FromCurrency string          `json:"from_currency" gorm:"column:from_currency;uniqueIndex:idx_currency_pair"`
	ToCurrency   string          `json:"to_currency" gorm:"column:to_currency;uniqueIndex:idx_currency_pair"`
	Rate         decimal.Decimal `json:"rate" gorm:"column:rate;type:decimal(15,6)"`
}

// ShippingRate is one entry of the master shipping price list. Offer groups
// are matched against KeywordEN by longest substring containment.
type ShippingRate struct {
	ID        uint            `json:"id" gorm:"primaryKey;column:id"`
	KeywordEN string          `json:"keyword_en" gorm:"unique;column:keyword_en"`
	KeywordAR string          `json:"keyword_ar,omitempty" gorm:"column:keyword_ar"`
	Cost      decimal.Decimal `json:"cost" gorm:"column:cost;type:decimal(10,2)"`
	Currency  string          `json:"currency" gorm:"column:currency;default:AED"`
}

// Subscriber types. INTERNAL subscribers never incur mandatory device fees.
const (
	SubscriberInternal = "INTERNAL"
	SubscriberExternal = "EXTERNAL"
)

// Subscriber is a recipient of distributed offers.
type Subscriber struct {
	ID             uint   `json:"id" gorm:"primaryKey;column:id"`
	Name           string `json:"name" gorm:"column:name"`
	Phone          string `json:"phone" gorm:"unique;column:phone"`
	SubscriberType string `json:"subscriber_type" gorm:"column:subscriber_type;default:EXTERNAL"`
	TargetCurrency string `json:"target_currency" gorm:"column:target_currency;default:SAR"`
	IsActive       bool   `json:"is_active" gorm:"column:is_active;default:true"`

	Preference *Preference           `json:"preference,omitempty" gorm:"foreignKey:SubscriberID"`
	DeviceFees []SubscriberDeviceFee `json:"device_fees,omitempty" gorm:"foreignKey:SubscriberID"`
}

// Preference holds a subscriber's allow-lists. An empty list on any
// dimension means "no restriction on that dimension", not "matches nothing".
type Preference struct {
	ID           uint       `json:"id" gorm:"primaryKey;column:id"`
	SubscriberID uint       `json:"subscriber_id" gorm:"unique;column:subscriber_id"`
	Suppliers    []Supplier `json:"suppliers,omitempty" gorm:"many2many:preference_suppliers"`
	Brands       []Brand    `json:"brands,omitempty" gorm:"many2many:preference_brands"`
	Categories   []Category `json:"categories,omitempty" gorm:"many2many:preference_categories"`
}

// SubscriberDeviceFee is a mandatory surcharge applied to EXTERNAL
// subscribers when an offer name contains DeviceKeyword. Unique per
// (subscriber, keyword).
type SubscriberDeviceFee struct {
	ID            uint            `json:"id" gorm:"primaryKey;column:id"`
	SubscriberID  uint            `json:"subscriber_id" gorm:"column:subscriber_id;uniqueIndex:idx_sub_keyword"`
	DeviceKeyword string          `json:"device_keyword" gorm:"column:device_keyword;uniqueIndex:idx_sub_keyword"`
	Fee           decimal.Decimal `json:"fee" gorm:"column:fee;type:decimal(10,2)"`
	Currency      string          `json:"currency" gorm:"column:currency;default:AED"`
}

// ShippingNone is the sentinel shipping currency meaning "no shipping".
const ShippingNone = "N/A"

// Offer is one priced product variant received from a supplier. Rows are
// created in batches by the ingestion flow and are immutable afterwards as
// far as pricing is concerned.
type Offer struct {
	ID         uint  `json:"id" gorm:"primaryKey;column:id"`
	SupplierID uint  `json:"supplier_id" gorm:"column:supplier_id"`
	BrandID    *uint `json:"brand_id,omitempty" gorm:"column:brand_id"`
	CategoryID *uint `json:"category_id,omitempty" gorm:"column:category_id"`

	Name       string `json:"name" gorm:"column:name"`
	Storage    string `json:"storage,omitempty" gorm:"column:storage"`
	Condition  string `json:"condition,omitempty" gorm:"column:condition"`
	SpecRegion string `json:"spec_region,omitempty" gorm:"column:spec_region"`
	Color      string `json:"color,omitempty" gorm:"column:color"`
	Quantity   int    `json:"quantity,omitempty" gorm:"column:quantity"`

	Price    decimal.Decimal `json:"price" gorm:"column:price;type:decimal(10,2)"`
	Currency string          `json:"currency" gorm:"column:currency"`

	ShippingCost     decimal.Decimal `json:"shipping_cost" gorm:"column:shipping_cost;type:decimal(10,2)"`
	ShippingCurrency string          `json:"shipping_currency" gorm:"column:shipping_currency"`

	Code         string    `json:"code" gorm:"unique;column:code"` // assigned on create, e.g. OFF-00012
	OriginalText string    `json:"-" gorm:"column:original_text"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`

	Brand    *Brand    `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Supplier *Supplier `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
}

// Delivery statuses.
const (
	DeliverySent    = "sent"
	DeliverySkipped = "skipped"
	DeliveryFailed  = "failed"
)

// Delivery records one dispatch attempt to one subscriber (the outbox).
// Failed rows are retried by the cron worker; the distribution engine
// itself never retries.
type Delivery struct {
	ID           uint      `json:"id" gorm:"primaryKey;column:id"`
	SubscriberID uint      `json:"subscriber_id" gorm:"column:subscriber_id"`
	SupplierID   uint      `json:"supplier_id" gorm:"column:supplier_id"`
	Status       string    `json:"status" gorm:"column:status"`
	Error        string    `json:"error,omitempty" gorm:"column:error"`
	Body         string    `json:"-" gorm:"column:body"`
	Attempts     int       `json:"attempts" gorm:"column:attempts"`
	AttemptedAt  time.Time `json:"attempted_at" gorm:"column:attempted_at"`
}

// MessagingConfig holds delivery transport configuration, managed from the
// admin API and read at dispatch time.
type MessagingConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // "ultramsg", "sendgrid", "smtp"
	InstanceID  string    `json:"instance_id,omitempty" gorm:"column:instance_id"`
	Token       string    `json:"-" gorm:"column:token"`
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"-" gorm:"column:password"`
	FromAddress string    `json:"from_address,omitempty" gorm:"column:from_address"`
	FromName    string    `json:"from_name,omitempty" gorm:"column:from_name"`
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// User represents a registered admin user.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	Username     string    `json:"username" gorm:"unique;column:username"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Role         string    `json:"role" gorm:"column:role"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Token represents an API access token.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"column:user_id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

// Setting is a simple key/value override read by workers at runtime.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}
