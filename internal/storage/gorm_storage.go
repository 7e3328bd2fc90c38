package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	if driver == "postgres" || driver == "postgrespool" {
		gormDialector = postgres.Open(dsn)
	} else if driver == "sqlite" {
		gormDialector = sqlite.Open(dsn)
	} else {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.AutoMigrate(
		&Supplier{},
		&Brand{},
		&Category{},
		&CurrencyRate{},
		&ShippingRate{},
		&Subscriber{},
		&Preference{},
		&SubscriberDeviceFee{},
		&Offer{},
		&Delivery{},
		&MessagingConfig{},
		&User{},
		&Token{},
		&CasbinRule{},
		&Setting{},
		&ScheduledJob{},
	)
}

// ScheduledJob is worker bookkeeping; also written through the pgx pool in
// multi-instance deployments.
type ScheduledJob struct {
	Name           string    `gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `gorm:"column:last_run_at"`
	LastDurationMs int64     `gorm:"column:last_duration_ms"`
	LastSuccess    int       `gorm:"column:last_success"`
	LastError      string    `gorm:"column:last_error"`
}

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Suppliers

func (s *GormStorage) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	var out []Supplier
	result := s.db.WithContext(ctx).Order("name").Find(&out)
	return out, result.Error
}

func (s *GormStorage) GetSupplier(ctx context.Context, id uint) (*Supplier, error) {
	var sup Supplier
	result := s.db.WithContext(ctx).First(&sup, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil // consistent with other implementations
		}
		return nil, result.Error
	}
	return &sup, nil
}

func (s *GormStorage) CreateSupplier(ctx context.Context, sup *Supplier) error {
	// The code is derived from the row id, so create and update in one
	// transaction the way the admin UI always did.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sup).Error; err != nil {
			return err
		}
		sup.Code = fmt.Sprintf("SUP-%04d", sup.ID)
		return tx.Model(sup).Update("code", sup.Code).Error
	})
}

func (s *GormStorage) UpdateSupplier(ctx context.Context, sup *Supplier) error {
	return s.db.WithContext(ctx).Save(sup).Error
}

func (s *GormStorage) DeleteSupplier(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&Supplier{}, id).Error
}

// Brands / categories

func (s *GormStorage) GetOrCreateBrand(ctx context.Context, name string) (*Brand, error) {
	var b Brand
	err := s.db.WithContext(ctx).Where("name = ?", name).FirstOrCreate(&b, Brand{Name: name}).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *GormStorage) GetOrCreateCategory(ctx context.Context, name string) (*Category, error) {
	var c Category
	err := s.db.WithContext(ctx).Where("name = ?", name).FirstOrCreate(&c, Category{Name: name}).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Currency rates

func (s *GormStorage) ListCurrencyRates(ctx context.Context) ([]CurrencyRate, error) {
	var out []CurrencyRate
	result := s.db.WithContext(ctx).Order("from_currency, to_currency").Find(&out)
	return out, result.Error
}

func (s *GormStorage) GetCurrencyRate(ctx context.Context, from, to string) (*CurrencyRate, error) {
	var r CurrencyRate
	result := s.db.WithContext(ctx).
		Where("UPPER(from_currency) = ? AND UPPER(to_currency) = ?",
			strings.ToUpper(from), strings.ToUpper(to)).
		First(&r)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &r, nil
}

func (s *GormStorage) UpsertCurrencyRate(ctx context.Context, r CurrencyRate) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "from_currency"}, {Name: "to_currency"}},
		UpdateAll: true,
	}).Create(&r).Error
}

func (s *GormStorage) DeleteCurrencyRate(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&CurrencyRate{}, id).Error
}

// Shipping rates

func (s *GormStorage) ListShippingRates(ctx context.Context) ([]ShippingRate, error) {
	var out []ShippingRate
	result := s.db.WithContext(ctx).Order("keyword_en").Find(&out)
	return out, result.Error
}

func (s *GormStorage) UpsertShippingRate(ctx context.Context, r ShippingRate) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "keyword_en"}},
		UpdateAll: true,
	}).Create(&r).Error
}

func (s *GormStorage) DeleteShippingRate(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&ShippingRate{}, id).Error
}

// Subscribers

func (s *GormStorage) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	var out []Subscriber
	result := s.db.WithContext(ctx).
		Preload("Preference.Suppliers").
		Preload("Preference.Brands").
		Preload("Preference.Categories").
		Preload("DeviceFees").
		Find(&out)
	return out, result.Error
}

func (s *GormStorage) ListActiveSubscribers(ctx context.Context) ([]Subscriber, error) {
	var out []Subscriber
	result := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Preload("Preference.Suppliers").
		Preload("Preference.Brands").
		Preload("Preference.Categories").
		Preload("DeviceFees").
		Find(&out)
	return out, result.Error
}

func (s *GormStorage) GetSubscriber(ctx context.Context, id uint) (*Subscriber, error) {
	var sub Subscriber
	result := s.db.WithContext(ctx).
		Preload("Preference.Suppliers").
		Preload("Preference.Brands").
		Preload("Preference.Categories").
		Preload("DeviceFees").
		First(&sub, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &sub, nil
}

func (s *GormStorage) CreateSubscriber(ctx context.Context, sub *Subscriber) error {
	return s.db.WithContext(ctx).Create(sub).Error
}

func (s *GormStorage) UpdateSubscriber(ctx context.Context, sub *Subscriber) error {
	return s.db.WithContext(ctx).Omit("Preference", "DeviceFees").Save(sub).Error
}

func (s *GormStorage) SavePreference(ctx context.Context, p Preference) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Preference
		err := tx.Where("subscriber_id = ?", p.SubscriberID).First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			p.ID = existing.ID
		}
		if err := tx.Omit("Suppliers", "Brands", "Categories").Save(&p).Error; err != nil {
			return err
		}
		if err := tx.Model(&p).Association("Suppliers").Replace(p.Suppliers); err != nil {
			return err
		}
		if err := tx.Model(&p).Association("Brands").Replace(p.Brands); err != nil {
			return err
		}
		return tx.Model(&p).Association("Categories").Replace(p.Categories)
	})
}

func (s *GormStorage) ListDeviceFees(ctx context.Context, subscriberID uint) ([]SubscriberDeviceFee, error) {
	var out []SubscriberDeviceFee
	result := s.db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("device_keyword").
		Find(&out)
	return out, result.Error
}

func (s *GormStorage) CreateDeviceFee(ctx context.Context, f SubscriberDeviceFee) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subscriber_id"}, {Name: "device_keyword"}},
		UpdateAll: true,
	}).Create(&f).Error
}

// Offers

func (s *GormStorage) CreateOffers(ctx context.Context, offers []*Offer) error {
	if len(offers) == 0 {
		return nil
	}
	// All-or-nothing: any failure rolls back the whole batch so a partial
	// save can never trigger a partial distribution.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range offers {
			if o.CreatedAt.IsZero() {
				o.CreatedAt = time.Now()
			}
			if err := tx.Omit(clause.Associations).Create(o).Error; err != nil {
				return err
			}
			o.Code = fmt.Sprintf("OFF-%05d", o.ID)
			if err := tx.Model(o).Update("code", o.Code).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStorage) ListOffers(ctx context.Context, f OfferFilter) ([]Offer, error) {
	q := s.db.WithContext(ctx).
		Preload("Supplier").
		Preload("Brand").
		Preload("Category").
		Order("created_at desc")
	if f.SupplierID != 0 {
		q = q.Where("supplier_id = ?", f.SupplierID)
	}
	if f.NameLike != "" {
		q = q.Where("name LIKE ?", "%"+f.NameLike+"%")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []Offer
	result := q.Find(&out)
	return out, result.Error
}

// Delivery outbox

func (s *GormStorage) CreateDelivery(ctx context.Context, d *Delivery) error {
	if d.AttemptedAt.IsZero() {
		d.AttemptedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(d).Error
}

func (s *GormStorage) ListFailedDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	q := s.db.WithContext(ctx).
		Where("status = ?", DeliveryFailed).
		Order("attempted_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Delivery
	result := q.Find(&out)
	return out, result.Error
}

func (s *GormStorage) UpdateDelivery(ctx context.Context, d *Delivery) error {
	return s.db.WithContext(ctx).Save(d).Error
}

// Messaging config

func (s *GormStorage) GetMessagingConfig(ctx context.Context) (*MessagingConfig, error) {
	var cfg MessagingConfig
	result := s.db.WithContext(ctx).Order("updated_at desc").First(&cfg)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &cfg, nil
}

func (s *GormStorage) SaveMessagingConfig(ctx context.Context, cfg MessagingConfig) error {
	cfg.UpdatedAt = time.Now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = cfg.UpdatedAt
	}
	return s.db.WithContext(ctx).Save(&cfg).Error
}

// Settings

func (s *GormStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var setting Setting
	result := s.db.WithContext(ctx).First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return setting.Value, nil
}

func (s *GormStorage) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&setting).Error
}

// Auth

func (s *GormStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	var rules []CasbinRule
	if err := s.db.WithContext(ctx).Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *GormStorage) AddCasbinRule(ctx context.Context, r CasbinRule) error {
	return s.db.WithContext(ctx).Create(&r).Error
}

func (s *GormStorage) RemoveCasbinRule(ctx context.Context, r CasbinRule) error {
	return s.db.WithContext(ctx).
		Where("ptype = ? AND v0 = ? AND v1 = ? AND v2 = ?", r.PType, r.V0, r.V1, r.V2).
		Delete(&CasbinRule{}).Error
}

func (s *GormStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	result := s.db.WithContext(ctx).First(&u, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &u, nil
}

func (s *GormStorage) GetUserByID(ctx context.Context, id string) (*User, error) {
	var u User
	result := s.db.WithContext(ctx).First(&u, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &u, nil
}

func (s *GormStorage) CreateUser(ctx context.Context, u User) error {
	return s.db.WithContext(ctx).Create(&u).Error
}

func (s *GormStorage) CreateToken(ctx context.Context, t Token) error {
	return s.db.WithContext(ctx).Create(&t).Error
}

func (s *GormStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	var t Token
	result := s.db.WithContext(ctx).First(&t, "token_hash = ?", hash)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &t, nil
}

func (s *GormStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&Token{}).Where("id = ?", id).
		Update("last_used_at", &now).Error
}
