package notification

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/nzahrani/offercast/internal/storage"
	"github.com/nzahrani/offercast/pkg/transports"
)

// ErrNotConfigured is returned when no enabled messaging configuration
// exists. Callers decide whether that is fatal.
var ErrNotConfigured = errors.New("messaging not configured or disabled")

// DefaultCountryPrefix is prepended to short local phone numbers.
const DefaultCountryPrefix = "966"

// Service resolves the stored messaging configuration into a concrete
// transport and dispatches messages through it. It satisfies the
// distribution engine's Sender interface.
type Service struct {
	storage       storage.Storage
	countryPrefix string
}

func NewService(s storage.Storage) *Service {
	return &Service{storage: s, countryPrefix: DefaultCountryPrefix}
}

// WithCountryPrefix overrides the prefix used when normalizing short
// phone numbers.
func (s *Service) WithCountryPrefix(prefix string) *Service {
	if prefix != "" {
		s.countryPrefix = prefix
	}
	return s
}

func (s *Service) GetConfig(ctx context.Context) (*storage.MessagingConfig, error) {
	return s.storage.GetMessagingConfig(ctx)
}

func (s *Service) SaveConfig(ctx context.Context, cfg storage.MessagingConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	return s.storage.SaveMessagingConfig(ctx, cfg)
}

// Send delivers body to the recipient using the enabled transport. Phone
// recipients are normalized first; email recipients pass through as-is.
func (s *Service) Send(ctx context.Context, to, body string) error {
	cfg, err := s.storage.GetMessagingConfig(ctx)
	if err != nil {
		return err
	}
	if cfg == nil || !cfg.Enabled {
		return ErrNotConfigured
	}
	return s.sendWith(ctx, cfg, to, body)
}

// TestConfig sends a probe message using the provided, possibly unsaved,
// configuration.
func (s *Service) TestConfig(ctx context.Context, cfg storage.MessagingConfig, to string) error {
	return s.sendWith(ctx, &cfg, to, "Test message: your delivery configuration works.")
}

func (s *Service) sendWith(ctx context.Context, cfg *storage.MessagingConfig, to, body string) error {
	tr, err := transports.New(cfg.Provider, transports.Config{
		InstanceID:  cfg.InstanceID,
		Token:       cfg.Token,
		Host:        cfg.Host,
		Port:        cfg.Port,
		Username:    cfg.Username,
		Password:    cfg.Password,
		FromAddress: cfg.FromAddress,
		FromName:    cfg.FromName,
	})
	if err != nil {
		return err
	}
	if cfg.Provider == "ultramsg" {
		to = NormalizePhone(to, s.countryPrefix)
	}
	return tr.Send(ctx, to, body)
}

// NormalizePhone reduces a raw phone string to digits and drops leading
// zeros before anything else, so a zero-padded local number such as
// "0501234567" counts as 9 significant digits. Numbers shorter than 10
// digits after that then get the country prefix; longer ones are
// assumed to already carry an international code and are kept as-is.
func NormalizePhone(raw, prefix string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	if digits == "" {
		return ""
	}
	if len(digits) < 10 && !strings.HasPrefix(digits, prefix) {
		digits = prefix + digits
	}
	return digits
}
