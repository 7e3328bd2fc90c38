package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/nzahrani/offercast/pkg/transports"
)

// Email deliveries reuse the composed message body; the subject is its
// first line.
const fallbackSubject = "New merchandise offers"

func init() {
	transports.Register("sendgrid", func(cfg transports.Config) (transports.Transport, error) {
		if cfg.Token == "" || cfg.FromAddress == "" {
			return nil, transports.ErrMissingConfig
		}
		return &Sendgrid{APIKey: cfg.Token, FromAddress: cfg.FromAddress, FromName: cfg.FromName}, nil
	})
	transports.Register("smtp", func(cfg transports.Config) (transports.Transport, error) {
		if cfg.Host == "" || cfg.Port == 0 || cfg.FromAddress == "" {
			return nil, transports.ErrMissingConfig
		}
		return &SMTP{
			Host:        cfg.Host,
			Port:        cfg.Port,
			Username:    cfg.Username,
			Password:    cfg.Password,
			FromAddress: cfg.FromAddress,
		}, nil
	})
}

func subjectOf(body string) string {
	if line, _, ok := strings.Cut(body, "\n"); ok && strings.TrimSpace(line) != "" {
		return strings.TrimSpace(line)
	}
	return fallbackSubject
}

// Sendgrid sends messages through the SendGrid v3 mail API.
type Sendgrid struct {
	APIKey      string
	FromAddress string
	FromName    string
}

func (s *Sendgrid) Key() string {
	return "sendgrid"
}

func (s *Sendgrid) Name() string {
	return "SendGrid"
}

func (s *Sendgrid) Send(ctx context.Context, to, body string) error {
	from := mail.NewEmail(s.FromName, s.FromAddress)
	toEmail := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subjectOf(body), toEmail, body, body)
	client := sendgrid.NewSendClient(s.APIKey)
	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: sendgrid %d %s", transports.ErrSendRejected, resp.StatusCode, resp.Body)
	}
	return nil
}

// SMTP sends messages through a plain or implicit-TLS SMTP server.
// Port 465 selects implicit TLS.
type SMTP struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
}

func (s *SMTP) Key() string {
	return "smtp"
}

func (s *SMTP) Name() string {
	return "SMTP"
}

func (s *SMTP) Send(ctx context.Context, to, body string) error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n"+
		"\r\n"+
		"%s\r\n", to, subjectOf(body), body))

	if s.Port == 465 {
		return s.sendTLS(addr, to, msg)
	}

	var auth smtp.Auth
	if s.Username != "" && s.Password != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	return smtp.SendMail(addr, auth, s.FromAddress, []string{to}, msg)
}

func (s *SMTP) sendTLS(addr, to string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if s.Username != "" && s.Password != "" {
		auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(s.FromAddress); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}
