package ultramsg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nzahrani/offercast/pkg/transports"
)

const defaultBaseURL = "https://api.ultramsg.com"

func init() {
	transports.Register("ultramsg", func(cfg transports.Config) (transports.Transport, error) {
		if cfg.InstanceID == "" || cfg.Token == "" {
			return nil, transports.ErrMissingConfig
		}
		return &Transport{
			InstanceID: cfg.InstanceID,
			Token:      cfg.Token,
			BaseURL:    defaultBaseURL,
			Client:     &http.Client{Timeout: 30 * time.Second},
		}, nil
	})
}

// Transport sends WhatsApp messages through the UltraMsg HTTP gateway.
type Transport struct {
	InstanceID string
	Token      string
	BaseURL    string
	Client     *http.Client
}

func (t *Transport) Key() string {
	return "ultramsg"
}

func (t *Transport) Name() string {
	return "UltraMsg WhatsApp"
}

// chatResponse is the gateway's answer to a chat send. Sent is a string,
// not a bool, on the wire.
type chatResponse struct {
	Sent  string          `json:"sent"`
	Error json.RawMessage `json:"error"`
}

func (t *Transport) Send(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/%s/messages/chat", strings.TrimRight(t.BaseURL, "/"), t.InstanceID)

	form := url.Values{}
	form.Set("token", t.Token)
	form.Set("to", to)
	form.Set("body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("ultramsg request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("ultramsg read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d: %s", transports.ErrSendRejected, resp.StatusCode, raw)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return fmt.Errorf("ultramsg decode response: %w", err)
	}
	if cr.Sent != "true" {
		return fmt.Errorf("%w: %s", transports.ErrSendRejected, raw)
	}
	return nil
}
