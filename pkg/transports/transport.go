package transports

import (
	"context"
	"errors"
)

// Config carries the connection settings for a transport. Fields are a
// superset; each transport reads only the ones it needs.
type Config struct {
	InstanceID  string
	Token       string
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// Transport delivers one composed message to one recipient address. The
// address format is transport-specific (phone number, email address).
type Transport interface {
	// Key returns the unique identifier for the transport (e.g. "ultramsg").
	Key() string
	// Name returns the human-readable name of the transport.
	Name() string
	// Send delivers body to the given recipient.
	Send(ctx context.Context, to, body string) error
}

// Common errors shared across transports.
var (
	ErrTransportNotFound = errors.New("transport not found")
	ErrSendRejected      = errors.New("message rejected by gateway")
	ErrMissingConfig     = errors.New("transport configuration incomplete")
)
