package transports

import (
	"context"
	"errors"
	"testing"
)

type nullTransport struct{}

func (nullTransport) Key() string                                 { return "null" }
func (nullTransport) Name() string                                { return "Null" }
func (nullTransport) Send(ctx context.Context, _, _ string) error { return nil }

func TestRegistry(t *testing.T) {
	Register("null", func(cfg Config) (Transport, error) {
		return nullTransport{}, nil
	})

	tr, err := New("null", Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Key() != "null" {
		t.Errorf("key = %q", tr.Key())
	}

	if _, err := New("missing", Config{}); !errors.Is(err, ErrTransportNotFound) {
		t.Errorf("want ErrTransportNotFound, got %v", err)
	}

	found := false
	for _, k := range List() {
		if k == "null" {
			found = true
		}
	}
	if !found {
		t.Errorf("List() = %v, missing null", List())
	}
}
