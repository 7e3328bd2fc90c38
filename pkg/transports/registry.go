package transports

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a transport from its configuration.
type Factory func(cfg Config) (Transport, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register registers a transport factory under its key.
func Register(key string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if f == nil {
		panic("transports: Register factory is nil")
	}
	if _, dup := registry[key]; dup {
		panic("transports: Register called twice for transport " + key)
	}
	registry[key] = f
}

// New builds the transport registered under key with the given config.
func New(key string, cfg Config) (Transport, error) {
	registryMu.RLock()
	f, ok := registry[key]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransportNotFound, key)
	}
	return f(cfg)
}

// List returns a sorted list of registered transport keys.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var keys []string
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
