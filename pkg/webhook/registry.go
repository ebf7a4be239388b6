package webhook

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Registry maps (sender, event name) pairs to handlers. Lookups for
// unregistered events are expected; the gateway acknowledges them.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty event registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

func registryKey(sender, name string) string {
	return strings.ToLower(strings.TrimSpace(sender)) + ":" + strings.TrimSpace(name)
}

// Register adds a handler for one sender event.
func (r *Registry) Register(sender, name string, handler HandlerFunc) error {
	if r == nil {
		return errors.New("registry is nil")
	}
	if strings.TrimSpace(sender) == "" || strings.TrimSpace(name) == "" {
		return errors.New("sender and event name are required")
	}
	if handler == nil {
		return errors.New("handler is nil")
	}
	key := registryKey(sender, name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[key]; exists {
		return errors.New("handler already registered: " + key)
	}
	r.handlers[key] = handler
	return nil
}

// Lookup returns the handler for a sender event, if one is registered.
func (r *Registry) Lookup(sender, name string) (HandlerFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[registryKey(sender, name)]
	return handler, ok
}

// Events returns all registered (sender, event) keys in sorted order.
func (r *Registry) Events() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.handlers))
	for key := range r.handlers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
