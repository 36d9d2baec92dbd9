package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Factory builds an unconnected master store target.
type Factory func(*slog.Logger) Adapter

var (
	targetsMu sync.RWMutex
	targets   = map[string]Factory{}
)

func targetKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register makes a target type available to skuhub.yaml. Adapters call it
// from init; registering a name again replaces the earlier factory.
func Register(name string, factory Factory) {
	targetsMu.Lock()
	defer targetsMu.Unlock()
	targets[targetKey(name)] = factory
}

// Get looks up the factory for a target type.
func Get(name string) (Factory, bool) {
	targetsMu.RLock()
	defer targetsMu.RUnlock()
	f, ok := targets[targetKey(name)]
	return f, ok
}

// IsRegistered reports whether a target type can be built.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// ListAdapters returns the registered target types in sorted order.
func ListAdapters() []string {
	targetsMu.RLock()
	defer targetsMu.RUnlock()
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewAdapter builds the target named by cfg.Type. The result still needs
// Connect. A nil logger discards.
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if targetKey(cfg.Type) == "" {
		return nil, errors.New("adapter type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger.With(slog.String("target", targetKey(cfg.Type)))), nil
}

// UnknownAdapterError reports a target type with no registered adapter.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (available: %s); check target.type in skuhub.yaml",
		e.Type, strings.Join(e.Available, ", "))
}
