package api

import (
	"fmt"
	"sort"
	"sync"

	"github.com/giantswarm/testhooks/pkg/logging"
)

// WatcherProvider creates a watcher. The returned value must implement at
// least one of MethodWatcher, RunWatcher or RunnerWatcher.
type WatcherProvider func() any

// Registry is the service-discovery point for watchers and retry analyzers.
// Providers register under a name; the lifecycle engine instantiates the
// configured ones at startup.
type Registry struct {
	mu        sync.RWMutex
	watchers  map[string]WatcherProvider
	analyzers map[string]RetryAnalyzer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		watchers:  make(map[string]WatcherProvider),
		analyzers: make(map[string]RetryAnalyzer),
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry that built-in watchers
// and analyzers register with from their init functions.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// RegisterWatcher registers a watcher provider with the default registry.
func RegisterWatcher(name string, p WatcherProvider) {
	if err := defaultRegistry.RegisterWatcher(name, p); err != nil {
		logging.Error("API", err, "Failed to register watcher %s", name)
	}
}

// RegisterRetryAnalyzer registers a retry analyzer with the default registry.
func RegisterRetryAnalyzer(name string, a RetryAnalyzer) {
	if err := defaultRegistry.RegisterRetryAnalyzer(name, a); err != nil {
		logging.Error("API", err, "Failed to register retry analyzer %s", name)
	}
}

// RegisterWatcher registers p under name. A later registration under the
// same name replaces the earlier one.
//
// Args:
//   - name: The name the watcher is selected by in configuration
//   - p: Provider creating the watcher
//
// Returns:
//   - error: ErrNilProvider when p is nil
func (r *Registry) RegisterWatcher(name string, p WatcherProvider) error {
	if p == nil {
		return ErrNilProvider
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.watchers[name]; exists {
		logging.Debug("API", "Replacing watcher provider %s", name)
	}
	r.watchers[name] = p
	return nil
}

// RegisterRetryAnalyzer registers a under name.
func (r *Registry) RegisterRetryAnalyzer(name string, a RetryAnalyzer) error {
	if a == nil {
		return ErrNilAnalyzer
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzers[name] = a
	return nil
}

// WatcherNames returns the registered watcher names in sorted order.
func (r *Registry) WatcherNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.watchers))
	for name := range r.watchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Watchers instantiates the named watchers, in the given order, and
// classifies them into a WatcherSet.
//
// Args:
//   - names: Watcher names to instantiate
//
// Returns:
//   - *WatcherSet: The classified watchers
//   - error: NotFoundError for an unknown name, or an error when a provider
//     returns a value implementing no watcher interface
func (r *Registry) Watchers(names ...string) (*WatcherSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := &WatcherSet{}
	for _, name := range names {
		p, ok := r.watchers[name]
		if !ok {
			return nil, NewNotFoundError("watcher", name)
		}
		if !set.Add(p()) {
			return nil, fmt.Errorf("watcher %s implements no watcher interface", name)
		}
	}
	return set, nil
}

// RetryAnalyzer returns the analyzer registered under name.
func (r *Registry) RetryAnalyzer(name string) (RetryAnalyzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyzers[name]
	if !ok {
		return nil, NewNotFoundError("retry analyzer", name)
	}
	return a, nil
}

// RetryAnalyzers resolves every name to its analyzer.
func (r *Registry) RetryAnalyzers(names ...string) ([]RetryAnalyzer, error) {
	analyzers := make([]RetryAnalyzer, 0, len(names))
	for _, name := range names {
		a, err := r.RetryAnalyzer(name)
		if err != nil {
			return nil, err
		}
		analyzers = append(analyzers, a)
	}
	return analyzers, nil
}
