package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/giantswarm/testhooks/pkg/logging"
)

// DefaultDebounceInterval is the time to wait after the last change of the
// config file before reloading it.
const DefaultDebounceInterval = 200 * time.Millisecond

// Override adjusts loaded settings, e.g. with command line flags. Overrides
// are applied after every load.
type Override func(*Settings)

// Provider serves the current settings to concurrent readers and can reload
// them when the config file changes.
type Provider struct {
	path      string
	overrides []Override
	current   atomic.Pointer[Settings]

	mu        sync.Mutex
	onChange  []func(Settings)
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	debounce  time.Duration
	debounceT *time.Timer
}

// NewProvider loads the settings at path and applies overrides.
func NewProvider(path string, overrides ...Override) (*Provider, error) {
	p := &Provider{path: path, overrides: overrides, debounce: DefaultDebounceInterval}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewStaticProvider serves s and never reloads.
func NewStaticProvider(s Settings) *Provider {
	p := &Provider{debounce: DefaultDebounceInterval}
	p.current.Store(&s)
	return p
}

// Current returns the active settings.
func (p *Provider) Current() Settings {
	return *p.current.Load()
}

// OnChange registers fn to be called with the new settings after each
// successful reload.
func (p *Provider) OnChange(fn func(Settings)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// Reload loads the settings again. On failure the previous settings stay active.
func (p *Provider) Reload() error {
	if p.path == "" && p.current.Load() != nil {
		return nil
	}
	s, err := LoadSettings(p.path)
	if err != nil {
		return err
	}
	for _, o := range p.overrides {
		o(&s)
	}
	if err := Validate(s); err != nil {
		return fmt.Errorf("invalid settings after overrides: %w", err)
	}
	p.current.Store(&s)

	p.mu.Lock()
	callbacks := append([]func(Settings){}, p.onChange...)
	p.mu.Unlock()
	for _, fn := range callbacks {
		fn(s)
	}
	return nil
}

// Watch reloads the settings whenever the config file is written, until ctx
// is done or Close is called.
func (p *Provider) Watch(ctx context.Context) error {
	if p.path == "" {
		return fmt.Errorf("no config file to watch")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	// Editors replace files on save, so the directory is watched.
	dir := p.path
	if filepath.Ext(p.path) != "" {
		dir = filepath.Dir(p.path)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	p.watcher = watcher
	p.stopCh = make(chan struct{})
	go p.processEvents(ctx, watcher.Events, watcher.Errors, p.stopCh)

	logging.Info("Config", "Watching %s for changes", dir)
	return nil
}

func (p *Provider) processEvents(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, stop <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			_ = p.Close()
			return
		case <-stop:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !p.relevant(event.Name) {
				continue
			}
			logging.Debug("Config", "Config file changed: %s", event.Name)
			p.reloadDebounced()
		case err, ok := <-errs:
			if !ok {
				return
			}
			logging.Error("Config", err, "fsnotify error")
		}
	}
}

func (p *Provider) relevant(name string) bool {
	if filepath.Ext(p.path) != "" {
		return filepath.Clean(name) == filepath.Clean(p.path)
	}
	base := filepath.Base(name)
	for _, candidate := range configFileNames {
		if base == candidate {
			return true
		}
	}
	return false
}

func (p *Provider) reloadDebounced() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.debounceT != nil {
		p.debounceT.Stop()
	}
	p.debounceT = time.AfterFunc(p.debounce, func() {
		if err := p.Reload(); err != nil {
			logging.Warn("Config", "Keeping previous settings, reload failed: %v", err)
			return
		}
		logging.Info("Config", "Reloaded configuration from %s", p.path)
	})
}

// Close stops watching. It is safe to call more than once.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.debounceT != nil {
		p.debounceT.Stop()
		p.debounceT = nil
	}
	if p.watcher == nil {
		return nil
	}
	close(p.stopCh)
	err := p.watcher.Close()
	p.watcher = nil
	return err
}
