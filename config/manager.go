package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const configFileName = "config.json"

// Manager owns the config.json backing a Config. Writes replace the file
// atomically; edits made by other processes are picked up once Watch runs.
// Subscribers are called synchronously after every accepted change.
type Manager struct {
	path     string
	debounce time.Duration
	log      zerolog.Logger

	mu          sync.RWMutex
	cfg         Config
	lastWritten []byte
	subs        map[int]func(Config)
	nextSub     int
	watching    bool
}

type managerOptions struct {
	configPath    string
	initialConfig *Config
	debounce      time.Duration
	log           zerolog.Logger
}

type ManagerOption func(*managerOptions)

func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir != "" {
			o.configPath = filepath.Join(dir, configFileName)
		}
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

// WithDebounce sets how long the watcher waits for a burst of file events
// to settle before reloading.
func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithInitialConfig is written when no config file exists yet.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) {
		o.initialConfig = cfg
	}
}

func WithLogger(log zerolog.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.log = log
	}
}

func NewManager(opts ...ManagerOption) (*Manager, error) {
	o := managerOptions{
		debounce: 300 * time.Millisecond,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	path := o.configPath
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	m := &Manager{
		path:     path,
		debounce: o.debounce,
		log:      o.log.With().Str("component", "config").Logger(),
		subs:     make(map[int]func(Config)),
	}

	cfg, err := m.readFile()
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		cfg = *DefaultConfigWithRoot(filepath.Dir(path))
		if o.initialConfig != nil {
			cfg = *o.initialConfig
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := m.write(cfg); err != nil {
			return nil, fmt.Errorf("write initial config: %w", err)
		}
	default:
		return nil, err
	}
	m.cfg = cfg
	return m, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string {
	return m.path
}

// UpdateFromJSON replaces the whole config. Fields absent from jsonStr
// take their zero value.
func (m *Manager) UpdateFromJSON(jsonStr string) error {
	var cfg Config
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return fmt.Errorf("parse config json: %w", err)
	}
	return m.Update(cfg)
}

// Patch applies a partial JSON document on top of the current config.
func (m *Manager) Patch(jsonStr string) error {
	cfg := m.Get()
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return fmt.Errorf("parse config patch: %w", err)
	}
	return m.Update(cfg)
}

// Update validates cfg, writes it and notifies subscribers. An unchanged
// config is a no-op.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), cfg) {
		return nil
	}
	if err := m.write(cfg); err != nil {
		return err
	}
	m.apply(cfg)
	return nil
}

// Reload re-reads the file now. A missing file is recreated from the
// current config.
func (m *Manager) Reload() error {
	cfg, err := m.readFile()
	if errors.Is(err, os.ErrNotExist) {
		return m.write(m.Get())
	}
	if err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), cfg) {
		return nil
	}
	m.log.Info().Str("path", m.path).Msg("config reloaded")
	m.apply(cfg)
	return nil
}

// Subscribe registers fn for every accepted change and returns a function
// that removes it.
func (m *Manager) Subscribe(fn func(Config)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Watch subscribes onChange until ctx is done and starts following the
// file on disk. The file watcher is started once per Manager.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	m.mu.Lock()
	start := !m.watching
	m.watching = true
	m.mu.Unlock()

	if start {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			m.setWatching(false)
			return fmt.Errorf("create config watcher: %w", err)
		}
		// The directory is watched so atomic renames are seen.
		if err := watcher.Add(filepath.Dir(m.path)); err != nil {
			_ = watcher.Close()
			m.setWatching(false)
			return fmt.Errorf("watch config dir: %w", err)
		}
		go m.follow(ctx, watcher)
	}

	if onChange != nil {
		unsubscribe := m.Subscribe(onChange)
		go func() {
			<-ctx.Done()
			unsubscribe()
		}()
	}
	return nil
}

func (m *Manager) setWatching(v bool) {
	m.mu.Lock()
	m.watching = v
	m.mu.Unlock()
}

func (m *Manager) follow(ctx context.Context, watcher *fsnotify.Watcher) {
	defer func() {
		_ = watcher.Close()
		m.setWatching(false)
	}()

	timer := time.NewTimer(m.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	target := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != target ||
				evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(m.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.log.Warn().Err(err).Msg("config watcher error")
		case <-timer.C:
			if m.isOwnWrite() {
				continue
			}
			if err := m.Reload(); err != nil {
				m.log.Error().Err(err).Str("path", m.path).Msg("config reload failed")
			}
		}
	}
}

// isOwnWrite reports whether the file still holds exactly what this
// Manager last wrote.
func (m *Manager) isOwnWrite() bool {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bytes.Equal(data, m.lastWritten)
}

func (m *Manager) apply(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	subs := make([]func(Config), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(cfg)
	}
}

// readFile decodes the file over the defaults, so fields missing from an
// older file keep their default values, and validates the result.
func (m *Manager) readFile() (Config, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return Config{}, err
	}
	cfg := *DefaultConfigWithRoot(filepath.Dir(m.path))
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", m.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (m *Manager) write(cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')
	if err := writeAtomic(m.path, data); err != nil {
		return err
	}
	m.mu.Lock()
	m.lastWritten = data
	m.mu.Unlock()
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("flush config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		cleanup()
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "CortexFolio", configFileName), nil
}
