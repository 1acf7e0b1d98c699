package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/CortexFolio/config"
)

// Event topics sent to the notifier.
const (
	TopicEngineReloaded     = "engine.reloaded"
	TopicEngineReloadFailed = "engine.reload_failed"
)

type EngineBuilder func(config.Config) (*Engine, error)

type Option func(*Runtime)

func WithBuilder(builder EngineBuilder) Option {
	return func(r *Runtime) {
		if builder != nil {
			r.builder = builder
		}
	}
}

// WithNotifier receives a topic and a JSON payload after every rebuild
// attempt.
func WithNotifier(fn func(topic, payload string)) Option {
	return func(r *Runtime) {
		r.notify = fn
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Runtime) {
		r.log = log
	}
}

// WithoutWatch builds the engine once. It is rebuilt only by Reload.
func WithoutWatch() Option {
	return func(r *Runtime) {
		r.watch = false
	}
}

// Runtime holds the current Engine. While watching, every config change
// accepted by the manager (an Update from this process or an edit on
// disk) rebuilds it; a failed rebuild keeps the previous engine.
type Runtime struct {
	mgr     *config.Manager
	builder EngineBuilder
	notify  func(topic, payload string)
	log     zerolog.Logger
	watch   bool

	current  atomic.Pointer[Engine]
	reloadMu sync.Mutex
	stop     func()
}

type reloadEvent struct {
	Version        uint64 `json:"version"`
	BuiltAt        string `json:"built_at"`
	MarketProvider string `json:"market_provider,omitempty"`
	NewsProvider   string `json:"news_provider,omitempty"`
}

type failureEvent struct {
	Error string `json:"error"`
}

func NewRuntime(mgr *config.Manager, opts ...Option) (*Runtime, error) {
	if mgr == nil {
		return nil, errors.New("config manager is required")
	}
	r := &Runtime{
		mgr:     mgr,
		builder: BuildEngine,
		log:     zerolog.Nop(),
		watch:   true,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.rebuild(mgr.Get()); err != nil {
		return nil, err
	}
	if !r.watch {
		return r, nil
	}

	unsubscribe := mgr.Subscribe(func(cfg config.Config) {
		if err := r.rebuild(cfg); err != nil {
			r.log.Warn().Err(err).Msg("engine rebuild failed, previous engine kept")
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	r.stop = func() {
		unsubscribe()
		cancel()
	}
	if err := mgr.Watch(ctx, nil); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// Engine returns the current engine, or nil after Close.
func (r *Runtime) Engine() *Engine {
	return r.current.Load()
}

// Reload rebuilds the engine from the manager's current config.
func (r *Runtime) Reload() error {
	return r.rebuild(r.mgr.Get())
}

// Close stops watching and closes the current engine.
func (r *Runtime) Close() error {
	if r.stop != nil {
		r.stop()
	}
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()
	if old := r.current.Swap(nil); old != nil {
		return old.Close()
	}
	return nil
}

func (r *Runtime) rebuild(cfg config.Config) error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	next, err := r.builder(cfg)
	if err != nil {
		r.emit(TopicEngineReloadFailed, failureEvent{Error: err.Error()})
		return err
	}
	if prev := r.current.Swap(next); prev != nil {
		if err := prev.Close(); err != nil {
			r.log.Warn().Err(err).Uint64("version", prev.Version).Msg("close previous engine")
		}
	}

	r.log.Info().Uint64("version", next.Version).Msg("engine ready")
	r.emit(TopicEngineReloaded, reloadEvent{
		Version:        next.Version,
		BuiltAt:        next.BuiltAt.UTC().Format(time.RFC3339),
		MarketProvider: next.Config.MarketProvider,
		NewsProvider:   next.Config.NewsProvider,
	})
	return nil
}

func (r *Runtime) emit(topic string, payload any) {
	if r.notify == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Warn().Err(err).Str("topic", topic).Msg("encode event")
		return
	}
	r.notify(topic, string(data))
}
