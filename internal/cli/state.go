package cli

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dyike/CortexFolio/config"
	"github.com/dyike/CortexFolio/internal/apperr"
	"github.com/dyike/CortexFolio/internal/logger"
	"github.com/dyike/CortexFolio/pkg/app"
)

// state is shared by every command. The engine is built on first use so
// commands that only touch the config never open the database.
type state struct {
	configDir string
	logLevel  string
	jsonOut   bool

	mgr *config.Manager
	rt  *app.Runtime
	log zerolog.Logger
}

func (s *state) manager() (*config.Manager, error) {
	if s.mgr != nil {
		return s.mgr, nil
	}
	s.log = logger.New(logger.Config{Level: s.logLevel})
	mgr, err := config.NewManager(
		config.WithConfigDir(s.configDir),
		config.WithInitialConfig(config.DefaultConfig()),
		config.WithLogger(s.log),
	)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	s.mgr = mgr
	return mgr, nil
}

// effectiveConfig is the stored config with the environment applied on
// top.
func (s *state) effectiveConfig() (config.Config, error) {
	mgr, err := s.manager()
	if err != nil {
		return config.Config{}, err
	}
	cfg := mgr.Get()
	cfg.ApplyEnv()
	if s.logLevel != "" {
		cfg.LogLevel = s.logLevel
	}
	return cfg, nil
}

func (s *state) runtime(watch bool, extra ...app.Option) (*app.Runtime, error) {
	if s.rt != nil {
		return s.rt, nil
	}
	mgr, err := s.manager()
	if err != nil {
		return nil, err
	}
	opts := []app.Option{
		app.WithLogger(s.log),
		app.WithBuilder(func(c config.Config) (*app.Engine, error) {
			c.ApplyEnv()
			if s.logLevel != "" {
				c.LogLevel = s.logLevel
			}
			if err := c.EnsureDirectories(); err != nil {
				return nil, err
			}
			return app.BuildEngine(c)
		}),
	}
	if !watch {
		opts = append(opts, app.WithoutWatch())
	}
	opts = append(opts, extra...)
	rt, err := app.NewRuntime(mgr, opts...)
	if err != nil {
		return nil, err
	}
	s.rt = rt
	return rt, nil
}

func (s *state) engine() (*app.Engine, error) {
	rt, err := s.runtime(false)
	if err != nil {
		return nil, err
	}
	return rt.Engine(), nil
}

func (s *state) close() {
	if s.rt != nil {
		if err := s.rt.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close runtime")
		}
		s.rt = nil
	}
}

// exitCode maps error kinds to distinct process exit codes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidPortfolio):
		return 2
	case errors.Is(err, apperr.ErrDataUnavailable):
		return 3
	case errors.Is(err, apperr.ErrUpstream), errors.Is(err, apperr.ErrRejected):
		return 4
	case errors.Is(err, apperr.ErrPersistence):
		return 5
	default:
		return 1
	}
}
