// Package debug starts the eino devops server so tool calls made by a chat
// session can be inspected in the visual debugger.
package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"
	"github.com/rs/zerolog"

	"github.com/dyike/CortexFolio/config"
)

type EinoDebugger struct {
	enabled bool
	port    int
	log     zerolog.Logger
	init    func(ctx context.Context, port int) error
}

func NewEinoDebugger(cfg *config.Config, log zerolog.Logger) *EinoDebugger {
	return &EinoDebugger{
		enabled: cfg.EinoDebugEnabled,
		port:    cfg.EinoDebugPort,
		log:     log.With().Str("component", "eino-debug").Logger(),
		init: func(ctx context.Context, port int) error {
			return devops.Init(ctx, devops.WithDevServerPort(fmt.Sprintf("%d", port)))
		},
	}
}

// Initialize is a no-op unless debugging is enabled.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.enabled {
		return nil
	}
	if err := d.init(ctx, d.port); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	d.log.Info().Str("url", d.GetDebugURL()).Msg("eino debug server started")
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.enabled
}

func (d *EinoDebugger) GetDebugURL() string {
	if !d.enabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.port)
}
