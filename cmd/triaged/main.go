// Command triaged runs the triage engine behind the websocket chat transport.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petparlor/triage"
	"github.com/petparlor/triage/config"
	"github.com/petparlor/triage/engine"
	"github.com/petparlor/triage/logging"
	"github.com/petparlor/triage/router"
	"github.com/petparlor/triage/runtime"
	runtimeanthropic "github.com/petparlor/triage/runtime/anthropic"
	runtimeopenai "github.com/petparlor/triage/runtime/openai"
	"github.com/petparlor/triage/synthesis"
	"github.com/petparlor/triage/tool"
	"github.com/petparlor/triage/transport"
)

func main() {
	root := &cobra.Command{
		Use:          "triaged",
		Short:        "Routes chat requests to domain-specialized agents",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the websocket chat transport",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.NewDefault(cfg.LogLevel, os.Stderr)

			rt, err := buildRuntime(cfg)
			if err != nil {
				return err
			}

			var intents []router.Intent
			var patterns []string
			if cfg.IntentTablePath != "" {
				intents, patterns, err = config.LoadIntentTable(cfg.IntentTablePath)
				if err != nil {
					return err
				}
			}

			tr, err := triage.New(func(o *triage.Options) {
				o.Runtime = rt
				o.ToolProvider = tool.NewFileProvider(cfg.OpenAPIDir)
				o.Model = cfg.ModelDeployment
				if intents != nil {
					o.Intents = intents
				}
				o.SynthesizerOptions = []func(so *synthesis.Options){cfg.SynthesizerOptions(patterns)}
				o.EngineOptions = []func(eo *engine.Options){func(eo *engine.Options) {
					eo.TurnTimeout = cfg.TurnTimeout
				}}
				o.Logger = logger
			})
			if err != nil {
				return err
			}

			srv := transport.NewServer(tr.Engine(), func(o *transport.ServerOptions) {
				o.Addr = cfg.ListenAddr
				o.Logger = logger
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			logger.Info("shutting down")
			return srv.Stop(shutdownCtx)
		},
	}
}

func buildRuntime(cfg config.Config) (runtime.Runtime, error) {
	switch cfg.Provider {
	case "openai":
		return runtime.WithBreaker(runtimeopenai.New()), nil
	case "anthropic":
		return runtime.WithBreaker(runtimeanthropic.New()), nil
	case "mock":
		return runtime.NewMockRuntime(), nil
	default:
		return nil, fmt.Errorf("unknown runtime provider %q", cfg.Provider)
	}
}
