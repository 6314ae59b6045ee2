// Command door-controller runs a single-door access controller: it reads
// cards, drives the latch and buzzer, samples the environment sensor and
// runs the daily attendance jobs.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sweeney/door-controller/internal/config"
	"github.com/sweeney/door-controller/internal/logger"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// printState reports sensor and reader state and exits.
	printState bool

	rootCmd = &cobra.Command{
		Use:   "door-controller",
		Short: "Run the door access controller.",
		Long: `Polls the card reader, opens the door for allow-listed cards, samples
temperature and humidity, and runs the daily first/last report.

Settings come from the YAML file given with --config; a missing file means
defaults. SIGINT or SIGTERM closes the door and stops the process.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext(context.Background())
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			log := logger.FromConfig(cfg.LogLevel)
			defer func() { _ = log.Sync() }()

			if err := run(ctx, cfg, printState, log); err != nil {
				log.Errorw("fatal", "error", err)
				return err
			}
			return nil
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().BoolVar(&printState, "print-state", false, "print sensor and reader state and exit")
}

// shutdownSignal is the cancellation cause recorded by signalContext.
type shutdownSignal struct {
	sig os.Signal
}

func (s *shutdownSignal) Error() string {
	return "received " + s.sig.String()
}

// signalContext is signal.NotifyContext that remembers which signal fired.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case s := <-sigCh:
			cancel(&shutdownSignal{sig: s})
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel(nil)
	}
}

// shutdownReason names the signal that cancelled ctx, for the SHUTDOWN event.
func shutdownReason(ctx context.Context) string {
	var s *shutdownSignal
	if !errors.As(context.Cause(ctx), &s) {
		return "UNKNOWN"
	}
	return signalName(s.sig)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
