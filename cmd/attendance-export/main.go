// Command attendance-export sends one day's first/last scan per card to the
// attendance collector. It is meant to be started once a day by cron or a
// systemd timer and exits non-zero when delivery fails.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/door-controller/internal/config"
	"github.com/sweeney/door-controller/internal/export"
	"github.com/sweeney/door-controller/internal/logger"
	"github.com/sweeney/door-controller/internal/store"
	"github.com/sweeney/door-controller/internal/store/sqlstore"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// day to export as YYYY-MM-DD; empty means yesterday.
	day string

	rootCmd = &cobra.Command{
		Use:   "attendance-export",
		Short: "Send a day's attendance to the collector.",
		Long: `Aggregates the first and last scan of every card for one calendar day and
POSTs them to the configured collector, retrying a bounded number of times.

Without --day the previous calendar day is exported. A day without scans
sends nothing and succeeds.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			log := logger.FromConfig(cfg.LogLevel)
			defer func() { _ = log.Sync() }()

			gateway, err := sqlstore.New(sqlstore.Config{
				Driver:   cfg.Database.Driver,
				Path:     cfg.Database.Path,
				DSN:      cfg.Database.DSN,
				Location: cfg.Database.Location(),
			})
			if err != nil {
				log.Errorw("init store", "error", err)
				return err
			}

			if err := run(ctx, cfg, gateway, day, log); err != nil {
				log.Errorw("export failed", "error", err)
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
	rootCmd.Flags().StringVar(&day, "day", "", "calendar day to export (YYYY-MM-DD, default yesterday)")
}

func run(ctx context.Context, cfg *config.Config, source store.AttendanceSource, day string, log *zap.SugaredLogger) error {
	loc := cfg.Database.Location()
	exporter := export.New(source, export.Config{
		Endpoint:   cfg.Export.Endpoint,
		Attempts:   cfg.Export.Attempts,
		RetryDelay: cfg.Export.RetryDelay,
		Timeout:    cfg.Export.Timeout,
		Location:   loc,
	}, log)

	var (
		res export.Result
		err error
	)
	if day == "" {
		res, err = exporter.Run(ctx)
	} else {
		d, parseErr := time.ParseInLocation(time.DateOnly, day, loc)
		if parseErr != nil {
			return fmt.Errorf("invalid --day %q: %w", day, parseErr)
		}
		res, err = exporter.RunDay(ctx, d)
	}
	if err != nil {
		return err
	}

	log.Infow("export finished",
		"day", res.Day.Format(time.DateOnly),
		"rows", res.Rows,
		"attempts", res.Attempts,
		"request_id", res.RequestID,
	)
	return nil
}
