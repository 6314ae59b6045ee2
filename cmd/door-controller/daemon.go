package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/door-controller/internal/access"
	"github.com/sweeney/door-controller/internal/config"
	"github.com/sweeney/door-controller/internal/door"
	"github.com/sweeney/door-controller/internal/export"
	"github.com/sweeney/door-controller/internal/lcd"
	"github.com/sweeney/door-controller/internal/monitor"
	"github.com/sweeney/door-controller/internal/mqtt"
	"github.com/sweeney/door-controller/internal/report"
	"github.com/sweeney/door-controller/internal/schedule"
	"github.com/sweeney/door-controller/internal/status"
	"github.com/sweeney/door-controller/internal/store"
	"github.com/sweeney/door-controller/internal/store/sqlstore"
	"github.com/sweeney/door-controller/internal/web"
)

// System event names.
const (
	eventStartup   = "STARTUP"
	eventShutdown  = "SHUTDOWN"
	eventHeartbeat = "HEARTBEAT"
)

const (
	// trackInterval is how often the MQTT connection flag is refreshed.
	trackInterval   = time.Second
	shutdownTimeout = 5 * time.Second
	mdnsInstance    = "door-controller"
)

// daemon is everything the controller process runs on.
type daemon struct {
	cfg       *config.Config
	devices   devices
	gateway   store.Gateway
	allow     access.AllowList
	publisher mqtt.Publisher
	mqttConn  mqtt.ConnectionStatus
	tracker   *status.Tracker
	exporter  *export.Exporter // nil unless export.daily_at is set
	clock     func() time.Time
	log       *zap.SugaredLogger
}

func run(ctx context.Context, cfg *config.Config, printOnly bool, log *zap.SugaredLogger) error {
	if printOnly {
		return writeState(os.Stdout, cfg)
	}

	devs, release, err := openDevices(cfg.Hardware, log)
	defer release()
	if err != nil {
		return err
	}

	loc := cfg.Database.Location()
	gateway, err := sqlstore.New(sqlstore.Config{
		Driver:   cfg.Database.Driver,
		Path:     cfg.Database.Path,
		DSN:      cfg.Database.DSN,
		Location: loc,
	})
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	if err := gateway.Migrate(ctx); err != nil {
		// Scans are still authorized without a database; writes fail and are
		// counted until it comes back.
		log.Errorw("database migration failed", "driver", cfg.Database.Driver, "error", err)
	}

	allow, err := access.LoadAllowList(cfg.AllowListFile)
	if err != nil {
		log.Errorw("allow-list unavailable, every card will be denied", "path", cfg.AllowListFile, "error", err)
	}

	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = mqtt.Discard{}
	if cfg.MQTT.Broker != "" {
		publisher = mqtt.NewRealPublisher(mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			BufferSize:  cfg.MQTT.BufferSize,
		}, log.Named("mqtt"))
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg, allow.Len()))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := &daemon{
		cfg:       cfg,
		devices:   devs,
		gateway:   gateway,
		allow:     allow,
		publisher: publisher,
		mqttConn:  publisher,
		tracker:   tracker,
		clock:     time.Now,
		log:       log,
	}
	if cfg.Export.DailyAt != "" {
		d.exporter = export.New(gateway, exportConfig(cfg), log.Named("export"))
	}

	return d.serve(ctx)
}

func statusConfig(cfg *config.Config, allowListSize int) status.Config {
	return status.Config{
		Driver:           cfg.Database.Driver,
		AllowListSize:    allowListSize,
		CloseDelayMs:     cfg.Timing.CloseDelay.Milliseconds(),
		SensorIntervalMs: cfg.Timing.SensorInterval.Milliseconds(),
		ReportAt:         cfg.Report.DailyAt,
		ExportAt:         cfg.Export.DailyAt,
		Broker:           cfg.MQTT.Broker,
		HTTPAddr:         cfg.HTTP.Addr,
	}
}

func exportConfig(cfg *config.Config) export.Config {
	return export.Config{
		Endpoint:   cfg.Export.Endpoint,
		Attempts:   cfg.Export.Attempts,
		RetryDelay: cfg.Export.RetryDelay,
		Timeout:    cfg.Export.Timeout,
		Location:   cfg.Database.Location(),
	}
}

// serve runs every worker until ctx is cancelled, then closes the door and
// announces the shutdown.
func (d *daemon) serve(ctx context.Context) error {
	owner := lcd.NewOwner(d.devices.display, d.log.Named("lcd"))

	dr := door.New(d.devices.latch, owner, door.Options{
		CloseDelay: d.cfg.Timing.CloseDelay,
		Settle:     d.cfg.Timing.Settle,
		OnChange:   d.doorChanged,
	}, d.log.Named("door"))

	controller := access.New(access.Deps{
		Reader:    d.devices.reader,
		Buzzer:    d.devices.buzzer,
		Display:   owner,
		Door:      dr,
		Scans:     d.gateway,
		Publisher: d.publisher,
		Tracker:   d.tracker,
	}, d.allow, access.Timings{
		PollTimeout: d.cfg.Timing.CardPollTimeout,
		Beep:        d.cfg.Timing.Beep,
		DenyBeep:    d.cfg.Timing.DenyBeep,
		DenyDisplay: d.cfg.Timing.DenyDisplay,
	}, d.log.Named("access"))

	mon := monitor.New(monitor.Deps{
		Sensor:    d.devices.sensor,
		Display:   owner,
		Readings:  d.gateway,
		Publisher: d.publisher,
		Tracker:   d.tracker,
	}, d.cfg.Timing.SensorInterval, d.log.Named("monitor"))

	sched, err := d.schedule()
	if err != nil {
		return err
	}

	d.publishSystem(eventStartup, "")
	d.log.Infow("started",
		"authorized", d.allow.Len(),
		"driver", d.cfg.Database.Driver,
		"close_delay", d.cfg.Timing.CloseDelay,
		"sensor_interval", d.cfg.Timing.SensorInterval,
		"broker", d.cfg.MQTT.Broker,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return owner.Run(gctx) })
	g.Go(func() error { return controller.Run(gctx) })
	g.Go(func() error { return mon.Run(gctx) })
	g.Go(func() error { return d.track(gctx) })
	if d.cfg.HTTP.Addr != "" {
		d.startWeb(gctx, g)
	}

	tick := time.NewTicker(d.cfg.Timing.SchedulerTick)
	defer tick.Stop()
	schedErr := sched.Run(gctx, tick.C)

	err = g.Wait()
	dr.Shutdown()

	d.publishSystem(eventShutdown, shutdownReason(ctx))
	d.log.Infow("stopped", "reason", shutdownReason(ctx))

	return errors.Join(schedErr, err)
}

// schedule registers the daily report and, when configured, the in-process
// attendance export.
func (d *daemon) schedule() (*schedule.Scheduler, error) {
	sched := schedule.New(d.log.Named("schedule"), schedule.WithClock(d.clock))

	if at := d.cfg.Report.DailyAt; at != "" {
		daily := report.NewDaily(d.gateway, d.log.Named("report"))
		if err := sched.Daily("daily-report", at, daily.Run); err != nil {
			return nil, err
		}
	}

	if at := d.cfg.Export.DailyAt; at != "" && d.exporter != nil {
		if err := sched.Daily("attendance-export", at, d.runExport); err != nil {
			return nil, err
		}
	}

	return sched, nil
}

func (d *daemon) runExport(ctx context.Context) error {
	res, err := d.exporter.Run(ctx)
	d.tracker.RecordExport(d.clock(), res.Rows, err)
	return err
}

func (d *daemon) startWeb(ctx context.Context, g *errgroup.Group) {
	srv := web.New(d.cfg.HTTP.Addr, d.tracker, web.WithLogger(d.log.Named("web")))

	// A dead status page must not take the door down with it.
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Errorw("http server error", "addr", d.cfg.HTTP.Addr, "error", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	d.log.Infow("http status server listening", "addr", d.cfg.HTTP.Addr)

	if !d.cfg.HTTP.MDNS {
		return
	}
	port, err := web.PortFromAddr(d.cfg.HTTP.Addr)
	if err != nil {
		d.log.Warnw("mDNS disabled", "error", err)
		return
	}
	ad, err := web.Advertise(mdnsInstance, port)
	if err != nil {
		d.log.Warnw("mDNS disabled", "error", err)
		return
	}
	d.log.Infow("mDNS service registered", "service", web.MDNSServiceType, "port", port)
	g.Go(func() error {
		<-ctx.Done()
		ad.Shutdown()
		return nil
	})
}

// track keeps the MQTT flag fresh and emits heartbeats.
func (d *daemon) track(ctx context.Context) error {
	refresh := time.NewTicker(trackInterval)
	defer refresh.Stop()
	heartbeat := time.NewTicker(d.cfg.MQTT.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh.C:
			d.tracker.SetMQTTConnected(d.mqttConn.IsConnected())
		case <-heartbeat.C:
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			d.publishSystem(eventHeartbeat, "")
		}
	}
}

func (d *daemon) doorChanged(state door.State) {
	d.tracker.SetDoor(string(state))
	if err := d.publisher.PublishDoor(mqtt.DoorEvent{Timestamp: d.clock(), State: string(state)}); err != nil {
		d.log.Warnw("failed to publish door state", "state", state, "error", err)
	}
}

func (d *daemon) publishSystem(event, reason string) {
	d.tracker.SetMQTTConnected(d.mqttConn.IsConnected())
	snap := d.tracker.Snapshot()

	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != eventHeartbeat,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		d.log.Warnw("failed to publish system event", "event", event, "error", err)
		return
	}
	d.log.Infow("published system event", "event", event)
}
