// Package monitor samples the temperature/humidity sensor on a fixed
// interval, shows the values and persists complete readings.
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/door-controller/internal/logger"
	"github.com/sweeney/door-controller/internal/mqtt"
	"github.com/sweeney/door-controller/internal/sensor"
	"github.com/sweeney/door-controller/internal/status"
	"github.com/sweeney/door-controller/internal/store"
)

// DefaultInterval is the pause between two samples.
const DefaultInterval = 10 * time.Second

// Shower puts whole screens on the display.
type Shower interface {
	Show(ctx context.Context, lines ...string) error
}

// Deps are the collaborators of a Monitor. Publisher and Tracker are
// optional.
type Deps struct {
	Sensor    sensor.Sensor
	Display   Shower
	Readings  store.ReadingRecorder
	Publisher mqtt.Publisher
	Tracker   *status.Tracker
}

// Monitor runs the sampling loop.
type Monitor struct {
	deps     Deps
	interval time.Duration
	now      func() time.Time
	log      *zap.SugaredLogger
}

// New returns a Monitor sampling every interval.
func New(deps Deps, interval time.Duration, log *zap.SugaredLogger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if deps.Publisher == nil {
		deps.Publisher = mqtt.Discard{}
	}
	return &Monitor{deps: deps, interval: interval, now: time.Now, log: logger.OrNop(log)}
}

// Run samples until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Infow("environmental monitor started", "interval", m.interval)
	t := time.NewTicker(m.interval)
	defer t.Stop()

	for {
		m.Poll(ctx)

		select {
		case <-ctx.Done():
			m.log.Infow("environmental monitor stopped")
			return nil
		case <-t.C:
		}
	}
}

// Poll takes one sample and reports whether a reading was persisted.
func (m *Monitor) Poll(ctx context.Context) (persisted bool) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorw("monitor iteration panicked", "panic", r)
			persisted = false
		}
	}()

	sample, err := m.deps.Sensor.Read()
	if err != nil {
		m.log.Warnw("sensor read failed", "error", err)
		m.deps.Tracker.IncSensorErrors()
		return false
	}
	if !sample.Complete() {
		m.log.Debugw("incomplete sensor sample", "sample", sample.String())
		return false
	}

	temp, humi := *sample.Temperature, *sample.Humidity
	at := m.now()

	if err := m.deps.Display.Show(ctx, Lines(temp, humi)...); err != nil {
		m.log.Warnw("display update failed", "error", err)
	}

	if err := m.deps.Readings.RecordReading(ctx, temp, humi); err != nil {
		m.log.Errorw("failed to record reading", "temp", temp, "humi", humi, "error", err)
		m.deps.Tracker.IncStoreErrors()
		return false
	}

	m.deps.Tracker.RecordReading(temp, humi, at)
	if err := m.deps.Publisher.PublishReading(mqtt.ReadingEvent{Timestamp: at, Temperature: temp, Humidity: humi}); err != nil {
		m.log.Warnw("failed to publish reading", "error", err)
	}
	return true
}

// Lines renders a reading for the two-line display.
func Lines(temp, humi float64) []string {
	return []string{
		fmt.Sprintf("Temp: %.1fC", temp),
		fmt.Sprintf("Humidity: %.1f%%", humi),
	}
}
