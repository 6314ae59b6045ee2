// Package access authorizes card scans against the allow-list and drives
// the buzzer, display and door accordingly.
package access

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/door-controller/internal/gpio"
	"github.com/sweeney/door-controller/internal/logger"
	"github.com/sweeney/door-controller/internal/mqtt"
	"github.com/sweeney/door-controller/internal/nfc"
	"github.com/sweeney/door-controller/internal/status"
	"github.com/sweeney/door-controller/internal/store"
)

// Decision is the outcome of one scan.
type Decision string

const (
	Granted     Decision = status.DecisionGranted
	AlreadyOpen Decision = status.DecisionAlreadyOpen
	Denied      Decision = status.DecisionDenied
)

// MessageDenied is shown for unknown cards.
const MessageDenied = "Access Denied!"

// Opener starts an open period. It returns false when one is already running.
type Opener interface {
	Open(ctx context.Context) bool
}

// Shower puts whole screens on the display.
type Shower interface {
	Show(ctx context.Context, lines ...string) error
}

// Timings holds the controller's fixed delays.
type Timings struct {
	PollTimeout time.Duration
	Beep        time.Duration
	DenyBeep    time.Duration
	DenyDisplay time.Duration
}

// DefaultTimings are the delays of the original installation.
var DefaultTimings = Timings{
	PollTimeout: 500 * time.Millisecond,
	Beep:        100 * time.Millisecond,
	DenyBeep:    100 * time.Millisecond,
	DenyDisplay: 2 * time.Second,
}

// Deps are the collaborators of a Controller. Publisher and Tracker are
// optional.
type Deps struct {
	Reader    nfc.Reader
	Buzzer    gpio.Buzzer
	Display   Shower
	Door      Opener
	Scans     store.ScanRecorder
	Publisher mqtt.Publisher
	Tracker   *status.Tracker
}

// Controller runs the card polling loop.
type Controller struct {
	deps    Deps
	allow   AllowList
	timings Timings
	now     func() time.Time
	log     *zap.SugaredLogger
}

// New returns a Controller. The allow-list is fixed for its lifetime.
func New(deps Deps, allow AllowList, timings Timings, log *zap.SugaredLogger) *Controller {
	if deps.Publisher == nil {
		deps.Publisher = mqtt.Discard{}
	}
	if timings.PollTimeout <= 0 {
		timings.PollTimeout = DefaultTimings.PollTimeout
	}
	if timings.DenyBeep <= 0 {
		timings.DenyBeep = timings.Beep
	}
	return &Controller{
		deps:    deps,
		allow:   allow,
		timings: timings,
		now:     time.Now,
		log:     logger.OrNop(log),
	}
}

// Run polls the reader until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Infow("access controller started", "authorized", c.allow.Len())
	for ctx.Err() == nil {
		c.Poll(ctx)
	}
	c.log.Infow("access controller stopped")
	return nil
}

// Poll runs one reader poll and handles a detected card. A panic is
// recovered so the loop survives it.
func (c *Controller) Poll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("access loop iteration panicked", "panic", r)
		}
	}()

	raw, err := c.deps.Reader.ReadPassiveTarget(ctx, c.timings.PollTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.Errorw("card reader error", "error", err)
		sleep(ctx, c.timings.PollTimeout)
		return
	}
	if raw == nil {
		return
	}

	c.HandleCard(ctx, raw)
}

// HandleCard processes one detection: acknowledge, record, decide, act.
func (c *Controller) HandleCard(ctx context.Context, raw []byte) Decision {
	uid := nfc.Canonical(raw)
	at := c.now()
	c.log.Infow("card detected", "uid", uid)

	c.beep(c.timings.Beep)

	if err := c.deps.Scans.RecordScan(ctx, uid); err != nil {
		c.log.Errorw("failed to record scan", "uid", uid, "error", err)
		c.deps.Tracker.IncStoreErrors()
	}

	var decision Decision
	if c.allow.Contains(uid) {
		decision = AlreadyOpen
		if c.deps.Door.Open(ctx) {
			decision = Granted
		}
	} else {
		decision = Denied
		c.beep(c.timings.DenyBeep)
		if err := c.deps.Display.Show(ctx, MessageDenied); err != nil {
			c.log.Warnw("display update failed", "error", err)
		}
		sleep(ctx, c.timings.DenyDisplay)
	}

	c.log.Infow("access decision", "uid", uid, "decision", decision)
	c.deps.Tracker.RecordScan(uid, string(decision), at)
	if err := c.deps.Publisher.PublishScan(mqtt.ScanEvent{Timestamp: at, UID: uid, Decision: string(decision)}); err != nil {
		c.log.Warnw("failed to publish scan", "uid", uid, "error", err)
	}

	return decision
}

func (c *Controller) beep(d time.Duration) {
	if err := gpio.Pulse(c.deps.Buzzer, d); err != nil {
		c.log.Warnw("buzzer failed", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
