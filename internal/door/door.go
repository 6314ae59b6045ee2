// Package door owns the latch state machine: CLOSED, then OPEN_PENDING for
// one open period, then CLOSED again once the auto-close sequence finishes.
package door

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/door-controller/internal/gpio"
	"github.com/sweeney/door-controller/internal/logger"
)

// State is the door's logical state.
type State string

const (
	StateClosed      State = "CLOSED"
	StateOpenPending State = "OPEN_PENDING"
)

// Display messages.
const (
	MessageOpening = "Opening Door..."
	MessageClosing = "Closing Door..."
)

// Default timings.
const (
	DefaultCloseDelay = 5 * time.Second
	DefaultSettle     = 2 * time.Second
)

// displayTimeout bounds a display write made from the auto-close timer,
// which has no caller context.
const displayTimeout = 2 * time.Second

// Shower puts whole screens on the display.
type Shower interface {
	Show(ctx context.Context, lines ...string) error
}

// Options configures a Door. Zero durations take the defaults.
type Options struct {
	// CloseDelay is measured from the Open call that starts a period.
	CloseDelay time.Duration
	// Settle is how long each latch movement is given to complete.
	Settle time.Duration
	// OnChange, if set, is called after every state change, outside the lock.
	OnChange func(State)
}

// Door serializes latch movements and guards against re-entrant opens.
type Door struct {
	mu     sync.Mutex
	state  State
	period uint64
	timer  *time.Timer

	// motion is held for a whole open or close sequence so the two never
	// overlap on the hardware.
	motion sync.Mutex

	latch   gpio.Latch
	display Shower
	opts    Options
	log     *zap.SugaredLogger
}

// New returns a closed door.
func New(latch gpio.Latch, display Shower, opts Options, log *zap.SugaredLogger) *Door {
	if opts.CloseDelay <= 0 {
		opts.CloseDelay = DefaultCloseDelay
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	return &Door{
		state:   StateClosed,
		latch:   latch,
		display: display,
		opts:    opts,
		log:     logger.OrNop(log),
	}
}

// State returns the current state.
func (d *Door) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Open starts an open period if the door is CLOSED and reports whether it
// did. The auto-close timer is armed before the latch moves, so the close
// follows this call by CloseDelay. Open blocks for the open sequence.
func (d *Door) Open(ctx context.Context) bool {
	d.mu.Lock()
	if d.state != StateClosed {
		d.mu.Unlock()
		return false
	}
	d.state = StateOpenPending
	d.period++
	period := d.period
	d.timer = time.AfterFunc(d.opts.CloseDelay, func() { d.autoClose(period) })
	d.mu.Unlock()

	d.log.Infow("door opening", "period", period)
	d.notify(StateOpenPending)

	d.motion.Lock()
	defer d.motion.Unlock()

	d.show(ctx, MessageOpening)
	if err := d.latch.Open(); err != nil {
		d.log.Errorw("latch open failed", "period", period, "error", err)
	}
	sleep(ctx, d.opts.Settle)

	return true
}

// autoClose runs once per open period from the timer.
func (d *Door) autoClose(period uint64) {
	if !d.pending(period) {
		return
	}

	d.motion.Lock()
	// Shutdown may have ended the period while this waited for the latch.
	if !d.pending(period) {
		d.motion.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), displayTimeout)
	d.show(ctx, MessageClosing)
	cancel()
	if err := d.latch.Close(); err != nil {
		d.log.Errorw("latch close failed", "period", period, "error", err)
	}
	time.Sleep(d.opts.Settle)
	d.motion.Unlock()

	d.mu.Lock()
	changed := d.period == period && d.state == StateOpenPending
	if changed {
		d.state = StateClosed
		d.timer = nil
	}
	d.mu.Unlock()

	if changed {
		d.log.Infow("door closed", "period", period)
		d.notify(StateClosed)
	}
}

// pending reports whether period is the running open period.
func (d *Door) pending(period uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.period == period && d.state == StateOpenPending
}

// Shutdown cancels any pending auto-close and drives the latch closed.
func (d *Door) Shutdown() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	wasOpen := d.state != StateClosed
	d.state = StateClosed
	// Invalidate a close sequence that may already be running.
	d.period++
	d.mu.Unlock()

	d.motion.Lock()
	defer d.motion.Unlock()

	if err := d.latch.Close(); err != nil {
		d.log.Errorw("latch close on shutdown failed", "error", err)
	}
	if wasOpen {
		d.notify(StateClosed)
	}
}

func (d *Door) show(ctx context.Context, msg string) {
	if d.display == nil {
		return
	}
	if err := d.display.Show(ctx, msg); err != nil {
		d.log.Warnw("display update failed", "message", msg, "error", err)
	}
}

func (d *Door) notify(s State) {
	if d.opts.OnChange != nil {
		d.opts.OnChange(s)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
