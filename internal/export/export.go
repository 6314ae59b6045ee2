// Package export sends yesterday's attendance (first and last scan per
// card) to the remote collector.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/door-controller/internal/logger"
	"github.com/sweeney/door-controller/internal/store"
)

// TimeLayout is the collector's timestamp format.
const TimeLayout = "2006-01-02 15:04:05"

// Null stands in for an absent timestamp.
const Null = "NULL"

// maxLoggedBody caps how much of a response body is logged.
const maxLoggedBody = 4 << 10

// ErrDeliveryFailed is returned when every attempt failed.
var ErrDeliveryFailed = errors.New("attendance delivery failed")

// Attendance is one card's interval for the day.
type Attendance struct {
	CardUUID     string `json:"card_uuid"`
	CheckInTime  string `json:"check_in_time"`
	CheckOutTime string `json:"check_out_time"`
}

// Batch is the request body.
type Batch struct {
	Attendances []Attendance `json:"attendances"`
}

// Config controls delivery.
type Config struct {
	Endpoint   string
	Attempts   int           // total attempts, at least 1
	RetryDelay time.Duration // constant wait between attempts
	Timeout    time.Duration // per attempt
	// Location decides which calendar day is "yesterday". Nil = time.Local.
	Location *time.Location
}

// Result describes one run.
type Result struct {
	Day       time.Time
	Rows      int
	Attempts  int
	RequestID string
}

// Exporter derives and delivers the attendance batch.
type Exporter struct {
	source store.AttendanceSource
	client *http.Client
	cfg    Config
	now    func() time.Time
	log    *zap.SugaredLogger
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Exporter) { e.client = c }
}

// WithClock replaces the clock used to find yesterday.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// New returns an Exporter reading from source.
func New(source store.AttendanceSource, cfg Config, log *zap.SugaredLogger, opts ...Option) *Exporter {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	e := &Exporter{
		source: source,
		client: &http.Client{},
		cfg:    cfg,
		now:    time.Now,
		log:    logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run exports the calendar day before today.
func (e *Exporter) Run(ctx context.Context) (Result, error) {
	return e.RunDay(ctx, e.now().In(e.cfg.Location).AddDate(0, 0, -1))
}

// RunDay exports the calendar day containing day. A day without scans is a
// success with no request sent.
func (e *Exporter) RunDay(ctx context.Context, day time.Time) (Result, error) {
	res := Result{Day: day}

	rows, err := e.source.DailyFirstLast(ctx, day)
	if err != nil {
		return res, fmt.Errorf("query attendance: %w", err)
	}
	res.Rows = len(rows)

	if len(rows) == 0 {
		e.log.Infow("nothing to send", "day", day.Format(time.DateOnly))
		return res, nil
	}

	body, err := json.Marshal(Batch{Attendances: Build(rows)})
	if err != nil {
		return res, fmt.Errorf("encode batch: %w", err)
	}

	res.RequestID = uuid.NewString()
	log := e.log.With("request_id", res.RequestID, "day", day.Format(time.DateOnly))
	log.Infow("sending attendance", "rows", len(rows), "endpoint", e.cfg.Endpoint)

	op := func() error {
		res.Attempts++
		return e.post(ctx, log, res.RequestID, res.Attempts, body)
	}
	notify := func(err error, wait time.Duration) {
		log.Warnw("attendance delivery attempt failed", "attempt", res.Attempts, "error", err, "retry_in", wait)
	}

	if err := backoff.RetryNotify(op, e.policy(ctx), notify); err != nil {
		log.Errorw("attendance delivery failed", "attempts", res.Attempts, "error", err)
		return res, fmt.Errorf("%w after %d attempts: %v", ErrDeliveryFailed, res.Attempts, err)
	}

	log.Infow("attendance delivered", "attempts", res.Attempts)
	return res, nil
}

// policy allows Attempts-1 retries with a constant delay.
func (e *Exporter) policy(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if retries := e.cfg.Attempts - 1; retries > 0 {
		// WithMaxRetries treats 0 as unlimited, hence the StopBackOff default.
		b = backoff.WithMaxRetries(backoff.NewConstantBackOff(e.cfg.RetryDelay), uint64(retries))
	}
	return backoff.WithContext(b, ctx)
}

func (e *Exporter) post(ctx context.Context, log *zap.SugaredLogger, requestID string, attempt int, body []byte) error {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	log.Infow("collector response", "attempt", attempt, "status", resp.StatusCode, "body", string(respBody))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Build converts first/last rows into attendance records.
func Build(rows []store.FirstLast) []Attendance {
	out := make([]Attendance, 0, len(rows))
	for _, r := range rows {
		out = append(out, Attendance{
			CardUUID:     r.UID,
			CheckInTime:  FormatTime(r.First),
			CheckOutTime: FormatTime(r.Last),
		})
	}
	return out
}

// FormatTime renders t in TimeLayout, or Null when t is nil.
func FormatTime(t *time.Time) string {
	if t == nil {
		return Null
	}
	return t.Format(TimeLayout)
}
