// Package lcd drives the 16x2 character display and serializes access to it.
package lcd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sweeney/door-controller/internal/logger"
)

const (
	// Columns is the visible width of one line.
	Columns = 16

	// Rows is the number of display lines.
	Rows = 2
)

// Display is a character display addressed by 1-based line number.
type Display interface {
	Clear() error
	WriteLine(text string, line int) error
	Close() error
}

type request struct {
	lines []string
	done  chan error
}

// Owner is the only writer to a Display. Callers hand it whole screens
// through Show; Run applies them one at a time.
type Owner struct {
	display  Display
	requests chan request
	log      *zap.SugaredLogger
}

// NewOwner wraps display. Run must be started for Show to make progress.
func NewOwner(display Display, log *zap.SugaredLogger) *Owner {
	return &Owner{
		display:  display,
		requests: make(chan request),
		log:      logger.OrNop(log),
	}
}

// Run applies screens until ctx is cancelled.
func (o *Owner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-o.requests:
			req.done <- o.apply(req.lines)
		}
	}
}

// Show clears the display and writes lines from the top. It returns once
// the screen is written, or when ctx is done.
func (o *Owner) Show(ctx context.Context, lines ...string) error {
	if len(lines) > Rows {
		return fmt.Errorf("lcd: %d lines do not fit %d rows", len(lines), Rows)
	}

	req := request{lines: lines, done: make(chan error, 1)}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case o.requests <- req:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-req.done:
		return err
	}
}

func (o *Owner) apply(lines []string) error {
	if err := o.display.Clear(); err != nil {
		o.log.Errorw("lcd clear failed", "error", err)
		return fmt.Errorf("clear: %w", err)
	}
	for i, text := range lines {
		if err := o.display.WriteLine(text, i+1); err != nil {
			o.log.Errorw("lcd write failed", "line", i+1, "error", err)
			return fmt.Errorf("write line %d: %w", i+1, err)
		}
	}
	return nil
}

// fit pads or truncates text to exactly Columns characters.
// degreeSign is the degree symbol in the HD44780 A00 character ROM.
const degreeSign = 0xDF

// encode fits text to one line and maps it to character ROM codes, one byte
// per column. Runes the ROM lacks become '?'.
func encode(text string) []byte {
	out := make([]byte, 0, Columns)
	for _, r := range fit(text) {
		switch {
		case r >= ' ' && r <= '}':
			out = append(out, byte(r))
		case r == '°':
			out = append(out, degreeSign)
		default:
			out = append(out, '?')
		}
	}
	return out
}

func fit(text string) string {
	r := []rune(text)
	if len(r) > Columns {
		r = r[:Columns]
	}
	for len(r) < Columns {
		r = append(r, ' ')
	}
	return string(r)
}
