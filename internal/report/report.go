// Package report logs the first and last scan of every card.
package report

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/door-controller/internal/export"
	"github.com/sweeney/door-controller/internal/logger"
	"github.com/sweeney/door-controller/internal/store"
)

// Daily is the scheduled report job.
type Daily struct {
	source store.AttendanceSource
	log    *zap.SugaredLogger
}

// NewDaily returns a report over source.
func NewDaily(source store.AttendanceSource, log *zap.SugaredLogger) *Daily {
	return &Daily{source: source, log: logger.OrNop(log)}
}

// Run logs one line per identifier and calendar day with its first and last
// scan, over all recorded history, newest day first.
func (d *Daily) Run(ctx context.Context) error {
	rows, err := d.source.FirstLastAll(ctx)
	if err != nil {
		return fmt.Errorf("daily report: %w", err)
	}

	d.log.Infow("daily report", "rows", len(rows))
	for _, r := range rows {
		d.log.Infow("first/last scan",
			"date", r.Day.Format(time.DateOnly),
			"uuid", r.UID,
			"first", export.FormatTime(r.First),
			"last", export.FormatTime(r.Last),
		)
	}
	return nil
}
