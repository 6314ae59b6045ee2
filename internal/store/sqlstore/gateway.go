// Package sqlstore implements store.Gateway on database/sql. SQLite
// (modernc.org/sqlite) is the default driver; MySQL/MariaDB is supported for
// deployments that keep the telemetry table on a shared server.
//
// Every operation opens its own connection, runs one statement and closes
// the connection again. Nothing is shared between calls, so the gateway is
// safe for concurrent use without locking.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/sweeney/door-controller/internal/store"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

const pingTimeout = 3 * time.Second

var errNoDSN = errors.New("sqlstore: mysql requires a dsn")

// Config selects the database.
type Config struct {
	Driver string // "sqlite" (default) or "mysql"
	Path   string // SQLite file
	DSN    string // go-sql-driver/mysql DSN
	// Location is the zone calendar days are computed in. Nil = time.Local.
	Location *time.Location
}

// Gateway is a store.Gateway backed by a SQL database.
type Gateway struct {
	driver string
	dsn    string
	loc    *time.Location
	now    func() time.Time
}

var _ store.Gateway = (*Gateway)(nil)

// Option customizes a Gateway.
type Option func(*Gateway)

// WithClock replaces the clock that stamps inserted rows.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New validates cfg and returns a gateway. No connection is opened.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	g := &Gateway{driver: cfg.Driver, loc: cfg.Location, now: time.Now}
	if g.driver == "" {
		g.driver = DriverSQLite
	}
	if g.loc == nil {
		g.loc = time.Local
	}

	switch g.driver {
	case DriverSQLite:
		p := cfg.Path
		if p == "" {
			p = "./data/door-controller.db"
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
		g.dsn = fmt.Sprintf(
			"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
			p,
		)
	case DriverMySQL:
		if cfg.DSN == "" {
			return nil, errNoDSN
		}
		g.dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("sqlstore: unknown driver %q", cfg.Driver)
	}

	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Migrate brings the schema up to date.
func (g *Gateway) Migrate(ctx context.Context) error {
	db, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	return migrate(ctx, db, g.driver)
}

// RecordScan inserts one scan row stamped with the gateway clock.
func (g *Gateway) RecordScan(ctx context.Context, uid string) error {
	err := g.exec(ctx,
		"INSERT INTO iot_data (uuid, check_time_ms) VALUES (?, ?)",
		uid, g.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("RecordScan: %w", err)
	}
	return nil
}

// RecordReading inserts one reading row stamped with the gateway clock.
func (g *Gateway) RecordReading(ctx context.Context, temperature, humidity float64) error {
	err := g.exec(ctx,
		"INSERT INTO iot_data (temp, humi, t_h_check_time_ms) VALUES (?, ?, ?)",
		temperature, humidity, g.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("RecordReading: %w", err)
	}
	return nil
}

// DailyFirstLast returns the first and last scan per identifier within the
// calendar day containing day.
func (g *Gateway) DailyFirstLast(ctx context.Context, day time.Time) ([]store.FirstLast, error) {
	start, end := store.DayBounds(day, g.loc)
	rows, err := g.query(ctx, `
SELECT uuid, MIN(check_time_ms), MAX(check_time_ms)
FROM iot_data
WHERE uuid IS NOT NULL AND check_time_ms >= ? AND check_time_ms < ?
GROUP BY uuid
ORDER BY uuid`,
		start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("DailyFirstLast: %w", err)
	}
	for i := range rows {
		rows[i].Day = start
	}
	return rows, nil
}

// FirstLastAll returns the first and last scan per identifier and calendar
// day over all history, newest day first. Days are cut in the gateway's
// location, so the grouping happens here rather than in SQL.
func (g *Gateway) FirstLastAll(ctx context.Context) ([]store.FirstLast, error) {
	scans, err := g.scans(ctx)
	if err != nil {
		return nil, fmt.Errorf("FirstLastAll: %w", err)
	}
	return store.Aggregate(scans, g.loc), nil
}

func (g *Gateway) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(g.driver, g.dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// exec runs one write statement in its own transaction on a fresh
// connection.
func (g *Gateway) exec(ctx context.Context, query string, args ...any) error {
	db, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (g *Gateway) query(ctx context.Context, query string, args ...any) ([]store.FirstLast, error) {
	db, err := g.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.FirstLast{}
	for rows.Next() {
		var (
			uid         string
			first, last sql.NullInt64
		)
		if err := rows.Scan(&uid, &first, &last); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, store.FirstLast{
			UID:   uid,
			First: g.millis(first),
			Last:  g.millis(last),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway) scans(ctx context.Context) ([]store.ScanEvent, error) {
	db, err := g.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
SELECT uuid, check_time_ms
FROM iot_data
WHERE uuid IS NOT NULL AND check_time_ms IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ScanEvent
	for rows.Next() {
		var (
			uid string
			ms  int64
		)
		if err := rows.Scan(&uid, &ms); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, store.ScanEvent{UID: uid, Timestamp: time.UnixMilli(ms)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway) millis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).In(g.loc)
	return &t
}
