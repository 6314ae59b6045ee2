package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/door-controller/internal/logger"
	"github.com/sweeney/door-controller/internal/store"
	"github.com/sweeney/door-controller/internal/store/memory"
)

const testDelay = 40 * time.Millisecond

var kst = time.FixedZone("KST", 9*60*60)

// collector is a fake attendance endpoint that answers with scripted status
// codes and records every request.
type collector struct {
	mu       sync.Mutex
	statuses []int
	times    []time.Time
	bodies   [][]byte
	headers  []http.Header
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	c.mu.Lock()
	n := len(c.times)
	c.times = append(c.times, time.Now())
	c.bodies = append(c.bodies, body)
	c.headers = append(c.headers, r.Header.Clone())
	code := http.StatusOK
	if n < len(c.statuses) {
		code = c.statuses[n]
	}
	c.mu.Unlock()

	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (c *collector) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.times)
}

// newExporter wires an exporter to a collector returning statuses, with
// yesterday (2024-03-15 KST) holding scans for two cards.
func newExporter(t *testing.T, withRows bool, attempts int, statuses ...int) (*Exporter, *collector) {
	t.Helper()

	c := &collector{statuses: statuses}
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)

	g := memory.New()
	g.SetLocation(kst)
	if withRows {
		day := time.Date(2024, 3, 15, 0, 0, 0, 0, kst)
		g.AddScan("AB12", day.Add(8*time.Hour))
		g.AddScan("AB12", day.Add(17*time.Hour+30*time.Minute))
		g.AddScan("04A1B2C3", day.Add(9*time.Hour))
	}

	now := time.Date(2024, 3, 16, 1, 0, 0, 0, kst)
	e := New(g, Config{
		Endpoint:   srv.URL + "/api/attendances",
		Attempts:   attempts,
		RetryDelay: testDelay,
		Timeout:    time.Second,
		Location:   kst,
	}, logger.Nop(), WithClock(func() time.Time { return now }))
	return e, c
}

func TestRunWithoutRowsSendsNothing(t *testing.T) {
	e, c := newExporter(t, false, 3)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rows)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, 0, c.calls())
	assert.Empty(t, res.RequestID)
}

func TestRunDeliversYesterday(t *testing.T) {
	e, c := newExporter(t, true, 3)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "2024-03-15", res.Day.Format(time.DateOnly))
	require.Equal(t, 1, c.calls())

	assert.Equal(t, "application/json", c.headers[0].Get("Content-Type"))
	id := c.headers[0].Get("X-Request-ID")
	assert.Equal(t, res.RequestID, id)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	var batch Batch
	require.NoError(t, json.Unmarshal(c.bodies[0], &batch))
	assert.Equal(t, []Attendance{
		{CardUUID: "04A1B2C3", CheckInTime: "2024-03-15 09:00:00", CheckOutTime: "2024-03-15 09:00:00"},
		{CardUUID: "AB12", CheckInTime: "2024-03-15 08:00:00", CheckOutTime: "2024-03-15 17:30:00"},
	}, batch.Attendances)
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	e, c := newExporter(t, true, 3, http.StatusInternalServerError, http.StatusOK)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, c.calls())
}

func TestRunGivesUpAfterThreeAttempts(t *testing.T) {
	e, c := newExporter(t, true, 3,
		http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusOK)

	res, err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, 3, res.Attempts)
	require.Equal(t, 3, c.calls(), "no fourth attempt")

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 1; i < len(c.times); i++ {
		assert.GreaterOrEqual(t, c.times[i].Sub(c.times[i-1]), testDelay, "gap before attempt %d", i+1)
	}
}

func TestNon200SuccessCodesAreFailures(t *testing.T) {
	e, c := newExporter(t, true, 2, http.StatusCreated, http.StatusNoContent)

	_, err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, 2, c.calls())
}

func TestSingleAttempt(t *testing.T) {
	e, c := newExporter(t, true, 1, http.StatusInternalServerError)

	res, err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, c.calls())
}

func TestTransportErrorsAreRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	g := memory.New()
	g.AddScan("AB12", time.Now().AddDate(0, 0, -1))
	e := New(g, Config{Endpoint: endpoint, Attempts: 2, RetryDelay: time.Millisecond}, logger.Nop())

	res, err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, 2, res.Attempts)
}

func TestRunStopsWaitingOnCancel(t *testing.T) {
	e, c := newExporter(t, true, 3, http.StatusInternalServerError, http.StatusInternalServerError)
	e.cfg.RetryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, func() bool { return c.calls() == 1 }, time.Second, time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := e.Run(ctx)
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, c.calls())
}

func TestRunQueryError(t *testing.T) {
	g := memory.New()
	g.FailQueries(errors.New("no such table: iot_data"))

	_, err := New(g, Config{Endpoint: "http://127.0.0.1:1"}, nil).Run(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDeliveryFailed)
}

func TestBuildAbsentTimestamps(t *testing.T) {
	in := time.Date(2024, 3, 15, 8, 0, 0, 0, kst)
	got := Build([]store.FirstLast{
		{UID: "AB12", First: &in},
		{UID: "CD34"},
	})
	assert.Equal(t, []Attendance{
		{CardUUID: "AB12", CheckInTime: "2024-03-15 08:00:00", CheckOutTime: "NULL"},
		{CardUUID: "CD34", CheckInTime: "NULL", CheckOutTime: "NULL"},
	}, got)
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, Null, FormatTime(nil))
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "2024-01-02 03:04:05", FormatTime(&ts))
}
