package eventlog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/status"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open() err=%v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDiff(t *testing.T) {
	at := time.Unix(1700000000, 0)
	prev := &status.Snapshot{
		Warnings:          [3]uint16{0x0000, 0x0008, 0},
		OperatingModeName: "Online",
		BatteryStatusName: "Normal",
	}
	next := &status.Snapshot{
		At:                at,
		Warnings:          [3]uint16{0x9000, 0x0000, 0},
		OperatingModeName: "On Battery",
		BatteryStatusName: "Normal",
	}

	events := Diff(prev, next)

	got := map[string]Event{}
	for _, e := range events {
		got[e.Key] = e
	}
	assert.Equal(t, len(events), 4)
	assert.Equal(t, got["power_fail"].To, "ON")
	assert.Equal(t, got["on_battery"].From, "OFF")
	assert.Equal(t, got["battery_open"].To, "OFF")
	assert.Equal(t, got["operating_mode"].Kind, KindStatus)
	assert.Equal(t, got["operating_mode"].From, "Online")
	assert.Equal(t, got["operating_mode"].To, "On Battery")
	assert.Assert(t, got["operating_mode"].At.Equal(at))
}

func TestDiff_Baseline(t *testing.T) {
	assert.Assert(t, Diff(nil, &status.Snapshot{Warnings: [3]uint16{0xFFFF, 0xFFFF, 0xFFFF}}) == nil)
	s := &status.Snapshot{OperatingModeName: "Online"}
	assert.Equal(t, len(Diff(s, s)), 0)
}

func TestLinkEvent(t *testing.T) {
	e := LinkEvent(time.Now(), status.Link{Health: status.HealthOK}, status.Link{Health: status.HealthError}, errors.New("refused"))
	assert.Equal(t, e.Kind, KindLink)
	assert.Equal(t, e.From, "ok")
	assert.Equal(t, e.To, "error")
	assert.Equal(t, e.Detail, "refused")
}

func TestStore_InsertRecent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, key := range []string{"power_fail", "on_battery", "battery_test_start"} {
		_, err := s.Insert(ctx, Event{
			At:   base.Add(time.Duration(i) * time.Second),
			Kind: KindWarning,
			Key:  key,
			From: "OFF",
			To:   "ON",
		})
		assert.NilError(t, err)
	}

	events, err := s.Recent(ctx, 2)
	assert.NilError(t, err)
	assert.Equal(t, len(events), 2)
	assert.Equal(t, events[0].Key, "battery_test_start")
	assert.Equal(t, events[1].Key, "on_battery")
	assert.Assert(t, events[0].ID != "")
	assert.Assert(t, events[0].At.Equal(base.Add(2*time.Second)))
	assert.Equal(t, events[0].Kind, KindWarning)
	assert.Equal(t, events[0].To, "ON")
}

func TestStore_FillsIDAndTime(t *testing.T) {
	s := openTemp(t)

	e, err := s.Insert(context.Background(), Event{Kind: KindCommand, Key: "startup_delay", To: "30"})
	assert.NilError(t, err)
	assert.Assert(t, e.ID != "")
	assert.Assert(t, !e.At.IsZero())
}

func TestStore_ReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	s, err := Open(path)
	assert.NilError(t, err)
	_, err = s.Insert(context.Background(), Event{Kind: KindLink, Key: "link", To: "ok"})
	assert.NilError(t, err)
	assert.NilError(t, s.Close())

	s, err = Open(path)
	assert.NilError(t, err)
	defer s.Close()
	events, err := s.Recent(context.Background(), 10)
	assert.NilError(t, err)
	assert.Equal(t, len(events), 1)
}

type memInserter struct {
	mu     sync.Mutex
	events []Event
}

// Insert fails on a cancelled context, as database/sql does.
func (m *memInserter) Insert(ctx context.Context, e Event) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return e, nil
}

func (m *memInserter) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestWriter_DrainsOnShutdown(t *testing.T) {
	db := &memInserter{}
	w := NewWriter(db, 8, zerolog.Nop())

	for i := 0; i < 5; i++ {
		w.Record(Event{Kind: KindCommand, Key: "battery_test_start"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	assert.Equal(t, db.len(), 5)
}

func TestWriter_CancelledWhileRunningKeepsQueuedEvents(t *testing.T) {
	for round := 0; round < 20; round++ {
		db := &memInserter{}
		w := NewWriter(db, 64, zerolog.Nop())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			w.Run(ctx)
			close(done)
		}()

		for i := 0; i < 32; i++ {
			w.Record(Event{Kind: KindWarning, Key: "power_fail"})
		}
		cancel()
		<-done

		assert.Equal(t, db.len(), 32, "round %d", round)
	}
}

func TestWriter_DropsWhenFull(t *testing.T) {
	db := &memInserter{}
	w := NewWriter(db, 2, zerolog.Nop())

	for i := 0; i < 5; i++ {
		w.Record(Event{Kind: KindCommand, Key: "k"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	assert.Equal(t, db.len(), 2)
}
