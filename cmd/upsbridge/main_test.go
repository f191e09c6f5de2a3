package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/eventlog"
)

type memInserter struct {
	mu   sync.Mutex
	keys []string
}

func (m *memInserter) Insert(ctx context.Context, e eventlog.Event) (eventlog.Event, error) {
	if err := ctx.Err(); err != nil {
		return eventlog.Event{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, e.Key)
	return e, nil
}

func TestDrain_KeepsEventsRecordedDuringShutdown(t *testing.T) {
	db := &memInserter{}
	w := eventlog.NewWriter(db, 8, zerolog.Nop())

	var producers, events sync.WaitGroup
	eventsCtx, stopEvents := context.WithCancel(context.Background())
	events.Add(1)
	go func() {
		defer events.Done()
		w.Run(eventsCtx)
	}()

	// a startup read that finishes only after shutdown began
	ctx, cancel := context.WithCancel(context.Background())
	producers.Add(1)
	go func() {
		defer producers.Done()
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		w.Record(eventlog.Event{Kind: eventlog.KindCommand, Key: "shutdown_delay"})
	}()

	cancel()
	drain(&producers, stopEvents, &events)

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.DeepEqual(t, db.keys, []string{"shutdown_delay"})
}
