package eventlog

import (
	"context"

	"github.com/rs/zerolog"
)

// Inserter is the write side of a Store.
type Inserter interface {
	Insert(ctx context.Context, e Event) (Event, error)
}

// Writer queues events from any goroutine and inserts them from Run.
type Writer struct {
	db  Inserter
	ch  chan Event
	log zerolog.Logger
}

// NewWriter creates a writer with a queue of buffer events.
func NewWriter(db Inserter, buffer int, logger zerolog.Logger) *Writer {
	if buffer <= 0 {
		buffer = 64
	}
	return &Writer{db: db, ch: make(chan Event, buffer), log: logger}
}

// Record queues e. Never blocks: when the queue is full the event is dropped.
func (w *Writer) Record(e Event) {
	select {
	case w.ch <- e:
	default:
		w.log.Warn().Str("kind", string(e.Kind)).Str("key", e.Key).Msg("event queue full, dropping event")
	}
}

// Run inserts queued events until ctx is cancelled, then drains what is left.
func (w *Writer) Run(ctx context.Context) {
	w.log.Debug().Msg("event writer started")
	defer w.log.Debug().Msg("event writer stopped")

	for {
		select {
		case e := <-w.ch:
			// select may pick this case after cancellation; the insert
			// must still land.
			w.insert(context.WithoutCancel(ctx), e)
		case <-ctx.Done():
			// Process any remaining events in the buffer before shutting down
			for {
				select {
				case e := <-w.ch:
					w.insert(context.Background(), e)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) insert(ctx context.Context, e Event) {
	if _, err := w.db.Insert(ctx, e); err != nil {
		w.log.Error().Err(err).Str("key", e.Key).Msg("failed to insert event")
	}
}
