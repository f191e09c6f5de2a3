// internal/publisher/state_writer.go
package publisher

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// stateWriter publishes per-entity state topics.
// It only sends values that changed since the last successful publish.
type stateWriter struct {
	cli    brokerClient
	topics Topics

	needFull bool
	last     map[string]string
}

func newStateWriter(cli brokerClient, topics Topics) *stateWriter {
	return &stateWriter{
		cli:      cli,
		topics:   topics,
		needFull: true, // full re-assert on first write
		last:     map[string]string{},
	}
}

// invalidate forces the next write to re-assert every value.
func (sw *stateWriter) invalidate() {
	sw.needFull = true
}

// WriteState delivers key → payload pairs as retained state messages.
// After any publish failure every key is re-asserted as it next arrives.
func (sw *stateWriter) WriteState(values map[string]string) error {
	if sw.cli == nil {
		return errors.New("state writer: no broker client")
	}

	if sw.needFull {
		// Forget what was sent; every key given from now on is re-asserted once.
		sw.last = map[string]string{}
		sw.needFull = false
	}

	// Stable order keeps broker traffic reproducible.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []string
	for _, k := range keys {
		v := values[k]
		if prev, ok := sw.last[k]; ok && prev == v {
			continue
		}
		if err := sw.cli.Publish(sw.topics.State(k), true, []byte(v)); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", k, err))
			delete(sw.last, k)
			continue
		}
		sw.last[k] = v
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt; re-assert on next call.
		sw.needFull = true
		return errors.New("state writer: " + strings.Join(errs, " | "))
	}
	return nil
}
