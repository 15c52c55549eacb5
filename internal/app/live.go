package app

import (
	"sync"

	"github.com/MrWong99/vocalis/internal/transcript"
)

// Live is the concurrency boundary around the transcript aggregator. The
// aggregator itself is a serial state machine; Live serialises the ingest
// loop's writes against HTTP reads so handlers can snapshot or reset the
// transcript at any time.
type Live struct {
	mu  sync.Mutex
	agg *transcript.Aggregator
}

// NewLive wraps a fresh aggregator.
func NewLive(opts ...transcript.Option) *Live {
	return &Live{agg: transcript.New(opts...)}
}

// Ingest folds one event into the transcript and returns the outcome together
// with a snapshot of the resulting entries. The snapshot is taken under the
// same lock, so it is consistent with the outcome.
func (l *Live) Ingest(ev transcript.RawEvent) (transcript.Outcome, []transcript.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.agg.Ingest(ev)
	return out, l.agg.Entries()
}

// Entries returns a snapshot of the current transcript.
func (l *Live) Entries() []transcript.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.agg.Entries()
}

// Len returns the number of entries in the transcript.
func (l *Live) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.agg.Len()
}

// Reset clears the transcript and the dedup ledger.
func (l *Live) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.agg.Reset()
}
