// Package transcript implements the incremental transcript aggregation engine.
//
// A realtime voice session emits an unbounded stream of heterogeneous,
// vendor-defined events: incremental "delta" fragments and terminal
// "done"/"completed" variants for the same logical utterance, with the same
// semantic event spelled differently by different protocol revisions, and
// everything delivered at-least-once. The [Aggregator] consumes these events
// one at a time and maintains a clean, deduplicated, chronologically ordered
// conversation transcript: fragments coalesce into a growing partial entry,
// a terminal event freezes it, and duplicate redelivery is a no-op.
//
// The Aggregator is deliberately not safe for concurrent use. It is a pure
// in-memory state transition invoked serially, once per observed event, by a
// caller that guarantees arrival order (see [internal/app]). It never blocks,
// performs I/O, or surfaces an error — a corrupt event must not stop the
// events behind it.
package transcript

import (
	"strconv"
	"time"
)

// Outcome describes what a single Ingest call did to the transcript. It is
// informational only; callers re-render from the full entry sequence either way.
type Outcome int

const (
	// OutcomeIgnored means the event was lifecycle noise, unrecognised, or
	// carried an empty payload.
	OutcomeIgnored Outcome = iota

	// OutcomeDuplicate means the event id had already been processed.
	OutcomeDuplicate

	// OutcomeAppended means a new entry was appended.
	OutcomeAppended

	// OutcomeMerged means a delta was appended to the trailing partial entry.
	OutcomeMerged

	// OutcomeFinalized means the trailing partial entry was frozen with its
	// final text.
	OutcomeFinalized
)

// String returns a short name for the outcome, used as a metric attribute.
func (o Outcome) String() string {
	switch o {
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeAppended:
		return "appended"
	case OutcomeMerged:
		return "merged"
	case OutcomeFinalized:
		return "finalized"
	}
	return "ignored"
}

// Aggregator folds a serial stream of raw provider events into an ordered
// transcript. The zero value is not usable; construct with [New].
type Aggregator struct {
	entries []Entry
	seen    map[string]struct{}

	now    func() time.Time
	nextID int
}

// Option is a functional option for [New].
type Option func(*Aggregator)

// WithClock overrides the timestamp source. Used in tests for deterministic
// entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an empty Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		seen: make(map[string]struct{}),
		now:  time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Ingest processes one raw event and returns what it did.
//
// The contract, in order:
//
//  1. An event id seen before is a no-op (redelivery tolerance). Events
//     without an id are processed best-effort with no dedup tracking.
//  2. Unrecognised types and empty payloads are no-ops; the id is still
//     recorded so a redelivered copy stays a no-op.
//  3. Delta kinds append to the trailing entry when it is partial and the
//     speaker matches; otherwise they open a new partial entry.
//  4. Complete kinds replace the trailing entry's text and freeze it when it
//     is partial — regardless of speaker, matching upstream behaviour —
//     and otherwise append a new finalized entry.
//  5. Complete-as-new kinds always append a new finalized entry.
func (a *Aggregator) Ingest(ev RawEvent) Outcome {
	if ev.EventID != "" {
		if _, dup := a.seen[ev.EventID]; dup {
			return OutcomeDuplicate
		}
	}

	norm := normalize(ev)
	if norm.kind == KindIgnored {
		a.record(ev.EventID)
		return OutcomeIgnored
	}

	var out Outcome
	switch {
	case norm.kind.isDelta():
		out = a.applyDelta(ev.EventID, norm)
	case norm.kind.isCompleteAsNew():
		a.append(ev.EventID, norm.speaker, norm.text, false)
		out = OutcomeAppended
	case norm.kind.isComplete():
		out = a.applyComplete(ev.EventID, norm)
	}

	a.record(ev.EventID)
	return out
}

// applyDelta grows the trailing partial entry of the same speaker, or opens a
// new partial entry. Merge targeting is purely "last entry is partial and
// speaker-matching": without ids on the fragments there is nothing better to
// key on, and two interleaved partial streams of the same speaker would be
// misattributed. Accepted limitation, kept for compatibility with upstream.
func (a *Aggregator) applyDelta(eventID string, norm normalized) Outcome {
	if last := a.last(); last != nil && last.Partial && last.Speaker == norm.speaker {
		last.Message += norm.text
		return OutcomeMerged
	}
	a.append(eventID, norm.speaker, norm.text, true)
	return OutcomeAppended
}

// applyComplete freezes the trailing partial entry with the final text, or
// appends a new finalized entry when nothing is open. Finalization replaces
// content: the terminal event carries the authoritative full text, so the
// accumulated deltas are discarded rather than appended to.
func (a *Aggregator) applyComplete(eventID string, norm normalized) Outcome {
	if last := a.last(); last != nil && last.Partial {
		last.Message = norm.text
		last.Partial = false
		return OutcomeFinalized
	}
	a.append(eventID, norm.speaker, norm.text, false)
	return OutcomeAppended
}

// append adds a new entry. When the originating event carried no id, a
// session-locally unique fallback is generated.
func (a *Aggregator) append(eventID string, speaker Speaker, text string, partial bool) {
	id := eventID
	if id == "" {
		a.nextID++
		id = localID(a.nextID)
	}
	a.entries = append(a.entries, Entry{
		ID:        id,
		Speaker:   speaker,
		Message:   text,
		Timestamp: a.now(),
		Partial:   partial,
	})
}

// record remembers a processed event id. Empty ids are not tracked.
func (a *Aggregator) record(eventID string) {
	if eventID != "" {
		a.seen[eventID] = struct{}{}
	}
}

// last returns the trailing entry for in-place mutation, or nil when the
// transcript is empty.
func (a *Aggregator) last() *Entry {
	if len(a.entries) == 0 {
		return nil
	}
	return &a.entries[len(a.entries)-1]
}

// Entries returns a copy of the ordered transcript. Mutating the returned
// slice does not affect the aggregator.
func (a *Aggregator) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the number of entries in the transcript.
func (a *Aggregator) Len() int { return len(a.entries) }

// Reset discards the transcript and the dedup ledger together. Called when
// the session restarts (e.g. a new data channel opens); a previously seen
// event id is processable again afterwards. Scoping the ledger to the session
// is what keeps it from growing for the lifetime of the process.
func (a *Aggregator) Reset() {
	a.entries = nil
	a.seen = make(map[string]struct{})
	a.nextID = 0
}

func localID(n int) string {
	return "local-" + strconv.Itoa(n)
}
