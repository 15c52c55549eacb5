package health

import (
	"context"
	"errors"
)

// Pinger is satisfied by anything that can probe a backing store, such as a
// pgx connection pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionStatus reports whether a live realtime model session exists.
type SessionStatus interface {
	Connected() bool
}

// ArchiveChecker returns a Checker that pings the transcript archive. A nil
// pinger means archiving is disabled and the check always passes.
func ArchiveChecker(p Pinger) Checker {
	return Checker{
		Name: "archive",
		Check: func(ctx context.Context) error {
			if p == nil {
				return nil
			}
			return p.Ping(ctx)
		},
	}
}

// RealtimeChecker returns a Checker that fails while no realtime session is
// connected.
func RealtimeChecker(s SessionStatus) Checker {
	return Checker{
		Name: "realtime",
		Check: func(context.Context) error {
			if s == nil || !s.Connected() {
				return errors.New("no realtime session connected")
			}
			return nil
		},
	}
}
