// Package session receives structured call-lifecycle events from the call
// state machine and persists them. The core protocol engine only emits events;
// everything about on-disk naming and database layout lives here.
package session

import "time"

type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// Status is the terminal status a call closes with.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusMissed     Status = "missed"
	StatusPeerHangup Status = "peer-hangup"
)

type CallStarted struct {
	Direction Direction
	Number    string
	At        time.Time
}

type CallEnded struct {
	At     time.Time
	Status Status
}

// Logger consumes call-lifecycle events. For every CallStarted there is
// exactly one matching CallEnded before the next CallStarted.
type Logger interface {
	CallStarted(ev CallStarted)
	CallEnded(ev CallEnded)
}

// Multi fans events out to several loggers.
type Multi []Logger

func (m Multi) CallStarted(ev CallStarted) {
	for _, l := range m {
		l.CallStarted(ev)
	}
}

func (m Multi) CallEnded(ev CallEnded) {
	for _, l := range m {
		l.CallEnded(ev)
	}
}

// Discard drops all events. Used by one-shot CLI modes that do not record.
type Discard struct{}

func (Discard) CallStarted(CallStarted) {}
func (Discard) CallEnded(CallEnded)     {}
