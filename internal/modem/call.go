package modem

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wkchan/callgw/internal/at"
	"github.com/wkchan/callgw/internal/session"
	"github.com/wkchan/callgw/pkg/logger"
)

// State is the call state. Exactly one value at a time; Idle is re-enterable
// indefinitely.
type State int

const (
	// StateIdle means no call exists and no record is open.
	StateIdle State = iota
	// StateDialing means an outgoing call was placed and is not yet connected.
	StateDialing
	// StateRinging means an inbound call is ringing, not yet answered.
	StateRinging
	// StateActive means a call is connected.
	StateActive
	// StateTerminating means the call is being torn down, awaiting the modem
	// to report no remaining active leg.
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDialing:
		return "dialing"
	case StateRinging:
		return "ringing"
	case StateActive:
		return "active"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// ErrInvalidNumber is returned by Dial for numbers that are not plausible
// dial strings.
var ErrInvalidNumber = errors.New("invalid dial number")

// Record is the open call's bookkeeping. At most one record is open at any
// time; it exists iff the state is not Idle. Ownership transfers to the
// session logger on closure.
type Record struct {
	Direction session.Direction
	Number    string
	OpenedAt  time.Time
	StartedAt time.Time // zero until the call connects
	EndedAt   time.Time
	Status    session.Status

	started bool // CallStarted emitted
}

// Poker lets the machine request an immediate call-status poll after state
// changing commands instead of waiting for the next tick.
type Poker interface {
	Poke()
}

// Machine consumes user call operations and dispatched modem events, holding
// the current call state and the open Record.
type Machine struct {
	mu      sync.Mutex
	exec    Execer
	session session.Logger
	poker   Poker

	state State
	rec   *Record
	now   func() time.Time
}

func NewMachine(exec Execer, sess session.Logger) *Machine {
	if sess == nil {
		sess = session.Discard{}
	}
	return &Machine{
		exec:    exec,
		session: sess,
		now:     time.Now,
	}
}

// SetPoker attaches the call-status poller. Optional; without it transitions
// out of Dialing/Terminating rely on URCs and periodic polls alone.
func (m *Machine) SetPoker(p Poker) {
	m.mu.Lock()
	m.poker = p
	m.mu.Unlock()
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot describes the current call for status APIs.
type Snapshot struct {
	State     string `json:"state"`
	Direction string `json:"direction,omitempty"`
	Number    string `json:"number,omitempty"`
	Since     string `json:"since,omitempty"`
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{State: m.state.String()}
	if m.rec != nil {
		s.Direction = string(m.rec.Direction)
		s.Number = m.rec.Number
		s.Since = m.rec.OpenedAt.Format(time.RFC3339)
	}
	return s
}

// Dial places an outgoing voice call. Valid only in Idle. The command
// exchange runs outside the machine lock so events keep flowing while ATD is
// in flight.
func (m *Machine) Dial(number string) error {
	if !validNumber(number) {
		return fmt.Errorf("%w: %q", ErrInvalidNumber, number)
	}

	m.mu.Lock()
	if m.state != StateIdle {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: dial while %s", ErrInvalidState, state)
	}
	m.openRecord(session.Outgoing, number)
	m.rec.started = true
	m.session.CallStarted(session.CallStarted{
		Direction: session.Outgoing,
		Number:    number,
		At:        m.rec.OpenedAt,
	})
	m.setState(StateDialing)
	rec := m.rec
	m.mu.Unlock()

	_, err := m.exec.Exec(Command{Text: at.Dial(number)})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		// Explicit rejection or silence: the dial never happened. An event
		// may have resolved the call meanwhile; close only if the record is
		// still ours.
		if m.rec == rec && m.state == StateDialing {
			m.closeRecord(session.StatusFailed)
			m.setState(StateIdle)
		}
		return err
	}

	m.poke()
	return nil
}

// Answer accepts a ringing inbound call. Valid only in RingingInbound.
func (m *Machine) Answer() error {
	m.mu.Lock()
	if m.state != StateRinging {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: answer while %s", ErrInvalidState, state)
	}
	rec := m.rec
	m.mu.Unlock()

	_, err := m.exec.Exec(Command{Text: at.CmdAnswer})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		// No side effect: still ringing, and a NO CARRIER will close the
		// record as missed if the caller gave up.
		return err
	}
	if m.rec != rec || m.state != StateRinging {
		// The caller gave up while ATA was in flight; the record is already
		// closed.
		logger.Log.Warnf("Call resolved while answering")
		return nil
	}

	m.emitStarted()
	m.rec.StartedAt = m.now()
	m.setState(StateActive)
	return nil
}

// Hangup ends the call from our side. Valid in Dialing and Active. The
// record closes once the modem reports no active leg.
func (m *Machine) Hangup() error {
	m.mu.Lock()
	if m.state != StateActive && m.state != StateDialing {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: hangup while %s", ErrInvalidState, state)
	}
	m.setState(StateTerminating)
	m.mu.Unlock()

	_, err := m.exec.Exec(Command{Text: at.CmdHangup})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		// Stay in Terminating; the poll loop resolves the real leg state.
		logger.Log.Warnf("ATH failed: %v", err)
	}
	m.poke()
	return err
}

// Run consumes dispatched events until the channel closes.
func (m *Machine) Run(events <-chan Event) {
	for ev := range events {
		m.HandleEvent(ev)
	}
}

// HandleEvent applies one modem event to the state machine. Events that are
// not meaningful in the current state are logged and ignored; they have no
// side effect.
func (m *Machine) HandleEvent(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev := ev.(type) {
	case RingEvent:
		m.onRing(ev)
	case CallStatusEvent:
		m.onCallStatus(ev)
	case CarrierLostEvent:
		m.onCarrierLost()
	case DownEvent:
		m.onDown(ev)
	case SignalEvent:
		logger.Log.Debugf("Signal report: rssi=%d", ev.RSSI)
	case UnknownEvent:
		// Already logged by the dispatcher.
	}
}

func (m *Machine) onRing(ev RingEvent) {
	switch m.state {
	case StateIdle:
		number := ev.CallerID
		if number == "" {
			number = "unknown"
		}
		m.openRecord(session.Incoming, number)
		m.setState(StateRinging)
		if ev.CallerID != "" {
			m.emitStarted()
		}
		// With bare RING, hold the CallStarted emission until +CLIP names
		// the caller or the call resolves.

	case StateRinging:
		// Repeated RING, or the +CLIP that follows the first RING.
		if ev.CallerID != "" && m.rec.Number == "unknown" {
			m.rec.Number = ev.CallerID
		}
		if ev.CallerID != "" {
			m.emitStarted()
		}

	default:
		// Ring during an outgoing dial or active call (call waiting) is out
		// of scope; ignore without side effect.
		logger.Log.Debugf("RING ignored in state %s", m.state)
	}
}

func (m *Machine) onCallStatus(ev CallStatusEvent) {
	switch m.state {
	case StateDialing:
		if HasActiveLeg(ev.Legs) {
			m.rec.StartedAt = m.now()
			m.setState(StateActive)
		}

	case StateRinging:
		// A +CLCC incoming leg may carry the caller number when CLIP is off.
		for _, leg := range ev.Legs {
			if leg.State == LegIncoming && leg.Number != "" && m.rec.Number == "unknown" {
				m.rec.Number = leg.Number
				m.emitStarted()
			}
		}

	case StateActive:
		if !HasActiveLeg(ev.Legs) {
			// Peer ended the call without NO CARRIER reaching us first.
			m.setState(StateTerminating)
			m.closeRecord(session.StatusPeerHangup)
			m.setState(StateIdle)
		}

	case StateTerminating:
		if !HasActiveLeg(ev.Legs) {
			m.closeRecord(session.StatusCompleted)
			m.setState(StateIdle)
		}
	}
}

func (m *Machine) onCarrierLost() {
	switch m.state {
	case StateDialing:
		m.closeRecord(session.StatusFailed)
		m.setState(StateIdle)

	case StateRinging:
		// Caller hung up before we answered.
		m.closeRecord(session.StatusMissed)
		m.setState(StateIdle)

	case StateActive:
		// Peer dropped: pass through Terminating, no ATH from our side.
		m.setState(StateTerminating)
		m.closeRecord(session.StatusPeerHangup)
		m.setState(StateIdle)

	case StateTerminating:
		// NO CARRIER after our ATH is the normal end.
		m.closeRecord(session.StatusCompleted)
		m.setState(StateIdle)
	}
}

func (m *Machine) onDown(ev DownEvent) {
	if m.state == StateIdle {
		return
	}
	logger.Log.Errorf("Transport down during call: %v", ev.Err)
	m.closeRecord(session.StatusFailed)
	m.setState(StateIdle)
}

func (m *Machine) openRecord(dir session.Direction, number string) {
	m.rec = &Record{
		Direction: dir,
		Number:    number,
		OpenedAt:  m.now(),
	}
}

// emitStarted emits CallStarted exactly once per record.
func (m *Machine) emitStarted() {
	if m.rec == nil || m.rec.started {
		return
	}
	m.rec.started = true
	m.session.CallStarted(session.CallStarted{
		Direction: m.rec.Direction,
		Number:    m.rec.Number,
		At:        m.rec.OpenedAt,
	})
}

// closeRecord sets the terminal status and hands the record to the session
// logger. A record is never left dangling: CallStarted is emitted first if
// it has not been.
func (m *Machine) closeRecord(status session.Status) {
	if m.rec == nil {
		return
	}
	m.emitStarted()
	m.rec.EndedAt = m.now()
	m.rec.Status = status
	m.session.CallEnded(session.CallEnded{
		At:     m.rec.EndedAt,
		Status: status,
	})
	logger.Log.Infof("Call %s %s closed: %s", m.rec.Direction, m.rec.Number, status)
	m.rec = nil
}

func (m *Machine) setState(s State) {
	if m.state == s {
		return
	}
	logger.Log.Debugf("Call state %s -> %s", m.state, s)
	m.state = s
}

func (m *Machine) poke() {
	if m.poker != nil {
		m.poker.Poke()
	}
}

func validNumber(number string) bool {
	if number == "" {
		return false
	}
	for i, r := range number {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' && i == 0:
		case r == '*' || r == '#':
		default:
			return false
		}
	}
	return !strings.HasPrefix(number, "+") || len(number) > 1
}
