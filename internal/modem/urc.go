package modem

import (
	"strconv"
	"strings"

	"github.com/wkchan/callgw/internal/at"
)

// Event is a typed unsolicited modem notification. Events are delivered to
// the call state machine in wire order, never reordered or coalesced.
type Event interface {
	event()
}

// RingEvent signals an inbound call. RING carries no number; the caller id
// arrives in a following +CLIP line, which is dispatched as a second
// RingEvent with CallerID set.
type RingEvent struct {
	CallerID string
}

// CallStatusEvent carries the call legs reported by +CLCC, either as a URC or
// from a solicited poll.
type CallStatusEvent struct {
	Legs []CallLeg
}

// CarrierLostEvent signals the remote side dropped: NO CARRIER, and for dial
// attempts the equivalent BUSY / NO ANSWER / NO DIALTONE results.
type CarrierLostEvent struct{}

// SignalEvent is an unsolicited signal strength report.
type SignalEvent struct {
	RSSI int
}

// DownEvent signals the transport failed and could not be reconnected. Any
// open call must be closed as failed.
type DownEvent struct {
	Err error
}

// UnknownEvent wraps a line no classifier recognized. Diagnostic only, never
// fatal; modem firmwares emit all sorts of lines.
type UnknownEvent struct {
	Line string
}

func (RingEvent) event()        {}
func (CallStatusEvent) event()  {}
func (CarrierLostEvent) event() {}
func (SignalEvent) event()      {}
func (DownEvent) event()        {}
func (UnknownEvent) event()     {}

// Call leg states as reported in the <stat> field of +CLCC.
const (
	LegActive   = 0
	LegHeld     = 1
	LegDialing  = 2
	LegAlerting = 3
	LegIncoming = 4
	LegWaiting  = 5
)

// CallLeg is one endpoint's state from a +CLCC report.
type CallLeg struct {
	ID        int
	Direction int // 0 mobile originated, 1 mobile terminated
	State     int
	Number    string
}

// ClassifyURC maps a raw line arriving outside a command's response body to a
// typed event.
func ClassifyURC(line string) Event {
	switch line {
	case at.UrcRing:
		return RingEvent{}
	case at.UrcNoCarrier, at.UrcBusy, at.UrcNoAnswer, at.UrcNoDialtone:
		return CarrierLostEvent{}
	}

	switch {
	case strings.HasPrefix(line, at.UrcCallerID):
		return RingEvent{CallerID: parseQuoted(line)}
	case strings.HasPrefix(line, at.UrcCallStatus):
		if leg, ok := parseCLCCLine(line); ok {
			return CallStatusEvent{Legs: []CallLeg{leg}}
		}
		return UnknownEvent{Line: line}
	case strings.HasPrefix(line, at.UrcSignal):
		if rssi, _, ok := parseCSQ(line); ok {
			return SignalEvent{RSSI: rssi}
		}
		return UnknownEvent{Line: line}
	default:
		return UnknownEvent{Line: line}
	}
}

// ParseCallLegs extracts all +CLCC legs from a solicited AT+CLCC response
// body. A body with no +CLCC lines means no legs exist.
func ParseCallLegs(lines []string) []CallLeg {
	var legs []CallLeg
	for _, line := range lines {
		if !strings.HasPrefix(line, at.UrcCallStatus) {
			continue
		}
		if leg, ok := parseCLCCLine(line); ok {
			legs = append(legs, leg)
		}
	}
	return legs
}

// HasActiveLeg reports whether any leg is in the active (connected) state.
func HasActiveLeg(legs []CallLeg) bool {
	for _, leg := range legs {
		if leg.State == LegActive {
			return true
		}
	}
	return false
}

// parseCLCCLine parses `+CLCC: <id>,<dir>,<stat>,<mode>,<mpty>,"<number>",<type>`.
// The number and type fields are optional on some firmwares.
func parseCLCCLine(line string) (CallLeg, bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, at.UrcCallStatus))
	fields := strings.Split(rest, ",")
	if len(fields) < 3 {
		return CallLeg{}, false
	}

	id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return CallLeg{}, false
	}
	dir, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return CallLeg{}, false
	}
	stat, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return CallLeg{}, false
	}

	leg := CallLeg{ID: id, Direction: dir, State: stat}
	if len(fields) >= 6 {
		leg.Number = strings.Trim(strings.TrimSpace(fields[5]), "\"")
	}
	return leg, true
}

// parseQuoted extracts the first double-quoted field of a URC, e.g. the
// number in `+CLIP: "+85398765432",129`.
func parseQuoted(line string) string {
	parts := strings.Split(line, "\"")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}

// parseCSQ parses `+CSQ: <rssi>,<ber>`.
func parseCSQ(line string) (rssi, ber int, ok bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, at.UrcSignal))
	parts := strings.Split(rest, ",")
	if len(parts) < 2 {
		return 0, 0, false
	}
	rssi, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	ber, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	return rssi, ber, true
}
