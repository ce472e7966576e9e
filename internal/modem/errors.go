package modem

import (
	"errors"
	"fmt"
)

var (
	// ErrPortUnavailable is returned when the serial device cannot be opened.
	// Fatal at startup.
	ErrPortUnavailable = errors.New("serial port unavailable")

	// ErrIO is returned when transport I/O fails and the single automatic
	// reconnect attempt did not recover the line.
	ErrIO = errors.New("transport i/o error")

	// ErrCommandTimeout is returned after a command received no terminal
	// response within its timeout on every attempt.
	ErrCommandTimeout = errors.New("command timeout")

	// ErrInvalidState is returned when a call operation is attempted in a
	// state that does not permit it. The operation has no side effect.
	ErrInvalidState = errors.New("invalid call state for operation")

	// ErrClosed is returned when the engine has been stopped.
	ErrClosed = errors.New("modem engine closed")
)

// RejectedError is an explicit modem rejection (ERROR or +CME ERROR: <n>).
// Rejections are surfaced immediately and never retried; retrying is only
// for silence.
type RejectedError struct {
	Code int    // CME error code, 0 for plain ERROR
	Line string // raw terminal line
}

func (e *RejectedError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("modem rejected command: CME error %d", e.Code)
	}
	return "modem rejected command"
}

func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

func IsCommandTimeout(err error) bool {
	return errors.Is(err, ErrCommandTimeout)
}

func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
