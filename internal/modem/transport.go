package modem

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/wkchan/callgw/pkg/logger"
	"go.bug.st/serial"
)

// Port is an established bidirectional byte stream to the modem. Real
// deployments use a serial port; tests use channel-backed fakes.
type Port interface {
	io.ReadWriteCloser
}

// PortOpener opens a Port. Abstracted so the transport can reconnect and so
// tests can substitute fakes.
type PortOpener func(name string, baud int) (Port, error)

// OpenSerial opens a serial device via go.bug.st/serial.
func OpenSerial(name string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, name, err)
	}
	return port, nil
}

// Line is one CRLF-terminated line read from the port, or a read error.
type Line struct {
	Text string
	Err  error
}

// Transport owns the physical line. A dedicated read goroutine turns the byte
// stream into lines on the rx channel; writes go through WriteLine. On an I/O
// error the engine asks for exactly one Reconnect before giving up on the
// current operation.
type Transport struct {
	name string
	baud int
	open PortOpener

	mu   sync.Mutex // guards port swap during reconnect
	port Port

	rx       chan Line
	stop     chan struct{}
	stopOnce sync.Once
}

func NewTransport(name string, baud int, open PortOpener) *Transport {
	if open == nil {
		open = OpenSerial
	}
	return &Transport{
		name: name,
		baud: baud,
		open: open,
		rx:   make(chan Line, 100), // buffer to prevent blocking the reader
		stop: make(chan struct{}),
	}
}

// Open opens the port and starts the read goroutine. Fails with
// ErrPortUnavailable if the device cannot be opened.
func (t *Transport) Open() error {
	port, err := t.open(t.name, t.baud)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.port = port
	t.mu.Unlock()
	go t.readLoop(port)
	logger.Log.Infof("Transport opened on %s @ %d", t.name, t.baud)
	return nil
}

// Lines returns the channel of incoming lines. Exactly one consumer (the
// engine loop) must read it so no line is consumed twice.
func (t *Transport) Lines() <-chan Line {
	return t.rx
}

func (t *Transport) WriteLine(text string) error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return fmt.Errorf("%w: port not open", ErrIO)
	}
	if _, err := port.Write([]byte(text + "\r\n")); err != nil {
		return fmt.Errorf("%w: write %q: %v", ErrIO, text, err)
	}
	return nil
}

// Reconnect closes the current port and reopens it once. The old read
// goroutine exits on its read error; a new one is started for the new port.
func (t *Transport) Reconnect() error {
	t.mu.Lock()
	if t.port != nil {
		t.port.Close()
		t.port = nil
	}
	t.mu.Unlock()

	port, err := t.open(t.name, t.baud)
	if err != nil {
		logger.Log.Errorf("Reconnect to %s failed: %v", t.name, err)
		return fmt.Errorf("%w: reconnect: %v", ErrIO, err)
	}

	t.mu.Lock()
	t.port = port
	t.mu.Unlock()
	go t.readLoop(port)
	logger.Log.Warnf("Transport reconnected on %s", t.name)
	return nil
}

func (t *Transport) Close() error {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

// readLoop reads CRLF lines from one port instance until it errors. A blocked
// Read is released by closing the port (Close or Reconnect).
func (t *Transport) readLoop(port Port) {
	reader := bufio.NewReader(port)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			select {
			case <-t.stop:
				return
			default:
			}
			select {
			case t.rx <- Line{Err: err}:
			case <-t.stop:
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		select {
		case t.rx <- Line{Text: line}:
		case <-t.stop:
			return
		}
	}
}
