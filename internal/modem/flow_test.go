package modem_test

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wkchan/callgw/internal/modem"
	"github.com/wkchan/callgw/internal/session"
)

// runModemSim scripts a dongle behind the fake port: OK to everything,
// inCall tracks whether AT+CLCC polls should report the connected leg.
func runModemSim(t *testing.T, port *fakePort, inCall *atomic.Bool) {
	t.Helper()
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	go func() {
		for {
			select {
			case <-done:
				return
			case cmd := <-port.writes:
				switch {
				case strings.HasPrefix(cmd, "ATD"):
					inCall.Store(true)
					port.SendLine("OK")
				case cmd == "ATA":
					inCall.Store(true)
					port.SendLine("OK")
				case cmd == "ATH":
					inCall.Store(false)
					port.SendLine("OK")
				case cmd == "AT+CLCC":
					if inCall.Load() {
						port.SendLine(`+CLCC: 1,0,0,0,0,"+85312345678",145`)
					}
					port.SendLine("OK")
				default:
					port.SendLine("OK")
				}
			}
		}
	}()
}

// startStack wires the full path: fake port, transport, engine loop, state
// machine consuming the event stream, and the call-status poller.
func startStack(t *testing.T, port *fakePort) (*modem.Machine, *sessRecorder) {
	t.Helper()
	eng := startEngine(t, port)
	sess := &sessRecorder{}
	machine := modem.NewMachine(eng, sess)
	go machine.Run(eng.Events())

	poller := modem.NewPoller(eng, machine, 20*time.Millisecond)
	go poller.Run()
	t.Cleanup(poller.Stop)

	return machine, sess
}

func waitState(t *testing.T, machine *modem.Machine, want modem.State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for machine.State() != want {
		select {
		case <-deadline:
			t.Fatalf("state never reached %s, stuck at %s", want, machine.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCallFlowOverWire(t *testing.T) {
	t.Run("Outgoing call survives status polling", func(t *testing.T) {
		port := newFakePort()
		var inCall atomic.Bool
		runModemSim(t, port, &inCall)
		machine, sess := startStack(t, port)

		if err := machine.Dial("+85312345678"); err != nil {
			t.Fatalf("dial failed: %v", err)
		}
		waitState(t, machine, modem.StateActive)

		// Several poll rounds with the leg still up must not end the call.
		time.Sleep(150 * time.Millisecond)
		if got := machine.State(); got != modem.StateActive {
			t.Fatalf("polling ended a live call: state=%s", got)
		}
		if _, ends := sess.counts(); ends != 0 {
			t.Fatalf("live call was closed: %+v", sess.lastEnded())
		}

		// Peer drops the call.
		inCall.Store(false)
		port.SendLine("NO CARRIER")
		waitState(t, machine, modem.StateIdle)

		if sess.lastEnded().Status != session.StatusPeerHangup {
			t.Errorf("expected peer-hangup, got %s", sess.lastEnded().Status)
		}
		started := sess.lastStarted()
		if started.Direction != session.Outgoing || started.Number != "+85312345678" {
			t.Errorf("unexpected CallStarted: %+v", started)
		}
	})

	t.Run("Inbound ring, answer, hangup", func(t *testing.T) {
		port := newFakePort()
		var inCall atomic.Bool
		runModemSim(t, port, &inCall)
		machine, sess := startStack(t, port)

		port.SendLine("RING")
		waitState(t, machine, modem.StateRinging)

		port.SendLine(`+CLIP: "+85398765432",129`)
		deadline := time.After(2 * time.Second)
		for {
			if starts, _ := sess.counts(); starts == 1 {
				break
			}
			select {
			case <-deadline:
				t.Fatal("CallStarted never emitted after caller id arrived")
			case <-time.After(5 * time.Millisecond):
			}
		}
		started := sess.lastStarted()
		if started.Direction != session.Incoming || started.Number != "+85398765432" {
			t.Fatalf("unexpected CallStarted: %+v", started)
		}

		if err := machine.Answer(); err != nil {
			t.Fatalf("answer failed: %v", err)
		}
		waitState(t, machine, modem.StateActive)

		if err := machine.Hangup(); err != nil {
			t.Fatalf("hangup failed: %v", err)
		}
		// The teardown poll reports no legs and closes the record.
		waitState(t, machine, modem.StateIdle)

		if sess.lastEnded().Status != session.StatusCompleted {
			t.Errorf("expected completed, got %s", sess.lastEnded().Status)
		}
		starts, ends := sess.counts()
		if starts != 1 || ends != 1 {
			t.Errorf("record parity broken: %d starts, %d ends", starts, ends)
		}
	})
}
