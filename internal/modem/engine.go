package modem

import (
	"sync"
	"time"

	"github.com/wkchan/callgw/internal/at"
	"github.com/wkchan/callgw/pkg/logger"
)

// Engine serializes command exchanges on the transport and dispatches
// unsolicited lines as typed events. It is the only consumer of the
// transport's line channel, so a line is never read twice: while an exchange
// is in flight its response loop owns incoming lines, forwarding interleaved
// URCs to the event channel instead of losing them.
type Engine struct {
	tr *Transport

	cmds   chan *commandRequest
	events chan Event

	defaultTimeout time.Duration
	maxRetries     int

	stop     chan struct{}
	stopOnce sync.Once
}

func NewEngine(tr *Transport, defaultTimeout time.Duration, maxRetries int) *Engine {
	if defaultTimeout <= 0 {
		defaultTimeout = 5 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Engine{
		tr:             tr,
		cmds:           make(chan *commandRequest), // unbuffered: one in-flight command
		events:         make(chan Event, 100),
		defaultTimeout: defaultTimeout,
		maxRetries:     maxRetries,
		stop:           make(chan struct{}),
	}
}

// Events returns the unsolicited event stream. The channel is buffered;
// events are dropped with a warning if the consumer falls behind.
func (e *Engine) Events() <-chan Event {
	return e.events
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
	})
}

// Exec sends an AT command and blocks until its terminal response, retry
// exhaustion, or rejection. Concurrent callers are serialized; a second
// caller blocks until the first exchange completes or times out.
func (e *Engine) Exec(cmd Command) (Response, error) {
	if cmd.Timeout <= 0 {
		cmd.Timeout = e.defaultTimeout
	}
	if cmd.MaxRetries == 0 {
		cmd.MaxRetries = e.maxRetries
	}
	if cmd.MaxRetries < 0 {
		// NoRetry: explicit single attempt.
		cmd.MaxRetries = 0
	}

	req := &commandRequest{
		cmd:      cmd,
		respChan: make(chan execResult, 1), // buffered so the loop never blocks responding
	}

	select {
	case e.cmds <- req:
	case <-e.stop:
		return Response{}, ErrClosed
	}

	// Safety bound: the loop answers within attempts*timeout; anything past
	// that means the engine died.
	total := cmd.Timeout*time.Duration(cmd.MaxRetries+1) + time.Second
	select {
	case res := <-req.respChan:
		return res.resp, res.err
	case <-time.After(total):
		return Response{}, ErrCommandTimeout
	}
}

// Run is the main event loop. It must run exactly once; it owns all reads
// from the transport.
func (e *Engine) Run() {
	for {
		select {
		case <-e.stop:
			return

		case req := <-e.cmds:
			if done := e.exchange(req); done {
				return
			}

		case line := <-e.tr.Lines():
			if line.Err != nil {
				e.recoverOrDown(line.Err)
				continue
			}
			e.dispatch(line.Text)
		}
	}
}

// exchange executes one command: write, then read lines until a terminal
// token or timeout, re-issuing the identical command on silence up to
// MaxRetries. Explicit rejections are never retried. Returns true if the
// engine must stop.
func (e *Engine) exchange(req *commandRequest) bool {
	attempts := req.cmd.MaxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			logger.Log.Debugf("TX retry %d/%d: %s", attempt-1, req.cmd.MaxRetries, req.cmd.Text)
		} else {
			logger.Log.Debugf("TX: %s", req.cmd.Text)
		}

		if err := e.tr.WriteLine(req.cmd.Text); err != nil {
			if rerr := e.recoverOrDown(err); rerr != nil {
				req.respond(Response{}, rerr)
				return false
			}
			continue // reconnected, re-issue
		}

		var body []string
		timer := time.NewTimer(req.cmd.Timeout)

	RespLoop:
		for {
			select {
			case <-e.stop:
				timer.Stop()
				req.respond(Response{}, ErrClosed)
				return true

			case <-timer.C:
				break RespLoop // silence: next attempt

			case line := <-e.tr.Lines():
				if line.Err != nil {
					timer.Stop()
					if rerr := e.recoverOrDown(line.Err); rerr != nil {
						req.respond(Response{}, rerr)
						return false
					}
					break RespLoop // reconnected, re-issue
				}

				text := line.Text
				logger.Log.Debugf("RX: %s", text)

				switch at.Classify(text) {
				case at.TypeFinal:
					timer.Stop()
					if text == at.OK {
						req.respond(Response{Lines: body, Final: text}, nil)
					} else {
						req.respond(Response{Lines: body, Final: text}, rejection(text))
					}
					return false

				case at.TypeURC:
					if at.Solicited(req.cmd.Text, text) {
						// Answers the command in flight (+CLCC legs for
						// AT+CLCC): response body, not a URC.
						body = append(body, text)
						break
					}
					// Unsolicited line interleaved with the response:
					// forward, do not consume as body.
					e.dispatch(text)

				default:
					body = append(body, text)
				}
			}
		}
		timer.Stop()
	}

	req.respond(Response{}, ErrCommandTimeout)
	return false
}

// dispatch classifies an idle or interleaved line and pushes the event.
func (e *Engine) dispatch(line string) {
	ev := ClassifyURC(line)
	if u, ok := ev.(UnknownEvent); ok {
		logger.Log.Debugf("Unrecognized modem line: %q", u.Line)
	}
	e.push(ev)
}

func (e *Engine) push(ev Event) {
	select {
	case e.events <- ev:
	default:
		logger.Log.Warnf("Event channel full, dropping %T", ev)
	}
}

// recoverOrDown attempts the single automatic reconnect. On failure it emits
// DownEvent so an open call is closed as failed, and returns ErrIO for the
// current operation. The engine itself keeps running.
func (e *Engine) recoverOrDown(cause error) error {
	logger.Log.Errorf("Transport error: %v, attempting reconnect", cause)
	if err := e.tr.Reconnect(); err != nil {
		e.push(DownEvent{Err: cause})
		return err
	}
	return nil
}
