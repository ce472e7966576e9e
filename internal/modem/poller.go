package modem

import (
	"sync"
	"time"

	"github.com/wkchan/callgw/internal/at"
	"github.com/wkchan/callgw/pkg/logger"
)

// Poller issues AT+CLCC while a call is in a non-idle state and feeds the
// reported legs to the machine. URCs drive most transitions; the poll is what
// detects Dialing->Active on modems that report connection only via CLCC,
// and Terminating->Idle after our own ATH.
type Poller struct {
	exec     Execer
	machine  *Machine
	interval time.Duration

	trigger  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func NewPoller(exec Execer, machine *Machine, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	p := &Poller{
		exec:     exec,
		machine:  machine,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	machine.SetPoker(p)
	return p
}

// Poke requests an immediate poll. Non-blocking; a pending trigger is enough.
func (p *Poller) Poke() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

func (p *Poller) Run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-p.trigger:
			p.poll()
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *Poller) poll() {
	if p.machine.State() == StateIdle {
		return
	}

	resp, err := p.exec.Exec(Command{Text: at.CmdCallStatus})
	if err != nil {
		logger.Log.Warnf("AT+CLCC poll failed: %v", err)
		return
	}

	p.machine.HandleEvent(CallStatusEvent{Legs: ParseCallLegs(resp.Lines)})
}
