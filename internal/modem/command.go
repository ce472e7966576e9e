package modem

import (
	"strconv"
	"strings"
	"time"

	"github.com/wkchan/callgw/internal/at"
)

// NoRetry requests exactly one attempt with no re-issue on silence.
const NoRetry = -1

// Command is one AT command exchange. Immutable once issued. Zero Timeout and
// MaxRetries are filled from the engine defaults by Exec; pass NoRetry for an
// explicit single attempt.
type Command struct {
	Text       string
	Timeout    time.Duration
	MaxRetries int
}

// Response is the ordered body of one exchange plus the terminal token that
// closed it.
type Response struct {
	Lines []string
	Final string
}

// Text joins the body lines, matching what callers log or parse.
func (r Response) Text() string {
	return strings.Join(r.Lines, "\n")
}

// Execer issues command exchanges. Implemented by Engine; call operations and
// the signal monitor depend on this rather than on the engine itself.
type Execer interface {
	Exec(cmd Command) (Response, error)
}

type execResult struct {
	resp Response
	err  error
}

type commandRequest struct {
	cmd      Command
	respChan chan execResult
}

func (r *commandRequest) respond(resp Response, err error) {
	r.respChan <- execResult{resp: resp, err: err}
}

// rejection turns a terminal ERROR / +CME ERROR line into a RejectedError.
func rejection(line string) *RejectedError {
	re := &RejectedError{Line: line}
	if rest, ok := strings.CutPrefix(line, at.CmeError); ok {
		if code, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
			re.Code = code
		}
	}
	return re
}
