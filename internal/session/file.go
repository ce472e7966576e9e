package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wkchan/callgw/pkg/logger"
)

// FileLogger writes one transcript file per call under a call_logs directory,
// named <direction>_<number>_<timestamp>.txt.
type FileLogger struct {
	dir     string
	current *os.File
}

func NewFileLogger(dir string) (*FileLogger, error) {
	if dir == "" {
		dir = "call_logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create call log dir %s: %w", dir, err)
	}
	return &FileLogger{dir: dir}, nil
}

func (f *FileLogger) CallStarted(ev CallStarted) {
	if f.current != nil {
		// Open/close parity is guaranteed upstream; a dangling file here
		// means a bug, close it rather than leak the handle.
		logger.Log.Warnf("call log file still open on CallStarted, closing")
		f.current.Close()
		f.current = nil
	}

	name := fmt.Sprintf("%s_%s_%s.txt", ev.Direction, sanitizeNumber(ev.Number), ev.At.Format("20060102_150405"))
	path := filepath.Join(f.dir, name)

	file, err := os.Create(path)
	if err != nil {
		logger.Log.Errorf("Failed to create call log %s: %v", path, err)
		return
	}

	fmt.Fprintf(file, "=== Call log ===\n")
	fmt.Fprintf(file, "Type: %s\n", ev.Direction)
	fmt.Fprintf(file, "Number: %s\n", ev.Number)
	fmt.Fprintf(file, "Time: %s\n", ev.At.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(file, "==================\n\n")

	f.current = file
	logger.Log.Infof("Recording call to %s", path)
}

func (f *FileLogger) CallEnded(ev CallEnded) {
	if f.current == nil {
		return
	}
	fmt.Fprintf(f.current, "[%s] call ended: %s\n", ev.At.Format("15:04:05"), ev.Status)
	if err := f.current.Close(); err != nil {
		logger.Log.Errorf("Failed to close call log: %v", err)
	}
	f.current = nil
}

// sanitizeNumber strips characters that are unsafe in file names. "+" is kept
// so E.164 numbers remain recognizable.
func sanitizeNumber(number string) string {
	if number == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '+':
			return r
		default:
			return '-'
		}
	}, number)
}
