package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter is used for tokenizing AT command modem responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input by CRLF line endings.
//
// Important: This splitter assumes "No Echo" mode (ATE0). If echo is enabled,
// it would need modification to handle command echoes that precede the actual
// response.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Classify identifies the nature of the modem output.
//
// NO CARRIER is deliberately a URC rather than a final result code: for voice
// dials (ATD...;) the exchange terminates with OK and carrier loss arrives
// asynchronously, possibly interleaved with an unrelated command's response.
func Classify(line string) ResponseType {
	switch line {
	case OK, ERROR:
		return TypeFinal
	case UrcRing, UrcNoCarrier, UrcBusy, UrcNoAnswer, UrcNoDialtone:
		return TypeURC
	}

	switch {
	case strings.HasPrefix(line, CmeError), strings.HasPrefix(line, CmsError):
		return TypeFinal
	case strings.HasPrefix(line, UrcCallerID), strings.HasPrefix(line, UrcCallStatus):
		return TypeURC
	default:
		return TypeData
	}
}

// Solicited reports whether a URC-classified line is actually the response
// body of the command in flight. +CLCC lines answer a solicited AT+CLCC but
// also arrive unsolicited; only relative to the pending command can the two
// be told apart.
func Solicited(cmd, line string) bool {
	return cmd == CmdCallStatus && strings.HasPrefix(line, UrcCallStatus)
}
