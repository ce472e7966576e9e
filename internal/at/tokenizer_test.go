package at_test

import (
	"bufio"
	"strings"
	"testing"

	"github.com/wkchan/callgw/internal/at"
)

func TestSplitter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Signal query response",
			input:    "+CSQ: 15,99\r\nOK\r\n",
			expected: []string{"+CSQ: 15,99", "OK"},
		},
		{
			name:     "Command with CME error",
			input:    "+CME ERROR: 10\r\n",
			expected: []string{"+CME ERROR: 10"},
		},
		{
			name:     "Call flow with RING",
			input:    "OK\r\nRING\r\nRING\r\nNO CARRIER\r\n",
			expected: []string{"OK", "RING", "RING", "NO CARRIER"},
		},
		{
			name:     "Caller id after RING",
			input:    "RING\r\n+CLIP: \"+85398765432\",129\r\n",
			expected: []string{"RING", "+CLIP: \"+85398765432\",129"},
		},
		{
			name:     "Call list poll",
			input:    "+CLCC: 1,0,0,0,0,\"+85312345678\",129\r\nOK\r\n",
			expected: []string{"+CLCC: 1,0,0,0,0,\"+85312345678\",129", "OK"},
		},
		{
			name:     "Empty lines handling",
			input:    "\r\n\r\nOK\r\n\r\n",
			expected: []string{"", "", "OK", ""},
		},
		{
			name:     "Incomplete response at EOF",
			input:    "+CSQ: 15,99\r\nOK",
			expected: []string{"+CSQ: 15,99", "OK"},
		},
		{
			name:     "Line without CRLF at EOF",
			input:    "NO CARRIER",
			expected: []string{"NO CARRIER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tokens []string
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(at.Splitter)

			for scanner.Scan() {
				tokens = append(tokens, scanner.Text())
			}

			if err := scanner.Err(); err != nil {
				t.Fatalf("Scanner error: %v", err)
			}

			if len(tokens) != len(tt.expected) {
				t.Fatalf("Expected %d tokens, got %d.\nExpected: %v\nGot: %v",
					len(tt.expected), len(tokens), tt.expected, tokens)
			}

			for i, expected := range tt.expected {
				if tokens[i] != expected {
					t.Errorf("Token %d: expected %q, got %q", i, expected, tokens[i])
				}
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line     string
		expected at.ResponseType
	}{
		{"OK", at.TypeFinal},
		{"ERROR", at.TypeFinal},
		{"+CME ERROR: 30", at.TypeFinal},
		{"+CMS ERROR: 500", at.TypeFinal},
		{"RING", at.TypeURC},
		{"NO CARRIER", at.TypeURC},
		{"BUSY", at.TypeURC},
		{"NO ANSWER", at.TypeURC},
		{"NO DIALTONE", at.TypeURC},
		{"+CLIP: \"+85398765432\",129", at.TypeURC},
		{"+CLCC: 1,0,0,0,0,\"+85312345678\",129", at.TypeURC},
		{"+CSQ: 21,99", at.TypeData},
		{"+CPIN: READY", at.TypeData},
		{"something the firmware made up", at.TypeData},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := at.Classify(tt.line); got != tt.expected {
				t.Errorf("Classify(%q) = %v, expected %v", tt.line, got, tt.expected)
			}
		})
	}
}

func TestSolicited(t *testing.T) {
	tests := []struct {
		cmd      string
		line     string
		expected bool
	}{
		{at.CmdCallStatus, "+CLCC: 1,0,0,0,0,\"+85312345678\",129", true},
		{at.CmdCallStatus, "RING", false},
		{at.CmdCallStatus, "NO CARRIER", false},
		{at.CmdSignal, "+CLCC: 1,0,0,0,0", false},
		{at.CmdHangup, "+CLCC: 1,0,6,0,0", false},
	}
	for _, tt := range tests {
		if got := at.Solicited(tt.cmd, tt.line); got != tt.expected {
			t.Errorf("Solicited(%q, %q) = %v, expected %v", tt.cmd, tt.line, got, tt.expected)
		}
	}
}

func TestDial(t *testing.T) {
	if got := at.Dial("+85312345678"); got != "ATD+85312345678;" {
		t.Errorf("Dial() = %q, expected voice dial with trailing semicolon", got)
	}
}
