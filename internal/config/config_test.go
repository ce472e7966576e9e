package config

import (
	"testing"
	"time"
)

func TestCommandTimeoutDuration(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"", 5 * time.Second},
		{"nonsense", 5 * time.Second},
		{"-3s", 5 * time.Second},
		{"250ms", 250 * time.Millisecond},
		{"10s", 10 * time.Second},
	}
	for _, tt := range tests {
		c := SerialConfig{CommandTimeout: tt.value}
		if got := c.CommandTimeoutDuration(); got != tt.expected {
			t.Errorf("CommandTimeoutDuration(%q) = %v, expected %v", tt.value, got, tt.expected)
		}
	}
}

func TestPollIntervalDuration(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"", 2 * time.Second},
		{"100ms", 2 * time.Second}, // below the floor
		{"500ms", 500 * time.Millisecond},
		{"5s", 5 * time.Second},
	}
	for _, tt := range tests {
		c := SerialConfig{PollInterval: tt.value}
		if got := c.PollIntervalDuration(); got != tt.expected {
			t.Errorf("PollIntervalDuration(%q) = %v, expected %v", tt.value, got, tt.expected)
		}
	}
}
