package modem

import (
	"fmt"
	"strings"

	"github.com/wkchan/callgw/internal/at"
)

// Quality is the bucketed signal level.
type Quality int

const (
	QualityNone Quality = iota
	QualityPoor
	QualityFair
	QualityGood
	QualityExcellent
)

func (q Quality) String() string {
	switch q {
	case QualityNone:
		return "none"
	case QualityPoor:
		return "poor"
	case QualityFair:
		return "fair"
	case QualityGood:
		return "good"
	case QualityExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// Thresholds are the RSSI bucket ceilings. They are configuration, not
// constants, so deployments can recalibrate per antenna and band.
type Thresholds struct {
	PoorMax int
	FairMax int
	GoodMax int
}

func DefaultThresholds() Thresholds {
	return Thresholds{PoorMax: 9, FairMax: 14, GoodMax: 19}
}

// Bucket maps a raw AT+CSQ rssi (0-31, 99 unknown) to a quality bucket.
func (t Thresholds) Bucket(rssi int) Quality {
	switch {
	case rssi == 99 || rssi < 0 || rssi > 31:
		return QualityNone
	case rssi <= t.PoorMax:
		return QualityPoor
	case rssi <= t.FairMax:
		return QualityFair
	case rssi <= t.GoodMax:
		return QualityGood
	default:
		return QualityExcellent
	}
}

// Reading is one signal-quality measurement.
type Reading struct {
	RSSI    int     `json:"rssi"`
	BER     int     `json:"ber"`
	Quality Quality `json:"-"`
}

// SignalMonitor issues AT+CSQ queries through the command channel, subject to
// the same serialization and timeout rules as any other command.
type SignalMonitor struct {
	exec Execer
	th   Thresholds
}

func NewSignalMonitor(exec Execer, th Thresholds) *SignalMonitor {
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	return &SignalMonitor{exec: exec, th: th}
}

func (m *SignalMonitor) Query() (Reading, error) {
	resp, err := m.exec.Exec(Command{Text: at.CmdSignal})
	if err != nil {
		return Reading{}, err
	}

	for _, line := range resp.Lines {
		if !strings.HasPrefix(line, at.UrcSignal) {
			continue
		}
		rssi, ber, ok := parseCSQ(line)
		if !ok {
			break
		}
		return Reading{RSSI: rssi, BER: ber, Quality: m.th.Bucket(rssi)}, nil
	}
	return Reading{}, fmt.Errorf("no +CSQ line in response %q", resp.Text())
}
