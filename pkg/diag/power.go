package diag

import (
	"context"
	"fmt"

	"github.com/sobot/armdoctor/pkg/scs"
)

// Voltage thresholds for the 7.4V supply these arms run on. The servo
// reports tenths of a volt; below LowVoltage the bus browns out under
// load, above HighVoltage the regulator is suspect.
const (
	NominalVoltage = 7.4
	LowVoltage     = 6.0
	HighVoltage    = 8.4
)

// PowerReport is the outcome of a power-supply check on one port.
type PowerReport struct {
	Port string

	// ModemLines holds the raw control line state, when the adapter
	// exposes it. Nil when the transport is not a real serial port.
	ModemLines *scs.ModemStatus
	ModemErr   error

	// Voltages maps servo ID to its reported supply voltage in volts.
	Voltages map[int]float64
}

// CheckPower probes for signs that the servo power rail is dead or sick:
// modem control lines as a crude presence hint, then the voltage register
// of each servo that answers. An adapter whose lines all read low AND
// whose servos are all silent usually means the power switch is off.
func CheckPower(ctx context.Context, bus *scs.Bus, ids []int) (*PowerReport, error) {
	report := &PowerReport{
		Voltages: make(map[int]float64),
	}

	if st, ok := bus.Transport().(*scs.SerialTransport); ok {
		report.Port = st.PortName()
		lines, err := st.ModemStatus()
		if err != nil {
			report.ModemErr = err
		} else {
			report.ModemLines = &lines
		}
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		servo := scs.NewServo(bus, id)
		v, err := servo.Voltage(ctx)
		if err != nil {
			continue
		}
		report.Voltages[id] = v
	}

	return report, nil
}

// AnyLineAsserted reports whether any modem control line reads high.
func (r *PowerReport) AnyLineAsserted() bool {
	if r.ModemLines == nil {
		return false
	}
	m := r.ModemLines
	return m.CTS || m.DSR || m.RI || m.DCD
}

// VoltageStatus classifies one voltage reading.
func VoltageStatus(volts float64) string {
	switch {
	case volts < LowVoltage:
		return fmt.Sprintf("LOW (%.1fV, expect ~%.1fV)", volts, NominalVoltage)
	case volts > HighVoltage:
		return fmt.Sprintf("HIGH (%.1fV, expect ~%.1fV)", volts, NominalVoltage)
	default:
		return fmt.Sprintf("OK (%.1fV)", volts)
	}
}

// Verdict sums the evidence up in one line.
func (r *PowerReport) Verdict() string {
	switch {
	case len(r.Voltages) > 0:
		for id, v := range r.Voltages {
			if v < LowVoltage {
				return fmt.Sprintf("servo %d reports %.1fV, supply is sagging", id, v)
			}
		}
		return "servos answering and voltage in range, power looks good"
	case r.AnyLineAsserted():
		return "adapter is alive but no servo answered, check the servo power switch and cabling"
	case r.ModemLines != nil:
		return "all control lines low and no servo answered, the bus looks unpowered"
	default:
		return "no servo answered and the adapter exposes no line state"
	}
}
