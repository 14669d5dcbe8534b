package diag

import (
	"context"
	"fmt"
	"sort"

	"github.com/sobot/armdoctor/pkg/scs"
)

// MotorHealth is one servo's row in a health report.
type MotorHealth struct {
	ID          int
	Responds    bool
	ModelNumber int
	Position    int
	Torque      bool
	Voltage     float64
	Temperature int
	Moving      bool
	Err         error
}

// HealthReport covers every servo checked on one bus.
type HealthReport struct {
	Motors []MotorHealth
}

// CheckHealth reads the vitals of each servo in ids: model number,
// position, torque state, voltage and temperature. A servo that fails the
// ping gets a row with Responds false so the report shows the gap.
func CheckHealth(ctx context.Context, bus *scs.Bus, ids []int) (*HealthReport, error) {
	report := &HealthReport{}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Motors = append(report.Motors, checkOne(ctx, bus, id))
	}

	sort.Slice(report.Motors, func(i, j int) bool {
		return report.Motors[i].ID < report.Motors[j].ID
	})
	return report, nil
}

func checkOne(ctx context.Context, bus *scs.Bus, id int) MotorHealth {
	h := MotorHealth{ID: id}
	servo := scs.NewServo(bus, id)

	if err := servo.Ping(ctx); err != nil {
		h.Err = err
		return h
	}
	h.Responds = true

	// Individual reads keep going on error so a single flaky register
	// does not blank the whole row.
	if v, err := servo.ModelNumber(ctx); err == nil {
		h.ModelNumber = v
	} else {
		h.Err = err
	}
	if v, err := servo.Position(ctx); err == nil {
		h.Position = v
	} else {
		h.Err = err
	}
	if v, err := servo.TorqueEnabled(ctx); err == nil {
		h.Torque = v
	} else {
		h.Err = err
	}
	if v, err := servo.Voltage(ctx); err == nil {
		h.Voltage = v
	} else {
		h.Err = err
	}
	if v, err := servo.Temperature(ctx); err == nil {
		h.Temperature = v
	} else {
		h.Err = err
	}
	if v, err := servo.Moving(ctx); err == nil {
		h.Moving = v
	} else {
		h.Err = err
	}
	return h
}

// Responding returns the IDs that answered.
func (r *HealthReport) Responding() []int {
	var ids []int
	for _, m := range r.Motors {
		if m.Responds {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Missing returns the IDs that did not answer.
func (r *HealthReport) Missing() []int {
	var ids []int
	for _, m := range r.Motors {
		if !m.Responds {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Issues lists the problems worth telling the operator about.
func (r *HealthReport) Issues() []string {
	var issues []string
	for _, m := range r.Motors {
		switch {
		case !m.Responds:
			issues = append(issues, fmt.Sprintf("servo %d: no response", m.ID))
			continue
		case m.ModelNumber != 0 && m.ModelNumber != scs.ModelNumberSTS3215:
			issues = append(issues, fmt.Sprintf("servo %d: unexpected model %d", m.ID, m.ModelNumber))
		}
		if m.Voltage > 0 && m.Voltage < LowVoltage {
			issues = append(issues, fmt.Sprintf("servo %d: low voltage %.1fV", m.ID, m.Voltage))
		}
		if m.Temperature >= 65 {
			issues = append(issues, fmt.Sprintf("servo %d: running hot at %d°C", m.ID, m.Temperature))
		}
		if m.Err != nil {
			issues = append(issues, fmt.Sprintf("servo %d: partial read: %v", m.ID, m.Err))
		}
	}
	return issues
}

// Healthy reports whether every servo answered with no issues.
func (r *HealthReport) Healthy() bool {
	return len(r.Issues()) == 0
}
