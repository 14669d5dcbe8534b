package robot

import (
	"context"
	"fmt"

	"github.com/sobot/armdoctor/pkg/scs"
)

// Arm represents a robot arm with multiple servos on one bus.
type Arm struct {
	bus         *scs.Bus
	ids         []int
	calibration Calibration
}

// NewArm opens the arm's serial bus and prepares its servo group.
func NewArm(port string, baudRate int, cal Calibration) (*Arm, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	bus, err := scs.NewBus(scs.BusConfig{
		Port:     port,
		BaudRate: baudRate,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	return NewArmOnBus(bus, cal), nil
}

// NewArmOnBus wraps an already-open bus. The caller keeps ownership of
// nothing: Close closes the bus.
func NewArmOnBus(bus *scs.Bus, cal Calibration) *Arm {
	return &Arm{
		bus:         bus,
		ids:         cal.MotorIDs(),
		calibration: cal,
	}
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Bus returns the underlying servo bus.
func (a *Arm) Bus() *scs.Bus {
	return a.bus
}

// Servo returns register-level access to one of the arm's motors.
func (a *Arm) Servo(name MotorName) (*scs.Servo, error) {
	mc, ok := a.calibration[name]
	if !ok {
		return nil, fmt.Errorf("unknown motor %q", name)
	}
	return scs.NewServo(a.bus, mc.ID), nil
}

// Enable enables torque on all servos with one broadcast.
func (a *Arm) Enable(ctx context.Context) error {
	return a.setTorque(ctx, true)
}

// Disable disables torque on all servos so the arm can be moved by hand.
func (a *Arm) Disable(ctx context.Context) error {
	return a.setTorque(ctx, false)
}

func (a *Arm) setTorque(ctx context.Context, on bool) error {
	var v byte
	if on {
		v = 1
	}
	data := make(map[int][]byte, len(a.ids))
	for _, id := range a.ids {
		data[id] = []byte{v}
	}
	if err := a.bus.SyncWrite(ctx, scs.RegTorqueEnable.Addr, 1, data); err != nil {
		return fmt.Errorf("set torque: %w", err)
	}
	return nil
}

// ReadPositions reads current positions from all motors in one sync read.
// Returns normalized positions in the range [-100, 100].
func (a *Arm) ReadPositions(ctx context.Context) (map[MotorName]float64, error) {
	raw, err := a.ReadRawPositions(ctx)
	if err != nil {
		return nil, err
	}

	positions := make(map[MotorName]float64, len(raw))
	for id, pos := range raw {
		name, cal, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		positions[name] = cal.Normalize(pos)
	}
	return positions, nil
}

// ReadRawPositions reads raw [0, 4095] positions keyed by servo ID.
func (a *Arm) ReadRawPositions(ctx context.Context) (map[int]int, error) {
	data, err := a.bus.SyncRead(ctx, scs.RegPresentPosition.Addr, scs.RegPresentPosition.Size, a.ids)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	codec := a.bus.Codec()
	raw := make(map[int]int, len(data))
	for id, d := range data {
		raw[id] = int(codec.ParseWord(d))
	}
	return raw, nil
}

// WritePositions writes target positions to all motors in one sync write.
// Takes normalized positions in the range [-100, 100].
func (a *Arm) WritePositions(ctx context.Context, positions map[MotorName]float64) error {
	codec := a.bus.Codec()
	data := make(map[int][]byte, len(positions))
	for name, norm := range positions {
		cal, ok := a.calibration[name]
		if !ok {
			continue
		}
		raw := cal.Denormalize(norm)
		if raw < 0 {
			raw = 0
		} else if raw > scs.MaxPosition {
			raw = scs.MaxPosition
		}
		data[cal.ID] = codec.Word(uint16(raw))
	}

	if err := a.bus.SyncWrite(ctx, scs.RegGoalPosition.Addr, scs.RegGoalPosition.Size, data); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}
