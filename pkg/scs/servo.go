package scs

import (
	"context"
	"fmt"
)

// Servo provides register-level access to a single servo on a bus.
type Servo struct {
	bus *Bus
	id  int
}

// NewServo wraps one servo ID on the given bus.
func NewServo(bus *Bus, id int) *Servo {
	return &Servo{bus: bus, id: id}
}

// ID returns the servo's bus ID.
func (s *Servo) ID() int {
	return s.id
}

// Ping checks the servo answers.
func (s *Servo) Ping(ctx context.Context) error {
	return s.bus.Ping(ctx, s.id)
}

// ModelNumber reads the model number register (777 for an STS3215).
func (s *Servo) ModelNumber(ctx context.Context) (int, error) {
	data, err := s.bus.ReadRegister(ctx, s.id, RegModelNumber.Addr, RegModelNumber.Size)
	if err != nil {
		return 0, err
	}
	return int(s.bus.Codec().ParseWord(data)), nil
}

// Position reads the present position, an integer in [0, 4095].
func (s *Servo) Position(ctx context.Context) (int, error) {
	data, err := s.bus.ReadRegister(ctx, s.id, RegPresentPosition.Addr, RegPresentPosition.Size)
	if err != nil {
		return 0, err
	}
	return int(s.bus.Codec().ParseWord(data)), nil
}

// SetPosition commands the servo to move to position.
func (s *Servo) SetPosition(ctx context.Context, position int) error {
	if position < 0 || position > MaxPosition {
		return fmt.Errorf("position %d out of range [0, %d]", position, MaxPosition)
	}
	data := s.bus.Codec().Word(uint16(position))
	return s.bus.WriteRegister(ctx, s.id, RegGoalPosition.Addr, data)
}

// SetPositionWithTime commands the servo to reach position in timeMs
// milliseconds. Writes position, time and a zero speed in one frame.
func (s *Servo) SetPositionWithTime(ctx context.Context, position, timeMs int) error {
	if position < 0 || position > MaxPosition {
		return fmt.Errorf("position %d out of range [0, %d]", position, MaxPosition)
	}
	codec := s.bus.Codec()
	data := make([]byte, 6)
	copy(data[0:2], codec.Word(uint16(position)))
	copy(data[2:4], codec.Word(uint16(timeMs)))
	copy(data[4:6], codec.Word(0))
	return s.bus.WriteRegister(ctx, s.id, RegGoalPosition.Addr, data)
}

// TorqueEnabled reads the torque enable register.
func (s *Servo) TorqueEnabled(ctx context.Context) (bool, error) {
	data, err := s.bus.ReadRegister(ctx, s.id, RegTorqueEnable.Addr, 1)
	if err != nil {
		return false, err
	}
	return data[0] != 0, nil
}

// SetTorqueEnabled engages or releases the servo's holding force.
func (s *Servo) SetTorqueEnabled(ctx context.Context, enabled bool) error {
	var v byte
	if enabled {
		v = 1
	}
	return s.bus.WriteRegister(ctx, s.id, RegTorqueEnable.Addr, []byte{v})
}

// Enable is shorthand for SetTorqueEnabled(true).
func (s *Servo) Enable(ctx context.Context) error {
	return s.SetTorqueEnabled(ctx, true)
}

// Disable is shorthand for SetTorqueEnabled(false).
func (s *Servo) Disable(ctx context.Context) error {
	return s.SetTorqueEnabled(ctx, false)
}

// Voltage reads the supply voltage in volts. The register holds tenths
// of a volt.
func (s *Servo) Voltage(ctx context.Context) (float64, error) {
	data, err := s.bus.ReadRegister(ctx, s.id, RegPresentVoltage.Addr, 1)
	if err != nil {
		return 0, err
	}
	return float64(data[0]) / 10, nil
}

// Temperature reads the servo temperature in degrees Celsius.
func (s *Servo) Temperature(ctx context.Context) (int, error) {
	data, err := s.bus.ReadRegister(ctx, s.id, RegPresentTemp.Addr, 1)
	if err != nil {
		return 0, err
	}
	return int(data[0]), nil
}

// Moving reports whether the servo is still travelling to its goal.
func (s *Servo) Moving(ctx context.Context) (bool, error) {
	data, err := s.bus.ReadRegister(ctx, s.id, RegMoving.Addr, 1)
	if err != nil {
		return false, err
	}
	return data[0] != 0, nil
}

// Load reads the present load. Negative means load in the reverse direction.
func (s *Servo) Load(ctx context.Context) (int, error) {
	data, err := s.bus.ReadRegister(ctx, s.id, RegPresentLoad.Addr, RegPresentLoad.Size)
	if err != nil {
		return 0, err
	}
	raw := int(s.bus.Codec().ParseWord(data))
	return decodeSignMagnitude(raw, RegPresentLoad.SignBit), nil
}

// Velocity reads the present velocity. Negative means reverse rotation.
func (s *Servo) Velocity(ctx context.Context) (int, error) {
	data, err := s.bus.ReadRegister(ctx, s.id, RegPresentVelocity.Addr, RegPresentVelocity.Size)
	if err != nil {
		return 0, err
	}
	raw := int(s.bus.Codec().ParseWord(data))
	return decodeSignMagnitude(raw, RegPresentVelocity.SignBit), nil
}

// SetVelocity sets the goal velocity for wheel mode. Negative reverses.
func (s *Servo) SetVelocity(ctx context.Context, velocity int) error {
	encoded := encodeSignMagnitude(velocity, RegGoalVelocity.SignBit)
	data := s.bus.Codec().Word(uint16(encoded))
	return s.bus.WriteRegister(ctx, s.id, RegGoalVelocity.Addr, data)
}

// SetID changes the servo's bus ID. Torque is disabled first: the servo
// refuses EEPROM writes while holding.
func (s *Servo) SetID(ctx context.Context, newID int) error {
	if newID < 0 || newID > MaxID {
		return fmt.Errorf("%w: %d", ErrInvalidID, newID)
	}
	if err := s.SetTorqueEnabled(ctx, false); err != nil {
		return fmt.Errorf("disable torque: %w", err)
	}
	if err := s.bus.WriteRegister(ctx, s.id, RegID.Addr, []byte{byte(newID)}); err != nil {
		return err
	}
	s.id = newID
	return nil
}

// SetBaudRate changes the servo's line speed. Takes the actual rate, not
// the register index. The bus must be reopened at the new rate afterwards.
func (s *Servo) SetBaudRate(ctx context.Context, rate int) error {
	idx := BaudRateIndex(rate)
	if idx < 0 {
		return fmt.Errorf("baud rate %d not supported by STS3215", rate)
	}
	if err := s.SetTorqueEnabled(ctx, false); err != nil {
		return fmt.Errorf("disable torque: %w", err)
	}
	return s.bus.WriteRegister(ctx, s.id, RegBaudRate.Addr, []byte{byte(idx)})
}
