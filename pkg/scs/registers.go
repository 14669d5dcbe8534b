package scs

// Register describes one control table entry.
type Register struct {
	Addr     byte
	Size     int // 1 or 2 bytes
	ReadOnly bool
	// SignBit marks the sign bit for sign-magnitude encoded values.
	// Zero means the value is plain unsigned.
	SignBit int
}

// STS3215 control table. Addresses are fixed by the Feetech datasheet.
var (
	RegFirmwareVersion = Register{Addr: 0, Size: 1, ReadOnly: true}
	RegModelNumber     = Register{Addr: 3, Size: 2, ReadOnly: true}
	RegID              = Register{Addr: 5, Size: 1}
	RegBaudRate        = Register{Addr: 6, Size: 1}
	RegResponseDelay   = Register{Addr: 7, Size: 1}
	RegMinAngleLimit   = Register{Addr: 9, Size: 2}
	RegMaxAngleLimit   = Register{Addr: 11, Size: 2}
	RegMaxTemp         = Register{Addr: 13, Size: 1}
	RegMaxVoltage      = Register{Addr: 14, Size: 1}
	RegMinVoltage      = Register{Addr: 15, Size: 1}
	RegMaxTorque       = Register{Addr: 16, Size: 2}
	RegPGain           = Register{Addr: 21, Size: 1}
	RegDGain           = Register{Addr: 22, Size: 1}
	RegIGain           = Register{Addr: 23, Size: 1}
	RegPositionOffset  = Register{Addr: 31, Size: 2, SignBit: 11}
	RegOperatingMode   = Register{Addr: 33, Size: 1}

	// RAM registers (volatile)
	RegTorqueEnable = Register{Addr: 40, Size: 1}
	RegAcceleration = Register{Addr: 41, Size: 1}
	RegGoalPosition = Register{Addr: 42, Size: 2}
	RegGoalTime     = Register{Addr: 44, Size: 2}
	RegGoalVelocity = Register{Addr: 46, Size: 2, SignBit: 15}
	RegTorqueLimit  = Register{Addr: 48, Size: 2}
	RegLock         = Register{Addr: 55, Size: 1}

	// Feedback registers (read-only)
	RegPresentPosition = Register{Addr: 56, Size: 2, ReadOnly: true}
	RegPresentVelocity = Register{Addr: 58, Size: 2, ReadOnly: true, SignBit: 15}
	RegPresentLoad     = Register{Addr: 60, Size: 2, ReadOnly: true, SignBit: 9}
	RegPresentVoltage  = Register{Addr: 62, Size: 1, ReadOnly: true}
	RegPresentTemp     = Register{Addr: 63, Size: 1, ReadOnly: true}
	RegServoStatus     = Register{Addr: 65, Size: 1, ReadOnly: true}
	RegMoving          = Register{Addr: 66, Size: 1, ReadOnly: true}
	RegPresentCurrent  = Register{Addr: 69, Size: 2, ReadOnly: true}
)

// Position range of the STS3215: one full revolution over 12 bits.
const (
	MaxPosition    = 4095
	CenterPosition = 2048
)

// ModelNumberSTS3215 is the value RegModelNumber reads back on an STS3215.
const ModelNumberSTS3215 = 777

// BaudRates lists the servo's supported rates in register index order:
// writing index i to RegBaudRate selects BaudRates[i].
var BaudRates = []int{
	1000000,
	500000,
	250000,
	128000,
	115200,
	76800,
	57600,
	38400,
}

// BaudRateIndex returns the RegBaudRate index for a rate, or -1 if the
// servo does not support it.
func BaudRateIndex(rate int) int {
	for i, r := range BaudRates {
		if r == rate {
			return i
		}
	}
	return -1
}

// Operating modes for RegOperatingMode.
const (
	ModePosition = 0
	ModeVelocity = 1
	ModePWM      = 2
	ModeStep     = 3
)

// Sign-magnitude helpers for velocity, load and offset registers.

func decodeSignMagnitude(value, signBit int) int {
	if signBit == 0 {
		return value
	}
	mask := 1 << signBit
	if value&mask != 0 {
		return -(value & (mask - 1))
	}
	return value
}

func encodeSignMagnitude(value, signBit int) int {
	if signBit == 0 || value >= 0 {
		return value
	}
	return (-value) | (1 << signBit)
}
