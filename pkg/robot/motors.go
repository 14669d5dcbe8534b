// Package robot provides arm-level abstractions over the servo bus:
// motor naming, calibration, and leader/follower configuration.
package robot

// MotorName identifies a motor in the arm.
type MotorName string

// Motor names for the SO-101 arm, in servo ID order (IDs 1-6).
const (
	ShoulderPan  MotorName = "shoulder_pan"
	ShoulderLift MotorName = "shoulder_lift"
	ElbowFlex    MotorName = "elbow_flex"
	WristFlex    MotorName = "wrist_flex"
	WristRoll    MotorName = "wrist_roll"
	Gripper      MotorName = "gripper"
)

// AllMotors returns all motor names in servo ID order.
func AllMotors() []MotorName {
	return []MotorName{
		ShoulderPan,
		ShoulderLift,
		ElbowFlex,
		WristFlex,
		WristRoll,
		Gripper,
	}
}

// MotorByID returns the conventional motor name for a servo ID, or "" if
// the ID is outside the arm's 1-6 range.
func MotorByID(id int) MotorName {
	motors := AllMotors()
	if id < 1 || id > len(motors) {
		return ""
	}
	return motors[id-1]
}
