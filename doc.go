// Package armdoctor provides diagnostics and teleoperation for SO-101
// robot arms built from Feetech STS3215 serial bus servos.
//
// It grew out of a stack of throwaway "why isn't my motor responding"
// scripts and folds them into one CLI backed by a single implementation
// of the Feetech SCS packet protocol.
//
// # Installation
//
//	go install github.com/sobot/armdoctor/cmd/armdoctor@latest
//
// # Usage
//
// Find your arms and check that they respond:
//
//	armdoctor scan
//	armdoctor doctor --port COM4
//
// Identify and calibrate the leader/follower pair, then drive it:
//
//	armdoctor setup
//	armdoctor teleoperate
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/armdoctor: CLI with scan, doctor, ping, move, monitor, setup and
//     teleoperate commands
//   - pkg/scs: Feetech SCS/STS packet protocol, serial bus and servo access
//   - pkg/diag: port discovery, baud sweeps, power and health checks
//   - pkg/robot: arm control, calibration, and configuration
//   - pkg/teleop: teleoperation controller with position smoothing
package armdoctor
