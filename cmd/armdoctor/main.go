package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Scan        ScanCommand        `command:"scan" description:"Find serial ports and the servos behind them"`
	Doctor      DoctorCommand      `command:"doctor" description:"Run the full diagnostic sequence on a port"`
	Ping        PingCommand        `command:"ping" description:"Ping one servo and dump the raw frames"`
	Move        MoveCommand        `command:"move" description:"Move one servo to a goal position"`
	Monitor     MonitorCommand     `command:"monitor" description:"Live view of servo positions, voltage and temperature"`
	Setup       SetupCommand       `command:"setup" description:"Scan for arms and calibrate them"`
	Teleoperate TeleoperateCommand `command:"teleoperate" alias:"teleop" description:"Start teleoperation (leader-follower control)"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "armdoctor - Diagnostics and control for SO-101 arms on Feetech servo buses"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
