package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sobot/armdoctor/pkg/scs"
)

type MoveCommand struct {
	Port     string `long:"port" short:"p" required:"true" description:"Serial port"`
	BaudRate int    `long:"baud" short:"b" default:"1000000" description:"Baud rate"`
	ID       int    `long:"id" default:"1" description:"Servo ID to move"`
	Goal     int    `long:"goal" short:"g" default:"-1" description:"Goal position (0-4095)"`
	Center   bool   `long:"center" description:"Move to center position (2048)"`
	Time     int    `long:"time" short:"t" default:"500" description:"Travel time in milliseconds"`
	Hold     bool   `long:"hold" description:"Leave torque enabled after the move"`
}

func (c *MoveCommand) Execute(args []string) error {
	goal := c.Goal
	if c.Center {
		goal = scs.CenterPosition
	}
	if goal < 0 || goal > scs.MaxPosition {
		return fmt.Errorf("goal %d out of range [0, %d]; pass --goal or --center", goal, scs.MaxPosition)
	}

	bus, err := scs.NewBus(scs.BusConfig{
		Port:     c.Port,
		BaudRate: c.BaudRate,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", c.Port, err)
	}
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	servo := scs.NewServo(bus, c.ID)
	if err := servo.Ping(ctx); err != nil {
		return fmt.Errorf("servo %d not answering: %w", c.ID, err)
	}

	start, err := servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	fmt.Printf("Servo %d at %d, moving to %d over %dms\n", c.ID, start, goal, c.Time)

	if err := servo.Enable(ctx); err != nil {
		return fmt.Errorf("enable torque: %w", err)
	}
	if err := servo.SetPositionWithTime(ctx, goal, c.Time); err != nil {
		return fmt.Errorf("set position: %w", err)
	}

	// Poll until the servo stops or the travel time is well past.
	deadline := time.Now().Add(time.Duration(c.Time)*time.Millisecond + 2*time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
		moving, err := servo.Moving(ctx)
		if err == nil && !moving {
			break
		}
	}

	end, err := servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	fmt.Printf("Servo %d now at %d (off by %d)\n", c.ID, end, abs(end-goal))

	if !c.Hold {
		if err := servo.Disable(ctx); err != nil {
			return fmt.Errorf("disable torque: %w", err)
		}
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
