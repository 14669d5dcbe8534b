package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sobot/armdoctor/pkg/diag"
	"github.com/sobot/armdoctor/pkg/robot"
	"github.com/sobot/armdoctor/pkg/scs"
)

type ScanCommand struct {
	Port     string `long:"port" short:"p" description:"Only scan this port"`
	BaudRate int    `long:"baud" short:"b" default:"1000000" description:"Baud rate to scan at"`
	Sweep    bool   `long:"sweep" description:"Try every supported baud rate, not just --baud"`
	FirstID  int    `long:"first-id" default:"1" description:"First servo ID to try"`
	LastID   int    `long:"last-id" default:"10" description:"Last servo ID to try"`
}

func (c *ScanCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Port scan"))
	fmt.Println()

	ports, err := diag.ListPorts()
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found. Is the USB cable plugged in?")
		os.Exit(1)
	}

	rows := make([][]string, 0, len(ports))
	for _, p := range ports {
		kind := "-"
		if name := p.AdapterName(); name != "" {
			kind = name
		} else if p.IsUSB {
			kind = "USB " + p.VID + ":" + p.PID
		}
		rows = append(rows, []string{p.Name, kind, p.Product})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Port", "Adapter", "Product").
		Rows(rows...)
	fmt.Println(t.Render())
	fmt.Println()

	candidates := diag.CandidatePorts(ports)
	if c.Port != "" {
		candidates = []diag.PortInfo{{Name: c.Port}}
	}
	if len(candidates) == 0 {
		fmt.Println("No USB serial adapter among them; nothing to probe.")
		os.Exit(1)
	}

	for _, p := range candidates {
		if c.Sweep {
			c.sweepPort(p.Name)
			continue
		}
		fmt.Printf("Probing %s at %d baud...\n", p.Name, c.BaudRate)
		found, err := scanPort(p.Name, c.BaudRate, c.FirstID, c.LastID)
		if err != nil {
			fmt.Printf("  %v\n", err)
			continue
		}
		if len(found) == 0 {
			fmt.Println(dimStyle.Render("  no servos answered"))
			continue
		}
		for _, f := range found {
			fmt.Println(successStyle.Render("  " + describeServo(f)))
		}
	}
	return nil
}

func (c *ScanCommand) sweepPort(port string) {
	fmt.Printf("Sweeping %s across %d baud rates...\n", port, len(diag.DefaultSweepRates))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := diag.NewProber().Sweep(ctx, port, nil, c.FirstID, c.LastID)
	if err != nil {
		fmt.Printf("  %v\n", err)
		return
	}
	if len(result.Hits) == 0 {
		fmt.Println(dimStyle.Render("  no servos answered at any rate"))
		return
	}
	for _, h := range result.Hits {
		fmt.Println(successStyle.Render(fmt.Sprintf("  %d baud: %s",
			h.BaudRate, describeServo(scs.Found{ID: h.ID, ModelNumber: h.ModelNumber}))))
	}
}

func describeServo(f scs.Found) string {
	label := ""
	if name := robot.MotorByID(f.ID); name != "" {
		label = " (" + string(name) + ")"
	}
	return fmt.Sprintf("servo %d: model %d%s", f.ID, f.ModelNumber, label)
}

func scanPort(port string, baudRate, firstID, lastID int) ([]scs.Found, error) {
	bus, err := scs.NewBus(scs.BusConfig{
		Port:     port,
		BaudRate: baudRate,
		Timeout:  100 * time.Millisecond,
		Retries:  -1,
	})
	if err != nil {
		return nil, err
	}
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return bus.Scan(ctx, firstID, lastID)
}
