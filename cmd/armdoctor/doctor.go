package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sobot/armdoctor/pkg/diag"
	"github.com/sobot/armdoctor/pkg/robot"
	"github.com/sobot/armdoctor/pkg/scs"
)

type DoctorCommand struct {
	Port    string `long:"port" short:"p" description:"Port to diagnose (default: first likely adapter)"`
	FirstID int    `long:"first-id" default:"1" description:"First servo ID to try"`
	LastID  int    `long:"last-id" default:"6" description:"Last servo ID to try"`
}

func (c *DoctorCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("armdoctor"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━"))
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Step 1: find a port worth diagnosing.
	port := c.Port
	if port == "" {
		ports, err := diag.ListPorts()
		if err != nil {
			return fmt.Errorf("list ports: %w", err)
		}
		candidates := diag.CandidatePorts(ports)
		if len(candidates) == 0 {
			fmt.Println("No USB serial adapter found.")
			fmt.Println("Plug the control board in, then run 'armdoctor scan' to see all ports.")
			os.Exit(1)
		}
		port = candidates[0].Name
		fmt.Printf("Step 1: using %s", port)
		if name := candidates[0].AdapterName(); name != "" {
			fmt.Printf(" (%s)", name)
		}
		fmt.Println()
	} else {
		fmt.Printf("Step 1: using %s\n", port)
	}
	fmt.Println()

	// Step 2: sweep baud rates.
	fmt.Println(subHeaderStyle.Render("Step 2: baud rate sweep"))
	prober := diag.NewProber()
	sweep, err := prober.Sweep(ctx, port, nil, c.FirstID, c.LastID)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	for rate, openErr := range sweep.OpenErrors {
		fmt.Printf("  %d baud: cannot open port: %v\n", rate, openErr)
	}
	if len(sweep.Hits) == 0 {
		fmt.Println("  No servo answered at any rate.")
		fmt.Println()
		diagnoseDeadBus(port)
		return nil
	}
	for _, h := range sweep.Hits {
		fmt.Println(successStyle.Render(fmt.Sprintf("  %d baud: servo %d (model %d)", h.BaudRate, h.ID, h.ModelNumber)))
	}
	rate := sweep.WorkingRate()
	fmt.Printf("  Using %d baud.\n\n", rate)

	// Step 3: protocol format.
	fmt.Println(subHeaderStyle.Render("Step 3: protocol format"))
	firstID := sweep.Hits[0].ID
	guess, err := prober.ProbeSeries(ctx, port, rate, firstID)
	if err != nil {
		return fmt.Errorf("probe series: %w", err)
	}
	if guess.Confident {
		fmt.Printf("  Servo %d answers with %s word order.\n\n", firstID, seriesName(guess.Series))
	} else {
		fmt.Printf("  Could not confirm word order, assuming %s.\n\n", seriesName(guess.Series))
	}

	// Steps 4 and 5 share one bus.
	bus, err := scs.NewBus(scs.BusConfig{
		Port:     port,
		BaudRate: rate,
		Series:   guess.Series,
		Timeout:  200 * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", port, err)
	}
	defer bus.Close()

	ids := make([]int, 0, c.LastID-c.FirstID+1)
	for id := c.FirstID; id <= c.LastID; id++ {
		ids = append(ids, id)
	}

	// Step 4: power.
	fmt.Println(subHeaderStyle.Render("Step 4: power"))
	power, err := diag.CheckPower(ctx, bus, ids)
	if err != nil {
		return fmt.Errorf("check power: %w", err)
	}
	if power.ModemLines != nil {
		m := power.ModemLines
		fmt.Printf("  Control lines: CTS=%v DSR=%v RI=%v DCD=%v\n", m.CTS, m.DSR, m.RI, m.DCD)
	}
	for _, id := range ids {
		if v, ok := power.Voltages[id]; ok {
			fmt.Printf("  servo %d: %s\n", id, diag.VoltageStatus(v))
		}
	}
	fmt.Printf("  %s\n\n", power.Verdict())

	// Step 5: per-motor health.
	fmt.Println(subHeaderStyle.Render("Step 5: motor health"))
	health, err := diag.CheckHealth(ctx, bus, ids)
	if err != nil {
		return fmt.Errorf("check health: %w", err)
	}
	for _, m := range health.Motors {
		label := ""
		if name := robot.MotorByID(m.ID); name != "" {
			label = " " + string(name)
		}
		if !m.Responds {
			fmt.Printf("  servo %d%s: no response\n", m.ID, label)
			continue
		}
		fmt.Printf("  servo %d%s: pos=%d torque=%v %.1fV %d°C\n",
			m.ID, label, m.Position, m.Torque, m.Voltage, m.Temperature)
	}
	fmt.Println()

	if health.Healthy() {
		fmt.Println(successStyle.Render("All checks passed."))
	} else {
		fmt.Println("Issues found:")
		for _, issue := range health.Issues() {
			fmt.Printf("  - %s\n", issue)
		}
	}
	return nil
}

// diagnoseDeadBus digs into why nothing answers: modem lines first, then
// the usual suspects.
func diagnoseDeadBus(port string) {
	fmt.Println(subHeaderStyle.Render("Nothing answered. Checking the adapter..."))

	transport, err := scs.OpenSerial(scs.SerialConfig{Port: port, BaudRate: 1_000_000})
	if err != nil {
		fmt.Printf("  Cannot open %s at all: %v\n", port, err)
		fmt.Println("  Another program may hold the port, or the driver is missing.")
		return
	}
	defer transport.Close()

	lines, err := transport.ModemStatus()
	if err != nil {
		fmt.Printf("  Adapter exposes no line state (%v).\n", err)
	} else {
		fmt.Printf("  Control lines: CTS=%v DSR=%v RI=%v DCD=%v\n", lines.CTS, lines.DSR, lines.RI, lines.DCD)
	}

	fmt.Println()
	fmt.Println("  Likely causes, in order:")
	fmt.Println("  1. Servo power switch off or supply unplugged (the USB link alone does not power servos)")
	fmt.Println("  2. Loose or reversed 3-pin servo cable")
	fmt.Println("  3. Servos configured for an ID outside the scanned range")
	fmt.Println("  4. Broken first servo; daisy chain dies at the break")
}

func seriesName(s scs.Series) string {
	if s == scs.SeriesSCS {
		return "SCS (high byte first)"
	}
	return "STS (low byte first)"
}
