package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sobot/armdoctor/pkg/scs"
)

type PingCommand struct {
	Port     string `long:"port" short:"p" required:"true" description:"Serial port"`
	BaudRate int    `long:"baud" short:"b" default:"1000000" description:"Baud rate"`
	ID       int    `long:"id" default:"1" description:"Servo ID to ping"`
	SCS      bool   `long:"scs" description:"Use SCS series word order instead of STS"`
}

func (c *PingCommand) Execute(args []string) error {
	series := scs.SeriesSTS
	if c.SCS {
		series = scs.SeriesSCS
	}

	bus, err := scs.NewBus(scs.BusConfig{
		Port:     c.Port,
		BaudRate: c.BaudRate,
		Series:   series,
		Timeout:  200 * time.Millisecond,
		Retries:  -1,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", c.Port, err)
	}
	defer bus.Close()

	request := bus.Codec().Ping(byte(c.ID))
	fmt.Printf("TX %s\n", hexDump(request))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := bus.Exchange(ctx, request, scs.ResponseLength(0))
	if err != nil {
		fmt.Printf("RX (nothing)\n\n")
		fmt.Printf("Servo %d did not answer: %v\n", c.ID, err)
		fmt.Println("Check power, wiring, baud rate and ID. Try 'armdoctor doctor'.")
		return nil
	}
	fmt.Printf("RX %s\n\n", hexDump(raw))

	if scs.IsPingReply(raw, byte(c.ID)) {
		pkt, _, err := bus.Codec().Decode(raw)
		if err == nil && pkt.Status.HasError() {
			fmt.Printf("Servo %d answered with error flags: %s\n", c.ID, pkt.Status.Error())
			return nil
		}
		fmt.Printf("Servo %d is alive.\n", c.ID)
		return nil
	}

	fmt.Printf("Got %d bytes back but not a valid reply from servo %d.\n", len(raw), c.ID)
	fmt.Println("An echo of the request usually means the adapter loops TX to RX.")
	return nil
}

func hexDump(data []byte) string {
	out := make([]byte, 0, len(data)*3)
	for i, b := range data {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, fmt.Sprintf("%02X", b)...)
	}
	return string(out)
}
