package diag

import (
	"context"
	"fmt"
	"time"

	"github.com/sobot/armdoctor/pkg/scs"
)

// DefaultSweepRates are the baud rates a sweep tries, fastest first. The
// list covers every rate the STS3215 supports plus the slow rates cheap
// adapters sometimes fall back to.
var DefaultSweepRates = []int{
	1_000_000,
	500_000,
	250_000,
	128_000,
	115_200,
	57_600,
	38_400,
	19_200,
	9_600,
}

// DialFunc opens a bus on a port at a rate. Tests substitute a fake.
type DialFunc func(port string, baudRate int) (*scs.Bus, error)

// DefaultDial opens a real serial bus with a short timeout and no
// retries, tuned for probing rather than control.
func DefaultDial(port string, baudRate int) (*scs.Bus, error) {
	return scs.NewBus(scs.BusConfig{
		Port:     port,
		BaudRate: baudRate,
		Timeout:  100 * time.Millisecond,
		Retries:  -1,
	})
}

// Prober runs active checks against one serial port.
type Prober struct {
	Dial DialFunc
}

// NewProber returns a prober that opens real serial ports.
func NewProber() *Prober {
	return &Prober{Dial: DefaultDial}
}

// SweepHit records a servo that answered during a baud sweep.
type SweepHit struct {
	BaudRate    int
	ID          int
	ModelNumber int
}

// SweepResult is the outcome of a baud sweep on one port.
type SweepResult struct {
	Port string
	// OpenErrors maps rates the port could not even be opened at.
	OpenErrors map[int]error
	Hits       []SweepHit
}

// Sweep tries each baud rate in rates and pings every ID in [firstID,
// lastID], recording who answered where. A servo answering at exactly one
// rate is the expected outcome; answers at several rates mean the
// adapter is echoing its own transmissions.
func (p *Prober) Sweep(ctx context.Context, port string, rates []int, firstID, lastID int) (*SweepResult, error) {
	if len(rates) == 0 {
		rates = DefaultSweepRates
	}
	result := &SweepResult{
		Port:       port,
		OpenErrors: make(map[int]error),
	}

	for _, rate := range rates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		bus, err := p.Dial(port, rate)
		if err != nil {
			result.OpenErrors[rate] = err
			continue
		}

		found, err := bus.Scan(ctx, firstID, lastID)
		bus.Close()
		if err != nil {
			return result, err
		}

		for _, f := range found {
			result.Hits = append(result.Hits, SweepHit{
				BaudRate:    rate,
				ID:          f.ID,
				ModelNumber: f.ModelNumber,
			})
		}
	}
	return result, nil
}

// WorkingRate returns the fastest rate with at least one hit, or 0.
func (r *SweepResult) WorkingRate() int {
	best := 0
	for _, h := range r.Hits {
		if h.BaudRate > best {
			best = h.BaudRate
		}
	}
	return best
}

// SeriesGuess is the outcome of a protocol format probe.
type SeriesGuess struct {
	Series     scs.Series
	Confident  bool
	RawReplies map[scs.Series][]byte
}

// ProbeSeries guesses which servo series is on the wire by reading the
// model number register with each word order and checking which decodes
// to a known model. Both series share the packet framing, so the frame
// itself decodes either way; only the word order tells them apart.
func (p *Prober) ProbeSeries(ctx context.Context, port string, baudRate, id int) (*SeriesGuess, error) {
	guess := &SeriesGuess{
		Series:     scs.SeriesSTS,
		RawReplies: make(map[scs.Series][]byte),
	}

	for _, series := range []scs.Series{scs.SeriesSTS, scs.SeriesSCS} {
		bus, err := p.Dial(port, baudRate)
		if err != nil {
			return nil, fmt.Errorf("open %s at %d baud: %w", port, baudRate, err)
		}

		codec := scs.NewCodec(series)
		packet := codec.Read(byte(id), scs.RegModelNumber.Addr, byte(scs.RegModelNumber.Size))
		raw, err := bus.Exchange(ctx, packet, scs.ResponseLength(scs.RegModelNumber.Size))
		bus.Close()
		if err != nil {
			continue
		}
		guess.RawReplies[series] = raw

		pkt, _, err := codec.Decode(raw)
		if err != nil || len(pkt.Params) < 2 {
			continue
		}
		if int(codec.ParseWord(pkt.Params)) == scs.ModelNumberSTS3215 {
			guess.Series = series
			guess.Confident = true
			return guess, nil
		}
	}

	return guess, nil
}
