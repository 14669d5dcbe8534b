package diag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sobot/armdoctor/pkg/scs"
)

// fakeServos emulates a bus of servos behind a serial adapter. It parses
// written request frames and queues reply frames for the configured IDs,
// but only when the dialled rate matches the rate the servos listen on.
type fakeServos struct {
	activeRate  int
	currentRate int

	// registers maps servo ID to register address to raw bytes. A servo
	// present in the map answers pings.
	registers map[int]map[byte][]byte

	queue []byte
}

func newFakeServos(activeRate int, ids ...int) *fakeServos {
	f := &fakeServos{
		activeRate: activeRate,
		registers:  make(map[int]map[byte][]byte),
	}
	for _, id := range ids {
		f.registers[id] = map[byte][]byte{
			scs.RegModelNumber.Addr:     {0x09, 0x03}, // 777 little-endian
			scs.RegPresentPosition.Addr: {0x00, 0x08}, // 2048
			scs.RegTorqueEnable.Addr:    {0x00},
			scs.RegPresentVoltage.Addr:  {74}, // 7.4V
			scs.RegPresentTemp.Addr:     {32},
			scs.RegMoving.Addr:          {0x00},
		}
	}
	return f
}

func (f *fakeServos) reply(id byte, params ...byte) {
	body := append([]byte{id, byte(2 + len(params)), 0x00}, params...)
	f.queue = append(f.queue, 0xFF, 0xFF)
	f.queue = append(f.queue, body...)
	f.queue = append(f.queue, scs.Checksum(body))
}

func (f *fakeServos) Write(p []byte) (int, error) {
	if f.currentRate != f.activeRate || len(p) < 6 {
		return len(p), nil
	}
	id := int(p[2])
	regs, ok := f.registers[id]
	if !ok {
		return len(p), nil
	}
	switch p[4] {
	case 0x01: // ping
		f.reply(p[2])
	case 0x02: // read
		addr, length := p[5], int(p[6])
		if data, ok := regs[addr]; ok && len(data) >= length {
			f.reply(p[2], data[:length]...)
		}
	}
	return len(p), nil
}

func (f *fakeServos) Read(p []byte) (int, error) {
	if len(f.queue) == 0 {
		return 0, nil
	}
	n := copy(p, f.queue)
	f.queue = f.queue[n:]
	return n, nil
}

func (f *fakeServos) Close() error { return nil }

func (f *fakeServos) SetReadTimeout(time.Duration) error { return nil }

func (f *fakeServos) Drain() error { f.queue = nil; return nil }

func (f *fakeServos) dial(port string, baudRate int) (*scs.Bus, error) {
	f.currentRate = baudRate
	return scs.NewBus(scs.BusConfig{
		Transport: f,
		Timeout:   20 * time.Millisecond,
		Retries:   -1,
	})
}

func TestProber_Sweep(t *testing.T) {
	fake := newFakeServos(115_200, 1, 2, 3)
	p := &Prober{Dial: fake.dial}

	result, err := p.Sweep(context.Background(), "COM4", []int{1_000_000, 115_200}, 1, 3)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(result.Hits) != 3 {
		t.Fatalf("got %d hits, want 3: %+v", len(result.Hits), result.Hits)
	}
	for _, h := range result.Hits {
		if h.BaudRate != 115_200 {
			t.Errorf("servo %d found at %d baud, want 115200", h.ID, h.BaudRate)
		}
		if h.ModelNumber != scs.ModelNumberSTS3215 {
			t.Errorf("servo %d: model %d, want %d", h.ID, h.ModelNumber, scs.ModelNumberSTS3215)
		}
	}
	if got := result.WorkingRate(); got != 115_200 {
		t.Errorf("WorkingRate = %d, want 115200", got)
	}
}

func TestProber_SweepNoServos(t *testing.T) {
	fake := newFakeServos(115_200) // nobody home
	p := &Prober{Dial: fake.dial}

	result, err := p.Sweep(context.Background(), "COM4", []int{115_200}, 1, 3)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(result.Hits) != 0 {
		t.Errorf("got %d hits, want 0", len(result.Hits))
	}
	if got := result.WorkingRate(); got != 0 {
		t.Errorf("WorkingRate = %d, want 0", got)
	}
}

func TestProber_SweepOpenError(t *testing.T) {
	openErr := errors.New("access denied")
	fake := newFakeServos(115_200, 1)
	p := &Prober{Dial: func(port string, baudRate int) (*scs.Bus, error) {
		if baudRate == 1_000_000 {
			return nil, openErr
		}
		return fake.dial(port, baudRate)
	}}

	result, err := p.Sweep(context.Background(), "COM4", []int{1_000_000, 115_200}, 1, 1)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if !errors.Is(result.OpenErrors[1_000_000], openErr) {
		t.Errorf("OpenErrors[1000000] = %v, want %v", result.OpenErrors[1_000_000], openErr)
	}
	if len(result.Hits) != 1 || result.Hits[0].BaudRate != 115_200 {
		t.Errorf("hits = %+v, want one at 115200", result.Hits)
	}
}

func TestProber_ProbeSeriesSTS(t *testing.T) {
	fake := newFakeServos(1_000_000, 1)
	p := &Prober{Dial: fake.dial}
	fake.currentRate = 1_000_000

	guess, err := p.ProbeSeries(context.Background(), "COM4", 1_000_000, 1)
	if err != nil {
		t.Fatalf("ProbeSeries: %v", err)
	}
	if !guess.Confident {
		t.Fatal("expected a confident guess")
	}
	if guess.Series != scs.SeriesSTS {
		t.Errorf("series = %v, want STS", guess.Series)
	}
}

func TestProber_ProbeSeriesSCS(t *testing.T) {
	fake := newFakeServos(1_000_000, 1)
	// Big-endian model number, the SCS word order.
	fake.registers[1][scs.RegModelNumber.Addr] = []byte{0x03, 0x09}
	p := &Prober{Dial: fake.dial}

	guess, err := p.ProbeSeries(context.Background(), "COM4", 1_000_000, 1)
	if err != nil {
		t.Fatalf("ProbeSeries: %v", err)
	}
	if !guess.Confident {
		t.Fatal("expected a confident guess")
	}
	if guess.Series != scs.SeriesSCS {
		t.Errorf("series = %v, want SCS", guess.Series)
	}
}

func TestProber_ProbeSeriesSilent(t *testing.T) {
	fake := newFakeServos(1_000_000) // nobody answers
	p := &Prober{Dial: fake.dial}

	guess, err := p.ProbeSeries(context.Background(), "COM4", 1_000_000, 1)
	if err != nil {
		t.Fatalf("ProbeSeries: %v", err)
	}
	if guess.Confident {
		t.Error("silent bus must not yield a confident guess")
	}
}

func TestCheckHealth(t *testing.T) {
	fake := newFakeServos(1_000_000, 1, 2)
	fake.currentRate = 1_000_000
	bus, err := scs.NewBus(scs.BusConfig{Transport: fake, Timeout: 20 * time.Millisecond, Retries: -1})
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()

	report, err := CheckHealth(context.Background(), bus, []int{1, 2, 3})
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}

	if len(report.Motors) != 3 {
		t.Fatalf("got %d rows, want 3", len(report.Motors))
	}
	for _, m := range report.Motors[:2] {
		if !m.Responds {
			t.Errorf("servo %d: expected a response", m.ID)
		}
		if m.ModelNumber != scs.ModelNumberSTS3215 {
			t.Errorf("servo %d: model %d, want %d", m.ID, m.ModelNumber, scs.ModelNumberSTS3215)
		}
		if m.Position != 2048 {
			t.Errorf("servo %d: position %d, want 2048", m.ID, m.Position)
		}
		if m.Voltage != 7.4 {
			t.Errorf("servo %d: voltage %.1f, want 7.4", m.ID, m.Voltage)
		}
	}
	if report.Motors[2].Responds {
		t.Error("servo 3 should not respond")
	}

	if got := report.Responding(); len(got) != 2 {
		t.Errorf("Responding = %v, want [1 2]", got)
	}
	if got := report.Missing(); len(got) != 1 || got[0] != 3 {
		t.Errorf("Missing = %v, want [3]", got)
	}
	if report.Healthy() {
		t.Error("report with a missing servo must not be healthy")
	}
}

func TestCheckHealth_Issues(t *testing.T) {
	fake := newFakeServos(1_000_000, 1)
	fake.registers[1][scs.RegPresentVoltage.Addr] = []byte{55} // 5.5V
	fake.registers[1][scs.RegPresentTemp.Addr] = []byte{70}
	fake.currentRate = 1_000_000
	bus, err := scs.NewBus(scs.BusConfig{Transport: fake, Timeout: 20 * time.Millisecond, Retries: -1})
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()

	report, err := CheckHealth(context.Background(), bus, []int{1})
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}

	issues := report.Issues()
	if len(issues) != 2 {
		t.Fatalf("got %d issues, want 2: %v", len(issues), issues)
	}
}

func TestCheckPower(t *testing.T) {
	fake := newFakeServos(1_000_000, 1, 2)
	fake.currentRate = 1_000_000
	bus, err := scs.NewBus(scs.BusConfig{Transport: fake, Timeout: 20 * time.Millisecond, Retries: -1})
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()

	report, err := CheckPower(context.Background(), bus, []int{1, 2, 3})
	if err != nil {
		t.Fatalf("CheckPower: %v", err)
	}

	if len(report.Voltages) != 2 {
		t.Fatalf("got %d voltages, want 2: %+v", len(report.Voltages), report.Voltages)
	}
	if report.Voltages[1] != 7.4 {
		t.Errorf("servo 1 voltage = %.1f, want 7.4", report.Voltages[1])
	}
	// A mock transport has no modem lines.
	if report.ModemLines != nil {
		t.Error("expected nil modem lines on a fake transport")
	}
	if report.Verdict() != "servos answering and voltage in range, power looks good" {
		t.Errorf("unexpected verdict: %q", report.Verdict())
	}
}

func TestCheckPower_Sagging(t *testing.T) {
	fake := newFakeServos(1_000_000, 1)
	fake.registers[1][scs.RegPresentVoltage.Addr] = []byte{52}
	fake.currentRate = 1_000_000
	bus, err := scs.NewBus(scs.BusConfig{Transport: fake, Timeout: 20 * time.Millisecond, Retries: -1})
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()

	report, err := CheckPower(context.Background(), bus, []int{1})
	if err != nil {
		t.Fatalf("CheckPower: %v", err)
	}
	if report.Verdict() != "servo 1 reports 5.2V, supply is sagging" {
		t.Errorf("unexpected verdict: %q", report.Verdict())
	}
}

func TestVoltageStatus(t *testing.T) {
	tests := []struct {
		volts float64
		want  string
	}{
		{7.4, "OK (7.4V)"},
		{5.9, "LOW (5.9V, expect ~7.4V)"},
		{9.0, "HIGH (9.0V, expect ~7.4V)"},
	}
	for _, tt := range tests {
		if got := VoltageStatus(tt.volts); got != tt.want {
			t.Errorf("VoltageStatus(%.1f) = %q, want %q", tt.volts, got, tt.want)
		}
	}
}

func TestClassifyAdapter(t *testing.T) {
	tests := []struct {
		name string
		port PortInfo
		want string
	}{
		{"ch340 by vid", PortInfo{VID: "1A86"}, "CH340/CH341 (WCH)"},
		{"ftdi by vid", PortInfo{VID: "0403"}, "FTDI"},
		{"cp210x by vid", PortInfo{VID: "10C4"}, "CP210x (Silicon Labs)"},
		{"by product string", PortInfo{Product: "USB Serial"}, "USB Serial"},
		{"unknown", PortInfo{VID: "DEAD", Product: "Thing"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyAdapter(tt.port); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCandidatePorts(t *testing.T) {
	ports := []PortInfo{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB1", IsUSB: true},
		{Name: "/dev/ttyUSB0", IsUSB: true, LikelyAdapter: true},
	}

	got := CandidatePorts(ports)
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].Name != "/dev/ttyUSB0" {
		t.Errorf("adapter not first: %v", got[0].Name)
	}
	if got[1].Name != "/dev/ttyUSB1" {
		t.Errorf("other USB port not second: %v", got[1].Name)
	}
}
