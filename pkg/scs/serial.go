package scs

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialTransport drives a hardware serial port via go.bug.st/serial.
type SerialTransport struct {
	port     serial.Port
	portName string
	timeout  time.Duration
}

// SerialConfig holds the settings for opening a serial port.
type SerialConfig struct {
	Port     string
	BaudRate int
	Timeout  time.Duration
}

// OpenSerial opens a serial port in the 8N1 framing the servos expect.
func OpenSerial(cfg SerialConfig) (*SerialTransport, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port path is required")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 1_000_000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}

	if err := port.SetReadTimeout(cfg.Timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	return &SerialTransport{
		port:     port,
		portName: cfg.Port,
		timeout:  cfg.Timeout,
	}, nil
}

func (t *SerialTransport) Read(p []byte) (int, error) {
	return t.port.Read(p)
}

func (t *SerialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}

func (t *SerialTransport) SetReadTimeout(timeout time.Duration) error {
	t.timeout = timeout
	return t.port.SetReadTimeout(timeout)
}

func (t *SerialTransport) Drain() error {
	if err := t.port.ResetInputBuffer(); err == nil {
		return nil
	}
	// Fall back to reading the buffer dry on drivers without a reset call.
	buf := make([]byte, 4096)
	t.port.SetReadTimeout(10 * time.Millisecond)
	for {
		n, err := t.port.Read(buf)
		if n == 0 || err != nil {
			break
		}
	}
	return t.port.SetReadTimeout(t.timeout)
}

// PortName returns the underlying serial port name.
func (t *SerialTransport) PortName() string {
	return t.portName
}

// ModemStatus reports the state of the port's modem control lines. A dead
// CTS on an adapter that normally asserts it is a crude hint that the far
// side has no power.
type ModemStatus struct {
	CTS bool
	DSR bool
	RI  bool
	DCD bool
}

// ModemStatus reads the current modem line state from the port.
func (t *SerialTransport) ModemStatus() (ModemStatus, error) {
	bits, err := t.port.GetModemStatusBits()
	if err != nil {
		return ModemStatus{}, fmt.Errorf("read modem status: %w", err)
	}
	return ModemStatus{
		CTS: bits.CTS,
		DSR: bits.DSR,
		RI:  bits.RI,
		DCD: bits.DCD,
	}, nil
}

// SetRTS raises or lowers the RTS line.
func (t *SerialTransport) SetRTS(level bool) error {
	return t.port.SetRTS(level)
}
