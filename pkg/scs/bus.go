package scs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Bus manages request/response traffic with the servos on one serial line.
// All operations are serialized: the wire is half-duplex, so a second
// request before the first reply corrupts both.
type Bus struct {
	transport Transport
	codec     *Codec
	timeout   time.Duration
	retries   int

	mu          sync.Mutex
	lastCmdTime time.Time
	minCmdGap   time.Duration
	closed      bool
}

// BusConfig holds configuration for creating a Bus.
type BusConfig struct {
	// Transport is the underlying byte pipe. If nil, Port must be set and
	// a serial connection is opened.
	Transport Transport

	// Port is the serial port path (COM4, /dev/ttyUSB0, ...).
	Port string

	// BaudRate is the line speed. Default 1000000, the STS3215 factory rate.
	BaudRate int

	// Series selects word byte order. Default SeriesSTS.
	Series Series

	// Timeout bounds a single request/response exchange. Default 1s.
	Timeout time.Duration

	// Retries is how many times a timed-out exchange is reissued before
	// giving up. Default 2. Zero disables retrying; use -1 for explicit
	// zero retries.
	Retries int

	// MinCommandGap is the quiet time enforced between commands. Default 1ms.
	MinCommandGap time.Duration
}

// NewBus opens a bus with the given configuration.
func NewBus(cfg BusConfig) (*Bus, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 1_000_000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.MinCommandGap == 0 {
		cfg.MinCommandGap = time.Millisecond
	}
	if cfg.Retries == 0 {
		cfg.Retries = 2
	} else if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	transport := cfg.Transport
	if transport == nil {
		if cfg.Port == "" {
			return nil, fmt.Errorf("either Transport or Port must be specified")
		}
		var err error
		transport, err = OpenSerial(SerialConfig{
			Port:     cfg.Port,
			BaudRate: cfg.BaudRate,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open serial port: %w", err)
		}
	}

	return &Bus{
		transport:   transport,
		codec:       NewCodec(cfg.Series),
		timeout:     cfg.Timeout,
		retries:     cfg.Retries,
		minCmdGap:   cfg.MinCommandGap,
		lastCmdTime: time.Now(),
	}, nil
}

// Close closes the bus and its transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.transport.Close()
}

// Codec returns the packet codec for this bus.
func (b *Bus) Codec() *Codec {
	return b.codec
}

// Transport returns the underlying transport. Diagnostics use it to poke
// at modem lines on a SerialTransport.
func (b *Bus) Transport() Transport {
	return b.transport
}

// Ping checks that the servo with the given ID answers on this bus.
func (b *Bus) Ping(ctx context.Context, id int) error {
	if err := validateID(id); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	resp, err := b.exchangeRetry(ctx, b.codec.Ping(byte(id)), ResponseLength(0))
	if err != nil {
		return &ServoError{ID: id, Op: "ping", Err: err}
	}
	if resp.ID != byte(id) {
		return &ServoError{ID: id, Op: "ping", Err: fmt.Errorf("reply from wrong ID %d", resp.ID)}
	}
	if resp.Status.HasError() {
		return &ServoError{ID: id, Op: "ping", Status: resp.Status}
	}
	return nil
}

// ReadRegister reads length bytes from a servo register.
func (b *Bus) ReadRegister(ctx context.Context, id int, addr byte, length int) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	return b.readRegisterLocked(ctx, byte(id), addr, byte(length))
}

// WriteRegister writes data to a servo register.
func (b *Bus) WriteRegister(ctx context.Context, id int, addr byte, data []byte) error {
	if err := validateID(id); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	resp, err := b.exchangeRetry(ctx, b.codec.Write(byte(id), addr, data), ResponseLength(0))
	if err != nil {
		return &ServoError{ID: id, Op: "write", Err: err}
	}
	if resp.ID != byte(id) {
		return &ServoError{ID: id, Op: "write", Err: fmt.Errorf("reply from wrong ID %d", resp.ID)}
	}
	if resp.Status.HasError() {
		return &ServoError{ID: id, Op: "write", Status: resp.Status}
	}
	return nil
}

// SyncWrite broadcasts a write of dataLen bytes at addr to several servos
// in one packet. Broadcast writes get no acknowledgement.
func (b *Bus) SyncWrite(ctx context.Context, addr byte, dataLen int, servoData map[int][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	ids := make([]byte, 0, len(servoData))
	byteData := make(map[byte][]byte, len(servoData))
	for id, data := range servoData {
		if err := validateID(id); err != nil {
			return err
		}
		ids = append(ids, byte(id))
		byteData[byte(id)] = data
	}

	packet, err := b.codec.SyncWrite(addr, byte(dataLen), ids, byteData)
	if err != nil {
		return &CommError{Op: "sync_write", Err: err}
	}
	if err := b.sendLocked(packet); err != nil {
		return &CommError{Op: "sync_write", Err: err}
	}
	return nil
}

// SyncRead reads dataLen bytes at addr from several servos with a single
// broadcast, collecting one response per servo. STS series only.
func (b *Bus) SyncRead(ctx context.Context, addr byte, dataLen int, ids []int) (map[int][]byte, error) {
	if b.codec.Series() == SeriesSCS {
		return nil, fmt.Errorf("sync read not supported on SCS series")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	byteIDs := make([]byte, len(ids))
	for i, id := range ids {
		if err := validateID(id); err != nil {
			return nil, err
		}
		byteIDs[i] = byte(id)
	}

	if err := b.sendLocked(b.codec.SyncRead(addr, byte(dataLen), byteIDs)); err != nil {
		return nil, &CommError{Op: "sync_read", Err: err}
	}

	// A dead servo leaves a hole in the reply train, so a short read is
	// expected here. Decode whatever frames arrived and report the silent
	// servo by ID; an empty reply or a non-timeout failure is a link error.
	raw, err := b.recvLocked(ctx, len(ids)*ResponseLength(dataLen))
	if err != nil && (len(raw) == 0 || !IsTimeout(err)) {
		return nil, &CommError{Op: "sync_read", Err: err}
	}

	result := make(map[int][]byte, len(ids))
	for _, pkt := range b.codec.DecodeAll(raw, len(ids)) {
		if pkt.Status.HasError() {
			return nil, &ServoError{ID: int(pkt.ID), Op: "sync_read", Status: pkt.Status}
		}
		result[int(pkt.ID)] = pkt.Params
	}

	for _, id := range ids {
		if _, ok := result[id]; !ok {
			return result, &ServoError{ID: id, Op: "sync_read", Err: ErrNoResponse}
		}
	}
	return result, nil
}

// Exchange sends a raw pre-built packet and returns up to expect response
// bytes, undecoded. Diagnostics use it to probe unknown protocol formats.
func (b *Bus) Exchange(ctx context.Context, packet []byte, expect int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if err := b.sendLocked(packet); err != nil {
		return nil, &CommError{Op: "exchange", Err: err}
	}
	return b.recvLocked(ctx, expect)
}

// Found describes a servo that answered during a scan.
type Found struct {
	ID          int
	ModelNumber int
}

// Scan pings every ID in [startID, endID] and returns the servos that
// answered, with their model numbers.
func (b *Bus) Scan(ctx context.Context, startID, endID int) ([]Found, error) {
	if startID < 0 || endID > MaxID || startID > endID {
		return nil, fmt.Errorf("invalid ID range: %d to %d", startID, endID)
	}

	var found []Found
	for id := startID; id <= endID; id++ {
		select {
		case <-ctx.Done():
			return found, ctx.Err()
		default:
		}

		if err := b.Ping(ctx, id); err != nil {
			continue
		}

		f := Found{ID: id}
		if data, err := b.ReadRegister(ctx, id, RegModelNumber.Addr, RegModelNumber.Size); err == nil {
			f.ModelNumber = int(b.codec.ParseWord(data))
		}
		found = append(found, f)
	}
	return found, nil
}

// Internal methods. The locked variants assume b.mu is held.

func validateID(id int) error {
	if id < 0 || id > MaxID {
		return fmt.Errorf("%w: %d (valid range 0-%d)", ErrInvalidID, id, MaxID)
	}
	return nil
}

func (b *Bus) readRegisterLocked(ctx context.Context, id, addr, length byte) ([]byte, error) {
	resp, err := b.exchangeRetry(ctx, b.codec.Read(id, addr, length), ResponseLength(int(length)))
	if err != nil {
		return nil, &ServoError{ID: int(id), Op: "read", Err: err}
	}
	if resp.ID != id {
		return nil, &ServoError{ID: int(id), Op: "read", Err: fmt.Errorf("reply from wrong ID %d", resp.ID)}
	}
	if resp.Status.HasError() {
		return nil, &ServoError{ID: int(id), Op: "read", Status: resp.Status}
	}
	return resp.Params, nil
}

// exchangeRetry runs one request/response exchange, reissuing the request
// when the reply times out. Timeouts on this bus usually mean a flaky
// half-duplex turnaround, so a bounded retry is cheap; anything else is
// returned immediately.
func (b *Bus) exchangeRetry(ctx context.Context, packet []byte, expect int) (Packet, error) {
	var lastErr error
	for attempt := 0; attempt <= b.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Packet{}, err
		}

		if err := b.sendLocked(packet); err != nil {
			return Packet{}, err
		}

		raw, err := b.recvLocked(ctx, expect)
		if err != nil {
			if IsTimeout(err) {
				lastErr = err
				continue
			}
			return Packet{}, err
		}

		pkt, _, err := b.codec.Decode(raw)
		if err != nil {
			lastErr = err
			continue
		}
		return pkt, nil
	}
	return Packet{}, lastErr
}

func (b *Bus) sendLocked(packet []byte) error {
	if gap := b.minCmdGap - time.Since(b.lastCmdTime); gap > 0 {
		time.Sleep(gap)
	}

	b.transport.Drain()

	n, err := b.transport.Write(packet)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if n != len(packet) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(packet))
	}

	b.lastCmdTime = time.Now()

	// Half-duplex turnaround before the servo starts talking.
	time.Sleep(100 * time.Microsecond)
	return nil
}

// recvLocked reads up to expect bytes until the bus timeout. When the
// input dries up mid-frame it hands back the bytes that did arrive along
// with the timeout error, so callers can salvage partial reply trains.
func (b *Bus) recvLocked(ctx context.Context, expect int) ([]byte, error) {
	buf := make([]byte, expect*2)
	total := 0
	deadline := time.Now().Add(b.timeout)

	for total < expect {
		select {
		case <-ctx.Done():
			return buf[:total], ctx.Err()
		default:
		}

		if time.Now().After(deadline) {
			if total == 0 {
				return nil, ErrNoResponse
			}
			return buf[:total], fmt.Errorf("%w: read %d of %d expected bytes", ErrTimeout, total, expect)
		}

		remaining := max(time.Until(deadline), 10*time.Millisecond)
		b.transport.SetReadTimeout(remaining)

		n, err := b.transport.Read(buf[total:])
		if n > 0 {
			total += n
			continue
		}
		if err != nil && total > 0 {
			return buf[:total], fmt.Errorf("%w: read %d of %d expected bytes", ErrTimeout, total, expect)
		}
		// A zero-byte read is how the driver reports a timeout slice.
		time.Sleep(time.Millisecond)
	}
	return buf[:total], nil
}
