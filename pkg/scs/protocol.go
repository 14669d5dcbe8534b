// Package scs implements the Feetech SCS/STS half-duplex serial packet
// protocol used by STS3215 bus servos: ping, register read/write, and the
// broadcast sync variants, plus a Bus that speaks it over a serial port.
package scs

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Series selects the word byte order. STS/SMS servos are little-endian,
// the older SCS series is big-endian.
type Series int

const (
	SeriesSTS Series = iota
	SeriesSCS
)

func (s Series) String() string {
	if s == SeriesSCS {
		return "SCS"
	}
	return "STS"
}

// Instruction codes per the Feetech protocol specification.
const (
	InstPing      byte = 0x01
	InstRead      byte = 0x02
	InstWrite     byte = 0x03
	InstRegWrite  byte = 0x04
	InstAction    byte = 0x05
	InstReset     byte = 0x06
	InstSyncRead  byte = 0x82
	InstSyncWrite byte = 0x83
)

// Special ID values.
const (
	BroadcastID = 0xFE
	MaxID       = 0xFD
)

const (
	header1 = 0xFF
	header2 = 0xFF
)

// Status holds the error flags byte a servo returns in every response.
type Status byte

const (
	StatusVoltage     Status = 1 << 0
	StatusAngleLimit  Status = 1 << 1
	StatusOverheat    Status = 1 << 2
	StatusRange       Status = 1 << 3
	StatusChecksum    Status = 1 << 4
	StatusOverload    Status = 1 << 5
	StatusInstruction Status = 1 << 6
)

var statusNames = []struct {
	flag Status
	name string
}{
	{StatusVoltage, "voltage"},
	{StatusAngleLimit, "angle limit"},
	{StatusOverheat, "overheat"},
	{StatusRange, "range"},
	{StatusChecksum, "checksum"},
	{StatusOverload, "overload"},
	{StatusInstruction, "instruction"},
}

func (s Status) HasError() bool {
	return s != 0
}

func (s Status) Error() string {
	if s == 0 {
		return "no error"
	}
	var names []string
	for _, sn := range statusNames {
		if s&sn.flag != 0 {
			names = append(names, sn.name)
		}
	}
	return "servo alarm: " + strings.Join(names, ", ")
}

// Packet is one protocol frame, instruction or response.
type Packet struct {
	ID          byte
	Instruction byte
	Params      []byte
	Status      Status // response packets only
}

// Codec encodes and decodes packets for one servo series.
type Codec struct {
	series Series
	order  binary.ByteOrder
}

// NewCodec returns a codec for the given series.
func NewCodec(series Series) *Codec {
	c := &Codec{series: series, order: binary.LittleEndian}
	if series == SeriesSCS {
		c.order = binary.BigEndian
	}
	return c
}

// Series returns the servo series this codec targets.
func (c *Codec) Series() Series {
	return c.series
}

// Word converts a 16-bit register value to wire bytes.
func (c *Codec) Word(v uint16) []byte {
	buf := make([]byte, 2)
	c.order.PutUint16(buf, v)
	return buf
}

// ParseWord converts wire bytes back to a 16-bit register value.
func (c *Codec) ParseWord(data []byte) uint16 {
	if len(data) < 2 {
		return 0
	}
	return c.order.Uint16(data)
}

// Checksum computes the packet checksum over the id, length, instruction
// and parameter bytes: the bitwise complement of their sum, which is the
// same as 0xFF - (sum mod 256).
func Checksum(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return ^sum
}

// Encode builds the wire form of an instruction packet:
// FF FF id len inst params... checksum.
func (c *Codec) Encode(pkt Packet) []byte {
	length := byte(len(pkt.Params) + 2) // instruction + checksum

	buf := make([]byte, 0, 6+len(pkt.Params))
	buf = append(buf, header1, header2, pkt.ID, length, pkt.Instruction)
	buf = append(buf, pkt.Params...)
	buf = append(buf, Checksum(buf[2:]))

	return buf
}

// Decode parses the first complete packet in data, tolerating leading
// garbage before the FF FF header. It returns the packet and the number
// of input bytes consumed, including any skipped garbage.
func (c *Codec) Decode(data []byte) (Packet, int, error) {
	start := findHeader(data)
	if start < 0 {
		return Packet{}, 0, ErrInvalidPacket
	}
	data = data[start:]

	id := data[2]
	length := int(data[3])
	if length < 2 {
		return Packet{}, 0, fmt.Errorf("%w: bad length %d", ErrInvalidPacket, length)
	}

	total := 4 + length // header(2) + id + length + [length bytes]
	if len(data) < total {
		return Packet{}, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortPacket, total, len(data))
	}

	want := Checksum(data[2 : total-1])
	got := data[total-1]
	if want != got {
		return Packet{}, 0, fmt.Errorf("%w: computed %02X, packet has %02X", ErrChecksum, want, got)
	}

	// Response layout: FF FF id len status params... checksum
	pkt := Packet{ID: id, Status: Status(data[4])}
	if n := length - 2; n > 0 {
		pkt.Params = make([]byte, n)
		copy(pkt.Params, data[5:5+n])
	}

	return pkt, start + total, nil
}

// DecodeAll parses up to max response packets from a buffer, skipping over
// anything unparseable. Used for collecting sync read replies.
func (c *Codec) DecodeAll(data []byte, max int) []Packet {
	packets := make([]Packet, 0, max)
	offset := 0

	for len(packets) < max && offset < len(data) {
		pkt, consumed, err := c.Decode(data[offset:])
		if err != nil {
			next := findHeader(data[offset+1:])
			if next < 0 {
				break
			}
			offset += 1 + next
			continue
		}
		packets = append(packets, pkt)
		offset += consumed
	}

	return packets
}

// IsPingReply reports whether data looks like a valid reply from id:
// intact header, echoed id, and at least the 6-byte minimum frame.
func IsPingReply(data []byte, id byte) bool {
	return len(data) >= 6 && data[0] == header1 && data[1] == header2 && data[2] == id
}

// ResponseLength returns the wire length of a response carrying n data
// bytes: header(2) + id + length + status + data + checksum.
func ResponseLength(n int) int {
	return 6 + n
}

func findHeader(data []byte) int {
	for i := 0; i+6 <= len(data); i++ {
		if data[i] == header1 && data[i+1] == header2 {
			return i
		}
	}
	return -1
}

// Instruction packet builders.

// Ping builds a ping instruction for the given servo.
func (c *Codec) Ping(id byte) []byte {
	return c.Encode(Packet{ID: id, Instruction: InstPing})
}

// Read builds a register read instruction.
func (c *Codec) Read(id, addr, n byte) []byte {
	return c.Encode(Packet{ID: id, Instruction: InstRead, Params: []byte{addr, n}})
}

// Write builds a register write instruction.
func (c *Codec) Write(id, addr byte, data []byte) []byte {
	params := make([]byte, 0, 1+len(data))
	params = append(params, addr)
	params = append(params, data...)
	return c.Encode(Packet{ID: id, Instruction: InstWrite, Params: params})
}

// RegWrite builds a buffered write instruction, executed later by Action.
func (c *Codec) RegWrite(id, addr byte, data []byte) []byte {
	params := make([]byte, 0, 1+len(data))
	params = append(params, addr)
	params = append(params, data...)
	return c.Encode(Packet{ID: id, Instruction: InstRegWrite, Params: params})
}

// Action builds the broadcast trigger for buffered RegWrite commands.
func (c *Codec) Action() []byte {
	return c.Encode(Packet{ID: BroadcastID, Instruction: InstAction})
}

// SyncWrite builds a broadcast write of n bytes at addr for several servos.
// IDs are emitted in the order given; each entry in data must be n bytes.
func (c *Codec) SyncWrite(addr, n byte, ids []byte, data map[byte][]byte) ([]byte, error) {
	params := make([]byte, 0, 2+len(ids)*(1+int(n)))
	params = append(params, addr, n)
	for _, id := range ids {
		d, ok := data[id]
		if !ok {
			continue
		}
		if len(d) != int(n) {
			return nil, fmt.Errorf("servo %d: sync write needs %d bytes, got %d", id, n, len(d))
		}
		params = append(params, id)
		params = append(params, d...)
	}
	return c.Encode(Packet{ID: BroadcastID, Instruction: InstSyncWrite, Params: params}), nil
}

// SyncRead builds a broadcast read of n bytes at addr from several servos.
func (c *Codec) SyncRead(addr, n byte, ids []byte) []byte {
	params := make([]byte, 0, 2+len(ids))
	params = append(params, addr, n)
	params = append(params, ids...)
	return c.Encode(Packet{ID: BroadcastID, Instruction: InstSyncRead, Params: params})
}
