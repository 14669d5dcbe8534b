package scs

import (
	"bytes"
	"testing"
)

func TestCodec_PingPacket(t *testing.T) {
	c := NewCodec(SeriesSTS)

	tests := []struct {
		id       byte
		expected []byte
	}{
		// Checksum = ~(id + len + inst). Ping ID 1: ~(01+02+01) = FB.
		{0x01, []byte{0xFF, 0xFF, 0x01, 0x02, 0x01, 0xFB}},
		// Ping ID 6: 0xFF - ((6+2+1) % 256) = F6.
		{0x06, []byte{0xFF, 0xFF, 0x06, 0x02, 0x01, 0xF6}},
		{BroadcastID, []byte{0xFF, 0xFF, 0xFE, 0x02, 0x01, 0xFE}},
	}

	for _, tt := range tests {
		got := c.Ping(tt.id)
		if !bytes.Equal(got, tt.expected) {
			t.Errorf("Ping(%d): got %X, want %X", tt.id, got, tt.expected)
		}
	}
}

func TestCodec_ReadPacket(t *testing.T) {
	c := NewCodec(SeriesSTS)

	// Read 2 bytes of present position (0x38) from servo 1:
	// FF FF 01 04 02 38 02 BE
	got := c.Read(0x01, 0x38, 0x02)
	expected := []byte{0xFF, 0xFF, 0x01, 0x04, 0x02, 0x38, 0x02, 0xBE}

	if !bytes.Equal(got, expected) {
		t.Errorf("Read: got %X, want %X", got, expected)
	}
}

func TestCodec_WritePacket(t *testing.T) {
	c := NewCodec(SeriesSTS)

	// Write ID value 1 to address 5 via broadcast: FF FF FE 04 03 05 01 F4
	got := c.Write(BroadcastID, 0x05, []byte{0x01})
	expected := []byte{0xFF, 0xFF, 0xFE, 0x04, 0x03, 0x05, 0x01, 0xF4}

	if !bytes.Equal(got, expected) {
		t.Errorf("Write: got %X, want %X", got, expected)
	}
}

func TestChecksum_Property(t *testing.T) {
	// For every encoded packet, id + len + inst + params + checksum must
	// sum to 0xFF modulo 256.
	c := NewCodec(SeriesSTS)

	packets := [][]byte{
		c.Ping(1),
		c.Ping(6),
		c.Read(3, RegPresentPosition.Addr, 2),
		c.Write(2, RegGoalPosition.Addr, []byte{0x00, 0x08}),
		c.Write(5, RegTorqueEnable.Addr, []byte{1}),
		c.RegWrite(4, RegGoalPosition.Addr, []byte{0xFF, 0x0F}),
		c.SyncRead(RegPresentPosition.Addr, 2, []byte{1, 2, 3, 4, 5, 6}),
		c.Action(),
	}

	for _, pkt := range packets {
		var sum int
		for _, b := range pkt[2:] { // everything after the header
			sum += int(b)
		}
		if sum%256 != 0xFF {
			t.Errorf("packet %X: byte sum %% 256 = %02X, want FF", pkt, sum%256)
		}
	}
}

func TestCodec_EncodeDecodeRoundTrip(t *testing.T) {
	c := NewCodec(SeriesSTS)

	tests := []struct {
		name string
		pkt  Packet
	}{
		{"no params", Packet{ID: 1, Instruction: 0x00}},
		{"two params", Packet{ID: 6, Instruction: 0x00, Params: []byte{0x18, 0x05}}},
		{"max id", Packet{ID: MaxID, Instruction: 0x00, Params: []byte{0xFF, 0xFF, 0x00}}},
	}

	// A response frame carries a status byte where an instruction frame
	// carries the instruction, so encode with instruction 0 to exercise
	// the shared layout and verify every field survives the wire.
	for _, tt := range tests {
		wire := c.Encode(tt.pkt)
		got, consumed, err := c.Decode(wire)
		if err != nil {
			t.Fatalf("%s: Decode failed: %v", tt.name, err)
		}
		if consumed != len(wire) {
			t.Errorf("%s: consumed %d of %d bytes", tt.name, consumed, len(wire))
		}
		if got.ID != tt.pkt.ID {
			t.Errorf("%s: ID: got %d, want %d", tt.name, got.ID, tt.pkt.ID)
		}
		if byte(got.Status) != tt.pkt.Instruction {
			t.Errorf("%s: status byte: got %02X, want %02X", tt.name, got.Status, tt.pkt.Instruction)
		}
		if !bytes.Equal(got.Params, tt.pkt.Params) {
			t.Errorf("%s: params: got %X, want %X", tt.name, got.Params, tt.pkt.Params)
		}
	}
}

func TestCodec_DecodeResponse(t *testing.T) {
	c := NewCodec(SeriesSTS)

	// Ping reply from servo 1: FF FF 01 02 00 FC
	pkt, consumed, err := c.Decode([]byte{0xFF, 0xFF, 0x01, 0x02, 0x00, 0xFC})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if consumed != 6 {
		t.Errorf("consumed: got %d, want 6", consumed)
	}
	if pkt.ID != 1 {
		t.Errorf("ID: got %d, want 1", pkt.ID)
	}
	if pkt.Status.HasError() {
		t.Errorf("unexpected status flags: %v", pkt.Status)
	}
}

func TestCodec_DecodeWithData(t *testing.T) {
	c := NewCodec(SeriesSTS)

	// Position read reply: FF FF 01 04 00 18 05 DD, position 0x0518.
	pkt, _, err := c.Decode([]byte{0xFF, 0xFF, 0x01, 0x04, 0x00, 0x18, 0x05, 0xDD})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(pkt.Params) != 2 {
		t.Fatalf("params length: got %d, want 2", len(pkt.Params))
	}
	if pos := c.ParseWord(pkt.Params); pos != 0x0518 {
		t.Errorf("position: got %d, want %d", pos, 0x0518)
	}
}

func TestCodec_DecodeSkipsGarbage(t *testing.T) {
	c := NewCodec(SeriesSTS)

	data := []byte{0x00, 0x12, 0xFF, 0xFF, 0x01, 0x02, 0x00, 0xFC}
	pkt, consumed, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if consumed != 8 { // 2 garbage + 6 packet
		t.Errorf("consumed: got %d, want 8", consumed)
	}
	if pkt.ID != 1 {
		t.Errorf("ID: got %d, want 1", pkt.ID)
	}
}

func TestCodec_DecodeChecksumError(t *testing.T) {
	c := NewCodec(SeriesSTS)

	// Correct checksum would be FC.
	_, _, err := c.Decode([]byte{0xFF, 0xFF, 0x01, 0x02, 0x00, 0x00})
	if err == nil {
		t.Fatal("expected checksum error")
	}
}

func TestCodec_DecodeTruncated(t *testing.T) {
	c := NewCodec(SeriesSTS)

	// Claims 4 payload bytes but the buffer ends early.
	_, _, err := c.Decode([]byte{0xFF, 0xFF, 0x01, 0x04, 0x00, 0x18})
	if err == nil {
		t.Fatal("expected short packet error")
	}
}

func TestCodec_DecodeAll(t *testing.T) {
	c := NewCodec(SeriesSTS)

	data := []byte{
		0xFF, 0xFF, 0x01, 0x04, 0x00, 0x00, 0x08, 0xF2, // ID 1, position 2048
		0xFF, 0xFF, 0x02, 0x04, 0x00, 0x00, 0x10, 0xE9, // ID 2, position 4096
	}

	packets := c.DecodeAll(data, 2)
	if len(packets) != 2 {
		t.Fatalf("got %d packets, want 2", len(packets))
	}
	if packets[0].ID != 1 || packets[1].ID != 2 {
		t.Errorf("IDs: got %d, %d, want 1, 2", packets[0].ID, packets[1].ID)
	}
}

func TestIsPingReply(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		id   byte
		want bool
	}{
		{"valid", []byte{0xFF, 0xFF, 0x06, 0x02, 0x00, 0xF7}, 6, true},
		{"wrong id", []byte{0xFF, 0xFF, 0x05, 0x02, 0x00, 0xF8}, 6, false},
		{"too short", []byte{0xFF, 0xFF, 0x06, 0x02, 0x00}, 6, false},
		{"bad header", []byte{0xFF, 0x00, 0x06, 0x02, 0x00, 0xF7}, 6, false},
		{"empty", nil, 6, false},
	}

	for _, tt := range tests {
		if got := IsPingReply(tt.data, tt.id); got != tt.want {
			t.Errorf("%s: IsPingReply = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCodec_WordByteOrder(t *testing.T) {
	sts := NewCodec(SeriesSTS)
	if data := sts.Word(0x1234); data[0] != 0x34 || data[1] != 0x12 {
		t.Errorf("STS Word: got %X, want [34 12]", data)
	}
	if v := sts.ParseWord([]byte{0x34, 0x12}); v != 0x1234 {
		t.Errorf("STS ParseWord: got %04X, want 1234", v)
	}

	scs := NewCodec(SeriesSCS)
	if data := scs.Word(0x1234); data[0] != 0x12 || data[1] != 0x34 {
		t.Errorf("SCS Word: got %X, want [12 34]", data)
	}
	if v := scs.ParseWord([]byte{0x12, 0x34}); v != 0x1234 {
		t.Errorf("SCS ParseWord: got %04X, want 1234", v)
	}
}

func TestCodec_SyncWritePacket(t *testing.T) {
	c := NewCodec(SeriesSTS)

	ids := []byte{1, 2}
	data := map[byte][]byte{
		1: {0x00, 0x08},
		2: {0x00, 0x08},
	}

	pkt, err := c.SyncWrite(RegGoalPosition.Addr, 2, ids, data)
	if err != nil {
		t.Fatalf("SyncWrite failed: %v", err)
	}

	if pkt[2] != BroadcastID {
		t.Error("sync write must broadcast")
	}
	if pkt[4] != InstSyncWrite {
		t.Errorf("instruction: got %02X, want %02X", pkt[4], InstSyncWrite)
	}
	if pkt[5] != RegGoalPosition.Addr || pkt[6] != 2 {
		t.Errorf("addr/len: got %02X %02X", pkt[5], pkt[6])
	}
	// IDs must appear in the order given, not map order.
	if pkt[7] != 1 || pkt[10] != 2 {
		t.Errorf("servo order: got %X", pkt[7:])
	}
}

func TestCodec_SyncWriteLengthMismatch(t *testing.T) {
	c := NewCodec(SeriesSTS)

	_, err := c.SyncWrite(RegGoalPosition.Addr, 2, []byte{1}, map[byte][]byte{1: {0x00}})
	if err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		status   Status
		hasError bool
	}{
		{0, false},
		{StatusVoltage, true},
		{StatusOverheat, true},
		{StatusOverload | StatusOverheat, true},
	}

	for _, tt := range tests {
		if tt.status.HasError() != tt.hasError {
			t.Errorf("Status(%X).HasError(): got %v, want %v",
				tt.status, tt.status.HasError(), tt.hasError)
		}
	}

	if s := (StatusOverheat | StatusOverload).Error(); s == "" {
		t.Error("expected non-empty status description")
	}
}
