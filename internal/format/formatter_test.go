package format

import (
	"fmt"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"

	"github.com/retroenv/sidgodisasm/internal/analyzer"
)

type mockMemory struct {
	data   map[uint16]byte
	ranges map[uint16][2]byte
}

func newMockMemory(base uint16, bytes []byte) *mockMemory {
	m := &mockMemory{
		data:   map[uint16]byte{},
		ranges: map[uint16][2]byte{},
	}
	for i, b := range bytes {
		m.data[base+uint16(i)] = b
	}
	return m
}

func (m *mockMemory) ReadMemoryUntracked(address uint16) byte {
	return m.data[address]
}

func (m *mockMemory) IndexRange(pc uint16) (byte, byte) {
	r := m.ranges[pc]
	return r[0], r[1]
}

type mockLabels struct {
	labels map[uint16]string
	zpVars map[byte]string
}

func (m *mockLabels) Label(addr uint16) string {
	return m.labels[addr]
}

func (m *mockLabels) FormatAddress(addr uint16) string {
	if name, ok := m.labels[addr]; ok {
		return name
	}
	return fmt.Sprintf("$%04X", addr)
}

func (m *mockLabels) FormatZeroPage(addr byte) string {
	if name, ok := m.zpVars[addr]; ok {
		return name
	}
	return fmt.Sprintf("$%02X", addr)
}

func TestFormatInstruction(t *testing.T) {
	labels := &mockLabels{
		labels: map[uint16]string{0x1234: "Label_0"},
		zpVars: map[byte]string{0xfb: "ZP_0"},
	}

	tests := []struct {
		name  string
		bytes []byte
		want  string
		size  uint16
	}{
		{name: "implied", bytes: []byte{0xea}, want: "    nop", size: 1},
		{name: "immediate", bytes: []byte{0xa9, 0x42}, want: "    lda #$42", size: 2},
		{name: "zeropage named", bytes: []byte{0xa5, 0xfb}, want: "    lda ZP_0", size: 2},
		{name: "zeropage hex", bytes: []byte{0xa5, 0x10}, want: "    lda $10", size: 2},
		{name: "absolute label", bytes: []byte{0xad, 0x34, 0x12}, want: "    lda Label_0", size: 3},
		{name: "absolute hex", bytes: []byte{0x8d, 0x00, 0x20}, want: "    sta $2000", size: 3},
		{name: "indirect y", bytes: []byte{0xb1, 0xfb}, want: "    lda (ZP_0),Y", size: 2},
		{name: "indirect x", bytes: []byte{0xa1, 0xfb}, want: "    lda (ZP_0,X)", size: 2},
		{name: "indirect jmp", bytes: []byte{0x6c, 0x34, 0x12}, want: "    jmp ($1234)", size: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newMockMemory(0x1000, tt.bytes)
			f := New(mem, labels, false)

			pc := uint16(0x1000)
			got := f.FormatInstruction(&pc)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, uint16(0x1000)+tt.size, pc)
		})
	}
}

func TestFormatInstructionBranch(t *testing.T) {
	labels := &mockLabels{labels: map[uint16]string{0x1000: "Label_0"}}

	// bne back to $1000
	mem := newMockMemory(0x1010, []byte{0xd0, 0xee})
	f := New(mem, labels, false)

	pc := uint16(0x1010)
	got := f.FormatInstruction(&pc)
	assert.Equal(t, "    bne Label_0", got)
}

func TestFormatInstructionIndexed(t *testing.T) {
	labels := &mockLabels{labels: map[uint16]string{0x1105: "DataBlock_0"}}

	mem := newMockMemory(0x1000, []byte{0xbd, 0x00, 0x11})
	// operand was always used with index offsets 5..9
	mem.ranges[0x1001] = [2]byte{5, 9}
	f := New(mem, labels, false)

	pc := uint16(0x1000)
	got := f.FormatInstruction(&pc)
	assert.Equal(t, "    lda DataBlock_0-5,X", got)
}

func TestFormatInstructionCIAPatch(t *testing.T) {
	labels := &mockLabels{}
	mem := newMockMemory(0x1000, []byte{0x8d, 0x04, 0xdc})
	f := New(mem, labels, false)

	pc := uint16(0x1000)
	got := f.FormatInstruction(&pc)
	assert.Equal(t, "    bit $abcd   //; disabled sta $DC04 (CIA Timer)", got)
	assert.Equal(t, uint16(0x1003), pc)
}

func TestFormatDataBytes(t *testing.T) {
	labels := &mockLabels{labels: map[uint16]string{0x1000: "DataBlock_0"}}
	original := []byte{0x01, 0x02, 0x03, 0x04}
	mem := newMockMemory(0x1000, original)
	f := New(mem, labels, false)

	types := make([]analyzer.MemoryType, 0x10000)
	for addr := 0x1000; addr < 0x1004; addr++ {
		types[addr] = analyzer.Data | analyzer.Accessed
	}

	var buf strings.Builder
	pc := uint16(0x1000)
	unused, err := f.FormatDataBytes(&buf, &pc, original, 0x1000, 0x1004, nil, types)
	assert.NoError(t, err)
	assert.Equal(t, 0, unused)
	assert.Equal(t, uint16(0x1004), pc)

	want := "DataBlock_0:\n    .byte $01, $02, $03, $04\n"
	assert.Equal(t, want, buf.String())
}

func TestFormatDataBytesRelocation(t *testing.T) {
	labels := &mockLabels{labels: map[uint16]string{0x2000: "Label_0"}}
	original := []byte{0x00, 0x20, 0xff}
	mem := newMockMemory(0x1000, original)
	f := New(mem, labels, false)

	types := make([]analyzer.MemoryType, 0x10000)
	for addr := 0x1000; addr < 0x1003; addr++ {
		types[addr] = analyzer.Data | analyzer.Accessed
	}

	relocations := map[uint16]RelocationByte{
		0x1000: {Target: 0x2000, High: false},
		0x1001: {Target: 0x2000, High: true},
	}

	var buf strings.Builder
	pc := uint16(0x1000)
	_, err := f.FormatDataBytes(&buf, &pc, original, 0x1000, 0x1003, relocations, types)
	assert.NoError(t, err)

	want := "    .byte <(Label_0)\n    .byte >(Label_0)\n    .byte $FF\n"
	assert.Equal(t, want, buf.String())
}

func TestFormatDataBytesLineBreak(t *testing.T) {
	labels := &mockLabels{}
	original := make([]byte, 20)
	for i := range original {
		original[i] = byte(i)
	}
	mem := newMockMemory(0x1000, original)
	f := New(mem, labels, false)

	types := make([]analyzer.MemoryType, 0x10000)
	for addr := 0x1000; addr < 0x1014; addr++ {
		types[addr] = analyzer.Data
	}

	var buf strings.Builder
	pc := uint16(0x1000)
	_, err := f.FormatDataBytes(&buf, &pc, original, 0x1000, 0x1014, nil, types)
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "    .byte $00, "))
	assert.True(t, strings.HasPrefix(lines[1], "    .byte $10, "))
}

func TestFormatDataBytesZeroUnused(t *testing.T) {
	labels := &mockLabels{}
	original := []byte{0xaa, 0xbb}
	mem := newMockMemory(0x1000, original)
	f := New(mem, labels, true)

	types := make([]analyzer.MemoryType, 0x10000)
	types[0x1000] = analyzer.Data | analyzer.Accessed
	types[0x1001] = analyzer.Data

	var buf strings.Builder
	pc := uint16(0x1000)
	unused, err := f.FormatDataBytes(&buf, &pc, original, 0x1000, 0x1002, nil, types)
	assert.NoError(t, err)
	assert.Equal(t, 1, unused)
	assert.Equal(t, "    .byte $AA, $00\n", buf.String())
}

func TestSIDRegisterName(t *testing.T) {
	assert.Equal(t, "Voice1FreqLo", SIDRegisterName(0))
	assert.Equal(t, "FilterModeVolume", SIDRegisterName(24))
	assert.Equal(t, "", SIDRegisterName(25))
}
