package sid

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

type mockCPU struct {
	memory [0x10000]byte
}

func (m *mockCPU) CopyMemoryBlock(address uint16, data []byte) {
	copy(m.memory[address:], data)
}

func (m *mockCPU) DumpMemory() []byte {
	data := make([]byte, len(m.memory))
	copy(data, m.memory[:])
	return data
}

func (m *mockCPU) LoadMemory(data []byte) {
	copy(m.memory[:], data)
}

// buildSIDFile creates a minimal PSID v2 file.
func buildSIDFile(loadAddress uint16, data []byte) []byte {
	buffer := make([]byte, headerSizeV2)
	copy(buffer, "PSID")
	binary.BigEndian.PutUint16(buffer[4:], 2)
	binary.BigEndian.PutUint16(buffer[6:], headerSizeV2)
	binary.BigEndian.PutUint16(buffer[8:], loadAddress)
	binary.BigEndian.PutUint16(buffer[10:], 0x1000)
	binary.BigEndian.PutUint16(buffer[12:], 0x1003)
	binary.BigEndian.PutUint16(buffer[14:], 1)
	binary.BigEndian.PutUint16(buffer[16:], 1)
	copy(buffer[22:], "Test Song")
	copy(buffer[54:], "Test Author")
	copy(buffer[86:], "2026 Test")

	if loadAddress == 0 {
		// embedded load address in front of the data
		buffer = append(buffer, 0x00, 0x10)
	}
	return append(buffer, data...)
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(filename, data, 0o644))
	return filename
}

func TestParseHeader(t *testing.T) {
	buffer := buildSIDFile(0x1000, []byte{0x60})
	header, err := parseHeader(buffer)
	assert.NoError(t, err)

	assert.Equal(t, "PSID", header.MagicID)
	assert.Equal(t, uint16(2), header.Version)
	assert.Equal(t, uint16(headerSizeV2), header.DataOffset)
	assert.Equal(t, uint16(0x1000), header.LoadAddress)
	assert.Equal(t, uint16(0x1000), header.InitAddress)
	assert.Equal(t, uint16(0x1003), header.PlayAddress)
	assert.Equal(t, "Test Song", header.Name)
	assert.Equal(t, "Test Author", header.Author)
	assert.Equal(t, "2026 Test", header.Copyright)
	assert.True(t, header.IsPAL())
}

func TestParseHeaderInvalidMagic(t *testing.T) {
	buffer := buildSIDFile(0x1000, nil)
	copy(buffer, "XXXX")

	_, err := parseHeader(buffer)
	assert.ErrorContains(t, err, "invalid SID file magic")
}

func TestParseHeaderTooSmall(t *testing.T) {
	_, err := parseHeader(make([]byte, 10))
	assert.ErrorContains(t, err, "too small")
}

func TestLoadSID(t *testing.T) {
	logger := log.NewTestLogger(t)
	cpu := &mockCPU{}
	loader := NewLoader(logger, cpu)

	data := []byte{0xa9, 0x00, 0x60}
	filename := writeTempFile(t, "test.sid", buildSIDFile(0x1000, data))

	assert.NoError(t, loader.LoadSID(filename))

	assert.Equal(t, uint16(0x1000), loader.LoadAddress())
	assert.Equal(t, uint16(0x1000), loader.InitAddress())
	assert.Equal(t, uint16(0x1003), loader.PlayAddress())
	assert.Equal(t, uint16(3), loader.DataSize())
	assert.Equal(t, data, loader.OriginalMemory())
	assert.Equal(t, byte(0xa9), cpu.memory[0x1000])
}

func TestLoadSIDEmbeddedLoadAddress(t *testing.T) {
	logger := log.NewTestLogger(t)
	cpu := &mockCPU{}
	loader := NewLoader(logger, cpu)

	data := []byte{0xa9, 0x00, 0x60}
	filename := writeTempFile(t, "test.sid", buildSIDFile(0, data))

	assert.NoError(t, loader.LoadSID(filename))

	// the first two data bytes carry the load address
	assert.Equal(t, uint16(0x1000), loader.LoadAddress())
	assert.Equal(t, uint16(3), loader.DataSize())
	assert.Equal(t, byte(0xa9), cpu.memory[0x1000])
}

func TestLoadPRG(t *testing.T) {
	logger := log.NewTestLogger(t)
	cpu := &mockCPU{}
	loader := NewLoader(logger, cpu)

	// load address $2000 in the PRG header
	filename := writeTempFile(t, "test.prg", []byte{0x00, 0x20, 0xa9, 0x00, 0x60})

	assert.NoError(t, loader.LoadPRG(filename, 0, 0x2003))

	assert.Equal(t, uint16(0x2000), loader.LoadAddress())
	// zero init address defaults to the load address
	assert.Equal(t, uint16(0x2000), loader.InitAddress())
	assert.Equal(t, uint16(0x2003), loader.PlayAddress())
	assert.Equal(t, byte(0xa9), cpu.memory[0x2000])
}

func TestLoadBIN(t *testing.T) {
	logger := log.NewTestLogger(t)
	cpu := &mockCPU{}
	loader := NewLoader(logger, cpu)

	filename := writeTempFile(t, "test.bin", []byte{0xa9, 0x00, 0x60})

	assert.NoError(t, loader.LoadBIN(filename, 0x1000, 0x1000, 0x1003))

	assert.Equal(t, uint16(0x1000), loader.LoadAddress())
	assert.Equal(t, uint16(3), loader.DataSize())
	assert.Equal(t, "PSID", loader.Header().MagicID)
}

func TestLoadBINDataTooLarge(t *testing.T) {
	logger := log.NewTestLogger(t)
	cpu := &mockCPU{}
	loader := NewLoader(logger, cpu)

	filename := writeTempFile(t, "test.bin", make([]byte, 0x100))

	err := loader.LoadBIN(filename, 0xffc0, 0xffc0, 0xffc3)
	assert.ErrorContains(t, err, "does not fit")
}

func TestBackupRestoreMemory(t *testing.T) {
	logger := log.NewTestLogger(t)
	cpu := &mockCPU{}
	loader := NewLoader(logger, cpu)

	filename := writeTempFile(t, "test.bin", []byte{0xa9, 0x00, 0x60})
	assert.NoError(t, loader.LoadBIN(filename, 0x1000, 0x1000, 0x1003))

	loader.BackupMemory()
	cpu.memory[0x1000] = 0xff
	loader.RestoreMemory()

	assert.Equal(t, byte(0xa9), cpu.memory[0x1000])
}

func TestHeaderOverrides(t *testing.T) {
	logger := log.NewTestLogger(t)
	cpu := &mockCPU{}
	loader := NewLoader(logger, cpu)

	filename := writeTempFile(t, "test.bin", []byte{0x60})
	assert.NoError(t, loader.LoadBIN(filename, 0x1000, 0x1000, 0x1003))

	loader.SetInitAddress(0x1100)
	loader.SetPlayAddress(0x1106)
	loader.SetTitle("Title")
	loader.SetAuthor("Author")
	loader.SetCopyright("Copyright")

	header := loader.Header()
	assert.Equal(t, uint16(0x1100), header.InitAddress)
	assert.Equal(t, uint16(0x1106), header.PlayAddress)
	assert.Equal(t, "Title", header.Name)
	assert.Equal(t, "Author", header.Author)
	assert.Equal(t, "Copyright", header.Copyright)
}
