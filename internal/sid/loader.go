// Package sid handles loading of SID, PRG and BIN files containing C64 music data.
package sid

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/retroenv/retrogolib/log"
)

// memoryController is the CPU surface the loader needs to place music data
// into emulated memory and to back it up around analysis runs.
type memoryController interface {
	CopyMemoryBlock(address uint16, data []byte)
	DumpMemory() []byte
	LoadMemory(data []byte)
}

// Loader loads SID music files into the CPU and keeps a pristine copy of the
// loaded data. Emulation mutates live memory, the pristine copy is what the
// disassembly output is derived from.
type Loader struct {
	logger *log.Logger
	cpu    memoryController

	header   Header
	dataSize uint16

	originalMemory     []byte
	originalMemoryBase uint16

	memoryBackup []byte
}

// NewLoader creates a new SID file loader.
func NewLoader(logger *log.Logger, cpu memoryController) *Loader {
	return &Loader{
		logger: logger,
		cpu:    cpu,
	}
}

// LoadSID loads a PSID/RSID file into CPU memory.
func (l *Loader) LoadSID(filename string) error {
	buffer, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading file '%s': %w", filename, err)
	}

	header, err := parseHeader(buffer)
	if err != nil {
		return fmt.Errorf("parsing SID header: %w", err)
	}

	dataOffset := int(header.DataOffset)
	if dataOffset >= len(buffer) {
		return fmt.Errorf("data offset %d exceeds file size %d", dataOffset, len(buffer))
	}

	// a zero load address means the first two data bytes contain it
	if header.LoadAddress == 0 {
		if dataOffset+2 > len(buffer) {
			return fmt.Errorf("missing embedded load address")
		}
		header.LoadAddress = binary.LittleEndian.Uint16(buffer[dataOffset:])
		dataOffset += 2
	}

	l.header = header
	return l.copyMusicToMemory(buffer[dataOffset:], header.LoadAddress)
}

// LoadPRG loads a C64 program file, the first two bytes contain the load address.
func (l *Loader) LoadPRG(filename string, initAddr, playAddr uint16) error {
	buffer, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading file '%s': %w", filename, err)
	}
	if len(buffer) < 3 {
		return fmt.Errorf("PRG file too small: %d bytes", len(buffer))
	}

	loadAddr := binary.LittleEndian.Uint16(buffer)
	l.createHeader(loadAddr, initAddr, playAddr)
	return l.copyMusicToMemory(buffer[2:], loadAddr)
}

// LoadBIN loads a raw binary file to the given load address.
func (l *Loader) LoadBIN(filename string, loadAddr, initAddr, playAddr uint16) error {
	buffer, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading file '%s': %w", filename, err)
	}
	if len(buffer) == 0 {
		return fmt.Errorf("file is empty: %s", filename)
	}

	l.createHeader(loadAddr, initAddr, playAddr)
	return l.copyMusicToMemory(buffer, loadAddr)
}

// createHeader synthesizes a SID header for non SID format files.
func (l *Loader) createHeader(loadAddr, initAddr, playAddr uint16) {
	l.header = Header{
		MagicID:     "PSID",
		Version:     2,
		DataOffset:  headerSizeV2,
		LoadAddress: loadAddr,
		InitAddress: initAddr,
		PlayAddress: playAddr,
		Songs:       1,
		StartSong:   1,
	}
	if initAddr == 0 {
		l.header.InitAddress = loadAddr
	}
}

// copyMusicToMemory copies the music data into CPU memory and keeps the
// pristine snapshot.
func (l *Loader) copyMusicToMemory(data []byte, loadAddr uint16) error {
	if len(data) == 0 || int(loadAddr)+len(data) > 0x10000 {
		return fmt.Errorf("music data of size %d does not fit at load address $%04x", len(data), loadAddr)
	}

	l.dataSize = uint16(len(data))
	l.cpu.CopyMemoryBlock(loadAddr, data)

	l.originalMemory = make([]byte, len(data))
	copy(l.originalMemory, data)
	l.originalMemoryBase = loadAddr

	l.logger.Debug("Loaded music data",
		log.String("load", fmt.Sprintf("$%04x", loadAddr)),
		log.String("init", fmt.Sprintf("$%04x", l.header.InitAddress)),
		log.String("play", fmt.Sprintf("$%04x", l.header.PlayAddress)),
		log.Int("size", len(data)),
	)
	return nil
}

// BackupMemory stores a copy of the CPU memory for later restoration.
func (l *Loader) BackupMemory() {
	l.memoryBackup = l.cpu.DumpMemory()
}

// RestoreMemory restores the CPU memory from the backup.
func (l *Loader) RestoreMemory() {
	if l.memoryBackup != nil {
		l.cpu.LoadMemory(l.memoryBackup)
	}
}

// Header returns the decoded or synthesized file header.
func (l *Loader) Header() Header {
	return l.header
}

// LoadAddress returns the address the music data is loaded to.
func (l *Loader) LoadAddress() uint16 {
	return l.header.LoadAddress
}

// InitAddress returns the address of the init routine.
func (l *Loader) InitAddress() uint16 {
	return l.header.InitAddress
}

// PlayAddress returns the address of the play routine.
func (l *Loader) PlayAddress() uint16 {
	return l.header.PlayAddress
}

// DataSize returns the size of the loaded music data.
func (l *Loader) DataSize() uint16 {
	return l.dataSize
}

// OriginalMemory returns the pristine copy of the loaded data.
func (l *Loader) OriginalMemory() []byte {
	return l.originalMemory
}

// OriginalMemoryBase returns the address of the first pristine byte.
func (l *Loader) OriginalMemoryBase() uint16 {
	return l.originalMemoryBase
}

// SetInitAddress overrides the init address in the header.
func (l *Loader) SetInitAddress(address uint16) {
	l.header.InitAddress = address
}

// SetPlayAddress overrides the play address in the header.
func (l *Loader) SetPlayAddress(address uint16) {
	l.header.PlayAddress = address
}

// SetTitle overrides the title in the header.
func (l *Loader) SetTitle(title string) {
	l.header.Name = title
}

// SetAuthor overrides the author in the header.
func (l *Loader) SetAuthor(author string) {
	l.header.Author = author
}

// SetCopyright overrides the copyright info in the header.
func (l *Loader) SetCopyright(copyright string) {
	l.header.Copyright = copyright
}
