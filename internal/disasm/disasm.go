// Package disasm discovers address references in emulated SID players and
// writes the relocatable assembly output.
package disasm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/retroenv/retrogolib/log"

	"github.com/retroenv/sidgodisasm/internal/analyzer"
	"github.com/retroenv/sidgodisasm/internal/cpu"
	"github.com/retroenv/sidgodisasm/internal/format"
	"github.com/retroenv/sidgodisasm/internal/options"
	"github.com/retroenv/sidgodisasm/internal/sid"
)

const (
	sidWindowStart = 0xd400
	sidWindowEnd   = 0xd7ff

	commentColumn = 96
)

// provenanceReader is the CPU surface needed for relocation discovery.
type provenanceReader interface {
	WriteSourceInfo(address uint16) cpu.RegisterSourceInfo
	LastWriteTo(address uint16) uint16
}

// musicData is the loader surface providing the pristine binary.
type musicData interface {
	Header() sid.Header
	LoadAddress() uint16
	DataSize() uint16
	OriginalMemory() []byte
	OriginalMemoryBase() uint16
}

// memoryClassifier is the analysis surface consumed during emission.
type memoryClassifier interface {
	MemoryType(addr uint16) analyzer.MemoryType
	MemoryTypes() []analyzer.MemoryType
}

// symbolRegistry is the mutable label generator surface. Constant emission
// registers hardware bases and zero page variables, relocation discovery
// marks data block subdivisions.
type symbolRegistry interface {
	Label(addr uint16) string
	FormatAddress(addr uint16) string
	AddHardwareBase(address uint16, index int, name string)
	AddZeroPageVar(addr byte, name string)
	AddPendingSubdivision(addr uint16)
}

// sourceFormatter renders single instructions and data byte runs.
type sourceFormatter interface {
	FormatInstruction(pc *uint16) string
	FormatDataBytes(w io.Writer, pc *uint16, original []byte,
		originalBase, endAddress uint16, relocations map[uint16]format.RelocationByte,
		types []analyzer.MemoryType) (int, error)
}

// Writer discovers relocatable address references from emulation traces and
// generates the assembly output file.
type Writer struct {
	logger  *log.Logger
	opts    options.Disassembler
	version string

	cpu       provenanceReader
	music     musicData
	memory    memoryClassifier
	symbols   symbolRegistry
	formatter sourceFormatter

	relocations      *RelocationTable
	indirectAccesses []IndirectAccessInfo
}

// NewWriter creates a disassembly writer.
func NewWriter(logger *log.Logger, opts options.Disassembler, version string,
	cpu provenanceReader, music musicData, memory memoryClassifier,
	symbols symbolRegistry, formatter sourceFormatter) *Writer {

	return &Writer{
		logger:      logger,
		opts:        opts,
		version:     version,
		cpu:         cpu,
		music:       music,
		memory:      memory,
		symbols:     symbols,
		formatter:   formatter,
		relocations: NewRelocationTable(),
	}
}

// Relocations returns the relocation table.
func (w *Writer) Relocations() *RelocationTable {
	return w.relocations
}

// AddIndirectAccess records a pointer dereference observed during emulation.
// The access is only kept when both pointer halves were copied from memory,
// immediate or unknown values carry no relocation information.
func (w *Writer) AddIndirectAccess(pc uint16, zpAddr byte, effectiveAddr uint16) {
	lowSource := w.cpu.WriteSourceInfo(uint16(zpAddr))
	highSource := w.cpu.WriteSourceInfo(uint16(zpAddr) + 1)

	if lowSource.Type != cpu.SourceMemory || highSource.Type != cpu.SourceMemory {
		return
	}

	w.indirectAccesses = append(w.indirectAccesses, IndirectAccessInfo{
		InstructionAddress: pc,
		ZPAddress:          zpAddr,
		ZPPairAddress:      zpAddr + 1,
		LastWriteLow:       w.cpu.LastWriteTo(uint16(zpAddr)),
		LastWriteHigh:      w.cpu.LastWriteTo(uint16(zpAddr) + 1),
		SourceLowAddress:   lowSource.Address,
		SourceHighAddress:  highSource.Address,
		EffectiveAddress:   effectiveAddr,
	})

	w.logger.Debug("Recorded indirect access",
		log.String("pc", fmt.Sprintf("$%04X", pc)),
		log.String("zp", fmt.Sprintf("$%02X", zpAddr)),
		log.String("effective", fmt.Sprintf("$%04X", effectiveAddr)),
	)
}

// ProcessIndirectAccesses converts the recorded pointer dereferences into
// relocation entries. The pointer target is re-derived from the pristine
// binary, emulation may have overwritten the live bytes.
func (w *Writer) ProcessIndirectAccesses() {
	if len(w.indirectAccesses) == 0 {
		w.logger.Debug("No indirect accesses to process")
		return
	}

	w.logger.Debug("Processing indirect accesses",
		log.Int("count", len(w.indirectAccesses)))

	original := w.music.OriginalMemory()
	base := w.music.OriginalMemoryBase()
	loadAddress := w.music.LoadAddress()

	for _, access := range w.indirectAccesses {
		if !insideOriginal(access.SourceLowAddress, base, len(original)) ||
			!insideOriginal(access.SourceHighAddress, base, len(original)) {
			continue
		}

		low := original[access.SourceLowAddress-base]
		high := original[access.SourceHighAddress-base]
		target := uint16(low) | uint16(high)<<8

		w.relocations.Add(access.SourceLowAddress, RelocationInfo{Target: target, Type: RelocationLow})
		w.relocations.Add(access.SourceHighAddress, RelocationInfo{Target: target, Type: RelocationHigh})

		w.logger.Debug("Added relocation pair",
			log.String("low", fmt.Sprintf("$%04X", access.SourceLowAddress)),
			log.String("high", fmt.Sprintf("$%04X", access.SourceHighAddress)),
			log.String("target", fmt.Sprintf("$%04X", target)),
		)

		if access.SourceLowAddress >= loadAddress && access.SourceHighAddress >= loadAddress {
			w.symbols.AddPendingSubdivision(access.SourceLowAddress)
			w.symbols.AddPendingSubdivision(access.SourceHighAddress)
		}
	}

	w.propagateRelocationSources()
}

// propagateRelocationSources closes the relocation table transitively: when a
// relocated byte was itself copied from another table, the copy source is a
// relocation byte too. A worklist with a visited set reaches the fixed point,
// the configurable depth limit guards against degenerate chains.
func (w *Writer) propagateRelocationSources() {
	w.logger.Debug("Propagating relocation sources")

	original := w.music.OriginalMemory()
	base := w.music.OriginalMemoryBase()

	type workItem struct {
		address uint16
		depth   int
	}

	var worklist []workItem
	for _, addr := range w.relocations.SortedAddresses() {
		if info, _ := w.relocations.Get(addr); info.Type == RelocationLow {
			worklist = append(worklist, workItem{address: addr})
		}
	}

	visited := map[uint16]bool{}
	capped := false

	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]

		if visited[item.address] {
			continue
		}
		visited[item.address] = true

		if w.opts.PropagationDepth > 0 && item.depth >= w.opts.PropagationDepth {
			capped = true
			continue
		}

		source := w.cpu.WriteSourceInfo(item.address)
		if source.Type != cpu.SourceMemory {
			continue
		}
		lowAddr := source.Address

		// find the matching high byte within the pairing window
		for offset := uint16(1); offset <= uint16(w.opts.PairScanWindow); offset++ {
			info, ok := w.relocations.Get(item.address + offset)
			if !ok || info.Type != RelocationHigh {
				continue
			}
			highAddr := w.cpu.WriteSourceInfo(item.address + offset).Address

			if !insideOriginal(lowAddr, base, len(original)) ||
				!insideOriginal(highAddr, base, len(original)) {
				continue
			}

			low := original[lowAddr-base]
			high := original[highAddr-base]
			target := uint16(low) | uint16(high)<<8

			if !w.relocations.Has(lowAddr) {
				w.relocations.Add(lowAddr, RelocationInfo{Target: target, Type: RelocationLow})
				w.symbols.AddPendingSubdivision(lowAddr)
				worklist = append(worklist, workItem{address: lowAddr, depth: item.depth + 1})

				w.logger.Debug("Propagated relocation",
					log.String("low", fmt.Sprintf("$%04X", lowAddr)),
					log.String("target", fmt.Sprintf("$%04X", target)),
				)
			}
			if !w.relocations.Has(highAddr) {
				w.relocations.Add(highAddr, RelocationInfo{Target: target, Type: RelocationHigh})
				w.symbols.AddPendingSubdivision(highAddr)

				w.logger.Debug("Propagated relocation",
					log.String("high", fmt.Sprintf("$%04X", highAddr)),
					log.String("target", fmt.Sprintf("$%04X", target)),
				)
			}
			break
		}
	}

	if capped {
		w.logger.Warn("Relocation propagation stopped at depth limit",
			log.Int("depth", w.opts.PropagationDepth))
	}

	w.logger.Debug("Propagation complete",
		log.Int("relocationBytes", w.relocations.Len()))
}

// GenerateAsmFile writes the complete assembly file and returns the number
// of unused bytes that were zeroed out.
func (w *Writer) GenerateAsmFile(filename string, sidLoad, sidInit, sidPlay uint16) (int, error) {
	w.logger.Info("Generating assembly file",
		log.String("output", filename),
		log.String("load", fmt.Sprintf("$%04X", sidLoad)),
		log.String("init", fmt.Sprintf("$%04X", sidInit)),
		log.String("play", fmt.Sprintf("$%04X", sidPlay)),
	)

	w.propagateRelocationSources()

	file, err := os.Create(filename)
	if err != nil {
		return 0, fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	buffered := bufio.NewWriter(file)
	unusedBytes, err := w.writeAsm(buffered, sidLoad)
	if err != nil {
		return 0, fmt.Errorf("writing assembly: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return 0, fmt.Errorf("flushing output: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("closing output file: %w", err)
	}
	return unusedBytes, nil
}

func (w *Writer) writeAsm(out io.Writer, sidLoad uint16) (int, error) {
	header := w.music.Header()
	if _, err := fmt.Fprintf(out, "//; ------------------------------------------\n"+
		"//; Generated by sidgodisasm %s\n"+
		"//; \n"+
		"//; Name: %s\n"+
		"//; Author: %s\n"+
		"//; Copyright: %s\n"+
		"//; ------------------------------------------\n\n",
		w.version, header.Name, header.Author, header.Copyright); err != nil {
		return 0, err
	}

	if _, err := fmt.Fprintf(out, ".const SIDLoad = $%04X\n", sidLoad); err != nil {
		return 0, err
	}
	if err := w.outputHardwareConstants(out); err != nil {
		return 0, err
	}
	if err := w.emitZPDefines(out); err != nil {
		return 0, err
	}

	unusedBytes, err := w.disassembleToFile(out)
	if err != nil {
		return 0, err
	}

	if _, err := fmt.Fprintf(out, "//; %d unused bytes zeroed out\n\n", unusedBytes); err != nil {
		return 0, err
	}
	return unusedBytes, nil
}

// outputHardwareConstants detects accessed SID chips and emits a base
// address constant per chip. At least one chip is always emitted, every
// player touches the SID.
func (w *Writer) outputHardwareConstants(out io.Writer) error {
	var bases []uint16
	seen := map[uint16]bool{}

	for addr := uint16(sidWindowStart); addr <= sidWindowEnd; addr++ {
		if w.memory.MemoryType(addr)&analyzer.Accessed == 0 {
			continue
		}
		base := addr & 0xffe0
		if !seen[base] {
			seen[base] = true
			bases = append(bases, base)
		}
		if name := format.SIDRegisterName(byte(addr & 0x1f)); name != "" {
			w.logger.Debug("SID register accessed",
				log.String("address", fmt.Sprintf("$%04X", addr)),
				log.String("register", name),
			)
		}
	}

	if len(bases) == 0 {
		bases = append(bases, sidWindowStart)
	}

	for index, base := range bases {
		name := fmt.Sprintf("SID%d", index)
		w.symbols.AddHardwareBase(base, index, name)
		if _, err := fmt.Fprintf(out, ".const %s = $%04X\n", name, base); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(out)
	return err
}

// emitZPDefines packs all accessed zero page addresses into a compact block
// below $FF and emits a constant per variable. Players are relocated to the
// top of the zero page to avoid clashes with the host program.
func (w *Writer) emitZPDefines(out io.Writer) error {
	var used []byte
	for addr := 0; addr <= 0xff; addr++ {
		if w.memory.MemoryType(uint16(addr))&analyzer.Accessed != 0 {
			used = append(used, byte(addr))
		}
	}
	if len(used) == 0 {
		return nil
	}

	zpBase := byte(0xff - len(used) + 1)
	if _, err := fmt.Fprintf(out, ".const ZP_BASE = $%02X\n", zpBase); err != nil {
		return err
	}

	for i, addr := range used {
		name := fmt.Sprintf("ZP_%d", i)
		if _, err := fmt.Fprintf(out, ".const %s = ZP_BASE + %d // $%02X\n", name, i, addr); err != nil {
			return err
		}
		w.symbols.AddZeroPageVar(addr, name)
	}

	_, err := fmt.Fprintln(out)
	return err
}

// disassembleToFile walks the loaded range once, emitting labels,
// instructions with range comments and data byte runs.
func (w *Writer) disassembleToFile(out io.Writer) (int, error) {
	pc := w.music.LoadAddress()
	end := pc + w.music.DataSize()

	if _, err := fmt.Fprintf(out, "\n* = SIDLoad\n\n"); err != nil {
		return 0, err
	}

	relocationView := w.relocations.FormatterView()
	types := w.memory.MemoryTypes()
	unusedBytes := 0

	for pc < end {
		memType := w.memory.MemoryType(pc)

		if name := w.symbols.Label(pc); name != "" && memType&analyzer.Code != 0 {
			if _, err := fmt.Fprintf(out, "%s:\n", name); err != nil {
				return unusedBytes, err
			}
		}

		switch {
		case memType&analyzer.Code != 0:
			startPC := pc
			line := w.formatter.FormatInstruction(&pc)
			if _, err := fmt.Fprintf(out, "%s //; $%04X - $%04X\n",
				padToColumn(line, commentColumn), startPC, pc-1); err != nil {
				return unusedBytes, err
			}

		case memType&analyzer.Data != 0:
			count, err := w.formatter.FormatDataBytes(out, &pc, w.music.OriginalMemory(),
				w.music.OriginalMemoryBase(), end, relocationView, types)
			unusedBytes += count
			if err != nil {
				return unusedBytes, err
			}

		default:
			pc++
		}
	}

	return unusedBytes, nil
}

func insideOriginal(addr, base uint16, size int) bool {
	return addr >= base && int(addr)-int(base) < size
}

func padToColumn(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
