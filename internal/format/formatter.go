// Package format renders instructions and data bytes as KickAssembler
// compatible source lines.
package format

import (
	"fmt"
	"io"

	"github.com/retroenv/retrogolib/arch/cpu/m6502"

	"github.com/retroenv/sidgodisasm/internal/analyzer"
)

// RelocationByte marks a data byte as the low or high half of a pointer to a
// target address. The byte is emitted as a label expression instead of its
// raw value.
type RelocationByte struct {
	Target uint16
	High   bool
}

// memoryReader is the CPU surface the formatter reads operands from.
type memoryReader interface {
	ReadMemoryUntracked(address uint16) byte
	IndexRange(pc uint16) (byte, byte)
}

// addressFormatter resolves addresses to symbolic names.
type addressFormatter interface {
	Label(addr uint16) string
	FormatAddress(addr uint16) string
	FormatZeroPage(addr byte) string
}

// Formatter renders assembly source lines from analyzed memory.
type Formatter struct {
	mem    memoryReader
	labels addressFormatter

	zeroUnusedBytes bool
}

// New creates a formatter reading operand bytes from the given memory.
func New(mem memoryReader, labels addressFormatter, zeroUnusedBytes bool) *Formatter {
	return &Formatter{
		mem:             mem,
		labels:          labels,
		zeroUnusedBytes: zeroUnusedBytes,
	}
}

// FormatInstruction renders the instruction at pc and advances pc past it.
func (f *Formatter) FormatInstruction(pc *uint16) string {
	opcode := f.mem.ReadMemoryUntracked(*pc)
	op := m6502.Opcodes[opcode]
	if op.Instruction == nil {
		line := fmt.Sprintf("    .byte $%02X", opcode)
		*pc++
		return line
	}

	mnemonic := op.Instruction.Name
	size := opcodeSize(op.Addressing)

	if op.Addressing == m6502.AbsoluteAddressing {
		absAddr := f.readWord(*pc + 1)
		if isCIAStorePatch(mnemonic, absAddr) {
			line := fmt.Sprintf("    bit $abcd   //; disabled %s $%04X (CIA Timer)",
				mnemonic, absAddr)
			*pc += uint16(size)
			return line
		}
	}

	line := "    " + mnemonic
	if size > 1 {
		line += " " + f.formatOperand(*pc, op.Addressing)
	}

	*pc += uint16(size)
	return line
}

// FormatDataBytes renders the data run starting at pc as .byte directives and
// advances pc past it. Relocation bytes are emitted as label expressions on
// their own line. Returns the number of unused bytes that were zeroed.
func (f *Formatter) FormatDataBytes(w io.Writer, pc *uint16, original []byte,
	originalBase, endAddress uint16, relocations map[uint16]RelocationByte,
	types []analyzer.MemoryType) (int, error) {

	unusedBytes := 0

	for *pc < endAddress && types[*pc]&analyzer.Data != 0 {
		if name := f.labels.Label(*pc); name != "" {
			if _, err := fmt.Fprintf(w, "%s:\n", name); err != nil {
				return unusedBytes, err
			}
		}

		if reloc, ok := relocations[*pc]; ok {
			operator := "<"
			if reloc.High {
				operator = ">"
			}
			target := f.labels.FormatAddress(reloc.Target)
			if _, err := fmt.Fprintf(w, "    .byte %s(%s)\n", operator, target); err != nil {
				return unusedBytes, err
			}
			*pc++
			continue
		}

		if _, err := io.WriteString(w, "    .byte "); err != nil {
			return unusedBytes, err
		}
		count := 0

		for *pc < endAddress && types[*pc]&analyzer.Data != 0 {
			if _, ok := relocations[*pc]; ok {
				break
			}

			if count > 0 {
				if _, err := io.WriteString(w, ", "); err != nil {
					return unusedBytes, err
				}
			}

			value := f.mem.ReadMemoryUntracked(*pc)
			if offset := int(*pc) - int(originalBase); offset >= 0 && offset < len(original) {
				value = original[offset]
			}

			if f.zeroUnusedBytes && types[*pc]&(analyzer.Accessed|analyzer.LabelTarget) == 0 {
				value = 0
				unusedBytes++
			}

			if _, err := fmt.Fprintf(w, "$%02X", value); err != nil {
				return unusedBytes, err
			}

			*pc++
			count++

			if types[*pc]&analyzer.Code != 0 || f.labels.Label(*pc) != "" {
				break
			}

			if count == 16 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return unusedBytes, err
				}
				if *pc < endAddress && types[*pc]&analyzer.Data != 0 {
					if _, err := io.WriteString(w, "    .byte "); err != nil {
						return unusedBytes, err
					}
				}
				count = 0
			}
		}

		if _, err := io.WriteString(w, "\n"); err != nil {
			return unusedBytes, err
		}
	}

	return unusedBytes, nil
}

func (f *Formatter) formatOperand(pc uint16, mode m6502.AddressingMode) string {
	switch mode {
	case m6502.ImmediateAddressing:
		return fmt.Sprintf("#$%02X", f.mem.ReadMemoryUntracked(pc+1))

	case m6502.ZeroPageAddressing:
		return f.labels.FormatZeroPage(f.mem.ReadMemoryUntracked(pc + 1))

	case m6502.ZeroPageXAddressing:
		return f.labels.FormatZeroPage(f.mem.ReadMemoryUntracked(pc+1)) + ",X"

	case m6502.ZeroPageYAddressing:
		return f.labels.FormatZeroPage(f.mem.ReadMemoryUntracked(pc+1)) + ",Y"

	case m6502.IndirectXAddressing:
		return "(" + f.labels.FormatZeroPage(f.mem.ReadMemoryUntracked(pc+1)) + ",X)"

	case m6502.IndirectYAddressing:
		return "(" + f.labels.FormatZeroPage(f.mem.ReadMemoryUntracked(pc+1)) + "),Y"

	case m6502.AbsoluteAddressing:
		return f.labels.FormatAddress(f.readWord(pc + 1))

	case m6502.AbsoluteXAddressing:
		minOffset, _ := f.mem.IndexRange(pc + 1)
		return f.formatIndexedAddress(f.readWord(pc+1), minOffset, "X")

	case m6502.AbsoluteYAddressing:
		minOffset, _ := f.mem.IndexRange(pc + 1)
		return f.formatIndexedAddress(f.readWord(pc+1), minOffset, "Y")

	case m6502.IndirectAddressing:
		return fmt.Sprintf("($%04X)", f.readWord(pc+1))

	case m6502.RelativeAddressing:
		offset := f.mem.ReadMemoryUntracked(pc + 1)
		dest := pc + 2 + uint16(offset)
		if offset >= 0x80 {
			dest -= 0x100
		}
		return f.labels.FormatAddress(dest)

	default:
		return ""
	}
}

// formatIndexedAddress prefers an anchor at the smallest observed effective
// address, the assembler expression then subtracts the offset back out.
func (f *Formatter) formatIndexedAddress(baseAddr uint16, minOffset byte, indexReg string) string {
	effectiveAddr := baseAddr + uint16(minOffset)
	if name := f.labels.Label(effectiveAddr); name != "" {
		if minOffset == 0 {
			return name + "," + indexReg
		}
		return fmt.Sprintf("%s-%d,%s", name, minOffset, indexReg)
	}
	return f.labels.FormatAddress(baseAddr) + "," + indexReg
}

func (f *Formatter) readWord(addr uint16) uint16 {
	low := f.mem.ReadMemoryUntracked(addr)
	high := f.mem.ReadMemoryUntracked(addr + 1)
	return uint16(low) | uint16(high)<<8
}

// isCIAStorePatch reports stores to the CIA 1 timer A registers, those would
// break the fixed call rate of exported players.
func isCIAStorePatch(mnemonic string, operand uint16) bool {
	if operand != 0xdc04 && operand != 0xdc05 {
		return false
	}
	return mnemonic == m6502.StaInst.Name || mnemonic == m6502.StxInst.Name || mnemonic == m6502.StyInst.Name
}

// opcodeSize returns the instruction length in bytes for an addressing mode.
func opcodeSize(mode m6502.AddressingMode) int {
	switch mode {
	case m6502.ImpliedAddressing, m6502.AccumulatorAddressing:
		return 1
	case m6502.AbsoluteAddressing, m6502.AbsoluteXAddressing,
		m6502.AbsoluteYAddressing, m6502.IndirectAddressing:
		return 3
	default:
		return 2
	}
}
