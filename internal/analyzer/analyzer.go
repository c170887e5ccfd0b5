// Package analyzer classifies memory into code and data regions based on the
// access patterns recorded during emulation.
package analyzer

import (
	"github.com/retroenv/retrogolib/log"

	"github.com/retroenv/sidgodisasm/internal/cpu"
)

// MemoryType classifies an address after analysis. The flags combine, an
// address can be code and a label target at the same time.
type MemoryType byte

const (
	Unknown     MemoryType = 0
	Code        MemoryType = 1 << 0
	Data        MemoryType = 1 << 1
	LabelTarget MemoryType = 1 << 2
	Accessed    MemoryType = 1 << 3
)

// Range describes a half open address range [Start, End).
type Range struct {
	Start uint16
	End   uint16
}

// Analyzer derives memory classifications from CPU access tracking.
type Analyzer struct {
	logger *log.Logger

	access []byte
	types  []MemoryType

	start uint16
	end   uint16
}

// New creates an analyzer for the loaded address range [start, end).
func New(logger *log.Logger, access []byte, start, end uint16) *Analyzer {
	return &Analyzer{
		logger: logger,
		access: access,
		types:  make([]MemoryType, len(access)),
		start:  start,
		end:    end,
	}
}

// Analyze runs all analysis passes in order.
func (a *Analyzer) Analyze() {
	a.analyzeExecution()
	a.analyzeAccesses()
	a.analyzeData()

	codeRanges := a.FindCodeRanges()
	a.logger.Debug("Memory analysis finished",
		log.Int("codeRanges", len(codeRanges)),
		log.Int("labelTargets", len(a.FindLabelTargets())),
	)
}

// analyzeExecution marks executed addresses as code and jump targets as
// label targets.
func (a *Analyzer) analyzeExecution() {
	for addr := int(a.start); addr < int(a.end); addr++ {
		flags := a.access[addr]
		if flags&cpu.AccessExecute != 0 {
			a.types[addr] |= Code
		}
		if flags&cpu.AccessJumpTarget != 0 {
			a.types[addr] |= LabelTarget
		}
	}
}

// analyzeAccesses marks read or written addresses as accessed. The scan
// covers all memory, zero page usage and hardware register accesses lie
// outside the loaded range. A data access landing inside an instruction
// promotes the instruction start to a label target, self modifying players
// patch their own operands.
func (a *Analyzer) analyzeAccesses() {
	for addr := range len(a.access) {
		flags := a.access[addr]
		if flags&(cpu.AccessRead|cpu.AccessWrite) == 0 {
			continue
		}

		a.types[addr] |= Accessed

		if a.types[addr]&Code != 0 {
			start, ok := a.FindInstructionStartCovering(uint16(addr))
			if ok {
				a.types[start] |= LabelTarget
			}
		}
	}
}

// analyzeData marks every address in range that is not code as data.
func (a *Analyzer) analyzeData() {
	for addr := int(a.start); addr < int(a.end); addr++ {
		if a.types[addr]&Code == 0 {
			a.types[addr] |= Data
		}
	}
}

// FindInstructionStartCovering returns the start address of the instruction
// covering the given address. Instructions are at most three bytes long.
func (a *Analyzer) FindInstructionStartCovering(addr uint16) (uint16, bool) {
	for back := 0; back < 3; back++ {
		candidate := int(addr) - back
		if candidate < int(a.start) {
			break
		}
		if a.access[candidate]&cpu.AccessOpCode != 0 {
			return uint16(candidate), true
		}
	}
	return 0, false
}

// MemoryType returns the classification of an address.
func (a *Analyzer) MemoryType(addr uint16) MemoryType {
	return a.types[addr]
}

// MemoryTypes returns the classification of all addresses.
func (a *Analyzer) MemoryTypes() []MemoryType {
	return a.types
}

// FindCodeRanges returns all contiguous code ranges in the analyzed window.
func (a *Analyzer) FindCodeRanges() []Range {
	return a.findRanges(Code)
}

// FindDataRanges returns all contiguous data ranges in the analyzed window.
func (a *Analyzer) FindDataRanges() []Range {
	return a.findRanges(Data)
}

func (a *Analyzer) findRanges(typ MemoryType) []Range {
	var ranges []Range
	inRange := false
	var start int

	for addr := int(a.start); addr < int(a.end); addr++ {
		match := a.types[addr]&typ != 0
		switch {
		case match && !inRange:
			start = addr
			inRange = true
		case !match && inRange:
			ranges = append(ranges, Range{Start: uint16(start), End: uint16(addr)})
			inRange = false
		}
	}
	if inRange {
		ranges = append(ranges, Range{Start: uint16(start), End: a.end})
	}
	return ranges
}

// FindLabelTargets returns all addresses marked as label targets, in
// ascending order.
func (a *Analyzer) FindLabelTargets() []uint16 {
	var targets []uint16
	for addr := int(a.start); addr < int(a.end); addr++ {
		if a.types[addr]&LabelTarget != 0 {
			targets = append(targets, uint16(addr))
		}
	}
	return targets
}
