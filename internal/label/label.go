// Package label assigns names to code targets, data blocks, hardware
// registers and zero page variables for the generated assembly output.
package label

import (
	"fmt"
	"sort"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"

	"github.com/retroenv/sidgodisasm/internal/analyzer"
)

const (
	sidBaseAddr = 0xd400
	sidEndAddr  = 0xd7ff
)

// DataBlock is a labeled non code region, the range is half open.
type DataBlock struct {
	Label string
	Start uint16
	End   uint16
}

// HardwareBase is a detected hardware chip base address.
type HardwareBase struct {
	Address uint16
	Index   int
	Name    string
}

// offsetRange is a half open offset range inside a data block.
type offsetRange struct {
	start uint16
	end   uint16
}

// memoryClassifier is the analysis surface the generator needs.
type memoryClassifier interface {
	FindLabelTargets() []uint16
	FindCodeRanges() []analyzer.Range
}

// Generator creates and resolves labels for a disassembled address range.
type Generator struct {
	logger *log.Logger

	loadAddress uint16
	endAddress  uint16

	labels     map[uint16]string
	dataBlocks []*DataBlock

	subdivisions map[string][]offsetRange
	pending      set.Set[uint16]
	pendingList  []uint16

	hardwareBases []HardwareBase
	zeroPageVars  map[byte]string
}

// New creates a label generator for the address range [loadAddress, endAddress).
func New(logger *log.Logger, loadAddress, endAddress uint16) *Generator {
	return &Generator{
		logger:       logger,
		loadAddress:  loadAddress,
		endAddress:   endAddress,
		labels:       map[uint16]string{},
		subdivisions: map[string][]offsetRange{},
		pending:      set.New[uint16](),
		zeroPageVars: map[byte]string{},
	}
}

// GenerateLabels assigns Label_N names to code jump targets and DataBlock_N
// names to the gaps between code ranges.
func (g *Generator) GenerateLabels(mem memoryClassifier) {
	codeLabels := 0
	for _, addr := range mem.FindLabelTargets() {
		if addr >= g.loadAddress && addr < g.endAddress {
			g.labels[addr] = fmt.Sprintf("Label_%d", codeLabels)
			codeLabels++
		}
	}

	codeRanges := mem.FindCodeRanges()
	sort.Slice(codeRanges, func(i, j int) bool {
		return codeRanges[i].Start < codeRanges[j].Start
	})

	dataLabels := 0
	prevEnd := g.loadAddress
	for _, r := range codeRanges {
		if r.Start > prevEnd {
			g.addDataBlock(prevEnd, r.Start, &dataLabels)
		}
		prevEnd = r.End
	}
	if prevEnd < g.endAddress {
		g.addDataBlock(prevEnd, g.endAddress, &dataLabels)
	}

	g.logger.Debug("Generated labels",
		log.Int("code", codeLabels),
		log.Int("data", dataLabels),
	)
}

func (g *Generator) addDataBlock(start, end uint16, counter *int) {
	block := &DataBlock{
		Label: fmt.Sprintf("DataBlock_%d", *counter),
		Start: start,
		End:   end,
	}
	*counter++
	g.labels[start] = block.Label
	g.dataBlocks = append(g.dataBlocks, block)
}

// Label returns the label of an address or an empty string.
func (g *Generator) Label(addr uint16) string {
	return g.labels[addr]
}

// DataBlocks returns all data blocks including created subdivisions.
func (g *Generator) DataBlocks() []*DataBlock {
	return g.dataBlocks
}

// HardwareBases returns all registered hardware chip bases.
func (g *Generator) HardwareBases() []HardwareBase {
	return g.hardwareBases
}

// AddHardwareBase registers a hardware chip base address with its name.
func (g *Generator) AddHardwareBase(address uint16, index int, name string) {
	g.hardwareBases = append(g.hardwareBases, HardwareBase{
		Address: address,
		Index:   index,
		Name:    name,
	})
}

// AddZeroPageVar registers a name for a zero page address.
func (g *Generator) AddZeroPageVar(addr byte, name string) {
	g.zeroPageVars[addr] = name
}

// FormatZeroPage returns the registered name of a zero page address or a hex
// representation.
func (g *Generator) FormatZeroPage(addr byte) string {
	if name, ok := g.zeroPageVars[addr]; ok {
		return name
	}
	return fmt.Sprintf("$%02X", addr)
}

// FormatAddress returns the symbolic representation of an address: hardware
// register names for the SID window, labels with optional offsets for the
// loaded range, plain hex otherwise.
func (g *Generator) FormatAddress(addr uint16) string {
	if addr >= sidBaseAddr && addr <= sidEndAddr {
		return g.formatSIDAddress(addr)
	}

	if name, ok := g.labels[addr]; ok {
		return name
	}

	// nearest preceding label
	var bestBase uint16
	var bestLabel string
	for labelAddr, name := range g.labels {
		if labelAddr <= addr && (bestLabel == "" || labelAddr > bestBase) {
			bestBase = labelAddr
			bestLabel = name
		}
	}
	if bestLabel != "" {
		offset := addr - bestBase
		if offset == 0 {
			return bestLabel
		}
		return fmt.Sprintf("%s+%d", bestLabel, offset)
	}

	for _, block := range g.dataBlocks {
		if addr >= block.Start && addr < block.End {
			offset := addr - block.Start
			if offset == 0 {
				return block.Label
			}
			return fmt.Sprintf("%s+%d", block.Label, offset)
		}
	}

	return fmt.Sprintf("$%04X", addr)
}

// formatSIDAddress maps an address in the SID window to a chip relative name,
// chip bases are 32 byte aligned.
func (g *Generator) formatSIDAddress(addr uint16) string {
	base := addr & 0xffe0
	offset := addr & 0x1f

	for _, hw := range g.hardwareBases {
		if hw.Address != base {
			continue
		}
		if offset == 0 {
			return fmt.Sprintf("SID%d", hw.Index)
		}
		return fmt.Sprintf("SID%d+%d", hw.Index, offset)
	}

	return fmt.Sprintf("SID0+%d", addr-sidBaseAddr)
}

// AddPendingSubdivision marks an address inside the loaded range for data
// block subdivision.
func (g *Generator) AddPendingSubdivision(addr uint16) {
	if addr < g.loadAddress || addr >= g.endAddress {
		return
	}
	if g.pending.Contains(addr) {
		return
	}
	g.pending.Add(addr)
	g.pendingList = append(g.pendingList, addr)
}

// ApplySubdivisions splits data blocks at the pending subdivision addresses.
// Contiguous addresses form one subdivision, each gets a numbered sub label
// and the original block is renamed to carry the _0 suffix.
func (g *Generator) ApplySubdivisions() {
	sorted := make([]uint16, len(g.pendingList))
	copy(sorted, g.pendingList)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if len(sorted) > 0 {
		g.logger.Debug("Applying data block subdivisions",
			log.Int("pending", len(sorted)))
	}

	// group contiguous addresses and assign them to their data block
	for i := 0; i < len(sorted); i++ {
		start := sorted[i]
		end := start + 1
		for i+1 < len(sorted) && sorted[i+1] == end {
			end++
			i++
		}

		for _, block := range g.dataBlocks {
			if start >= block.End || end <= block.Start {
				continue
			}
			offsetStart := max(start, block.Start) - block.Start
			offsetEnd := min(end, block.End) - block.Start
			g.addSubdivision(block.Label, offsetStart, offsetEnd)
			break
		}
	}

	// materialize the subdivisions as labeled blocks
	var newBlocks []*DataBlock
	for _, block := range g.dataBlocks {
		ranges, ok := g.subdivisions[block.Label]
		if !ok {
			continue
		}
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })

		oldLabel := block.Label
		for i, r := range ranges {
			sub := &DataBlock{
				Label: fmt.Sprintf("%s_%d", oldLabel, i+1),
				Start: block.Start + r.start,
				End:   block.Start + r.end,
			}
			g.labels[sub.Start] = sub.Label
			newBlocks = append(newBlocks, sub)
		}

		block.Label = oldLabel + "_0"
		g.labels[block.Start] = block.Label
	}

	g.dataBlocks = append(g.dataBlocks, newBlocks...)
	g.pending = set.New[uint16]()
	g.pendingList = nil
}

func (g *Generator) addSubdivision(blockLabel string, start, end uint16) {
	ranges := g.subdivisions[blockLabel]
	for _, r := range ranges {
		if start < r.end && end > r.start {
			return
		}
	}
	g.subdivisions[blockLabel] = append(ranges, offsetRange{start: start, end: end})
}
