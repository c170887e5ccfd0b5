package cpu

// memory access flags tracked per address during emulation
const (
	AccessExecute byte = 1 << iota
	AccessRead
	AccessWrite
	AccessJumpTarget
	AccessOpCode
)

// SourceType describes where a register or memory value originated from.
type SourceType byte

const (
	SourceUnknown SourceType = iota
	SourceMemory
	SourceImmediate
)

// RegisterSourceInfo records the provenance of the last value loaded into a
// register or written to a memory address.
type RegisterSourceInfo struct {
	Type    SourceType
	Address uint16 // source address, for memory loads the read location
	Value   byte
	Index   byte // index register value used for the load
}

// indexRange tracks the minimum and maximum index offsets used by an indexed
// addressing mode operand.
type indexRange struct {
	min byte
	max byte
}

func (r *indexRange) update(offset byte) {
	if offset < r.min {
		r.min = offset
	}
	if offset > r.max {
		r.max = offset
	}
}

func (c *CPU) recordIndexOffset(pc uint16, offset byte) {
	r, ok := c.indexRanges[pc]
	if !ok {
		r = &indexRange{min: offset, max: offset}
		c.indexRanges[pc] = r
		return
	}
	r.update(offset)
}

// IndexRange returns the minimum and maximum index offsets observed for the
// operand at the given address.
func (c *CPU) IndexRange(pc uint16) (byte, byte) {
	r, ok := c.indexRanges[pc]
	if !ok {
		return 0, 0
	}
	return r.min, r.max
}

// MemoryAccess returns the access flags of an address.
func (c *CPU) MemoryAccess(address uint16) byte {
	return c.memoryAccess[address]
}

// AccessMap returns the access flags of all addresses.
func (c *CPU) AccessMap() []byte {
	return c.memoryAccess[:]
}

// LastWriteTo returns the address of the instruction that last wrote to the
// given address.
func (c *CPU) LastWriteTo(address uint16) uint16 {
	return c.lastWriteToAddr[address]
}

// WriteSourceInfo returns the provenance of the last value written to the
// given address.
func (c *CPU) WriteSourceInfo(address uint16) RegisterSourceInfo {
	return c.writeSourceInfo[address]
}
