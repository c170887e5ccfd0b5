package disasm

// IndirectAccessInfo records one pointer dereference through a zero page
// pair whose halves were both copied out of the loaded binary.
type IndirectAccessInfo struct {
	InstructionAddress uint16
	ZPAddress          byte
	ZPPairAddress      byte

	// addresses of the instructions that last wrote the pointer halves
	LastWriteLow  uint16
	LastWriteHigh uint16

	// addresses the pointer halves were copied from
	SourceLowAddress  uint16
	SourceHighAddress uint16

	EffectiveAddress uint16
}
