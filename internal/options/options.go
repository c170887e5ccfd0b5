// Package options contains the program options.
package options

// Program options of the disassembler.
type Program struct {
	Input  string // file to disassemble
	Output string // output .asm file

	Frames        int // number of frames to emulate
	CallsPerFrame int // play routine calls per frame

	LoadAddress string // load address override for bin files
	InitAddress string // init address override
	PlayAddress string // play address override

	Title     string // title override for the SID header
	Author    string // author override for the SID header
	Copyright string // copyright override for the SID header

	Debug bool // enable debug logging
	Quiet bool // quiet mode
}

// Disassembler defines options to control the disassembly output.
type Disassembler struct {
	// PairScanWindow is the maximum forward distance between a pointer low
	// byte and its matching high byte in a pointer table.
	PairScanWindow int

	// PropagationDepth limits how many pointer-to-pointer chain links the
	// relocation propagator follows. 0 disables the limit.
	PropagationDepth int

	// ZeroUnusedBytes replaces data bytes that were never accessed during
	// emulation with zero to improve compression of the reassembled file.
	ZeroUnusedBytes bool
}

// NewDisassembler returns a new options instance with default options.
func NewDisassembler() Disassembler {
	return Disassembler{
		PairScanWindow:   8,
		PropagationDepth: 10,
	}
}
