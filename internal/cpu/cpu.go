// Package cpu implements a 6510 CPU emulator that tracks memory access
// patterns and value provenance for disassembly analysis.
package cpu

import (
	"fmt"

	"github.com/retroenv/retrogolib/arch/cpu/m6502"
	"github.com/retroenv/retrogolib/log"
)

const memorySize = 0x10000

// status register flags
const (
	flagCarry     = 1 << 0
	flagZero      = 1 << 1
	flagInterrupt = 1 << 2
	flagDecimal   = 1 << 3
	flagBreak     = 1 << 4
	flagUnused    = 1 << 5
	flagOverflow  = 1 << 6
	flagNegative  = 1 << 7
)

// IndirectReadFunc is called for every pointer dereference through zero page,
// before the effective address is accessed.
type IndirectReadFunc func(pc uint16, zpAddr byte, effectiveAddr uint16)

// CPU emulates a 6510 and records which addresses were executed, read and
// written, where written values originated from and which index offsets were
// used by indexed addressing modes.
type CPU struct {
	logger *log.Logger

	memory       [memorySize]byte
	memoryAccess [memorySize]byte

	pc     uint16
	sp     byte
	a      byte
	x      byte
	y      byte
	status byte

	steps uint64

	// address of the currently executing instruction
	originalPC uint16

	lastWriteToAddr [memorySize]uint16
	writeSourceInfo [memorySize]RegisterSourceInfo

	regSourceA RegisterSourceInfo
	regSourceX RegisterSourceInfo
	regSourceY RegisterSourceInfo

	indexRanges map[uint16]*indexRange

	onIndirectRead IndirectReadFunc

	// execution warnings are logged once per run to avoid spam
	zeroPageExecutionReported bool
}

// New creates a new CPU in reset state.
func New(logger *log.Logger) *CPU {
	c := &CPU{
		logger: logger,
	}
	c.Reset()
	return c
}

// Reset clears all CPU and tracking state.
func (c *CPU) Reset() {
	c.memory = [memorySize]byte{}
	c.memoryAccess = [memorySize]byte{}
	c.lastWriteToAddr = [memorySize]uint16{}
	c.writeSourceInfo = [memorySize]RegisterSourceInfo{}
	c.indexRanges = map[uint16]*indexRange{}

	c.pc = 0
	c.steps = 0
	c.zeroPageExecutionReported = false
	c.ResetRegistersAndFlags()
}

// ResetRegistersAndFlags resets registers and status flags but keeps memory
// and all tracking state.
func (c *CPU) ResetRegistersAndFlags() {
	c.sp = 0xfd
	c.a = 0
	c.x = 0
	c.y = 0
	c.status = flagInterrupt | flagUnused

	c.regSourceA = RegisterSourceInfo{}
	c.regSourceX = RegisterSourceInfo{}
	c.regSourceY = RegisterSourceInfo{}
}

// Step executes a single instruction.
func (c *CPU) Step() error {
	c.originalPC = c.pc

	opcode := c.fetchOpcode(c.pc)
	c.pc++

	op := m6502.Opcodes[opcode]
	if op.Instruction == nil {
		return fmt.Errorf("illegal opcode $%02x at $%04x", opcode, c.originalPC)
	}

	c.execute(op)
	c.steps++
	return nil
}

// ExecuteFunction simulates a JSR to the given address and steps the CPU
// until the routine returns or the step cap is hit.
func (c *CPU) ExecuteFunction(address uint16) error {
	// cap to prevent infinite loops in broken players
	const maxSteps = 30000

	// simulate what JSR would have pushed
	returnAddress := c.pc - 1
	c.push(byte(returnAddress >> 8))
	c.push(byte(returnAddress))

	c.pc = address
	targetSP := c.sp

	c.logger.Debug("Executing function",
		log.String("address", fmt.Sprintf("$%04x", address)),
		log.String("sp", fmt.Sprintf("$%02x", c.sp)),
	)

	for step := 0; step < maxSteps; step++ {
		if c.pc < 0x0002 {
			return fmt.Errorf("execution at $%04x detected, illegal jump target", c.pc)
		}
		if c.pc < 0x0100 && !c.zeroPageExecutionReported {
			c.logger.Warn("Zero page execution detected",
				log.String("pc", fmt.Sprintf("$%04x", c.pc)))
			c.zeroPageExecutionReported = true
		}

		if err := c.Step(); err != nil {
			return err
		}

		// the final RTS pops past the simulated JSR frame
		if c.sp > targetSP {
			return nil
		}
	}

	return fmt.Errorf("function at $%04x did not return after %d steps", address, maxSteps)
}

// PC returns the program counter.
func (c *CPU) PC() uint16 {
	return c.pc
}

// SetPC sets the program counter.
func (c *CPU) SetPC(address uint16) {
	c.pc = address
}

// Steps returns the number of instructions executed since the last reset.
func (c *CPU) Steps() uint64 {
	return c.steps
}

// ReadMemoryUntracked returns a memory byte without recording an access.
func (c *CPU) ReadMemoryUntracked(address uint16) byte {
	return c.memory[address]
}

// CopyMemoryBlock copies data into memory without recording accesses.
func (c *CPU) CopyMemoryBlock(address uint16, data []byte) {
	for i, b := range data {
		idx := int(address) + i
		if idx >= memorySize {
			break
		}
		c.memory[idx] = b
	}
}

// DumpMemory returns a copy of the full memory.
func (c *CPU) DumpMemory() []byte {
	data := make([]byte, memorySize)
	copy(data, c.memory[:])
	return data
}

// LoadMemory overwrites the full memory, used to restore a backup.
func (c *CPU) LoadMemory(data []byte) {
	copy(c.memory[:], data)
}

// SetOnIndirectRead sets the callback invoked on indirect zero page reads.
func (c *CPU) SetOnIndirectRead(callback IndirectReadFunc) {
	c.onIndirectRead = callback
}

func (c *CPU) fetchOpcode(addr uint16) byte {
	c.memoryAccess[addr] |= AccessExecute | AccessOpCode
	return c.memory[addr]
}

func (c *CPU) fetchOperand(addr uint16) byte {
	c.memoryAccess[addr] |= AccessExecute
	return c.memory[addr]
}

func (c *CPU) readMemory(addr uint16) byte {
	c.memoryAccess[addr] |= AccessRead
	return c.memory[addr]
}

func (c *CPU) writeMemory(addr uint16, value byte) {
	c.memoryAccess[addr] |= AccessWrite
	c.memory[addr] = value
	c.lastWriteToAddr[addr] = c.originalPC
}

func (c *CPU) push(value byte) {
	c.memory[0x0100+uint16(c.sp)] = value
	c.sp--
}

func (c *CPU) pop() byte {
	c.sp++
	return c.memory[0x0100+uint16(c.sp)]
}

func (c *CPU) readWord(addr uint16) uint16 {
	low := c.readMemory(addr)
	high := c.readMemory(addr + 1)
	return uint16(low) | uint16(high)<<8
}

// readWordZeroPage reads a pointer from zero page, the high byte read wraps
// around the page boundary.
func (c *CPU) readWordZeroPage(addr byte) uint16 {
	low := c.readMemory(uint16(addr))
	high := c.readMemory(uint16(addr + 1))
	return uint16(low) | uint16(high)<<8
}

func (c *CPU) setFlag(flag byte, value bool) {
	if value {
		c.status |= flag
	} else {
		c.status &^= flag
	}
}

func (c *CPU) flag(flag byte) bool {
	return c.status&flag != 0
}

// setZN sets the zero and negative flags based on a value.
func (c *CPU) setZN(value byte) {
	c.setFlag(flagZero, value == 0)
	c.setFlag(flagNegative, value&0x80 != 0)
}

func (c *CPU) markJumpTarget(addr uint16) {
	c.memoryAccess[addr] |= AccessJumpTarget
}
