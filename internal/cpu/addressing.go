package cpu

import (
	"github.com/retroenv/retrogolib/arch/cpu/m6502"
)

// operandAddress resolves the effective address of the current instruction
// operand and records index usage and indirect pointer reads.
func (c *CPU) operandAddress(mode m6502.AddressingMode) uint16 {
	switch mode {
	case m6502.ZeroPageXAddressing, m6502.AbsoluteXAddressing, m6502.IndirectXAddressing:
		c.recordIndexOffset(c.pc, c.x)
	case m6502.ZeroPageYAddressing, m6502.AbsoluteYAddressing, m6502.IndirectYAddressing:
		c.recordIndexOffset(c.pc, c.y)
	}

	switch mode {
	case m6502.ImmediateAddressing:
		addr := c.pc
		c.pc++
		return addr

	case m6502.ZeroPageAddressing:
		addr := c.fetchOperand(c.pc)
		c.pc++
		return uint16(addr)

	case m6502.ZeroPageXAddressing:
		addr := c.fetchOperand(c.pc)
		c.pc++
		return uint16(addr + c.x)

	case m6502.ZeroPageYAddressing:
		addr := c.fetchOperand(c.pc)
		c.pc++
		return uint16(addr + c.y)

	case m6502.AbsoluteAddressing:
		low := c.fetchOperand(c.pc)
		c.pc++
		high := c.fetchOperand(c.pc)
		c.pc++
		return uint16(low) | uint16(high)<<8

	case m6502.AbsoluteXAddressing:
		low := c.fetchOperand(c.pc)
		c.pc++
		high := c.fetchOperand(c.pc)
		c.pc++
		return (uint16(low) | uint16(high)<<8) + uint16(c.x)

	case m6502.AbsoluteYAddressing:
		low := c.fetchOperand(c.pc)
		c.pc++
		high := c.fetchOperand(c.pc)
		c.pc++
		return (uint16(low) | uint16(high)<<8) + uint16(c.y)

	case m6502.IndirectAddressing:
		low := c.fetchOperand(c.pc)
		c.pc++
		high := c.fetchOperand(c.pc)
		c.pc++
		indirect := uint16(low) | uint16(high)<<8

		// 6502 bug: the pointer read does not cross the page boundary
		ptrLow := c.readMemory(indirect)
		ptrHigh := c.readMemory(indirect&0xff00 | (indirect+1)&0x00ff)
		return uint16(ptrLow) | uint16(ptrHigh)<<8

	case m6502.IndirectXAddressing:
		zp := c.fetchOperand(c.pc) + c.x
		c.pc++
		effectiveAddr := c.readWordZeroPage(zp)
		if c.onIndirectRead != nil {
			c.onIndirectRead(c.originalPC, zp, effectiveAddr)
		}
		return effectiveAddr

	case m6502.IndirectYAddressing:
		zp := c.fetchOperand(c.pc)
		c.pc++
		base := c.readWordZeroPage(zp)
		addr := base + uint16(c.y)
		if c.onIndirectRead != nil {
			c.onIndirectRead(c.originalPC, zp, addr)
		}
		return addr

	case m6502.RelativeAddressing:
		offset := c.fetchOperand(c.pc)
		c.pc++
		if offset < 0x80 {
			return c.pc + uint16(offset)
		}
		return c.pc + uint16(offset) - 0x100

	default: // implied, accumulator
		return 0
	}
}

// readOperand reads the operand value. Immediate operands are instruction
// bytes and tracked as executed, not as data reads.
func (c *CPU) readOperand(addr uint16, mode m6502.AddressingMode) byte {
	if mode == m6502.ImmediateAddressing {
		return c.fetchOperand(addr)
	}
	return c.readMemory(addr)
}
