package cpu

import (
	"github.com/retroenv/retrogolib/arch/cpu/m6502"
)

// execute runs a single decoded instruction.
func (c *CPU) execute(op m6502.Opcode) {
	mode := op.Addressing

	switch op.Instruction.Name {
	case m6502.LdaInst.Name, m6502.LdxInst.Name, m6502.LdyInst.Name, "lax":
		c.executeLoad(op.Instruction.Name, mode)

	case m6502.StaInst.Name:
		addr := c.operandAddress(mode)
		c.writeMemory(addr, c.a)
		c.writeSourceInfo[addr] = c.regSourceA

	case m6502.StxInst.Name:
		addr := c.operandAddress(mode)
		c.writeMemory(addr, c.x)
		c.writeSourceInfo[addr] = c.regSourceX

	case m6502.StyInst.Name:
		addr := c.operandAddress(mode)
		c.writeMemory(addr, c.y)
		c.writeSourceInfo[addr] = c.regSourceY

	case "sax":
		addr := c.operandAddress(mode)
		c.writeMemory(addr, c.a&c.x)
		c.writeSourceInfo[addr] = RegisterSourceInfo{}

	case m6502.AdcInst.Name:
		addr := c.operandAddress(mode)
		c.adc(c.readOperand(addr, mode))

	case m6502.SbcInst.Name:
		addr := c.operandAddress(mode)
		c.sbc(c.readOperand(addr, mode))

	case m6502.AndInst.Name:
		addr := c.operandAddress(mode)
		c.setA(c.a & c.readOperand(addr, mode))

	case m6502.OraInst.Name:
		addr := c.operandAddress(mode)
		c.setA(c.a | c.readOperand(addr, mode))

	case m6502.EorInst.Name:
		addr := c.operandAddress(mode)
		c.setA(c.a ^ c.readOperand(addr, mode))

	case m6502.CmpInst.Name:
		addr := c.operandAddress(mode)
		c.compare(c.a, c.readOperand(addr, mode))

	case m6502.CpxInst.Name:
		addr := c.operandAddress(mode)
		c.compare(c.x, c.readOperand(addr, mode))

	case m6502.CpyInst.Name:
		addr := c.operandAddress(mode)
		c.compare(c.y, c.readOperand(addr, mode))

	case m6502.BitInst.Name:
		addr := c.operandAddress(mode)
		value := c.readOperand(addr, mode)
		c.setFlag(flagZero, c.a&value == 0)
		c.setFlag(flagOverflow, value&0x40 != 0)
		c.setFlag(flagNegative, value&0x80 != 0)

	case m6502.AslInst.Name:
		c.shift(mode, c.asl)
	case m6502.LsrInst.Name:
		c.shift(mode, c.lsr)
	case m6502.RolInst.Name:
		c.shift(mode, c.rol)
	case m6502.RorInst.Name:
		c.shift(mode, c.ror)

	case m6502.IncInst.Name:
		c.modifyMemory(mode, func(v byte) byte { return v + 1 })
	case m6502.DecInst.Name:
		c.modifyMemory(mode, func(v byte) byte { return v - 1 })

	case m6502.InxInst.Name:
		c.setX(c.x + 1)
	case m6502.InyInst.Name:
		c.setY(c.y + 1)
	case m6502.DexInst.Name:
		c.setX(c.x - 1)
	case m6502.DeyInst.Name:
		c.setY(c.y - 1)

	case m6502.TaxInst.Name:
		c.x = c.a
		c.regSourceX = c.regSourceA
		c.setZN(c.x)
	case m6502.TxaInst.Name:
		c.a = c.x
		c.regSourceA = c.regSourceX
		c.setZN(c.a)
	case m6502.TayInst.Name:
		c.y = c.a
		c.regSourceY = c.regSourceA
		c.setZN(c.y)
	case m6502.TyaInst.Name:
		c.a = c.y
		c.regSourceA = c.regSourceY
		c.setZN(c.a)
	case m6502.TsxInst.Name:
		c.x = c.sp
		c.regSourceX = RegisterSourceInfo{}
		c.setZN(c.x)
	case m6502.TxsInst.Name:
		c.sp = c.x

	case m6502.PhaInst.Name:
		c.push(c.a)
	case m6502.PhpInst.Name:
		c.push(c.status | flagBreak | flagUnused)
	case m6502.PlaInst.Name:
		c.a = c.pop()
		c.regSourceA = RegisterSourceInfo{}
		c.setZN(c.a)
	case m6502.PlpInst.Name:
		c.status = c.pop()&^flagBreak | flagUnused

	case m6502.JmpInst.Name:
		addr := c.operandAddress(mode)
		c.pc = addr
		c.markJumpTarget(addr)

	case m6502.JsrInst.Name:
		addr := c.operandAddress(mode)
		returnAddress := c.pc - 1
		c.push(byte(returnAddress >> 8))
		c.push(byte(returnAddress))
		c.pc = addr
		c.markJumpTarget(addr)

	case m6502.RtsInst.Name:
		low := c.pop()
		high := c.pop()
		c.pc = (uint16(low) | uint16(high)<<8) + 1

	case m6502.RtiInst.Name:
		c.status = c.pop()&^flagBreak | flagUnused
		low := c.pop()
		high := c.pop()
		c.pc = uint16(low) | uint16(high)<<8

	case m6502.BrkInst.Name:
		returnAddress := c.pc + 1
		c.push(byte(returnAddress >> 8))
		c.push(byte(returnAddress))
		c.push(c.status | flagBreak | flagUnused)
		c.setFlag(flagInterrupt, true)
		c.pc = c.readWord(0xfffe)

	case m6502.BccInst.Name:
		c.branch(mode, !c.flag(flagCarry))
	case m6502.BcsInst.Name:
		c.branch(mode, c.flag(flagCarry))
	case m6502.BneInst.Name:
		c.branch(mode, !c.flag(flagZero))
	case m6502.BeqInst.Name:
		c.branch(mode, c.flag(flagZero))
	case m6502.BplInst.Name:
		c.branch(mode, !c.flag(flagNegative))
	case m6502.BmiInst.Name:
		c.branch(mode, c.flag(flagNegative))
	case m6502.BvcInst.Name:
		c.branch(mode, !c.flag(flagOverflow))
	case m6502.BvsInst.Name:
		c.branch(mode, c.flag(flagOverflow))

	case m6502.ClcInst.Name:
		c.setFlag(flagCarry, false)
	case m6502.SecInst.Name:
		c.setFlag(flagCarry, true)
	case m6502.CliInst.Name:
		c.setFlag(flagInterrupt, false)
	case m6502.SeiInst.Name:
		c.setFlag(flagInterrupt, true)
	case m6502.CldInst.Name:
		c.setFlag(flagDecimal, false)
	case m6502.SedInst.Name:
		c.setFlag(flagDecimal, true)
	case m6502.ClvInst.Name:
		c.setFlag(flagOverflow, false)

	case m6502.NopInst.Name:
		c.consumeOperand(mode)

	default:
		c.executeUnofficial(op.Instruction.Name, mode)
	}
}

// executeLoad handles LDA, LDX, LDY and the unofficial LAX including
// provenance tracking of the loaded value.
func (c *CPU) executeLoad(name string, mode m6502.AddressingMode) {
	addr := c.operandAddress(mode)
	value := c.readOperand(addr, mode)

	var index byte
	switch mode {
	case m6502.AbsoluteXAddressing, m6502.ZeroPageXAddressing, m6502.IndirectXAddressing:
		index = c.x
	case m6502.AbsoluteYAddressing, m6502.ZeroPageYAddressing, m6502.IndirectYAddressing:
		index = c.y
	}

	source := RegisterSourceInfo{
		Type:    SourceMemory,
		Address: addr,
		Value:   value,
		Index:   index,
	}
	if mode == m6502.ImmediateAddressing {
		source.Type = SourceImmediate
		source.Index = 0
	}

	switch name {
	case m6502.LdaInst.Name:
		c.a = value
		c.regSourceA = source
	case m6502.LdxInst.Name:
		c.x = value
		c.regSourceX = source
	case m6502.LdyInst.Name:
		c.y = value
		c.regSourceY = source
	case "lax":
		c.a = value
		c.x = value
		c.regSourceA = source
		c.regSourceX = source
	}

	c.setZN(value)
}

// executeUnofficial covers the stable illegal opcodes found in the wild in
// SID players. The exotic unstable ones only consume their operand.
func (c *CPU) executeUnofficial(name string, mode m6502.AddressingMode) {
	switch name {
	case "slo":
		addr := c.modifyMemory(mode, c.asl)
		c.setA(c.a | c.memory[addr])
	case "rla":
		addr := c.modifyMemory(mode, c.rol)
		c.setA(c.a & c.memory[addr])
	case "sre":
		addr := c.modifyMemory(mode, c.lsr)
		c.setA(c.a ^ c.memory[addr])
	case "rra":
		addr := c.modifyMemory(mode, c.ror)
		c.adc(c.memory[addr])
	case "dcp":
		addr := c.modifyMemory(mode, func(v byte) byte { return v - 1 })
		c.compare(c.a, c.memory[addr])
	case "isc", "isb":
		addr := c.modifyMemory(mode, func(v byte) byte { return v + 1 })
		c.sbc(c.memory[addr])
	case "anc":
		addr := c.operandAddress(mode)
		c.setA(c.a & c.readOperand(addr, mode))
		c.setFlag(flagCarry, c.a&0x80 != 0)
	case "alr", "asr":
		addr := c.operandAddress(mode)
		c.a &= c.readOperand(addr, mode)
		c.a = c.lsr(c.a)
		c.regSourceA = RegisterSourceInfo{}
		c.setZN(c.a)
	case "arr":
		addr := c.operandAddress(mode)
		c.a &= c.readOperand(addr, mode)
		c.a = c.ror(c.a)
		c.regSourceA = RegisterSourceInfo{}
		c.setZN(c.a)
	case "axs", "sbx":
		addr := c.operandAddress(mode)
		value := c.readOperand(addr, mode)
		result := c.a & c.x
		c.setFlag(flagCarry, result >= value)
		c.setX(result - value)
	default:
		c.consumeOperand(mode)
	}
}

func (c *CPU) consumeOperand(mode m6502.AddressingMode) {
	switch mode {
	case m6502.ImpliedAddressing, m6502.AccumulatorAddressing:
	default:
		addr := c.operandAddress(mode)
		c.readOperand(addr, mode)
	}
}

func (c *CPU) branch(mode m6502.AddressingMode, taken bool) {
	target := c.operandAddress(mode)
	if taken {
		c.pc = target
		c.markJumpTarget(target)
	}
}

// shift applies a shift or rotate to the accumulator or a memory location.
func (c *CPU) shift(mode m6502.AddressingMode, f func(byte) byte) {
	if mode == m6502.AccumulatorAddressing {
		c.a = f(c.a)
		c.regSourceA = RegisterSourceInfo{}
		c.setZN(c.a)
		return
	}
	c.modifyMemory(mode, f)
}

// modifyMemory applies a read-modify-write operation and invalidates the
// provenance of the rewritten byte. It returns the effective address.
func (c *CPU) modifyMemory(mode m6502.AddressingMode, f func(byte) byte) uint16 {
	addr := c.operandAddress(mode)
	value := f(c.readMemory(addr))
	c.writeMemory(addr, value)
	c.writeSourceInfo[addr] = RegisterSourceInfo{}
	c.setZN(value)
	return addr
}

// setA updates the accumulator with a computed value, its provenance is gone.
func (c *CPU) setA(value byte) {
	c.a = value
	c.regSourceA = RegisterSourceInfo{}
	c.setZN(value)
}

func (c *CPU) setX(value byte) {
	c.x = value
	c.regSourceX = RegisterSourceInfo{}
	c.setZN(value)
}

func (c *CPU) setY(value byte) {
	c.y = value
	c.regSourceY = RegisterSourceInfo{}
	c.setZN(value)
}

func (c *CPU) compare(register, value byte) {
	c.setFlag(flagCarry, register >= value)
	c.setZN(register - value)
}

func (c *CPU) adc(value byte) {
	carry := uint16(0)
	if c.flag(flagCarry) {
		carry = 1
	}

	if c.flag(flagDecimal) {
		c.adcDecimal(value, carry)
		return
	}

	sum := uint16(c.a) + uint16(value) + carry
	result := byte(sum)
	c.setFlag(flagCarry, sum > 0xff)
	c.setFlag(flagOverflow, (c.a^result)&(value^result)&0x80 != 0)
	c.a = result
	c.regSourceA = RegisterSourceInfo{}
	c.setZN(result)
}

// adcDecimal implements BCD addition, the 6510 honors decimal mode.
func (c *CPU) adcDecimal(value byte, carry uint16) {
	low := uint16(c.a&0x0f) + uint16(value&0x0f) + carry
	if low > 9 {
		low += 6
	}
	high := uint16(c.a>>4) + uint16(value>>4)
	if low > 0x0f {
		high++
	}
	if high > 9 {
		high += 6
	}

	c.setFlag(flagCarry, high > 0x0f)
	c.a = byte(high<<4) | byte(low&0x0f)
	c.regSourceA = RegisterSourceInfo{}
	c.setZN(c.a)
}

func (c *CPU) sbc(value byte) {
	if c.flag(flagDecimal) {
		c.sbcDecimal(value)
		return
	}
	c.adc(^value)
}

// sbcDecimal implements BCD subtraction.
func (c *CPU) sbcDecimal(value byte) {
	borrow := uint16(1)
	if c.flag(flagCarry) {
		borrow = 0
	}

	low := int16(c.a&0x0f) - int16(value&0x0f) - int16(borrow)
	if low < 0 {
		low -= 6
	}
	high := int16(c.a>>4) - int16(value>>4)
	if low < 0 {
		high--
	}
	if high < 0 {
		high -= 6
	}

	diff := uint16(c.a) - uint16(value) - borrow
	c.setFlag(flagCarry, diff < 0x100)
	c.a = byte(high&0x0f)<<4 | byte(low&0x0f)
	c.regSourceA = RegisterSourceInfo{}
	c.setZN(c.a)
}

func (c *CPU) asl(value byte) byte {
	c.setFlag(flagCarry, value&0x80 != 0)
	return value << 1
}

func (c *CPU) lsr(value byte) byte {
	c.setFlag(flagCarry, value&0x01 != 0)
	return value >> 1
}

func (c *CPU) rol(value byte) byte {
	carryIn := byte(0)
	if c.flag(flagCarry) {
		carryIn = 1
	}
	c.setFlag(flagCarry, value&0x80 != 0)
	return value<<1 | carryIn
}

func (c *CPU) ror(value byte) byte {
	carryIn := byte(0)
	if c.flag(flagCarry) {
		carryIn = 0x80
	}
	c.setFlag(flagCarry, value&0x01 != 0)
	return value>>1 | carryIn
}
