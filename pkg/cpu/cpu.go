// Package cpu implements the KalaCPU: a 16-bit little-endian machine with
// eight general registers, a 64KB byte-addressed memory and two memory
// mapped output ports. Compiled Kala programs run on it to completion.
package cpu

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	OpHLT  uint16 = 0x00
	OpNOP  uint16 = 0x01
	OpLDI  uint16 = 0x02
	OpMOV  uint16 = 0x03
	OpLD   uint16 = 0x04
	OpST   uint16 = 0x05
	OpADD  uint16 = 0x06
	OpSUB  uint16 = 0x07
	OpAND  uint16 = 0x08
	OpOR   uint16 = 0x09
	OpXOR  uint16 = 0x0A
	OpNOT  uint16 = 0x0B
	OpSHL  uint16 = 0x0C
	OpSHR  uint16 = 0x0D
	OpJMP  uint16 = 0x0E
	OpJZ   uint16 = 0x0F
	OpJNZ  uint16 = 0x10
	OpJN   uint16 = 0x11
	OpJC   uint16 = 0x12
	OpJNC  uint16 = 0x13
	OpPUSH uint16 = 0x14
	OpPOP  uint16 = 0x15
	OpCALL uint16 = 0x16
	OpRET  uint16 = 0x17
	OpLDSP uint16 = 0x18
	OpSTSP uint16 = 0x19
	OpMUL  uint16 = 0x1A
	OpDIV  uint16 = 0x1B
	OpIDIV uint16 = 0x1C
	OpLDB  uint16 = 0x1D
	OpSTB  uint16 = 0x1E
)

// Output ports. A word stored to MMIOChar prints one character; a word
// stored to MMIODecimal prints its value as a signed decimal.
const (
	MMIOChar    uint16 = 0xFF00
	MMIODecimal uint16 = 0xFF01
)

type CPU struct {
	Regs [8]uint16

	PC uint16
	SP uint16

	Z bool
	N bool
	C bool

	Halted bool

	Memory [65536]byte

	// Output is where MMIO writes are sent. If nil, os.Stdout is used.
	Output io.Writer
}

// NewCPU creates a halted-at-zero CPU with the stack pointer at the top of
// memory.
func NewCPU() *CPU {
	return &CPU{SP: 0xFFFE}
}

// Load copies a machine image to address 0.
func (c *CPU) Load(program []byte) error {
	if len(program) > len(c.Memory) {
		return errors.New("program image exceeds addressable memory")
	}
	copy(c.Memory[:], program)
	return nil
}

func (c *CPU) outputSink() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}

func (c *CPU) reg(idx uint16) *uint16 {
	if idx < 8 {
		return &c.Regs[idx]
	}
	return &c.Regs[0] // Fallback
}

func (c *CPU) updateFlags(result uint16) {
	c.Z = result == 0
	c.N = (result & 0x8000) != 0
}

// ReadByte reads a single byte from addr.
func (c *CPU) ReadByte(addr uint16) byte {
	return c.Memory[addr]
}

// WriteByte writes a single byte to addr, with MMIO interception.
func (c *CPU) WriteByte(addr uint16, val byte) {
	if addr == MMIOChar || addr == MMIODecimal {
		c.handleMMIOWrite(addr, uint16(val))
		return
	}
	c.Memory[addr] = val
}

// Read16 reads a little-endian uint16 from addr and addr+1.
func (c *CPU) Read16(addr uint16) uint16 {
	lo := uint16(c.ReadByte(addr))
	hi := uint16(c.ReadByte(addr + 1))
	return lo | (hi << 8)
}

// Write16 writes a little-endian uint16 to addr and addr+1. The two output
// ports sit at 0xFF00 and 0xFF01; everything else is plain RAM, including
// the stack region just above them.
func (c *CPU) Write16(addr uint16, val uint16) {
	if addr == MMIOChar || addr == MMIODecimal {
		c.handleMMIOWrite(addr, val)
		return
	}
	c.WriteByte(addr, byte(val&0xFF))
	c.WriteByte(addr+1, byte(val>>8))
}

func (c *CPU) handleMMIOWrite(addr uint16, val uint16) {
	switch addr {
	case MMIOChar:
		fmt.Fprintf(c.outputSink(), "%c", val)
	case MMIODecimal:
		fmt.Fprintf(c.outputSink(), "%d", int16(val))
	}
}

// Step fetches, decodes and executes one instruction.
func (c *CPU) Step() {
	if c.Halted {
		return
	}

	instr := c.Read16(c.PC)
	c.PC += 2

	opcode := (instr >> 10) & 0x3F
	regA := (instr >> 7) & 0x07
	regB := (instr >> 4) & 0x07

	switch opcode {
	case OpHLT:
		c.Halted = true

	case OpNOP:
		// No operation.

	case OpLDI:
		imm := c.Read16(c.PC)
		c.PC += 2
		*c.reg(regA) = imm

	case OpMOV:
		*c.reg(regA) = *c.reg(regB)

	case OpLD:
		addr := *c.reg(regB)
		*c.reg(regA) = c.Read16(addr)

	case OpST:
		addr := *c.reg(regA)
		val := *c.reg(regB)
		c.Write16(addr, val)

	case OpADD:
		valA := uint32(*c.reg(regA))
		valB := uint32(*c.reg(regB))
		res32 := valA + valB
		result := uint16(res32)
		c.C = res32 > 0xFFFF
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpSUB:
		valA := *c.reg(regA)
		valB := *c.reg(regB)
		result := valA - valB
		c.C = valA < valB
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpAND:
		result := *c.reg(regA) & *c.reg(regB)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpOR:
		result := *c.reg(regA) | *c.reg(regB)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpXOR:
		result := *c.reg(regA) ^ *c.reg(regB)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpNOT:
		result := ^*c.reg(regA)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpSHL:
		result := *c.reg(regA) << *c.reg(regB)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpSHR:
		result := *c.reg(regA) >> *c.reg(regB)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpJMP:
		target := c.Read16(c.PC)
		c.PC += 2
		c.PC = target

	case OpJZ:
		target := c.Read16(c.PC)
		c.PC += 2
		if c.Z {
			c.PC = target
		}

	case OpJNZ:
		target := c.Read16(c.PC)
		c.PC += 2
		if !c.Z {
			c.PC = target
		}

	case OpJN:
		target := c.Read16(c.PC)
		c.PC += 2
		if c.N {
			c.PC = target
		}

	case OpJC:
		target := c.Read16(c.PC)
		c.PC += 2
		if c.C {
			c.PC = target
		}

	case OpJNC:
		target := c.Read16(c.PC)
		c.PC += 2
		if !c.C {
			c.PC = target
		}

	case OpPUSH:
		c.SP -= 2
		c.Write16(c.SP, *c.reg(regA))

	case OpPOP:
		*c.reg(regA) = c.Read16(c.SP)
		c.SP += 2

	case OpCALL:
		target := c.Read16(c.PC)
		c.PC += 2
		c.SP -= 2
		c.Write16(c.SP, c.PC)
		c.PC = target

	case OpRET:
		c.PC = c.Read16(c.SP)
		c.SP += 2

	case OpLDSP:
		*c.reg(regA) = c.SP

	case OpSTSP:
		c.SP = *c.reg(regA)

	case OpMUL:
		result := *c.reg(regA) * *c.reg(regB)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpDIV:
		divisor := *c.reg(regB)
		if divisor == 0 {
			*c.reg(regA) = 0
			c.updateFlags(0)
		} else {
			result := *c.reg(regA) / divisor
			*c.reg(regA) = result
			c.updateFlags(result)
		}

	case OpIDIV:
		divisor := int16(*c.reg(regB))
		if divisor == 0 {
			*c.reg(regA) = 0
			c.updateFlags(0)
		} else {
			result := int16(*c.reg(regA)) / divisor
			*c.reg(regA) = uint16(result)
			c.updateFlags(uint16(result))
		}

	case OpLDB:
		addr := *c.reg(regB)
		*c.reg(regA) = uint16(c.ReadByte(addr))

	case OpSTB:
		addr := *c.reg(regA)
		c.WriteByte(addr, byte(*c.reg(regB)&0xFF))
	}
}

// Run executes instructions until HLT.
func (c *CPU) Run() {
	for !c.Halted {
		c.Step()
	}
}

// EncodeInstruction packs an opcode and up to three register operands into
// one instruction word: opcode<<10 | regA<<7 | regB<<4 | regC<<1.
func EncodeInstruction(opcode, regA, regB, regC uint16) uint16 {
	return (opcode << 10) | ((regA & 0x07) << 7) | ((regB & 0x07) << 4) | ((regC & 0x07) << 1)
}
