package cpu

import (
	"bytes"
	"encoding/gob"

	"gblearn/internal/bus"
)

const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

// CPU is an SM83 core. Register fields are exported for tests and for
// machine reset/snapshot handling.
type CPU struct {
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16

	IME    bool
	halted bool
	// EI takes effect after the instruction that follows it
	eiPending bool

	bus *bus.Bus
}

func New(b *bus.Bus) *CPU {
	return &CPU{bus: b, SP: 0xFFFE}
}

// SetPC sets the program counter; used by reset paths and tests.
func (c *CPU) SetPC(pc uint16) { c.PC = pc }

// Bus exposes the underlying bus for tests and tools.
func (c *CPU) Bus() *bus.Bus { return c.bus }

// Reset puts the registers into the DMG post-boot state, the state a boot
// ROM would leave behind before jumping to 0x0100.
func (c *CPU) Reset() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.IME = false
	c.halted = false
	c.eiPending = false
}

// --- memory helpers ---

func (c *CPU) read8(addr uint16) byte     { return c.bus.Read(addr) }
func (c *CPU) write8(addr uint16, v byte) { c.bus.Write(addr, v) }

func (c *CPU) fetch8() byte {
	v := c.read8(c.PC)
	c.PC++
	return v
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return hi<<8 | lo
}

func (c *CPU) read16(addr uint16) uint16 {
	return uint16(c.read8(addr+1))<<8 | uint16(c.read8(addr))
}

func (c *CPU) write16(addr, v uint16) {
	c.write8(addr, byte(v))
	c.write8(addr+1, byte(v>>8))
}

func (c *CPU) push16(v uint16) {
	c.SP -= 2
	c.write16(c.SP, v)
}

func (c *CPU) pop16() uint16 {
	v := c.read16(c.SP)
	c.SP += 2
	return v
}

// --- register pair helpers ---

func (c *CPU) AF() uint16     { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) setAF(v uint16) { c.A, c.F = byte(v>>8), byte(v)&0xF0 }
func (c *CPU) BC() uint16     { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) setBC(v uint16) { c.B, c.C = byte(v>>8), byte(v) }
func (c *CPU) DE() uint16     { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) setDE(v uint16) { c.D, c.E = byte(v>>8), byte(v) }
func (c *CPU) HL() uint16     { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) setHL(v uint16) { c.H, c.L = byte(v>>8), byte(v) }

// reg reads operand index 0..7 (B C D E H L (HL) A).
func (c *CPU) reg(idx byte) byte {
	switch idx {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.read8(c.HL())
	default:
		return c.A
	}
}

func (c *CPU) setReg(idx, v byte) {
	switch idx {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.write8(c.HL(), v)
	default:
		c.A = v
	}
}

// rp reads 16-bit register pair index 0..3 (BC DE HL SP).
func (c *CPU) rp(idx byte) uint16 {
	switch idx {
	case 0:
		return c.BC()
	case 1:
		return c.DE()
	case 2:
		return c.HL()
	default:
		return c.SP
	}
}

func (c *CPU) setRP(idx byte, v uint16) {
	switch idx {
	case 0:
		c.setBC(v)
	case 1:
		c.setDE(v)
	case 2:
		c.setHL(v)
	default:
		c.SP = v
	}
}

func (c *CPU) setFlags(z, n, h, carry bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if carry {
		f |= flagC
	}
	c.F = f
}

func (c *CPU) flagSet(f byte) bool { return c.F&f != 0 }

// cond evaluates condition index 0..3 (NZ Z NC C).
func (c *CPU) cond(idx byte) bool {
	switch idx {
	case 0:
		return !c.flagSet(flagZ)
	case 1:
		return c.flagSet(flagZ)
	case 2:
		return !c.flagSet(flagC)
	default:
		return c.flagSet(flagC)
	}
}

// --- ALU ---

func (c *CPU) add(v byte, carryIn bool) {
	ci := byte(0)
	if carryIn && c.flagSet(flagC) {
		ci = 1
	}
	r := uint16(c.A) + uint16(v) + uint16(ci)
	h := (c.A&0x0F)+(v&0x0F)+ci > 0x0F
	c.A = byte(r)
	c.setFlags(c.A == 0, false, h, r > 0xFF)
}

func (c *CPU) sub(v byte, carryIn, store bool) {
	ci := byte(0)
	if carryIn && c.flagSet(flagC) {
		ci = 1
	}
	r := int16(c.A) - int16(v) - int16(ci)
	h := int16(c.A&0x0F)-int16(v&0x0F)-int16(ci) < 0
	res := byte(r)
	c.setFlags(res == 0, true, h, r < 0)
	if store {
		c.A = res
	}
}

// alu dispatches operation index 0..7 (ADD ADC SUB SBC AND XOR OR CP).
func (c *CPU) alu(op, v byte) {
	switch op {
	case 0:
		c.add(v, false)
	case 1:
		c.add(v, true)
	case 2:
		c.sub(v, false, true)
	case 3:
		c.sub(v, true, true)
	case 4:
		c.A &= v
		c.setFlags(c.A == 0, false, true, false)
	case 5:
		c.A ^= v
		c.setFlags(c.A == 0, false, false, false)
	case 6:
		c.A |= v
		c.setFlags(c.A == 0, false, false, false)
	case 7:
		c.sub(v, false, false)
	}
}

func (c *CPU) inc8(v byte) byte {
	r := v + 1
	c.setFlags(r == 0, false, v&0x0F == 0x0F, c.flagSet(flagC))
	return r
}

func (c *CPU) dec8(v byte) byte {
	r := v - 1
	c.setFlags(r == 0, true, v&0x0F == 0, c.flagSet(flagC))
	return r
}

func (c *CPU) addHL(v uint16) {
	hl := c.HL()
	r := uint32(hl) + uint32(v)
	h := (hl&0x0FFF)+(v&0x0FFF) > 0x0FFF
	c.setHL(uint16(r))
	c.setFlags(c.flagSet(flagZ), false, h, r > 0xFFFF)
}

// addSPOffset computes SP+e with the SM83's low-byte flag semantics.
func (c *CPU) addSPOffset(off int8) uint16 {
	low := byte(c.SP)
	h := (low&0x0F)+(byte(off)&0x0F) > 0x0F
	cy := uint16(low)+uint16(byte(off)) > 0xFF
	c.setFlags(false, false, h, cy)
	return uint16(int32(c.SP) + int32(off))
}

// --- interrupts ---

// serviceInterrupt dispatches the highest-priority pending enabled
// interrupt, if any, and returns the cycles consumed.
func (c *CPU) serviceInterrupt() int {
	pending := c.bus.Read(0xFFFF) & c.bus.Read(0xFF0F) & 0x1F
	if pending == 0 {
		return 0
	}
	var bit uint
	for bit = 0; bit < 5; bit++ {
		if pending&(1<<bit) != 0 {
			break
		}
	}
	c.bus.Write(0xFF0F, c.bus.Read(0xFF0F)&^(1<<bit)&0x1F)
	c.halted = false
	c.IME = false
	c.push16(c.PC)
	c.PC = 0x40 + uint16(bit)*8
	return 20
}

// Step executes one instruction (or services an interrupt) and returns the
// cycle count. Timers and the PPU are advanced by the same amount.
func (c *CPU) Step() int {
	// EI enables IME only after the instruction following it, so the
	// promotion happens when the pending flag survives a full step (DI
	// in that slot cancels it).
	pending := c.eiPending
	cycles := c.step()
	if c.bus != nil && cycles > 0 {
		c.bus.Tick(cycles)
	}
	if pending && c.eiPending {
		c.IME = true
		c.eiPending = false
	}
	return cycles
}

func (c *CPU) step() int {
	if c.halted {
		if c.IME {
			if cyc := c.serviceInterrupt(); cyc != 0 {
				return cyc
			}
		} else if c.bus.Read(0xFF0F)&c.bus.Read(0xFFFF)&0x1F != 0 {
			// wake without servicing (HALT with IME clear)
			c.halted = false
		} else {
			return 4
		}
	}

	if c.IME {
		if cyc := c.serviceInterrupt(); cyc != 0 {
			return cyc
		}
	}

	op := c.fetch8()

	// LD r,r' block (0x40-0x7F), with HALT in the (HL),(HL) slot.
	if op >= 0x40 && op < 0x80 {
		if op == 0x76 {
			c.halted = true
			return 4
		}
		dst := (op >> 3) & 7
		src := op & 7
		c.setReg(dst, c.reg(src))
		if dst == 6 || src == 6 {
			return 8
		}
		return 4
	}

	// ALU A,r block (0x80-0xBF).
	if op >= 0x80 && op < 0xC0 {
		c.alu((op>>3)&7, c.reg(op&7))
		if op&7 == 6 {
			return 8
		}
		return 4
	}

	switch op {
	case 0x00: // NOP
		return 4
	case 0x10: // STOP
		c.fetch8()
		return 4

	// 16-bit loads and arithmetic
	case 0x01, 0x11, 0x21, 0x31: // LD rp,d16
		c.setRP(op>>4, c.fetch16())
		return 12
	case 0x03, 0x13, 0x23, 0x33: // INC rp
		c.setRP(op>>4, c.rp(op>>4)+1)
		return 8
	case 0x0B, 0x1B, 0x2B, 0x3B: // DEC rp
		c.setRP(op>>4, c.rp(op>>4)-1)
		return 8
	case 0x09, 0x19, 0x29, 0x39: // ADD HL,rp
		c.addHL(c.rp(op >> 4))
		return 8
	case 0x08: // LD (a16),SP
		c.write16(c.fetch16(), c.SP)
		return 20

	// 8-bit immediate loads
	case 0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E, 0x3E: // LD r,d8
		c.setReg((op>>3)&7, c.fetch8())
		return 8
	case 0x36: // LD (HL),d8
		c.write8(c.HL(), c.fetch8())
		return 12

	// accumulator loads via pairs
	case 0x02:
		c.write8(c.BC(), c.A)
		return 8
	case 0x12:
		c.write8(c.DE(), c.A)
		return 8
	case 0x0A:
		c.A = c.read8(c.BC())
		return 8
	case 0x1A:
		c.A = c.read8(c.DE())
		return 8
	case 0x22: // LD (HL+),A
		c.write8(c.HL(), c.A)
		c.setHL(c.HL() + 1)
		return 8
	case 0x2A: // LD A,(HL+)
		c.A = c.read8(c.HL())
		c.setHL(c.HL() + 1)
		return 8
	case 0x32: // LD (HL-),A
		c.write8(c.HL(), c.A)
		c.setHL(c.HL() - 1)
		return 8
	case 0x3A: // LD A,(HL-)
		c.A = c.read8(c.HL())
		c.setHL(c.HL() - 1)
		return 8

	// INC/DEC r
	case 0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C, 0x3C:
		idx := (op >> 3) & 7
		c.setReg(idx, c.inc8(c.reg(idx)))
		return 4
	case 0x34: // INC (HL)
		c.write8(c.HL(), c.inc8(c.read8(c.HL())))
		return 12
	case 0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D, 0x3D:
		idx := (op >> 3) & 7
		c.setReg(idx, c.dec8(c.reg(idx)))
		return 4
	case 0x35: // DEC (HL)
		c.write8(c.HL(), c.dec8(c.read8(c.HL())))
		return 12

	// rotates on A (Z always cleared)
	case 0x07: // RLCA
		cy := c.A >> 7
		c.A = c.A<<1 | cy
		c.setFlags(false, false, false, cy == 1)
		return 4
	case 0x0F: // RRCA
		cy := c.A & 1
		c.A = c.A>>1 | cy<<7
		c.setFlags(false, false, false, cy == 1)
		return 4
	case 0x17: // RLA
		cy := c.A >> 7
		ci := byte(0)
		if c.flagSet(flagC) {
			ci = 1
		}
		c.A = c.A<<1 | ci
		c.setFlags(false, false, false, cy == 1)
		return 4
	case 0x1F: // RRA
		cy := c.A & 1
		ci := byte(0)
		if c.flagSet(flagC) {
			ci = 1
		}
		c.A = c.A>>1 | ci<<7
		c.setFlags(false, false, false, cy == 1)
		return 4

	case 0x27: // DAA
		a := c.A
		cf := c.flagSet(flagC)
		if !c.flagSet(flagN) {
			if cf || a > 0x99 {
				a += 0x60
				cf = true
			}
			if c.flagSet(flagH) || a&0x0F > 0x09 {
				a += 0x06
			}
		} else {
			if cf {
				a -= 0x60
			}
			if c.flagSet(flagH) {
				a -= 0x06
			}
		}
		c.A = a
		c.setFlags(a == 0, c.flagSet(flagN), false, cf)
		return 4
	case 0x2F: // CPL
		c.A = ^c.A
		c.F = c.F&(flagZ|flagC) | flagN | flagH
		return 4
	case 0x37: // SCF
		c.F = c.F&flagZ | flagC
		return 4
	case 0x3F: // CCF
		c.F = (c.F & (flagZ | flagC)) ^ flagC
		return 4

	// relative jumps
	case 0x18: // JR e
		off := int8(c.fetch8())
		c.PC = uint16(int32(c.PC) + int32(off))
		return 12
	case 0x20, 0x28, 0x30, 0x38: // JR cc,e
		off := int8(c.fetch8())
		if c.cond((op >> 3) & 3) {
			c.PC = uint16(int32(c.PC) + int32(off))
			return 12
		}
		return 8

	// absolute jumps, calls, returns
	case 0xC3: // JP a16
		c.PC = c.fetch16()
		return 16
	case 0xE9: // JP HL
		c.PC = c.HL()
		return 4
	case 0xC2, 0xCA, 0xD2, 0xDA: // JP cc,a16
		addr := c.fetch16()
		if c.cond((op >> 3) & 3) {
			c.PC = addr
			return 16
		}
		return 12
	case 0xCD: // CALL a16
		addr := c.fetch16()
		c.push16(c.PC)
		c.PC = addr
		return 24
	case 0xC4, 0xCC, 0xD4, 0xDC: // CALL cc,a16
		addr := c.fetch16()
		if c.cond((op >> 3) & 3) {
			c.push16(c.PC)
			c.PC = addr
			return 24
		}
		return 12
	case 0xC9: // RET
		c.PC = c.pop16()
		return 16
	case 0xD9: // RETI
		c.PC = c.pop16()
		c.IME = true
		return 16
	case 0xC0, 0xC8, 0xD0, 0xD8: // RET cc
		if c.cond((op >> 3) & 3) {
			c.PC = c.pop16()
			return 20
		}
		return 8
	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF: // RST t
		c.push16(c.PC)
		c.PC = uint16(op & 0x38)
		return 16

	// stack ops
	case 0xC5: // PUSH BC
		c.push16(c.BC())
		return 16
	case 0xD5:
		c.push16(c.DE())
		return 16
	case 0xE5:
		c.push16(c.HL())
		return 16
	case 0xF5:
		c.push16(c.AF())
		return 16
	case 0xC1: // POP BC
		c.setBC(c.pop16())
		return 12
	case 0xD1:
		c.setDE(c.pop16())
		return 12
	case 0xE1:
		c.setHL(c.pop16())
		return 12
	case 0xF1:
		c.setAF(c.pop16())
		return 12

	// high-page and absolute accumulator loads
	case 0xE0: // LDH (a8),A
		c.write8(0xFF00+uint16(c.fetch8()), c.A)
		return 12
	case 0xF0: // LDH A,(a8)
		c.A = c.read8(0xFF00 + uint16(c.fetch8()))
		return 12
	case 0xE2: // LD (C),A
		c.write8(0xFF00+uint16(c.C), c.A)
		return 8
	case 0xF2: // LD A,(C)
		c.A = c.read8(0xFF00 + uint16(c.C))
		return 8
	case 0xEA: // LD (a16),A
		c.write8(c.fetch16(), c.A)
		return 16
	case 0xFA: // LD A,(a16)
		c.A = c.read8(c.fetch16())
		return 16

	// immediate ALU
	case 0xC6, 0xCE, 0xD6, 0xDE, 0xE6, 0xEE, 0xF6, 0xFE:
		c.alu((op>>3)&7, c.fetch8())
		return 8

	// SP arithmetic
	case 0xE8: // ADD SP,e
		c.SP = c.addSPOffset(int8(c.fetch8()))
		return 16
	case 0xF8: // LD HL,SP+e
		c.setHL(c.addSPOffset(int8(c.fetch8())))
		return 12
	case 0xF9: // LD SP,HL
		c.SP = c.HL()
		return 8

	// interrupt master enable
	case 0xF3: // DI
		c.IME = false
		c.eiPending = false
		return 4
	case 0xFB: // EI
		c.eiPending = true
		return 4

	case 0xCB:
		return c.stepCB()

	default:
		// Unused opcode slots; treat as NOP.
		return 4
	}
}

// stepCB executes a CB-prefixed instruction.
func (c *CPU) stepCB() int {
	op := c.fetch8()
	idx := op & 7
	y := (op >> 3) & 7
	cycles := 8
	if idx == 6 {
		cycles = 16
		if op>>6 == 1 { // BIT (HL) does not write back
			cycles = 12
		}
	}

	switch op >> 6 {
	case 0: // rotate/shift/swap
		v := c.reg(idx)
		var cy byte
		switch y {
		case 0: // RLC
			cy = v >> 7
			v = v<<1 | cy
		case 1: // RRC
			cy = v & 1
			v = v>>1 | cy<<7
		case 2: // RL
			cy = v >> 7
			ci := byte(0)
			if c.flagSet(flagC) {
				ci = 1
			}
			v = v<<1 | ci
		case 3: // RR
			cy = v & 1
			ci := byte(0)
			if c.flagSet(flagC) {
				ci = 1
			}
			v = v>>1 | ci<<7
		case 4: // SLA
			cy = v >> 7
			v <<= 1
		case 5: // SRA
			cy = v & 1
			v = v>>1 | v&0x80
		case 6: // SWAP
			cy = 0
			v = v<<4 | v>>4
		case 7: // SRL
			cy = v & 1
			v >>= 1
		}
		c.setReg(idx, v)
		c.setFlags(v == 0, false, false, cy == 1)
	case 1: // BIT y,r
		z := c.reg(idx)&(1<<y) == 0
		c.F = c.F&flagC | flagH
		if z {
			c.F |= flagZ
		}
	case 2: // RES y,r
		c.setReg(idx, c.reg(idx)&^(1<<y))
	case 3: // SET y,r
		c.setReg(idx, c.reg(idx)|1<<y)
	}
	return cycles
}

type cpuState struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
	IME, Halted, EIPending bool
}

func (c *CPU) Snapshot() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(cpuState{
		A: c.A, F: c.F, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		SP: c.SP, PC: c.PC, IME: c.IME, Halted: c.halted, EIPending: c.eiPending,
	})
	return buf.Bytes()
}

func (c *CPU) Restore(data []byte) {
	var s cpuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L = s.A, s.F, s.B, s.C, s.D, s.E, s.H, s.L
	c.SP, c.PC = s.SP, s.PC
	c.IME, c.halted, c.eiPending = s.IME, s.Halted, s.EIPending
}
