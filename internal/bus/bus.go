package bus

import (
	"bytes"
	"encoding/gob"
	"io"

	"gblearn/internal/cart"
	"gblearn/internal/ppu"
)

// Joypad state bits for SetJoypadState. Direction keys occupy the low
// nibble, buttons the high nibble, matching the JOYP group split.
const (
	JoypRight  byte = 0x01
	JoypLeft   byte = 0x02
	JoypUp     byte = 0x04
	JoypDown   byte = 0x08
	JoypA      byte = 0x10
	JoypB      byte = 0x20
	JoypSelect byte = 0x40
	JoypStart  byte = 0x80
)

// Bus wires the CPU to cartridge, WRAM, HRAM, PPU, timers, joypad and the
// serial port. Tick drives everything that advances with CPU cycles.
type Bus struct {
	cart cart.Cartridge
	ppu  *ppu.PPU

	wram [0x2000]byte // 0xC000-0xDFFF, echoed at 0xE000-0xFDFF
	hram [0x7F]byte   // 0xFF80-0xFFFE

	ifReg byte // 0xFF0F, low 5 bits
	ieReg byte // 0xFFFF

	// joypad
	joypSelect byte // bits 4-5 of FF00 as written
	pressed    byte // Joyp* mask of currently held keys

	// timers
	div         uint16 // internal divider; DIV reads the high byte
	tima        byte
	tma         byte
	tac         byte
	timaCounter int

	// serial
	serialData byte
	serialCtl  byte
	serialW    io.Writer

	dmaReg byte

	// unmodeled audio registers, kept readable so games that poll them work
	apuRegs [0x30]byte // 0xFF10-0xFF3F
}

// New builds a Bus around a ROM image, picking the mapper from the header.
func New(rom []byte) *Bus {
	b := &Bus{cart: cart.New(rom)}
	b.ppu = ppu.New(b.RequestInterrupt)
	return b
}

// PPU exposes the PPU for rendering and tests.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// Cart exposes the cartridge for tests.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// RequestInterrupt sets a bit in IF (0:VBlank 1:STAT 2:Timer 3:Serial 4:Joypad).
func (b *Bus) RequestInterrupt(bit int) {
	if bit >= 0 && bit < 5 {
		b.ifReg |= 1 << bit
	}
}

// SetSerialWriter streams bytes written to the serial port; useful for test
// ROMs that report results over the link cable.
func (b *Bus) SetSerialWriter(w io.Writer) { b.serialW = w }

// SetJoypadState replaces the held-key mask. A fresh press raises the
// joypad interrupt, but only when its key group is selected on FF00.
func (b *Bus) SetJoypadState(mask byte) {
	fresh := mask &^ b.pressed
	var sel byte
	if b.joypSelect&0x10 == 0 { // P14: direction keys
		sel |= fresh & 0x0F
	}
	if b.joypSelect&0x20 == 0 { // P15: buttons
		sel |= fresh & 0xF0
	}
	if sel != 0 {
		b.RequestInterrupt(4)
	}
	b.pressed = mask
}

// SetDIV overwrites the internal divider counter. Games commonly read DIV
// as an entropy source, so episode starts seed it.
func (b *Bus) SetDIV(v uint16) { b.div = v }

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		return b.cart.Read(addr)
	case addr < 0xA000:
		return b.ppu.Read(addr)
	case addr < 0xC000:
		return b.cart.Read(addr)
	case addr < 0xE000:
		return b.wram[addr-0xC000]
	case addr < 0xFE00: // echo RAM
		return b.wram[addr-0xE000]
	case addr < 0xFEA0:
		return b.ppu.Read(addr)
	case addr < 0xFF00: // unusable
		return 0xFF
	case addr == 0xFF00:
		return b.readJoyp()
	case addr == 0xFF01:
		return b.serialData
	case addr == 0xFF02:
		return b.serialCtl
	case addr == 0xFF04:
		return byte(b.div >> 8)
	case addr == 0xFF05:
		return b.tima
	case addr == 0xFF06:
		return b.tma
	case addr == 0xFF07:
		return 0xF8 | b.tac&0x07
	case addr == 0xFF0F:
		return 0xE0 | b.ifReg&0x1F
	case addr >= 0xFF10 && addr <= 0xFF3F:
		return b.apuRegs[addr-0xFF10]
	case addr == 0xFF46:
		return b.dmaReg
	case addr >= 0xFF40 && addr <= 0xFF4B:
		return b.ppu.Read(addr)
	case addr >= 0xFF80 && addr < 0xFFFF:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.ieReg
	default:
		return 0xFF
	}
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr < 0xA000:
		b.ppu.Write(addr, value)
	case addr < 0xC000:
		b.cart.Write(addr, value)
	case addr < 0xE000:
		b.wram[addr-0xC000] = value
	case addr < 0xFE00:
		b.wram[addr-0xE000] = value
	case addr < 0xFEA0:
		b.ppu.Write(addr, value)
	case addr < 0xFF00:
		// unusable
	case addr == 0xFF00:
		b.joypSelect = value & 0x30
	case addr == 0xFF01:
		b.serialData = value
	case addr == 0xFF02:
		b.serialCtl = value & 0x7F
		if value&0x80 != 0 {
			// Transfer completes immediately: no link partner to wait for.
			if b.serialW != nil {
				_, _ = b.serialW.Write([]byte{b.serialData})
			}
			b.serialData = 0xFF
			b.RequestInterrupt(3)
		}
	case addr == 0xFF04:
		b.div = 0 // any write resets DIV
	case addr == 0xFF05:
		b.tima = value
	case addr == 0xFF06:
		b.tma = value
	case addr == 0xFF07:
		b.tac = value & 0x07
	case addr == 0xFF0F:
		b.ifReg = value & 0x1F
	case addr >= 0xFF10 && addr <= 0xFF3F:
		b.apuRegs[addr-0xFF10] = value
	case addr == 0xFF46:
		b.dmaReg = value
		b.oamDMA(value)
	case addr >= 0xFF40 && addr <= 0xFF4B:
		b.ppu.Write(addr, value)
	case addr >= 0xFF80 && addr < 0xFFFF:
		b.hram[addr-0xFF80] = value
	case addr == 0xFFFF:
		b.ieReg = value
	}
}

// readJoyp builds FF00 from the select bits and held keys. Selected group
// lines read 0 when pressed; unselected groups read all 1s.
func (b *Bus) readJoyp() byte {
	v := 0xC0 | b.joypSelect | 0x0F
	if b.joypSelect&0x10 == 0 { // P14: direction keys
		v &^= b.pressed & 0x0F
	}
	if b.joypSelect&0x20 == 0 { // P15: buttons
		v &^= b.pressed >> 4
	}
	return v
}

// oamDMA copies 0xA0 bytes from page<<8 into OAM. Real hardware takes 160
// machine cycles; games spin in HRAM meanwhile, so an immediate copy works.
func (b *Bus) oamDMA(page byte) {
	src := uint16(page) << 8
	for i := 0; i < 0xA0; i++ {
		b.ppu.WriteOAM(i, b.Read(src+uint16(i)))
	}
}

// Tick advances timers and the PPU by the given number of CPU cycles.
func (b *Bus) Tick(cycles int) {
	b.div += uint16(cycles)

	if b.tac&0x04 != 0 {
		period := 1024
		switch b.tac & 0x03 {
		case 1:
			period = 16
		case 2:
			period = 64
		case 3:
			period = 256
		}
		b.timaCounter += cycles
		for b.timaCounter >= period {
			b.timaCounter -= period
			b.tima++
			if b.tima == 0 {
				b.tima = b.tma
				b.RequestInterrupt(2)
			}
		}
	}

	b.ppu.Tick(cycles)
}

type busState struct {
	WRAM        [0x2000]byte
	HRAM        [0x7F]byte
	IF, IE      byte
	JoypSelect  byte
	Div         uint16
	TIMA        byte
	TMA         byte
	TAC         byte
	TimaCounter int
	SerialData  byte
	SerialCtl   byte
	DMAReg      byte
	APURegs     [0x30]byte
	PPU         []byte
	Cart        []byte
}

// Snapshot serializes bus-owned state plus the nested PPU and cartridge.
func (b *Bus) Snapshot() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(busState{
		WRAM: b.wram, HRAM: b.hram, IF: b.ifReg, IE: b.ieReg,
		JoypSelect: b.joypSelect, Div: b.div,
		TIMA: b.tima, TMA: b.tma, TAC: b.tac, TimaCounter: b.timaCounter,
		SerialData: b.serialData, SerialCtl: b.serialCtl, DMAReg: b.dmaReg,
		APURegs: b.apuRegs, PPU: b.ppu.Snapshot(), Cart: b.cart.Snapshot(),
	})
	return buf.Bytes()
}

func (b *Bus) Restore(data []byte) {
	var s busState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	b.wram, b.hram, b.ifReg, b.ieReg = s.WRAM, s.HRAM, s.IF, s.IE
	b.joypSelect, b.div = s.JoypSelect, s.Div
	b.tima, b.tma, b.tac, b.timaCounter = s.TIMA, s.TMA, s.TAC, s.TimaCounter
	b.serialData, b.serialCtl, b.dmaReg = s.SerialData, s.SerialCtl, s.DMAReg
	b.apuRegs = s.APURegs
	b.ppu.Restore(s.PPU)
	b.cart.Restore(s.Cart)
}
