package ppu

import (
	"bytes"
	"encoding/gob"
)

// IRQ bits passed to the interrupt requester.
const (
	IntVBlank = 0
	IntSTAT   = 1
)

// InterruptRequester raises a bit in the IF register.
type InterruptRequester func(bit int)

// PPU models VRAM/OAM, the LCD register file, LY/LYC and mode timing for a
// DMG Game Boy. Rendering itself happens once per frame via RenderFrame,
// driven by the per-scanline register snapshots captured here at mode-3
// entry.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0xA0]byte   // 0xFE00-0xFE9F

	lcdc byte // FF40
	stat byte // FF41
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot     int // dots within the current line, 0..455
	winLine byte

	lines [144]LineRegs

	req InterruptRequester

	// set when LY wraps to 0, cleared by FrameDone
	frameDone bool
}

// LineRegs is the register snapshot used to render one scanline.
type LineRegs struct {
	LCDC    byte
	SCY     byte
	SCX     byte
	BGP     byte
	OBP0    byte
	OBP1    byte
	WY      byte
	WX      byte
	WinLine byte
}

func New(req InterruptRequester) *PPU {
	return &PPU{req: req}
}

// Read handles VRAM, OAM, and the FF40-FF4B register window.
func (p *PPU) Read(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == 3 { // VRAM locked during pixel transfer
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m := p.mode(); m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		// DMG: bit 7 reads as 1
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

func (p *PPU) Write(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == 3 {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m := p.mode(); m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if prev&0x80 != 0 && value&0x80 == 0 {
			// LCD off resets LY and mode
			p.ly, p.dot = 0, 0
			p.setMode(0)
			p.compareLYC()
		} else if prev&0x80 == 0 && value&0x80 != 0 {
			p.ly, p.dot, p.winLine = 0, 0, 0
			p.setMode(2)
			p.compareLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		// LY write resets the counter
		p.ly, p.dot, p.winLine = 0, 0, 0
		p.compareLYC()
		if p.lcdc&0x80 != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.compareLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

func (p *PPU) mode() byte { return p.stat & 0x03 }

// Tick advances the PPU by the given number of dots (one dot per CPU cycle).
func (p *PPU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		if p.lcdc&0x80 == 0 {
			continue
		}
		p.dot++
		if p.ly < 144 {
			switch {
			case p.dot < 80:
				p.setMode(2)
			case p.dot < 80+172:
				p.setMode(3)
			default:
				p.setMode(0)
			}
		} else {
			p.setMode(1)
		}
		if p.dot < 456 {
			continue
		}
		p.dot = 0
		p.ly++
		switch {
		case p.ly == 144:
			if p.req != nil {
				p.req(IntVBlank)
			}
			if p.stat&(1<<4) != 0 && p.req != nil {
				p.req(IntSTAT)
			}
			p.setMode(1)
		case p.ly > 153:
			p.ly = 0
			p.winLine = 0
			p.frameDone = true
			p.setMode(2)
		default:
			if p.ly < 144 {
				p.setMode(2)
				p.advanceWinLine()
			}
		}
		p.compareLYC()
	}
}

// advanceWinLine tracks the internal window line counter for the line just
// entered. Window rendering uses this counter, not LY-WY.
func (p *PPU) advanceWinLine() {
	visible := p.lcdc&0x20 != 0 && p.lcdc&0x01 != 0 && p.ly >= p.wy && p.wx <= 166
	if !visible {
		return
	}
	if p.ly == p.wy {
		p.winLine = 0
	} else {
		p.winLine++
	}
}

func (p *PPU) setMode(mode byte) {
	if p.mode() == mode {
		return
	}
	p.stat = p.stat&^0x03 | mode&0x03
	switch mode {
	case 0:
		if p.stat&(1<<3) != 0 && p.req != nil {
			p.req(IntSTAT)
		}
	case 2:
		if p.stat&(1<<5) != 0 && p.req != nil {
			p.req(IntSTAT)
		}
	case 3:
		p.captureLine()
	}
}

func (p *PPU) compareLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if p.stat&(1<<6) != 0 && p.req != nil {
			p.req(IntSTAT)
		}
	} else {
		p.stat &^= 1 << 2
	}
}

func (p *PPU) captureLine() {
	if p.ly >= 144 {
		return
	}
	p.lines[p.ly] = LineRegs{
		LCDC: p.lcdc, SCY: p.scy, SCX: p.scx, BGP: p.bgp,
		OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		WinLine: p.winLine,
	}
}

// Line returns the captured snapshot for scanline y. When rendering before
// any capture happened (LCD starting up), the caller falls back to live
// registers.
func (p *PPU) Line(y int) LineRegs {
	if y < 0 || y >= len(p.lines) {
		return LineRegs{}
	}
	return p.lines[y]
}

// LY returns the current scanline counter.
func (p *PPU) LY() byte { return p.ly }

// FrameDone reports and clears the end-of-frame flag set when LY wraps.
func (p *PPU) FrameDone() bool {
	d := p.frameDone
	p.frameDone = false
	return d
}

// RawVRAM reads VRAM bypassing mode-3 locking; renderer use only.
func (p *PPU) RawVRAM(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return p.vram[addr-0x8000]
	}
	return 0xFF
}

// RawOAM reads OAM bypassing mode locking; renderer use only.
func (p *PPU) RawOAM(addr uint16) byte {
	if addr >= 0xFE00 && addr <= 0xFE9F {
		return p.oam[addr-0xFE00]
	}
	return 0xFF
}

// WriteOAM stores directly into OAM regardless of mode; used by OAM DMA.
func (p *PPU) WriteOAM(index int, value byte) {
	if index >= 0 && index < len(p.oam) {
		p.oam[index] = value
	}
}

type ppuState struct {
	VRAM    [0x2000]byte
	OAM     [0xA0]byte
	LCDC    byte
	STAT    byte
	SCY     byte
	SCX     byte
	LY      byte
	LYC     byte
	BGP     byte
	OBP0    byte
	OBP1    byte
	WY      byte
	WX      byte
	Dot     int
	WinLine byte
	Lines   [144]LineRegs
}

func (p *PPU) Snapshot() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(ppuState{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx,
		LY: p.ly, LYC: p.lyc, BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1,
		WY: p.wy, WX: p.wx, Dot: p.dot, WinLine: p.winLine, Lines: p.lines,
	})
	return buf.Bytes()
}

func (p *PPU) Restore(data []byte) {
	var s ppuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx = s.LCDC, s.STAT, s.SCY, s.SCX
	p.ly, p.lyc, p.bgp, p.obp0, p.obp1 = s.LY, s.LYC, s.BGP, s.OBP0, s.OBP1
	p.wy, p.wx, p.dot, p.winLine, p.lines = s.WY, s.WX, s.Dot, s.WinLine, s.Lines
	p.frameDone = false
}
