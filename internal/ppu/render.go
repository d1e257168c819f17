package ppu

// Screen dimensions in pixels.
const (
	Width  = 160
	Height = 144
)

// DMG grayscale shades packed as R<<24|G<<16|B<<8|A.
var shades = [4]uint32{
	0xFFFFFFFF, // white
	0xC0C0C0FF, // light gray
	0x606060FF, // dark gray
	0x000000FF, // black
}

func shade(pal byte, ci byte) uint32 {
	return shades[(pal>>(ci*2))&0x03]
}

// RenderFrame composes BG, window and sprites for all 144 lines into fb,
// one packed 32-bit pixel per cell, using the per-line register snapshots
// captured during the frame. fb must hold Width*Height entries.
func RenderFrame(p *PPU, fb []uint32) {
	for y := 0; y < Height; y++ {
		lr := p.Line(y)
		if lr.LCDC == 0 {
			// No snapshot captured yet (LCD just enabled); use live regs.
			lr = LineRegs{
				LCDC: p.lcdc, SCY: p.scy, SCX: p.scx, BGP: p.bgp,
				OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
			}
		}
		renderLine(p, y, lr, fb[y*Width:(y+1)*Width])
	}
}

func renderLine(p *PPU, y int, lr LineRegs, out []uint32) {
	// bgci keeps the raw BG/window color index per pixel for sprite priority.
	var bgci [Width]byte

	if lr.LCDC&0x80 == 0 || lr.LCDC&0x01 == 0 {
		for x := range out {
			out[x] = shades[0]
		}
	} else {
		renderBGLine(p, y, lr, out, &bgci)
		renderWindowLine(p, y, lr, out, &bgci)
	}

	if lr.LCDC&0x80 != 0 && lr.LCDC&0x02 != 0 {
		renderSpriteLine(p, y, lr, out, &bgci)
	}
}

// tilePixel returns the 2-bit color index of (fineX, fineY) within the tile
// selected by tileNum under the active addressing mode.
func tilePixel(p *PPU, tileNum byte, data8000 bool, fineX, fineY byte) byte {
	var addr uint16
	if data8000 {
		addr = 0x8000 + uint16(tileNum)*16 + uint16(fineY)*2
	} else {
		addr = uint16(0x9000 + int(int8(tileNum))*16 + int(fineY)*2)
	}
	lo := p.RawVRAM(addr)
	hi := p.RawVRAM(addr + 1)
	bit := 7 - fineX
	return ((hi>>bit)&1)<<1 | (lo>>bit)&1
}

func renderBGLine(p *PPU, y int, lr LineRegs, out []uint32, bgci *[Width]byte) {
	mapBase := uint16(0x9800)
	if lr.LCDC&0x08 != 0 {
		mapBase = 0x9C00
	}
	data8000 := lr.LCDC&0x10 != 0

	bgY := byte(uint16(lr.SCY) + uint16(y))
	row := uint16(bgY/8) * 32
	fineY := bgY % 8
	for x := 0; x < Width; x++ {
		bgX := byte(uint16(lr.SCX) + uint16(x))
		tileNum := p.RawVRAM(mapBase + row + uint16(bgX/8))
		ci := tilePixel(p, tileNum, data8000, bgX%8, fineY)
		out[x] = shade(lr.BGP, ci)
		bgci[x] = ci
	}
}

func renderWindowLine(p *PPU, y int, lr LineRegs, out []uint32, bgci *[Width]byte) {
	if lr.LCDC&0x20 == 0 {
		return
	}
	if y < int(lr.WY) || int(lr.WY) >= Height {
		return
	}
	startX := int(lr.WX) - 7
	if startX >= Width {
		return
	}

	mapBase := uint16(0x9800)
	if lr.LCDC&0x40 != 0 {
		mapBase = 0x9C00
	}
	data8000 := lr.LCDC&0x10 != 0

	row := uint16(lr.WinLine/8) * 32
	fineY := lr.WinLine % 8
	for x := max(0, startX); x < Width; x++ {
		winX := byte(x - startX)
		tileNum := p.RawVRAM(mapBase + row + uint16(winX/8))
		ci := tilePixel(p, tileNum, data8000, winX%8, fineY)
		out[x] = shade(lr.BGP, ci)
		bgci[x] = ci
	}
}

type sprite struct {
	y, x  int
	tile  byte
	attr  byte
	index int
}

func renderSpriteLine(p *PPU, y int, lr LineRegs, out []uint32, bgci *[Width]byte) {
	tall := lr.LCDC&0x04 != 0
	height := 8
	if tall {
		height = 16
	}

	// OAM scan: the hardware considers at most 10 objects per line, in OAM order.
	var line [10]sprite
	n := 0
	for i := 0; i < 40 && n < 10; i++ {
		base := uint16(0xFE00 + i*4)
		sy := int(p.RawOAM(base)) - 16
		if y < sy || y >= sy+height {
			continue
		}
		line[n] = sprite{
			y: sy, x: int(p.RawOAM(base+1)) - 8,
			tile: p.RawOAM(base + 2), attr: p.RawOAM(base + 3),
			index: i,
		}
		n++
	}
	if n == 0 {
		return
	}

	// DMG draw priority: lowest X wins, OAM index breaks ties.
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if line[j].x < line[i].x || (line[j].x == line[i].x && line[j].index < line[i].index) {
				line[i], line[j] = line[j], line[i]
			}
		}
	}

	for x := 0; x < Width; x++ {
		for k := 0; k < n; k++ {
			s := line[k]
			if x < s.x || x >= s.x+8 {
				continue
			}
			row := y - s.y
			col := x - s.x
			if s.attr&0x40 != 0 { // Y flip
				row = height - 1 - row
			}
			if s.attr&0x20 != 0 { // X flip
				col = 7 - col
			}
			tile := s.tile
			if tall {
				tile &= 0xFE
				if row >= 8 {
					tile++
				}
			}
			ci := tilePixel(p, tile, true, byte(col), byte(row&7))
			if ci == 0 {
				continue // transparent; a lower-priority sprite may own the pixel
			}
			// The first opaque sprite owns the pixel. If it is behind
			// non-zero BG, the BG pixel stands; sprites below it never
			// show through.
			if s.attr&0x80 == 0 || bgci[x] == 0 {
				pal := lr.OBP0
				if s.attr&0x10 != 0 {
					pal = lr.OBP1
				}
				out[x] = shade(pal, ci)
			}
			break
		}
	}
}
