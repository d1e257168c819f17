package ppu

import "testing"

func TestPPU_ModeSequence(t *testing.T) {
	p := New(nil)
	p.Write(0xFF40, 0x80) // LCD on

	if got := p.Read(0xFF41) & 0x03; got != 2 {
		t.Fatalf("mode at line start got %d want 2", got)
	}
	p.Tick(80)
	if got := p.Read(0xFF41) & 0x03; got != 3 {
		t.Fatalf("mode after OAM scan got %d want 3", got)
	}
	p.Tick(172)
	if got := p.Read(0xFF41) & 0x03; got != 0 {
		t.Fatalf("mode after transfer got %d want 0", got)
	}
	p.Tick(456 - 252)
	if p.LY() != 1 {
		t.Fatalf("LY after one line got %d want 1", p.LY())
	}
	if got := p.Read(0xFF41) & 0x03; got != 2 {
		t.Fatalf("mode on next line got %d want 2", got)
	}
}

func TestPPU_VBlankAndFrameWrap(t *testing.T) {
	var irqs []int
	p := New(func(bit int) { irqs = append(irqs, bit) })
	p.Write(0xFF40, 0x80)

	p.Tick(456 * 144)
	if p.LY() != 144 {
		t.Fatalf("LY got %d want 144", p.LY())
	}
	found := false
	for _, b := range irqs {
		if b == IntVBlank {
			found = true
		}
	}
	if !found {
		t.Fatalf("no VBlank interrupt at line 144")
	}
	if got := p.Read(0xFF41) & 0x03; got != 1 {
		t.Fatalf("mode in vblank got %d want 1", got)
	}

	p.Tick(456 * 10)
	if p.LY() != 0 {
		t.Fatalf("LY after wrap got %d want 0", p.LY())
	}
	if !p.FrameDone() {
		t.Fatalf("frame done flag not set after wrap")
	}
	if p.FrameDone() {
		t.Fatalf("frame done flag not cleared by read")
	}
}

func TestPPU_LYCCompare(t *testing.T) {
	var irqs []int
	p := New(func(bit int) { irqs = append(irqs, bit) })
	p.Write(0xFF40, 0x80)
	p.Write(0xFF45, 0x05)
	p.Write(0xFF41, 1<<6) // LYC interrupt enable

	p.Tick(456 * 5)
	if p.LY() != 5 {
		t.Fatalf("LY got %d want 5", p.LY())
	}
	if p.Read(0xFF41)&(1<<2) == 0 {
		t.Fatalf("coincidence bit not set at LY==LYC")
	}
	found := false
	for _, b := range irqs {
		if b == IntSTAT {
			found = true
		}
	}
	if !found {
		t.Fatalf("no STAT interrupt on LYC match")
	}

	p.Tick(456)
	if p.Read(0xFF41)&(1<<2) != 0 {
		t.Fatalf("coincidence bit still set past the match line")
	}
}

func TestPPU_VRAMLockedDuringTransfer(t *testing.T) {
	p := New(nil)
	p.Write(0x8000, 0x42)
	p.Write(0xFF40, 0x80)
	p.Tick(100) // inside mode 3

	if got := p.Read(0x8000); got != 0xFF {
		t.Fatalf("VRAM read in mode 3 got %02x want FF", got)
	}
	p.Write(0x8000, 0x99) // dropped
	if got := p.RawVRAM(0x8000); got != 0x42 {
		t.Fatalf("VRAM write in mode 3 landed: %02x", got)
	}
}

func TestPPU_LCDDisableResets(t *testing.T) {
	p := New(nil)
	p.Write(0xFF40, 0x80)
	p.Tick(456 * 3)
	if p.LY() != 3 {
		t.Fatalf("LY got %d want 3", p.LY())
	}
	p.Write(0xFF40, 0x00)
	if p.LY() != 0 {
		t.Fatalf("LY after LCD off got %d want 0", p.LY())
	}
	p.Tick(456 * 2)
	if p.LY() != 0 {
		t.Fatalf("LY advanced while LCD off: %d", p.LY())
	}
}

func TestShade(t *testing.T) {
	// identity palette 11 10 01 00
	pal := byte(0xE4)
	for ci := byte(0); ci < 4; ci++ {
		if got := shade(pal, ci); got != shades[ci] {
			t.Fatalf("shade(%d) got %08x want %08x", ci, got, shades[ci])
		}
	}
	// inverted palette maps color 0 to black
	if got := shade(0x1B, 0); got != shades[3] {
		t.Fatalf("inverted palette got %08x want %08x", got, shades[3])
	}
}

func TestRenderFrame_SolidBackground(t *testing.T) {
	p := New(nil)
	p.Write(0xFF40, 0x91) // LCD on, BG on, tile data at 0x8000
	p.Write(0xFF47, 0xE4)

	// Tile 0: every pixel color index 1. Tilemap is zeroed, so the whole
	// background uses it.
	for row := uint16(0); row < 8; row++ {
		p.Write(0x8000+row*2, 0xFF)
		p.Write(0x8000+row*2+1, 0x00)
	}

	fb := make([]uint32, Width*Height)
	RenderFrame(p, fb)
	for _, i := range []int{0, Width - 1, Width*Height - 1, Width*70 + 80} {
		if fb[i] != shades[1] {
			t.Fatalf("fb[%d] got %08x want %08x", i, fb[i], shades[1])
		}
	}
}

func TestRenderFrame_BehindBGSpriteMasksLowerSprites(t *testing.T) {
	p := New(nil)

	// OAM is writable while the LCD is off. Two sprites cover screen
	// pixel (0,0); sprite 0 wins the pixel but sits behind non-zero BG,
	// so the BG shows and sprite 1 must not draw through.
	oam := []byte{
		16, 8, 1, 0x80, // sprite 0: tile 1, behind BG
		16, 8, 2, 0x00, // sprite 1: tile 2, in front
	}
	for i, v := range oam {
		p.Write(0xFE00+uint16(i), v)
	}

	// Tile 0 all color 1 (background), tile 1 all color 2, tile 2 all
	// color 3.
	for row := uint16(0); row < 8; row++ {
		p.Write(0x8000+row*2, 0xFF)
		p.Write(0x8000+row*2+1, 0x00)
		p.Write(0x8010+row*2, 0x00)
		p.Write(0x8010+row*2+1, 0xFF)
		p.Write(0x8020+row*2, 0xFF)
		p.Write(0x8020+row*2+1, 0xFF)
	}

	p.Write(0xFF40, 0x93) // LCD on, BG on, OBJ on, tile data at 0x8000
	p.Write(0xFF47, 0xE4)
	p.Write(0xFF48, 0xE4)

	fb := make([]uint32, Width*Height)
	RenderFrame(p, fb)
	if fb[0] != shades[1] {
		t.Fatalf("fb[0] got %08x want %08x", fb[0], shades[1])
	}
}

func TestRenderFrame_LCDOffIsWhite(t *testing.T) {
	p := New(nil)
	fb := make([]uint32, Width*Height)
	RenderFrame(p, fb)
	if fb[0] != shades[0] || fb[Width*Height-1] != shades[0] {
		t.Fatalf("blank screen not white: %08x %08x", fb[0], fb[Width*Height-1])
	}
}
