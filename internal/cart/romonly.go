package cart

// ROMOnly is a 32KB cartridge without banking or external RAM.
type ROMOnly struct {
	rom []byte
}

func NewROMOnly(rom []byte) *ROMOnly { return &ROMOnly{rom: rom} }

func (c *ROMOnly) Read(addr uint16) byte {
	if addr < 0x8000 && int(addr) < len(c.rom) {
		return c.rom[addr]
	}
	return 0xFF
}

// Write is a no-op: no MBC registers and no external RAM.
func (c *ROMOnly) Write(addr uint16, value byte) {}

func (c *ROMOnly) Snapshot() []byte    { return nil }
func (c *ROMOnly) Restore(data []byte) {}
