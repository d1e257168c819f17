package cart

// Cartridge is the Bus-facing view of a loaded ROM: reads from the ROM and
// external-RAM windows and MBC control writes. Addresses are CPU addresses.
type Cartridge interface {
	// Read covers ROM (0x0000-0x7FFF) and external RAM (0xA000-0xBFFF).
	Read(addr uint16) byte
	// Write covers MBC control registers (0x0000-0x7FFF) and external RAM.
	Write(addr uint16, value byte)
	// Snapshot/Restore serialize banking registers and external RAM so a
	// whole-machine state can be captured and replayed.
	Snapshot() []byte
	Restore(data []byte)
}

// New picks a mapper implementation from the cartridge type header byte.
// Unknown types fall back to ROM-only so homebrew and test ROMs still run.
func New(rom []byte) Cartridge {
	h, err := ParseHeader(rom)
	if err != nil {
		return NewROMOnly(rom)
	}
	switch h.CartType {
	case 0x00:
		return NewROMOnly(rom)
	case 0x01, 0x02, 0x03: // MBC1 (+RAM, +RAM+BATTERY)
		return NewMBC1(rom, h.RAMSizeBytes)
	case 0x0F, 0x10, 0x11, 0x12, 0x13: // MBC3 (RTC not modeled)
		return NewMBC3(rom, h.RAMSizeBytes)
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E: // MBC5
		return NewMBC5(rom, h.RAMSizeBytes)
	default:
		return NewROMOnly(rom)
	}
}
