package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC3 supports 7-bit ROM banking and up to 4 RAM banks. The real-time
// clock registers are accepted but not modeled; RTC reads return 0.
type MBC3 struct {
	rom []byte
	ram []byte

	romBank    byte // 7 bits, 0 remaps to 1
	ramBank    byte // 0-3 RAM banks; 0x08-0x0C would select RTC registers
	ramEnabled bool
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom, romBank: 1}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	return m
}

func (m *MBC3) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		off := int(m.romBank)*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.ramBank >= 0x08 { // RTC register window
			return 0x00
		}
		off := int(m.ramBank)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000:
		m.romBank = value & 0x7F
		if m.romBank == 0 {
			m.romBank = 1
		}
	case addr < 0x6000:
		m.ramBank = value & 0x0F
	case addr < 0x8000:
		// RTC latch sequence; nothing to latch without an RTC
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || m.ramBank >= 0x08 {
			return
		}
		off := int(m.ramBank)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

type mbc3State struct {
	RAM        []byte
	ROMBank    byte
	RAMBank    byte
	RAMEnabled bool
}

func (m *MBC3) Snapshot() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc3State{
		RAM: m.ram, ROMBank: m.romBank, RAMBank: m.ramBank, RAMEnabled: m.ramEnabled,
	})
	return buf.Bytes()
}

func (m *MBC3) Restore(data []byte) {
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	if len(s.RAM) == len(m.ram) {
		copy(m.ram, s.RAM)
	}
	m.romBank, m.ramBank, m.ramEnabled = s.ROMBank, s.RAMBank, s.RAMEnabled
	if m.romBank == 0 {
		m.romBank = 1
	}
}
