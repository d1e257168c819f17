package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC1 supports ROM banking up to 2MB and external RAM up to 32KB.
type MBC1 struct {
	rom []byte
	ram []byte

	bankLow5   byte // low 5 bits of the ROM bank (0 remaps to 1)
	bankHigh2  byte // RAM bank (mode 1) or ROM bank bits 5-6 (mode 0)
	ramEnabled bool
	mode       byte // 0: ROM banking, 1: RAM banking
}

func NewMBC1(rom []byte, ramSize int) *MBC1 {
	m := &MBC1{rom: rom, bankLow5: 1}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	return m
}

func (m *MBC1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		off := int(addr)
		if m.mode == 1 {
			// mode 1 applies the high bits to the fixed region too
			off += int(m.bankHigh2&0x03) << 19
		}
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.bankLow5 | (m.bankHigh2&0x03)<<5)
		off := bank*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := m.ramOffset() + int(addr-0xA000)
		if off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000:
		m.bankLow5 = value & 0x1F
		if m.bankLow5 == 0 {
			m.bankLow5 = 1
		}
	case addr < 0x6000:
		m.bankHigh2 = value & 0x03
	case addr < 0x8000:
		m.mode = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		off := m.ramOffset() + int(addr-0xA000)
		if off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC1) ramOffset() int {
	if m.mode == 1 {
		return int(m.bankHigh2&0x03) * 0x2000
	}
	return 0
}

type mbc1State struct {
	RAM        []byte
	BankLow5   byte
	BankHigh2  byte
	RAMEnabled bool
	Mode       byte
}

func (m *MBC1) Snapshot() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc1State{
		RAM: m.ram, BankLow5: m.bankLow5, BankHigh2: m.bankHigh2,
		RAMEnabled: m.ramEnabled, Mode: m.mode,
	})
	return buf.Bytes()
}

func (m *MBC1) Restore(data []byte) {
	var s mbc1State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	if len(s.RAM) == len(m.ram) {
		copy(m.ram, s.RAM)
	}
	m.bankLow5, m.bankHigh2, m.ramEnabled, m.mode = s.BankLow5, s.BankHigh2, s.RAMEnabled, s.Mode
	if m.bankLow5 == 0 {
		m.bankLow5 = 1
	}
}
