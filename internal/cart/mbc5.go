package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC5 supports 9-bit ROM banking (bank 0 is addressable, unlike MBC1/3)
// and up to 16 RAM banks.
type MBC5 struct {
	rom []byte
	ram []byte

	romBankLow  byte // bits 0-7
	romBankHigh byte // bit 8
	ramBank     byte
	ramEnabled  bool
}

func NewMBC5(rom []byte, ramSize int) *MBC5 {
	m := &MBC5{rom: rom, romBankLow: 1}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	return m
}

func (m *MBC5) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBankLow) | int(m.romBankHigh&0x01)<<8
		off := bank*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := int(m.ramBank&0x0F)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC5) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x3000:
		m.romBankLow = value
	case addr < 0x4000:
		m.romBankHigh = value & 0x01
	case addr < 0x6000:
		m.ramBank = value & 0x0F
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		off := int(m.ramBank&0x0F)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

type mbc5State struct {
	RAM         []byte
	ROMBankLow  byte
	ROMBankHigh byte
	RAMBank     byte
	RAMEnabled  bool
}

func (m *MBC5) Snapshot() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc5State{
		RAM: m.ram, ROMBankLow: m.romBankLow, ROMBankHigh: m.romBankHigh,
		RAMBank: m.ramBank, RAMEnabled: m.ramEnabled,
	})
	return buf.Bytes()
}

func (m *MBC5) Restore(data []byte) {
	var s mbc5State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	if len(s.RAM) == len(m.ram) {
		copy(m.ram, s.RAM)
	}
	m.romBankLow, m.romBankHigh = s.ROMBankLow, s.ROMBankHigh
	m.ramBank, m.ramEnabled = s.RAMBank, s.RAMEnabled
}
