// Package gb drives a complete DMG machine frame by frame. It owns the
// CPU, bus and PPU, renders into a reusable pixel buffer and watches for
// the game-over breakpoint of the loaded profile.
package gb

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand"

	"gblearn/internal/bus"
	"gblearn/internal/cart"
	"gblearn/internal/cpu"
	"gblearn/internal/ppu"
	"gblearn/internal/profile"
)

// CyclesPerFrame is the length of one full LCD refresh in machine cycles.
const CyclesPerFrame = 70224

// Machine is one emulated Game Boy bound to a game profile. It is not
// safe for concurrent use.
type Machine struct {
	cpu  *cpu.CPU
	bus  *bus.Bus
	prof profile.Profile

	fb    []uint32
	start []byte
	rng   *rand.Rand

	running bool
}

// NewMachine builds a machine around a raw cartridge image. The post-boot
// register state is captured as the episode start state; LoadStartState
// can replace it with a saved mid-game snapshot.
func NewMachine(rom []byte, prof profile.Profile) (*Machine, error) {
	if _, err := cart.ParseHeader(rom); err != nil {
		return nil, err
	}
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	b := bus.New(rom)
	c := cpu.New(b)
	c.Reset()
	m := &Machine{
		cpu:  c,
		bus:  b,
		prof: prof,
		fb:   make([]uint32, ppu.Width*ppu.Height),
		rng:  rand.New(rand.NewSource(1)),
	}
	m.start = m.snapshot()
	return m, nil
}

// Seed reseeds the generator used to scramble the divider register at
// episode start. Fixed seeds give reproducible episodes.
func (m *Machine) Seed(seed int64) { m.rng = rand.New(rand.NewSource(seed)) }

// Profile returns the game profile the machine was built with.
func (m *Machine) Profile() profile.Profile { return m.prof }

type machineState struct {
	CPU []byte
	Bus []byte
}

func (m *Machine) snapshot() []byte {
	var buf bytes.Buffer
	st := machineState{CPU: m.cpu.Snapshot(), Bus: m.bus.Snapshot()}
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		panic(fmt.Sprintf("gb: encode state: %v", err))
	}
	return buf.Bytes()
}

func (m *Machine) restore(data []byte) error {
	var st machineState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return fmt.Errorf("gb: decode state: %w", err)
	}
	m.cpu.Restore(st.CPU)
	m.bus.Restore(st.Bus)
	return nil
}

// SaveState serializes the current machine state. The result round-trips
// through LoadStartState.
func (m *Machine) SaveState() []byte { return m.snapshot() }

// LoadStartState installs a saved snapshot as the state every episode
// starts from. The snapshot is validated by restoring it immediately.
func (m *Machine) LoadStartState(data []byte) error {
	if err := m.restore(data); err != nil {
		return err
	}
	m.start = append([]byte(nil), data...)
	return nil
}

// StartEpisode rewinds to the start state, scrambles the divider so the
// game's RNG diverges between episodes, and renders the first frame.
func (m *Machine) StartEpisode() {
	if err := m.restore(m.start); err != nil {
		// start was produced or validated by this machine
		panic(fmt.Sprintf("gb: restore start state: %v", err))
	}
	m.bus.SetDIV(uint16(m.rng.Intn(0x10000)))
	m.running = true
	ppu.RenderFrame(m.bus.PPU(), m.fb)
}

// joypBits maps latch bit positions (Up, Down, Left, Right, B, A,
// Select, Start) onto the JOYP matrix layout.
var joypBits = [8]byte{
	bus.JoypUp, bus.JoypDown, bus.JoypLeft, bus.JoypRight,
	bus.JoypB, bus.JoypA, bus.JoypSelect, bus.JoypStart,
}

// StepFrame latches the joypad state and advances emulation by one frame,
// then renders it. If the game-over breakpoint is hit mid-frame the
// machine stops there and further calls do nothing until the next
// StartEpisode.
func (m *Machine) StepFrame(buttons uint8) {
	if !m.running {
		return
	}
	var mask byte
	for i, bit := range joypBits {
		if buttons&(1<<i) != 0 {
			mask |= bit
		}
	}
	m.bus.SetJoypadState(mask)
	cycles := 0
	for cycles < CyclesPerFrame {
		cycles += m.cpu.Step()
		if m.cpu.PC == m.prof.GameOver.BreakAddress {
			m.running = false
			break
		}
	}
	ppu.RenderFrame(m.bus.PPU(), m.fb)
}

// Running reports whether an episode is in progress. It is false before
// the first StartEpisode and after the game-over breakpoint fires.
func (m *Machine) Running() bool { return m.running }

// Score reads and decodes the score counter from work RAM.
func (m *Machine) Score() int32 {
	raw := make([]byte, m.prof.Score.Length)
	for i := range raw {
		raw[i] = m.bus.Read(m.prof.Score.Address + uint16(i))
	}
	return m.prof.Score.Decode(raw)
}

// Pixels returns the frame buffer backing the last rendered frame. The
// slice is reused across frames; callers that need a stable copy must
// make one before stepping again.
func (m *Machine) Pixels() []uint32 { return m.fb }

// Close releases the machine. The zero-cost implementation exists so the
// session layer has a uniform backend lifecycle.
func (m *Machine) Close() {}
