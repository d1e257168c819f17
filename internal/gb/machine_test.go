package gb

import (
	"bytes"
	"testing"

	"gblearn/internal/profile"
)

// testROM returns a ROM-only image with code placed at the entry point.
func testROM(code []byte) []byte {
	rom := make([]byte, 0x8000)
	copy(rom[0x0100:], code)
	return rom
}

// scoreROM writes 123456 as packed BCD to 0xC0A0-0xC0A2 and spins.
func scoreROM() []byte {
	return testROM([]byte{
		0x3E, 0x56, // LD A,0x56
		0xEA, 0xA0, 0xC0, // LD (0xC0A0),A
		0x3E, 0x34, // LD A,0x34
		0xEA, 0xA1, 0xC0, // LD (0xC0A1),A
		0x3E, 0x12, // LD A,0x12
		0xEA, 0xA2, 0xC0, // LD (0xC0A2),A
		0xC3, 0x0F, 0x01, // JP 0x010F (self)
	})
}

func TestNewMachine_RejectsTinyROM(t *testing.T) {
	if _, err := NewMachine(make([]byte, 0x100), profile.Tetris()); err == nil {
		t.Fatalf("short ROM accepted")
	}
}

func TestNewMachine_RejectsBadProfile(t *testing.T) {
	prof := profile.Tetris()
	prof.Score.Length = 9
	if _, err := NewMachine(scoreROM(), prof); err == nil {
		t.Fatalf("invalid profile accepted")
	}
}

func TestMachine_ScoreAfterFrame(t *testing.T) {
	m, err := NewMachine(scoreROM(), profile.Tetris())
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	if m.Running() {
		t.Fatalf("running before first episode")
	}

	m.StartEpisode()
	if !m.Running() {
		t.Fatalf("not running after episode start")
	}
	if got := m.Score(); got != 0 {
		t.Fatalf("score before stepping got %d want 0", got)
	}

	m.StepFrame(0)
	if got := m.Score(); got != 123456 {
		t.Fatalf("score got %d want 123456", got)
	}
}

func TestMachine_EpisodeRestartResetsState(t *testing.T) {
	m, err := NewMachine(scoreROM(), profile.Tetris())
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	m.StartEpisode()
	m.StepFrame(0)
	if m.Score() == 0 {
		t.Fatalf("score not written")
	}

	m.StartEpisode()
	if got := m.Score(); got != 0 {
		t.Fatalf("score after restart got %d want 0", got)
	}
	m.StepFrame(0)
	if got := m.Score(); got != 123456 {
		t.Fatalf("score after re-run got %d want 123456", got)
	}
}

func TestMachine_BreakpointEndsEpisode(t *testing.T) {
	rom := testROM([]byte{0xC3, 0x00, 0x02}) // JP 0x0200
	rom[0x0200] = 0xC3                       // JP 0x0200 (self)
	rom[0x0201] = 0x00
	rom[0x0202] = 0x02

	prof := profile.Tetris()
	prof.GameOver.BreakAddress = 0x0200

	m, err := NewMachine(rom, prof)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	m.StartEpisode()
	m.StepFrame(0)
	if m.Running() {
		t.Fatalf("still running after hitting break address")
	}

	// Further stepping is a stable no-op.
	score := m.Score()
	for i := 0; i < 3; i++ {
		m.StepFrame(0)
	}
	if m.Running() || m.Score() != score {
		t.Fatalf("post-termination stepping changed state")
	}

	// A new episode runs again and terminates again.
	m.StartEpisode()
	if !m.Running() {
		t.Fatalf("restart did not clear termination")
	}
	m.StepFrame(0)
	if m.Running() {
		t.Fatalf("second episode did not terminate")
	}
}

func TestMachine_SeedDeterminism(t *testing.T) {
	newSeeded := func(seed int64) *Machine {
		m, err := NewMachine(scoreROM(), profile.Tetris())
		if err != nil {
			t.Fatalf("NewMachine: %v", err)
		}
		m.Seed(seed)
		m.StartEpisode()
		return m
	}

	a, b := newSeeded(7), newSeeded(7)
	if !bytes.Equal(a.SaveState(), b.SaveState()) {
		t.Fatalf("same seed produced different start states")
	}

	c := newSeeded(8)
	if bytes.Equal(a.SaveState(), c.SaveState()) {
		t.Fatalf("different seeds produced identical start states")
	}
}

func TestMachine_SaveAndLoadStartState(t *testing.T) {
	m, err := NewMachine(scoreROM(), profile.Tetris())
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	m.StartEpisode()
	m.StepFrame(0)
	snap := m.SaveState()

	m2, err := NewMachine(scoreROM(), profile.Tetris())
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	if err := m2.LoadStartState(snap); err != nil {
		t.Fatalf("LoadStartState: %v", err)
	}
	m2.StartEpisode()
	if got := m2.Score(); got != 123456 {
		t.Fatalf("score from loaded state got %d want 123456", got)
	}

	if err := m2.LoadStartState([]byte("junk")); err == nil {
		t.Fatalf("corrupt snapshot accepted")
	}
}

func TestMachine_PixelBufferStableAlias(t *testing.T) {
	m, err := NewMachine(scoreROM(), profile.Tetris())
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	m.StartEpisode()
	p1 := m.Pixels()
	m.StepFrame(0)
	p2 := m.Pixels()
	if &p1[0] != &p2[0] {
		t.Fatalf("pixel buffer reallocated between frames")
	}
	if len(p1) != 160*144 {
		t.Fatalf("pixel buffer length %d", len(p1))
	}
	// LCD never enabled by this ROM: blank white screen
	if p1[0] != 0xFFFFFFFF {
		t.Fatalf("blank frame pixel got %08x want FFFFFFFF", p1[0])
	}
}
