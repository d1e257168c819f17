package environment

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// stubBackend records every call so lifecycle and latch behavior can be
// checked without an emulator.
type stubBackend struct {
	episodes int
	masks    []uint8
	running  bool
	score    int32
	closed   bool
	fb       []uint32
}

func newStub() *stubBackend {
	return &stubBackend{fb: make([]uint32, Width*Height)}
}

func (s *stubBackend) StartEpisode()        { s.episodes++; s.running = true }
func (s *stubBackend) StepFrame(mask uint8) { s.masks = append(s.masks, mask) }
func (s *stubBackend) Running() bool        { return s.running }
func (s *stubBackend) Score() int32         { return s.score }
func (s *stubBackend) Pixels() []uint32     { return s.fb }
func (s *stubBackend) Close()               { s.closed = true }

func TestSession_StepCountsFrames(t *testing.T) {
	b := newStub()
	sess := NewWith(b)
	defer sess.Close()

	sess.StartEpisode()
	for i := 0; i < 60; i++ {
		sess.StepFrame()
	}
	if len(b.masks) != 60 {
		t.Fatalf("backend saw %d frames, want 60", len(b.masks))
	}
	if b.episodes != 1 {
		t.Fatalf("backend saw %d episode starts, want 1", b.episodes)
	}
}

func TestSession_LatchIsLevelTriggered(t *testing.T) {
	b := newStub()
	sess := NewWith(b)
	defer sess.Close()

	sess.SetButton(Start, true)
	sess.StepFrame()
	sess.StepFrame() // still held, not re-set
	sess.SetButton(Start, false)
	sess.StepFrame()

	want := []uint8{1 << Start, 1 << Start, 0}
	for i, m := range want {
		if b.masks[i] != m {
			t.Fatalf("frame %d mask got %08b want %08b", i, b.masks[i], m)
		}
	}
}

func TestSession_LatchIdempotentSet(t *testing.T) {
	b := newStub()
	sess := NewWith(b)
	defer sess.Close()

	sess.SetButton(A, true)
	sess.SetButton(A, true)
	sess.StepFrame()
	if b.masks[0] != 1<<A {
		t.Fatalf("double set changed mask: %08b", b.masks[0])
	}
	if !sess.Pressed(A) || sess.Pressed(B) {
		t.Fatalf("Pressed state wrong: A=%v B=%v", sess.Pressed(A), sess.Pressed(B))
	}
}

func TestSession_LatchCombinesButtons(t *testing.T) {
	b := newStub()
	sess := NewWith(b)
	defer sess.Close()

	sess.SetButton(Left, true)
	sess.SetButton(B, true)
	sess.StepFrame()
	if want := uint8(1<<Left | 1<<B); b.masks[0] != want {
		t.Fatalf("mask got %08b want %08b", b.masks[0], want)
	}
}

func TestSession_RunningAndScorePassThrough(t *testing.T) {
	b := newStub()
	b.score = 9900
	sess := NewWith(b)
	defer sess.Close()

	if sess.Running() {
		t.Fatalf("running before episode start")
	}
	sess.StartEpisode()
	if !sess.Running() {
		t.Fatalf("not running after episode start")
	}
	if got := sess.Score(); got != 9900 {
		t.Fatalf("score got %d want 9900", got)
	}
}

func TestSession_PixelsAliasBackendBuffer(t *testing.T) {
	b := newStub()
	sess := NewWith(b)
	defer sess.Close()

	view := sess.Pixels()
	b.fb[0] = 0xDEADBEEF
	if view[0] != 0xDEADBEEF {
		t.Fatalf("Pixels does not alias the backend buffer")
	}

	snap := sess.CopyPixels()
	b.fb[0] = 0x12345678
	if snap[0] != 0xDEADBEEF {
		t.Fatalf("CopyPixels aliases the backend buffer")
	}
	if len(snap) != Width*Height {
		t.Fatalf("copy length %d", len(snap))
	}
}

func TestSession_CloseReleasesBackend(t *testing.T) {
	b := newStub()
	sess := NewWith(b)
	sess.Close()
	if !b.closed {
		t.Fatalf("backend not closed")
	}
}

func TestSession_UseAfterClosePanics(t *testing.T) {
	calls := []struct {
		name string
		fn   func(*Session)
	}{
		{"StartEpisode", func(s *Session) { s.StartEpisode() }},
		{"StepFrame", func(s *Session) { s.StepFrame() }},
		{"Running", func(s *Session) { s.Running() }},
		{"Score", func(s *Session) { s.Score() }},
		{"SetButton", func(s *Session) { s.SetButton(A, true) }},
		{"Pixels", func(s *Session) { s.Pixels() }},
		{"Close", func(s *Session) { s.Close() }},
	}
	for _, c := range calls {
		sess := NewWith(newStub())
		sess.Close()
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("%s on closed session did not panic", c.name)
				}
			}()
			c.fn(sess)
		}()
	}
}

func TestNew_BadPathFails(t *testing.T) {
	for i := 0; i < 3; i++ {
		_, err := New(filepath.Join(t.TempDir(), "missing.gb"))
		if err == nil {
			t.Fatalf("missing ROM accepted")
		}
		var ie *InitError
		if !errors.As(err, &ie) {
			t.Fatalf("error type %T, want *InitError", err)
		}
	}
}

// TestNew_SyntheticROM drives the real emulator backend end to end with
// a tiny ROM that writes a BCD score and spins.
func TestNew_SyntheticROM(t *testing.T) {
	rom := make([]byte, 0x8000)
	copy(rom[0x0100:], []byte{
		0x3E, 0x56, // LD A,0x56
		0xEA, 0xA0, 0xC0, // LD (0xC0A0),A
		0x3E, 0x34, // LD A,0x34
		0xEA, 0xA1, 0xC0, // LD (0xC0A1),A
		0x3E, 0x12, // LD A,0x12
		0xEA, 0xA2, 0xC0, // LD (0xC0A2),A
		0xC3, 0x0F, 0x01, // JP 0x010F (self)
	})
	path := filepath.Join(t.TempDir(), "score.gb")
	if err := writeFile(path, rom); err != nil {
		t.Fatal(err)
	}

	sess, err := New(path, WithSeed(7))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess.Close()

	if sess.Running() {
		t.Fatalf("running before episode start")
	}
	sess.StartEpisode()
	for i := 0; i < 60; i++ {
		sess.StepFrame()
	}
	if !sess.Running() {
		t.Fatalf("episode ended unexpectedly")
	}
	if got := sess.Score(); got != 123456 {
		t.Fatalf("score got %d want 123456", got)
	}
	if got := len(sess.Pixels()); got != Width*Height {
		t.Fatalf("pixel count got %d", got)
	}
	// Same ROM and seed must reproduce the frame exactly.
	d1 := FrameDigest(sess.Pixels())
	sess2, err := New(path, WithSeed(7))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess2.Close()
	sess2.StartEpisode()
	for i := 0; i < 60; i++ {
		sess2.StepFrame()
	}
	if d2 := FrameDigest(sess2.Pixels()); d2 != d1 {
		t.Fatalf("digest mismatch: %s vs %s", d1, d2)
	}
}

func TestButtonString(t *testing.T) {
	want := []string{"Up", "Down", "Left", "Right", "B", "A", "Select", "Start"}
	for i, w := range want {
		if got := Button(i).String(); got != w {
			t.Fatalf("Button(%d) got %q want %q", i, got, w)
		}
	}
	if got := Button(8).String(); got != "Unknown" {
		t.Fatalf("out-of-range button got %q", got)
	}
}
