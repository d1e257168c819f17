// Package environment exposes an emulated Game Boy as a
// reinforcement-learning environment. A Session owns one emulator
// instance and drives it through episodes: start, latch inputs, step one
// frame at a time, observe pixels and score, and watch the running flag
// for termination.
package environment

import (
	"os"

	"gblearn/internal/gb"
	"gblearn/internal/profile"
	"gblearn/internal/romload"
)

// Frame dimensions and pixel layout. Each pixel is one uint32 packed as
// R<<24 | G<<16 | B<<8 | A, rows stored top to bottom with no padding.
const (
	Width  = 160
	Height = 144
)

// Session wraps exactly one backend. All methods must be called from a
// single goroutine; after Close every method panics.
type Session struct {
	backend Backend
	buttons uint8
}

type config struct {
	profilePath string
	statePath   string
	seed        int64
	seeded      bool
}

// Option customizes Session construction.
type Option func(*config)

// WithProfilePath loads a YAML game profile instead of the built-in
// Tetris one. The profile names the score location and the game-over
// breakpoint.
func WithProfilePath(path string) Option {
	return func(c *config) { c.profilePath = path }
}

// WithStartState loads a saved machine snapshot that every episode
// starts from, instead of the post-boot ROM entry state.
func WithStartState(path string) Option {
	return func(c *config) { c.statePath = path }
}

// WithSeed fixes the divider scrambling applied at episode start, making
// episodes reproducible.
func WithSeed(seed int64) Option {
	return func(c *config) { c.seed, c.seeded = seed, true }
}

// New builds a Session around a ROM file. The path may point at a raw
// .gb/.gbc image or at a zip, 7z, rar or gzip archive containing one.
// On failure it returns an *InitError and retains nothing.
func New(romPath string, opts ...Option) (*Session, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	rom, _, err := romload.Load(romPath)
	if err != nil {
		return nil, &InitError{Path: romPath, Err: err}
	}

	prof := profile.Tetris()
	if cfg.profilePath != "" {
		prof, err = profile.Load(cfg.profilePath)
		if err != nil {
			return nil, &InitError{Path: romPath, Err: err}
		}
	}

	m, err := gb.NewMachine(rom, prof)
	if err != nil {
		return nil, &InitError{Path: romPath, Err: err}
	}
	if cfg.seeded {
		m.Seed(cfg.seed)
	}

	statePath := cfg.statePath
	if statePath == "" {
		statePath = prof.StartState
	}
	if statePath != "" {
		data, err := os.ReadFile(statePath)
		if err != nil {
			return nil, &InitError{Path: romPath, Err: err}
		}
		if err := m.LoadStartState(data); err != nil {
			return nil, &InitError{Path: romPath, Err: err}
		}
	}

	return &Session{backend: m}, nil
}

// NewWith wraps an already-built backend. The Session takes ownership
// and will Close it.
func NewWith(b Backend) *Session {
	return &Session{backend: b}
}

func (s *Session) check() {
	if s.backend == nil {
		panic("environment: use of closed Session")
	}
}

// StartEpisode resets the emulated machine to its start state and begins
// a fresh episode. Calling it mid-episode restarts from scratch.
func (s *Session) StartEpisode() {
	s.check()
	s.backend.StartEpisode()
}

// StepFrame advances emulation by exactly one rendered frame using the
// current latch state. Stepping after the episode has ended is allowed;
// the backend decides whether anything changes.
func (s *Session) StepFrame() {
	s.check()
	s.backend.StepFrame(s.buttons)
}

// Running reports whether the current episode is still in progress.
func (s *Session) Running() bool {
	s.check()
	return s.backend.Running()
}

// Score reads the game-defined score from live emulated memory.
func (s *Session) Score() int32 {
	s.check()
	return s.backend.Score()
}

// SetButton latches a button's pressed state. The latch is level
// triggered: it holds until changed and is sampled once per StepFrame.
func (s *Session) SetButton(b Button, pressed bool) {
	s.check()
	if pressed {
		s.buttons |= 1 << b
	} else {
		s.buttons &^= 1 << b
	}
}

// Pressed reports the latched state of one button.
func (s *Session) Pressed(b Button) bool {
	s.check()
	return s.buttons&(1<<b) != 0
}

// Pixels returns a view over the most recently rendered frame,
// Width*Height packed pixels in row-major order. The backend reuses the
// buffer, so the contents are only valid until the next StepFrame or
// Close; use CopyPixels to retain a frame.
func (s *Session) Pixels() []uint32 {
	s.check()
	return s.backend.Pixels()
}

// CopyPixels returns a stable copy of the most recent frame.
func (s *Session) CopyPixels() []uint32 {
	s.check()
	out := make([]uint32, Width*Height)
	copy(out, s.backend.Pixels())
	return out
}

// Close releases the backend. It must be called exactly once; any use of
// the Session afterward panics.
func (s *Session) Close() {
	s.check()
	s.backend.Close()
	s.backend = nil
}
