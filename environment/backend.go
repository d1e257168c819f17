package environment

// Backend is the emulator a Session drives. One backend instance models
// one console; the Session owns it exclusively and calls it from a
// single goroutine.
//
// StepFrame receives the latch as a bit mask where bit i is Button(i).
// Pixels returns the backend's own frame buffer; the slice contents are
// valid until the next StepFrame or Close.
type Backend interface {
	StartEpisode()
	StepFrame(buttons uint8)
	Running() bool
	Score() int32
	Pixels() []uint32
	Close()
}
