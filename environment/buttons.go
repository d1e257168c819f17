package environment

// Button identifies one of the eight joypad keys. The values are stable
// and double as bit positions in the latch mask handed to the backend.
type Button uint8

const (
	Up Button = iota
	Down
	Left
	Right
	B
	A
	Select
	Start
)

var buttonNames = [8]string{"Up", "Down", "Left", "Right", "B", "A", "Select", "Start"}

func (b Button) String() string {
	if int(b) < len(buttonNames) {
		return buttonNames[b]
	}
	return "Unknown"
}
