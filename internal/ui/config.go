package ui

// Config contains window and overlay settings for the viewer.
type Config struct {
	Title   string // window title
	Scale   int    // integer upscaling factor
	ShowHUD bool   // overlay score/episode state text
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gblearn"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
}
