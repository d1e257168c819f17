// Package profile describes where a game keeps its score and how an
// episode ends. Profiles are small YAML documents; the built-in default
// matches Tetris (JP/EUR v1.1).
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Score encodings.
const (
	EncodingBCD    = "bcd"    // packed binary-coded decimal, two digits per byte
	EncodingBinary = "binary" // plain little-endian integer
)

// Score locates the score in work RAM.
type Score struct {
	Address  uint16 `yaml:"address"`
	Length   int    `yaml:"length"` // bytes, little-endian, 1..4
	Encoding string `yaml:"encoding"`
}

// GameOver describes episode termination: an address the game executes
// exactly when the run is over (its game-over routine).
type GameOver struct {
	BreakAddress uint16 `yaml:"break_address"`
}

// Profile is the per-game configuration for the learning environment.
type Profile struct {
	Name     string   `yaml:"name"`
	Score    Score    `yaml:"score"`
	GameOver GameOver `yaml:"game_over"`
	// StartState optionally names a machine snapshot file restored at
	// episode start, so episodes begin mid-game (e.g. past the title
	// screen) instead of at power-on.
	StartState string `yaml:"start_state"`
}

// Tetris is the default profile: 3-byte little-endian BCD score at 0xC0A0,
// game-over routine at 0x6803.
func Tetris() Profile {
	return Profile{
		Name:     "tetris",
		Score:    Score{Address: 0xC0A0, Length: 3, Encoding: EncodingBCD},
		GameOver: GameOver{BreakAddress: 0x6803},
	}
}

// Load reads a profile file, applying it over the Tetris defaults so
// partial documents only override what they name.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	p := Tetris()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the score description is decodable.
func (p Profile) Validate() error {
	if p.Score.Length < 1 || p.Score.Length > 4 {
		return fmt.Errorf("score length %d out of range 1..4", p.Score.Length)
	}
	switch p.Score.Encoding {
	case EncodingBCD, EncodingBinary:
		return nil
	default:
		return fmt.Errorf("unknown score encoding %q", p.Score.Encoding)
	}
}

// Decode converts raw score bytes (little-endian, least significant first)
// to an integer according to the encoding.
func (s Score) Decode(raw []byte) int32 {
	var v int32
	switch s.Encoding {
	case EncodingBCD:
		mul := int32(1)
		for _, b := range raw {
			v += int32(b&0x0F) * mul
			v += int32(b>>4) * mul * 10
			mul *= 100
		}
	default: // binary
		for i := len(raw) - 1; i >= 0; i-- {
			v = v<<8 | int32(raw[i])
		}
	}
	return v
}
