// Package ui is an ebiten window over an environment session, used to
// watch what an agent would see and to play episodes by hand.
package ui

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"gblearn/environment"
)

type App struct {
	cfg    Config
	sess   *environment.Session
	tex    *ebiten.Image
	pix    []byte
	paused bool
	fast   bool
}

func NewApp(cfg Config, sess *environment.Session) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(environment.Width*cfg.Scale, environment.Height*cfg.Scale)
	return &App{cfg: cfg, sess: sess}
}

func (a *App) Run() error { return ebiten.RunGame(a) }

var keyButtons = []struct {
	key ebiten.Key
	btn environment.Button
}{
	{ebiten.KeyUp, environment.Up},
	{ebiten.KeyDown, environment.Down},
	{ebiten.KeyLeft, environment.Left},
	{ebiten.KeyRight, environment.Right},
	{ebiten.KeyX, environment.B},
	{ebiten.KeyZ, environment.A},
	{ebiten.KeyShiftRight, environment.Select},
	{ebiten.KeyEnter, environment.Start},
}

func (a *App) Update() error {
	for _, kb := range keyButtons {
		a.sess.SetButton(kb.btn, ebiten.IsKeyPressed(kb.key))
	}

	// Pause toggle (P)
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}

	// Fast-forward (Tab): while held, run multiple frames per update
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)

	// Restart episode (R)
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		a.sess.StartEpisode()
	}

	// Frame-step when paused (N)
	if a.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		a.sess.StepFrame()
	}

	// Screenshot (F12)
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		_ = a.saveScreenshot()
	}

	if !a.paused {
		if a.fast {
			for i := 0; i < 5; i++ {
				a.sess.StepFrame()
			}
		} else {
			a.sess.StepFrame()
		}
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(environment.Width, environment.Height)
		a.pix = make([]byte, environment.Width*environment.Height*4)
	}
	fillRGBA(a.pix, a.sess.Pixels())
	a.tex.WritePixels(a.pix)
	screen.DrawImage(a.tex, nil)

	if a.cfg.ShowHUD {
		state := "running"
		if !a.sess.Running() {
			state = "game over (R to restart)"
		}
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("score %d  %s", a.sess.Score(), state), 4, 4)
	}
}

func (a *App) Layout(outW, outH int) (int, int) {
	return environment.Width, environment.Height
}

// fillRGBA unpacks RGBA-packed pixel words into the byte order
// WritePixels expects.
func fillRGBA(dst []byte, src []uint32) {
	for i, px := range src {
		dst[i*4+0] = byte(px >> 24)
		dst[i*4+1] = byte(px >> 16)
		dst[i*4+2] = byte(px >> 8)
		dst[i*4+3] = byte(px)
	}
}

func (a *App) saveScreenshot() error {
	img := &image.RGBA{
		Pix:    make([]byte, environment.Width*environment.Height*4),
		Stride: 4 * environment.Width,
		Rect:   image.Rect(0, 0, environment.Width, environment.Height),
	}
	fillRGBA(img.Pix, a.sess.Pixels())
	ts := time.Now().Format("20060102_150405")
	name := fmt.Sprintf("screenshot_%s.png", ts)
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
