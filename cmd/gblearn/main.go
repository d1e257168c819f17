// Command gblearn drives an environment session headless: it runs
// episodes at full speed and reports score, frame rate and a frame
// digest. Useful as an integration smoke test and a throughput
// benchmark for agent training loops.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"gblearn/environment"
)

type CLIFlags struct {
	ROMPath  string
	Profile  string
	State    string
	Frames   int
	Episodes int
	Seed     int64
	PNGOut   string
	Expect   string // expected frame digest (hex SHA-1)
	Start    bool   // hold Start for the first second of each episode
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gb, or zip/7z/rar/gz archive)")
	flag.StringVar(&f.Profile, "profile", "", "game profile YAML (default: built-in Tetris)")
	flag.StringVar(&f.State, "state", "", "episode start-state snapshot file")
	flag.IntVar(&f.Frames, "frames", 600, "frames to run per episode")
	flag.IntVar(&f.Episodes, "episodes", 1, "episodes to run")
	flag.Int64Var(&f.Seed, "seed", 0, "episode seed (0: unseeded)")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last frame to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert last frame digest (hex SHA-1)")
	flag.BoolVar(&f.Start, "start", false, "hold Start for the first 60 frames of each episode")
	flag.Parse()
	return f
}

func runEpisode(sess *environment.Session, f CLIFlags) (frames int, dur time.Duration) {
	sess.StartEpisode()
	begin := time.Now()
	for frames = 0; frames < f.Frames && sess.Running(); frames++ {
		sess.SetButton(environment.Start, f.Start && frames < 60)
		sess.StepFrame()
	}
	return frames, time.Since(begin)
}

func saveFramePNG(pixels []uint32, path string) error {
	img := &image.RGBA{
		Pix:    make([]byte, len(pixels)*4),
		Stride: 4 * environment.Width,
		Rect:   image.Rect(0, 0, environment.Width, environment.Height),
	}
	for i, px := range pixels {
		img.Pix[i*4+0] = byte(px >> 24)
		img.Pix[i*4+1] = byte(px >> 16)
		img.Pix[i*4+2] = byte(px >> 8)
		img.Pix[i*4+3] = byte(px)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, img)
}

func main() {
	f := parseFlags()
	if f.ROMPath == "" {
		log.Fatal("missing -rom")
	}

	var opts []environment.Option
	if f.Profile != "" {
		opts = append(opts, environment.WithProfilePath(f.Profile))
	}
	if f.State != "" {
		opts = append(opts, environment.WithStartState(f.State))
	}
	if f.Seed != 0 {
		opts = append(opts, environment.WithSeed(f.Seed))
	}

	sess, err := environment.New(f.ROMPath, opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Close()

	var digest string
	for ep := 0; ep < f.Episodes; ep++ {
		frames, dur := runEpisode(sess, f)
		fps := float64(frames) / dur.Seconds()
		digest = environment.FrameDigest(sess.Pixels())
		log.Printf("episode %d: frames=%d elapsed=%s fps=%.2f score=%d running=%v digest=%s",
			ep, frames, dur.Truncate(time.Millisecond), fps, sess.Score(), sess.Running(), digest)
	}

	if f.PNGOut != "" {
		if err := saveFramePNG(sess.Pixels(), f.PNGOut); err != nil {
			log.Fatalf("write PNG: %v", err)
		}
		log.Printf("wrote %s", f.PNGOut)
	}

	if f.Expect != "" {
		want := strings.TrimPrefix(strings.ToLower(f.Expect), "0x")
		if digest != want {
			log.Fatal(fmt.Errorf("digest mismatch: got %s, want %s", digest, want))
		}
	}
}
