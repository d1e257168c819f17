// Command gblearn-view opens an environment session in a window so a
// human can watch or play the episodes an agent would see. Keys: arrows
// = d-pad, Z = A, X = B, Enter = Start, right Shift = Select, P pause,
// N frame-step, R restart episode, Tab fast-forward, F12 screenshot.
package main

import (
	"flag"
	"log"

	"gblearn/environment"
	"gblearn/internal/ui"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb, or zip/7z/rar/gz archive)")
	profilePath := flag.String("profile", "", "game profile YAML (default: built-in Tetris)")
	statePath := flag.String("state", "", "episode start-state snapshot file")
	scale := flag.Int("scale", 3, "window scale")
	title := flag.String("title", "gblearn", "window title")
	hud := flag.Bool("hud", true, "overlay score and episode state")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("missing -rom")
	}

	var opts []environment.Option
	if *profilePath != "" {
		opts = append(opts, environment.WithProfilePath(*profilePath))
	}
	if *statePath != "" {
		opts = append(opts, environment.WithStartState(*statePath))
	}

	sess, err := environment.New(*romPath, opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Close()
	sess.StartEpisode()

	app := ui.NewApp(ui.Config{Title: *title, Scale: *scale, ShowHUD: *hud}, sess)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
