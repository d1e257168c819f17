package profile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTetrisDefaults(t *testing.T) {
	p := Tetris()
	if p.Score.Address != 0xC0A0 || p.Score.Length != 3 || p.Score.Encoding != EncodingBCD {
		t.Fatalf("score defaults wrong: %+v", p.Score)
	}
	if p.GameOver.BreakAddress != 0x6803 {
		t.Fatalf("break address got %04x want 6803", p.GameOver.BreakAddress)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("default profile invalid: %v", err)
	}
}

func TestLoad_PartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.yaml")
	doc := "name: drmario\nscore:\n  address: 0xC0B0\n  length: 3\n  encoding: bcd\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "drmario" {
		t.Fatalf("name got %q", p.Name)
	}
	if p.Score.Address != 0xC0B0 {
		t.Fatalf("score address got %04x want C0B0", p.Score.Address)
	}
	// untouched field keeps the default
	if p.GameOver.BreakAddress != 0x6803 {
		t.Fatalf("break address got %04x want default 6803", p.GameOver.BreakAddress)
	}
}

func TestLoad_RejectsBadScore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	doc := "score:\n  address: 0xC000\n  length: 9\n  encoding: bcd\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("length 9 accepted")
	}

	doc = "score:\n  address: 0xC000\n  length: 2\n  encoding: gray\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("unknown encoding accepted")
	}
}

func TestScoreDecode(t *testing.T) {
	bcd := Score{Length: 3, Encoding: EncodingBCD}
	// 123456 stored least significant byte first: 56 34 12
	if got := bcd.Decode([]byte{0x56, 0x34, 0x12}); got != 123456 {
		t.Fatalf("BCD decode got %d want 123456", got)
	}
	if got := bcd.Decode([]byte{0x09, 0x00, 0x00}); got != 9 {
		t.Fatalf("BCD decode got %d want 9", got)
	}

	bin := Score{Length: 2, Encoding: EncodingBinary}
	if got := bin.Decode([]byte{0x34, 0x12}); got != 0x1234 {
		t.Fatalf("binary decode got %d want %d", got, 0x1234)
	}
}
