// Package romload loads Game Boy ROM images from disk. Plain .gb/.gbc
// files are read directly; ZIP, gzip/tar.gz, 7z and RAR archives are
// detected by magic bytes and the first contained ROM is extracted.
package romload

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ROM file extensions recognized inside archives.
var romExtensions = []string{".gb", ".gbc"}

// 8MB covers the largest licensed cartridges with room to spare.
const maxROMSize = 8 * 1024 * 1024

var (
	// ErrNoROM means an archive contained no .gb/.gbc entry.
	ErrNoROM = errors.New("romload: no ROM file found in archive")
	// ErrTooLarge means the (decompressed) image exceeds the size limit.
	ErrTooLarge = errors.New("romload: file exceeds maximum ROM size")
)

var (
	magicZIP      = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEmpty = []byte{0x50, 0x4B, 0x05, 0x06}
	magic7z       = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip     = []byte{0x1F, 0x8B}
	magicRAR      = []byte{0x52, 0x61, 0x72, 0x21}
)

// Load reads a ROM from path. The returned name is the basename of the
// actual ROM file (which differs from path for archives).
func Load(path string) (data []byte, name string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	header := make([]byte, 8)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, "", fmt.Errorf("romload: read header: %w", err)
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, magicZIP) || bytes.HasPrefix(header, magicZIPEmpty):
		return fromZIP(path)
	case bytes.HasPrefix(header, magic7z):
		return from7z(path)
	case bytes.HasPrefix(header, magicGzip):
		return fromGzip(path)
	case bytes.HasPrefix(header, magicRAR):
		return fromRAR(path)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, "", err
	}
	data, err = limitedRead(f)
	if err != nil {
		return nil, "", err
	}
	return data, filepath.Base(path), nil
}

func isROMName(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range romExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func limitedRead(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxROMSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxROMSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

func fromZIP(path string) ([]byte, string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("romload: open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !isROMName(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("romload: open %s in zip: %w", f.Name, err)
		}
		data, err := limitedRead(rc)
		rc.Close()
		if err != nil {
			return nil, "", err
		}
		return data, filepath.Base(f.Name), nil
	}
	return nil, "", ErrNoROM
}

func fromGzip(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, "", fmt.Errorf("romload: open gzip: %w", err)
	}
	defer gr.Close()

	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return fromTar(gr)
	}

	data, err := limitedRead(gr)
	if err != nil {
		return nil, "", err
	}
	name := strings.TrimSuffix(filepath.Base(path), ".gz")
	return data, name, nil
}

func fromTar(r io.Reader) ([]byte, string, error) {
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("romload: read tar: %w", err)
		}
		if h.Typeflag != tar.TypeReg || !isROMName(h.Name) {
			continue
		}
		data, err := limitedRead(tr)
		if err != nil {
			return nil, "", err
		}
		return data, filepath.Base(h.Name), nil
	}
	return nil, "", ErrNoROM
}
