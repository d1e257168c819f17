package romload

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

func from7z(path string) ([]byte, string, error) {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("romload: open 7z: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !isROMName(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("romload: open %s in 7z: %w", f.Name, err)
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

func fromRAR(path string) ([]byte, string, error) {
	r, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("romload: open rar: %w", err)
	}
	defer r.Close()

	for {
		h, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("romload: read rar: %w", err)
		}
		if h.IsDir || !isROMName(h.Name) {
			continue
		}
		data, err := limitedRead(r)
		if err != nil {
			return nil, "", err
		}
		return data, filepath.Base(h.Name), nil
	}
	return nil, "", ErrNoROM
}
