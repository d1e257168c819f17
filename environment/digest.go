package environment

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
)

// FrameDigest returns a hex SHA-1 over a frame's pixel values. Two
// frames digest equal exactly when every packed pixel matches, which
// makes it a compact fingerprint for regression tests and benchmark
// output.
func FrameDigest(pixels []uint32) string {
	h := sha1.New()
	var b [4]byte
	for _, px := range pixels {
		binary.BigEndian.PutUint32(b[:], px)
		h.Write(b[:])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
