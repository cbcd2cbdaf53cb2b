package dump

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Write encodes vectors and their hashes as a dump to w. All vectors must have
// the same non-zero length, and there must be exactly one hash per vector.
func Write(w io.Writer, vectors [][]float32, hashes []uint64) error {
	if len(vectors) == 0 {
		return fmt.Errorf("%w: no vectors", ErrInvalidInput)
	}
	if len(vectors) != len(hashes) {
		return fmt.Errorf("%w: %d vectors but %d hashes", ErrInvalidInput, len(vectors), len(hashes))
	}
	dims := len(vectors[0])
	if dims == 0 {
		return fmt.Errorf("%w: zero-dimension vectors", ErrInvalidInput)
	}
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrInvalidInput, i, len(v), dims)
		}
	}

	bw := bufio.NewWriter(w)
	var hdr [HeaderSize]byte
	NewHeader(len(vectors), dims).Encode(hdr[:])
	if _, err := bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]byte, dims*FloatSize)
	for _, v := range vectors {
		for j, x := range v {
			binary.LittleEndian.PutUint32(row[j*FloatSize:], math.Float32bits(x))
		}
		if _, err := bw.Write(row); err != nil {
			return fmt.Errorf("write vectors: %w", err)
		}
	}
	var hb [HashSize]byte
	for _, h := range hashes {
		binary.LittleEndian.PutUint64(hb[:], h)
		if _, err := bw.Write(hb[:]); err != nil {
			return fmt.Errorf("write hashes: %w", err)
		}
	}
	return bw.Flush()
}

// WriteFile writes a dump to path atomically (temp file in the same directory, then rename).
// Parent directories are created if they do not exist.
func WriteFile(path string, vectors [][]float32, hashes []uint64) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".vecdump-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := Write(tmp, vectors, hashes); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename dump: %w", err)
	}
	return nil
}
