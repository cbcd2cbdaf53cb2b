// Package dump provides the vector dump file format: a fixed header, a row-major
// float32 vector block and a uint64 content hash block.
package dump

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// HeaderSize is the encoded header length in bytes.
	HeaderSize = 16
	// HashSize is the size of one content hash (uint64).
	HashSize = 8
	// FloatSize is the size of one vector component (float32).
	FloatSize = 4
	// Extension is the default file extension of dump files.
	Extension = ".vecdump"
)

// HasExtension reports whether path ends in ext, ignoring case.
func HasExtension(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}

// Header is the fixed 16-byte dump header. Field order is part of the format.
type Header struct {
	NumEntries       uint32 `json:"num_entries"`        // number of vectors and hashes
	HashSizeBytes    uint32 `json:"hash_size_bytes"`    // size of each hash in bytes
	VectorSizeBytes  uint32 `json:"vector_size_bytes"`  // size of each vector in bytes
	VectorDimensions uint32 `json:"vector_dimensions"` // float32 components per vector
}

// NewHeader returns the header for n vectors of dims dimensions.
func NewHeader(n, dims int) Header {
	return Header{
		NumEntries:       uint32(n),
		HashSizeBytes:    HashSize,
		VectorSizeBytes:  uint32(dims * FloatSize),
		VectorDimensions: uint32(dims),
	}
}

// Encode writes h into b, which must be at least HeaderSize bytes.
func (h Header) Encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], h.NumEntries)
	binary.LittleEndian.PutUint32(b[4:8], h.HashSizeBytes)
	binary.LittleEndian.PutUint32(b[8:12], h.VectorSizeBytes)
	binary.LittleEndian.PutUint32(b[12:16], h.VectorDimensions)
}

// DecodeHeader reads a header from the first HeaderSize bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrTruncatedHeader, len(b))
	}
	return Header{
		NumEntries:       binary.LittleEndian.Uint32(b[0:4]),
		HashSizeBytes:    binary.LittleEndian.Uint32(b[4:8]),
		VectorSizeBytes:  binary.LittleEndian.Uint32(b[8:12]),
		VectorDimensions: binary.LittleEndian.Uint32(b[12:16]),
	}, nil
}

// Validate checks the header's internal consistency.
func (h Header) Validate() error {
	if uint64(h.VectorSizeBytes) != uint64(h.VectorDimensions)*FloatSize {
		return fmt.Errorf("%w: vector size %d bytes does not match %d dimensions",
			ErrInvalidHeader, h.VectorSizeBytes, h.VectorDimensions)
	}
	if h.HashSizeBytes != HashSize {
		return fmt.Errorf("%w: hash size %d bytes, want %d", ErrInvalidHeader, h.HashSizeBytes, HashSize)
	}
	return nil
}

// VectorBlockSize is the byte length of the vector block.
func (h Header) VectorBlockSize() uint64 {
	return uint64(h.NumEntries) * uint64(h.VectorSizeBytes)
}

// HashBlockSize is the byte length of the hash block.
func (h Header) HashBlockSize() uint64 {
	return uint64(h.NumEntries) * uint64(h.HashSizeBytes)
}

// FileSize is the exact length a well-formed file with this header must have.
func (h Header) FileSize() uint64 {
	return HeaderSize + h.VectorBlockSize() + h.HashBlockSize()
}

// region is a validated (offset, length) window into the mapped file.
type region struct {
	off int
	n   int
}

func (r region) end() int { return r.off + r.n }

// layout computes the vector and hash regions of a file of size bytes.
func (h Header) layout(size int64) (vectors, hashes region, err error) {
	if uint64(size) != h.FileSize() {
		return region{}, region{}, fmt.Errorf("%w: file is %d bytes, header requires %d",
			ErrTruncatedBody, size, h.FileSize())
	}
	vectors = region{off: HeaderSize, n: int(h.VectorBlockSize())}
	hashes = region{off: vectors.end(), n: int(h.HashBlockSize())}
	return vectors, hashes, nil
}
