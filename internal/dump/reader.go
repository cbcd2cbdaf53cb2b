package dump

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"github.com/edsrzf/mmap-go"
)

// Reader is a read-only, memory-mapped view of one dump file.
//
// Slices returned by VectorAt, Rows and AllVectors alias the mapping: they are
// valid only until Close and must not be modified. Float components are read in
// host byte order, which matches the on-disk little-endian layout on every
// platform the engine targets (amd64, arm64).
type Reader struct {
	path    string
	f       *os.File
	data    mmap.MMap
	header  Header
	vectors []float32
	hashes  []byte
}

// Open maps the dump at path and validates its layout.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
	}
	size := info.Size()
	if size == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrMapFailed, path, err)
	}
	r := &Reader{path: path, f: f, data: data}
	if err := r.init(size); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *Reader) init(size int64) error {
	h, err := DecodeHeader(r.data)
	if err != nil {
		return err
	}
	if err := h.Validate(); err != nil {
		return err
	}
	vr, hr, err := h.layout(size)
	if err != nil {
		return err
	}
	r.header = h
	r.vectors = floatView(r.data[vr.off:vr.end()])
	r.hashes = r.data[hr.off:hr.end()]
	// madvise needs a page-aligned address, so advise the whole mapping.
	advise(r.data)
	return nil
}

// floatView reinterprets b as float32 components without copying.
func floatView(b []byte) []float32 {
	if len(b) == 0 {
		return []float32{}
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/FloatSize)
}

// Path returns the file path the reader was opened with.
func (r *Reader) Path() string { return r.path }

// Header returns the decoded header, or the zero header after Close.
func (r *Reader) Header() Header { return r.header }

// Count returns the number of entries.
func (r *Reader) Count() uint32 { return r.header.NumEntries }

// Dimensions returns the number of components per vector.
func (r *Reader) Dimensions() uint32 { return r.header.VectorDimensions }

// VectorAt returns the vector at index i, or false if i is out of range.
func (r *Reader) VectorAt(i int) ([]float32, bool) {
	if i < 0 || i >= int(r.header.NumEntries) || r.vectors == nil {
		return nil, false
	}
	d := int(r.header.VectorDimensions)
	return r.vectors[i*d : (i+1)*d : (i+1)*d], true
}

// HashAt returns the content hash at index i, or false if i is out of range.
func (r *Reader) HashAt(i int) (uint64, bool) {
	if i < 0 || i >= int(r.header.NumEntries) || r.hashes == nil {
		return 0, false
	}
	off := i * HashSize
	return binary.LittleEndian.Uint64(r.hashes[off : off+HashSize]), true
}

// Rows returns the row-major block of vectors [start, end), or false if the
// range is empty or out of bounds.
func (r *Reader) Rows(start, end int) ([]float32, bool) {
	if start < 0 || end > int(r.header.NumEntries) || start >= end || r.vectors == nil {
		return nil, false
	}
	d := int(r.header.VectorDimensions)
	return r.vectors[start*d : end*d : end*d], true
}

// AllVectors returns the whole Count()×Dimensions() block. It is nil after Close.
func (r *Reader) AllVectors() []float32 {
	return r.vectors
}

// Close unmaps the file and closes the descriptor. Calling Close more than once is a no-op.
func (r *Reader) Close() error {
	r.vectors = nil
	r.hashes = nil
	r.header = Header{}
	var err error
	if r.data != nil {
		err = r.data.Unmap()
		r.data = nil
	}
	if r.f != nil {
		if cerr := r.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		r.f = nil
	}
	return err
}
