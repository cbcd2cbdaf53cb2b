package dump

import (
	"fmt"
	"io"
)

// sampleIndex is the entry shown by Describe; index 0 is often the document's query seed.
const sampleIndex = 1

// maxSampleDims bounds how many components of the sample vector are shown.
const maxSampleDims = 10

// Info summarizes an open dump.
type Info struct {
	Path     string  `json:"path"`
	Header   Header  `json:"header"`
	FileSize uint64  `json:"file_size_bytes"`
	Sample   *Sample `json:"sample,omitempty"`
}

// Sample is one entry of a dump with a truncated vector.
type Sample struct {
	Index int       `json:"index"`
	Hash  uint64    `json:"hash"`
	Head  []float32 `json:"head"`
	More  bool      `json:"more"`
}

// Describe returns an Info for r. The sample is nil when the dump has fewer than two entries.
func Describe(r *Reader) Info {
	info := Info{Path: r.Path(), Header: r.Header(), FileSize: r.Header().FileSize()}
	vec, ok := r.VectorAt(sampleIndex)
	if !ok {
		return info
	}
	hash, _ := r.HashAt(sampleIndex)
	n := len(vec)
	if n > maxSampleDims {
		n = maxSampleDims
	}
	head := make([]float32, n)
	copy(head, vec[:n])
	info.Sample = &Sample{Index: sampleIndex, Hash: hash, Head: head, More: len(vec) > n}
	return info
}

// WriteText prints info in the human-readable form used by the CLI.
func (info Info) WriteText(w io.Writer) {
	fmt.Fprintf(w, "=== Vector dump: %s ===\n", info.Path)
	fmt.Fprintf(w, "Number of entries:   %d\n", info.Header.NumEntries)
	fmt.Fprintf(w, "Hash size (bytes):   %d\n", info.Header.HashSizeBytes)
	fmt.Fprintf(w, "Vector size (bytes): %d\n", info.Header.VectorSizeBytes)
	fmt.Fprintf(w, "Vector dimensions:   %d\n", info.Header.VectorDimensions)
	fmt.Fprintf(w, "File size (bytes):   %d\n", info.FileSize)
	if info.Sample == nil {
		fmt.Fprintln(w, "Not enough entries to show a sample")
		return
	}
	fmt.Fprintf(w, "\nSample element (index %d):\n", info.Sample.Index)
	fmt.Fprintf(w, "Hash: %d\n", info.Sample.Hash)
	fmt.Fprintf(w, "Embedding vector (first %d dimensions):\n", len(info.Sample.Head))
	for i, v := range info.Sample.Head {
		if i > 0 {
			fmt.Fprint(w, ", ")
		}
		fmt.Fprint(w, v)
	}
	if info.Sample.More {
		fmt.Fprint(w, "...")
	}
	fmt.Fprintln(w)
}
