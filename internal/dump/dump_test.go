package dump

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, vectors [][]float32, hashes []uint64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture"+Extension)
	require.NoError(t, WriteFile(path, vectors, hashes))
	return path
}

func writeRaw(t *testing.T, b []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw"+Extension)
	require.NoError(t, os.WriteFile(path, b, 0600))
	return path
}

func TestRoundTrip(t *testing.T) {
	vectors := [][]float32{
		{0.1, 0.2, 0.3},
		{-1, 0, 1},
		{3.5, -2.25, 0},
		{1e-6, 1e6, 42},
	}
	hashes := []uint64{1000000, 1010000, 1<<63 + 7, 0}
	path := writeFixture(t, vectors, hashes)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint32(len(vectors)), r.Count())
	assert.Equal(t, uint32(3), r.Dimensions())
	assert.Equal(t, NewHeader(4, 3), r.Header())
	for i := range vectors {
		v, ok := r.VectorAt(i)
		require.True(t, ok, "vector %d", i)
		assert.Equal(t, vectors[i], v)
		h, ok := r.HashAt(i)
		require.True(t, ok, "hash %d", i)
		assert.Equal(t, hashes[i], h)
	}
	all := r.AllVectors()
	assert.Len(t, all, 12)
	assert.Equal(t, float32(42), all[11])
}

func TestBounds(t *testing.T) {
	path := writeFixture(t, [][]float32{{1, 0}, {0, 1}}, []uint64{10, 20})
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	n := int(r.Count())
	_, ok := r.VectorAt(n)
	assert.False(t, ok)
	_, ok = r.HashAt(n)
	assert.False(t, ok)
	_, ok = r.VectorAt(-1)
	assert.False(t, ok)
	_, ok = r.HashAt(-1)
	assert.False(t, ok)
}

func TestVectorAtDoesNotOverlapNextRow(t *testing.T) {
	path := writeFixture(t, [][]float32{{1, 2}, {3, 4}}, []uint64{1, 2})
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	v, ok := r.VectorAt(0)
	require.True(t, ok)
	assert.Equal(t, 2, cap(v), "row view must not expose the next row")
}

func TestRows(t *testing.T) {
	path := writeFixture(t, [][]float32{{1, 2}, {3, 4}, {5, 6}}, []uint64{1, 2, 3})
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	rows, ok := r.Rows(1, 3)
	require.True(t, ok)
	assert.Equal(t, []float32{3, 4, 5, 6}, rows)

	_, ok = r.Rows(2, 2)
	assert.False(t, ok)
	_, ok = r.Rows(0, 4)
	assert.False(t, ok)
}

func TestOpen_Errors(t *testing.T) {
	valid := new(bytes.Buffer)
	require.NoError(t, Write(valid, [][]float32{{1, 0}, {0, 1}}, []uint64{1, 2}))

	var badVecSize [HeaderSize]byte
	Header{NumEntries: 0, HashSizeBytes: HashSize, VectorSizeBytes: 12, VectorDimensions: 2}.Encode(badVecSize[:])
	var badHashSize [HeaderSize]byte
	Header{NumEntries: 0, HashSizeBytes: 4, VectorSizeBytes: 8, VectorDimensions: 2}.Encode(badHashSize[:])

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty file", []byte{}, ErrEmptyFile},
		{"truncated header", []byte{1, 0, 0, 0, 8, 0}, ErrTruncatedHeader},
		{"truncated body", valid.Bytes()[:valid.Len()-3], ErrTruncatedBody},
		{"trailing bytes", append(append([]byte(nil), valid.Bytes()...), 0xff), ErrTruncatedBody},
		{"vector size mismatch", badVecSize[:], ErrInvalidHeader},
		{"hash size mismatch", badHashSize[:], ErrInvalidHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRaw(t, tt.data)
			r, err := Open(path)
			require.Error(t, err)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"+Extension))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
	assert.False(t, IsFormatError(err))
}

func TestIsFormatError(t *testing.T) {
	assert.True(t, IsFormatError(ErrTruncatedBody))
	assert.True(t, IsFormatError(ErrTruncatedHeader))
	assert.True(t, IsFormatError(ErrInvalidHeader))
	assert.False(t, IsFormatError(ErrMapFailed))
	assert.False(t, IsFormatError(errors.New("other")))
}

func TestOpen_ZeroEntries(t *testing.T) {
	var hdr [HeaderSize]byte
	NewHeader(0, 4).Encode(hdr[:])
	r, err := Open(writeRaw(t, hdr[:]))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint32(0), r.Count())
	assert.Equal(t, uint32(4), r.Dimensions())
	assert.Empty(t, r.AllVectors())
	_, ok := r.VectorAt(0)
	assert.False(t, ok)
}

func TestClose_Idempotent(t *testing.T) {
	path := writeFixture(t, [][]float32{{1, 0}}, []uint64{5})
	r, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	assert.Equal(t, uint32(0), r.Count())
	assert.Nil(t, r.AllVectors())
	_, ok := r.VectorAt(0)
	assert.False(t, ok)
	_, ok = r.HashAt(0)
	assert.False(t, ok)
}

func TestWrite_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]float32
		hashes  []uint64
	}{
		{"no vectors", nil, nil},
		{"length mismatch", [][]float32{{1}}, []uint64{1, 2}},
		{"zero dimensions", [][]float32{{}}, []uint64{1}},
		{"inconsistent dimensions", [][]float32{{1, 2}, {1}}, []uint64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Write(new(bytes.Buffer), tt.vectors, tt.hashes)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestWrite_FileSize(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, Write(buf, [][]float32{{1, 2, 3}, {4, 5, 6}}, []uint64{1, 2}))
	assert.Equal(t, int(NewHeader(2, 3).FileSize()), buf.Len())
	assert.Equal(t, 16+2*12+2*8, buf.Len())
}

func TestWriteFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "a"+Extension)
	require.NoError(t, WriteFile(path, [][]float32{{1}}, []uint64{1}))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a"+Extension, entries[0].Name())
}

func TestHasExtension(t *testing.T) {
	assert.True(t, HasExtension("/a/b.vecdump", Extension))
	assert.True(t, HasExtension("/a/B.VECDUMP", Extension))
	assert.False(t, HasExtension("/a/b.vecdump.tmp", Extension))
	assert.False(t, HasExtension("/a/vecdump", Extension))
}

func TestHashVector(t *testing.T) {
	a := HashVector([]float32{0.1, 0.2, 0.3})
	assert.Equal(t, a, HashVector([]float32{0.1, 0.2, 0.3}))
	assert.NotEqual(t, a, HashVector([]float32{0.3, 0.2, 0.1}))

	negZero := float32(math.Copysign(0, -1))
	assert.Equal(t, HashVector([]float32{0, 1}), HashVector([]float32{negZero, 1}))
	assert.Equal(t, []uint64{a}, HashVectors([][]float32{{0.1, 0.2, 0.3}}))
}

func TestDescribe(t *testing.T) {
	vec := make([]float32, 12)
	for i := range vec {
		vec[i] = float32(i)
	}
	path := writeFixture(t, [][]float32{make([]float32, 12), vec}, []uint64{1, 99})
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	info := Describe(r)
	require.NotNil(t, info.Sample)
	assert.Equal(t, uint64(99), info.Sample.Hash)
	assert.Len(t, info.Sample.Head, maxSampleDims)
	assert.True(t, info.Sample.More)

	out := new(bytes.Buffer)
	info.WriteText(out)
	assert.Contains(t, out.String(), "Number of entries:   2")
	assert.Contains(t, out.String(), "Hash: 99")
}

func TestDescribe_SingleEntry(t *testing.T) {
	r, err := Open(writeFixture(t, [][]float32{{1, 2}}, []uint64{1}))
	require.NoError(t, err)
	defer r.Close()
	info := Describe(r)
	assert.Nil(t, info.Sample)
	out := new(bytes.Buffer)
	info.WriteText(out)
	assert.Contains(t, out.String(), "Not enough entries")
}
