//go:build cgo

package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CachesEngines(t *testing.T) {
	r := newRegistry()
	a, err := r.engine("cosine")
	require.NoError(t, err)
	b, err := r.engine(" cosine ")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "cosine", a.Scorer().Name())

	_, err = r.engine("model.mlmodelc")
	assert.Error(t, err)
}

func TestErrorState(t *testing.T) {
	var s errorState
	assert.Empty(t, s.get())
	s.set(errors.New("boom"))
	assert.Equal(t, "boom", s.get())
	s.set(nil)
	assert.Empty(t, s.get())
}

func TestSplitRows(t *testing.T) {
	rows, err := splitRows([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []float32{5, 6}, rows[2])
	assert.Equal(t, 2, cap(rows[0]))

	empty, err := splitRows(nil, 0, 4)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = splitRows([]float32{1, 2, 3}, 2, 2)
	assert.Error(t, err)
	_, err = splitRows(nil, 1, 0)
	assert.Error(t, err)
}
