//go:build cgo

package main

/*
#include <stdlib.h>
#include "similarity.h"
*/
import "C"

import (
	"unsafe"

	"github.com/hyperjump/vecscan/internal/result"
)

// cCall is what a C caller observes after one exported call: the returned
// array (copied out and freed), whether it was NULL, the count written through
// resultCountPtr and the similarity_last_error message.
type cCall struct {
	Results []result.SimilarityResult
	Null    bool
	Count   int
	Err     string
}

// cString returns a C copy of s and its free function.
func cString(s string) (*C.char, func()) {
	p := C.CString(s)
	return p, func() { C.free(unsafe.Pointer(p)) }
}

// cFloats copies v into C memory. A nil v yields a NULL pointer.
func cFloats(v []float32) (*C.float, func()) {
	if v == nil {
		return nil, func() {}
	}
	n := max(len(v), 1)
	p := (*C.float)(C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(C.float(0)))))
	copy(unsafe.Slice((*float32)(unsafe.Pointer(p)), len(v)), v)
	return p, func() { C.free(unsafe.Pointer(p)) }
}

// cHashes copies h into C memory. An empty h yields a NULL pointer.
func cHashes(h []uint64) (*C.uint64_t, func()) {
	if len(h) == 0 {
		return nil, func() {}
	}
	p := (*C.uint64_t)(C.malloc(C.size_t(len(h)) * C.size_t(unsafe.Sizeof(C.uint64_t(0)))))
	copy(unsafe.Slice((*uint64)(unsafe.Pointer(p)), len(h)), h)
	return p, func() { C.free(unsafe.Pointer(p)) }
}

// collect copies a returned array into Go memory and frees it the way a C caller would.
func collect(ptr *C.SimilarityResult, count C.int32_t) cCall {
	c := cCall{Null: ptr == nil, Count: int(count), Err: C.GoString(similarity_last_error())}
	if ptr == nil {
		return c
	}
	for _, r := range unsafe.Slice(ptr, int(count)) {
		c.Results = append(c.Results, result.SimilarityResult{Hash: uint64(r.hash), Score: float32(r.score)})
	}
	free_similarity_results(unsafe.Pointer(ptr))
	return c
}

func callDump(model, dumpPath string, query []float32) cCall {
	m, freeM := cString(model)
	defer freeM()
	p, freeP := cString(dumpPath)
	defer freeP()
	q, freeQ := cFloats(query)
	defer freeQ()
	count := C.int32_t(-1)
	ptr := perform_similarity_check(m, p, q, C.int32_t(len(query)), &count)
	return collect(ptr, count)
}

func callCorpus(model, corpusDir string, query []float32, k int) cCall {
	m, freeM := cString(model)
	defer freeM()
	d, freeD := cString(corpusDir)
	defer freeD()
	q, freeQ := cFloats(query)
	defer freeQ()
	count := C.int32_t(-1)
	ptr := retrieve_similar_vectors_from_corpus(m, d, q, C.int32_t(len(query)), C.int32_t(k), &count)
	return collect(ptr, count)
}

func callExplicit(model string, query []float32, rows [][]float32, hashes []uint64) cCall {
	m, freeM := cString(model)
	defer freeM()
	q, freeQ := cFloats(query)
	defer freeQ()
	dims := 0
	var flat []float32
	for _, r := range rows {
		dims = len(r)
		flat = append(flat, r...)
	}
	v, freeV := cFloats(flat)
	defer freeV()
	h, freeH := cHashes(hashes)
	defer freeH()
	count := C.int32_t(-1)
	ptr := compute_cosine_similarity(m, q, C.int32_t(len(query)), v, C.int32_t(len(rows)), C.int32_t(dims), h, &count)
	return collect(ptr, count)
}
