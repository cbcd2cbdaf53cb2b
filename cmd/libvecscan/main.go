//go:build cgo

// Command libvecscan is a C shared library exposing the search entry points:
//
//	go build -buildmode=c-shared -o libvecscan.so ./cmd/libvecscan
//
// Every function returning results writes the count to *resultCountPtr and returns
// a malloc'd array the caller frees with free_similarity_results. NULL with a count
// of 0 means either no matches or a failure; similarity_last_error tells them apart.
package main

/*
#include <stdlib.h>
#include "similarity.h"
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/hyperjump/vecscan/internal/result"
)

var (
	engines   = newRegistry()
	lastError errorState

	lastErrorMu  sync.Mutex
	lastErrorStr *C.char
)

func main() {}

//export perform_similarity_check
func perform_similarity_check(modelPath, vectorDumpPath *C.char, queryVectorPtr *C.float, queryVectorDimensions C.int32_t, resultCountPtr *C.int32_t) *C.SimilarityResult {
	setCount(resultCountPtr, 0)
	e, err := engines.engine(C.GoString(modelPath))
	if err != nil {
		return fail(err)
	}
	query := goVector(queryVectorPtr, queryVectorDimensions)
	buf, err := e.SearchSingleDump(context.Background(), C.GoString(vectorDumpPath), query)
	return deliver(buf, err, resultCountPtr)
}

//export compute_cosine_similarity
func compute_cosine_similarity(modelPath *C.char, queryVectorPtr *C.float, queryVectorDimensions C.int32_t,
	vectorsPtr *C.float, vectorCount, vectorDimensions C.int32_t, hashesPtr *C.uint64_t, resultCountPtr *C.int32_t) *C.SimilarityResult {
	setCount(resultCountPtr, 0)
	if queryVectorPtr == nil {
		return fail(fmt.Errorf("query vector is required"))
	}
	e, err := engines.engine(C.GoString(modelPath))
	if err != nil {
		return fail(err)
	}
	query := goVector(queryVectorPtr, queryVectorDimensions)
	n, d := int(vectorCount), int(vectorDimensions)
	var flat []float32
	if vectorsPtr != nil && n > 0 && d > 0 {
		flat = make([]float32, n*d)
		copy(flat, unsafe.Slice((*float32)(unsafe.Pointer(vectorsPtr)), n*d))
	}
	if vectorsPtr == nil && n > 0 {
		return fail(fmt.Errorf("vectors pointer is NULL for %d vectors", n))
	}
	var candidates [][]float32
	if n > 0 {
		if candidates, err = splitRows(flat, n, d); err != nil {
			return fail(err)
		}
	}
	var hashes []uint64
	if hashesPtr != nil && n > 0 {
		hashes = make([]uint64, n)
		copy(hashes, unsafe.Slice((*uint64)(unsafe.Pointer(hashesPtr)), n))
	}
	buf, err := e.ScoreExplicit(context.Background(), query, candidates, hashes)
	return deliver(buf, err, resultCountPtr)
}

//export retrieve_similar_vectors_from_corpus
func retrieve_similar_vectors_from_corpus(modelPath, corpusDir *C.char, queryVectorPtr *C.float, queryVectorDimensions C.int32_t, k C.int32_t, resultCountPtr *C.int32_t) *C.SimilarityResult {
	setCount(resultCountPtr, 0)
	e, err := engines.engine(C.GoString(modelPath))
	if err != nil {
		return fail(err)
	}
	query := goVector(queryVectorPtr, queryVectorDimensions)
	buf, err := e.SearchCorpus(context.Background(), C.GoString(corpusDir), query, int(k))
	return deliver(buf, err, resultCountPtr)
}

//export free_similarity_results
func free_similarity_results(ptr unsafe.Pointer) {
	if ptr != nil {
		C.free(ptr)
	}
}

// similarity_last_error returns the failure message of the most recent call, or an
// empty string when it succeeded. The string stays valid until the next call to
// similarity_last_error.
//
//export similarity_last_error
func similarity_last_error() *C.char {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	if lastErrorStr != nil {
		C.free(unsafe.Pointer(lastErrorStr))
	}
	lastErrorStr = C.CString(lastError.get())
	return lastErrorStr
}

// goVector copies a C query. A NULL pointer means "use the dump's first vector".
func goVector(ptr *C.float, dims C.int32_t) []float32 {
	if ptr == nil {
		return nil
	}
	if dims <= 0 {
		return []float32{}
	}
	v := make([]float32, int(dims))
	copy(v, unsafe.Slice((*float32)(unsafe.Pointer(ptr)), int(dims)))
	return v
}

// deliver copies buf into C memory and releases it.
func deliver(buf *result.Buffer, err error, countPtr *C.int32_t) *C.SimilarityResult {
	if err != nil {
		return fail(err)
	}
	defer func() { _ = buf.Release() }()
	lastError.set(nil)
	results := buf.Results()
	if len(results) == 0 {
		return nil
	}
	size := C.size_t(len(results)) * C.size_t(unsafe.Sizeof(C.SimilarityResult{}))
	ptr := (*C.SimilarityResult)(C.malloc(size))
	if ptr == nil {
		return fail(fmt.Errorf("allocate %d results", len(results)))
	}
	out := unsafe.Slice(ptr, len(results))
	for i, r := range results {
		out[i].hash = C.uint64_t(r.Hash)
		out[i].score = C.float(r.Score)
	}
	setCount(countPtr, len(results))
	return ptr
}

func fail(err error) *C.SimilarityResult {
	lastError.set(err)
	engines.logger.Warn("similarity call failed", zap.Error(err))
	return nil
}

func setCount(p *C.int32_t, n int) {
	if p != nil {
		*p = C.int32_t(n)
	}
}
