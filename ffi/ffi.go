// Package main builds the C shared library form of contextdb.
//
// The exported surface is deliberately narrow: open and close a database,
// insert an entry, run the two most common query shapes, count entries and
// fetch the last error message. Everything richer belongs on the Go API.
//
// Build with:
//
//	go build -buildmode=c-shared -o libcontextdb.so ./ffi
package main

/*
#include <stdbool.h>
#include <stddef.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

typedef struct ContextDBHandle ContextDBHandle;

typedef struct ContextDBQueryResult {
	uint8_t id[16];
	float score;
	char *expression;
} ContextDBQueryResult;
*/
import "C"

import (
	"context"
	"sync"
	"unsafe"

	"github.com/contextdb/contextdb"
	"github.com/contextdb/contextdb/pkg/core"
)

// handles maps opaque tokens handed across the C boundary to open databases.
// Each token is a one-byte C allocation, so C code holds a real (but never
// dereferenced) pointer and no Go pointer ever crosses the boundary.
var handles = struct {
	sync.Mutex
	open map[uintptr]*contextdb.DB
}{
	open: make(map[uintptr]*contextdb.DB),
}

// lastError holds the most recent failure message. Unlike errno it is
// process-global, not per-thread; callers serializing their FFI use get
// accurate messages.
var lastError = struct {
	sync.Mutex
	message string
	set     bool
}{}

func setLastError(message string) {
	lastError.Lock()
	lastError.message = message
	lastError.set = true
	lastError.Unlock()
}

func clearLastError() {
	lastError.Lock()
	lastError.set = false
	lastError.Unlock()
}

func registerHandle(db *contextdb.DB) *C.ContextDBHandle {
	token := C.malloc(1)
	handles.Lock()
	handles.open[uintptr(token)] = db
	handles.Unlock()
	return (*C.ContextDBHandle)(token)
}

func lookupHandle(handle *C.ContextDBHandle) (*contextdb.DB, bool) {
	handles.Lock()
	defer handles.Unlock()
	db, ok := handles.open[uintptr(unsafe.Pointer(handle))]
	return db, ok
}

// dropHandle removes the registration and releases the token allocation.
func dropHandle(handle *C.ContextDBHandle) (*contextdb.DB, bool) {
	handles.Lock()
	token := uintptr(unsafe.Pointer(handle))
	db, ok := handles.open[token]
	delete(handles.open, token)
	handles.Unlock()

	if ok {
		C.free(unsafe.Pointer(handle))
	}
	return db, ok
}

//export contextdb_last_error_message
func contextdb_last_error_message() *C.char {
	lastError.Lock()
	defer lastError.Unlock()
	if !lastError.set {
		return nil
	}
	return C.CString(lastError.message)
}

//export contextdb_string_free
func contextdb_string_free(ptr *C.char) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

//export contextdb_open
func contextdb_open(path *C.char) *C.ContextDBHandle {
	var (
		db  *contextdb.DB
		err error
	)
	if path == nil || C.GoString(path) == "" {
		db, err = contextdb.OpenInMemory(context.Background())
	} else {
		db, err = contextdb.Open(context.Background(), C.GoString(path))
	}
	if err != nil {
		setLastError(err.Error())
		return nil
	}

	clearLastError()
	return registerHandle(db)
}

//export contextdb_close
func contextdb_close(handle *C.ContextDBHandle) {
	if handle == nil {
		return
	}
	if db, ok := dropHandle(handle); ok {
		_ = db.Close()
	}
}

//export contextdb_insert
func contextdb_insert(handle *C.ContextDBHandle, expression *C.char, meaningPtr *C.float, meaningLen C.size_t) C.bool {
	db, ok := lookupHandle(handle)
	if !ok {
		setLastError("handle was null or closed")
		return false
	}
	if expression == nil {
		setLastError("expression pointer was null")
		return false
	}
	if meaningPtr == nil && meaningLen > 0 {
		setLastError("meaning pointer was null")
		return false
	}

	entry := core.NewEntry(goVector(meaningPtr, meaningLen), C.GoString(expression))
	if err := db.Insert(context.Background(), entry); err != nil {
		setLastError(err.Error())
		return false
	}

	clearLastError()
	return true
}

//export contextdb_count
func contextdb_count(handle *C.ContextDBHandle, outCount *C.size_t) C.bool {
	db, ok := lookupHandle(handle)
	if !ok {
		setLastError("handle was null or closed")
		return false
	}
	if outCount == nil {
		setLastError("out_count pointer was null")
		return false
	}

	count, err := db.Count(context.Background())
	if err != nil {
		setLastError(err.Error())
		return false
	}

	*outCount = C.size_t(count)
	clearLastError()
	return true
}

//export contextdb_query_meaning
func contextdb_query_meaning(handle *C.ContextDBHandle, meaningPtr *C.float, meaningLen C.size_t, threshold C.float, limit C.size_t, outLen *C.size_t) *C.ContextDBQueryResult {
	db, ok := lookupHandle(handle)
	if !ok {
		setLastError("handle was null or closed")
		return nil
	}
	if meaningPtr == nil && meaningLen > 0 {
		setLastError("meaning pointer was null")
		return nil
	}
	if outLen == nil {
		setLastError("out_len pointer was null")
		return nil
	}

	// A negative threshold means "no threshold": rank everything.
	var t *float64
	if threshold >= 0 {
		t = core.Float64(float64(threshold))
	}

	query := core.NewQuery().WithMeaning(goVector(meaningPtr, meaningLen), t)
	if limit > 0 {
		query = query.WithLimit(int(limit))
	}

	return runQuery(db, &query, outLen)
}

//export contextdb_query_expression_contains
func contextdb_query_expression_contains(handle *C.ContextDBHandle, expression *C.char, limit C.size_t, outLen *C.size_t) *C.ContextDBQueryResult {
	db, ok := lookupHandle(handle)
	if !ok {
		setLastError("handle was null or closed")
		return nil
	}
	if expression == nil {
		setLastError("expression pointer was null")
		return nil
	}
	if outLen == nil {
		setLastError("out_len pointer was null")
		return nil
	}

	query := core.NewQuery().WithExpression(core.ExpressionContains(C.GoString(expression)))
	if limit > 0 {
		query = query.WithLimit(int(limit))
	}

	return runQuery(db, &query, outLen)
}

//export contextdb_query_results_free
func contextdb_query_results_free(results *C.ContextDBQueryResult, length C.size_t) {
	if results == nil {
		return
	}
	items := unsafe.Slice(results, int(length))
	for i := range items {
		if items[i].expression != nil {
			C.free(unsafe.Pointer(items[i].expression))
		}
	}
	C.free(unsafe.Pointer(results))
}

// runQuery executes the query and marshals the results into a C-owned array.
func runQuery(db *contextdb.DB, query *core.Query, outLen *C.size_t) *C.ContextDBQueryResult {
	results, err := db.Query(context.Background(), query)
	if err != nil {
		setLastError(err.Error())
		return nil
	}

	*outLen = C.size_t(len(results))
	if len(results) == 0 {
		clearLastError()
		return nil
	}

	itemSize := C.size_t(unsafe.Sizeof(C.ContextDBQueryResult{}))
	array := (*C.ContextDBQueryResult)(C.malloc(C.size_t(len(results)) * itemSize))
	items := unsafe.Slice(array, len(results))

	for i, result := range results {
		for j, b := range result.Entry.ID {
			items[i].id[j] = C.uint8_t(b)
		}
		items[i].score = 0
		if result.SimilarityScore != nil {
			items[i].score = C.float(*result.SimilarityScore)
		}
		items[i].expression = C.CString(result.Entry.Expression)
	}

	clearLastError()
	return array
}

func goVector(ptr *C.float, length C.size_t) []float32 {
	if ptr == nil || length == 0 {
		return nil
	}
	src := unsafe.Slice((*float32)(unsafe.Pointer(ptr)), int(length))
	vector := make([]float32, len(src))
	copy(vector, src)
	return vector
}

func main() {}
