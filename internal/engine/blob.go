package engine

/*
#include <stdlib.h>
#include <sqlite3.h>
*/
import "C"
import "unsafe"

// BlobOpen mirrors sqlite3_blob_open.
func (d *DB) BlobOpen(dbName, table, column string, rowid int64, writable bool) (*Blob, error) {
	cdb := C.CString(dbName)
	defer C.free(unsafe.Pointer(cdb))
	ctable := C.CString(table)
	defer C.free(unsafe.Pointer(ctable))
	ccol := C.CString(column)
	defer C.free(unsafe.Pointer(ccol))

	var flags C.int
	if writable {
		flags = 1
	}

	var ptr *C.sqlite3_blob
	rc := C.sqlite3_blob_open(d.ptr, cdb, ctable, ccol, C.sqlite3_int64(rowid), flags, &ptr)
	if rc != C.SQLITE_OK {
		return nil, d.errorLocked(ResultCode(rc))
	}
	return &Blob{ptr: ptr}, nil
}

// Bytes mirrors sqlite3_blob_bytes.
func (b *Blob) Bytes() int {
	return int(C.sqlite3_blob_bytes(b.ptr))
}

// Read mirrors sqlite3_blob_read into buf at the given byte offset.
func (b *Blob) Read(buf []byte, offset int) error {
	if len(buf) == 0 {
		return nil
	}
	rc := C.sqlite3_blob_read(b.ptr, unsafe.Pointer(&buf[0]), C.int(len(buf)), C.int(offset))
	if rc != C.SQLITE_OK {
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

// Write mirrors sqlite3_blob_write from buf at the given byte offset.
func (b *Blob) Write(buf []byte, offset int) error {
	if len(buf) == 0 {
		return nil
	}
	rc := C.sqlite3_blob_write(b.ptr, unsafe.Pointer(&buf[0]), C.int(len(buf)), C.int(offset))
	if rc != C.SQLITE_OK {
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

// Reopen mirrors sqlite3_blob_reopen, repointing the handle at a different
// row of the same table/column without a fresh open/close round-trip.
func (b *Blob) Reopen(rowid int64) error {
	rc := C.sqlite3_blob_reopen(b.ptr, C.sqlite3_int64(rowid))
	if rc != C.SQLITE_OK {
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

// Close mirrors sqlite3_blob_close.
func (b *Blob) Close() error {
	if b == nil || b.ptr == nil {
		return nil
	}
	rc := C.sqlite3_blob_close(b.ptr)
	b.ptr = nil
	if rc != C.SQLITE_OK {
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}
