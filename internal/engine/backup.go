package engine

/*
#include <stdlib.h>
#include <string.h>
#include <sqlite3.h>
*/
import "C"
import "unsafe"

// BackupInit mirrors sqlite3_backup_init(dst, dstName, src, srcName).
func BackupInit(dst *DB, dstName string, src *DB, srcName string) (*Backup, error) {
	cdst := C.CString(dstName)
	defer C.free(unsafe.Pointer(cdst))
	csrc := C.CString(srcName)
	defer C.free(unsafe.Pointer(csrc))

	ptr := C.sqlite3_backup_init(dst.ptr, cdst, src.ptr, csrc)
	if ptr == nil {
		return nil, dst.errorLocked(ResultCode(C.sqlite3_errcode(dst.ptr)))
	}
	return &Backup{ptr: ptr}, nil
}

// Step mirrors sqlite3_backup_step; nPage < 0 copies everything remaining
// in one call.
func (b *Backup) Step(nPage int) ResultCode {
	return ResultCode(C.sqlite3_backup_step(b.ptr, C.int(nPage)))
}

// Remaining mirrors sqlite3_backup_remaining.
func (b *Backup) Remaining() int {
	return int(C.sqlite3_backup_remaining(b.ptr))
}

// PageCount mirrors sqlite3_backup_pagecount.
func (b *Backup) PageCount() int {
	return int(C.sqlite3_backup_pagecount(b.ptr))
}

// Finish mirrors sqlite3_backup_finish.
func (b *Backup) Finish() error {
	if b == nil || b.ptr == nil {
		return nil
	}
	rc := C.sqlite3_backup_finish(b.ptr)
	b.ptr = nil
	if rc != C.SQLITE_OK {
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

// Serialize mirrors sqlite3_serialize for the named schema ("main" unless
// attaching additional databases).
func (d *DB) Serialize(schema string) ([]byte, error) {
	cschema := C.CString(schema)
	defer C.free(unsafe.Pointer(cschema))

	var size C.sqlite3_int64
	p := C.sqlite3_serialize(d.ptr, cschema, &size, 0)
	if p == nil {
		if size == 0 {
			return nil, nil
		}
		return nil, d.errorLocked(Error)
	}
	defer C.sqlite3_free(unsafe.Pointer(p))
	out := make([]byte, int(size))
	if size > 0 {
		C.memcpy(unsafe.Pointer(&out[0]), unsafe.Pointer(p), C.size_t(size))
	}
	return out, nil
}

// Deserialize mirrors sqlite3_deserialize for the named schema, copying buf
// into an engine-owned, resizable, free-on-close buffer.
func (d *DB) Deserialize(schema string, buf []byte) error {
	cschema := C.CString(schema)
	defer C.free(unsafe.Pointer(cschema))

	n := C.sqlite3_int64(len(buf))
	p := C.sqlite3_malloc64(C.sqlite3_uint64(len(buf)))
	if p == nil && len(buf) > 0 {
		return d.errorLocked(NoMem)
	}
	if len(buf) > 0 {
		C.memcpy(p, unsafe.Pointer(&buf[0]), C.size_t(len(buf)))
	}

	const flags = C.SQLITE_DESERIALIZE_RESIZEABLE | C.SQLITE_DESERIALIZE_FREEONCLOSE
	rc := C.sqlite3_deserialize(d.ptr, cschema, (*C.uchar)(p), n, n, C.uint(flags))
	if rc != C.SQLITE_OK {
		return d.errorLocked(ResultCode(rc))
	}
	return nil
}
