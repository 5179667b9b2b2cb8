package engine

/*
#include <stdlib.h>
#include <sqlite3.h>
*/
import "C"
import "unsafe"

// VFSName mirrors SQLITE_FCNTL_VFSNAME: the engine hands back a
// char* it owns (not the caller), which this function copies into a Go
// string before returning.
func (d *DB) VFSName(dbName string) (string, error) {
	var p *C.char
	if err := d.FileControl(dbName, FcntlVFSName, unsafe.Pointer(&p)); err != nil {
		return "", err
	}
	if p == nil {
		return "", nil
	}
	return C.GoString(p), nil
}

// DataVersion mirrors SQLITE_FCNTL_DATA_VERSION.
func (d *DB) DataVersion(dbName string) (uint32, error) {
	var v C.uint
	if err := d.FileControl(dbName, FcntlDataVersion, unsafe.Pointer(&v)); err != nil {
		return 0, err
	}
	return uint32(v), nil
}
