// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"io"
	"sync/atomic"

	"github.com/dwa012/go-sqlite3/internal/engine"
)

// Blob is an incremental byte stream over one BLOB column of one row,
// implementing io.ReaderAt/io.WriterAt/io.Seeker-shaped methods (not the
// stdlib interfaces directly, since sqlite3_blob_read/write never extend
// the blob's length, unlike a general-purpose ReaderAt/WriterAt).
type Blob struct {
	conn   *Connection
	handle *engine.Blob
	offset int64
	length int
	closed atomic.Bool
}

// OpenBlob mirrors sqlite3_blob_open.
func (c *Connection) OpenBlob(dbName, table, column string, rowid int64, writable bool) (*Blob, error) {
	var eb *engine.Blob
	err := c.withGate(func() error {
		b, berr := c.db.BlobOpen(dbName, table, column, rowid, writable)
		if berr != nil {
			return fromEngine(berr)
		}
		eb = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	b := &Blob{conn: c, handle: eb, length: eb.Bytes()}
	c.blobs.Add(b)
	return b, nil
}

// Len reports the blob's fixed byte length (set at open/reopen time; never
// changes in between, since Write cannot extend it).
func (b *Blob) Len() int { return b.length }

// Seek implements the io.Seeker shape; whence follows io.Seeker's
// io.SeekStart/io.SeekCurrent/io.SeekEnd. A target outside [0, length] is
// not clamped: Seek returns ErrRange and leaves the offset unchanged.
func (b *Blob) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = b.offset
	case io.SeekEnd:
		base = int64(b.length)
	default:
		return 0, newCoreErr(KindInvalidContext, "invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 || pos > int64(b.length) {
		return 0, ErrRange
	}
	b.offset = pos
	return pos, nil
}

// ReadAt implements the io.ReaderAt shape (never extends past length; a
// read reaching the end returns io.EOF with the bytes actually read).
func (b *Blob) ReadAt(p []byte, off int64) (int, error) {
	if b.closed.Load() {
		return 0, ErrVFSFileClosed
	}
	if off < 0 || off > int64(b.length) {
		return 0, ErrRange
	}
	n := len(p)
	if off+int64(n) > int64(b.length) {
		n = b.length - int(off)
	}
	if n <= 0 {
		return 0, io.EOF
	}
	err := b.conn.withGate(func() error {
		return fromEngine(b.handle.Read(p[:n], int(off)))
	})
	if err != nil {
		return 0, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt shape; writing past length is a
// Range error rather than silently truncating, since SQLite never resizes
// the blob's storage on write.
func (b *Blob) WriteAt(p []byte, off int64) (int, error) {
	if b.closed.Load() {
		return 0, ErrVFSFileClosed
	}
	if off < 0 || off+int64(len(p)) > int64(b.length) {
		return 0, ErrRange
	}
	err := b.conn.withGate(func() error {
		return fromEngine(b.handle.Write(p, int(off)))
	})
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read advances the cursor position by however many bytes were read,
// stopping at the blob's length.
func (b *Blob) Read(p []byte) (int, error) {
	n, err := b.ReadAt(p, b.offset)
	b.offset += int64(n)
	return n, err
}

// Write advances the cursor position by however many bytes were written.
func (b *Blob) Write(p []byte) (int, error) {
	n, err := b.WriteAt(p, b.offset)
	b.offset += int64(n)
	return n, err
}

// Reopen mirrors sqlite3_blob_reopen, repointing this handle at a
// different row of the same table/column and resetting the cursor
// position to zero.
func (b *Blob) Reopen(rowid int64) error {
	return b.conn.withGate(func() error {
		if err := b.handle.Reopen(rowid); err != nil {
			return fromEngine(err)
		}
		b.length = b.handle.Bytes()
		b.offset = 0
		return nil
	})
}

// Close mirrors sqlite3_blob_close; safe to call more than once.
func (b *Blob) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.conn.withGate(func() error {
		return fromEngine(b.handle.Close())
	})
}

// ForceClose implements deplist.Dependent.
func (b *Blob) ForceClose() error { return b.Close() }
