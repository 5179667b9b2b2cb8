// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"github.com/dwa012/go-sqlite3/internal/engine"
)

// Backup drives an online backup between two open connections, mirroring
// sqlite3_backup_init/step/remaining/pagecount/finish.
type Backup struct {
	dst, src *Connection
	handle   *engine.Backup
}

// NewBackup mirrors sqlite3_backup_init(dst, dstName, src, srcName). Both
// connections' mutexes are acquired try-or-fail, in (dst, src) order, and
// released in reverse order if either acquisition fails, since blocking on
// one while holding the other risks a cross-connection deadlock the
// ordinary single-connection MutexGate never has to consider.
func NewBackup(dst *Connection, dstName string, src *Connection, srcName string) (*Backup, error) {
	dstMu := dst.db.DBMutex()
	if !dstMu.TryEnter() {
		return nil, newCoreErr(KindThreadingViolation, "destination connection is busy in another goroutine")
	}
	srcMu := src.db.DBMutex()
	if !srcMu.TryEnter() {
		dstMu.Leave()
		return nil, newCoreErr(KindThreadingViolation, "source connection is busy in another goroutine")
	}
	defer srcMu.Leave()
	defer dstMu.Leave()

	h, err := engine.BackupInit(dst.db, dstName, src.db, srcName)
	if err != nil {
		return nil, fromEngine(err)
	}
	return &Backup{dst: dst, src: src, handle: h}, nil
}

// Step copies up to nPage pages (nPage < 0 copies everything remaining)
// under the destination connection's MutexGate, and returns done=true once
// Finish should be called. A Busy/Locked result is not retried; it is
// returned as an error.
func (b *Backup) Step(nPage int) (done bool, err error) {
	err = b.dst.withGate(func() error {
		rc := b.handle.Step(nPage)
		switch rc {
		case engine.Done:
			done = true
			return nil
		case engine.OK:
			return nil
		default:
			return fromEngine(&engine.EngineError{Code: rc})
		}
	})
	return
}

// Remaining mirrors sqlite3_backup_remaining.
func (b *Backup) Remaining() int { return b.handle.Remaining() }

// PageCount mirrors sqlite3_backup_pagecount.
func (b *Backup) PageCount() int { return b.handle.PageCount() }

// Finish mirrors sqlite3_backup_finish.
func (b *Backup) Finish() error {
	return b.dst.withGate(func() error {
		return fromEngine(b.handle.Finish())
	})
}

// Serialize mirrors sqlite3_serialize for the named schema ("main" unless
// additional databases are attached).
func (c *Connection) Serialize(schema string) (buf []byte, err error) {
	err = c.withGate(func() error {
		var serr error
		buf, serr = c.db.Serialize(schema)
		return fromEngine(serr)
	})
	return
}

// Deserialize mirrors sqlite3_deserialize, replacing the named schema's
// contents with buf (copied into an engine-owned, resizable buffer).
func (c *Connection) Deserialize(schema string, buf []byte) error {
	return c.withGate(func() error {
		return fromEngine(c.db.Deserialize(schema, buf))
	})
}
