// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/dwa012/go-sqlite3/internal/deplist"
	"github.com/dwa012/go-sqlite3/internal/engine"
)

// OpenOptions configures Open. The zero value opens an on-disk/URI
// filename read-write, creating it if absent, with the default statement
// cache size.
type OpenOptions struct {
	Filename           string
	Flags              int
	VFS                string
	StatementCacheSize int
	Logger             *zap.Logger
	// Unraisable receives errors this package cannot otherwise report: a
	// dependent's failed close during Close, a failed ROLLBACK TO/RELEASE
	// after a Savepoint fn has already failed, or a forced close's failure
	// from a GC finalizer. Hook callbacks have no error return, so no hook
	// error reaches it. Defaults to logging at error level through Logger.
	Unraisable func(error)
}

func (o OpenOptions) normalize() OpenOptions {
	if o.Flags == 0 {
		o.Flags = engine.OpenReadWrite | engine.OpenCreate | engine.OpenURI
	}
	if o.StatementCacheSize <= 0 {
		o.StatementCacheSize = defaultStatementCacheSize
	}
	if o.StatementCacheSize > 512 {
		o.StatementCacheSize = 512
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Connection owns one open database handle plus everything that hangs off
// it: the mutex gate, the statement cache, the dependents list, and hook
// registrations. The zero value is not usable; construct with Open.
type Connection struct {
	db      *engine.DB
	gate    *MutexGate
	cache   *StatementCache
	hooks   *HookRegistry
	logger  *zap.Logger
	unraise func(error)

	cursors deplist.List[Cursor, *Cursor]
	blobs   deplist.List[Blob, *Blob]

	pid            int
	savepointDepth int32
	closed         atomic.Bool
	initOnce       sync.Once
	async          *AsyncDispatch
}

// Open mirrors sqlite3_open_v2 plus this package's ambient setup (mutex
// gate, statement cache, hook registry, logger, GC finalizer).
func Open(opts OpenOptions) (*Connection, error) {
	opts = opts.normalize()

	db, err := engine.OpenV2(opts.Filename, opts.Flags, opts.VFS)
	if err != nil {
		return nil, fromEngine(err)
	}

	c := &Connection{
		db:     db,
		logger: opts.Logger,
		pid:    os.Getpid(),
	}
	c.unraise = opts.Unraisable
	if c.unraise == nil {
		c.unraise = func(err error) {
			c.logger.Error("unraisable", zap.Error(err))
		}
	}
	c.gate = newMutexGate(db, c.logger, c.validate)
	c.cache = newStatementCache(db, opts.StatementCacheSize)
	c.hooks = newHookRegistry(c)

	c.initOnce.Do(func() {
		_ = db.ExtendedResultCodes(true)
	})

	runtime.SetFinalizer(c, func(c *Connection) {
		if err := c.forceClose(); err != nil {
			c.unraise(err)
		}
	})

	return c, nil
}

func (c *Connection) validate() error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if pid := os.Getpid(); pid != c.pid {
		return ErrForkingViolation
	}
	return nil
}

// withGate acquires the connection's mutex gate for the calling goroutine,
// validating state, running fn, and releasing unconditionally.
func (c *Connection) withGate(fn func() error) error {
	tok := newGoroutineToken()
	return c.gate.withGate(tok, fn)
}

// Close drains every live dependent (forcing each closed), finalizes the
// statement cache, and closes the engine handle. Calling Close twice is a
// no-op.
func (c *Connection) Close() error {
	if c.closed.Load() {
		return nil
	}
	// Dependents are drained while the connection still validates as open:
	// each one's Close runs through the mutex gate.
	for _, err := range c.cursors.CloseAll() {
		c.unraise(err)
	}
	for _, err := range c.blobs.CloseAll() {
		c.unraise(err)
	}
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(c, nil)

	if c.async != nil {
		c.async.shutdown()
	}
	c.cache.Close()

	return fromEngine(c.db.Close())
}

// forceClose is Close's GC-finalizer path: it never surfaces an error to a
// caller (finalizers can't meaningfully propagate one) but still returns
// one for the finalizer to route through Unraisable.
func (c *Connection) forceClose() error {
	if c.closed.Load() {
		return nil
	}
	return c.Close()
}

// Changes mirrors sqlite3_changes64.
func (c *Connection) Changes() (n int64, err error) {
	err = c.withGate(func() error {
		n = c.db.Changes()
		return nil
	})
	return
}

// TotalChanges mirrors sqlite3_total_changes64.
func (c *Connection) TotalChanges() (n int64, err error) {
	err = c.withGate(func() error {
		n = c.db.TotalChanges()
		return nil
	})
	return
}

// LastInsertRowID mirrors sqlite3_last_insert_rowid.
func (c *Connection) LastInsertRowID() (id int64, err error) {
	err = c.withGate(func() error {
		id = c.db.LastInsertRowID()
		return nil
	})
	return
}

// Autocommit mirrors sqlite3_get_autocommit.
func (c *Connection) Autocommit() (bool, error) {
	var v bool
	err := c.withGate(func() error {
		v = c.db.Autocommit()
		return nil
	})
	return v, err
}

// Interrupt mirrors sqlite3_interrupt; safe to call from any goroutine
// without acquiring the mutex gate, matching the engine's own contract.
func (c *Connection) Interrupt() {
	c.db.Interrupt()
}

// BusyTimeout mirrors sqlite3_busy_timeout, an alternative to
// SetBusyHandler for the common fixed-timeout case.
func (c *Connection) BusyTimeout(ms int) error {
	return c.withGate(func() error {
		return fromEngine(c.db.BusyTimeout(ms))
	})
}

// Limit mirrors sqlite3_limit; pass newVal < 0 to query without changing.
func (c *Connection) Limit(id, newVal int) (int, error) {
	var v int
	err := c.withGate(func() error {
		v = c.db.Limit(id, newVal)
		return nil
	})
	return v, err
}

// Savepoint runs fn inside a named SAVEPOINT, releasing it on a nil
// return and rolling back to it otherwise; it is the enter/exit-shaped
// analogue of a transaction context manager and nests (savepointDepth
// tracks nesting so concurrent callers on the same connection, serialized
// by the gate, get distinct savepoint names).
func (c *Connection) Savepoint(fn func() error) (err error) {
	depth := atomic.AddInt32(&c.savepointDepth, 1)
	name := savepointName(depth)
	defer atomic.AddInt32(&c.savepointDepth, -1)

	if err = c.exec("SAVEPOINT " + name); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = c.exec("ROLLBACK TO " + name)
			_ = c.exec("RELEASE " + name)
			panic(r)
		}
	}()

	if err = fn(); err != nil {
		if rerr := c.exec("ROLLBACK TO " + name); rerr != nil {
			c.unraise(rerr)
		}
		if rerr := c.exec("RELEASE " + name); rerr != nil {
			c.unraise(rerr)
		}
		return err
	}
	return c.exec("RELEASE " + name)
}

func savepointName(depth int32) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	if depth <= 0 {
		depth = 1
	}
	b := []byte{'s', 'p'}
	n := depth
	for n > 0 {
		b = append(b, alphabet[n%int32(len(alphabet))])
		n /= int32(len(alphabet))
	}
	return string(b)
}

// exec runs a parameterless statement to completion, used internally for
// savepoint bookkeeping.
func (c *Connection) exec(sql string) error {
	cur, err := c.Prepare(sql, NoBindings)
	if err != nil {
		return err
	}
	defer cur.Close()
	for {
		ok, err := cur.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// FileControl mirrors sqlite3_file_control for the narrow VFS boundary.
func (c *Connection) FileControl(dbName string, op int, arg unsafe.Pointer) error {
	return c.withGate(func() error {
		return fromEngine(c.db.FileControl(dbName, op, arg))
	})
}
