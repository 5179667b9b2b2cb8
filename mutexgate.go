// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/dwa012/go-sqlite3/internal/engine"
)

// tableBackoff replays a fixed millisecond table rather than computing an
// exponential curve, matching the distilled contention schedule exactly:
// [1, 2, 5, 10, 15, 20, 25, 25, 25, 50, 50, 100] ms, ~328ms/12 attempts.
type tableBackoff struct {
	table []time.Duration
	i     int
}

var mutexGateTableMS = []int64{1, 2, 5, 10, 15, 20, 25, 25, 25, 50, 50, 100}

func newTableBackoff() *tableBackoff {
	t := make([]time.Duration, len(mutexGateTableMS))
	for i, ms := range mutexGateTableMS {
		t[i] = time.Duration(ms) * time.Millisecond
	}
	return &tableBackoff{table: t}
}

func (b *tableBackoff) Reset() { b.i = 0 }

func (b *tableBackoff) NextBackOff() time.Duration {
	if b.i >= len(b.table) {
		return backoff.Stop
	}
	d := b.table[b.i]
	b.i++
	return d
}

// MutexGate serializes every engine call against one connection's
// sqlite3_mutex, including re-entrant calls made from within a hook
// callback running on the same goroutine that already holds it. mu guards
// owner/depth bookkeeping; it is distinct from the underlying engine
// mutex, since the "is this a re-entrant hold" check-and-increment has to
// be atomic on the Go side before the engine mutex is even touched.
type MutexGate struct {
	db     *engine.DB
	logger *zap.Logger

	mu       sync.Mutex
	owner    goroutineToken
	depth    int
	validate func() error
}

func newMutexGate(db *engine.DB, logger *zap.Logger, validate func() error) *MutexGate {
	return &MutexGate{db: db, logger: logger, validate: validate}
}

// acquire tries the engine mutex without blocking, retrying on the fixed
// back-off table above; a goroutine that already holds the gate (re-entry
// from a hook callback) is admitted immediately and the hold is reference
// counted.
func (g *MutexGate) acquire(tok goroutineToken) error {
	g.mu.Lock()
	if g.depth > 0 && g.owner == tok {
		g.depth++
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	mu := g.db.DBMutex()
	bo := newTableBackoff()
	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		if !mu.TryEnter() {
			return errBusyRetry
		}
		return nil
	}, bo, func(err error, d time.Duration) {
		if g.logger != nil {
			g.logger.Debug("mutex gate contended, backing off",
				zap.Int("attempt", attempts), zap.Duration("backoff", d))
		}
	})
	if err != nil {
		return newCoreErr(KindThreadingViolation, "connection is busy in another goroutine after %d attempts", attempts)
	}

	if g.validate != nil {
		if verr := g.validate(); verr != nil {
			mu.Leave()
			return verr
		}
	}

	g.mu.Lock()
	g.owner = tok
	g.depth = 1
	g.mu.Unlock()
	return nil
}

// release unconditionally releases the gate on the last matching acquire
// for the current hold; callers use `defer gate.release(tok)` immediately
// after a successful acquire.
func (g *MutexGate) release(tok goroutineToken) {
	g.mu.Lock()
	if g.depth == 0 || g.owner != tok {
		g.mu.Unlock()
		return
	}
	g.depth--
	done := g.depth == 0
	if done {
		g.owner = 0
	}
	g.mu.Unlock()
	if done {
		g.db.DBMutex().Leave()
	}
}

var errBusyRetry = newCoreErr(KindThreadingViolation, "mutex try-acquire failed")

// withGate is the common "acquire, run, release" shape every engine-facing
// method on Connection/Cursor/Blob funnels through.
func (g *MutexGate) withGate(tok goroutineToken, fn func() error) error {
	if err := g.acquire(tok); err != nil {
		return err
	}
	defer g.release(tok)
	return fn()
}
