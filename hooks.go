// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dwa012/go-sqlite3/internal/engine"
)

// Callback type aliases: the engine package already defines these in terms
// of its own raw Stmt/Value/Context wrappers, and there is nothing this
// layer needs to add beyond gate/registry plumbing, so the public API
// reuses them directly rather than wrapping each one a second time.
type (
	TraceFunc           = engine.TraceFunc
	ProgressFunc        = engine.ProgressFunc
	CommitFunc          = engine.CommitFunc
	RollbackFunc        = engine.RollbackFunc
	UpdateFunc          = engine.UpdateFunc
	WalFunc             = engine.WalFunc
	BusyFunc            = engine.BusyFunc
	AuthorizerFunc      = engine.AuthorizerFunc
	CollationNeededFunc = engine.CollationNeededFunc
	CollationFunc       = engine.CollationFunc
	AutovacuumFunc      = engine.AutovacuumPagesFunc
	ScalarFunc          = engine.ScalarFunc
	StepFunc            = engine.StepFunc
	FinalFunc           = engine.FinalFunc
	ValueFunc           = engine.ValueFunc
	InverseFunc         = engine.InverseFunc
)

// maxVectorEntries bounds the trace/progress multiplexed vectors; an
// implementation constant, not a contract, per the distilled spec's design
// notes.
const maxVectorEntries = 1024

// traceSeat is one registration in the multiplexed trace vector.
type traceSeat struct {
	id   any
	mask uint32
	fn   TraceFunc
}

// progressSeat is one registration in the multiplexed progress vector.
type progressSeat struct {
	id      any
	nOps    int
	fn      ProgressFunc
}

// HookRegistry owns every callback seat a Connection exposes: the two
// multiplexed vectors (trace, progress) and the single-seat,
// replace-on-register hooks (commit, rollback, update, WAL, busy,
// authorizer, collation-needed).
type HookRegistry struct {
	conn *Connection
	mu   sync.Mutex

	traces    []traceSeat
	progress  []progressSeat
}

func newHookRegistry(c *Connection) *HookRegistry {
	return &HookRegistry{conn: c}
}

// AddTrace registers fn for the given event mask, multiplexed alongside any
// other trace registrations on this connection; id is an opaque token (any
// comparable value, or a fresh uuid.New() if the caller has none handy)
// RemoveTrace uses to find this seat again.
func (h *HookRegistry) AddTrace(id any, mask uint32, fn TraceFunc) error {
	if id == nil {
		id = uuid.New()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.traces) >= maxVectorEntries {
		return newCoreErr(KindInvalidContext, "trace vector is full (%d entries)", maxVectorEntries)
	}
	h.traces = append(h.traces, traceSeat{id: id, mask: mask, fn: fn})
	return h.installTraceLocked()
}

// RemoveTrace drops the seat registered under id, if any.
func (h *HookRegistry) RemoveTrace(id any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.traces {
		if isSameID(s.id, id) {
			h.traces = append(h.traces[:i], h.traces[i+1:]...)
			return h.installTraceLocked()
		}
	}
	return nil
}

func (h *HookRegistry) installTraceLocked() error {
	var combined uint32
	for _, s := range h.traces {
		combined |= s.mask
	}
	seats := h.traces
	return fromEngine(h.conn.db.TraceV2(combined, func(code uint32, stmt *engine.Stmt, sql string, nanos int64) {
		for _, s := range seats {
			if s.mask&code != 0 && s.fn != nil {
				s.fn(code, stmt, sql, nanos)
			}
		}
	}))
}

// AddProgress registers fn to run at least once every nOps vdbe
// instructions; the engine's seat fires at the minimum interval across all
// registrations, and the registered fns run in order on each firing until
// one returns true; the fns after it are not called on that firing.
func (h *HookRegistry) AddProgress(id any, nOps int, fn ProgressFunc) error {
	if id == nil {
		id = uuid.New()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.progress) >= maxVectorEntries {
		return newCoreErr(KindInvalidContext, "progress vector is full (%d entries)", maxVectorEntries)
	}
	h.progress = append(h.progress, progressSeat{id: id, nOps: nOps, fn: fn})
	return h.installProgressLocked()
}

// RemoveProgress drops the seat registered under id, if any.
func (h *HookRegistry) RemoveProgress(id any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.progress {
		if isSameID(s.id, id) {
			h.progress = append(h.progress[:i], h.progress[i+1:]...)
			return h.installProgressLocked()
		}
	}
	return nil
}

func (h *HookRegistry) installProgressLocked() error {
	if len(h.progress) == 0 {
		return fromEngine(h.conn.db.SetProgressHandler(0, nil))
	}
	least := h.progress[0].nOps
	for _, s := range h.progress[1:] {
		if s.nOps < least {
			least = s.nOps
		}
	}
	seats := h.progress
	return fromEngine(h.conn.db.SetProgressHandler(least, func() bool {
		for _, s := range seats {
			if s.fn != nil && s.fn() {
				return true
			}
		}
		return false
	}))
}

// isSameID compares two hook ids, defaulting to "never equal" for
// non-comparable dynamic types (a slice or map id, say) rather than
// panicking on ==.
func isSameID(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// SetCommitHook installs the single-seat commit hook; fn == nil uninstalls.
func (h *HookRegistry) SetCommitHook(fn CommitFunc) { h.conn.db.SetCommitHook(fn) }

// SetRollbackHook installs the single-seat rollback hook; fn == nil
// uninstalls.
func (h *HookRegistry) SetRollbackHook(fn RollbackFunc) { h.conn.db.SetRollbackHook(fn) }

// SetUpdateHook installs the single-seat update hook; fn == nil uninstalls.
func (h *HookRegistry) SetUpdateHook(fn UpdateFunc) { h.conn.db.SetUpdateHook(fn) }

// SetWalHook installs the single-seat WAL hook; fn == nil uninstalls.
func (h *HookRegistry) SetWalHook(fn WalFunc) { h.conn.db.SetWalHook(fn) }

// SetBusyHandler installs the single-seat busy handler; fn == nil
// uninstalls (typically in favor of BusyTimeout).
func (h *HookRegistry) SetBusyHandler(fn BusyFunc) { h.conn.db.SetBusyHandler(fn) }

// SetAuthorizer installs the single-seat authorizer callback; fn == nil
// uninstalls.
func (h *HookRegistry) SetAuthorizer(fn AuthorizerFunc) { h.conn.db.SetAuthorizer(fn) }

// SetCollationNeeded installs the single-seat collation-needed callback;
// fn == nil uninstalls.
func (h *HookRegistry) SetCollationNeeded(fn CollationNeededFunc) { h.conn.db.SetCollationNeeded(fn) }

// SetAutovacuumHook installs the single-seat auto-vacuum page-count hook;
// fn == nil uninstalls. Unlike the other single-seat hooks, the engine call
// can itself fail, so the error is returned rather than dropped.
func (h *HookRegistry) SetAutovacuumHook(fn AutovacuumFunc) error {
	return fromEngine(h.conn.db.SetAutovacuumPages(fn))
}

// Hooks exposes the connection's HookRegistry.
func (c *Connection) Hooks() *HookRegistry { return c.hooks }

// CreateCollation mirrors sqlite3_create_collation_v2.
func (c *Connection) CreateCollation(name string, fn CollationFunc) error {
	return c.withGate(func() error {
		return fromEngine(c.db.CreateCollation(name, fn))
	})
}

// CreateScalarFunction registers a scalar SQL function.
func (c *Connection) CreateScalarFunction(name string, nArg int, deterministic bool, fn ScalarFunc) error {
	flags := 0
	if deterministic {
		flags |= engine.FuncDeterministic
	}
	return c.withGate(func() error {
		return fromEngine(c.db.CreateScalar(name, nArg, flags, fn))
	})
}

// CreateAggregateFunction registers an aggregate SQL function.
func (c *Connection) CreateAggregateFunction(name string, nArg int, step StepFunc, final FinalFunc) error {
	return c.withGate(func() error {
		return fromEngine(c.db.CreateAggregate(name, nArg, 0, step, final))
	})
}

// CreateWindowFunction registers a window SQL function.
func (c *Connection) CreateWindowFunction(name string, nArg int, step StepFunc, final FinalFunc, value ValueFunc, inverse InverseFunc) error {
	return c.withGate(func() error {
		return fromEngine(c.db.CreateWindow(name, nArg, 0, step, final, value, inverse))
	})
}
