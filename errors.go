// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/dwa012/go-sqlite3/internal/engine"
)

// Kind classifies an Error beyond its raw engine result code, covering
// situations the engine itself never reports (re-entrant misuse, a closed
// handle reused, an async worker's owner goroutine called from elsewhere).
type Kind string

// Core-specific kinds, with no corresponding engine result code.
const (
	KindThreadingViolation  Kind = "threading_violation"
	KindIncompleteExecution Kind = "incomplete_execution"
	KindBindings            Kind = "bindings"
	KindExecutionComplete   Kind = "execution_complete"
	KindTraceAbort          Kind = "trace_abort"
	KindExtensionLoading    Kind = "extension_loading"
	KindConnectionNotClosed Kind = "connection_not_closed"
	KindConnectionClosed    Kind = "connection_closed"
	KindCursorClosed        Kind = "cursor_closed"
	KindVFSNotImplemented   Kind = "vfs_not_implemented"
	KindVFSFileClosed       Kind = "vfs_file_closed"
	KindForkingViolation    Kind = "forking_violation"
	KindNoFTS5              Kind = "no_fts5"
	KindInvalidContext      Kind = "invalid_context"

	// kindEngine marks an Error built from a raw engine result code rather
	// than a synthesized core condition.
	kindEngine Kind = "engine"
)

// Error is the root of the taxonomy: every error this package returns from
// an engine-touching call, or synthesizes for a core-specific condition, is
// an *Error. Use errors.Is against the Err* sentinels below, or errors.As
// to recover Code/ExtendedCode/Offset.
type Error struct {
	Kind         Kind
	Code         engine.ResultCode
	ExtendedCode engine.ResultCode
	Message      string
	Offset       int

	cause error
}

func (e *Error) Error() string {
	if e.Kind != kindEngine {
		return fmt.Sprintf("sqlite3: %s: %s", e.Kind, e.Message)
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("sqlite3: %s (code %d/%d, offset %d)", e.Message, e.Code, e.ExtendedCode, e.Offset)
	}
	return fmt.Sprintf("sqlite3: %s (code %d/%d)", e.Message, e.Code, e.ExtendedCode)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is one of the sentinel leaves below that shares
// this error's Kind (for core-specific kinds) or Code (for engine leaves).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != kindEngine {
		return e.Kind == t.Kind
	}
	return e.Kind == kindEngine && e.Code == t.Code
}

func newEngineErr(code, extended engine.ResultCode, msg string, offset int) *Error {
	recordLastErrMsg(newGoroutineToken(), msg)
	return &Error{
		Kind:         kindEngine,
		Code:         code,
		ExtendedCode: extended,
		Message:      msg,
		Offset:       offset,
		cause:        errors.New(msg),
	}
}

func newCoreErr(kind Kind, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: kind, Offset: -1, Message: msg, cause: errors.New(msg)}
}

// fromEngine converts an *engine.EngineError into the taxonomy, wrapping it
// so the original engine error remains reachable via errors.Unwrap and the
// construction site is preserved in the stack trace pkg/errors attaches.
func fromEngine(err error) error {
	if err == nil {
		return nil
	}
	ee, ok := err.(*engine.EngineError)
	if !ok {
		e := newCoreErr(KindInvalidContext, "%s", err.Error())
		e.cause = errors.WithStack(err)
		return e
	}
	// Extended result codes are enabled at Open, so ee.Code may carry
	// extended bits; Code keeps the primary code (its low 8 bits).
	code, ext := ee.Code, ee.ExtendedCode
	if ext == 0 {
		ext = code
	}
	e := newEngineErr(code&0xff, ext, ee.Message, ee.Offset)
	e.cause = errors.WithStack(ee)
	return e
}

// Sentinel leaves for errors.Is, one per engine result code this package
// surfaces and one per core-specific Kind.
var (
	ErrSQL          = &Error{Kind: kindEngine, Code: engine.Error}
	ErrMismatch     = &Error{Kind: kindEngine, Code: engine.Mismatch}
	ErrNotFound     = &Error{Kind: kindEngine, Code: engine.NotFound}
	ErrInternal     = &Error{Kind: kindEngine, Code: engine.Internal}
	ErrProtocol     = &Error{Kind: kindEngine, Code: engine.Protocol}
	ErrMisuse       = &Error{Kind: kindEngine, Code: engine.Misuse}
	ErrRange        = &Error{Kind: kindEngine, Code: engine.Range}
	ErrPermissions  = &Error{Kind: kindEngine, Code: engine.Perm}
	ErrReadOnly     = &Error{Kind: kindEngine, Code: engine.ReadOnly}
	ErrCantOpen     = &Error{Kind: kindEngine, Code: engine.CantOpen}
	ErrAuth         = &Error{Kind: kindEngine, Code: engine.Auth}
	ErrAbort        = &Error{Kind: kindEngine, Code: engine.Abort}
	ErrBusy         = &Error{Kind: kindEngine, Code: engine.Busy}
	ErrLocked       = &Error{Kind: kindEngine, Code: engine.Locked}
	ErrInterrupt    = &Error{Kind: kindEngine, Code: engine.Interrupt}
	ErrSchemaChange = &Error{Kind: kindEngine, Code: engine.Schema}
	ErrConstraint   = &Error{Kind: kindEngine, Code: engine.Constraint}
	ErrNoMem        = &Error{Kind: kindEngine, Code: engine.NoMem}
	ErrIO           = &Error{Kind: kindEngine, Code: engine.IOErr}
	ErrCorrupt      = &Error{Kind: kindEngine, Code: engine.Corrupt}
	ErrFull         = &Error{Kind: kindEngine, Code: engine.Full}
	ErrTooBig       = &Error{Kind: kindEngine, Code: engine.TooBig}
	ErrNoLFS        = &Error{Kind: kindEngine, Code: engine.NoLFS}
	ErrEmpty        = &Error{Kind: kindEngine, Code: engine.Empty}
	ErrFormat       = &Error{Kind: kindEngine, Code: engine.Format}
	ErrNotADB       = &Error{Kind: kindEngine, Code: engine.NotADB}

	ErrThreadingViolation  = &Error{Kind: KindThreadingViolation}
	ErrIncompleteExecution = &Error{Kind: KindIncompleteExecution}
	ErrBindings            = &Error{Kind: KindBindings}
	ErrExecutionComplete   = &Error{Kind: KindExecutionComplete}
	ErrTraceAbort          = &Error{Kind: KindTraceAbort}
	ErrExtensionLoading    = &Error{Kind: KindExtensionLoading}
	ErrConnectionNotClosed = &Error{Kind: KindConnectionNotClosed}
	ErrConnectionClosed    = &Error{Kind: KindConnectionClosed}
	ErrCursorClosed        = &Error{Kind: KindCursorClosed}
	ErrVFSNotImplemented   = &Error{Kind: KindVFSNotImplemented}
	ErrVFSFileClosed       = &Error{Kind: KindVFSFileClosed}
	ErrForkingViolation    = &Error{Kind: KindForkingViolation}
	ErrNoFTS5              = &Error{Kind: KindNoFTS5}
	ErrInvalidContext      = &Error{Kind: KindInvalidContext}
)

// goroutineToken stands in for SQLite's notion of "the calling thread" when
// this package needs to key per-goroutine state (the last-error-message
// slot, the AsyncDispatch owner check). Go has no stable, cheap thread or
// goroutine id exposed to user code, so it is recovered the same way every
// recursive-mutex and goroutine-local-storage workaround in the Go
// ecosystem does: parse the "goroutine N [running]:" header off
// runtime.Stack. No corpus example or ecosystem library covers this
// (a dedicated one would itself just wrap the same stack-parse trick),
// so it stays standard-library; see DESIGN.md.
type goroutineToken = int64

func newGoroutineToken() goroutineToken {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGoroutineID(buf[:n])
}

func parseGoroutineID(stack []byte) int64 {
	const prefix = "goroutine "
	if !bytes.HasPrefix(stack, []byte(prefix)) {
		return 0
	}
	rest := stack[len(prefix):]
	i := bytes.IndexByte(rest, ' ')
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseInt(string(rest[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// lastErrMsg mirrors SQLite's "last errmsg" slot at the granularity the
// distilled spec calls for: one message per goroutine that has issued a
// call, not one per connection. It exists for parity with that model; the
// MutexGate already serializes access to a single connection's engine
// errmsg, so two goroutines can never race on reading it.
var lastErrMsg sync.Map // map[goroutineToken]string

func recordLastErrMsg(tok goroutineToken, msg string) {
	lastErrMsg.Store(tok, msg)
}

// LastErrMsg returns the most recent engine error message recorded for the
// calling goroutine's token, or "" if none.
func LastErrMsg(tok goroutineToken) string {
	if v, ok := lastErrMsg.Load(tok); ok {
		return v.(string)
	}
	return ""
}
