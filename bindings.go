// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"github.com/dwa012/go-sqlite3/internal/engine"
)

// Bindings is the host-facing shape of a parameter set: either a positional
// slice or a named map. Exactly one of Positional/Named is populated; the
// zero value (both nil) binds nothing, the sentinel for a parameterless
// statement.
type Bindings struct {
	Positional []any
	Named      map[string]any
}

// NoBindings is the explicit empty binding set.
var NoBindings = Bindings{}

// bindAll applies bindings to a freshly reset statement, returning a typed
// Bindings error (not a bare engine error) when the count or name does not
// line up with the statement's parameter slots, per the taxonomy's
// KindBindings leaf.
func bindAll(stmt *engine.Stmt, b Bindings) error {
	n := stmt.BindParameterCount()
	switch {
	case b.Named != nil:
		for i := 1; i <= n; i++ {
			name := stmt.BindParameterName(i)
			if name == "" {
				continue
			}
			// Parameter names carry their sigil (":foo", "@foo", "$foo");
			// hosts address them without it.
			key := name[1:]
			v, ok := b.Named[key]
			if !ok {
				return newCoreErr(KindBindings, "no value supplied for named parameter %q", name)
			}
			if err := bindValue(stmt, i, v); err != nil {
				return err
			}
		}
	case b.Positional != nil:
		if len(b.Positional) != n {
			return newCoreErr(KindBindings, "expected %d bindings, got %d", n, len(b.Positional))
		}
		for i, v := range b.Positional {
			if err := bindValue(stmt, i+1, v); err != nil {
				return err
			}
		}
	default:
		if n != 0 {
			return newCoreErr(KindBindings, "expected %d bindings, got 0", n)
		}
	}
	return nil
}

func bindValue(stmt *engine.Stmt, i int, v any) error {
	switch val := v.(type) {
	case nil:
		return fromEngine(stmt.BindNull(i))
	case int:
		return fromEngine(stmt.BindInt64(i, int64(val)))
	case int32:
		return fromEngine(stmt.BindInt64(i, int64(val)))
	case int64:
		return fromEngine(stmt.BindInt64(i, val))
	case uint:
		return fromEngine(stmt.BindInt64(i, int64(val)))
	case uint64:
		return fromEngine(stmt.BindInt64(i, int64(val)))
	case float32:
		return fromEngine(stmt.BindDouble(i, float64(val)))
	case float64:
		return fromEngine(stmt.BindDouble(i, val))
	case bool:
		n := int64(0)
		if val {
			n = 1
		}
		return fromEngine(stmt.BindInt64(i, n))
	case string:
		return fromEngine(stmt.BindText(i, val))
	case []byte:
		return fromEngine(stmt.BindBlob(i, val))
	case ZeroBlob:
		return fromEngine(stmt.BindZeroBlob(i, int64(val)))
	case Pointer:
		return fromEngine(stmt.BindPointer(i, val.Value))
	default:
		return newCoreErr(KindBindings, "unsupported binding type %T at parameter %d", v, i)
	}
}

// ZeroBlob is the sentinel binding type for sqlite3_bind_zeroblob64: "reserve
// N bytes of storage, to be filled in later via a Blob handle."
type ZeroBlob int64

// Pointer binds an arbitrary host-side Go value as an opaque SQL parameter
// (sqlite3_bind_pointer). SQLite never inspects or converts it; it exists
// only so a scalar/aggregate function compiled against the same pointer
// type tag can recover Value unchanged via the matching argument's
// engine.Value, a pattern used to thread a caller-owned object (a prepared
// regex, an open handle) through SQL without a row round-trip.
type Pointer struct{ Value any }

// ValuePointer recovers the Go value bound to a UDF argument via a Pointer
// binding on the calling side, for scalar/aggregate/window functions that
// expect one; ok is false for any other argument type.
func ValuePointer(v engine.Value) (value any, ok bool) { return engine.ValuePointer(v) }

// columnValue converts one result column into the dynamically typed Go
// value the distilled spec's Binding Converter produces on the read side.
func columnValue(stmt *engine.Stmt, i int) any {
	switch stmt.ColumnType(i) {
	case engine.TypeNull:
		return nil
	case engine.TypeInteger:
		return stmt.ColumnInt64(i)
	case engine.TypeFloat:
		return stmt.ColumnDouble(i)
	case engine.TypeText:
		return stmt.ColumnText(i)
	case engine.TypeBlob:
		return stmt.ColumnBlob(i)
	default:
		return nil
	}
}
