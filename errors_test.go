// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwa012/go-sqlite3/internal/engine"
)

// fromEngine(nil) must produce a genuinely nil error interface, not a
// typed-nil *Error wrapped in a non-nil interface value.
func TestFromEngineNilIsGenuinelyNil(t *testing.T) {
	err := fromEngine(nil)
	assert.Nil(t, err)
	assert.NoError(t, err)
}

func TestFromEngineWrapsEngineError(t *testing.T) {
	ee := &engine.EngineError{Code: engine.Constraint, Message: "UNIQUE constraint failed"}
	err := fromEngine(ee)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, ErrConstraint)
}

// Wrapping an engine error records its message under the calling
// goroutine's token, so LastErrMsg mirrors SQLite's sqlite3_errmsg.
func TestFromEngineRecordsLastErrMsg(t *testing.T) {
	ee := &engine.EngineError{Code: engine.Constraint, Message: "UNIQUE constraint failed: t.x"}
	_ = fromEngine(ee)
	assert.Equal(t, "UNIQUE constraint failed: t.x", LastErrMsg(newGoroutineToken()))
}

func TestLastErrMsgEmptyForUnknownToken(t *testing.T) {
	assert.Equal(t, "", LastErrMsg(goroutineToken(-1)))
}

func TestParseGoroutineID(t *testing.T) {
	stack := []byte("goroutine 17 [running]:\nmain.foo(...)\n")
	id := parseGoroutineID(stack)
	assert.EqualValues(t, 17, id)
}

func TestParseGoroutineIDMalformed(t *testing.T) {
	assert.EqualValues(t, 0, parseGoroutineID([]byte("not a stack trace")))
	assert.EqualValues(t, 0, parseGoroutineID([]byte("goroutine abc [running]:")))
}

func TestNewGoroutineTokenStable(t *testing.T) {
	a := newGoroutineToken()
	b := newGoroutineToken()
	assert.Equal(t, a, b)
	assert.NotZero(t, a)
}
