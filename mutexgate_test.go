// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A goroutine that already holds the gate may re-acquire it (the hook
// re-entrancy case); the hold is reference counted, not double-locked.
func TestMutexGateReentrantAcquire(t *testing.T) {
	c := openMemory(t)
	tok := newGoroutineToken()

	require.NoError(t, c.gate.acquire(tok))
	defer c.gate.release(tok)

	require.NoError(t, c.gate.acquire(tok))
	c.gate.release(tok)

	assert.Equal(t, 1, c.gate.depth)
	assert.Equal(t, tok, c.gate.owner)
}

// release is a no-op for a goroutine that never held the gate.
func TestMutexGateReleaseWithoutAcquireIsNoop(t *testing.T) {
	c := openMemory(t)
	c.gate.release(newGoroutineToken())
	assert.Zero(t, c.gate.depth)
}

// Scenario F (contention): a goroutine holding the gate blocks a second
// goroutine's acquire until the first releases.
func TestMutexGateContentionResolves(t *testing.T) {
	c := openMemory(t)

	holderTok := newGoroutineToken()
	require.NoError(t, c.gate.acquire(holderTok))

	var wg sync.WaitGroup
	acquired := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		tok := newGoroutineToken()
		require.NoError(t, c.gate.acquire(tok))
		close(acquired)
		c.gate.release(tok)
	}()

	select {
	case <-acquired:
		t.Fatal("second goroutine acquired the gate while the first still held it")
	default:
	}

	c.gate.release(holderTok)
	wg.Wait()

	select {
	case <-acquired:
	default:
		t.Fatal("second goroutine never acquired the gate after release")
	}
}
