package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warrenhq/warren/internal/identity"
)

func testState(t *testing.T) *State {
	t.Helper()
	return New(identity.DeriveFromName("rooms", "lobby"), nil)
}

func TestBlockConcurrencyWhileSerializes(t *testing.T) {
	s := testState(t)

	var inside, maxInside int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.BlockConcurrencyWhile(context.Background(), func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside, "critical sections overlapped")
}

func TestBlockConcurrencyWhileIndependentObjects(t *testing.T) {
	a := New(identity.DeriveFromName("rooms", "a"), nil)
	b := New(identity.DeriveFromName("rooms", "b"), nil)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = a.BlockConcurrencyWhile(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan struct{})
	go func() {
		_ = b.BlockConcurrencyWhile(context.Background(), func(context.Context) error {
			return nil
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("b's critical section blocked behind a's gate")
	}
	close(release)
}

func TestBlockConcurrencyWhileCancelledContext(t *testing.T) {
	s := testState(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.BlockConcurrencyWhile(ctx, func(context.Context) error {
		t.Fatal("fn must not run under a cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitUntilDrain(t *testing.T) {
	s := testState(t)

	var mu sync.Mutex
	finished := 0
	for i := 0; i < 8; i++ {
		s.WaitUntil(func() {
			time.Sleep(time.Millisecond)
			mu.Lock()
			finished++
			mu.Unlock()
		})
	}
	require.NoError(t, s.Drain(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 8, finished)
}

func TestDrainTimesOut(t *testing.T) {
	s := testState(t)

	release := make(chan struct{})
	s.WaitUntil(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.Drain(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
	require.NoError(t, s.Drain(context.Background()))
}
