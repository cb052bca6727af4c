package agentbridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_StableIdentity(t *testing.T) {
	e := NewExecutor(nil)
	defer e.Close()

	id := e.ID()
	require.NotEmpty(t, id)

	for i := 0; i < 3; i++ {
		require.NoError(t, e.Do("noop", time.Second, func(context.Context) error { return nil }))
		assert.Equal(t, id, e.ID())
	}

	other := NewExecutor(nil)
	defer other.Close()
	assert.NotEqual(t, id, other.ID())
}

func TestExecutor_RunsJobsInOrder(t *testing.T) {
	e := NewExecutor(nil)
	defer e.Close()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, e.Do("append", time.Second, func(context.Context) error {
			order = append(order, i)
			return nil
		}))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestExecutor_PropagatesError(t *testing.T) {
	e := NewExecutor(nil)
	defer e.Close()

	boom := errors.New("boom")
	err := e.Do("failing", time.Second, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestExecutor_Timeout(t *testing.T) {
	e := NewExecutor(nil)
	defer e.Close()

	release := make(chan struct{})
	err := e.Do("slow", 20*time.Millisecond, func(context.Context) error {
		<-release
		return nil
	})
	close(release)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "slow", te.Op)
	assert.Equal(t, 20*time.Millisecond, te.Timeout)
}

func TestExecutor_TimedOutJobStillCompletes(t *testing.T) {
	e := NewExecutor(nil)
	defer e.Close()

	done := make(chan struct{})
	release := make(chan struct{})

	err := e.Do("slow", 10*time.Millisecond, func(context.Context) error {
		<-release
		close(done)
		return nil
	})
	require.Error(t, err)

	// The loop is still busy; release the job and confirm it finishes.
	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("abandoned job never completed")
	}
}

func TestExecutor_PanicRecovered(t *testing.T) {
	e := NewExecutor(nil)
	defer e.Close()

	err := e.Do("panicking", time.Second, func(context.Context) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// The loop survived the panic.
	require.NoError(t, e.Do("noop", time.Second, func(context.Context) error { return nil }))
}

func TestExecutor_ClosedRejectsWork(t *testing.T) {
	e := NewExecutor(nil)
	e.Close()
	e.Close() // idempotent

	err := e.Do("noop", time.Second, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrExecutorClosed)
}

func TestExecutor_ConcurrentSubmittersSerialize(t *testing.T) {
	e := NewExecutor(nil)
	defer e.Close()

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Do("probe", time.Second, func(context.Context) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}
