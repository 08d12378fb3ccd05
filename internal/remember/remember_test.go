package remember

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRemember_ComputesOnce(t *testing.T) {
	m, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(m.Clear)

	var calls atomic.Int32
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		v, err := Remember(context.Background(), m, "key", time.Minute, fetch)
		require.NoError(t, err)
		require.Equal(t, "value", v)
	}
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, 1, m.Len())

	require.True(t, m.Forget("key"))
	_, err = Remember(context.Background(), m, "key", time.Minute, fetch)
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestRemember_ErrorsAreNotCached(t *testing.T) {
	m, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(m.Clear)

	boom := errors.New("boom")
	_, err = Remember(context.Background(), m, "key", 0, func(context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, m.Len())

	v, err := Remember(context.Background(), m, "key", 0, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestRemember_ExpiresAfterTTL(t *testing.T) {
	m, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(m.Clear)

	var calls atomic.Int32
	fetch := func(context.Context) (int32, error) {
		return calls.Add(1), nil
	}

	v, err := Remember(context.Background(), m, "key", 20*time.Millisecond, fetch)
	require.NoError(t, err)
	require.EqualValues(t, 1, v)

	require.Eventually(t, func() bool {
		return m.Len() == 0
	}, time.Second, 5*time.Millisecond)

	v, err = Remember(context.Background(), m, "key", 20*time.Millisecond, fetch)
	require.NoError(t, err)
	require.EqualValues(t, 2, v)
}

func TestRemember_CoalescesConcurrentMisses(t *testing.T) {
	m, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(m.Clear)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Remember(context.Background(), m, "key", time.Minute, fetch)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	// Give the other callers time to join the in-flight computation.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
	for _, v := range results {
		require.Equal(t, 7, v)
	}
}

func TestRemember_CancelledStarterDoesNotFailWaiters(t *testing.T) {
	m, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(m.Clear)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 9, nil
	}

	starterCtx, cancel := context.WithCancel(context.Background())
	starterDone := make(chan error, 1)
	go func() {
		_, err := Remember(starterCtx, m, "key", time.Minute, fetch)
		starterDone <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	waiterDone := make(chan int, 1)
	go func() {
		v, err := Remember(context.Background(), m, "key", time.Minute, fetch)
		if err == nil {
			waiterDone <- v
		}
		close(waiterDone)
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(release)

	require.NoError(t, <-starterDone)
	require.Equal(t, 9, <-waiterDone)
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, 1, m.Len())
}

func TestRemember_StaleResultDoesNotOverwriteNewer(t *testing.T) {
	m, err := New(Options{NoCoalesce: true})
	require.NoError(t, err)
	t.Cleanup(m.Clear)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan string)
	go func() {
		v, err := Remember(context.Background(), m, "key", time.Minute, func(context.Context) (string, error) {
			close(started)
			<-release
			return "old", nil
		})
		require.NoError(t, err)
		done <- v
	}()
	<-started

	v, err := Remember(context.Background(), m, "key", time.Minute, func(context.Context) (string, error) {
		return "new", nil
	})
	require.NoError(t, err)
	require.Equal(t, "new", v)

	close(release)
	require.Equal(t, "old", <-done)

	v, err = Remember(context.Background(), m, "key", time.Minute, func(context.Context) (string, error) {
		return "unused", nil
	})
	require.NoError(t, err)
	require.Equal(t, "new", v)
}

func TestCached_KeysByArgument(t *testing.T) {
	m, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(m.Clear)

	type query struct {
		User string
		Page int
	}
	var calls atomic.Int32
	lookup := Cached(m, "lookup", func(_ context.Context, q query) (string, error) {
		calls.Add(1)
		return q.User, nil
	}, CacheOptions{TTL: time.Minute})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		v, err := lookup(ctx, query{User: "alice", Page: 1})
		require.NoError(t, err)
		require.Equal(t, "alice", v)
	}
	v, err := lookup(ctx, query{User: "bob", Page: 1})
	require.NoError(t, err)
	require.Equal(t, "bob", v)

	require.EqualValues(t, 2, calls.Load())
	require.Equal(t, 2, m.Len())
}

func TestCached_UnencodableArgument(t *testing.T) {
	m, err := New(Options{})
	require.NoError(t, err)

	fn := Cached(m, "ch", func(context.Context, chan int) (int, error) {
		return 1, nil
	}, CacheOptions{})
	_, err = fn(context.Background(), make(chan int))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	require.Same(t, Default(), Default())
}
