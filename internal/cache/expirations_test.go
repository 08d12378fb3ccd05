package cache

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPurgeToCapacity_EvictsEarliestInserted(t *testing.T) {
	c, rec := newTestCache(t, Options[string, int]{Max: 2})

	require.NoError(t, c.Set("k1", 1, WithTTL(time.Second)))
	require.NoError(t, c.Set("k2", 2, WithTTL(time.Second)))
	require.NoError(t, c.Set("k3", 3, WithTTL(time.Second)))

	require.Equal(t, 2, c.Len())
	require.False(t, c.Has("k1"))
	require.Equal(t, []disposeCall{{Value: 1, Key: "k1", Reason: ReasonEvict}}, rec.snapshot())
}

func TestPurgeToCapacity_EvictsEarliestExpiring(t *testing.T) {
	c, rec := newTestCache(t, Options[string, int]{Max: 2})
	frozenClock(c)

	require.NoError(t, c.Set("b", 2, WithTTL(50*time.Minute)))
	require.NoError(t, c.Set("a", 1, WithTTL(10*time.Minute)))
	require.NoError(t, c.Set("c", 3, WithTTL(30*time.Minute)))

	require.False(t, c.Has("a"))
	require.True(t, c.Has("b"))
	require.True(t, c.Has("c"))
	require.Equal(t, []disposeCall{{Value: 1, Key: "a", Reason: ReasonEvict}}, rec.snapshot())
}

func TestPurgeToCapacity_WholeThenPartialBucket(t *testing.T) {
	c, rec := newTestCache(t, Options[string, int]{Max: 2})
	frozenClock(c)

	require.NoError(t, c.Set("x", 1, WithTTL(time.Minute)))
	require.NoError(t, c.Set("y", 2, WithTTL(2*time.Minute)))
	require.NoError(t, c.Set("z", 3, WithTTL(2*time.Minute)))
	require.Equal(t, []string{"y", "z"}, slices.Collect(c.Keys()))

	require.NoError(t, c.Set("w", 4, WithTTL(3*time.Minute)))
	require.Equal(t, []string{"z", "w"}, slices.Collect(c.Keys()))
	require.Equal(t, []disposeCall{
		{Value: 1, Key: "x", Reason: ReasonEvict},
		{Value: 2, Key: "y", Reason: ReasonEvict},
	}, rec.snapshot())
}

func TestPurgeToCapacity_InfiniteEntriesAreExempt(t *testing.T) {
	c, rec := newTestCache(t, Options[string, int]{Max: 1, TTL: NoExpiration})

	require.NoError(t, c.Set("a", 1))
	require.NoError(t, c.Set("b", 2))
	require.Equal(t, 2, c.Len())
	require.Empty(t, rec.snapshot())

	require.NoError(t, c.Set("f", 3, WithTTL(time.Minute)))
	require.Equal(t, 2, c.Len())
	require.False(t, c.Has("f"))
	require.Equal(t, []disposeCall{{Value: 3, Key: "f", Reason: ReasonEvict}}, rec.snapshot())
}

func TestPurgeToCapacity_OverwriteDoesNotEvict(t *testing.T) {
	c, rec := newTestCache(t, Options[string, int]{Max: 2, TTL: time.Minute})

	require.NoError(t, c.Set("a", 1))
	require.NoError(t, c.Set("b", 2))
	require.NoError(t, c.Set("a", 3))

	require.Equal(t, 2, c.Len())
	require.Equal(t, []disposeCall{{Value: 1, Key: "a", Reason: ReasonSet}}, rec.snapshot())
}

func TestPurgeStale_Manual(t *testing.T) {
	c, rec := newTestCache(t, Options[string, int]{})
	advance := frozenClock(c)

	require.NoError(t, c.Set("a", 1, WithTTL(time.Minute)))
	require.NoError(t, c.Set("b", 2, WithTTL(2*time.Minute)))
	require.NoError(t, c.Set("c", 3, WithTTL(NoExpiration)))

	advance(90 * time.Second)
	c.PurgeStale()

	require.Equal(t, []disposeCall{{Value: 1, Key: "a", Reason: ReasonStale}}, rec.snapshot())
	require.Equal(t, []string{"b", "c"}, slices.Collect(c.Keys()))

	advance(time.Hour)
	c.PurgeStale()
	require.Equal(t, []string{"c"}, slices.Collect(c.Keys()))
	_, armed := c.NextPurge()
	require.False(t, armed)
}

func TestTimer_PurgesStaleEntries(t *testing.T) {
	c, rec := newTestCache(t, Options[string, int]{TTL: 20 * time.Millisecond})

	require.NoError(t, c.Set("a", 1))
	require.NoError(t, c.Set("forever", 2, WithTTL(NoExpiration)))

	require.Eventually(t, func() bool {
		return !c.Has("a")
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, []disposeCall{{Value: 1, Key: "a", Reason: ReasonStale}}, rec.snapshot())
	require.True(t, c.Has("forever"))
	_, armed := c.NextPurge()
	require.False(t, armed)
}

func TestTimer_RearmsForEarlierExpiration(t *testing.T) {
	c, rec := newTestCache(t, Options[string, int]{})

	require.NoError(t, c.Set("late", 1, WithTTL(time.Hour)))
	lateAt, armed := c.NextPurge()
	require.True(t, armed)

	require.NoError(t, c.Set("soon", 2, WithTTL(20*time.Millisecond)))
	soonAt, armed := c.NextPurge()
	require.True(t, armed)
	require.True(t, soonAt.Before(lateAt))

	require.Eventually(t, func() bool {
		return !c.Has("soon")
	}, time.Second, 5*time.Millisecond)

	// After firing, the timer targets the remaining bucket.
	require.Eventually(t, func() bool {
		at, ok := c.NextPurge()
		return ok && at.Equal(lateAt)
	}, time.Second, 5*time.Millisecond)
	require.True(t, c.Has("late"))
	require.Equal(t, []disposeCall{{Value: 2, Key: "soon", Reason: ReasonStale}}, rec.snapshot())
}

func TestTimer_NeverMovesLater(t *testing.T) {
	c, _ := newTestCache(t, Options[string, int]{})

	require.NoError(t, c.Set("soon", 1, WithTTL(time.Minute)))
	soonAt, _ := c.NextPurge()

	require.NoError(t, c.Set("late", 2, WithTTL(time.Hour)))
	at, armed := c.NextPurge()
	require.True(t, armed)
	require.Equal(t, soonAt, at)

	// Removing the earliest bucket keeps the earlier target until it fires.
	require.True(t, c.Delete("soon"))
	at, armed = c.NextPurge()
	require.True(t, armed)
	require.Equal(t, soonAt, at)
}

func TestTimer_DisarmsWhenNoFiniteEntriesRemain(t *testing.T) {
	c, _ := newTestCache(t, Options[string, int]{TTL: time.Minute})

	require.NoError(t, c.Set("a", 1))
	require.NoError(t, c.Set("forever", 2, WithTTL(NoExpiration)))
	_, armed := c.NextPurge()
	require.True(t, armed)

	require.True(t, c.Delete("a"))
	_, armed = c.NextPurge()
	require.False(t, armed)

	require.True(t, c.Delete("forever"))
	require.Equal(t, 0, c.Len())
}

func TestTimer_PanickingDisposeIsRecovered(t *testing.T) {
	recovered := make(chan any, 1)
	c, err := New(Options[string, int]{
		TTL:     10 * time.Millisecond,
		Dispose: func(int, string, DisposeReason) { panic("dispose failed") },
		OnPanic: func(r any) {
			select {
			case recovered <- r:
			default:
			}
		},
	})
	require.NoError(t, err)

	require.NoError(t, c.Set("a", 1))
	require.NoError(t, c.Set("b", 2))

	select {
	case r := <-recovered:
		require.Equal(t, "dispose failed", r)
	case <-time.After(time.Second):
		t.Fatal("expected the timer to recover the dispose panic")
	}
	require.Eventually(t, func() bool {
		return c.Len() == 0
	}, time.Second, 5*time.Millisecond)
}
