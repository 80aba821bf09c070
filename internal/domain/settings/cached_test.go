package settings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type countingSource struct {
	calls atomic.Int32
	mode  string
	err   error
	delay time.Duration
}

func (s *countingSource) Load(context.Context) (Settings, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return Settings{}, s.err
	}
	st := Defaults()
	st.EnforcementMode = s.mode
	return st, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestCachedStore_ServesWithinTTL(t *testing.T) {
	src := &countingSource{mode: "advisory"}
	clock := &fakeClock{t: time.Unix(0, 0)}
	store := NewCachedStore(src, time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		s, err := store.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "advisory", s.EnforcementMode)
	}
	assert.Equal(t, int32(1), src.calls.Load())

	clock.Advance(2 * time.Minute)
	_, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCachedStore_ConcurrentRefreshCollapses(t *testing.T) {
	src := &countingSource{mode: "strict", delay: 50 * time.Millisecond}
	store := NewCachedStore(src, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Get(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCachedStore_FailedRefreshKeepsStale(t *testing.T) {
	src := &countingSource{mode: "advisory"}
	clock := &fakeClock{t: time.Unix(0, 0)}
	store := NewCachedStore(src, time.Minute, clock.Now)

	_, err := store.Get(context.Background())
	require.NoError(t, err)

	src.err = errors.New("file vanished")
	clock.Advance(time.Hour)
	s, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "advisory", s.EnforcementMode)
}

func TestCachedStore_NoSnapshotFallsBackToDefaults(t *testing.T) {
	store := NewCachedStore(&countingSource{err: errors.New("boom")}, 0, nil)
	s, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestNormalize(t *testing.T) {
	s := Settings{
		EnforcementMode: " ADVISORY ",
		MaxContextChars: 10,
		Decoding:        Decoding{ConstrainedTemperature: 0.9},
		Tolerances:      Tolerances{Count: -1},
		Disclaimers:     Disclaimers{Footer: "no placeholder"},
	}.Normalize()

	assert.Equal(t, "advisory", s.EnforcementMode)
	assert.Equal(t, minContextChars, s.MaxContextChars)
	assert.Equal(t, float32(0.01), s.Decoding.ConstrainedTemperature)
	assert.Equal(t, 0.0, s.Tolerances.Count)
	assert.Equal(t, 0.01, s.Tolerances.Currency)
	assert.Equal(t, Defaults().Disclaimers.Footer, s.Disclaimers.Footer)

	assert.Equal(t, "strict", Settings{EnforcementMode: "bypassed"}.Normalize().EnforcementMode)
}
