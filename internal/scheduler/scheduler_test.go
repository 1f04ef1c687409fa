package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/animesync/internal/domain"
)

type fakeRunner struct {
	runs    atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
	hold    time.Duration
	block   bool

	mu      sync.Mutex
	lastErr error
}

func (f *fakeRunner) RunCycle(ctx context.Context) error {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	f.runs.Add(1)
	if f.block {
		<-ctx.Done()
		f.mu.Lock()
		f.lastErr = ctx.Err()
		f.mu.Unlock()
		return ctx.Err()
	}
	if f.hold > 0 {
		select {
		case <-time.After(f.hold):
		case <-ctx.Done():
		}
	}
	return nil
}

func TestDebounceCoalesces(t *testing.T) {
	r := &fakeRunner{}
	s := New(zerolog.Nop(), r, 50*time.Millisecond, time.Hour)
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return r.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), r.runs.Load())
}

func TestStopCancelsPendingDebounce(t *testing.T) {
	r := &fakeRunner{}
	s := New(zerolog.Nop(), r, 30*time.Millisecond, time.Hour)
	defer s.Close()

	s.Trigger()
	s.Stop()
	s.Stop()

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(0), r.runs.Load())
}

func TestStartFiresImmediatelyAndPeriodically(t *testing.T) {
	r := &fakeRunner{}
	s := New(zerolog.Nop(), r, 10*time.Millisecond, 40*time.Millisecond)
	defer s.Close()

	s.Start()
	s.Start()
	assert.True(t, s.Running())

	require.Eventually(t, func() bool { return r.runs.Load() >= 1 }, 30*time.Millisecond*10, 2*time.Millisecond)
	require.Eventually(t, func() bool { return r.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	stopped := r.runs.Load()
	time.Sleep(150 * time.Millisecond)
	assert.LessOrEqual(t, r.runs.Load(), stopped+1)
}

func TestCyclesNeverOverlap(t *testing.T) {
	r := &fakeRunner{hold: 20 * time.Millisecond}
	s := New(zerolog.Nop(), r, 5*time.Millisecond, 7*time.Millisecond)
	defer s.Close()

	s.Start()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Trigger()
			_ = s.ForceSync(context.Background())
		}()
	}
	wg.Wait()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, r.runs.Load(), int32(4))
	assert.Equal(t, int32(1), r.maxSeen.Load())
}

func TestStopCancelsInFlightCycle(t *testing.T) {
	r := &fakeRunner{block: true}
	s := New(zerolog.Nop(), r, time.Hour, time.Hour)
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.ForceSync(context.Background()) }()

	require.Eventually(t, func() bool { return r.active.Load() == 1 }, time.Second, time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("in-flight cycle was not canceled")
	}

	// a fresh generation accepts new work
	r.block = false
	require.NoError(t, s.ForceSync(context.Background()))
}

func TestDispatch(t *testing.T) {
	r := &fakeRunner{}
	s := New(zerolog.Nop(), r, 10*time.Millisecond, time.Hour)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Dispatch(ctx, domain.MsgForceSync))
	assert.Equal(t, int32(1), r.runs.Load())

	require.NoError(t, s.Dispatch(ctx, domain.MsgSyncQueue))
	require.Eventually(t, func() bool { return r.runs.Load() == 2 }, time.Second, 2*time.Millisecond)

	require.NoError(t, s.Dispatch(ctx, domain.MsgStartSync))
	assert.True(t, s.Running())
	require.NoError(t, s.Dispatch(ctx, domain.MsgStopSync))
	assert.False(t, s.Running())

	err := s.Dispatch(ctx, domain.ControlMessage("reboot"))
	assert.ErrorIs(t, err, domain.ErrUnknownMessage)
}

func TestClose(t *testing.T) {
	r := &fakeRunner{}
	s := New(zerolog.Nop(), r, time.Hour, time.Hour)
	s.Start()
	s.Close()
	s.Close()

	assert.ErrorIs(t, s.ForceSync(context.Background()), ErrClosed)
	s.Trigger()
	s.Start()
	assert.False(t, s.Running())
}
