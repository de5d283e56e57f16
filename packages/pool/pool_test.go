package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitBoundsConcurrency(t *testing.T) {
	p := New(2)
	defer p.Close()

	var active, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), func(context.Context) {
			defer wg.Done()
			n := atomic.AddInt64(&active, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&active, -1)
		})
		require.NoError(t, err)
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
	assert.Equal(t, int64(0), atomic.LoadInt64(&active))
}

func TestSubmitAfterClose(t *testing.T) {
	p := New(1)
	p.Close()

	err := p.Submit(context.Background(), func(context.Context) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseIdempotent(t *testing.T) {
	p := New(1)
	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(context.Context) {
		time.Sleep(5 * time.Millisecond)
		close(done)
	}))

	p.Close()
	p.Close()

	select {
	case <-done:
	default:
		t.Fatal("Close returned before in-flight work finished")
	}
}

func TestSubmitCancelledWhileFull(t *testing.T) {
	p := New(1)
	defer p.Close()

	release := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(context.Context) {
		<-release
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := p.Submit(ctx, func(context.Context) {})
	assert.Error(t, err)

	close(release)
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Capacity())
	assert.Equal(t, 7, New(7).Capacity())
}

func TestWaitDrains(t *testing.T) {
	p := New(3)
	var done int64
	for i := 0; i < 6; i++ {
		require.NoError(t, p.Submit(context.Background(), func(context.Context) {
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt64(&done, 1)
		}))
	}
	p.Wait()
	assert.Equal(t, int64(6), atomic.LoadInt64(&done))
	assert.Equal(t, 0, p.InFlight())
}

func TestRateLimitAdmits(t *testing.T) {
	p := New(4, WithRateLimit(1000))
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(context.Background(), func(context.Context) {
			wg.Done()
		}))
	}
	wg.Wait()
}
