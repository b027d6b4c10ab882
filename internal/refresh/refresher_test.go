package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/tracking-backend-go/internal/clock"
)

func TestRefreshRecordsCompletion(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	var calls atomic.Int32
	r := New(time.Minute, fake, func(context.Context) { calls.Add(1) })

	assert.True(t, r.LastRefresh().IsZero())
	require.True(t, r.Refresh(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, fake.Now(), r.LastRefresh())
}

func TestRefreshSkipsWhileBusy(t *testing.T) {
	fake := clock.NewFake(time.Now())
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	r := New(time.Minute, fake, func(context.Context) {
		once.Do(func() { close(started) })
		<-release
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Refresh(context.Background())
	}()
	<-started

	assert.False(t, r.Refresh(context.Background()), "overlapping pass must be skipped, not queued")
	assert.Equal(t, uint64(1), r.Skipped())

	close(release)
	wg.Wait()
	assert.True(t, r.Refresh(context.Background()), "refresh works again once the pass finished")
}

func TestStartTicksOnInterval(t *testing.T) {
	fake := clock.NewFake(time.Now())
	done := make(chan struct{}, 8)
	r := New(time.Minute, fake, func(context.Context) { done <- struct{}{} })

	r.Start(context.Background())
	defer r.Stop()

	tickers := fake.Tickers()
	require.Len(t, tickers, 1)
	assert.Equal(t, time.Minute, tickers[0].Interval())

	tickers[0].Tick(fake.Now())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tick did not trigger a refresh pass")
	}

	tickers[0].Tick(fake.Now())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second tick did not trigger a refresh pass")
	}
}

func TestStopHaltsLoop(t *testing.T) {
	fake := clock.NewFake(time.Now())
	r := New(time.Minute, fake, func(context.Context) {})

	r.Start(context.Background())
	ticker := fake.Tickers()[0]
	r.Stop()

	assert.Eventually(t, ticker.Stopped, 2*time.Second, 10*time.Millisecond,
		"stopping the refresher releases its ticker")
}

func TestStartTwiceIsNoOp(t *testing.T) {
	fake := clock.NewFake(time.Now())
	r := New(time.Minute, fake, func(context.Context) {})

	r.Start(context.Background())
	r.Start(context.Background())
	defer r.Stop()

	assert.Len(t, fake.Tickers(), 1)
}

func TestZeroIntervalFallsBack(t *testing.T) {
	fake := clock.NewFake(time.Now())
	r := New(0, fake, func(context.Context) {})
	assert.Equal(t, DefaultInterval, r.interval)
}
