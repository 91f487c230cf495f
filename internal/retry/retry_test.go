package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// instantTimer fires immediately and keeps the durations it was started with.
type instantTimer struct {
	delays []time.Duration
	c      chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	t.delays = append(t.delays, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Time{}
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time {
	return t.c
}

var errFlaky = errors.New("flaky")

func TestDelay(t *testing.T) {
	p := BoundedPolicy(3)
	require.Equal(t, time.Duration(0), p.Delay(0))
	for n := 1; n <= 10; n++ {
		require.Equal(t, time.Second*time.Duration(1<<(n-1)), p.Delay(n))
	}

	p.InitialDelay = 250 * time.Millisecond
	p.MaxDelay = time.Second
	require.Equal(t, 250*time.Millisecond, p.Delay(1))
	require.Equal(t, 500*time.Millisecond, p.Delay(2))
	require.Equal(t, time.Second, p.Delay(3))
	require.Equal(t, time.Second, p.Delay(30))

	unclamped := UnboundedPolicy()
	require.Greater(t, unclamped.Delay(200), time.Duration(0))
}

func TestBoundedGivesUp(t *testing.T) {
	timer := &instantTimer{}
	p := BoundedPolicy(3)
	p.timer = timer

	calls := 0
	var notified []int
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		require.Equal(t, calls, attempt)
		calls++
		return errFlaky
	}, func(err error, retry int, delay time.Duration) {
		require.ErrorIs(t, err, errFlaky)
		require.Equal(t, p.Delay(retry), delay)
		notified = append(notified, retry)
	})

	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 4, calls)
	require.Equal(t, []int{1, 2, 3}, notified)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, timer.delays)
}

func TestBoundedSucceeds(t *testing.T) {
	timer := &instantTimer{}
	p := BoundedPolicy(3)
	p.timer = timer

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return errFlaky
		}
		return nil
	}, nil)

	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.delays)
}

func TestZeroRetries(t *testing.T) {
	timer := &instantTimer{}
	p := BoundedPolicy(0)
	p.timer = timer

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errFlaky
	}, nil)
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 1, calls)
	require.Empty(t, timer.delays)
}

func TestUnboundedKeepsGoing(t *testing.T) {
	timer := &instantTimer{}
	p := UnboundedPolicy()
	p.timer = timer

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 20 {
			return errFlaky
		}
		return nil
	}, nil)

	require.NoError(t, err)
	require.Equal(t, 20, calls)
	require.Len(t, timer.delays, 19)
	for i, d := range timer.delays {
		require.Equal(t, p.Delay(i+1), d)
	}
}

func TestPermanent(t *testing.T) {
	timer := &instantTimer{}
	p := UnboundedPolicy()
	p.timer = timer

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return Permanent(errFlaky)
	}, nil)

	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 1, calls)
	require.Nil(t, Permanent(nil))
}

func TestContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := UnboundedPolicy()
	p.InitialDelay = time.Hour

	calls := 0
	done := make(chan error)
	go func() {
		done <- p.Do(ctx, func(ctx context.Context, attempt int) error {
			calls++
			return errFlaky
		}, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not stop after cancel")
	}
}

func TestModeString(t *testing.T) {
	require.Equal(t, "bounded", Bounded.String())
	require.Equal(t, "unbounded", Unbounded.String())
}
