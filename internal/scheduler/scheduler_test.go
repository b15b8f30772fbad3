package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingCompleter struct {
	mu      sync.Mutex
	expired []uint
	sweeps  int
}

func (c *recordingCompleter) CompleteExpired(_ context.Context, examID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired = append(c.expired, examID)
	return nil
}

func (c *recordingCompleter) CompleteOverdue(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweeps++
	return nil
}

func (c *recordingCompleter) expiredIDs() []uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint(nil), c.expired...)
}

func (c *recordingCompleter) sweepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweeps
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, cond())
}

func TestArmFiresAtDeadline(t *testing.T) {
	completer := &recordingCompleter{}
	sched := New("@every 1h", zerolog.Nop())
	sched.SetCompleter(completer)
	defer sched.Stop()

	sched.Arm(42, time.Now().Add(20*time.Millisecond))

	waitFor(t, func() bool { return len(completer.expiredIDs()) == 1 })
	require.Equal(t, []uint{42}, completer.expiredIDs())
}

func TestArmPastDeadlineFiresImmediately(t *testing.T) {
	completer := &recordingCompleter{}
	sched := New("@every 1h", zerolog.Nop())
	sched.SetCompleter(completer)
	defer sched.Stop()

	sched.Arm(7, time.Now().Add(-time.Minute))

	waitFor(t, func() bool { return len(completer.expiredIDs()) == 1 })
}

func TestCancelDropsTimer(t *testing.T) {
	completer := &recordingCompleter{}
	sched := New("@every 1h", zerolog.Nop())
	sched.SetCompleter(completer)
	defer sched.Stop()

	sched.Arm(42, time.Now().Add(30*time.Millisecond))
	sched.Cancel(42)

	time.Sleep(100 * time.Millisecond)
	require.Empty(t, completer.expiredIDs())
}

func TestRearmReplacesTimer(t *testing.T) {
	completer := &recordingCompleter{}
	sched := New("@every 1h", zerolog.Nop())
	sched.SetCompleter(completer)
	defer sched.Stop()

	sched.Arm(42, time.Now().Add(20*time.Millisecond))
	sched.Arm(42, time.Now().Add(50*time.Millisecond))

	waitFor(t, func() bool { return len(completer.expiredIDs()) == 1 })
	time.Sleep(100 * time.Millisecond)
	// The earlier timer was replaced, not stacked.
	require.Len(t, completer.expiredIDs(), 1)
}

func TestStartRunsImmediateSweep(t *testing.T) {
	completer := &recordingCompleter{}
	sched := New("@every 1h", zerolog.Nop())
	sched.SetCompleter(completer)

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	require.Equal(t, 1, completer.sweepCount())
}

func TestStartRejectsBadSweepSpec(t *testing.T) {
	sched := New("not a cron spec", zerolog.Nop())
	sched.SetCompleter(&recordingCompleter{})
	defer sched.Stop()

	require.Error(t, sched.Start(context.Background()))
}

func TestFireWithoutCompleterIsSafe(t *testing.T) {
	sched := New("@every 1h", zerolog.Nop())
	defer sched.Stop()

	sched.Arm(1, time.Now())
	time.Sleep(50 * time.Millisecond)
}
