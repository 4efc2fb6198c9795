package evolution_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lumenqi/lumen-core/pkg/evolution"
)

func TestScheduler_RejectsReentrantRun(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f, engine := newFixture(t, func(context.Context) error {
		close(entered)
		<-release
		return nil
	})
	s := evolution.NewScheduler(engine, time.Hour, nil)
	assert.Equal(t, evolution.StateIdle, s.State())

	done := make(chan error, 1)
	go func() {
		_, err := s.TryRun(context.Background(), evolution.TriggerForced)
		done <- err
	}()

	<-entered
	assert.Equal(t, evolution.StateRunning, s.State())
	_, err := s.TryRun(context.Background(), evolution.TriggerForced)
	assert.ErrorIs(t, err, evolution.ErrCycleInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, evolution.StateIdle, s.State())
	assert.Equal(t, 1, f.estimator.Snapshot().SelfModificationCount)
}

func TestScheduler_ReturnsToIdleAfterPanic(t *testing.T) {
	_, engine := newFixture(t, func(context.Context) error { panic("boom") })
	s := evolution.NewScheduler(engine, time.Hour, nil)

	_, err := s.TryRun(context.Background(), evolution.TriggerForced)
	require.Error(t, err)
	assert.Equal(t, evolution.StateIdle, s.State())
}

func TestScheduler_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	var cycles atomic.Int32
	_, engine := newFixture(t, func(context.Context) error {
		cycles.Add(1)
		return nil
	})
	s := evolution.NewScheduler(engine, 10*time.Millisecond, nil)
	s.Start()
	s.Start()

	require.Eventually(t, func() bool { return cycles.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	stopped := cycles.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, cycles.Load(), "no cycles after Stop")
	assert.Equal(t, evolution.StateIdle, s.State())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)
	_, engine := newFixture(t, nil)
	evolution.NewScheduler(engine, 0, nil).Stop()
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", evolution.StateIdle.String())
	assert.Equal(t, "running", evolution.StateRunning.String())
	assert.Equal(t, "unknown", evolution.State(7).String())
}
