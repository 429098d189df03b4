package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStart_InvalidSpec(t *testing.T) {
	s := New("not a cron spec", func(context.Context) error { return nil }, zap.NewNop())
	assert.Error(t, s.Start(context.Background()))
}

func TestStart_RunOnStart(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := New("@every 1h", func(context.Context) error {
		ran <- struct{}{}
		return errors.New("shard failures are logged, not fatal")
	}, zap.NewNop(), RunOnStart())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestStart_NoImmediateRunByDefault(t *testing.T) {
	var calls atomic.Int32
	s := New(DefaultSpec, func(context.Context) error {
		calls.Add(1)
		return nil
	}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	assert.Zero(t, calls.Load())
}

func TestRun_SkipsCancelledContext(t *testing.T) {
	var calls atomic.Int32
	s := New(DefaultSpec, func(context.Context) error {
		calls.Add(1)
		return nil
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.run(ctx)
	assert.Zero(t, calls.Load())

	s.run(context.Background())
	assert.EqualValues(t, 1, calls.Load())
}
