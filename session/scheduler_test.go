package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerFires(t *testing.T) {
	s := NewScheduler()
	fired := make(chan struct{})

	s.ScheduleWake(time.Now().Add(10*time.Millisecond), func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("wake never fired")
	}
}

func TestSchedulerPastInstantFiresImmediately(t *testing.T) {
	s := NewScheduler()
	fired := make(chan struct{})

	s.ScheduleWake(time.Now().Add(-time.Hour), func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("wake never fired")
	}
}

func TestSchedulerRescheduleReplaces(t *testing.T) {
	s := NewScheduler()
	var first, second atomic.Int32

	s.ScheduleWake(time.Now().Add(20*time.Millisecond), func() { first.Add(1) })
	s.ScheduleWake(time.Now().Add(30*time.Millisecond), func() { second.Add(1) })

	require.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, first.Load())
}

func TestSchedulerStop(t *testing.T) {
	s := NewScheduler()
	var fired atomic.Int32

	s.ScheduleWake(time.Now().Add(20*time.Millisecond), func() { fired.Add(1) })
	s.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
