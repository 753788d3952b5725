package background

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_EveryRunsUntilCancelled(t *testing.T) {
	s := NewScheduler()
	var runs int32

	s.Every("tick", 5*time.Millisecond, func() { atomic.AddInt32(&runs, 1) })
	assert.True(t, s.Active("tick"))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, time.Millisecond)

	s.Cancel("tick")
	assert.False(t, s.Active("tick"))

	settled := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	// At most one in-flight tick may land after Cancel returns
	assert.LessOrEqual(t, atomic.LoadInt32(&runs), settled+1)
}

func TestScheduler_ReRegisteringReplacesTask(t *testing.T) {
	s := NewScheduler()
	var first, second int32

	s.Every("tick", 5*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	s.Every("tick", 5*time.Millisecond, func() { atomic.AddInt32(&second, 1) })

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&second) >= 3 }, time.Second, time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&first), int32(1), "replaced ticker must not keep running")
	assert.Equal(t, []string{"tick"}, s.Names())
	s.CancelAll()
}

func TestScheduler_AfterFiresOnce(t *testing.T) {
	s := NewScheduler()
	var runs int32

	s.After("once", 5*time.Millisecond, func() { atomic.AddInt32(&runs, 1) })

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return !s.Active("once") }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
}

func TestScheduler_AfterRearmPostpones(t *testing.T) {
	s := NewScheduler()
	var runs int32

	s.After("idle", 40*time.Millisecond, func() { atomic.AddInt32(&runs, 1) })
	time.Sleep(20 * time.Millisecond)
	s.After("idle", 40*time.Millisecond, func() { atomic.AddInt32(&runs, 1) })
	time.Sleep(30 * time.Millisecond)

	assert.EqualValues(t, 0, atomic.LoadInt32(&runs), "first timer was replaced")
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, time.Second, time.Millisecond)
}

func TestScheduler_CancelIsIdempotent(t *testing.T) {
	s := NewScheduler()
	s.After("idle", time.Hour, func() {})

	assert.NotPanics(t, func() {
		s.Cancel("idle")
		s.Cancel("idle")
		s.Cancel("never-registered")
		s.CancelAll()
		s.CancelAll()
	})
	assert.Empty(t, s.Names())
}

func TestScheduler_CallbackMayCancelItsOwnScheduler(t *testing.T) {
	s := NewScheduler()
	done := make(chan struct{})

	s.Every("countdown", 5*time.Millisecond, func() {
		s.CancelAll()
		select {
		case <-done:
		default:
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not run")
	}
	assert.False(t, s.Active("countdown"))
}
