package services_test

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/adminguard/internal/models"
	"github.com/BradenHooton/adminguard/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTracker(clock *services.FakeClock) *services.LockoutTracker {
	return services.NewLockoutTracker(services.DefaultLockoutConfig(), clock.Now, quietLogger())
}

var trackerEpoch = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func TestLockoutTracker_ThresholdLocks(t *testing.T) {
	clock := services.NewFakeClock(trackerEpoch)
	tracker := newTracker(clock)

	msg, locked := tracker.RecordFailure()
	assert.False(t, locked)
	assert.Equal(t, "Invalid credentials. 2 attempts remaining.", msg)

	msg, locked = tracker.RecordFailure()
	assert.False(t, locked)
	assert.Equal(t, "Invalid credentials. 1 attempts remaining.", msg)
	assert.False(t, tracker.IsLocked(), "threshold-1 failures never lock")

	msg, locked = tracker.RecordFailure()
	assert.True(t, locked)
	assert.Contains(t, msg, "locked")
	assert.Contains(t, msg, "15 minutes")
	assert.True(t, tracker.IsLocked())

	until := tracker.LockedUntil()
	require.NotNil(t, until)
	assert.Equal(t, trackerEpoch.Add(15*time.Minute), *until)
}

func TestLockoutTracker_LockExpiresWithClock(t *testing.T) {
	clock := services.NewFakeClock(trackerEpoch)
	tracker := newTracker(clock)
	for i := 0; i < 3; i++ {
		tracker.RecordFailure()
	}
	require.True(t, tracker.IsLocked())

	clock.Advance(14 * time.Minute)
	assert.True(t, tracker.IsLocked())
	assert.Contains(t, tracker.LockedMessage(), "1 minute")

	clock.Advance(time.Minute)
	assert.False(t, tracker.IsLocked(), "lockout ends exactly at lockoutUntil")
	assert.Nil(t, tracker.LockedUntil())
	assert.Empty(t, tracker.LockedMessage())
}

func TestLockoutTracker_Reset(t *testing.T) {
	clock := services.NewFakeClock(trackerEpoch)
	tracker := newTracker(clock)
	for i := 0; i < 3; i++ {
		tracker.RecordFailure()
	}

	tracker.Reset()

	state := tracker.State()
	assert.Equal(t, 0, state.FailedAttempts)
	assert.Nil(t, state.LockoutUntil)
	assert.False(t, tracker.IsLocked())
}

func TestLockoutTracker_EndSessionKeepsLockout(t *testing.T) {
	clock := services.NewFakeClock(trackerEpoch)
	tracker := newTracker(clock)
	tracker.BeginSession("sess", trackerEpoch)
	for i := 0; i < 3; i++ {
		tracker.RecordFailure()
	}

	tracker.EndSession()

	state := tracker.State()
	assert.Empty(t, state.SessionID)
	assert.True(t, state.SessionStartTime.IsZero())
	assert.Equal(t, 0, state.FailedAttempts)
	assert.True(t, tracker.IsLocked())
}

func TestLockoutTracker_RateLimitWindow(t *testing.T) {
	clock := services.NewFakeClock(trackerEpoch)
	tracker := newTracker(clock)

	for i := 0; i < 4; i++ {
		tracker.RecordAttempt(models.LoginAttempt{Timestamp: clock.Now(), Success: i%2 == 0})
		clock.Advance(30 * time.Second)
	}
	assert.False(t, tracker.IsRateLimited(), "four attempts stay under the ceiling")

	tracker.RecordAttempt(models.LoginAttempt{Timestamp: clock.Now()})
	assert.True(t, tracker.IsRateLimited(), "fifth attempt in the window reaches the ceiling")

	// The first attempt leaves the trailing window after five minutes
	clock.Advance(3 * time.Minute)
	assert.False(t, tracker.IsRateLimited())
}

func TestLockoutTracker_HistoryIsBounded(t *testing.T) {
	clock := services.NewFakeClock(trackerEpoch)
	tracker := newTracker(clock)

	for i := 0; i < 25; i++ {
		tracker.RecordAttempt(models.LoginAttempt{Timestamp: clock.Now(), IPAddress: fmt.Sprintf("ip-%d", i)})
		clock.Advance(time.Hour)
	}

	all := tracker.RecentAttempts(100)
	require.Len(t, all, 20)
	assert.Equal(t, "ip-24", all[0].IPAddress, "newest first")
	assert.Equal(t, "ip-5", all[19].IPAddress, "oldest entries truncated from the front")

	recent := tracker.RecentAttempts(3)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"ip-24", "ip-23", "ip-22"},
		[]string{recent[0].IPAddress, recent[1].IPAddress, recent[2].IPAddress})
}

func TestLockoutTracker_StateIsACopy(t *testing.T) {
	clock := services.NewFakeClock(trackerEpoch)
	tracker := newTracker(clock)
	for i := 0; i < 3; i++ {
		tracker.RecordFailure()
	}

	state := tracker.State()
	*state.LockoutUntil = trackerEpoch.Add(-time.Hour)

	assert.True(t, tracker.IsLocked(), "mutating the copy must not lift the lockout")
}

func TestLockoutTracker_CustomThreshold(t *testing.T) {
	cfg := services.DefaultLockoutConfig()
	cfg.MaxFailedAttempts = 5
	cfg.LockoutDuration = 30 * time.Second
	tracker := services.NewLockoutTracker(cfg, services.NewFakeClock(trackerEpoch).Now, quietLogger())

	var msg string
	var locked bool
	for i := 0; i < 5; i++ {
		msg, locked = tracker.RecordFailure()
	}

	assert.True(t, locked)
	assert.Contains(t, msg, "30 seconds")
}
