package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig pads rejected login responses so "no such admin" and "wrong
// password" take the same time on the wire
type TimingConfig struct {
	BaseDelay   time.Duration
	RandomDelay time.Duration // Upper bound of the jitter added to BaseDelay
}

// TimingDelay applies TimingConfig to a request
type TimingDelay struct {
	config TimingConfig
	sleep  func(time.Duration)
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
		sleep:  time.Sleep,
	}
}

// Target returns the padded duration for one rejection
func (td *TimingDelay) Target() time.Duration {
	target := td.config.BaseDelay
	if td.config.RandomDelay > 0 {
		if jitter, err := cryptoRandIntn(int64(td.config.RandomDelay)); err == nil {
			target += time.Duration(jitter)
		}
	}
	return target
}

// WaitFrom sleeps until at least Target has elapsed since start. Accepted logins return at once.
func (td *TimingDelay) WaitFrom(start time.Time, accepted bool) {
	if td == nil || accepted {
		return
	}
	if remaining := td.Target() - time.Since(start); remaining > 0 {
		td.sleep(remaining)
	}
}

// cryptoRandIntn returns a random number in [0, max) from crypto/rand
func cryptoRandIntn(max int64) (int64, error) {
	if max <= 0 {
		return 0, nil
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:]) % uint64(max)), nil
}
