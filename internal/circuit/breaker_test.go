package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("repo", Config{FailureThreshold: 3, Cooldown: time.Hour})
	boom := errors.New("backend down")

	for i := 0; i < 3; i++ {
		assert.True(t, b.Allow(), "call %d should pass", i)
		b.Record(boom)
	}
	assert.False(t, b.Allow())
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker("repo", Config{FailureThreshold: 3, Cooldown: time.Hour})
	boom := errors.New("flaky")

	b.Record(boom)
	b.Record(boom)
	b.Record(nil)
	b.Record(boom)
	b.Record(boom)
	assert.True(t, b.Allow(), "interleaved successes keep the breaker closed")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker("repo", Config{FailureThreshold: 1, Cooldown: 10 * time.Millisecond})
	b.Record(errors.New("down"))
	assert.False(t, b.Allow())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, b.Allow(), "cooldown elapsed, probe admitted")
	assert.False(t, b.Allow(), "only one probe at a time")

	b.Record(nil)
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := NewBreaker("repo", Config{FailureThreshold: 1, Cooldown: 10 * time.Millisecond})
	b.Record(errors.New("down"))
	time.Sleep(15 * time.Millisecond)
	assert.True(t, b.Allow())
	b.Record(errors.New("still down"))
	assert.False(t, b.Allow())
}
