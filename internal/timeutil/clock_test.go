package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, c.Since(start))

	var hooked time.Time
	c.OnSleep = func(now time.Time) { hooked = now }
	c.Sleep(time.Second)
	c.Sleep(-time.Second)

	assert.Equal(t, start.Add(2500*time.Millisecond), c.Now())
	assert.Equal(t, c.Now(), hooked)
	assert.Equal(t, []time.Duration{time.Second, -time.Second}, c.Sleeps())

	got := <-c.After(500 * time.Millisecond)
	assert.Equal(t, start.Add(3*time.Second), got)

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := c.Now()
	c.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, c.Since(before), time.Millisecond)
}
