package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	c := RealClock{}

	before := time.Now()
	got := c.Now()
	after := time.Now()

	assert.False(t, got.Before(before), "clock.Now() should not return time before actual time.Now()")
	assert.False(t, got.After(after), "clock.Now() should not return time after actual time.Now()")
}

func TestMock_Now(t *testing.T) {
	start := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)
	c := NewMock(start)

	assert.Equal(t, start, c.Now())

	// Multiple calls return the same time
	assert.Equal(t, start, c.Now())
	assert.Equal(t, start, c.Now())
}

func TestMock_Advance(t *testing.T) {
	start := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)
	c := NewMock(start)

	got := c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), got)
	assert.Equal(t, got, c.Now())
}

func TestMock_Set(t *testing.T) {
	c := NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	target := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)

	c.Set(target)
	assert.Equal(t, target, c.Now())
}
