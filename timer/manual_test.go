package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_FiresInDeadlineOrder(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var fired []string

	m.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	m.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	m.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })

	m.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a"}, fired)
	assert.Equal(t, 2, m.Pending())

	m.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, time.Unix(0, 0).Add(6500*time.Millisecond), m.Now())
}

func TestManual_StopCancelsPendingTask(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	called := false

	h := m.AfterFunc(time.Second, func() { called = true })
	require.True(t, h.Stop())
	assert.False(t, h.Stop(), "second Stop should report already stopped")

	m.Advance(2 * time.Second)
	assert.False(t, called)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_StopAfterFire(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	h := m.AfterFunc(time.Second, func() {})

	m.Advance(time.Second)
	assert.False(t, h.Stop())
}

func TestManual_CallbackCanReschedule(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	count := 0

	var tick func()
	tick = func() {
		count++
		if count < 3 {
			m.AfterFunc(time.Second, tick)
		}
	}
	m.AfterFunc(time.Second, tick)

	m.Advance(10 * time.Second)
	assert.Equal(t, 3, count)
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
}
