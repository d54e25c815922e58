package audio

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_DeliversEventsInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []StatusEvent
	d := NewDispatcher(func(ev StatusEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	}, testLogger())

	d.NotifyAlarmStatus(true)
	d.NotifyVolume(30)
	d.NotifyWhiteNoiseStatus(true)
	d.Close()

	require.Len(t, got, 3)
	assert.Equal(t, EventAlarmStatus, got[0].Kind)
	assert.True(t, got[0].Playing)
	assert.Equal(t, EventVolume, got[1].Kind)
	assert.Equal(t, 30, got[1].Volume)
	assert.Equal(t, EventWhiteNoiseStatus, got[2].Kind)

	for _, ev := range got {
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.At.IsZero())
	}
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	unblock := make(chan struct{})
	var delivered int
	var mu sync.Mutex
	d := NewDispatcher(func(StatusEvent) {
		<-unblock
		mu.Lock()
		delivered++
		mu.Unlock()
	}, testLogger())

	// With the sink blocked, only the queue (plus the event already in the
	// sink) can be retained; the rest must be dropped, never blocking us.
	sent := defaultQueueSize + 10
	done := make(chan struct{})
	go func() {
		for i := 0; i < sent; i++ {
			d.NotifyVolume(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notify blocked on a full queue")
	}

	close(unblock)
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Less(t, delivered, sent, "some events must have been dropped")
	assert.GreaterOrEqual(t, delivered, defaultQueueSize)
}

func TestDispatcher_RecoversFromSinkPanic(t *testing.T) {
	var mu sync.Mutex
	var got []StatusEvent
	d := NewDispatcher(func(ev StatusEvent) {
		if ev.Kind == EventAlarmStatus {
			panic("transport gone")
		}
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	}, testLogger())

	d.NotifyAlarmStatus(true)
	d.NotifyVolume(42)
	d.Close()

	require.Len(t, got, 1, "events after a sink panic must still be delivered")
	assert.Equal(t, EventVolume, got[0].Kind)
}

func TestDispatcher_CloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(nil, testLogger())
	d.NotifyVolume(1)
	d.Close()
	d.Close()
}

func TestNopNotifier(t *testing.T) {
	var n NopNotifier
	n.NotifyAlarmStatus(true)
	n.NotifyWhiteNoiseStatus(false)
	n.NotifyVolume(50)
}

func TestDispatcher_NotifyAfterCloseIsDiscarded(t *testing.T) {
	var mu sync.Mutex
	var delivered int
	d := NewDispatcher(func(StatusEvent) {
		mu.Lock()
		delivered++
		mu.Unlock()
	}, testLogger())

	d.NotifyVolume(10)
	d.Close()

	// A caller racing shutdown must not crash the process.
	d.NotifyVolume(20)
	d.NotifyAlarmStatus(true)
	d.NotifyWhiteNoiseStatus(false)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, delivered, "events after close are discarded, not delivered")
}
