package notifier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_SubscribeUnsubscribe(t *testing.T) {
	n := New()

	ch := n.Subscribe()
	require.NotNil(t, ch)
	assert.Equal(t, 1, n.Subscribers())

	n.Unsubscribe(ch)
	assert.Zero(t, n.Subscribers())

	_, open := <-ch
	assert.False(t, open, "unsubscribed channel is closed")
}

func TestNotifier_Publish(t *testing.T) {
	n := New()
	ch1 := n.Subscribe()
	ch2 := n.Subscribe()
	defer n.Unsubscribe(ch1)
	defer n.Unsubscribe(ch2)

	n.Publish(DataReset)

	for _, ch := range []chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, DataReset, ev)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("listener did not receive event")
		}
	}
}

func TestNotifier_PublishDoesNotBlock(t *testing.T) {
	n := New()
	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for range 10 {
			n.Publish(DataChanged)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full listener")
	}
	assert.Equal(t, DataChanged, <-ch)
}

func TestNotifier_Concurrent(t *testing.T) {
	n := New()
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := n.Subscribe()
			n.Publish(ForecastComputed)
			n.Unsubscribe(ch)
		}()
	}
	wg.Wait()
	assert.Zero(t, n.Subscribers())
}
