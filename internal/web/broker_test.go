package web

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestBroker_PublishReachesSubscribers(t *testing.T) {
	b := NewBroker()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	b.Publish("hello")

	assert.Equal(t, "hello", <-ch1)
	assert.Equal(t, "hello", <-ch2)
}

func TestBroker_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()

	b.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)

	assert.NotPanics(t, func() { b.Unsubscribe(ch) })
}

func TestBroker_PublishAfterUnsubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	assert.NotPanics(t, func() { b.Publish("into the void") })
}

func TestBroker_SlowSubscriberDropsOldest(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()

	for i := 0; i < subscriberBuffer+2; i++ {
		b.Publish(fmt.Sprintf("line-%d", i))
	}

	// lines 0 and 1 were dropped to make room
	assert.Equal(t, "line-2", <-ch)
	assert.Len(t, ch, subscriberBuffer-1)
}

func TestBroker_PublishNeverBlocks(t *testing.T) {
	b := NewBroker()
	_ = b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			b.Publish("line")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBroker_ZapHook(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()

	hook := b.ZapHook()
	require.NoError(t, hook(zapcore.Entry{
		Time:    time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		Level:   zapcore.WarnLevel,
		Message: "table not found, re-navigating once",
	}))

	line := <-ch
	assert.Contains(t, line, "2026-08-25T12:00:00Z")
	assert.Contains(t, line, "WARN")
	assert.Contains(t, line, "table not found, re-navigating once")
}
