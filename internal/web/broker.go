package web

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// subscriberBuffer is each subscriber's queue depth; slow consumers lose
// their oldest lines rather than blocking publishers.
const subscriberBuffer = 128

// Broker fans log lines out to any number of stream subscribers. Publish
// never blocks.
type Broker struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan string]struct{})}
}

// Subscribe registers a new consumer channel.
func (b *Broker) Subscribe() chan string {
	ch := make(chan string, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a consumer channel.
func (b *Broker) Unsubscribe(ch chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Publish delivers a line to every subscriber. A full subscriber drops its
// oldest line to make room; if it is still full the line is skipped for that
// subscriber.
func (b *Broker) Publish(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- line:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- line:
			default:
			}
		}
	}
}

// ZapHook adapts the broker to zap's hook interface so every log entry is
// also streamed to subscribers.
func (b *Broker) ZapHook() func(zapcore.Entry) error {
	return func(e zapcore.Entry) error {
		b.Publish(fmt.Sprintf("%s\t%s\t%s", e.Time.Format(time.RFC3339), e.Level.CapitalString(), e.Message))
		return nil
	}
}
