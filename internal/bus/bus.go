// Package bus carries process-wide UI signals (resume from suspend, privacy
// mode, theme, out-of-band config edits) through explicit subscriptions
// instead of ad hoc global handler lists. The host shell owns the bus;
// components hold only a subscription they dispose on shutdown.
package bus

import "sync"

type Topic string

const (
	TopicResume  Topic = "resume"
	TopicPrivacy Topic = "privacy"
	TopicTheme   Topic = "theme"
	TopicConfig  Topic = "config"
)

type Bus struct {
	mu     sync.Mutex
	subs   map[Topic]map[int]chan struct{}
	nextID int
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[Topic]map[int]chan struct{})}
}

// Subscribe returns a signal channel for the topic and a dispose func.
// Disposing twice is safe.
func (b *Bus) Subscribe(topic Topic) (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan struct{}, 1)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan struct{})
	}
	b.subs[topic][id] = ch

	var once sync.Once
	dispose := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[topic]; ok {
				delete(subs, id)
			}
		})
	}
	return ch, dispose
}

// Publish signals every subscriber of the topic without blocking; a
// subscriber that already has a pending signal is not queued further.
func (b *Bus) Publish(topic Topic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close wakes all subscribers with a closed channel and drops them.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, topic)
	}
}
