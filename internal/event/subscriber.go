package event

import "sync"

// channelSubscriber blocks Deliver until the reader has room.
type channelSubscriber struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

func newChannelSubscriber(buffer int) *channelSubscriber {
	return &channelSubscriber{ch: make(chan Event, buffer)}
}

func (c *channelSubscriber) Deliver(evt Event) error {
	// the read lock keeps Close from closing ch under an in-flight send
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	c.ch <- evt
	return nil
}

func (c *channelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// latestSubscriber keeps a single slot holding the newest pending event.
type latestSubscriber struct {
	mu     sync.Mutex
	ch     chan Event
	filter func(Event) bool
	closed bool
}

func newLatestSubscriber(filter func(Event) bool) *latestSubscriber {
	return &latestSubscriber{ch: make(chan Event, 1), filter: filter}
}

func (l *latestSubscriber) Deliver(evt Event) error {
	if l.filter != nil && !l.filter(evt) {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	select {
	case l.ch <- evt:
		return nil
	default:
	}
	// slot taken: keep whichever is newer, then the send cannot block
	select {
	case held := <-l.ch:
		if newer(held, evt) {
			evt = held
		}
	default:
	}
	l.ch <- evt
	return nil
}

// newer reports whether a carries a higher version than b. Events without a
// version are ordered by arrival.
func newer(a, b Event) bool {
	va, ok := a.Data.(Versioned)
	if !ok {
		return false
	}
	vb, ok := b.Data.(Versioned)
	if !ok {
		return false
	}
	return va.EventVersion() > vb.EventVersion()
}

func (l *latestSubscriber) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.ch)
}

// FuncSubscriber runs a function inline on the publisher's goroutine.
type FuncSubscriber func(Event)

func (f FuncSubscriber) Deliver(evt Event) error {
	f(evt)
	return nil
}

func (f FuncSubscriber) Close() {}

func kindOf(sub Subscriber) string {
	switch sub.(type) {
	case *channelSubscriber:
		return "channel"
	case *latestSubscriber:
		return "latest"
	case FuncSubscriber:
		return "inline"
	default:
		return "external"
	}
}
