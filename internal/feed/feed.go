// Package feed keeps the recent pipeline events in memory and fans them out
// to live subscribers such as the console printer and websocket clients.
package feed

import (
	"sync"
	"time"
)

// Kind identifies an event.
type Kind string

const (
	KindClipSaved   Kind = "clip_saved"
	KindClipFailed  Kind = "clip_failed"
	KindTranscript  Kind = "transcript"
	KindTranslation Kind = "translation"
	KindStageFailed Kind = "stage_failed"
)

// Event is one pipeline occurrence.
type Event struct {
	Kind     Kind      `json:"type"`
	Time     time.Time `json:"time"`
	File     string    `json:"file,omitempty"`
	Worker   int       `json:"worker,omitempty"`
	Text     string    `json:"text,omitempty"`
	Language string    `json:"language,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Defaults for NewFeed.
const (
	DefaultHistory   = 200
	DefaultSubBuffer = 64
)

// Feed stores the last events and broadcasts new ones.
type Feed struct {
	mu      sync.RWMutex
	entries []Event
	maxSize int
	subs    map[chan Event]struct{}
	buffer  int
	dropped uint64
	now     func() time.Time
}

// NewFeed creates a feed keeping maxEntries events. Each subscriber gets a
// channel of subBuffer events.
func NewFeed(maxEntries, subBuffer int) *Feed {
	if maxEntries <= 0 {
		maxEntries = DefaultHistory
	}
	if subBuffer <= 0 {
		subBuffer = DefaultSubBuffer
	}
	return &Feed{
		entries: make([]Event, 0, maxEntries),
		maxSize: maxEntries,
		subs:    make(map[chan Event]struct{}),
		buffer:  subBuffer,
		now:     time.Now,
	}
}

// Emit records e and delivers it to every subscriber without blocking; a
// subscriber whose buffer is full misses the event.
func (f *Feed) Emit(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = f.now()
	}
	f.entries = append(f.entries, e)
	if len(f.entries) > f.maxSize {
		f.entries = f.entries[len(f.entries)-f.maxSize:]
	}

	for ch := range f.subs {
		select {
		case ch <- e:
		default:
			f.dropped++
		}
	}
}

// Subscribe returns a channel of future events and a func that ends the
// subscription and closes the channel.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, f.buffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Recent returns up to n of the latest events, oldest first. n <= 0
// returns all retained events.
func (f *Feed) Recent(n int) []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	start := 0
	if n > 0 && n < len(f.entries) {
		start = len(f.entries) - n
	}
	out := make([]Event, len(f.entries)-start)
	copy(out, f.entries[start:])
	return out
}

// Latest returns the newest event of kind k.
func (f *Feed) Latest(k Kind) (Event, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].Kind == k {
			return f.entries[i], true
		}
	}
	return Event{}, false
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (f *Feed) Dropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}
