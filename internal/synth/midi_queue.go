package synth

import "sync"

type midiEvent struct {
	timestamp uint32
	msg       uint32
	sysex     []byte
}

// midiQueue is a bounded FIFO shared between the goroutine feeding MIDI and
// the one rendering.
type midiQueue struct {
	mu     sync.Mutex
	events []midiEvent
	head   int
	count  int
}

func newMIDIQueue(size int) *midiQueue {
	if size < 1 {
		size = DefaultMIDIQueueSize
	}
	return &midiQueue{events: make([]midiEvent, size)}
}

func (q *midiQueue) push(e midiEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.events) {
		return false
	}
	q.events[(q.head+q.count)%len(q.events)] = e
	q.count++
	return true
}

func (q *midiQueue) peek() (midiEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return midiEvent{}, false
	}
	return q.events[q.head], true
}

func (q *midiQueue) drop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return
	}
	q.events[q.head] = midiEvent{}
	q.head = (q.head + 1) % len(q.events)
	q.count--
}

func (q *midiQueue) isEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count == 0
}
