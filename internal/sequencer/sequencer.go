// Package sequencer plays timestamped MIDI events into a synth while it
// renders, looping the whole list or stopping once the sound has died away.
package sequencer

// Engine is the part of the synth the sequencer drives.
type Engine interface {
	PlayMsgAt(msg uint32, timestamp uint32) bool
	PlaySysexAt(data []byte, timestamp uint32) bool
	FlushMIDIQueue() int
	Render(dst []int16)
	RenderedSampleCount() uint32
	// IsActive reports whether anything is still sounding or queued.
	IsActive() bool
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

type Options struct {
	LoopWholeScore    bool
	OnEvent           func(EventKind)
	ReleaseTailFrames int // extra frames to render after the engine goes quiet (0 = use 0.1s default)
}

const defaultReleaseTail = 3200

// endCheckFrames is how often the engine is polled for silence once every
// event has been played.
const endCheckFrames = 256

type Sequencer struct {
	events             []Event
	engine             Engine
	next               int
	origin             uint32
	loopWholeScore     bool
	onEvent            func(EventKind)
	releaseTailFrames  int
	tailLeft           int
	playbackEndedFired bool
	dropped            int
}

func New(events []Event, engine Engine) *Sequencer {
	return NewWithOptions(events, engine, Options{})
}

// NewWithOptions schedules events relative to the engine's current render
// position.
func NewWithOptions(events []Event, engine Engine, opts Options) *Sequencer {
	tail := opts.ReleaseTailFrames
	if tail <= 0 {
		tail = defaultReleaseTail
	}
	return &Sequencer{
		events:            events,
		engine:            engine,
		origin:            engine.RenderedSampleCount(),
		loopWholeScore:    opts.LoopWholeScore,
		onEvent:           opts.OnEvent,
		releaseTailFrames: tail,
		tailLeft:          tail,
	}
}

// Render renders interleaved stereo into dst, handing each event to the
// engine when its timestamp comes due.
func (s *Sequencer) Render(dst []int16) {
	for len(dst) >= 2 {
		now := s.engine.RenderedSampleCount()
		s.dispatchDue(now)
		frames := len(dst) / 2
		if s.next < len(s.events) {
			// stop exactly at the next event so it is queued on time
			until := int(s.origin + s.events[s.next].Timestamp - now)
			frames = max(1, min(frames, until))
		} else if !s.playbackEndedFired {
			frames = min(frames, endCheckFrames)
		}
		s.engine.Render(dst[:2*frames])
		dst = dst[2*frames:]
		s.checkEnd(frames)
	}
	if len(dst) == 1 {
		dst[0] = 0
	}
}

func (s *Sequencer) dispatchDue(now uint32) {
	for s.next < len(s.events) {
		e := s.events[s.next]
		due := s.origin + e.Timestamp
		if int32(due-now) > 0 {
			return
		}
		if !s.play(e, now) {
			// everything queued is already due, so play it and retry
			s.engine.FlushMIDIQueue()
			if !s.play(e, now) {
				s.dropped++
			}
		}
		s.next++
	}
}

func (s *Sequencer) play(e Event, ts uint32) bool {
	if e.IsSysex() {
		return s.engine.PlaySysexAt(e.Data, ts)
	}
	return s.engine.PlayMsgAt(e.ShortMessage(), ts)
}

func (s *Sequencer) checkEnd(frames int) {
	if s.next < len(s.events) || s.playbackEndedFired {
		return
	}
	if s.engine.IsActive() {
		s.tailLeft = s.releaseTailFrames
		return
	}
	if s.tailLeft > 0 {
		s.tailLeft -= frames
		return
	}
	if s.loopWholeScore {
		s.origin = s.engine.RenderedSampleCount()
		s.next = 0
		s.tailLeft = s.releaseTailFrames
		if s.onEvent != nil {
			s.onEvent(EventLoopCompleted)
		}
		return
	}
	s.playbackEndedFired = true
	if s.onEvent != nil {
		s.onEvent(EventPlaybackEnded)
	}
}

// Finished reports whether a non-looping sequence has played out and its
// release tail has been rendered.
func (s *Sequencer) Finished() bool { return s.playbackEndedFired }

// Dropped returns the number of events the engine refused.
func (s *Sequencer) Dropped() int { return s.dropped }

// Remaining returns the number of events not yet handed to the engine.
func (s *Sequencer) Remaining() int { return len(s.events) - s.next }
