package mt32emu

import (
	"fmt"
	"sync"

	intaudio "github.com/cbegin/mt32emu-go/internal/audio"
	"github.com/cbegin/mt32emu-go/internal/bank"
	"github.com/cbegin/mt32emu-go/internal/logger"
	"github.com/cbegin/mt32emu-go/internal/reverb"
	intseq "github.com/cbegin/mt32emu-go/internal/sequencer"
	"github.com/cbegin/mt32emu-go/internal/synth"
)

// PlaybackEvent carries playback events from Watch().
type PlaybackEvent struct {
	Kind int // EventLoopCompleted or EventPlaybackEnded
}

const (
	EventLoopCompleted = int(intseq.EventLoopCompleted)
	EventPlaybackEnded = int(intseq.EventPlaybackEnded)
)

// Event is a MIDI message at a 32kHz sample timestamp.
type Event = intseq.Event

type Option func(*config)

type config struct {
	rom          *synth.ROMSet
	compat       reverb.Compatibility
	synth        synth.Config
	loopPlayback bool
	sampleTap    func([]int16)
}

func defaultConfig() config {
	return config{compat: reverb.CompatMT32, synth: synth.DefaultConfig()}
}

func (c *config) romSet() synth.ROMSet {
	if c.rom != nil {
		return *c.rom
	}
	return bank.New(c.compat)
}

func (c *config) open() (*synth.Synth, error) {
	s := synth.New()
	if err := s.Open(c.romSet(), c.synth); err != nil {
		return nil, fmt.Errorf("opening synth: %w", err)
	}
	return s, nil
}

// WithROMSet plays rom instead of the built-in bank.
func WithROMSet(rom synth.ROMSet) Option {
	return func(cfg *config) {
		cfg.rom = &rom
	}
}

// WithCompatibility picks the hardware generation of the built-in bank.
func WithCompatibility(compat reverb.Compatibility) Option {
	return func(cfg *config) {
		cfg.compat = compat
	}
}

func WithPartialCount(n int) Option {
	return func(cfg *config) {
		cfg.synth.PartialCount = n
	}
}

func WithReverb(enabled bool) Option {
	return func(cfg *config) {
		cfg.synth.ReverbEnabled = enabled
	}
}

func WithDACInputMode(mode synth.DACInputMode) Option {
	return func(cfg *config) {
		cfg.synth.DACInputMode = mode
	}
}

func WithAnalogOutputMode(mode synth.AnalogOutputMode) Option {
	return func(cfg *config) {
		cfg.synth.AnalogOutputMode = mode
	}
}

func WithReportHandler(h synth.ReportHandler) Option {
	return func(cfg *config) {
		cfg.synth.ReportHandler = h
	}
}

// WithLogger sends synth diagnostics to l instead of the central log.
func WithLogger(l *logger.Logger) Option {
	return func(cfg *config) {
		cfg.synth.Logger = l
	}
}

func WithLoopPlayback(enabled bool) Option {
	return func(cfg *config) {
		cfg.loopPlayback = enabled
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]int16)) Option {
	return func(cfg *config) {
		cfg.sampleTap = tap
	}
}

// Player plays MIDI through the synth on the system audio device. Live
// messages may be sent from any goroutine while a script plays.
type Player struct {
	mu           sync.Mutex
	synth        *synth.Synth
	seq          *intseq.Sequencer
	audio        *intaudio.Player
	volume       float64
	loopPlayback bool
	sampleTap    func([]int16)
	done         chan struct{}
	eventCh      chan PlaybackEvent
	eventChMu    sync.Mutex
}

func NewPlayer(opts ...Option) (*Player, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := cfg.open()
	if err != nil {
		return nil, err
	}
	return &Player{
		synth:        s,
		volume:       1,
		loopPlayback: cfg.loopPlayback,
		sampleTap:    cfg.sampleTap,
	}, nil
}

// Render implements the audio stream source. It runs on the audio thread.
func (p *Player) Render(dst []int16) {
	p.mu.Lock()
	if p.seq != nil {
		p.seq.Render(dst)
	} else {
		p.synth.Render(dst)
	}
	tap := p.sampleTap
	p.mu.Unlock()
	if tap != nil {
		tap(dst)
	}
}

// Start opens the audio device and begins streaming. Messages sent before
// Start are played once the stream is running.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		return nil
	}
	backend, err := intaudio.NewPlayer(synth.SampleRate, p)
	if err != nil {
		return err
	}
	p.audio = backend
	p.audio.Play()
	return nil
}

// Play schedules events from the current position, replacing any script
// that is still playing, and starts the stream if needed.
func (p *Player) Play(events []Event) error {
	p.mu.Lock()
	// Signal any existing Wait() that the previous playback was replaced
	if p.done != nil {
		close(p.done)
	}
	done := make(chan struct{})
	p.done = done
	p.seq = intseq.NewWithOptions(events, p.synth, intseq.Options{
		LoopWholeScore: p.loopPlayback,
		OnEvent: func(kind intseq.EventKind) {
			p.sendEvent(PlaybackEvent{Kind: int(kind)})
			if kind == intseq.EventPlaybackEnded {
				p.signalDone(done)
			}
		},
	})
	p.mu.Unlock()
	return p.Start()
}

// PlayMsg sends a short MIDI message to play as soon as possible.
func (p *Player) PlayMsg(msg uint32) bool {
	return p.synth.PlayMsg(msg)
}

// PlaySysex sends a complete F0..F7 message to play as soon as possible.
func (p *Player) PlaySysex(data []byte) bool {
	return p.synth.PlaySysex(data)
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full or closed; drop event
		}
	}
}

// signalDone runs on the audio thread with p.mu held by Render.
func (p *Player) signalDone(done chan struct{}) {
	if p.done == done {
		p.done = nil
		close(done)
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

// Stop halts the stream and drops the playing script. Sounding notes are
// kept; the player can be started again.
func (p *Player) Stop() error {
	p.mu.Lock()
	a := p.audio
	p.audio = nil
	p.seq = nil
	done := p.done
	p.done = nil
	p.mu.Unlock()
	var err error
	if a != nil {
		// outside the lock: closing waits for the audio thread's Render
		err = a.Stop()
	}
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
	if done != nil {
		close(done)
	}
	return err
}

// Close stops playback and releases the synth.
func (p *Player) Close() error {
	err := p.Stop()
	p.mu.Lock()
	p.synth.Close()
	p.mu.Unlock()
	return err
}

// Wait blocks until the current script ends. When loop playback is enabled,
// Wait blocks indefinitely (use Watch for loop-counting instead).
// Wait returns immediately if no script is playing or if it was stopped.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events. Events are sent when:
//   - EventLoopCompleted: a whole-script loop iteration finished (when looping)
//   - EventPlaybackEnded: the script and its release tail finished
//
// The channel is buffered (cap 8). Only the most recent Watch() channel
// receives events; call Watch before Play.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume scales the synth output. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	p.synth.SetOutputGain(float32(volume))
	p.synth.SetReverbOutputGain(float32(volume))
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetReverbEnabled switches the reverb unit while playing.
func (p *Player) SetReverbEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synth.SetReverbEnabled(enabled)
}

// PartialStates returns a snapshot of the partial pool for display.
func (p *Player) PartialStates() []synth.PartialState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.synth.PartialStates()
}

// PartTimbreName returns the timbre part num (0-8) plays.
func (p *Player) PartTimbreName(num int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.synth.PartTimbreName(num)
}

// PlaybackPosition returns the current output position of the audio driver
// in samples, i.e. what the listener actually hears right now. Returns 0 if
// not playing.
func (p *Player) PlaybackPosition() int64 {
	p.mu.Lock()
	a := p.audio
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	pos := a.Position()
	return int64(pos.Seconds() * synth.SampleRate)
}
