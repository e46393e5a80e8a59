package mt32emu

import (
	"io"

	intseq "github.com/cbegin/mt32emu-go/internal/sequencer"
	"github.com/cbegin/mt32emu-go/internal/synth"
	"github.com/cbegin/mt32emu-go/internal/wavfile"
)

// SampleRate is the rate of everything the synth renders.
const SampleRate = synth.SampleRate

// RenderSamples plays events on a fresh synth and returns frames of
// interleaved 16-bit stereo.
func RenderSamples(events []Event, frames int, opts ...Option) ([]int16, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := cfg.open()
	if err != nil {
		return nil, err
	}
	defer s.Close()
	out := make([]int16, frames*2)
	intseq.New(events, s).Render(out)
	return out, nil
}

// RenderUntilIdle plays events on a fresh synth and renders until they have
// all played and the sound, reverb tail included, has died away. At most
// maxFrames are rendered.
func RenderUntilIdle(events []Event, maxFrames int, opts ...Option) ([]int16, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := cfg.open()
	if err != nil {
		return nil, err
	}
	defer s.Close()
	seq := intseq.New(events, s)
	const chunk = 1024
	var out []int16
	for len(out) < maxFrames*2 && !seq.Finished() {
		n := min(chunk, maxFrames-len(out)/2)
		buf := make([]int16, 2*n)
		seq.Render(buf)
		out = append(out, buf...)
	}
	return out, nil
}

// WriteWAV stores interleaved stereo at SampleRate as a 16-bit WAV file.
func WriteWAV(w io.WriteSeeker, samples []int16) error {
	return wavfile.Write(w, SampleRate, samples)
}

// ParseScript reads an event script: one event per line, a sample timestamp
// followed by hex message bytes, # starting a comment.
func ParseScript(r io.Reader) ([]Event, error) {
	return intseq.ParseScript(r)
}

// WriteScript writes events in the format ParseScript reads.
func WriteScript(w io.Writer, events []Event) error {
	return intseq.WriteScript(w, events)
}
