// Package wavfile stores rendered synth output as 16-bit stereo PCM WAV.
package wavfile

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	channels  = 2
	bitDepth  = 16
	formatPCM = 1
)

// ErrNotWAV is returned by Read for input that is not a WAV file.
var ErrNotWAV = errors.New("not a WAV file")

// Write encodes interleaved stereo samples.
func Write(w io.WriteSeeker, sampleRate int, samples []int16) error {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	e := wav.NewEncoder(w, sampleRate, bitDepth, channels, formatPCM)
	if err := e.Write(buf); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	if err := e.Close(); err != nil {
		return fmt.Errorf("closing wav encoder: %w", err)
	}
	return nil
}

// Read decodes a 16-bit WAV file into interleaved samples.
func Read(r io.ReadSeeker) (sampleRate, numChannels int, samples []int16, err error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return 0, 0, nil, ErrNotWAV
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("decoding wav: %w", err)
	}
	if buf.SourceBitDepth != bitDepth {
		return 0, 0, nil, fmt.Errorf("%w: %d-bit samples", ErrNotWAV, buf.SourceBitDepth)
	}
	samples = make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return buf.Format.SampleRate, buf.Format.NumChannels, samples, nil
}
