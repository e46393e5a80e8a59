package mt32emu

import (
	"cmp"
	"slices"

	"github.com/cbegin/mt32emu-go/internal/bank"
	"github.com/cbegin/mt32emu-go/internal/synth"
)

// DemoScript is a short phrase using every part of the built-in bank: a
// chord progression on the pad, a bass line, a ring modulated bell melody
// and a drum pattern.
func DemoScript() []Event {
	const beat = SampleRate / 4
	var events []Event
	add := func(at int, data ...byte) {
		events = append(events, Event{Timestamp: uint32(at), Data: data})
	}
	note := func(ch byte, at, length int, key, vel byte) {
		add(at, 0x90|ch, key, vel)
		add(at+length, 0x80|ch, key, 0)
	}

	// reverb: hall, time 5, level 4
	body := []byte{0x10, 0x00, 0x01, 0x02, 0x05, 0x04}
	sysex := append([]byte{0xF0, 0x41, 0x10, 0x16, 0x12}, body...)
	add(0, append(sysex, synth.SysexChecksum(body), 0xF7)...)

	chords := [][]byte{{60, 64, 67}, {57, 60, 64}, {53, 57, 60}, {55, 59, 62}}
	bass := []byte{36, 33, 29, 31}
	melody := []byte{76, 74, 72, 71, 72, 69, 67, 67}
	for bar := range chords {
		start := bar * 4 * beat
		for _, key := range chords[bar] {
			// part 6 plays the stereo pad
			note(6, start, 4*beat-beat/8, key, 70)
		}
		note(2, start, beat, bass[bar], 100)
		note(2, start+2*beat, beat, bass[bar]+12, 90)
		for i := 0; i < 2; i++ {
			note(3, start+2*i*beat, beat, melody[2*bar+i], 90)
		}
		for b := 0; b < 4; b++ {
			at := start + b*beat
			if b%2 == 0 {
				add(at, 0x99, bank.KeyKick, 120)
			} else {
				add(at, 0x99, bank.KeySnare, 110)
			}
			add(at, 0x99, bank.KeyHat, 70)
			add(at+beat/2, 0x99, bank.KeyHat, 50)
		}
	}
	slices.SortStableFunc(events, func(a, b Event) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return events
}
