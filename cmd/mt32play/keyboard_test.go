package main

import (
	"io"
	"strings"
	"testing"

	"github.com/cbegin/mt32emu-go"
	"github.com/cbegin/mt32emu-go/internal/synth"
)

func activePartials(pl *mt32emu.Player) int {
	n := 0
	for _, st := range pl.PartialStates() {
		if st != synth.PartialInactive {
			n++
		}
	}
	return n
}

func TestKeyboardHoldsOneNotePerPart(t *testing.T) {
	pl, err := mt32emu.NewPlayer(mt32emu.WithReverb(false))
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}
	defer pl.Close()
	var out strings.Builder
	k := newKeyboard(pl, &out)
	buf := make([]int16, 2*256)

	k.handle('a')
	k.handle('s')
	pl.Render(buf)
	if k.holding[0] != 62 {
		t.Fatalf("part 1 holds key %d, want 62", k.holding[0])
	}
	k.handle('2')
	if !strings.Contains(out.String(), "part 2: "+pl.PartTimbreName(1)) {
		t.Fatalf("part change not announced: %q", out.String())
	}
	k.handle('x')
	k.handle('a')
	if k.holding[1] != 72 {
		t.Fatalf("part 2 holds key %d, want 72", k.holding[1])
	}
	pl.Render(buf)
	if activePartials(pl) == 0 {
		t.Fatalf("no partials sounding")
	}
	if k.handle('q') {
		t.Fatalf("q did not quit")
	}
	for _, key := range k.holding {
		if key != -1 {
			t.Fatalf("notes still held after quit: %v", k.holding)
		}
	}
}

func TestKeyboardIgnoresOtherKeys(t *testing.T) {
	pl, err := mt32emu.NewPlayer()
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}
	defer pl.Close()
	k := newKeyboard(pl, io.Discard)
	for _, b := range []byte("!@#$%^&*") {
		if !k.handle(b) {
			t.Fatalf("%q quit", b)
		}
	}
	k.octave = 9
	k.handle('p')
	if k.holding[0] != -1 {
		t.Fatalf("played key %d above the MIDI range", k.holding[0])
	}
}
