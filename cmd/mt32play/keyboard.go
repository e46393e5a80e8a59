package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/cbegin/mt32emu-go"
)

// two rows of a piano keyboard starting at C
const pianoKeys = "awsedftgyhujkolp;'"

// keyboard plays notes typed on a raw terminal. Terminals report no key
// release, so each part holds one note until the next key or space.
type keyboard struct {
	player  *mt32emu.Player
	part    int
	octave  int
	holding [9]int
	out     io.Writer
}

func newKeyboard(pl *mt32emu.Player, out io.Writer) *keyboard {
	k := &keyboard{player: pl, octave: 4, out: out}
	for i := range k.holding {
		k.holding[i] = -1
	}
	return k
}

// channel follows the default MT-32 assignment: parts 1-8 on MIDI
// channels 2-9 and rhythm on 10.
func channel(part int) uint32 {
	return uint32(part + 1)
}

// handle acts on one typed byte and reports false when the user quits.
func (k *keyboard) handle(b byte) bool {
	switch {
	case b == 'q' || b == 3 || b == 4:
		k.release()
		return false
	case b >= '1' && b <= '9':
		k.part = int(b - '1')
		fmt.Fprintf(k.out, "part %d: %s\r\n", k.part+1, k.player.PartTimbreName(k.part))
	case b == 'z' && k.octave > 0:
		k.octave--
		fmt.Fprintf(k.out, "octave %d\r\n", k.octave)
	case b == 'x' && k.octave < 8:
		k.octave++
		fmt.Fprintf(k.out, "octave %d\r\n", k.octave)
	case b == ' ':
		k.release()
	default:
		if i := strings.IndexByte(pianoKeys, b); i >= 0 {
			k.play(12*(k.octave+1) + i)
		}
	}
	return true
}

func (k *keyboard) play(key int) {
	if key > 127 {
		return
	}
	k.noteOff(k.part)
	k.player.PlayMsg(0x90 | channel(k.part) | uint32(key)<<8 | 100<<16)
	k.holding[k.part] = key
}

func (k *keyboard) noteOff(part int) {
	if key := k.holding[part]; key >= 0 {
		k.player.PlayMsg(0x80 | channel(part) | uint32(key)<<8)
		k.holding[part] = -1
	}
}

func (k *keyboard) release() {
	for part := range k.holding {
		k.noteOff(part)
	}
}

// runKeyboard reads stdin in raw mode until the user quits.
func runKeyboard(pl *mt32emu.Player) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("-keys needs an interactive terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	if err := pl.Start(); err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, "keys "+pianoKeys+" play, 1-9 part, z/x octave, space release, q quit\r\n")
	k := newKeyboard(pl, os.Stdout)
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			k.release()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 1 && !k.handle(buf[0]) {
			return nil
		}
	}
}
