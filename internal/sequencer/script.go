package sequencer

import (
	"bufio"
	"cmp"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// ErrBadScript is returned for event script lines that cannot be played.
var ErrBadScript = errors.New("bad event script")

// Event is a MIDI message scheduled at a sample position (32kHz).
type Event struct {
	Timestamp uint32
	Data      []byte
}

// IsSysex reports whether the event is a complete F0..F7 message.
func (e Event) IsSysex() bool {
	return len(e.Data) > 0 && e.Data[0] == 0xF0
}

// ShortMessage packs a channel message the way Synth.PlayMsg expects it.
func (e Event) ShortMessage() uint32 {
	var msg uint32
	for i, b := range e.Data {
		if i == 3 {
			break
		}
		msg |= uint32(b) << (8 * i)
	}
	return msg
}

// ParseScript reads an event script: one event per line, a sample timestamp
// followed by the message bytes in hex. Bytes may be separated by spaces or
// run together. Everything after # is a comment. Events are returned in
// timestamp order; events sharing a timestamp keep their script order.
//
//	# middle C on part 1 for a second
//	0      91 3c 64
//	32000  81 3c 00
func ParseScript(r io.Reader) ([]Event, error) {
	var events []Event
	sc := bufio.NewScanner(r)
	// SysEx dumps can make for long lines
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		e, err := parseEvent(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	slices.SortStableFunc(events, func(a, b Event) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return events, nil
}

func parseEvent(fields []string) (Event, error) {
	ts, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return Event{}, fmt.Errorf("%w: timestamp %q", ErrBadScript, fields[0])
	}
	if len(fields) == 1 {
		return Event{}, fmt.Errorf("%w: no message bytes", ErrBadScript)
	}
	data, err := hex.DecodeString(strings.Join(fields[1:], ""))
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrBadScript, err)
	}
	e := Event{Timestamp: uint32(ts), Data: data}
	if err := e.validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (e Event) validate() error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: empty message", ErrBadScript)
	}
	if e.IsSysex() {
		if e.Data[len(e.Data)-1] != 0xF7 {
			return fmt.Errorf("%w: SysEx without F7", ErrBadScript)
		}
		return nil
	}
	if e.Data[0]&0x80 == 0 {
		return fmt.Errorf("%w: status byte %02x", ErrBadScript, e.Data[0])
	}
	if len(e.Data) > 3 {
		return fmt.Errorf("%w: %d bytes in a channel message", ErrBadScript, len(e.Data))
	}
	return nil
}

// WriteScript writes events in the format ParseScript reads.
func WriteScript(w io.Writer, events []Event) error {
	bw := bufio.NewWriter(w)
	for _, e := range events {
		fmt.Fprintf(bw, "%d\t% x\n", e.Timestamp, e.Data)
	}
	return bw.Flush()
}
