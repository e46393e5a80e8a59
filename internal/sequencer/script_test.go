package sequencer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseScript(t *testing.T) {
	events := mustParse(t, `
# comment line
300 90 3c 64   # trailing comment
0   c1 05
0   f0411016121000163228f7
`)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Timestamp != 0 || events[0].ShortMessage() != 0x05c1 {
		t.Errorf("event 0 = %+v", events[0])
	}
	if !events[1].IsSysex() || len(events[1].Data) != 11 {
		t.Errorf("event 1 = %+v, want the SysEx in script order", events[1])
	}
	if events[2].Timestamp != 300 {
		t.Errorf("event 2 at %d, want 300", events[2].Timestamp)
	}
}

func TestParseScriptErrors(t *testing.T) {
	cases := []struct {
		name   string
		script string
	}{
		{"bad timestamp", "x 90 3c 64"},
		{"negative timestamp", "-1 90 3c 64"},
		{"no bytes", "100"},
		{"odd hex", "0 90 3c 6"},
		{"running status", "0 3c 64"},
		{"long channel message", "0 90 3c 64 00"},
		{"unterminated sysex", "0 f0 41 10 16"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScript(strings.NewReader("0 b1 07 64\n" + tc.script))
			if !errors.Is(err, ErrBadScript) {
				t.Fatalf("err = %v, want ErrBadScript", err)
			}
			if !strings.Contains(err.Error(), "line 2") {
				t.Fatalf("err = %v, want the line number", err)
			}
		})
	}
}

func TestWriteScriptRoundTrips(t *testing.T) {
	in := mustParse(t, "0 90 3c 64\n10 f0 41 10 16 12 10 00 16 32 28 f7")
	var buf bytes.Buffer
	if err := WriteScript(&buf, in); err != nil {
		t.Fatalf("WriteScript: %v", err)
	}
	out := mustParse(t, buf.String())
	if len(out) != len(in) {
		t.Fatalf("got %d events", len(out))
	}
	for i := range in {
		if in[i].Timestamp != out[i].Timestamp || !bytes.Equal(in[i].Data, out[i].Data) {
			t.Errorf("event %d = %+v, want %+v", i, out[i], in[i])
		}
	}
}
