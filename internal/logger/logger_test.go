package logger_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cbegin/mt32emu-go/internal/logger"
)

func TestLoggerTail(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Write(w)
	if w.String() != "" {
		t.Fatalf("empty log wrote %q", w.String())
	}

	log.Log("test", "this is a test")
	log.Log("test2", "this is another test")
	log.Write(w)
	if want := "test: this is a test\ntest2: this is another test\n"; w.String() != want {
		t.Fatalf("Write = %q, want %q", w.String(), want)
	}

	for _, tc := range []struct {
		n    int
		want string
	}{
		{100, "test: this is a test\ntest2: this is another test\n"},
		{2, "test: this is a test\ntest2: this is another test\n"},
		{1, "test2: this is another test\n"},
		{0, ""},
	} {
		w.Reset()
		log.Tail(w, tc.n)
		if w.String() != tc.want {
			t.Errorf("Tail(%d) = %q, want %q", tc.n, w.String(), tc.want)
		}
	}
}

func TestLoggerCollapsesRepeats(t *testing.T) {
	log := logger.NewLogger(10)
	for i := 0; i < 3; i++ {
		log.Logf("partial", "no poly for partial %d", 4)
	}
	w := &strings.Builder{}
	log.Write(w)
	if want := "partial: no poly for partial 4 (repeat x3)\n"; w.String() != want {
		t.Fatalf("Write = %q, want %q", w.String(), want)
	}
}

func TestLoggerIsBounded(t *testing.T) {
	log := logger.NewLogger(5)
	for i := 0; i < 20; i++ {
		log.Log("midi", fmt.Sprintf("event %d", i))
	}
	if log.Len() != 5 {
		t.Fatalf("Len = %d, want 5", log.Len())
	}
	w := &strings.Builder{}
	log.Tail(w, 1)
	if want := "midi: event 19\n"; w.String() != want {
		t.Fatalf("Tail = %q, want %q", w.String(), want)
	}
}

func TestLoggerEcho(t *testing.T) {
	log := logger.NewLogger(5)
	w := &strings.Builder{}
	log.SetEcho(w)
	log.Log("synth", "opened")
	log.SetEcho(nil)
	log.Log("synth", "closed")
	if want := "synth: opened\n"; w.String() != want {
		t.Fatalf("echo = %q, want %q", w.String(), want)
	}
}
