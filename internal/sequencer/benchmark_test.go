package sequencer

import (
	"strings"
	"testing"

	"github.com/cbegin/mt32emu-go/internal/bank"
	"github.com/cbegin/mt32emu-go/internal/reverb"
	"github.com/cbegin/mt32emu-go/internal/synth"
)

func BenchmarkSequencerRender(b *testing.B) {
	events, err := ParseScript(strings.NewReader(`
		0    91 3c 64
		0    92 40 64
		0    93 43 64
		0    99 24 7f
		4000 99 2a 60
	`))
	if err != nil {
		b.Fatalf("parse failed: %v", err)
	}
	rom := bank.New(reverb.CompatMT32)
	buf := make([]int16, 2048*2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := synth.New()
		if err := s.Open(rom, synth.DefaultConfig()); err != nil {
			b.Fatalf("open: %v", err)
		}
		New(events, s).Render(buf)
		s.Close()
	}
}
