package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cbegin/mt32emu-go"
	"github.com/cbegin/mt32emu-go/internal/logger"
	"github.com/cbegin/mt32emu-go/internal/reverb"
	"github.com/cbegin/mt32emu-go/internal/synth"
)

func main() {
	var (
		scriptPath = flag.String("file", "", "path to an event script (default: built-in demo)")
		loop       = flag.Bool("loop", false, "loop playback; use with -loops to count then stop")
		loops      = flag.Int("loops", 3, "when -loop, stop after N loops (0 = loop forever)")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
		partials   = flag.Int("partials", synth.DefaultPartialCount, "partial pool size (8-256)")
		noReverb   = flag.Bool("no-reverb", false, "disable the reverb unit")
		compat     = flag.String("compat", "mt32", "built-in bank generation: mt32|cm32l")
		dac        = flag.String("dac", "nice", "DAC input mode: nice|pure|gen1|gen2")
		coarse     = flag.Bool("coarse", false, "apply the coarse analog low-pass filter")
		keys       = flag.Bool("keys", false, "play the synth from the terminal keyboard instead of a script")
		verbose    = flag.Bool("v", false, "echo synth diagnostics to stderr")
	)
	flag.Parse()

	if *verbose {
		logger.Central().SetEcho(os.Stderr)
	}
	events, err := loadEvents(*scriptPath)
	if err != nil {
		log.Fatal(err)
	}
	c, err := reverb.ParseCompatibility(*compat)
	if err != nil {
		log.Fatal(err)
	}
	mode, err := synth.ParseDACInputMode(*dac)
	if err != nil {
		log.Fatal(err)
	}
	analog := synth.AnalogDigitalOnly
	if *coarse {
		analog = synth.AnalogCoarse
	}
	pl, err := mt32emu.NewPlayer(
		mt32emu.WithCompatibility(c),
		mt32emu.WithPartialCount(*partials),
		mt32emu.WithReverb(!*noReverb),
		mt32emu.WithDACInputMode(mode),
		mt32emu.WithAnalogOutputMode(analog),
		mt32emu.WithLoopPlayback(*loop),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer pl.Close()
	pl.SetMasterVolume(*volume)
	if *keys {
		if err := runKeyboard(pl); err != nil {
			log.Fatal(err)
		}
		return
	}
	ch := pl.Watch()
	if err := pl.Play(events); err != nil {
		log.Fatal(err)
	}
	loopCount := 0
	for event := range ch {
		switch event.Kind {
		case mt32emu.EventPlaybackEnded:
			fmt.Println("playback completed")
			return
		case mt32emu.EventLoopCompleted:
			loopCount++
			fmt.Printf("loop %d completed\n", loopCount)
			if *loop && *loops > 0 && loopCount >= *loops {
				pl.Stop()
			}
		}
	}
}

func loadEvents(path string) ([]mt32emu.Event, error) {
	if strings.TrimSpace(path) == "" {
		return mt32emu.DemoScript(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mt32emu.ParseScript(f)
}
