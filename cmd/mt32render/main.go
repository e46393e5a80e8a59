package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cbegin/mt32emu-go"
	"github.com/cbegin/mt32emu-go/internal/logger"
	"github.com/cbegin/mt32emu-go/internal/reverb"
	"github.com/cbegin/mt32emu-go/internal/synth"
)

func main() {
	var (
		scriptPath = flag.String("file", "", "path to an event script (default: built-in demo)")
		outPath    = flag.String("out", "out.wav", "WAV file to write")
		maxSeconds = flag.Float64("max-seconds", 120, "stop rendering after this many seconds")
		partials   = flag.Int("partials", synth.DefaultPartialCount, "partial pool size (8-256)")
		noReverb   = flag.Bool("no-reverb", false, "disable the reverb unit")
		compat     = flag.String("compat", "mt32", "built-in bank generation: mt32|cm32l")
		dac        = flag.String("dac", "nice", "DAC input mode: nice|pure|gen1|gen2")
		coarse     = flag.Bool("coarse", false, "apply the coarse analog low-pass filter")
		dumpScript = flag.Bool("dump-script", false, "print the event script to stdout instead of rendering")
		verbose    = flag.Bool("v", false, "print the synth log after rendering")
	)
	flag.Parse()

	events, err := loadEvents(*scriptPath)
	if err != nil {
		log.Fatal(err)
	}
	if *dumpScript {
		if err := mt32emu.WriteScript(os.Stdout, events); err != nil {
			log.Fatal(err)
		}
		return
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
	samples, err := mt32emu.RenderUntilIdle(events, int(*maxSeconds*mt32emu.SampleRate),
		mt32emu.WithCompatibility(c),
		mt32emu.WithPartialCount(*partials),
		mt32emu.WithReverb(!*noReverb),
		mt32emu.WithDACInputMode(mode),
		mt32emu.WithAnalogOutputMode(analog),
	)
	if err != nil {
		log.Fatal(err)
	}
	if *verbose {
		logger.Central().Write(os.Stderr)
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := mt32emu.WriteWAV(f, samples); err != nil {
		f.Close()
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s (%.2fs)\n", *outPath, float64(len(samples)/2)/mt32emu.SampleRate)
}

func loadEvents(path string) ([]mt32emu.Event, error) {
	if path == "" {
		return mt32emu.DemoScript(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mt32emu.ParseScript(f)
}
