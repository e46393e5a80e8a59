package synth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cbegin/mt32emu-go/internal/logger"
)

// SampleRate is the fixed internal output rate.
const SampleRate = 32000

const (
	DefaultPartialCount  = 32
	MinPartialCount      = 8
	MaxPartialCount      = 256
	DefaultMIDIQueueSize = 1024
)

var (
	ErrInvalidPartialCount = errors.New("partial count out of range")
	ErrNoTimbres           = errors.New("ROM set has no timbres")
	ErrBadPCMWave          = errors.New("PCM wave outside PCM data")
	ErrNotOpen             = errors.New("synth is not open")
	ErrAlreadyOpen         = errors.New("synth is already open")
)

// DACInputMode selects how the 15-bit LA32 output is fed to the 16-bit DAC.
type DACInputMode int

const (
	// DACNice doubles the LA32 output with saturation: best quality, not accurate.
	DACNice DACInputMode = iota
	// DACPure passes the LA32 output through unchanged (half volume).
	DACPure
	// DACGeneration1 reproduces the bit shuffling of early MT-32 boards.
	DACGeneration1
	// DACGeneration2 reproduces the bit shuffling of later MT-32 boards.
	DACGeneration2
)

var dacModeNames = map[string]DACInputMode{
	"nice": DACNice,
	"pure": DACPure,
	"gen1": DACGeneration1,
	"gen2": DACGeneration2,
}

// ParseDACInputMode maps nice, pure, gen1 and gen2 to their modes.
func ParseDACInputMode(name string) (DACInputMode, error) {
	if m, ok := dacModeNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("unknown DAC input mode %q (expected nice|pure|gen1|gen2)", name)
}

// AnalogOutputMode selects the emulation of the analog output stage.
type AnalogOutputMode int

const (
	AnalogDigitalOnly AnalogOutputMode = iota
	AnalogCoarse
)

// ReverbCompatibilityMode overrides the reverb model chosen by the ROM set.
type ReverbCompatibilityMode int

const (
	ReverbCompatibilityDefault ReverbCompatibilityMode = iota
	ReverbCompatibilityMT32
	ReverbCompatibilityCM32L
)

// Config holds the options read by Open. Setters on Synth change most of
// them while open.
type Config struct {
	PartialCount        int
	MIDIQueueSize       int
	ReverbEnabled       bool
	ReverbOverridden    bool
	ReverbCompatibility ReverbCompatibilityMode
	DACInputMode        DACInputMode
	AnalogOutputMode    AnalogOutputMode
	OutputGain          float32
	ReverbOutputGain    float32
	ReversedStereo      bool
	NiceAmpRamp         bool
	NicePanning         bool
	NicePartialMixing   bool

	ReportHandler ReportHandler
	Logger        *logger.Logger
}

// DefaultConfig returns the settings of a freshly powered unit with the
// smoothing options that do not affect accuracy much turned on.
func DefaultConfig() Config {
	return Config{
		PartialCount:     DefaultPartialCount,
		MIDIQueueSize:    DefaultMIDIQueueSize,
		ReverbEnabled:    true,
		DACInputMode:     DACNice,
		AnalogOutputMode: AnalogDigitalOnly,
		OutputGain:       1.0,
		ReverbOutputGain: 1.0,
		NiceAmpRamp:      true,
	}
}

// PartialState is the coarse state of a partial reported to listeners.
type PartialState int

const (
	PartialInactive PartialState = iota
	PartialAttack
	PartialSustain
	PartialRelease
)

func (s PartialState) String() string {
	switch s {
	case PartialAttack:
		return "attack"
	case PartialSustain:
		return "sustain"
	case PartialRelease:
		return "release"
	}
	return "inactive"
}

// ReportHandler receives notifications from the synth. Calls are made from
// the rendering goroutine and must not block.
type ReportHandler interface {
	OnPartialStateChanged(partialNum int, oldState, newState PartialState)
	OnPolyStateChanged(partNum int)
	OnDebugMessage(msg string)
	OnMIDIQueueOverflow()
}

// NopReportHandler ignores every notification.
type NopReportHandler struct{}

func (NopReportHandler) OnPartialStateChanged(int, PartialState, PartialState) {}
func (NopReportHandler) OnPolyStateChanged(int)                                {}
func (NopReportHandler) OnDebugMessage(string)                                 {}
func (NopReportHandler) OnMIDIQueueOverflow()                                  {}
