package synth

import (
	"errors"
	"fmt"

	"github.com/cbegin/mt32emu-go/internal/reverb"
)

// Sizes of the parameter blocks as laid out in synth memory and in SysEx.
const (
	TimbreCommonSize  = 14
	TimbrePartialSize = 58
	TimbreSize        = TimbreCommonSize + 4*TimbrePartialSize // 246
	PatchSize         = 8
	PatchTempSize     = 16
	RhythmTempSize    = 4
	SystemSize        = 23

	// RhythmKeys is the number of rhythm setup entries, keys 24 to 108.
	RhythmKeys     = 85
	firstRhythmKey = 24
)

// ErrShortTimbre is returned by DecodeTimbre when fewer than TimbreSize bytes
// are supplied.
var ErrShortTimbre = errors.New("timbre data too short")

// WGParam holds the wave generator settings of a partial.
type WGParam struct {
	PitchCoarse               uint8 // 0-96 (C1-C9)
	PitchFine                 uint8 // 0-100 (-50 to +50 cents)
	PitchKeyfollow            uint8 // 0-16
	PitchBenderEnabled        uint8 // 0-1
	Waveform                  uint8 // bit 0: sawtooth, bit 1: second PCM bank
	PCMWave                   uint8 // 0-127
	PulseWidth                uint8 // 0-100
	PulseWidthVeloSensitivity uint8 // 0-14 (-7 to +7)
}

// PitchEnvParam is the TVP envelope.
type PitchEnvParam struct {
	Depth           uint8 // 0-10
	VeloSensitivity uint8 // 0-3
	TimeKeyfollow   uint8 // 0-4
	Time            [4]uint8
	Level           [5]uint8 // 0-100 (-50 to +50), level[4] is the release level
}

// PitchLFOParam is the TVP vibrato.
type PitchLFOParam struct {
	Rate           uint8
	Depth          uint8
	ModSensitivity uint8
}

// TVFParam is the filter section.
type TVFParam struct {
	Cutoff             uint8 // 0-100
	Resonance          uint8 // 0-30
	Keyfollow          uint8 // 0-16
	BiasPoint          uint8 // 0-127
	BiasLevel          uint8 // 0-14
	EnvDepth           uint8
	EnvVeloSensitivity uint8
	EnvDepthKeyfollow  uint8 // 0-4
	EnvTimeKeyfollow   uint8 // 0-4
	EnvTime            [5]uint8
	EnvLevel           [4]uint8
}

// TVAParam is the amplifier section.
type TVAParam struct {
	Level                  uint8
	VeloSensitivity        uint8 // 0-100 (-50 to +50)
	BiasPoint1             uint8
	BiasLevel1             uint8 // 0-12
	BiasPoint2             uint8
	BiasLevel2             uint8 // 0-12
	EnvTimeKeyfollow       uint8 // 0-4
	EnvTimeVeloSensitivity uint8 // 0-4
	EnvTime                [5]uint8
	EnvLevel               [4]uint8
}

// PartialParam is one of the four partials of a timbre.
type PartialParam struct {
	WG       WGParam
	PitchEnv PitchEnvParam
	PitchLFO PitchLFOParam
	TVF      TVFParam
	TVA      TVAParam
}

// TimbreParam is a complete timbre: common settings plus four partials.
type TimbreParam struct {
	Name               [10]byte
	PartialStructure12 uint8 // 0-12
	PartialStructure34 uint8 // 0-12
	PartialMute        uint8 // bit t enables partial t
	NoSustain          uint8
	Partial            [4]PartialParam
}

// NameString returns the timbre name with trailing padding removed.
func (t *TimbreParam) NameString() string {
	n := len(t.Name)
	for n > 0 && (t.Name[n-1] == ' ' || t.Name[n-1] == 0) {
		n--
	}
	return string(t.Name[:n])
}

var commonMax = [TimbreCommonSize]uint8{
	127, 127, 127, 127, 127, 127, 127, 127, 127, 127,
	12, 12, 15, 1,
}

var partialMax = [TimbrePartialSize]uint8{
	// wg
	96, 100, 16, 1, 3, 127, 100, 14,
	// pitch env
	10, 3, 4, 100, 100, 100, 100, 100, 100, 100, 100, 100,
	// lfo
	100, 100, 100,
	// tvf
	100, 30, 16, 127, 14, 100, 100, 4, 4, 100, 100, 100, 100, 100, 100, 100, 100, 100,
	// tva
	100, 100, 127, 12, 127, 12, 4, 4, 100, 100, 100, 100, 100, 100, 100, 100, 100,
}

func (p *PartialParam) fields() []*uint8 {
	f := []*uint8{
		&p.WG.PitchCoarse, &p.WG.PitchFine, &p.WG.PitchKeyfollow, &p.WG.PitchBenderEnabled,
		&p.WG.Waveform, &p.WG.PCMWave, &p.WG.PulseWidth, &p.WG.PulseWidthVeloSensitivity,
		&p.PitchEnv.Depth, &p.PitchEnv.VeloSensitivity, &p.PitchEnv.TimeKeyfollow,
	}
	for i := range p.PitchEnv.Time {
		f = append(f, &p.PitchEnv.Time[i])
	}
	for i := range p.PitchEnv.Level {
		f = append(f, &p.PitchEnv.Level[i])
	}
	f = append(f, &p.PitchLFO.Rate, &p.PitchLFO.Depth, &p.PitchLFO.ModSensitivity,
		&p.TVF.Cutoff, &p.TVF.Resonance, &p.TVF.Keyfollow, &p.TVF.BiasPoint, &p.TVF.BiasLevel,
		&p.TVF.EnvDepth, &p.TVF.EnvVeloSensitivity, &p.TVF.EnvDepthKeyfollow, &p.TVF.EnvTimeKeyfollow)
	for i := range p.TVF.EnvTime {
		f = append(f, &p.TVF.EnvTime[i])
	}
	for i := range p.TVF.EnvLevel {
		f = append(f, &p.TVF.EnvLevel[i])
	}
	f = append(f, &p.TVA.Level, &p.TVA.VeloSensitivity, &p.TVA.BiasPoint1, &p.TVA.BiasLevel1,
		&p.TVA.BiasPoint2, &p.TVA.BiasLevel2, &p.TVA.EnvTimeKeyfollow, &p.TVA.EnvTimeVeloSensitivity)
	for i := range p.TVA.EnvTime {
		f = append(f, &p.TVA.EnvTime[i])
	}
	for i := range p.TVA.EnvLevel {
		f = append(f, &p.TVA.EnvLevel[i])
	}
	return f
}

func clampTo(v, max uint8) uint8 {
	if v > max {
		return max
	}
	return v
}

var timbreMax [TimbreSize]uint8

func init() {
	copy(timbreMax[:], commonMax[:])
	for p := 0; p < 4; p++ {
		copy(timbreMax[TimbreCommonSize+p*TimbrePartialSize:], partialMax[:])
	}
}

func (t *TimbreParam) fields() []*uint8 {
	f := make([]*uint8, 0, TimbreSize)
	for i := range t.Name {
		f = append(f, &t.Name[i])
	}
	f = append(f, &t.PartialStructure12, &t.PartialStructure34, &t.PartialMute, &t.NoSustain)
	for p := range t.Partial {
		f = append(f, t.Partial[p].fields()...)
	}
	return f
}

// DecodeTimbre parses the 246-byte timbre memory layout. Out of range values
// are clamped to the parameter maxima.
func DecodeTimbre(data []byte) (TimbreParam, error) {
	var t TimbreParam
	if len(data) < TimbreSize {
		return t, fmt.Errorf("%w: %d bytes", ErrShortTimbre, len(data))
	}
	decodeBlock(t.fields(), timbreMax[:], 0, data[:TimbreSize])
	return t, nil
}

// Encode writes the timbre in its 246-byte memory layout.
func (t *TimbreParam) Encode() []byte {
	out := make([]byte, TimbreSize)
	for i, f := range t.fields() {
		out[i] = *f
	}
	return out
}

// PatchParam selects a timbre and how a part plays it.
type PatchParam struct {
	TimbreGroup  uint8 // 0-3 (A, B, memory, rhythm)
	TimbreNum    uint8 // 0-63
	KeyShift     uint8 // 0-48 (-24 to +24)
	FineTune     uint8 // 0-100 (-50 to +50)
	BenderRange  uint8 // 0-24
	AssignMode   uint8 // 0-3
	ReverbSwitch uint8 // 0-1
	dummy        uint8
}

var patchMax = [PatchSize]uint8{3, 63, 48, 100, 24, 3, 1, 0}

func (p *PatchParam) fields() []*uint8 {
	return []*uint8{&p.TimbreGroup, &p.TimbreNum, &p.KeyShift, &p.FineTune,
		&p.BenderRange, &p.AssignMode, &p.ReverbSwitch, &p.dummy}
}

// AbsTimbreNum is the index of the patch's timbre in timbre memory.
func (p *PatchParam) AbsTimbreNum() int {
	return int(p.TimbreGroup)*64 + int(p.TimbreNum)
}

// DefaultPatch plays timbre num of the first two banks with neutral settings.
func DefaultPatch(num int) PatchParam {
	return PatchParam{
		TimbreGroup:  uint8(num / 64 & 1),
		TimbreNum:    uint8(num % 64),
		KeyShift:     24,
		FineTune:     50,
		BenderRange:  12,
		ReverbSwitch: 1,
	}
}

// PatchTemp is the live patch of a part.
type PatchTemp struct {
	Patch       PatchParam
	OutputLevel uint8 // 0-100
	Panpot      uint8 // 0-14 (R-L)
	dummy       [6]uint8
}

func (p *PatchTemp) fields() []*uint8 {
	f := p.Patch.fields()
	f = append(f, &p.OutputLevel, &p.Panpot)
	for i := range p.dummy {
		f = append(f, &p.dummy[i])
	}
	return f
}

var patchTempMax = [PatchTempSize]uint8{3, 63, 48, 100, 24, 3, 1, 0, 100, 14}

// RhythmTemp maps one rhythm key to a timbre.
type RhythmTemp struct {
	Timbre       uint8 // 0-94 (memory 1-64, rhythm 1-30), 127 is off
	OutputLevel  uint8 // 0-100
	Panpot       uint8 // 0-14
	ReverbSwitch uint8 // 0-1
}

func (r *RhythmTemp) fields() []*uint8 {
	return []*uint8{&r.Timbre, &r.OutputLevel, &r.Panpot, &r.ReverbSwitch}
}

var rhythmTempMax = [RhythmTempSize]uint8{127, 100, 14, 1}

// SystemParam is the system area.
type SystemParam struct {
	MasterTune      uint8 // 0-127, 64 is 440Hz
	ReverbMode      uint8 // 0-3
	ReverbTime      uint8 // 0-7
	ReverbLevel     uint8 // 0-7
	ReserveSettings [9]uint8
	ChanAssign      [9]uint8 // 0-15, 16 is off
	MasterVol       uint8    // 0-100
}

func (s *SystemParam) fields() []*uint8 {
	f := []*uint8{&s.MasterTune, &s.ReverbMode, &s.ReverbTime, &s.ReverbLevel}
	for i := range s.ReserveSettings {
		f = append(f, &s.ReserveSettings[i])
	}
	for i := range s.ChanAssign {
		f = append(f, &s.ChanAssign[i])
	}
	return append(f, &s.MasterVol)
}

var systemMax = [SystemSize]uint8{
	127, 3, 7, 7,
	32, 32, 32, 32, 32, 32, 32, 32, 32,
	16, 16, 16, 16, 16, 16, 16, 16, 16,
	100,
}

// DefaultSystem is the power-on system area: parts 1-8 on MIDI channels 2-9,
// rhythm on channel 10.
func DefaultSystem() SystemParam {
	return SystemParam{
		MasterTune:      0x4A,
		ReverbMode:      0,
		ReverbTime:      5,
		ReverbLevel:     3,
		ReserveSettings: [9]uint8{3, 10, 6, 4, 3, 0, 0, 0, 6},
		ChanAssign:      [9]uint8{1, 2, 3, 4, 5, 6, 7, 8, 9},
		MasterVol:       100,
	}
}

// PCMWave describes one sample in the PCM ROM.
type PCMWave struct {
	Addr uint32
	Len  uint32
	Loop bool
	// Pitch is the base pitch of the sample in 1/4096 octaves.
	Pitch uint16
	// UnaffectedByMasterTune samples ignore the master tune setting.
	UnaffectedByMasterTune bool
}

// ControlROMFeatures enable the behavioural differences between hardware
// generations.
type ControlROMFeatures struct {
	// QuirkBasePitchOverflow wraps the base pitch to 16 bits instead of clamping.
	QuirkBasePitchOverflow bool
	// QuirkPitchEnvelopeOverflow wraps the final pitch to 16 bits.
	QuirkPitchEnvelopeOverflow bool
	// QuirkRingModulationNoMix mutes only no-mix ring modulated partials when
	// computing the basic amp.
	QuirkRingModulationNoMix bool
	// QuirkTVAZeroEnvLevels only detects trailing zero levels from phase 4.
	QuirkTVAZeroEnvLevels bool
	// QuirkKeyShift applies the patch key shift in the pitch unit rather than
	// to the key.
	QuirkKeyShift bool
	// QuirkTVFBaseCutoffLimit raises very low base cutoffs to -400 instead of
	// clamping them at -2048.
	QuirkTVFBaseCutoffLimit bool
}

// ROMSet is everything the synth needs from the control and PCM ROMs, already
// decoded. Timbres are indexed by absolute timbre number: 0-63 group A, 64-127
// group B, 128-191 memory, 192-255 rhythm.
type ROMSet struct {
	Name     string
	PCM      []int16
	PCMWaves []PCMWave
	Timbres  []TimbreParam
	// Patches defaults to DefaultPatch for missing entries.
	Patches     []PatchParam
	RhythmSetup []RhythmTemp
	System      *SystemParam
	// RhythmTimbreCount is the number of timbres in the rhythm bank.
	RhythmTimbreCount int
	// Programs are the power-on programs of parts 1-8 and Panpots the
	// power-on panpots of all nine parts. Missing entries use defaults.
	Programs []uint8
	Panpots  []uint8
	Reverb   reverb.Compatibility
	Features ControlROMFeatures
}

// DefaultPrograms are the power-on programs of the MT-32 parts 1-8.
var DefaultPrograms = [8]uint8{0, 68, 48, 95, 78, 41, 3, 110}

// decodeBlock overlays data onto the fields starting at offset, clamping
// each byte to its maximum.
func decodeBlock(fields []*uint8, max []uint8, offset int, data []byte) {
	for i, v := range data {
		j := offset + i
		if j < 0 || j >= len(fields) {
			continue
		}
		*fields[j] = clampTo(v, max[j])
	}
}
