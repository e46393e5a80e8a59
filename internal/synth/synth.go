// Package synth emulates the MT-32 family of LA synthesizers: MIDI and
// SysEx handling, voice allocation, the per-partial envelope units and the
// mixing of LA32 and reverb output.
//
// A Synth is driven from one rendering goroutine. MIDI may be queued from
// any goroutine; everything else must be called from the rendering one.
package synth

import (
	"fmt"
	"sync/atomic"

	"github.com/cbegin/mt32emu-go/internal/logger"
	"github.com/cbegin/mt32emu-go/internal/reverb"
)

// maxSamplesPerRun bounds a single render pass between MIDI events.
const maxSamplesPerRun = 4096

// DACOutputStreams receives the separated outputs of RenderStreams. Any
// stream may be nil when it is not wanted; the non-nil ones must have equal
// length.
type DACOutputStreams struct {
	NonReverbLeft  []int16
	NonReverbRight []int16
	ReverbDryLeft  []int16
	ReverbDryRight []int16
	ReverbWetLeft  []int16
	ReverbWetRight []int16
}

func (st *DACOutputStreams) all() [6]*[]int16 {
	return [6]*[]int16{
		&st.NonReverbLeft, &st.NonReverbRight,
		&st.ReverbDryLeft, &st.ReverbDryRight,
		&st.ReverbWetLeft, &st.ReverbWetRight,
	}
}

func (st *DACOutputStreams) length() int {
	for _, s := range st.all() {
		if *s != nil {
			return len(*s)
		}
	}
	return 0
}

// Synth is an MT-32 compatible synthesizer. The zero value is closed; call
// Open before use.
type Synth struct {
	opened bool
	rom    ROMSet
	report ReportHandler
	log    *logger.Logger

	features          ControlROMFeatures
	pcm               []int16
	pcmWaves          []PCMWave
	timbres           []TimbreParam
	patches           [128]PatchParam
	rhythmTemp        [RhythmKeys]RhythmTemp
	system            SystemParam
	rhythmTimbreCount int

	parts          [9]*Part
	partialManager *partialManager
	abortingPoly   *Poly
	chanTable      [16][]int
	partChannel    [9]uint8

	masterTunePitchDelta int32

	queue               *midiQueue
	renderedSampleCount atomic.Uint32
	activated           bool

	reverbCompat     reverb.Compatibility
	reverbModels     [4]reverb.Model
	reverbModel      reverb.Model
	reverbEnabled    bool
	reverbOverridden bool

	dacInputMode      DACInputMode
	analog            *analogStage
	outputGain        float32
	reverbOutputGain  float32
	reversedStereo    bool
	niceAmpRamp       bool
	nicePanning       bool
	nicePartialMixing bool

	scratch      [6][]int16
	outL, outR   []int16
	intermediate []int16
}

// New returns a closed synth.
func New() *Synth {
	return &Synth{}
}

func (s *Synth) logf(tag, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if s.log != nil {
		s.log.Log(tag, msg)
	} else {
		logger.Central().Log(tag, msg)
	}
	if s.report != nil {
		s.report.OnDebugMessage(tag + ": " + msg)
	}
}

func (s *Synth) partialAt(h Handle) *Partial { return s.partialManager.partialAt(h) }

func (s *Synth) polyAt(h Handle) *Poly { return s.partialManager.polyAt(h) }

func validateROMSet(rom *ROMSet) error {
	if len(rom.Timbres) == 0 {
		return ErrNoTimbres
	}
	for i, w := range rom.PCMWaves {
		if uint64(w.Addr)+uint64(w.Len) > uint64(len(rom.PCM)) {
			return fmt.Errorf("%w: wave %d spans %d-%d of %d samples", ErrBadPCMWave, i, w.Addr, uint64(w.Addr)+uint64(w.Len), len(rom.PCM))
		}
	}
	return nil
}

func reverbCompatibility(rom reverb.Compatibility, mode ReverbCompatibilityMode) reverb.Compatibility {
	switch mode {
	case ReverbCompatibilityMT32:
		return reverb.CompatMT32
	case ReverbCompatibilityCM32L:
		return reverb.CompatCM32L
	}
	return rom
}

// Open prepares the synth to play the ROM set. On error the synth stays
// closed.
func (s *Synth) Open(rom ROMSet, cfg Config) error {
	if s.opened {
		return ErrAlreadyOpen
	}
	if cfg.PartialCount < MinPartialCount || cfg.PartialCount > MaxPartialCount {
		return fmt.Errorf("%w: %d not in %d-%d", ErrInvalidPartialCount, cfg.PartialCount, MinPartialCount, MaxPartialCount)
	}
	if err := validateROMSet(&rom); err != nil {
		return err
	}

	s.rom = rom
	s.log = cfg.Logger
	s.report = cfg.ReportHandler
	if s.report == nil {
		s.report = NopReportHandler{}
	}
	s.features = rom.Features
	s.pcm = rom.PCM
	s.pcmWaves = rom.PCMWaves

	s.reverbCompat = reverbCompatibility(rom.Reverb, cfg.ReverbCompatibility)
	if err := s.openReverbModels(); err != nil {
		return err
	}
	s.reverbModel = nil
	s.reverbEnabled = cfg.ReverbEnabled
	s.reverbOverridden = false

	s.dacInputMode = cfg.DACInputMode
	s.analog = newAnalogStage(cfg.AnalogOutputMode)
	s.SetOutputGain(cfg.OutputGain)
	s.SetReverbOutputGain(cfg.ReverbOutputGain)
	s.reversedStereo = cfg.ReversedStereo
	s.niceAmpRamp = cfg.NiceAmpRamp
	s.nicePanning = cfg.NicePanning
	s.nicePartialMixing = cfg.NicePartialMixing

	s.queue = newMIDIQueue(cfg.MIDIQueueSize)
	s.renderedSampleCount.Store(0)
	s.activated = false
	s.abortingPoly = nil
	s.partialManager = newPartialManager(s, cfg.PartialCount)
	for i := range s.scratch {
		s.scratch[i] = make([]int16, maxSamplesPerRun)
	}
	s.outL = make([]int16, maxSamplesPerRun)
	s.outR = make([]int16, maxSamplesPerRun)
	s.intermediate = make([]int16, 2*maxSamplesPerRun)

	s.opened = true
	s.resetMemory()
	// the reverb setting in ROM applies at power on even if overridden later
	s.reverbOverridden = cfg.ReverbOverridden
	s.logf("synth", "opened %q with %d partials, %s reverb", rom.Name, cfg.PartialCount, s.reverbCompat)
	return nil
}

func (s *Synth) openReverbModels() error {
	for mode := range s.reverbModels {
		m := reverb.New(mode, s.reverbCompat)
		if err := m.Open(); err != nil {
			s.closeReverbModels()
			return fmt.Errorf("opening reverb mode %d: %w", mode, err)
		}
		s.reverbModels[mode] = m
	}
	return nil
}

func (s *Synth) closeReverbModels() {
	for i, m := range s.reverbModels {
		if m != nil {
			m.Close()
		}
		s.reverbModels[i] = nil
	}
	s.reverbModel = nil
}

// resetMemory restores the power-on contents of synth memory and reinitialises
// the parts.
func (s *Synth) resetMemory() {
	rom := &s.rom
	if s.partialManager != nil {
		s.partialManager.deactivateAll()
	}
	s.abortingPoly = nil

	s.timbres = make([]TimbreParam, 256)
	copy(s.timbres, rom.Timbres)
	for i := range s.patches {
		if i < len(rom.Patches) {
			s.patches[i] = rom.Patches[i]
		} else {
			s.patches[i] = DefaultPatch(i)
		}
	}
	for i := range s.rhythmTemp {
		if i < len(rom.RhythmSetup) {
			s.rhythmTemp[i] = rom.RhythmSetup[i]
		} else {
			s.rhythmTemp[i] = RhythmTemp{Timbre: 127, OutputLevel: 100, Panpot: 7, ReverbSwitch: 1}
		}
	}
	if rom.System != nil {
		s.system = *rom.System
	} else {
		s.system = DefaultSystem()
	}
	s.rhythmTimbreCount = rom.RhythmTimbreCount
	if s.rhythmTimbreCount > 64 {
		s.rhythmTimbreCount = 64
	}

	for i := range s.parts {
		s.parts[i] = newPart(s, i)
		if i < len(rom.Panpots) {
			s.parts[i].patchTemp.Panpot = clampTo(rom.Panpots[i], 14)
		}
	}
	for i := 0; i < 8; i++ {
		program := DefaultPrograms[i]
		if i < len(rom.Programs) {
			program = rom.Programs[i]
		}
		s.parts[i].programChange(int(program))
	}
	s.parts[RhythmPartNum].refresh()

	s.refreshMasterTune()
	for i := range s.partChannel {
		s.partChannel[i] = 0xFF
	}
	s.refreshChanTable()
	s.refreshReverb()
}

// Close releases the synth's buffers. It may be reopened.
func (s *Synth) Close() {
	if !s.opened {
		return
	}
	s.partialManager.deactivateAll()
	s.closeReverbModels()
	s.queue = nil
	s.partialManager = nil
	s.abortingPoly = nil
	for i := range s.parts {
		s.parts[i] = nil
	}
	s.opened = false
	s.logf("synth", "closed")
}

// IsOpen reports whether Open succeeded and Close has not been called.
func (s *Synth) IsOpen() bool { return s.opened }

// SampleRate returns the fixed output rate.
func (s *Synth) SampleRate() int { return SampleRate }

func (s *Synth) refreshMasterTune() {
	s.masterTunePitchDelta = ((int32(s.system.MasterTune) - 64) * 171) >> 6
}

// refreshChanTable rebuilds the channel to part map. Parts whose channel
// changed are silenced and have their controllers reset.
func (s *Synth) refreshChanTable() {
	for i := range s.chanTable {
		s.chanTable[i] = s.chanTable[i][:0]
	}
	for i, part := range s.parts {
		ch := s.system.ChanAssign[i]
		if ch != s.partChannel[i] {
			if s.partChannel[i] != 0xFF {
				part.allSoundOff()
				part.resetAllControllers()
			}
			s.partChannel[i] = ch
		}
		if ch > 15 {
			continue
		}
		s.chanTable[ch] = append(s.chanTable[ch], i)
	}
}

func (s *Synth) refreshReverb() {
	if s.reverbOverridden {
		s.logf("reverb", "mode change ignored while overridden")
		return
	}
	m := s.reverbModels[s.system.ReverbMode&3]
	if m != s.reverbModel {
		if s.reverbModel != nil {
			s.reverbModel.Mute()
		}
		s.reverbModel = m
	}
	s.reverbModel.SetParameters(s.system.ReverbTime, s.system.ReverbLevel)
}

func (s *Synth) isReverbEnabled() bool {
	return s.reverbEnabled && s.reverbModel != nil
}

// PlayMsg queues a short MIDI message to play at the current render position.
// It returns false if the synth is closed or the queue is full.
func (s *Synth) PlayMsg(msg uint32) bool {
	return s.PlayMsgAt(msg, s.renderedSampleCount.Load())
}

// PlayMsgAt queues a short MIDI message to play at sample timestamp ts.
func (s *Synth) PlayMsgAt(msg uint32, ts uint32) bool {
	if !s.opened {
		return false
	}
	if !s.queue.push(midiEvent{timestamp: ts, msg: msg}) {
		s.report.OnMIDIQueueOverflow()
		return false
	}
	return true
}

// PlaySysex queues a complete F0..F7 SysEx message to play at the current
// render position.
func (s *Synth) PlaySysex(data []byte) bool {
	return s.PlaySysexAt(data, s.renderedSampleCount.Load())
}

// PlaySysexAt queues a SysEx message to play at sample timestamp ts. The
// data is copied.
func (s *Synth) PlaySysexAt(data []byte, ts uint32) bool {
	if !s.opened {
		return false
	}
	e := midiEvent{timestamp: ts, sysex: append([]byte(nil), data...)}
	if !s.queue.push(e) {
		s.report.OnMIDIQueueOverflow()
		return false
	}
	return true
}

// FlushMIDIQueue plays every queued event immediately and returns how many
// were played.
func (s *Synth) FlushMIDIQueue() int {
	if !s.opened {
		return 0
	}
	n := 0
	for {
		e, ok := s.queue.peek()
		if !ok {
			return n
		}
		s.playEvent(e)
		s.queue.drop()
		n++
	}
}

func (s *Synth) playEvent(e midiEvent) {
	s.activated = true
	if e.sysex != nil {
		s.playSysexNow(e.sysex)
	} else {
		s.playMsgNow(e.msg)
	}
}

func (s *Synth) playMsgNow(msg uint32) {
	code := int(msg&0xF0) >> 4
	channel := int(msg & 0x0F)
	note := int(msg>>8) & 0x7F
	velocity := int(msg>>16) & 0x7F
	parts := s.chanTable[channel]
	if len(parts) == 0 {
		return
	}
	for _, num := range parts {
		s.playMsgOnPart(s.parts[num], code, note, velocity)
	}
}

func (s *Synth) playMsgOnPart(part *Part, code, note, velocity int) {
	switch code {
	case 0x8:
		part.noteOff(note)
	case 0x9:
		if velocity == 0 {
			// MIDI running status note off
			part.noteOff(note)
		} else {
			part.noteOn(note, velocity)
		}
	case 0xB:
		switch note {
		case 0x01:
			part.setModulation(velocity)
		case 0x06:
			part.setDataEntryMSB(velocity)
		case 0x07:
			part.setVolume(velocity)
		case 0x0A:
			part.setPan(velocity)
		case 0x0B:
			part.setExpression(velocity)
		case 0x40:
			part.setHoldPedal(velocity >= 64)
		case 0x62, 0x63:
			part.setNRPN()
		case 0x64:
			part.setRPNLSB(velocity)
		case 0x65:
			part.setRPNMSB(velocity)
		case 0x79:
			part.resetAllControllers()
		case 0x7B:
			part.allNotesOff()
		case 0x7C, 0x7D, 0x7E, 0x7F:
			// omni and mono/poly messages also act as all notes off
			part.setHoldPedal(false)
			part.allNotesOff()
		default:
			s.logf("midi", "part %d: unknown controller %02x", part.num+1, note)
		}
	case 0xC:
		part.programChange(note)
	case 0xE:
		part.setBend(velocity<<7 | note)
	default:
		s.logf("midi", "part %d: unknown message code %x", part.num+1, code)
	}
}

// Render fills dst with interleaved stereo samples.
func (s *Synth) Render(dst []int16) {
	if !s.opened {
		clear(dst)
		return
	}
	frames := len(dst) / 2
	for done := 0; done < frames; {
		n := min(frames-done, maxSamplesPerRun)
		st := s.scratchStreams(n)
		s.renderStreams(st)
		outL, outR := s.outL[:n], s.outR[:n]
		s.analog.process(outL, st.NonReverbLeft, st.ReverbDryLeft, st.ReverbWetLeft, &s.analog.left)
		s.analog.process(outR, st.NonReverbRight, st.ReverbDryRight, st.ReverbWetRight, &s.analog.right)
		out := dst[2*done : 2*(done+n)]
		for i := 0; i < n; i++ {
			out[2*i] = outL[i]
			out[2*i+1] = outR[i]
		}
		done += n
	}
	if len(dst)%2 != 0 {
		dst[len(dst)-1] = 0
	}
}

// RenderFloat fills dst with interleaved stereo samples scaled to [-1, 1).
func (s *Synth) RenderFloat(dst []float32) {
	for done := 0; done < len(dst); {
		n := min(len(dst)-done, len(s.intermediate))
		if n == 0 {
			// closed synth without buffers
			clear(dst)
			return
		}
		buf := s.intermediate[:n]
		s.Render(buf)
		for i, v := range buf {
			dst[done+i] = float32(v) / 32768
		}
		done += n
	}
}

func (s *Synth) scratchStreams(n int) *DACOutputStreams {
	return &DACOutputStreams{
		NonReverbLeft:  s.scratch[0][:n],
		NonReverbRight: s.scratch[1][:n],
		ReverbDryLeft:  s.scratch[2][:n],
		ReverbDryRight: s.scratch[3][:n],
		ReverbWetLeft:  s.scratch[4][:n],
		ReverbWetRight: s.scratch[5][:n],
	}
}

// RenderStreams renders the separated DAC streams without the analog stage
// and output gains.
func (s *Synth) RenderStreams(streams *DACOutputStreams) {
	total := streams.length()
	if !s.opened {
		for _, st := range streams.all() {
			clear(*st)
		}
		return
	}
	for done := 0; done < total; {
		n := min(total-done, maxSamplesPerRun)
		chunk := s.scratchStreams(n)
		dst := chunk.all()
		for i, st := range streams.all() {
			if *st != nil {
				*dst[i] = (*st)[done : done+n]
			}
		}
		s.renderStreams(chunk)
		done += n
	}
}

// renderStreams renders len(st.NonReverbLeft) samples, playing MIDI events
// as their timestamps come due. While a poly is being aborted to make room,
// rendering proceeds one sample at a time and the pending event is retried.
func (s *Synth) renderStreams(st *DACOutputStreams) {
	total := len(st.NonReverbLeft)
	for pos := 0; pos < total; {
		// at least one sample passes per event so zero-length notes sound
		thisLen := 1
		if s.abortingPoly == nil {
			if e, ok := s.queue.peek(); ok {
				toNext := int32(e.timestamp - s.renderedSampleCount.Load())
				if toNext > 0 {
					thisLen = min(total-pos, maxSamplesPerRun, int(toNext))
				} else {
					s.playEvent(e)
					if e.sysex != nil || s.abortingPoly == nil {
						s.queue.drop()
					}
				}
			} else {
				thisLen = min(total-pos, maxSamplesPerRun)
			}
		}
		s.doRenderStreams(&DACOutputStreams{
			NonReverbLeft:  st.NonReverbLeft[pos : pos+thisLen],
			NonReverbRight: st.NonReverbRight[pos : pos+thisLen],
			ReverbDryLeft:  st.ReverbDryLeft[pos : pos+thisLen],
			ReverbDryRight: st.ReverbDryRight[pos : pos+thisLen],
			ReverbWetLeft:  st.ReverbWetLeft[pos : pos+thisLen],
			ReverbWetRight: st.ReverbWetRight[pos : pos+thisLen],
		})
		pos += thisLen
	}
}

func (s *Synth) doRenderStreams(st *DACOutputStreams) {
	n := len(st.NonReverbLeft)
	for _, buf := range st.all() {
		clear(*buf)
	}
	if !s.activated {
		s.renderedSampleCount.Add(uint32(n))
		return
	}
	pm := s.partialManager
	for i := range pm.partials {
		p := &pm.partials[i]
		if p.shouldReverb() {
			p.produceOutput(st.ReverbDryLeft, st.ReverbDryRight)
		} else {
			p.produceOutput(st.NonReverbLeft, st.NonReverbRight)
		}
	}
	convertLA32Output(s.dacInputMode, st.NonReverbLeft)
	convertLA32Output(s.dacInputMode, st.NonReverbRight)
	if s.isReverbEnabled() {
		s.reverbModel.Process(st.ReverbDryLeft, st.ReverbDryRight, st.ReverbWetLeft, st.ReverbWetRight)
		convertReverbOutput(s.dacInputMode, st.ReverbWetLeft)
		convertReverbOutput(s.dacInputMode, st.ReverbWetRight)
	}
	convertLA32Output(s.dacInputMode, st.ReverbDryLeft)
	convertLA32Output(s.dacInputMode, st.ReverbDryRight)
	pm.clearAlreadyOutputed()
	s.renderedSampleCount.Add(uint32(n))
}

// IsActive reports whether rendering can still produce sound: MIDI is
// queued, partials are playing or the reverb tail is audible.
func (s *Synth) IsActive() bool {
	if !s.opened {
		return false
	}
	if !s.queue.isEmpty() || s.partialManager.activePartialCount() > 0 {
		return true
	}
	if s.isReverbEnabled() && s.reverbModel.IsActive() {
		return true
	}
	s.activated = false
	return false
}

// RenderedSampleCount returns the number of samples rendered since Open.
func (s *Synth) RenderedSampleCount() uint32 {
	return s.renderedSampleCount.Load()
}

// PartialCount returns the size of the partial pool.
func (s *Synth) PartialCount() int {
	if !s.opened {
		return 0
	}
	return len(s.partialManager.partials)
}

// ActivePartialCount returns the number of partials currently playing.
func (s *Synth) ActivePartialCount() int {
	if !s.opened {
		return 0
	}
	return s.partialManager.activePartialCount()
}

// PartialStates returns the state of every partial in the pool.
func (s *Synth) PartialStates() []PartialState {
	if !s.opened {
		return nil
	}
	states := make([]PartialState, len(s.partialManager.partials))
	for i := range s.partialManager.partials {
		if p := &s.partialManager.partials[i]; p.isActive() {
			states[i] = tvaPhaseToState[p.tva.phase]
		}
	}
	return states
}

// PolyCount returns the number of notes sounding on part num (0-8).
func (s *Synth) PolyCount(num int) int {
	if !s.opened || num < 0 || num >= len(s.parts) {
		return 0
	}
	return s.parts[num].ActivePolyCount()
}

// PartTimbreName returns the name of the timbre part num (0-8) plays.
func (s *Synth) PartTimbreName(num int) string {
	if !s.opened || num < 0 || num >= len(s.parts) {
		return ""
	}
	return s.parts[num].TimbreName()
}

// System returns a copy of the system area.
func (s *Synth) System() SystemParam { return s.system }

// SetReverbEnabled switches the reverb unit on or off.
func (s *Synth) SetReverbEnabled(enabled bool) {
	if s.reverbEnabled && !enabled && s.reverbModel != nil {
		s.reverbModel.Mute()
	}
	s.reverbEnabled = enabled
}

// IsReverbEnabled reports whether reverb is switched on.
func (s *Synth) IsReverbEnabled() bool { return s.reverbEnabled }

// SetReverbOverridden makes the synth ignore reverb settings sent by SysEx.
func (s *Synth) SetReverbOverridden(overridden bool) { s.reverbOverridden = overridden }

// SetReverbCompatibilityMode swaps the reverb models for those of another
// hardware generation.
func (s *Synth) SetReverbCompatibilityMode(mode ReverbCompatibilityMode) error {
	if !s.opened {
		return ErrNotOpen
	}
	compat := reverbCompatibility(s.rom.Reverb, mode)
	if compat == s.reverbCompat {
		return nil
	}
	s.closeReverbModels()
	s.reverbCompat = compat
	if err := s.openReverbModels(); err != nil {
		return err
	}
	overridden := s.reverbOverridden
	s.reverbOverridden = false
	s.refreshReverb()
	s.reverbOverridden = overridden
	return nil
}

// SetOutputGain scales the LA32 output. Negative gains are made positive.
func (s *Synth) SetOutputGain(gain float32) {
	if gain < 0 {
		gain = -gain
	}
	s.outputGain = gain
	if s.analog != nil {
		s.analog.synthGain = gainFactor(gain)
	}
}

// SetReverbOutputGain scales the reverb wet output.
func (s *Synth) SetReverbOutputGain(gain float32) {
	if gain < 0 {
		gain = -gain
	}
	s.reverbOutputGain = gain
	if s.analog != nil {
		s.analog.reverbGain = gainFactor(gain)
	}
}

// SetReversedStereo swaps left and right for notes started afterwards.
func (s *Synth) SetReversedStereo(reversed bool) { s.reversedStereo = reversed }

// SetNiceAmpRamp toggles the click-free sustain level update.
func (s *Synth) SetNiceAmpRamp(enabled bool) { s.niceAmpRamp = enabled }

// SetNicePanning toggles the full 15 step pan resolution.
func (s *Synth) SetNicePanning(enabled bool) { s.nicePanning = enabled }

// SetNicePartialMixing disables the phase inversion of every other group of
// eight partials.
func (s *Synth) SetNicePartialMixing(enabled bool) { s.nicePartialMixing = enabled }

// SetDACInputMode changes how LA32 output is fed to the DAC.
func (s *Synth) SetDACInputMode(mode DACInputMode) { s.dacInputMode = mode }

// SetAnalogOutputMode changes the emulation of the analog output stage.
func (s *Synth) SetAnalogOutputMode(mode AnalogOutputMode) {
	if s.analog == nil {
		return
	}
	s.analog.mode = mode
	s.analog.reset()
}
