package synth

// The pitch unit is run by the MCU from a software timer rather than per
// sample. Its clock ticks at 500kHz, i.e. 15.625 ticks per output sample; we
// service it every processPeriod samples and keep the fractional tick count.
const (
	processPeriod          = 4
	timerTicksPerPeriodX16 = 250 * processPeriod // 15.625 * 16 per sample
	maxPitch               = 59392
)

var lowerDurationToDivisor = [8]uint16{34078, 37162, 40526, 44194, 48194, 52556, 57312, 62499}

// Keyfollow multipliers in 1/8192 units: -1, -1/2, -1/4, 0, 1/8, 1/4, 3/8,
// 1/2, 5/8, 3/4, 7/8, 1, 5/4, 3/2, 2, s1, s2.
var pitchKeyfollowMult = [17]int32{-8192, -4096, -2048, 0, 1024, 2048, 3072, 4096, 5120, 6144, 7168, 8192, 10240, 12288, 16384, 8198, 8226}

var keyToPitchTable [128]int32

func init() {
	for i := range keyToPitchTable {
		keyToPitchTable[i] = int32((i*4096 + 6) / 12)
	}
}

func keyToPitch(key int) int32 {
	d := key - 60
	if d < 0 {
		return -keyToPitchTable[-d]
	}
	return keyToPitchTable[d]
}

func coarseToPitch(coarse int) int32 {
	return int32((coarse - 36) * 4096 / 12)
}

func fineToPitch(fine int) int32 {
	return int32((fine - 50) * 4096 / 1200)
}

// tvp is the time variant pitch unit: base pitch, pitch envelope and LFO.
type tvp struct {
	partial *Partial

	param *PartialParam
	part  *Part

	timeElapsed uint32
	timerFrac   uint32
	counter     int

	basePitch uint32
	pitch     uint16

	phase                        int
	targetPitchOffsetWithoutLFO  int32
	currentPitchOffset           int32
	lfoPitchOffset               int32
	timeKeyfollowSubtraction     int32
	pitchOffsetChangePerBigTick  int16
	targetPitchOffsetReachedTick uint16
	shifts                       int
}

func calcBasePitch(p *Partial, param *PartialParam, patchTemp *PatchTemp, key int) uint32 {
	features := &p.synth.features
	basePitch := keyToPitch(key)
	basePitch = (basePitch * pitchKeyfollowMult[param.WG.PitchKeyfollow]) >> 13
	basePitch += coarseToPitch(int(param.WG.PitchCoarse))
	basePitch += fineToPitch(int(param.WG.PitchFine))
	if features.QuirkKeyShift {
		basePitch += coarseToPitch(int(patchTemp.Patch.KeyShift) + 12)
	}
	basePitch += fineToPitch(int(patchTemp.Patch.FineTune))

	if wave := p.pcmWave; wave != nil {
		basePitch += int32(wave.Pitch)
	} else if param.WG.Waveform&1 == 0 {
		// middle C at about 261.64Hz
		basePitch += 37133
	} else {
		// sawtooth sounds an octave higher than square
		basePitch += 33037
	}

	if features.QuirkBasePitchOverflow {
		return uint32(basePitch) & 0xFFFF
	}
	if basePitch < 0 {
		return 0
	}
	if basePitch > maxPitch {
		return maxPitch
	}
	return uint32(basePitch)
}

func calcVeloMult(veloSensitivity uint8, velocity int) int32 {
	if veloSensitivity == 0 {
		// about 64 semitones
		return 21845
	}
	reversedVelocity := uint32(127 - velocity)
	var scaled uint32
	if veloSensitivity > 3 {
		scaled = (reversedVelocity << 8) >> ((3 - uint32(veloSensitivity)) & 0x1F)
	} else {
		scaled = reversedVelocity << (5 + veloSensitivity)
	}
	return int32(((32768 - scaled) * 21845) >> 15)
}

func calcTargetPitchOffsetWithoutLFO(param *PartialParam, levelIndex int, velocity int) int32 {
	veloMult := calcVeloMult(param.PitchEnv.VeloSensitivity, velocity)
	offset := int32(param.PitchEnv.Level[levelIndex]) - 50
	return (offset * veloMult) >> (16 - param.PitchEnv.Depth)
}

func (t *tvp) reset(part *Part, param *PartialParam) {
	t.part = part
	t.param = param
	poly := t.partial.poly()
	key := poly.key

	t.timeElapsed = 0
	t.timerFrac = 0
	t.counter = 0

	t.basePitch = calcBasePitch(t.partial, param, &part.patchTemp, key)
	t.currentPitchOffset = calcTargetPitchOffsetWithoutLFO(param, 0, poly.velocity)
	t.targetPitchOffsetWithoutLFO = t.currentPitchOffset
	t.phase = 0

	if param.PitchEnv.TimeKeyfollow != 0 {
		t.timeKeyfollowSubtraction = int32(key-60) >> (5 - param.PitchEnv.TimeKeyfollow)
	} else {
		t.timeKeyfollowSubtraction = 0
	}
	t.lfoPitchOffset = 0
	t.pitch = uint16(t.basePitch)

	t.pitchOffsetChangePerBigTick = 0
	t.targetPitchOffsetReachedTick = 0
	t.shifts = 0
}

func (t *tvp) updatePitch() {
	s := t.partial.synth
	newPitch := int32(t.basePitch) + t.currentPitchOffset
	if wave := t.partial.pcmWave; wave == nil || !wave.UnaffectedByMasterTune {
		newPitch += s.masterTunePitchDelta
	}
	if t.param.WG.PitchBenderEnabled&1 != 0 {
		newPitch += t.part.pitchBend
	}

	if s.features.QuirkPitchEnvelopeOverflow {
		newPitch &= 0xFFFF
	} else if newPitch < 0 {
		newPitch = 0
	} else if newPitch > maxPitch {
		newPitch = maxPitch
	}
	t.pitch = uint16(newPitch)

	// the CM-32L refreshes the sustain level from here
	t.partial.tva.recalcSustain()
}

func (t *tvp) targetPitchOffsetReached() {
	t.currentPitchOffset = t.targetPitchOffsetWithoutLFO + t.lfoPitchOffset
	switch t.phase {
	case 3, 4:
		lfo := (int32(t.part.modulation) * int32(t.param.PitchLFO.ModSensitivity)) >> 7
		lfo = (lfo + int32(t.param.PitchLFO.Depth)) << 1
		if t.pitchOffsetChangePerBigTick > 0 {
			// swing the other way
			lfo = -lfo
		}
		t.lfoPitchOffset = lfo
		target := t.targetPitchOffsetWithoutLFO + t.lfoPitchOffset
		t.setupPitchChange(target, uint8(101-int(t.param.PitchLFO.Rate)))
		t.updatePitch()
	case 6:
		t.updatePitch()
	default:
		t.nextPhase()
	}
}

func (t *tvp) nextPhase() {
	t.phase++
	envIndex := t.phase
	if t.phase == 6 {
		envIndex = 4
	}
	t.targetPitchOffsetWithoutLFO = calcTargetPitchOffsetWithoutLFO(t.param, envIndex, t.partial.poly().velocity)

	changeDuration := int32(t.param.PitchEnv.Time[envIndex-1]) - t.timeKeyfollowSubtraction
	if changeDuration > 0 {
		t.setupPitchChange(t.targetPitchOffsetWithoutLFO, uint8(changeDuration))
		t.updatePitch()
	} else {
		t.targetPitchOffsetReached()
	}
}

// normalise shifts val left until bit 31 is set and returns the shift count.
func normalise(val *uint32) int {
	shifts := 0
	for ; shifts < 31; shifts++ {
		if *val&0x80000000 != 0 {
			break
		}
		*val <<= 1
	}
	return shifts
}

func (t *tvp) setupPitchChange(targetPitchOffset int32, changeDuration uint8) {
	negativeDelta := targetPitchOffset < t.currentPitchOffset
	delta := targetPitchOffset - t.currentPitchOffset
	if delta > 32767 || delta < -32768 {
		delta = 32767
	}
	if negativeDelta {
		delta = -delta
	}
	// use as many bits of the 16-bit change per tick as possible
	absDelta := (uint32(delta) & 0xFFFF) << 16
	normalisationShifts := normalise(&absDelta)
	absDelta >>= 1 // room for the sign

	changeDuration--
	upperDuration := int(changeDuration >> 3)
	t.shifts = normalisationShifts + upperDuration + 2
	divisor := uint32(lowerDurationToDivisor[changeDuration&7])
	change := int16(((absDelta & 0xFFFF0000) / divisor) >> 1)
	if negativeDelta {
		change = -change
	}
	t.pitchOffsetChangePerBigTick = change

	currentBigTick := t.timeElapsed >> 8
	var durationInBigTicks uint32
	if shift := 12 - upperDuration; shift >= 0 {
		durationInBigTicks = divisor >> shift
	} else {
		durationInBigTicks = divisor << -shift
	}
	if durationInBigTicks > 32767 {
		durationInBigTicks = 32767
	}
	// wrapping past 16 bits is intended
	t.targetPitchOffsetReachedTick = uint16(currentBigTick + durationInBigTicks)
}

func (t *tvp) startDecay() {
	t.phase = 5
	t.lfoPitchOffset = 0
	t.targetPitchOffsetReachedTick = uint16(t.timeElapsed >> 8)
}

// nextPitch returns the pitch for the next sample, servicing the MCU timer
// when it is due.
func (t *tvp) nextPitch() uint16 {
	if t.counter == 0 {
		t.timerFrac += timerTicksPerPeriodX16
		t.timeElapsed = (t.timeElapsed + t.timerFrac>>4) & 0x00FFFFFF
		t.timerFrac &= 15
		t.process()
		t.counter = processPeriod
	}
	t.counter--
	return t.pitch
}

func (t *tvp) process() {
	if t.phase == 0 {
		t.targetPitchOffsetReached()
		return
	}
	if t.phase == 5 {
		t.nextPhase()
		return
	}
	if t.phase > 7 {
		t.updatePitch()
		return
	}

	negativeBigTicksRemaining := int16(uint16(t.timeElapsed>>8) - t.targetPitchOffsetReachedTick)
	if negativeBigTicksRemaining >= 0 {
		t.targetPitchOffsetReached()
		return
	}
	rightShifts := t.shifts
	remaining := int32(negativeBigTicksRemaining)
	if rightShifts > 13 {
		remaining >>= uint(rightShifts-13) & 0x1F
		rightShifts = 13
	}
	result := (remaining * int32(t.pitchOffsetChangePerBigTick)) >> rightShifts
	t.currentPitchOffset = result + t.targetPitchOffsetWithoutLFO + t.lfoPitchOffset
	t.updatePitch()
}
