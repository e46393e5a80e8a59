package synth

import (
	"github.com/cbegin/mt32emu-go/internal/la32"
	"github.com/cbegin/mt32emu-go/internal/tables"
)

// TVA envelope phases. A phase names the target currently being ramped to.
const (
	tvaPhaseBasic = iota
	tvaPhaseAttack
	tvaPhase2
	tvaPhase3
	tvaPhase4
	tvaPhaseSustain
	tvaPhaseRelease
	tvaPhaseDead
)

var tvaPhaseToState = [8]PartialState{
	PartialAttack, PartialAttack, PartialAttack, PartialAttack,
	PartialSustain, PartialSustain, PartialRelease, PartialInactive,
}

// tva is the time variant amplifier: it drives the amp ramp of a partial
// through its envelope, reacting to volume and expression while sustaining.
type tva struct {
	partial *Partial
	ramp    *la32.Ramp

	param  *PartialParam
	part   *Part
	rhythm *RhythmTemp

	playing bool

	biasAmpSubtraction int
	veloAmpSubtraction int
	keyTimeSubtraction int

	target uint8
	phase  int
}

func (t *tva) startRamp(target, increment uint8, phase int) {
	t.target = target
	if phase != t.phase {
		t.partial.reportPhaseChange(t.phase, phase)
	}
	t.phase = phase
	t.ramp.StartRamp(target, increment)
}

func (t *tva) end(phase int) {
	if phase != t.phase {
		t.partial.reportPhaseChange(t.phase, phase)
	}
	t.phase = phase
	t.playing = false
}

var biasLevelToAmpSubtractionCoeff = [13]int{255, 187, 137, 100, 74, 54, 40, 29, 21, 15, 10, 5, 0}

func multBias(biasLevel uint8, bias int) int {
	return (bias * biasLevelToAmpSubtractionCoeff[biasLevel]) >> 5
}

func calcBiasAmpSubtraction(biasPoint, biasLevel uint8, key int) int {
	if biasPoint&0x40 == 0 {
		bias := int(biasPoint) + 33 - key
		if bias > 0 {
			return multBias(biasLevel, bias)
		}
	} else {
		bias := int(biasPoint) - 31 - key
		if bias < 0 {
			return multBias(biasLevel, -bias)
		}
	}
	return 0
}

func calcBiasAmpSubtractions(p *PartialParam, key int) int {
	b1 := calcBiasAmpSubtraction(p.TVA.BiasPoint1, p.TVA.BiasLevel1, key)
	if b1 > 255 {
		return 255
	}
	b2 := calcBiasAmpSubtraction(p.TVA.BiasPoint2, p.TVA.BiasLevel2, key)
	if b2 > 255 {
		return 255
	}
	if b1+b2 > 255 {
		return 255
	}
	return b1 + b2
}

func calcVeloAmpSubtraction(veloSensitivity uint8, velocity int) int {
	velocityMult := int(veloSensitivity) - 50
	absVelocityMult := velocityMult
	if absVelocityMult < 0 {
		absVelocityMult = -absVelocityMult
	}
	velocityMult = int(int32(uint32(int32(velocityMult*(velocity-64))) << 2))
	return absVelocityMult - (velocityMult >> 8)
}

func calcKeyTimeSubtraction(envTimeKeyfollow uint8, key int) int {
	if envTimeKeyfollow == 0 {
		return 0
	}
	return (key - 60) >> (5 - envTimeKeyfollow)
}

func (t *tva) calcBasicAmp() int {
	tb := tables.Get()
	s := t.partial.synth
	amp := 155

	muted := t.partial.isRingModulatingSlave()
	if s.features.QuirkRingModulationNoMix {
		muted = t.partial.isRingModulatingNoMix()
	}
	if !muted {
		amp -= int(tb.MasterVolToAmpSubtraction[s.system.MasterVol])
		if amp < 0 {
			return 0
		}
		amp -= int(tb.LevelToAmpSubtraction[t.part.patchTemp.OutputLevel])
		if amp < 0 {
			return 0
		}
		amp -= int(tb.LevelToAmpSubtraction[t.part.expression])
		if amp < 0 {
			return 0
		}
		if t.rhythm != nil {
			amp -= int(tb.LevelToAmpSubtraction[t.rhythm.OutputLevel])
			if amp < 0 {
				return 0
			}
		}
	}
	amp -= t.biasAmpSubtraction
	if amp < 0 {
		return 0
	}
	amp -= int(tb.LevelToAmpSubtraction[t.param.TVA.Level])
	if amp < 0 {
		return 0
	}
	amp -= t.veloAmpSubtraction
	if amp < 0 {
		return 0
	}
	if amp > 155 {
		amp = 155
	}
	amp -= int(t.param.TVF.Resonance >> 1)
	if amp < 0 {
		return 0
	}
	return amp
}

func (t *tva) reset(part *Part, param *PartialParam, rhythm *RhythmTemp) {
	t.part = part
	t.param = param
	t.rhythm = rhythm
	t.playing = true

	poly := t.partial.poly()
	key, velocity := poly.key, poly.velocity

	t.keyTimeSubtraction = calcKeyTimeSubtraction(param.TVA.EnvTimeKeyfollow, key)
	t.biasAmpSubtraction = calcBiasAmpSubtractions(param, key)
	t.veloAmpSubtraction = calcVeloAmpSubtraction(param.TVA.VeloSensitivity, velocity)

	target := t.calcBasicAmp()
	var phase int
	if param.TVA.EnvTime[0] == 0 {
		// jump straight to the attack level; velocity then never affects time
		target += int(param.TVA.EnvLevel[0])
		phase = tvaPhaseAttack
	} else {
		phase = tvaPhaseBasic
	}

	t.ramp.Reset()
	t.phase = tvaPhaseBasic
	// "go downward as quickly as possible": from 0 this reaches the target at
	// once and raises an interrupt
	t.startRamp(uint8(target), 0x80|127, phase)
}

func (t *tva) startAbort() {
	t.startRamp(64, 0x80|127, tvaPhaseRelease)
}

func (t *tva) startDecay() {
	if t.phase >= tvaPhaseRelease {
		return
	}
	increment := uint8(1)
	if t.param.TVA.EnvTime[4] != 0 {
		increment = uint8(-int8(t.param.TVA.EnvTime[4]))
	}
	// the next interrupt finishes the release and kills the partial
	t.startRamp(0, increment, tvaPhaseRelease)
}

func (t *tva) handleInterrupt() {
	t.nextPhase()
}

// recalcSustain is called periodically from the pitch unit so that volume
// and expression changes are picked up while a note sustains.
func (t *tva) recalcSustain() {
	if t.phase != tvaPhaseSustain || t.param.TVA.EnvLevel[3] == 0 {
		return
	}
	tb := tables.Get()
	target := t.calcBasicAmp() + int(t.param.TVA.EnvLevel[3])
	delta := target - int(t.target)

	var increment uint8
	descending := delta < 0
	if !descending {
		increment = tb.EnvLogarithmicTime[uint8(delta)] - 2
	} else {
		increment = (tb.EnvLogarithmicTime[uint8(-delta)] - 2) | 0x80
	}
	// the hardware assumes the ramp has already arrived; correct the
	// direction if a previous ramp is still in flight to avoid a click
	if t.partial.synth.niceAmpRamp && descending != t.ramp.IsBelowCurrent(uint8(target)) {
		increment ^= 0x80
	}
	t.startRamp(uint8(target), increment, tvaPhaseSustain-1)
}

func (t *tva) nextPhase() {
	tb := tables.Get()
	s := t.partial.synth

	if t.phase >= tvaPhaseDead || !t.playing {
		s.logf("tva", "partial %d: nextPhase in phase %d (playing %v)", t.partial.index, t.phase, t.playing)
		return
	}
	newPhase := t.phase + 1
	if newPhase == tvaPhaseDead {
		t.end(newPhase)
		return
	}

	env := &t.param.TVA
	allLevelsZeroFromNowOn := false
	if env.EnvLevel[3] == 0 {
		if newPhase == tvaPhase4 {
			allLevelsZeroFromNowOn = true
		} else if !s.features.QuirkTVAZeroEnvLevels && env.EnvLevel[2] == 0 {
			if newPhase == tvaPhase3 {
				allLevelsZeroFromNowOn = true
			} else if env.EnvLevel[1] == 0 {
				if newPhase == tvaPhase2 {
					allLevelsZeroFromNowOn = true
				} else if env.EnvLevel[0] == 0 && newPhase == tvaPhaseAttack {
					allLevelsZeroFromNowOn = true
				}
			}
		}
	}

	var target, increment int
	envPointIndex := t.phase

	if !allLevelsZeroFromNowOn {
		target = t.calcBasicAmp()
		if newPhase == tvaPhaseSustain || newPhase == tvaPhaseRelease {
			if env.EnvLevel[3] == 0 {
				t.end(newPhase)
				return
			}
			if !t.partial.poly().canSustain() {
				newPhase = tvaPhaseRelease
				target = 0
				increment = -int(env.EnvTime[4])
				if increment == 0 {
					// an upward step reaches 0 immediately and still interrupts
					increment = 1
				}
			} else {
				target += int(env.EnvLevel[3])
				increment = 0
			}
		} else {
			target += int(env.EnvLevel[envPointIndex])
		}
	}

	if (newPhase != tvaPhaseSustain && newPhase != tvaPhaseRelease) || allLevelsZeroFromNowOn {
		envTimeSetting := int(env.EnvTime[envPointIndex])
		if newPhase == tvaPhaseAttack {
			envTimeSetting -= (t.partial.poly().velocity - 64) >> (6 - env.EnvTimeVeloSensitivity)
			if envTimeSetting <= 0 && env.EnvTime[envPointIndex] != 0 {
				envTimeSetting = 1
			}
		} else {
			envTimeSetting -= t.keyTimeSubtraction
		}
		if envTimeSetting > 0 {
			delta := target - int(t.target)
			if delta <= 0 {
				if delta == 0 {
					// a zero step would never interrupt; aim one below instead
					delta = -1
					target--
					if target < 0 {
						delta = 1
						target = -target
					}
				}
				delta = -delta
				increment = int(tb.EnvLogarithmicTime[uint8(delta)]) - envTimeSetting
				if increment <= 0 {
					increment = 1
				}
				increment |= 0x80
			} else {
				increment = int(tb.EnvLogarithmicTime[uint8(delta)]) - envTimeSetting
				if increment <= 0 {
					increment = 1
				}
			}
		} else if target >= int(t.target) {
			increment = 0x80 | 127
		} else {
			increment = 127
		}
		if increment == 0 {
			increment = 1
		}
	}
	t.startRamp(uint8(target), uint8(increment), newPhase)
}
