package synth

import (
	"github.com/cbegin/mt32emu-go/internal/la32"
	"github.com/cbegin/mt32emu-go/internal/tables"
)

// TVF envelope phases, named after the phase being entered.
const (
	tvfPhaseAttack = iota + 1
	tvfPhase2
	tvfPhase3
	tvfPhase4
	tvfPhaseSustain
	tvfPhaseRelease
	tvfPhaseDone
)

var biasLevelToBiasMult = [15]int{85, 42, 21, 16, 10, 5, 2, 0, -2, -5, -10, -16, -21, -42, -85}

// Keyfollow in 1/21 units, same order as pitchKeyfollowMult.
var keyfollowMult21 = [17]int{-21, -10, -5, 0, 2, 5, 8, 10, 13, 16, 18, 21, 26, 32, 42, 21, 21}

// tvf is the time variant filter. It only ramps the cutoff modifier; the
// filtering itself is the LA32 resonance wave.
type tvf struct {
	partial *Partial
	ramp    *la32.Ramp
	param   *PartialParam

	baseCutoff         uint8
	levelMult          int
	keyTimeSubtraction int

	target uint8
	phase  int
}

func calcBaseCutoff(param *PartialParam, basePitch uint32, key int, features *ControlROMFeatures) uint8 {
	baseCutoff := keyfollowMult21[param.TVF.Keyfollow] - keyfollowMult21[param.WG.PitchKeyfollow]
	baseCutoff *= key - 60

	biasPoint := int(param.TVF.BiasPoint)
	if biasPoint&0x40 == 0 {
		if bias := biasPoint + 33 - key; bias > 0 {
			baseCutoff -= bias * biasLevelToBiasMult[param.TVF.BiasLevel]
		}
	} else {
		if bias := biasPoint - 31 - key; bias < 0 {
			baseCutoff += bias * biasLevelToBiasMult[param.TVF.BiasLevel]
		}
	}

	baseCutoff += int(param.TVF.Cutoff)<<4 - 800
	if baseCutoff >= 0 {
		if over := int(basePitch>>4) + baseCutoff - 3584; over > 0 {
			baseCutoff -= over
		}
	} else if features.QuirkTVFBaseCutoffLimit {
		if baseCutoff <= -0x400 {
			baseCutoff = -400
		}
	} else if baseCutoff < -2048 {
		baseCutoff = -2048
	}
	baseCutoff = (baseCutoff + 2056) >> 4
	if baseCutoff > 255 {
		baseCutoff = 255
	}
	if baseCutoff < 0 {
		baseCutoff = 0
	}
	return uint8(baseCutoff)
}

func (t *tvf) startRamp(target, increment uint8, phase int) {
	t.target = target
	t.phase = phase
	t.ramp.StartRamp(target, increment)
}

func (t *tvf) reset(param *PartialParam, basePitch uint32) {
	t.param = param
	poly := t.partial.poly()
	key, velocity := poly.key, poly.velocity
	tb := tables.Get()

	t.baseCutoff = calcBaseCutoff(param, basePitch, key, &t.partial.synth.features)

	levelMult := (velocity * int(param.TVF.EnvVeloSensitivity)) >> 6
	levelMult += 109 - int(param.TVF.EnvVeloSensitivity)
	levelMult += (key - 60) >> (4 - param.TVF.EnvDepthKeyfollow)
	if levelMult < 0 {
		levelMult = 0
	}
	levelMult = (levelMult * int(param.TVF.EnvDepth)) >> 6
	if levelMult > 255 {
		levelMult = 255
	}
	t.levelMult = levelMult

	if param.TVF.EnvTimeKeyfollow != 0 {
		t.keyTimeSubtraction = (key - 60) >> (5 - param.TVF.EnvTimeKeyfollow)
	} else {
		t.keyTimeSubtraction = 0
	}

	target := (levelMult * int(param.TVF.EnvLevel[0])) >> 8
	envTimeSetting := int(param.TVF.EnvTime[0]) - t.keyTimeSubtraction
	var increment int
	if envTimeSetting <= 0 {
		increment = 0x80 | 127
	} else {
		increment = int(tb.EnvLogarithmicTime[target]) - envTimeSetting
		if increment <= 0 {
			increment = 1
		}
	}
	t.ramp.Reset()
	t.startRamp(uint8(target), uint8(increment), tvfPhaseAttack)
}

func (t *tvf) handleInterrupt() {
	t.nextPhase()
}

func (t *tvf) startDecay() {
	if t.phase >= tvfPhaseRelease {
		return
	}
	increment := uint8(1)
	if t.param.TVF.EnvTime[4] != 0 {
		increment = uint8(-int8(t.param.TVF.EnvTime[4]))
	}
	t.startRamp(0, increment, tvfPhaseDone-1)
}

func (t *tvf) nextPhase() {
	newPhase := t.phase + 1
	env := &t.param.TVF

	switch newPhase {
	case tvfPhaseDone:
		t.startRamp(0, 0, newPhase)
		return
	case tvfPhaseSustain, tvfPhaseRelease:
		if !t.partial.poly().canSustain() {
			t.phase = newPhase
			t.startDecay()
			return
		}
		t.startRamp(uint8((t.levelMult*int(env.EnvLevel[3]))>>8), 0, newPhase)
		return
	}

	envPointIndex := t.phase
	envTimeSetting := int(env.EnvTime[envPointIndex]) - t.keyTimeSubtraction
	target := (t.levelMult * int(env.EnvLevel[envPointIndex])) >> 8

	var increment int
	if envTimeSetting > 0 {
		delta := target - int(t.target)
		if delta == 0 {
			// a zero step would never interrupt
			if target == 0 {
				delta, target = 1, 1
			} else {
				delta = -1
				target--
			}
		}
		abs := delta
		if abs < 0 {
			abs = -abs
		}
		increment = int(tables.Get().EnvLogarithmicTime[abs]) - envTimeSetting
		if increment <= 0 {
			increment = 1
		}
		if delta < 0 {
			increment |= 0x80
		}
	} else if target >= int(t.target) {
		increment = 0x80 | 127
	} else {
		increment = 127
	}
	t.startRamp(uint8(target), uint8(increment), newPhase)
}
