package synth

import (
	"math"

	"github.com/cbegin/mt32emu-go/internal/la32"
	"github.com/cbegin/mt32emu-go/internal/tables"
)

// Pan numerators indexed by panpot (0-14). Master and slave spread a
// structure pair across the field when the pair is mixed in stereo.
var (
	panNumeratorMaster = [15]int{0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7}
	panNumeratorSlave  = [15]int{0, 1, 2, 3, 4, 5, 6, 7, 7, 7, 7, 7, 7, 7, 7}
	panNumeratorNormal = [15]int{0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7}
)

// panFactors maps a pan setting to a 1/8192 multiplier.
var panFactors [15]int32

func init() {
	for i := range panFactors {
		panFactors[i] = int32(math.Floor(float64(i)*8192.0/14.0 + 0.5))
	}
}

// Handle addresses a pooled partial or poly. A handle goes stale once its
// slot is reused; stale and zero handles resolve to nil.
type Handle struct {
	Index int32
	Gen   uint32
}

// IsNull reports whether h refers to nothing.
func (h Handle) IsNull() bool { return h.Gen == 0 }

// Partial is one of the synth's fixed pool of voices. While active it belongs
// to a part and a poly and renders one LA32 wave generator, possibly paired
// with a second partial through the ring modulator.
type Partial struct {
	synth *Synth
	index int
	gen   uint32

	ownerPart       int
	alreadyOutputed bool
	state           PartialState

	polyHandle Handle
	pairHandle Handle

	cache             PatchCache
	mixType           int
	structurePosition int
	leftPan           int32
	rightPan          int32
	pcmWave           *PCMWave

	ampRamp    la32.Ramp
	cutoffRamp la32.Ramp
	tva        tva
	tvp        tvp
	tvf        tvf

	la32Pair la32.PartialPair
}

func (p *Partial) init(s *Synth, index int) {
	p.synth = s
	p.index = index
	p.ownerPart = -1
	p.tva = tva{partial: p, ramp: &p.ampRamp}
	p.tvp = tvp{partial: p}
	p.tvf = tvf{partial: p, ramp: &p.cutoffRamp}
}

func (p *Partial) handle() Handle {
	return Handle{Index: int32(p.index), Gen: p.gen}
}

func (p *Partial) isActive() bool { return p.ownerPart > -1 }

func (p *Partial) isPCM() bool { return p.pcmWave != nil }

func (p *Partial) poly() *Poly { return p.synth.polyAt(p.polyHandle) }

func (p *Partial) pair() *Partial { return p.synth.partialAt(p.pairHandle) }

// activate hands the partial to a part. Old handles to it become stale.
func (p *Partial) activate(part int) {
	p.gen++
	if p.gen == 0 {
		p.gen = 1
	}
	p.ownerPart = part
	p.polyHandle = Handle{}
	p.pairHandle = Handle{}
	p.alreadyOutputed = false
}

func (p *Partial) hasRingModulatingSlave() bool {
	return p.pair() != nil && p.structurePosition == 0 && (p.mixType == 1 || p.mixType == 2)
}

func (p *Partial) isRingModulatingSlave() bool {
	return p.pair() != nil && p.structurePosition == 1 && (p.mixType == 1 || p.mixType == 2)
}

func (p *Partial) isRingModulatingNoMix() bool {
	return p.pair() != nil && ((p.structurePosition == 1 && p.mixType == 1) || p.mixType == 2)
}

func (p *Partial) setState(state PartialState) {
	if state == p.state {
		return
	}
	old := p.state
	p.state = state
	p.synth.report.OnPartialStateChanged(p.index, old, state)
}

func (p *Partial) reportPhaseChange(oldPhase, newPhase int) {
	if tvaPhaseToState[oldPhase] != tvaPhaseToState[newPhase] {
		p.setState(tvaPhaseToState[newPhase])
	}
}

func (p *Partial) startPartial(part *Part, poly *Poly, cache *PatchCache, rhythm *RhythmTemp, pair *Partial) {
	s := p.synth
	if poly == nil || cache == nil {
		s.logf("partial", "partial %d: start for part %d without poly or patch cache", p.index, p.ownerPart)
		p.deactivate()
		return
	}
	p.cache = *cache
	param := &p.cache.srcPartial
	p.polyHandle = poly.handle()
	p.mixType = cache.structureMix
	p.structurePosition = cache.structurePosition

	var panSetting int
	if rhythm != nil {
		panSetting = int(rhythm.Panpot)
	} else {
		panSetting = int(part.patchTemp.Panpot)
	}
	if p.mixType == 3 {
		if p.structurePosition == 0 {
			panSetting = panNumeratorMaster[panSetting] << 1
		} else {
			panSetting = panNumeratorSlave[panSetting] << 1
		}
		// play as two unrelated partials
		p.mixType = 0
		pair = nil
	} else if !s.nicePanning {
		panSetting = panNumeratorNormal[panSetting] << 1
	}
	if s.reversedStereo {
		panSetting = 14 - panSetting
	}
	p.leftPan = panFactors[panSetting]
	p.rightPan = panFactors[14-panSetting]
	// partials in the upper half of each group of 16 come out of the LA32
	// with inverted phase
	if !s.nicePartialMixing && p.index&8 != 0 {
		p.leftPan = -p.leftPan
		p.rightPan = -p.rightPan
	}

	if pair != nil {
		p.pairHandle = pair.handle()
	} else {
		p.pairHandle = Handle{}
	}

	p.pcmWave = nil
	if p.cache.pcmPartial {
		num := p.cache.pcm
		if len(s.pcmWaves) > 128 && p.cache.waveform > 1 {
			num += 128
		}
		if num < len(s.pcmWaves) {
			p.pcmWave = &s.pcmWaves[num]
		} else {
			s.logf("partial", "partial %d: PCM wave %d not present, using synth wave", p.index, num)
		}
	}

	pulseWidth := (poly.velocity-64)*(int(param.WG.PulseWidthVeloSensitivity)-7) +
		int(tables.Get().PulseWidth100To255[param.WG.PulseWidth])
	if pulseWidth < 0 {
		pulseWidth = 0
	} else if pulseWidth > 255 {
		pulseWidth = 255
	}

	p.alreadyOutputed = false
	p.setState(PartialAttack)
	p.tva.reset(part, param, rhythm)
	p.tvp.reset(part, param)
	p.tvf.reset(param, p.tvp.basePitch)

	role := la32.Master
	gens := &p.la32Pair
	if p.isRingModulatingSlave() {
		role = la32.Slave
		gens = &p.pair().la32Pair
	} else {
		p.la32Pair.Init(p.hasRingModulatingSlave(), p.mixType == 1)
	}
	if w := p.pcmWave; w != nil {
		gens.InitPCM(role, s.pcm[w.Addr:w.Addr+w.Len], w.Len, w.Loop)
	} else {
		gens.InitSynth(role, p.cache.waveform&1 != 0, uint8(pulseWidth), param.TVF.Resonance+1)
	}
	if !p.hasRingModulatingSlave() {
		p.la32Pair.Deactivate(la32.Slave)
	}
}

func (p *Partial) ampValue() uint32 {
	v := 67117056 - p.ampRamp.NextValue()
	if p.ampRamp.CheckInterrupt() {
		p.tva.handleInterrupt()
	}
	return v
}

func (p *Partial) cutoffValue() uint32 {
	if p.isPCM() {
		return 0
	}
	v := p.cutoffRamp.NextValue()
	if p.cutoffRamp.CheckInterrupt() {
		p.tvf.handleInterrupt()
	}
	return uint32(p.tvf.baseCutoff)<<18 + v
}

// produceOutput mixes the partial (and its ring modulation slave) into the
// buffers. It returns false when nothing was rendered.
func (p *Partial) produceOutput(left, right []int16) bool {
	if !p.isActive() || p.alreadyOutputed || p.isRingModulatingSlave() {
		return false
	}
	if p.poly() == nil {
		p.synth.logf("partial", "partial %d: produceOutput without a poly", p.index)
		p.deactivate()
		return false
	}
	p.alreadyOutputed = true

	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	for i := 0; i < n; i++ {
		if !p.tva.playing || !p.la32Pair.IsActive(la32.Master) {
			p.deactivate()
			break
		}
		p.la32Pair.GenerateNextSample(la32.Master, p.ampValue(), p.tvp.nextPitch(), p.cutoffValue())
		if p.hasRingModulatingSlave() {
			slave := p.pair()
			p.la32Pair.GenerateNextSample(la32.Slave, slave.ampValue(), slave.tvp.nextPitch(), slave.cutoffValue())
			if !slave.tva.playing || !p.la32Pair.IsActive(la32.Slave) {
				slave.deactivate()
				if p.mixType == 2 {
					p.deactivate()
					break
				}
			}
		}
		sample := int32(p.la32Pair.NextOutSample())
		left[i] = clip16(int32(left[i]) + (sample*p.leftPan)>>13)
		right[i] = clip16(int32(right[i]) + (sample*p.rightPan)>>13)
	}
	return true
}

func (p *Partial) shouldReverb() bool {
	return p.isActive() && p.cache.reverb
}

func (p *Partial) deactivate() {
	if !p.isActive() {
		return
	}
	p.ownerPart = -1
	if poly := p.poly(); poly != nil {
		poly.partialDeactivated(p)
	}
	p.setState(PartialInactive)
	if p.isRingModulatingSlave() {
		p.pair().la32Pair.Deactivate(la32.Slave)
	} else {
		p.la32Pair.Deactivate(la32.Master)
		if p.hasRingModulatingSlave() {
			p.pair().deactivate()
			p.pairHandle = Handle{}
		}
	}
	if pair := p.pair(); pair != nil {
		pair.pairHandle = Handle{}
	}
	p.pairHandle = Handle{}
	p.polyHandle = Handle{}
}

// startAbort fades the partial out as fast as possible so it can be reused.
func (p *Partial) startAbort() {
	p.tva.startAbort()
}

func (p *Partial) startDecayAll() {
	p.tva.startDecay()
	p.tvp.startDecay()
	p.tvf.startDecay()
}

func clip16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
