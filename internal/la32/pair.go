package la32

// Role selects one of the two wave generators of a PartialPair.
type Role int

const (
	Master Role = iota
	Slave
)

// PartialPair drives the two LA32 wave generators that make up a structure
// pair and combines their output, optionally through the ring modulator.
type PartialPair struct {
	master, slave waveGenerator

	ringModulated bool
	mixed         bool
}

func (p *PartialPair) gen(r Role) *waveGenerator {
	if r == Master {
		return &p.master
	}
	return &p.slave
}

// Init configures how the pair is combined. ringModulated enables the ring
// modulator; mixed additionally adds the master output to the ring product.
func (p *PartialPair) Init(ringModulated, mixed bool) {
	p.ringModulated = ringModulated
	p.mixed = mixed
}

// InitSynth starts a synthesised square or sawtooth wave on the given role.
func (p *PartialPair) InitSynth(r Role, sawtooth bool, pulseWidth, resonance uint8) {
	p.gen(r).initSynth(sawtooth, pulseWidth, resonance)
}

// InitPCM starts PCM playback on the given role. Interpolation is disabled for
// a ring-modulated slave, as on the hardware.
func (p *PartialPair) InitPCM(r Role, pcm []int16, length uint32, looped bool) {
	interpolated := r == Master || !p.ringModulated
	p.gen(r).initPCM(pcm, length, looped, interpolated)
}

// GenerateNextSample advances the role's generator by one sample. The master
// must be advanced before the slave.
func (p *PartialPair) GenerateNextSample(r Role, amp uint32, pitch uint16, cutoff uint32) {
	p.gen(r).generateNextSample(amp, pitch, cutoff)
}

func unlogAndMix(g *waveGenerator) int16 {
	if !g.isActive() {
		return 0
	}
	first := Unlog(g.outputLogSample(true))
	second := Unlog(g.outputLogSample(false))
	if g.isPCMWave() {
		return first + int16(((int32(second)-int32(first))*int32(g.pcmInterpolationFactor))>>7)
	}
	return first + second
}

// distorted emulates the 14-bit ring modulator inputs: bit 13 is taken as the sign.
func distorted(s int16) int16 {
	if s&0x2000 == 0 {
		return s & 0x1fff
	}
	return s | ^0x1fff
}

// NextOutSample returns the combined output of the pair for the current sample.
func (p *PartialPair) NextOutSample() int16 {
	if !p.ringModulated {
		return unlogAndMix(&p.master) + unlogAndMix(&p.slave)
	}
	masterSample := unlogAndMix(&p.master)
	var slaveSample int16
	if p.slave.isPCMWave() {
		// a ring-modulated PCM slave is not interpolated
		slaveSample = Unlog(p.slave.outputLogSample(true))
	} else {
		slaveSample = unlogAndMix(&p.slave)
	}
	ring := int16((int32(distorted(masterSample)) * int32(distorted(slaveSample))) >> 13)
	if p.mixed {
		return masterSample + ring
	}
	return ring
}

// Deactivate stops the role's generator.
func (p *PartialPair) Deactivate(r Role) {
	p.gen(r).deactivate()
}

// IsActive reports whether the role's generator is still producing output.
func (p *PartialPair) IsActive(r Role) bool {
	return p.gen(r).isActive()
}
