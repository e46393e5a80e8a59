package synth

// PolyState is the lifecycle of a played note.
type PolyState int

const (
	PolyPlaying PolyState = iota
	PolyHeld
	PolyReleasing
	PolyInactive
)

func (s PolyState) String() string {
	switch s {
	case PolyPlaying:
		return "playing"
	case PolyHeld:
		return "held"
	case PolyReleasing:
		return "releasing"
	}
	return "inactive"
}

// Poly is one note on a part: up to four partials started together.
type Poly struct {
	synth *Synth
	index int
	gen   uint32
	part  *Part
	// seq orders polys by start time across all parts
	seq uint64

	key      int
	velocity int
	sustain  bool
	state    PolyState

	partials           [4]Handle
	activePartialCount int
}

func (p *Poly) handle() Handle {
	return Handle{Index: int32(p.index), Gen: p.gen}
}

func (p *Poly) isActive() bool { return p.state != PolyInactive }

func (p *Poly) canSustain() bool { return p.sustain }

func (p *Poly) setState(state PolyState) {
	if p.state == state {
		return
	}
	p.state = state
}

func (p *Poly) reset(key, velocity int, sustain bool, partials [4]*Partial) {
	if p.isActive() {
		p.synth.logf("poly", "resetting active poly with %d active partials", p.activePartialCount)
		for i, h := range p.partials {
			if partial := p.synth.partialAt(h); partial != nil && partial.isActive() {
				partial.deactivate()
			}
			p.partials[i] = Handle{}
		}
		p.setState(PolyInactive)
	}
	p.key = key
	p.velocity = velocity
	p.sustain = sustain
	p.activePartialCount = 0
	for i, partial := range partials {
		if partial == nil {
			p.partials[i] = Handle{}
			continue
		}
		p.partials[i] = partial.handle()
		p.activePartialCount++
		p.setState(PolyPlaying)
	}
}

func (p *Poly) eachPartial(fn func(*Partial)) {
	for _, h := range p.partials {
		if partial := p.synth.partialAt(h); partial != nil {
			fn(partial)
		}
	}
}

// noteOff releases the note, or holds it while the pedal is down. It
// returns false if the poly was already released or held.
func (p *Poly) noteOff(pedalHeld bool) bool {
	if p.state == PolyInactive || p.state == PolyReleasing {
		return false
	}
	if pedalHeld {
		if p.state == PolyHeld {
			return false
		}
		p.setState(PolyHeld)
		return true
	}
	p.startDecay()
	return true
}

func (p *Poly) stopPedalHold() bool {
	if p.state != PolyHeld {
		return false
	}
	return p.startDecay()
}

func (p *Poly) startDecay() bool {
	if p.state == PolyInactive || p.state == PolyReleasing {
		return false
	}
	p.setState(PolyReleasing)
	p.eachPartial(func(partial *Partial) { partial.startDecayAll() })
	return true
}

// startAbort kills the poly quickly to free its partials. Only one poly may
// be aborting at a time.
func (p *Poly) startAbort() bool {
	if p.state == PolyInactive || p.synth.abortingPoly != nil {
		return false
	}
	p.eachPartial(func(partial *Partial) {
		partial.startAbort()
		p.synth.abortingPoly = p
	})
	return true
}

func (p *Poly) partialDeactivated(partial *Partial) {
	h := partial.handle()
	for i := range p.partials {
		if p.partials[i] == h {
			p.partials[i] = Handle{}
			p.activePartialCount--
		}
	}
	if p.activePartialCount == 0 {
		p.setState(PolyInactive)
		if p.synth.abortingPoly == p {
			p.synth.abortingPoly = nil
		}
	}
	p.part.partialDeactivated(p)
}
