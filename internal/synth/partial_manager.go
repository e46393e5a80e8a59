package synth

// partialManager owns the partial and poly pools and decides which notes
// are stolen when the pool runs dry.
type partialManager struct {
	synth    *Synth
	partials []Partial
	polys    []Poly
	free     []*Poly
	seq      uint64
}

func newPartialManager(s *Synth, partialCount int) *partialManager {
	m := &partialManager{
		synth:    s,
		partials: make([]Partial, partialCount),
		// a poly holds at least one partial, so this many polys always suffice
		polys: make([]Poly, partialCount),
	}
	for i := range m.partials {
		m.partials[i].init(s, i)
	}
	m.free = make([]*Poly, 0, partialCount)
	for i := len(m.polys) - 1; i >= 0; i-- {
		m.polys[i] = Poly{synth: s, index: i, state: PolyInactive}
		m.free = append(m.free, &m.polys[i])
	}
	return m
}

func (m *partialManager) partialAt(h Handle) *Partial {
	if h.Gen == 0 || int(h.Index) < 0 || int(h.Index) >= len(m.partials) {
		return nil
	}
	p := &m.partials[h.Index]
	if p.gen != h.Gen {
		return nil
	}
	return p
}

func (m *partialManager) polyAt(h Handle) *Poly {
	if h.Gen == 0 || int(h.Index) < 0 || int(h.Index) >= len(m.polys) {
		return nil
	}
	p := &m.polys[h.Index]
	if p.gen != h.Gen {
		return nil
	}
	return p
}

func (m *partialManager) freePartialCount() int {
	n := 0
	for i := range m.partials {
		if !m.partials[i].isActive() {
			n++
		}
	}
	return n
}

func (m *partialManager) activePartialCount() int {
	return len(m.partials) - m.freePartialCount()
}

// allocPartial activates the first free partial for partNum, or returns nil.
func (m *partialManager) allocPartial(partNum int) *Partial {
	for i := range m.partials {
		if p := &m.partials[i]; !p.isActive() {
			p.activate(partNum)
			return p
		}
	}
	return nil
}

func (m *partialManager) assignPolyToPart(part *Part) *Poly {
	if len(m.free) == 0 {
		return nil
	}
	poly := m.free[len(m.free)-1]
	m.free = m.free[:len(m.free)-1]
	poly.gen++
	if poly.gen == 0 {
		poly.gen = 1
	}
	poly.part = part
	m.seq++
	poly.seq = m.seq
	return poly
}

func (m *partialManager) polyFreed(poly *Poly) {
	poly.part = nil
	m.free = append(m.free, poly)
}

// priorityOrder lists parts from lowest to highest priority: melodic parts
// from the last, then rhythm.
var priorityOrder = [...]int{7, 6, 5, 4, 3, 2, 1, 0, RhythmPartNum}

func (m *partialManager) abortFirstReleasingPoly() bool {
	for _, num := range priorityOrder {
		if m.synth.parts[num].abortFirstPolyInState(PolyReleasing) {
			return true
		}
	}
	return false
}

func (m *partialManager) abortOldestPoly() bool {
	var oldest *Poly
	for _, num := range priorityOrder {
		for _, poly := range m.synth.parts[num].activePolys {
			if oldest == nil || poly.seq < oldest.seq {
				oldest = poly
			}
		}
	}
	return oldest != nil && oldest.startAbort()
}

// freePartials makes room for needed partials for partNum. Only one poly is
// aborted at a time: when that happens it returns true and the caller must
// wait for the abort to finish before allocating.
func (m *partialManager) freePartials(needed, partNum int) bool {
	s := m.synth
	if needed == 0 || m.freePartialCount() >= needed {
		return true
	}
	done := func() bool {
		return s.abortingPoly != nil || m.freePartialCount() >= needed
	}
	for m.abortFirstReleasingPoly() {
		if done() {
			return true
		}
	}
	for s.parts[partNum].abortFirstPolyPreferHeld() {
		if done() {
			return true
		}
	}
	for m.abortOldestPoly() {
		if done() {
			return true
		}
	}
	return false
}

func (m *partialManager) clearAlreadyOutputed() {
	for i := range m.partials {
		m.partials[i].alreadyOutputed = false
	}
}

func (m *partialManager) deactivateAll() {
	for i := range m.partials {
		m.partials[i].deactivate()
	}
}
