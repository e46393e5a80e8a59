package synth

// RhythmPartNum is the index of the rhythm part; 0-7 are the melodic parts.
const RhythmPartNum = 8

// Partial structure tables, indexed by the timbre's structure setting. In
// partialStruct bit 1 makes the first partial of the pair PCM, bit 0 the
// second. partialMixStruct: 0 mix, 1 ring modulation mixed with the master,
// 2 ring modulation only, 3 stereo mix.
var (
	partialStruct    = [13]uint8{0, 0, 2, 2, 1, 3, 3, 0, 3, 0, 2, 1, 3}
	partialMixStruct = [13]int{0, 1, 0, 1, 1, 0, 1, 3, 3, 2, 2, 2, 2}
)

// PatchCache is the digest of one timbre partial used when starting notes.
// Partials copy it on start, so later timbre edits do not affect sounding
// notes.
type PatchCache struct {
	playPartial       bool
	pcmPartial        bool
	pcm               int
	waveform          uint8
	structureMix      int
	structurePosition int
	structurePair     int
	partialCount      int
	sustain           bool
	reverb            bool
	dirty             bool
	srcPartial        PartialParam
}

func cacheTimbre(cache *[4]PatchCache, timbre *TimbreParam, reverb bool) int {
	partialCount := 0
	for t := range cache {
		c := &cache[t]
		if (timbre.PartialMute>>t)&1 == 0 {
			c.playPartial = false
			continue
		}
		c.playPartial = true
		partialCount++

		c.srcPartial = timbre.Partial[t]
		c.pcm = int(timbre.Partial[t].WG.PCMWave)
		c.waveform = timbre.Partial[t].WG.Waveform
		structure := timbre.PartialStructure12
		position := t
		if t >= 2 {
			structure = timbre.PartialStructure34
			position = t - 2
		}
		c.pcmPartial = partialStruct[structure]&(0x2>>position) != 0
		c.structureMix = partialMixStruct[structure]
		c.structurePosition = position
		c.structurePair = t ^ 1
	}
	for t := range cache {
		cache[t].dirty = false
		cache[t].partialCount = partialCount
		cache[t].sustain = timbre.NoSustain == 0
		cache[t].reverb = reverb
	}
	return partialCount
}

// Part is a MIDI-addressable instrument slot. Parts 0-7 play their patch's
// timbre; the rhythm part plays a timbre per key from the rhythm setup.
type Part struct {
	synth *Synth
	num   int

	patchTemp  PatchTemp
	timbreTemp TimbreParam
	patchCache [4]PatchCache

	// rhythm part only
	drumCache [RhythmKeys][4]PatchCache

	activePolys []*Poly

	holdPedal        bool
	modulation       uint8
	expression       uint8
	pitchBend        int32
	pitchBenderRange int32
	nrpn             bool
	rpn              uint16
}

func newPart(s *Synth, num int) *Part {
	p := &Part{synth: s, num: num, expression: 100}
	// a part can hold every poly, so note on never grows the list
	p.activePolys = make([]*Poly, 0, len(s.partialManager.polys))
	p.patchTemp.Patch = PatchParam{KeyShift: 24, FineTune: 50, BenderRange: 12, ReverbSwitch: 1}
	p.patchTemp.OutputLevel = 80
	p.patchTemp.Panpot = 7
	p.patchTemp.dummy[1] = 127
	p.refresh()
	return p
}

func (p *Part) isRhythm() bool { return p.num == RhythmPartNum }

func (p *Part) absTimbreNum() int { return p.patchTemp.Patch.AbsTimbreNum() }

// refresh marks the caches stale after a patch or timbre change.
func (p *Part) refresh() {
	if p.isRhythm() {
		for i := range p.drumCache {
			for t := range p.drumCache[i] {
				p.drumCache[i][t].dirty = true
			}
		}
	} else {
		for t := range p.patchCache {
			p.patchCache[t].dirty = true
		}
	}
	p.updatePitchBenderRange()
}

// refreshTimbre reloads the timbre if the part is using timbre memory slot
// absTimbreNum.
func (p *Part) refreshTimbre(absTimbreNum int) {
	if p.isRhythm() {
		for i := range p.drumCache {
			if int(p.synth.rhythmTemp[i].Timbre)+128 == absTimbreNum {
				for t := range p.drumCache[i] {
					p.drumCache[i][t].dirty = true
				}
			}
		}
		return
	}
	if p.absTimbreNum() == absTimbreNum {
		p.timbreTemp = p.synth.timbres[absTimbreNum]
		p.refresh()
	}
}

func (p *Part) updatePitchBenderRange() {
	p.pitchBenderRange = int32(p.patchTemp.Patch.BenderRange) * 683
}

func (p *Part) setTimbre(absTimbreNum int) {
	if absTimbreNum < 0 || absTimbreNum >= len(p.synth.timbres) {
		p.synth.logf("part", "part %d: timbre %d out of range", p.num+1, absTimbreNum)
		return
	}
	p.timbreTemp = p.synth.timbres[absTimbreNum]
}

// programChange loads patch num from patch memory.
func (p *Part) programChange(num int) {
	if p.isRhythm() {
		p.synth.logf("part", "program change %d on rhythm part ignored", num)
		return
	}
	p.patchTemp.Patch = p.synth.patches[num&0x7F]
	p.holdPedal = false
	p.allSoundOff()
	p.setTimbre(p.absTimbreNum())
	p.refresh()
}

// TimbreName returns the name of the timbre the part currently plays.
func (p *Part) TimbreName() string {
	if p.isRhythm() {
		return "Rhythm"
	}
	return p.timbreTemp.NameString()
}

func (p *Part) midiKeyToKey(midiKey int) int {
	if p.isRhythm() || p.synth.features.QuirkKeyShift {
		// key shift is applied by the pitch unit instead
		return midiKey
	}
	key := midiKey + int(p.patchTemp.Patch.KeyShift)
	for key < 36 {
		key += 12
	}
	for key > 132 {
		key -= 12
	}
	return key - 24
}

func (p *Part) noteOn(midiKey, velocity int) {
	if p.isRhythm() {
		p.rhythmNoteOn(midiKey, velocity)
		return
	}
	key := p.midiKeyToKey(midiKey)
	if p.patchCache[0].dirty {
		cacheTimbre(&p.patchCache, &p.timbreTemp, p.patchTemp.Patch.ReverbSwitch > 0)
		if p.patchCache[0].partialCount == 0 {
			p.synth.logf("part", "part %d: cached timbre %q has no partials", p.num+1, p.timbreTemp.NameString())
		}
	}
	p.playPoly(&p.patchCache, nil, midiKey, key, velocity)
}

func (p *Part) rhythmNoteOn(midiKey, velocity int) {
	s := p.synth
	if midiKey < firstRhythmKey || midiKey >= firstRhythmKey+RhythmKeys {
		s.logf("part", "rhythm key %d out of range", midiKey)
		return
	}
	key := midiKey
	drum := midiKey - firstRhythmKey
	rhythm := &s.rhythmTemp[drum]
	timbreNum := int(rhythm.Timbre)
	if timbreNum == 127 || timbreNum >= 64+s.rhythmTimbreCount {
		s.logf("part", "rhythm key %d: timbre %d is off", midiKey, timbreNum)
		return
	}
	// two rhythm timbres cut each other and play at a fixed key
	switch timbreNum {
	case 64 + 6:
		p.noteOff(0)
		key = 1
	case 64 + 7:
		p.noteOff(0)
		key = 0
	}
	absTimbreNum := timbreNum + 128
	cache := &p.drumCache[drum]
	if cache[0].dirty {
		cacheTimbre(cache, &s.timbres[absTimbreNum], rhythm.ReverbSwitch > 0)
	}
	p.playPoly(cache, rhythm, midiKey, key, velocity)
}

func (p *Part) playPoly(cache *[4]PatchCache, rhythm *RhythmTemp, midiKey, key, velocity int) {
	s := p.synth
	needPartials := cache[0].partialCount
	if needPartials == 0 {
		s.logf("part", "part %d: no partials to play for key %d", p.num+1, midiKey)
		return
	}
	if p.patchTemp.Patch.AssignMode&2 == 0 {
		// single assign: retrigger rather than stack the same key
		if p.abortFirstPolyOnKey(key) || s.abortingPoly != nil {
			return
		}
	}
	if !s.partialManager.freePartials(needPartials, p.num) {
		s.logf("part", "part %d: insufficient free partials for key %d (%d needed)", p.num+1, midiKey, needPartials)
		return
	}
	if s.abortingPoly != nil {
		return
	}
	poly := s.partialManager.assignPolyToPart(p)
	if poly == nil {
		s.logf("part", "part %d: no free poly for key %d", p.num+1, midiKey)
		return
	}
	if p.patchTemp.Patch.AssignMode&1 != 0 {
		// priority to data first received
		p.activePolys = append(p.activePolys, nil)
		copy(p.activePolys[1:], p.activePolys)
		p.activePolys[0] = poly
	} else {
		p.activePolys = append(p.activePolys, poly)
	}

	var partials [4]*Partial
	for t := range cache {
		if cache[t].playPartial {
			partials[t] = s.partialManager.allocPartial(p.num)
		}
	}
	poly.reset(key, velocity, cache[0].sustain, partials)
	for t, partial := range partials {
		if partial != nil {
			partial.startPartial(p, poly, &cache[t], rhythm, partials[cache[t].structurePair])
		}
	}
	s.report.OnPolyStateChanged(p.num)
}

func (p *Part) noteOff(midiKey int) {
	p.stopNote(p.midiKeyToKey(midiKey))
}

func (p *Part) stopNote(key int) {
	for _, poly := range p.activePolys {
		// non-sustaining timbres ignore note off; key 0 is the rhythm cut key
		if poly.key == key && (poly.canSustain() || key == 0) {
			if poly.noteOff(p.holdPedal && key != 0) {
				return
			}
		}
	}
}

func (p *Part) setVolume(v int) {
	p.patchTemp.OutputLevel = uint8(v * 100 / 127)
}

func (p *Part) setExpression(v int) {
	p.expression = uint8(v * 100 / 127)
}

// setPan maps the MIDI pan to panpot 0-14. MT-32 panning runs right to
// left, inverted against GM.
func (p *Part) setPan(v int) {
	p.patchTemp.Panpot = uint8((v << 3) / 68)
}

func (p *Part) setModulation(v int) {
	p.modulation = uint8(v)
}

func (p *Part) setBend(v int) {
	p.pitchBend = (int32(v-8192) * p.pitchBenderRange) >> 14
}

func (p *Part) setHoldPedal(pressed bool) {
	if p.holdPedal && !pressed {
		p.holdPedal = false
		p.stopPedalHold()
		return
	}
	p.holdPedal = pressed
}

func (p *Part) stopPedalHold() {
	for _, poly := range p.activePolys {
		poly.stopPedalHold()
	}
}

func (p *Part) setDataEntryMSB(v int) {
	// only RPN 0 (bender range) is understood
	if p.nrpn || p.rpn != 0 {
		return
	}
	if v > 24 {
		v = 24
	}
	p.patchTemp.Patch.BenderRange = uint8(v)
	p.updatePitchBenderRange()
}

func (p *Part) setNRPN() { p.nrpn = true }

func (p *Part) setRPNLSB(v int) {
	p.nrpn = false
	p.rpn = p.rpn&0xFF00 | uint16(v)
}

func (p *Part) setRPNMSB(v int) {
	p.nrpn = false
	p.rpn = p.rpn&0x00FF | uint16(v)<<8
}

func (p *Part) resetAllControllers() {
	p.modulation = 0
	p.expression = 100
	p.pitchBend = 0
	p.setHoldPedal(false)
}

// allNotesOff releases sustaining notes, respecting the hold pedal.
func (p *Part) allNotesOff() {
	for _, poly := range p.activePolys {
		if poly.canSustain() {
			poly.noteOff(p.holdPedal)
		}
	}
}

// allSoundOff releases every note regardless of the hold pedal.
func (p *Part) allSoundOff() {
	for _, poly := range p.activePolys {
		poly.startDecay()
	}
}

func (p *Part) abortFirstPolyOnKey(key int) bool {
	for _, poly := range p.activePolys {
		if poly.key == key {
			return poly.startAbort()
		}
	}
	return false
}

func (p *Part) abortFirstPolyInState(state PolyState) bool {
	for _, poly := range p.activePolys {
		if poly.state == state {
			return poly.startAbort()
		}
	}
	return false
}

func (p *Part) abortFirstPoly() bool {
	if len(p.activePolys) == 0 {
		return false
	}
	return p.activePolys[0].startAbort()
}

func (p *Part) abortFirstPolyPreferHeld() bool {
	if p.abortFirstPolyInState(PolyHeld) {
		return true
	}
	return p.abortFirstPoly()
}

// partialDeactivated returns the poly to the pool once its last partial is gone.
func (p *Part) partialDeactivated(poly *Poly) {
	if poly.isActive() {
		return
	}
	for i, ap := range p.activePolys {
		if ap == poly {
			p.activePolys = append(p.activePolys[:i], p.activePolys[i+1:]...)
			break
		}
	}
	p.synth.partialManager.polyFreed(poly)
	p.synth.report.OnPolyStateChanged(p.num)
}

// ActivePolyCount returns the number of notes sounding on the part.
func (p *Part) ActivePolyCount() int { return len(p.activePolys) }
