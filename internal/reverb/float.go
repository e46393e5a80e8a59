package reverb

const floatSilenceThreshold = 1e-4

func factor(v uint8) float32 {
	return float32(v) / 256
}

type floatAllpass struct {
	ringBuffer[float32]
}

func (f *floatAllpass) process(in float32) float32 {
	out := f.next()
	f.buf[f.index] = in - 0.5*out
	return out + 0.5*f.buf[f.index]
}

type floatComb struct {
	ringBuffer[float32]
	filterFactor   float32
	feedbackFactor float32
}

func (f *floatComb) process(in float32) {
	last := f.buf[f.index]
	filterIn := in + f.next()*f.feedbackFactor
	f.buf[f.index] = last*f.filterFactor - filterIn
}

type floatEntrance struct {
	ringBuffer[float32]
	filterFactor float32
	amp          float32
}

func (f *floatEntrance) process(in float32) {
	last := f.buf[f.index]
	f.next()
	f.buf[f.index] = (last*f.filterFactor + in) * f.amp
}

type floatTapDelay struct {
	ringBuffer[float32]
	filterFactor   float32
	feedbackFactor float32
	outL, outR     int
}

func (f *floatTapDelay) process(in float32) {
	last := f.buf[f.index]
	filterIn := in + f.outputAt(f.outR+mode3FeedbackDelay)*f.feedbackFactor
	f.next()
	f.buf[f.index] = last*f.filterFactor - filterIn
}

func (f *floatTapDelay) left() float32 {
	return f.outputAt(f.outL + processDelay + mode3AdditionalDelay)
}

func (f *floatTapDelay) right() float32 {
	return f.outputAt(f.outR + processDelay + mode3AdditionalDelay)
}

// floatModel is the CM-32L reverb computed on samples normalised to [-1, 1].
type floatModel struct {
	mode int
	s    *settings

	allpasses []floatAllpass
	entrance  floatEntrance
	combs     []floatComb
	tap       *floatTapDelay

	time, level uint8
	wetLevel    float32
	muted       bool
	open        bool
}

func (m *floatModel) Mode() int    { return m.mode }
func (m *floatModel) IsOpen() bool { return m.open }

func (m *floatModel) Open() error {
	s, err := settingsFor(m.mode, &cm32lSettings)
	if err != nil {
		return err
	}
	m.Close()
	m.s = s
	lpf := float32(s.lpfAmp) / 16
	if m.mode == ModeTapDelay {
		m.tap = &floatTapDelay{
			ringBuffer:   newRingBuffer[float32](s.combSizes[0]),
			filterFactor: factor(s.filterFactors[0]),
		}
	} else {
		m.allpasses = make([]floatAllpass, len(s.allpassSizes))
		for i, size := range s.allpassSizes {
			m.allpasses[i] = floatAllpass{newRingBuffer[float32](size)}
		}
		m.entrance = floatEntrance{
			ringBuffer:   newRingBuffer[float32](s.combSizes[0]),
			filterFactor: factor(s.filterFactors[0]),
			amp:          lpf,
		}
		m.combs = make([]floatComb, len(s.combSizes)-1)
		for i := range m.combs {
			m.combs[i] = floatComb{
				ringBuffer:   newRingBuffer[float32](s.combSizes[i+1]),
				filterFactor: factor(s.filterFactors[i+1]),
			}
		}
	}
	m.open = true
	m.applyParameters()
	return nil
}

func (m *floatModel) Close() {
	m.allpasses = nil
	m.combs = nil
	m.entrance = floatEntrance{}
	m.tap = nil
	m.open = false
}

func (m *floatModel) Mute() {
	if !m.open {
		return
	}
	for i := range m.allpasses {
		m.allpasses[i].mute()
	}
	m.entrance.mute()
	for i := range m.combs {
		m.combs[i].mute()
	}
	if m.tap != nil {
		m.tap.mute()
	}
}

func (m *floatModel) SetParameters(time, level uint8) {
	m.time = time & 7
	m.level = level & 7
	if m.open {
		m.applyParameters()
	}
}

func (m *floatModel) applyParameters() {
	s := m.s
	if m.tap != nil {
		m.tap.outL = s.outLPositions[m.time]
		m.tap.outR = s.outRPositions[m.time]
		fb := 0
		if m.level >= 3 && m.time >= 6 {
			fb = 1
		}
		m.tap.feedbackFactor = factor(s.feedbackFactors[fb])
	} else {
		for i := range m.combs {
			m.combs[i].feedbackFactor = factor(s.feedbackFactors[((i+1)<<3)+int(m.time)])
		}
	}
	m.muted = m.time == 0 && m.level == 0
	if m.muted {
		m.wetLevel = 0
		return
	}
	m.wetLevel = factor(s.wetLevels[m.level])
}

func toFloat(s int16) float32 {
	return float32(s) / 32768
}

func fromFloat(f float32) int16 {
	v := f * 32768
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func (m *floatModel) Process(inL, inR, outL, outR []int16) {
	if !m.open {
		for i := range inL {
			if outL != nil {
				outL[i] = 0
			}
			if outR != nil {
				outR[i] = 0
			}
		}
		return
	}
	s := m.s
	for i := range inL {
		var dry float32
		if !m.muted {
			dry = 0.5 * (toFloat(inL[i]) + toFloat(inR[i]))
		}

		if m.tap != nil {
			m.tap.process(dry)
			if outL != nil {
				outL[i] = fromFloat(m.tap.left() * m.wetLevel)
			}
			if outR != nil {
				outR[i] = fromFloat(m.tap.right() * m.wetLevel)
			}
			continue
		}

		link := m.entrance.outputAt(s.combSizes[0] - 1)
		m.entrance.process(dry)
		for j := range m.allpasses {
			link = m.allpasses[j].process(link)
		}

		outL1 := m.combs[0].outputAt(s.outLPositions[0] - 1)
		for j := range m.combs {
			m.combs[j].process(link)
		}

		if outL != nil {
			outL2 := m.combs[1].outputAt(s.outLPositions[1])
			outL3 := m.combs[2].outputAt(s.outLPositions[2])
			outL[i] = fromFloat((1.5*(outL1+outL2) + outL3) * m.wetLevel)
		}
		if outR != nil {
			outR1 := m.combs[0].outputAt(s.outRPositions[0])
			outR2 := m.combs[1].outputAt(s.outRPositions[1])
			outR3 := m.combs[2].outputAt(s.outRPositions[2])
			outR[i] = fromFloat((1.5*(outR1+outR2) + outR3) * m.wetLevel)
		}
	}
}

func (m *floatModel) IsActive() bool {
	if !m.open {
		return false
	}
	for i := range m.allpasses {
		if !m.allpasses[i].isEmpty(floatSilenceThreshold) {
			return true
		}
	}
	if m.tap != nil {
		return !m.tap.isEmpty(floatSilenceThreshold)
	}
	if !m.entrance.isEmpty(floatSilenceThreshold) {
		return true
	}
	for i := range m.combs {
		if !m.combs[i].isEmpty(floatSilenceThreshold) {
			return true
		}
	}
	return false
}
