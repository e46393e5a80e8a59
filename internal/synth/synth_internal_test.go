package synth

import (
	"errors"
	"testing"
)

func sysexDT1(device byte, addr int, data ...byte) []byte {
	body := []byte{byte(addr >> 16), byte(addr >> 8 & 0x7F), byte(addr & 0x7F)}
	body = append(body, data...)
	msg := []byte{0xF0, sysexManufacturerRoland, device, sysexModelMT32, sysexCmdDT1}
	msg = append(msg, body...)
	return append(msg, SysexChecksum(body), 0xF7)
}

func playSysex(t *testing.T, s *Synth, msg []byte) {
	t.Helper()
	if !s.PlaySysex(msg) {
		t.Fatalf("PlaySysex rejected the message")
	}
	s.FlushMIDIQueue()
}

func TestOpenRejectsBadSetup(t *testing.T) {
	noTimbres := testROM()
	noTimbres.Timbres = nil
	badWave := testROM()
	badWave.PCMWaves = append(badWave.PCMWaves, PCMWave{Addr: 60, Len: 10})

	cases := []struct {
		name     string
		rom      ROMSet
		partials int
		want     error
	}{
		{"too few partials", testROM(), 4, ErrInvalidPartialCount},
		{"too many partials", testROM(), 300, ErrInvalidPartialCount},
		{"no timbres", noTimbres, 32, ErrNoTimbres},
		{"wave past end", badWave, 32, ErrBadPCMWave},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.PartialCount = tc.partials
			s := New()
			err := s.Open(tc.rom, cfg)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Open error = %v, want %v", err, tc.want)
			}
			if s.IsOpen() {
				t.Fatalf("synth open after failed Open")
			}
		})
	}
}

func TestOpenTwice(t *testing.T) {
	s := openTestSynth(t, 32)
	if err := s.Open(testROM(), DefaultConfig()); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second Open error = %v, want ErrAlreadyOpen", err)
	}
}

func TestClosedSynthRendersSilence(t *testing.T) {
	s := New()
	if s.PlayMsg(noteOn(0, 60, 100)) {
		t.Fatalf("closed synth accepted MIDI")
	}
	buf := []int16{1, 2, 3, 4}
	s.Render(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("sample %d = %d, want 0", i, v)
		}
	}
}

func TestStaleHandlesResolveToNil(t *testing.T) {
	s := openTestSynth(t, 8)
	p := &s.partialManager.partials[0]
	old := p.handle()
	p.activate(0)
	if got := s.partialAt(old); got != nil {
		t.Fatalf("stale handle resolved to partial %d", got.index)
	}
	if got := s.partialAt(p.handle()); got != p {
		t.Fatalf("current handle did not resolve")
	}
	if s.partialAt(Handle{}) != nil || s.polyAt(Handle{}) != nil {
		t.Fatalf("null handle resolved")
	}
	if !(Handle{}).IsNull() {
		t.Fatalf("zero handle is not null")
	}
}

func TestStartPartialWithoutPolyIsIgnored(t *testing.T) {
	s := openTestSynth(t, 8)
	part := s.parts[0]
	cacheTimbre(&part.patchCache, &part.timbreTemp, true)
	p := s.partialManager.allocPartial(0)
	p.startPartial(part, nil, &part.patchCache[0], nil, nil)
	if p.state != PartialInactive || p.tva.playing {
		t.Fatalf("partial started without a poly: state %v", p.state)
	}
	if p.isActive() || s.ActivePartialCount() != 0 {
		t.Fatalf("slot kept after a failed start: active %v, count %d", p.isActive(), s.ActivePartialCount())
	}
	left, right := make([]int16, 16), make([]int16, 16)
	if p.produceOutput(left, right) {
		t.Fatalf("produceOutput rendered without a poly")
	}
	for i := range left {
		if left[i] != 0 || right[i] != 0 {
			t.Fatalf("output written at %d", i)
		}
	}

	// the freed slot does not keep the synth busy
	s.PlayMsg(noteOn(0, 60, 100))
	render(s, 256)
	s.PlayMsg(noteOff(0, 60))
	for i := 0; i < 2000 && s.IsActive(); i++ {
		render(s, 256)
	}
	if s.IsActive() || s.ActivePartialCount() != 0 {
		t.Fatalf("synth still active: %d partials", s.ActivePartialCount())
	}
}

func TestProduceOutputWithoutPolyFreesSlot(t *testing.T) {
	s := openTestSynth(t, 8)
	p := s.partialManager.allocPartial(0)
	if !p.isActive() {
		t.Fatalf("allocated partial is inactive")
	}
	if p.produceOutput(make([]int16, 16), make([]int16, 16)) {
		t.Fatalf("produceOutput rendered without a poly")
	}
	if p.isActive() || s.ActivePartialCount() != 0 {
		t.Fatalf("slot kept: active %v, count %d", p.isActive(), s.ActivePartialCount())
	}
}

func TestRingModulationSlaveFollowsMaster(t *testing.T) {
	s := openTestSynth(t, 8)
	s.PlayMsg(noteOn(1, 60, 100))
	render(s, 32)
	if got := s.ActivePartialCount(); got != 2 {
		t.Fatalf("active partials = %d, want 2", got)
	}
	var master, slave *Partial
	for i := range s.partialManager.partials {
		p := &s.partialManager.partials[i]
		switch {
		case !p.isActive():
		case p.hasRingModulatingSlave():
			master = p
		case p.isRingModulatingSlave():
			slave = p
		}
	}
	if master == nil || slave == nil {
		t.Fatalf("ring modulated pair not set up: master %v slave %v", master != nil, slave != nil)
	}
	if master.pair() != slave || slave.pair() != master {
		t.Fatalf("pair links do not point at each other")
	}
	master.deactivate()
	if slave.isActive() {
		t.Fatalf("slave still active after master deactivated")
	}
	if !slave.pairHandle.IsNull() || !master.pairHandle.IsNull() {
		t.Fatalf("pair handles not cleared")
	}
	if got := s.PolyCount(1); got != 0 {
		t.Fatalf("poly count = %d, want 0", got)
	}
}

func TestNoSustainIgnoresNoteOff(t *testing.T) {
	s := openTestSynth(t, 8)
	s.PlayMsg(noteOn(3, 60, 100))
	render(s, 64)
	s.PlayMsg(noteOff(3, 60))
	render(s, 64)
	polys := s.parts[3].activePolys
	if len(polys) != 1 {
		t.Fatalf("active polys = %d, want 1", len(polys))
	}
	if polys[0].state != PolyPlaying {
		t.Fatalf("poly state = %v, want playing", polys[0].state)
	}
}

func TestHoldPedal(t *testing.T) {
	s := openTestSynth(t, 8)
	s.PlayMsg(noteOn(0, 60, 100))
	s.PlayMsg(controller(0, 0x40, 127))
	s.PlayMsg(noteOff(0, 60))
	render(s, 64)
	poly := s.parts[0].activePolys[0]
	if poly.state != PolyHeld {
		t.Fatalf("poly state = %v, want held", poly.state)
	}
	s.PlayMsg(controller(0, 0x40, 0))
	render(s, 1)
	if poly.state != PolyReleasing {
		t.Fatalf("poly state = %v, want releasing", poly.state)
	}
}

func TestVoiceStealingAbortsFirstPolyOfPart(t *testing.T) {
	s := openTestSynth(t, 8)
	for key := 60; key < 69; key++ {
		s.PlayMsg(noteOn(0, key, 100))
		render(s, 16)
	}
	render(s, 2000)
	part := s.parts[0]
	if got := part.ActivePolyCount(); got != 8 {
		t.Fatalf("active polys = %d, want 8", got)
	}
	if got := s.ActivePartialCount(); got != 8 {
		t.Fatalf("active partials = %d, want 8", got)
	}
	stolen := part.midiKeyToKey(60)
	for _, poly := range part.activePolys {
		if poly.key == stolen {
			t.Fatalf("oldest note still sounding")
		}
	}
	if s.abortingPoly != nil {
		t.Fatalf("abort still in progress")
	}
}

func TestBenderRangeRPN(t *testing.T) {
	s := openTestSynth(t, 8)
	s.PlayMsg(controller(0, 0x65, 0))
	s.PlayMsg(controller(0, 0x64, 0))
	s.PlayMsg(controller(0, 0x06, 30))
	s.FlushMIDIQueue()
	part := s.parts[0]
	if part.patchTemp.Patch.BenderRange != 24 {
		t.Fatalf("bender range = %d, want 24", part.patchTemp.Patch.BenderRange)
	}
	if part.pitchBenderRange != 24*683 {
		t.Fatalf("pitch bender range = %d", part.pitchBenderRange)
	}
	// data entry after an NRPN is ignored
	s.PlayMsg(controller(0, 0x63, 1))
	s.PlayMsg(controller(0, 0x06, 2))
	s.FlushMIDIQueue()
	if part.patchTemp.Patch.BenderRange != 24 {
		t.Fatalf("NRPN data entry changed the bender range")
	}
}

func TestSysexChecksum(t *testing.T) {
	if got := SysexChecksum([]byte{0x10, 0x00, 0x16, 0x32}); got != 0x28 {
		t.Fatalf("checksum = %#x, want 0x28", got)
	}
}

func TestMemAddr(t *testing.T) {
	cases := map[int]int{
		0x000000: 0,
		0x030000: 0xC000,
		0x100000: 0x40000,
		0x7F7F7F: 0x1FFFFF,
	}
	for in, want := range cases {
		if got := memAddr(in); got != want {
			t.Errorf("memAddr(%06x) = %x, want %x", in, got, want)
		}
	}
}

func TestSysexReverbMode(t *testing.T) {
	s := openTestSynth(t, 8)
	bad := sysexDT1(sysexDeviceID, 0x100001, 2, 3, 4)
	bad[len(bad)-2] ^= 1
	playSysex(t, s, bad)
	if s.system.ReverbMode != 0 {
		t.Fatalf("bad checksum message was applied")
	}

	playSysex(t, s, sysexDT1(sysexDeviceID, 0x100001, 2, 3, 4))
	if s.system.ReverbMode != 2 || s.system.ReverbTime != 3 || s.system.ReverbLevel != 4 {
		t.Fatalf("system = %+v", s.system)
	}
	if s.reverbModel != s.reverbModels[2] {
		t.Fatalf("reverb model not switched")
	}

	s.SetReverbOverridden(true)
	playSysex(t, s, sysexDT1(sysexDeviceID, 0x100001, 1))
	if s.reverbModel != s.reverbModels[2] {
		t.Fatalf("overridden reverb switched model")
	}
}

func TestSysexChannelAssign(t *testing.T) {
	s := openTestSynth(t, 8)
	s.PlayMsg(noteOn(0, 60, 100))
	render(s, 16)
	poly := s.parts[0].activePolys[0]

	// part 1 to MIDI channel 1
	playSysex(t, s, sysexDT1(sysexDeviceID, 0x10000D, 0))
	if poly.state != PolyReleasing {
		t.Fatalf("sounding note not released on channel change")
	}
	s.PlayMsg(0x90 | 64<<8 | 100<<16)
	render(s, 16)
	if got := s.parts[0].ActivePolyCount(); got != 2 {
		t.Fatalf("part 1 polys = %d, want 2", got)
	}
}

func TestSysexChannelRelativeWrites(t *testing.T) {
	s := openTestSynth(t, 8)
	// output level of the part on channel 2
	playSysex(t, s, sysexDT1(0x01, 0x000008, 50))
	if got := s.parts[0].patchTemp.OutputLevel; got != 50 {
		t.Fatalf("output level = %d, want 50", got)
	}
	// values are clamped to the parameter range
	playSysex(t, s, sysexDT1(0x01, 0x000009, 0x7F))
	if got := s.parts[0].patchTemp.Panpot; got != 14 {
		t.Fatalf("panpot = %d, want 14", got)
	}
	playSysex(t, s, sysexDT1(0x01, 0x020000, []byte("Renamed   ")...))
	if got := s.PartTimbreName(0); got != "Renamed" {
		t.Fatalf("timbre name = %q", got)
	}
}

func TestSysexTimbreMemoryAndReset(t *testing.T) {
	s := openTestSynth(t, 8)
	tim := testTimbre("Memory", 0, 0b0001)
	playSysex(t, s, sysexDT1(sysexDeviceID, 0x080000, tim.Encode()...))
	// part 1 selects memory timbre 0
	playSysex(t, s, sysexDT1(sysexDeviceID, 0x030000, 2, 0))
	if got := s.PartTimbreName(0); got != "Memory" {
		t.Fatalf("timbre name = %q, want Memory", got)
	}
	playSysex(t, s, sysexDT1(sysexDeviceID, 0x7F0000, 0))
	if got := s.PartTimbreName(0); got != "Square" {
		t.Fatalf("timbre name after reset = %q, want Square", got)
	}
}

func TestDecodeTimbre(t *testing.T) {
	if _, err := DecodeTimbre(make([]byte, 10)); !errors.Is(err, ErrShortTimbre) {
		t.Fatalf("short data error = %v", err)
	}
	data := make([]byte, TimbreSize)
	for i := range data {
		data[i] = 0x7F
	}
	tim, err := DecodeTimbre(data)
	if err != nil {
		t.Fatalf("DecodeTimbre: %v", err)
	}
	if tim.PartialStructure12 != 12 || tim.PartialMute != 15 || tim.NoSustain != 1 {
		t.Fatalf("common not clamped: %+v", tim)
	}
	if tim.Partial[3].WG.PitchCoarse != 96 || tim.Partial[3].TVF.Resonance != 30 {
		t.Fatalf("partial not clamped: %+v", tim.Partial[3].WG)
	}
}

func TestMIDIQueueOrderAndOverflow(t *testing.T) {
	q := newMIDIQueue(3)
	for round := 0; round < 3; round++ {
		for i := uint32(0); i < 3; i++ {
			if !q.push(midiEvent{msg: i}) {
				t.Fatalf("push %d failed", i)
			}
		}
		if q.push(midiEvent{msg: 9}) {
			t.Fatalf("push into full queue succeeded")
		}
		for i := uint32(0); i < 3; i++ {
			e, ok := q.peek()
			if !ok || e.msg != i {
				t.Fatalf("peek = %v %v, want %d", e.msg, ok, i)
			}
			q.drop()
		}
		if !q.isEmpty() {
			t.Fatalf("queue not empty")
		}
	}
}

type overflowCounter struct {
	NopReportHandler
	overflows int
}

func (c *overflowCounter) OnMIDIQueueOverflow() { c.overflows++ }

func TestQueueOverflowReported(t *testing.T) {
	counter := &overflowCounter{}
	cfg := DefaultConfig()
	cfg.MIDIQueueSize = 2
	cfg.ReportHandler = counter
	s := New()
	if err := s.Open(testROM(), cfg); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	s.PlayMsg(noteOn(0, 60, 100))
	s.PlayMsg(noteOn(0, 62, 100))
	if s.PlayMsg(noteOn(0, 64, 100)) {
		t.Fatalf("third message accepted")
	}
	if counter.overflows != 1 {
		t.Fatalf("overflows = %d, want 1", counter.overflows)
	}
	if got := s.FlushMIDIQueue(); got != 2 {
		t.Fatalf("flushed %d events, want 2", got)
	}
}

func TestConvertLA32Output(t *testing.T) {
	cases := []struct {
		mode    DACInputMode
		in, out int16
	}{
		{DACNice, 0x1234, 0x2468},
		{DACNice, 0x5000, 32767},
		{DACNice, -0x5000, -32768},
		{DACPure, 0x4001, 0x4001},
		{DACGeneration1, 0x4001, 0x0002},
		{DACGeneration1, -1, -2},
		{DACGeneration2, 0x4001, 0x0003},
	}
	for _, tc := range cases {
		buf := []int16{tc.in}
		convertLA32Output(tc.mode, buf)
		if buf[0] != tc.out {
			t.Errorf("mode %d: %#x -> %#x, want %#x", tc.mode, tc.in, buf[0], tc.out)
		}
	}
}

func TestGainFactor(t *testing.T) {
	if got := gainFactor(1); got != 256 {
		t.Errorf("gainFactor(1) = %d", got)
	}
	if got := gainFactor(-3); got != 0 {
		t.Errorf("gainFactor(-3) = %d", got)
	}
}

func TestCoarseAnalogPassesDC(t *testing.T) {
	a := newAnalogStage(AnalogCoarse)
	n := 4000
	out, zero, dc := make([]int16, n), make([]int16, n), make([]int16, n)
	for i := range dc {
		dc[i] = 1000
	}
	a.process(out, dc, zero, zero, &a.left)
	if got := out[n-1]; got < 995 || got > 1005 {
		t.Fatalf("settled output = %d, want about 1000", got)
	}
}

func TestPanFactors(t *testing.T) {
	if panFactors[0] != 0 || panFactors[7] != 4096 || panFactors[14] != 8192 {
		t.Fatalf("pan factors = %v", panFactors)
	}
}

func TestParseDACInputMode(t *testing.T) {
	for name, want := range dacModeNames {
		got, err := ParseDACInputMode(" " + name)
		if err != nil || got != want {
			t.Errorf("ParseDACInputMode(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseDACInputMode("gen3"); err == nil {
		t.Fatalf("accepted gen3")
	}
}

func TestBaseCutoffFollowsBiasLevelSign(t *testing.T) {
	cases := []struct {
		name      string
		biasPoint uint8
		key       int
	}{
		{"above upper point", 0x40 | 20, 100},
		{"below lower point", 60, 40},
	}
	var plain ControlROMFeatures
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cutoff := func(level uint8) int {
				var param PartialParam
				param.TVF.Cutoff = 50
				param.TVF.Keyfollow = 11
				param.WG.PitchKeyfollow = 11
				param.TVF.BiasPoint = tc.biasPoint
				param.TVF.BiasLevel = level
				return int(calcBaseCutoff(&param, 0, tc.key, &plain))
			}
			centre := cutoff(7)
			for level := uint8(0); level < 7; level++ {
				if got := cutoff(level); got >= centre {
					t.Errorf("bias level %d: cutoff %d, want below %d", level, got, centre)
				}
			}
			for level := uint8(8); level < 15; level++ {
				if got := cutoff(level); got <= centre {
					t.Errorf("bias level %d: cutoff %d, want above %d", level, got, centre)
				}
			}
		})
	}
}

func TestBaseCutoffLimitQuirk(t *testing.T) {
	var param PartialParam
	param.TVF.Cutoff = 50
	param.TVF.Keyfollow = 11
	param.WG.PitchKeyfollow = 11
	param.TVF.BiasPoint = 0x40 | 20
	param.TVF.BiasLevel = 0
	if got := calcBaseCutoff(&param, 0, 100, &ControlROMFeatures{}); got != 0 {
		t.Fatalf("clamped cutoff = %d, want 0", got)
	}
	quirk := &ControlROMFeatures{QuirkTVFBaseCutoffLimit: true}
	if got := calcBaseCutoff(&param, 0, 100, quirk); got != (2056-400)>>4 {
		t.Fatalf("limited cutoff = %d, want %d", got, (2056-400)>>4)
	}
}

func TestFirstPriorityNoteOnDoesNotAllocate(t *testing.T) {
	s := openTestSynth(t, 32)
	part := s.parts[0]
	part.patchTemp.Patch.AssignMode = 3
	key := 40
	part.noteOn(key, 100)
	allocs := testing.AllocsPerRun(8, func() {
		key++
		part.noteOn(key, 100)
	})
	if allocs != 0 {
		t.Fatalf("note on allocated %.1f times", allocs)
	}
	if got := part.activePolys[0].key; got != part.midiKeyToKey(key) {
		t.Fatalf("newest poly key %d not first, want %d", got, part.midiKeyToKey(key))
	}
	if got := part.ActivePolyCount(); got != 10 {
		t.Fatalf("active polys = %d, want 10", got)
	}
}

// startAt starts the partial in slot index on part 1 with the part's first
// cached timbre partial.
func startAt(s *Synth, index int) *Partial {
	part := s.parts[0]
	part.patchTemp.Panpot = 7
	cacheTimbre(&part.patchCache, &part.timbreTemp, true)
	p := &s.partialManager.partials[index]
	p.activate(0)
	poly := s.partialManager.assignPolyToPart(part)
	poly.reset(60, 100, true, [4]*Partial{p})
	p.startPartial(part, poly, &part.patchCache[0], nil, nil)
	return p
}

func TestPanSignFollowsPartialIndex(t *testing.T) {
	left, right := panFactors[6], panFactors[8]
	cases := []struct {
		index    int
		nice     bool
		inverted bool
	}{
		{0, false, false},
		{7, false, false},
		{8, false, true},
		{15, false, true},
		{16, false, false},
		{24, false, true},
		{8, true, false},
		{15, true, false},
	}
	for _, tc := range cases {
		s := openTestSynth(t, 32)
		s.nicePartialMixing = tc.nice
		p := startAt(s, tc.index)
		wantL, wantR := left, right
		if tc.inverted {
			wantL, wantR = -left, -right
		}
		if p.leftPan != wantL || p.rightPan != wantR {
			t.Errorf("partial %d (nice %v): pan %d/%d, want %d/%d", tc.index, tc.nice, p.leftPan, p.rightPan, wantL, wantR)
		}
	}
}

// playStructure plays key 60 on part 1 with both partials of a pair in the
// given structure.
func playStructure(s *Synth, structure uint8) {
	part := s.parts[0]
	part.timbreTemp = testTimbre("Pair", structure, 0b0011)
	part.patchCache[0].dirty = true
	part.noteOn(60, 100)
}

func activePartials(s *Synth) []*Partial {
	var out []*Partial
	for i := range s.partialManager.partials {
		if p := &s.partialManager.partials[i]; p.isActive() {
			out = append(out, p)
		}
	}
	return out
}

func TestStereoStructureSplitsPair(t *testing.T) {
	cases := []struct {
		panpot      uint8
		masterLeft  int32
		slaveLeft   int32
		masterRight int32
		slaveRight  int32
	}{
		{0, 0, 0, 8192, 8192},
		{7, 0, 8192, 8192, 0},
		{14, 8192, 8192, 0, 0},
	}
	for _, tc := range cases {
		s := openTestSynth(t, 8)
		s.parts[0].patchTemp.Panpot = tc.panpot
		// structure 7: two synth partials in stereo
		playStructure(s, 7)
		ps := activePartials(s)
		if len(ps) != 2 {
			t.Fatalf("panpot %d: %d active partials, want 2", tc.panpot, len(ps))
		}
		master, slave := ps[0], ps[1]
		if master.structurePosition != 0 || slave.structurePosition != 1 {
			t.Fatalf("structure positions %d, %d", master.structurePosition, slave.structurePosition)
		}
		for _, p := range ps {
			if p.mixType != 0 || p.pair() != nil {
				t.Errorf("panpot %d: partial %d mix %d paired %v, want unpaired mix 0", tc.panpot, p.index, p.mixType, p.pair() != nil)
			}
		}
		if master.leftPan != tc.masterLeft || master.rightPan != tc.masterRight {
			t.Errorf("panpot %d: master pan %d/%d, want %d/%d", tc.panpot, master.leftPan, master.rightPan, tc.masterLeft, tc.masterRight)
		}
		if slave.leftPan != tc.slaveLeft || slave.rightPan != tc.slaveRight {
			t.Errorf("panpot %d: slave pan %d/%d, want %d/%d", tc.panpot, slave.leftPan, slave.rightPan, tc.slaveLeft, tc.slaveRight)
		}
		render(s, 64)
		if !master.isActive() || !slave.isActive() {
			t.Errorf("panpot %d: split partials stopped", tc.panpot)
		}
	}
}

func ringPair(t *testing.T, s *Synth) (master, slave *Partial) {
	t.Helper()
	for _, p := range activePartials(s) {
		switch {
		case p.hasRingModulatingSlave():
			master = p
		case p.isRingModulatingSlave():
			slave = p
		}
	}
	if master == nil || slave == nil {
		t.Fatalf("no ring modulated pair")
	}
	return master, slave
}

func TestSlaveEndHandsOffToMaster(t *testing.T) {
	cases := []struct {
		name           string
		structure      uint8
		masterSurvives bool
	}{
		// mix 1 keeps the master sound, mix 2 outputs only the ring product
		{"ring mixed", 1, true},
		{"ring only", 9, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := openTestSynth(t, 8)
			playStructure(s, tc.structure)
			render(s, 16)
			master, slave := ringPair(t, s)

			slave.tva.playing = false
			s.partialManager.clearAlreadyOutputed()
			left, right := make([]int16, 32), make([]int16, 32)
			master.produceOutput(left, right)

			if slave.isActive() {
				t.Fatalf("slave still active after its envelope ended")
			}
			if master.isActive() != tc.masterSurvives {
				t.Fatalf("master active = %v, want %v", master.isActive(), tc.masterSurvives)
			}
			if master.pair() != nil {
				t.Fatalf("master still paired")
			}
			if !tc.masterSurvives && s.ActivePartialCount() != 0 {
				t.Fatalf("active partials = %d, want 0", s.ActivePartialCount())
			}
		})
	}
}

func TestRingSlaveAdvancesInLockstep(t *testing.T) {
	for _, frames := range []int{1, 3, 4, 7, 64, 1001} {
		s := openTestSynth(t, 8)
		playStructure(s, 1)
		render(s, frames)
		master, slave := ringPair(t, s)
		if master.tvp.timeElapsed == 0 && frames > 4 {
			t.Fatalf("%d frames: pitch timer never ran", frames)
		}
		if master.tvp.timeElapsed != slave.tvp.timeElapsed || master.tvp.counter != slave.tvp.counter {
			t.Errorf("%d frames: master timer %d/%d, slave %d/%d", frames,
				master.tvp.timeElapsed, master.tvp.counter, slave.tvp.timeElapsed, slave.tvp.counter)
		}
	}
}
