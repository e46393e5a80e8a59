package synth

const (
	sysexManufacturerRoland = 0x41
	sysexModelMT32          = 0x16
	sysexModelD50           = 0x14
	sysexCmdDT1             = 0x12
	sysexDeviceID           = 0x10
)

// memAddr packs a 3x7-bit SysEx address into a linear memory offset.
func memAddr(a int) int {
	return (a&0x7F0000)>>2 | (a&0x7F00)>>1 | a&0x7F
}

type memoryRegionKind int

const (
	regionPatchTemp memoryRegionKind = iota
	regionRhythmTemp
	regionTimbreTemp
	regionPatches
	regionTimbres
	regionSystem
	regionReset
)

type memoryRegion struct {
	kind    memoryRegionKind
	base    int
	stride  int
	entries int
}

func (r *memoryRegion) end() int { return r.base + r.stride*r.entries }

var memoryRegions = [...]memoryRegion{
	{regionPatchTemp, memAddr(0x030000), PatchTempSize, 9},
	{regionRhythmTemp, memAddr(0x030110), RhythmTempSize, RhythmKeys},
	{regionTimbreTemp, memAddr(0x040000), TimbreSize, 8},
	{regionPatches, memAddr(0x050000), PatchSize, 128},
	{regionTimbres, memAddr(0x080000), 256, 64},
	{regionSystem, memAddr(0x100000), SystemSize, 1},
	{regionReset, memAddr(0x7F0000), 0x3FFF, 1},
}

func findMemoryRegion(addr int) *memoryRegion {
	for i := range memoryRegions {
		r := &memoryRegions[i]
		if addr >= r.base && addr < r.end() {
			return r
		}
	}
	return nil
}

// SysexChecksum returns the Roland checksum of addr and data bytes.
func SysexChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum -= b
	}
	return sum & 0x7F
}

// playSysexNow handles a complete F0..F7 message.
func (s *Synth) playSysexNow(sysex []byte) {
	if len(sysex) < 2 || sysex[0] != 0xF0 {
		s.logf("sysex", "message lacks start of sysex")
		return
	}
	// some senders append junk after the end marker
	end := 1
	for end < len(sysex) && sysex[end] != 0xF7 {
		end++
	}
	if end == len(sysex) {
		s.logf("sysex", "message lacks end of sysex")
		return
	}
	s.playSysexWithoutFraming(sysex[1:end])
}

func (s *Synth) playSysexWithoutFraming(sysex []byte) {
	if len(sysex) < 4 {
		s.logf("sysex", "message too short (%d bytes)", len(sysex))
		return
	}
	if sysex[0] != sysexManufacturerRoland {
		s.logf("sysex", "manufacturer %02x is not Roland", sysex[0])
		return
	}
	switch sysex[2] {
	case sysexModelMT32:
	case sysexModelD50:
		s.logf("sysex", "D-50 message ignored")
		return
	default:
		s.logf("sysex", "model %02x is not MT-32", sysex[2])
		return
	}
	s.playSysexWithoutHeader(sysex[1], sysex[3], sysex[4:])
}

func (s *Synth) playSysexWithoutHeader(device, command byte, body []byte) {
	if device > sysexDeviceID {
		s.logf("sysex", "device %02x is not ours", device)
		return
	}
	if len(body) < 2 {
		s.logf("sysex", "message lacks checksum")
		return
	}
	if sum := SysexChecksum(body[:len(body)-1]); sum != body[len(body)-1] {
		s.logf("sysex", "checksum %02x incorrect, expected %02x", body[len(body)-1], sum)
		return
	}
	body = body[:len(body)-1]
	if command != sysexCmdDT1 {
		s.logf("sysex", "command %02x not supported", command)
		return
	}
	s.writeSysex(device, body)
}

func (s *Synth) writeSysex(device byte, body []byte) {
	if len(body) < 3 {
		s.logf("sysex", "DT1 without address")
		return
	}
	addr := memAddr(int(body[0])<<16 | int(body[1])<<8 | int(body[2]))
	data := body[3:]

	if device == sysexDeviceID {
		s.writeMemory(addr, data)
		return
	}
	// channel-relative addressing of a part's temporary areas
	channel := int(device)
	parts := s.chanTable[channel]
	if len(parts) == 0 {
		s.logf("sysex", "channel %d not mapped to a part", channel+1)
		return
	}
	for _, part := range parts {
		switch {
		case addr < memAddr(0x010000):
			s.writeMemory(addr+memAddr(0x030000)+part*PatchTempSize, data)
		case addr < memAddr(0x020000):
			s.writeMemory(addr+memAddr(0x030110)-memAddr(0x010000), data)
		case addr < memAddr(0x030000):
			if part == RhythmPartNum {
				s.logf("sysex", "timbre temp write for rhythm part ignored")
				continue
			}
			s.writeMemory(addr+memAddr(0x040000)-memAddr(0x020000)+part*TimbreSize, data)
		default:
			s.logf("sysex", "channel-relative address %06x out of range", addr)
			return
		}
	}
}

// writeMemory stores data at the linear address and refreshes whatever
// depends on it. Writes may span several entries of one region.
func (s *Synth) writeMemory(addr int, data []byte) {
	r := findMemoryRegion(addr)
	if r == nil {
		s.logf("sysex", "write to unmapped address %05x", addr)
		return
	}
	if r.kind == regionReset {
		s.resetMemory()
		return
	}
	if over := addr + len(data) - r.end(); over > 0 {
		s.logf("sysex", "write past end of region truncated by %d bytes", over)
		data = data[:len(data)-over]
	}
	off := addr - r.base
	first := off / r.stride
	firstField := off % r.stride
	for len(data) > 0 {
		entry, field := off/r.stride, off%r.stride
		n := r.stride - field
		if n > len(data) {
			n = len(data)
		}
		s.writeEntry(r.kind, entry, field, data[:n])
		data = data[n:]
		off += n
	}
	last := (off - 1) / r.stride
	s.refreshAfterWrite(r.kind, first, last, firstField, off-(addr-r.base))
}

func (s *Synth) writeEntry(kind memoryRegionKind, entry, field int, data []byte) {
	switch kind {
	case regionPatchTemp:
		decodeBlock(s.parts[entry].patchTemp.fields(), patchTempMax[:], field, data)
	case regionRhythmTemp:
		decodeBlock(s.rhythmTemp[entry].fields(), rhythmTempMax[:], field, data)
	case regionTimbreTemp:
		decodeBlock(s.parts[entry].timbreTemp.fields(), timbreMax[:], field, data)
	case regionPatches:
		decodeBlock(s.patches[entry].fields(), patchMax[:], field, data)
	case regionTimbres:
		// bytes past the timbre in each 256-byte slot are not stored
		decodeBlock(s.timbres[128+entry].fields(), timbreMax[:], field, data)
	case regionSystem:
		decodeBlock(s.system.fields(), systemMax[:], field, data)
	}
}

func (s *Synth) refreshAfterWrite(kind memoryRegionKind, first, last, firstField, length int) {
	switch kind {
	case regionPatchTemp:
		for i := first; i <= last; i++ {
			part := s.parts[i]
			// the timbre is reloaded only if the write covers the timbre selection
			if i != RhythmPartNum && !(i == first && firstField > 2) {
				part.setTimbre(part.absTimbreNum())
			}
			part.refresh()
		}
	case regionRhythmTemp:
		s.parts[RhythmPartNum].refresh()
	case regionTimbreTemp:
		for i := first; i <= last; i++ {
			s.parts[i].refresh()
		}
	case regionPatches:
	case regionTimbres:
		for i := first; i <= last; i++ {
			for _, part := range s.parts {
				part.refreshTimbre(128 + i)
			}
		}
	case regionSystem:
		lo, hi := firstField, firstField+length-1
		touched := func(a, b int) bool { return lo <= b && hi >= a }
		if touched(0, 0) {
			s.refreshMasterTune()
		}
		if touched(1, 3) {
			s.refreshReverb()
		}
		if touched(4, 12) {
			s.logf("sysex", "partial reserve settings stored but not used for allocation")
		}
		if touched(13, 21) {
			s.refreshChanTable()
		}
	}
}
