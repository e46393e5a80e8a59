// Package tables holds the constant lookup tables shared by the LA32 wave
// generator, the envelope generators and the partial mixer. The tables are
// built once at package initialisation and are read-only afterwards.
package tables

import "math"

// Tables groups every precomputed table used during synthesis.
type Tables struct {
	// Exp9 is the LA32 internal 12-bit exponent table, addressed by the upper
	// 9 bits of a 12-bit fraction.
	Exp9 [512]uint16
	// LogSin9 is the LA32 logarithmic quarter-sine table (13-bit values).
	LogSin9 [512]uint16

	EnvLogarithmicTime        [256]uint8
	LevelToAmpSubtraction     [101]uint8
	MasterVolToAmpSubtraction [101]uint8
	PulseWidth100To255        [101]uint8
	ResAmpDecayFactor         [8]uint8
}

var shared Tables

func init() {
	build(&shared)
}

// Get returns the process-wide tables.
func Get() *Tables {
	return &shared
}

var resAmpDecayFactorTable = [8]uint8{31, 16, 12, 8, 5, 3, 2, 1}

func build(t *Tables) {
	for i := 0; i < 512; i++ {
		// ~i == -i-1 for two's complement ints
		t.Exp9[i] = uint16(8191.5 - math.Exp2(13.0+float64(-i-1)/512.0))
	}
	for i := 0; i < 512; i++ {
		logsin := math.Log2(math.Sin((float64(i) + 0.5) / 1024.0 * math.Pi))
		t.LogSin9[i] = uint16(0.5 - logsin*1024.0)
	}
	t.LogSin9[0] = 8191

	for lf := 0; lf <= 100; lf++ {
		val := int((2.0-math.Log10(float64(lf)+1.0))*128.0 + 1.0)
		if val > 255 {
			val = 255
		}
		t.LevelToAmpSubtraction[lf] = uint8(val)
	}

	t.EnvLogarithmicTime[0] = 64
	for lf := 1; lf <= 255; lf++ {
		t.EnvLogarithmicTime[lf] = uint8(math.Ceil(64.0 + math.Log2(float64(lf))*8.0))
	}

	t.MasterVolToAmpSubtraction[0] = 255
	for vol := 1; vol <= 100; vol++ {
		t.MasterVolToAmpSubtraction[vol] = uint8(106.31 - 16.0*math.Log2(float64(vol)))
	}

	for i := 0; i <= 100; i++ {
		t.PulseWidth100To255[i] = uint8(float64(i)*255.0/100.0 + 0.5)
	}

	t.ResAmpDecayFactor = resAmpDecayFactorTable
}

// InterpolateExp returns 2^(13 - fract/4096) style values from the exponent
// table, linearly interpolating the 3 low bits of the 12-bit fraction.
func (t *Tables) InterpolateExp(fract uint16) uint16 {
	expTabIndex := fract >> 3
	extraBits := ^fract & 7
	expTabEntry2 := 8191 - t.Exp9[expTabIndex]
	expTabEntry1 := uint16(8191)
	if expTabIndex != 0 {
		expTabEntry1 = 8191 - t.Exp9[expTabIndex-1]
	}
	return expTabEntry2 + uint16((uint32(expTabEntry1-expTabEntry2)*uint32(extraBits))>>3)
}
