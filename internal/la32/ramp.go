package la32

import "github.com/cbegin/mt32emu-go/internal/tables"

const (
	targetShifts = 18
	maxCurrent   = 0xFF << targetShifts

	// The MCU reacts to a "target reached" interrupt with some delay; we wait
	// this many samples before raising it.
	interruptTime = 7
)

// Ramp emulates one of the LA32 linear ramp units that feed amplitude and
// cutoff values to a wave generator. The current value carries 18 fractional
// bits below an 8-bit target.
type Ramp struct {
	current            uint32
	largeTarget        uint32
	largeIncrement     uint32
	descending         bool
	interruptCountdown int
	interruptRaised    bool
}

// StartRamp begins moving towards target. The low 7 bits of increment select
// a logarithmic step size; bit 7 set means the ramp descends.
func (r *Ramp) StartRamp(target uint8, increment uint8) {
	if increment == 0 {
		r.largeIncrement = 0
	} else {
		// (uint)(EXP2F(((increment & 0x7F) + 24) / 8.0f) + 0.125f) with three fractional bits
		expArg := uint32(increment & 0x7F)
		r.largeIncrement = 8191 - uint32(tables.Get().Exp9[^(expArg<<6)&511])
		r.largeIncrement <<= expArg >> 3
		r.largeIncrement += 64
		r.largeIncrement >>= 9
	}
	r.descending = increment&0x80 != 0
	if r.descending {
		// descending increments are slightly faster
		r.largeIncrement++
	}
	r.largeTarget = uint32(target) << targetShifts
	r.interruptCountdown = 0
	r.interruptRaised = false
}

// NextValue advances the ramp by one sample and returns the current value.
func (r *Ramp) NextValue() uint32 {
	if r.interruptCountdown > 0 {
		r.interruptCountdown--
		if r.interruptCountdown == 0 {
			r.interruptRaised = true
		}
		return r.current
	}
	// a zero increment leaves the value alone and never interrupts
	if r.largeIncrement == 0 {
		return r.current
	}
	if r.descending {
		if r.largeIncrement > r.current {
			r.current = r.largeTarget
			r.interruptCountdown = interruptTime
		} else {
			r.current -= r.largeIncrement
			if r.current <= r.largeTarget {
				r.current = r.largeTarget
				r.interruptCountdown = interruptTime
			}
		}
	} else {
		if maxCurrent-r.current < r.largeIncrement {
			r.current = r.largeTarget
			r.interruptCountdown = interruptTime
		} else {
			r.current += r.largeIncrement
			if r.current >= r.largeTarget {
				r.current = r.largeTarget
				r.interruptCountdown = interruptTime
			}
		}
	}
	return r.current
}

// CheckInterrupt reports and clears a pending "target reached" interrupt.
func (r *Ramp) CheckInterrupt() bool {
	raised := r.interruptRaised
	r.interruptRaised = false
	return raised
}

// Reset zeroes the ramp.
func (r *Ramp) Reset() {
	*r = Ramp{}
}

// IsBelowCurrent reports whether target lies below the current value. The
// real MCU never polls the ramp; this exists for smoother sustain updates.
func (r *Ramp) IsBelowCurrent(target uint8) bool {
	return uint32(target)<<targetShifts < r.current
}
