package reverb

const (
	processDelay         = 1
	mode3AdditionalDelay = 1
	mode3FeedbackDelay   = 1
	mode3CombSize        = 16000 + mode3FeedbackDelay + processDelay + mode3AdditionalDelay
)

// settings describes the delay network of one reverb mode. The numbers come
// from sampling the hardware and must not be tuned.
type settings struct {
	allpassSizes    []int
	combSizes       []int
	outLPositions   []int
	outRPositions   []int
	filterFactors   []uint8
	feedbackFactors []uint8
	dryAmps         []uint8
	wetLevels       []uint8
	lpfAmp          uint8
}

var roomFeedback = []uint8{
	0, 0, 0, 0, 0, 0, 0, 0,
	0x28, 0x48, 0x60, 0x70, 0x78, 0x80, 0x90, 0x98,
	0x28, 0x48, 0x60, 0x78, 0x80, 0x88, 0x90, 0x98,
	0x28, 0x48, 0x60, 0x78, 0x80, 0x88, 0x90, 0x98,
}

var plateFeedback = []uint8{
	0, 0, 0, 0, 0, 0, 0, 0,
	0x30, 0x58, 0x78, 0x88, 0xA0, 0xB8, 0xC0, 0xD0,
	0x30, 0x58, 0x78, 0x88, 0xA0, 0xB8, 0xC0, 0xD0,
	0x30, 0x58, 0x78, 0x88, 0xA0, 0xB8, 0xC0, 0xD0,
}

var standardWet = []uint8{0x10, 0x30, 0x50, 0x70, 0x90, 0xC0, 0xF0, 0xF0}

var tapDelayOutL = []int{400, 624, 960, 1488, 2256, 3472, 5280, 8000}
var tapDelayOutR = []int{800, 1248, 1920, 2976, 4512, 6944, 10560, 16000}

// mt32Settings are the fixed-point network parameters of the MT-32 (old) unit.
var mt32Settings = [4]settings{
	{ // room
		allpassSizes:    []int{994, 729, 78},
		combSizes:       []int{575 + processDelay, 2040, 2752, 3629},
		outLPositions:   []int{2040, 687, 1814},
		outRPositions:   []int{1019, 2072, 1},
		filterFactors:   []uint8{0xB0, 0x60, 0x60, 0x60},
		feedbackFactors: roomFeedback,
		dryAmps:         []uint8{0xA0, 0xA0, 0xA0, 0xA0, 0xB0, 0xB0, 0xB0, 0xD0},
		wetLevels:       standardWet,
		lpfAmp:          0x60,
	},
	{ // hall
		allpassSizes:    []int{1324, 809, 176},
		combSizes:       []int{961 + processDelay, 2619, 3545, 4519},
		outLPositions:   []int{2618, 1760, 4518},
		outRPositions:   []int{1300, 3532, 2274},
		filterFactors:   []uint8{0x90, 0x60, 0x60, 0x60},
		feedbackFactors: roomFeedback,
		dryAmps:         []uint8{0xA0, 0xA0, 0xB0, 0xB0, 0xB0, 0xB0, 0xB0, 0xE0},
		wetLevels:       standardWet,
		lpfAmp:          0x60,
	},
	{ // plate
		allpassSizes:    []int{969, 644, 157},
		combSizes:       []int{116 + processDelay, 2259, 2839, 3539},
		outLPositions:   []int{2259, 718, 1769},
		outRPositions:   []int{1136, 2128, 1},
		filterFactors:   []uint8{0, 0x20, 0x20, 0x20},
		feedbackFactors: plateFeedback,
		dryAmps:         []uint8{0xA0, 0xA0, 0xB0, 0xB0, 0xB0, 0xB0, 0xC0, 0xE0},
		wetLevels:       standardWet,
		lpfAmp:          0x80,
	},
	{ // tap delay
		combSizes:       []int{mode3CombSize},
		outLPositions:   tapDelayOutL,
		outRPositions:   tapDelayOutR,
		filterFactors:   []uint8{0x68},
		feedbackFactors: []uint8{0x68, 0x60},
		dryAmps:         []uint8{0x20, 0x50, 0x50, 0x50, 0x50, 0x50, 0x50, 0x50},
		wetLevels:       []uint8{0x18, 0x18, 0x28, 0x40, 0x60, 0x80, 0xA8, 0xF8},
	},
}

// cm32lSettings drive the floating point model used for the CM-32L/LAPC-I
// (new) unit. The output levels are the measured amplitudes, not 8-bit masks.
var cm32lSettings = [4]settings{
	{
		allpassSizes:    []int{994, 729, 78},
		combSizes:       []int{705 + processDelay, 2349, 2839, 3632},
		outLPositions:   []int{2349, 141, 1960},
		outRPositions:   []int{1174, 1570, 145},
		filterFactors:   []uint8{0xA0, 0x60, 0x60, 0x60},
		feedbackFactors: roomFeedback,
		wetLevels:       []uint8{10 * 1, 10 * 3, 10 * 5, 10 * 7, 11 * 9, 11 * 12, 11 * 15, 13 * 15},
		lpfAmp:          6,
	},
	{
		allpassSizes:    []int{1324, 809, 176},
		combSizes:       []int{961 + processDelay, 2619, 3545, 4519},
		outLPositions:   []int{2618, 1760, 4518},
		outRPositions:   []int{1300, 3532, 2274},
		filterFactors:   []uint8{0x80, 0x60, 0x60, 0x60},
		feedbackFactors: roomFeedback,
		wetLevels:       []uint8{10, 30, 55, 77, 99, 132, 165, 210},
		lpfAmp:          6,
	},
	{
		allpassSizes:    []int{969, 644, 157},
		combSizes:       []int{116 + processDelay, 2259, 2839, 3539},
		outLPositions:   []int{2259, 718, 1769},
		outRPositions:   []int{1136, 2128, 1},
		filterFactors:   []uint8{0, 0x20, 0x20, 0x20},
		feedbackFactors: plateFeedback,
		wetLevels:       []uint8{10, 30, 55, 77, 99, 132, 180, 210},
		lpfAmp:          8,
	},
	{
		combSizes:       []int{mode3CombSize},
		outLPositions:   tapDelayOutL,
		outRPositions:   tapDelayOutR,
		filterFactors:   []uint8{0x68},
		feedbackFactors: []uint8{0x68, 0x60},
		wetLevels:       []uint8{10 * 1, 10 * 3, 10 * 5, 10 * 7, 11 * 9, 11 * 12, 11 * 15, 13 * 15},
		lpfAmp:          8,
	},
}
