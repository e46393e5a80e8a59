package tables

import "testing"

func TestTableEndpoints(t *testing.T) {
	tb := Get()
	cases := []struct {
		name string
		got  int
		want int
	}{
		{"logsin9[0]", int(tb.LogSin9[0]), 8191},
		{"logsin9[511]", int(tb.LogSin9[511]), 0},
		{"exp9[511]", int(tb.Exp9[511]), 4095},
		{"envLogarithmicTime[0]", int(tb.EnvLogarithmicTime[0]), 64},
		{"envLogarithmicTime[1]", int(tb.EnvLogarithmicTime[1]), 64},
		{"envLogarithmicTime[255]", int(tb.EnvLogarithmicTime[255]), 128},
		{"levelToAmpSubtraction[0]", int(tb.LevelToAmpSubtraction[0]), 255},
		{"levelToAmpSubtraction[100]", int(tb.LevelToAmpSubtraction[100]), 0},
		{"masterVolToAmpSubtraction[0]", int(tb.MasterVolToAmpSubtraction[0]), 255},
		{"masterVolToAmpSubtraction[100]", int(tb.MasterVolToAmpSubtraction[100]), 0},
		{"pulseWidth100To255[100]", int(tb.PulseWidth100To255[100]), 255},
		{"pulseWidth100To255[50]", int(tb.PulseWidth100To255[50]), 128},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, tc.got, tc.want)
		}
	}
}

func TestExpTableMonotonic(t *testing.T) {
	tb := Get()
	for i := 1; i < len(tb.Exp9); i++ {
		if tb.Exp9[i] < tb.Exp9[i-1] {
			t.Fatalf("exp9 not monotonic at %d: %d < %d", i, tb.Exp9[i], tb.Exp9[i-1])
		}
	}
	// interpolateExp(0) is the full-scale 13-bit value, interpolateExp(4095) about half of it
	if got := tb.InterpolateExp(0); got < 8180 {
		t.Errorf("InterpolateExp(0) = %d, want ~8191", got)
	}
	if got := tb.InterpolateExp(4095); got < 4090 || got > 4102 {
		t.Errorf("InterpolateExp(4095) = %d, want ~4096", got)
	}
}
