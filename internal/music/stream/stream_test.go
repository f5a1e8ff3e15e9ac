package stream

import "testing"

func TestVolumeClamp(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{-10, 0},
		{0, 0},
		{20, 20},
		{100, 100},
		{150, 100},
	}
	for _, tc := range cases {
		v := NewVolume(tc.in)
		if got := v.Percent(); got != tc.want {
			t.Errorf("NewVolume(%d).Percent() = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestVolumeGain(t *testing.T) {
	v := NewVolume(20)
	if g := v.gain(); g != 0.2 {
		t.Errorf("gain at 20%% = %v, want 0.2", g)
	}
	v.SetPercent(0)
	if g := v.gain(); g != 0 {
		t.Errorf("gain at 0%% = %v, want 0", g)
	}
}

func TestClampSample(t *testing.T) {
	if got := clampSample(2.0); got != 32767 {
		t.Errorf("clampSample(2.0) = %d, want 32767", got)
	}
	if got := clampSample(-2.0); got != -32767 {
		t.Errorf("clampSample(-2.0) = %d, want -32767", got)
	}
	if got := clampSample(0); got != 0 {
		t.Errorf("clampSample(0) = %d, want 0", got)
	}
}
