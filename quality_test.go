package libetude

import "testing"

func TestBalanceQualitySpeedFormula(t *testing.T) {
	cases := []struct {
		qw, sw           float64
		wantPreset       QualityPreset
		wantQualityScale float64
		wantSpeedScale   float64
	}{
		{0, 1, QualityDraft, 0.5, 1.0},
		{0.3, 0.7, QualityNormal, 0.65, 0.85},
		{0.6, 0.4, QualityHigh, 0.8, 0.7},
		{1, 0, QualityUltra, 1.0, 0.5},
	}
	for _, c := range cases {
		preset, qs, ss := balanceQualitySpeed(c.qw, c.sw)
		if preset != c.wantPreset {
			t.Errorf("balanceQualitySpeed(%v,%v) preset = %v, want %v", c.qw, c.sw, preset, c.wantPreset)
		}
		if qs != c.wantQualityScale {
			t.Errorf("quality_scale = %v, want %v", qs, c.wantQualityScale)
		}
		if ss != c.wantSpeedScale {
			t.Errorf("speed_scale = %v, want %v", ss, c.wantSpeedScale)
		}
	}
}

func TestStrongestPresetWithinLatencyIsMonotone(t *testing.T) {
	low := strongestPresetWithinLatency(0.001, 4, 256)
	high := strongestPresetWithinLatency(10000, 4, 256)
	if low != QualityDraft {
		t.Errorf("tiny latency budget should fall back to draft, got %v", low)
	}
	if high != QualityUltra {
		t.Errorf("huge latency budget should pick ultra, got %v", high)
	}
}
