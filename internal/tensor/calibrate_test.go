package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func fillTensor1D(t *testing.T, tn *Tensor, vals []float64) {
	t.Helper()
	for i, v := range vals {
		setAt(tn.data, tn.strides, tn.dtype, []int{i}, v)
	}
}

func TestCalibratePercentileDropsOuterTail(t *testing.T) {
	p := newTestPool(t)
	vals := make([]float64, 1000)
	for i := range vals {
		vals[i] = float64(i) - 500
	}
	tn, err := New(p, F32, []int{len(vals)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tn.Release()
	fillTensor1D(t, tn, vals)

	rmin, rmax := calibratePercentile(tn, 0.01)
	if rmin <= -500 || rmax >= 499 {
		t.Errorf("percentile clip (%v, %v) should be tighter than the full range (-500, 499)", rmin, rmax)
	}
}

func TestCalibrateVoiceOptimizedTimeDomainIsSymmetricWithHeadroom(t *testing.T) {
	p := newTestPool(t)
	rng := rand.New(rand.NewSource(1))
	vals := make([]float64, 4000)
	for i := range vals {
		// asymmetric distribution: skewed positive, with one large
		// outlier on each side that the tight percentile clip should drop.
		vals[i] = rng.Float64()*0.2 - 0.05
	}
	vals[0] = -10
	vals[1] = 10
	tn, err := New(p, F32, []int{len(vals)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tn.Release()
	fillTensor1D(t, tn, vals)

	cfg := DefaultCalibrationConfig()
	rmin, rmax := Calibrate(tn, CalibrateVoiceOptimized, -127, 127, cfg)

	if rmin != -rmax {
		t.Errorf("voice-optimized time-domain range (%v, %v) should be symmetric about zero", rmin, rmax)
	}
	if rmax >= 10 {
		t.Errorf("voice-optimized range max = %v, want well below the 10.0 outlier (tight percentile clip)", rmax)
	}

	// headroom should make the range a bit wider than the bare symmetric
	// percentile clip with zero headroom.
	noHeadroomCfg := cfg
	noHeadroomCfg.VoiceHeadroom = 0
	_, baseRmax := Calibrate(tn, CalibrateVoiceOptimized, -127, 127, noHeadroomCfg)
	if rmax <= baseRmax {
		t.Errorf("headroom range max = %v, want greater than the zero-headroom max %v", rmax, baseRmax)
	}
}

func TestCalibrateVoiceOptimizedFrequencyDomainUsesLogRange(t *testing.T) {
	p := newTestPool(t)
	// spectral-magnitude-like data: mostly small, a handful of very large
	// peaks spanning orders of magnitude.
	vals := make([]float64, 2000)
	for i := range vals {
		vals[i] = 0.01 + float64(i%5)*0.02
	}
	vals[0] = 5000
	vals[1] = 8000
	tn, err := New(p, F32, []int{len(vals)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tn.Release()
	fillTensor1D(t, tn, vals)

	cfg := DefaultCalibrationConfig()
	cfg.VoiceFrequencyDomain = true
	rmin, rmax := Calibrate(tn, CalibrateVoiceOptimized, -127, 127, cfg)

	if rmin != -rmax {
		t.Errorf("voice-optimized frequency-domain range (%v, %v) should be symmetric about zero", rmin, rmax)
	}
	if rmax >= 8000 {
		t.Errorf("log-domain range max = %v, want compressed well below the 8000 linear peak", rmax)
	}
	if rmax <= 0.1 {
		t.Errorf("log-domain range max = %v, want wide enough to cover the bulk of the distribution", rmax)
	}
}

func TestCalibrateMinMaxMatchesExtremes(t *testing.T) {
	p := newTestPool(t)
	tn, err := New(p, F32, []int{4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tn.Release()
	fillTensor1D(t, tn, []float64{-3, 1, 2, 7})

	rmin, rmax := Calibrate(tn, CalibrateMinMax, -127, 127, DefaultCalibrationConfig())
	if rmin != -3 || rmax != 7 {
		t.Errorf("minmax calibration = (%v, %v), want (-3, 7)", rmin, rmax)
	}
}

func TestCalibrateKLDivergenceStaysWithinFullRange(t *testing.T) {
	p := newTestPool(t)
	rng := rand.New(rand.NewSource(2))
	vals := make([]float64, 5000)
	for i := range vals {
		vals[i] = rng.NormFloat64() * 10
	}
	tn, err := New(p, F32, []int{len(vals)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tn.Release()
	fillTensor1D(t, tn, vals)

	fullMin, fullMax := minMax(tn)
	rmin, rmax := Calibrate(tn, CalibrateKLDivergence, -127, 127, DefaultCalibrationConfig())
	if rmin < fullMin || rmax > fullMax {
		t.Errorf("KL-divergence clip (%v, %v) should stay within the full range (%v, %v)", rmin, rmax, fullMin, fullMax)
	}
	if math.IsNaN(float64(rmin)) || math.IsNaN(float64(rmax)) {
		t.Fatal("KL-divergence clip produced NaN")
	}
}
