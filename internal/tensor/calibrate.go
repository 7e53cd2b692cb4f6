package tensor

import (
	"math"
	"sort"
)

// CalibrationStrategy selects how a real range [rmin, rmax] is derived from
// a tensor's observed values before computing QuantParams.
type CalibrationStrategy int

const (
	CalibrateMinMax CalibrationStrategy = iota
	CalibratePercentile
	CalibrateMSEOptimal
	CalibrateKLDivergence
	CalibrateVoiceOptimized
)

// CalibrationConfig parameterizes the calibration strategies that need it.
type CalibrationConfig struct {
	// PercentileTail is the fraction (0, 0.5) of outer tail dropped on each
	// side by CalibratePercentile.
	PercentileTail float64
	// Bins is the histogram resolution used by CalibrateKLDivergence.
	Bins int
	// MSEGridSteps bounds the grid search iterations of CalibrateMSEOptimal.
	MSEGridSteps int
	// VoiceHeadroom is the fractional headroom CalibrateVoiceOptimized adds
	// on top of the symmetric clip it derives from the data (time domain).
	VoiceHeadroom float64
	// VoiceFrequencyDomain tells CalibrateVoiceOptimized the tensor holds
	// frequency-domain data (spectral magnitudes), so it derives its range
	// in log domain instead of the time-domain symmetric-headroom rule.
	VoiceFrequencyDomain bool
}

// DefaultCalibrationConfig returns reasonable defaults for all strategies.
func DefaultCalibrationConfig() CalibrationConfig {
	return CalibrationConfig{
		PercentileTail: 0.001,
		Bins:           2048,
		MSEGridSteps:   100,
		VoiceHeadroom:  0.02,
	}
}

// Calibrate computes (rmin, rmax) for t under strategy, for subsequent use
// with ComputeQuantParams.
func Calibrate(t *Tensor, strategy CalibrationStrategy, qmin, qmax int32, cfg CalibrationConfig) (rmin, rmax float32) {
	switch strategy {
	case CalibratePercentile:
		return calibratePercentile(t, cfg.PercentileTail)
	case CalibrateMSEOptimal:
		return calibrateMSEOptimal(t, qmin, qmax, cfg.MSEGridSteps)
	case CalibrateKLDivergence:
		return calibrateKLDivergence(t, qmin, qmax, cfg.Bins)
	case CalibrateVoiceOptimized:
		return calibrateVoiceOptimized(t, cfg)
	default:
		return minMax(t)
	}
}

func sortedValues(t *Tensor) []float64 {
	vals := make([]float64, 0, t.size)
	forEachIndex(t.shape, func(idx []int) {
		vals = append(vals, getAt(t.data, t.strides, t.dtype, idx))
	})
	sort.Float64s(vals)
	return vals
}

// calibratePercentile drops the outer tail fraction on each side before
// taking the min/max of the remainder.
func calibratePercentile(t *Tensor, tail float64) (float32, float32) {
	vals := sortedValues(t)
	if len(vals) == 0 {
		return 0, 0
	}
	if tail <= 0 {
		return float32(vals[0]), float32(vals[len(vals)-1])
	}
	lo := int(float64(len(vals)) * tail)
	hi := len(vals) - 1 - lo
	if hi <= lo {
		return float32(vals[0]), float32(vals[len(vals)-1])
	}
	return float32(vals[lo]), float32(vals[hi])
}

// calibrateMSEOptimal grid-searches a clip scale of the full range that
// minimizes the squared quantization reconstruction error, bounded to
// gridSteps candidates.
func calibrateMSEOptimal(t *Tensor, qmin, qmax int32, gridSteps int) (float32, float32) {
	fullMin, fullMax := minMax(t)
	if gridSteps <= 0 {
		gridSteps = 1
	}
	bound := math.Abs(float64(fullMin))
	if math.Abs(float64(fullMax)) > bound {
		bound = math.Abs(float64(fullMax))
	}
	if bound == 0 {
		return 0, 0
	}

	bestErr := math.Inf(1)
	bestScale := 1.0
	for i := 1; i <= gridSteps; i++ {
		frac := float64(i) / float64(gridSteps)
		candBound := bound * frac
		p := ComputeQuantParams(float32(-candBound), float32(candBound), qmin, qmax, true)

		var sqErr float64
		forEachIndex(t.shape, func(idx []int) {
			x := float32(getAt(t.data, t.strides, t.dtype, idx))
			q := Quantize(x, p)
			xr := Dequantize(q, p)
			d := float64(x - xr)
			sqErr += d * d
		})
		if sqErr < bestErr {
			bestErr = sqErr
			bestScale = frac
		}
	}
	clip := bound * bestScale
	return float32(-clip), float32(clip)
}

// calibrateKLDivergence bins the distribution and searches clip thresholds
// (from the histogram's outer bins inward) for the one minimizing KL
// divergence between the original and quantized-reconstructed histograms.
func calibrateKLDivergence(t *Tensor, qmin, qmax int32, bins int) (float32, float32) {
	fullMin, fullMax := minMax(t)
	if bins <= 0 || fullMax <= fullMin {
		return fullMin, fullMax
	}

	hist := make([]float64, bins)
	width := (fullMax - fullMin) / float32(bins)
	total := 0.0
	forEachIndex(t.shape, func(idx []int) {
		x := float32(getAt(t.data, t.strides, t.dtype, idx))
		bi := int((x - fullMin) / width)
		if bi < 0 {
			bi = 0
		}
		if bi >= bins {
			bi = bins - 1
		}
		hist[bi]++
		total++
	})
	if total == 0 {
		return fullMin, fullMax
	}
	for i := range hist {
		hist[i] /= total
	}

	bestKL := math.Inf(1)
	bestClip := bins
	for clip := bins / 2; clip <= bins; clip++ {
		q := quantizedHistogram(hist, clip, qmax-qmin+1)
		kl := klDivergence(hist, q)
		if kl < bestKL {
			bestKL = kl
			bestClip = clip
		}
	}

	clipFrac := float32(bestClip) / float32(bins)
	span := (fullMax - fullMin) * clipFrac
	mid := (fullMax + fullMin) / 2
	return mid - span/2, mid + span/2
}

// quantizedHistogram simulates quantizing the clipped distribution into
// levels buckets and re-expanding it back to the original bin resolution,
// for KL-divergence comparison.
func quantizedHistogram(hist []float64, clip, levels int) []float64 {
	if clip <= 0 {
		clip = 1
	}
	out := make([]float64, len(hist))
	binsPerLevel := float64(clip) / float64(levels)
	if binsPerLevel <= 0 {
		binsPerLevel = 1
	}
	for lvl := 0; lvl < levels; lvl++ {
		lo := int(float64(lvl) * binsPerLevel)
		hi := int(float64(lvl+1) * binsPerLevel)
		if hi > clip {
			hi = clip
		}
		if lo >= hi || lo >= len(hist) {
			continue
		}
		var sum float64
		n := 0
		for i := lo; i < hi && i < len(hist); i++ {
			sum += hist[i]
			n++
		}
		if n == 0 {
			continue
		}
		avg := sum / float64(n)
		for i := lo; i < hi && i < len(hist); i++ {
			out[i] = avg
		}
	}
	return out
}

func klDivergence(p, q []float64) float64 {
	const eps = 1e-12
	var d float64
	for i := range p {
		if p[i] <= 0 {
			continue
		}
		qi := q[i]
		if qi <= 0 {
			qi = eps
		}
		d += p[i] * math.Log(p[i]/qi)
	}
	return d
}

// calibrateVoiceOptimized biases toward the bulk of the energy distribution
// of speech-like signals: time-domain waveforms cluster near zero with
// occasional peaks, so it clips symmetrically about zero at a tight
// percentile (tighter than the generic percentile strategy) and adds a
// small headroom so genuine peaks don't saturate; frequency-domain
// spectral magnitudes span orders of magnitude, so their range is instead
// derived in log domain, where the bulk-vs-outlier distinction is linear.
func calibrateVoiceOptimized(t *Tensor, cfg CalibrationConfig) (float32, float32) {
	if cfg.VoiceFrequencyDomain {
		return calibrateVoiceLogDomain(t)
	}
	return calibrateVoiceSymmetric(t, cfg.VoiceHeadroom)
}

// calibrateVoiceSymmetric takes the tight-percentile clip of |x| and
// reports a range symmetric about zero, expanded by a small headroom
// fraction so the quantizer's outer levels aren't immediately saturated by
// values just past the observed clip.
func calibrateVoiceSymmetric(t *Tensor, headroom float64) (float32, float32) {
	lo, hi := calibratePercentile(t, 0.0005)
	bound := math.Abs(float64(lo))
	if math.Abs(float64(hi)) > bound {
		bound = math.Abs(float64(hi))
	}
	if bound == 0 {
		return 0, 0
	}
	if headroom > 0 {
		bound *= 1 + headroom
	}
	return float32(-bound), float32(bound)
}

// calibrateVoiceLogDomain takes the tight-percentile clip of log1p(|x|) and
// maps it back to linear magnitude, compressing the influence of rare,
// very large spectral peaks the way a log-magnitude mel representation
// would, instead of letting them dominate a linear min/max.
func calibrateVoiceLogDomain(t *Tensor) (float32, float32) {
	vals := sortedValues(t)
	if len(vals) == 0 {
		return 0, 0
	}
	logVals := make([]float64, len(vals))
	for i, v := range vals {
		logVals[i] = math.Log1p(math.Abs(v))
	}
	sort.Float64s(logVals)

	const tail = 0.0005
	lo := int(float64(len(logVals)) * tail)
	hi := len(logVals) - 1 - lo
	if hi <= lo {
		lo, hi = 0, len(logVals)-1
	}
	bound := math.Expm1(logVals[hi])
	return float32(-bound), float32(bound)
}
