package libetude

// QualityPreset selects the post-filter, noise-shaper, and scalar quality
// factor used during synthesis, per spec §4.F.
type QualityPreset int

const (
	QualityDraft QualityPreset = iota
	QualityNormal
	QualityHigh
	QualityUltra
)

func (q QualityPreset) String() string {
	switch q {
	case QualityDraft:
		return "draft"
	case QualityNormal:
		return "normal"
	case QualityHigh:
		return "high"
	case QualityUltra:
		return "ultra"
	default:
		return "unknown"
	}
}

// factor returns the preset's scalar quality factor: how aggressively the
// synthesis and post filters run. Higher presets spend more per-sample
// work for a cleaner signal.
func (q QualityPreset) factor() float64 {
	switch q {
	case QualityDraft:
		return 0.25
	case QualityNormal:
		return 0.5
	case QualityHigh:
		return 0.75
	case QualityUltra:
		return 1.0
	default:
		return 0.5
	}
}

// estimatedChunkNanos is a rough per-mel-frame cost model used by adaptive
// quality selection: higher presets cost proportionally more per frame.
// Calibrated against nothing in particular; it only needs to be monotone
// in the preset for EnableAdaptiveQuality to pick a sensible preset.
func (q QualityPreset) estimatedChunkNanos(melFrames, hopLength int) float64 {
	perSampleNanos := map[QualityPreset]float64{
		QualityDraft:  40,
		QualityNormal: 70,
		QualityHigh:   110,
		QualityUltra:  170,
	}[q]
	return perSampleNanos * float64(melFrames*hopLength)
}

// balanceQualitySpeed maps quality/speed weights to a preset and the pair
// of scale factors applied during synthesis, per spec §4.F's exact
// thresholds: q/(q+s) < 0.25 → draft, < 0.5 → normal, < 0.75 → high, else
// ultra; quality_scale = 0.5 + 0.5·qw, speed_scale = 0.5 + 0.5·sw.
func balanceQualitySpeed(qw, sw float64) (QualityPreset, float64, float64) {
	var ratio float64
	if qw+sw > 0 {
		ratio = qw / (qw + sw)
	}

	var preset QualityPreset
	switch {
	case ratio < 0.25:
		preset = QualityDraft
	case ratio < 0.5:
		preset = QualityNormal
	case ratio < 0.75:
		preset = QualityHigh
	default:
		preset = QualityUltra
	}

	qualityScale := 0.5 + 0.5*qw
	speedScale := 0.5 + 0.5*sw
	return preset, qualityScale, speedScale
}

// strongestPresetWithinLatency returns the highest preset whose estimated
// per-chunk processing time fits within targetLatencyMs, falling back to
// QualityDraft if even that doesn't fit.
func strongestPresetWithinLatency(targetLatencyMs float64, melFrames, hopLength int) QualityPreset {
	targetNanos := targetLatencyMs * 1e6
	best := QualityDraft
	for _, p := range []QualityPreset{QualityDraft, QualityNormal, QualityHigh, QualityUltra} {
		if p.estimatedChunkNanos(melFrames, hopLength) <= targetNanos {
			best = p
		}
	}
	return best
}
