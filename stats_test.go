package libetude

import "testing"

func TestOpStatsAvgAndPeak(t *testing.T) {
	var s opStats
	s.record(10, 20)
	s.record(30, 20)

	if got := s.avgMs(); got != 20 {
		t.Errorf("avgMs = %v, want 20", got)
	}
	if got := s.peakMs; got != 30 {
		t.Errorf("peakMs = %v, want 30", got)
	}
}

func TestStatsTrackerResetClearsAccumulators(t *testing.T) {
	var tr statsTracker
	tr.melToAudio.record(5, 5)
	tr.lastQuality = 0.9

	tr.reset()
	snap := tr.snapshot()
	if snap.MelToAudioCalls != 0 || snap.QualityScore != 0 {
		t.Errorf("expected reset tracker to report zero values, got %+v", snap)
	}
}

func TestEstimateQualityScoreFlatSignalIsPerfect(t *testing.T) {
	flat := make([]float32, 100)
	for i := range flat {
		flat[i] = 1
	}
	if got := estimateQualityScore(flat); got != 1 {
		t.Errorf("flat signal score = %v, want 1", got)
	}
}

func TestEstimateQualityScoreNoisySignalIsLower(t *testing.T) {
	clean := make([]float32, 50)
	noisy := make([]float32, 50)
	for i := range clean {
		clean[i] = 1
		if i%2 == 0 {
			noisy[i] = 1
		} else {
			noisy[i] = -1
		}
	}
	if estimateQualityScore(noisy) >= estimateQualityScore(clean) {
		t.Error("a rapidly-alternating signal should score lower than a flat one")
	}
}
