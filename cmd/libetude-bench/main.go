// Command libetude-bench measures mel-to-audio throughput for a LEF model.
//
// Usage:
//
//	go run . -model voice.lef
//	go run . -model voice.lef -frames 200 -iters 5
package main

import (
	"flag"
	"fmt"
	"log"
	"math"

	"github.com/libetude/libetude"
	"github.com/libetude/libetude/internal/memory"
	"github.com/libetude/libetude/internal/tensor"
)

func main() {
	modelPath := flag.String("model", "", "Path to a .lef model file")
	frames := flag.Int("frames", 100, "Number of synthetic mel frames per iteration")
	iters := flag.Int("iters", 3, "Number of timed MelToAudio calls")
	quality := flag.String("quality", "normal", "Quality preset: draft, normal, high, ultra")
	flag.Parse()

	if *modelPath == "" {
		log.Fatal("Usage: libetude-bench -model voice.lef [-frames N] [-iters N] [-quality normal]")
	}

	cfg := libetude.DefaultVocoderConfig()
	switch *quality {
	case "draft":
		cfg.Quality = libetude.QualityDraft
	case "normal":
		cfg.Quality = libetude.QualityNormal
	case "high":
		cfg.Quality = libetude.QualityHigh
	case "ultra":
		cfg.Quality = libetude.QualityUltra
	default:
		log.Fatalf("Invalid -quality %q (use draft, normal, high, or ultra)", *quality)
	}
	cfg = libetude.ConfigFromEnv(cfg)

	ctx, err := libetude.Create(*modelPath, cfg)
	if err != nil {
		log.Fatalf("Create failed: %v", err)
	}
	defer ctx.Destroy()

	pool, err := memory.NewPool(memory.DefaultPoolConfig())
	if err != nil {
		log.Fatalf("allocate memory pool: %v", err)
	}
	mel, err := tensor.New(pool, tensor.F32, []int{*frames, cfg.MelChannels})
	if err != nil {
		log.Fatalf("allocate mel tensor: %v", err)
	}
	defer mel.Release()
	fillSyntheticMel(mel.Bytes(), *frames, cfg.MelChannels)

	out := make([]float32, *frames*cfg.HopLength)
	for i := 0; i < *iters; i++ {
		n := len(out)
		if err := ctx.MelToAudio(mel, out, &n); err != nil {
			log.Fatalf("MelToAudio iteration %d failed: %v", i, err)
		}
	}

	stats := ctx.GetStats()
	fmt.Printf("model: %s\n", *modelPath)
	fmt.Printf("frames: %d, hop: %d, quality: %s\n", *frames, cfg.HopLength, *quality)
	fmt.Printf("mel_to_audio: calls=%d avg=%.3fms peak=%.3fms realtime=%.2fx\n",
		stats.MelToAudioCalls, stats.MelToAudioAvgMs, stats.MelToAudioPeakMs, stats.MelToAudioRealtime)
}

// fillSyntheticMel writes a smooth little-endian f32 ramp across channels so
// the benchmark exercises the same DSP path a real mel spectrogram would,
// without depending on an external corpus.
func fillSyntheticMel(buf []byte, frames, channels int) {
	for t := 0; t < frames; t++ {
		for c := 0; c < channels; c++ {
			v := float32(0.5 * math.Sin(float64(t)*0.1+float64(c)*0.05))
			bits := math.Float32bits(v)
			off := (t*channels + c) * 4
			buf[off] = byte(bits)
			buf[off+1] = byte(bits >> 8)
			buf[off+2] = byte(bits >> 16)
			buf[off+3] = byte(bits >> 24)
		}
	}
}
