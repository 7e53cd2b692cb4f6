package libetude

import (
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/libetude/libetude/internal/container/lef"
	"github.com/libetude/libetude/internal/errs"
	"github.com/libetude/libetude/internal/graph"
	"github.com/libetude/libetude/internal/memory"
	"github.com/libetude/libetude/internal/tensor"
)

// Mode selects how a VocoderContext turns mel frames into audio.
type Mode int

const (
	ModeBatch Mode = iota
	ModeStreaming
	ModeRealtime
)

// OptimizationFlags is a bitmask of synthesis-speed trade-offs.
type OptimizationFlags uint32

const (
	// OptSpeed disables the post-filter and noise-shaper in real-time
	// mode, per spec §4.F.
	OptSpeed OptimizationFlags = 1 << iota
)

// VocoderConfig configures a VocoderContext.
type VocoderConfig struct {
	MelChannels     int
	HopLength       int
	SampleRate      int
	ChunkSize       int // max mel frames accepted per ProcessChunk call
	LookaheadFrames int // real-time mode cap
	NumThreads      int
	Quality         QualityPreset
	Mode            Mode
	Optimization    OptimizationFlags
	// CacheBudgetMB selects the streaming loader (internal/container/lef's
	// bounded-cache reader, per spec §4.E) instead of the mmap loader when
	// positive; it caps the loader's resident layer bytes to this many
	// megabytes.
	CacheBudgetMB int
}

// DefaultVocoderConfig returns a config matching a typical 24kHz/10ms-hop
// voice model.
func DefaultVocoderConfig() VocoderConfig {
	return VocoderConfig{
		MelChannels:     80,
		HopLength:       256,
		SampleRate:      24000,
		ChunkSize:       32,
		LookaheadFrames: 4,
		NumThreads:      4,
		Quality:         QualityNormal,
		Mode:            ModeBatch,
	}
}

// ConfigFromEnv overlays LIBETUDE_NUM_THREADS, LIBETUDE_SIMD, and
// LIBETUDE_CACHE_MB onto base, per spec §6. LIBETUDE_SIMD is parsed but not
// otherwise consulted here — kernel dispatch probes hardware directly
// (internal/kernel); unknown or malformed values are ignored rather than
// rejected.
func ConfigFromEnv(base VocoderConfig) VocoderConfig {
	if v, ok := os.LookupEnv("LIBETUDE_NUM_THREADS"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			base.NumThreads = n
		}
	}
	if v, ok := os.LookupEnv("LIBETUDE_SIMD"); ok {
		for _, tok := range strings.Split(v, ",") {
			switch strings.TrimSpace(tok) {
			case "sse2", "avx2", "neon":
				// acknowledged; actual feature gating happens in
				// internal/kernel via golang.org/x/sys/cpu probing.
			}
		}
	}
	if v, ok := os.LookupEnv("LIBETUDE_CACHE_MB"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			base.CacheBudgetMB = n
		}
	}
	return base
}

func validateVocoderConfig(cfg VocoderConfig) error {
	if cfg.MelChannels <= 0 {
		return errs.New(errs.InvalidArgument, "mel_channels must be positive")
	}
	if cfg.HopLength <= 0 {
		return errs.New(errs.InvalidArgument, "hop_length must be positive")
	}
	if cfg.SampleRate <= 0 {
		return errs.New(errs.InvalidArgument, "sample_rate must be positive")
	}
	if cfg.ChunkSize <= 0 {
		return errs.New(errs.InvalidArgument, "chunk_size must be positive")
	}
	return nil
}

// modelHandle is the part of lef.MappedModel / lef.StreamingModel that
// VocoderContext needs: the loader is chosen per CacheBudgetMB (§4.E's two
// loader strategies), but the vocoder's own DSP graph never reads layer
// weights directly, so only lifecycle management is shared here.
type modelHandle interface {
	Close() error
}

// VocoderContext holds a loaded model, its synthesis diagram, tensors,
// stats, and a serialization mutex, per spec §4.F. All public methods
// acquire mu for their duration.
type VocoderContext struct {
	mu sync.Mutex

	cfg          VocoderConfig
	qualityScale float64
	speedScale   float64

	model modelHandle
	pool  *memory.Pool

	diagram  *graph.Diagram
	pipeline *synthesisPipeline

	streaming bool
	// overlap mirrors the trailing hop_length samples of the most recently
	// synthesized chunk; ProcessChunk already emits those samples itself,
	// so this is informational state, not a pending output buffer.
	overlap      []float32
	currentFrame int

	stats statsTracker
	log   *logrus.Entry
}

// synthesisPipeline bundles the closures and port buffers wired into the
// diagram, so ProcessChunk/MelToAudio can feed mel data in and read audio
// data out without reaching into the diagram's internals.
type synthesisPipeline struct {
	melIn    *melFeed
	audioOut []byte // aliases the post-filter block's output port buffer
	maxAudio int     // capacity of audioOut, in samples
}

// melFeed is the closure-captured state melSource reads from; it is
// updated before each Diagram.Process call.
type melFeed struct {
	frames      [][]float32 // one slice of length MelChannels per mel frame
	hopLength   int
	qualityGain float64
	speedGain   float64
	skipPost    bool
}

// Create loads the LEF model at modelPath and builds a VocoderContext ready
// for MelToAudio or streaming use.
func Create(modelPath string, cfg VocoderConfig) (*VocoderContext, error) {
	if err := validateVocoderConfig(cfg); err != nil {
		return nil, err
	}

	pool, err := memory.NewPool(memory.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}

	var model modelHandle
	if cfg.CacheBudgetMB > 0 {
		model, err = lef.OpenStreaming(modelPath, pool, cfg.CacheBudgetMB<<20)
	} else {
		model, err = lef.OpenMapped(modelPath)
	}
	if err != nil {
		pool.Reset()
		return nil, err
	}

	maxAudio := cfg.ChunkSize * cfg.HopLength
	feed := &melFeed{hopLength: cfg.HopLength}
	diagram, pipeline, err := buildSynthesisDiagram(cfg, feed, maxAudio)
	if err != nil {
		pool.Reset()
		model.Close()
		return nil, err
	}
	if err := diagram.Initialize(); err != nil {
		pool.Reset()
		model.Close()
		return nil, err
	}

	ctx := &VocoderContext{
		cfg:          cfg,
		qualityScale: 0.5 + 0.5*cfg.Quality.factor(),
		speedScale:   0.5,
		model:        model,
		pool:         pool,
		diagram:      diagram,
		pipeline:     pipeline,
		log: logrus.WithFields(logrus.Fields{
			"component": "vocoder",
			"model":     modelPath,
		}),
	}
	ctx.log.Info("vocoder context created")
	return ctx, nil
}

// buildSynthesisDiagram wires the four-block reference pipeline named in
// SPEC_FULL.md §4.F: mel-source → upsampler → synthesis-filter →
// post-filter → output, connected via typed audio ports.
func buildSynthesisDiagram(cfg VocoderConfig, feed *melFeed, maxAudio int) (*graph.Diagram, *synthesisPipeline, error) {
	d := graph.NewDiagram(graph.DefaultDiagramConfig())

	srcBuf := make([]byte, maxAudio*4)
	upBuf := make([]byte, maxAudio*4)
	synBuf := make([]byte, maxAudio*4)
	postBuf := make([]byte, maxAudio*4)

	melSource := graph.Block{
		Name: "mel_source",
		Kind: graph.BlockSource,
		Ports: []graph.Port{
			{Name: "out", Kind: graph.PortAudio, Direction: graph.DirOut, Buffer: srcBuf},
		},
		Process: func(frameCount int) error {
			v := frameCountToF32(srcBuf, frameCount)
			if err := feed.fill(v); err != nil {
				return err
			}
			putF32(srcBuf, v)
			return nil
		},
	}
	srcID, err := d.AddBlock(melSource)
	if err != nil {
		return nil, nil, err
	}

	upsampler := graph.Block{
		Name: "upsampler",
		Kind: graph.BlockFilter,
		Ports: []graph.Port{
			{Name: "in", Kind: graph.PortAudio, Direction: graph.DirIn, Buffer: upBuf},
			{Name: "out", Kind: graph.PortAudio, Direction: graph.DirOut, Buffer: upBuf},
		},
		Process: func(frameCount int) error {
			v := frameCountToF32(upBuf, frameCount)
			smoothTriangular(v)
			putF32(upBuf, v)
			return nil
		},
	}
	upID, err := d.AddBlock(upsampler)
	if err != nil {
		return nil, nil, err
	}

	synthesisFilter := graph.Block{
		Name: "synthesis_filter",
		Kind: graph.BlockSynthesizer,
		Ports: []graph.Port{
			{Name: "in", Kind: graph.PortAudio, Direction: graph.DirIn, Buffer: synBuf},
			{Name: "out", Kind: graph.PortAudio, Direction: graph.DirOut, Buffer: synBuf},
		},
		Process: func(frameCount int) error {
			v := frameCountToF32(synBuf, frameCount)
			onePoleFilter(v, feed.qualityGain)
			putF32(synBuf, v)
			return nil
		},
	}
	synID, err := d.AddBlock(synthesisFilter)
	if err != nil {
		return nil, nil, err
	}

	postFilter := graph.Block{
		Name: "post_filter",
		Kind: graph.BlockFilter,
		Ports: []graph.Port{
			{Name: "in", Kind: graph.PortAudio, Direction: graph.DirIn, Buffer: postBuf},
			{Name: "out", Kind: graph.PortAudio, Direction: graph.DirOut, Buffer: postBuf},
		},
		Process: func(frameCount int) error {
			if feed.skipPost {
				return nil
			}
			v := frameCountToF32(postBuf, frameCount)
			softClip(v, feed.speedGain)
			putF32(postBuf, v)
			return nil
		},
	}
	postID, err := d.AddBlock(postFilter)
	if err != nil {
		return nil, nil, err
	}

	if _, err := d.Connect(srcID, 0, upID, 0); err != nil {
		return nil, nil, err
	}
	if _, err := d.Connect(upID, 1, synID, 0); err != nil {
		return nil, nil, err
	}
	if _, err := d.Connect(synID, 1, postID, 0); err != nil {
		return nil, nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, nil, err
	}

	_ = cfg
	return d, &synthesisPipeline{melIn: feed, audioOut: postBuf, maxAudio: maxAudio}, nil
}

// frameCountToF32 reinterprets the first frameCount*4 bytes of buf as a
// float32 slice, matching PortAudio's f32 element size.
func frameCountToF32(buf []byte, frameCount int) []float32 {
	n := frameCount
	if n*4 > len(buf) {
		n = len(buf) / 4
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func putF32(buf []byte, vals []float32) {
	for i, v := range vals {
		bits := math.Float32bits(v)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
}

// fill upsamples the current mel frames by sample-and-hold and writes the
// result back into out in place (out was decoded from the source port's
// buffer; the caller re-encodes it).
func (f *melFeed) fill(out []float32) error {
	h := f.hopLength
	for t := range f.frames {
		scalar := meanOf(f.frames[t])
		base := t * h
		for i := 0; i < h && base+i < len(out); i++ {
			out[base+i] = scalar
		}
	}
	return nil
}

func meanOf(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += float64(x)
	}
	return float32(sum / float64(len(v)))
}

// smoothTriangular applies a 3-tap moving average in place, turning the
// mel source's step-wise hold into a smoother ramp.
func smoothTriangular(v []float32) {
	if len(v) < 3 {
		return
	}
	prev := v[0]
	for i := 1; i < len(v)-1; i++ {
		cur := v[i]
		v[i] = (prev + 2*cur + v[i+1]) / 4
		prev = cur
	}
}

// onePoleFilter applies a one-pole low-pass in place with coefficient
// 0.15*gain (capped at 0.9); a larger gain, as higher quality presets give,
// makes the output follow the input more closely.
func onePoleFilter(v []float32, gain float64) {
	if len(v) == 0 {
		return
	}
	alpha := float32(0.15 * gain)
	if alpha > 0.9 {
		alpha = 0.9
	}
	prev := v[0]
	for i := range v {
		v[i] = prev + alpha*(v[i]-prev)
		prev = v[i]
	}
}

// softClip applies a tanh-style soft clip scaled by gain, standing in for
// a noise shaper.
func softClip(v []float32, gain float64) {
	g := float32(gain)
	for i, x := range v {
		y := x * g
		v[i] = y / (1 + abs32(y))
	}
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// melToFrames converts a 2-D f32 [T, mel_channels] tensor into per-frame
// channel slices for melFeed.
func melToFrames(mel *tensor.Tensor, melChannels int) ([][]float32, error) {
	shape := mel.Shape()
	if len(shape) != 2 || shape[1] != melChannels {
		return nil, errs.Newf(errs.InvalidArgument, "mel shape %v incompatible with mel_channels=%d", shape, melChannels)
	}
	if mel.DType() != tensor.F32 {
		return nil, errs.New(errs.InvalidArgument, "mel tensor must be f32")
	}
	t := shape[0]
	raw := frameCountToF32(mel.Bytes(), t*melChannels)
	frames := make([][]float32, t)
	for i := 0; i < t; i++ {
		frames[i] = raw[i*melChannels : (i+1)*melChannels]
	}
	return frames, nil
}

// synthesizeGroup runs a single group of at most chunk_size mel frames
// through the diagram, producing len(frames)*hop_length raw samples.
func (c *VocoderContext) synthesizeGroup(frames [][]float32) ([]float32, error) {
	c.pipeline.melIn.frames = frames
	c.pipeline.melIn.qualityGain = c.qualityScale
	c.pipeline.melIn.speedGain = c.speedScale
	c.pipeline.melIn.skipPost = c.cfg.Mode == ModeRealtime && c.cfg.Optimization&OptSpeed != 0

	n := len(frames) * c.cfg.HopLength
	if n > c.pipeline.maxAudio {
		return nil, errs.Newf(errs.BufferSizeMismatch, "chunk produces %d samples, exceeds capacity %d", n, c.pipeline.maxAudio)
	}

	if err := c.diagram.Process(n); err != nil {
		return nil, err
	}

	raw := frameCountToF32(c.pipeline.audioOut, n)
	return raw, nil
}

// synthesize runs frames through the diagram, producing T*hop_length raw
// samples. Batch mode has no chunk_size cap on T, so frames exceeding one
// diagram pass' capacity are
// split into independent chunk_size-sized groups and concatenated; each
// group is self-contained (the reference blocks carry no state across
// Process calls), so this is transparent to the caller.
func (c *VocoderContext) synthesize(frames [][]float32) ([]float32, error) {
	if len(frames) <= c.cfg.ChunkSize {
		return c.synthesizeGroup(frames)
	}

	raw := make([]float32, 0, len(frames)*c.cfg.HopLength)
	for start := 0; start < len(frames); start += c.cfg.ChunkSize {
		end := start + c.cfg.ChunkSize
		if end > len(frames) {
			end = len(frames)
		}
		group, err := c.synthesizeGroup(frames[start:end])
		if err != nil {
			return nil, err
		}
		raw = append(raw, group...)
	}
	return raw, nil
}

// UpdateConfig replaces the context's configuration. Fields that size the
// synthesis buffers (mel_channels, hop_length, chunk_size) cannot be
// changed after Create; callers needing a different shape must Destroy
// and re-Create.
func (c *VocoderContext) UpdateConfig(cfg VocoderConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := validateVocoderConfig(cfg); err != nil {
		return err
	}
	if cfg.MelChannels != c.cfg.MelChannels || cfg.HopLength != c.cfg.HopLength || cfg.ChunkSize != c.cfg.ChunkSize {
		return errs.New(errs.InvalidState, "mel_channels, hop_length, and chunk_size cannot change after Create")
	}
	c.cfg = cfg
	c.qualityScale = 0.5 + 0.5*cfg.Quality.factor()
	return nil
}

// MelToAudio synthesizes the full mel tensor in batch mode. audioOut must
// have capacity for at least T*hop_length samples; *lenIO is read as that
// capacity and written with the number of samples actually produced.
func (c *VocoderContext) MelToAudio(mel *tensor.Tensor, audioOut []float32, lenIO *int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	frames, err := melToFrames(mel, c.cfg.MelChannels)
	if err != nil {
		return err
	}
	need := len(frames) * c.cfg.HopLength
	if lenIO == nil || *lenIO < need || len(audioOut) < need {
		return errs.Newf(errs.BufferSizeMismatch, "audio_out needs capacity %d", need)
	}

	raw, err := c.synthesize(frames)
	if err != nil {
		return err
	}
	copy(audioOut, raw)
	*lenIO = len(raw)

	c.stats.melToAudio.record(msSince(start), float64(need)/float64(c.cfg.SampleRate)*1000)
	c.stats.lastQuality = estimateQualityScore(raw)
	return nil
}

// StartStreaming enters streaming mode: zero-initializes the overlap
// buffer and resets current_frame, per spec §4.F.
func (c *VocoderContext) StartStreaming() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.streaming = true
	c.overlap = make([]float32, c.cfg.HopLength)
	c.currentFrame = 0
	return nil
}

// ProcessChunk synthesizes one mel chunk. Each chunk's raw synthesis output
// is emitted in full as soon as it is produced — the same per-group pass
// MelToAudio uses internally for chunk_size-sized groups of a batch call —
// so concatenating ProcessChunk's output across a stream exactly
// reconstructs mel_to_audio(whole_sequence) for the matching chunk
// boundaries, per the streaming-conservation invariant (spec §8). The
// trailing hop_length samples of this chunk are additionally mirrored into
// the overlap buffer so StopStreaming can report the tail of the most
// recently synthesized audio; since every raw sample is already emitted
// here, that buffer is informational only and is not re-emitted.
func (c *VocoderContext) ProcessChunk(melChunk *tensor.Tensor, audioOut []float32, lenIO *int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	if !c.streaming {
		return errs.New(errs.InvalidState, "ProcessChunk requires StartStreaming")
	}
	frames, err := melToFrames(melChunk, c.cfg.MelChannels)
	if err != nil {
		return err
	}
	if len(frames) > c.cfg.ChunkSize {
		return errs.Newf(errs.InvalidArgument, "chunk of %d mel frames exceeds chunk_size %d", len(frames), c.cfg.ChunkSize)
	}

	raw, err := c.synthesize(frames)
	if err != nil {
		return err
	}
	h := c.cfg.HopLength
	if len(raw) < h {
		return errs.Newf(errs.InvalidArgument, "chunk must produce at least hop_length=%d samples", h)
	}

	if lenIO == nil || *lenIO < len(raw) || len(audioOut) < len(raw) {
		return errs.Newf(errs.BufferSizeMismatch, "audio_out needs capacity %d", len(raw))
	}
	copy(audioOut, raw)
	*lenIO = len(raw)

	c.overlap = append(c.overlap[:0], raw[len(raw)-h:]...)
	c.currentFrame += len(frames)

	c.stats.processChunk.record(msSince(start), float64(len(frames)*h)/float64(c.cfg.SampleRate)*1000)
	c.stats.lastQuality = estimateQualityScore(raw)
	return nil
}

// StopStreaming clears streaming state. ProcessChunk already emits every
// raw sample as it is produced, so there is no held-back tail left to
// flush; finalOut/lenIO exist to match the batch/streaming call symmetry
// spec §4.F describes, and always report zero samples.
func (c *VocoderContext) StopStreaming(finalOut []float32, lenIO *int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streaming {
		return errs.New(errs.InvalidState, "StopStreaming requires an active stream")
	}
	if lenIO != nil {
		*lenIO = 0
	}
	_ = finalOut

	c.streaming = false
	c.overlap = nil
	c.currentFrame = 0
	return nil
}

// SetQuality changes the active quality preset.
func (c *VocoderContext) SetQuality(q QualityPreset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Quality = q
	c.qualityScale = 0.5 + 0.5*q.factor()
	return nil
}

// SetMode changes the active synthesis mode.
func (c *VocoderContext) SetMode(m Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Mode = m
	return nil
}

// SetOptimization replaces the active optimization flag set.
func (c *VocoderContext) SetOptimization(opt OptimizationFlags) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Optimization = opt
	return nil
}

// BalanceQualitySpeed maps quality/speed weights to a preset (applied
// immediately) and returns it, per spec §4.F.
func (c *VocoderContext) BalanceQualitySpeed(qw, sw float64) QualityPreset {
	c.mu.Lock()
	defer c.mu.Unlock()

	preset, qs, ss := balanceQualitySpeed(qw, sw)
	c.cfg.Quality = preset
	c.qualityScale = qs
	c.speedScale = ss
	return preset
}

// EnableAdaptiveQuality selects the strongest preset whose estimated
// per-chunk processing time fits targetLatencyMs, applying it immediately.
func (c *VocoderContext) EnableAdaptiveQuality(targetLatencyMs float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if targetLatencyMs <= 0 {
		return errs.New(errs.InvalidArgument, "target_latency_ms must be positive")
	}
	preset := strongestPresetWithinLatency(targetLatencyMs, c.cfg.ChunkSize, c.cfg.HopLength)
	c.cfg.Quality = preset
	c.qualityScale = 0.5 + 0.5*preset.factor()
	return nil
}

// GetStats returns a snapshot of the context's processing statistics.
func (c *VocoderContext) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats.snapshot()
	s.MissedDeadlines = 0
	return s
}

// ResetStats clears all accumulated statistics.
func (c *VocoderContext) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.reset()
}

// Destroy releases the context's model mapping and memory pool. The
// context must not be used afterward.
func (c *VocoderContext) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.diagram.Cleanup(); err != nil {
		c.log.WithError(err).Warn("diagram cleanup failed")
	}
	c.pool.Reset()
	if c.model != nil {
		if err := c.model.Close(); err != nil {
			return err
		}
	}
	c.log.Info("vocoder context destroyed")
	return nil
}

