package libetude

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/libetude/libetude/internal/tensor"
)

// MelWriter adapts a VocoderContext's streaming API to an io.Writer-shaped
// interface: callers write raw little-endian f32 mel frames (mel_channels
// floats each) and read synthesized PCM back, the same layering the
// teacher puts over its codec state with Reader/Writer.
type MelWriter struct {
	ctx         *VocoderContext
	melChannels int
	frameBytes  int
	pending     []byte // partial mel frame carried across Write calls
	pcm         []float32
}

// NewMelWriter starts streaming on ctx and returns a MelWriter ready to
// accept mel frame bytes.
func NewMelWriter(ctx *VocoderContext) (*MelWriter, error) {
	if err := ctx.StartStreaming(); err != nil {
		return nil, err
	}
	melChannels := ctx.cfg.MelChannels
	return &MelWriter{
		ctx:         ctx,
		melChannels: melChannels,
		frameBytes:  melChannels * 4,
	}, nil
}

// Write accepts any number of bytes, buffering a partial trailing frame
// across calls, and synthesizes audio for every complete mel frame batch
// it can assemble up to the context's chunk_size.
func (w *MelWriter) Write(p []byte) (int, error) {
	n := len(p)
	w.pending = append(w.pending, p...)

	chunkBytes := w.frameBytes * w.ctx.cfg.ChunkSize
	for len(w.pending) >= w.frameBytes {
		take := len(w.pending) - len(w.pending)%w.frameBytes
		if take > chunkBytes {
			take = chunkBytes - chunkBytes%w.frameBytes
		}
		if take == 0 {
			break
		}
		if err := w.processBytes(w.pending[:take]); err != nil {
			return n, err
		}
		w.pending = w.pending[take:]
	}
	return n, nil
}

func (w *MelWriter) processBytes(b []byte) error {
	frames := len(b) / w.frameBytes
	mel, err := tensor.New(w.ctx.pool, tensor.F32, []int{frames, w.melChannels})
	if err != nil {
		return err
	}
	defer mel.Release()
	copy(mel.Bytes(), b)

	out := make([]float32, frames*w.ctx.cfg.HopLength)
	n := len(out)
	if err := w.ctx.ProcessChunk(mel, out, &n); err != nil {
		return err
	}
	w.pcm = append(w.pcm, out[:n]...)
	return nil
}

// PCM returns the audio samples synthesized so far and clears the internal
// buffer.
func (w *MelWriter) PCM() []float32 {
	out := w.pcm
	w.pcm = nil
	return out
}

// Close flushes any buffered partial frame (padded with zeros) and stops
// streaming. ProcessChunk already emits every synthesized sample as it is
// produced, so StopStreaming has nothing further to add to PCM.
func (w *MelWriter) Close() error {
	if len(w.pending) > 0 {
		padded := make([]byte, w.frameBytes)
		copy(padded, w.pending)
		if err := w.processBytes(padded); err != nil {
			return err
		}
		w.pending = nil
	}

	var n int
	return w.ctx.StopStreaming(nil, &n)
}

// AudioReader adapts synthesized PCM float32 samples to an io.Reader of
// little-endian f32 bytes.
type AudioReader struct {
	samples []float32
	pos     int
}

// NewAudioReader wraps samples for byte-oriented consumption.
func NewAudioReader(samples []float32) *AudioReader {
	return &AudioReader{samples: samples}
}

// Read fills p with little-endian f32-encoded samples, returning io.EOF
// once every sample has been read.
func (r *AudioReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.samples) {
		return 0, io.EOF
	}
	n := 0
	for n+4 <= len(p) && r.pos < len(r.samples) {
		binary.LittleEndian.PutUint32(p[n:], math.Float32bits(r.samples[r.pos]))
		n += 4
		r.pos++
	}
	return n, nil
}
