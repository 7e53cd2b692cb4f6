package lef

import (
	"encoding/binary"

	"github.com/libetude/libetude/internal/errs"
)

const (
	nameMax        = 64
	versionMax     = 16
	authorMax      = 64
	descriptionMax = 256
	tokenizerMax   = 128
)

// ArchitectureShape records the model's structural hyperparameters.
type ArchitectureShape struct {
	InputDim   int32
	HiddenDim  int32
	OutputDim  int32
	NumLayers  int32
	NumHeads   int32
}

// AudioConfig records the sample format the model was trained to produce.
type AudioConfig struct {
	SampleRate int32
	Channels   int32
	HopSize    int32
	MelBins    int32
}

// ModelMeta is LEF's fixed-size model metadata block.
type ModelMeta struct {
	Name          string
	Version       string
	Author        string
	Description   string
	Architecture  ArchitectureShape
	Audio         AudioConfig
	TokenizerInfo string
}

func putFixedString(b []byte, s string, max int) {
	n := copy(b[:max], s)
	for i := n; i < max; i++ {
		b[i] = 0
	}
}

func getFixedString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// metaSize is the fixed on-disk size of ModelMeta.
const metaSize = nameMax + versionMax + authorMax + descriptionMax + 4*5 + 4*4 + tokenizerMax

// Encode serializes m to its fixed-size on-disk form, bounding every string
// field to its declared maximum and silently truncating overflow.
func (m *ModelMeta) Encode() []byte {
	b := make([]byte, metaSize)
	off := 0
	putFixedString(b[off:off+nameMax], m.Name, nameMax)
	off += nameMax
	putFixedString(b[off:off+versionMax], m.Version, versionMax)
	off += versionMax
	putFixedString(b[off:off+authorMax], m.Author, authorMax)
	off += authorMax
	putFixedString(b[off:off+descriptionMax], m.Description, descriptionMax)
	off += descriptionMax

	for _, v := range []int32{m.Architecture.InputDim, m.Architecture.HiddenDim, m.Architecture.OutputDim, m.Architecture.NumLayers, m.Architecture.NumHeads} {
		binary.LittleEndian.PutUint32(b[off:], uint32(v))
		off += 4
	}
	for _, v := range []int32{m.Audio.SampleRate, m.Audio.Channels, m.Audio.HopSize, m.Audio.MelBins} {
		binary.LittleEndian.PutUint32(b[off:], uint32(v))
		off += 4
	}
	putFixedString(b[off:off+tokenizerMax], m.TokenizerInfo, tokenizerMax)
	return b
}

// DecodeModelMeta parses a ModelMeta from its fixed-size on-disk form.
func DecodeModelMeta(b []byte) (*ModelMeta, error) {
	if len(b) < metaSize {
		return nil, errs.New(errs.Corrupt, "lef model meta truncated")
	}
	m := &ModelMeta{}
	off := 0
	m.Name = getFixedString(b[off : off+nameMax])
	off += nameMax
	m.Version = getFixedString(b[off : off+versionMax])
	off += versionMax
	m.Author = getFixedString(b[off : off+authorMax])
	off += authorMax
	m.Description = getFixedString(b[off : off+descriptionMax])
	off += descriptionMax

	vals := make([]int32, 5)
	for i := range vals {
		vals[i] = int32(binary.LittleEndian.Uint32(b[off:]))
		off += 4
	}
	m.Architecture = ArchitectureShape{InputDim: vals[0], HiddenDim: vals[1], OutputDim: vals[2], NumLayers: vals[3], NumHeads: vals[4]}

	avals := make([]int32, 4)
	for i := range avals {
		avals[i] = int32(binary.LittleEndian.Uint32(b[off:]))
		off += 4
	}
	m.Audio = AudioConfig{SampleRate: avals[0], Channels: avals[1], HopSize: avals[2], MelBins: avals[3]}

	m.TokenizerInfo = getFixedString(b[off : off+tokenizerMax])
	return m, nil
}
