package kernel

import "golang.org/x/sys/cpu"

// HWRequirement is a bitmask of hardware capabilities a kernel needs in
// order to run.
type HWRequirement uint32

const Scalar HWRequirement = 0

const (
	SSE2 HWRequirement = 1 << iota
	AVX2
	NEON
	GPU
)

// DetectFeatures probes the running CPU and returns the mask of
// HWRequirement bits it satisfies. Scalar is always satisfied.
func DetectFeatures() HWRequirement {
	var mask HWRequirement
	if cpu.X86.HasSSE2 {
		mask |= SSE2
	}
	if cpu.X86.HasAVX2 {
		mask |= AVX2
	}
	if cpu.ARM64.HasASIMD {
		mask |= NEON
	}
	return mask
}

// Satisfies reports whether available has every bit that req requires.
func (req HWRequirement) Satisfies(available HWRequirement) bool {
	return req&available == req
}
