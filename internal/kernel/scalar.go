package kernel

import "github.com/libetude/libetude/internal/tensor"

// VectorAddFunc is the signature registered for "vector_add_f32": element-
// wise add of two tensors into out.
type VectorAddFunc func(a, b, out *tensor.Tensor) (*tensor.Tensor, error)

// QuantizeFunc is the signature registered for "quantize_int8"-style ops.
type QuantizeFunc func(src *tensor.Tensor, dtype tensor.DType, p tensor.QuantParams) (*tensor.Tensor, error)

// MatMulFunc is the signature registered for "matmul_f32".
type MatMulFunc func(a, b, out *tensor.Tensor) (*tensor.Tensor, error)

// NewDefaultRegistry builds a Registry for the detected hardware and
// registers the scalar reference kernel for every op LibEtude dispatches
// through. A scalar kernel is always present, so Select always succeeds for
// these op names even on hardware with no accelerated path.
func NewDefaultRegistry() *Registry {
	r := NewRegistry(DetectFeatures())

	r.Register("vector_add_f32", Kernel{
		Requires: Scalar,
		Priority: 1,
		Fn:       VectorAddFunc(tensor.Add),
	})
	r.Register("matmul_f32", Kernel{
		Requires: Scalar,
		Priority: 1,
		Fn:       MatMulFunc(tensor.MatMul),
	})
	r.Register("quantize_int8", Kernel{
		Requires: Scalar,
		Priority: 1,
		Fn:       QuantizeFunc(tensor.QuantizeTensor),
	})

	return r
}
