package kernel

import "testing"

func TestSelectPicksHighestPriorityWithinHW(t *testing.T) {
	r := NewRegistry(SSE2 | AVX2)
	r.Register("vector_add_f32", Kernel{Requires: Scalar, Priority: 1})
	r.Register("vector_add_f32", Kernel{Requires: SSE2, Priority: 5})
	r.Register("vector_add_f32", Kernel{Requires: AVX2, Priority: 10})
	r.Register("vector_add_f32", Kernel{Requires: NEON, Priority: 100}) // unsatisfied, must lose

	k, err := r.Select("vector_add_f32", 1)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if k.Requires != AVX2 {
		t.Errorf("Select picked requirement %v, want AVX2", k.Requires)
	}
}

func TestSelectFallsBackWhenHWUnsatisfied(t *testing.T) {
	r := NewRegistry(Scalar)
	r.Register("vector_add_f32", Kernel{Requires: Scalar, Priority: 1})
	r.Register("vector_add_f32", Kernel{Requires: AVX2, Priority: 100})

	k, err := r.Select("vector_add_f32", 1)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if k.Requires != Scalar {
		t.Errorf("Select picked requirement %v, want Scalar", k.Requires)
	}
}

func TestSelectSizeBoostFavorsLargerOptimalKernel(t *testing.T) {
	r := NewRegistry(AVX2)
	r.Register("vector_add_f32", Kernel{Requires: Scalar, Priority: 10, OptimalSize: 1 << 20})
	r.Register("vector_add_f32", Kernel{Requires: AVX2, Priority: 9, OptimalSize: 64})

	k, err := r.Select("vector_add_f32", 4096)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if k.Requires != AVX2 {
		t.Errorf("Select picked requirement %v, want AVX2 (boosted past its optimal size)", k.Requires)
	}
}

func TestSelectUnknownOpFails(t *testing.T) {
	r := NewRegistry(Scalar)
	if _, err := r.Select("no_such_op", 1); err == nil {
		t.Error("expected error for unregistered op")
	}
}

func TestScalarReturnsScalarKernelRegardlessOfHW(t *testing.T) {
	r := NewRegistry(AVX2)
	r.Register("op", Kernel{Requires: Scalar, Priority: 1})
	r.Register("op", Kernel{Requires: AVX2, Priority: 100})

	k, err := r.Scalar("op")
	if err != nil {
		t.Fatalf("Scalar: %v", err)
	}
	if k.Requires != Scalar {
		t.Errorf("Scalar returned requirement %v, want Scalar", k.Requires)
	}
}
