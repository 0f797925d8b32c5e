package kernel

import (
	"math"
	"testing"

	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

func TestMatMulBasic(t *testing.T) {
	a := tensor.Wrap([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := tensor.Wrap([]float32{7, 8, 9, 10, 11, 12}, 3, 2)
	c := tensor.New(2, 2)

	MatMul(a, false, b, false, 1.0, c, 0.0)

	want := []float32{58, 64, 139, 154}
	got := c.Data()
	for i, v := range want {
		if math.Abs(float64(got[i]-v)) > 1e-5 {
			t.Errorf("MatMul[%d] = %f, want %f", i, got[i], v)
		}
	}
}

func TestMatMulTransposedB(t *testing.T) {
	// A: 2x3, B^T means B is stored as 2x3 and transposed to 3x2.
	a := tensor.Wrap([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := tensor.Wrap([]float32{7, 9, 11, 8, 10, 12}, 2, 3)
	c := tensor.New(2, 2)

	MatMul(a, false, b, true, 1.0, c, 0.0)

	want := []float32{58, 64, 139, 154}
	got := c.Data()
	for i, v := range want {
		if math.Abs(float64(got[i]-v)) > 1e-5 {
			t.Errorf("MatMul[%d] = %f, want %f", i, got[i], v)
		}
	}
}

func TestMatMulAlphaBeta(t *testing.T) {
	a := tensor.Wrap([]float32{1, 0, 0, 1}, 2, 2)
	b := tensor.Wrap([]float32{1, 2, 3, 4}, 2, 2)
	c := tensor.Wrap([]float32{100, 100, 100, 100}, 2, 2)

	MatMul(a, false, b, false, 2.0, c, 0.5)

	want := []float32{52, 54, 56, 58}
	got := c.Data()
	for i, v := range want {
		if math.Abs(float64(got[i]-v)) > 1e-5 {
			t.Errorf("MatMul[%d] = %f, want %f", i, got[i], v)
		}
	}
}

func TestBatchMatMulPerHeadIsolation(t *testing.T) {
	// Batch=1, Heads=2, each head is a distinct 2x2 identity-ish multiply.
	a := tensor.Wrap([]float32{
		1, 0, 0, 1, // head 0
		2, 0, 0, 2, // head 1
	}, 1, 2, 2, 2)
	b := tensor.Wrap([]float32{
		1, 2, 3, 4, // head 0
		1, 2, 3, 4, // head 1
	}, 1, 2, 2, 2)
	c := tensor.New(1, 2, 2, 2)

	BatchMatMul(a, false, b, false, 1.0, c, 0.0)

	got := c.Data()
	wantHead0 := []float32{1, 2, 3, 4}
	wantHead1 := []float32{2, 4, 6, 8}
	for i := 0; i < 4; i++ {
		if math.Abs(float64(got[i]-wantHead0[i])) > 1e-5 {
			t.Errorf("head0[%d] = %f, want %f", i, got[i], wantHead0[i])
		}
		if math.Abs(float64(got[4+i]-wantHead1[i])) > 1e-5 {
			t.Errorf("head1[%d] = %f, want %f", i, got[4+i], wantHead1[i])
		}
	}
}
