package kernel

import (
	"testing"

	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

func TestAddBiasTransposeForScore(t *testing.T) {
	// B=1, S=2, H=2, D=2
	x := tensor.Wrap([]float32{
		1, 2, 3, 4, // s=0: h0=[1,2] h1=[3,4]
		5, 6, 7, 8, // s=1: h0=[5,6] h1=[7,8]
	}, 1, 2, 2, 2)
	bias := tensor.Wrap([]float32{10, 10, 100, 100}, 4)
	y := tensor.New(1, 2, 2, 2)

	AddBiasTransposeForScore(x, bias, y)

	got := y.Data()
	// y[b,h,s,d]: h0,s0=[11,12] h0,s1=[15,16] h1,s0=[103,104] h1,s1=[107,108]
	want := []float32{11, 12, 15, 16, 103, 104, 107, 108}
	for i, v := range want {
		if got[i] != v {
			t.Errorf("got[%d]=%f want %f (full=%v)", i, got[i], v, got)
		}
	}
}

func TestTransposeForScoreUnshape(t *testing.T) {
	// [B,H,S,D] = [1,2,2,2]
	x := tensor.Wrap([]float32{
		1, 2, 3, 4, // h0: s0,s1
		5, 6, 7, 8, // h1: s0,s1
	}, 1, 2, 2, 2)
	y := tensor.New(1, 2, 4)

	TransposeForScore(y, x)

	// y[b,s,h*D+d]: s0 = [h0d0,h0d1,h1d0,h1d1] = [1,2,5,6]; s1 = [3,4,7,8]
	want := []float32{1, 2, 5, 6, 3, 4, 7, 8}
	got := y.Data()
	for i, v := range want {
		if got[i] != v {
			t.Errorf("got[%d]=%f want %f", i, got[i], v)
		}
	}
}

func TestSplitAddBiasTransposeForScore(t *testing.T) {
	// parts=3, B=1, S=1, H=1, D=2 -> x: [3,1,1,2], bias: [3,2], y: [3,1,1,1,2]
	x := tensor.Wrap([]float32{1, 2, 10, 20, 100, 200}, 3, 1, 1, 2)
	bias := tensor.Wrap([]float32{0, 0, 1, 1, 2, 2}, 3, 2)
	y := tensor.New(3, 1, 1, 1, 2)

	SplitAddBiasTransposeForScore(y, x, bias)

	want := []float32{1, 2, 11, 21, 102, 202}
	got := y.Data()
	for i, v := range want {
		if got[i] != v {
			t.Errorf("got[%d]=%f want %f", i, got[i], v)
		}
	}
}
