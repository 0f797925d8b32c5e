package kernel

import (
	"testing"

	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

func TestConcatAlongSeqAxis(t *testing.T) {
	// [B=1,H=1,S=2,D=2] concat [B=1,H=1,S=1,D=2] along axis 2.
	a := tensor.Wrap([]float32{1, 2, 3, 4}, 1, 1, 2, 2)
	b := tensor.Wrap([]float32{9, 9}, 1, 1, 1, 2)
	c := tensor.Null()

	Concat(a, b, 2, c)

	if c.Shape(2) != 3 {
		t.Fatalf("concat result seq len = %d, want 3", c.Shape(2))
	}
	want := []float32{1, 2, 3, 4, 9, 9}
	got := c.Data()
	for i, v := range want {
		if got[i] != v {
			t.Errorf("got[%d]=%f want %f", i, got[i], v)
		}
	}
}

func TestConcatPreservesPrefix(t *testing.T) {
	a := tensor.Wrap([]float32{1, 1, 2, 2, 3, 3}, 1, 1, 3, 2)
	b := tensor.Wrap([]float32{4, 4}, 1, 1, 1, 2)
	c := tensor.Null()

	Concat(a, b, 2, c)

	got := c.Data()
	for i := 0; i < len(a.Data()); i++ {
		if got[i] != a.Data()[i] {
			t.Errorf("prefix changed at %d: got %f want %f", i, got[i], a.Data()[i])
		}
	}
}
