package tensor

import "testing"

func TestReshapeInPlace(t *testing.T) {
	x := New(2, 3, 4)
	if x.NDim() != 3 {
		t.Fatalf("NDim = %d, want 3", x.NDim())
	}

	x.Reshape(2, 3, 2, 2)
	if x.NDim() != 4 || x.Shape(2) != 2 {
		t.Fatalf("reshape did not update shape: %v", x.Shapes())
	}
	if len(x.Data()) != 24 {
		t.Fatalf("reshape reallocated storage: len=%d", len(x.Data()))
	}
}

func TestReshapeVolumeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on volume mismatch")
		}
	}()
	x := New(2, 3)
	x.Reshape(2, 4)
}

func TestNullTensor(t *testing.T) {
	var nilT *Tensor
	if !nilT.IsNull() {
		t.Fatal("nil tensor should be null")
	}
	n := Null()
	if !n.IsNull() {
		t.Fatal("Null() should be null")
	}
	x := New(1, 2)
	if x.IsNull() {
		t.Fatal("allocated tensor should not be null")
	}
}

func TestCoLocated(t *testing.T) {
	a := NewOn(Host, 0, 2, 2)
	b := NewOn(Host, 0, 2, 2)
	c := NewOn(Accelerator, 0, 2, 2)
	if !a.CoLocated(b) {
		t.Fatal("same kind/id should be co-located")
	}
	if a.CoLocated(c) {
		t.Fatal("different kind should not be co-located")
	}
}

func TestSlice0(t *testing.T) {
	x := Wrap([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	v := x.Slice0(1)
	if v.NDim() != 1 || v.Shape(0) != 2 {
		t.Fatalf("unexpected slice shape: %v", v.Shapes())
	}
	if v.Data()[0] != 3 || v.Data()[1] != 4 {
		t.Fatalf("unexpected slice data: %v", v.Data())
	}
	// View aliases storage.
	v.Data()[0] = 99
	if x.Data()[2] != 99 {
		t.Fatal("Slice0 should alias parent storage")
	}
}

func TestAllocReplacesStorage(t *testing.T) {
	x := New(2, 2)
	old := x.Data()
	x.Alloc(3, 3)
	if x.NDim() != 2 || x.Shape(0) != 3 {
		t.Fatalf("unexpected shape after Alloc: %v", x.Shapes())
	}
	if len(old) == len(x.Data()) {
		t.Fatal("Alloc should have produced different-sized storage")
	}
}
