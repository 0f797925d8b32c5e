// Package tensor implements the Tensor Handle component: a shape/dtype/device
// descriptor over a flat float32 buffer with reshape-in-place semantics. It is
// the non-owning/owning storage leaf that the Kernel Facade and the attention
// operator build on.
package tensor

import "fmt"

// Kind identifies the device a Tensor's storage lives on.
type Kind int

const (
	// Host is ordinary CPU memory.
	Host Kind = iota
	// Accelerator stands in for any non-host device (GPU, etc). The
	// attention operator never dereferences accelerator storage directly;
	// it only uses Kind/ID to check co-location, matching spec.md's
	// treatment of device placement as an opaque descriptor.
	Accelerator
)

func (k Kind) String() string {
	switch k {
	case Host:
		return "host"
	case Accelerator:
		return "accelerator"
	default:
		return "unknown"
	}
}

// Tensor is a dense float32 array tagged with shape and device placement.
// Reshape mutates metadata in place and never reallocates as long as the new
// shape's volume matches the existing storage (the rank may change); Alloc
// (or a fresh New) is required for a volume change. A zero-value Tensor (no Shape)
// is the null tensor used as an absent-output marker.
type Tensor struct {
	shape []int
	data  []float32
	kind  Kind
	devID int
}

// New allocates a fresh Tensor with the given shape on Host, zero-filled.
func New(shape ...int) *Tensor {
	return NewOn(Host, 0, shape...)
}

// NewOn allocates a fresh Tensor with the given shape on the given device.
func NewOn(kind Kind, devID int, shape ...int) *Tensor {
	return &Tensor{
		shape: append([]int(nil), shape...),
		data:  make([]float32, volume(shape)),
		kind:  kind,
		devID: devID,
	}
}

// Wrap constructs a Tensor view directly over an existing backing slice
// without copying. len(data) must equal the volume of shape.
func Wrap(data []float32, shape ...int) *Tensor {
	if len(data) != volume(shape) {
		panic(fmt.Sprintf("tensor.Wrap: data length %d does not match shape %v volume %d", len(data), shape, volume(shape)))
	}
	return &Tensor{shape: append([]int(nil), shape...), data: data}
}

func volume(shape []int) int {
	v := 1
	for _, s := range shape {
		v *= s
	}
	return v
}

// Null returns the placeholder null tensor: no storage, used as an
// absent-output marker (spec.md §3's "null tensor").
func Null() *Tensor { return &Tensor{} }

// IsNull reports whether t is the absent-output placeholder (nil receiver
// counts as null too, so a nil *Tensor in a cache map behaves correctly).
func (t *Tensor) IsNull() bool {
	return t == nil || t.data == nil
}

// IsEmpty reports whether t carries zero elements.
func (t *Tensor) IsEmpty() bool {
	return t.IsNull() || volume(t.shape) == 0
}

// NDim returns the rank of the tensor.
func (t *Tensor) NDim() int {
	if t == nil {
		return 0
	}
	return len(t.shape)
}

// Shape returns the size of axis i.
func (t *Tensor) Shape(i int) int {
	return t.shape[i]
}

// Shapes returns a copy of the full shape.
func (t *Tensor) Shapes() []int {
	return append([]int(nil), t.shape...)
}

// Data returns the underlying flat storage. Callers must respect the shape's
// row-major layout; this is the non-owning view used by kernels.
func (t *Tensor) Data() []float32 {
	if t == nil {
		return nil
	}
	return t.data
}

// Kind reports the device kind the storage lives on.
func (t *Tensor) Kind() Kind { return t.kind }

// DeviceID reports the device id the storage lives on.
func (t *Tensor) DeviceID() int { return t.devID }

// CoLocated reports whether t and other share device kind and id.
func (t *Tensor) CoLocated(other *Tensor) bool {
	if t == nil || other == nil {
		return false
	}
	return t.kind == other.kind && t.devID == other.devID
}

// Reshape reinterprets the tensor's metadata in place. It panics if the new
// shape's volume does not match existing storage — growing/shrinking volume
// requires Alloc. A null tensor has no storage yet, so Reshape allocates
// zero-filled storage for it. This mirrors the reference implementation's
// Reshape<float>, which never reallocates for a same-volume reshape.
func (t *Tensor) Reshape(shape ...int) *Tensor {
	newVol := volume(shape)
	if len(t.data) != 0 && newVol != len(t.data) {
		panic(fmt.Sprintf("tensor.Reshape: volume mismatch, have %d want %d (shape %v)", len(t.data), newVol, shape))
	}
	t.shape = append([]int(nil), shape...)
	if t.data == nil {
		t.data = make([]float32, newVol)
	}
	return t
}

// Alloc reshapes t to the given shape, reallocating storage regardless of
// whether the volume changed. Used when a cache slot must grow (self-mode KV
// growth) rather than merely being reinterpreted.
func (t *Tensor) Alloc(shape ...int) *Tensor {
	t.shape = append([]int(nil), shape...)
	t.data = make([]float32, volume(shape))
	return t
}

// CopyFrom copies another tensor's contents into t. Shapes must match.
func (t *Tensor) CopyFrom(src *Tensor) {
	if volume(t.shape) != volume(src.shape) {
		panic(fmt.Sprintf("tensor.CopyFrom: volume mismatch %v vs %v", t.shape, src.shape))
	}
	copy(t.data, src.data)
}

// CopyTo copies t's contents into dst. Shapes must match.
func (t *Tensor) CopyTo(dst *Tensor) {
	dst.CopyFrom(t)
}

// View returns a new Tensor header sharing t's backing storage but presenting
// a different shape of the same volume (a genuine aliasing view, distinct
// from Reshape which mutates the receiver).
func (t *Tensor) View(shape ...int) *Tensor {
	if volume(shape) != len(t.data) {
		panic(fmt.Sprintf("tensor.View: volume mismatch, have %d want %d", len(t.data), volume(shape)))
	}
	return &Tensor{shape: append([]int(nil), shape...), data: t.data, kind: t.kind, devID: t.devID}
}

// Slice0 returns a view into one index along axis 0, keeping the remaining
// axes. Used to carve qkv_out2[i] into Q/K/V views, mirroring the reference
// implementation's core::Tensor operator[].
func (t *Tensor) Slice0(i int) *Tensor {
	rest := t.shape[1:]
	stride := volume(rest)
	return &Tensor{
		shape: append([]int(nil), rest...),
		data:  t.data[i*stride : (i+1)*stride],
		kind:  t.kind,
		devID: t.devID,
	}
}
