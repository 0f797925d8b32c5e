package kernel

import (
	"fmt"

	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

// Concat writes the concatenation of a and b along axis into c. a and b must
// agree on every axis except axis. Used for KV-cache growth: concatenating
// cached self_keys/self_values with the newly projected tokens along the
// sequence axis (axis 2 of a [B, H, S, D] tensor), matching kernels::Concat
// in the reference implementation.
func Concat(a, b *tensor.Tensor, axis int, c *tensor.Tensor) {
	if a.NDim() != b.NDim() {
		panic("kernel.Concat: rank mismatch")
	}
	n := a.NDim()
	outShape := make([]int, n)
	for i := 0; i < n; i++ {
		if i == axis {
			outShape[i] = a.Shape(i) + b.Shape(i)
			continue
		}
		if a.Shape(i) != b.Shape(i) {
			panic(fmt.Sprintf("kernel.Concat: axis %d mismatch %d vs %d", i, a.Shape(i), b.Shape(i)))
		}
		outShape[i] = a.Shape(i)
	}

	if c.IsNull() {
		c.Alloc(outShape...)
	} else {
		c.Reshape(outShape...)
	}

	// Outer = product of dims before axis, inner = product of dims after axis.
	outer := 1
	for i := 0; i < axis; i++ {
		outer *= outShape[i]
	}
	inner := 1
	for i := axis + 1; i < n; i++ {
		inner *= outShape[i]
	}

	aAxis, bAxis, cAxis := a.Shape(axis), b.Shape(axis), outShape[axis]
	ad, bd, cd := a.Data(), b.Data(), c.Data()

	aChunk := aAxis * inner
	bChunk := bAxis * inner
	cChunk := cAxis * inner

	for o := 0; o < outer; o++ {
		copy(cd[o*cChunk:o*cChunk+aChunk], ad[o*aChunk:(o+1)*aChunk])
		copy(cd[o*cChunk+aChunk:o*cChunk+cChunk], bd[o*bChunk:(o+1)*bChunk])
	}
}
