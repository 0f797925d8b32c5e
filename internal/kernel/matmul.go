// Package kernel implements the Kernel Facade: typed wrappers over the
// GEMM/LayerNorm/Softmax/Transpose building blocks the attention operator
// composes. MatMul and BatchMatMul are backed by gonum's BLAS-aware mat.Dense,
// the same way the teacher runtime's buffer pool (internal/embeddings/model/pool.go)
// backs its intermediate matrices with *mat.Dense rather than hand-rolled loops.
package kernel

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

// MatMul computes C := alpha*op(A)*op(B) + beta*C where op is identity or
// transpose, depending on tA/tB. A, B, C are rank-2 (or rank-3 with a leading
// batch dim of 1, flattened) float32 tensors; the contract matches
// kernels::MatMul in the reference implementation.
func MatMul(a *tensor.Tensor, tA bool, b *tensor.Tensor, tB bool, alpha float32, c *tensor.Tensor, beta float32) {
	ar, ac := matDims(a, tA)
	br, bc := matDims(b, tB)
	if ac != br {
		panic(fmt.Sprintf("kernel.MatMul: inner dims mismatch %dx%d * %dx%d", ar, ac, br, bc))
	}

	ma := asDense(a, tA)
	mb := asDense(b, tB)

	var product mat.Dense
	product.Mul(ma, mb)

	cr, cc := ar, bc
	if c.IsNull() {
		c.Alloc(cr, cc)
	}
	cData := c.Data()
	if len(cData) != cr*cc {
		panic(fmt.Sprintf("kernel.MatMul: output tensor has wrong volume %d, want %d", len(cData), cr*cc))
	}

	raw := product.RawMatrix().Data
	if beta == 0 {
		for i, v := range raw {
			cData[i] = alpha * float32(v)
		}
	} else {
		for i, v := range raw {
			cData[i] = alpha*float32(v) + beta*cData[i]
		}
	}
}

// matDims returns the logical (rows, cols) of a 2D tensor after applying a
// transpose flag.
func matDims(t *tensor.Tensor, transposed bool) (int, int) {
	r, c := t.Shape(t.NDim()-2), t.Shape(t.NDim()-1)
	if transposed {
		return c, r
	}
	return r, c
}

// asDense builds a *mat.Dense view (copying float32->float64 since gonum's
// BLAS-backed mat.Dense is float64) over the last two axes of t, honoring the
// transpose flag via mat.Dense's own T().
func asDense(t *tensor.Tensor, transposed bool) mat.Matrix {
	r, c := t.Shape(t.NDim()-2), t.Shape(t.NDim()-1)
	data64 := make([]float64, r*c)
	src := t.Data()
	for i, v := range src {
		data64[i] = float64(v)
	}
	d := mat.NewDense(r, c, data64)
	if transposed {
		return d.T()
	}
	return d
}

// BatchMatMul computes, for every index in the leading batch dims shared by
// A, B and C, C[batch] := alpha*op(A[batch])*op(B[batch]) + beta*C[batch].
// A, B, C are rank-4 tensors shaped [Batch, Heads, Rows, Cols]; tB transposes
// the last two axes of B per-batch (used for Q*K^T).
func BatchMatMul(a *tensor.Tensor, tA bool, b *tensor.Tensor, tB bool, alpha float32, c *tensor.Tensor, beta float32) {
	if a.NDim() != 4 || b.NDim() != 4 {
		panic("kernel.BatchMatMul: expects rank-4 tensors [B, H, S, D]")
	}
	batch, heads := a.Shape(0), a.Shape(1)
	ar, ac := a.Shape(2), a.Shape(3)
	br, bc := b.Shape(2), b.Shape(3)
	if tA {
		ar, ac = ac, ar
	}
	if tB {
		br, bc = bc, br
	}
	if ac != br {
		panic(fmt.Sprintf("kernel.BatchMatMul: inner dims mismatch %dx%d * %dx%d", ar, ac, br, bc))
	}

	cr, cc := ar, bc
	if c.IsNull() {
		c.Alloc(batch, heads, cr, cc)
	}

	aStride := a.Shape(2) * a.Shape(3)
	bStride := b.Shape(2) * b.Shape(3)
	cStride := cr * cc
	aData, bData, cData := a.Data(), b.Data(), c.Data()

	for bi := 0; bi < batch; bi++ {
		for h := 0; h < heads; h++ {
			idx := bi*heads + h
			aSlab := tensor.Wrap(aData[idx*aStride:(idx+1)*aStride], a.Shape(2), a.Shape(3))
			bSlab := tensor.Wrap(bData[idx*bStride:(idx+1)*bStride], b.Shape(2), b.Shape(3))
			cSlab := tensor.Wrap(cData[idx*cStride:(idx+1)*cStride], cr, cc)
			MatMul(aSlab, tA, bSlab, tB, alpha, cSlab, beta)
		}
	}
}
