package attention

import (
	"github.com/conceptivecon/TurboTransformers/internal/kernel"
	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

const layerNormEps = 1e-6

// matMulRespectingTrans wraps kernel.MatMul, honoring the call's
// is_trans_weight flag (spec.md §6): a pre-transposed weight matrix is
// multiplied with tB=true instead of transposing the activation.
// kernel.MatMul only understands its last two axes as the matrix; x and out
// are flattened to 2D first so this works for any batch_size, not just
// batch_size == 1.
func matMulRespectingTrans(x, weight *tensor.Tensor, transWeight bool, out *tensor.Tensor) {
	kernel.MatMul(flatten2D(x), false, weight, transWeight, 1.0, flatten2D(out), 0.0)
}

// flatten2D returns a view of t with every axis but the last collapsed into
// one, a valid reinterpretation for any row-major tensor.
func flatten2D(t *tensor.Tensor) *tensor.Tensor {
	shape := t.Shapes()
	last := shape[len(shape)-1]
	rows := 1
	for _, s := range shape[:len(shape)-1] {
		rows *= s
	}
	return t.View(rows, last)
}

// projectContextQ implements the Projection Stage's context-mode Q path
// (spec.md §4.4): optional pre-LayerNorm, dense projection against q_weight,
// reshape, AddBiasTransposeForScore. Q is always call-scoped; it is never
// eligible for cache aliasing in context mode.
func projectContextQ(c *Call, w *Weights) (qkvRef, error) {
	b, q, hidden := c.Query.Shape(0), c.Query.Shape(1), w.Hidden

	src := c.Query
	if c.PreLayerNorm {
		scratch := tensor.New(b, q, hidden)
		scratch.CopyFrom(c.Query)
		kernel.LayerNorm(w.LayerNormGamma, w.LayerNormBeta, scratch, layerNormEps)
		src = scratch
	}

	qOut1 := tensor.New(b, q, hidden)
	matMulRespectingTrans(src, w.QWeight, c.IsTransWeight, qOut1)

	qOut1.Reshape(b, q, w.NumAttentionHeads, w.SizePerHead())
	qOut2 := tensor.New(b, w.NumAttentionHeads, q, w.SizePerHead())
	kernel.AddBiasTransposeForScore(qOut1, w.QBias, qOut2)

	return qkvRef{t: qOut2, own: ownedCall}, nil
}

// projectContextKV implements the Projection Stage's context-mode K/V path
// for the cache-miss case (spec.md §4.4). When fillCache is true and the
// cache has slots present (memory_* not yet live), K/V are projected
// directly into the caller's memory_keys/memory_values cache tensors;
// otherwise they land in call-scoped storage.
func projectContextKV(c *Call, w *Weights, fillCache bool) (qkvRef, qkvRef, error) {
	b, k, hidden := c.Key.Shape(0), c.Key.Shape(1), w.Hidden
	h, d := w.NumAttentionHeads, w.SizePerHead()

	kOut1 := tensor.New(b, k, hidden)
	matMulRespectingTrans(c.Key, w.KWeight, c.IsTransWeight, kOut1)
	kOut1.Reshape(b, k, h, d)

	vOut1 := tensor.New(b, k, hidden)
	matMulRespectingTrans(c.Value, w.VWeight, c.IsTransWeight, vOut1)
	vOut1.Reshape(b, k, h, d)

	if fillCache {
		kDst := c.Cache.Get(slotMemoryKeys)
		if kDst == nil {
			kDst = tensor.Null()
		}
		kDst.Alloc(b, h, k, d)
		kernel.AddBiasTransposeForScore(kOut1, w.KBias, kDst)
		c.Cache.Set(slotMemoryKeys, kDst)

		vDst := c.Cache.Get(slotMemoryValues)
		if vDst == nil {
			vDst = tensor.Null()
		}
		vDst.Alloc(b, h, k, d)
		kernel.AddBiasTransposeForScore(vOut1, w.VBias, vDst)
		c.Cache.Set(slotMemoryValues, vDst)

		return qkvRef{t: kDst, own: cacheSlot}, qkvRef{t: vDst, own: cacheSlot}, nil
	}

	kOut2 := tensor.New(b, h, k, d)
	kernel.AddBiasTransposeForScore(kOut1, w.KBias, kOut2)
	vOut2 := tensor.New(b, h, k, d)
	kernel.AddBiasTransposeForScore(vOut1, w.VBias, vOut2)

	return qkvRef{t: kOut2, own: ownedCall}, qkvRef{t: vOut2, own: ownedCall}, nil
}

// projectSelf implements the Projection Stage's self-mode fused QKV path
// (spec.md §4.4): optional pre-LayerNorm, one dense projection per partition
// of qkv_weight into qkv_out1 [3,B,Q,hidden], SplitAddBiasTransposeForScore
// into qkv_out2 [3,B,H,Q,D], then extraction of the three view-tensors
// qkv_out2[0..2].
func projectSelf(c *Call, w *Weights) (q, newK, newV qkvRef, err error) {
	b, seq, hidden := c.Query.Shape(0), c.Query.Shape(1), w.Hidden
	h, d := w.NumAttentionHeads, w.SizePerHead()

	src := c.Query
	if c.PreLayerNorm {
		scratch := tensor.New(b, seq, hidden)
		scratch.CopyFrom(c.Query)
		kernel.LayerNorm(w.LayerNormGamma, w.LayerNormBeta, scratch, layerNormEps)
		src = scratch
	}

	qkvOut1 := tensor.New(3, b, seq, hidden)
	for p := 0; p < 3; p++ {
		matMulRespectingTrans(src, w.QKVWeight.Slice0(p), c.IsTransWeight, qkvOut1.Slice0(p))
	}

	qkvOut2 := tensor.New(3, b, h, seq, d)
	kernel.SplitAddBiasTransposeForScore(qkvOut2, qkvOut1, w.QKVBias)

	return qkvRef{t: qkvOut2.Slice0(0), own: viewOf},
		qkvRef{t: qkvOut2.Slice0(1), own: viewOf},
		qkvRef{t: qkvOut2.Slice0(2), own: viewOf},
		nil
}

// concatSelfSlot implements self-mode cache growth (spec.md §4.3): the new
// K (or V) is the concatenation of the live cache slot with the freshly
// projected tokens along the sequence axis.
func concatSelfSlot(cache *LayerCache, slot string, fresh *tensor.Tensor) (qkvRef, error) {
	prior := cache.Get(slot)
	out := tensor.New(prior.Shape(0), prior.Shape(1), prior.Shape(2)+fresh.Shape(2), prior.Shape(3))
	kernel.Concat(prior, fresh, 2, out)
	return qkvRef{t: out, own: ownedCall}, nil
}

// writebackSelf implements self-mode cache writeback (spec.md §4.3 step 5):
// the concatenated K, V are copied into the self_keys/self_values slots,
// which are created if absent. dispatchSelf calls it whenever the cache has
// any slot present.
func writebackSelf(cache *LayerCache, k, v *tensor.Tensor) {
	kDst := cache.Get(slotSelfKeys)
	if kDst == nil {
		kDst = tensor.Null()
	}
	kDst.Alloc(k.Shapes()...)
	kDst.CopyFrom(k)
	cache.Set(slotSelfKeys, kDst)

	vDst := cache.Get(slotSelfValues)
	if vDst == nil {
		vDst = tensor.Null()
	}
	vDst.Alloc(v.Shapes()...)
	vDst.CopyFrom(v)
	cache.Set(slotSelfValues, vDst)
}
