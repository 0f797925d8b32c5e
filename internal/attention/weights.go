// Package attention implements the fused Multi-Headed Attention operator:
// the KV-Cache Binding, Invariants Guard, Attention Dispatcher, Projection
// Stage and Scoring Stage described in spec.md, grounded on the teacher's
// internal/embeddings/model/bert.go BertSelfAttention/BertSelfOutput shapes,
// generalized from BERT's fixed self-attention-only graph to the full
// self/context x cache-hit/cache-miss dispatch the reference implementation
// (turbo_transformers/layers/multi_headed_attention.cpp) performs.
package attention

import "github.com/conceptivecon/TurboTransformers/internal/tensor"

// Weights holds the operator's immutable parameters, spec.md §3's
// "Weights (immutable for the operator's lifetime)".
type Weights struct {
	QWeight, KWeight, VWeight *tensor.Tensor // [H*D, H*D], context mode
	QBias, KBias, VBias       *tensor.Tensor // [H*D]

	// QKVWeight is the fused self-mode projection, stored per-partition as
	// [3, H*D, H*D] (or transpose) rather than the single stacked [3*H*D,
	// H*D] matrix a GEMM would naturally produce — SplitAddBiasTransposeForScore's
	// contract (spec.md §4.6) expects its input already partition-major
	// [3,B,S,H*D], so the projection runs one MatMul per partition against
	// QKVWeight.Slice0(p) instead of a single fused GEMM followed by a
	// physical un-interleave.
	QKVWeight *tensor.Tensor
	QKVBias   *tensor.Tensor // [3, H*D]

	DenseWeight, DenseBias *tensor.Tensor // [H*D,H*D], [H*D]

	LayerNormGamma, LayerNormBeta *tensor.Tensor // [H*D]

	NumAttentionHeads int
	Hidden            int
}

// SizePerHead returns D = hidden / H.
func (w *Weights) SizePerHead() int {
	return w.Hidden / w.NumAttentionHeads
}
