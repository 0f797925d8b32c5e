package attention

import (
	"math"

	"github.com/conceptivecon/TurboTransformers/internal/kernel"
	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

// score runs the Scoring Stage (spec.md §4.5): scaled dot-product scores,
// masked softmax, context gather, unshape, output projection, and exactly
// one of the three mutually-exclusive output-fusion branches. attScoreSink
// may be the null tensor, in which case a call-scoped sink is used and
// discarded on return.
func score(c *Call, w *Weights, r dispatchResult, output, attScoreSink *tensor.Tensor) error {
	q, k, v := r.q.t, r.k.t, r.v.t
	b, h, qLen, d := q.Shape(0), q.Shape(1), q.Shape(2), q.Shape(3)
	kEff := k.Shape(2)

	attScore := attScoreSink
	if attScore.IsNull() {
		attScore = tensor.New(b, h, qLen, kEff)
	} else {
		attScore.Reshape(b, h, qLen, kEff)
	}

	scaler := float32(1.0 / math.Sqrt(float64(d)))
	kernel.BatchMatMul(q, false, k, true, scaler, attScore, 0.0)

	kernel.ApplyMaskAndSoftmax(attScore, c.AttentionMask, 1.0)

	context := tensor.New(b, h, qLen, d)
	kernel.BatchMatMul(attScore, false, v, false, 1.0, context, 0.0)

	unshaped := tensor.New(b, qLen, h*d)
	kernel.TransposeForScore(unshaped, context)

	matMulRespectingTrans(unshaped, w.DenseWeight, c.IsTransWeight, output)

	switch {
	case c.PostAddInput:
		kernel.AddInputBias(output, c.Query, w.DenseBias, output)
	case c.PostLayerNorm:
		kernel.AddBiasLayerNorm(c.Query, w.DenseBias, w.LayerNormGamma, w.LayerNormBeta, output, layerNormEps)
	default:
		kernel.AddBias(w.DenseBias, output)
	}

	return nil
}
