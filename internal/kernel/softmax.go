package kernel

import (
	"math"

	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

// ApplyMaskAndSoftmax applies an additive mask to score (scaled by
// maskScale), then performs a numerically-stable row-wise softmax over
// score's last dimension, in place. score is [B, H, Q, K]; mask broadcasts
// from [B, 1, 1, K] or [B, 1, Q, K] across the head dimension, matching
// spec.md §4.5 step 3 / kernels::ApplyMaskAndSoftmax. A nil mask skips the
// additive step entirely (unmasked attention).
func ApplyMaskAndSoftmax(score, mask *tensor.Tensor, maskScale float32) {
	b, h, q, k := score.Shape(0), score.Shape(1), score.Shape(2), score.Shape(3)
	sd := score.Data()

	var maskQDim int
	var md []float32
	if mask != nil && !mask.IsNull() {
		maskQDim = mask.Shape(2)
		md = mask.Data()
	}

	for bi := 0; bi < b; bi++ {
		for hi := 0; hi < h; hi++ {
			for qi := 0; qi < q; qi++ {
				rowOff := ((bi*h+hi)*q + qi) * k
				row := sd[rowOff : rowOff+k]

				if md != nil {
					maskRowIdx := 0
					if maskQDim > 1 {
						maskRowIdx = qi
					}
					maskOff := (bi*maskQDim + maskRowIdx) * k
					maskRow := md[maskOff : maskOff+k]
					for ki := 0; ki < k; ki++ {
						row[ki] += maskRow[ki] * maskScale
					}
				}

				softmaxRow(row)
			}
		}
	}
}

func softmaxRow(row []float32) {
	max := row[0]
	for _, v := range row {
		if v > max {
			max = v
		}
	}
	var sum float32
	for i, v := range row {
		e := float32(math.Exp(float64(v - max)))
		row[i] = e
		sum += e
	}
	if sum == 0 {
		return
	}
	inv := 1.0 / sum
	for i := range row {
		row[i] *= inv
	}
}
