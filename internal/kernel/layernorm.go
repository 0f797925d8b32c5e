package kernel

import (
	"fmt"
	"math"

	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

// LayerNorm performs in-place row-wise normalization of x over its last
// dimension: for each row, (x-mean)/sqrt(var+eps)*gamma+beta. gamma and beta
// are rank-1 tensors of length equal to x's last dim. Grounded on
// internal/device/cpu_backend.go's CPUTensor.LayerNorm, generalized to
// arbitrary rank (BERT tiny only needed rank-2; the operator needs rank-3).
func LayerNorm(gamma, beta, x *tensor.Tensor, eps float32) {
	width := x.Shape(x.NDim() - 1)
	if gamma.Shape(gamma.NDim()-1) != width || beta.Shape(beta.NDim()-1) != width {
		panic(fmt.Sprintf("kernel.LayerNorm: gamma/beta width mismatch with last dim %d", width))
	}
	g, b := gamma.Data(), beta.Data()
	data := x.Data()
	rows := len(data) / width

	for r := 0; r < rows; r++ {
		row := data[r*width : (r+1)*width]

		var sum float32
		for _, v := range row {
			sum += v
		}
		mean := sum / float32(width)

		var varSum float32
		for _, v := range row {
			d := v - mean
			varSum += d * d
		}
		variance := varSum / float32(width)
		invStd := float32(1.0 / math.Sqrt(float64(variance+eps)))

		for j := 0; j < width; j++ {
			row[j] = (row[j]-mean)*invStd*g[j] + b[j]
		}
	}
}
