package kernel

import (
	"fmt"

	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

// AddBias adds the rank-1 bias vector to every row of x's last dimension,
// in place. Grounded on internal/device/cpu_backend.go's CPUTensor.AddBias.
func AddBias(bias, x *tensor.Tensor) {
	width := x.Shape(x.NDim() - 1)
	if bias.Shape(bias.NDim()-1) != width {
		panic(fmt.Sprintf("kernel.AddBias: bias width %d does not match last dim %d", bias.Shape(bias.NDim()-1), width))
	}
	b := bias.Data()
	data := x.Data()
	for i := 0; i < len(data); i += width {
		row := data[i : i+width]
		for j := range row {
			row[j] += b[j]
		}
	}
}

// AddInputBias computes out := src + residual + bias, matching
// kernels::AddInputBias(*output, query_tensor, dense_bias_, output) in the
// reference implementation: the spec.md §4.5 step-7 post_add_input branch.
func AddInputBias(src, residual, bias, out *tensor.Tensor) {
	width := out.Shape(out.NDim() - 1)
	b := bias.Data()
	s, r, o := src.Data(), residual.Data(), out.Data()
	for i := 0; i < len(o); i += width {
		for j := 0; j < width; j++ {
			o[i+j] = s[i+j] + r[i+j] + b[j]
		}
	}
}

// AddBiasLayerNorm computes out := LayerNorm(residual + out + bias, gamma,
// beta, eps) in place, matching kernels::AddBiasLayerNorm in the reference
// implementation: the spec.md §4.5 step-7 post_layernorm branch.
func AddBiasLayerNorm(residual, bias, gamma, beta, out *tensor.Tensor, eps float32) {
	width := out.Shape(out.NDim() - 1)
	b := bias.Data()
	r, o := residual.Data(), out.Data()
	for i := 0; i < len(o); i += width {
		for j := 0; j < width; j++ {
			o[i+j] = r[i+j] + o[i+j] + b[j]
		}
	}
	LayerNorm(gamma, beta, out, eps)
}
