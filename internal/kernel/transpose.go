package kernel

import (
	"fmt"

	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

// AddBiasTransposeForScore computes Y[b,h,s,d] := X[b,s,h,d] + bias[h*D+d]
// for X shaped [B, S, H, D] and Y shaped [B, H, S, D]. This is the fused
// bias-add + head-transpose the reference implementation calls
// kernels::AddBiasTransposeForScore.
func AddBiasTransposeForScore(x, bias, y *tensor.Tensor) {
	if x.NDim() != 4 || y.NDim() != 4 {
		panic("kernel.AddBiasTransposeForScore: expects rank-4 tensors")
	}
	b, s, h, d := x.Shape(0), x.Shape(1), x.Shape(2), x.Shape(3)
	if y.Shape(0) != b || y.Shape(1) != h || y.Shape(2) != s || y.Shape(3) != d {
		panic(fmt.Sprintf("kernel.AddBiasTransposeForScore: shape mismatch x=%v y=%v", x.Shapes(), y.Shapes()))
	}
	biasData := bias.Data()
	xd, yd := x.Data(), y.Data()

	for bi := 0; bi < b; bi++ {
		for si := 0; si < s; si++ {
			for hi := 0; hi < h; hi++ {
				xOff := ((bi*s+si)*h + hi) * d
				yOff := ((bi*h+hi)*s + si) * d
				biasOff := hi * d
				for di := 0; di < d; di++ {
					yd[yOff+di] = xd[xOff+di] + biasData[biasOff+di]
				}
			}
		}
	}
}

// SplitAddBiasTransposeForScore splits a packed [3, B, S, H*D] tensor X into
// three partitions (Q, K, V), and for each partition applies the same fused
// bias-add-plus-head-transpose as AddBiasTransposeForScore, writing into
// y shaped [3, B, H, S, D]. bias is shaped [3, H*D]. Matches
// kernels::SplitAddBiasTransposeForScore in the reference implementation,
// used by the self-attention fused QKV projection.
func SplitAddBiasTransposeForScore(y, x, bias *tensor.Tensor) {
	if x.NDim() != 4 || y.NDim() != 5 {
		panic("kernel.SplitAddBiasTransposeForScore: expects x rank-4 [3,B,S,H*D], y rank-5 [3,B,H,S,D]")
	}
	parts, b, s, hd := x.Shape(0), x.Shape(1), x.Shape(2), x.Shape(3)
	h, d := y.Shape(2), y.Shape(4)
	if h*d != hd || y.Shape(0) != parts || y.Shape(1) != b || y.Shape(3) != s {
		panic(fmt.Sprintf("kernel.SplitAddBiasTransposeForScore: shape mismatch x=%v y=%v", x.Shapes(), y.Shapes()))
	}

	partStrideX := b * s * hd
	partStrideY := b * h * s * d
	biasData := bias.Data()
	xd, yd := x.Data(), y.Data()

	for p := 0; p < parts; p++ {
		partBias := biasData[p*hd : (p+1)*hd]
		xPart := xd[p*partStrideX : (p+1)*partStrideX]
		yPart := yd[p*partStrideY : (p+1)*partStrideY]
		for bi := 0; bi < b; bi++ {
			for si := 0; si < s; si++ {
				for hi := 0; hi < h; hi++ {
					xOff := (bi*s+si)*hd + hi*d
					yOff := ((bi*h+hi)*s + si) * d
					biasOff := hi * d
					for di := 0; di < d; di++ {
						yPart[yOff+di] = xPart[xOff+di] + partBias[biasOff+di]
					}
				}
			}
		}
	}
}

// TransposeForScore computes Y[b,s,h*D+d] := X[b,h,s,d], the inverse of
// AddBiasTransposeForScore's layout change (minus the bias add), used to
// "unshape" the context tensor before the output projection.
func TransposeForScore(y, x *tensor.Tensor) {
	if x.NDim() != 4 || y.NDim() != 3 {
		panic("kernel.TransposeForScore: expects x rank-4 [B,H,S,D], y rank-3 [B,S,H*D]")
	}
	b, h, s, d := x.Shape(0), x.Shape(1), x.Shape(2), x.Shape(3)
	if y.Shape(0) != b || y.Shape(1) != s || y.Shape(2) != h*d {
		panic(fmt.Sprintf("kernel.TransposeForScore: shape mismatch x=%v y=%v", x.Shapes(), y.Shapes()))
	}
	xd, yd := x.Data(), y.Data()

	for bi := 0; bi < b; bi++ {
		for hi := 0; hi < h; hi++ {
			for si := 0; si < s; si++ {
				xOff := ((bi*h+hi)*s + si) * d
				yOff := (bi*s+si)*h*d + hi*d
				copy(yd[yOff:yOff+d], xd[xOff:xOff+d])
			}
		}
	}
}
