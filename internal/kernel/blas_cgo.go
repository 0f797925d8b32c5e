//go:build cgo

package kernel

// This file is only included when cgo is enabled. It registers the netlib
// BLAS implementation (Accelerate on macOS, OpenBLAS on Linux) so gonum's
// mat.Dense.Mul in matmul.go runs through system BLAS instead of gonum's pure
// Go fallback. Grounded verbatim on the teacher's cmd/fletcher/fast_blas.go.
import (
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/netlib/blas/netlib"
)

func init() {
	blas64.Use(netlib.Implementation{})
	log.Debug().Msg("BLAS acceleration enabled (netlib)")
}
