package mathutil

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/mat"
)

// RowMajor is a 4×4 matrix stored row-major in float64, the layout used by
// the matrix trajectory format.
type RowMajor [16]float64

// Mul returns a × b.
func (a RowMajor) Mul(b RowMajor) RowMajor {
	var m RowMajor
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[r*4+c] = a[r*4+0]*b[0*4+c] + a[r*4+1]*b[1*4+c] +
				a[r*4+2]*b[2*4+c] + a[r*4+3]*b[3*4+c]
		}
	}
	return m
}

// Inverse inverts the matrix in float64. Singular or ill-conditioned
// matrices are reported as errors.
func (a RowMajor) Inverse() (RowMajor, error) {
	src := mat.NewDense(4, 4, append([]float64(nil), a[:]...))
	var inv mat.Dense
	if err := inv.Inverse(src); err != nil {
		return RowMajor{}, fmt.Errorf("mathutil: invert 4x4: %w", err)
	}
	var out RowMajor
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = inv.At(r, c)
		}
	}
	return out, nil
}

// Mat4 narrows to float32 and transposes into mgl32's column-major storage.
func (a RowMajor) Mat4() mgl32.Mat4 {
	var m mgl32.Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[c*4+r] = float32(a[r*4+c])
		}
	}
	return m
}

// RowMajorFromMat4 widens a column-major mgl32 matrix into row-major float64.
func RowMajorFromMat4(m mgl32.Mat4) RowMajor {
	var a RowMajor
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			a[r*4+c] = float64(m[c*4+r])
		}
	}
	return a
}
