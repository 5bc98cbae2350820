package export

import (
	"math"

	"splat-renderer/internal/mathutil"
)

// QuantizeDepth converts a window depth to the 16-bit value stored in depth
// images: linear distance times scale, truncated. Depths that are not
// strictly inside (0, 1) carry no surface and encode as 0.
func QuantizeDepth(d, near, far float32, scale float64) uint16 {
	if !(d > 0 && d < 1) {
		return 0
	}
	z := mathutil.LinearizeDepth(float64(d), float64(near), float64(far))
	v := math.Trunc(z * scale)
	switch {
	case v >= math.MaxUint16:
		return math.MaxUint16
	case v <= 0:
		return 0
	}
	return uint16(v)
}

// DequantizeDepth returns the linear distance a stored depth value stands
// for.
func DequantizeDepth(q uint16, scale float64) float64 {
	return float64(q) / scale
}

// LinearDepth is the unquantized distance for window depth d, 0 where
// QuantizeDepth would store 0.
func LinearDepth(d, near, far float32) float32 {
	if !(d > 0 && d < 1) {
		return 0
	}
	return float32(mathutil.LinearizeDepth(float64(d), float64(near), float64(far)))
}
