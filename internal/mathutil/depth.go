package mathutil

// LinearizeDepth converts window depth d ∈ [0,1] into positive linear view
// distance using the perspective-inverse formula.
func LinearizeDepth(d, near, far float64) float64 {
	ndc := 2*d - 1
	return 2 * near * far / (far + near - ndc*(far-near))
}

// WindowDepth is the inverse of LinearizeDepth.
func WindowDepth(z, near, far float64) float64 {
	ndc := (far+near)/(far-near) - 2*far*near/((far-near)*z)
	return ndc*0.5 + 0.5
}
