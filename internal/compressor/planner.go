package compressor

import "math"

// PlanDimensions fits width x height inside maxLongEdge preserving the aspect
// ratio. It never upscales.
func PlanDimensions(width, height, maxLongEdge int) (int, int) {
	longEdge := max(width, height)
	if longEdge <= maxLongEdge {
		return width, height
	}
	scale := float64(maxLongEdge) / float64(longEdge)
	return scaleDimension(width, scale), scaleDimension(height, scale)
}

// scaledDimensions applies a search scale to already planned dimensions.
func scaledDimensions(width, height int, scale float64) (int, int) {
	if scale >= 1 {
		return width, height
	}
	return scaleDimension(width, scale), scaleDimension(height, scale)
}

func scaleDimension(n int, scale float64) int {
	return max(int(math.Round(float64(n)*scale)), 1)
}
