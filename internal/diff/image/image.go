package image

import "image"

type DiffResult struct {
	// Image is the rendered diff, sized to the intersection of both inputs.
	Image *image.NRGBA
	// Mask marks differing pixels in row-major order over Image's bounds.
	Mask            []bool
	DiffPixelCount  uint64
	TotalPixelCount uint64
}

type Differ interface {
	Calculate(baseline image.Image, actual image.Image) *DiffResult
}
