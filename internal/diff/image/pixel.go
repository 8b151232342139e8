package image

import (
	"image"
	"image/color"
	"runtime"
	"sync"
	"sync/atomic"
)

const (
	// channelTolerance absorbs compression and anti-aliasing noise. It decides
	// pixel identity only and is independent of any pass/fail threshold.
	channelTolerance = 2

	// fadeNumerator/fadeDenominator is how much of the luma survives in
	// unchanged pixels; the rest is blended towards white.
	fadeNumerator   = 3
	fadeDenominator = 10
)

var markerColor = color.NRGBA{R: 255, G: 0, B: 0, A: 255}

type PixelDiff struct {
	workers int
}

func NewPixelDiff() *PixelDiff {
	// Use GOMAXPROCS instead of runtime.NumCPU() to consider cgroup.
	// https://tip.golang.org/doc/go1.25#container-aware-gomaxprocs
	return NewPixelDiffWithWorkers(runtime.GOMAXPROCS(0))
}

func NewPixelDiffWithWorkers(workers int) *PixelDiff {
	if workers < 1 {
		workers = 1
	}
	return &PixelDiff{
		workers,
	}
}

// Calculate compares the common region of baseline and actual, anchored at
// their top-left corners. Pixels outside the intersection are ignored.
func (p *PixelDiff) Calculate(baseline image.Image, actual image.Image) *DiffResult {
	width, height := intersectionSize(baseline.Bounds(), actual.Bounds())
	diff := image.NewNRGBA(image.Rect(0, 0, width, height))
	mask := make([]bool, width*height)

	if width == 0 || height == 0 {
		return &DiffResult{
			Image: diff,
			Mask:  mask,
		}
	}

	var diffPixelCount uint64

	baselineNRGBA, baselineIsNRGBA := baseline.(*image.NRGBA)
	actualNRGBA, actualIsNRGBA := actual.(*image.NRGBA)

	numWorkers := p.workers
	if numWorkers > height {
		numWorkers = height
	}
	rowsPerWorker := height / numWorkers

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := startY + rowsPerWorker
		if i == numWorkers-1 {
			endY = height
		}

		go func(startY int, endY int) {
			defer wg.Done()
			if baselineIsNRGBA && actualIsNRGBA {
				p.processNRGBA(baselineNRGBA, actualNRGBA, diff, mask, width, startY, endY, &diffPixelCount)
			} else {
				p.processGeneric(baseline, actual, diff, mask, width, startY, endY, &diffPixelCount)
			}
		}(startY, endY)
	}

	wg.Wait()

	return &DiffResult{
		Image:           diff,
		Mask:            mask,
		DiffPixelCount:  diffPixelCount,
		TotalPixelCount: uint64(width) * uint64(height),
	}
}

func (p *PixelDiff) processNRGBA(baseline *image.NRGBA, actual *image.NRGBA, diff *image.NRGBA, mask []bool, width int, startY int, endY int, diffCount *uint64) {
	var localDiff uint64

	baselineMin := baseline.Rect.Min
	actualMin := actual.Rect.Min

	for y := startY; y < endY; y++ {
		baselineRowStart := baseline.PixOffset(baselineMin.X, baselineMin.Y+y)
		actualRowStart := actual.PixOffset(actualMin.X, actualMin.Y+y)
		diffRowStart := diff.PixOffset(0, y)

		for x := 0; x < width; x++ {
			bp := baseline.Pix[baselineRowStart+x*4 : baselineRowStart+x*4+4 : baselineRowStart+x*4+4]
			ap := actual.Pix[actualRowStart+x*4 : actualRowStart+x*4+4 : actualRowStart+x*4+4]
			dp := diff.Pix[diffRowStart+x*4 : diffRowStart+x*4+4 : diffRowStart+x*4+4]

			if pixelsDiffer(bp[0], bp[1], bp[2], bp[3], ap[0], ap[1], ap[2], ap[3]) {
				dp[0], dp[1], dp[2], dp[3] = markerColor.R, markerColor.G, markerColor.B, markerColor.A
				mask[y*width+x] = true
				localDiff++
			} else {
				v := fadedLuma(bp[0], bp[1], bp[2], bp[3])
				dp[0], dp[1], dp[2], dp[3] = v, v, v, 255
			}
		}
	}

	atomic.AddUint64(diffCount, localDiff)
}

func (p *PixelDiff) processGeneric(baseline image.Image, actual image.Image, diff *image.NRGBA, mask []bool, width int, startY int, endY int, diffCount *uint64) {
	var localDiff uint64

	baselineMin := baseline.Bounds().Min
	actualMin := actual.Bounds().Min

	for y := startY; y < endY; y++ {
		for x := 0; x < width; x++ {
			bc := color.NRGBAModel.Convert(baseline.At(baselineMin.X+x, baselineMin.Y+y)).(color.NRGBA)
			ac := color.NRGBAModel.Convert(actual.At(actualMin.X+x, actualMin.Y+y)).(color.NRGBA)

			if pixelsDiffer(bc.R, bc.G, bc.B, bc.A, ac.R, ac.G, ac.B, ac.A) {
				diff.SetNRGBA(x, y, markerColor)
				mask[y*width+x] = true
				localDiff++
			} else {
				v := fadedLuma(bc.R, bc.G, bc.B, bc.A)
				diff.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
			}
		}
	}

	atomic.AddUint64(diffCount, localDiff)
}

func intersectionSize(baselineBounds image.Rectangle, actualBounds image.Rectangle) (int, int) {
	width := baselineBounds.Dx()
	if actualBounds.Dx() < width {
		width = actualBounds.Dx()
	}

	height := baselineBounds.Dy()
	if actualBounds.Dy() < height {
		height = actualBounds.Dy()
	}

	return width, height
}

func pixelsDiffer(br uint8, bg uint8, bb uint8, ba uint8, ar uint8, ag uint8, ab uint8, aa uint8) bool {
	return absDiff(br, ar) > channelTolerance ||
		absDiff(bg, ag) > channelTolerance ||
		absDiff(bb, ab) > channelTolerance ||
		absDiff(ba, aa) > channelTolerance
}

func absDiff(l uint8, r uint8) uint8 {
	if l > r {
		return l - r
	}
	return r - l
}

// fadedLuma turns a pixel into a light gray so that markers stand out while
// the layout stays recognizable.
func fadedLuma(r uint8, g uint8, b uint8, a uint8) uint8 {
	// ITU-R BT.601 luma weights, scaled by 1000.
	y := (299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000

	// Composite over white so transparent regions read as background.
	y = 255 - (255-y)*uint32(a)/255

	return uint8(255 - (255-y)*fadeNumerator/fadeDenominator)
}
