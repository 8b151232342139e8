package capture

import (
	"context"
)

type CaptureOptions struct {
	Headers map[string]string
	// MaskSelectors are covered with an opaque box before the screenshot so
	// that volatile content does not count as a visual difference.
	MaskSelectors []string
}

// Capturer produces a PNG screenshot of a page.
type Capturer interface {
	Capture(ctx context.Context, url string, options CaptureOptions) ([]byte, error)
}
