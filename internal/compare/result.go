package compare

import (
	"encoding/json"
	diffimage "snapshot-baseline/internal/diff/image"
	"snapshot-baseline/internal/verdict"
)

type Request struct {
	BaselinePath string
	ActualPath   string
	DiffPath     string
	Policy       verdict.Policy
}

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Result is the outcome of a comparison that ran to completion. Passed=false
// only ever means the images decoded and differed beyond the policy.
type Result struct {
	BaselinePath string
	ActualPath   string
	// DiffPath is empty for bootstrapped results; no diff is rendered then.
	DiffPath string

	DiffPixelCount  uint64
	TotalPixelCount uint64
	Passed          bool
	Bootstrapped    bool

	// Compared is the intersection that was scanned.
	Compared     Size
	BaselineSize Size
	ActualSize   Size
	Regions      []diffimage.Rectangle

	Policy verdict.Policy
}

// DiffRatio is always derived from DiffPixelCount and TotalPixelCount.
func (r *Result) DiffRatio() float64 {
	return verdict.Ratio(r.DiffPixelCount, r.TotalPixelCount)
}

func (r *Result) DimensionsMatch() bool {
	return r.BaselineSize == r.ActualSize
}

type resultDocument struct {
	BaselinePath    string                `json:"baselinePath"`
	ActualPath      string                `json:"actualPath"`
	DiffPath        string                `json:"diffPath,omitempty"`
	DiffPixelCount  uint64                `json:"diffPixelCount"`
	TotalPixelCount uint64                `json:"totalPixelCount"`
	DiffRatio       float64               `json:"diffRatio"`
	Passed          bool                  `json:"passed"`
	Bootstrapped    bool                  `json:"bootstrapped"`
	DimensionsMatch bool                  `json:"dimensionsMatch"`
	Compared        Size                  `json:"compared"`
	BaselineSize    Size                  `json:"baselineSize"`
	ActualSize      Size                  `json:"actualSize"`
	Regions         []diffimage.Rectangle `json:"regions"`
	Policy          *verdict.Document     `json:"policy,omitempty"`
}

func (r *Result) MarshalJSON() ([]byte, error) {
	document := resultDocument{
		BaselinePath:    r.BaselinePath,
		ActualPath:      r.ActualPath,
		DiffPath:        r.DiffPath,
		DiffPixelCount:  r.DiffPixelCount,
		TotalPixelCount: r.TotalPixelCount,
		DiffRatio:       r.DiffRatio(),
		Passed:          r.Passed,
		Bootstrapped:    r.Bootstrapped,
		DimensionsMatch: r.DimensionsMatch(),
		Compared:        r.Compared,
		BaselineSize:    r.BaselineSize,
		ActualSize:      r.ActualSize,
		Regions:         r.Regions,
	}
	if document.Regions == nil {
		document.Regions = []diffimage.Rectangle{}
	}
	if r.Policy != nil {
		d := verdict.ToDocument(r.Policy)
		document.Policy = &d
	}

	return json.Marshal(document)
}
