package verdict

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

type Kind string

const (
	KindPixel   Kind = "pixel"
	KindPercent Kind = "percent"
)

// Policy turns a differing-pixel count into a pass/fail judgment. The set of
// implementations is closed: only PixelThreshold and PercentThreshold exist.
type Policy interface {
	Kind() Kind
	Validate() error
	passes(diffPixelCount uint64, totalPixelCount uint64) bool
}

// PixelThreshold passes when at most Limit pixels differ.
type PixelThreshold struct {
	Limit uint64
}

func (PixelThreshold) Kind() Kind {
	return KindPixel
}

func (p PixelThreshold) Validate() error {
	return nil
}

func (p PixelThreshold) passes(diffPixelCount uint64, totalPixelCount uint64) bool {
	return diffPixelCount <= p.Limit
}

func (p PixelThreshold) String() string {
	return fmt.Sprintf("%s:%d", KindPixel, p.Limit)
}

// PercentThreshold passes when the ratio of differing pixels is at most Limit,
// a fraction in [0, 1].
type PercentThreshold struct {
	Limit float64
}

func (PercentThreshold) Kind() Kind {
	return KindPercent
}

func (p PercentThreshold) Validate() error {
	if math.IsNaN(p.Limit) || p.Limit < 0 || p.Limit > 1 {
		return xerrors.Errorf("percent limit must be within [0, 1]: %v", p.Limit)
	}
	return nil
}

func (p PercentThreshold) passes(diffPixelCount uint64, totalPixelCount uint64) bool {
	return Ratio(diffPixelCount, totalPixelCount) <= p.Limit
}

func (p PercentThreshold) String() string {
	return fmt.Sprintf("%s:%s", KindPercent, strconv.FormatFloat(p.Limit, 'g', -1, 64))
}

// Ratio is diffPixelCount / totalPixelCount, or 0 when nothing was compared.
func Ratio(diffPixelCount uint64, totalPixelCount uint64) float64 {
	if totalPixelCount == 0 {
		return 0
	}
	return float64(diffPixelCount) / float64(totalPixelCount)
}

// Evaluate reports whether the count satisfies the policy.
func Evaluate(policy Policy, diffPixelCount uint64, totalPixelCount uint64) bool {
	return policy.passes(diffPixelCount, totalPixelCount)
}

// ParsePolicy reads "pixel:<count>" or "percent:<fraction>".
func ParsePolicy(s string) (Policy, error) {
	kind, value, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return nil, xerrors.Errorf("invalid policy, expected <kind>:<limit>: %q", s)
	}

	switch Kind(strings.ToLower(kind)) {
	case KindPixel:
		limit, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, xerrors.Errorf("invalid pixel limit %q: %w", value, err)
		}
		return PixelThreshold{Limit: limit}, nil
	case KindPercent:
		limit, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, xerrors.Errorf("invalid percent limit %q: %w", value, err)
		}
		p := PercentThreshold{Limit: limit}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, xerrors.Errorf("unknown policy kind: %s", kind)
	}
}

// Document is the wire form of a Policy.
type Document struct {
	Kind  Kind            `json:"kind"`
	Limit json.RawMessage `json:"limit"`
}

func ToDocument(policy Policy) Document {
	switch p := policy.(type) {
	case PixelThreshold:
		return Document{Kind: KindPixel, Limit: json.RawMessage(strconv.FormatUint(p.Limit, 10))}
	case PercentThreshold:
		return Document{Kind: KindPercent, Limit: json.RawMessage(strconv.FormatFloat(p.Limit, 'g', -1, 64))}
	}
	return Document{}
}

func (d Document) Policy() (Policy, error) {
	if len(d.Limit) == 0 {
		return nil, xerrors.Errorf("policy limit is missing")
	}
	return ParsePolicy(fmt.Sprintf("%s:%s", d.Kind, strings.TrimSpace(string(d.Limit))))
}
