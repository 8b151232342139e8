package compare

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"snapshot-baseline/internal/baseline"
	diffimage "snapshot-baseline/internal/diff/image"
	"snapshot-baseline/internal/storage"
	"snapshot-baseline/internal/verdict"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/xerrors"
)

const instrumentationName = "snapshot-baseline/internal/compare"

const (
	outcomePassed       = "passed"
	outcomeFailed       = "failed"
	outcomeBootstrapped = "bootstrapped"
	outcomeError        = "error"
)

// Comparator runs baseline resolution, decoding, diffing and the verdict for
// one request at a time. It holds no per-call state and is safe for
// concurrent use on distinct baselines.
type Comparator struct {
	Storage storage.Storage
	Differ  diffimage.Differ
	Log     logr.Logger

	tracer trace.Tracer

	comparisonsTotal               metric.Int64Counter
	comparisonDurationMicroSeconds metric.Int64Histogram
	comparisonDiffPixels           metric.Int64Histogram
}

// NewComparator uses the global OpenTelemetry providers, which are no-ops
// unless the host installs real ones.
func NewComparator(s storage.Storage, log logr.Logger) (*Comparator, error) {
	meter := otel.Meter(instrumentationName)

	comparisonsTotal, err := meter.Int64Counter("snapshot_comparisons_total",
		metric.WithDescription("Number of comparisons by outcome"))
	if err != nil {
		return nil, xerrors.Errorf("failed to create counter: %w", err)
	}
	comparisonDurationMicroSeconds, err := meter.Int64Histogram("snapshot_comparison_duration_micro_seconds")
	if err != nil {
		return nil, xerrors.Errorf("failed to create histogram: %w", err)
	}
	comparisonDiffPixels, err := meter.Int64Histogram("snapshot_comparison_diff_pixels")
	if err != nil {
		return nil, xerrors.Errorf("failed to create histogram: %w", err)
	}

	return &Comparator{
		Storage:                        s,
		Differ:                         diffimage.NewPixelDiff(),
		Log:                            log,
		tracer:                         otel.Tracer(instrumentationName),
		comparisonsTotal:               comparisonsTotal,
		comparisonDurationMicroSeconds: comparisonDurationMicroSeconds,
		comparisonDiffPixels:           comparisonDiffPixels,
	}, nil
}

// CompareOrCreateBaseline compares the actual image against the baseline. When
// no baseline exists yet, the actual image becomes the baseline and the
// comparison passes without rendering a diff.
func (c *Comparator) CompareOrCreateBaseline(ctx context.Context, request Request) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "CompareOrCreateBaseline", trace.WithAttributes(
		attribute.String("baseline", request.BaselinePath),
		attribute.String("actual", request.ActualPath),
	))
	defer span.End()

	now := time.Now()
	result, err := c.compareOrCreateBaseline(ctx, request)
	elapsed := time.Since(now)

	outcome := outcomeError
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.Log.Error(err, "comparison failed", "baseline", request.BaselinePath, "actual", request.ActualPath)
	case result.Bootstrapped:
		outcome = outcomeBootstrapped
	case result.Passed:
		outcome = outcomePassed
	default:
		outcome = outcomeFailed
	}

	attributes := metric.WithAttributes(attribute.Key("outcome").String(outcome))
	c.comparisonsTotal.Add(ctx, 1, attributes)
	c.comparisonDurationMicroSeconds.Record(ctx, elapsed.Microseconds(), attributes)

	if err != nil {
		return nil, err
	}

	c.comparisonDiffPixels.Record(ctx, int64(result.DiffPixelCount), attributes)
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int64("diff_pixel_count", int64(result.DiffPixelCount)),
		attribute.Float64("diff_ratio", result.DiffRatio()),
	)

	return result, nil
}

func (c *Comparator) compareOrCreateBaseline(ctx context.Context, request Request) (*Result, error) {
	if err := c.validate(request); err != nil {
		return nil, err
	}

	resolver := &baseline.Resolver{
		Storage: c.Storage,
		Log:     c.Log.WithName("baseline"),
	}
	state, err := resolver.Resolve(ctx, request.BaselinePath, request.ActualPath)
	if err != nil {
		var sourceErr *baseline.SourceError
		if errors.As(err, &sourceErr) {
			return nil, &DecodeError{Path: sourceErr.Path, Err: sourceErr.Err}
		}
		return nil, &IOError{Op: "create baseline", Path: request.BaselinePath, Err: err}
	}

	if state == baseline.Bootstrapped {
		c.Log.Info("baseline bootstrapped", "baseline", request.BaselinePath, "actual", request.ActualPath)
		return &Result{
			BaselinePath: request.BaselinePath,
			ActualPath:   request.ActualPath,
			Passed:       true,
			Bootstrapped: true,
			Policy:       request.Policy,
		}, nil
	}

	baselineImage, err := c.load(ctx, request.BaselinePath)
	if err != nil {
		return nil, err
	}

	actualImage, err := c.load(ctx, request.ActualPath)
	if err != nil {
		return nil, err
	}

	baselineSize := Size{Width: baselineImage.Rect.Dx(), Height: baselineImage.Rect.Dy()}
	actualSize := Size{Width: actualImage.Rect.Dx(), Height: actualImage.Rect.Dy()}
	if baselineSize != actualSize {
		c.Log.Info("image dimensions differ, comparing the common region only",
			"baseline", request.BaselinePath, "baselineSize", baselineSize,
			"actual", request.ActualPath, "actualSize", actualSize)
	}

	diffResult := c.Differ.Calculate(baselineImage, actualImage)
	passed := verdict.Evaluate(request.Policy, diffResult.DiffPixelCount, diffResult.TotalPixelCount)

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, diffResult.Image); err != nil {
		return nil, &IOError{Op: "encode diff image", Path: request.DiffPath, Err: err}
	}

	storedDiff, err := c.Storage.Put(ctx, request.DiffPath, buffer.Bytes())
	if err != nil {
		return nil, &IOError{Op: "write diff image", Path: request.DiffPath, Err: err}
	}

	compared := diffResult.Image.Rect.Size()
	result := &Result{
		BaselinePath:    request.BaselinePath,
		ActualPath:      request.ActualPath,
		DiffPath:        request.DiffPath,
		DiffPixelCount:  diffResult.DiffPixelCount,
		TotalPixelCount: diffResult.TotalPixelCount,
		Passed:          passed,
		Compared:        Size{Width: compared.X, Height: compared.Y},
		BaselineSize:    baselineSize,
		ActualSize:      actualSize,
		Regions:         diffimage.FindRegions(diffResult.Mask, compared.X, compared.Y),
		Policy:          request.Policy,
	}

	c.Log.V(1).Info("comparison finished",
		"baseline", request.BaselinePath,
		"actual", request.ActualPath,
		"diff", request.DiffPath,
		"storedDiff", storedDiff,
		"diffPixelCount", result.DiffPixelCount,
		"diffRatio", result.DiffRatio(),
		"policy", request.Policy,
		"passed", passed)

	return result, nil
}

func (c *Comparator) load(ctx context.Context, path string) (*image.NRGBA, error) {
	data, err := c.Storage.Get(ctx, path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	img, err := diffimage.DecodeBytes(data)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	return img, nil
}

func (c *Comparator) validate(request Request) error {
	if request.BaselinePath == "" || request.ActualPath == "" || request.DiffPath == "" {
		return xerrors.Errorf("baseline, actual and diff locations are required: %w", ErrInvalidRequest)
	}
	if request.Policy == nil {
		return xerrors.Errorf("policy is required: %w", ErrInvalidRequest)
	}
	if err := request.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	for _, location := range []string{request.BaselinePath, request.ActualPath, request.DiffPath} {
		if err := c.Storage.Validate(location); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	return nil
}
