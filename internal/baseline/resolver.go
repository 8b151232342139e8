// Package baseline owns the absent -> present transition of a baseline image.
//
// Existence is observed on every call and never cached. Two concurrent first
// runs against the same location race and the last write wins; callers that
// compare the same checkpoint concurrently must serialize those calls.
package baseline

import (
	"context"
	diffimage "snapshot-baseline/internal/diff/image"
	"snapshot-baseline/internal/storage"

	"github.com/go-logr/logr"
	"golang.org/x/xerrors"
)

type State int

const (
	// Present means a trusted baseline already exists and must be compared against.
	Present State = iota
	// Bootstrapped means no baseline existed and the actual image was promoted to baseline.
	Bootstrapped
)

func (s State) String() string {
	switch s {
	case Present:
		return "present"
	case Bootstrapped:
		return "bootstrapped"
	default:
		return "unknown"
	}
}

// SourceError is returned when the actual image cannot be read or decoded
// while promoting it.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return "unusable actual image " + e.Path + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

type Resolver struct {
	Storage storage.Storage
	Log     logr.Logger
}

// Resolve reports whether baselinePath already holds a baseline. If it does
// not, the bytes at actualPath are copied there unchanged once they decode as
// an image, so a baseline is never something a later comparison cannot read.
func (r *Resolver) Resolve(ctx context.Context, baselinePath string, actualPath string) (State, error) {
	exists, err := r.Storage.Exists(ctx, baselinePath)
	if err != nil {
		return Present, xerrors.Errorf("failed to check baseline %s: %w", baselinePath, err)
	}
	if exists {
		return Present, nil
	}

	data, err := r.Storage.Get(ctx, actualPath)
	if err != nil {
		return Present, &SourceError{Path: actualPath, Err: err}
	}
	if _, err := diffimage.DecodeBytes(data); err != nil {
		return Present, &SourceError{Path: actualPath, Err: err}
	}

	location, err := r.Storage.Put(ctx, baselinePath, data)
	if err != nil {
		return Present, xerrors.Errorf("failed to create baseline %s: %w", baselinePath, err)
	}

	r.Log.Info("created baseline from actual image", "baseline", location, "actual", actualPath, "bytes", len(data))

	return Bootstrapped, nil
}
