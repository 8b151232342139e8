package baseline_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"snapshot-baseline/internal/baseline"
	"snapshot-baseline/internal/storage"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
)

type failingPutStorage struct {
	storage.Storage
}

func (f *failingPutStorage) Put(ctx context.Context, location string, data []byte) (string, error) {
	return "", errors.New("disk full")
}

func encodePNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(1, 1, color.NRGBA{R: 255, A: 255})

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		t.Fatal(err)
	}
	return buffer.Bytes()
}

func newResolver(t *testing.T) (*baseline.Resolver, string) {
	t.Helper()

	dir := t.TempDir()
	s, err := storage.NewFileStorage(context.Background(), storage.FileConfig{Directory: dir})
	if err != nil {
		t.Fatal(err)
	}
	return &baseline.Resolver{Storage: s, Log: logr.Discard()}, dir
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("BootstrapCopiesActual", func(t *testing.T) {
		r, dir := newResolver(t)
		actual := encodePNG(t)
		if err := os.WriteFile(filepath.Join(dir, "actual.png"), actual, 0644); err != nil {
			t.Fatal(err)
		}

		state, err := r.Resolve(ctx, "baselines/nested/home.png", "actual.png")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(baseline.Bootstrapped, state); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}

		got, err := os.ReadFile(filepath.Join(dir, "baselines", "nested", "home.png"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(actual, got) {
			t.Errorf("baseline is not byte-identical to the actual image")
		}
	})

	t.Run("PresentLeavesBaselineUntouched", func(t *testing.T) {
		r, dir := newResolver(t)
		if err := os.WriteFile(filepath.Join(dir, "baseline.png"), []byte("trusted"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "actual.png"), []byte("fresh"), 0644); err != nil {
			t.Fatal(err)
		}

		state, err := r.Resolve(ctx, "baseline.png", "actual.png")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(baseline.Present, state); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}

		got, err := os.ReadFile(filepath.Join(dir, "baseline.png"))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff("trusted", string(got)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("MissingActual", func(t *testing.T) {
		r, _ := newResolver(t)

		_, err := r.Resolve(ctx, "baseline.png", "missing.png")

		var sourceErr *baseline.SourceError
		if !errors.As(err, &sourceErr) {
			t.Fatalf("expected SourceError, got %v", err)
		}
		if !errors.Is(err, storage.ErrNotExist) {
			t.Errorf("expected the cause to be ErrNotExist, got %v", err)
		}
	})

	t.Run("UndecodableActualIsNotPromoted", func(t *testing.T) {
		r, dir := newResolver(t)
		if err := os.WriteFile(filepath.Join(dir, "actual.png"), []byte("\x89PNG not really"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := r.Resolve(ctx, "baseline.png", "actual.png")

		var sourceErr *baseline.SourceError
		if !errors.As(err, &sourceErr) {
			t.Fatalf("expected SourceError, got %v", err)
		}
		if diff := cmp.Diff("actual.png", sourceErr.Path); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if _, err := os.Stat(filepath.Join(dir, "baseline.png")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected no baseline to be created, got %v", err)
		}
	})

	t.Run("CopyFailureIsNotAPass", func(t *testing.T) {
		r, dir := newResolver(t)
		r.Storage = &failingPutStorage{Storage: r.Storage}
		if err := os.WriteFile(filepath.Join(dir, "actual.png"), encodePNG(t), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := r.Resolve(ctx, "baseline.png", "actual.png")
		if err == nil {
			t.Fatal("expected an error when the baseline cannot be written")
		}

		var sourceErr *baseline.SourceError
		if errors.As(err, &sourceErr) {
			t.Errorf("a write failure must not be reported as a source error")
		}
	})
}
