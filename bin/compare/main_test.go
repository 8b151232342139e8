package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"snapshot-baseline/internal/compare"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writePNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buffer.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

func TestRun(t *testing.T) {
	type in struct {
		setup func(t *testing.T, dir string)
		args  []string
	}

	type want struct {
		code   int
		fields map[string]any
	}

	tests := []struct {
		name string
		in   in
		want want
	}{
		{
			name: func() string {
				_, _, line, _ := runtime.Caller(0)
				return fmt.Sprint(line)
			}(),
			in: in{
				setup: func(t *testing.T, dir string) {
					writePNG(t, filepath.Join(dir, "actual.png"), white)
				},
				args: []string{"baseline.png", "actual.png", "diff.png"},
			},
			want: want{
				code:   exitPassed,
				fields: map[string]any{"passed": true, "bootstrapped": true},
			},
		},
		{
			name: func() string {
				_, _, line, _ := runtime.Caller(0)
				return fmt.Sprint(line)
			}(),
			in: in{
				setup: func(t *testing.T, dir string) {
					writePNG(t, filepath.Join(dir, "baseline.png"), white)
					writePNG(t, filepath.Join(dir, "actual.png"), black)
				},
				args: []string{"baseline.png", "actual.png", "diff.png"},
			},
			want: want{
				code:   exitFailed,
				fields: map[string]any{"passed": false, "diffPixelCount": float64(64), "diffRatio": float64(1)},
			},
		},
		{
			name: func() string {
				_, _, line, _ := runtime.Caller(0)
				return fmt.Sprint(line)
			}(),
			in: in{
				setup: func(t *testing.T, dir string) {
					writePNG(t, filepath.Join(dir, "baseline.png"), white)
					writePNG(t, filepath.Join(dir, "actual.png"), black)
				},
				args: []string{"-policy", "pixel:64", "baseline.png", "actual.png", "diff.png"},
			},
			want: want{
				code:   exitPassed,
				fields: map[string]any{"passed": true},
			},
		},
		{
			name: func() string {
				_, _, line, _ := runtime.Caller(0)
				return fmt.Sprint(line)
			}(),
			in: in{
				args: []string{"baseline.png", "actual.png", "diff.png"},
			},
			want: want{
				code: exitEngineError,
			},
		},
		{
			name: func() string {
				_, _, line, _ := runtime.Caller(0)
				return fmt.Sprint(line)
			}(),
			in: in{
				args: []string{"baseline.png", "actual.png"},
			},
			want: want{
				code: exitEngineError,
			},
		},
		{
			name: func() string {
				_, _, line, _ := runtime.Caller(0)
				return fmt.Sprint(line)
			}(),
			in: in{
				args: []string{"-policy", "percent:2", "baseline.png", "actual.png", "diff.png"},
			},
			want: want{
				code: exitEngineError,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GO_LOG", "error")
			dir := t.TempDir()
			if tt.in.setup != nil {
				tt.in.setup(t, dir)
			}

			var stdout bytes.Buffer
			args := append([]string{"-storage-backend", "file", "-directory", dir}, tt.in.args...)
			got := run(context.Background(), args, &stdout, io.Discard)

			if diff := cmp.Diff(tt.want.code, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			if tt.want.fields == nil {
				return
			}

			var result map[string]any
			if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
				t.Fatal(err)
			}
			for key, want := range tt.want.fields {
				if diff := cmp.Diff(want, result[key]); diff != "" {
					t.Errorf("%s (-want +got):\n%s", key, diff)
				}
			}
		})
	}
}

func TestRunManifest(t *testing.T) {
	t.Setenv("GO_LOG", "error")
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "home.png"), white)
	writePNG(t, filepath.Join(dir, "home-changed.png"), black)
	writePNG(t, filepath.Join(dir, "about.png"), white)

	manifest := `[
  {"baselinePath": "baseline/home.png", "actualPath": "home.png", "diffPath": "diff/home-1.png"},
  {"baselinePath": "baseline/home.png", "actualPath": "home-changed.png", "diffPath": "diff/home-2.png"},
  {"baselinePath": "baseline/about.png", "actualPath": "about.png", "diffPath": "diff/about.png", "policy": {"kind": "pixel", "limit": 0}}
]`
	manifestPath := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(manifestPath, []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	code := run(context.Background(), []string{"-storage-backend", "file", "-directory", dir, "-manifest", manifestPath}, &stdout, io.Discard)
	if diff := cmp.Diff(exitFailed, code); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	var outputs []struct {
		Result struct {
			Passed       bool `json:"passed"`
			Bootstrapped bool `json:"bootstrapped"`
		} `json:"result"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &outputs); err != nil {
		t.Fatal(err)
	}

	type summary struct {
		Passed       bool
		Bootstrapped bool
	}
	var got []summary
	for _, output := range outputs {
		if output.Error != "" {
			t.Fatalf("unexpected error: %s", output.Error)
		}
		got = append(got, summary{Passed: output.Result.Passed, Bootstrapped: output.Result.Bootstrapped})
	}

	want := []summary{
		{Passed: true, Bootstrapped: true},
		{Passed: false, Bootstrapped: false},
		{Passed: true, Bootstrapped: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestGroupByBaseline(t *testing.T) {
	entries := []ManifestEntry{
		{BaselinePath: "a"},
		{BaselinePath: "b"},
		{BaselinePath: "a"},
		{BaselinePath: "c"},
		{BaselinePath: "b"},
	}

	want := [][]int{{0, 2}, {1, 4}, {3}}
	if diff := cmp.Diff(want, groupByBaseline(entries)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name    string
		outputs []ManifestOutput
		want    int
	}{
		{
			name:    "Empty",
			outputs: nil,
			want:    exitPassed,
		},
		{
			name:    "AllPassed",
			outputs: []ManifestOutput{{Result: &compare.Result{Passed: true}}, {Result: &compare.Result{Passed: true}}},
			want:    exitPassed,
		},
		{
			name:    "OneFailed",
			outputs: []ManifestOutput{{Result: &compare.Result{Passed: true}}, {Result: &compare.Result{Passed: false}}},
			want:    exitFailed,
		},
		{
			name:    "EngineErrorWins",
			outputs: []ManifestOutput{{Result: &compare.Result{Passed: false}}, {Error: "boom"}},
			want:    exitEngineError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, exitCode(tt.outputs)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}
