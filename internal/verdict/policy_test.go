package verdict_test

import (
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"snapshot-baseline/internal/verdict"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEvaluate(t *testing.T) {
	type in struct {
		policy verdict.Policy
		count  uint64
		total  uint64
	}

	type want struct {
		first bool
	}

	tests := []struct {
		name string
		in   in
		want want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				verdict.PixelThreshold{Limit: 1},
				1,
				100,
			},
			want{
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				verdict.PixelThreshold{Limit: 0},
				1,
				100,
			},
			want{
				false,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				verdict.PercentThreshold{Limit: 0},
				0,
				100,
			},
			want{
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				verdict.PercentThreshold{Limit: 0},
				100,
				100,
			},
			want{
				false,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				verdict.PercentThreshold{Limit: 0.25},
				25,
				100,
			},
			want{
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				verdict.PercentThreshold{Limit: 0.25},
				26,
				100,
			},
			want{
				false,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				verdict.PercentThreshold{Limit: 0},
				0,
				0,
			},
			want{
				true,
			},
		},
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := verdict.Evaluate(in.policy, in.count, in.total)
			if diff := cmp.Diff(want.first, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvaluateIsMonotonic(t *testing.T) {
	const total = 64

	for count := uint64(0); count <= total; count++ {
		passedBefore := false
		for limit := uint64(0); limit <= total; limit++ {
			passed := verdict.Evaluate(verdict.PixelThreshold{Limit: limit}, count, total)
			if passedBefore && !passed {
				t.Fatalf("pixel limit %d failed after a smaller limit passed for count %d", limit, count)
			}
			passedBefore = passed
		}

		passedBefore = false
		for step := 0; step <= 100; step++ {
			passed := verdict.Evaluate(verdict.PercentThreshold{Limit: float64(step) / 100}, count, total)
			if passedBefore && !passed {
				t.Fatalf("percent limit %d%% failed after a smaller limit passed for count %d", step, count)
			}
			passedBefore = passed
		}
	}
}

func TestRatio(t *testing.T) {
	if diff := cmp.Diff(0.0, verdict.Ratio(0, 0)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1.0, verdict.Ratio(100, 100)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1.0/64.0, verdict.Ratio(1, 64)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestParsePolicy(t *testing.T) {
	type want struct {
		first  verdict.Policy
		second bool
	}

	tests := []struct {
		name string
		in   string
		want want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"pixel:10",
			want{
				verdict.PixelThreshold{Limit: 10},
				false,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			" Percent:0.05 ",
			want{
				verdict.PercentThreshold{Limit: 0.05},
				false,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"percent:1.5",
			want{
				nil,
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"percent:NaN",
			want{
				nil,
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"pixel:-1",
			want{
				nil,
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"ssim:0.9",
			want{
				nil,
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"10",
			want{
				nil,
				true,
			},
		},
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := verdict.ParsePolicy(in)
			if diff := cmp.Diff(want.first, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.second, err != nil); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestPercentThresholdValidate(t *testing.T) {
	for _, limit := range []float64{-0.1, 1.0001, math.NaN(), math.Inf(1)} {
		if err := (verdict.PercentThreshold{Limit: limit}).Validate(); err == nil {
			t.Errorf("expected %v to be rejected", limit)
		}
	}
	for _, limit := range []float64{0, 0.5, 1} {
		if err := (verdict.PercentThreshold{Limit: limit}).Validate(); err != nil {
			t.Errorf("expected %v to be accepted: %v", limit, err)
		}
	}
}

func TestDocument(t *testing.T) {
	for _, policy := range []verdict.Policy{
		verdict.PixelThreshold{Limit: 42},
		verdict.PercentThreshold{Limit: 0.125},
	} {
		data, err := json.Marshal(verdict.ToDocument(policy))
		if err != nil {
			t.Fatal(err)
		}

		var document verdict.Document
		if err := json.Unmarshal(data, &document); err != nil {
			t.Fatal(err)
		}
		got, err := document.Policy()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(policy, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	}

	var document verdict.Document
	if err := json.Unmarshal([]byte(`{"kind":"percent"}`), &document); err != nil {
		t.Fatal(err)
	}
	if _, err := document.Policy(); err == nil {
		t.Errorf("expected a missing limit to be rejected")
	}
}
