package image

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func maskFrom(width int, height int, points ...[2]int) []bool {
	mask := make([]bool, width*height)
	for _, p := range points {
		mask[p[1]*width+p[0]] = true
	}
	return mask
}

func TestFindRegions(t *testing.T) {
	type in struct {
		mask   []bool
		width  int
		height int
	}

	type want struct {
		first []Rectangle
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
				maskFrom(5, 5),
				5,
				5,
			},
			want{
				nil,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				maskFrom(5, 5, [2]int{2, 3}),
				5,
				5,
			},
			want{
				[]Rectangle{{X: 2, Y: 3, Width: 1, Height: 1}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				maskFrom(6, 6, [2]int{1, 1}, [2]int{2, 2}, [2]int{3, 3}),
				6,
				6,
			},
			want{
				[]Rectangle{{X: 1, Y: 1, Width: 3, Height: 3}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				maskFrom(40, 40, [2]int{0, 0}, [2]int{39, 39}),
				40,
				40,
			},
			want{
				[]Rectangle{{X: 0, Y: 0, Width: 1, Height: 1}, {X: 39, Y: 39, Width: 1, Height: 1}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				maskFrom(40, 40, [2]int{0, 0}, [2]int{15, 0}),
				40,
				40,
			},
			want{
				[]Rectangle{{X: 0, Y: 0, Width: 16, Height: 1}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				maskFrom(30, 30, [2]int{0, 0}, [2]int{22, 10}, [2]int{10, 22}),
				30,
				30,
			},
			want{
				[]Rectangle{{X: 0, Y: 0, Width: 23, Height: 23}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				make([]bool, 3),
				5,
				5,
			},
			want{
				nil,
			},
		},
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := FindRegions(in.mask, in.width, in.height)
			if diff := cmp.Diff(want.first, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeRectanglesLeavesNoNearPair(t *testing.T) {
	rects := []Rectangle{
		{X: 0, Y: 0, Width: 1, Height: 1},
		{X: 22, Y: 10, Width: 1, Height: 1},
		{X: 10, Y: 22, Width: 1, Height: 1},
		{X: 60, Y: 60, Width: 2, Height: 2},
		{X: 44, Y: 30, Width: 1, Height: 1},
	}

	got := mergeRectangles(rects)
	for i := range got {
		for j := i + 1; j < len(got); j++ {
			if got[i].near(got[j]) {
				t.Errorf("%v and %v are within merge distance but were not merged", got[i], got[j])
			}
		}
	}
}
