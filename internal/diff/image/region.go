package image

type Rectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// regionMergeDistance is the gap in pixels below which two regions are reported as one.
const regionMergeDistance = 10

// FindRegions groups 8-connected changed pixels of mask into bounding boxes,
// merging boxes that overlap or lie within regionMergeDistance of each other.
func FindRegions(mask []bool, width int, height int) []Rectangle {
	if width <= 0 || height <= 0 || len(mask) < width*height {
		return nil
	}

	visited := make([]bool, width*height)

	var rectangles []Rectangle
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask[y*width+x] && !visited[y*width+x] {
				rectangles = append(rectangles, findBoundingBox(mask, visited, x, y, width, height))
			}
		}
	}

	return mergeRectangles(rectangles)
}

func findBoundingBox(mask []bool, visited []bool, startX int, startY int, width int, height int) Rectangle {
	minX := startX
	minY := startY
	maxX := startX
	maxY := startY

	type point struct {
		x int
		y int
	}

	queue := []point{{startX, startY}}
	visited[startY*width+startX] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		minX = min(minX, current.x)
		maxX = max(maxX, current.x)
		minY = min(minY, current.y)
		maxY = max(maxY, current.y)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}

				nx := current.x + dx
				ny := current.y + dy
				if nx >= 0 && nx < width && ny >= 0 && ny < height &&
					mask[ny*width+nx] && !visited[ny*width+nx] {
					visited[ny*width+nx] = true
					queue = append(queue, point{nx, ny})
				}
			}
		}
	}

	return Rectangle{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX + 1,
		Height: maxY - minY + 1,
	}
}

// mergeRectangles repeats until no pair is near another, since a union can
// grow towards a box that was already checked.
func mergeRectangles(rects []Rectangle) []Rectangle {
	if len(rects) <= 1 {
		return rects
	}

	merged := append([]Rectangle(nil), rects...)
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(merged); i++ {
			for j := i + 1; j < len(merged); j++ {
				if !merged[i].near(merged[j]) {
					continue
				}
				merged[i] = merged[i].union(merged[j])
				merged = append(merged[:j], merged[j+1:]...)
				changed = true
				j = i
			}
		}
	}

	return merged
}

func (r Rectangle) near(other Rectangle) bool {
	return r.overlaps(other) || r.expand(regionMergeDistance).overlaps(other.expand(regionMergeDistance))
}

func (r Rectangle) overlaps(other Rectangle) bool {
	return !(r.X+r.Width <= other.X || other.X+other.Width <= r.X ||
		r.Y+r.Height <= other.Y || other.Y+other.Height <= r.Y)
}

func (r Rectangle) expand(by int) Rectangle {
	return Rectangle{
		X:      r.X - by,
		Y:      r.Y - by,
		Width:  r.Width + 2*by,
		Height: r.Height + 2*by,
	}
}

func (r Rectangle) union(other Rectangle) Rectangle {
	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.X+r.Width, other.X+other.Width)
	maxY := max(r.Y+r.Height, other.Y+other.Height)

	return Rectangle{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}
