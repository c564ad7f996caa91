package segment

import (
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/models"
)

// mask is a binary motion mask in row-major order
type mask struct {
	w, h int
	bits []bool
}

type region struct {
	box  models.BoundingBox
	area float64
}

func newMask(w, h int) *mask {
	return &mask{w: w, h: h, bits: make([]bool, w*h)}
}

// dilate applies a 3x3 rectangular dilation the given number of times.
// Pixels outside the mask never contribute.
func (m *mask) dilate(iterations int) *mask {
	cur := m
	for i := 0; i < iterations; i++ {
		horiz := newMask(cur.w, cur.h)
		for y := 0; y < cur.h; y++ {
			row := y * cur.w
			for x := 0; x < cur.w; x++ {
				if cur.bits[row+x] ||
					(x > 0 && cur.bits[row+x-1]) ||
					(x < cur.w-1 && cur.bits[row+x+1]) {
					horiz.bits[row+x] = true
				}
			}
		}

		next := newMask(cur.w, cur.h)
		for y := 0; y < cur.h; y++ {
			for x := 0; x < cur.w; x++ {
				i := y*cur.w + x
				if horiz.bits[i] ||
					(y > 0 && horiz.bits[i-cur.w]) ||
					(y < cur.h-1 && horiz.bits[i+cur.w]) {
					next.bits[i] = true
				}
			}
		}
		cur = next
	}
	return cur
}

// outside marks background pixels 4-connected to the frame border. Anything
// else is either foreground or a hole enclosed by foreground.
func (m *mask) outside() []bool {
	out := make([]bool, len(m.bits))
	queue := make([]int, 0, 2*(m.w+m.h))

	push := func(i int) {
		if !m.bits[i] && !out[i] {
			out[i] = true
			queue = append(queue, i)
		}
	}

	for x := 0; x < m.w; x++ {
		push(x)
		push((m.h-1)*m.w + x)
	}
	for y := 0; y < m.h; y++ {
		push(y * m.w)
		push(y*m.w + m.w - 1)
	}

	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		x, y := i%m.w, i/m.w
		if x > 0 {
			push(i - 1)
		}
		if x < m.w-1 {
			push(i + 1)
		}
		if y > 0 {
			push(i - m.w)
		}
		if y < m.h-1 {
			push(i + m.w)
		}
	}
	return out
}

// regions returns one region per external contour: 8-connected foreground
// components with their holes filled, in raster order of their first pixel.
// Area is that of the polygon through the centres of the boundary pixels:
// by Pick's theorem filled - boundary/2 - 1, floored at zero.
func (m *mask) regions() []region {
	out := m.outside()
	seen := make([]bool, len(m.bits))
	var regions []region
	var stack []int

	for start := range m.bits {
		if out[start] || seen[start] {
			continue
		}

		minX, minY := m.w, m.h
		maxX, maxY := -1, -1
		filled, boundary := 0, 0

		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			filled++

			x, y := i%m.w, i/m.w
			if m.onBoundary(out, x, y) {
				boundary++
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)

			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= m.h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= m.w || (dx == 0 && dy == 0) {
						continue
					}
					j := ny*m.w + nx
					if !out[j] && !seen[j] {
						seen[j] = true
						stack = append(stack, j)
					}
				}
			}
		}

		regions = append(regions, region{
			box: models.BoundingBox{
				X:      minX,
				Y:      minY,
				Width:  maxX - minX + 1,
				Height: maxY - minY + 1,
			},
			area: max(0, float64(filled)-float64(boundary)/2-1),
		})
	}
	return regions
}

// onBoundary reports whether a region pixel touches the outside background
// or the frame edge through one of its 4 neighbours
func (m *mask) onBoundary(out []bool, x, y int) bool {
	if x == 0 || y == 0 || x == m.w-1 || y == m.h-1 {
		return true
	}
	i := y*m.w + x
	return out[i-1] || out[i+1] || out[i-m.w] || out[i+m.w]
}
