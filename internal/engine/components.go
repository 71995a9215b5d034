package engine

// component is one 8-connected blob of set pixels in a Bitmap, in
// ROI-local coordinates.
type component struct {
	Pixels []image2DPoint
	Bounds Rect
	Area   int
}

type image2DPoint struct{ X, Y int }

// labelComponents does a flood-fill connected-component pass over mask,
// returning one component per maximal 8-connected region of set pixels.
func labelComponents(mask *Bitmap) []component {
	visited := make([]bool, len(mask.Bits))
	var comps []component
	stack := make([][2]int, 0, 256)

	for y := 0; y < mask.H; y++ {
		for x := 0; x < mask.W; x++ {
			idx := y*mask.W + x
			if !mask.Bits[idx] || visited[idx] {
				continue
			}
			c := component{Bounds: Rect{X0: x, Y0: y, X1: x + 1, Y1: y + 1}}
			stack = stack[:0]
			stack = append(stack, [2]int{x, y})
			visited[idx] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				c.Pixels = append(c.Pixels, image2DPoint{X: p[0], Y: p[1]})
				if p[0] < c.Bounds.X0 {
					c.Bounds.X0 = p[0]
				}
				if p[0]+1 > c.Bounds.X1 {
					c.Bounds.X1 = p[0] + 1
				}
				if p[1] < c.Bounds.Y0 {
					c.Bounds.Y0 = p[1]
				}
				if p[1]+1 > c.Bounds.Y1 {
					c.Bounds.Y1 = p[1] + 1
				}
				for _, d := range neighbors8 {
					nx, ny := p[0]+d[0], p[1]+d[1]
					if nx < 0 || ny < 0 || nx >= mask.W || ny >= mask.H {
						continue
					}
					nidx := ny*mask.W + nx
					if mask.Bits[nidx] && !visited[nidx] {
						visited[nidx] = true
						stack = append(stack, [2]int{nx, ny})
					}
				}
			}
			c.Area = len(c.Pixels)
			comps = append(comps, c)
		}
	}
	return comps
}

// toBitmap rasterizes a single component back onto a fresh Bitmap the size
// of the source mask, for stages (line fit, thickness profile) that need a
// per-candidate mask rather than a pixel list.
func (c component) toBitmap(w, h int) *Bitmap {
	b := newBitmap(w, h)
	for _, p := range c.Pixels {
		b.set(p.X, p.Y, true)
	}
	return b
}

func (c component) centroid() Point {
	if c.Area == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range c.Pixels {
		sx += float64(p.X)
		sy += float64(p.Y)
	}
	return Point{X: sx / float64(c.Area), Y: sy / float64(c.Area)}
}
