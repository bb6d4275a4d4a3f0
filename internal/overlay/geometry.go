package overlay

import "math"

// Point is a 2D position in pixels. Source-frame or display coordinates
// depending on context; y grows downwards.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

func (p Point) distSquared(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

func (p Point) dist(q Point) float64 {
	return math.Sqrt(p.distSquared(q))
}

func (p Point) finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

func midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// FrameGeometry describes the source video and the surface the decoration
// is drawn on. The video is cover-fitted onto the display, so the two may
// have different sizes and aspect ratios.
type FrameGeometry struct {
	VideoWidth    float64 `json:"video_width"`
	VideoHeight   float64 `json:"video_height"`
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
}

// Valid reports whether every dimension is a positive finite number.
func (g FrameGeometry) Valid() bool {
	for _, v := range []float64{g.VideoWidth, g.VideoHeight, g.DisplayWidth, g.DisplayHeight} {
		if !(v > 0) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Scale returns the uniform cover-fit factor from video to display pixels.
func (g FrameGeometry) Scale() float64 {
	return math.Max(g.DisplayWidth/g.VideoWidth, g.DisplayHeight/g.VideoHeight)
}

// Offset returns the centering offset applied after scaling. Components
// are negative on the cropped axis.
func (g FrameGeometry) Offset() Point {
	s := g.Scale()
	return Point{
		X: (g.DisplayWidth - g.VideoWidth*s) / 2,
		Y: (g.DisplayHeight - g.VideoHeight*s) / 2,
	}
}

// Diagonal returns the display diagonal in display pixels. All distance
// thresholds in Config are fractions of this value.
func (g FrameGeometry) Diagonal() float64 {
	return math.Hypot(g.DisplayWidth, g.DisplayHeight)
}

// ToDisplay maps a source-frame point into display coordinates.
func (g FrameGeometry) ToDisplay(p Point) Point {
	return newFrameMapping(g).toDisplay(p)
}

// frameMapping caches the per-frame derived transform so it is computed
// once per Update rather than per detection.
type frameMapping struct {
	scale    float64
	offset   Point
	diagonal float64
}

func newFrameMapping(g FrameGeometry) frameMapping {
	return frameMapping{
		scale:    g.Scale(),
		offset:   g.Offset(),
		diagonal: g.Diagonal(),
	}
}

func (m frameMapping) toDisplay(p Point) Point {
	return Point{X: p.X*m.scale + m.offset.X, Y: p.Y*m.scale + m.offset.Y}
}
