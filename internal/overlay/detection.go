package overlay

import (
	"math"
)

// BoundingBox is a face region in source-frame pixels.
type BoundingBox struct {
	XCenter float64 `json:"x_center"`
	YCenter float64 `json:"y_center"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func (b *BoundingBox) usable() bool {
	if b == nil {
		return false
	}
	return b.Width > 0 && b.Height > 0 && b.Center().finite() &&
		!math.IsInf(b.Width, 0) && !math.IsInf(b.Height, 0)
}

// Center returns the box center.
func (b BoundingBox) Center() Point {
	return Point{X: b.XCenter, Y: b.YCenter}
}

// Keypoints are the optional named landmarks reported by the detector.
// Right and left are from the subject's point of view, so on an unmirrored
// frame the right eye has the smaller x.
type Keypoints struct {
	RightEye *Point `json:"right_eye,omitempty"`
	LeftEye  *Point `json:"left_eye,omitempty"`
	RightEar *Point `json:"right_ear,omitempty"`
	LeftEar  *Point `json:"left_ear,omitempty"`
	Nose     *Point `json:"nose,omitempty"`
}

func usable(p *Point) bool {
	return p != nil && p.finite()
}

func (k Keypoints) eyes() (right, left Point, ok bool) {
	if usable(k.RightEye) && usable(k.LeftEye) {
		return *k.RightEye, *k.LeftEye, true
	}
	return Point{}, Point{}, false
}

func (k Keypoints) ears() (right, left Point, ok bool) {
	if usable(k.RightEar) && usable(k.LeftEar) {
		return *k.RightEar, *k.LeftEar, true
	}
	return Point{}, Point{}, false
}

// Detection is one face candidate produced by the external detector for a
// single video frame. Box is nil when the detector reported no region.
// Confidence is in [0,1]; a larger value marks the detection malformed.
type Detection struct {
	Box        *BoundingBox `json:"box,omitempty"`
	Keypoints  Keypoints    `json:"keypoints"`
	Confidence float64      `json:"confidence"`
}

// dropReason records why a detection did not reach association.
type dropReason int

const (
	dropNone dropReason = iota
	dropLowConfidence
	dropUndersized
	dropMalformed
)

// nose marker fallback when eyes are known but neither a nose keypoint nor
// a box is available: below the eye line by this fraction of face width.
const noseBelowEyesFraction = 0.25

// noseBelowCenterFraction places the nose marker below the box center by
// this fraction of box height.
const noseBelowCenterFraction = 0.05

// measurement is a detection reduced to the quantities the tracker
// consumes, in display coordinates.
type measurement struct {
	anchor      Point
	faceWidth   float64
	rotationDeg float64
	nose        Point
}

// measure filters a detection and derives its anchor, sizing width,
// rotation and nose point. Anchor priority: eye midpoint, then the box
// center lifted by AnchorFallbackFraction of its height. Width priority:
// inter-ear, inter-eye, box width.
func measure(d Detection, fm frameMapping, cfg Config) (measurement, dropReason) {
	// Scores live in [0,1]; anything above is a broken detector payload.
	if d.Confidence > 1 {
		return measurement{}, dropMalformed
	}
	if math.IsNaN(d.Confidence) || d.Confidence < cfg.MinConfidence {
		return measurement{}, dropLowConfidence
	}

	rEye, lEye, haveEyes := d.Keypoints.eyes()
	rEar, lEar, haveEars := d.Keypoints.ears()
	haveBox := d.Box.usable()
	if !haveBox && !haveEyes {
		return measurement{}, dropMalformed
	}

	var width float64
	switch {
	case haveEars && rEar.dist(lEar) > 0:
		width = rEar.dist(lEar) * cfg.EarWidthFactor
	case haveEyes && rEye.dist(lEye) > 0:
		width = rEye.dist(lEye) * cfg.EyeWidthFactor
	case haveBox:
		width = d.Box.Width
	default:
		return measurement{}, dropMalformed
	}

	apparentW, apparentH := width, width
	if haveBox {
		apparentW, apparentH = d.Box.Width, d.Box.Height
	}
	if apparentW < cfg.MinFaceSizePx || apparentH < cfg.MinFaceSizePx {
		return measurement{}, dropUndersized
	}

	var anchor Point
	if haveEyes {
		anchor = midpoint(rEye, lEye)
	} else {
		anchor = d.Box.Center().add(Point{Y: -cfg.AnchorFallbackFraction * d.Box.Height})
	}

	var rotation float64
	switch {
	case haveEyes:
		rotation = angleDeg(rEye, lEye)
	case haveEars:
		rotation = angleDeg(rEar, lEar)
	}

	var nose Point
	switch {
	case usable(d.Keypoints.Nose):
		nose = *d.Keypoints.Nose
	case haveBox:
		nose = d.Box.Center().add(Point{Y: noseBelowCenterFraction * d.Box.Height})
	default:
		nose = anchor.add(Point{Y: noseBelowEyesFraction * width})
	}

	return measurement{
		anchor:      fm.toDisplay(anchor),
		faceWidth:   width * fm.scale,
		rotationDeg: rotation,
		nose:        fm.toDisplay(nose),
	}, dropNone
}

// angleDeg returns the direction of the vector from a to b in degrees.
func angleDeg(a, b Point) float64 {
	if a == b {
		return 0
	}
	return math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi
}
