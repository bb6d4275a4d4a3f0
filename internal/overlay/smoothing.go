package overlay

import "math"

// ema blends target into current. alpha is the weight of the new value,
// so higher alpha is more responsive.
func ema(current, target, alpha float64) float64 {
	return (1-alpha)*current + alpha*target
}

func emaPoint(current, target Point, alpha float64) Point {
	return Point{X: ema(current.X, target.X, alpha), Y: ema(current.Y, target.Y, alpha)}
}

// wrapDegrees normalises an angle into (-180, 180].
func wrapDegrees(d float64) float64 {
	d = math.Mod(d+180, 360)
	if d < 0 {
		d += 360
	}
	d -= 180
	if d == -180 {
		return 180
	}
	return d
}

// smoothAngle moves current toward target along the shortest arc. The
// raw delta is clamped to maxStep degrees before blending, so a target
// flipping through ±180° can never produce a step larger than maxStep.
func smoothAngle(current, target, alpha, maxStep float64) float64 {
	delta := wrapDegrees(target - current)
	if maxStep > 0 {
		delta = math.Max(-maxStep, math.Min(maxStep, delta))
	}
	return wrapDegrees(current + alpha*delta)
}
