package replay

import (
	"math"
	"math/rand/v2"

	"github.com/banshee-data/photobooth/internal/overlay"
)

// SynthOptions shapes a synthetic detection log: one face drifting on a
// slow sinusoidal path with per-keypoint noise.
type SynthOptions struct {
	Frames   int
	Geometry overlay.FrameGeometry
	Seed     uint64

	// JitterPx is the standard deviation of keypoint noise in source pixels.
	JitterPx float64
	// DropoutEvery removes the face from every Nth frame. 0 disables.
	DropoutEvery int
	// FalsePositiveAt adds a one-frame spurious face at this index. -1 disables.
	FalsePositiveAt int
	// RollDeg is the amplitude of the head roll.
	RollDeg float64
}

// DefaultSynthOptions is a 10 s, 30 fps session on a 720p camera.
func DefaultSynthOptions() SynthOptions {
	return SynthOptions{
		Frames:          300,
		Geometry:        overlay.FrameGeometry{VideoWidth: 1280, VideoHeight: 720, DisplayWidth: 1280, DisplayHeight: 720},
		Seed:            1,
		JitterPx:        4,
		DropoutEvery:    15,
		FalsePositiveAt: 40,
		RollDeg:         12,
	}
}

const (
	synthEyeHalfSpan = 40.0
	synthPeriod      = 240.0
)

// synthAnchor is the noiseless eye midpoint at frame i in source pixels.
func synthAnchor(g overlay.FrameGeometry, i int) overlay.Point {
	phase := 2 * math.Pi * float64(i) / synthPeriod
	return overlay.Point{
		X: g.VideoWidth/2 + 0.15*g.VideoWidth*math.Sin(phase),
		Y: g.VideoHeight*0.4 + 0.05*g.VideoHeight*math.Sin(2*phase),
	}
}

// Synthesize produces a deterministic detection log for opts.
func Synthesize(opts SynthOptions) []Frame {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	noise := func() float64 { return rng.NormFloat64() * opts.JitterPx }
	jitter := func(p overlay.Point) *overlay.Point {
		return &overlay.Point{X: p.X + noise(), Y: p.Y + noise()}
	}

	frames := make([]Frame, 0, opts.Frames)
	for i := 0; i < opts.Frames; i++ {
		f := Frame{Index: i, Geometry: opts.Geometry, Detections: []overlay.Detection{}}

		anchor := synthAnchor(opts.Geometry, i)
		truth := opts.Geometry.ToDisplay(anchor)
		f.Truth = &truth

		dropped := opts.DropoutEvery > 0 && i%opts.DropoutEvery == opts.DropoutEvery-1
		if !dropped {
			roll := opts.RollDeg * math.Sin(2*math.Pi*float64(i)/(synthPeriod/2)) * math.Pi / 180
			dx, dy := synthEyeHalfSpan*math.Cos(roll), synthEyeHalfSpan*math.Sin(roll)
			f.Detections = append(f.Detections, overlay.Detection{
				Box: &overlay.BoundingBox{
					XCenter: anchor.X + noise(),
					YCenter: anchor.Y + 30 + noise(),
					Width:   200,
					Height:  240,
				},
				Keypoints: overlay.Keypoints{
					RightEye: jitter(overlay.Point{X: anchor.X - dx, Y: anchor.Y - dy}),
					LeftEye:  jitter(overlay.Point{X: anchor.X + dx, Y: anchor.Y + dy}),
					Nose:     jitter(overlay.Point{X: anchor.X, Y: anchor.Y + 45}),
				},
				Confidence: 0.85 + 0.1*rng.Float64(),
			})
		}

		if i == opts.FalsePositiveAt {
			// Opposite side of the frame from the real face.
			x := opts.Geometry.VideoWidth - anchor.X
			if math.Abs(x-anchor.X) < opts.Geometry.VideoWidth/4 {
				x = opts.Geometry.VideoWidth * 0.1
			}
			f.Detections = append(f.Detections, overlay.Detection{
				Box:        &overlay.BoundingBox{XCenter: x, YCenter: opts.Geometry.VideoHeight * 0.7, Width: 120, Height: 120},
				Confidence: 0.75,
			})
		}
		frames = append(frames, f)
	}
	return frames
}
