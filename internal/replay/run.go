package replay

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/photobooth/internal/overlay"
)

// FrameResult is the tracker output for one replayed frame.
type FrameResult struct {
	Index int
	// Raw is the unsmoothed anchor of the first usable detection in display
	// space, nil when the frame had none.
	Raw    *overlay.Point
	Truth  *overlay.Point
	States []overlay.RenderState
}

// Result collects a whole replay.
type Result struct {
	Frames  []FrameResult
	Metrics overlay.TrackingMetrics
}

// Run feeds frames through tracker in order.
func Run(tracker *overlay.Tracker, frames []Frame) Result {
	res := Result{Frames: make([]FrameResult, 0, len(frames))}
	for _, f := range frames {
		tracker.Update(f.Detections, f.Geometry)
		res.Frames = append(res.Frames, FrameResult{
			Index:  f.Index,
			Raw:    rawAnchor(f, tracker.Config().MinConfidence),
			Truth:  f.Truth,
			States: tracker.RenderState(),
		})
	}
	res.Metrics = tracker.Metrics()
	return res
}

// rawAnchor mirrors the tracker's anchor choice (eye midpoint, else box
// center) without any filtering beyond confidence.
func rawAnchor(f Frame, minConfidence float64) *overlay.Point {
	if !f.Geometry.Valid() {
		return nil
	}
	for _, d := range f.Detections {
		if d.Confidence < minConfidence {
			continue
		}
		k := d.Keypoints
		if k.RightEye != nil && k.LeftEye != nil {
			p := f.Geometry.ToDisplay(overlay.Point{X: (k.RightEye.X + k.LeftEye.X) / 2, Y: (k.RightEye.Y + k.LeftEye.Y) / 2})
			return &p
		}
		if d.Box != nil {
			p := f.Geometry.ToDisplay(d.Box.Center())
			return &p
		}
	}
	return nil
}

// PrimaryTrack returns the id of the track visible in the most frames.
func (r Result) PrimaryTrack() string {
	counts := map[string]int{}
	best, bestN := "", 0
	for _, fr := range r.Frames {
		for _, st := range fr.States {
			if !st.Visible {
				continue
			}
			counts[st.TrackID]++
			if n := counts[st.TrackID]; n > bestN || (n == bestN && st.TrackID < best) {
				best, bestN = st.TrackID, n
			}
		}
	}
	return best
}

func stateFor(states []overlay.RenderState, id string) (overlay.RenderState, bool) {
	for _, st := range states {
		if st.TrackID == id {
			return st, true
		}
	}
	return overlay.RenderState{}, false
}

// Summary quantifies smoothing quality of a replay.
type Summary struct {
	Frames          int     `json:"frames"`
	TracksCreated   int     `json:"tracks_created"`
	TracksRemoved   int     `json:"tracks_removed"`
	PrimaryTrack    string  `json:"primary_track"`
	VisibleFrames   int     `json:"visible_frames"`
	MaxConcurrent   int     `json:"max_concurrent"`
	RawStepMean     float64 `json:"raw_step_mean_px"`
	RawStepStd      float64 `json:"raw_step_std_px"`
	SmoothStepMean  float64 `json:"smooth_step_mean_px"`
	SmoothStepStd   float64 `json:"smooth_step_std_px"`
	JitterReduction float64 `json:"jitter_reduction"`
}

// Summarize compares frame-to-frame displacement of the raw anchor with
// that of the primary track's smoothed position. Only consecutive frames
// where both are present contribute.
func Summarize(r Result) Summary {
	s := Summary{
		Frames:        len(r.Frames),
		TracksCreated: r.Metrics.TracksCreated,
		TracksRemoved: r.Metrics.TracksRemoved,
		PrimaryTrack:  r.PrimaryTrack(),
	}

	var rawSteps, smoothSteps []float64
	var prevRaw *overlay.Point
	var prevSmooth *overlay.Point
	for _, fr := range r.Frames {
		visible := 0
		for _, st := range fr.States {
			if st.Visible {
				visible++
			}
		}
		s.MaxConcurrent = max(s.MaxConcurrent, visible)

		st, ok := stateFor(fr.States, s.PrimaryTrack)
		if ok && st.Visible {
			s.VisibleFrames++
		}
		var cur *overlay.Point
		if ok {
			p := st.Position
			cur = &p
		}
		if fr.Raw != nil && cur != nil && prevRaw != nil && prevSmooth != nil {
			rawSteps = append(rawSteps, dist(*fr.Raw, *prevRaw))
			smoothSteps = append(smoothSteps, dist(*cur, *prevSmooth))
		}
		prevRaw, prevSmooth = fr.Raw, cur
	}

	if len(rawSteps) > 1 {
		s.RawStepMean, s.RawStepStd = stat.MeanStdDev(rawSteps, nil)
		s.SmoothStepMean, s.SmoothStepStd = stat.MeanStdDev(smoothSteps, nil)
		if s.RawStepStd > 0 {
			s.JitterReduction = 1 - s.SmoothStepStd/s.RawStepStd
		}
	}
	return s
}

func dist(a, b overlay.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
