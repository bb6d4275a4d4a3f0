package overlay

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/banshee-data/photobooth/internal/config"
	"github.com/banshee-data/photobooth/internal/monitoring"
	"github.com/google/uuid"
)

// Config holds the tracker tuning. Distance thresholds are fractions of
// the display diagonal so behaviour is independent of screen size.
type Config struct {
	MaxTrackedFaces int // Live track cap; 1 reduces the tracker to single-face mode

	MinConfidence          float64 // Detections below this score are noise
	MinFaceSizePx          float64 // Minimum apparent face width and height (source px)
	AnchorFallbackFraction float64 // Upward shift of the box center, as a fraction of box height
	EarWidthFactor         float64 // Face width = inter-ear distance × factor
	EyeWidthFactor         float64 // Face width = inter-eye distance × factor

	DedupFraction   float64 // Same-frame duplicates within this fraction collapse
	MatchFraction   float64 // Track association gate
	PendingFraction float64 // Creation gate between consecutive frames

	CreateAfterFrames int // Consecutive sightings before a track is born
	HideAfterMisses   int // Track hidden once MissCount reaches this
	RemoveAfterMisses int // Track removed once MissCount exceeds this

	PositionAlpha      float64 // EMA weight of new position targets
	SizeAlpha          float64 // EMA weight of new width targets
	RotationAlpha      float64 // EMA weight of new rotation targets
	MaxRotationStepDeg float64 // Rotation delta clamp applied before blending

	BrowLiftFraction float64 // Accessory base above the anchor, × face width
	NoseSizeFraction float64 // Nose marker diameter, × face width
	MinNoseSizePx    float64 // Nose marker floor (display px)
}

// DefaultConfig returns the built-in tuning without reading any file.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MaxTrackedFaces:        cfg.GetMaxTrackedFaces(),
		MinConfidence:          cfg.GetMinConfidence(),
		MinFaceSizePx:          cfg.GetMinFaceSizePx(),
		AnchorFallbackFraction: cfg.GetAnchorFallbackFraction(),
		EarWidthFactor:         cfg.GetEarWidthFactor(),
		EyeWidthFactor:         cfg.GetEyeWidthFactor(),
		DedupFraction:          cfg.GetDedupFraction(),
		MatchFraction:          cfg.GetMatchFraction(),
		PendingFraction:        cfg.GetPendingFraction(),
		CreateAfterFrames:      cfg.GetCreateAfterFrames(),
		HideAfterMisses:        cfg.GetHideAfterMisses(),
		RemoveAfterMisses:      cfg.GetRemoveAfterMisses(),
		PositionAlpha:          cfg.GetPositionAlpha(),
		SizeAlpha:              cfg.GetSizeAlpha(),
		RotationAlpha:          cfg.GetRotationAlpha(),
		MaxRotationStepDeg:     cfg.GetMaxRotationStepDeg(),
		BrowLiftFraction:       cfg.GetBrowLiftFraction(),
		NoseSizeFraction:       cfg.GetNoseSizeFraction(),
		MinNoseSizePx:          cfg.GetMinNoseSizePx(),
	}
}

// Marker is a round secondary decoration (the antler variant's nose).
type Marker struct {
	Position Point   `json:"position"`
	Size     float64 `json:"size"`
}

// Placement is where and how a decoration is drawn, in display space.
// Position is the bottom-center of the accessory.
type Placement struct {
	Position    Point   `json:"position"`
	Width       float64 `json:"width"`
	RotationDeg float64 `json:"rotation_deg"`
	Nose        *Marker `json:"nose,omitempty"`
}

func (p Placement) clone() Placement {
	if p.Nose != nil {
		n := *p.Nose
		p.Nose = &n
	}
	return p
}

// Track is the persistent state of one tracked face.
type Track struct {
	ID        string
	Variant   Variant
	Smoothed  Placement
	MissCount int // Consecutive frames without a matching detection
	Hits      int // Frames matched over the track's lifetime

	FirstFrame    uint64
	LastSeenFrame uint64

	anchor  Point // anchor of the last matched detection, display space
	matched bool
	seq     uint64
}

// RenderState is the read-only view of a track handed to renderers.
type RenderState struct {
	TrackID string  `json:"track_id"`
	Variant Variant `json:"variant"`
	Visible bool    `json:"visible"`
	Placement
}

// DropCounts tallies detections rejected before association.
type DropCounts struct {
	LowConfidence int `json:"low_confidence"`
	Undersized    int `json:"undersized"`
	Malformed     int `json:"malformed"`
	Duplicate     int `json:"duplicate"`
}

// TrackingMetrics summarises tracker activity since the last Reset.
type TrackingMetrics struct {
	Frames        uint64     `json:"frames"`
	ActiveTracks  int        `json:"active_tracks"`
	VisibleTracks int        `json:"visible_tracks"`
	TracksCreated int        `json:"tracks_created"`
	TracksRemoved int        `json:"tracks_removed"`
	PendingFrames int        `json:"pending_frames"`
	Dropped       DropCounts `json:"dropped"`
}

// candidate is the single pending-creation slot.
type candidate struct {
	anchor Point
	frames int
}

// Tracker turns noisy per-frame face detections into stable decoration
// placements. All mutation happens inside Update.
type Tracker struct {
	cfg Config

	tracks  map[string]*Track
	pending *candidate
	chooser VariantChooser

	frame   uint64
	nextSeq uint64

	tracksCreated int
	tracksRemoved int
	dropped       DropCounts

	mu sync.RWMutex
}

// Option customises a Tracker at construction.
type Option func(*Tracker)

// WithVariantChooser injects the decoration picker used at track creation.
func WithVariantChooser(c VariantChooser) Option {
	return func(t *Tracker) {
		if c != nil {
			t.chooser = c
		}
	}
}

// NewTracker creates a tracker with the given configuration.
func NewTracker(cfg Config, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:     cfg,
		tracks:  make(map[string]*Track),
		chooser: RandomVariant(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Config returns a copy of the current configuration.
func (t *Tracker) Config() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// UpdateConfig applies fn to the configuration under the tracker lock.
func (t *Tracker) UpdateConfig(fn func(*Config)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.cfg)
}

// Reset drops every track, the pending candidate and all counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = make(map[string]*Track)
	t.pending = nil
	t.frame = 0
	t.tracksCreated = 0
	t.tracksRemoved = 0
	t.dropped = DropCounts{}
}

// Update processes one frame of detections. It never fails: unusable
// detections are dropped for this frame only, and an invalid geometry is
// treated as a frame with no detections so existing tracks age normally.
func (t *Tracker) Update(detections []Detection, geom FrameGeometry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frame++
	for _, track := range t.tracks {
		track.matched = false
	}

	// Step 1: filter and measure, then collapse same-frame duplicates
	var meas []measurement
	var diag float64
	if geom.Valid() {
		fm := newFrameMapping(geom)
		diag = fm.diagonal
		meas = t.measureAll(detections, fm)
		meas = t.dedup(meas, diag)
	}

	// Step 2: associate measurements to tracks
	associations := t.associate(meas, diag)

	// Step 3: blend matched measurements into their tracks
	for mi, trackID := range associations {
		if trackID != "" {
			t.updateTrack(t.tracks[trackID], meas[mi])
		}
	}

	// Step 4: age unmatched tracks, removing those past the ceiling
	for id, track := range t.tracks {
		if track.matched {
			continue
		}
		track.MissCount++
		if track.MissCount > t.cfg.RemoveAfterMisses {
			delete(t.tracks, id)
			t.tracksRemoved++
			monitoring.Debugf("[overlay] track %s removed after %d misses", id, track.MissCount)
		}
	}

	// Step 5: gate unassociated measurements into new tracks
	t.advancePending(meas, associations, diag)
}

func (t *Tracker) measureAll(detections []Detection, fm frameMapping) []measurement {
	out := make([]measurement, 0, len(detections))
	for _, d := range detections {
		m, reason := measure(d, fm, t.cfg)
		switch reason {
		case dropNone:
			out = append(out, m)
		case dropLowConfidence:
			t.dropped.LowConfidence++
		case dropUndersized:
			t.dropped.Undersized++
		case dropMalformed:
			t.dropped.Malformed++
		}
	}
	return out
}

// dedup keeps the first of any measurements whose anchors lie within
// DedupFraction of the diagonal of an already kept one.
func (t *Tracker) dedup(meas []measurement, diag float64) []measurement {
	gate := sq(t.cfg.DedupFraction * diag)
	kept := meas[:0]
	for _, m := range meas {
		dup := false
		for _, k := range kept {
			if m.anchor.distSquared(k.anchor) <= gate {
				dup = true
				break
			}
		}
		if dup {
			t.dropped.Duplicate++
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// associate pairs measurements with tracks by nearest anchor inside the
// MatchFraction gate. Candidate pairs are resolved in ascending distance
// order so each track and each measurement is used at most once.
// Returns a slice indexed by measurement: the matched track ID or "".
func (t *Tracker) associate(meas []measurement, diag float64) []string {
	associations := make([]string, len(meas))
	if len(meas) == 0 || len(t.tracks) == 0 {
		return associations
	}

	type pair struct {
		mi    int
		track *Track
		d2    float64
	}
	gate := sq(t.cfg.MatchFraction * diag)
	pairs := make([]pair, 0, len(meas))
	for mi, m := range meas {
		for _, track := range t.tracks {
			if d2 := m.anchor.distSquared(track.anchor); d2 <= gate {
				pairs = append(pairs, pair{mi: mi, track: track, d2: d2})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].d2 != pairs[j].d2 {
			return pairs[i].d2 < pairs[j].d2
		}
		if pairs[i].mi != pairs[j].mi {
			return pairs[i].mi < pairs[j].mi
		}
		return pairs[i].track.seq < pairs[j].track.seq
	})

	for _, p := range pairs {
		if associations[p.mi] != "" || p.track.matched {
			continue
		}
		associations[p.mi] = p.track.ID
		p.track.matched = true
	}
	return associations
}

// advancePending runs the creation gate. The single pending slot advances
// when an unassociated measurement lands within PendingFraction of it and
// is replaced otherwise. A frame without unassociated measurements clears
// it, so only consecutive sightings count.
func (t *Tracker) advancePending(meas []measurement, associations []string, diag float64) {
	var unmatched []measurement
	for mi, trackID := range associations {
		if trackID == "" {
			unmatched = append(unmatched, meas[mi])
		}
	}
	if len(unmatched) == 0 || !t.hasRoom() {
		t.pending = nil
		return
	}

	if t.pending != nil {
		gate := sq(t.cfg.PendingFraction * diag)
		for _, m := range unmatched {
			if m.anchor.distSquared(t.pending.anchor) <= gate {
				t.pending.frames++
				t.pending.anchor = m.anchor
				if t.pending.frames >= t.cfg.CreateAfterFrames {
					t.evictHidden()
					t.createTrack(m)
					t.pending = nil
				}
				return
			}
		}
	}

	t.pending = &candidate{anchor: unmatched[0].anchor, frames: 1}
	if t.cfg.CreateAfterFrames <= 1 {
		t.evictHidden()
		t.createTrack(unmatched[0])
		t.pending = nil
	}
}

// hasRoom reports whether a new track may be born. A full tracker still
// has room when one of its tracks is hidden: that track gives way to the
// new face.
func (t *Tracker) hasRoom() bool {
	if len(t.tracks) < t.maxTracks() {
		return true
	}
	for _, track := range t.tracks {
		if !t.visible(track) {
			return true
		}
	}
	return false
}

// evictHidden frees a slot at capacity by removing the hidden track with
// the most misses, the older one on a tie.
func (t *Tracker) evictHidden() {
	if len(t.tracks) < t.maxTracks() {
		return
	}
	var victim *Track
	for _, track := range t.tracks {
		if t.visible(track) {
			continue
		}
		if victim == nil || track.MissCount > victim.MissCount ||
			(track.MissCount == victim.MissCount && track.seq < victim.seq) {
			victim = track
		}
	}
	if victim == nil {
		return
	}
	delete(t.tracks, victim.ID)
	t.tracksRemoved++
	monitoring.Debugf("[overlay] track %s evicted for a new face after %d misses", victim.ID, victim.MissCount)
}

func (t *Tracker) maxTracks() int {
	if t.cfg.MaxTrackedFaces < 1 {
		return 1
	}
	return t.cfg.MaxTrackedFaces
}

// createTrack initialises a track directly from the measurement's target;
// this is the only unsmoothed assignment a placement ever receives.
func (t *Tracker) createTrack(m measurement) *Track {
	variant := t.chooser.Choose()
	if variant != VariantAntler && variant != VariantHat {
		variant = VariantHat
	}
	t.nextSeq++
	track := &Track{
		ID:            fmt.Sprintf("trk_%s", uuid.NewString()),
		Variant:       variant,
		Hits:          1,
		FirstFrame:    t.frame,
		LastSeenFrame: t.frame,
		anchor:        m.anchor,
		matched:       true,
		seq:           t.nextSeq,
	}
	track.Smoothed = t.target(variant, m)
	t.tracks[track.ID] = track
	t.tracksCreated++
	monitoring.Debugf("[overlay] track %s created variant=%s frame=%d", track.ID, variant, t.frame)
	return track
}

func (t *Tracker) updateTrack(track *Track, m measurement) {
	target := t.target(track.Variant, m)
	s := &track.Smoothed
	s.Position = emaPoint(s.Position, target.Position, t.cfg.PositionAlpha)
	s.Width = ema(s.Width, target.Width, t.cfg.SizeAlpha)
	s.RotationDeg = smoothAngle(s.RotationDeg, target.RotationDeg, t.cfg.RotationAlpha, t.cfg.MaxRotationStepDeg)
	if target.Nose != nil {
		if s.Nose == nil {
			s.Nose = target.Nose
		} else {
			s.Nose.Position = emaPoint(s.Nose.Position, target.Nose.Position, t.cfg.PositionAlpha)
			s.Nose.Size = ema(s.Nose.Size, target.Nose.Size, t.cfg.SizeAlpha)
		}
	}

	track.anchor = m.anchor
	track.MissCount = 0
	track.Hits++
	track.LastSeenFrame = t.frame
}

// target computes the unsmoothed placement for a measurement. The
// accessory base sits above the anchor along the face's up direction,
// which is perpendicular to the eye line.
func (t *Tracker) target(v Variant, m measurement) Placement {
	rad := m.rotationDeg * math.Pi / 180
	lift := t.cfg.BrowLiftFraction * m.faceWidth
	p := Placement{
		Position: Point{
			X: m.anchor.X + math.Sin(rad)*lift,
			Y: m.anchor.Y - math.Cos(rad)*lift,
		},
		Width:       m.faceWidth * v.HeadScale(),
		RotationDeg: wrapDegrees(m.rotationDeg),
	}
	if v.HasNose() {
		p.Nose = &Marker{
			Position: m.nose,
			Size:     math.Max(t.cfg.MinNoseSizePx, t.cfg.NoseSizeFraction*m.faceWidth),
		}
	}
	return p
}

// visible reports whether a track should be drawn this frame.
func (t *Tracker) visible(track *Track) bool {
	return track.MissCount < t.cfg.HideAfterMisses
}

// RenderState returns a snapshot of every live track in creation order.
// Hidden tracks are included with Visible=false until they are removed.
func (t *Tracker) RenderState() []RenderState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tracks := t.sortedTracks()
	out := make([]RenderState, 0, len(tracks))
	for _, track := range tracks {
		out = append(out, RenderState{
			TrackID:   track.ID,
			Variant:   track.Variant,
			Visible:   t.visible(track),
			Placement: track.Smoothed.clone(),
		})
	}
	return out
}

// Tracks returns copies of all live tracks in creation order.
func (t *Tracker) Tracks() []Track {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tracks := t.sortedTracks()
	out := make([]Track, 0, len(tracks))
	for _, track := range tracks {
		c := *track
		c.Smoothed = track.Smoothed.clone()
		out = append(out, c)
	}
	return out
}

// Metrics returns aggregate counters since the last Reset.
func (t *Tracker) Metrics() TrackingMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := TrackingMetrics{
		Frames:        t.frame,
		ActiveTracks:  len(t.tracks),
		TracksCreated: t.tracksCreated,
		TracksRemoved: t.tracksRemoved,
		Dropped:       t.dropped,
	}
	for _, track := range t.tracks {
		if t.visible(track) {
			m.VisibleTracks++
		}
	}
	if t.pending != nil {
		m.PendingFrames = t.pending.frames
	}
	return m
}

func (t *Tracker) sortedTracks() []*Track {
	tracks := make([]*Track, 0, len(t.tracks))
	for _, track := range t.tracks {
		tracks = append(tracks, track)
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].seq < tracks[j].seq })
	return tracks
}

func sq(v float64) float64 { return v * v }
