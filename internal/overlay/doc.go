// Package overlay owns the face-anchored decoration tracker.
//
// Responsibilities: filtering per-frame face detections, deriving a stable
// anchor per face, nearest-anchor association, two-frame creation gating,
// miss-count hysteresis (hide, then remove), and exponential smoothing of
// the decoration placement.
// Key types: Detection, FrameGeometry, Tracker, Track, RenderState.
//
// Rendering (including any mirroring transform), HTTP and storage code
// live elsewhere. The tracker only mutates its own state inside Update.
package overlay
