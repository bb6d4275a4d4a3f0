package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/banshee-data/photobooth/internal/httputil"
	"github.com/banshee-data/photobooth/internal/overlay"
	"github.com/banshee-data/photobooth/internal/session"
)

// FrameRequest is one frame of detector output from the booth client.
// An empty SessionID starts a new session.
type FrameRequest struct {
	SessionID  string                `json:"session_id"`
	Geometry   overlay.FrameGeometry `json:"geometry"`
	Detections []overlay.Detection   `json:"detections"`
}

// FrameResponse carries the placements to draw for the frame. When Dropped
// is true the previous frame was still being processed and Tracks is empty;
// the client keeps drawing what it had.
type FrameResponse struct {
	SessionID string                `json:"session_id"`
	Dropped   bool                  `json:"dropped"`
	Tracks    []overlay.RenderState `json:"tracks"`
}

// StateResponse is the current render state of a session.
type StateResponse struct {
	SessionID string                `json:"session_id"`
	Tracks    []overlay.RenderState `json:"tracks"`
}

// MetricsResponse reports tracker counters of a session.
type MetricsResponse struct {
	SessionID     string                  `json:"session_id"`
	DroppedFrames uint64                  `json:"dropped_frames"`
	Tracking      overlay.TrackingMetrics `json:"tracking"`
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req FrameRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxFrameBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, "frame_too_large")
			return
		}
		httputil.BadRequest(w, "invalid_json")
		return
	}

	sess, err := s.sessions.GetOrCreate(req.SessionID)
	if err != nil {
		httputil.BadRequest(w, "invalid_session")
		return
	}

	states, dropped := sess.Process(req.Detections, req.Geometry)
	if states == nil {
		states = []overlay.RenderState{}
	}
	httputil.WriteJSONOK(w, FrameResponse{SessionID: sess.ID, Dropped: dropped, Tracks: states})
}

// lookupSession resolves ?session= without refreshing the idle timer.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.URL.Query().Get("session")
	if id == "" {
		httputil.BadRequest(w, "missing_session")
		return nil, false
	}
	sess, ok := s.sessions.Peek(id)
	if !ok {
		httputil.NotFound(w, "unknown_session")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, StateResponse{SessionID: sess.ID, Tracks: sess.Tracker().RenderState()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, MetricsResponse{
		SessionID:     sess.ID,
		DroppedFrames: sess.DroppedFrames(),
		Tracking:      sess.Tracker().Metrics(),
	})
}

// handleEndSession destroys a session when the booth page is closed.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFrameBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		httputil.BadRequest(w, "missing_session")
		return
	}
	if !s.sessions.End(req.SessionID) {
		httputil.NotFound(w, "unknown_session")
		return
	}
	httputil.WriteJSONOK(w, map[string]bool{"ok": true})
}
