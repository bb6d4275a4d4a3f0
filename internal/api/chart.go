package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/photobooth/internal/httputil"
	"github.com/banshee-data/photobooth/internal/overlay"
)

// trackPoints splits render states into visible and hidden scatter data.
// Values are x, y, width; y grows downwards as on screen.
func trackPoints(states []overlay.RenderState) (visible, hidden []opts.ScatterData) {
	visible = make([]opts.ScatterData, 0, len(states))
	hidden = make([]opts.ScatterData, 0)
	for _, st := range states {
		pt := opts.ScatterData{
			Name:       fmt.Sprintf("%s (%s)", st.TrackID, st.Variant),
			Value:      []interface{}{st.Position.X, st.Position.Y, st.Width},
			SymbolSize: 12,
		}
		if st.Visible {
			visible = append(visible, pt)
		} else {
			hidden = append(hidden, pt)
		}
	}
	return visible, hidden
}

// handleTrackChart renders the current placements of a session as an HTML
// scatter chart. Without ?session= the most recent session is shown.
func (s *Server) handleTrackChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id := r.URL.Query().Get("session")
	if id == "" {
		ids := s.sessions.IDs()
		if len(ids) == 0 {
			httputil.NotFound(w, "no_sessions")
			return
		}
		id = ids[len(ids)-1]
	}
	sess, ok := s.sessions.Peek(id)
	if !ok {
		httputil.NotFound(w, "unknown_session")
		return
	}

	states := sess.Tracker().RenderState()
	metrics := sess.Tracker().Metrics()
	visible, hidden := trackPoints(states)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Overlay Tracks", Theme: "dark", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Overlay Tracks",
			Subtitle: fmt.Sprintf("session=%s frames=%d tracks=%d created=%d removed=%d", sess.ID, metrics.Frames, metrics.ActiveTracks, metrics.TracksCreated, metrics.TracksRemoved),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (px)", NameLocation: "middle", NameGap: 40}),
	)
	scatter.AddSeries("visible", visible)
	scatter.AddSeries("hidden", hidden)

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, "render_failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
