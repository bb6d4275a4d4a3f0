// Package session keeps one overlay tracker per booth browser session and
// evicts sessions that stop sending frames.
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/photobooth/internal/monitoring"
	"github.com/banshee-data/photobooth/internal/overlay"
	"github.com/banshee-data/photobooth/internal/timeutil"
)

// idPrefix marks server-issued session identifiers.
const idPrefix = "sess_"

// Session owns the tracker for one camera feed.
type Session struct {
	ID      string
	Created time.Time

	tracker  *overlay.Tracker
	busy     atomic.Bool
	lastSeen atomic.Int64 // unix nanos
	dropped  atomic.Uint64
}

// Tracker exposes the session's tracker for read-only queries.
func (s *Session) Tracker() *overlay.Tracker { return s.tracker }

// LastSeen returns when the session last submitted a frame.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// DroppedFrames counts frames rejected because a previous frame was still
// being processed.
func (s *Session) DroppedFrames() uint64 { return s.dropped.Load() }

func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

// Process runs one frame through the tracker and returns the resulting
// render states. A frame that arrives while the previous one is still in
// flight is dropped, never queued: dropped is true and states is nil.
func (s *Session) Process(detections []overlay.Detection, geom overlay.FrameGeometry) (states []overlay.RenderState, dropped bool) {
	if !s.busy.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		return nil, true
	}
	defer s.busy.Store(false)

	s.tracker.Update(detections, geom)
	return s.tracker.RenderState(), false
}

// Options configures a Manager.
type Options struct {
	// Tracker builds the tracker config for each new session.
	Tracker func() overlay.Config
	// TrackerOptions are passed to every new tracker.
	TrackerOptions []overlay.Option
	// TTL is the idle time after which a session is evicted.
	TTL time.Duration
	// SweepInterval is how often Run checks for idle sessions. Defaults to TTL/4.
	SweepInterval time.Duration
	Clock         timeutil.Clock
}

// Manager maps session IDs to sessions.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Tracker == nil {
		opts.Tracker = overlay.DefaultConfig
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = opts.TTL / 4
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// NewID returns a fresh session identifier.
func NewID() string {
	return idPrefix + uuid.NewString()
}

// ValidID reports whether id looks like a session identifier the manager
// would accept from a client.
func ValidID(id string) bool {
	rest, ok := strings.CutPrefix(id, idPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

// Get returns the session with the given id and marks it active.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch(m.opts.Clock.Now())
	}
	return s, ok
}

// Peek returns the session without refreshing its idle timer.
func (m *Manager) Peek(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for id, creating it if needed. An empty
// id allocates a new one. Malformed ids are rejected.
func (m *Manager) GetOrCreate(id string) (*Session, error) {
	if id == "" {
		id = NewID()
	} else if !ValidID(id) {
		return nil, fmt.Errorf("invalid session id %q", id)
	}
	if s, ok := m.Get(id); ok {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	now := m.opts.Clock.Now()
	s := &Session{
		ID:      id,
		Created: now,
		tracker: overlay.NewTracker(m.opts.Tracker(), m.opts.TrackerOptions...),
	}
	s.touch(now)
	m.sessions[id] = s
	monitoring.Logf("[session] %s started", id)
	return s, nil
}

// End destroys a session and its tracks.
func (m *Manager) End(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	monitoring.Logf("[session] %s ended", id)
	return true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the live session ids in creation order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Created.Equal(list[j].Created) {
			return list[i].ID < list[j].ID
		}
		return list[i].Created.Before(list[j].Created)
	})
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	return ids
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep() int {
	now := m.opts.Clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > m.opts.TTL {
			delete(m.sessions, id)
			removed++
			monitoring.Logf("[session] %s expired after %s idle", id, now.Sub(s.LastSeen()).Round(time.Second))
		}
	}
	return removed
}

// Run sweeps idle sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := m.opts.Clock.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			m.Sweep()
		}
	}
}
