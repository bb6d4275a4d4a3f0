package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/photobooth/internal/monitoring"
	"github.com/banshee-data/photobooth/internal/overlay"
	"github.com/banshee-data/photobooth/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

var testGeom = overlay.FrameGeometry{VideoWidth: 1280, VideoHeight: 720, DisplayWidth: 1280, DisplayHeight: 720}

func face(x, y float64) overlay.Detection {
	return overlay.Detection{
		Box:        &overlay.BoundingBox{XCenter: x, YCenter: y + 20, Width: 200, Height: 240},
		Confidence: 0.95,
		Keypoints: overlay.Keypoints{
			RightEye: &overlay.Point{X: x - 40, Y: y},
			LeftEye:  &overlay.Point{X: x + 40, Y: y},
		},
	}
}

func newTestManager(clock timeutil.Clock) *Manager {
	return NewManager(Options{
		TTL:            time.Minute,
		SweepInterval:  10 * time.Second,
		Clock:          clock,
		TrackerOptions: []overlay.Option{overlay.WithVariantChooser(overlay.FixedVariant(overlay.VariantHat))},
	})
}

func TestGetOrCreate(t *testing.T) {
	m := newTestManager(timeutil.NewMockClock(time.Unix(1000, 0)))

	s, err := m.GetOrCreate("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.ID, "sess_"))
	assert.True(t, ValidID(s.ID))

	again, err := m.GetOrCreate(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, 1, m.Len())

	_, err = m.GetOrCreate("../../etc/passwd")
	assert.Error(t, err)
	assert.Equal(t, 1, m.Len())

	got, ok := m.Get(s.ID)
	assert.True(t, ok)
	assert.Same(t, s, got)

	_, ok = m.Get(NewID())
	assert.False(t, ok)
}

func TestSessionsAreIsolated(t *testing.T) {
	m := newTestManager(timeutil.NewMockClock(time.Unix(1000, 0)))
	a, err := m.GetOrCreate(NewID())
	require.NoError(t, err)
	b, err := m.GetOrCreate(NewID())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, dropped := a.Process([]overlay.Detection{face(400, 300)}, testGeom)
		require.False(t, dropped)
	}
	states, dropped := b.Process(nil, testGeom)
	assert.False(t, dropped)
	assert.Empty(t, states)
	assert.Len(t, a.Tracker().RenderState(), 1)
}

func TestProcessDropsWhileBusy(t *testing.T) {
	m := newTestManager(timeutil.NewMockClock(time.Unix(1000, 0)))
	s, err := m.GetOrCreate("")
	require.NoError(t, err)

	s.busy.Store(true)
	states, dropped := s.Process([]overlay.Detection{face(400, 300)}, testGeom)
	assert.True(t, dropped)
	assert.Nil(t, states)
	assert.Equal(t, uint64(1), s.DroppedFrames())
	assert.Equal(t, uint64(0), s.Tracker().Metrics().Frames, "dropped frame must not reach the tracker")

	s.busy.Store(false)
	_, dropped = s.Process([]overlay.Detection{face(400, 300)}, testGeom)
	assert.False(t, dropped)
	assert.Equal(t, uint64(1), s.Tracker().Metrics().Frames)
}

func TestProcessConcurrent(t *testing.T) {
	m := newTestManager(timeutil.RealClock{})
	s, err := m.GetOrCreate("")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	processed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, dropped := s.Process([]overlay.Detection{face(400, 300)}, testGeom); !dropped {
				mu.Lock()
				processed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(processed), s.Tracker().Metrics().Frames)
	assert.Equal(t, uint64(50-processed), s.DroppedFrames())
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	m := newTestManager(clock)

	idle, err := m.GetOrCreate("")
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	active, err := m.GetOrCreate("")
	require.NoError(t, err)

	clock.Advance(40 * time.Second)
	assert.Equal(t, 1, m.Sweep())

	_, ok := m.Peek(idle.ID)
	assert.False(t, ok)
	_, ok = m.Peek(active.ID)
	assert.True(t, ok)
}

func TestGetRefreshesIdleTimer(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	m := newTestManager(clock)
	s, err := m.GetOrCreate("")
	require.NoError(t, err)

	clock.Advance(50 * time.Second)
	_, ok := m.Get(s.ID)
	require.True(t, ok)
	clock.Advance(50 * time.Second)

	assert.Equal(t, 0, m.Sweep())
	assert.Equal(t, clock.Now().Add(-50*time.Second), s.LastSeen())
}

func TestRunSweepsOnTicks(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	m := newTestManager(clock)
	_, err := m.GetOrCreate("")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		clock.Advance(10 * time.Second)
		return m.Len() == 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEndAndIDs(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	m := newTestManager(clock)
	first, _ := m.GetOrCreate("")
	clock.Advance(time.Second)
	second, _ := m.GetOrCreate("")

	assert.Equal(t, []string{first.ID, second.ID}, m.IDs())
	assert.True(t, m.End(first.ID))
	assert.False(t, m.End(first.ID))
	assert.Equal(t, []string{second.ID}, m.IDs())
}
