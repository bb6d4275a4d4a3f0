package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapDegrees(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{-180, 180},
		{190, -170},
		{-190, 170},
		{360, 0},
		{-340, 20},
		{725, 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, wrapDegrees(tt.in), 1e-9, "wrapDegrees(%v)", tt.in)
	}
}

func TestSmoothAngle(t *testing.T) {
	t.Parallel()

	t.Run("small delta is a plain EMA", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 10+0.12*5, smoothAngle(10, 15, 0.12, 7), 1e-12)
	})

	t.Run("large delta is clamped before blending", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 0.12*7, smoothAngle(0, 90, 0.12, 7), 1e-12)
		assert.InDelta(t, -0.12*7, smoothAngle(0, -90, 0.12, 7), 1e-12)
	})

	t.Run("takes the short way across 180", func(t *testing.T) {
		t.Parallel()
		got := smoothAngle(-178, 178, 1, 7)
		assert.InDelta(t, 178, got, 1e-9)
	})

	t.Run("zero clamp disables the limit", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 45, smoothAngle(0, 90, 0.5, 0), 1e-12)
	})
}

func TestEMA(t *testing.T) {
	t.Parallel()
	v := 0.0
	for i := 0; i < 100; i++ {
		v = ema(v, 10, 0.1)
	}
	assert.InDelta(t, 10, v, 10*0.00003)
	assert.Equal(t, Point{X: 5, Y: -5}, emaPoint(Point{}, Point{X: 10, Y: -10}, 0.5))
}
