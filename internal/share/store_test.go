package share

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/photobooth/internal/db"
	"github.com/banshee-data/photobooth/internal/monitoring"
	"github.com/banshee-data/photobooth/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) (*Store, *timeutil.MockClock) {
	t.Helper()
	dir := t.TempDir()
	database, err := db.NewDB(filepath.Join(dir, "booth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	clock := timeutil.NewMockClock(time.Date(2025, 12, 24, 20, 0, 0, 0, time.UTC))
	store, err := NewStore(filepath.Join(dir, "uploads"), database, clock)
	require.NoError(t, err)
	return store, clock
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func decodeFile(t *testing.T, path string) (image.Config, string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg, format
}

func TestSavePNG(t *testing.T) {
	store, _ := newTestStore(t)
	content := pngBytes(t, 2400, 1350)

	photo, err := store.Save(context.Background(), "C:/camera/capture.png", content)
	require.NoError(t, err)

	assert.True(t, ValidID(photo.ID), photo.ID)
	assert.Equal(t, photo.ID+".png", photo.FileName)
	assert.Equal(t, "image/png", photo.ContentType)
	assert.Equal(t, 2400, photo.Width)
	assert.Equal(t, 1350, photo.Height)
	assert.Equal(t, int64(len(content)), photo.SizeBytes)

	stored, err := os.ReadFile(filepath.Join(store.Dir(), photo.FileName))
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	cfg, format := decodeFile(t, filepath.Join(store.Dir(), photo.PreviewName))
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1200, cfg.Width)
	assert.Equal(t, 675, cfg.Height)

	got, err := store.Lookup(context.Background(), photo.ID)
	require.NoError(t, err)
	assert.Equal(t, photo, got)
}

func TestSaveJPEGKeepsSmallPreviewSize(t *testing.T) {
	store, _ := newTestStore(t)

	photo, err := store.Save(context.Background(), "", jpegBytes(t, 640, 480))
	require.NoError(t, err)
	assert.Equal(t, photo.ID+".jpg", photo.FileName)
	assert.Empty(t, photo.OriginalName)

	cfg, _ := decodeFile(t, filepath.Join(store.Dir(), photo.PreviewName))
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
}

func TestSaveRejectsUnsupported(t *testing.T) {
	store, _ := newTestStore(t)

	tests := []struct {
		name    string
		content []byte
	}{
		{"text", []byte("definitely not an image")},
		{"gif", []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")},
		{"truncated png", pngBytes(t, 32, 32)[:40]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Save(context.Background(), "x", tt.content)
			assert.ErrorIs(t, err, ErrUnsupportedImage)
		})
	}

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads must leave no files")
}

func TestLookupUnknown(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Lookup(ctx, store.NewID())
	assert.ErrorIs(t, err, ErrNotFound)

	for _, id := range []string{"", "../etc/passwd", "01JFZ8V6Q8K2M3N4P5R6S7T8V9", "abc"} {
		_, err := store.Lookup(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
}

func TestIDsSortByTime(t *testing.T) {
	store, clock := newTestStore(t)
	first := store.NewID()
	clock.Advance(time.Millisecond)
	second := store.NewID()
	assert.Less(t, first, second)
	assert.Len(t, first, 26)
	assert.Equal(t, strings.ToLower(first), first)
}

func TestPurge(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	old, err := store.Save(ctx, "old.png", pngBytes(t, 100, 100))
	require.NoError(t, err)
	clock.Advance(48 * time.Hour)
	fresh, err := store.Save(ctx, "new.png", pngBytes(t, 100, 100))
	require.NoError(t, err)

	n, err := store.Purge(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(filepath.Join(store.Dir(), old.FileName))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = store.Lookup(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Lookup(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestPreviewSize(t *testing.T) {
	tests := []struct{ w, h, wantW, wantH int }{
		{640, 480, 640, 480},
		{1200, 1200, 1200, 1200},
		{2400, 1200, 1200, 600},
		{1080, 1920, 675, 1200},
		{5000, 2, 1200, 1},
	}
	for _, tt := range tests {
		w, h := previewSize(tt.w, tt.h)
		assert.Equal(t, [2]int{tt.wantW, tt.wantH}, [2]int{w, h}, "%dx%d", tt.w, tt.h)
	}
}
