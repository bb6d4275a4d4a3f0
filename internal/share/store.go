// Package share stores captured booth photos and renders the public share
// card that social networks unfurl.
package share

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/image/draw"

	"github.com/banshee-data/photobooth/internal/db"
	"github.com/banshee-data/photobooth/internal/monitoring"
	"github.com/banshee-data/photobooth/internal/timeutil"
)

var (
	// ErrNotFound is returned for ids with no stored photo.
	ErrNotFound = errors.New("photo not found")
	// ErrUnsupportedImage is returned for uploads that are not a decodable
	// PNG or JPEG.
	ErrUnsupportedImage = errors.New("unsupported image")
)

const (
	// PreviewMaxSide bounds the longest side of the OpenGraph preview.
	PreviewMaxSide = 1200
	previewQuality = 85
	previewSuffix  = "-og.jpg"
)

// Store writes uploads to a directory and records them in the database.
type Store struct {
	dir   string
	db    *db.DB
	clock timeutil.Clock
}

// NewStore creates the upload directory if needed.
func NewStore(dir string, database *db.DB, clock timeutil.Clock) (*Store, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, db: database, clock: clock}, nil
}

// Dir is the directory served under /uploads/.
func (s *Store) Dir() string { return s.dir }

// NewID returns a lower-case ULID. Ids sort by creation time.
func (s *Store) NewID() string {
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(s.clock.Now()), ulid.DefaultEntropy()).String())
}

// ValidID reports whether id is a well-formed photo id.
func ValidID(id string) bool {
	if id != strings.ToLower(id) {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(id))
	return err == nil
}

// Save validates content as a PNG or JPEG, writes it and its preview to
// the upload directory and records the photo. originalName is informational.
func (s *Store) Save(ctx context.Context, originalName string, content []byte) (db.Photo, error) {
	contentType := http.DetectContentType(content)
	var ext string
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	default:
		return db.Photo{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, contentType)
	}

	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return db.Photo{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	preview, err := encodePreview(img)
	if err != nil {
		return db.Photo{}, err
	}

	id := s.NewID()
	photo := db.Photo{
		ID:           id,
		FileName:     id + ext,
		PreviewName:  id + previewSuffix,
		ContentType:  contentType,
		Width:        img.Bounds().Dx(),
		Height:       img.Bounds().Dy(),
		SizeBytes:    int64(len(content)),
		OriginalName: baseName(originalName),
		Created:      s.clock.Now().UTC().Truncate(time.Second),
	}

	if err := writeFileAtomic(filepath.Join(s.dir, photo.FileName), content); err != nil {
		return db.Photo{}, err
	}
	if err := writeFileAtomic(filepath.Join(s.dir, photo.PreviewName), preview); err != nil {
		s.removeFiles(photo)
		return db.Photo{}, err
	}
	if err := s.db.RecordPhoto(ctx, photo); err != nil {
		s.removeFiles(photo)
		return db.Photo{}, err
	}
	monitoring.Logf("[share] stored %s (%dx%d, %d bytes)", photo.FileName, photo.Width, photo.Height, photo.SizeBytes)
	return photo, nil
}

// Lookup returns the stored photo for id.
func (s *Store) Lookup(ctx context.Context, id string) (db.Photo, error) {
	if !ValidID(id) {
		return db.Photo{}, ErrNotFound
	}
	p, err := s.db.PhotoByID(ctx, id)
	if errors.Is(err, db.ErrPhotoNotFound) {
		return db.Photo{}, ErrNotFound
	}
	return p, err
}

// RecordView counts a share page view. Failures are logged, not returned.
func (s *Store) RecordView(ctx context.Context, id string) {
	if err := s.db.RecordShareView(ctx, id); err != nil {
		monitoring.Logf("[share] record view %s: %v", id, err)
	}
}

// Purge deletes photos older than maxAge together with their files.
func (s *Store) Purge(ctx context.Context, maxAge time.Duration) (int, error) {
	expired, err := s.db.DeletePhotosBefore(ctx, s.clock.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	for _, p := range expired {
		s.removeFiles(p)
	}
	if len(expired) > 0 {
		monitoring.Logf("[share] purged %d photos older than %s", len(expired), maxAge)
	}
	return len(expired), nil
}

func (s *Store) removeFiles(p db.Photo) {
	for _, name := range []string{p.FileName, p.PreviewName} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			monitoring.Logf("[share] remove %s: %v", name, err)
		}
	}
}

func baseName(name string) string {
	if name == "" {
		return ""
	}
	return filepath.Base(name)
}

// previewSize fits w×h within PreviewMaxSide, never upscaling.
func previewSize(w, h int) (int, int) {
	if w <= PreviewMaxSide && h <= PreviewMaxSide {
		return w, h
	}
	if w >= h {
		return PreviewMaxSide, max(1, h*PreviewMaxSide/w)
	}
	return max(1, w*PreviewMaxSide/h), PreviewMaxSide
}

// encodePreview renders the OpenGraph preview as JPEG on a white
// background so transparent PNG captures do not turn black.
func encodePreview(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	w, h := previewSize(bounds.Dx(), bounds.Dy())

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: previewQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s %s: %w", op, filepath.Base(path), err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail("chmod", err)
	}
	if err := tmp.Close(); err != nil {
		return fail("close", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
