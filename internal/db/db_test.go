package db

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/photobooth/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "NewDB")
	t.Cleanup(func() { db.Close() })
	return db
}

func testPhoto(id string, created time.Time) Photo {
	return Photo{
		ID:           id,
		FileName:     id + ".png",
		PreviewName:  id + "-og.jpg",
		ContentType:  "image/png",
		Width:        1280,
		Height:       720,
		SizeBytes:    4096,
		OriginalName: "capture.png",
		Created:      created,
	}
}

func TestMigrationsApplied(t *testing.T) {
	db := newTestDB(t)

	latest, err := LatestMigrationVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	assert.False(t, dirty)

	// Running again is a no-op.
	require.NoError(t, db.MigrateUp(MigrationsFS()))
}

func TestMigrateDown(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.MigrateDown(MigrationsFS()))
	version, _, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var hasColumn int
	err = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('photos') WHERE name = 'share_views'`).Scan(&hasColumn)
	require.NoError(t, err)
	assert.Zero(t, hasColumn)

	require.NoError(t, db.MigrateUp(MigrationsFS()))
}

func TestOpenDBLeavesSchemaAlone(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "bare.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestPragmas(t *testing.T) {
	db := newTestDB(t)
	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestRecordAndLookupPhoto(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	created := time.Date(2025, 12, 24, 19, 30, 0, 0, time.UTC)

	require.NoError(t, db.RecordPhoto(ctx, testPhoto("01jfz8v6q8k2m3n4p5r6s7t8v9", created)))

	got, err := db.PhotoByID(ctx, "01jfz8v6q8k2m3n4p5r6s7t8v9")
	require.NoError(t, err)
	assert.Equal(t, testPhoto("01jfz8v6q8k2m3n4p5r6s7t8v9", created), got)

	_, err = db.PhotoByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrPhotoNotFound)

	err = db.RecordPhoto(ctx, testPhoto("01jfz8v6q8k2m3n4p5r6s7t8v9", created))
	assert.Error(t, err, "duplicate id must be rejected")

	assert.Error(t, db.RecordPhoto(ctx, Photo{}))
}

func TestRecentAndCountPhotos(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.RecordPhoto(ctx, testPhoto(id, base.Add(time.Duration(i)*time.Minute))))
	}

	n, err := db.CountPhotos(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recent, err := db.RecentPhotos(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)
}

func TestRecordShareView(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.RecordPhoto(ctx, testPhoto("p1", time.Now())))

	require.NoError(t, db.RecordShareView(ctx, "p1"))
	require.NoError(t, db.RecordShareView(ctx, "p1"))
	p, err := db.PhotoByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ShareViews)

	assert.ErrorIs(t, db.RecordShareView(ctx, "nope"), ErrPhotoNotFound)
}

func TestDeletePhotosBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0).UTC()

	require.NoError(t, db.RecordPhoto(ctx, testPhoto("old", now.Add(-48*time.Hour))))
	require.NoError(t, db.RecordPhoto(ctx, testPhoto("new", now)))

	expired, err := db.DeletePhotosBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].ID)

	n, err := db.CountPhotos(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	for _, path := range []string{"/debug/", "/debug/backup", "/debug/tailsql/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		// tsweb may refuse non-local callers, but the route must exist.
		assert.NotEqual(t, http.StatusNotFound, w.Code, path)
	}
}

func TestServeBackup(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.RecordPhoto(context.Background(), testPhoto("p1", time.Now())))

	w := httptest.NewRecorder()
	db.serveBackup(w, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	restored := filepath.Join(t.TempDir(), "restored.db")
	require.NoError(t, os.WriteFile(restored, data, 0644))
	copyDB, err := OpenDB(restored)
	require.NoError(t, err)
	defer copyDB.Close()

	n, err := copyDB.CountPhotos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
