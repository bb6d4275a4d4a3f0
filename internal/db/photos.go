package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrPhotoNotFound is returned when no photo row has the requested id.
var ErrPhotoNotFound = errors.New("photo not found")

// Photo is the metadata row for one shared capture. The image bytes live on
// disk under FileName and PreviewName.
type Photo struct {
	ID           string    `json:"id"`
	FileName     string    `json:"file_name"`
	PreviewName  string    `json:"preview_name"`
	ContentType  string    `json:"content_type"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	SizeBytes    int64     `json:"size_bytes"`
	OriginalName string    `json:"original_name,omitempty"`
	ShareViews   int64     `json:"share_views"`
	Created      time.Time `json:"created"`
}

const photoColumns = `photo_id, file_name, preview_name, content_type, width, height,
	size_bytes, original_name, share_views, created_unix`

func scanPhoto(row interface{ Scan(...any) error }) (Photo, error) {
	var p Photo
	var created int64
	err := row.Scan(&p.ID, &p.FileName, &p.PreviewName, &p.ContentType, &p.Width, &p.Height,
		&p.SizeBytes, &p.OriginalName, &p.ShareViews, &created)
	if err != nil {
		return Photo{}, err
	}
	p.Created = time.Unix(created, 0).UTC()
	return p, nil
}

// RecordPhoto inserts a photo row.
func (db *DB) RecordPhoto(ctx context.Context, p Photo) error {
	if p.ID == "" {
		return fmt.Errorf("record photo: empty id")
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO photos (
			photo_id, file_name, preview_name, content_type, width, height,
			size_bytes, original_name, created_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.FileName, p.PreviewName, p.ContentType, p.Width, p.Height,
		p.SizeBytes, p.OriginalName, p.Created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record photo %s: %w", p.ID, err)
	}
	return nil
}

// PhotoByID returns the photo with the given id or ErrPhotoNotFound.
func (db *DB) PhotoByID(ctx context.Context, id string) (Photo, error) {
	row := db.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE photo_id = ?`, id)
	p, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Photo{}, ErrPhotoNotFound
	}
	if err != nil {
		return Photo{}, fmt.Errorf("photo %s: %w", id, err)
	}
	return p, nil
}

// RecentPhotos returns up to limit photos, newest first.
func (db *DB) RecentPhotos(ctx context.Context, limit int) ([]Photo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+photoColumns+` FROM photos ORDER BY created_unix DESC, photo_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent photos: %w", err)
	}
	defer rows.Close()

	photos := []Photo{}
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return photos, nil
}

// CountPhotos returns the number of stored photos.
func (db *DB) CountPhotos(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return n, nil
}

// RecordShareView increments the share page counter of a photo.
func (db *DB) RecordShareView(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `UPDATE photos SET share_views = share_views + 1 WHERE photo_id = ?`, id)
	if err != nil {
		return fmt.Errorf("record share view %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

// DeletePhotosBefore removes rows created before cutoff and returns them so
// the caller can remove the files.
func (db *DB) DeletePhotosBefore(ctx context.Context, cutoff time.Time) ([]Photo, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE created_unix < ?`, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("select expired photos: %w", err)
	}
	var expired []Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		expired = append(expired, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE created_unix < ?`, cutoff.Unix()); err != nil {
		return nil, fmt.Errorf("delete expired photos: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return expired, nil
}
