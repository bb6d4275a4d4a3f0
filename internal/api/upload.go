package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/banshee-data/photobooth/internal/httputil"
	"github.com/banshee-data/photobooth/internal/monitoring"
	"github.com/banshee-data/photobooth/internal/share"
)

// UploadResponse is returned by a successful upload.
type UploadResponse struct {
	OK       bool   `json:"ok"`
	ID       string `json:"id"`
	ImageURL string `json:"imageUrl"`
	ShareURL string `json:"shareUrl"`
}

// multipartOverhead allows for boundaries and headers around the file part.
const multipartOverhead = 64 << 10

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, "file_too_large")
			return
		}
		httputil.BadRequest(w, "no_file")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "no_file")
		return
	}
	defer file.Close()

	if header.Size > s.maxUpload {
		httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, "file_too_large")
		return
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, s.maxUpload+1)); err != nil {
		httputil.BadRequest(w, "no_file")
		return
	}
	if int64(buf.Len()) > s.maxUpload {
		httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, "file_too_large")
		return
	}
	if buf.Len() == 0 {
		httputil.BadRequest(w, "no_file")
		return
	}

	photo, err := s.store.Save(r.Context(), header.Filename, buf.Bytes())
	if errors.Is(err, share.ErrUnsupportedImage) {
		httputil.WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_image")
		return
	}
	if err != nil {
		monitoring.Logf("[upload] save failed: %v", err)
		httputil.InternalServerError(w, "save_failed")
		return
	}

	links := share.LinksFor(s.origin(r), photo)
	httputil.WriteJSONOK(w, UploadResponse{
		OK:       true,
		ID:       photo.ID,
		ImageURL: links.ImageURL,
		ShareURL: links.PageURL,
	})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.MethodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/share/")
	photo, err := s.store.Lookup(r.Context(), id)
	if errors.Is(err, share.ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if err != nil {
		monitoring.Logf("[share] lookup %s: %v", id, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	var page bytes.Buffer
	if err := share.RenderPage(&page, s.meta, s.origin(r), photo); err != nil {
		monitoring.Logf("[share] %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", shareCacheControl)
	_, _ = w.Write(page.Bytes())

	if r.Method == http.MethodGet {
		s.store.RecordView(r.Context(), photo.ID)
	}
}

// uploadsHandler serves stored images with long-lived caching. Directory
// listings and temporary files are hidden.
func (s *Server) uploadsHandler() http.Handler {
	files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.store.Dir())))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			httputil.MethodNotAllowed(w)
			return
		}
		name := path.Base(r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/") || strings.HasPrefix(name, ".") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", uploadsCacheControl)
		files.ServeHTTP(w, r)
	})
}
