package api

import (
	"embed"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/photobooth/internal/httputil"
	"github.com/banshee-data/photobooth/internal/monitoring"
	"github.com/banshee-data/photobooth/internal/session"
	"github.com/banshee-data/photobooth/internal/share"
	"github.com/banshee-data/photobooth/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const (
	// DefaultMaxUploadBytes matches the 8 MiB limit of the booth client.
	DefaultMaxUploadBytes = 8 << 20
	maxFrameBodyBytes     = 1 << 20
	shareCacheControl     = "public, max-age=300"
	uploadsCacheControl   = "public, max-age=604800, immutable"
)

//go:embed static
var staticFiles embed.FS

// Options configures a Server.
type Options struct {
	Sessions *session.Manager
	Store    *share.Store
	Meta     share.PageMeta
	// PublicBaseURL overrides the origin derived from request headers when
	// building absolute image and share URLs.
	PublicBaseURL  string
	MaxUploadBytes int64
}

type Server struct {
	sessions  *session.Manager
	store     *share.Store
	meta      share.PageMeta
	baseURL   string
	maxUpload int64
}

func NewServer(opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Meta == (share.PageMeta{}) {
		opts.Meta = share.DefaultPageMeta
	}
	return &Server{
		sessions:  opts.Sessions,
		store:     opts.Store,
		meta:      opts.Meta,
		baseURL:   strings.TrimRight(opts.PublicBaseURL, "/"),
		maxUpload: opts.MaxUploadBytes,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration.
// Frame posts arrive many times a second, so successful ones are only
// logged at debug level.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)

		logf := monitoring.Logf
		if r.URL.Path == "/api/overlay/frame" && lrw.statusCode < 400 {
			logf = monitoring.Debugf
		}
		logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux registers every booth route.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/overlay/frame", s.handleFrame)
	mux.HandleFunc("/api/overlay/state", s.handleState)
	mux.HandleFunc("/api/overlay/metrics", s.handleMetrics)
	mux.HandleFunc("/api/overlay/end", s.handleEndSession)
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/share/", s.handleShare)
	mux.Handle("/uploads/", s.uploadsHandler())
	mux.HandleFunc("/debug/overlay/chart", s.handleTrackChart)

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/", http.FileServer(http.FS(static)))
	return mux
}

// Handler is the full middleware chain served by the booth.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(httputil.CORS(s.ServeMux()))
}

// origin is scheme://host used for absolute URLs in API responses.
func (s *Server) origin(r *http.Request) string {
	if s.baseURL != "" {
		return s.baseURL
	}
	return httputil.RequestOrigin(r)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Current())
}
