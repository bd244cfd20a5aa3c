package http

import (
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/wishwell/pkg/usecase"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
	"github.com/secmon-lab/wishwell/pkg/utils/safe"
)

type Server struct {
	router   *chi.Mux
	uc       *usecase.UseCases
	staticFS fs.FS
}

type Options func(*Server)

// WithStaticFS serves a single page application from fsys for paths
// outside /api
func WithStaticFS(fsys fs.FS) Options {
	return func(s *Server) {
		s.staticFS = fsys
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/wishes", func(r chi.Router) {
			r.Get("/", s.listWishes)
			r.Post("/", s.submitWish)
			r.Get("/{id}", s.getWish)
			r.Delete("/{id}", s.deleteWish)
			r.Get("/{id}/topic", s.getWishTopic)
		})
		r.Get("/moderation/rejected", s.listRejectedWishes)

		r.Route("/topics", func(r chi.Router) {
			r.Get("/", s.listTopics)
			r.Get("/{id}", s.getTopic)
			r.Get("/{id}/wishes", s.listTopicWishes)
		})
		r.Get("/visualization", s.getVisualization)

		r.Route("/training/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Post("/", s.startRun)
			r.Get("/latest", s.getLatestRun)
			r.Get("/{id}", s.getRun)
		})
		r.Get("/stats", s.getStats)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	// Static file serving for SPA (catch-all, must be last)
	if s.staticFS != nil {
		r.Get("/*", spaHandler(s.staticFS))
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.From(r.Context()).Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// spaHandler handles SPA routing by serving static files and falling back to index.html
func spaHandler(staticFS fs.FS) http.HandlerFunc {
	fileServer := http.FileServer(http.FS(staticFS))

	return func(w http.ResponseWriter, r *http.Request) {
		urlPath := strings.TrimPrefix(r.URL.Path, "/")
		if urlPath == "" {
			urlPath = "index.html"
		}

		file, err := staticFS.Open(urlPath)
		if err == nil {
			safe.Close(r.Context(), file)
			fileServer.ServeHTTP(w, r)
			return
		}

		// File not found, serve index.html for SPA routing
		index, err := fs.ReadFile(staticFS, "index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		safe.Write(r.Context(), w, index)
	}
}
