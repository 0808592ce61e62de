// Package httpapi serves the signing endpoints used by the web viewer.
//
// All endpoints accept and return JSON. Failures are reported as
// {"success": false, "error": "..."} with a status code describing the
// kind of failure.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/digitorus/pdfmark/config"
	"github.com/digitorus/pdfmark/internal/auditlog"
	"github.com/digitorus/pdfmark/internal/logger"
	"github.com/digitorus/pdfmark/jarsign"
)

// Server handles the HTTP API.
type Server struct {
	cfg     *config.Config
	signer  *jarsign.Signer
	audit   *auditlog.Log
	limiter *rate.Limiter
	now     func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithSigner sets the company signer.
func WithSigner(s *jarsign.Signer) Option {
	return func(srv *Server) {
		srv.signer = s
	}
}

// WithAuditLog records company signing events in l.
func WithAuditLog(l *auditlog.Log) Option {
	return func(srv *Server) {
		srv.audit = l
	}
}

// WithClock sets the source of signing times.
func WithClock(now func() time.Time) Option {
	return func(srv *Server) {
		srv.now = now
	}
}

// New returns a Server for cfg. Without WithSigner the company signer is
// built from the [company] section.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		limiter: jarsign.Throttle(cfg.Server.RatePerMinute, max(cfg.Server.RatePerMinute/4, 1)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.signer == nil {
		s.signer = jarsign.New(cfg.Company.Signer(),
			jarsign.WithLimiter(jarsign.Throttle(cfg.Company.RatePerMinute, 1)),
			jarsign.WithClock(s.now))
	}
	return s
}

// Routes returns the HTTP handler of the API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", s.health)
	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.RequestSize(s.cfg.Server.MaxUploadBytes()))
		api.Post("/marks/validate", s.validateMarks)
		api.Group(func(sign chi.Router) {
			sign.Use(s.throttle)
			sign.Post("/sign-personal", s.signPersonal)
			sign.Post("/sign-company", s.signCompany)
		})
	})
	return r
}

// ListenAndServe serves the API on the configured address until ctx is
// done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.cfg.Server.AllowOrigin
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			logger.Warn("request throttled", "path", r.URL.Path, "ip", clientIP(r))
			writeError(w, http.StatusTooManyRequests, ErrThrottled.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Java: true}
	if err := s.signer.CheckJava(r.Context()); err != nil {
		resp.Java = false
	}
	writeJSON(w, http.StatusOK, resp)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
