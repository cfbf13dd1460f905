// Package server wires the predictor proxy HTTP surface.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Siyabonga8/winmastersai/pkg/auth"
	"github.com/Siyabonga8/winmastersai/pkg/metrics"
	"github.com/Siyabonga8/winmastersai/pkg/predictor"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// DefaultReadyTimeout bounds the cache ping behind /ready.
const DefaultReadyTimeout = 2 * time.Second

// Predictions is the prediction service the handlers serve from.
// *predictor.Service implements it.
type Predictions interface {
	Fetch(ctx context.Context, q predictor.MatchQuery, attachPrivileged bool) (json.RawMessage, error)
	Aggregate(ctx context.Context, matchIDs []string) []json.RawMessage
	Ready(ctx context.Context) error
}

// CredentialVerifier checks the Authorization header of detail requests.
// *auth.Verifier implements it.
type CredentialVerifier interface {
	Verify(rawHeader string) (*auth.Claims, error)
}

// Options configures a Server.
type Options struct {
	Predictions  Predictions
	Verifier     CredentialVerifier
	MatchIDs     []string
	Logger       zerolog.Logger
	ReadyTimeout time.Duration
}

// Server is the HTTP front of the proxy.
type Server struct {
	Router *chi.Mux

	predictions  Predictions
	verifier     CredentialVerifier
	matchIDs     []string
	readyTimeout time.Duration
}

// New builds the router with its middleware stack and routes.
func New(opts Options) *Server {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}

	r := chi.NewRouter()
	s := &Server{
		Router:       r,
		predictions:  opts.Predictions,
		verifier:     opts.Verifier,
		matchIDs:     append([]string(nil), opts.MatchIDs...),
		readyTimeout: opts.ReadyTimeout,
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/predictions", s.handlePredictions)
		api.Get("/prediction/{matchId}", s.handlePrediction)
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	route := ""
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		route = rctx.RoutePattern()
	}
	metrics.ObserveRequest(route, status, duration)

	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("route", route).
		Str("request_id", chimw.GetReqID(r.Context())).
		Str("remote_addr", r.RemoteAddr).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("Request served")
}

// recoverer turns a panic into a 500 without leaking its cause to the client.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			hlog.FromRequest(r).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("Handler panicked")
			writeError(w, http.StatusInternalServerError, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}
