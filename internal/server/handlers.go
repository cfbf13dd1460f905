package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Siyabonga8/winmastersai/pkg/auth"
	"github.com/Siyabonga8/winmastersai/pkg/predictor"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

const teaserMessage = "Detailed predictions are available to subscribers. Upgrade to unlock them."

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
	defer cancel()

	if err := s.predictions.Ready(ctx); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Cache backend not ready")
		writeError(w, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("READY"))
}

// handlePredictions serves the aggregate public view. It always answers 200.
func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.predictions.Aggregate(r.Context(), s.matchIDs))
}

// handlePrediction serves one match. Detail requests are gated on a
// subscribed credential, and only those carry the privileged header upstream.
func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)
	q := predictor.MatchQuery{
		MatchID: chi.URLParam(r, "matchId"),
		Detail:  parseDetail(r.URL.Query().Get("detail")),
	}

	privileged := false
	if q.Detail {
		claims, err := s.verifier.Verify(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !claims.Subscribed {
			logger.Debug().Str("match_id", q.MatchID).Str("subject", claims.Subject).Msg("Detail requested without subscription")
			writeJSON(w, http.StatusForbidden, teaserResponse{
				Teaser:          teaserMessage,
				UpgradeRequired: true,
				MatchID:         q.MatchID,
			})
			return
		}
		privileged = true
	}

	payload, err := s.predictions.Fetch(r.Context(), q, privileged)
	if err != nil {
		logger.Warn().Err(err).Str("match_id", q.MatchID).Bool("detail", q.Detail).Msg("Prediction fetch failed")
		writeError(w, http.StatusBadGateway, "prediction service unavailable")
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

// parseDetail reads the detail flag. Anything unparsable is the public view.
func parseDetail(raw string) bool {
	detail, err := strconv.ParseBool(raw)
	return err == nil && detail
}

var (
	_ CredentialVerifier = (*auth.Verifier)(nil)
	_ Predictions        = (*predictor.Service)(nil)
)
