package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rickgao/theta-pulse/internal/api"
	"github.com/rickgao/theta-pulse/internal/pricefeed"
	"github.com/rickgao/theta-pulse/internal/version"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeUpstreamError maps a client error to a response. Upstream statuses pass
// through; anything else is a 500.
func (s *Server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		writeError(w, apiErr.StatusCode, apiErr.Message)
	case errors.Is(err, api.ErrInvalidResponse):
		s.logger.Warn("invalid upstream response", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "Invalid response from upstream")
	default:
		s.logger.Error("upstream request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := struct {
		Status     string            `json:"status"`
		Version    version.Info      `json:"version"`
		Components map[string]string `json:"components,omitempty"`
	}{
		Status:     "ok",
		Version:    version.Get(),
		Components: make(map[string]string),
	}

	for _, c := range s.checks {
		if err := c.check(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components[c.name] = err.Error()
			continue
		}
		health.Components[c.name] = "ok"
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Markets())
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Trending())
}

func (s *Server) handleGlobal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Global())
}

// writeNewsError answers in the {"status":"error","message":...} shape the
// news page reads.
func writeNewsError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": message})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	if s.news == nil {
		writeNewsError(w, http.StatusInternalServerError, "API key not set")
		return
	}

	opts := s.newsOpts
	if q := r.URL.Query().Get("q"); q != "" {
		opts.Query = q
	}
	opts.Page = r.URL.Query().Get("page")

	resp, err := s.news.GetNews(r.Context(), opts)
	var apiErr *api.APIError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, api.ErrAPIKeyMissing):
		writeNewsError(w, http.StatusInternalServerError, "API key not set")
	case errors.As(err, &apiErr):
		s.logger.Warn("news upstream error", "status", apiErr.StatusCode, "err", err)
		writeNewsError(w, apiErr.StatusCode, fmt.Sprintf("News API error: %d %s", apiErr.StatusCode, http.StatusText(apiErr.StatusCode)))
	case errors.Is(err, api.ErrInvalidResponse):
		s.logger.Warn("invalid news response", "err", err)
		writeNewsError(w, http.StatusInternalServerError, "Invalid response format from News API")
	default:
		s.logger.Error("fetch news failed", "err", err)
		writeNewsError(w, http.StatusInternalServerError, "Failed to fetch news articles")
	}
}

func (s *Server) handleCoin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	coin, err := s.coins.GetCoin(r.Context(), id)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, coin.ToModel(s.cfg.VsCurrency))
}

func (s *Server) handleOHLC(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "Token ID is required")
		return
	}

	candles, err := s.coins.GetOHLC(r.Context(), id, s.cfg.VsCurrency, r.URL.Query().Get("days"))
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, candles)
}

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds := s.feeds.Feeds()
	out := make([]pricefeed.Status, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, f.Status())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f.Status())
}

func (s *Server) handleFeedHistory(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f.History())
}

func (s *Server) feed(w http.ResponseWriter, r *http.Request) (*pricefeed.Feed, bool) {
	name := mux.Vars(r)["name"]
	f, err := s.feeds.Feed(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return f, true
}
