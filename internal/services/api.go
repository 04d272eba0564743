package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/pollstake/pollstake/internal/controller"
	"github.com/pollstake/pollstake/internal/db"
	"github.com/pollstake/pollstake/internal/host"
)

const (
	apiRequestTimeout     = 10 * time.Second
	apiRequestIdleTimeout = 30 * time.Second

	defaultPageSize int64 = 10
	maxPageSize     int64 = 50
)

type apiResponse struct {
	Data       any            `json:"data"`
	Pagination *apiPagination `json:"pagination,omitempty"`
}

type apiPagination struct {
	NextKey string `json:"next_key,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

// StartQueryAPI serves the public read API until the context is cancelled.
func (s *Service) StartQueryAPI(ctx context.Context) {
	router := chi.NewRouter()
	router.Get("/healthcheck", s.handleHealthcheck)
	router.Get("/v1/markets", s.handleListMarkets)
	router.Get("/v1/markets/{address}", s.handleGetMarket)
	router.Get("/v1/stats", s.handleGetStats)
	router.Get("/v1/config", s.handleGetConfig)

	server := &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  apiRequestTimeout,
		WriteTimeout: apiRequestTimeout,
		IdleTimeout:  apiRequestIdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), apiRequestTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down query API server")
		}
	}()

	log.Info().Msgf("Starting query API server on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msgf("Error starting query API server on %s", server.Addr)
	}
}

func (s *Service) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, apiError{Error: "database unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Data: "ok"})
}

func (s *Service) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid limit"})
			return
		}
		limit = min(parsed, maxPageSize)
	}
	paginationKey := r.URL.Query().Get("pagination_key")

	markets, nextKey, err := s.db.FindActiveMarkets(r.Context(), paginationKey, limit)
	if err != nil {
		if db.IsInvalidPaginationTokenError(err) {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid pagination key"})
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list active markets")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
		return
	}

	resp := apiResponse{Data: markets}
	if nextKey != "" {
		resp.Pagination = &apiPagination{NextKey: nextKey}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	marketDoc, err := s.db.GetMarketByAddress(r.Context(), address)
	if err != nil {
		if db.IsNotFoundError(err) {
			writeJSON(w, http.StatusNotFound, apiError{Error: "market not found"})
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Str("market", address).Msg("Failed to get market")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Data: marketDoc})
}

func (s *Service) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetOverallStats(r.Context())
	if err != nil {
		if db.IsNotFoundError(err) {
			writeJSON(w, http.StatusNotFound, apiError{Error: "stats not available yet"})
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to get overall stats")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Data: stats})
}

func (s *Service) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := host.QueryHostAs[controller.ConfigResponse](r.Context(), s.host, s.controller, controller.QueryMsg{GetConfig: &struct{}{}})
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to query factory config")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Data: cfg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response body")
	}
}
