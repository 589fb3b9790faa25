// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/reelsage/reelsage/internal/history"
	"github.com/reelsage/reelsage/internal/recommend"
	"github.com/reelsage/reelsage/internal/weights"
)

// maxBodyBytes caps request bodies on the write endpoints.
const maxBodyBytes = 1 << 20

// Recommender is the engine capability the API consumes.
type Recommender interface {
	GenerateRecommendations(ctx context.Context, userID int, opts recommend.Options) ([]recommend.ScoredRecommendation, error)
	RecordLearningSignal(ctx context.Context, userID, movieID int, action history.Action, value float64, tags []string)
}

// WeightAdmin is the weight store capability the admin endpoints consume.
type WeightAdmin interface {
	Load(ctx context.Context) (*weights.Config, error)
	Update(ctx context.Context, partial map[string]any) (*weights.Config, error)
}

// Handler holds the endpoint implementations.
type Handler struct {
	recommender Recommender
	weights     WeightAdmin
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewHandler wires the endpoints to their collaborators.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHandler(recommender Recommender, weightAdmin WeightAdmin, logger zerolog.Logger) *Handler {
	return &Handler{
		recommender: recommender,
		weights:     weightAdmin,
		validate:    validator.New(),
		logger:      logger.With().Str("component", "api").Logger(),
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// weightsPayload is the response body for both weight endpoints.
type weightsPayload struct {
	Weights     map[string]float64 `json:"weights"`
	Boosts      map[string]float64 `json:"boosts"`
	Thresholds  map[string]float64 `json:"thresholds"`
	Version     string             `json:"version"`
	LastUpdated *time.Time         `json:"last_updated,omitempty"`
}

func newWeightsPayload(cfg *weights.Config) weightsPayload {
	p := weightsPayload{
		Weights:    cfg.Weights.Normalize().ToMap(),
		Boosts:     cfg.Boosts,
		Thresholds: cfg.Thresholds,
		Version:    cfg.Version,
	}
	if !cfg.LastUpdated.IsZero() {
		stamp := cfg.LastUpdated
		p.LastUpdated = &stamp
	}
	return p
}

// GetWeights returns the current normalized weights and metadata.
// 404 when no weight resource exists yet; 500 on unexpected read failure.
func (h *Handler) GetWeights(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	cfg, err := h.weights.Load(r.Context())
	switch {
	case errors.Is(err, os.ErrNotExist):
		rw.NotFound("no weight configuration exists")
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("failed to load weight configuration")
		rw.InternalError("failed to load weight configuration")
		return
	}

	rw.Success(newWeightsPayload(cfg))
}

// updateWeightsRequest is the POST /weights body. Values stay untyped so the
// store can reject a non-numeric entry naming the offending field.
type updateWeightsRequest struct {
	Weights map[string]any `json:"weights" validate:"required,min=1"`
}

// UpdateWeights merges a partial weight map into the stored config.
// 400 with the offending field on invalid values or a zero-sum set; 200 with
// the saved normalized weights on success.
func (h *Handler) UpdateWeights(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req updateWeightsRequest
	if err := decodeBody(w, r, &req); err != nil {
		rw.BadRequest("invalid request body: " + err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		rw.ValidationFailed("weights map is required and must not be empty", nil)
		return
	}

	cfg, err := h.weights.Update(r.Context(), req.Weights)
	if err != nil {
		var verr *weights.ValidationError
		switch {
		case errors.As(err, &verr):
			rw.ValidationFailed(verr.Reason, map[string]string{"field": verr.Field})
		case errors.Is(err, weights.ErrZeroWeightSum):
			rw.ValidationFailed("supplied weights must not sum to zero", nil)
		default:
			h.logger.Error().Err(err).Msg("failed to update weight configuration")
			rw.InternalError("failed to update weight configuration")
		}
		return
	}

	rw.Success(newWeightsPayload(cfg))
}

// GetRecommendations runs the pipeline for the user in the path.
//
// Query parameters: count, context (comma-separated tags), exclude_watched.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil || userID <= 0 {
		rw.BadRequest("userID must be a positive integer")
		return
	}

	opts := recommend.Options{RequestID: RequestIDFromContext(r.Context())}
	query := r.URL.Query()
	if raw := query.Get("count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil || count <= 0 {
			rw.BadRequest("count must be a positive integer")
			return
		}
		opts.Count = count
	}
	if raw := query.Get("context"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				opts.Context = append(opts.Context, tag)
			}
		}
	}
	if raw := query.Get("exclude_watched"); raw != "" {
		exclude, err := strconv.ParseBool(raw)
		if err != nil {
			rw.BadRequest("exclude_watched must be a boolean")
			return
		}
		opts.ExcludeWatched = exclude
	}

	recs, err := h.recommender.GenerateRecommendations(r.Context(), userID, opts)
	if err != nil {
		h.logger.Error().Err(err).Int("user_id", userID).Msg("recommendation request failed")
		rw.InternalError("failed to generate recommendations")
		return
	}

	rw.Success(map[string]any{
		"recommendations": recs,
		"count":           len(recs),
	})
}

// signalRequest is the POST /signals body.
type signalRequest struct {
	UserID  int      `json:"user_id" validate:"required,gt=0"`
	MovieID int      `json:"movie_id" validate:"required,gt=0"`
	Action  string   `json:"action" validate:"required"`
	Value   float64  `json:"value"`
	Context []string `json:"context"`
}

// PostSignal accepts a learning signal for asynchronous persistence.
// Always 202 for a well-formed request; the engine logs downstream failures.
func (h *Handler) PostSignal(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req signalRequest
	if err := decodeBody(w, r, &req); err != nil {
		rw.BadRequest("invalid request body: " + err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		rw.ValidationFailed("user_id, movie_id and action are required", nil)
		return
	}

	action := history.Action(req.Action)
	if !action.Valid() {
		rw.ValidationFailed("unknown action", map[string]string{"field": "action"})
		return
	}

	h.recommender.RecordLearningSignal(r.Context(), req.UserID, req.MovieID, action, req.Value, req.Context)
	rw.Accepted(map[string]string{"status": "accepted"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
