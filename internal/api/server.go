// Package api exposes the service facade as an HTTP JSON API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"donorsense/internal/model"
	"donorsense/internal/service"
)

// Server serves the engine's HTTP API.
type Server struct {
	svc    *service.Service
	server *http.Server
}

// NewServer builds the API server on the given port.
func NewServer(svc *service.Service, port int) *Server {
	s := &Server{svc: svc}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/models/train", s.handleTrain)
	mux.HandleFunc("GET /v1/models", s.handleListModels)
	mux.HandleFunc("GET /v1/models/{id}", s.handleGetModel)
	mux.HandleFunc("POST /v1/models/{id}/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /v1/predict", s.handlePredict)
	mux.HandleFunc("POST /v1/ensemble", s.handleEnsemble)
	mux.HandleFunc("GET /v1/donors/{id}/predictions", s.handleDonorPredictions)
	mux.HandleFunc("POST /v1/outcomes", s.handleOutcome)
	mux.HandleFunc("GET /v1/insights", s.handleInsights)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type trainRequest struct {
	model.TrainingConfig
	Dataset model.TrainingDataSet `json:"dataset"`
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Validationf("body", "invalid JSON: %v", err))
		return
	}

	id, err := s.svc.TrainModelAsync(req.TrainingConfig, &req.Dataset)
	if err != nil {
		// Submission only fails on queue pressure or shutdown
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models := s.svc.GetModels()
	if models == nil {
		models = []*model.PredictionModel{}
	}
	writeJSON(w, http.StatusOK, models)
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m := s.svc.GetModel(id)
	if m == nil {
		writeError(w, &model.LookupError{Kind: "model", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.EvaluateModelPerformance(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req service.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Validationf("body", "invalid JSON: %v", err))
		return
	}

	preds, err := s.svc.Predict(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preds)
}

type ensembleRequest struct {
	DonorID  string                 `json:"donor_id"`
	Type     model.ModelType        `json:"type"`
	Features map[string]model.Value `json:"features,omitempty"`
}

func (s *Server) handleEnsemble(w http.ResponseWriter, r *http.Request) {
	var req ensembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Validationf("body", "invalid JSON: %v", err))
		return
	}

	ep, err := s.svc.GenerateEnsemblePrediction(r.Context(), req.DonorID, req.Type, req.Features)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (s *Server) handleDonorPredictions(w http.ResponseWriter, r *http.Request) {
	preds := s.svc.GetDonorPredictions(r.PathValue("id"))
	if preds == nil {
		preds = []model.DonorPrediction{}
	}
	writeJSON(w, http.StatusOK, preds)
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	var o model.Outcome
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeError(w, model.Validationf("body", "invalid JSON: %v", err))
		return
	}

	if err := s.svc.RecordOutcome(o); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Insights())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"models": len(s.svc.GetModels()),
	})
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses: validation failures
// 400, unknown ids 404, thin ensembles 409, everything else 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var verr *model.ValidationError
	var lerr *model.LookupError
	var ierr *model.InsufficientModelsError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.As(err, &lerr):
		status = http.StatusNotFound
	case errors.As(err, &ierr):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
