package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/boddenberg/budget-tracker-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeRecord(r *http.Request) (domain.Record, error) {
	var rec domain.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return rec, nil
}

func parseFloatParam(r *http.Request, name string) (float64, error) {
	v := r.URL.Query().Get(name)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &domain.ErrValidation{Field: name, Message: "must be a number"}
	}
	return f, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var unknown *domain.ErrUnknownCollection
	var validation *domain.ErrValidation
	var duplicate *domain.ErrDuplicateKey
	var snapshot *domain.ErrInvalidSnapshot
	var insufficientFunds *domain.ErrInsufficientFunds
	var blocked *domain.ErrOpenBlocked
	var openFailed *domain.ErrOpenFailed
	var suspended *domain.ErrJobsSuspended

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &unknown):
		logger.Debug("unknown collection", zap.String("collection", unknown.Name))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &snapshot):
		logger.Debug("invalid snapshot", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &duplicate):
		logger.Debug("duplicate key", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &insufficientFunds):
		logger.Warn("insufficient funds",
			zap.Float64("available", insufficientFunds.Available),
			zap.Float64("required", insufficientFunds.Required),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &blocked):
		logger.Warn("store blocked", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &openFailed):
		logger.Error("store unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &suspended):
		logger.Warn("posting jobs suspended", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
