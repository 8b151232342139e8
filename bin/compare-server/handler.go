package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"snapshot-baseline/internal/compare"
	"snapshot-baseline/internal/verdict"

	"github.com/go-logr/logr"
)

const maxRequestBytes = 1 << 20

type Comparator interface {
	CompareOrCreateBaseline(ctx context.Context, request compare.Request) (*compare.Result, error)
}

type CompareRequest struct {
	BaselinePath string            `json:"baselinePath"`
	ActualPath   string            `json:"actualPath"`
	DiffPath     string            `json:"diffPath"`
	Policy       *verdict.Document `json:"policy"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

type compareHandler struct {
	comparator Comparator
}

func (h *compareHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logr.FromContextOrDiscard(r.Context())

	var body CompareRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Reason: "InvalidRequest"})
		return
	}

	request := compare.Request{
		BaselinePath: body.BaselinePath,
		ActualPath:   body.ActualPath,
		DiffPath:     body.DiffPath,
	}
	if body.Policy != nil {
		policy, err := body.Policy.Policy()
		if err != nil {
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Reason: "InvalidRequest"})
			return
		}
		request.Policy = policy
	}

	result, err := h.comparator.CompareOrCreateBaseline(r.Context(), request)
	if err != nil {
		status, reason := statusFor(err)
		writeJSON(w, logger, status, ErrorResponse{Error: err.Error(), Reason: reason})
		return
	}

	writeJSON(w, logger, http.StatusOK, result)
}

// statusFor keeps a failed verdict (200) apart from requests that could not be
// compared at all.
func statusFor(err error) (int, string) {
	var decodeErr *compare.DecodeError
	var ioErr *compare.IOError
	switch {
	case errors.Is(err, compare.ErrInvalidRequest):
		return http.StatusBadRequest, "InvalidRequest"
	case errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity, "DecodeError"
	case errors.As(err, &ioErr):
		return http.StatusInternalServerError, "IOError"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Canceled"
	default:
		return http.StatusInternalServerError, "Internal"
	}
}

func writeJSON(w http.ResponseWriter, logger logr.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(err, "failed to encode response")
	}
}
