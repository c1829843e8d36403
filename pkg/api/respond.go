package api

import (
	"encoding/json"
	stdliberrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/lolikgiovi/lockey/pkg/errors"
)

const (
	maxBodyBytesSmall   int64 = 1 << 20
	maxBodyBytesDataset int64 = 64 << 20
)

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// respondError sends a structured JSON error response.
func respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	response := struct {
		Error     string `json:"error"`
		Status    int    `json:"status"`
		Code      string `json:"code,omitempty"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}{
		Status:    status,
		Message:   http.StatusText(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	response.Error = response.Message

	var appErr *apperrors.Error
	if stdliberrors.As(err, &appErr) {
		response.Code = string(appErr.Code)
		response.Message = apperrors.UserFacing(err)
	} else if err != nil {
		response.Message = err.Error()
	}

	_ = json.NewEncoder(w).Encode(response)
}

// statusForError maps application error codes to HTTP statuses.
func statusForError(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeInvalidStructure, apperrors.ErrCodeMissingContent, apperrors.ErrCodeNoLanguageData:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case apperrors.ErrCodeAccessDenied:
		return http.StatusForbidden
	case apperrors.ErrCodePageNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodePageFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) (int, error) {
	if r == nil || r.Body == nil {
		return http.StatusBadRequest, fmt.Errorf("request body required")
	}
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if stdliberrors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body too large (max %d bytes)", maxBytes)
		}
		if stdliberrors.Is(err, io.EOF) {
			return http.StatusBadRequest, fmt.Errorf("request body required")
		}
		return http.StatusBadRequest, err
	}
	return 0, nil
}
