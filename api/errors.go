package api

import (
	"encoding/json"
	"net/http"

	"mxiledger/domain/entities"
)

// errorResponse is the body of every failed call
type errorResponse struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

var statusByCode = map[string]int{
	"invalid_amount":           http.StatusBadRequest,
	"invalid_wager":            http.StatusBadRequest,
	"invalid_request":          http.StatusBadRequest,
	"not_authorized":           http.StatusForbidden,
	"not_participant":          http.StatusForbidden,
	"not_found":                http.StatusNotFound,
	"wager_full":               http.StatusConflict,
	"wager_not_joinable":       http.StatusConflict,
	"capacity_exceeded":        http.StatusConflict,
	"already_joined":           http.StatusConflict,
	"duplicate_purchase":       http.StatusConflict,
	"user_exists":              http.StatusConflict,
	"referral_exists":          http.StatusConflict,
	"referral_cycle":           http.StatusConflict,
	"wager_not_cancellable":    http.StatusConflict,
	"result_not_accepted":      http.StatusConflict,
	"result_already_submitted": http.StatusConflict,
	"insufficient_balance":     http.StatusUnprocessableEntity,
	"lock_timeout":             http.StatusServiceUnavailable,
	"corrupt_referral_graph":   http.StatusInternalServerError,
}

// statusForError maps an error chain to its HTTP status and stable code
func statusForError(err error) (int, string) {
	code := entities.ErrorCode(err)
	if status, ok := statusByCode[code]; ok {
		return status, code
	}
	return http.StatusInternalServerError, code
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError && code == "internal" {
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Success: false, ErrorCode: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Success: false, ErrorCode: "unauthenticated", Message: message})
}
