package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/p-n-ai/study-centre/internal/catalog"
	"github.com/p-n-ai/study-centre/internal/platform/lazy"
	"github.com/p-n-ai/study-centre/internal/progress"
	"github.com/p-n-ai/study-centre/internal/quiz"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var loadErr *lazy.LoadError
	switch {
	case errors.Is(err, progress.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound) && !errors.As(err, &loadErr),
		errors.Is(err, quiz.ErrUnknownQuestion):
		return http.StatusNotFound
	case errors.Is(err, quiz.ErrOptionOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, progress.ErrAlreadySubmitted):
		return http.StatusConflict
	case errors.Is(err, quiz.ErrExamExpired):
		return http.StatusGone
	case errors.As(err, &loadErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return "We could not find that question on this page."
	case http.StatusBadRequest:
		return "That answer is not one of the options."
	case http.StatusServiceUnavailable:
		return "This page's content is temporarily unavailable. Please try again in a moment."
	default:
		return "Something went wrong while showing this page."
	}
}

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

// writeDomainErr writes err with the status statusFor assigns it.
func writeDomainErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeErr(w, status, msg)
}
