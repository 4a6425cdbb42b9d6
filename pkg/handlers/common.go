package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"blogclone/pkg/posts"
	"blogclone/pkg/session"

	"go.uber.org/zap"
)

type Response struct {
	Message string `json:"message"`
}

type CustomError struct {
	Location string `json:"location"`
	Param    string `json:"param"`
	Value    string `json:"value"`
	Msg      string `json:"msg"`
}

type ErrorsResponse struct {
	Errors []*CustomError `json:"errors"`
}

func WriteResponse(w http.ResponseWriter, msg string, status int) {
	resp := &Response{Message: msg}
	res, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(status)
		return
	}

	w.WriteHeader(status)
	w.Write(res)
}

func writeErrorsResponse(w http.ResponseWriter, errors []*CustomError, status int) {
	errorsJSON, err := json.Marshal(&ErrorsResponse{Errors: errors})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}

	w.WriteHeader(status)
	w.Write(errorsJSON)
}

// writeDomainError collapses a service failure to a short message category.
// Store error detail is logged, never shown to the end user.
func writeDomainError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	switch {
	case errors.Is(err, posts.ErrUnauthenticated):
		WriteResponse(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, posts.ErrForbidden):
		WriteResponse(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, posts.ErrNotFound):
		WriteResponse(w, "post not found", http.StatusNotFound)
	case errors.Is(err, posts.ErrMalformedRecord):
		logger.Error(err.Error())
		WriteResponse(w, "malformed record", http.StatusInternalServerError)
	default:
		logger.Error(err.Error())
		WriteResponse(w, "storage unavailable", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.SugaredLogger, v interface{}, status int) {
	respBytes, err := json.Marshal(v)
	if err != nil {
		logger.Error(err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(respBytes)
}

// actorFromRequest returns the acting author stub, or nil when the request
// carries no session. Operations decide whether nil is acceptable.
func actorFromRequest(r *http.Request) *posts.Author {
	sess, err := session.SessionFromContext(r.Context())
	if err != nil || sess.User == nil {
		return nil
	}

	return &posts.Author{ID: sess.User.ID, Username: sess.User.Username, Avatar: sess.User.Avatar}
}
