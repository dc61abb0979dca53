package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/etienne-dldc/lomasi/core"
)

const minPasswordLength = 4

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Type: "BadRequest", Message: "invalid JSON body"})
		return false
	}
	return true
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Type: "BadRequest", Message: message})
}

// LoginHandler serves POST /login.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req core.LoginRequest
		if !decodeBody(w, r, &req) {
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		switch {
		case req.Email == "" || !strings.Contains(req.Email, "@"):
			badRequest(w, "email must be a valid address")
			return
		case len(req.Password) < minPasswordLength:
			badRequest(w, "password is too short")
			return
		case req.Callback == "":
			badRequest(w, "callback is required")
			return
		}

		res := s.service.Login(r.Context(), requestOrigin(r), req)
		s.metrics.observe("login", string(res.Type))
		writeJSON(w, statusFor(res.Type), res)
	}
}

// AuthenticateHandler serves POST /authenticate.
func (s *Server) AuthenticateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req core.AuthenticateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Token == "" || req.Password == "" {
			badRequest(w, "token and password are required")
			return
		}

		res := s.service.Authenticate(r.Context(), requestOrigin(r), req)
		s.metrics.observe("authenticate", string(res.Type))
		writeJSON(w, statusFor(res.Type), res)
	}
}

// ValidateHandler serves POST /validate.
func (s *Server) ValidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req core.AuthenticateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Token == "" || req.Password == "" {
			badRequest(w, "token and password are required")
			return
		}

		res := s.service.Validate(r.Context(), requestOrigin(r), req)
		s.metrics.observe("validate", string(res.Type))
		writeJSON(w, statusFor(res.Type), res)
	}
}

// RenewHandler serves POST /renew.
func (s *Server) RenewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req core.RenewRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Token == "" || req.Callback == "" {
			badRequest(w, "token and callback are required")
			return
		}

		res := s.service.Renew(r.Context(), requestOrigin(r), req)
		s.metrics.observe("renew", string(res.Type))
		writeJSON(w, statusFor(res.Type), res)
	}
}

// statusFor maps a result kind to an HTTP status. Success kinds are 200,
// internal errors 500 and every enumerated rejection 401, mirroring the
// original transport behavior of the protocol.
func statusFor(kind core.Kind) int {
	switch {
	case kind.Success():
		return http.StatusOK
	case kind == core.KindInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
