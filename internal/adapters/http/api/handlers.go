package api

import (
	"encoding/json"
	"net/http"

	"github.com/vaccie/valoverlay-discord/internal/adapters/settings"
)

const defaultRedirectURI = "http://localhost"

func (s *Server) handleGetMapping(w http.ResponseWriter, r *http.Request) {
	overrides, err := s.settings.Overrides()
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, "failed to read mapping")
		return
	}
	writeJSON(w, http.StatusOK, overrides)
}

func (s *Server) handlePostMapping(w http.ResponseWriter, r *http.Request) {
	var overrides map[string]string
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := s.settings.SaveOverrides(overrides); err != nil {
		writeAPIError(w, http.StatusInternalServerError, "failed to save mapping")
		return
	}
	writeJSON(w, http.StatusOK, overrides)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	creds, err := s.settings.Credentials()
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, "failed to read config")
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	var creds settings.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		writeAPIError(w, http.StatusBadRequest, "clientId and clientSecret are required")
		return
	}
	if creds.RedirectURI == "" {
		creds.RedirectURI = defaultRedirectURI
	}
	if err := s.settings.SaveCredentials(creds); err != nil {
		writeAPIError(w, http.StatusInternalServerError, "failed to save config")
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

type statusResponse struct {
	State        string `json:"state"`
	SessionReady bool   `json:"sessionReady"`
	Clients      int    `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		State:        s.engine.State(),
		SessionReady: s.engine.SessionReady(),
		Clients:      s.hub.ClientCount(),
	})
}
