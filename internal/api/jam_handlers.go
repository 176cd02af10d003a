package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jamsync/jam-server/internal/http/response"
	"github.com/jamsync/jam-server/internal/service"
)

// HostResponse is returned when a host is registered.
type HostResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// JamResponse is returned when a jam is opened.
type JamResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MaxSongCount int       `json:"max_song_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserResponse is returned when a user joins a jam. ID is the identifier the client presents
// when opening the WebSocket.
type UserResponse struct {
	ID    string `json:"id"`
	JamID string `json:"jam_id"`
	Name  string `json:"name"`
}

// TokenResponse is the access token the host's player streams with.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Server) handleCreateHost(w http.ResponseWriter, r *http.Request) {
	host, err := s.services.Jams.CreateHost(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, HostResponse{ID: host.ID, CreatedAt: host.CreatedAt}, s.logger)
}

func (s *Server) handleUpdateCredential(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateCredentialRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.services.Jams.UpdateCredential(r.Context(), chi.URLParam(r, "hostID"), req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.NoContent(w)
}

func (s *Server) handleHostToken(w http.ResponseWriter, r *http.Request) {
	cred, err := s.services.Tokens.HostToken(r.Context(), chi.URLParam(r, "hostID"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	response.Success(w, TokenResponse{AccessToken: cred.AccessToken, ExpiresAt: cred.ExpiresAt}, s.logger)
}

func (s *Server) handleCreateJam(w http.ResponseWriter, r *http.Request) {
	var req service.CreateJamRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	jam, err := s.services.Jams.CreateJam(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, JamResponse{
		ID:           jam.ID,
		Name:         jam.Name,
		MaxSongCount: jam.MaxSongCount,
		CreatedAt:    jam.CreatedAt,
	}, s.logger)
}

func (s *Server) handleJoinJam(w http.ResponseWriter, r *http.Request) {
	var req service.JoinJamRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user, err := s.services.Jams.JoinJam(r.Context(), chi.URLParam(r, "jamID"), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, UserResponse{ID: user.ID, JamID: user.JamID, Name: user.Name}, s.logger)
}

func (s *Server) handleGetJam(w http.ResponseWriter, r *http.Request) {
	summary, err := s.services.Jams.GetJam(r.Context(), chi.URLParam(r, "jamID"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, summary, s.logger)
}
