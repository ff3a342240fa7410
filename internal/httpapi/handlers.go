package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/battlefield-lobby/internal/credentials"
	"github.com/DoyleJ11/battlefield-lobby/internal/engine"
	"github.com/DoyleJ11/battlefield-lobby/internal/lobby"
	"github.com/DoyleJ11/battlefield-lobby/internal/session"
	"github.com/DoyleJ11/battlefield-lobby/internal/types"
)

const maxBodyBytes = 4 << 10

// Sessions is the part of the session manager the HTTP surface needs.
type Sessions interface {
	Logout(ctx context.Context, connID string) error
	Room(ctx context.Context, room string) (lobby.View, bool, error)
	Rooms(ctx context.Context) ([]session.RoomSummary, error)
}

type LoginRequest struct {
	Role        string `json:"role" validate:"required,oneof=creator host player"`
	DisplayName string `json:"displayName" validate:"required,max=32"`
	Credential  string `json:"credential" validate:"max=128"`
}

type LogoutRequest struct {
	Role         string `json:"role" validate:"required,oneof=creator host player"`
	ConnectionID string `json:"connectionId" validate:"required"`
}

type RoomResponse struct {
	Version    int             `json:"version"`
	NumClients int             `json:"numClients"`
	Room       engine.Snapshot `json:"room"`
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func Login(store credentials.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !decode(w, r, &req) {
			return
		}
		res, err := credentials.Login(r.Context(), store, engine.Role(req.Role), req.DisplayName, req.Credential)
		if err != nil {
			log.Error("login failed", zap.String("role", req.Role), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		log.Info("login", zap.String("role", req.Role), zap.String("name", req.DisplayName), zap.Bool("accepted", res.Accepted))
		writeJSON(w, http.StatusOK, res)
	}
}

func Logout(s Sessions, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LogoutRequest
		if !decode(w, r, &req) {
			return
		}
		err := s.Logout(r.Context(), req.ConnectionID)
		switch {
		case err == nil:
			log.Info("logout", zap.String("role", req.Role), zap.String("conn", req.ConnectionID))
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, engine.ErrUnknownTarget):
			writeError(w, http.StatusNotFound, err)
		default:
			log.Error("logout failed", zap.String("conn", req.ConnectionID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err)
		}
	}
}

func ListRooms(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := s.Rooms(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusOK, rooms)
	}
}

func GetRoom(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := chi.URLParam(r, "room")
		v, ok, err := s.Room(r.Context(), room)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, &engine.Error{Code: engine.CodeNotInRoom, Message: "room not found"})
			return
		}
		writeJSON(w, http.StatusOK, RoomResponse{Version: v.Version, NumClients: v.NumClients, Room: v.Snapshot})
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrMalformed)
		return false
	}
	if err := types.Validate(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, types.Failure(types.MsgError, err).Error)
}
