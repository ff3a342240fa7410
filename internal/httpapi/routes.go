package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/battlefield-lobby/internal/credentials"
)

type Deps struct {
	Sessions       Sessions
	Credentials    credentials.Store
	WebSocket      http.Handler
	AllowedOrigins []string
	Log            *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler)

	r.Get("/healthz", Healthz)
	r.Post("/login", Login(d.Credentials, log))
	r.Post("/logout", Logout(d.Sessions, log))
	r.Get("/rooms", ListRooms(d.Sessions))
	r.Get("/rooms/{room}", GetRoom(d.Sessions))
	r.Handle("/ws", d.WebSocket)
	return r
}
