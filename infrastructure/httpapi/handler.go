// Package httpapi is the HTTP and websocket surface of the service:
// room creation, the join pre-check, and the realtime channel.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"ember-chat/services"
)

type Options struct {
	AllowedOrigins     []string
	MaxCiphertextBytes int
	SessionBufferSize  int
}

// Handler holds the transport dependencies.
type Handler struct {
	log      *slog.Logger
	rooms    services.IRoomService
	chat     services.IChatService
	options  Options
	validate *validator.Validate
}

func New(log *slog.Logger, rooms services.IRoomService, chat services.IChatService, options Options) *Handler {
	return &Handler{
		log:      log,
		rooms:    rooms,
		chat:     chat,
		options:  options,
		validate: validator.New(),
	}
}

// SetupRouter configures and returns the HTTP router.
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/rooms", h.CreateRoom).Methods("POST")
	r.HandleFunc("/rooms/{code}", h.CheckRoom).Methods("GET")
	r.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]string{"error": reason})
}
