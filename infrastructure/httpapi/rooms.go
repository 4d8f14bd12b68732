package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ember-chat/domain"
	"ember-chat/errors"
)

// expiryPresets are the offered room lifetimes; anything else must be an
// explicit RFC 3339 instant.
var expiryPresets = map[string]time.Duration{
	"10m": 10 * time.Minute,
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
}

type createRoomRequest struct {
	Kind   string `json:"kind" validate:"required,oneof=single group"`
	Expiry string `json:"expiry" validate:"required"`
}

type roomResponse struct {
	Code      string          `json:"code"`
	Kind      domain.RoomKind `json:"kind"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// CreateRoom handles POST /rooms.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "kind must be single or group and expiry is required")
		return
	}

	expiresAt, err := resolveExpiry(req.Expiry, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "expiry must be a preset (10m, 1h, 24h) or an RFC 3339 instant")
		return
	}

	room, err := h.rooms.Create(r.Context(), domain.RoomKind(req.Kind), expiresAt)
	switch {
	case stderrors.Is(err, errors.ErrInvalidExpiry):
		writeError(w, http.StatusBadRequest, "expiry must be strictly in the future and within 30 days")
	case stderrors.Is(err, errors.ErrInvalidKind):
		writeError(w, http.StatusBadRequest, "kind must be single or group")
	case err != nil:
		h.log.Error("Room creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create room")
	default:
		writeJSON(w, http.StatusCreated, roomResponse{
			Code:      room.Code,
			Kind:      room.Kind,
			ExpiresAt: room.ExpiresAt,
		})
	}
}

// CheckRoom handles GET /rooms/{code}, the join pre-check. Not-found and
// expired are distinct statuses; an expired hit deletes the room.
func (h *Handler) CheckRoom(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if !domain.ValidCode(code) {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	room, err := h.rooms.Check(r.Context(), code)
	switch {
	case stderrors.Is(err, errors.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room not found")
	case stderrors.Is(err, errors.ErrRoomExpired):
		writeError(w, http.StatusGone, "room expired")
	case err != nil:
		h.log.Error("Room check failed", "room", code, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check room")
	default:
		writeJSON(w, http.StatusOK, roomResponse{
			Code:      room.Code,
			Kind:      room.Kind,
			ExpiresAt: room.ExpiresAt,
		})
	}
}

func resolveExpiry(expiry string, now time.Time) (time.Time, error) {
	if preset, ok := expiryPresets[expiry]; ok {
		return now.Add(preset), nil
	}
	return time.Parse(time.RFC3339, expiry)
}
