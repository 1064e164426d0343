package handler

import (
	"net/http"

	"github.com/loopfeed/loopfeed/internal/ctxkeys"
	"github.com/loopfeed/loopfeed/internal/service"
)

type WhisperHandler struct {
	whisperService *service.WhisperService
}

func NewWhisperHandler(whisperService *service.WhisperService) *WhisperHandler {
	return &WhisperHandler{
		whisperService: whisperService,
	}
}

type whisperRequest struct {
	Message string `json:"message"`
}

// Send whispers to the owner of {id}. Guests send anonymously.
func (h *WhisperHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req whisperRequest
	err := decode(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	whisper, err := h.whisperService.Send(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"), req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, whisper)
}

func (h *WhisperHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	whispers, err := h.whisperService.Inbox(r.Context(), ctxkeys.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, whispers)
}

func (h *WhisperHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	err := h.whisperService.MarkRead(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WhisperHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.whisperService.Delete(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
