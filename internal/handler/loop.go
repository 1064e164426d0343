package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/loopfeed/loopfeed/internal/ctxkeys"
	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/service"
)

type LoopHandler struct {
	loopService *service.LoopService
}

func NewLoopHandler(loopService *service.LoopService) *LoopHandler {
	return &LoopHandler{
		loopService: loopService,
	}
}

// Explore lists public loops. Query: tag, limit, offset.
func (h *LoopHandler) Explore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	loops, err := h.loopService.Explore(r.Context(), q.Get("tag"), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loops)
}

func (h *LoopHandler) View(w http.ResponseWriter, r *http.Request) {
	loop, err := h.loopService.View(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loop)
}

func (h *LoopHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	loops, err := h.loopService.ByUser(r.Context(), r.PathValue("username"), ctxkeys.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loops)
}

// Library lists the signed-in user's archived, trashed or draft loops.
func (h *LoopHandler) Library(w http.ResponseWriter, r *http.Request) {
	loops, err := h.loopService.ByStatus(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loops)
}

type transitionFunc func(ctx context.Context, userID, id string) (*model.Loop, error)

func (h *LoopHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	loop, err := fn(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loop)
}

func (h *LoopHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.loopService.Archive)
}

func (h *LoopHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.loopService.Restore)
}

func (h *LoopHandler) Trash(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.loopService.Trash)
}

// Delete discards a draft or permanently deletes a trashed loop.
func (h *LoopHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.loopService.Delete(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
