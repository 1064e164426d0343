package handler

import (
	"net/http"

	"github.com/loopfeed/loopfeed/internal/ctxkeys"
	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/service"
)

type FolderHandler struct {
	folderService *service.FolderService
	userService   *service.UserService
}

func NewFolderHandler(folderService *service.FolderService, userService *service.UserService) *FolderHandler {
	return &FolderHandler{
		folderService: folderService,
		userService:   userService,
	}
}

type folderListResponse struct {
	Folders []*model.Folder `json:"folders"`
	System  []*model.Folder `json:"system,omitempty"`
}

// List returns the signed-in user's folders and system folders.
func (h *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := ctxkeys.UserID(r.Context())

	folders, err := h.folderService.List(r.Context(), userID, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	system, err := h.folderService.SystemFolders(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folderListResponse{Folders: folders, System: system})
}

// ByUser returns the folders of {username} the viewer may see.
func (h *FolderHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.userService.ProfileByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	folders, err := h.folderService.List(r.Context(), profile.UserID, ctxkeys.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folderListResponse{Folders: folders})
}

type createFolderRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=public private"`
}

func (h *FolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	err := decode(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	folder, err := h.folderService.Create(r.Context(), ctxkeys.UserID(r.Context()), req.Name, req.Description, req.Visibility)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (h *FolderHandler) View(w http.ResponseWriter, r *http.Request) {
	folder, err := h.folderService.View(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

type updateFolderRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Visibility  *string `json:"visibility" validate:"omitempty,oneof=public private"`
}

func (h *FolderHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateFolderRequest
	err := decode(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	folder, err := h.folderService.Update(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"), service.FolderUpdate{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (h *FolderHandler) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	folder, err := h.folderService.ToggleVisibility(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (h *FolderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.folderService.Delete(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FolderHandler) AddLoop(w http.ResponseWriter, r *http.Request) {
	err := h.folderService.AddLoop(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"), r.PathValue("loopID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FolderHandler) RemoveLoop(w http.ResponseWriter, r *http.Request) {
	err := h.folderService.RemoveLoop(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"), r.PathValue("loopID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
