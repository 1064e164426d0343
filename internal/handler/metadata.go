package handler

import (
	"net/http"

	"github.com/loopfeed/loopfeed/internal/service"
)

type MetadataHandler struct {
	metadataService *service.MetadataService
}

func NewMetadataHandler(metadataService *service.MetadataService) *MetadataHandler {
	return &MetadataHandler{
		metadataService: metadataService,
	}
}

type metadataRequest struct {
	URL      string `json:"url" validate:"required,max=2048"`
	Fallback bool   `json:"fallback"`
}

// Fetch returns the Open Graph summary of a link.
func (h *MetadataHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	err := h.metadataService.CheckReferer(r.Referer())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req metadataRequest
	err = decode(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	meta, err := h.metadataService.Fetch(r.Context(), req.URL, req.Fallback)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}
