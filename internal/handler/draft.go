package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/loopfeed/loopfeed/internal/ctxkeys"
	"github.com/loopfeed/loopfeed/internal/draft"
	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/service"
	"github.com/loopfeed/loopfeed/internal/validation"
)

// multipartOverhead is allowed on top of the file size for the form fields.
const multipartOverhead = 1 << 20

// DraftHandler serves authoring sessions: setup fields, cards and publish.
type DraftHandler struct {
	registry      *draft.Registry
	editor        *service.CardEditor
	publisher     *service.PublishService
	loops         *service.LoopService
	users         *service.UserService
	uploadMaxSize int64
}

func NewDraftHandler(
	registry *draft.Registry,
	editor *service.CardEditor,
	publisher *service.PublishService,
	loops *service.LoopService,
	users *service.UserService,
	uploadMaxSize int64,
) *DraftHandler {
	return &DraftHandler{
		registry:      registry,
		editor:        editor,
		publisher:     publisher,
		loops:         loops,
		users:         users,
		uploadMaxSize: uploadMaxSize,
	}
}

type draftCardView struct {
	ID         string               `json:"id"`
	Position   int                  `json:"position"`
	Type       model.CardKind       `json:"type"`
	Content    string               `json:"content"`
	Provider   string               `json:"provider,omitempty"`
	IsUpload   bool                 `json:"is_upload"`
	Pending    bool                 `json:"pending"`
	FileName   string               `json:"file_name,omitempty"`
	PreviewURL string               `json:"preview_url,omitempty"`
	Metadata   *model.EmbedMetadata `json:"metadata,omitempty"`
	Thumbnail  *model.Thumbnail     `json:"thumbnail,omitempty"`
	Changed    bool                 `json:"changed"`
}

type draftView struct {
	ID             string               `json:"id"`
	LoopID         string               `json:"loop_id,omitempty"`
	OriginalLoopID string               `json:"original_loop_id,omitempty"`
	IsRemix        bool                 `json:"is_remix"`
	Title          string               `json:"title"`
	Tagline        string               `json:"tagline"`
	Tags           []string             `json:"tags"`
	Autoplay       bool                 `json:"autoplay"`
	Visibility     string               `json:"visibility"`
	Style          draft.Style          `json:"style"`
	Collaborators  []draft.Collaborator `json:"collaborators"`
	Cards          []draftCardView      `json:"cards"`
	Publishing     bool                 `json:"publishing"`
}

func cardView(d *draft.Draft, pos int, c model.Card, previews map[string]string) draftCardView {
	v := draftCardView{
		ID:         c.CardID(),
		Position:   pos,
		Type:       c.Kind(),
		Content:    model.Content(c),
		Provider:   model.Provider(c),
		IsUpload:   model.IsUpload(c),
		FileName:   model.FileName(c),
		PreviewURL: previews[c.CardID()],
		Metadata:   model.Metadata(c),
		Changed:    d.IsChanged(c.CardID()),
	}
	if src, ok := model.MediaSource(c); ok {
		_, v.Pending = src.(model.PendingFile)
	}
	if vc, ok := c.(model.VideoCard); ok {
		v.Thumbnail = vc.Thumbnail
	}
	return v
}

func (h *DraftHandler) view(r *http.Request, d *draft.Draft) (draftView, error) {
	st := d.Snapshot()
	previews, err := h.loops.PreviewURLs(r.Context(), st.Cards)
	if err != nil {
		return draftView{}, err
	}

	v := draftView{
		ID:             d.ID(),
		LoopID:         st.LoopID,
		OriginalLoopID: st.OriginalLoopID,
		IsRemix:        st.IsRemix,
		Title:          st.Title,
		Tagline:        st.Tagline,
		Tags:           append([]string{}, st.Tags...),
		Autoplay:       st.Autoplay,
		Visibility:     st.Visibility,
		Style:          st.Style,
		Collaborators:  append([]draft.Collaborator{}, st.Collaborators...),
		Cards:          make([]draftCardView, 0, len(st.Cards)),
		Publishing:     d.Publishing(),
	}
	for i, c := range st.Cards {
		v.Cards = append(v.Cards, cardView(d, i, c, previews))
	}
	return v, nil
}

func (h *DraftHandler) writeDraft(w http.ResponseWriter, r *http.Request, status int, d *draft.Draft) {
	v, err := h.view(r, d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

// session returns the authoring session named in the path.
func (h *DraftHandler) session(r *http.Request) (*draft.Draft, error) {
	return h.registry.Get(r.PathValue("sid"), ctxkeys.UserID(r.Context()))
}

func (h *DraftHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	d := h.registry.Open(user.ID, draft.State{Visibility: model.VisibilityPublic})
	h.writeDraft(w, r, http.StatusCreated, d)
}

func (h *DraftHandler) Edit(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	st, err := h.loops.LoadForEdit(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeDraft(w, r, http.StatusCreated, h.registry.Open(user.ID, st))
}

func (h *DraftHandler) Remix(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	st, err := h.loops.LoadForRemix(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeDraft(w, r, http.StatusCreated, h.registry.Open(user.ID, st))
}

func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeDraft(w, r, http.StatusOK, d)
}

func (h *DraftHandler) Discard(w http.ResponseWriter, r *http.Request) {
	err := h.registry.Discard(r.PathValue("sid"), ctxkeys.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type styleRequest struct {
	Theme   string `json:"theme" validate:"max=50"`
	Font    string `json:"font" validate:"max=50"`
	BgColor string `json:"bg_color" validate:"omitempty,hexcolor"`
	Music   string `json:"music" validate:"omitempty,http_url"`
}

type updateDraftRequest struct {
	Title      *string       `json:"title" validate:"omitempty,max=100"`
	Tagline    *string       `json:"tagline" validate:"omitempty,max=200"`
	Autoplay   *bool         `json:"autoplay"`
	Visibility *string       `json:"visibility" validate:"omitempty,oneof=public private unlisted"`
	Style      *styleRequest `json:"style"`
}

// Update sets the setup, style and visibility fields present in the body.
func (h *DraftHandler) Update(w http.ResponseWriter, r *http.Request) {
	d, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateDraftRequest
	err = decode(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.Title != nil {
		d.SetTitle(strings.TrimSpace(*req.Title))
	}
	if req.Tagline != nil {
		d.SetTagline(strings.TrimSpace(*req.Tagline))
	}
	if req.Autoplay != nil {
		d.SetAutoplay(*req.Autoplay)
	}
	if req.Visibility != nil {
		err := d.SetVisibility(*req.Visibility)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Style != nil {
		d.SetStyle(draft.Style{
			Theme:   req.Style.Theme,
			Font:    req.Style.Font,
			BgColor: req.Style.BgColor,
			Music:   req.Style.Music,
		})
	}

	h.writeDraft(w, r, http.StatusOK, d)
}

type tagRequest struct {
	Tag string `json:"tag" validate:"required,max=30"`
}

func (h *DraftHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	d, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req tagRequest
	err = decode(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = d.AddTag(req.Tag)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeDraft(w, r, http.StatusOK, d)
}

func (h *DraftHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	d, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d.RemoveTag(r.PathValue("tag"))
	h.writeDraft(w, r, http.StatusOK, d)
}

type collaboratorsRequest struct {
	UserIDs []string `json:"user_ids" validate:"max=20,dive,required"`
}

// SetCollaborators replaces the collaborator list. The author cannot be
// their own collaborator.
func (h *DraftHandler) SetCollaborators(w http.ResponseWriter, r *http.Request) {
	d, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req collaboratorsRequest
	err = decode(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ids := make([]string, 0, len(req.UserIDs))
	for _, id := range req.UserIDs {
		if id != d.UserID() {
			ids = append(ids, id)
		}
	}
	profiles, err := h.users.ResolveCollaborators(r.Context(), ids)
	if err != nil {
		writeError(w, r, err)
		return
	}

	collaborators := make([]draft.Collaborator, 0, len(profiles))
	for _, p := range profiles {
		collaborators = append(collaborators, draft.Collaborator{UserID: p.UserID, Username: p.Username})
	}
	d.SetCollaborators(collaborators)
	h.writeDraft(w, r, http.StatusOK, d)
}

type cardRequest struct {
	Type          string  `json:"type" validate:"required,oneof=text image video song embed social"`
	Provider      string  `json:"provider" validate:"max=50"`
	Content       string  `json:"content"`
	ThumbnailURL  string  `json:"thumbnail_url" validate:"omitempty,http_url"`
	ThumbnailTime float64 `json:"thumbnail_time" validate:"gte=0"`
}

func (req cardRequest) candidate() service.CardCandidate {
	cand := service.CardCandidate{
		Kind:     model.CardKind(req.Type),
		Provider: req.Provider,
		Text:     req.Content,
	}
	if req.ThumbnailURL != "" {
		cand.Thumbnail = &model.Thumbnail{URL: req.ThumbnailURL, TimeSeconds: req.ThumbnailTime}
	}
	return cand
}

// readCard parses a card candidate from a JSON body or, for uploads, a
// multipart form with the file in "file". The returned close func releases
// the uploaded file.
func (h *DraftHandler) readCard(w http.ResponseWriter, r *http.Request) (service.CardCandidate, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var req cardRequest
		err := decode(w, r, &req)
		if err != nil {
			return service.CardCandidate{}, noop, err
		}
		return req.candidate(), noop, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxSize+multipartOverhead)
	err := r.ParseMultipartForm(32 << 20)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return service.CardCandidate{}, noop, validation.FieldError("file", "File too large.")
		}
		return service.CardCandidate{}, noop, validation.FieldError("file", "Upload could not be read.")
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	req := cardRequest{
		Type:         r.FormValue("type"),
		Provider:     r.FormValue("provider"),
		Content:      r.FormValue("content"),
		ThumbnailURL: r.FormValue("thumbnail_url"),
	}
	if v := r.FormValue("thumbnail_time"); v != "" {
		req.ThumbnailTime, err = strconv.ParseFloat(v, 64)
		if err != nil {
			cleanup()
			return service.CardCandidate{}, noop, validation.FieldError("thumbnail_time", "thumbnail_time must be a number")
		}
	}
	err = validateStruct(&req)
	if err != nil {
		cleanup()
		return service.CardCandidate{}, noop, err
	}
	cand := req.candidate()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return cand, cleanup, nil
	}
	if err != nil {
		cleanup()
		return service.CardCandidate{}, noop, validation.FieldError("file", "Upload could not be read.")
	}
	cand.File = uploadFile(file, header)
	return cand, func() {
		_ = file.Close()
		cleanup()
	}, nil
}

func uploadFile(file multipart.File, header *multipart.FileHeader) *service.UploadFile {
	return &service.UploadFile{
		Reader:       file,
		FileName:     header.Filename,
		Size:         header.Size,
		DeclaredType: header.Header.Get("Content-Type"),
	}
}

func (h *DraftHandler) stage(w http.ResponseWriter, r *http.Request, pos int) {
	d, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cand, done, err := h.readCard(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer done()

	c, err := h.editor.Stage(r.Context(), d, pos, cand)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if pos == service.AppendPosition {
		pos = d.Len() - 1
	}
	previews, err := h.loops.PreviewURLs(r.Context(), []model.Card{c})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSON(w, status, cardView(d, pos, c, previews))
}

// AddCard stages a new card at the end of the draft.
func (h *DraftHandler) AddCard(w http.ResponseWriter, r *http.Request) {
	h.stage(w, r, service.AppendPosition)
}

// ReplaceCard stages a card in place of the one at {pos}.
func (h *DraftHandler) ReplaceCard(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(r.PathValue("pos"))
	if err != nil || pos < 0 {
		writeError(w, r, draft.ErrIndexOutOfRange)
		return
	}
	h.stage(w, r, pos)
}

func (h *DraftHandler) RemoveCard(w http.ResponseWriter, r *http.Request) {
	d, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	pos, err := strconv.Atoi(r.PathValue("pos"))
	if err != nil {
		writeError(w, r, draft.ErrIndexOutOfRange)
		return
	}

	err = h.editor.Remove(d, pos)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeDraft(w, r, http.StatusOK, d)
}

type moveRequest struct {
	From *int `json:"from" validate:"required,gte=0"`
	To   *int `json:"to" validate:"required,gte=0"`
}

func (h *DraftHandler) MoveCard(w http.ResponseWriter, r *http.Request) {
	d, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req moveRequest
	err = decode(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = h.editor.Move(d, *req.From, *req.To)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeDraft(w, r, http.StatusOK, d)
}

type publishRequest struct {
	Draft bool `json:"draft"`
}

// Publish persists the session as a loop and closes it. A failed publish
// keeps the session so the author can fix it and retry.
func (h *DraftHandler) Publish(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	d, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req publishRequest
	if r.ContentLength != 0 {
		err = decode(w, r, &req)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	isEdit := d.Snapshot().IsEdit()
	loop, err := h.publisher.Publish(r.Context(), user.ID, d, req.Draft)
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = h.registry.Discard(d.ID(), user.ID)
	if err != nil {
		slog.Warn("failed to close published session", "error", err, "session_id", d.ID())
	}

	status := http.StatusCreated
	if isEdit {
		status = http.StatusOK
	}
	writeJSON(w, status, loop)
}
