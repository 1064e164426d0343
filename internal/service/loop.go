package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loopfeed/loopfeed/internal/draft"
	"github.com/loopfeed/loopfeed/internal/markdown"
	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/repository"
	"github.com/loopfeed/loopfeed/internal/storage"
	"github.com/loopfeed/loopfeed/internal/validation"
)

const (
	defaultExploreLimit = 20
	maxExploreLimit     = 50
)

// LoopSummary is a loop as shown in listings.
type LoopSummary struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Tagline    string    `json:"tagline"`
	Tags       []string  `json:"tags"`
	Visibility string    `json:"visibility"`
	Status     string    `json:"status"`
	CoverURL   string    `json:"cover_url,omitempty"`
	IsRemix    bool      `json:"is_remix"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CardView is a persisted card ready for display. Uploaded media is
// replaced by a signed URL.
type CardView struct {
	ID            string               `json:"id"`
	Position      int                  `json:"position"`
	Type          string               `json:"type"`
	Content       string               `json:"content"`
	HTML          string               `json:"html,omitempty"`
	Provider      string               `json:"provider,omitempty"`
	IsUpload      bool                 `json:"is_upload"`
	IsCover       bool                 `json:"is_cover"`
	FileName      string               `json:"file_name,omitempty"`
	Metadata      *model.EmbedMetadata `json:"metadata,omitempty"`
	ThumbnailURL  string               `json:"thumbnail_url,omitempty"`
	ThumbnailTime float64              `json:"thumbnail_time,omitempty"`
}

// LoopView is a loop with its cards.
type LoopView struct {
	LoopSummary
	Autoplay      bool                 `json:"autoplay"`
	Style         draft.Style          `json:"style"`
	Author        string               `json:"author"`
	Cards         []CardView           `json:"cards"`
	Collaborators []draft.Collaborator `json:"collaborators"`
	RemixOf       string               `json:"remix_of,omitempty"`
	IsOwner       bool                 `json:"is_owner"`
}

type LoopService struct {
	repos   repository.Repos
	store   repository.Transactor
	storage storage.Storage
	md      *markdown.Parser
	signer  urlSigner
	access  loopAccess
}

func NewLoopService(
	repos repository.Repos,
	store repository.Transactor,
	objects storage.Storage,
	md *markdown.Parser,
	signedURLExpiry time.Duration,
) *LoopService {
	return &LoopService{
		repos:   repos,
		store:   store,
		storage: objects,
		md:      md,
		signer:  urlSigner{storage: objects, expiry: signedURLExpiry},
		access:  loopAccess{collaborators: repos.Collaborators},
	}
}

// View returns a loop for display to viewerID, who may be empty for guests.
func (s *LoopService) View(ctx context.Context, viewerID, id string) (*LoopView, error) {
	loop, err := s.repos.Loops.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.access.canView(ctx, loop, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLoopNotViewable
	}

	rows, err := s.repos.Cards.ByLoop(ctx, loop.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}

	collaborators, err := s.repos.Collaborators.ByLoop(ctx, loop.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get collaborators: %w", err)
	}

	paths := make([]string, 0, len(rows)+1)
	for _, row := range rows {
		if row.IsUpload {
			paths = append(paths, row.Content)
		}
	}
	if loop.CoverURL != nil {
		paths = append(paths, *loop.CoverURL)
	}
	signed, err := s.signer.signAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	view := &LoopView{
		LoopSummary: summarize(loop, signed),
		Autoplay:    loop.Autoplay,
		Style:       draft.Style{Theme: loop.Theme, Font: loop.Font, BgColor: loop.BgColor, Music: loop.Music},
		Cards:       make([]CardView, 0, len(rows)),
		IsOwner:     viewerID != "" && viewerID == loop.UserID,
	}

	for _, row := range rows {
		cv := CardView{
			ID:            row.ID,
			Position:      row.Position,
			Type:          row.Type,
			Content:       row.Content,
			Provider:      row.Provider,
			IsUpload:      row.IsUpload,
			IsCover:       row.IsCover,
			Metadata:      row.Metadata,
			ThumbnailURL:  row.ThumbnailURL,
			ThumbnailTime: row.ThumbnailTime,
		}
		if url, ok := signed[row.Content]; ok && row.IsUpload {
			cv.Content = url
		}
		if row.FileName != nil {
			cv.FileName = *row.FileName
		}
		if row.Type == string(model.CardText) {
			cv.HTML, err = s.md.RenderCardText(row.Content)
			if err != nil {
				return nil, err
			}
		}
		view.Cards = append(view.Cards, cv)
	}

	view.Collaborators = make([]draft.Collaborator, 0, len(collaborators))
	for _, c := range collaborators {
		view.Collaborators = append(view.Collaborators, draft.Collaborator{UserID: c.CollaboratorID, Username: c.Username})
	}

	author, err := s.repos.Profiles.ByUserID(ctx, loop.UserID)
	if err == nil {
		view.Author = author.Username
	}

	origin, err := s.repos.Remixes.OriginOf(ctx, loop.ID)
	if err == nil {
		view.RemixOf = origin.OriginalLoopID
	} else if !errors.Is(err, repository.ErrRemixNotFound) {
		return nil, fmt.Errorf("failed to get remix origin: %w", err)
	}

	return view, nil
}

func (s *LoopService) ownedLoop(ctx context.Context, userID, id string) (*model.Loop, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	loop, err := s.repos.Loops.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if loop.UserID != userID {
		return nil, ErrNotLoopOwner
	}
	return loop, nil
}

func (s *LoopService) loadCards(ctx context.Context, loopID string) ([]model.Card, error) {
	rows, err := s.repos.Cards.ByLoop(ctx, loopID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}

	cards := make([]model.Card, 0, len(rows))
	for _, row := range rows {
		c, err := model.CardFromRow(row, "")
		if err != nil {
			return nil, fmt.Errorf("failed to read card %s: %w", row.ID, err)
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// LoadForEdit returns the authoring state of a loop owned by userID.
func (s *LoopService) LoadForEdit(ctx context.Context, userID, id string) (draft.State, error) {
	loop, err := s.ownedLoop(ctx, userID, id)
	if err != nil {
		return draft.State{}, err
	}

	cards, err := s.loadCards(ctx, loop.ID)
	if err != nil {
		return draft.State{}, err
	}

	collaborators, err := s.repos.Collaborators.ByLoop(ctx, loop.ID)
	if err != nil {
		return draft.State{}, fmt.Errorf("failed to get collaborators: %w", err)
	}

	st := stateFromLoop(loop, cards)
	st.LoopID = loop.ID
	st.IsRemix = loop.IsRemix
	for _, c := range collaborators {
		st.Collaborators = append(st.Collaborators, draft.Collaborator{UserID: c.CollaboratorID, Username: c.Username})
	}

	origin, err := s.repos.Remixes.OriginOf(ctx, loop.ID)
	if err == nil {
		st.OriginalLoopID = origin.OriginalLoopID
	}

	slog.Info("loop loaded for edit", "loop_id", loop.ID, "user_id", userID, "cards", len(cards))
	return st, nil
}

// LoadForRemix returns a fresh authoring state copied from a public loop or
// one of userID's own loops. Uploaded media keeps pointing at the original
// objects until the remix is published.
func (s *LoopService) LoadForRemix(ctx context.Context, userID, id string) (draft.State, error) {
	if userID == "" {
		return draft.State{}, ErrUnauthorized
	}
	loop, err := s.repos.Loops.ByID(ctx, id)
	if err != nil {
		return draft.State{}, err
	}
	owned := loop.UserID == userID
	if !owned && (loop.Status != model.LoopStatusNormal || !loop.IsPublic()) {
		return draft.State{}, ErrRemixNotAllowed
	}

	cards, err := s.loadCards(ctx, loop.ID)
	if err != nil {
		return draft.State{}, err
	}

	st := stateFromLoop(loop, cards)
	st.Title = loop.Title + " (Remix)"
	st.Visibility = model.VisibilityPublic
	st.IsRemix = true
	st.OriginalLoopID = loop.ID

	slog.Info("loop loaded for remix", "loop_id", loop.ID, "user_id", userID)
	return st, nil
}

func stateFromLoop(loop *model.Loop, cards []model.Card) draft.State {
	return draft.State{
		Title:      loop.Title,
		Tagline:    loop.Tagline,
		Tags:       append([]string{}, loop.Tags...),
		Autoplay:   loop.Autoplay,
		Visibility: loop.Visibility,
		Style:      draft.Style{Theme: loop.Theme, Font: loop.Font, BgColor: loop.BgColor, Music: loop.Music},
		Cards:      cards,
	}
}

// PreviewURLs signs the stored media of cards, keyed by card local id.
func (s *LoopService) PreviewURLs(ctx context.Context, cards []model.Card) (map[string]string, error) {
	paths := make([]string, 0, len(cards))
	for _, c := range cards {
		src, ok := model.MediaSource(c)
		if !ok {
			continue
		}
		if obj, ok := src.(model.StoredObject); ok {
			paths = append(paths, obj.Path)
		}
	}

	signed, err := s.signer.signAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	previews := make(map[string]string, len(signed))
	for _, c := range cards {
		if url, ok := signed[model.Content(c)]; ok && model.IsUpload(c) {
			previews[c.CardID()] = url
		}
	}
	return previews, nil
}

func (s *LoopService) transition(ctx context.Context, userID, id, action string) (*model.Loop, error) {
	loop, err := s.ownedLoop(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	next, err := model.NextStatus(loop.Status, action)
	if err != nil {
		return nil, err
	}

	err = s.repos.Loops.UpdateStatus(ctx, loop.ID, next)
	if err != nil {
		return nil, fmt.Errorf("failed to update loop status: %w", err)
	}

	slog.Info("loop status changed", "loop_id", loop.ID, "user_id", userID, "from", loop.Status, "to", next)
	loop.Status = next
	return loop, nil
}

func (s *LoopService) Archive(ctx context.Context, userID, id string) (*model.Loop, error) {
	return s.transition(ctx, userID, id, model.LoopActionArchive)
}

func (s *LoopService) Restore(ctx context.Context, userID, id string) (*model.Loop, error) {
	return s.transition(ctx, userID, id, model.LoopActionRestore)
}

func (s *LoopService) Trash(ctx context.Context, userID, id string) (*model.Loop, error) {
	return s.transition(ctx, userID, id, model.LoopActionTrash)
}

func (s *LoopService) DiscardDraft(ctx context.Context, userID, id string) (*model.Loop, error) {
	return s.transition(ctx, userID, id, model.LoopActionDiscard)
}

// Delete discards a draft or permanently removes a trashed loop.
func (s *LoopService) Delete(ctx context.Context, userID, id string) error {
	loop, err := s.ownedLoop(ctx, userID, id)
	if err != nil {
		return err
	}
	if loop.Status == model.LoopStatusDraft {
		_, err := s.DiscardDraft(ctx, userID, id)
		return err
	}
	return s.DeletePermanently(ctx, userID, id)
}

// DeletePermanently removes a trashed loop, its rows and its media objects.
func (s *LoopService) DeletePermanently(ctx context.Context, userID, id string) error {
	loop, err := s.ownedLoop(ctx, userID, id)
	if err != nil {
		return err
	}
	if loop.Status != model.LoopStatusTrashed {
		return fmt.Errorf("%w: only trashed loops can be deleted", model.ErrInvalidTransition)
	}

	media, err := s.repos.Media.ByLoop(ctx, loop.ID)
	if err != nil {
		return fmt.Errorf("failed to get loop media: %w", err)
	}

	err = s.store.InTx(ctx, func(tx repository.Repos) error {
		err := tx.Media.DeleteByLoop(ctx, loop.ID)
		if err != nil {
			return err
		}
		return tx.Loops.Delete(ctx, loop.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete loop: %w", err)
	}

	for _, m := range media {
		if model.IsForeignObject(m.FileURL, userID) {
			continue
		}
		err := s.storage.Delete(ctx, m.FileURL)
		if err != nil {
			slog.Error("failed to delete media object", "error", err, "path", m.FileURL, "loop_id", loop.ID)
		}
	}

	slog.Info("loop deleted", "loop_id", loop.ID, "user_id", userID, "media", len(media))
	return nil
}

// Explore lists public loops, newest first, optionally filtered by tag.
func (s *LoopService) Explore(ctx context.Context, tag string, limit, offset int) ([]LoopSummary, error) {
	if limit <= 0 {
		limit = defaultExploreLimit
	}
	limit = min(limit, maxExploreLimit)
	offset = max(offset, 0)

	loops, err := s.repos.Loops.Explore(ctx, draft.NormalizeTag(tag), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list loops: %w", err)
	}
	return s.summaries(ctx, loops)
}

// ByStatus lists a user's archived, trashed or draft loops.
func (s *LoopService) ByStatus(ctx context.Context, userID, status string) ([]LoopSummary, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	switch status {
	case model.LoopStatusArchived, model.LoopStatusTrashed, model.LoopStatusDraft:
	default:
		return nil, validation.FieldError("status", fmt.Sprintf("unknown library %q", status))
	}

	loops, err := s.repos.Loops.ByUserStatus(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list loops: %w", err)
	}
	return s.summaries(ctx, loops)
}

// ByUser lists the published loops of username. Only the owner sees
// private and unlisted ones.
func (s *LoopService) ByUser(ctx context.Context, username, viewerID string) ([]LoopSummary, error) {
	profile, err := s.repos.Profiles.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	loops, err := s.repos.Loops.ByUser(ctx, profile.UserID, profile.UserID != viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loops: %w", err)
	}
	return s.summaries(ctx, loops)
}

func (s *LoopService) summaries(ctx context.Context, loops []*model.Loop) ([]LoopSummary, error) {
	covers := make([]string, 0, len(loops))
	for _, l := range loops {
		if l.CoverURL != nil {
			covers = append(covers, *l.CoverURL)
		}
	}
	signed, err := s.signer.signAll(ctx, covers)
	if err != nil {
		return nil, err
	}

	out := make([]LoopSummary, 0, len(loops))
	for _, l := range loops {
		out = append(out, summarize(l, signed))
	}
	return out, nil
}

func summarize(l *model.Loop, signed map[string]string) LoopSummary {
	sum := LoopSummary{
		ID:         l.ID,
		UserID:     l.UserID,
		Title:      l.Title,
		Tagline:    l.Tagline,
		Tags:       append([]string{}, l.Tags...),
		Visibility: l.Visibility,
		Status:     l.Status,
		IsRemix:    l.IsRemix,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
	if l.CoverURL != nil {
		sum.CoverURL = *l.CoverURL
		if url, ok := signed[*l.CoverURL]; ok {
			sum.CoverURL = url
		}
	}
	return sum
}
