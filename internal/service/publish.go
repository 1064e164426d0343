package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loopfeed/loopfeed/internal/draft"
	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/repository"
	"github.com/loopfeed/loopfeed/internal/saga"
	"github.com/loopfeed/loopfeed/internal/storage"
	"github.com/loopfeed/loopfeed/internal/validation"
)

var (
	fileNameSpaceRe   = regexp.MustCompile(`\s+`)
	fileNameInvalidRe = regexp.MustCompile(`[^\w.-]`)
)

// PublishService turns a draft into a persisted loop.
type PublishService struct {
	repos          repository.Repos
	store          repository.Transactor
	storage        storage.Storage
	staging        *draft.Staging
	emails         *EmailService
	publishMaxSize int64
	now            func() time.Time
}

func NewPublishService(
	repos repository.Repos,
	store repository.Transactor,
	objects storage.Storage,
	staging *draft.Staging,
	emails *EmailService,
	publishMaxSize int64,
) *PublishService {
	return &PublishService{
		repos:          repos,
		store:          store,
		storage:        objects,
		staging:        staging,
		emails:         emails,
		publishMaxSize: publishMaxSize,
		now:            time.Now,
	}
}

// Preflight checks what can be checked without touching storage or the
// database. The returned error names the field and wizard step to fix.
func Preflight(st draft.State) error {
	if len(st.Cards) == 0 {
		return validation.StepError("cards", "Add at least one card.", validation.StepCards)
	}
	if strings.TrimSpace(st.Title) == "" {
		return validation.StepError("title", "Title is required.", validation.StepSetup)
	}
	if strings.TrimSpace(st.Tagline) == "" {
		return validation.StepError("tagline", "Tagline is required.", validation.StepSetup)
	}
	return nil
}

// attempt is the state of one publish call.
type attempt struct {
	userID string
	state  draft.State
	saga   *saga.Saga
	stamp  int64
	used   map[string]bool
}

// Publish persists d for userID, as a draft when asDraft is set. Objects
// uploaded by a failed attempt are removed again before the error returns.
func (s *PublishService) Publish(ctx context.Context, userID string, d *draft.Draft, asDraft bool) (*model.Loop, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if d.UserID() != userID {
		return nil, ErrForbidden
	}

	st := d.Snapshot()
	err := Preflight(st)
	if err != nil {
		return nil, err
	}

	err = d.BeginPublish()
	if err != nil {
		return nil, err
	}
	defer d.EndPublish()

	var (
		existing      *model.Loop
		oldMedia      []*model.MediaUpload
		previousUsers map[string]bool
	)
	if st.IsEdit() {
		existing, err = s.repos.Loops.ByID(ctx, st.LoopID)
		if err != nil {
			return nil, err
		}
		if existing.UserID != userID {
			return nil, ErrNotLoopOwner
		}

		oldMedia, err = s.repos.Media.ByLoop(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get loop media: %w", err)
		}

		previous, err := s.repos.Collaborators.ByLoop(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get collaborators: %w", err)
		}
		previousUsers = make(map[string]bool, len(previous))
		for _, c := range previous {
			previousUsers[c.CollaboratorID] = true
		}
	}

	a := &attempt{
		userID: userID,
		state:  st,
		saga:   saga.New(),
		stamp:  s.now().UnixMilli(),
		used:   map[string]bool{},
	}

	loop, err := s.run(ctx, a, existing, asDraft)
	if err != nil {
		undone := a.saga.Len()
		cerr := a.saga.Compensate(context.WithoutCancel(ctx))
		if cerr != nil {
			slog.Error("publish compensation incomplete", "error", cerr, "user_id", userID)
		}
		slog.Warn("publish failed", "error", err, "user_id", userID, "draft_id", d.ID(), "undone", undone)
		return nil, err
	}
	a.saga.Forget()

	if existing != nil {
		s.deleteUnreferenced(ctx, userID, oldMedia, loop.ID)
	}
	if !asDraft {
		s.notifyCollaborators(ctx, userID, loop, st.Collaborators, previousUsers)
	}

	slog.Info("loop published",
		"loop_id", loop.ID,
		"user_id", userID,
		"status", loop.Status,
		"cards", len(st.Cards),
		"edit", existing != nil,
		"remix", loop.IsRemix,
	)
	return loop, nil
}

func (s *PublishService) run(ctx context.Context, a *attempt, existing *model.Loop, asDraft bool) (*model.Loop, error) {
	cards := make([]model.Card, len(a.state.Cards))
	media := make([]*model.MediaUpload, len(a.state.Cards))

	for i, c := range a.state.Cards {
		resolved, err := s.resolveMedia(ctx, a, i, c)
		if err != nil {
			return nil, err
		}
		cards[i] = resolved
		media[i] = mediaRecord(a.userID, resolved)
	}

	loop := &model.Loop{
		UserID:     a.userID,
		Title:      strings.TrimSpace(a.state.Title),
		Tagline:    strings.TrimSpace(a.state.Tagline),
		Tags:       model.StringList(append([]string{}, a.state.Tags...)),
		Autoplay:   a.state.Autoplay,
		Visibility: a.state.Visibility,
		Theme:      a.state.Style.Theme,
		Font:       a.state.Style.Font,
		BgColor:    a.state.Style.BgColor,
		Music:      a.state.Style.Music,
		IsRemix:    a.state.IsRemix,
		Status:     model.LoopStatusNormal,
	}
	if !model.ValidVisibility(loop.Visibility) {
		loop.Visibility = model.VisibilityPublic
	}
	if asDraft {
		loop.Status = model.LoopStatusDraft
		loop.Visibility = model.VisibilityUnlisted
	}
	if first := cards[0]; first.Kind().QualifiesAsCover() {
		cover := model.Content(first)
		loop.CoverURL = &cover
	}

	collaboratorIDs := make([]string, 0, len(a.state.Collaborators))
	for _, c := range a.state.Collaborators {
		if c.UserID != a.userID {
			collaboratorIDs = append(collaboratorIDs, c.UserID)
		}
	}

	err := s.store.InTx(ctx, func(tx repository.Repos) error {
		if existing != nil {
			loop.ID = existing.ID
			loop.CreatedAt = existing.CreatedAt
			loop.IsRemix = existing.IsRemix

			err := tx.Loops.Update(ctx, loop)
			if err != nil {
				return fmt.Errorf("failed to update loop: %w", err)
			}
			err = tx.Media.DeleteByLoop(ctx, loop.ID)
			if err != nil {
				return fmt.Errorf("failed to delete old media records: %w", err)
			}
			err = tx.Cards.DeleteByLoop(ctx, loop.ID)
			if err != nil {
				return fmt.Errorf("failed to delete old cards: %w", err)
			}
		} else {
			loop.ID = uuid.New().String()
			err := tx.Loops.Create(ctx, loop)
			if err != nil {
				return fmt.Errorf("failed to create loop: %w", err)
			}
		}

		for i, c := range cards {
			row, err := model.NewCardRow(c, loop.ID, i)
			if err != nil {
				return err
			}
			err = tx.Cards.Create(ctx, row)
			if err != nil {
				return fmt.Errorf("failed to insert card %d: %w", i, err)
			}

			m := media[i]
			if m == nil {
				continue
			}
			m.LoopCardID = &row.ID
			err = tx.Media.Create(ctx, m)
			if err != nil {
				return fmt.Errorf("failed to insert media record: %w", err)
			}
			err = tx.Cards.SetMediaUpload(ctx, row.ID, m.ID)
			if err != nil {
				return fmt.Errorf("failed to link media record: %w", err)
			}
		}

		err := tx.Collaborators.Replace(ctx, loop.ID, a.userID, collaboratorIDs)
		if err != nil {
			return fmt.Errorf("failed to save collaborators: %w", err)
		}

		if existing == nil && a.state.IsRemix && a.state.OriginalLoopID != "" && !asDraft {
			err = tx.Remixes.Create(ctx, &model.Remix{
				OriginalLoopID: a.state.OriginalLoopID,
				RemixLoopID:    loop.ID,
				RemixedBy:      a.userID,
			})
			if err != nil {
				return fmt.Errorf("failed to record remix: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return loop, nil
}

// resolveMedia uploads pending files and duplicates media owned by someone
// else, returning the card with a stored object source.
func (s *PublishService) resolveMedia(ctx context.Context, a *attempt, i int, c model.Card) (model.Card, error) {
	src, ok := model.MediaSource(c)
	if !ok {
		return c, nil
	}

	switch v := src.(type) {
	case model.LinkSource:
		return c, nil

	case model.PendingFile:
		obj, err := s.upload(ctx, a, v)
		if err != nil {
			return nil, err
		}
		return model.WithSource(c, obj)

	case model.StoredObject:
		freshRemix := a.state.IsRemix && !a.state.IsEdit()
		if !model.IsForeignObject(v.Path, a.userID) && !freshRemix {
			return c, nil
		}
		obj, err := s.duplicate(ctx, a, i, v)
		if err != nil {
			return nil, err
		}
		return model.WithSource(c, obj)
	}
	return nil, fmt.Errorf("unhandled media source %T", src)
}

func (s *PublishService) upload(ctx context.Context, a *attempt, p model.PendingFile) (model.StoredObject, error) {
	f, err := s.staging.Open(p)
	if err != nil {
		return model.StoredObject{}, err
	}
	defer f.Close()

	mimeType, err := validation.ValidateFile(f, p.Size, p.MimeType, validation.PublishConstraints(s.publishMaxSize))
	if err != nil {
		return model.StoredObject{}, validation.StepError("cards", fmt.Sprintf("%s: %s", p.FileName, err), validation.StepCards)
	}
	_, err = f.Seek(0, io.SeekStart)
	if err != nil {
		return model.StoredObject{}, fmt.Errorf("failed to rewind staged file: %w", err)
	}

	key := a.claim(fmt.Sprintf("%s%d-%s", model.UserMediaPrefix(a.userID), a.stamp, sanitizeFileName(p.FileName)))
	err = s.storage.Save(ctx, key, f, p.Size, mimeType)
	if err != nil {
		return model.StoredObject{}, fmt.Errorf("failed to upload %s: %w", p.FileName, err)
	}
	a.saga.Push("delete "+key, func(ctx context.Context) error {
		return s.storage.Delete(ctx, key)
	})

	return model.StoredObject{
		Path:     key,
		FileName: p.FileName,
		MimeType: mimeType,
		Size:     p.Size,
	}, nil
}

func (s *PublishService) duplicate(ctx context.Context, a *attempt, i int, obj model.StoredObject) (model.StoredObject, error) {
	key := a.claim(fmt.Sprintf("%sremix-%d-%d%s", model.UserMediaPrefix(a.userID), a.stamp, i, path.Ext(obj.Path)))
	err := s.storage.Copy(ctx, obj.Path, key)
	if err != nil {
		return model.StoredObject{}, fmt.Errorf("failed to copy remixed media: %w", err)
	}
	a.saga.Push("delete "+key, func(ctx context.Context) error {
		return s.storage.Delete(ctx, key)
	})

	obj.Path = key
	obj.MediaUploadID = ""
	return obj, nil
}

// claim returns key, or key with a counter when this attempt already used it.
func (a *attempt) claim(key string) string {
	candidate := key
	for n := 1; a.used[candidate]; n++ {
		ext := path.Ext(key)
		candidate = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(key, ext), n, ext)
	}
	a.used[candidate] = true
	return candidate
}

func sanitizeFileName(name string) string {
	name = fileNameSpaceRe.ReplaceAllString(path.Base(name), "-")
	name = fileNameInvalidRe.ReplaceAllString(name, "")
	if name == "" || name == "." {
		return "file"
	}
	return name
}

func mediaRecord(userID string, c model.Card) *model.MediaUpload {
	src, ok := model.MediaSource(c)
	if !ok {
		return nil
	}
	obj, ok := src.(model.StoredObject)
	if !ok {
		return nil
	}

	m := &model.MediaUpload{
		UserID:    userID,
		FileName:  obj.FileName,
		FileURL:   obj.Path,
		FileType:  obj.MimeType,
		SizeBytes: obj.Size,
	}
	if v, ok := c.(model.VideoCard); ok && v.Thumbnail != nil {
		m.ThumbnailURL = v.Thumbnail.URL
	}
	return m
}

// deleteUnreferenced removes objects the loop pointed at before this edit
// and no longer uses. Objects outside the owner's namespace are left alone.
func (s *PublishService) deleteUnreferenced(ctx context.Context, userID string, oldMedia []*model.MediaUpload, loopID string) {
	if len(oldMedia) == 0 {
		return
	}

	current, err := s.repos.Media.ByLoop(ctx, loopID)
	if err != nil {
		slog.Error("failed to list media after publish", "error", err, "loop_id", loopID)
		return
	}
	inUse := make(map[string]bool, len(current))
	for _, m := range current {
		inUse[m.FileURL] = true
	}

	for _, m := range oldMedia {
		if inUse[m.FileURL] || model.IsForeignObject(m.FileURL, userID) {
			continue
		}
		err := s.storage.Delete(ctx, m.FileURL)
		if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			slog.Error("failed to delete replaced media", "error", err, "path", m.FileURL, "loop_id", loopID)
		}
	}
}

func (s *PublishService) notifyCollaborators(ctx context.Context, userID string, loop *model.Loop, collaborators []draft.Collaborator, previous map[string]bool) {
	if s.emails == nil || len(collaborators) == 0 {
		return
	}

	inviter := "Someone"
	profile, err := s.repos.Profiles.ByUserID(ctx, userID)
	if err == nil {
		inviter = profile.Username
	}

	for _, c := range collaborators {
		if c.UserID == userID || previous[c.UserID] {
			continue
		}
		user, err := s.repos.Users.ByID(ctx, c.UserID)
		if err != nil {
			slog.Warn("collaborator not found for notification", "error", err, "user_id", c.UserID)
			continue
		}
		err = s.emails.SendCollaboratorNotification(ctx, user.Email, inviter, loop.ID, loop.Title)
		if err != nil {
			slog.Error("failed to notify collaborator", "error", err, "user_id", c.UserID, "loop_id", loop.ID)
		}
	}
}
