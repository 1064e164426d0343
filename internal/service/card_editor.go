package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/loopfeed/loopfeed/internal/draft"
	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/validation"
)

// AppendPosition stages a candidate as a new last card.
const AppendPosition = -1

// UploadFile is a file submitted with a card candidate.
type UploadFile struct {
	Reader       io.ReadSeeker
	FileName     string
	Size         int64
	DeclaredType string
}

// CardCandidate is what the author submits for one card before it is staged.
type CardCandidate struct {
	Kind      model.CardKind
	Provider  string
	Text      string // card text, or the link for link based cards
	File      *UploadFile
	Thumbnail *model.Thumbnail
}

func (c CardCandidate) isUpload() bool {
	return c.Provider == model.ProviderUpload || c.File != nil
}

// CardEditor validates card candidates and stages them into drafts.
type CardEditor struct {
	staging       *draft.Staging
	metadata      MetadataFetcher
	uploadMaxSize int64
}

func NewCardEditor(staging *draft.Staging, metadata MetadataFetcher, uploadMaxSize int64) *CardEditor {
	if uploadMaxSize <= 0 {
		uploadMaxSize = validation.DefaultUploadMaxSize
	}
	return &CardEditor{
		staging:       staging,
		metadata:      metadata,
		uploadMaxSize: uploadMaxSize,
	}
}

// Stage validates cand and puts it at pos in d, or appends it when pos is
// AppendPosition. A replaced card keeps its local id and is marked changed
// only when its content differs.
func (e *CardEditor) Stage(ctx context.Context, d *draft.Draft, pos int, cand CardCandidate) (model.Card, error) {
	var existing model.Card
	if pos != AppendPosition {
		c, err := d.Card(pos)
		if err != nil {
			return nil, err
		}
		existing = c
	}

	card, err := e.build(ctx, cand, existing)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		card = d.AppendCard(card)
		d.MarkChanged(card.CardID())
		slog.Debug("card staged", "draft_id", d.ID(), "type", card.Kind(), "local_id", card.CardID())
		return card, nil
	}

	old, replaced, err := d.ReplaceCard(pos, card)
	if err != nil {
		e.staging.Release(card)
		return nil, err
	}
	if !model.SameContent(old, replaced) {
		d.MarkChanged(replaced.CardID())
	}
	if stagedPath(old) != stagedPath(replaced) {
		e.staging.Release(old)
	}

	slog.Debug("card replaced", "draft_id", d.ID(), "type", replaced.Kind(), "local_id", replaced.CardID(), "position", pos)
	return replaced, nil
}

// Remove deletes the card at pos and frees its staged file.
func (e *CardEditor) Remove(d *draft.Draft, pos int) error {
	old, err := d.RemoveCard(pos)
	if err != nil {
		return err
	}
	e.staging.Release(old)
	return nil
}

// Move reorders the cards of d.
func (e *CardEditor) Move(d *draft.Draft, from, to int) error {
	return d.MoveCard(from, to)
}

func stagedPath(c model.Card) string {
	src, ok := model.MediaSource(c)
	if !ok {
		return ""
	}
	if p, ok := src.(model.PendingFile); ok {
		return p.StagedPath
	}
	return ""
}

func (e *CardEditor) build(ctx context.Context, cand CardCandidate, existing model.Card) (model.Card, error) {
	switch cand.Kind {
	case model.CardText:
		err := validation.ValidateCardText(cand.Text)
		if err != nil {
			return nil, validation.FieldError("text", capitalize(err.Error()))
		}
		return model.TextCard{Text: cand.Text}, nil

	case model.CardImage, model.CardVideo, model.CardSong:
		return e.buildMedia(ctx, cand, existing)

	case model.CardEmbed:
		if !validation.IsHTTPURL(cand.Text) {
			return nil, validation.FieldError("content", "Enter a valid link.")
		}
		meta, err := e.metadata.Fetch(ctx, cand.Text, false)
		if err != nil {
			slog.Warn("embed metadata fetch failed", "error", err, "url", cand.Text)
			return nil, validation.FieldError("content", "Could not fetch metadata.")
		}
		return model.EmbedCard{URL: cand.Text, Metadata: meta}, nil

	case model.CardSocial:
		platform, ok := validation.SocialPlatform(cand.Text)
		if !ok {
			return nil, validation.FieldError("content", "Unsupported social link.")
		}
		return model.SocialCard{URL: cand.Text, Platform: platform}, nil
	}
	return nil, validation.FieldError("type", fmt.Sprintf("Unknown card type %q.", cand.Kind))
}

func (e *CardEditor) buildMedia(ctx context.Context, cand CardCandidate, existing model.Card) (model.Card, error) {
	var (
		src      model.Source
		provider string
	)

	switch {
	case cand.File != nil:
		pending, err := e.stageUpload(cand.Kind, cand.File)
		if err != nil {
			return nil, err
		}
		src, provider = pending, model.ProviderUpload

	case cand.isUpload():
		kept, ok := keptUpload(cand.Kind, existing)
		if !ok {
			return nil, validation.FieldError("file", "Choose a file to upload.")
		}
		src, provider = kept, model.ProviderUpload

	default:
		link, p, err := resolveLink(cand)
		if err != nil {
			return nil, err
		}
		src, provider = model.LinkSource{URL: link}, p
	}

	switch cand.Kind {
	case model.CardImage:
		return model.ImageCard{Provider: provider, Source: src}, nil
	case model.CardVideo:
		return model.VideoCard{Provider: provider, Source: src, Thumbnail: cand.Thumbnail}, nil
	default:
		return model.SongCard{Provider: provider, Source: src}, nil
	}
}

// keptUpload returns the uploaded media of the card being replaced so an
// edit that does not pick a new file keeps the old one.
func keptUpload(kind model.CardKind, existing model.Card) (model.Source, bool) {
	if existing == nil || existing.Kind() != kind || !model.IsUpload(existing) {
		return nil, false
	}
	src, _ := model.MediaSource(existing)
	return src, true
}

func resolveLink(cand CardCandidate) (link, provider string, err error) {
	switch cand.Kind {
	case model.CardImage:
		if !validation.IsTrustedImageURL(cand.Text) {
			return "", "", validation.FieldError("content", "Untrusted image source. Please upload or use a trusted service.")
		}
		return cand.Text, cand.Provider, nil

	case model.CardVideo:
		embed, ok := validation.VideoEmbedURL(cand.Text)
		if !ok {
			return "", "", validation.FieldError("content", "Unsupported video link. Use YouTube, Vimeo, or upload.")
		}
		return embed, videoProvider(embed), nil

	default:
		embed, p, ok := validation.SongEmbedURL(cand.Text)
		if !ok {
			return "", "", validation.FieldError("content", "Unsupported song link. Use Spotify, Apple Music, SoundCloud, or upload.")
		}
		return embed, p, nil
	}
}

func videoProvider(embed string) string {
	if strings.HasPrefix(embed, "https://player.vimeo.com/") {
		return "Vimeo"
	}
	return "YouTube"
}

// stageUpload checks the file against the editor limits and copies it into
// the staging area. Rejected files never reach the disk.
func (e *CardEditor) stageUpload(kind model.CardKind, f *UploadFile) (model.PendingFile, error) {
	constraints, err := validation.UploadConstraints(kind, e.uploadMaxSize)
	if err != nil {
		return model.PendingFile{}, validation.FieldError("file", capitalize(err.Error()))
	}

	mimeType, err := validation.ValidateFile(f.Reader, f.Size, f.DeclaredType, constraints)
	if err != nil {
		return model.PendingFile{}, e.fileError(kind, err)
	}

	_, err = f.Reader.Seek(0, io.SeekStart)
	if err != nil {
		return model.PendingFile{}, fmt.Errorf("failed to rewind upload: %w", err)
	}

	pending, err := e.staging.Stage(f.Reader, f.FileName, mimeType)
	if err != nil {
		return model.PendingFile{}, fmt.Errorf("failed to stage upload: %w", err)
	}
	return pending, nil
}

func (e *CardEditor) fileError(kind model.CardKind, err error) *validation.Error {
	switch {
	case errors.Is(err, validation.ErrFileTooLarge):
		return validation.FieldError("file", fmt.Sprintf("File too large. Max %dMB allowed.", e.uploadMaxSize>>20))
	case errors.Is(err, validation.ErrFileType):
		return validation.FieldError("file", fmt.Sprintf("Unsupported %s type.", mediaNoun(kind)))
	case errors.Is(err, validation.ErrFileEmpty):
		return validation.FieldError("file", "File is empty.")
	}
	return validation.FieldError("file", capitalize(err.Error()))
}

func mediaNoun(kind model.CardKind) string {
	if kind == model.CardSong {
		return "audio"
	}
	return string(kind)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
