package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/repository"
	"github.com/loopfeed/loopfeed/internal/validation"
)

type WhisperService struct {
	repos  repository.Repos
	emails *EmailService
	access loopAccess
}

func NewWhisperService(repos repository.Repos, emails *EmailService) *WhisperService {
	return &WhisperService{
		repos:  repos,
		emails: emails,
		access: loopAccess{collaborators: repos.Collaborators},
	}
}

// Send delivers message to the owner of a loop. senderID is empty for
// anonymous whispers.
func (s *WhisperService) Send(ctx context.Context, senderID, loopID, message string) (*model.Whisper, error) {
	err := validation.ValidateWhisper(message)
	if err != nil {
		return nil, validation.FieldError("message", capitalize(err.Error()))
	}

	loop, err := s.repos.Loops.ByID(ctx, loopID)
	if err != nil {
		return nil, err
	}
	ok, err := s.access.canView(ctx, loop, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLoopNotViewable
	}

	whisper := &model.Whisper{
		LoopID:      loop.ID,
		RecipientID: loop.UserID,
		Message:     strings.TrimSpace(message),
		LoopTitle:   loop.Title,
	}
	if senderID != "" {
		whisper.SenderID = &senderID
	}

	err = s.repos.Whispers.Create(ctx, whisper)
	if err != nil {
		return nil, fmt.Errorf("failed to save whisper: %w", err)
	}

	slog.Info("whisper sent", "whisper_id", whisper.ID, "loop_id", loop.ID, "anonymous", senderID == "")
	s.notify(ctx, whisper)
	return whisper, nil
}

func (s *WhisperService) notify(ctx context.Context, w *model.Whisper) {
	if s.emails == nil {
		return
	}
	recipient, err := s.repos.Users.ByID(ctx, w.RecipientID)
	if err != nil {
		slog.Warn("whisper recipient not found", "error", err, "user_id", w.RecipientID)
		return
	}
	err = s.emails.SendWhisperNotification(ctx, recipient.Email, w.LoopID, w.LoopTitle, w.Message)
	if err != nil {
		slog.Error("failed to send whisper notification", "error", err, "whisper_id", w.ID)
	}
}

// Inbox lists the whispers received by userID, newest first.
func (s *WhisperService) Inbox(ctx context.Context, userID string) ([]*model.Whisper, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	whispers, err := s.repos.Whispers.ByRecipient(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list whispers: %w", err)
	}
	return whispers, nil
}

func (s *WhisperService) received(ctx context.Context, userID, id string) (*model.Whisper, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	w, err := s.repos.Whispers.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.RecipientID != userID {
		return nil, ErrNotWhisperRecipient
	}
	return w, nil
}

func (s *WhisperService) MarkRead(ctx context.Context, userID, id string) error {
	_, err := s.received(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.repos.Whispers.MarkRead(ctx, id)
}

func (s *WhisperService) Delete(ctx context.Context, userID, id string) error {
	_, err := s.received(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.repos.Whispers.Delete(ctx, id)
}
