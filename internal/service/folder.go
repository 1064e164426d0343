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

// FolderUpdate holds the folder fields to change. Nil fields are kept.
type FolderUpdate struct {
	Name        *string
	Description *string
	Visibility  *string
}

// FolderView is a folder with the loops the viewer may see in it.
type FolderView struct {
	*model.Folder
	Loops []LoopSummary `json:"loops"`
}

type FolderService struct {
	repos  repository.Repos
	loops  *LoopService
	access loopAccess
}

func NewFolderService(repos repository.Repos, loops *LoopService) *FolderService {
	return &FolderService{
		repos:  repos,
		loops:  loops,
		access: loopAccess{collaborators: repos.Collaborators},
	}
}

func validFolderVisibility(v string) bool {
	return v == model.FolderVisibilityPublic || v == model.FolderVisibilityPrivate
}

func (s *FolderService) Create(ctx context.Context, userID, name, description, visibility string) (*model.Folder, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	err := validation.ValidateFolderName(name)
	if err != nil {
		return nil, validation.FieldError("name", capitalize(err.Error()))
	}
	if visibility == "" {
		visibility = model.FolderVisibilityPrivate
	}
	if !validFolderVisibility(visibility) {
		return nil, validation.FieldError("visibility", "Visibility must be public or private.")
	}

	folder := &model.Folder{
		UserID:      userID,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Visibility:  visibility,
	}
	err = s.repos.Folders.Create(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	slog.Info("folder created", "folder_id", folder.ID, "user_id", userID)
	return folder, nil
}

func (s *FolderService) owned(ctx context.Context, userID, id string) (*model.Folder, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	folder, err := s.repos.Folders.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if folder.UserID != userID {
		return nil, ErrNotFolderOwner
	}
	return folder, nil
}

func (s *FolderService) Update(ctx context.Context, userID, id string, upd FolderUpdate) (*model.Folder, error) {
	folder, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		err := validation.ValidateFolderName(*upd.Name)
		if err != nil {
			return nil, validation.FieldError("name", capitalize(err.Error()))
		}
		folder.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Description != nil {
		folder.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Visibility != nil {
		if !validFolderVisibility(*upd.Visibility) {
			return nil, validation.FieldError("visibility", "Visibility must be public or private.")
		}
		folder.Visibility = *upd.Visibility
	}

	err = s.repos.Folders.Update(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("failed to update folder: %w", err)
	}
	return folder, nil
}

// ToggleVisibility flips a folder between public and private.
func (s *FolderService) ToggleVisibility(ctx context.Context, userID, id string) (*model.Folder, error) {
	folder, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	next := model.FolderVisibilityPublic
	if folder.IsPublic() {
		next = model.FolderVisibilityPrivate
	}
	return s.Update(ctx, userID, id, FolderUpdate{Visibility: &next})
}

func (s *FolderService) Delete(ctx context.Context, userID, id string) error {
	_, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	err = s.repos.Folders.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	slog.Info("folder deleted", "folder_id", id, "user_id", userID)
	return nil
}

// AddLoop puts a loop the user can see into one of their folders. Adding a
// loop twice is not an error.
func (s *FolderService) AddLoop(ctx context.Context, userID, folderID, loopID string) error {
	_, err := s.owned(ctx, userID, folderID)
	if err != nil {
		return err
	}

	loop, err := s.repos.Loops.ByID(ctx, loopID)
	if err != nil {
		return err
	}
	ok, err := s.access.canView(ctx, loop, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLoopNotViewable
	}

	err = s.repos.Folders.AddLoop(ctx, folderID, loopID)
	if err != nil {
		return fmt.Errorf("failed to add loop to folder: %w", err)
	}
	return nil
}

func (s *FolderService) RemoveLoop(ctx context.Context, userID, folderID, loopID string) error {
	_, err := s.owned(ctx, userID, folderID)
	if err != nil {
		return err
	}

	err = s.repos.Folders.RemoveLoop(ctx, folderID, loopID)
	if err != nil {
		return fmt.Errorf("failed to remove loop from folder: %w", err)
	}
	return nil
}

// List returns the folders of ownerID. Other viewers only see public ones.
func (s *FolderService) List(ctx context.Context, ownerID, viewerID string) ([]*model.Folder, error) {
	folders, err := s.repos.Folders.ByUser(ctx, ownerID, viewerID == "" || ownerID != viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

// SystemFolders returns the Archived, Trash and Drafts folders of userID
// with their loop counts.
func (s *FolderService) SystemFolders(ctx context.Context, userID string) ([]*model.Folder, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	folders := model.SystemFolders(userID)
	for _, f := range folders {
		status, _ := model.SystemFolderStatus(f.ID)
		loops, err := s.repos.Loops.ByUserStatus(ctx, userID, status)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s loops: %w", status, err)
		}
		f.LoopCount = len(loops)
	}
	return folders, nil
}

// View returns a folder and the loops in it that viewerID may see. System
// folder ids resolve to the viewer's own loops by status.
func (s *FolderService) View(ctx context.Context, viewerID, id string) (*FolderView, error) {
	if status, ok := model.SystemFolderStatus(id); ok {
		if viewerID == "" {
			return nil, ErrUnauthorized
		}
		loops, err := s.loops.ByStatus(ctx, viewerID, status)
		if err != nil {
			return nil, err
		}
		for _, f := range model.SystemFolders(viewerID) {
			if f.ID == id {
				f.LoopCount = len(loops)
				return &FolderView{Folder: f, Loops: loops}, nil
			}
		}
	}

	folder, err := s.repos.Folders.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	owner := viewerID != "" && folder.UserID == viewerID
	if !owner && !folder.IsPublic() {
		return nil, ErrFolderPrivate
	}

	loops, err := s.repos.Folders.Loops(ctx, folder.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder loops: %w", err)
	}

	visible := make([]*model.Loop, 0, len(loops))
	for _, l := range loops {
		if l.IsPublic() || (viewerID != "" && l.UserID == viewerID) {
			visible = append(visible, l)
		}
	}

	summaries, err := s.loops.summaries(ctx, visible)
	if err != nil {
		return nil, err
	}
	return &FolderView{Folder: folder, Loops: summaries}, nil
}
