package service

import (
	"context"
	"fmt"

	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/repository"
)

// loopAccess decides who may see a loop.
type loopAccess struct {
	collaborators repository.CollaboratorRepository
}

// canView: owners see everything; others see only loops in normal status,
// private ones only when they collaborate on them.
func (a loopAccess) canView(ctx context.Context, loop *model.Loop, viewerID string) (bool, error) {
	if viewerID != "" && loop.UserID == viewerID {
		return true, nil
	}
	if loop.Status != model.LoopStatusNormal {
		return false, nil
	}
	if loop.Visibility != model.VisibilityPrivate {
		return true, nil
	}
	if viewerID == "" {
		return false, nil
	}

	ok, err := a.collaborators.IsCollaborator(ctx, loop.ID, viewerID)
	if err != nil {
		return false, fmt.Errorf("failed to check collaborator: %w", err)
	}
	return ok, nil
}
