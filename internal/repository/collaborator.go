package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/loopfeed/loopfeed/internal/model"
)

type CollaboratorRepository interface {
	ByLoop(ctx context.Context, loopID string) ([]*model.Collaborator, error)
	Replace(ctx context.Context, loopID, addedBy string, collaboratorIDs []string) error
	IsCollaborator(ctx context.Context, loopID, userID string) (bool, error)
}

type collaboratorRepository struct {
	db sqlx.ExtContext
}

func NewCollaboratorRepository(db sqlx.ExtContext) CollaboratorRepository {
	return &collaboratorRepository{db: db}
}

func (r *collaboratorRepository) ByLoop(ctx context.Context, loopID string) ([]*model.Collaborator, error) {
	collaborators := []*model.Collaborator{}
	query := `SELECT lc.loop_id, lc.collaborator_id, lc.added_by, lc.role, lc.status, lc.created_at,
	                 p.username, p.display_name
	          FROM loop_collaborators lc
	          JOIN profiles p ON p.user_id = lc.collaborator_id
	          WHERE lc.loop_id = $1
	          ORDER BY lc.created_at, p.username`

	err := sqlx.SelectContext(ctx, r.db, &collaborators, query, loopID)
	return collaborators, err
}

// Replace sets the collaborators of a loop to exactly collaboratorIDs.
func (r *collaboratorRepository) Replace(ctx context.Context, loopID, addedBy string, collaboratorIDs []string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM loop_collaborators WHERE loop_id = $1`, loopID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, id := range collaboratorIDs {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO loop_collaborators (loop_id, collaborator_id, added_by, role, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, loopID, id, addedBy, model.CollaboratorRoleEditor, model.CollaboratorStatusAccepted, now)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *collaboratorRepository) IsCollaborator(ctx context.Context, loopID, userID string) (bool, error) {
	var one int
	err := sqlx.GetContext(ctx, r.db, &one, `SELECT 1 FROM loop_collaborators WHERE loop_id = $1 AND collaborator_id = $2`, loopID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
