package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/loopfeed/loopfeed/internal/model"
)

var ErrFolderNotFound = errors.New("folder not found")

type FolderRepository interface {
	Create(ctx context.Context, folder *model.Folder) error
	ByID(ctx context.Context, id string) (*model.Folder, error)
	Update(ctx context.Context, folder *model.Folder) error
	Delete(ctx context.Context, id string) error
	ByUser(ctx context.Context, userID string, publicOnly bool) ([]*model.Folder, error)
	AddLoop(ctx context.Context, folderID, loopID string) error
	RemoveLoop(ctx context.Context, folderID, loopID string) error
	Loops(ctx context.Context, folderID string) ([]*model.Loop, error)
}

type folderRepository struct {
	db sqlx.ExtContext
}

func NewFolderRepository(db sqlx.ExtContext) FolderRepository {
	return &folderRepository{db: db}
}

func (r *folderRepository) Create(ctx context.Context, folder *model.Folder) error {
	if folder.ID == "" {
		folder.ID = uuid.New().String()
	}
	now := time.Now()
	folder.CreatedAt = now
	folder.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO folders (id, user_id, name, description, visibility, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, folder.ID, folder.UserID, folder.Name, folder.Description, folder.Visibility, folder.IsSystem, folder.CreatedAt, folder.UpdatedAt)
	return err
}

const folderColumns = `f.id, f.user_id, f.name, f.description, f.visibility, f.is_system, f.created_at, f.updated_at,
	(SELECT COUNT(*) FROM folder_loops fl WHERE fl.folder_id = f.id) AS loop_count`

func (r *folderRepository) ByID(ctx context.Context, id string) (*model.Folder, error) {
	folder := &model.Folder{}
	err := sqlx.GetContext(ctx, r.db, folder, `SELECT `+folderColumns+` FROM folders f WHERE f.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, err
	}
	return folder, nil
}

func (r *folderRepository) Update(ctx context.Context, folder *model.Folder) error {
	folder.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE folders SET name = $1, description = $2, visibility = $3, updated_at = $4 WHERE id = $5
	`, folder.Name, folder.Description, folder.Visibility, folder.UpdatedAt, folder.ID)
	if err != nil {
		return err
	}
	return rowsAffected(result, ErrFolderNotFound)
}

func (r *folderRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(result, ErrFolderNotFound)
}

func (r *folderRepository) ByUser(ctx context.Context, userID string, publicOnly bool) ([]*model.Folder, error) {
	folders := []*model.Folder{}
	query := `SELECT ` + folderColumns + ` FROM folders f WHERE f.user_id = $1 ORDER BY f.created_at`
	args := []any{userID}
	if publicOnly {
		query = `SELECT ` + folderColumns + ` FROM folders f WHERE f.user_id = $1 AND f.visibility = $2 ORDER BY f.created_at`
		args = append(args, model.FolderVisibilityPublic)
	}

	err := sqlx.SelectContext(ctx, r.db, &folders, query, args...)
	return folders, err
}

// AddLoop is a no-op when the loop is already in the folder.
func (r *folderRepository) AddLoop(ctx context.Context, folderID, loopID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO folder_loops (folder_id, loop_id, added_at) VALUES ($1, $2, $3)
		ON CONFLICT (folder_id, loop_id) DO NOTHING
	`, folderID, loopID, time.Now())
	return err
}

func (r *folderRepository) RemoveLoop(ctx context.Context, folderID, loopID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM folder_loops WHERE folder_id = $1 AND loop_id = $2`, folderID, loopID)
	return err
}

// Loops lists the loops in a folder that are in normal status, most recently added first.
func (r *folderRepository) Loops(ctx context.Context, folderID string) ([]*model.Loop, error) {
	loops := []*model.Loop{}
	query := `SELECT l.* FROM loops l
	          JOIN folder_loops fl ON fl.loop_id = l.id
	          WHERE fl.folder_id = $1 AND l.status = $2
	          ORDER BY fl.added_at DESC`

	err := sqlx.SelectContext(ctx, r.db, &loops, query, folderID, model.LoopStatusNormal)
	return loops, err
}
