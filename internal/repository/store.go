package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/loopfeed/loopfeed/internal/db"
)

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Users         UserRepository
	Profiles      ProfileRepository
	Loops         LoopRepository
	Cards         CardRepository
	Media         MediaRepository
	Collaborators CollaboratorRepository
	Remixes       RemixRepository
	Folders       FolderRepository
	Whispers      WhisperRepository
}

// Transactor runs fn against repositories that share one transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx Repos) error) error
}

// Store holds the repositories of the database.
type Store struct {
	Repos
	db *sqlx.DB
}

func NewStore(database *sqlx.DB) *Store {
	return &Store{Repos: newRepos(database), db: database}
}

func newRepos(q sqlx.ExtContext) Repos {
	return Repos{
		Users:         &userRepository{db: q},
		Profiles:      &profileRepository{db: q},
		Loops:         &loopRepository{db: q},
		Cards:         &cardRepository{db: q},
		Media:         &mediaRepository{db: q},
		Collaborators: &collaboratorRepository{db: q},
		Remixes:       &remixRepository{db: q},
		Folders:       &folderRepository{db: q},
		Whispers:      &whisperRepository{db: q},
	}
}

// InTx commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx Repos) error) error {
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(newRepos(tx))
	})
}

// isUniqueViolation works for both SQLite and PostgreSQL
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value")
}

// rowsAffected returns notFound when the statement touched no row.
func rowsAffected(res interface{ RowsAffected() (int64, error) }, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards for use with ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
