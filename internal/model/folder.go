package model

import "time"

const (
	FolderVisibilityPublic  = "public"
	FolderVisibilityPrivate = "private"
)

// System folders are views over loop status rather than rows in folders.
const (
	SystemFolderArchived = "archived"
	SystemFolderTrash    = "trash"
	SystemFolderDrafts   = "drafts"
)

type Folder struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Visibility  string    `db:"visibility" json:"visibility"`
	IsSystem    bool      `db:"is_system" json:"is_system"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// Computed fields (not in database)
	LoopCount int `db:"loop_count" json:"loop_count"`
}

func (f *Folder) IsPublic() bool {
	return f.Visibility == FolderVisibilityPublic
}

// SystemFolders returns the built-in folders of a user. Their contents are
// resolved from loop status.
func SystemFolders(userID string) []*Folder {
	return []*Folder{
		{ID: SystemFolderArchived, UserID: userID, Name: "Archived", Visibility: FolderVisibilityPrivate, IsSystem: true},
		{ID: SystemFolderTrash, UserID: userID, Name: "Trash", Visibility: FolderVisibilityPrivate, IsSystem: true},
		{ID: SystemFolderDrafts, UserID: userID, Name: "Drafts", Visibility: FolderVisibilityPrivate, IsSystem: true},
	}
}

// SystemFolderStatus maps a system folder id to the loop status it lists.
func SystemFolderStatus(folderID string) (string, bool) {
	switch folderID {
	case SystemFolderArchived:
		return LoopStatusArchived, true
	case SystemFolderTrash:
		return LoopStatusTrashed, true
	case SystemFolderDrafts:
		return LoopStatusDraft, true
	}
	return "", false
}
