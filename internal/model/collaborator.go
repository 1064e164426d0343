package model

import "time"

const (
	CollaboratorRoleEditor     = "editor"
	CollaboratorStatusAccepted = "accepted"
)

type Collaborator struct {
	LoopID         string    `db:"loop_id"`
	CollaboratorID string    `db:"collaborator_id"`
	AddedBy        string    `db:"added_by"`
	Role           string    `db:"role"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`

	// Joined from profiles (not in loop_collaborators)
	Username    string `db:"username"`
	DisplayName string `db:"display_name"`
}
