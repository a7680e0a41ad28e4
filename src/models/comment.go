package models

import "time"

// Comment is an approved reader comment as returned by the content store.
// Unapproved comments are never projected into post queries.
type Comment struct {
	ID        string    `json:"_id"`
	CreatedAt time.Time `json:"_createdAt"`
	Name      string    `json:"name"`
	Comment   string    `json:"comment"`
}
