package entity

import (
	"time"

	"github.com/google/uuid"
)

// Worker is a gig worker known to the system.
type Worker struct {
	ID        uuid.UUID `json:"id"`
	WorkerID  string    `json:"worker_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
