package model

import "time"

type CycleOutcome string

const (
	CycleOutcomeSuccess          CycleOutcome = "success"
	CycleOutcomeAuthFailed       CycleOutcome = "auth_failed"
	CycleOutcomeConnectionFailed CycleOutcome = "connection_failed"
	CycleOutcomeUnexpected       CycleOutcome = "unexpected_status"
	CycleOutcomeFailed           CycleOutcome = "failed"
)

// CycleRecord is one finished refresh cycle as kept in the history table.
type CycleRecord struct {
	ID         string       `json:"id"`
	InstanceID string       `json:"instance_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Outcome    CycleOutcome `json:"outcome"`
	Error      string       `json:"error,omitempty"`
}

// Duration returns how long the cycle ran.
func (r CycleRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// OrphanedBook is a book that was created remotely but could not be placed
// on its target shelf. Kept until someone shelves it by hand.
type OrphanedBook struct {
	InstanceID string     `json:"instance_id"`
	BookID     int        `json:"book_id"`
	ShelfID    int        `json:"shelf_id"`
	Name       string     `json:"name"`
	Reason     string     `json:"reason"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
