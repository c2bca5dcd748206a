package audit

import "time"

// Event is an immutable, append-only record of a dial-out action.
//
// Invariants:
// - Events are never updated or deleted.
// - conference is required; every event belongs to the conference it dialed from.
// - actor and ip capture are best-effort; dialing never waits on a failed append.
//
// Storage (Postgres): table dialout_audit_events, INSERT only. See PostgresRepo.
type Event struct {
	ID         string    `json:"id" db:"id"`
	Conference string    `json:"conference" db:"conference"`
	Type       EventType `json:"type" db:"type"`

	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	SessionID   string `json:"session_id,omitempty" db:"session_id"`
	BatchID     string `json:"batch_id,omitempty" db:"batch_id"`
	Destination string `json:"destination,omitempty" db:"destination"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON (tally, outcome).
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeDialOutBatch  EventType = "dialout_batch"
	EventTypeDialOutSingle EventType = "dialout_single"
)
