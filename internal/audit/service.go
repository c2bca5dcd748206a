package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records an internal trail of dial-out actions.
//
// Callers treat it as best-effort: a failed append is logged by the caller
// and never blocks or fails a dial.
type Service struct {
	repo       Repository
	conference string
	clock      func() time.Time
}

// NewService binds the service to the conference it records for; events
// without a conference get this one.
func NewService(repo Repository, conference string) *Service {
	return &Service{repo: repo, conference: conference, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Actor identifies who triggered an event.
type Actor struct {
	UserID string
	Role   string
	IP     string
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Conference == "" {
		e.Conference = s.conference
	}
	if e.Conference == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogBatch records a batch milestone (started, finished).
func (s *Service) LogBatch(ctx context.Context, a Actor, sessionID, batchID, message, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeDialOutBatch,
		ActorUserID: a.UserID,
		ActorRole:   a.Role,
		IPAddress:   a.IP,
		SessionID:   sessionID,
		BatchID:     batchID,
		Message:     message,
		Metadata:    metadata,
	})
}

// LogSingle records a single-target dial and its outcome.
func (s *Service) LogSingle(ctx context.Context, a Actor, sessionID, destination, message, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeDialOutSingle,
		ActorUserID: a.UserID,
		ActorRole:   a.Role,
		IPAddress:   a.IP,
		SessionID:   sessionID,
		Destination: destination,
		Message:     message,
		Metadata:    metadata,
	})
}
