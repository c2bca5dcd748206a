package telephony

import (
	"context"

	"dialout-picker/internal/targets"
)

// DialOutProvider places an outbound call leg into the active conference.
//
// Rules:
// - No host SDK/API calls outside telephony adapters.
// - DialOut returns once the host has accepted or refused the request; it
//   does not wait for the far end to answer.
// - Failures that carry a host-provided reason are returned as *DialError.
type DialOutProvider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	DialOut(ctx context.Context, req DialRequest) error
}

// DialRequest is the argument set for one dial-out call.
// It is built fresh per attempt and never stored.
type DialRequest struct {
	Destination string           `json:"destination"`
	Role        targets.Role     `json:"role"`
	Protocol    targets.Protocol `json:"protocol"`

	// RemoteDisplayName and Text always carry the same resolved name.
	RemoteDisplayName string `json:"remote_display_name"`
	Text              string `json:"text"`
}

// DialError is a host refusal. Detail is the host's own failure text when it
// sent one.
type DialError struct {
	StatusCode int
	Detail     string
}

func (e *DialError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "telephony: dial-out rejected"
}
