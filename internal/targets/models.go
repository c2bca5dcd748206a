package targets

import "strings"

// CallTarget is a named, reusable dial destination.
//
// Invariants (after Normalize):
// - Label and Destination are non-empty.
// - Protocol and Role are always one of their enumerated values.
// - Destination is unique within a catalog.
type CallTarget struct {
	Label       string   `json:"label" yaml:"label"`
	Destination string   `json:"destination" yaml:"destination"`
	Protocol    Protocol `json:"protocol" yaml:"protocol"`
	Role        Role     `json:"role" yaml:"role"`
}

type Protocol string

const (
	ProtocolAuto  Protocol = "auto"
	ProtocolSIP   Protocol = "sip"
	ProtocolH323  Protocol = "h323"
	ProtocolMSSIP Protocol = "mssip"
	ProtocolRTMP  Protocol = "rtmp"
)

type Role string

const (
	RoleHost  Role = "HOST"
	RoleGuest Role = "GUEST"
)

// NormalizeProtocol maps free text onto the protocol set.
// Unknown or empty input becomes ProtocolAuto.
func NormalizeProtocol(v string) Protocol {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(v))); p {
	case ProtocolSIP, ProtocolH323, ProtocolMSSIP, ProtocolRTMP:
		return p
	default:
		return ProtocolAuto
	}
}

// NormalizeRole returns RoleHost only for a case-insensitive "host".
func NormalizeRole(v string) Role {
	if strings.EqualFold(strings.TrimSpace(v), "host") {
		return RoleHost
	}
	return RoleGuest
}
