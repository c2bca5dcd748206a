package dialing

import (
	"regexp"
	"strings"

	"dialout-picker/internal/targets"
	"dialout-picker/internal/telephony"
)

// DefaultDisplayName is used when neither the user nor the target supplies one.
const DefaultDisplayName = "Dial-out participant"

var schemePattern = regexp.MustCompile(`^[a-z][a-z0-9+.-]*:`)

// Overrides are the optional values chosen in the dial form.
// Zero values mean "not chosen".
type Overrides struct {
	Role        string `json:"role,omitempty"`
	Protocol    string `json:"protocol,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// HasScheme reports whether dest starts with a URI scheme such as "sip:" or "rtmp:".
func HasScheme(dest string) bool {
	return schemePattern.MatchString(strings.ToLower(strings.TrimSpace(dest)))
}

// Resolve computes the dial arguments for t.
//
// Precedence:
//  1. Role: the target's own role, then the override, then GUEST.
//  2. Protocol: a destination with a scheme always dials as auto. Otherwise the
//     target's protocol, then the override, each only when not auto.
//  3. Display name: trimmed override, then the target label, then DefaultDisplayName.
//
// Resolve has no hidden state; equal inputs give equal outputs.
func Resolve(t targets.CallTarget, o Overrides) telephony.DialRequest {
	name := resolveDisplayName(t, o)
	return telephony.DialRequest{
		Destination:       t.Destination,
		Role:              resolveRole(t, o),
		Protocol:          resolveProtocol(t, o),
		RemoteDisplayName: name,
		Text:              name,
	}
}

func resolveRole(t targets.CallTarget, o Overrides) targets.Role {
	if t.Role != "" {
		return t.Role
	}
	if strings.TrimSpace(o.Role) != "" {
		return targets.NormalizeRole(o.Role)
	}
	return targets.RoleGuest
}

func resolveProtocol(t targets.CallTarget, o Overrides) targets.Protocol {
	if HasScheme(t.Destination) {
		return targets.ProtocolAuto
	}
	if p := targets.NormalizeProtocol(string(t.Protocol)); p != targets.ProtocolAuto {
		return p
	}
	return targets.NormalizeProtocol(o.Protocol)
}

func resolveDisplayName(t targets.CallTarget, o Overrides) string {
	if name := strings.TrimSpace(o.DisplayName); name != "" {
		return name
	}
	if t.Label != "" {
		return t.Label
	}
	return DefaultDisplayName
}
