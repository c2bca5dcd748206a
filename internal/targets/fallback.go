package targets

// DefaultFallback is the built-in list used when the tabular resource cannot
// be loaded. Callers get a fresh copy so the list itself stays immutable.
func DefaultFallback() []CallTarget {
	return []CallTarget{
		{Label: "Boardroom (SIP)", Destination: "sip:boardroom@company.com", Protocol: ProtocolAuto, Role: RoleGuest},
		{Label: "Security desk (SIP)", Destination: "sip:security@company.com", Protocol: ProtocolAuto, Role: RoleGuest},
		{Label: "Legacy codec", Destination: "h323:10.0.0.50", Protocol: ProtocolAuto, Role: RoleGuest},
		{Label: "Recorder", Destination: "rtmp://recorder.example.com/live/room1", Protocol: ProtocolAuto, Role: RoleGuest},
	}
}
