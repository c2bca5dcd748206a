package targets

import (
	"reflect"
	"testing"
)

func TestFromCSV_HeaderRow(t *testing.T) {
	got := FromCSV("label,destination,protocol,role\nDesk,sip:desk@x.com,,host")
	want := []CallTarget{{Label: "Desk", Destination: "sip:desk@x.com", Protocol: ProtocolAuto, Role: RoleHost}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestFromCSV_DuplicateDestinationKeepsFirst(t *testing.T) {
	in := "label,destination,protocol,role\n" +
		"Legacy codec,h323:10.0.0.50,h323,guest\n" +
		"Other codec,h323:10.0.0.50,sip,host\n" +
		"Boardroom,sip:boardroom@example.com,,guest\n"

	got := FromCSV(in)
	if len(got) != 2 {
		t.Fatalf("expected 2 targets, got %d: %+v", len(got), got)
	}
	if got[0].Label != "Legacy codec" || got[0].Protocol != ProtocolH323 {
		t.Fatalf("expected first occurrence kept, got %+v", got[0])
	}
	if got[1].Destination != "sip:boardroom@example.com" {
		t.Fatalf("expected insertion order, got %+v", got[1])
	}
}

func TestFromCSV_BlankRowsDropped(t *testing.T) {
	rows := Parse("Lobby,sip:lobby@x.com\n\n\nDesk,sip:desk@x.com\n")
	if len(rows) != 4 {
		t.Fatalf("parser keeps blank rows, got %d rows", len(rows))
	}
	got := Normalize(rows)
	if len(got) != 2 || got[0].Label != "Lobby" || got[1].Label != "Desk" {
		t.Fatalf("expected blank rows dropped, got %+v", got)
	}
}

func TestNormalize_HeaderIsOrderIndependent(t *testing.T) {
	rows := [][]string{
		{" Role ", "DESTINATION", "label"},
		{"HOST", "sip:a@x.com", "Alpha"},
	}
	got := Normalize(rows)
	want := []CallTarget{{Label: "Alpha", Destination: "sip:a@x.com", Protocol: ProtocolAuto, Role: RoleHost}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestNormalize_HeaderSubsetFallsBackToPosition(t *testing.T) {
	// protocol and role are not named, so columns 2 and 3 are used.
	rows := [][]string{
		{"label", "destination"},
		{"Alpha", "10.0.0.1", "SIP", "host"},
	}
	got := Normalize(rows)
	if len(got) != 1 || got[0].Protocol != ProtocolSIP || got[0].Role != RoleHost {
		t.Fatalf("unexpected targets: %+v", got)
	}
}

func TestNormalize_Positional(t *testing.T) {
	rows := [][]string{
		{"  Alpha ", " sip:a@x.com ", "bogus", "Hostess"},
		{"Beta", "rtmp://r/live", "RTMP"},
		{"Gamma"},
		{"", "sip:nolabel@x.com"},
		{"   ", "  ", ""},
	}
	got := Normalize(rows)
	want := []CallTarget{
		{Label: "Alpha", Destination: "sip:a@x.com", Protocol: ProtocolAuto, Role: RoleGuest},
		{Label: "Beta", Destination: "rtmp://r/live", Protocol: ProtocolRTMP, Role: RoleGuest},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	for _, rows := range [][][]string{nil, {{""}}, {{" ", "\t"}}} {
		got := Normalize(rows)
		if got == nil || len(got) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", got)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	first := FromCSV("Alpha,sip:a@x.com,MSSIP,host\nBeta,10.0.0.9,h323,\nGamma,gamma.example.com,,GUEST\n")

	rows := make([][]string, 0, len(first))
	for _, tg := range first {
		rows = append(rows, []string{tg.Label, tg.Destination, string(tg.Protocol), string(tg.Role)})
	}
	second := Normalize(rows)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalization not idempotent:\n first  %+v\n second %+v", first, second)
	}

	fb := DefaultFallback()
	rows = rows[:0]
	for _, tg := range fb {
		rows = append(rows, []string{tg.Label, tg.Destination, string(tg.Protocol), string(tg.Role)})
	}
	if got := Normalize(rows); !reflect.DeepEqual(got, fb) {
		t.Fatalf("fallback list is not a fixed point: %+v", got)
	}
}

func TestNormalize_DestinationsUnique(t *testing.T) {
	rows := [][]string{
		{"A", "d1"}, {"B", "d2"}, {"C", "d1"}, {"D", "d3"}, {"E", "d2"}, {"F", "d1"},
	}
	got := Normalize(rows)
	seen := map[string]string{}
	for _, tg := range got {
		if prev, ok := seen[tg.Destination]; ok {
			t.Fatalf("destination %q repeated (%s, %s)", tg.Destination, prev, tg.Label)
		}
		seen[tg.Destination] = tg.Label
	}
	if seen["d1"] != "A" || seen["d2"] != "B" || seen["d3"] != "D" {
		t.Fatalf("expected first occurrences, got %v", seen)
	}
}

func TestNormalizeProtocolAndRole(t *testing.T) {
	protocols := map[string]Protocol{
		"": ProtocolAuto, "auto": ProtocolAuto, " SIP ": ProtocolSIP, "H323": ProtocolH323,
		"mssip": ProtocolMSSIP, "Rtmp": ProtocolRTMP, "webrtc": ProtocolAuto,
	}
	for in, want := range protocols {
		if got := NormalizeProtocol(in); got != want {
			t.Fatalf("NormalizeProtocol(%q) = %q, want %q", in, got, want)
		}
	}

	roles := map[string]Role{"host": RoleHost, " HOST ": RoleHost, "guest": RoleGuest, "": RoleGuest, "hosts": RoleGuest}
	for in, want := range roles {
		if got := NormalizeRole(in); got != want {
			t.Fatalf("NormalizeRole(%q) = %q, want %q", in, got, want)
		}
	}
}
