// Package widget projects picker session state into what the dial-out
// widget shows. Everything here is a pure function of State.
package widget

import (
	"fmt"

	"dialout-picker/internal/dialing"
	"dialout-picker/internal/dispatch"
	"dialout-picker/internal/targets"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDialing
	PhaseDone
)

// Step is the destination a running batch is currently on.
type Step struct {
	Index   int // 1-based
	Total   int
	Label   string
	Skipped bool
}

// State is a point-in-time copy of a picker session.
type State struct {
	Loaded    bool
	Query     string
	Filtered  []targets.CallTarget
	Selected  []string
	Overrides dialing.Overrides

	Phase    Phase
	Current  *Step
	Outcomes []dispatch.Outcome
	Tally    dispatch.Tally
}

type Item struct {
	Label       string `json:"label"`
	Destination string `json:"destination"`
	Checked     bool   `json:"checked"`
}

type ResultLine struct {
	Badge   string `json:"badge"`
	Class   string `json:"class"`
	Label   string `json:"label"`
	Message string `json:"message"`
}

// Form mirrors the override controls.
type Form struct {
	Role        string `json:"role"`
	Protocol    string `json:"protocol"`
	DisplayName string `json:"display_name"`
}

type View struct {
	Query     string `json:"query"`
	CountHint string `json:"count_hint"`
	NoMatches bool   `json:"no_matches"`
	Items     []Item `json:"items"`

	SelectedHint string `json:"selected_hint"`
	DialLabel    string `json:"dial_label"`
	DialDisabled bool   `json:"dial_disabled"`

	// ControlsDisabled covers search, select-all, clear and the form.
	ControlsDisabled bool `json:"controls_disabled"`
	Form             Form `json:"form"`

	Status  string       `json:"status"`
	Summary string       `json:"summary"`
	Results []ResultLine `json:"results"`
}

const (
	hintLoading = "Loading targets…"
	summaryIdle = "Ready."
	summaryBusy = "Dialing…"
	statusDone  = "Done."
)

var (
	roleOptions     = []targets.Role{targets.RoleGuest, targets.RoleHost}
	protocolOptions = []targets.Protocol{
		targets.ProtocolAuto, targets.ProtocolSIP, targets.ProtocolH323, targets.ProtocolMSSIP, targets.ProtocolRTMP,
	}
)

func Project(s State) View {
	busy := s.Phase == PhaseDialing
	selected := make(map[string]struct{}, len(s.Selected))
	for _, d := range s.Selected {
		selected[d] = struct{}{}
	}

	v := View{
		Query:            s.Query,
		Items:            make([]Item, 0, len(s.Filtered)),
		SelectedHint:     fmt.Sprintf("%d selected", len(s.Selected)),
		DialLabel:        dialLabel(len(s.Selected)),
		DialDisabled:     !s.Loaded || busy || len(s.Selected) == 0,
		ControlsDisabled: busy,
		Form:             formFor(s.Overrides),
		Status:           status(s),
		Summary:          summary(s.Phase, s.Tally),
		Results:          make([]ResultLine, 0, len(s.Outcomes)),
	}

	if !s.Loaded {
		v.CountHint = hintLoading
	} else {
		v.CountHint = countHint(len(s.Filtered))
		v.NoMatches = len(s.Filtered) == 0
	}

	for _, t := range s.Filtered {
		_, checked := selected[t.Destination]
		v.Items = append(v.Items, Item{Label: t.Label, Destination: t.Destination, Checked: checked})
	}
	for _, o := range s.Outcomes {
		v.Results = append(v.Results, resultLine(o))
	}
	return v
}

func countHint(n int) string {
	if n == 1 {
		return "1 match"
	}
	return fmt.Sprintf("%d matches", n)
}

func dialLabel(n int) string {
	if n == 0 {
		return "Dial"
	}
	return fmt.Sprintf("Dial (%d)", n)
}

func status(s State) string {
	switch {
	case s.Phase == PhaseDone:
		return statusDone
	case s.Phase == PhaseDialing && s.Current != nil:
		verb := "Dialing"
		if s.Current.Skipped {
			verb = "Skipped"
		}
		return fmt.Sprintf("%s %d/%d: %s", verb, s.Current.Index, s.Current.Total, s.Current.Label)
	default:
		return ""
	}
}

func summary(p Phase, t dispatch.Tally) string {
	counts := fmt.Sprintf("Success: %d  Failed: %d  Skipped: %d", t.OK, t.Fail, t.Skip)
	switch p {
	case PhaseDone:
		return "Done. " + counts
	case PhaseDialing:
		if t.Total() == 0 {
			return summaryBusy
		}
		return counts
	default:
		return summaryIdle
	}
}

func resultLine(o dispatch.Outcome) ResultLine {
	var badge, class string
	switch o.Status {
	case dispatch.StatusOK:
		badge, class = "OK", "badge ok"
	case dispatch.StatusSkip:
		badge, class = "SKIP", "badge skip"
	default:
		badge, class = "FAIL", "badge fail"
	}
	return ResultLine{Badge: badge, Class: class, Label: o.Label, Message: o.Message}
}

func formFor(o dialing.Overrides) Form {
	return Form{
		Role:        string(targets.NormalizeRole(o.Role)),
		Protocol:    string(targets.NormalizeProtocol(o.Protocol)),
		DisplayName: o.DisplayName,
	}
}
