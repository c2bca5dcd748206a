package dispatch

import (
	"fmt"
	"time"

	"dialout-picker/internal/targets"
)

const (
	// DefaultDialTimeout bounds one host dial call.
	DefaultDialTimeout = 12 * time.Second
	// DefaultGap is the pause between two consecutive destinations.
	DefaultGap = 350 * time.Millisecond
)

// Outcome messages.
const (
	MessageDialRequested = "Dial requested"
	MessageMissingTarget = "Missing target definition"
	MessageLockLost      = "Batch lock lost, not dialed"
)

type Status string

const (
	StatusOK   Status = "OK"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// Outcome is the result of one attempted destination.
type Outcome struct {
	Destination string `json:"destination"`
	Label       string `json:"label"`
	Status      Status `json:"status"`
	Message     string `json:"message"`
}

// Tally is the running count of outcomes in a batch.
type Tally struct {
	OK   int `json:"ok"`
	Fail int `json:"fail"`
	Skip int `json:"skip"`
}

func (t *Tally) add(s Status) {
	switch s {
	case StatusOK:
		t.OK++
	case StatusFail:
		t.Fail++
	case StatusSkip:
		t.Skip++
	}
}

func (t Tally) Total() int { return t.OK + t.Fail + t.Skip }

// Progress is emitted after every destination.
type Progress struct {
	BatchID string  `json:"batch_id"`
	Index   int     `json:"index"` // 1-based
	Total   int     `json:"total"`
	Outcome Outcome `json:"outcome"`
	Tally   Tally   `json:"tally"`
}

// Summary is the final state of a finished batch.
type Summary struct {
	BatchID  string    `json:"batch_id"`
	Outcomes []Outcome `json:"outcomes"`
	Tally    Tally     `json:"tally"`
	Done     bool      `json:"done"`
}

// Lookup resolves a destination to its target definition.
type Lookup interface {
	ByDestination(destination string) (targets.CallTarget, bool)
}

// TimeoutError is returned when the host did not settle a dial within the bound.
type TimeoutError struct {
	Label   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Dial-out to %s timed out after %dms", e.Label, e.Timeout.Milliseconds())
}
