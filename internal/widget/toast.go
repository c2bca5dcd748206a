package widget

import (
	"fmt"

	"dialout-picker/internal/dispatch"
)

type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Toast is the transient notification shown after a single-target dial.
type Toast struct {
	Kind    ToastKind        `json:"kind"`
	Message string           `json:"message"`
	Outcome dispatch.Outcome `json:"outcome"`
}

func ToastFor(o dispatch.Outcome) Toast {
	switch o.Status {
	case dispatch.StatusOK:
		return Toast{Kind: ToastSuccess, Message: fmt.Sprintf("%s: %s", o.Message, o.Label), Outcome: o}
	default:
		return Toast{Kind: ToastError, Message: fmt.Sprintf("Dial-out to %s failed: %s", o.Label, o.Message), Outcome: o}
	}
}
