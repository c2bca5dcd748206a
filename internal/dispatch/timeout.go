package dispatch

import (
	"context"
	"fmt"
	"time"

	"dialout-picker/internal/telephony"
)

// dialWithTimeout races the host call against a timer. Whichever settles
// first decides the result; the timer is always stopped. A host call that
// loses the race is left to finish on its own and its result is dropped.
func dialWithTimeout(ctx context.Context, p telephony.DialOutProvider, req telephony.DialRequest, timeout time.Duration, label string) error {
	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("dial-out panicked: %v", r)
			}
		}()
		result <- p.DialOut(ctx, req)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-result:
		return err
	case <-timer.C:
		return &TimeoutError{Label: label, Timeout: timeout}
	}
}
