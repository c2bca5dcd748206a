package telephony

import (
	"context"
	"fmt"
	"testing"
)

func TestDryRunProvider_KeepsRecentRequests(t *testing.T) {
	p := &DryRunProvider{}
	total := dryRunKeep + 25
	for i := 0; i < total; i++ {
		if err := p.DialOut(context.Background(), DialRequest{Destination: fmt.Sprintf("sip:room%d@x", i)}); err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
	}

	if p.Count() != total {
		t.Fatalf("expected count %d, got %d", total, p.Count())
	}
	reqs := p.Requests()
	if len(reqs) != dryRunKeep {
		t.Fatalf("expected %d retained requests, got %d", dryRunKeep, len(reqs))
	}
	if reqs[0].Destination != "sip:room25@x" || reqs[len(reqs)-1].Destination != fmt.Sprintf("sip:room%d@x", total-1) {
		t.Fatalf("expected the most recent requests, got first %q last %q", reqs[0].Destination, reqs[len(reqs)-1].Destination)
	}
}
