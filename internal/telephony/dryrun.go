package telephony

import (
	"context"
	"sync"

	"dialout-picker/pkg/logger"
)

// DryRunProvider accepts every dial-out without contacting a host.
//
// It is wired in local/dev when no host API is configured, so the widget and
// dispatcher can be exercised end to end. Requests are logged; only the
// most recent ones are kept for inspection.
type DryRunProvider struct {
	mu       sync.Mutex
	count    int
	requests []DialRequest
}

// dryRunKeep bounds how many requests DryRunProvider retains.
const dryRunKeep = 100

func (p *DryRunProvider) Name() string { return "dry_run" }

func (p *DryRunProvider) HealthCheck(ctx context.Context) error {
	return nil
}

func (p *DryRunProvider) DialOut(ctx context.Context, req DialRequest) error {
	logger.From(ctx).Info("dry-run dial-out",
		"destination", req.Destination,
		"role", req.Role,
		"protocol", req.Protocol,
		"display_name", req.RemoteDisplayName,
	)
	p.mu.Lock()
	p.count++
	if len(p.requests) == dryRunKeep {
		p.requests = append(p.requests[:0], p.requests[1:]...)
	}
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	return nil
}

// Count reports how many dial-outs were accepted in total.
func (p *DryRunProvider) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Requests returns a copy of the most recent requests, oldest first.
func (p *DryRunProvider) Requests() []DialRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]DialRequest, len(p.requests))
	copy(out, p.requests)
	return out
}
