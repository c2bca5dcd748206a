package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dialout-picker/internal/targets"
	"dialout-picker/pkg/logger"
)

// ErrNoTargets is returned by a load attempt whose resource parsed to zero targets.
var ErrNoTargets = errors.New("catalog: resource parsed but no entries found")

// Catalog is the read-only, ordered target list for one session.
// It is never mutated after construction; a fresh Load supersedes it.
type Catalog struct {
	targets []targets.CallTarget
	byDest  map[string]int

	// FromFallback reports whether the resource was replaced by the fallback list.
	FromFallback bool
}

// New builds a catalog from an already-normalized list.
func New(list []targets.CallTarget) *Catalog {
	c := &Catalog{
		targets: make([]targets.CallTarget, len(list)),
		byDest:  make(map[string]int, len(list)),
	}
	copy(c.targets, list)
	for i, t := range c.targets {
		if _, ok := c.byDest[t.Destination]; !ok {
			c.byDest[t.Destination] = i
		}
	}
	return c
}

// Load fetches the tabular resource once and normalizes it.
//
// Any failure (fetch error, non-success status, zero targets) is logged as a
// warning and the fallback list is used instead; Load itself never fails.
func Load(ctx context.Context, src Source, fallback []targets.CallTarget) *Catalog {
	list, err := fetchTargets(ctx, src)
	if err == nil {
		return New(list)
	}

	name := "<none>"
	if src != nil {
		name = src.Name()
	}
	logger.From(ctx).Warn("target resource unavailable, using fallback list",
		"source", name,
		"fallback_targets", len(fallback),
		"err", err,
	)

	c := New(fallback)
	c.FromFallback = true
	return c
}

func fetchTargets(ctx context.Context, src Source) ([]targets.CallTarget, error) {
	if src == nil {
		return nil, errors.New("catalog: no source configured")
	}
	text, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src.Name(), err)
	}
	list := targets.FromCSV(text)
	if len(list) == 0 {
		return nil, ErrNoTargets
	}
	return list, nil
}

// All returns the targets in catalog order.
func (c *Catalog) All() []targets.CallTarget {
	out := make([]targets.CallTarget, len(c.targets))
	copy(out, c.targets)
	return out
}

func (c *Catalog) Len() int { return len(c.targets) }

// ByDestination looks a target up by its exact destination string.
func (c *Catalog) ByDestination(d string) (targets.CallTarget, bool) {
	i, ok := c.byDest[d]
	if !ok {
		return targets.CallTarget{}, false
	}
	return c.targets[i], true
}

// Search filters All by a case-insensitive substring of "label destination".
// A blank query matches everything.
func (c *Catalog) Search(query string) []targets.CallTarget {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return c.All()
	}
	out := make([]targets.CallTarget, 0)
	for _, t := range c.targets {
		if matches(t, needle) {
			out = append(out, t)
		}
	}
	return out
}

func matches(t targets.CallTarget, needle string) bool {
	hay := strings.ToLower(t.Label + " " + t.Destination)
	return strings.Contains(hay, needle)
}
