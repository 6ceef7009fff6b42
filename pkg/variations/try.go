package variations

import (
	"context"
	"log/slog"
)

// Source is one external lookup. Lookup reports ok=false or an error when
// it has nothing for the pair; either way the ladder moves on.
type Source[T any] struct {
	Name   string
	Lookup func(ctx context.Context, v Variation) (T, bool, error)
}

// Hit is the first successful lookup.
type Hit[T any] struct {
	Value     T
	Source    string
	Variation Variation
	// Index is the 0-based position of Variation in the ladder.
	Index int
}

// Attempt records a lookup that produced nothing.
type Attempt struct {
	Source    string
	Variation Variation
	Err       error
}

// Try walks every source for every variation, most specific first, and
// returns the first hit. The attempts that failed before it are returned
// either way. Try stops early when ctx is done.
func Try[T any](ctx context.Context, vars []Variation, sources []Source[T], logger *slog.Logger) (Hit[T], []Attempt, bool) {
	var attempts []Attempt

	for i, v := range vars {
		for _, src := range sources {
			if ctx.Err() != nil {
				return Hit[T]{}, attempts, false
			}

			value, ok, err := src.Lookup(ctx, v)
			if err == nil && ok {
				logger.Debug("lookup hit", "source", src.Name, "artist", v.Artist, "title", v.Title, "variation", i+1)
				return Hit[T]{Value: value, Source: src.Name, Variation: v, Index: i}, attempts, true
			}

			if err != nil {
				logger.Debug("lookup failed", "source", src.Name, "artist", v.Artist, "title", v.Title, "err", err)
			}
			attempts = append(attempts, Attempt{Source: src.Name, Variation: v, Err: err})
		}
	}

	return Hit[T]{}, attempts, false
}
