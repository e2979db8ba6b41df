// Package reconcile serves entity lookups from a local store and fetches only
// the missing entities from a remote source.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds per-entity fan-out when none is configured.
const DefaultConcurrency = 8

// ErrPreconditionFailed is matched by every *PreconditionError.
var ErrPreconditionFailed = errors.New("precondition failed")

// PreconditionError is returned before any remote request when some missing
// ids lack prerequisite data. It is not retryable.
type PreconditionError struct {
	IDs []string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("missing base info for %d id(s): %s", len(e.IDs), strings.Join(e.IDs, ", "))
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPreconditionFailed }

// Options tunes a single Resolve call.
type Options struct {
	ForceRefresh bool
	WindowYears  int
}

// Store is the local entity cache, keyed uniquely by id.
type Store[T any] interface {
	GetMany(ctx context.Context, ids []string) (map[string]T, error)
	PutMany(ctx context.Context, items map[string]T) error
}

// Prerequisite reports which ids lack the data a fetch depends on.
type Prerequisite interface {
	Missing(ctx context.Context, ids []string) ([]string, error)
}

// Outcome is the fetch result for one id.
type Outcome[T any] struct {
	ID    string
	Value T
	Err   error
}

// Fetcher retrieves entities from the remote source. It returns one outcome
// per requested id; an id without an outcome is treated as failed.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, ids []string, opts Options) []Outcome[T]
}

// Failure records why one id could not be resolved.
type Failure struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

// MarshalJSON encodes the failure as {"id": ..., "error": ...}.
func (f Failure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		ID    string `json:"id"`
		Error string `json:"error"`
	}{f.ID, msg})
}

// Result of a Resolve call. Items follow the order of the requested ids;
// failed ids are reported in Failures instead.
type Result[T any] struct {
	Items     []T       `json:"items"`
	Failures  []Failure `json:"failures"`
	Fetched   int       `json:"fetched"`
	FromCache int       `json:"fromCache"`
}

// FailedIDs lists the ids in Failures.
func (r *Result[T]) FailedIDs() []string {
	ids := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		ids[i] = f.ID
	}
	return ids
}

// Reconciler combines a Store, an optional Prerequisite and a Fetcher.
type Reconciler[T any] struct {
	store   Store[T]
	prereq  Prerequisite
	fetcher Fetcher[T]
	log     zerolog.Logger
}

// New creates a reconciler; prereq may be nil.
func New[T any](name string, store Store[T], prereq Prerequisite, fetcher Fetcher[T], log zerolog.Logger) *Reconciler[T] {
	return &Reconciler[T]{
		store:   store,
		prereq:  prereq,
		fetcher: fetcher,
		log:     log.With().Str("component", "reconcile").Str("entity", name).Logger(),
	}
}

// Resolve returns the entities for ids, reading the cache once, fetching the
// missing ids and writing them back in one bulk put.
func (r *Reconciler[T]) Resolve(ctx context.Context, ids []string, opts Options) (*Result[T], error) {
	unique := dedupe(ids)

	cached := map[string]T{}
	if !opts.ForceRefresh && len(unique) > 0 {
		var err error
		cached, err = r.store.GetMany(ctx, unique)
		if err != nil {
			return nil, fmt.Errorf("failed to read cache: %w", err)
		}
	}

	var missing []string
	for _, id := range unique {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 && r.prereq != nil {
		absent, err := r.prereq.Missing(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to check prerequisites: %w", err)
		}
		if len(absent) > 0 {
			return nil, &PreconditionError{IDs: absent}
		}
	}

	result := &Result[T]{}
	fetched := make(map[string]T, len(missing))
	failed := make(map[string]bool)

	if len(missing) > 0 {
		r.log.Debug().
			Int("cached", len(cached)).
			Int("missing", len(missing)).
			Bool("force_refresh", opts.ForceRefresh).
			Msg("Fetching missing entities")

		outcomes := make(map[string]Outcome[T], len(missing))
		for _, o := range r.fetcher.Fetch(ctx, missing, opts) {
			outcomes[o.ID] = o
		}

		for _, id := range missing {
			o, ok := outcomes[id]
			switch {
			case !ok:
				result.Failures = append(result.Failures, Failure{ID: id, Err: errors.New("no outcome returned by fetcher")})
				failed[id] = true
			case o.Err != nil:
				result.Failures = append(result.Failures, Failure{ID: id, Err: o.Err})
				failed[id] = true
			default:
				fetched[id] = o.Value
			}
		}
	}

	if len(fetched) > 0 {
		if err := r.store.PutMany(ctx, fetched); err != nil {
			r.log.Warn().Err(err).Int("count", len(fetched)).Msg("Failed to write fetched entities to cache")
		}
	}

	for _, f := range result.Failures {
		r.log.Warn().Str("id", f.ID).Err(f.Err).Msg("Failed to fetch entity")
	}

	result.Items = make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := fetched[id]; ok {
			result.Items = append(result.Items, v)
			continue
		}
		if failed[id] {
			continue
		}
		if v, ok := cached[id]; ok {
			result.Items = append(result.Items, v)
		}
	}
	result.Fetched = len(fetched)
	result.FromCache = len(unique) - len(missing)

	return result, nil
}

// FanOut runs fn for every id with at most limit calls in flight and collects
// one outcome per id, in id order.
func FanOut[T any](ctx context.Context, ids []string, limit int, fn func(ctx context.Context, id string) (T, error)) []Outcome[T] {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	outcomes := make([]Outcome[T], len(ids))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = Outcome[T]{ID: id, Err: err}
				return nil
			}
			v, err := fn(ctx, id)
			outcomes[i] = Outcome[T]{ID: id, Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
