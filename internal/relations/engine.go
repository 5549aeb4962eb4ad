// Package relations implements existence-as-state relations between an actor and a
// target entity: likes on videos, comments and tweets, and channel subscriptions.
// A record exists while the relation is on and is hard-deleted when toggled off.
package relations

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind names the target entity type of a relation.
type Kind string

const (
	KindVideo   Kind = "video"
	KindComment Kind = "comment"
	KindTweet   Kind = "tweet"
	KindChannel Kind = "channel"
)

var (
	// ErrInvalidIdentifier indicates a malformed actor or target identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrUnknownKind indicates a kind that was never registered with the engine.
	ErrUnknownKind = errors.New("unknown relation kind")
	// ErrSelfRelation indicates an actor relating to itself where the kind forbids it.
	ErrSelfRelation = errors.New("actor cannot relate to itself")
	// ErrTargetNotFound indicates the target entity does not exist.
	ErrTargetNotFound = errors.New("relation target not found")
	// ErrRecordNotFound is returned by stores when no record matches.
	ErrRecordNotFound = errors.New("relation record not found")
	// ErrDuplicateRecord is returned by stores when a record for the pair already exists.
	ErrDuplicateRecord = errors.New("relation record already exists")
)

// Record is a single relation between an actor and a target.
type Record struct {
	ID        string
	Actor     string
	Kind      Kind
	Target    string
	CreatedAt time.Time
}

// Store persists relation records. At most one record exists per (actor, kind, target).
type Store interface {
	Find(ctx context.Context, actor string, kind Kind, target string) (Record, error)
	Create(ctx context.Context, record Record) error
	Delete(ctx context.Context, record Record) error
}

// Resolver loads a snapshot of a target entity. It returns ErrTargetNotFound when the
// target does not exist.
type Resolver func(ctx context.Context, targetID string) (any, error)

// Target configures one relation kind.
type Target struct {
	Resolve    Resolver
	Message    string
	ForbidSelf bool
}

// Result is the state after a toggle. Record and Snapshot are nil when the relation is off.
type Result struct {
	Active   bool
	Record   *Record
	Snapshot any
	Message  string
}

// Engine flips relations between actors and targets.
type Engine struct {
	store   Store
	targets map[Kind]Target
	validID func(string) bool
	newID   func() string
	now     func() time.Time
}

// Options customise the engine's identifier and clock handling.
type Options struct {
	ValidID func(string) bool
	NewID   func() string
	Now     func() time.Time
}

// NewEngine constructs an engine over store for the given kinds.
func NewEngine(store Store, targets map[Kind]Target, opts Options) *Engine {
	if store == nil {
		panic("relations: store must not be nil")
	}
	if opts.ValidID == nil {
		opts.ValidID = func(id string) bool { return id != "" }
	}
	if opts.NewID == nil {
		panic("relations: id generator must not be nil")
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	registered := make(map[Kind]Target, len(targets))
	for kind, target := range targets {
		registered[kind] = target
	}
	return &Engine{
		store:   store,
		targets: registered,
		validID: opts.ValidID,
		newID:   opts.NewID,
		now:     opts.Now,
	}
}

// Toggle creates the relation when absent and deletes it when present. The read and
// the write are not locked together; a concurrent create that loses the race surfaces
// from the store as ErrDuplicateRecord and is reported as the on state.
func (e *Engine) Toggle(ctx context.Context, actor string, kind Kind, targetID string) (Result, error) {
	target, ok := e.targets[kind]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if !e.validID(targetID) {
		return Result{}, fmt.Errorf("%w: %s id %q", ErrInvalidIdentifier, kind, targetID)
	}
	if !e.validID(actor) {
		return Result{}, fmt.Errorf("%w: actor id %q", ErrInvalidIdentifier, actor)
	}
	if target.ForbidSelf && actor == targetID {
		return Result{}, ErrSelfRelation
	}

	existing, err := e.store.Find(ctx, actor, kind, targetID)
	switch {
	case err == nil:
		if err := e.store.Delete(ctx, existing); err != nil && !errors.Is(err, ErrRecordNotFound) {
			return Result{}, fmt.Errorf("delete %s relation: %w", kind, err)
		}
		return Result{Active: false, Message: target.Message}, nil
	case !errors.Is(err, ErrRecordNotFound):
		return Result{}, fmt.Errorf("find %s relation: %w", kind, err)
	}

	var snapshot any
	if target.Resolve != nil {
		snapshot, err = target.Resolve(ctx, targetID)
		if err != nil {
			return Result{}, err
		}
	}

	record := Record{
		ID:        e.newID(),
		Actor:     actor,
		Kind:      kind,
		Target:    targetID,
		CreatedAt: e.now(),
	}
	if err := e.store.Create(ctx, record); err != nil {
		if !errors.Is(err, ErrDuplicateRecord) {
			return Result{}, fmt.Errorf("create %s relation: %w", kind, err)
		}
		record, err = e.store.Find(ctx, actor, kind, targetID)
		if err != nil {
			return Result{}, fmt.Errorf("reload %s relation: %w", kind, err)
		}
	}

	return Result{Active: true, Record: &record, Snapshot: snapshot, Message: target.Message}, nil
}
