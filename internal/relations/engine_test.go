package relations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

const (
	actorID = "aaaaaaaaaaaaaaaaaaaaaaaa"
	videoID = "bbbbbbbbbbbbbbbbbbbbbbbb"
)

type videoSnapshot struct {
	ID    string
	Title string
}

func hexID(id string) bool {
	if len(id) != 24 {
		return false
	}
	return strings.Trim(id, "0123456789abcdef") == ""
}

func newTestEngine(store Store, known map[string]bool) *Engine {
	seq := 0
	resolve := func(_ context.Context, id string) (any, error) {
		if !known[id] {
			return nil, ErrTargetNotFound
		}
		return videoSnapshot{ID: id, Title: "Intro"}, nil
	}
	return NewEngine(store, map[Kind]Target{
		KindVideo:   {Resolve: resolve, Message: "Video like toggled successfully"},
		KindChannel: {Message: "Subscription toggled successfully", ForbidSelf: true},
	}, Options{
		ValidID: hexID,
		NewID: func() string {
			seq++
			return fmt.Sprintf("%024d", seq)
		},
		Now: func() time.Time { return time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC) },
	})
}

func TestToggleIsAnInvolution(t *testing.T) {
	store := NewMemoryStore()
	engine := newTestEngine(store, map[string]bool{videoID: true})
	ctx := context.Background()

	on, err := engine.Toggle(ctx, actorID, KindVideo, videoID)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !on.Active || on.Record == nil {
		t.Fatalf("expected relation to be on: %+v", on)
	}
	snapshot, ok := on.Snapshot.(videoSnapshot)
	if !ok || snapshot.ID != videoID {
		t.Fatalf("expected target snapshot, got %#v", on.Snapshot)
	}
	if on.Message != "Video like toggled successfully" {
		t.Fatalf("unexpected message %q", on.Message)
	}
	if store.Count(actorID, KindVideo, videoID) != 1 {
		t.Fatal("expected one record after first toggle")
	}

	off, err := engine.Toggle(ctx, actorID, KindVideo, videoID)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if off.Active || off.Record != nil || off.Snapshot != nil {
		t.Fatalf("expected empty off state, got %+v", off)
	}
	if store.Count(actorID, KindVideo, videoID) != 0 {
		t.Fatal("expected record to be deleted after second toggle")
	}
}

func TestToggleRejectsInvalidIdentifiers(t *testing.T) {
	engine := newTestEngine(NewMemoryStore(), nil)

	if _, err := engine.Toggle(context.Background(), actorID, KindVideo, "not-an-id"); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier got %v", err)
	}
	if _, err := engine.Toggle(context.Background(), "", KindVideo, videoID); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier for actor got %v", err)
	}
	if _, err := engine.Toggle(context.Background(), actorID, KindTweet, videoID); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind got %v", err)
	}
}

func TestToggleMissingTargetWritesNothing(t *testing.T) {
	store := NewMemoryStore()
	engine := newTestEngine(store, map[string]bool{})

	if _, err := engine.Toggle(context.Background(), actorID, KindVideo, videoID); !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound got %v", err)
	}
	if store.Count(actorID, KindVideo, videoID) != 0 {
		t.Fatal("expected no record for missing target")
	}
}

func TestToggleForbidsSelfSubscription(t *testing.T) {
	engine := newTestEngine(NewMemoryStore(), nil)

	if _, err := engine.Toggle(context.Background(), actorID, KindChannel, actorID); !errors.Is(err, ErrSelfRelation) {
		t.Fatalf("expected ErrSelfRelation got %v", err)
	}

	result, err := engine.Toggle(context.Background(), actorID, KindChannel, videoID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !result.Active || result.Snapshot != nil {
		t.Fatalf("expected active subscription without snapshot, got %+v", result)
	}
}

// racingStore reports the pair as absent once, then rejects the create as if a
// concurrent toggle had inserted first.
type racingStore struct {
	*MemoryStore
	raced bool
}

func (s *racingStore) Find(ctx context.Context, actor string, kind Kind, target string) (Record, error) {
	if !s.raced {
		s.raced = true
		_ = s.MemoryStore.Create(ctx, Record{ID: "winner", Actor: actor, Kind: kind, Target: target})
		return Record{}, ErrRecordNotFound
	}
	return s.MemoryStore.Find(ctx, actor, kind, target)
}

func TestToggleDuplicateCreateReportsOnState(t *testing.T) {
	store := &racingStore{MemoryStore: NewMemoryStore()}
	engine := newTestEngine(store, map[string]bool{videoID: true})

	result, err := engine.Toggle(context.Background(), actorID, KindVideo, videoID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !result.Active || result.Record == nil || result.Record.ID != "winner" {
		t.Fatalf("expected concurrent winner to be reported, got %+v", result)
	}
	if store.Count(actorID, KindVideo, videoID) != 1 {
		t.Fatal("expected exactly one record")
	}
}

type failingStore struct{ MemoryStore }

func (*failingStore) Find(context.Context, string, Kind, string) (Record, error) {
	return Record{}, errors.New("connection reset")
}

func TestTogglePropagatesStoreErrors(t *testing.T) {
	engine := newTestEngine(&failingStore{}, map[string]bool{videoID: true})

	_, err := engine.Toggle(context.Background(), actorID, KindVideo, videoID)
	if err == nil || errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected store failure, got %v", err)
	}
}
