package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memorySnapshots struct {
	mu    sync.Mutex
	saved map[string]*Transcript
}

func (m *memorySnapshots) Load(ctx context.Context, participantID string) (*Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.saved[participantID]
	if !ok {
		return nil, ErrTranscriptNotFound
	}
	return t.Clone(), nil
}

func (m *memorySnapshots) Save(ctx context.Context, t *Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string]*Transcript{}
	}
	m.saved[t.ParticipantID] = t.Clone()
	return nil
}

func (m *memorySnapshots) Delete(ctx context.Context, participantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, participantID)
	return nil
}

func TestDialogueStoreGetOrCreate(t *testing.T) {
	t.Parallel()

	store := NewDialogueStore("you are a booking assistant")
	ctx := context.Background()

	tr, err := store.GetOrCreate(ctx, "alice")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if tr.Len() != 1 || tr.Turns[0].Role != contractx.RoleSystem {
		t.Fatalf("new transcript = %#v", tr.Turns)
	}

	if err := store.Append(ctx, "alice", contractx.UserTurn("hi")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	tr, _ = store.GetOrCreate(ctx, "alice")
	if tr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tr.Len())
	}

	// the returned copy is detached from the store
	tr.Append(contractx.UserTurn("local only"))
	again, _ := store.GetOrCreate(ctx, "alice")
	if again.Len() != 2 {
		t.Fatalf("store mutated through copy: len=%d", again.Len())
	}

	if _, err := store.GetOrCreate(ctx, "  "); !errors.Is(err, ErrInvalidParticipant) {
		t.Fatalf("GetOrCreate(blank) error = %v", err)
	}
}

func TestDialogueStoreTrimUsesCap(t *testing.T) {
	t.Parallel()

	store := NewDialogueStore("sys", WithHistoryCap(5))
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := store.Append(ctx, "p", contractx.UserTurn("x")); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	dropped, err := store.Trim(ctx, "p")
	if err != nil {
		t.Fatalf("Trim() error = %v", err)
	}
	if dropped != 6 {
		t.Fatalf("Trim() dropped = %d, want 6", dropped)
	}
	tr, _ := store.GetOrCreate(ctx, "p")
	if tr.Len() != 5 || tr.Turns[0].Content != "sys" {
		t.Fatalf("after trim: len=%d first=%q", tr.Len(), tr.Turns[0].Content)
	}
}

func TestDialogueStoreSerializesSameParticipant(t *testing.T) {
	t.Parallel()

	store := NewDialogueStore("sys")
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Do(ctx, "same", func(tr *Transcript) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				tr.Append(contractx.UserTurn("q"))
				time.Sleep(2 * time.Millisecond)
				tr.Append(contractx.AssistantTurn("a", nil))

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("Do() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("concurrent holders = %d, want 1", maxSeen)
	}
	tr, _ := store.GetOrCreate(ctx, "same")
	for i := 1; i < tr.Len(); i += 2 {
		if tr.Turns[i].Role != contractx.RoleUser || tr.Turns[i+1].Role != contractx.RoleAssistant {
			t.Fatalf("interleaved turns at %d: %#v", i, tr.Turns)
		}
	}
}

func TestDialogueStoreDoHonorsContext(t *testing.T) {
	t.Parallel()

	store := NewDialogueStore("sys")
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = store.Do(context.Background(), "p", func(*Transcript) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := store.Do(ctx, "p", func(*Transcript) error { return nil })
	close(release)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do() error = %v, want deadline exceeded", err)
	}
}

func TestDialogueStoreSweepEvictsIdleAndRehydrates(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	snaps := &memorySnapshots{}
	store := NewDialogueStore("sys v2",
		WithClock(clock.Now),
		WithIdleTTL(10*time.Minute),
		WithSnapshotStore(snaps),
	)
	ctx := context.Background()

	if err := store.Append(ctx, "idle", contractx.UserTurn("old question")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	clock.Advance(5 * time.Minute)
	if err := store.Append(ctx, "fresh", contractx.UserTurn("new question")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	clock.Advance(6 * time.Minute)
	if n := store.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}

	tr, err := store.GetOrCreate(ctx, "idle")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if tr.Len() != 2 || tr.Turns[1].Content != "old question" {
		t.Fatalf("rehydrated transcript = %#v", tr.Turns)
	}
	if tr.Turns[0].Content != "sys v2" {
		t.Fatalf("system turn = %q", tr.Turns[0].Content)
	}
}

func TestDialogueStoreSweepSkipsBusySessions(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	store := NewDialogueStore("sys", WithClock(clock.Now), WithIdleTTL(time.Minute))

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Do(context.Background(), "busy", func(*Transcript) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	clock.Advance(time.Hour)
	if n := store.Sweep(); n != 0 {
		t.Fatalf("Sweep() evicted %d busy sessions", n)
	}
	close(release)
	<-done

	clock.Advance(time.Hour)
	if n := store.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
}
