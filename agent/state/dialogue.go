package state

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
	"github.com/tanpawarit/voice-booking-agent/pkg/metrics"
)

const (
	DefaultHistoryCap    = 20
	DefaultIdleTTL       = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

// DialogueStore maps participant identities to transcripts. Each participant
// has one lock; Do holds it for a whole orchestration loop so appends of two
// loops on the same participant never interleave.
type DialogueStore struct {
	mu       sync.Mutex
	sessions map[string]*session

	systemPrompt  string
	historyCap    int
	idleTTL       time.Duration
	sweepInterval time.Duration
	snapshots     Store
	now           func() time.Time
	log           zerolog.Logger
}

type session struct {
	lock       chan struct{}
	transcript *Transcript

	// guarded by DialogueStore.mu
	lastUsed time.Time
	holders  int
}

type DialogueOption func(*DialogueStore)

func WithHistoryCap(n int) DialogueOption {
	return func(d *DialogueStore) {
		if n > 0 {
			d.historyCap = n
		}
	}
}

// WithIdleTTL sets how long an untouched session stays in memory. Zero
// disables eviction.
func WithIdleTTL(ttl time.Duration) DialogueOption {
	return func(d *DialogueStore) {
		if ttl >= 0 {
			d.idleTTL = ttl
		}
	}
}

func WithSweepInterval(every time.Duration) DialogueOption {
	return func(d *DialogueStore) {
		if every > 0 {
			d.sweepInterval = every
		}
	}
}

func WithSnapshotStore(store Store) DialogueOption {
	return func(d *DialogueStore) {
		d.snapshots = store
	}
}

func WithClock(now func() time.Time) DialogueOption {
	return func(d *DialogueStore) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDialogueStore(systemPrompt string, opts ...DialogueOption) *DialogueStore {
	d := &DialogueStore{
		sessions:      make(map[string]*session),
		systemPrompt:  systemPrompt,
		historyCap:    DefaultHistoryCap,
		idleTTL:       DefaultIdleTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		log:           log.Logger.With().Str("component", "dialogue-store").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

func (d *DialogueStore) HistoryCap() int {
	return d.historyCap
}

// Do runs fn with exclusive access to the participant's transcript, creating
// (or rehydrating) it on first use. The transcript must not be retained after
// fn returns.
func (d *DialogueStore) Do(ctx context.Context, participantID string, fn func(*Transcript) error) error {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return ErrInvalidParticipant
	}

	s := d.acquire(participantID)
	defer d.release(s)

	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.lock }()

	if s.transcript == nil {
		s.transcript = d.load(ctx, participantID)
	}

	err := fn(s.transcript)
	s.transcript.Touch(d.now())
	d.save(ctx, s.transcript)
	return err
}

// GetOrCreate returns a copy of the participant's transcript.
func (d *DialogueStore) GetOrCreate(ctx context.Context, participantID string) (*Transcript, error) {
	var out *Transcript
	err := d.Do(ctx, participantID, func(t *Transcript) error {
		out = t.Clone()
		return nil
	})
	return out, err
}

func (d *DialogueStore) Append(ctx context.Context, participantID string, turns ...contractx.Turn) error {
	return d.Do(ctx, participantID, func(t *Transcript) error {
		t.Append(turns...)
		return nil
	})
}

// Trim applies the history cap to the participant's transcript.
func (d *DialogueStore) Trim(ctx context.Context, participantID string) (int, error) {
	var dropped int
	err := d.Do(ctx, participantID, func(t *Transcript) error {
		dropped = t.Trim(d.historyCap)
		return nil
	})
	return dropped, err
}

func (d *DialogueStore) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// Sweep evicts sessions idle for longer than the idle TTL. Sessions with a
// loop in flight or waiting are never evicted.
func (d *DialogueStore) Sweep() int {
	if d.idleTTL <= 0 {
		return 0
	}
	cutoff := d.now().Add(-d.idleTTL)

	d.mu.Lock()
	defer d.mu.Unlock()

	evicted := 0
	for id, s := range d.sessions {
		if s.holders > 0 || s.lastUsed.After(cutoff) {
			continue
		}
		delete(d.sessions, id)
		metrics.RecordSessionEvicted()
		evicted++
		d.log.Debug().Str("participant", id).Msg("evicted idle session")
	}
	return evicted
}

// Run sweeps periodically until ctx is done.
func (d *DialogueStore) Run(ctx context.Context) {
	if d.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.Sweep(); n > 0 {
				d.log.Info().Int("evicted", n).Int("remaining", d.Len()).Msg("session sweep")
			}
		}
	}
}

func (d *DialogueStore) acquire(participantID string) *session {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[participantID]
	if !ok {
		s = &session{lock: make(chan struct{}, 1)}
		d.sessions[participantID] = s
		metrics.RecordSessionCreated()
	}
	s.holders++
	s.lastUsed = d.now()
	return s
}

func (d *DialogueStore) release(s *session) {
	d.mu.Lock()
	s.holders--
	s.lastUsed = d.now()
	d.mu.Unlock()
}

func (d *DialogueStore) load(ctx context.Context, participantID string) *Transcript {
	if d.snapshots != nil {
		t, err := d.snapshots.Load(ctx, participantID)
		switch {
		case err == nil:
			t.ParticipantID = participantID
			if len(t.Turns) > 0 {
				t.Turns[0] = contractx.SystemTurn(d.systemPrompt)
			}
			d.log.Debug().Str("participant", participantID).Int("turns", t.Len()).Msg("rehydrated transcript")
			return t
		case !errors.Is(err, ErrTranscriptNotFound):
			d.log.Warn().Err(err).Str("participant", participantID).Msg("load transcript snapshot")
		}
	}
	return NewTranscript(participantID, d.systemPrompt, d.now())
}

func (d *DialogueStore) save(ctx context.Context, t *Transcript) {
	if d.snapshots == nil {
		return
	}
	if err := t.Validate(); err != nil {
		d.log.Warn().Err(err).Str("participant", t.ParticipantID).Msg("skip snapshot of inconsistent transcript")
		return
	}
	if err := d.snapshots.Save(ctx, t.Clone()); err != nil {
		d.log.Warn().Err(err).Str("participant", t.ParticipantID).Msg("save transcript snapshot")
	}
}
