// Package engine is the public face of the sync engine: the presentation
// layer edits notes through Engine and the Coordinator keeps the device in
// step with the remote service.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notesync/internal/domain"
	"notesync/internal/merge"
	"notesync/internal/mutlog"
	"notesync/internal/remote"
	"notesync/internal/store"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type Config struct {
	PushBatch      int
	PullLimit      int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	RequestTimeout time.Duration
	// PollInterval requests a sync periodically when hints are unavailable.
	// Zero disables polling.
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		PushBatch:      100,
		PullLimit:      200,
		BackoffBase:    time.Second,
		BackoffMax:     5 * time.Minute,
		RequestTimeout: 30 * time.Second,
	}
}

type Engine struct {
	store  *store.Store
	log    *mutlog.Log
	clock  clockwork.Clock
	logger *zap.Logger
	coord  *Coordinator
}

func New(st *store.Store, log *mutlog.Log, svc remote.Service, clock clockwork.Clock, logger *zap.Logger, cfg Config) *Engine {
	e := &Engine{
		store:  st,
		log:    log,
		clock:  clock,
		logger: logger,
	}
	e.coord = newCoordinator(e, svc, cfg)
	return e
}

func (e *Engine) Coordinator() *Coordinator {
	return e.coord
}

// Apply validates an edit, appends it to the mutation log, applies it to the
// local store and asks the coordinator to sync. The returned note is the
// optimistic local state.
func (e *Engine) Apply(ctx context.Context, sess domain.Session, in domain.MutationInput) (domain.Note, error) {
	if !sess.Valid() {
		return domain.Note{}, domain.ErrUnauthenticated
	}

	creating := in.NoteID == ""
	if err := domain.ValidatePatch(in.Patch, creating); err != nil {
		return domain.Note{}, err
	}

	patch := in.Patch
	noteID := in.NoteID
	if creating {
		noteID = uuid.NewString()
		patch = withCreateDefaults(patch)
	}

	unlock := e.store.Lock(noteID)
	defer unlock()

	cur := domain.Note{ID: noteID, OwnerID: sess.UserID, Versions: domain.Versions{}}
	if !creating {
		existing, err := e.get(ctx, sess, noteID)
		if err != nil {
			return domain.Note{}, err
		}
		cur = existing
	}

	ts := max(e.clock.Now().UnixMilli(), cur.UpdatedAt+1)
	m, err := e.log.Append(ctx, domain.Mutation{
		DeviceID:  sess.DeviceID,
		NoteID:    noteID,
		OwnerID:   sess.UserID,
		Patch:     patch,
		Versions:  nextVersions(cur, patch, sess.DeviceID, ts),
		CreatedAt: ts,
	})
	if err != nil {
		return domain.Note{}, err
	}

	next, err := e.applyLocal(ctx, cur, m)
	if err != nil {
		return domain.Note{}, err
	}

	e.logger.Debug("mutation applied",
		zap.String("note_id", noteID),
		zap.Uint64("seq", m.Seq),
		zap.Bool("created", creating),
	)
	e.coord.RequestSync()
	return next, nil
}

func (e *Engine) applyLocal(ctx context.Context, cur domain.Note, m domain.Mutation) (domain.Note, error) {
	var (
		next domain.Note
		err  error
	)
	if m.Patch.IsDeletion() && len(m.Patch.Fields()) == 1 && cur.CreatedAt != 0 {
		next, err = e.store.Delete(ctx, m.NoteID, m.Versions[domain.FieldDeleted], domain.OriginLocal)
	} else {
		next = merge.Merge(cur, merge.FromMutation(m))
		err = e.store.Put(ctx, next, domain.OriginLocal)
	}
	if err != nil {
		return domain.Note{}, err
	}

	if err := e.log.MarkApplied(ctx, m.DeviceID, m.Seq); err != nil {
		return domain.Note{}, err
	}
	return next, nil
}

// Recover applies mutations that were logged but not written to the store
// before the process stopped.
func (e *Engine) Recover(ctx context.Context, sess domain.Session) (int, error) {
	pending, err := e.log.Unapplied(ctx, sess.DeviceID)
	if err != nil {
		return 0, err
	}

	for _, m := range pending {
		if err := e.recoverOne(ctx, m); err != nil {
			return 0, fmt.Errorf("recover mutation %d: %w", m.Seq, err)
		}
	}

	if len(pending) > 0 {
		e.logger.Info("recovered unapplied mutations", zap.Int("count", len(pending)))
	}
	return len(pending), nil
}

func (e *Engine) recoverOne(ctx context.Context, m domain.Mutation) error {
	unlock := e.store.Lock(m.NoteID)
	defer unlock()

	cur, err := e.store.Load(ctx, m.NoteID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	next := merge.Merge(cur, merge.FromMutation(m))
	if err := e.store.Put(ctx, next, domain.OriginLocal); err != nil {
		return err
	}
	return e.log.MarkApplied(ctx, m.DeviceID, m.Seq)
}

func (e *Engine) Create(ctx context.Context, sess domain.Session, title, content, color string) (domain.Note, error) {
	patch := domain.Patch{Title: &title, Content: &content}
	if color != "" {
		patch.Color = &color
	}
	return e.Apply(ctx, sess, domain.MutationInput{Patch: patch})
}

func (e *Engine) Update(ctx context.Context, sess domain.Session, noteID string, patch domain.Patch) (domain.Note, error) {
	if noteID == "" {
		return domain.Note{}, domain.NewValidationError("id", "is required")
	}
	return e.Apply(ctx, sess, domain.MutationInput{NoteID: noteID, Patch: patch})
}

func (e *Engine) Delete(ctx context.Context, sess domain.Session, noteID string) error {
	deleted := true
	_, err := e.Update(ctx, sess, noteID, domain.Patch{Deleted: &deleted})
	return err
}

func (e *Engine) TogglePin(ctx context.Context, sess domain.Session, noteID string) (domain.Note, error) {
	n, err := e.Get(ctx, sess, noteID)
	if err != nil {
		return domain.Note{}, err
	}
	pinned := !n.Pinned
	return e.Update(ctx, sess, noteID, domain.Patch{Pinned: &pinned})
}

func (e *Engine) Get(ctx context.Context, sess domain.Session, noteID string) (domain.Note, error) {
	if !sess.Valid() {
		return domain.Note{}, domain.ErrUnauthenticated
	}
	return e.get(ctx, sess, noteID)
}

func (e *Engine) get(ctx context.Context, sess domain.Session, noteID string) (domain.Note, error) {
	n, err := e.store.Get(ctx, noteID)
	if err != nil {
		return domain.Note{}, err
	}
	if n.OwnerID != sess.UserID {
		return domain.Note{}, fmt.Errorf("note %s: %w", noteID, domain.ErrNotFound)
	}
	return n, nil
}

func (e *Engine) List(ctx context.Context, sess domain.Session) ([]domain.Note, error) {
	if !sess.Valid() {
		return nil, domain.ErrUnauthenticated
	}
	return e.store.List(ctx, sess.UserID)
}

func (e *Engine) Search(ctx context.Context, sess domain.Session, query string) ([]domain.Note, error) {
	if !sess.Valid() {
		return nil, domain.ErrUnauthenticated
	}
	return e.store.Search(ctx, sess.UserID, query)
}

// Subscribe streams change events for the session's notes until ctx is done
// or the subscription is cancelled.
func (e *Engine) Subscribe(ctx context.Context, sess domain.Session) (*store.Subscription, error) {
	if !sess.Valid() {
		return nil, domain.ErrUnauthenticated
	}
	return e.store.Subscribe(ctx, sess.UserID), nil
}

// Pending reports how many mutations are still held in the log.
func (e *Engine) Pending(ctx context.Context, sess domain.Session) (int, error) {
	return e.log.Len(ctx, sess.DeviceID)
}

func withCreateDefaults(p domain.Patch) domain.Patch {
	if p.Color == nil {
		c := domain.DefaultColor
		p.Color = &c
	}
	if p.Pinned == nil {
		f := false
		p.Pinned = &f
	}
	f := false
	p.Deleted = &f
	return p
}

// nextVersions stamps every patched field with a clock that strictly follows
// what this device has seen. A deletion covers the whole note history.
func nextVersions(cur domain.Note, p domain.Patch, device string, ts int64) domain.Versions {
	out := make(domain.Versions)
	for _, f := range p.Fields() {
		clock := cur.Versions[f].Clock
		if f == domain.FieldDeleted && p.IsDeletion() {
			clock = cur.Clock()
		}
		out[f] = domain.FieldVersion{
			Clock:     clock.Increment(device),
			Timestamp: ts,
			Device:    device,
		}
	}
	return out
}
