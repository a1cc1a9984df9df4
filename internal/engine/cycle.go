package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"notesync/internal/domain"
	"notesync/internal/merge"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errNoProgress = errors.New("push acknowledged nothing")

// cycle pushes pending mutations and pulls remote changes concurrently, then
// compacts the log. Each step commits durably before the next begins, so an
// interrupted cycle can simply be run again.
func (c *Coordinator) cycle(ctx context.Context, sess domain.Session) cycleResult {
	var pushReasserted, pullReasserted int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := c.push(gctx, sess)
		pushReasserted = n
		return err
	})
	g.Go(func() error {
		n, err := c.pull(gctx, sess)
		pullReasserted = n
		return err
	})
	if err := g.Wait(); err != nil {
		return cycleResult{err: err}
	}

	if err := c.finish(ctx, sess); err != nil {
		return cycleResult{err: err}
	}
	return cycleResult{reasserted: pushReasserted + pullReasserted}
}

func (c *Coordinator) push(ctx context.Context, sess domain.Session) (int, error) {
	log := c.engine.log
	reasserted := 0

	for {
		batch, err := log.PendingSince(ctx, sess.DeviceID, 0, c.cfg.PushBatch)
		if err != nil {
			return reasserted, err
		}
		if len(batch) == 0 {
			return reasserted, nil
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		resp, err := c.remote.Push(callCtx, sess, batch)
		cancel()
		if err != nil {
			return reasserted, timeoutAsUnavailable("push", err)
		}
		if len(resp.Acked) == 0 {
			return reasserted, &domain.RemoteError{Op: "push", Err: errNoProgress}
		}

		if err := log.MarkAcknowledged(ctx, sess.DeviceID, resp.Acked...); err != nil {
			return reasserted, err
		}
		c.logger.Debug("mutations acknowledged",
			zap.Int("sent", len(batch)),
			zap.Int("acked", len(resp.Acked)),
			zap.Int("conflicts", len(resp.Conflicts)),
		)

		for _, n := range resp.Conflicts {
			again, err := c.integrate(ctx, sess, n)
			if err != nil {
				return reasserted, err
			}
			if again {
				reasserted++
			}
		}

		if len(batch) < c.cfg.PushBatch {
			return reasserted, nil
		}
	}
}

func (c *Coordinator) pull(ctx context.Context, sess domain.Session) (int, error) {
	log := c.engine.log
	reasserted := 0

	cursor, err := log.Cursor(ctx, sess.UserID)
	if err != nil {
		return 0, err
	}

	for {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		resp, err := c.remote.Pull(callCtx, sess, cursor, c.cfg.PullLimit)
		cancel()
		if err != nil {
			return reasserted, timeoutAsUnavailable("pull", err)
		}

		for _, n := range resp.Changes {
			again, err := c.integrate(ctx, sess, n)
			if err != nil {
				return reasserted, err
			}
			if again {
				reasserted++
			}
		}

		// The cursor only moves once every change on the page is durable.
		// Pages may be empty while more remain: the feed is shared with
		// other accounts and document types.
		if resp.Cursor == "" || resp.Cursor == cursor {
			if resp.HasMore {
				c.logger.Warn("pull cursor did not advance, stopping",
					zap.String("cursor", string(cursor)),
					zap.Int("changes", len(resp.Changes)),
				)
			}
			return reasserted, nil
		}
		if err := log.SetCursor(ctx, sess.UserID, resp.Cursor, c.clock.Now().UnixMilli()); err != nil {
			return reasserted, err
		}
		cursor = resp.Cursor

		if !resp.HasMore {
			return reasserted, nil
		}
	}
}

// integrate merges one remote note into the store. It reports whether a
// local value won a concurrent conflict and was queued to be sent back.
func (c *Coordinator) integrate(ctx context.Context, sess domain.Session, remote domain.Note) (bool, error) {
	if remote.OwnerID != sess.UserID {
		c.logger.Warn("ignoring note owned by another account",
			zap.String("note_id", remote.ID),
			zap.String("owner_id", remote.OwnerID),
		)
		return false, nil
	}

	st, log := c.engine.store, c.engine.log

	unlock := st.Lock(remote.ID)
	defer unlock()

	local, err := st.Load(ctx, remote.ID)
	if errors.Is(err, domain.ErrNotFound) {
		if remote.Deleted {
			return false, nil
		}
		return false, st.Put(ctx, remote, domain.OriginRemote)
	}
	if err != nil {
		return false, err
	}

	res := merge.Resolve(local, remote, sess.DeviceID)
	if !res.Changed {
		return false, nil
	}
	if err := st.Put(ctx, res.Note, domain.OriginRemote); err != nil {
		return false, err
	}

	if len(res.Overridden) > 0 {
		staged, err := log.PendingFields(ctx, sess.DeviceID, remote.ID)
		if err != nil {
			return false, err
		}
		lost := slices.DeleteFunc(slices.Clone(res.Overridden), func(f domain.Field) bool { return !staged[f] })
		if len(lost) > 0 {
			c.logger.Info("local edits overridden by remote",
				zap.String("note_id", remote.ID),
				zap.Any("fields", lost),
			)
			st.Notify(domain.ChangeEvent{
				Kind:   domain.EventOverride,
				Origin: domain.OriginRemote,
				Note:   res.Note.Clone(),
				Fields: lost,
			})
		}
	}

	if len(res.Reasserted) == 0 {
		return false, nil
	}

	versions := make(domain.Versions, len(res.Reasserted))
	for _, f := range res.Reasserted {
		versions[f] = res.Note.Versions[f].Clone()
	}
	m, err := log.Append(ctx, domain.Mutation{
		DeviceID:  sess.DeviceID,
		NoteID:    remote.ID,
		OwnerID:   sess.UserID,
		Patch:     domain.PatchFrom(res.Note, res.Reasserted),
		Versions:  versions,
		CreatedAt: c.clock.Now().UnixMilli(),
	})
	if err != nil {
		return false, err
	}
	if err := log.MarkApplied(ctx, m.DeviceID, m.Seq); err != nil {
		return false, err
	}
	c.logger.Debug("conflict resolution queued",
		zap.String("note_id", remote.ID),
		zap.Uint64("seq", m.Seq),
		zap.Any("fields", res.Reasserted),
	)
	return true, nil
}

// finish drops acknowledged mutations and purges tombstones nothing refers
// to anymore.
func (c *Coordinator) finish(ctx context.Context, sess domain.Session) error {
	removed, err := c.engine.log.Compact(ctx, sess.DeviceID)
	if err != nil {
		return err
	}

	for _, m := range removed {
		if !m.Patch.IsDeletion() {
			continue
		}
		if err := c.purgeIfSettled(ctx, sess, m.NoteID); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) purgeIfSettled(ctx context.Context, sess domain.Session, noteID string) error {
	st, log := c.engine.store, c.engine.log

	unlock := st.Lock(noteID)
	defer unlock()

	n, err := st.Load(ctx, noteID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !n.Deleted {
		return nil
	}

	staged, err := log.PendingFields(ctx, sess.DeviceID, noteID)
	if err != nil {
		return err
	}
	if len(staged) > 0 {
		return nil
	}
	return st.Purge(ctx, noteID)
}

func timeoutAsUnavailable(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.RemoteError{Op: op, Err: fmt.Errorf("request timed out: %w", err)}
	}
	return err
}
