package engine

import (
	"context"
	"strconv"
	"sync"

	"notesync/internal/domain"
	"notesync/internal/merge"
	"notesync/internal/remote"
)

// fakeRemote is an in-memory notes service that merges pushes the way the
// real server does and serves pulls from an append-only change list.
type fakeRemote struct {
	mu       sync.Mutex
	notes    map[string]domain.Note
	changes  []string
	acked    map[string]uint64
	received []domain.Mutation

	pushCalls int
	pullCalls int
	pushErrs  []error
	pullErrs  []error

	// pages overrides the response for a cursor; cursors records every pull.
	pages   map[domain.SyncCursor]domain.PullResponse
	cursors []domain.SyncCursor

	pushGate    chan struct{}
	pullGate    chan struct{}
	pushEntered chan struct{}
	pullEntered chan struct{}

	hints chan remote.Hint
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		notes:       make(map[string]domain.Note),
		acked:       make(map[string]uint64),
		pushEntered: make(chan struct{}, 1),
		pullEntered: make(chan struct{}, 1),
		hints:       make(chan remote.Hint),
	}
}

func (f *fakeRemote) Push(ctx context.Context, sess domain.Session, ms []domain.Mutation) (domain.PushResponse, error) {
	f.mu.Lock()
	f.pushCalls++
	if len(f.pushErrs) > 0 {
		err := f.pushErrs[0]
		f.pushErrs = f.pushErrs[1:]
		f.mu.Unlock()
		return domain.PushResponse{}, err
	}
	gate := f.pushGate
	f.mu.Unlock()

	if err := wait(ctx, gate, f.pushEntered); err != nil {
		return domain.PushResponse{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var resp domain.PushResponse
	for _, m := range ms {
		if m.Seq <= f.acked[m.DeviceID] {
			resp.Acked = append(resp.Acked, m.Seq)
			continue
		}
		f.notes[m.NoteID] = merge.Merge(f.notes[m.NoteID], merge.FromMutation(m))
		f.changes = append(f.changes, m.NoteID)
		f.acked[m.DeviceID] = m.Seq
		f.received = append(f.received, m)
		resp.Acked = append(resp.Acked, m.Seq)
	}
	return resp, nil
}

func (f *fakeRemote) Pull(ctx context.Context, sess domain.Session, cursor domain.SyncCursor, limit int) (domain.PullResponse, error) {
	f.mu.Lock()
	f.pullCalls++
	f.cursors = append(f.cursors, cursor)
	if len(f.pullErrs) > 0 {
		err := f.pullErrs[0]
		f.pullErrs = f.pullErrs[1:]
		f.mu.Unlock()
		return domain.PullResponse{}, err
	}
	gate := f.pullGate
	f.mu.Unlock()

	if err := wait(ctx, gate, f.pullEntered); err != nil {
		return domain.PullResponse{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if page, ok := f.pages[cursor]; ok {
		return page, nil
	}

	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(string(cursor))
	}
	if start >= len(f.changes) {
		return domain.PullResponse{Cursor: cursor}, nil
	}
	end := min(start+limit, len(f.changes))

	resp := domain.PullResponse{
		Cursor:  domain.SyncCursor(strconv.Itoa(end)),
		HasMore: end < len(f.changes),
	}
	seen := make(map[string]bool)
	for _, id := range f.changes[start:end] {
		if seen[id] {
			continue
		}
		seen[id] = true
		resp.Changes = append(resp.Changes, f.notes[id].Clone())
	}
	return resp, nil
}

func (f *fakeRemote) Hints(ctx context.Context, sess domain.Session) (<-chan remote.Hint, error) {
	out := make(chan remote.Hint)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case h := <-f.hints:
				select {
				case out <- h:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func wait(ctx context.Context, gate chan struct{}, entered chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case entered <- struct{}{}:
	default:
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// seed stores a note as if another device had synced it.
func (f *fakeRemote) seed(n domain.Note) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[n.ID] = merge.Merge(f.notes[n.ID], n)
	f.changes = append(f.changes, n.ID)
}

func (f *fakeRemote) blockPush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushGate = make(chan struct{})
}

func (f *fakeRemote) releasePush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushGate != nil {
		close(f.pushGate)
		f.pushGate = nil
	}
}

func (f *fakeRemote) blockPull() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pullGate = make(chan struct{})
}

func (f *fakeRemote) releasePull() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullGate != nil {
		close(f.pullGate)
		f.pullGate = nil
	}
}

func (f *fakeRemote) failPush(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushErrs = append(f.pushErrs, errs...)
}

func (f *fakeRemote) counts() (push, pull int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushCalls, f.pullCalls
}

func (f *fakeRemote) receivedSeqs() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, 0, len(f.received))
	for _, m := range f.received {
		out = append(out, m.Seq)
	}
	return out
}

func (f *fakeRemote) note(id string) (domain.Note, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	return n.Clone(), ok
}

func (f *fakeRemote) setPage(cursor domain.SyncCursor, resp domain.PullResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pages == nil {
		f.pages = make(map[domain.SyncCursor]domain.PullResponse)
	}
	f.pages[cursor] = resp
}

func (f *fakeRemote) pulledCursors() []domain.SyncCursor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SyncCursor(nil), f.cursors...)
}
