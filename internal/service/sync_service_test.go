package service

import (
	"context"
	"errors"
	"testing"

	"notesync/internal/domain"

	"go.uber.org/zap"
)

const testUser = "user-1"

func newTestSyncService() (*SyncService, *mockNoteRepo, *mockMetadataRepo, *mockNotifier) {
	notes := newMockNoteRepo()
	metas := newMockMetadataRepo()
	notifier := &mockNotifier{}
	return NewSyncService(notes, metas, notifier, 2, 2, zap.NewNop()), notes, metas, notifier
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func testMutation(device string, seq uint64, noteID string, ts int64, clock domain.VectorClock, p domain.Patch) domain.Mutation {
	versions := domain.Versions{}
	for _, f := range p.Fields() {
		versions[f] = domain.FieldVersion{Clock: clock.Clone(), Timestamp: ts, Device: device}
	}
	return domain.Mutation{
		DeviceID:  device,
		Seq:       seq,
		NoteID:    noteID,
		OwnerID:   testUser,
		Patch:     p,
		Versions:  versions,
		CreatedAt: ts,
	}
}

func createPatch(title, content string) domain.Patch {
	return domain.Patch{
		Title:   strPtr(title),
		Content: strPtr(content),
		Color:   strPtr(domain.DefaultColor),
		Pinned:  boolPtr(false),
		Deleted: boolPtr(false),
	}
}

func TestSyncService_PushCreatesNote(t *testing.T) {
	service, notes, metas, notifier := newTestSyncService()
	ctx := context.Background()

	req := &domain.PushRequest{
		DeviceID: "d1",
		Mutations: []domain.Mutation{
			testMutation("d1", 2, "n1", 110, domain.VectorClock{"d1": 2}, domain.Patch{Pinned: boolPtr(true)}),
			testMutation("d1", 1, "n1", 100, domain.VectorClock{"d1": 1}, createPatch("Groceries", "milk")),
		},
	}

	resp, err := service.Push(ctx, testUser, req)
	if err != nil {
		t.Fatalf("Push() unexpected error = %v", err)
	}

	if len(resp.Acked) != 2 || resp.Acked[0] != 1 || resp.Acked[1] != 2 {
		t.Errorf("Push() acked = %v, want [1 2]", resp.Acked)
	}
	if len(resp.Conflicts) != 0 {
		t.Errorf("Push() conflicts = %d, want 0", len(resp.Conflicts))
	}

	n := notes.notes["n1"]
	if n.Title != "Groceries" || n.Content != "milk" || !n.Pinned {
		t.Errorf("stored note = %+v", n)
	}
	if n.UpdatedAt != 110 {
		t.Errorf("UpdatedAt = %d, want 110", n.UpdatedAt)
	}

	if got := metas.metas[testUser+":d1"].AckedSeq; got != 2 {
		t.Errorf("AckedSeq = %d, want 2", got)
	}
	if len(notifier.sent) != 2 || notifier.sent[0].origin != "d1" {
		t.Errorf("notifications = %+v", notifier.sent)
	}
}

func TestSyncService_PushIsIdempotent(t *testing.T) {
	service, notes, _, notifier := newTestSyncService()
	ctx := context.Background()

	req := &domain.PushRequest{
		DeviceID: "d1",
		Mutations: []domain.Mutation{
			testMutation("d1", 1, "n1", 100, domain.VectorClock{"d1": 1}, createPatch("a", "b")),
		},
	}

	if _, err := service.Push(ctx, testUser, req); err != nil {
		t.Fatalf("first Push() error = %v", err)
	}
	revBefore := notes.revs["n1"]

	resp, err := service.Push(ctx, testUser, req)
	if err != nil {
		t.Fatalf("second Push() error = %v", err)
	}

	if len(resp.Acked) != 1 || resp.Acked[0] != 1 {
		t.Errorf("second Push() acked = %v, want [1]", resp.Acked)
	}
	if notes.revs["n1"] != revBefore {
		t.Error("second Push() rewrote the note")
	}
	if len(notifier.sent) != 1 {
		t.Errorf("notifications = %d, want 1", len(notifier.sent))
	}
}

func TestSyncService_PushReportsConcurrentEdits(t *testing.T) {
	service, notes, _, _ := newTestSyncService()
	ctx := context.Background()

	push := func(device string, m domain.Mutation) *domain.PushResponse {
		t.Helper()
		resp, err := service.Push(ctx, testUser, &domain.PushRequest{DeviceID: device, Mutations: []domain.Mutation{m}})
		if err != nil {
			t.Fatalf("Push(%s) error = %v", device, err)
		}
		return resp
	}

	push("d1", testMutation("d1", 1, "n1", 100, domain.VectorClock{"d1": 1}, createPatch("title", "x")))

	// d2 saw d1's write before editing.
	resp := push("d2", testMutation("d2", 1, "n1", 200, domain.VectorClock{"d1": 1, "d2": 1}, domain.Patch{Content: strPtr("y")}))
	if len(resp.Conflicts) != 0 {
		t.Fatalf("causal edit reported %d conflicts", len(resp.Conflicts))
	}

	// d1 edits without having seen d2's write.
	resp = push("d1", testMutation("d1", 2, "n1", 300, domain.VectorClock{"d1": 2}, domain.Patch{Content: strPtr("z")}))
	if len(resp.Conflicts) != 1 {
		t.Fatalf("concurrent edit reported %d conflicts, want 1", len(resp.Conflicts))
	}

	got := resp.Conflicts[0]
	if got.Content != "z" {
		t.Errorf("merged content = %q, want z (later timestamp)", got.Content)
	}
	want := domain.VectorClock{"d1": 2, "d2": 1}
	if !got.Versions[domain.FieldContent].Clock.Equal(want) {
		t.Errorf("merged clock = %v, want %v", got.Versions[domain.FieldContent].Clock, want)
	}
	if notes.notes["n1"].Content != "z" {
		t.Errorf("stored content = %q, want z", notes.notes["n1"].Content)
	}
}

func TestSyncService_PushRetriesOnRevisionConflict(t *testing.T) {
	service, notes, _, _ := newTestSyncService()
	ctx := context.Background()

	_, err := service.Push(ctx, testUser, &domain.PushRequest{DeviceID: "d1", Mutations: []domain.Mutation{
		testMutation("d1", 1, "n1", 100, domain.VectorClock{"d1": 1}, createPatch("a", "b")),
	}})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	notes.conflictOnce["n1"] = true

	_, err = service.Push(ctx, testUser, &domain.PushRequest{DeviceID: "d1", Mutations: []domain.Mutation{
		testMutation("d1", 2, "n1", 200, domain.VectorClock{"d1": 2}, domain.Patch{Title: strPtr("renamed")}),
	}})
	if err != nil {
		t.Fatalf("Push() after revision conflict error = %v", err)
	}

	if notes.notes["n1"].Title != "renamed" {
		t.Errorf("title = %q, want renamed", notes.notes["n1"].Title)
	}
}

func TestSyncService_PushDropsForeignNotes(t *testing.T) {
	service, notes, _, notifier := newTestSyncService()
	ctx := context.Background()

	m := testMutation("d1", 1, "n1", 100, domain.VectorClock{"d1": 1}, createPatch("a", "b"))
	m.OwnerID = "someone-else"

	resp, err := service.Push(ctx, testUser, &domain.PushRequest{DeviceID: "d1", Mutations: []domain.Mutation{m}})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if len(resp.Acked) != 1 {
		t.Errorf("acked = %v, want the dropped seq acknowledged", resp.Acked)
	}
	if _, ok := notes.notes["n1"]; ok {
		t.Error("foreign note was stored")
	}
	if len(notifier.sent) != 0 {
		t.Errorf("notifications = %d, want 0", len(notifier.sent))
	}
}

func TestSyncService_PushValidation(t *testing.T) {
	service, _, _, _ := newTestSyncService()
	ctx := context.Background()

	tests := []struct {
		name string
		req  *domain.PushRequest
	}{
		{
			name: "missing device",
			req:  &domain.PushRequest{Mutations: []domain.Mutation{}},
		},
		{
			name: "mutation from another device",
			req: &domain.PushRequest{DeviceID: "d1", Mutations: []domain.Mutation{
				testMutation("d2", 1, "n1", 100, domain.VectorClock{"d2": 1}, createPatch("a", "b")),
			}},
		},
		{
			name: "blank title",
			req: &domain.PushRequest{DeviceID: "d1", Mutations: []domain.Mutation{
				testMutation("d1", 1, "n1", 100, domain.VectorClock{"d1": 1}, domain.Patch{Title: strPtr("   ")}),
			}},
		},
		{
			name: "unknown colour",
			req: &domain.PushRequest{DeviceID: "d1", Mutations: []domain.Mutation{
				testMutation("d1", 1, "n1", 100, domain.VectorClock{"d1": 1}, domain.Patch{Color: strPtr("#000000")}),
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Push(ctx, testUser, tt.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Push() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSyncService_Pull(t *testing.T) {
	service, _, metas, _ := newTestSyncService()
	ctx := context.Background()

	var muts []domain.Mutation
	for i, id := range []string{"n1", "n2", "n3"} {
		seq := uint64(i + 1)
		muts = append(muts, testMutation("d1", seq, id, int64(100*seq), domain.VectorClock{"d1": seq}, createPatch(id, "body")))
	}
	if _, err := service.Push(ctx, testUser, &domain.PushRequest{DeviceID: "d1", Mutations: muts}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	page, err := service.Pull(ctx, testUser, "d2", "", 50)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if len(page.Changes) != 2 || !page.HasMore {
		t.Fatalf("first page = %d changes, has_more %v; want 2 and true", len(page.Changes), page.HasMore)
	}

	page, err = service.Pull(ctx, testUser, "d2", page.Cursor, 0)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if len(page.Changes) != 1 || page.HasMore {
		t.Fatalf("second page = %d changes, has_more %v; want 1 and false", len(page.Changes), page.HasMore)
	}
	if page.Changes[0].ID != "n3" {
		t.Errorf("second page note = %s, want n3", page.Changes[0].ID)
	}

	if metas.metas[testUser+":d2"].LastPullAt.IsZero() {
		t.Error("expected pull time to be recorded")
	}

	other, err := service.Pull(ctx, "user-2", "d9", "", 0)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if len(other.Changes) != 0 {
		t.Errorf("other user saw %d notes", len(other.Changes))
	}
}
