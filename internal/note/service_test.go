package note

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNoteRepo is an in-memory NoteRepository with the same ownership
// scoping as the SQL implementation.
type fakeNoteRepo struct {
	notes map[uuid.UUID]*Note
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{notes: make(map[uuid.UUID]*Note)}
}

func (r *fakeNoteRepo) Create(_ context.Context, ownerID uuid.UUID, title, content string) (*Note, error) {
	n := &Note{
		ID:        uuid.New(),
		UserID:    ownerID,
		Title:     title,
		Content:   content,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.notes[n.ID] = n
	return n, nil
}

func (r *fakeNoteRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*Note, error) {
	var out []*Note
	for _, n := range r.notes {
		if n.UserID == ownerID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNoteRepo) Update(_ context.Context, ownerID, noteID uuid.UUID, title, content string) (*Note, error) {
	n, ok := r.notes[noteID]
	if !ok || n.UserID != ownerID {
		return nil, ErrNotFound
	}
	n.Title = title
	n.Content = content
	n.UpdatedAt = time.Now()
	return n, nil
}

func (r *fakeNoteRepo) Delete(_ context.Context, ownerID, noteID uuid.UUID) error {
	n, ok := r.notes[noteID]
	if !ok || n.UserID != ownerID {
		return ErrNotFound
	}
	delete(r.notes, noteID)
	return nil
}

func TestNoteService_CreateValidation(t *testing.T) {
	t.Parallel()
	svc := NewService(newFakeNoteRepo())
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Create(ctx, owner, "", "content")
	assert.ErrorIs(t, err, ErrTitleContentRequired)

	_, err = svc.Create(ctx, owner, "title", "")
	assert.ErrorIs(t, err, ErrTitleContentRequired)

	n, err := svc.Create(ctx, owner, "title", "content")
	require.NoError(t, err)
	assert.Equal(t, owner, n.UserID)
}

func TestNoteService_UpdateValidation(t *testing.T) {
	t.Parallel()
	repo := newFakeNoteRepo()
	svc := NewService(repo)
	ctx := context.Background()
	owner := uuid.New()

	n, err := svc.Create(ctx, owner, "title", "content")
	require.NoError(t, err)

	_, err = svc.Update(ctx, owner, n.ID, "", "new content")
	assert.ErrorIs(t, err, ErrTitleContentRequired)

	updated, err := svc.Update(ctx, owner, n.ID, "new title", "new content")
	require.NoError(t, err)
	assert.Equal(t, "new title", updated.Title)
	assert.Equal(t, "new content", updated.Content)
}

func TestNoteService_OwnershipIsolation(t *testing.T) {
	t.Parallel()
	repo := newFakeNoteRepo()
	svc := NewService(repo)
	ctx := context.Background()

	alice := uuid.New()
	bob := uuid.New()

	aliceNote, err := svc.Create(ctx, alice, "alice note", "secret")
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, "bob note", "other")
	require.NoError(t, err)

	// Bob cannot see, update, or delete Alice's note.
	bobNotes, err := svc.List(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobNotes, 1)
	assert.Equal(t, "bob note", bobNotes[0].Title)

	_, err = svc.Update(ctx, bob, aliceNote.ID, "hijack", "hijack")
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.Delete(ctx, bob, aliceNote.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Alice still has her note, untouched.
	aliceNotes, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, aliceNotes, 1)
	assert.Equal(t, "alice note", aliceNotes[0].Title)
}

func TestNoteService_Delete(t *testing.T) {
	t.Parallel()
	svc := NewService(newFakeNoteRepo())
	ctx := context.Background()
	owner := uuid.New()

	n, err := svc.Create(ctx, owner, "title", "content")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, owner, n.ID))

	// Deleting again reports not found.
	assert.ErrorIs(t, svc.Delete(ctx, owner, n.ID), ErrNotFound)

	notes, err := svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, notes)
}
