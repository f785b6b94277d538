package note

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/jsvoboda/notes-api/internal/database"
)

var ErrNotFound = errors.New("note not found")

// Repository handles note persistence. Every read and write is scoped to
// the owning user id; there is no unscoped access path.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new note for the owner.
func (r *Repository) Create(ctx context.Context, ownerID uuid.UUID, title, content string) (*Note, error) {
	dbNote := &database.Note{
		UserID:  ownerID,
		Title:   title,
		Content: content,
	}

	_, err := r.db.NewInsert().
		Model(dbNote).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	return mapDBNoteToModel(dbNote), nil
}

// ListByOwner returns the owner's notes, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Note, error) {
	var dbNotes []*database.Note
	err := r.db.NewSelect().
		Model(&dbNotes).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	notes := make([]*Note, 0, len(dbNotes))
	for _, dbNote := range dbNotes {
		notes = append(notes, mapDBNoteToModel(dbNote))
	}
	return notes, nil
}

// Update rewrites title and content of a note matching both id and owner.
// A mismatch on either is reported as ErrNotFound, never as someone
// else's note.
func (r *Repository) Update(ctx context.Context, ownerID, noteID uuid.UUID, title, content string) (*Note, error) {
	dbNote := new(database.Note)
	result, err := r.db.NewUpdate().
		Model(dbNote).
		Set("title = ?", title).
		Set("content = ?", content).
		Set("updated_at = NOW()").
		Where("id = ?", noteID).
		Where("user_id = ?", ownerID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return mapDBNoteToModel(dbNote), nil
}

// Delete removes a note matching both id and owner. Hard delete.
func (r *Repository) Delete(ctx context.Context, ownerID, noteID uuid.UUID) error {
	result, err := r.db.NewDelete().
		Model((*database.Note)(nil)).
		Where("id = ?", noteID).
		Where("user_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func mapDBNoteToModel(dbn *database.Note) *Note {
	return &Note{
		ID:        dbn.ID,
		UserID:    dbn.UserID,
		Title:     dbn.Title,
		Content:   dbn.Content,
		CreatedAt: dbn.CreatedAt,
		UpdatedAt: dbn.UpdatedAt,
	}
}
